package game

import (
	"math"
	"math/rand"

	"github.com/swingpong/backend/internal/physics"
)

// Engine is the slice of the physics world the collision resolver needs.
type Engine interface {
	OnCollisionStart(func(physics.Collision)) physics.Unsubscribe
	OnBeforeStep(func()) physics.Unsubscribe
	BallIDs() []physics.BallID
	BallPosition(physics.BallID) (physics.Vec2, bool)
	BallVelocity(physics.BallID) (physics.Vec2, bool)
	SetBallVelocity(physics.BallID, physics.Vec2)
	PaddlePosition(physics.Side) float64
}

// ResolverParams are the tunables the resolver reads. Angles are in radians.
type ResolverParams struct {
	PaddleHeight     float64
	MaxBounceAngle   float64
	SpeedIncrement   float64
	MaxBallSpeed     float64
	DriftTolerance   float64
	StallSpeed       float64
	LaunchBuffer     float64
	StreakThreshold  int
	StreakMultiplier float64
}

// PaddleHit describes the outcome of one ball striking a paddle.
type PaddleHit struct {
	Side       physics.Side
	Ball       physics.BallID
	NormOffset float64
	Angle      float64
	Speed      float64
	Velocity   physics.Vec2
	Points     int
	Streak     int
}

// ResolverHooks receive resolver side effects. Nil hooks are skipped.
type ResolverHooks struct {
	PaddleHit func(PaddleHit)
	WallHit   func(physics.BallID)
}

// CollisionResolver turns engine contacts into bounce physics and points, and
// keeps every ball at its desired speed between contacts.
type CollisionResolver struct {
	engine  Engine
	params  ResolverParams
	rng     *rand.Rand
	hooks   ResolverHooks
	desired map[physics.BallID]float64
	streak  [2]int
	unsubs  []physics.Unsubscribe
}

func NewCollisionResolver(engine Engine, params ResolverParams, rng *rand.Rand, hooks ResolverHooks) *CollisionResolver {
	return &CollisionResolver{
		engine:  engine,
		params:  params,
		rng:     rng,
		hooks:   hooks,
		desired: make(map[physics.BallID]float64),
	}
}

// Attach subscribes to the engine's collision and pre-step streams.
func (r *CollisionResolver) Attach() {
	r.Detach()
	r.unsubs = append(r.unsubs,
		r.engine.OnCollisionStart(r.handleCollision),
		r.engine.OnBeforeStep(r.CorrectDrift),
	)
}

// Detach drops every engine subscription.
func (r *CollisionResolver) Detach() {
	for _, u := range r.unsubs {
		u()
	}
	r.unsubs = nil
}

// SetDesiredSpeed records the speed a ball should hold until its next hit.
func (r *CollisionResolver) SetDesiredSpeed(id physics.BallID, speed float64) {
	r.desired[id] = math.Min(math.Max(speed, 0), r.params.MaxBallSpeed)
}

func (r *CollisionResolver) DesiredSpeed(id physics.BallID) (float64, bool) {
	s, ok := r.desired[id]
	return s, ok
}

// Forget drops per-ball state for a removed ball.
func (r *CollisionResolver) Forget(id physics.BallID) {
	delete(r.desired, id)
}

// ResetStreak clears the consecutive-hit counter for a side that missed.
func (r *CollisionResolver) ResetStreak(side physics.Side) {
	r.streak[side] = 0
}

func (r *CollisionResolver) Streak(side physics.Side) int {
	return r.streak[side]
}

func (r *CollisionResolver) handleCollision(c physics.Collision) {
	switch c.Other.Kind {
	case physics.KindPaddle:
		r.resolvePaddleHit(c.Ball.Ball, c.Other.Side)
	case physics.KindWall:
		if r.hooks.WallHit != nil {
			r.hooks.WallHit(c.Ball.Ball)
		}
	}
}

func (r *CollisionResolver) resolvePaddleHit(id physics.BallID, side physics.Side) {
	pos, ok := r.engine.BallPosition(id)
	if !ok {
		return
	}
	current := r.currentSpeed(id)
	paddleCenter := r.engine.PaddlePosition(side) + r.params.PaddleHeight/2

	norm := NormalizedOffset(pos.Y, paddleCenter, r.params.PaddleHeight)
	angle := BounceAngle(norm, r.params.MaxBounceAngle)
	speed := math.Min(current+r.params.SpeedIncrement, r.params.MaxBallSpeed)
	vel := BounceVelocity(side, angle, speed)

	r.engine.SetBallVelocity(id, vel)
	r.desired[id] = speed

	r.streak[side]++
	points := HitPoints(norm)
	if r.params.StreakThreshold > 0 && r.streak[side] >= r.params.StreakThreshold && r.params.StreakMultiplier > 0 {
		points = int(math.Round(float64(points) * r.params.StreakMultiplier))
	}

	if r.hooks.PaddleHit != nil {
		r.hooks.PaddleHit(PaddleHit{
			Side:       side,
			Ball:       id,
			NormOffset: norm,
			Angle:      angle,
			Speed:      speed,
			Velocity:   vel,
			Points:     points,
			Streak:     r.streak[side],
		})
	}
}

// currentSpeed prefers the engine's reading and falls back to the desired
// speed when the engine reports nothing usable.
func (r *CollisionResolver) currentSpeed(id physics.BallID) float64 {
	if v, ok := r.engine.BallVelocity(id); ok && v.IsFinite() {
		if s := v.Magnitude(); s > 0 {
			return s
		}
	}
	return r.desired[id]
}

// CorrectDrift pulls every ball back to its desired speed and clamps it to the
// maximum. Stalled balls get a fresh random heading.
func (r *CollisionResolver) CorrectDrift() {
	for _, id := range r.engine.BallIDs() {
		v, ok := r.engine.BallVelocity(id)
		if !ok {
			continue
		}
		desired, known := r.desired[id]
		if !known {
			desired = math.Min(v.Magnitude(), r.params.MaxBallSpeed)
			r.desired[id] = desired
		}

		next := v
		actual := v.Magnitude()
		switch {
		case !v.IsFinite() || actual < r.params.StallSpeed:
			next = LaunchVelocity(r.rng, desired, r.params.LaunchBuffer)
		case math.Abs(actual-desired) > r.params.DriftTolerance:
			next = v.WithMagnitude(desired)
		}
		if next.Magnitude() > r.params.MaxBallSpeed {
			next = next.WithMagnitude(r.params.MaxBallSpeed)
		}
		if next != v {
			r.engine.SetBallVelocity(id, next)
		}
	}
}

// NormalizedOffset returns where on the paddle the ball struck, -1 at the top
// edge and 1 at the bottom edge.
func NormalizedOffset(ballY, paddleCenterY, paddleHeight float64) float64 {
	if paddleHeight <= 0 {
		return 0
	}
	o := (ballY - paddleCenterY) / (paddleHeight / 2)
	if math.IsNaN(o) {
		return 0
	}
	return math.Max(-1, math.Min(1, o))
}

func BounceAngle(normOffset, maxAngle float64) float64 {
	return normOffset * maxAngle
}

// BounceVelocity points the ball away from the paddle on side.
func BounceVelocity(side physics.Side, angle, speed float64) physics.Vec2 {
	dir := 1.0
	if side == physics.Right {
		dir = -1
	}
	return physics.NewVec2(dir*speed*math.Cos(angle), speed*math.Sin(angle))
}

// HitPoints scores a paddle hit; edge hits are worth more.
func HitPoints(normOffset float64) int {
	return int(math.Round(100 + 900*math.Abs(normOffset)))
}

// LaunchVelocity picks a random heading that stays at least buffer radians
// away from both axes, with independent random signs on x and y.
func LaunchVelocity(rng *rand.Rand, speed, buffer float64) physics.Vec2 {
	buffer = math.Max(0, math.Min(buffer, math.Pi/4))
	angle := buffer + rng.Float64()*(math.Pi/2-2*buffer)
	v := physics.FromAngle(angle, speed)
	if rng.Intn(2) == 0 {
		v.X = -v.X
	}
	if rng.Intn(2) == 0 {
		v.Y = -v.Y
	}
	return v
}

func degToRad(d float64) float64 {
	return d * math.Pi / 180
}
