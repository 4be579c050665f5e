package physics

import (
	"log"
	"math"
	"sort"

	"github.com/jakecoffman/cp"
)

const (
	collisionTypeBall cp.CollisionType = iota + 1
	collisionTypePaddle
	collisionTypeWall
)

// BallID identifies a ball body inside one world version.
type BallID int

// BodyKind classifies the bodies the world owns.
type BodyKind int

const (
	KindWall BodyKind = iota + 1
	KindPaddle
	KindBall
)

func (k BodyKind) String() string {
	switch k {
	case KindWall:
		return "wall"
	case KindPaddle:
		return "paddle"
	case KindBall:
		return "ball"
	}
	return "unknown"
}

// BodyRef is attached to every shape as user data so collision callbacks can
// tell what touched what.
type BodyRef struct {
	Kind BodyKind
	Ball BallID
	Side Side
}

// Collision is a contact that started during the last step. Ball is always the
// ball body; Other is the paddle, wall or second ball it touched.
type Collision struct {
	Ball  BodyRef
	Other BodyRef
}

// Unsubscribe removes a previously registered handler.
type Unsubscribe func()

type ballBody struct {
	body  *cp.Body
	shape *cp.Shape
}

// World owns the engine space: two static walls, two kinematic paddles and any
// number of dynamic balls. All methods must be called from the goroutine that
// drives the simulation.
type World struct {
	cfg     WorldConfig
	version uint64

	space        *cp.Space
	walls        []*cp.Shape
	paddles      [2]*cp.Body
	paddleShapes [2]*cp.Shape
	balls        map[BallID]*ballBody
	nextBall     BallID

	timeScale float64

	collisionHandlers map[int]func(Collision)
	beforeStep        map[int]func()
	nextHandler       int

	debug DebugRenderer
}

// NewWorld builds version 1 of a world.
func NewWorld(cfg WorldConfig) *World {
	w := &World{}
	w.build(cfg, 1)
	return w
}

// Rebuild tears the current world down and constructs a fresh one from cfg
// under the next version number. Handlers and the debug renderer do not
// survive a rebuild.
func (w *World) Rebuild(cfg WorldConfig) uint64 {
	next := w.version + 1
	w.Teardown()
	w.build(cfg, next)
	log.Printf("[PHYSICS] World rebuilt (version=%d, %gx%g)", next, cfg.Width, cfg.Height)
	return next
}

func (w *World) build(cfg WorldConfig, version uint64) {
	if cfg.StepDt <= 0 {
		cfg.StepDt = 1
	}
	w.cfg = cfg
	w.version = version
	w.timeScale = 1
	w.balls = make(map[BallID]*ballBody)
	w.nextBall = 0
	w.collisionHandlers = make(map[int]func(Collision))
	w.beforeStep = make(map[int]func())

	space := cp.NewSpace()
	space.Iterations = 10
	space.SetGravity(cfg.Gravity.toCP())
	space.SetDamping(1 - math.Max(0, math.Min(1, cfg.FrictionAir)))
	w.space = space

	w.addWalls()
	w.addPaddle(Left)
	w.addPaddle(Right)
	w.installHandlers()
}

func (w *World) addWalls() {
	cfg := w.cfg
	// Walls overhang the canvas so balls leaving through a corner still bounce
	// off them rather than slipping past the end.
	bbs := []cp.BB{
		{L: -cfg.Width, B: 0, R: 2 * cfg.Width, T: cfg.WallThickness},
		{L: -cfg.Width, B: cfg.Height - cfg.WallThickness, R: 2 * cfg.Width, T: cfg.Height},
	}
	for _, bb := range bbs {
		shape := cp.NewBox2(w.space.StaticBody, bb, 0)
		shape.SetElasticity(cfg.Restitution)
		shape.SetFriction(cfg.Friction)
		shape.SetCollisionType(collisionTypeWall)
		shape.UserData = BodyRef{Kind: KindWall}
		w.space.AddShape(shape)
		w.walls = append(w.walls, shape)
	}
}

func (w *World) addPaddle(side Side) {
	body := cp.NewKinematicBody()
	body.UserData = BodyRef{Kind: KindPaddle, Side: side}
	w.space.AddBody(body)

	shape := cp.NewBox(body, w.cfg.PaddleWidth, w.cfg.PaddleHeight, 0)
	shape.SetElasticity(w.cfg.Restitution)
	shape.SetFriction(w.cfg.Friction)
	shape.SetCollisionType(collisionTypePaddle)
	shape.UserData = BodyRef{Kind: KindPaddle, Side: side}
	w.space.AddShape(shape)

	w.paddles[side] = body
	w.paddleShapes[side] = shape
	w.SetPaddlePosition(side, w.cfg.ClampPaddleY((w.cfg.Height-w.cfg.PaddleHeight)/2))
}

func (w *World) installHandlers() {
	for _, other := range []cp.CollisionType{collisionTypePaddle, collisionTypeWall, collisionTypeBall} {
		h := w.space.NewCollisionHandler(collisionTypeBall, other)
		h.UserData = w
		h.BeginFunc = beginContact
	}
}

// beginContact defers dispatch until the step has finished so handlers can
// write velocities without fighting the solver.
func beginContact(arb *cp.Arbiter, space *cp.Space, userData interface{}) bool {
	w, ok := userData.(*World)
	if !ok || w == nil {
		return true
	}
	a, b := arb.Shapes()
	refA, okA := a.UserData.(BodyRef)
	refB, okB := b.UserData.(BodyRef)
	if !okA || !okB {
		return true
	}
	if refA.Kind != KindBall {
		refA, refB = refB, refA
	}
	if refA.Kind != KindBall {
		return true
	}
	c := &Collision{Ball: refA, Other: refB}
	space.AddPostStepCallback(func(_ *cp.Space, key, _ interface{}) {
		w.dispatchCollision(*key.(*Collision))
	}, c, nil)
	return true
}

func (w *World) dispatchCollision(c Collision) {
	for _, id := range sortedKeys(w.collisionHandlers) {
		if h, ok := w.collisionHandlers[id]; ok {
			h(c)
		}
	}
}

// OnCollisionStart registers h for every ball contact that begins.
func (w *World) OnCollisionStart(h func(Collision)) Unsubscribe {
	id := w.nextHandler
	w.nextHandler++
	w.collisionHandlers[id] = h
	handlers := w.collisionHandlers
	return func() { delete(handlers, id) }
}

// OnBeforeStep registers h to run before every engine step.
func (w *World) OnBeforeStep(h func()) Unsubscribe {
	id := w.nextHandler
	w.nextHandler++
	w.beforeStep[id] = h
	handlers := w.beforeStep
	return func() { delete(handlers, id) }
}

// Step advances the engine by one scaled time step. A zero time scale skips
// integration entirely.
func (w *World) Step() {
	if w.space == nil || w.timeScale == 0 {
		return
	}
	for _, id := range sortedKeys(w.beforeStep) {
		if h, ok := w.beforeStep[id]; ok {
			h()
		}
	}
	w.space.Step(w.cfg.StepDt * w.timeScale)
	if w.debug != nil {
		w.debug.Render(w.Frame())
	}
}

func (w *World) SetTimeScale(f float64) {
	w.timeScale = math.Max(0, f)
}

func (w *World) TimeScale() float64 {
	return w.timeScale
}

func (w *World) Version() uint64 {
	return w.version
}

func (w *World) Config() WorldConfig {
	return w.cfg
}

// CreateBall adds a dynamic ball centred at pos. Balls never spin: their
// moment of inertia is infinite.
func (w *World) CreateBall(pos, vel Vec2) BallID {
	if w.space == nil {
		return -1
	}
	id := w.nextBall
	w.nextBall++

	radius := w.cfg.BallSize / 2
	body := cp.NewBody(1, math.Inf(1))
	body.SetPosition(pos.toCP())
	body.SetVelocityVector(vel.toCP())
	body.UserData = BodyRef{Kind: KindBall, Ball: id}
	w.space.AddBody(body)

	shape := cp.NewCircle(body, radius, cp.Vector{})
	shape.SetElasticity(w.cfg.Restitution)
	shape.SetFriction(w.cfg.Friction)
	shape.SetCollisionType(collisionTypeBall)
	shape.UserData = BodyRef{Kind: KindBall, Ball: id}
	w.space.AddShape(shape)

	w.balls[id] = &ballBody{body: body, shape: shape}
	return id
}

// RemoveBall deletes a ball body. Unknown ids are ignored.
func (w *World) RemoveBall(id BallID) {
	b, ok := w.balls[id]
	if !ok || w.space == nil {
		return
	}
	w.space.RemoveShape(b.shape)
	w.space.RemoveBody(b.body)
	delete(w.balls, id)
}

// BallIDs lists live balls in creation order.
func (w *World) BallIDs() []BallID {
	ids := make([]BallID, 0, len(w.balls))
	for id := range w.balls {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (w *World) BallPosition(id BallID) (Vec2, bool) {
	b, ok := w.balls[id]
	if !ok {
		return Vec2{}, false
	}
	return fromCP(b.body.Position()), true
}

func (w *World) BallVelocity(id BallID) (Vec2, bool) {
	b, ok := w.balls[id]
	if !ok {
		return Vec2{}, false
	}
	return fromCP(b.body.Velocity()), true
}

func (w *World) SetBallVelocity(id BallID, v Vec2) {
	if b, ok := w.balls[id]; ok {
		b.body.SetVelocityVector(v.toCP())
	}
}

func (w *World) SetBallPosition(id BallID, p Vec2) {
	if b, ok := w.balls[id]; ok {
		b.body.SetPosition(p.toCP())
	}
}

// SetPaddlePosition places the top edge of a paddle at y. The paddle body is
// kinematic, so this is the only thing that moves it.
func (w *World) SetPaddlePosition(side Side, y float64) {
	body := w.paddles[side]
	if body == nil {
		return
	}
	x := w.cfg.PaddleX(side) + w.cfg.PaddleWidth/2
	body.SetPosition(cp.Vector{X: x, Y: y + w.cfg.PaddleHeight/2})
}

// PaddlePosition returns the top edge of a paddle.
func (w *World) PaddlePosition(side Side) float64 {
	body := w.paddles[side]
	if body == nil {
		return 0
	}
	return body.Position().Y - w.cfg.PaddleHeight/2
}

// AttachDebugRenderer receives a frame after every step until teardown.
func (w *World) AttachDebugRenderer(r DebugRenderer) {
	if w.debug != nil && w.debug != r {
		w.debug.Stop()
	}
	w.debug = r
}

// Teardown removes every body, stops the debug renderer, drops all handlers
// and releases the space.
func (w *World) Teardown() {
	if w.debug != nil {
		w.debug.Stop()
		w.debug = nil
	}
	for k := range w.collisionHandlers {
		delete(w.collisionHandlers, k)
	}
	for k := range w.beforeStep {
		delete(w.beforeStep, k)
	}
	if w.space == nil {
		return
	}
	for id := range w.balls {
		w.RemoveBall(id)
	}
	for side, body := range w.paddles {
		if body == nil {
			continue
		}
		w.space.RemoveShape(w.paddleShapes[side])
		w.space.RemoveBody(body)
		w.paddles[side] = nil
		w.paddleShapes[side] = nil
	}
	for _, s := range w.walls {
		w.space.RemoveShape(s)
	}
	w.walls = nil
	w.space = nil
}

func sortedKeys[V any](m map[int]V) []int {
	keys := make([]int, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}
