package game

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"
	"time"

	"github.com/swingpong/backend/internal/config"
	"github.com/swingpong/backend/internal/device"
	"github.com/swingpong/backend/internal/input"
	"github.com/swingpong/backend/internal/physics"
)

// InputSource is read once per tick for each side. It must not block.
type InputSource interface {
	Sample(side physics.Side) input.ControlInput
}

// Haptics delivers rumble pulses to the controller on a paddle side.
type Haptics interface {
	Rumble(side physics.Side, p device.RumbleParams)
}

var sides = [2]physics.Side{physics.Left, physics.Right}

// Simulation owns one game: the physics world, the collision resolver, the
// per-side input state and the score state machine. It is not safe for
// concurrent use; a Runner drives it from a single goroutine.
type Simulation struct {
	tun      config.Tunables
	cfg      physics.WorldConfig
	world    *physics.World
	resolver *CollisionResolver
	input    InputSource
	haptics  Haptics
	rng      *rand.Rand

	status     Status
	closed     bool
	generation uint64
	clock      time.Duration
	lastSpawn  time.Duration
	tick       uint64

	balls   map[physics.BallID]*Ball
	paddleY [2]float64
	modes   [2]input.ControlMode
	params  [2]input.Params
	norm    [2]input.State
	score   Score
	points  Points
	winner  string

	timers timerQueue
	fps    fpsMeter
	events []Event
}

// NewSimulation validates the tunables and builds the first world.
func NewSimulation(t config.Tunables, src InputSource, h Haptics, seed int64) (*Simulation, error) {
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("invalid tunables: %w", err)
	}
	s := &Simulation{
		input:   src,
		haptics: h,
		rng:     rand.New(rand.NewSource(seed)),
	}
	s.configure(t)
	s.world = physics.NewWorld(s.cfg)
	s.attachResolver()
	s.resetState()
	return s, nil
}

func (s *Simulation) configure(t config.Tunables) {
	s.tun = t
	s.cfg = physics.WorldConfigFromTunables(t)
	s.modes = [2]input.ControlMode{
		input.ParseControlMode(t.LeftControlMode),
		input.ParseControlMode(t.RightControlMode),
	}
	for _, side := range sides {
		s.params[side] = paddleParams(t, s.cfg, side)
	}
}

func (s *Simulation) attachResolver() {
	s.resolver = NewCollisionResolver(s.world, resolverParams(s.tun), s.rng, ResolverHooks{
		PaddleHit: s.onPaddleHit,
		WallHit:   s.onWallHit,
	})
	s.resolver.Attach()
}

func (s *Simulation) resetState() {
	s.status = StatusNotStarted
	s.clock = 0
	s.lastSpawn = 0
	s.tick = 0
	s.balls = make(map[physics.BallID]*Ball)
	s.score = Score{}
	s.points = Points{}
	s.winner = ""
	s.events = nil
	s.timers.clear()
	s.fps = newFPSMeter(s.tun.FPSSmoothing, s.tun.LagSpikeFPS, frameInterval(s.tun))
	for _, side := range sides {
		s.norm[side] = input.NewState()
		s.paddleY[side] = s.cfg.ClampPaddleY((s.cfg.Height - s.cfg.PaddleHeight) / 2)
		s.world.SetPaddlePosition(side, s.paddleY[side])
	}
	s.world.SetTimeScale(1)
}

// Start launches the first ball.
func (s *Simulation) Start() error {
	if s.closed {
		return ErrSessionOver
	}
	if s.status != StatusNotStarted {
		return fmt.Errorf("%w: start from %s", ErrInvalidTransition, s.status)
	}
	s.status = StatusRunning
	s.world.SetTimeScale(1)
	s.fps.rebase()
	s.spawnBall()
	log.Printf("[SIM] started (version=%d)", s.world.Version())
	return nil
}

// Pause freezes the engine. Ticks keep arriving but nothing evolves.
func (s *Simulation) Pause() error {
	if s.closed {
		return ErrSessionOver
	}
	if s.status != StatusRunning {
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, s.status)
	}
	s.status = StatusPaused
	s.world.SetTimeScale(0)
	return nil
}

func (s *Simulation) Resume() error {
	if s.closed {
		return ErrSessionOver
	}
	if s.status != StatusPaused {
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, s.status)
	}
	s.status = StatusRunning
	s.world.SetTimeScale(1)
	s.fps.rebase()
	return nil
}

// Restart rebuilds the world from the current tunables.
func (s *Simulation) Restart() error {
	return s.RestartWith(s.tun)
}

// RestartWith rebuilds the world under a new version from t. Every pending
// timer from the previous generation is invalidated.
func (s *Simulation) RestartWith(t config.Tunables) error {
	if s.closed {
		return ErrSessionOver
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid tunables: %w", err)
	}
	s.generation++
	s.resolver.Detach()
	s.configure(t)
	s.world.Rebuild(s.cfg)
	s.attachResolver()
	s.resetState()
	log.Printf("[SIM] restarted (version=%d generation=%d)", s.world.Version(), s.generation)
	return nil
}

// Quit stops the simulation for good and releases the world.
func (s *Simulation) Quit() {
	if s.closed {
		return
	}
	s.closed = true
	s.generation++
	s.timers.clear()
	s.resolver.Detach()
	s.world.Teardown()
	s.status = StatusOver
}

// SetControlMode switches how a side's samples drive its paddle.
func (s *Simulation) SetControlMode(side physics.Side, mode input.ControlMode) {
	if s.modes[side] == mode {
		return
	}
	s.modes[side] = mode
	s.norm[side].Reset()
}

// Tick runs one frame at wall-clock time now.
func (s *Simulation) Tick(now time.Time) {
	if s.closed || s.status == StatusNotStarted || s.status == StatusOver {
		return
	}

	dt, spike := s.fps.observe(now)
	if spike {
		log.Printf("[SIM] lag spike: %.1f fps (threshold %.1f)", s.fps.fps, s.fps.threshold)
		s.emit(Event{Type: EventLagSpike, FPS: s.fps.fps, Score: s.score})
	}

	if s.status == StatusPaused {
		s.world.Step()
		return
	}

	s.tick++
	s.clock += dt
	s.applyInput()
	s.world.Step()
	s.readBack()
	s.checkScoring()
	s.timers.fire(s.clock, s.generation)
	s.maybeSpawn()
	s.checkWinner()
}

func (s *Simulation) applyInput() {
	for _, side := range sides {
		var sample input.ControlInput
		if s.input != nil {
			sample = s.input.Sample(side)
		}
		out := input.Normalize(s.modes[side], sample, s.params[side], &s.norm[side])

		y := s.paddleY[side]
		if out.Mode == input.ModeOrientation {
			y = out.Target
		} else {
			y += out.Velocity
		}
		s.paddleY[side] = s.cfg.ClampPaddleY(y)
		s.world.SetPaddlePosition(side, s.paddleY[side])
	}
}

func (s *Simulation) readBack() {
	for _, id := range s.ballIDs() {
		b := s.balls[id]
		p, okP := s.world.BallPosition(id)
		v, okV := s.world.BallVelocity(id)
		if !okP || !okV {
			continue
		}
		if !p.IsFinite() || !v.IsFinite() {
			log.Printf("[SIM] ball %d went non-finite (pos=%v vel=%v); resetting", id, p, v)
			s.resetBall(id)
			continue
		}
		if v.Magnitude() > s.tun.MaxBallSpeed {
			v = v.WithMagnitude(s.tun.MaxBallSpeed)
			s.world.SetBallVelocity(id, v)
		}
		b.X, b.Y = p.X, p.Y
		b.DX, b.DY = v.X, v.Y
	}
}

func (s *Simulation) checkScoring() {
	for _, id := range s.ballIDs() {
		b := s.balls[id]
		if b.Resetting {
			continue
		}
		switch {
		case b.X < 0:
			s.score.Player2++
			s.miss(b, physics.Left)
		case b.X > s.cfg.Width:
			s.score.Player1++
			s.miss(b, physics.Right)
		}
	}
}

// miss handles a ball leaving past the paddle on side.
func (s *Simulation) miss(b *Ball, side physics.Side) {
	b.Resetting = true
	s.resolver.ResetStreak(side)
	s.emit(Event{Type: EventMiss, Side: side.String(), Ball: b.ID, Score: s.score})
	s.rumble(side)

	id := b.ID
	delay := time.Duration(s.tun.ResetDelayMs) * time.Millisecond
	s.timers.schedule(s.clock+delay, s.generation, resetTimerName(id), func() { s.resetBall(id) })
}

func (s *Simulation) rumble(side physics.Side) {
	if s.haptics == nil {
		return
	}
	p := device.RumbleParams{
		High:       s.tun.RumbleHigh,
		Low:        s.tun.RumbleLow,
		Strength:   s.tun.RumbleStrength,
		DurationMs: s.tun.RumbleDurationMs,
	}
	s.haptics.Rumble(side, p)
	if s.tun.RumbleSecondDelayMs > 0 && s.tun.RumbleSecondScale > 0 {
		delay := time.Duration(s.tun.RumbleSecondDelayMs) * time.Millisecond
		second := p.Scaled(s.tun.RumbleSecondScale)
		s.timers.schedule(s.clock+delay, s.generation, "rumble", func() { s.haptics.Rumble(side, second) })
	}
}

func resetTimerName(id physics.BallID) string {
	return fmt.Sprintf("reset ball %d", id)
}

// resetBall recentres a ball and relaunches it. Any reset still pending for
// the ball is cancelled.
func (s *Simulation) resetBall(id physics.BallID) {
	b, ok := s.balls[id]
	if !ok {
		return
	}
	s.timers.cancel(resetTimerName(id))
	speed := s.launchSpeed()
	center := s.cfg.Center()
	vel := LaunchVelocity(s.rng, speed, degToRad(s.tun.LaunchBuffer))
	s.world.SetBallPosition(id, center)
	s.world.SetBallVelocity(id, vel)
	s.resolver.SetDesiredSpeed(id, speed)

	b.X, b.Y = center.X, center.Y
	b.DX, b.DY = vel.X, vel.Y
	b.Resetting = false
}

func (s *Simulation) spawnBall() physics.BallID {
	speed := s.launchSpeed()
	center := s.cfg.Center()
	vel := LaunchVelocity(s.rng, speed, degToRad(s.tun.LaunchBuffer))
	id := s.world.CreateBall(center, vel)
	s.resolver.SetDesiredSpeed(id, speed)
	s.balls[id] = &Ball{
		ID:     id,
		X:      center.X,
		Y:      center.Y,
		Width:  s.cfg.BallSize,
		Height: s.cfg.BallSize,
		DX:     vel.X,
		DY:     vel.Y,
	}
	return id
}

func (s *Simulation) maybeSpawn() {
	if !s.tun.MultiBall || s.tun.MultiBallEvery <= 0 {
		return
	}
	if len(s.balls) >= s.tun.MultiBallLimit {
		s.lastSpawn = s.clock
		return
	}
	if s.clock-s.lastSpawn >= time.Duration(s.tun.MultiBallEvery)*time.Millisecond {
		id := s.spawnBall()
		s.lastSpawn = s.clock
		log.Printf("[SIM] multi-ball: spawned ball %d (%d in play)", id, len(s.balls))
	}
}

func (s *Simulation) checkWinner() {
	switch {
	case s.score.Player1 >= s.tun.WinningScore:
		s.winner = "player1"
	case s.score.Player2 >= s.tun.WinningScore:
		s.winner = "player2"
	default:
		return
	}
	s.status = StatusOver
	s.world.SetTimeScale(0)
	s.timers.clear()
	s.emit(Event{Type: EventGameOver, Side: s.winner, Score: s.score})
	log.Printf("[SIM] game over: %s wins %d-%d", s.winner, s.score.Player1, s.score.Player2)
}

func (s *Simulation) onPaddleHit(h PaddleHit) {
	if h.Side == physics.Left {
		s.points.Player1 += h.Points
	} else {
		s.points.Player2 += h.Points
	}
	if b, ok := s.balls[h.Ball]; ok {
		b.DX, b.DY = h.Velocity.X, h.Velocity.Y
	}
	s.emit(Event{Type: EventPaddleHit, Side: h.Side.String(), Ball: h.Ball, Points: h.Points, Speed: h.Speed, Score: s.score})
}

func (s *Simulation) onWallHit(id physics.BallID) {
	s.emit(Event{Type: EventWallHit, Ball: id, Score: s.score})
}

func (s *Simulation) emit(e Event) {
	s.events = append(s.events, e)
}

// DrainEvents returns and clears the events raised since the last call.
func (s *Simulation) DrainEvents() []Event {
	evs := s.events
	s.events = nil
	return evs
}

func (s *Simulation) launchSpeed() float64 {
	return math.Min(s.tun.BallSpeed, s.tun.MaxBallSpeed)
}

func (s *Simulation) ballIDs() []physics.BallID {
	ids := make([]physics.BallID, 0, len(s.balls))
	for id := range s.balls {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Snapshot copies the observable state.
func (s *Simulation) Snapshot() SimulationState {
	st := SimulationState{
		Status:       s.status,
		Started:      s.status != StatusNotStarted,
		Paused:       s.status == StatusPaused || s.status == StatusOver,
		Over:         s.status == StatusOver,
		Score:        s.score,
		Points:       s.points,
		Winner:       s.winner,
		WorldVersion: s.world.Version(),
		Tick:         s.tick,
		FPS:          s.fps.fps,
		Width:        s.cfg.Width,
		Height:       s.cfg.Height,
		Balls:        make([]Ball, 0, len(s.balls)),
	}
	for _, id := range s.ballIDs() {
		st.Balls = append(st.Balls, *s.balls[id])
	}
	for _, side := range sides {
		st.Paddles[side] = Paddle{
			Side:        side.String(),
			X:           s.cfg.PaddleX(side),
			Y:           s.paddleY[side],
			Width:       s.cfg.PaddleWidth,
			Height:      s.cfg.PaddleHeight,
			ControlMode: s.modes[side].String(),
		}
	}
	return st
}

func (s *Simulation) Status() Status { return s.status }
func (s *Simulation) Closed() bool { return s.closed }
func (s *Simulation) Generation() uint64 { return s.generation }
func (s *Simulation) Tunables() config.Tunables { return s.tun }
func (s *Simulation) Score() Score { return s.score }
func (s *Simulation) Points() Points { return s.points }

// World exposes the physics world for debug renderers.
func (s *Simulation) World() *physics.World { return s.world }

// PendingTimers reports how many deferred callbacks are queued.
func (s *Simulation) PendingTimers() int { return s.timers.len() }

func frameInterval(t config.Tunables) time.Duration {
	return time.Duration(t.FrameIntervalMs * float64(time.Millisecond))
}

func paddleParams(t config.Tunables, cfg physics.WorldConfig, side physics.Side) input.Params {
	offset := t.LeftCalibrationOffset
	if side == physics.Right {
		offset = t.RightCalibrationOffset
	}
	return input.Params{
		BaseSpeed:           t.JoystickBaseSpeed,
		DeadZone:            t.JoystickDeadZone,
		CalibrationOffset:   offset,
		AccelStep:           t.AccelStep,
		AccelMax:            t.AccelMax,
		SwingThreshold:      t.SwingThresholdDps,
		Neutral:             t.OrientationNeutral,
		Alpha:               t.OrientationAlpha,
		ScaleUp:             t.OrientationScaleUp,
		ScaleDown:           t.OrientationScaleDn,
		OrientationDeadZone: t.OrientationDeadZone,
		MinPitch:            t.MinPitch,
		MaxPitch:            t.MaxPitch,
		Boost:               t.SwingBoost,
		MinY:                cfg.MinPaddleY(),
		MaxY:                cfg.MaxPaddleY(),
	}
}

func resolverParams(t config.Tunables) ResolverParams {
	return ResolverParams{
		PaddleHeight:     t.PaddleHeight,
		MaxBounceAngle:   degToRad(t.MaxBounceAngle),
		SpeedIncrement:   t.SpeedIncrement,
		MaxBallSpeed:     t.MaxBallSpeed,
		DriftTolerance:   t.DriftTolerance,
		StallSpeed:       t.StallSpeed,
		LaunchBuffer:     degToRad(t.LaunchBuffer),
		StreakThreshold:  t.StreakThreshold,
		StreakMultiplier: t.StreakMultiply,
	}
}
