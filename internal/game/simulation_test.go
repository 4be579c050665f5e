package game

import (
	"errors"
	"math"
	"math/rand"
	"reflect"
	"testing"
	"time"

	"github.com/swingpong/backend/internal/config"
	"github.com/swingpong/backend/internal/device"
	"github.com/swingpong/backend/internal/input"
	"github.com/swingpong/backend/internal/physics"
)

const frame = time.Second / 60

type stubInput struct {
	samples [2]input.ControlInput
}

func (s *stubInput) Sample(side physics.Side) input.ControlInput {
	return s.samples[side]
}

type rumbleCall struct {
	side physics.Side
	p    device.RumbleParams
}

type recordingHaptics struct {
	calls []rumbleCall
}

func (h *recordingHaptics) Rumble(side physics.Side, p device.RumbleParams) {
	h.calls = append(h.calls, rumbleCall{side, p})
}

// clock hands out evenly spaced frame times.
type clock struct {
	now time.Time
}

func (c *clock) next() time.Time {
	c.now = c.now.Add(frame)
	return c.now
}

func newTestSimulation(t *testing.T, tun config.Tunables) (*Simulation, *stubInput, *recordingHaptics) {
	t.Helper()
	in := &stubInput{}
	h := &recordingHaptics{}
	sim, err := NewSimulation(tun, in, h, 7)
	if err != nil {
		t.Fatalf("NewSimulation: %v", err)
	}
	t.Cleanup(sim.Quit)
	return sim, in, h
}

func onlyBall(t *testing.T, sim *Simulation) physics.BallID {
	t.Helper()
	ids := sim.ballIDs()
	if len(ids) != 1 {
		t.Fatalf("balls in play = %d, want 1", len(ids))
	}
	return ids[0]
}

func TestLifecycleTransitions(t *testing.T) {
	sim, _, _ := newTestSimulation(t, config.DefaultTunables())

	if err := sim.Pause(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("pause before start: err = %v", err)
	}
	if err := sim.Start(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := sim.Start(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("second start: err = %v", err)
	}
	if err := sim.Resume(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("resume while running: err = %v", err)
	}
	if err := sim.Pause(); err != nil || sim.Status() != StatusPaused {
		t.Errorf("pause: err=%v status=%s", err, sim.Status())
	}
	if err := sim.Resume(); err != nil || sim.Status() != StatusRunning {
		t.Errorf("resume: err=%v status=%s", err, sim.Status())
	}

	sim.Quit()
	if !sim.Closed() || sim.Status() != StatusOver {
		t.Errorf("after quit: closed=%v status=%s", sim.Closed(), sim.Status())
	}
	if err := sim.Start(); !errors.Is(err, ErrSessionOver) {
		t.Errorf("start after quit: err = %v", err)
	}
	if err := sim.Restart(); !errors.Is(err, ErrSessionOver) {
		t.Errorf("restart after quit: err = %v", err)
	}
	sim.Tick(time.Now())
}

func TestInvalidTunablesRejected(t *testing.T) {
	tun := config.DefaultTunables()
	tun.JoystickDeadZone = 1
	if _, err := NewSimulation(tun, nil, nil, 1); err == nil {
		t.Error("dead zone of 1 accepted")
	}
}

func TestMissScoresOnceAndResets(t *testing.T) {
	tun := config.DefaultTunables()
	sim, _, haptics := newTestSimulation(t, tun)
	if err := sim.Start(); err != nil {
		t.Fatal(err)
	}
	id := onlyBall(t, sim)
	sim.world.SetBallPosition(id, physics.NewVec2(-5, 300))
	sim.world.SetBallVelocity(id, physics.NewVec2(-1, 0))

	c := &clock{now: time.Unix(0, 0)}
	sim.Tick(c.next())

	st := sim.Snapshot()
	if st.Score.Player2 != 1 || st.Score.Player1 != 0 {
		t.Fatalf("score after miss = %+v, want player2=1", st.Score)
	}
	if !st.Balls[0].Resetting {
		t.Fatal("ball not marked resetting")
	}
	if len(haptics.calls) == 0 || haptics.calls[0].side != physics.Left {
		t.Fatalf("haptics = %+v, want a rumble on the left paddle", haptics.calls)
	}

	ticks := 0
	for sim.Snapshot().Balls[0].Resetting {
		sim.Tick(c.next())
		ticks++
		if ticks > 600 {
			t.Fatal("ball never reset")
		}
		if got := sim.Score(); got.Player2 != 1 || got.Player1 != 0 {
			t.Fatalf("score changed while resetting: %+v", got)
		}
	}
	wantTicks := int(time.Duration(tun.ResetDelayMs) * time.Millisecond / frame)
	if ticks < wantTicks-2 || ticks > wantTicks+2 {
		t.Errorf("reset after %d ticks, want about %d", ticks, wantTicks)
	}

	b := sim.Snapshot().Balls[0]
	if b.X != 400 || b.Y != 300 {
		t.Errorf("reset position = (%.1f, %.1f), want (400, 300)", b.X, b.Y)
	}
	if math.Abs(b.Speed()-math.Min(tun.BallSpeed, tun.MaxBallSpeed)) > 1e-9 {
		t.Errorf("reset speed = %.4f, want %.1f", b.Speed(), tun.BallSpeed)
	}

	var secondary bool
	for _, call := range haptics.calls[1:] {
		if call.side == physics.Left && call.p.High < tun.RumbleHigh {
			secondary = true
		}
	}
	if !secondary {
		t.Error("secondary weaker rumble never fired")
	}
}

func TestRightMissScoresPlayerOne(t *testing.T) {
	sim, _, haptics := newTestSimulation(t, config.DefaultTunables())
	sim.Start()
	id := onlyBall(t, sim)
	sim.world.SetBallPosition(id, physics.NewVec2(805, 300))
	sim.world.SetBallVelocity(id, physics.NewVec2(7, 0))

	sim.Tick(time.Unix(0, 0))
	if got := sim.Score(); got.Player1 != 1 || got.Player2 != 0 {
		t.Errorf("score = %+v, want player1=1", got)
	}
	if haptics.calls[0].side != physics.Right {
		t.Errorf("rumble went to %s, want right", haptics.calls[0].side)
	}
	evs := sim.DrainEvents()
	var miss bool
	for _, e := range evs {
		if e.Type == EventMiss && e.Side == "right" {
			miss = true
		}
	}
	if !miss {
		t.Errorf("events = %+v, want a right miss", evs)
	}
	if len(sim.DrainEvents()) != 0 {
		t.Error("events not cleared by drain")
	}
}

func TestPauseFreezesEverything(t *testing.T) {
	sim, in, _ := newTestSimulation(t, config.DefaultTunables())
	sim.Start()
	c := &clock{now: time.Unix(0, 0)}
	for i := 0; i < 10; i++ {
		sim.Tick(c.next())
	}

	if err := sim.Pause(); err != nil {
		t.Fatal(err)
	}
	if sim.world.TimeScale() != 0 {
		t.Errorf("time scale while paused = %v, want 0", sim.world.TimeScale())
	}
	before := sim.Snapshot()
	in.samples[physics.Left] = input.ControlInput{Joystick: input.Joystick{Vertical: 1}}
	for i := 0; i < 300; i++ {
		sim.Tick(c.next())
	}
	after := sim.Snapshot()
	if !reflect.DeepEqual(before.Balls, after.Balls) {
		t.Errorf("balls changed while paused:\n before %+v\n after  %+v", before.Balls, after.Balls)
	}
	if before.Score != after.Score || before.Paddles != after.Paddles {
		t.Error("score or paddles changed while paused")
	}

	if err := sim.Resume(); err != nil {
		t.Fatal(err)
	}
	if sim.world.TimeScale() != 1 {
		t.Errorf("time scale after resume = %v, want 1", sim.world.TimeScale())
	}
	sim.Tick(c.next())
	if reflect.DeepEqual(after.Balls, sim.Snapshot().Balls) {
		t.Error("ball did not move after resume")
	}
}

func TestPauseHoldsResetTimer(t *testing.T) {
	sim, _, _ := newTestSimulation(t, config.DefaultTunables())
	sim.Start()
	id := onlyBall(t, sim)
	sim.world.SetBallPosition(id, physics.NewVec2(-5, 300))
	sim.world.SetBallVelocity(id, physics.NewVec2(-7, 0))
	c := &clock{now: time.Unix(0, 0)}
	sim.Tick(c.next())
	sim.Pause()

	for i := 0; i < 600; i++ {
		sim.Tick(c.next())
	}
	if !sim.Snapshot().Balls[0].Resetting {
		t.Fatal("reset fired while paused")
	}

	sim.Resume()
	reset := false
	for i := 0; i < 120 && !reset; i++ {
		sim.Tick(c.next())
		reset = !sim.Snapshot().Balls[0].Resetting
	}
	if !reset {
		t.Error("reset did not fire after resume")
	}
}

func TestRestartInvalidatesPendingTimers(t *testing.T) {
	sim, _, _ := newTestSimulation(t, config.DefaultTunables())
	sim.Start()
	id := onlyBall(t, sim)
	sim.world.SetBallPosition(id, physics.NewVec2(-5, 300))
	sim.world.SetBallVelocity(id, physics.NewVec2(-7, 0))
	c := &clock{now: time.Unix(0, 0)}
	sim.Tick(c.next())
	if sim.PendingTimers() == 0 {
		t.Fatal("no reset timer scheduled")
	}

	if err := sim.Restart(); err != nil {
		t.Fatal(err)
	}
	st := sim.Snapshot()
	if st.Status != StatusNotStarted || st.WorldVersion != 2 {
		t.Errorf("after restart status=%s version=%d", st.Status, st.WorldVersion)
	}
	if st.Score != (Score{}) || len(st.Balls) != 0 {
		t.Errorf("state survived restart: %+v", st)
	}
	if sim.PendingTimers() != 0 || sim.Generation() != 1 {
		t.Errorf("pending=%d generation=%d", sim.PendingTimers(), sim.Generation())
	}

	sim.Start()
	for i := 0; i < 10; i++ {
		sim.Tick(c.next())
	}
	if got := sim.Score(); got != (Score{}) {
		t.Errorf("score after restart = %+v", got)
	}
}

func TestStaleTimerIsDropped(t *testing.T) {
	var q timerQueue
	ran := 0
	q.schedule(time.Second, 1, "reset", func() { ran++ })
	q.schedule(time.Second, 2, "reset", func() { ran += 10 })
	q.fire(2*time.Second, 2)
	if ran != 10 {
		t.Errorf("ran = %d, want only the current generation", ran)
	}
	if q.len() != 0 {
		t.Errorf("pending = %d, want 0", q.len())
	}
}

func TestTimersFireInDueOrder(t *testing.T) {
	var q timerQueue
	var order []string
	q.schedule(300*time.Millisecond, 0, "c", func() { order = append(order, "c") })
	q.schedule(100*time.Millisecond, 0, "a", func() { order = append(order, "a") })
	q.schedule(100*time.Millisecond, 0, "b", func() { order = append(order, "b") })

	q.fire(200*time.Millisecond, 0)
	if !reflect.DeepEqual(order, []string{"a", "b"}) {
		t.Errorf("order = %v", order)
	}
	q.fire(time.Second, 0)
	if len(order) != 3 || order[2] != "c" {
		t.Errorf("order = %v", order)
	}
}

func TestWinningScoreEndsGame(t *testing.T) {
	tun := config.DefaultTunables()
	tun.WinningScore = 1
	sim, _, _ := newTestSimulation(t, tun)
	sim.Start()
	id := onlyBall(t, sim)
	sim.world.SetBallPosition(id, physics.NewVec2(805, 300))
	sim.world.SetBallVelocity(id, physics.NewVec2(7, 0))

	c := &clock{now: time.Unix(0, 0)}
	sim.Tick(c.next())
	st := sim.Snapshot()
	if st.Status != StatusOver || !st.Over || !st.Paused || st.Winner != "player1" {
		t.Fatalf("state = %+v, want over with player1 winning", st)
	}
	if sim.world.TimeScale() != 0 {
		t.Error("engine still running after game over")
	}

	var over bool
	for _, e := range sim.DrainEvents() {
		over = over || e.Type == EventGameOver
	}
	if !over {
		t.Error("no game_over event")
	}

	tick := st.Tick
	sim.Tick(c.next())
	if sim.Snapshot().Tick != tick {
		t.Error("ticks still processed after game over")
	}
	if err := sim.Restart(); err != nil || sim.Status() != StatusNotStarted {
		t.Errorf("restart from over: err=%v status=%s", err, sim.Status())
	}
}

func TestJoystickDrivesPaddleWithinBounds(t *testing.T) {
	tun := config.DefaultTunables()
	sim, in, _ := newTestSimulation(t, tun)
	sim.Start()
	in.samples[physics.Left] = input.ControlInput{Joystick: input.Joystick{Vertical: 1}}

	c := &clock{now: time.Unix(0, 0)}
	start := sim.Snapshot().Paddles[physics.Left].Y
	sim.Tick(c.next())
	if got := sim.Snapshot().Paddles[physics.Left].Y; math.Abs(got-(start+tun.JoystickBaseSpeed)) > 1e-9 {
		t.Errorf("paddle y after one tick = %.2f, want %.2f", got, start+tun.JoystickBaseSpeed)
	}

	for i := 0; i < 200; i++ {
		sim.Tick(c.next())
	}
	maxY := tun.CanvasHeight - tun.PaddleHeight - tun.WallThickness
	if got := sim.Snapshot().Paddles[physics.Left].Y; got != maxY {
		t.Errorf("paddle y = %.2f, want clamped %.2f", got, maxY)
	}
	if got := sim.world.PaddlePosition(physics.Left); math.Abs(got-maxY) > 1e-9 {
		t.Errorf("engine paddle y = %.2f, want %.2f", got, maxY)
	}
}

func TestOrientationModeTracksPitch(t *testing.T) {
	tun := config.DefaultTunables()
	tun.RightControlMode = "orientation"
	sim, in, _ := newTestSimulation(t, tun)
	sim.Start()
	in.samples[physics.Right] = input.ControlInput{Motion: input.Motion{
		Orientation: input.Orientation{Beta: tun.OrientationNeutral + tun.MaxPitch},
	}}

	c := &clock{now: time.Unix(0, 0)}
	for i := 0; i < 120; i++ {
		sim.Tick(c.next())
	}
	p := sim.Snapshot().Paddles[physics.Right]
	if p.ControlMode != "orientation" {
		t.Errorf("control mode = %s", p.ControlMode)
	}
	maxY := tun.CanvasHeight - tun.PaddleHeight - tun.WallThickness
	if math.Abs(p.Y-maxY) > 0.5 {
		t.Errorf("paddle y = %.2f, want close to %.2f", p.Y, maxY)
	}
}

func TestInvariantsHoldUnderRandomPlay(t *testing.T) {
	tun := config.DefaultTunables()
	tun.WinningScore = 1000
	tun.MultiBall = true
	tun.MultiBallEvery = 2000
	sim, in, _ := newTestSimulation(t, tun)
	sim.Start()

	rng := rand.New(rand.NewSource(3))
	c := &clock{now: time.Unix(0, 0)}
	minY := tun.WallThickness
	maxY := tun.CanvasHeight - tun.PaddleHeight - tun.WallThickness
	var last Score

	for i := 0; i < 3000; i++ {
		for _, side := range sides {
			in.samples[side] = input.ControlInput{
				Joystick: input.Joystick{Vertical: rng.Float64()*2 - 1},
				Motion:   input.Motion{GyroDps: input.Vec3{X: rng.Float64()*600 - 300}},
			}
		}
		sim.Tick(c.next())

		st := sim.Snapshot()
		for _, b := range st.Balls {
			if s := b.Speed(); s < 0 || s > tun.MaxBallSpeed+1e-9 {
				t.Fatalf("tick %d: ball %d speed %.4f out of bounds", i, b.ID, s)
			}
		}
		for _, p := range st.Paddles {
			if p.Y < minY || p.Y > maxY {
				t.Fatalf("tick %d: %s paddle y %.2f out of bounds", i, p.Side, p.Y)
			}
		}
		if st.Score.Player1 < last.Player1 || st.Score.Player2 < last.Player2 {
			t.Fatalf("tick %d: score decreased %+v -> %+v", i, last, st.Score)
		}
		last = st.Score
	}
	if n := len(sim.Snapshot().Balls); n != tun.MultiBallLimit {
		t.Errorf("balls in play = %d, want %d", n, tun.MultiBallLimit)
	}
}

func TestPaddleHitReversesBallAndAwardsPoints(t *testing.T) {
	tun := config.DefaultTunables()
	sim, _, _ := newTestSimulation(t, tun)
	sim.Start()
	id := onlyBall(t, sim)

	cfg := sim.world.Config()
	paddleCenter := sim.world.PaddlePosition(physics.Right) + cfg.PaddleHeight/2
	sim.world.SetBallPosition(id, physics.NewVec2(cfg.PaddleX(physics.Right)-30, paddleCenter))
	sim.world.SetBallVelocity(id, physics.NewVec2(tun.BallSpeed, 0))

	c := &clock{now: time.Unix(0, 0)}
	var hit *Event
	for i := 0; i < 20 && hit == nil; i++ {
		sim.Tick(c.next())
		for _, e := range sim.DrainEvents() {
			if e.Type == EventPaddleHit {
				e := e
				hit = &e
			}
		}
	}
	if hit == nil {
		t.Fatal("ball never hit the right paddle")
	}
	if hit.Side != "right" || hit.Points != 100 {
		t.Errorf("hit = %+v, want right side worth 100", *hit)
	}
	sim.Tick(c.next())
	b := sim.Snapshot().Balls[0]
	if b.DX >= 0 {
		t.Errorf("ball dx = %.3f after right paddle hit, want negative", b.DX)
	}
	want := tun.BallSpeed + tun.SpeedIncrement
	if math.Abs(b.Speed()-want) > 1e-6 {
		t.Errorf("speed after hit = %.4f, want %.4f", b.Speed(), want)
	}
	if sim.Points().Player2 != 100 {
		t.Errorf("right points = %d, want 100", sim.Points().Player2)
	}
}

func TestFPSMeterFlagsSpikeOnce(t *testing.T) {
	m := newFPSMeter(0.5, 45, frame)
	now := time.Unix(0, 0)
	for i := 0; i < 10; i++ {
		now = now.Add(frame)
		if _, spike := m.observe(now); spike {
			t.Fatal("spike at a steady 60 fps")
		}
	}
	spikes := 0
	for i := 0; i < 10; i++ {
		now = now.Add(50 * time.Millisecond)
		if _, spike := m.observe(now); spike {
			spikes++
		}
	}
	if spikes != 1 {
		t.Errorf("spikes flagged = %d, want 1", spikes)
	}
	if m.fps >= 45 {
		t.Errorf("smoothed fps = %.1f, want below threshold", m.fps)
	}
}

func TestMultiBallSpawnsUpToLimit(t *testing.T) {
	tun := config.DefaultTunables()
	tun.MultiBall = true
	tun.MultiBallEvery = 100
	tun.MultiBallLimit = 3
	sim, _, _ := newTestSimulation(t, tun)
	sim.Start()
	c := &clock{now: time.Unix(0, 0)}

	for i := 0; i < 3; i++ {
		sim.Tick(c.next())
	}
	if n := len(sim.Snapshot().Balls); n != 1 {
		t.Fatalf("balls before first spawn = %d, want 1", n)
	}
	for i := 0; i < 30; i++ {
		sim.Tick(c.next())
	}
	if n := len(sim.Snapshot().Balls); n != 3 {
		t.Fatalf("balls after spawning = %d, want 3", n)
	}

	sim.Pause()
	for i := 0; i < 30; i++ {
		sim.Tick(c.next())
	}
	sim.Resume()
	for i := 0; i < 30; i++ {
		sim.Tick(c.next())
	}
	if n := len(sim.Snapshot().Balls); n != 3 {
		t.Errorf("balls past limit = %d, want 3", n)
	}
}

func TestNonFiniteBallIsRecentred(t *testing.T) {
	sim, _, _ := newTestSimulation(t, config.DefaultTunables())
	sim.Start()
	c := &clock{now: time.Unix(0, 0)}
	sim.Tick(c.next())

	id := onlyBall(t, sim)
	sim.World().SetBallPosition(id, physics.NewVec2(math.NaN(), math.NaN()))
	sim.Tick(c.next())

	st := sim.Snapshot()
	b := st.Balls[0]
	if math.IsNaN(b.X) || math.IsNaN(b.Y) || math.IsInf(b.X, 0) || math.IsInf(b.Y, 0) {
		t.Fatalf("ball still non-finite: (%v, %v)", b.X, b.Y)
	}
	if b.X != 400 || b.Y != 300 {
		t.Errorf("ball at (%.1f, %.1f), want centre (400, 300)", b.X, b.Y)
	}
	if b.Resetting {
		t.Error("recentred ball still marked resetting")
	}
	if st.Score != (Score{}) {
		t.Errorf("score = %+v, want no points for a non-finite ball", st.Score)
	}
}

func TestNonFiniteResetCancelsPendingReset(t *testing.T) {
	tun := config.DefaultTunables()
	sim, _, _ := newTestSimulation(t, tun)
	sim.Start()
	id := onlyBall(t, sim)
	sim.world.SetBallPosition(id, physics.NewVec2(-5, 300))
	sim.world.SetBallVelocity(id, physics.NewVec2(-1, 0))

	c := &clock{now: time.Unix(0, 0)}
	sim.Tick(c.next())
	if !sim.Snapshot().Balls[0].Resetting {
		t.Fatal("ball not marked resetting after miss")
	}

	sim.World().SetBallPosition(id, physics.NewVec2(math.NaN(), math.NaN()))
	sim.Tick(c.next())
	if sim.Snapshot().Balls[0].Resetting {
		t.Fatal("ball still resetting after non-finite recovery")
	}
	for _, pending := range sim.timers.pending {
		if pending.name == resetTimerName(id) {
			t.Fatalf("reset timer for ball %d still queued", id)
		}
	}

	ticks := int(time.Duration(tun.ResetDelayMs)*time.Millisecond/frame) + 2
	for i := 0; i < ticks; i++ {
		sim.Tick(c.next())
	}
	if b := sim.Snapshot().Balls[0]; b.X == 400 && b.Y == 300 {
		t.Error("ball was teleported back to centre by a stale reset")
	}
}
