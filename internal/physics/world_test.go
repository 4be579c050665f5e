package physics

import (
	"math"
	"testing"

	"github.com/swingpong/backend/internal/config"
)

func testConfig() WorldConfig {
	return WorldConfigFromTunables(config.DefaultTunables())
}

type recordingRenderer struct {
	frames  int
	stopped int
}

func (r *recordingRenderer) Render(Frame) { r.frames++ }
func (r *recordingRenderer) Stop()        { r.stopped++ }

func TestNewWorldCentersPaddles(t *testing.T) {
	cfg := testConfig()
	w := NewWorld(cfg)
	defer w.Teardown()

	if w.Version() != 1 {
		t.Errorf("version = %d, want 1", w.Version())
	}
	want := (cfg.Height - cfg.PaddleHeight) / 2
	for _, side := range []Side{Left, Right} {
		if got := w.PaddlePosition(side); math.Abs(got-want) > 1e-9 {
			t.Errorf("%s paddle y = %.2f, want %.2f", side, got, want)
		}
	}
}

func TestBallMovesWithVelocity(t *testing.T) {
	w := NewWorld(testConfig())
	defer w.Teardown()

	id := w.CreateBall(NewVec2(400, 300), NewVec2(5, 0))
	w.Step()

	p, ok := w.BallPosition(id)
	if !ok {
		t.Fatal("ball missing after step")
	}
	if math.Abs(p.X-405) > 1e-6 || math.Abs(p.Y-300) > 1e-6 {
		t.Errorf("position after one step = %+v, want (405, 300)", p)
	}
}

func TestZeroTimeScaleFreezesBodies(t *testing.T) {
	w := NewWorld(testConfig())
	defer w.Teardown()

	id := w.CreateBall(NewVec2(400, 300), NewVec2(5, 3))
	calls := 0
	w.OnBeforeStep(func() { calls++ })

	w.SetTimeScale(0)
	for i := 0; i < 20; i++ {
		w.Step()
	}
	p, _ := w.BallPosition(id)
	if p != NewVec2(400, 300) {
		t.Errorf("ball moved while frozen: %+v", p)
	}
	if calls != 0 {
		t.Errorf("before-step handler ran %d times while frozen", calls)
	}

	w.SetTimeScale(1)
	w.Step()
	p, _ = w.BallPosition(id)
	if p.X <= 400 {
		t.Errorf("ball did not move after resume: %+v", p)
	}
	if calls != 1 {
		t.Errorf("before-step calls = %d, want 1", calls)
	}
}

func TestWallCollisionIsReported(t *testing.T) {
	cfg := testConfig()
	w := NewWorld(cfg)
	defer w.Teardown()

	var hits []Collision
	w.OnCollisionStart(func(c Collision) { hits = append(hits, c) })

	id := w.CreateBall(NewVec2(400, cfg.WallThickness+20), NewVec2(0, -5))
	for i := 0; i < 30; i++ {
		w.Step()
	}

	if len(hits) == 0 {
		t.Fatal("no collision reported for a ball driven into the top wall")
	}
	if hits[0].Ball.Kind != KindBall || hits[0].Ball.Ball != id {
		t.Errorf("collision ball ref = %+v", hits[0].Ball)
	}
	if hits[0].Other.Kind != KindWall {
		t.Errorf("collision other = %s, want wall", hits[0].Other.Kind)
	}
	v, _ := w.BallVelocity(id)
	if v.Y <= 0 {
		t.Errorf("ball did not bounce off the wall: v=%+v", v)
	}
}

func TestPaddleCollisionCarriesSide(t *testing.T) {
	cfg := testConfig()
	w := NewWorld(cfg)
	defer w.Teardown()

	var got []Collision
	w.OnCollisionStart(func(c Collision) { got = append(got, c) })

	paddleY := w.PaddlePosition(Right)
	start := NewVec2(cfg.PaddleX(Right)-40, paddleY+cfg.PaddleHeight/2)
	w.CreateBall(start, NewVec2(6, 0))
	for i := 0; i < 20 && len(got) == 0; i++ {
		w.Step()
	}
	if len(got) == 0 {
		t.Fatal("no paddle collision reported")
	}
	if got[0].Other.Kind != KindPaddle || got[0].Other.Side != Right {
		t.Errorf("collision other = %+v, want right paddle", got[0].Other)
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	w := NewWorld(testConfig())
	defer w.Teardown()

	calls := 0
	unsub := w.OnBeforeStep(func() { calls++ })
	w.Step()
	unsub()
	w.Step()
	if calls != 1 {
		t.Errorf("before-step calls = %d, want 1", calls)
	}
}

func TestRemoveBall(t *testing.T) {
	w := NewWorld(testConfig())
	defer w.Teardown()

	a := w.CreateBall(NewVec2(300, 300), Vec2{})
	b := w.CreateBall(NewVec2(500, 300), Vec2{})
	w.RemoveBall(a)
	w.RemoveBall(a)

	ids := w.BallIDs()
	if len(ids) != 1 || ids[0] != b {
		t.Errorf("ball ids = %v, want [%d]", ids, b)
	}
	if _, ok := w.BallPosition(a); ok {
		t.Error("removed ball still reports a position")
	}
}

func TestRebuildBumpsVersionAndDropsState(t *testing.T) {
	cfg := testConfig()
	w := NewWorld(cfg)
	r := &recordingRenderer{}
	w.AttachDebugRenderer(r)
	w.CreateBall(cfg.Center(), NewVec2(3, 3))
	calls := 0
	w.OnBeforeStep(func() { calls++ })
	w.Step()

	cfg.Width = 1000
	if v := w.Rebuild(cfg); v != 2 {
		t.Errorf("rebuild version = %d, want 2", v)
	}
	if r.stopped != 1 {
		t.Errorf("debug renderer stopped %d times, want 1", r.stopped)
	}
	if len(w.BallIDs()) != 0 {
		t.Error("balls survived rebuild")
	}
	w.Step()
	if calls != 1 {
		t.Errorf("handler survived rebuild: calls = %d", calls)
	}
	if w.Config().Width != 1000 {
		t.Errorf("rebuilt width = %.0f", w.Config().Width)
	}
	if r.frames != 1 {
		t.Errorf("renderer frames = %d, want 1", r.frames)
	}
	w.Teardown()
}

func TestTeardownIsIdempotent(t *testing.T) {
	w := NewWorld(testConfig())
	w.CreateBall(NewVec2(400, 300), Vec2{})
	w.Teardown()
	w.Teardown()
	w.Step()
	if id := w.CreateBall(NewVec2(1, 1), Vec2{}); id != -1 {
		t.Errorf("CreateBall after teardown = %d, want -1", id)
	}
}

func TestFrameListsEveryBody(t *testing.T) {
	w := NewWorld(testConfig())
	defer w.Teardown()
	w.CreateBall(NewVec2(400, 300), Vec2{})

	f := w.Frame()
	counts := map[BodyKind]int{}
	for _, b := range f.Bodies {
		counts[b.Kind]++
	}
	if counts[KindWall] != 2 || counts[KindPaddle] != 2 || counts[KindBall] != 1 {
		t.Errorf("frame body counts = %v", counts)
	}
}

func TestClampPaddleY(t *testing.T) {
	cfg := testConfig()
	tests := []struct {
		in, want float64
	}{
		{-50, cfg.WallThickness},
		{1e6, cfg.Height - cfg.PaddleHeight - cfg.WallThickness},
		{200, 200},
		{math.NaN(), cfg.WallThickness},
	}
	for _, tt := range tests {
		if got := cfg.ClampPaddleY(tt.in); got != tt.want {
			t.Errorf("ClampPaddleY(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
