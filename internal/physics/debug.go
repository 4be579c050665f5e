package physics

// BodyView is the axis-aligned box of one body as drawn by a debug renderer.
type BodyView struct {
	Kind   BodyKind
	Ball   BallID
	Side   Side
	X      float64 // left edge
	Y      float64 // top edge
	Width  float64
	Height float64
}

// Frame is a snapshot of every body in the world after a step.
type Frame struct {
	Version uint64
	Width   float64
	Height  float64
	Bodies  []BodyView
}

// DebugRenderer draws frames produced by a world. Stop is called exactly once
// when the world is torn down or the renderer is replaced.
type DebugRenderer interface {
	Render(Frame)
	Stop()
}

// Frame captures the current body layout.
func (w *World) Frame() Frame {
	cfg := w.cfg
	f := Frame{Version: w.version, Width: cfg.Width, Height: cfg.Height}
	if w.space == nil {
		return f
	}
	f.Bodies = append(f.Bodies,
		BodyView{Kind: KindWall, X: 0, Y: 0, Width: cfg.Width, Height: cfg.WallThickness},
		BodyView{Kind: KindWall, X: 0, Y: cfg.Height - cfg.WallThickness, Width: cfg.Width, Height: cfg.WallThickness},
	)
	for _, side := range []Side{Left, Right} {
		f.Bodies = append(f.Bodies, BodyView{
			Kind:   KindPaddle,
			Side:   side,
			X:      cfg.PaddleX(side),
			Y:      w.PaddlePosition(side),
			Width:  cfg.PaddleWidth,
			Height: cfg.PaddleHeight,
		})
	}
	r := cfg.BallSize / 2
	for _, id := range w.BallIDs() {
		p, _ := w.BallPosition(id)
		f.Bodies = append(f.Bodies, BodyView{
			Kind:   KindBall,
			Ball:   id,
			X:      p.X - r,
			Y:      p.Y - r,
			Width:  cfg.BallSize,
			Height: cfg.BallSize,
		})
	}
	return f
}

// Render redraws the current frame on the attached renderer, if any. It is
// used when nothing steps, such as while paused.
func (w *World) Render() {
	if w.debug != nil {
		w.debug.Render(w.Frame())
	}
}
