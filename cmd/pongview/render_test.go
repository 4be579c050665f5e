package main

import (
	"testing"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/swingpong/backend/internal/physics"
)

func TestCellSpan(t *testing.T) {
	tests := []struct {
		pos, size, scale float64
		limit            int
		start, end       int
	}{
		{pos: 0, size: 10, scale: 1, limit: 80, start: 0, end: 10},
		{pos: 395, size: 10, scale: 0.1, limit: 80, start: 39, end: 41},
		{pos: 400, size: 0.1, scale: 0.1, limit: 80, start: 40, end: 41},
		{pos: -800, size: 2400, scale: 0.1, limit: 80, start: 0, end: 80},
		{pos: 900, size: 10, scale: 0.1, limit: 80, start: 0, end: 0},
	}
	for _, tt := range tests {
		s, e := cellSpan(tt.pos, tt.size, tt.scale, tt.limit)
		if s != tt.start || e != tt.end {
			t.Errorf("cellSpan(%v, %v, %v) = %d..%d, want %d..%d", tt.pos, tt.size, tt.scale, s, e, tt.start, tt.end)
		}
	}
}

func TestRendererDrawsBall(t *testing.T) {
	screen := tcell.NewSimulationScreen("")
	if err := screen.Init(); err != nil {
		t.Fatal(err)
	}
	defer screen.Fini()
	screen.SetSize(80, 31)

	r := newTermRenderer(screen)
	r.Render(physics.Frame{
		Width:  800,
		Height: 600,
		Bodies: []physics.BodyView{{Kind: physics.KindBall, X: 395, Y: 295, Width: 10, Height: 10}},
	})
	if ch, _, _, _ := screen.GetContent(39, 14); ch != '●' {
		t.Errorf("cell at centre = %q, want ball", ch)
	}

	r.Stop()
	screen.Clear()
	r.Render(physics.Frame{
		Width:  800,
		Height: 600,
		Bodies: []physics.BodyView{{Kind: physics.KindBall, X: 395, Y: 295, Width: 10, Height: 10}},
	})
	if ch, _, _, _ := screen.GetContent(39, 14); ch == '●' {
		t.Error("stopped renderer still draws")
	}
}

func TestKeyboardHoldsThenReleases(t *testing.T) {
	now := time.Unix(0, 0)
	k := newKeyboard()
	k.now = func() time.Time { return now }

	k.press(physics.Left, -1)
	if v := k.Sample(physics.Left).Joystick.Vertical; v != -1 {
		t.Errorf("held vertical = %v", v)
	}
	if v := k.Sample(physics.Right).Joystick.Vertical; v != 0 {
		t.Errorf("idle side vertical = %v", v)
	}
	now = now.Add(keyHold + time.Millisecond)
	if v := k.Sample(physics.Left).Joystick.Vertical; v != 0 {
		t.Errorf("released vertical = %v", v)
	}
}
