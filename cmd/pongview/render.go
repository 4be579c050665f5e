package main

import (
	"math"

	"github.com/gdamore/tcell/v2"
	"github.com/swingpong/backend/internal/physics"
)

var (
	wallStyle   = tcell.StyleDefault.Foreground(tcell.ColorGray)
	paddleStyle = [2]tcell.Style{
		physics.Left:  tcell.StyleDefault.Foreground(tcell.ColorBlue),
		physics.Right: tcell.StyleDefault.Foreground(tcell.ColorRed),
	}
	ballStyle = tcell.StyleDefault.Foreground(tcell.ColorYellow)
	hudStyle  = tcell.StyleDefault.Foreground(tcell.ColorWhite).Reverse(true)
)

// termRenderer draws physics frames into a terminal screen. The bottom row
// is left for the status line.
type termRenderer struct {
	screen  tcell.Screen
	stopped bool
}

func newTermRenderer(screen tcell.Screen) *termRenderer {
	return &termRenderer{screen: screen}
}

func (r *termRenderer) Render(f physics.Frame) {
	if r.stopped || f.Width <= 0 || f.Height <= 0 {
		return
	}
	cols, rows := r.screen.Size()
	rows--
	if cols <= 0 || rows <= 0 {
		return
	}
	sx := float64(cols) / f.Width
	sy := float64(rows) / f.Height

	r.screen.Clear()
	for _, b := range f.Bodies {
		var ch rune
		var style tcell.Style
		switch b.Kind {
		case physics.KindWall:
			ch, style = '▒', wallStyle
		case physics.KindPaddle:
			ch, style = '█', paddleStyle[b.Side]
		default:
			ch, style = '●', ballStyle
		}
		x0, x1 := cellSpan(b.X, b.Width, sx, cols)
		y0, y1 := cellSpan(b.Y, b.Height, sy, rows)
		for y := y0; y < y1; y++ {
			for x := x0; x < x1; x++ {
				r.screen.SetContent(x, y, ch, nil, style)
			}
		}
	}
}

// Stop detaches the renderer; the screen itself stays up for the next world.
func (r *termRenderer) Stop() {
	r.stopped = true
}

// cellSpan maps a world interval onto terminal cells, clipped to [0, limit)
// and at least one cell wide when visible.
func cellSpan(pos, size, scale float64, limit int) (int, int) {
	start := int(math.Floor(pos * scale))
	end := int(math.Ceil((pos + size) * scale))
	if end <= start {
		end = start + 1
	}
	if start < 0 {
		start = 0
	}
	if end > limit {
		end = limit
	}
	if start >= end {
		return 0, 0
	}
	return start, end
}

// drawStatus writes text on the bottom row.
func drawStatus(screen tcell.Screen, text string) {
	cols, rows := screen.Size()
	y := rows - 1
	x := 0
	for _, ch := range text {
		if x >= cols {
			break
		}
		screen.SetContent(x, y, ch, nil, hudStyle)
		x++
	}
	for ; x < cols; x++ {
		screen.SetContent(x, y, ' ', nil, hudStyle)
	}
}
