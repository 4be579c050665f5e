// Command pongview runs a local match in the terminal. W/S drive the left
// paddle, the arrow keys drive the right one.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/swingpong/backend/internal/config"
	"github.com/swingpong/backend/internal/device"
	"github.com/swingpong/backend/internal/game"
	"github.com/swingpong/backend/internal/input"
	"github.com/swingpong/backend/internal/physics"
)

// keyHold is how long a key press keeps a paddle moving. Terminals report
// presses and repeats, never releases.
const keyHold = 120 * time.Millisecond

// keyboard turns key presses into joystick samples for both sides.
type keyboard struct {
	dir  [2]float64
	last [2]time.Time
	now  func() time.Time
}

func newKeyboard() *keyboard {
	return &keyboard{now: time.Now}
}

func (k *keyboard) press(side physics.Side, dir float64) {
	k.dir[side] = dir
	k.last[side] = k.now()
}

func (k *keyboard) Sample(side physics.Side) input.ControlInput {
	if k.now().Sub(k.last[side]) > keyHold {
		return input.ControlInput{}
	}
	return input.ControlInput{Joystick: input.Joystick{Vertical: k.dir[side]}}
}

// bell stands in for controller rumble.
type bell struct {
	screen tcell.Screen
}

func (b bell) Rumble(side physics.Side, p device.RumbleParams) {
	b.screen.Beep()
}

func main() {
	winning := flag.Int("winning", 0, "points needed to win (0 keeps the configured value)")
	multiBall := flag.Bool("multiball", false, "spawn extra balls over time")
	seed := flag.Int64("seed", 0, "random seed (0 uses the clock)")
	flag.Parse()

	tun := config.LoadTunables()
	if *winning > 0 {
		tun.WinningScore = *winning
	}
	if *multiBall {
		tun.MultiBall = true
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		log.Fatalf("screen: %v", err)
	}
	if err := screen.Init(); err != nil {
		log.Fatalf("screen init: %v", err)
	}
	defer screen.Fini()
	// Keep simulation logs off the terminal we draw into.
	log.SetOutput(io.Discard)

	keys := newKeyboard()
	sim, err := game.NewSimulation(tun, keys, bell{screen: screen}, *seed)
	if err != nil {
		screen.Fini()
		fmt.Fprintf(os.Stderr, "invalid tunables: %v\n", err)
		os.Exit(1)
	}
	sim.World().AttachDebugRenderer(newTermRenderer(screen))

	events := make(chan tcell.Event, 64)
	go func() {
		for {
			ev := screen.PollEvent()
			if ev == nil {
				return
			}
			events <- ev
		}
	}()

	frame := time.Duration(tun.FrameIntervalMs * float64(time.Millisecond))
	ticker := time.NewTicker(frame)
	defer ticker.Stop()

	sim.World().Render()
	for {
		select {
		case ev := <-events:
			if !handleEvent(ev, sim, keys, screen) {
				sim.Quit()
				return
			}
		case now := <-ticker.C:
			sim.Tick(now)
			sim.DrainEvents()
			drawStatus(screen, statusLine(sim.Snapshot()))
			screen.Show()
		}
	}
}

// handleEvent applies one terminal event. It returns false to quit.
func handleEvent(ev tcell.Event, sim *game.Simulation, keys *keyboard, screen tcell.Screen) bool {
	switch ev := ev.(type) {
	case *tcell.EventResize:
		screen.Sync()
		sim.World().Render()
	case *tcell.EventKey:
		switch ev.Key() {
		case tcell.KeyEscape, tcell.KeyCtrlC:
			return false
		case tcell.KeyUp:
			keys.press(physics.Right, -1)
		case tcell.KeyDown:
			keys.press(physics.Right, 1)
		case tcell.KeyRune:
			switch ev.Rune() {
			case 'q':
				return false
			case 'w':
				keys.press(physics.Left, -1)
			case 's':
				keys.press(physics.Left, 1)
			case ' ':
				togglePlay(sim)
			case 'r':
				if err := sim.Restart(); err == nil {
					sim.World().AttachDebugRenderer(newTermRenderer(screen))
					sim.World().Render()
				}
			}
		}
	}
	return true
}

func togglePlay(sim *game.Simulation) {
	switch sim.Status() {
	case game.StatusNotStarted:
		sim.Start()
	case game.StatusRunning:
		sim.Pause()
	case game.StatusPaused:
		sim.Resume()
	}
}

func statusLine(st game.SimulationState) string {
	line := fmt.Sprintf(" %d : %d   pts %d / %d   balls %d   %.0f fps   v%d ",
		st.Score.Player1, st.Score.Player2, st.Points.Player1, st.Points.Player2,
		len(st.Balls), st.FPS, st.WorldVersion)
	switch st.Status {
	case game.StatusNotStarted:
		line += "  [space] start"
	case game.StatusPaused:
		line += "  PAUSED [space] resume"
	case game.StatusOver:
		line += fmt.Sprintf("  %s wins! [r] restart", st.Winner)
	}
	return line + "  [q] quit"
}
