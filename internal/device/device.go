package device

import (
	"errors"
	"log"
	"sync"
	"time"

	"github.com/swingpong/backend/internal/input"
	"github.com/swingpong/backend/internal/physics"
)

// Kind tags which physical controller a connection represents. Left and Right
// controllers are hard-wired to their paddle; a Generic controller takes
// whichever side is free when it binds.
type Kind string

const (
	KindLeft    Kind = "left"
	KindRight   Kind = "right"
	KindGeneric Kind = "generic"
)

// ParseKind maps a client-supplied name to a Kind. Unknown names are Generic.
func ParseKind(s string) Kind {
	switch Kind(s) {
	case KindLeft, KindRight:
		return Kind(s)
	}
	return KindGeneric
}

// Side returns the paddle a Left or Right controller is wired to.
func (k Kind) Side() (physics.Side, bool) {
	switch k {
	case KindLeft:
		return physics.Left, true
	case KindRight:
		return physics.Right, true
	}
	return 0, false
}

// RumbleParams describes one haptic pulse.
type RumbleParams struct {
	High       float64 `json:"high"`
	Low        float64 `json:"low"`
	Strength   float64 `json:"strength"`
	DurationMs int     `json:"durationMs"`
}

// Scaled returns the pulse with both motor intensities multiplied by f.
func (p RumbleParams) Scaled(f float64) RumbleParams {
	p.High *= f
	p.Low *= f
	return p
}

// Controller is the uniform capability surface of every physical controller.
type Controller interface {
	Kind() Kind
	Rumble(RumbleParams) error
	SetLED(r, g, b uint8) error
	ReadSample() input.ControlInput
}

var (
	ErrSideTaken  = errors.New("paddle side already has a controller")
	ErrNoFreeSide = errors.New("no free paddle side")
)

// Registry binds controllers to paddle sides. It is the input source and the
// haptic dispatcher for one session.
type Registry struct {
	mu    sync.RWMutex
	bound [2]Controller
}

func NewRegistry() *Registry {
	return &Registry{}
}

// Bind attaches c to its paddle and returns the side it took.
func (r *Registry) Bind(c Controller) (physics.Side, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if side, ok := c.Kind().Side(); ok {
		if r.bound[side] != nil && r.bound[side] != c {
			return side, ErrSideTaken
		}
		r.bound[side] = c
		return side, nil
	}
	for _, side := range []physics.Side{physics.Left, physics.Right} {
		if r.bound[side] == nil {
			r.bound[side] = c
			return side, nil
		}
	}
	return 0, ErrNoFreeSide
}

// BindSide attaches c to an explicit side regardless of its kind.
func (r *Registry) BindSide(side physics.Side, c Controller) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bound[side] != nil && r.bound[side] != c {
		return ErrSideTaken
	}
	r.bound[side] = c
	return nil
}

// Unbind detaches c if it is still bound.
func (r *Registry) Unbind(c Controller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range r.bound {
		if r.bound[i] == c {
			r.bound[i] = nil
		}
	}
}

func (r *Registry) Controller(side physics.Side) Controller {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bound[side]
}

// Sample returns the latest reading for side, or a zero sample when nothing
// is bound. It never blocks on the device.
func (r *Registry) Sample(side physics.Side) input.ControlInput {
	c := r.Controller(side)
	if c == nil {
		return input.ControlInput{}
	}
	return c.ReadSample().Sanitize()
}

// Rumble fires a haptic pulse at the controller bound to side. Failures are
// logged and otherwise ignored.
func (r *Registry) Rumble(side physics.Side, p RumbleParams) {
	c := r.Controller(side)
	if c == nil {
		return
	}
	go func() {
		if err := c.Rumble(p); err != nil {
			log.Printf("[DEVICE] rumble failed on %s controller: %v", side, err)
		}
	}()
}

// SetLED colours the controller bound to side.
func (r *Registry) SetLED(side physics.Side, red, green, blue uint8) {
	c := r.Controller(side)
	if c == nil {
		return
	}
	if err := c.SetLED(red, green, blue); err != nil {
		log.Printf("[DEVICE] led failed on %s controller: %v", side, err)
	}
}

// Command is an output instruction for a remote controller.
type Command struct {
	Type   string        `json:"type"`
	Rumble *RumbleParams `json:"rumble,omitempty"`
	LED    *[3]uint8     `json:"led,omitempty"`
}

// Buffer is a controller whose samples arrive over a transport. The transport
// goroutine calls Push; the simulation calls ReadSample. Rumble and LED
// commands are queued on Commands for the transport to deliver.
type Buffer struct {
	kind     Kind
	mu       sync.RWMutex
	latest   input.ControlInput
	lastSeen time.Time
	commands chan Command
}

func NewBuffer(kind Kind) *Buffer {
	return &Buffer{kind: kind, commands: make(chan Command, 16)}
}

func (b *Buffer) Kind() Kind {
	return b.kind
}

// Push stores the newest sample, replacing any unread one.
func (b *Buffer) Push(in input.ControlInput) {
	b.mu.Lock()
	b.latest = in.Sanitize()
	b.lastSeen = time.Now()
	b.mu.Unlock()
}

func (b *Buffer) ReadSample() input.ControlInput {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest
}

// LastSeen reports when the last sample arrived.
func (b *Buffer) LastSeen() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.lastSeen
}

// Commands is drained by the transport writer.
func (b *Buffer) Commands() <-chan Command {
	return b.commands
}

// ErrCommandQueueFull is returned when the transport is not draining commands.
var ErrCommandQueueFull = errors.New("controller command queue full")

func (b *Buffer) Rumble(p RumbleParams) error {
	return b.enqueue(Command{Type: "rumble", Rumble: &p})
}

func (b *Buffer) SetLED(r, g, bl uint8) error {
	return b.enqueue(Command{Type: "led", LED: &[3]uint8{r, g, bl}})
}

func (b *Buffer) enqueue(cmd Command) error {
	select {
	case b.commands <- cmd:
		return nil
	default:
		return ErrCommandQueueFull
	}
}
