package game

import (
	"context"
	"log"
	"time"
)

// Observer receives the output of a running simulation. Calls are made from
// the runner goroutine and must not block for long.
type Observer interface {
	OnSnapshot(token string, st SimulationState)
	OnEvents(token string, events []Event)
}

type command struct {
	fn    func(*Simulation) error
	reply chan error
}

// Runner drives one Simulation on its own goroutine. The frame timer is only
// re-armed after a tick completes, so ticks never overlap.
type Runner struct {
	token    string
	sim      *Simulation
	observer Observer
	interval time.Duration
	cmds     chan command
	done     chan struct{}
}

func NewRunner(token string, sim *Simulation, observer Observer) *Runner {
	interval := frameInterval(sim.Tunables())
	if interval <= 0 {
		interval = time.Second / 60
	}
	return &Runner{
		token:    token,
		sim:      sim,
		observer: observer,
		interval: interval,
		cmds:     make(chan command),
		done:     make(chan struct{}),
	}
}

// Run blocks until the simulation is quit or ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	defer close(r.done)

	timer := time.NewTimer(r.interval)
	defer timer.Stop()
	armed := true

	for {
		select {
		case <-ctx.Done():
			r.sim.Quit()
			r.publish()
			log.Printf("[SIM] runner %s stopping: %v", r.token, ctx.Err())
			return

		case cmd := <-r.cmds:
			cmd.reply <- cmd.fn(r.sim)
			r.publish()
			if r.sim.Closed() {
				log.Printf("[SIM] runner %s quit", r.token)
				return
			}
			if !armed && r.sim.Status() != StatusOver {
				timer.Reset(r.interval)
				armed = true
			}

		case now := <-timer.C:
			armed = false
			r.sim.Tick(now)
			r.publish()
			if r.sim.Status() != StatusOver {
				timer.Reset(r.interval)
				armed = true
			}
		}
	}
}

func (r *Runner) publish() {
	if r.observer == nil {
		r.sim.DrainEvents()
		return
	}
	r.observer.OnSnapshot(r.token, r.sim.Snapshot())
	if evs := r.sim.DrainEvents(); len(evs) > 0 {
		r.observer.OnEvents(r.token, evs)
	}
}

// Do runs fn on the runner goroutine and returns its error.
func (r *Runner) Do(ctx context.Context, fn func(*Simulation) error) error {
	cmd := command{fn: fn, reply: make(chan error, 1)}
	select {
	case r.cmds <- cmd:
	case <-r.done:
		return ErrSessionOver
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-cmd.reply:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *Runner) Start(ctx context.Context) error {
	return r.Do(ctx, (*Simulation).Start)
}

func (r *Runner) Pause(ctx context.Context) error {
	return r.Do(ctx, (*Simulation).Pause)
}

func (r *Runner) Resume(ctx context.Context) error {
	return r.Do(ctx, (*Simulation).Resume)
}

func (r *Runner) Restart(ctx context.Context) error {
	return r.Do(ctx, (*Simulation).Restart)
}

// Quit stops the simulation and waits for the runner goroutine to exit.
func (r *Runner) Quit(ctx context.Context) error {
	err := r.Do(ctx, func(s *Simulation) error {
		s.Quit()
		return nil
	})
	if err == ErrSessionOver {
		err = nil
	}
	if err != nil {
		return err
	}
	select {
	case <-r.done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Snapshot reads the current state on the runner goroutine.
func (r *Runner) Snapshot(ctx context.Context) (SimulationState, error) {
	var st SimulationState
	err := r.Do(ctx, func(s *Simulation) error {
		st = s.Snapshot()
		return nil
	})
	return st, err
}

// Done is closed when the runner goroutine exits.
func (r *Runner) Done() <-chan struct{} {
	return r.done
}
