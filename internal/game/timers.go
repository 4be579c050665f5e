package game

import (
	"log"
	"sort"
	"time"
)

// timer is a delayed callback on the simulation clock. gen is the session
// generation captured when it was scheduled.
type timer struct {
	due  time.Duration
	seq  uint64
	gen  uint64
	name string
	fn   func()
}

// timerQueue holds deferred work for a simulation. It only advances while the
// simulation is running, so paused sessions hold their timers.
type timerQueue struct {
	pending []timer
	seq     uint64
}

func (q *timerQueue) schedule(due time.Duration, gen uint64, name string, fn func()) {
	q.seq++
	q.pending = append(q.pending, timer{due: due, seq: q.seq, gen: gen, name: name, fn: fn})
	sort.Slice(q.pending, func(i, j int) bool {
		if q.pending[i].due == q.pending[j].due {
			return q.pending[i].seq < q.pending[j].seq
		}
		return q.pending[i].due < q.pending[j].due
	})
}

// fire runs every timer due at or before now. Timers from an older
// generation are dropped without running.
func (q *timerQueue) fire(now time.Duration, gen uint64) {
	for len(q.pending) > 0 && q.pending[0].due <= now {
		t := q.pending[0]
		q.pending = q.pending[1:]
		if t.gen != gen {
			log.Printf("[SIM] dropping stale %s timer (gen=%d current=%d)", t.name, t.gen, gen)
			continue
		}
		t.fn()
	}
}

// cancel drops every pending timer with the given name.
func (q *timerQueue) cancel(name string) {
	kept := q.pending[:0]
	for _, t := range q.pending {
		if t.name != name {
			kept = append(kept, t)
		}
	}
	q.pending = kept
}

func (q *timerQueue) clear() {
	q.pending = nil
}

func (q *timerQueue) len() int {
	return len(q.pending)
}
