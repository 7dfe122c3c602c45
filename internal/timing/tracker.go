// Package timing measures the wall-clock duration of build steps per module.
package timing

import (
	"sync"
	"time"

	"git.home.luguber.info/inful/buildbridge/internal/module"
)

// Tracker records step start times and the executed steps of every module.
//
// Each module has a single pending-start slot: a new start replaces the
// previous one and a completion reads it without clearing it. Steps of one
// module that overlap in time therefore share the latest start.
type Tracker struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[module.Name]*entry
}

type entry struct {
	start   time.Time
	started bool
	steps   []module.ExecutedStep
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces the wall clock, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker returns an empty tracker.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{now: time.Now, entries: make(map[module.Name]*entry)}
	for _, o := range opts {
		o(t)
	}
	return t
}

// lookup returns the entry for name, creating it on first use. Callers hold mu.
func (t *Tracker) lookup(name module.Name) *entry {
	e, ok := t.entries[name]
	if !ok {
		e = &entry{}
		t.entries[name] = e
	}
	return e
}

// RecordStart stores the current time as the start of the module's next step.
func (t *Tracker) RecordStart(name module.Name) {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.lookup(name)
	e.start = now
	e.started = true
}

// RecordCompletion appends an executed step for the module and returns it.
// Elapsed time is zero when no start was recorded.
func (t *Tracker) RecordCompletion(name module.Name, step module.StepInfo, outcome module.StepOutcome) module.ExecutedStep {
	now := t.now()
	t.mu.Lock()
	defer t.mu.Unlock()
	e := t.lookup(name)
	var elapsed time.Duration
	if e.started {
		elapsed = now.Sub(e.start)
	}
	rec := module.NewExecutedStep(step, elapsed, outcome)
	e.steps = append(e.steps, rec)
	return rec
}

// Steps returns a copy of the module's executed steps in completion order.
func (t *Tracker) Steps(name module.Name) []module.ExecutedStep {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[name]
	if !ok {
		return nil
	}
	out := make([]module.ExecutedStep, len(e.steps))
	copy(out, e.steps)
	return out
}

// Modules returns every module the tracker has seen.
func (t *Tracker) Modules() []module.Name {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]module.Name, 0, len(t.entries))
	for n := range t.entries {
		out = append(out, n)
	}
	return out
}
