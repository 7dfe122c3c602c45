package proxy

import (
	"context"
	"sync"

	"git.home.luguber.info/inful/buildbridge/internal/module"
)

// Local keeps a module's build state in memory. It records every call and can
// be told to fail specific operations.
type Local struct {
	mu     sync.Mutex
	name   module.Name
	state  module.State
	result module.Result
	steps  []module.ExecutedStep
	calls  []Op
	fail   map[Op]error
}

// NewLocal returns a proxy for name in the NOT_STARTED state.
func NewLocal(name module.Name) *Local {
	return &Local{name: name, fail: make(map[Op]error)}
}

// FailOn makes op return err until cleared with a nil err.
func (l *Local) FailOn(op Op, err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err == nil {
		delete(l.fail, op)
		return
	}
	l.fail[op] = err
}

func (l *Local) record(op Op) error {
	l.calls = append(l.calls, op)
	return l.fail[op]
}

func (l *Local) Start(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record(OpStart); err != nil {
		return err
	}
	l.state = module.StateStarted
	return nil
}

func (l *Local) SetResult(_ context.Context, result module.Result) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record(OpSetResult); err != nil {
		return err
	}
	l.result = result
	return nil
}

func (l *Local) SetExecutedSteps(_ context.Context, steps []module.ExecutedStep) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record(OpSetExecutedSteps); err != nil {
		return err
	}
	l.steps = append([]module.ExecutedStep(nil), steps...)
	return nil
}

func (l *Local) End(context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.record(OpEnd); err != nil {
		return err
	}
	if l.result != "" {
		l.state = module.StateFor(l.result)
	}
	return nil
}

// Name returns the module the proxy belongs to.
func (l *Local) Name() module.Name { return l.name }

// State returns the module's current state.
func (l *Local) State() module.State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Result returns the last result set.
func (l *Local) Result() module.Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.result
}

// Steps returns the last executed-step list received.
func (l *Local) Steps() []module.ExecutedStep {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]module.ExecutedStep(nil), l.steps...)
}

// Calls returns the operations invoked so far, in order.
func (l *Local) Calls() []Op {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Op(nil), l.calls...)
}

// Count returns how many times op was invoked.
func (l *Local) Count(op Op) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, c := range l.calls {
		if c == op {
			n++
		}
	}
	return n
}
