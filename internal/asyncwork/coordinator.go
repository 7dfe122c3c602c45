// Package asyncwork tracks deferred work started during a build and lets the
// host wait for it before the build result becomes final.
package asyncwork

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/buildbridge/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbridge/internal/logfields"
	"git.home.luguber.info/inful/buildbridge/internal/metrics"
	"git.home.luguber.info/inful/buildbridge/internal/module"
)

// Token identifies one registered unit of pending work.
type Token string

// ErrNotBegun is returned when the coordinator is used before Begin.
var ErrNotBegun = errors.InternalError("asynchronous work coordinator used before Begin").Build()

// Options configures a Coordinator.
type Options struct {
	// Heartbeat is the interval of the "still waiting" log while draining.
	Heartbeat time.Duration
	Recorder  metrics.Recorder
}

type work struct {
	name   string
	cancel context.CancelFunc
}

type failure struct {
	name string
	err  error
}

// Coordinator tracks pending asynchronous work for one build at a time.
type Coordinator struct {
	opts Options

	mu       sync.Mutex
	begun    bool
	pending  map[Token]work
	failures []failure
	changed  chan struct{}
}

// New returns a coordinator. Call Begin before registering work.
func New(opts Options) *Coordinator {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = 30 * time.Second
	}
	opts.Recorder = metrics.OrNoop(opts.Recorder)
	return &Coordinator{opts: opts, pending: make(map[Token]work), changed: make(chan struct{})}
}

// Begin resets the coordinator for a new build.
func (c *Coordinator) Begin() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, w := range c.pending {
		if w.cancel != nil {
			w.cancel()
		}
	}
	c.begun = true
	c.pending = make(map[Token]work)
	c.failures = nil
	c.notifyLocked()
}

// Register records pending work and returns its token.
func (c *Coordinator) Register(name string) Token {
	return c.register(name, nil)
}

func (c *Coordinator) register(name string, cancel context.CancelFunc) Token {
	tok := Token(uuid.NewString())
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.begun {
		slog.Warn("Asynchronous work registered before Begin", slog.String("work", name))
		c.begun = true
	}
	c.pending[tok] = work{name: name, cancel: cancel}
	slog.Debug("Registered asynchronous work", slog.String("work", name), logfields.Token(string(tok)))
	return tok
}

// Resolve marks the work done. A non-nil err records a failure. Unknown
// tokens are ignored.
func (c *Coordinator) Resolve(tok Token, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	w, ok := c.pending[tok]
	if !ok {
		slog.Warn("Resolve for unknown asynchronous work", logfields.Token(string(tok)))
		return
	}
	delete(c.pending, tok)
	if w.cancel != nil {
		w.cancel()
	}
	if err != nil {
		c.failures = append(c.failures, failure{name: w.name, err: err})
	}
	c.opts.Recorder.IncAsyncOutcome(metrics.OutcomeOf(err))
	c.notifyLocked()
}

// Go registers fn and runs it on its own goroutine. The context passed to fn
// is cancelled when the drain is abandoned.
func (c *Coordinator) Go(ctx context.Context, name string, fn func(context.Context) error) {
	workCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	tok := c.register(name, cancel)
	go func() {
		c.Resolve(tok, fn(workCtx))
	}()
}

// Pending returns the names of outstanding work, sorted.
func (c *Coordinator) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pendingNamesLocked()
}

func (c *Coordinator) pendingNamesLocked() []string {
	names := make([]string, 0, len(c.pending))
	for _, w := range c.pending {
		names = append(names, w.name)
	}
	sort.Strings(names)
	return names
}

func (c *Coordinator) notifyLocked() {
	close(c.changed)
	c.changed = make(chan struct{})
}

// AwaitDrain blocks until all registered work has resolved. It returns nil
// when everything succeeded, FAILURE when any work failed, and ABORTED when
// ctx is done or timeout (if positive) expires first; outstanding work
// started with Go is cancelled in that case.
func (c *Coordinator) AwaitDrain(ctx context.Context, timeout time.Duration) (*module.Result, error) {
	c.mu.Lock()
	if !c.begun {
		c.mu.Unlock()
		return nil, ErrNotBegun
	}
	c.mu.Unlock()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	var hb *heartbeat
	defer func() { hb.stop() }()
	announced := false

	for {
		c.mu.Lock()
		n := len(c.pending)
		changed := c.changed
		c.mu.Unlock()

		if n == 0 {
			return c.outcome(), nil
		}
		if !announced {
			announced = true
			slog.Info("Waiting for asynchronous work", logfields.Pending(n))
			var err error
			hb, err = startHeartbeat(c.opts.Heartbeat, c.logPending)
			if err != nil {
				slog.Warn("Drain heartbeat unavailable", logfields.Error(err))
			}
		}

		select {
		case <-changed:
		case <-ctx.Done():
			return c.abort("context cancelled", ctx.Err()), nil
		case <-deadline:
			return c.abort("timeout", context.DeadlineExceeded), nil
		}
	}
}

func (c *Coordinator) logPending() {
	names := c.Pending()
	if len(names) == 0 {
		return
	}
	slog.Info("Still waiting for asynchronous work",
		logfields.Pending(len(names)),
		slog.String("work", strings.Join(names, ", ")))
}

func (c *Coordinator) outcome() *module.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.failures) == 0 {
		return nil
	}
	for _, f := range c.failures {
		slog.Error("Asynchronous work failed", slog.String("work", f.name), logfields.Error(f.err), logfields.Cause(f.err))
	}
	r := module.ResultFailure
	return &r
}

func (c *Coordinator) abort(reason string, cause error) *module.Result {
	c.mu.Lock()
	names := c.pendingNamesLocked()
	for _, w := range c.pending {
		if w.cancel != nil {
			w.cancel()
		}
		c.opts.Recorder.IncAsyncOutcome(metrics.OutcomeCanceled)
	}
	c.mu.Unlock()

	slog.Error("Abandoned asynchronous work",
		slog.String("reason", reason),
		logfields.Error(cause),
		slog.String("work", strings.Join(names, ", ")))
	r := module.ResultAborted
	return &r
}
