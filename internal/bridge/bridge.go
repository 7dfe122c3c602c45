package bridge

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/buildbridge/internal/execevent"
	"git.home.luguber.info/inful/buildbridge/internal/logfields"
	"git.home.luguber.info/inful/buildbridge/internal/metrics"
	"git.home.luguber.info/inful/buildbridge/internal/module"
	"git.home.luguber.info/inful/buildbridge/internal/observability"
	"git.home.luguber.info/inful/buildbridge/internal/proxy"
	"git.home.luguber.info/inful/buildbridge/internal/reporter"
	"git.home.luguber.info/inful/buildbridge/internal/timing"
)

// Observer receives every event after the bridge has handled it.
type Observer interface {
	Observe(ctx context.Context, ev execevent.Event)
}

// Options are the bridge's behaviour flags and collaborators.
type Options struct {
	// ForceSuccess reports the build as successful even when it failed.
	ForceSuccess bool
	// Debug mirrors lifecycle transitions to DebugWriter.
	Debug bool
	// Profile asks the host for an overhead summary after the build.
	Profile     bool
	DebugWriter io.Writer
	Observer    Observer
	Recorder    metrics.Recorder
	Tracker     *timing.Tracker
}

type moduleState struct {
	project module.Project
	state   module.State
	result  module.Result
	depth   int
}

// Bridge is an execevent.Listener. Events arrive from one producer, but
// forked executions may deliver events for different modules concurrently.
type Bridge struct {
	opts    Options
	proxies map[module.Name]proxy.BuildProxy
	chain   *reporter.Chain
	tracker *timing.Tracker

	mu      sync.Mutex
	modules map[module.Name]*moduleState

	overhead atomic.Int64
}

var _ execevent.Listener = (*Bridge)(nil)

// New creates a bridge for the given proxies and reporter chain. The proxy
// map is copied.
func New(proxies map[module.Name]proxy.BuildProxy, chain *reporter.Chain, opts Options) *Bridge {
	opts.Recorder = metrics.OrNoop(opts.Recorder)
	if opts.DebugWriter == nil {
		opts.DebugWriter = io.Discard
	}
	tracker := opts.Tracker
	if tracker == nil {
		tracker = timing.NewTracker()
	}
	if chain == nil {
		chain = reporter.NewChain(nil, opts.Recorder)
	}
	ps := make(map[module.Name]proxy.BuildProxy, len(proxies))
	for name, p := range proxies {
		ps[name] = p
	}
	return &Bridge{
		opts:    opts,
		proxies: ps,
		chain:   chain,
		tracker: tracker,
		modules: make(map[module.Name]*moduleState),
	}
}

// Options returns the options the bridge was built with.
func (b *Bridge) Options() Options { return b.opts }

// Tracker returns the step timing tracker.
func (b *Bridge) Tracker() *timing.Tracker { return b.tracker }

// Overhead is the total time spent handling events.
func (b *Bridge) Overhead() time.Duration { return time.Duration(b.overhead.Load()) }

// Dispatch routes ev to the matching listener method.
func (b *Bridge) Dispatch(ctx context.Context, ev execevent.Event) error {
	return execevent.Dispatch(ctx, b, ev)
}

// State returns the module's lifecycle state as seen by the bridge.
func (b *Bridge) State(name module.Name) (module.State, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ms, ok := b.modules[name]
	if !ok {
		if b.known(name) {
			return module.StateNotStarted, true
		}
		return module.StateNotStarted, false
	}
	return ms.state, true
}

// Result returns the module's recorded result. It is empty until the
// module reaches a terminal state.
func (b *Bridge) Result(name module.Name) module.Result {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ms, ok := b.modules[name]; ok && ms.state.IsTerminal() {
		return ms.result
	}
	return ""
}

// Project returns the last project description seen for name, or a bare
// project when the module never started.
func (b *Bridge) Project(name module.Name) module.Project {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ms, ok := b.modules[name]; ok && !ms.project.Name.IsZero() {
		return ms.project
	}
	return module.Project{Name: name}
}

// Modules returns every module with a proxy or reporters, sorted.
func (b *Bridge) Modules() []module.Name {
	seen := make(map[module.Name]struct{}, len(b.proxies))
	for name := range b.proxies {
		seen[name] = struct{}{}
	}
	for _, name := range b.chain.Modules() {
		seen[name] = struct{}{}
	}
	out := make([]module.Name, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	slices.SortFunc(out, module.Name.Compare)
	return out
}

// Flush logs what the bridge knows about an interrupted build: modules left
// building and the accumulated overhead.
func (b *Bridge) Flush(ctx context.Context) {
	b.mu.Lock()
	var open []module.Name
	for name, ms := range b.modules {
		if ms.state == module.StateStarted {
			open = append(open, name)
		}
	}
	b.mu.Unlock()
	slices.SortFunc(open, module.Name.Compare)
	for _, name := range open {
		observability.WarnContext(ctx, "Module did not finish", logfields.Module(name.String()))
	}
	observability.InfoContext(ctx, "Bridge overhead", logfields.Elapsed(b.Overhead()))
}

func (b *Bridge) known(name module.Name) bool {
	if _, ok := b.proxies[name]; ok {
		return true
	}
	_, ok := b.chain.Reporters(name)
	return ok
}

// handle wraps every listener method: it accounts the time spent, mirrors
// the event to the debug writer and forwards it to the observer.
func (b *Bridge) handle(ctx context.Context, ev execevent.Event, fn func(ctx context.Context)) {
	if err := ev.Validate(); err != nil {
		observability.WarnContext(ctx, "Ignoring malformed execution event", logfields.Event(string(ev.Kind)), logfields.Error(err))
		return
	}
	start := time.Now()
	if name, ok := ev.Module(); ok {
		ctx = observability.WithModule(ctx, name.String())
	}
	ctx = observability.WithForked(ctx, ev.Kind.Forked())
	b.debugf("%s", ev)
	if fn != nil {
		fn(ctx)
	}
	b.overhead.Add(int64(time.Since(start)))
	b.opts.Recorder.SetBridgeOverhead(b.Overhead())
	if b.opts.Observer != nil {
		b.opts.Observer.Observe(ctx, ev)
	}
}

func (b *Bridge) debugf(format string, args ...any) {
	if !b.opts.Debug {
		return
	}
	_, _ = fmt.Fprintf(b.opts.DebugWriter, "[DEBUG] "+format+"\n", args...)
}

// callProxy runs one proxy operation and logs its failure.
func (b *Bridge) callProxy(ctx context.Context, name module.Name, op proxy.Op, fn func(context.Context) error) {
	if err := fn(ctx); err != nil {
		logFailure(ctx, "Build proxy call failed", err, logfields.Module(name.String()), logfields.Op(string(op)))
	}
}

// logFailure logs err with its cause and stack.
func logFailure(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	attrs = append(attrs, logfields.Error(err), logfields.Cause(err))
	if stack := execevent.StackOf(err); stack != "" {
		attrs = append(attrs, logfields.Stack(stack))
	}
	observability.ErrorContext(ctx, msg, attrs...)
}
