package build

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"git.home.luguber.info/inful/buildbridge/internal/asyncwork"
	"git.home.luguber.info/inful/buildbridge/internal/bridge"
	"git.home.luguber.info/inful/buildbridge/internal/eventstore"
	"git.home.luguber.info/inful/buildbridge/internal/execevent"
	"git.home.luguber.info/inful/buildbridge/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbridge/internal/logfields"
	"git.home.luguber.info/inful/buildbridge/internal/metrics"
	"git.home.luguber.info/inful/buildbridge/internal/module"
	"git.home.luguber.info/inful/buildbridge/internal/observability"
	"git.home.luguber.info/inful/buildbridge/internal/progress"
	"git.home.luguber.info/inful/buildbridge/internal/proxy"
	"git.home.luguber.info/inful/buildbridge/internal/reporter"
	"git.home.luguber.info/inful/buildbridge/internal/scm"
	"git.home.luguber.info/inful/buildbridge/internal/timing"
)

// Flags are the bridge behaviour switches.
type Flags struct {
	ForceSuccess bool
	Debug        bool
	Profile      bool
}

// lastBuild is what the post-build pass needs from the most recent Run.
type lastBuild struct {
	buildID string
	bridge  *bridge.Bridge
	filters map[module.Name]*proxy.Filter
}

// DefaultBuildService is the standard implementation of BuildService.
type DefaultBuildService struct {
	modules     []module.Name
	chain       *reporter.Chain
	factory     proxy.Factory
	coordinator *asyncwork.Coordinator
	store       eventstore.Store
	projection  *eventstore.ModuleStateProjection
	recorder    metrics.Recorder
	flags       Flags
	drain       time.Duration
	out         io.Writer
	now         func() time.Time
	newID       func() string

	mu   sync.Mutex
	last *lastBuild
}

var _ BuildService = (*DefaultBuildService)(nil)

// NewBuildService creates a service for the registered modules. Every module
// gets a proxy from factory; chain holds the reporters per module.
func NewBuildService(modules []module.Name, chain *reporter.Chain, factory proxy.Factory) *DefaultBuildService {
	ms := make([]module.Name, len(modules))
	copy(ms, modules)
	if chain == nil {
		chain = reporter.NewChain(nil, nil)
	}
	return &DefaultBuildService{
		modules:     ms,
		chain:       chain,
		factory:     factory,
		coordinator: asyncwork.New(asyncwork.Options{}),
		recorder:    metrics.NoopRecorder{},
		out:         os.Stdout,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// WithCoordinator replaces the asynchronous work coordinator.
func (s *DefaultBuildService) WithCoordinator(c *asyncwork.Coordinator) *DefaultBuildService {
	s.coordinator = c
	return s
}

// WithEventStore records BuildStarted and BuildCompleted in store and, when
// projection is set, applies them to it.
func (s *DefaultBuildService) WithEventStore(store eventstore.Store, projection *eventstore.ModuleStateProjection) *DefaultBuildService {
	s.store = store
	s.projection = projection
	return s
}

// WithRecorder sets the metrics recorder.
func (s *DefaultBuildService) WithRecorder(r metrics.Recorder) *DefaultBuildService {
	s.recorder = metrics.OrNoop(r)
	return s
}

// WithFlags sets the bridge behaviour switches.
func (s *DefaultBuildService) WithFlags(f Flags) *DefaultBuildService {
	s.flags = f
	return s
}

// WithDrainTimeout bounds the wait for asynchronous work. Zero waits forever.
func (s *DefaultBuildService) WithDrainTimeout(d time.Duration) *DefaultBuildService {
	s.drain = d
	return s
}

// WithOutput sets the writer for the progress log, banner and profile.
func (s *DefaultBuildService) WithOutput(w io.Writer) *DefaultBuildService {
	if w == nil {
		w = io.Discard
	}
	s.out = w
	return s
}

// WithClock replaces the wall clock (for testing).
func (s *DefaultBuildService) WithClock(now func() time.Time) *DefaultBuildService {
	s.now = now
	return s
}

// WithIDGenerator replaces the build id generator (for testing).
func (s *DefaultBuildService) WithIDGenerator(f func() string) *DefaultBuildService {
	s.newID = f
	return s
}

// Run executes one build.
func (s *DefaultBuildService) Run(ctx context.Context, req BuildRequest) (*BuildResult, error) {
	if req.Launcher == nil {
		return nil, errors.ValidationError("build request has no launcher").Build()
	}

	res := &BuildResult{BuildID: s.newID(), StartTime: s.now()}
	ctx = observability.WithBuildID(ctx, res.BuildID)

	s.coordinator.Begin()
	res.Revision = s.revision(ctx, req.Workdir)

	stats := &proxy.CallStats{}
	filters, err := s.proxies(res.BuildID, req.Goals, stats)
	if err != nil {
		return nil, err
	}
	proxies := make(map[module.Name]proxy.BuildProxy, len(filters))
	for name, f := range filters {
		proxies[name] = f
	}

	tracker := timing.NewTracker(timing.WithClock(s.now))
	b := bridge.New(proxies, s.chain, bridge.Options{
		ForceSuccess: s.flags.ForceSuccess,
		Debug:        s.flags.Debug,
		Profile:      s.flags.Profile,
		DebugWriter:  s.out,
		Observer:     progress.New(s.out, progress.WithClock(s.now)),
		Recorder:     s.recorder,
		Tracker:      tracker,
	})

	s.mu.Lock()
	s.last = &lastBuild{buildID: res.BuildID, bridge: b, filters: filters}
	s.mu.Unlock()

	s.recordStarted(ctx, res, req.Goals)

	observability.InfoContext(ctx, "Starting bridged build",
		slog.Int("modules", len(s.modules)),
		slog.String("goals", strings.Join(req.Goals, " ")))
	fmt.Fprintf(s.out, "[INFO] Executing goals: %s\n", formatGoals(req.Goals))

	outcome, launchErr := req.Launcher.Launch(ctx, req.Goals, b)
	b.Flush(ctx)

	drainStart := time.Now()
	override, err := s.coordinator.AwaitDrain(ctx, s.drain)
	if err != nil {
		observability.ErrorContext(ctx, "Failed to wait for asynchronous work", logfields.Error(err))
	}

	res.ExitCode = outcome.ExitCode
	res.Failures = outcome.Failures
	res.Overhead = b.Overhead() + time.Since(drainStart)
	res.ProxyCalls = stats.Calls()
	res.ProxyTime = stats.Total()

	// An override ends the build before the profile summary.
	if s.flags.Profile && override == nil {
		s.profile(res)
	}

	if launchErr != nil {
		res.Result = module.ResultFailure
		s.finish(ctx, res, b)
		return res, errors.WrapError(fmt.Errorf("%w: %w", ErrLaunch, launchErr), errors.CategoryBuild, "failed to launch build").
			WithContext("build_id", res.BuildID).
			Build()
	}

	res.Result = s.decide(ctx, res, override)
	s.finish(ctx, res, b)
	return res, nil
}

// decide applies the result rules in order: a drain override supersedes
// everything, then a clean exit is a success, then force-success.
func (s *DefaultBuildService) decide(ctx context.Context, res *BuildResult, override *module.Result) module.Result {
	if override != nil {
		res.Override = override
		observability.WarnContext(ctx, "Asynchronous work overrides build result", logfields.Result(string(*override)))
		return *override
	}
	if res.ExitCode == 0 && len(res.Failures) == 0 {
		return module.ResultSuccess
	}

	if res.ExitCode != 0 {
		observability.ErrorContext(ctx, "Build tool exited with failure", slog.Int("exit_code", res.ExitCode))
	}
	for _, f := range res.Failures {
		observability.ErrorContext(ctx, f.Error(), logfields.Cause(f), logfields.Stack(execevent.StackOf(f)))
	}
	if s.flags.ForceSuccess {
		res.Forced = true
		observability.InfoContext(ctx, "Build failed but marked as success")
		fmt.Fprintln(s.out, "[INFO] Build failed but marked as success")
		return module.ResultSuccess
	}
	return module.ResultFailure
}

// End runs every reporter's End hook for the most recent build, then ends
// any proxy that was left open.
func (s *DefaultBuildService) End(ctx context.Context) {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()
	if last == nil {
		return
	}
	ctx = observability.WithBuildID(ctx, last.buildID)

	for _, name := range last.bridge.Modules() {
		var p proxy.BuildProxy
		if f, ok := last.filters[name]; ok {
			p = f
		}
		// Failures are logged by the chain.
		_ = s.chain.End(ctx, p, last.bridge.Project(name))
	}

	for _, name := range s.modules {
		f, ok := last.filters[name]
		if !ok || f.Ended() {
			continue
		}
		if err := f.End(ctx); err != nil {
			observability.WarnContext(ctx, "Failed to end module proxy",
				logfields.Module(name.String()), logfields.Error(err))
		}
	}
}

func (s *DefaultBuildService) proxies(buildID string, goals []string, stats *proxy.CallStats) (map[module.Name]*proxy.Filter, error) {
	out := make(map[module.Name]*proxy.Filter, len(s.modules))
	for _, name := range s.modules {
		inner, err := s.factory(buildID, name)
		if err != nil {
			return nil, errors.WrapError(fmt.Errorf("%w: %w", ErrProxySetup, err), errors.CategoryBuild, "failed to create module proxy").
				WithContext("module", name.String()).
				Build()
		}
		out[name] = proxy.NewFilter(inner, name, proxy.FilterOptions{
			Info:     proxy.BuildInfo{BuildID: buildID, Goals: goals},
			Recorder: s.recorder,
			Stats:    stats,
			Async:    s.coordinator,
		})
	}
	return out, nil
}

func (s *DefaultBuildService) revision(ctx context.Context, dir string) scm.Revision {
	if dir == "" {
		return scm.Revision{}
	}
	rev, err := scm.Head(dir)
	switch {
	case stderrors.Is(err, scm.ErrNotARepository):
		observability.DebugContext(ctx, "Workspace is not a git repository", logfields.Path(dir))
	case err != nil:
		observability.WarnContext(ctx, "Failed to read workspace revision", logfields.Path(dir), logfields.Error(err))
	}
	return rev
}

func (s *DefaultBuildService) profile(res *BuildResult) {
	p := message.NewPrinter(language.English)
	p.Fprintf(s.out, "Total overhead was %d ms\n", res.Overhead.Milliseconds())
	p.Fprintf(s.out, "Proxy calls %d ms, %d calls\n", res.ProxyTime.Milliseconds(), res.ProxyCalls)
}

func (s *DefaultBuildService) finish(ctx context.Context, res *BuildResult, b *bridge.Bridge) {
	res.EndTime = s.now()
	res.Duration = res.EndTime.Sub(res.StartTime)
	res.Modules = make(map[module.Name]module.State, len(s.modules))
	for _, name := range s.modules {
		st, _ := b.State(name)
		res.Modules[name] = st
	}

	s.recorder.ObserveBuildDuration(res.Duration)
	s.recorder.IncBuildOutcome(string(res.Result))

	failures := make([]string, 0, len(res.Failures))
	for _, f := range res.Failures {
		failures = append(failures, f.Error())
	}
	ev, err := eventstore.NewBuildCompleted(res.BuildID, eventstore.BuildCompletedMeta{
		Result:   res.Result,
		Duration: res.Duration,
		Overhead: res.Overhead,
		Failures: failures,
	}, res.EndTime)
	s.record(ctx, ev, err)

	observability.InfoContext(ctx, "Build finished",
		logfields.Result(string(res.Result)),
		logfields.Elapsed(res.Duration))
}

func (s *DefaultBuildService) recordStarted(ctx context.Context, res *BuildResult, goals []string) {
	revision := ""
	if res.Revision.Commit != "" {
		revision = res.Revision.String()
	}
	host, _ := os.Hostname()
	ev, err := eventstore.NewBuildStarted(res.BuildID, eventstore.BuildStartedMeta{
		Goals:    goals,
		Revision: revision,
		Modules:  s.modules,
		Host:     host,
	}, res.StartTime)
	s.record(ctx, ev, err)
}

func (s *DefaultBuildService) record(ctx context.Context, ev eventstore.Event, err error) {
	if s.store == nil {
		return
	}
	if err == nil {
		err = eventstore.AppendEvent(ctx, s.store, ev)
	}
	if err != nil {
		observability.WarnContext(ctx, "Failed to record build event", logfields.Error(err))
		return
	}
	if s.projection != nil {
		s.projection.Apply(ev)
	}
}

func formatGoals(goals []string) string {
	if len(goals) == 0 {
		return "(default)"
	}
	return strings.Join(goals, " ")
}
