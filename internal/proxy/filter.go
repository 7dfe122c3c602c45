package proxy

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"git.home.luguber.info/inful/buildbridge/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbridge/internal/logfields"
	"git.home.luguber.info/inful/buildbridge/internal/metrics"
	"git.home.luguber.info/inful/buildbridge/internal/module"
)

// BuildInfo tags proxy calls with the build they belong to.
type BuildInfo struct {
	BuildID     string
	Goals       []string
	ToolVersion string
}

// AsyncRunner accepts deferred work the build must wait for.
type AsyncRunner interface {
	Go(ctx context.Context, name string, fn func(context.Context) error)
}

// CallStats accumulates the time spent in proxy calls. Safe for concurrent use.
type CallStats struct {
	calls atomic.Int64
	nanos atomic.Int64
}

func (s *CallStats) add(d time.Duration) {
	s.calls.Add(1)
	s.nanos.Add(int64(d))
}

// Calls returns the number of proxy calls made.
func (s *CallStats) Calls() int64 { return s.calls.Load() }

// Total returns the cumulative time spent in proxy calls.
func (s *CallStats) Total() time.Duration { return time.Duration(s.nanos.Load()) }

// FilterOptions configures a Filter.
type FilterOptions struct {
	Info     BuildInfo
	Recorder metrics.Recorder
	Stats    *CallStats
	Async    AsyncRunner
}

// Filter wraps a proxy. It times and logs every call, classifies failures as
// transport errors, ignores End on an already-ended module and offers
// ExecuteAsync to reporters.
type Filter struct {
	inner BuildProxy
	name  module.Name
	opts  FilterOptions
	ended atomic.Bool
}

var (
	_ BuildProxy    = (*Filter)(nil)
	_ AsyncExecutor = (*Filter)(nil)
)

// NewFilter wraps inner for the module name.
func NewFilter(inner BuildProxy, name module.Name, opts FilterOptions) *Filter {
	opts.Recorder = metrics.OrNoop(opts.Recorder)
	if opts.Stats == nil {
		opts.Stats = &CallStats{}
	}
	return &Filter{inner: inner, name: name, opts: opts}
}

// Unwrap returns the wrapped proxy.
func (f *Filter) Unwrap() BuildProxy { return f.inner }

// Info returns the build information the filter tags calls with.
func (f *Filter) Info() BuildInfo { return f.opts.Info }

func (f *Filter) Start(ctx context.Context) error {
	f.ended.Store(false)
	return f.call(ctx, OpStart, f.inner.Start)
}

func (f *Filter) SetResult(ctx context.Context, result module.Result) error {
	return f.call(ctx, OpSetResult, func(ctx context.Context) error {
		return f.inner.SetResult(ctx, result)
	})
}

func (f *Filter) SetExecutedSteps(ctx context.Context, steps []module.ExecutedStep) error {
	return f.call(ctx, OpSetExecutedSteps, func(ctx context.Context) error {
		return f.inner.SetExecutedSteps(ctx, steps)
	})
}

// End closes the module once; later calls are no-ops until the next Start.
// A failed End leaves the module open so a later End retries it.
func (f *Filter) End(ctx context.Context) error {
	if f.ended.Swap(true) {
		slog.Debug("Proxy already ended", logfields.Module(f.name.String()))
		return nil
	}
	if err := f.call(ctx, OpEnd, f.inner.End); err != nil {
		f.ended.Store(false)
		return err
	}
	return nil
}

// Ended reports whether End has completed its call to the wrapped proxy.
func (f *Filter) Ended() bool { return f.ended.Load() }

// ExecuteAsync hands fn to the async runner, or runs it inline when none is set.
func (f *Filter) ExecuteAsync(ctx context.Context, name string, fn func(context.Context) error) {
	label := f.name.String() + ": " + name
	if f.opts.Async != nil {
		f.opts.Async.Go(ctx, label, fn)
		return
	}
	if err := fn(ctx); err != nil {
		slog.Error("Deferred work failed", logfields.Module(f.name.String()), slog.String("work", name), logfields.Error(err))
	}
}

func (f *Filter) call(ctx context.Context, op Op, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	d := time.Since(start)

	f.opts.Stats.add(d)
	f.opts.Recorder.ObserveProxyCall(string(op), d, metrics.OutcomeOf(err))

	slog.Debug("Proxy call",
		logfields.BuildID(f.opts.Info.BuildID),
		logfields.Module(f.name.String()),
		logfields.Op(string(op)),
		logfields.Elapsed(d),
		logfields.Error(err))

	if err == nil || errors.IsClassified(err) {
		return err
	}
	return errors.WrapError(err, errors.CategoryTransport, "proxy "+string(op)+" failed").
		WithContext("module", f.name.String()).
		WithContext("build_id", f.opts.Info.BuildID).
		Build()
}
