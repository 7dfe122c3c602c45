package reporter

import (
	"context"
	stderrors "errors"
	"log/slog"

	"git.home.luguber.info/inful/buildbridge/internal/execevent"
	"git.home.luguber.info/inful/buildbridge/internal/logfields"
	"git.home.luguber.info/inful/buildbridge/internal/metrics"
	"git.home.luguber.info/inful/buildbridge/internal/module"
	"git.home.luguber.info/inful/buildbridge/internal/observability"
	"git.home.luguber.info/inful/buildbridge/internal/proxy"
)

// Chain invokes the reporters registered for a module in registration order.
// Registrations are fixed at construction.
type Chain struct {
	reporters map[module.Name][]Reporter
	recorder  metrics.Recorder
}

// NewChain copies registrations so later changes to the map have no effect.
func NewChain(registrations map[module.Name][]Reporter, recorder metrics.Recorder) *Chain {
	reporters := make(map[module.Name][]Reporter, len(registrations))
	for name, rs := range registrations {
		reporters[name] = append([]Reporter(nil), rs...)
	}
	return &Chain{reporters: reporters, recorder: metrics.OrNoop(recorder)}
}

// Reporters returns the reporters registered for name; ok is false for
// modules the chain does not know.
func (c *Chain) Reporters(name module.Name) (rs []Reporter, ok bool) {
	rs, ok = c.reporters[name]
	return append([]Reporter(nil), rs...), ok
}

// Modules returns every module with a registration.
func (c *Chain) Modules() []module.Name {
	out := make([]module.Name, 0, len(c.reporters))
	for name := range c.reporters {
		out = append(out, name)
	}
	return out
}

func (c *Chain) EnterModule(ctx context.Context, p proxy.BuildProxy, project module.Project) error {
	return c.invoke(ctx, HookEnterModule, project, func(r Reporter) error {
		return r.EnterModule(ctx, p, project)
	})
}

func (c *Chain) PreBuild(ctx context.Context, p proxy.BuildProxy, project module.Project) error {
	return c.invoke(ctx, HookPreBuild, project, func(r Reporter) error {
		return r.PreBuild(ctx, p, project)
	})
}

func (c *Chain) PreExecute(ctx context.Context, p proxy.BuildProxy, project module.Project, step module.StepInfo) error {
	return c.invoke(ctx, HookPreExecute, project, func(r Reporter) error {
		return r.PreExecute(ctx, p, project, step)
	})
}

func (c *Chain) PostExecute(ctx context.Context, p proxy.BuildProxy, project module.Project, executed module.ExecutedStep, cause error) error {
	return c.invoke(ctx, HookPostExecute, project, func(r Reporter) error {
		return r.PostExecute(ctx, p, project, executed, cause)
	})
}

func (c *Chain) PostBuild(ctx context.Context, p proxy.BuildProxy, project module.Project) error {
	return c.invoke(ctx, HookPostBuild, project, func(r Reporter) error {
		return r.PostBuild(ctx, p, project)
	})
}

func (c *Chain) LeaveModule(ctx context.Context, p proxy.BuildProxy, project module.Project) error {
	return c.invoke(ctx, HookLeaveModule, project, func(r Reporter) error {
		return r.LeaveModule(ctx, p, project)
	})
}

func (c *Chain) End(ctx context.Context, p proxy.BuildProxy, project module.Project) error {
	return c.invoke(ctx, HookEnd, project, func(r Reporter) error {
		return r.End(ctx, p, project)
	})
}

// invoke calls fn for every reporter of the project's module. Each failure is
// logged and counted; the remaining reporters still run. The joined failures
// are returned for callers that want them.
func (c *Chain) invoke(ctx context.Context, hook Hook, project module.Project, fn func(Reporter) error) error {
	rs, ok := c.reporters[project.Name]
	if !ok {
		return nil
	}
	var errs []error
	for _, r := range rs {
		err := fn(r)
		if err == nil {
			continue
		}
		errs = append(errs, err)
		c.recorder.IncHookFailure(string(hook))
		hctx := observability.WithHook(observability.WithModule(ctx, project.Name.String()), string(hook))
		attrs := []slog.Attr{logfields.Reporter(NameOf(r)), logfields.Error(err), logfields.Cause(err)}
		if stack := execevent.StackOf(err); stack != "" {
			attrs = append(attrs, logfields.Stack(stack))
		}
		observability.ErrorContext(hctx, "Reporter hook failed", attrs...)
	}
	return stderrors.Join(errs...)
}
