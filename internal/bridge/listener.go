package bridge

import (
	"context"
	"slices"

	"git.home.luguber.info/inful/buildbridge/internal/execevent"
	"git.home.luguber.info/inful/buildbridge/internal/logfields"
	"git.home.luguber.info/inful/buildbridge/internal/metrics"
	"git.home.luguber.info/inful/buildbridge/internal/module"
	"git.home.luguber.info/inful/buildbridge/internal/observability"
	"git.home.luguber.info/inful/buildbridge/internal/proxy"
)

func (b *Bridge) DiscoveryStarted(ctx context.Context, ev execevent.Event) { b.handle(ctx, ev, nil) }
func (b *Bridge) SessionEnded(ctx context.Context, ev execevent.Event)     { b.handle(ctx, ev, nil) }
func (b *Bridge) ProjectSkipped(ctx context.Context, ev execevent.Event)   { b.handle(ctx, ev, nil) }
func (b *Bridge) StepSkipped(ctx context.Context, ev execevent.Event)      { b.handle(ctx, ev, nil) }

// SessionStarted closes every module that is not part of this session as
// NOT_BUILT. Reporters are not told about them.
func (b *Bridge) SessionStarted(ctx context.Context, ev execevent.Event) {
	b.handle(ctx, ev, func(ctx context.Context) {
		inSession := make(map[module.Name]struct{}, len(ev.Projects))
		for _, p := range ev.Projects {
			inSession[p.Name] = struct{}{}
		}
		names := make([]module.Name, 0, len(b.proxies))
		for name := range b.proxies {
			if _, ok := inSession[name]; !ok {
				names = append(names, name)
			}
		}
		slices.SortFunc(names, module.Name.Compare)
		for _, name := range names {
			b.markNotBuilt(observability.WithModule(ctx, name.String()), name)
		}
	})
}

func (b *Bridge) markNotBuilt(ctx context.Context, name module.Name) {
	p := b.proxies[name]
	b.debugf("Module %s is not part of this build", name)
	b.callProxy(ctx, name, proxy.OpStart, p.Start)
	b.callProxy(ctx, name, proxy.OpSetResult, func(ctx context.Context) error {
		return p.SetResult(ctx, module.ResultNotBuilt)
	})
	b.callProxy(ctx, name, proxy.OpEnd, p.End)

	b.mu.Lock()
	b.modules[name] = &moduleState{
		project: module.Project{Name: name},
		state:   module.StateNotBuilt,
		result:  module.ResultNotBuilt,
	}
	b.mu.Unlock()
	b.opts.Recorder.IncModuleOutcome(string(module.ResultNotBuilt))
}

func (b *Bridge) ProjectStarted(ctx context.Context, ev execevent.Event) {
	b.handle(ctx, ev, func(ctx context.Context) { b.projectStarted(ctx, ev, false) })
}

func (b *Bridge) ForkedProjectStarted(ctx context.Context, ev execevent.Event) {
	b.handle(ctx, ev, func(ctx context.Context) { b.projectStarted(ctx, ev, true) })
}

func (b *Bridge) ProjectSucceeded(ctx context.Context, ev execevent.Event) {
	b.handle(ctx, ev, func(ctx context.Context) { b.projectEnded(ctx, ev, false, module.ResultSuccess) })
}

func (b *Bridge) ForkedProjectSucceeded(ctx context.Context, ev execevent.Event) {
	b.handle(ctx, ev, func(ctx context.Context) { b.projectEnded(ctx, ev, true, module.ResultSuccess) })
}

func (b *Bridge) ProjectFailed(ctx context.Context, ev execevent.Event) {
	b.handle(ctx, ev, func(ctx context.Context) { b.projectEnded(ctx, ev, false, module.ResultFailure) })
}

func (b *Bridge) ForkedProjectFailed(ctx context.Context, ev execevent.Event) {
	b.handle(ctx, ev, func(ctx context.Context) { b.projectEnded(ctx, ev, true, module.ResultFailure) })
}

func (b *Bridge) StepStarted(ctx context.Context, ev execevent.Event) {
	b.handle(ctx, ev, func(ctx context.Context) { b.stepStarted(ctx, ev, false) })
}

func (b *Bridge) ForkStarted(ctx context.Context, ev execevent.Event) {
	b.handle(ctx, ev, func(ctx context.Context) { b.stepStarted(ctx, ev, true) })
}

func (b *Bridge) StepSucceeded(ctx context.Context, ev execevent.Event) {
	b.handle(ctx, ev, func(ctx context.Context) { b.stepEnded(ctx, ev, false, module.StepSucceeded) })
}

func (b *Bridge) ForkSucceeded(ctx context.Context, ev execevent.Event) {
	b.handle(ctx, ev, func(ctx context.Context) { b.stepEnded(ctx, ev, true, module.StepSucceeded) })
}

func (b *Bridge) StepFailed(ctx context.Context, ev execevent.Event) {
	b.handle(ctx, ev, func(ctx context.Context) { b.stepEnded(ctx, ev, false, module.StepFailed) })
}

func (b *Bridge) ForkFailed(ctx context.Context, ev execevent.Event) {
	b.handle(ctx, ev, func(ctx context.Context) { b.stepEnded(ctx, ev, true, module.StepFailed) })
}

// projectStarted opens the module. Only the outermost start reaches the proxy.
func (b *Bridge) projectStarted(ctx context.Context, ev execevent.Event, forked bool) {
	project := *ev.Project
	name := project.Name
	if !b.known(name) {
		b.debugf("Ignoring %s: module is not part of this build", ev)
		return
	}

	b.mu.Lock()
	ms, ok := b.modules[name]
	if !ok || ms.depth == 0 {
		ms = &moduleState{}
		b.modules[name] = ms
	}
	ms.project = project
	ms.depth++
	outermost := ms.depth == 1
	if outermost {
		ms.state = module.StateStarted
		ms.result = module.ResultSuccess
	}
	b.mu.Unlock()

	p, hasProxy := b.proxies[name]
	if outermost && hasProxy {
		b.debugf("Starting %s (forked=%t)", name, forked)
		b.callProxy(ctx, name, proxy.OpStart, p.Start)
	}
	_ = b.chain.EnterModule(ctx, p, project)
	_ = b.chain.PreBuild(ctx, p, project)
}

// projectEnded closes one nesting level. The outermost end sets the result
// and always ends the proxy, whatever the reporters did.
func (b *Bridge) projectEnded(ctx context.Context, ev execevent.Event, forked bool, result module.Result) {
	project := *ev.Project
	name := project.Name
	if !b.known(name) {
		b.debugf("Ignoring %s: module is not part of this build", ev)
		return
	}

	b.mu.Lock()
	ms, ok := b.modules[name]
	if !ok || ms.state != module.StateStarted || ms.depth == 0 {
		b.mu.Unlock()
		observability.WarnContext(ctx, "Module end without start", logfields.Event(string(ev.Kind)), logfields.Forked(forked))
		return
	}
	ms.depth--
	ms.result = ms.result.Worse(result)
	outermost := ms.depth == 0
	final := ms.result
	if outermost {
		ms.state = module.StateFor(final)
	}
	b.mu.Unlock()

	p, hasProxy := b.proxies[name]
	if outermost && hasProxy {
		defer b.callProxy(ctx, name, proxy.OpEnd, p.End)
		b.debugf("Module %s finished with %s", name, final)
		b.callProxy(ctx, name, proxy.OpSetResult, func(ctx context.Context) error {
			return p.SetResult(ctx, final)
		})
	}
	if outermost {
		b.opts.Recorder.IncModuleOutcome(string(final))
	}
	_ = b.chain.LeaveModule(ctx, p, project)
	_ = b.chain.PostBuild(ctx, p, project)
}

// stepStarted records the start of a step. Only one pending start per
// module is kept.
func (b *Bridge) stepStarted(ctx context.Context, ev execevent.Event, forked bool) {
	name := ev.Project.Name
	if !b.known(name) {
		return
	}
	b.tracker.RecordStart(name)
	b.debugf("Step %s of %s started (forked=%t)", ev.Step, name, forked)
	_ = b.chain.PreExecute(ctx, b.proxies[name], *ev.Project, *ev.Step)
}

// stepEnded records a completed step, pushes the module's steps to the proxy
// and passes the event's failure, if any, to the reporters.
func (b *Bridge) stepEnded(ctx context.Context, ev execevent.Event, forked bool, outcome module.StepOutcome) {
	name := ev.Project.Name
	if !b.known(name) {
		return
	}
	executed := b.tracker.RecordCompletion(name, *ev.Step, outcome)

	label := metrics.OutcomeSuccess
	var cause error
	if outcome == module.StepFailed {
		label = metrics.OutcomeFailure
		cause = ev.Exception
	}
	b.opts.Recorder.ObserveStepDuration(ev.Step.Key(), label, executed.Elapsed)

	p, hasProxy := b.proxies[name]
	if hasProxy {
		steps := b.tracker.Steps(name)
		b.callProxy(ctx, name, proxy.OpSetExecutedSteps, func(ctx context.Context) error {
			return p.SetExecutedSteps(ctx, steps)
		})
	}
	b.debugf("Step %s of %s finished: %s in %s (forked=%t)", ev.Step, name, outcome, executed.Elapsed, forked)
	_ = b.chain.PostExecute(ctx, p, *ev.Project, executed, cause)
}
