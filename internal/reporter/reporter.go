// Package reporter defines the observers notified of module build lifecycle
// transitions and the chain that invokes them with per-reporter isolation.
package reporter

import (
	"context"
	"fmt"

	"git.home.luguber.info/inful/buildbridge/internal/module"
	"git.home.luguber.info/inful/buildbridge/internal/proxy"
)

// Hook names a reporter callback.
type Hook string

const (
	HookEnterModule Hook = "enterModule"
	HookPreBuild    Hook = "preBuild"
	HookPreExecute  Hook = "preExecute"
	HookPostExecute Hook = "postExecute"
	HookPostBuild   Hook = "postBuild"
	HookLeaveModule Hook = "leaveModule"
	HookEnd         Hook = "end"
)

// Reporter observes the build of the modules it is registered for. Any
// returned error is logged by the chain and never stops the build.
type Reporter interface {
	EnterModule(ctx context.Context, p proxy.BuildProxy, project module.Project) error
	PreBuild(ctx context.Context, p proxy.BuildProxy, project module.Project) error
	PreExecute(ctx context.Context, p proxy.BuildProxy, project module.Project, step module.StepInfo) error
	// PostExecute receives cause == nil for a successful step.
	PostExecute(ctx context.Context, p proxy.BuildProxy, project module.Project, executed module.ExecutedStep, cause error) error
	PostBuild(ctx context.Context, p proxy.BuildProxy, project module.Project) error
	LeaveModule(ctx context.Context, p proxy.BuildProxy, project module.Project) error
	// End runs once after the whole build, when every module is done.
	End(ctx context.Context, p proxy.BuildProxy, project module.Project) error
}

// Named is implemented by reporters that want a stable name in logs.
type Named interface {
	Name() string
}

// NameOf returns the reporter's name, falling back to its type.
func NameOf(r Reporter) string {
	if n, ok := r.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", r)
}

// Nop implements every hook as a no-op. Embed it to override only some hooks.
type Nop struct{}

func (Nop) EnterModule(context.Context, proxy.BuildProxy, module.Project) error { return nil }
func (Nop) PreBuild(context.Context, proxy.BuildProxy, module.Project) error    { return nil }
func (Nop) PreExecute(context.Context, proxy.BuildProxy, module.Project, module.StepInfo) error {
	return nil
}
func (Nop) PostExecute(context.Context, proxy.BuildProxy, module.Project, module.ExecutedStep, error) error {
	return nil
}
func (Nop) PostBuild(context.Context, proxy.BuildProxy, module.Project) error   { return nil }
func (Nop) LeaveModule(context.Context, proxy.BuildProxy, module.Project) error { return nil }
func (Nop) End(context.Context, proxy.BuildProxy, module.Project) error         { return nil }
