package reporter

import (
	"context"
	"log/slog"

	"git.home.luguber.info/inful/buildbridge/internal/logfields"
	"git.home.luguber.info/inful/buildbridge/internal/module"
	"git.home.luguber.info/inful/buildbridge/internal/proxy"
)

// Log writes one structured record per hook.
type Log struct {
	logger *slog.Logger
}

// NewLog is the factory for the "log" reporter.
func NewLog(opts Options) (Reporter, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Log{logger: logger.With(logfields.Reporter("log"))}, nil
}

func (l *Log) Name() string { return "log" }

func (l *Log) hook(ctx context.Context, hook Hook, project module.Project, attrs ...slog.Attr) {
	attrs = append(attrs, logfields.Hook(string(hook)), logfields.Module(project.Name.String()))
	l.logger.LogAttrs(ctx, slog.LevelDebug, "Module lifecycle", attrs...)
}

func (l *Log) EnterModule(ctx context.Context, _ proxy.BuildProxy, project module.Project) error {
	l.hook(ctx, HookEnterModule, project)
	return nil
}

func (l *Log) PreBuild(ctx context.Context, _ proxy.BuildProxy, project module.Project) error {
	l.hook(ctx, HookPreBuild, project)
	return nil
}

func (l *Log) PreExecute(ctx context.Context, _ proxy.BuildProxy, project module.Project, step module.StepInfo) error {
	l.hook(ctx, HookPreExecute, project, logfields.Step(step.String()))
	return nil
}

func (l *Log) PostExecute(ctx context.Context, _ proxy.BuildProxy, project module.Project, executed module.ExecutedStep, cause error) error {
	attrs := []slog.Attr{logfields.Step(executed.Step.String()), logfields.Elapsed(executed.Elapsed)}
	if cause != nil {
		attrs = append(attrs, logfields.Error(cause))
	}
	l.hook(ctx, HookPostExecute, project, attrs...)
	return nil
}

func (l *Log) PostBuild(ctx context.Context, _ proxy.BuildProxy, project module.Project) error {
	l.hook(ctx, HookPostBuild, project)
	return nil
}

func (l *Log) LeaveModule(ctx context.Context, _ proxy.BuildProxy, project module.Project) error {
	l.hook(ctx, HookLeaveModule, project)
	return nil
}

func (l *Log) End(ctx context.Context, _ proxy.BuildProxy, project module.Project) error {
	l.hook(ctx, HookEnd, project)
	return nil
}
