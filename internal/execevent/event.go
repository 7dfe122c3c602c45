package execevent

import (
	"context"
	"fmt"
	"strings"

	"git.home.luguber.info/inful/buildbridge/internal/module"
)

// Event is one notification from the build tool.
type Event struct {
	Kind Kind
	// Project is set for project and step events.
	Project *module.Project
	// Step is set for step and fork events.
	Step *module.StepInfo
	// Projects lists the session's projects on sessionStarted.
	Projects []module.Project
	// Exception is the failure carried by a failed event. It stays nil when
	// the tool did not report one or cannot expose it.
	Exception error
}

// Module returns the name of the event's project, if any.
func (e Event) Module() (module.Name, bool) {
	if e.Project == nil {
		return module.Name{}, false
	}
	return e.Project.Name, true
}

// Validate checks that the event carries what its kind requires.
func (e Event) Validate() error {
	if !e.Kind.Valid() {
		return fmt.Errorf("unknown event kind %q", e.Kind)
	}
	if e.Kind.NeedsProject() && e.Project == nil {
		return fmt.Errorf("%s event without project", e.Kind)
	}
	if e.Kind.NeedsStep() && e.Step == nil {
		return fmt.Errorf("%s event without step", e.Kind)
	}
	return nil
}

// String renders a short description for debug output.
func (e Event) String() string {
	var b strings.Builder
	b.WriteString(string(e.Kind))
	if e.Project != nil {
		b.WriteByte(' ')
		b.WriteString(e.Project.Name.String())
	}
	if e.Step != nil {
		b.WriteByte(' ')
		b.WriteString(e.Step.String())
	}
	return b.String()
}

// Listener receives execution events. Implementations must not block the
// producer longer than the work they do for the event.
type Listener interface {
	DiscoveryStarted(ctx context.Context, ev Event)
	SessionStarted(ctx context.Context, ev Event)
	SessionEnded(ctx context.Context, ev Event)
	ProjectSkipped(ctx context.Context, ev Event)
	ProjectStarted(ctx context.Context, ev Event)
	ProjectSucceeded(ctx context.Context, ev Event)
	ProjectFailed(ctx context.Context, ev Event)
	StepSkipped(ctx context.Context, ev Event)
	StepStarted(ctx context.Context, ev Event)
	StepSucceeded(ctx context.Context, ev Event)
	StepFailed(ctx context.Context, ev Event)
	ForkStarted(ctx context.Context, ev Event)
	ForkSucceeded(ctx context.Context, ev Event)
	ForkFailed(ctx context.Context, ev Event)
	ForkedProjectStarted(ctx context.Context, ev Event)
	ForkedProjectSucceeded(ctx context.Context, ev Event)
	ForkedProjectFailed(ctx context.Context, ev Event)
}

// Dispatch validates ev and routes it to the matching Listener method.
func Dispatch(ctx context.Context, l Listener, ev Event) error {
	if err := ev.Validate(); err != nil {
		return err
	}
	switch ev.Kind {
	case KindDiscoveryStarted:
		l.DiscoveryStarted(ctx, ev)
	case KindSessionStarted:
		l.SessionStarted(ctx, ev)
	case KindSessionEnded:
		l.SessionEnded(ctx, ev)
	case KindProjectSkipped:
		l.ProjectSkipped(ctx, ev)
	case KindProjectStarted:
		l.ProjectStarted(ctx, ev)
	case KindProjectSucceeded:
		l.ProjectSucceeded(ctx, ev)
	case KindProjectFailed:
		l.ProjectFailed(ctx, ev)
	case KindStepSkipped:
		l.StepSkipped(ctx, ev)
	case KindStepStarted:
		l.StepStarted(ctx, ev)
	case KindStepSucceeded:
		l.StepSucceeded(ctx, ev)
	case KindStepFailed:
		l.StepFailed(ctx, ev)
	case KindForkStarted:
		l.ForkStarted(ctx, ev)
	case KindForkSucceeded:
		l.ForkSucceeded(ctx, ev)
	case KindForkFailed:
		l.ForkFailed(ctx, ev)
	case KindForkedProjectStarted:
		l.ForkedProjectStarted(ctx, ev)
	case KindForkedProjectSucceeded:
		l.ForkedProjectSucceeded(ctx, ev)
	case KindForkedProjectFailed:
		l.ForkedProjectFailed(ctx, ev)
	}
	return nil
}
