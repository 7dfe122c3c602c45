// Package launcher runs or replays a build and feeds its execution events to
// a listener.
package launcher

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"

	"git.home.luguber.info/inful/buildbridge/internal/execevent"
	"git.home.luguber.info/inful/buildbridge/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbridge/internal/logfields"
)

var (
	ErrCommandNotFound = stderrors.New("build command not found")
	ErrLaunchFailed    = stderrors.New("build launch failed")
	ErrEventStream     = stderrors.New("event stream failed")
)

// launchError classifies err as a launch failure. Both sentinel and err stay
// reachable through errors.Is.
func launchError(sentinel, err error) error {
	return errors.LaunchError(sentinel.Error()).
		WithCause(fmt.Errorf("%w: %w", sentinel, err)).
		Build()
}

// Outcome is what the build tool reported once it finished.
type Outcome struct {
	ExitCode int
	// Failures are the aggregate failures the tool recorded, independent of
	// its exit code.
	Failures    []error
	ToolVersion string
}

// Launcher runs one build. The returned error is reserved for failures to run
// the build at all; a failed build is reported through the Outcome.
type Launcher interface {
	Launch(ctx context.Context, goals []string, l execevent.Listener) (Outcome, error)
}

// pump decodes events until the stream ends and dispatches each to l.
// Malformed records are logged and skipped. stop, when set, ends the stream
// after the event it returns true for.
func pump(ctx context.Context, dec *execevent.Decoder, l execevent.Listener, stop func(execevent.Event) bool) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ev, err := dec.Decode()
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		if stderrors.Is(err, execevent.ErrMalformedRecord) {
			slog.Warn("Skipping malformed event record", logfields.Error(err))
			continue
		}
		if err != nil {
			return err
		}
		if err := execevent.Dispatch(ctx, l, ev); err != nil {
			slog.Warn("Skipping invalid event", logfields.Event(string(ev.Kind)), logfields.Error(err))
			continue
		}
		if stop != nil && stop(ev) {
			return nil
		}
	}
}

func outcomeOf(dec *execevent.Decoder, exitCode int) Outcome {
	return Outcome{
		ExitCode:    exitCode,
		Failures:    dec.Failures(),
		ToolVersion: dec.Capabilities().Version(),
	}
}
