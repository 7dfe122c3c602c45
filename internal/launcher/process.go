package launcher

import (
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"git.home.luguber.info/inful/buildbridge/internal/execevent"
	"git.home.luguber.info/inful/buildbridge/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbridge/internal/logfields"
)

// Process runs the build tool as a child process. Event records are read
// from its stdout; every other output line goes to Output.
type Process struct {
	Command []string
	Dir     string
	Env     []string
	Output  io.Writer
}

var _ Launcher = (*Process)(nil)

func (p *Process) Launch(ctx context.Context, goals []string, l execevent.Listener) (Outcome, error) {
	if len(p.Command) == 0 {
		return Outcome{}, errors.ConfigError("no build command configured").Build()
	}
	bin, err := exec.LookPath(p.Command[0])
	if err != nil {
		return Outcome{}, launchError(ErrCommandNotFound, err)
	}
	out := p.Output
	if out == nil {
		out = os.Stdout
	}
	// stderr is copied on its own goroutine while the decoder writes stdout lines.
	out = &lockedWriter{w: out}

	args := append(append([]string{}, p.Command[1:]...), goals...)
	// #nosec G204 -- the command comes from the operator's configuration
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Dir = p.Dir
	if len(p.Env) > 0 {
		cmd.Env = append(os.Environ(), p.Env...)
	}
	cmd.Stderr = out
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Outcome{}, launchError(ErrLaunchFailed, err)
	}

	slog.Debug("Launching build", logfields.Path(p.Dir), slog.String("command", strings.Join(append([]string{bin}, args...), " ")))
	if err := cmd.Start(); err != nil {
		return Outcome{}, launchError(ErrLaunchFailed, err)
	}

	dec := execevent.NewDecoder(stdout)
	dec.Passthrough = out
	pumpErr := pump(ctx, dec, l, nil)
	if pumpErr != nil {
		// Keep the child from blocking on a full pipe.
		_, _ = io.Copy(io.Discard, stdout)
	}

	waitErr := cmd.Wait()
	outcome := outcomeOf(dec, 0)
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !stderrors.As(waitErr, &exitErr) {
			return outcome, launchError(ErrLaunchFailed, waitErr)
		}
		outcome.ExitCode = exitErr.ExitCode()
	}
	if pumpErr != nil {
		return outcome, launchError(ErrEventStream, pumpErr)
	}
	return outcome, nil
}

type lockedWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
