package launcher

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/buildbridge/internal/execevent"
	"git.home.luguber.info/inful/buildbridge/internal/logfields"
)

const defaultPollInterval = time.Second

// Replay feeds a recorded event file to the listener. With Follow set it
// keeps reading as the file grows, until a sessionEnded event arrives or the
// context ends.
type Replay struct {
	Path   string
	Follow bool
	// PollInterval rechecks the file in follow mode when no change
	// notification arrives. Defaults to one second.
	PollInterval time.Duration
	Output       io.Writer
}

var _ Launcher = (*Replay)(nil)

// Launch ignores goals; the recording already contains the build.
func (r *Replay) Launch(ctx context.Context, _ []string, l execevent.Listener) (Outcome, error) {
	f, err := os.Open(r.Path)
	if err != nil {
		return Outcome{}, launchError(ErrLaunchFailed, err)
	}
	defer func() { _ = f.Close() }()

	var src io.Reader = f
	var ended atomic.Bool
	if r.Follow {
		t, err := newTail(ctx, f, r.Path, r.PollInterval, ended.Load)
		if err != nil {
			return Outcome{}, launchError(ErrLaunchFailed, err)
		}
		defer t.close()
		src = t
	}

	dec := execevent.NewDecoder(src)
	dec.Passthrough = r.Output
	err = pump(ctx, dec, l, func(ev execevent.Event) bool {
		if ev.Kind != execevent.KindSessionEnded {
			return false
		}
		ended.Store(true)
		return r.Follow
	})
	outcome := outcomeOf(dec, 0)
	if err != nil {
		return outcome, launchError(ErrEventStream, err)
	}
	return outcome, nil
}

// tail is a reader that waits for more data at end of file instead of
// returning io.EOF, until done reports true.
type tail struct {
	ctx     context.Context
	f       *os.File
	name    string
	watcher *fsnotify.Watcher
	poll    time.Duration
	done    func() bool
}

func newTail(ctx context.Context, f *os.File, path string, poll time.Duration, done func() bool) (*tail, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to resolve event file path: %w", err)
	}
	// Watch the directory; editors and writers may replace the file.
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(abs), err)
	}
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &tail{ctx: ctx, f: f, name: filepath.Base(abs), watcher: watcher, poll: poll, done: done}, nil
}

func (t *tail) Read(p []byte) (int, error) {
	for {
		n, err := t.f.Read(p)
		if n > 0 || (err != nil && err != io.EOF) {
			return n, err
		}
		if t.done() {
			return 0, io.EOF
		}
		if err := t.wait(); err != nil {
			return 0, err
		}
	}
}

// wait blocks until the file may have grown.
func (t *tail) wait() error {
	timer := time.NewTimer(t.poll)
	defer timer.Stop()
	for {
		select {
		case <-t.ctx.Done():
			return t.ctx.Err()
		case <-timer.C:
			return nil
		case event, ok := <-t.watcher.Events:
			if !ok {
				return io.EOF
			}
			if filepath.Base(event.Name) != t.name {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) != 0 {
				return nil
			}
		case err, ok := <-t.watcher.Errors:
			if !ok {
				return io.EOF
			}
			slog.Warn("Event file watcher error", logfields.Path(t.name), logfields.Error(err))
		}
	}
}

func (t *tail) close() {
	if err := t.watcher.Close(); err != nil {
		slog.Debug("Error closing event file watcher", logfields.Error(err))
	}
}
