package launcher

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildbridge/internal/execevent"
	dberrors "git.home.luguber.info/inful/buildbridge/internal/foundation/errors"
	"git.home.luguber.info/inful/buildbridge/internal/module"
)

type listener struct {
	mu     sync.Mutex
	events []execevent.Event
}

func (l *listener) add(ev execevent.Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *listener) kinds() []execevent.Kind {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]execevent.Kind, 0, len(l.events))
	for _, ev := range l.events {
		out = append(out, ev.Kind)
	}
	return out
}

func (l *listener) DiscoveryStarted(_ context.Context, ev execevent.Event)       { l.add(ev) }
func (l *listener) SessionStarted(_ context.Context, ev execevent.Event)         { l.add(ev) }
func (l *listener) SessionEnded(_ context.Context, ev execevent.Event)           { l.add(ev) }
func (l *listener) ProjectSkipped(_ context.Context, ev execevent.Event)         { l.add(ev) }
func (l *listener) ProjectStarted(_ context.Context, ev execevent.Event)         { l.add(ev) }
func (l *listener) ProjectSucceeded(_ context.Context, ev execevent.Event)       { l.add(ev) }
func (l *listener) ProjectFailed(_ context.Context, ev execevent.Event)          { l.add(ev) }
func (l *listener) StepSkipped(_ context.Context, ev execevent.Event)            { l.add(ev) }
func (l *listener) StepStarted(_ context.Context, ev execevent.Event)            { l.add(ev) }
func (l *listener) StepSucceeded(_ context.Context, ev execevent.Event)          { l.add(ev) }
func (l *listener) StepFailed(_ context.Context, ev execevent.Event)             { l.add(ev) }
func (l *listener) ForkStarted(_ context.Context, ev execevent.Event)            { l.add(ev) }
func (l *listener) ForkSucceeded(_ context.Context, ev execevent.Event)          { l.add(ev) }
func (l *listener) ForkFailed(_ context.Context, ev execevent.Event)             { l.add(ev) }
func (l *listener) ForkedProjectStarted(_ context.Context, ev execevent.Event)   { l.add(ev) }
func (l *listener) ForkedProjectSucceeded(_ context.Context, ev execevent.Event) { l.add(ev) }
func (l *listener) ForkedProjectFailed(_ context.Context, ev execevent.Event)    { l.add(ev) }

var core = module.Project{Name: module.NewName("org.example", "core", "1.0")}

func recording(t *testing.T, withFailure bool) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := execevent.NewEncoder(&buf)
	require.NoError(t, enc.EncodeToolInfo("3.9.6"))
	require.NoError(t, enc.Encode(execevent.Event{Kind: execevent.KindSessionStarted, Projects: []module.Project{core}}))
	require.NoError(t, enc.Encode(execevent.Event{Kind: execevent.KindProjectStarted, Project: &core}))
	buf.WriteString("[INFO] compiling\n")
	buf.WriteString(`{"type":"projectSucceeded"}` + "\n")
	require.NoError(t, enc.Encode(execevent.Event{Kind: execevent.KindProjectSucceeded, Project: &core}))
	if withFailure {
		require.NoError(t, enc.EncodeBuildFailure(errors.New("deploy failed")))
	}
	require.NoError(t, enc.Encode(execevent.Event{Kind: execevent.KindSessionEnded}))
	return buf.Bytes()
}

func TestReplayFeedsRecordedEvents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	require.NoError(t, os.WriteFile(path, recording(t, true), 0o600))

	var plain bytes.Buffer
	l := &listener{}
	out, err := (&Replay{Path: path, Output: &plain}).Launch(t.Context(), nil, l)
	require.NoError(t, err)

	assert.Equal(t, []execevent.Kind{
		execevent.KindSessionStarted, execevent.KindProjectStarted,
		execevent.KindProjectSucceeded, execevent.KindSessionEnded,
	}, l.kinds(), "the malformed record is skipped")
	assert.Equal(t, 0, out.ExitCode)
	assert.Equal(t, "3.9.6", out.ToolVersion)
	require.Len(t, out.Failures, 1)
	assert.EqualError(t, out.Failures[0], "deploy failed")
	assert.Equal(t, "[INFO] compiling\n", plain.String())
}

func TestReplayMissingFile(t *testing.T) {
	_, err := (&Replay{Path: filepath.Join(t.TempDir(), "nope")}).Launch(t.Context(), nil, &listener{})
	require.ErrorIs(t, err, ErrLaunchFailed)
	require.ErrorIs(t, err, os.ErrNotExist)
	assert.True(t, dberrors.HasCategory(err, dberrors.CategoryLaunch))
}

func TestReplayFollowWaitsForSessionEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	full := recording(t, false)
	split := bytes.Index(full, []byte(`{"type":"projectStarted"`))
	require.Positive(t, split)
	require.NoError(t, os.WriteFile(path, full[:split], 0o600))

	go func() {
		time.Sleep(100 * time.Millisecond)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o600)
		if err != nil {
			return
		}
		defer func() { _ = f.Close() }()
		_, _ = f.Write(full[split:])
	}()

	ctx, cancel := context.WithTimeout(t.Context(), 10*time.Second)
	defer cancel()
	l := &listener{}
	_, err := (&Replay{Path: path, Follow: true, PollInterval: 20 * time.Millisecond}).Launch(ctx, nil, l)
	require.NoError(t, err)
	assert.Equal(t, execevent.KindSessionEnded, l.kinds()[len(l.kinds())-1])
	assert.Len(t, l.kinds(), 4)
}

func TestReplayFollowStopsOnCancel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "events.ndjson")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	ctx, cancel := context.WithTimeout(t.Context(), 100*time.Millisecond)
	defer cancel()
	_, err := (&Replay{Path: path, Follow: true, PollInterval: 10 * time.Millisecond}).Launch(ctx, nil, &listener{})
	require.ErrorIs(t, err, ErrEventStream)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProcessReadsEventsAndExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "events.ndjson")
	require.NoError(t, os.WriteFile(path, recording(t, false), 0o600))

	var plain bytes.Buffer
	l := &listener{}
	p := &Process{Command: []string{"sh", "-c", `cat "$0"; exit 3`}, Output: &plain}
	out, err := p.Launch(t.Context(), []string{path}, l)
	require.NoError(t, err)
	assert.Equal(t, 3, out.ExitCode)
	assert.Len(t, l.kinds(), 4)
	assert.Contains(t, plain.String(), "[INFO] compiling")
}

func TestProcessCommandNotFound(t *testing.T) {
	p := &Process{Command: []string{"buildbridge-no-such-command"}}
	_, err := p.Launch(t.Context(), nil, &listener{})
	require.ErrorIs(t, err, ErrCommandNotFound)
	assert.True(t, dberrors.HasCategory(err, dberrors.CategoryLaunch))
	assert.Equal(t, 11, dberrors.NewCLIErrorAdapter(false, nil).ExitCodeFor(err))
}

func TestProcessWithoutCommand(t *testing.T) {
	_, err := (&Process{}).Launch(t.Context(), nil, &listener{})
	require.Error(t, err)
}
