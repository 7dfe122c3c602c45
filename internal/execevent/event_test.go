package execevent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildbridge/internal/module"
)

type recordingListener struct {
	calls []string
}

func (r *recordingListener) rec(name string) { r.calls = append(r.calls, name) }

func (r *recordingListener) DiscoveryStarted(context.Context, Event)       { r.rec("DiscoveryStarted") }
func (r *recordingListener) SessionStarted(context.Context, Event)         { r.rec("SessionStarted") }
func (r *recordingListener) SessionEnded(context.Context, Event)           { r.rec("SessionEnded") }
func (r *recordingListener) ProjectSkipped(context.Context, Event)         { r.rec("ProjectSkipped") }
func (r *recordingListener) ProjectStarted(context.Context, Event)         { r.rec("ProjectStarted") }
func (r *recordingListener) ProjectSucceeded(context.Context, Event)       { r.rec("ProjectSucceeded") }
func (r *recordingListener) ProjectFailed(context.Context, Event)          { r.rec("ProjectFailed") }
func (r *recordingListener) StepSkipped(context.Context, Event)            { r.rec("StepSkipped") }
func (r *recordingListener) StepStarted(context.Context, Event)            { r.rec("StepStarted") }
func (r *recordingListener) StepSucceeded(context.Context, Event)          { r.rec("StepSucceeded") }
func (r *recordingListener) StepFailed(context.Context, Event)             { r.rec("StepFailed") }
func (r *recordingListener) ForkStarted(context.Context, Event)            { r.rec("ForkStarted") }
func (r *recordingListener) ForkSucceeded(context.Context, Event)          { r.rec("ForkSucceeded") }
func (r *recordingListener) ForkFailed(context.Context, Event)             { r.rec("ForkFailed") }
func (r *recordingListener) ForkedProjectStarted(context.Context, Event)   { r.rec("ForkedProjectStarted") }
func (r *recordingListener) ForkedProjectSucceeded(context.Context, Event) { r.rec("ForkedProjectSucceeded") }
func (r *recordingListener) ForkedProjectFailed(context.Context, Event)    { r.rec("ForkedProjectFailed") }

func sampleEvent(k Kind) Event {
	ev := Event{Kind: k}
	if k.NeedsProject() {
		ev.Project = &module.Project{Name: module.NewName("g", "a", "1")}
	}
	if k.NeedsStep() {
		ev.Step = &module.StepInfo{ArtifactID: "p", Version: "1", Goal: "g", ExecutionID: "e"}
	}
	return ev
}

func TestDispatchRoutesEveryKind(t *testing.T) {
	l := &recordingListener{}
	for _, k := range Kinds() {
		require.NoError(t, Dispatch(t.Context(), l, sampleEvent(k)))
	}
	require.Len(t, l.calls, len(Kinds()))
	for i, k := range Kinds() {
		assert.Equal(t, string(k), lowerFirst(l.calls[i]))
	}
}

func lowerFirst(s string) string {
	return string(s[0]+('a'-'A')) + s[1:]
}

func TestDispatchRejectsInvalidEvents(t *testing.T) {
	l := &recordingListener{}
	require.Error(t, Dispatch(t.Context(), l, Event{Kind: "mojoExploded"}))
	require.Error(t, Dispatch(t.Context(), l, Event{Kind: KindProjectStarted}))
	require.Error(t, Dispatch(t.Context(), l, Event{Kind: KindStepStarted, Project: &module.Project{}}))
	assert.Empty(t, l.calls)
}

func TestKindPredicates(t *testing.T) {
	assert.True(t, KindForkFailed.Forked())
	assert.True(t, KindForkedProjectStarted.Forked())
	assert.False(t, KindStepFailed.Forked())
	assert.True(t, KindForkFailed.Failed())
	assert.False(t, KindStepSkipped.Failed())
	assert.False(t, KindSessionEnded.NeedsProject())
	assert.True(t, KindProjectSkipped.NeedsProject())
	assert.False(t, KindProjectFailed.NeedsStep())
}

func TestEventString(t *testing.T) {
	ev := sampleEvent(KindStepStarted)
	assert.Equal(t, "stepStarted g:a:1 p:1:g (e)", ev.String())
	name, ok := ev.Module()
	assert.True(t, ok)
	assert.Equal(t, "a", name.ArtifactID)
	_, ok = Event{Kind: KindSessionEnded}.Module()
	assert.False(t, ok)
}
