package eventstore

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/buildbridge/internal/module"
)

var (
	coreModule = module.NewName("org.acme", "core", "1.0")
	webModule  = module.NewName("org.acme", "web", "1.0")
)

func mustEvent[T Event](t *testing.T) func(T, error) T {
	return func(ev T, err error) T {
		t.Helper()
		require.NoError(t, err)
		return ev
	}
}

func buildEvents(t *testing.T, buildID string, start time.Time) []Event {
	t.Helper()
	step := module.NewExecutedStep(module.StepInfo{ArtifactID: "maven-compiler-plugin", Goal: "compile"}, 120*time.Millisecond, module.StepSucceeded)
	return []Event{
		mustEvent[*BuildStarted](t)(NewBuildStarted(buildID, BuildStartedMeta{Goals: []string{"install"}, Revision: "abc123", Modules: []module.Name{coreModule, webModule}}, start)),
		mustEvent[*ModuleStarted](t)(NewModuleStarted(buildID, webModule, start)),
		mustEvent[*ModuleResultSet](t)(NewModuleResultSet(buildID, webModule, module.ResultNotBuilt, start)),
		mustEvent[*ModuleEnded](t)(NewModuleEnded(buildID, webModule, start)),
		mustEvent[*ModuleStarted](t)(NewModuleStarted(buildID, coreModule, start.Add(time.Second))),
		mustEvent[*ExecutedStepsUpdated](t)(NewExecutedStepsUpdated(buildID, coreModule, []module.ExecutedStep{step}, start.Add(2*time.Second))),
		mustEvent[*ModuleResultSet](t)(NewModuleResultSet(buildID, coreModule, module.ResultFailure, start.Add(3*time.Second))),
		mustEvent[*ModuleEnded](t)(NewModuleEnded(buildID, coreModule, start.Add(3*time.Second))),
		mustEvent[*BuildCompleted](t)(NewBuildCompleted(buildID, BuildCompletedMeta{Result: module.ResultFailure, Duration: 4 * time.Second}, start.Add(4*time.Second))),
	}
}

func TestModuleStateProjectionApply(t *testing.T) {
	p := NewModuleStateProjection(newMemoryStore(t), 10)
	start := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

	events := buildEvents(t, testBuildID, start)
	for _, ev := range events[:5] {
		p.Apply(ev)
	}

	build, ok := p.GetBuild(testBuildID)
	require.True(t, ok)
	assert.Equal(t, "running", build.Status)
	assert.Equal(t, "abc123", build.Revision)
	assert.Equal(t, module.StateNotBuilt, build.Modules[webModule].State)
	assert.Equal(t, module.StateStarted, build.Modules[coreModule].State)

	for _, ev := range events[5:] {
		p.Apply(ev)
	}

	core, ok := p.GetModule(testBuildID, coreModule)
	require.True(t, ok)
	assert.Equal(t, module.StateFailed, core.State)
	assert.Equal(t, module.ResultFailure, core.Result)
	require.Len(t, core.Steps, 1)
	assert.Equal(t, 120*time.Millisecond, core.Steps[0].Elapsed)
	require.NotNil(t, core.EndedAt)

	build, _ = p.GetBuild(testBuildID)
	assert.Equal(t, "completed", build.Status)
	assert.Equal(t, module.ResultFailure, build.Result)
	list := build.ModuleList()
	require.Len(t, list, 2)
	assert.Equal(t, coreModule, list[0].Module)
}

func TestModuleStateProjectionRebuild(t *testing.T) {
	store := newMemoryStore(t)
	ctx := t.Context()
	start := time.Now().Add(-time.Minute).Truncate(time.Millisecond)
	for _, ev := range buildEvents(t, testBuildID, start) {
		require.NoError(t, AppendEvent(ctx, store, ev))
	}

	p := NewModuleStateProjection(store, 10)
	require.NoError(t, p.Rebuild(ctx))
	assert.False(t, p.LastSyncTime().IsZero())

	web, ok := p.GetModule(testBuildID, webModule)
	require.True(t, ok)
	assert.Equal(t, module.StateNotBuilt, web.State)
	_, ok = p.GetModule("missing", webModule)
	assert.False(t, ok)
}

func TestProjectionCopiesAreIsolated(t *testing.T) {
	p := NewModuleStateProjection(newMemoryStore(t), 10)
	for _, ev := range buildEvents(t, testBuildID, time.Now()) {
		p.Apply(ev)
	}
	build, _ := p.GetBuild(testBuildID)
	build.Modules[coreModule].State = module.StateSucceeded

	again, _ := p.GetBuild(testBuildID)
	assert.Equal(t, module.StateFailed, again.Modules[coreModule].State)
}

func TestProjectionPrunesOldestCompleted(t *testing.T) {
	p := NewModuleStateProjection(newMemoryStore(t), 2)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"b1", "b2", "b3"} {
		for _, ev := range buildEvents(t, id, base.Add(time.Duration(i)*time.Hour)) {
			p.Apply(ev)
		}
	}

	history := p.GetHistory()
	require.Len(t, history, 2)
	assert.Equal(t, "b3", history[0].BuildID)
	assert.Equal(t, "b2", history[1].BuildID)
}
