package progress

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"git.home.luguber.info/inful/buildbridge/internal/execevent"
	"git.home.luguber.info/inful/buildbridge/internal/module"
)

func TestLogWritesLifecycleAndSummary(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }

	var out bytes.Buffer
	log := New(&out, WithClock(clock))

	a := module.Project{Name: module.NewName("org.example", "a", "1.0"), DisplayName: "Module A"}
	b := module.Project{Name: module.NewName("org.example", "b", "1.0")}
	step := module.StepInfo{ArtifactID: "maven-compiler-plugin", Version: "3.1", Goal: "compile", ExecutionID: "default-compile"}
	ctx := t.Context()

	log.Observe(ctx, execevent.Event{Kind: execevent.KindSessionStarted, Projects: []module.Project{a, b}})
	log.Observe(ctx, execevent.Event{Kind: execevent.KindProjectStarted, Project: &a})
	log.Observe(ctx, execevent.Event{Kind: execevent.KindStepStarted, Project: &a, Step: &step})
	log.Observe(ctx, execevent.Event{Kind: execevent.KindStepFailed, Project: &a, Step: &step, Exception: errors.New("boom")})
	now = now.Add(1500 * time.Millisecond)
	log.Observe(ctx, execevent.Event{Kind: execevent.KindProjectFailed, Project: &a})
	log.Observe(ctx, execevent.Event{Kind: execevent.KindSessionEnded})

	text := out.String()
	assert.Contains(t, text, "[INFO] Reactor Build Order:")
	assert.Contains(t, text, "[INFO] Building Module A 1.0")
	assert.Contains(t, text, "[INFO] --- maven-compiler-plugin:3.1:compile (default-compile) @ a ---")
	assert.Contains(t, text, "[ERROR] maven-compiler-plugin:3.1:compile (default-compile) @ a failed: boom")
	assert.Contains(t, text, "[INFO] Reactor Summary:")
	assert.Contains(t, text, "Module A ")
	assert.Contains(t, text, "FAILURE [1.500s]")
	assert.Contains(t, text, "org.example:b:1.0")
	assert.Contains(t, text, "NOT BUILT")
}

func TestLogForkMarkers(t *testing.T) {
	var out bytes.Buffer
	log := New(&out)
	a := module.Project{Name: module.NewName("org.example", "a", "1.0")}
	step := module.StepInfo{ArtifactID: "maven-source-plugin", Version: "2.1", Goal: "jar", ExecutionID: "attach"}

	log.Observe(t.Context(), execevent.Event{Kind: execevent.KindForkStarted, Project: &a, Step: &step})
	log.Observe(t.Context(), execevent.Event{Kind: execevent.KindForkSucceeded, Project: &a, Step: &step})

	assert.Contains(t, out.String(), ">>> maven-source-plugin:2.1:jar (attach) @ a >>>")
	assert.Contains(t, out.String(), "<<< maven-source-plugin:2.1:jar (attach) @ a <<<")
}

func TestLogSummaryWithoutModulesIsSilent(t *testing.T) {
	var out bytes.Buffer
	New(&out).Observe(t.Context(), execevent.Event{Kind: execevent.KindSessionEnded})
	assert.Empty(t, out.String())
}
