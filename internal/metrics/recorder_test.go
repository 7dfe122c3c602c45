package metrics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type countingRecorder struct {
	NoopRecorder
	hookFailures map[string]int
}

func (c *countingRecorder) IncHookFailure(hook string) { c.hookFailures[hook]++ }

func TestEmbeddedNoopRecorder(t *testing.T) {
	c := &countingRecorder{hookFailures: map[string]int{}}
	var r Recorder = c
	r.IncHookFailure("preExecute")
	r.IncHookFailure("preExecute")
	r.ObserveStepDuration("surefire:test", OutcomeFailure, time.Second)

	assert.Equal(t, 2, c.hookFailures["preExecute"])
	assert.Same(t, c, OrNoop(c))
}
