package module

import (
	"fmt"
	"time"
)

// StepInfo identifies one step (plugin goal execution) of a module build.
type StepInfo struct {
	GroupID     string `json:"groupId"`
	ArtifactID  string `json:"artifactId"`
	Version     string `json:"version"`
	Goal        string `json:"goal"`
	ExecutionID string `json:"executionId"`
}

// String renders the step as artifact:version:goal (executionId).
func (s StepInfo) String() string {
	return fmt.Sprintf("%s:%s:%s (%s)", s.ArtifactID, s.Version, s.Goal, s.ExecutionID)
}

// Key is a stable low-cardinality label for metrics (artifact:goal).
func (s StepInfo) Key() string {
	return s.ArtifactID + ":" + s.Goal
}

// StepOutcome marks how a step finished.
type StepOutcome string

const (
	StepSucceeded StepOutcome = "success"
	StepFailed    StepOutcome = "failure"
)

// ExecutedStep is the immutable record of one completed step.
type ExecutedStep struct {
	Step    StepInfo      `json:"step"`
	Elapsed time.Duration `json:"elapsed"`
	Outcome StepOutcome   `json:"outcome"`
}

// NewExecutedStep builds a record, clamping negative durations to zero.
func NewExecutedStep(step StepInfo, elapsed time.Duration, outcome StepOutcome) ExecutedStep {
	if elapsed < 0 {
		elapsed = 0
	}
	return ExecutedStep{Step: step, Elapsed: elapsed, Outcome: outcome}
}

// Failed reports whether the step ended in failure.
func (e ExecutedStep) Failed() bool {
	return e.Outcome == StepFailed
}
