package metrics

import "time"

// OutcomeLabel enumerates step, proxy and async work outcome categories for counters.
type OutcomeLabel string

const (
	OutcomeSuccess  OutcomeLabel = "success"
	OutcomeFailure  OutcomeLabel = "failure"
	OutcomeCanceled OutcomeLabel = "canceled"
)

// Recorder defines observability hooks for bridge, proxy and build metrics. Implementations
// may forward to Prometheus. The NoopRecorder is the default so callers never nil-check.
type Recorder interface {
	ObserveStepDuration(step string, outcome OutcomeLabel, d time.Duration)
	IncModuleOutcome(result string)
	IncHookFailure(hook string)
	ObserveProxyCall(op string, d time.Duration, outcome OutcomeLabel)
	IncProxyRetry(op string)
	SetBridgeOverhead(d time.Duration)
	IncAsyncOutcome(outcome OutcomeLabel)
	ObserveBuildDuration(d time.Duration)
	IncBuildOutcome(result string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveStepDuration(string, OutcomeLabel, time.Duration) {}
func (NoopRecorder) IncModuleOutcome(string)                                 {}
func (NoopRecorder) IncHookFailure(string)                                   {}
func (NoopRecorder) ObserveProxyCall(string, time.Duration, OutcomeLabel)    {}
func (NoopRecorder) IncProxyRetry(string)                                    {}
func (NoopRecorder) SetBridgeOverhead(time.Duration)                         {}
func (NoopRecorder) IncAsyncOutcome(OutcomeLabel)                            {}
func (NoopRecorder) ObserveBuildDuration(time.Duration)                      {}
func (NoopRecorder) IncBuildOutcome(string)                                  {}

// OrNoop returns r, or a NoopRecorder when r is nil.
func OrNoop(r Recorder) Recorder {
	if r == nil {
		return NoopRecorder{}
	}
	return r
}

// OutcomeOf maps an error to a success or failure label.
func OutcomeOf(err error) OutcomeLabel {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
