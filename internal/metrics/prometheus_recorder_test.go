package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.ObserveStepDuration("maven-compiler-plugin:compile", OutcomeSuccess, 150*time.Millisecond)
	pr.IncModuleOutcome("SUCCESS")
	pr.IncModuleOutcome("FAILURE")
	pr.IncHookFailure("postBuild")
	pr.ObserveProxyCall("start", 2*time.Millisecond, OutcomeSuccess)
	pr.IncProxyRetry("start")
	pr.SetBridgeOverhead(40 * time.Millisecond)
	pr.IncAsyncOutcome(OutcomeFailure)
	pr.ObserveBuildDuration(3 * time.Second)
	pr.IncBuildOutcome("SUCCESS")

	mfs, err := reg.Gather()
	require.NoError(t, err)
	assert.Len(t, mfs, 9)

	byName := map[string]float64{}
	for _, mf := range mfs {
		m := mf.GetMetric()[0]
		switch {
		case m.GetCounter() != nil:
			byName[mf.GetName()] = m.GetCounter().GetValue()
		case m.GetGauge() != nil:
			byName[mf.GetName()] = m.GetGauge().GetValue()
		}
	}
	assert.InDelta(t, 1, byName["buildbridge_reporter_hook_failures_total"], 0)
	assert.InDelta(t, 0.04, byName["buildbridge_bridge_overhead_seconds"], 1e-9)
}

func TestNilPrometheusRecorderIsSafe(t *testing.T) {
	var pr *PrometheusRecorder
	assert.NotPanics(t, func() {
		pr.IncHookFailure("preBuild")
		pr.SetBridgeOverhead(time.Second)
		pr.ObserveProxyCall("end", time.Millisecond, OutcomeFailure)
	})
}

func TestHTTPHandlerServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	NewPrometheusRecorder(reg).IncBuildOutcome("FAILURE")

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `buildbridge_build_outcomes_total{result="FAILURE"} 1`)
}

func TestOutcomeHelpers(t *testing.T) {
	assert.Equal(t, OutcomeSuccess, OutcomeOf(nil))
	assert.Equal(t, OutcomeFailure, OutcomeOf(errors.New("x")))
	assert.IsType(t, NoopRecorder{}, OrNoop(nil))
}
