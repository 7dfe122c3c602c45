package metrics

import (
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "buildbridge"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	once           sync.Once
	stepDuration   *prom.HistogramVec
	moduleOutcomes *prom.CounterVec
	hookFailures   *prom.CounterVec
	proxyDuration  *prom.HistogramVec
	proxyRetries   *prom.CounterVec
	overhead       prom.Gauge
	asyncOutcomes  *prom.CounterVec
	buildDuration  prom.Histogram
	buildOutcomes  *prom.CounterVec
}

// NewPrometheusRecorder constructs and registers Prometheus metrics (idempotent).
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{}
	pr.once.Do(func() {
		pr.stepDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of executed build steps by plugin goal",
			Buckets:   prom.ExponentialBuckets(0.01, 2, 14),
		}, []string{"step", "outcome"})
		pr.moduleOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "module_outcomes_total",
			Help:      "Module build results",
		}, []string{"result"})
		pr.hookFailures = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "reporter_hook_failures_total",
			Help:      "Reporter hook invocations that returned an error",
		}, []string{"hook"})
		pr.proxyDuration = prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "proxy_call_duration_seconds",
			Help:      "Duration of module build proxy calls",
			Buckets:   prom.DefBuckets,
		}, []string{"op", "outcome"})
		pr.proxyRetries = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "proxy_retries_total",
			Help:      "Proxy transport retries after transient failures",
		}, []string{"op"})
		pr.overhead = prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "bridge_overhead_seconds",
			Help:      "Time spent inside the event bridge for the last build",
		})
		pr.asyncOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "async_work_total",
			Help:      "Asynchronous work items by outcome",
		}, []string{"outcome"})
		pr.buildDuration = prom.NewHistogram(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "build_duration_seconds",
			Help:      "Total build duration",
			Buckets:   prom.ExponentialBuckets(1, 2, 12),
		})
		pr.buildOutcomes = prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "build_outcomes_total",
			Help:      "Build outcomes by final result",
		}, []string{"result"})
		reg.MustRegister(pr.stepDuration, pr.moduleOutcomes, pr.hookFailures, pr.proxyDuration,
			pr.proxyRetries, pr.overhead, pr.asyncOutcomes, pr.buildDuration, pr.buildOutcomes)
	})
	return pr
}

func (p *PrometheusRecorder) ObserveStepDuration(step string, outcome OutcomeLabel, d time.Duration) {
	if p == nil || p.stepDuration == nil {
		return
	}
	p.stepDuration.WithLabelValues(step, string(outcome)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncModuleOutcome(result string) {
	if p == nil || p.moduleOutcomes == nil {
		return
	}
	p.moduleOutcomes.WithLabelValues(result).Inc()
}

func (p *PrometheusRecorder) IncHookFailure(hook string) {
	if p == nil || p.hookFailures == nil {
		return
	}
	p.hookFailures.WithLabelValues(hook).Inc()
}

func (p *PrometheusRecorder) ObserveProxyCall(op string, d time.Duration, outcome OutcomeLabel) {
	if p == nil || p.proxyDuration == nil {
		return
	}
	p.proxyDuration.WithLabelValues(op, string(outcome)).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncProxyRetry(op string) {
	if p == nil || p.proxyRetries == nil {
		return
	}
	p.proxyRetries.WithLabelValues(op).Inc()
}

func (p *PrometheusRecorder) SetBridgeOverhead(d time.Duration) {
	if p == nil || p.overhead == nil {
		return
	}
	p.overhead.Set(d.Seconds())
}

func (p *PrometheusRecorder) IncAsyncOutcome(outcome OutcomeLabel) {
	if p == nil || p.asyncOutcomes == nil {
		return
	}
	p.asyncOutcomes.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveBuildDuration(d time.Duration) {
	if p == nil || p.buildDuration == nil {
		return
	}
	p.buildDuration.Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncBuildOutcome(result string) {
	if p == nil || p.buildOutcomes == nil {
		return
	}
	p.buildOutcomes.WithLabelValues(result).Inc()
}
