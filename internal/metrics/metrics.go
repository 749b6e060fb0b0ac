// Package metrics exposes the Prometheus instruments of the content engine.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "content_engine"

// Metrics groups every instrument. A nil *Metrics is valid and records nothing.
type Metrics struct {
	// jobsSubmitted counts accepted submissions.
	jobsSubmitted prometheus.Counter
	// jobsFinished counts terminal jobs. Labels: status (completed, failed)
	jobsFinished *prometheus.CounterVec
	// jobsActive is the number of jobs currently processing.
	jobsActive prometheus.Gauge
	// stageDuration measures pipeline stages. Labels: stage, outcome (ok, error)
	stageDuration *prometheus.HistogramVec
	// oracleCalls counts oracle calls. Labels: oracle, outcome
	oracleCalls *prometheus.CounterVec
	// oracleTokens counts tokens reported by oracles. Labels: oracle
	oracleTokens *prometheus.CounterVec
	// oracleLatency measures oracle call latency. Labels: oracle
	oracleLatency *prometheus.HistogramVec
	// interlinkQueries counts interlink ranking requests.
	interlinkQueries prometheus.Counter
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		jobsSubmitted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "submitted_total",
			Help:      "Total accepted generation jobs",
		}),
		jobsFinished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "finished_total",
			Help:      "Total jobs that reached a terminal status",
		}, []string{"status"}),
		jobsActive: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "jobs",
			Name:      "active",
			Help:      "Jobs currently processing",
		}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120, 300},
		}, []string{"stage", "outcome"}),
		oracleCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "calls_total",
			Help:      "Total generation oracle calls",
		}, []string{"oracle", "outcome"}),
		oracleTokens: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "tokens_total",
			Help:      "Total tokens reported by generation oracles",
		}, []string{"oracle"}),
		oracleLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "oracle",
			Name:      "latency_seconds",
			Help:      "Generation oracle call latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 45, 90, 180},
		}, []string{"oracle"}),
		interlinkQueries: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interlink",
			Name:      "queries_total",
			Help:      "Total interlink ranking queries",
		}),
	}
}

func (m *Metrics) JobSubmitted() {
	if m == nil {
		return
	}
	m.jobsSubmitted.Inc()
}

func (m *Metrics) JobStarted() {
	if m == nil {
		return
	}
	m.jobsActive.Inc()
}

// JobFinished records a terminal status and releases the active slot.
func (m *Metrics) JobFinished(status string) {
	if m == nil {
		return
	}
	m.jobsActive.Dec()
	m.jobsFinished.WithLabelValues(status).Inc()
}

func (m *Metrics) ObserveStage(stage string, ok bool, elapsed time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.stageDuration.WithLabelValues(stage, outcome).Observe(elapsed.Seconds())
}

// ObserveOracleCall implements llm.CallObserver.
func (m *Metrics) ObserveOracleCall(oracle, outcome string, tokens int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.oracleCalls.WithLabelValues(oracle, outcome).Inc()
	if tokens > 0 {
		m.oracleTokens.WithLabelValues(oracle).Add(float64(tokens))
	}
	m.oracleLatency.WithLabelValues(oracle).Observe(elapsed.Seconds())
}

func (m *Metrics) InterlinkQuery() {
	if m == nil {
		return
	}
	m.interlinkQueries.Inc()
}
