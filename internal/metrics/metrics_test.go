package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/joseph-ayodele/content-engine/internal/llm"
)

var _ llm.CallObserver = (*Metrics)(nil)

func TestMetrics(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.JobSubmitted()
	m.JobStarted()
	m.JobStarted()
	m.JobFinished("completed")
	m.ObserveOracleCall("gpt", llm.OutcomeOK, 120, time.Second)
	m.ObserveOracleCall("gpt", llm.OutcomeRateLimited, 0, time.Millisecond)
	m.ObserveStage("draft", true, 2*time.Second)
	m.InterlinkQuery()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsSubmitted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobsFinished.WithLabelValues("completed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.oracleCalls.WithLabelValues("gpt", llm.OutcomeRateLimited)))
	assert.Equal(t, 120.0, testutil.ToFloat64(m.oracleTokens.WithLabelValues("gpt")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.stageDuration))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.interlinkQueries))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.JobSubmitted()
		m.JobStarted()
		m.JobFinished("failed")
		m.ObserveStage("draft", false, time.Second)
		m.ObserveOracleCall("x", llm.OutcomeError, 0, 0)
		m.InterlinkQuery()
	})
}
