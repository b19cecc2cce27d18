package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecorders(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.RecordRun("incremental", "DONE", 2*time.Second)
	m.RecordRun("incremental", "DONE", time.Second)
	m.RecordQualitative("cached")
	m.RecordProviderRequest("llm-1", "ok", 300*time.Millisecond)
	m.RecordProviderRequest("llm-1", "transient", time.Second)
	m.SetCircuitBreakerState("llm-1", 2)
	m.SetRetryQueueSize(4)
	m.RecordSnapshot(12, time.Unix(1700000000, 0))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.RunsTotal.WithLabelValues("incremental", "DONE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.QualitativeOutcomes.WithLabelValues("cached")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ProviderRequestsTotal.WithLabelValues("llm-1", "transient")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("llm-1")))
	assert.Equal(t, 4.0, testutil.ToFloat64(m.RetryQueueSize))
	assert.Equal(t, 12.0, testutil.ToFloat64(m.RankedTickers))
	assert.Equal(t, 1700000000.0, testutil.ToFloat64(m.LastRunTimestamp))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics

	assert.NotPanics(t, func() {
		m.RecordRun("strict", "FAILED", time.Second)
		m.RecordStage("QUANT_FILTER", time.Millisecond)
		m.RecordSentiment("HERD_RISK")
		m.RecordPriceAlert("BUY")
		m.RecordCircuitBreakerTrip("llm-1")
		m.RecordHTTPRequest("GET", "/health", "200", time.Millisecond)
	})
}

func TestRegistersOncePerRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	assert.Panics(t, func() { New(reg) }, "duplicate registration must be caught")
}
