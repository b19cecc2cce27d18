package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "alphaterminal"

// durationBuckets cover anything from a cache hit to a long provider call (seconds)
var durationBuckets = []float64{.005, .01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120}

// Metrics holds every Prometheus collector of the service.
// All methods are safe on a nil receiver, which disables recording.
// ⭐ SSOT: metric names and labels are defined here only
type Metrics struct {
	// Runs
	RunsTotal        *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	StageDuration    *prometheus.HistogramVec
	RankedTickers    prometheus.Gauge
	LastRunTimestamp prometheus.Gauge
	RetryQueueSize   prometheus.Gauge

	// Stage outcomes
	QualitativeOutcomes *prometheus.CounterVec
	SentimentLevels     *prometheus.CounterVec
	PriceAlerts         *prometheus.CounterVec

	// External providers
	ProviderRequestsTotal *prometheus.CounterVec
	ProviderDuration      *prometheus.HistogramVec
	CircuitBreakerState   *prometheus.GaugeVec
	CircuitBreakerTrips   *prometheus.CounterVec

	// HTTP
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates and registers all collectors on reg (the default registerer when nil)
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "runs_total",
				Help:      "Ranking runs by mode and final state",
			},
			[]string{"mode", "state"},
		),
		RunDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "run_duration_seconds",
				Help:      "Wall time of ranking runs",
				Buckets:   durationBuckets,
			},
			[]string{"mode"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Wall time of each pipeline stage",
				Buckets:   durationBuckets,
			},
			[]string{"stage"},
		),
		RankedTickers: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "ranked_tickers",
				Help:      "Tickers in the latest snapshot",
			},
		),
		LastRunTimestamp: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "pipeline",
				Name:      "last_snapshot_timestamp_seconds",
				Help:      "Unix time of the latest persisted snapshot",
			},
		),
		RetryQueueSize: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "qualitative",
				Name:      "retry_queue_size",
				Help:      "Tickers waiting for a later analysis pass",
			},
		),

		QualitativeOutcomes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "qualitative",
				Name:      "outcomes_total",
				Help:      "Qualitative assessments by outcome (cached, analyzed, failed, skipped)",
			},
			[]string{"outcome"},
		),
		SentimentLevels: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "sentiment",
				Name:      "classifications_total",
				Help:      "Sentiment classifications by level",
			},
			[]string{"level"},
		),
		PriceAlerts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "pricing",
				Name:      "alerts_total",
				Help:      "Price alerts by recommended action",
			},
			[]string{"action"},
		),

		ProviderRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "requests_total",
				Help:      "External provider requests by result",
			},
			[]string{"provider", "result"},
		),
		ProviderDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "provider",
				Name:      "request_duration_seconds",
				Help:      "External provider request latency",
				Buckets:   durationBuckets,
			},
			[]string{"provider"},
		),
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "circuit_breaker",
				Name:      "state",
				Help:      "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
			},
			[]string{"breaker"},
		),
		CircuitBreakerTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "circuit_breaker",
				Name:      "trips_total",
				Help:      "Times a circuit breaker opened",
			},
			[]string{"breaker"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "HTTP requests served",
			},
			[]string{"method", "route", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request latency",
				Buckets:   durationBuckets,
			},
			[]string{"method", "route"},
		),
	}
}

// RecordRun records a finished run
func (m *Metrics) RecordRun(mode, state string, d time.Duration) {
	if m == nil {
		return
	}
	m.RunsTotal.WithLabelValues(mode, state).Inc()
	m.RunDuration.WithLabelValues(mode).Observe(d.Seconds())
}

// RecordStage records one stage's wall time
func (m *Metrics) RecordStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordSnapshot records a persisted snapshot
func (m *Metrics) RecordSnapshot(ranked int, at time.Time) {
	if m == nil {
		return
	}
	m.RankedTickers.Set(float64(ranked))
	m.LastRunTimestamp.Set(float64(at.Unix()))
}

// SetRetryQueueSize records the retry queue length
func (m *Metrics) SetRetryQueueSize(n int) {
	if m == nil {
		return
	}
	m.RetryQueueSize.Set(float64(n))
}

// RecordQualitative records how an assessment was obtained
func (m *Metrics) RecordQualitative(outcome string) {
	if m == nil {
		return
	}
	m.QualitativeOutcomes.WithLabelValues(outcome).Inc()
}

// RecordSentiment records a sentiment classification
func (m *Metrics) RecordSentiment(level string) {
	if m == nil {
		return
	}
	m.SentimentLevels.WithLabelValues(level).Inc()
}

// RecordPriceAlert records a price alert
func (m *Metrics) RecordPriceAlert(action string) {
	if m == nil {
		return
	}
	m.PriceAlerts.WithLabelValues(action).Inc()
}

// RecordProviderRequest records one external request and its latency
func (m *Metrics) RecordProviderRequest(provider, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderRequestsTotal.WithLabelValues(provider, result).Inc()
	m.ProviderDuration.WithLabelValues(provider).Observe(d.Seconds())
}

// SetCircuitBreakerState sets a breaker's state (0=closed, 1=half-open, 2=open)
func (m *Metrics) SetCircuitBreakerState(breaker string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(breaker).Set(float64(state))
}

// RecordCircuitBreakerTrip records a breaker opening
func (m *Metrics) RecordCircuitBreakerTrip(breaker string) {
	if m == nil {
		return
	}
	m.CircuitBreakerTrips.WithLabelValues(breaker).Inc()
}

// RecordHTTPRequest records a served HTTP request
func (m *Metrics) RecordHTTPRequest(method, route, statusCode string, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(d.Seconds())
}
