package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/forecast-lab/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes.
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency. Includes the simulated inference wait on /api/predict.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight.
	HTTPRequestsInFlight prometheus.Gauge

	// Forecasts served per model.
	PredictionsTotal *prometheus.CounterVec

	// Time spent inside the engine per model (simulated latency + formula).
	PredictionDuration *prometheus.HistogramVec

	// Failed forecasts by reason (invalid_model, invalid_features, cancelled).
	PredictionErrorsTotal *prometheus.CounterVec

	// Points produced by the series generator.
	HistoryPointsGenerated prometheus.Counter

	// Comparison snapshots created.
	SnapshotsCreatedTotal prometheus.Counter

	// Snapshot cache lookups/stores by outcome. Hit rate = hit/(hit+miss).
	SnapshotCacheRequestsTotal *prometheus.CounterVec

	// Snapshot cache latency by operation and outcome.
	CacheOperationDurationSeconds *prometheus.HistogramVec

	// Snapshot cache failures by category (timeout, connection, breaker_open, unknown).
	CacheErrorsTotal *prometheus.CounterVec

	// Snapshot warming runs, failures and duration.
	SnapshotWarmingTotal           prometheus.Counter
	SnapshotWarmingErrorsTotal     prometheus.Counter
	SnapshotWarmingDurationSeconds prometheus.Histogram

	// Circuit breaker state (0 closed, 1 open, 2 half-open) and transitions.
	CircuitBreakerState       *prometheus.GaugeVec
	CircuitBreakerTransitions *prometheus.CounterVec

	// Rate limit denials.
	RateLimitDeniedTotal prometheus.Counter

	healthGaugesOnce sync.Once
)

func init() {
	registry = prometheus.NewRegistry()

	registry.MustRegister(
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)

	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "httpRequestsTotal",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "statusCode"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "httpRequestDurationSeconds",
			Help:    "HTTP request latency in seconds (per request)",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "httpRequestsInFlight",
			Help: "Number of HTTP requests currently being served",
		},
	)
	PredictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictionsTotal",
			Help: "Total number of forecasts served",
		},
		[]string{"model"},
	)
	PredictionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "predictionLatencySeconds",
			Help:    "Forecast engine latency in seconds, simulated wait included",
			Buckets: []float64{.01, .05, .1, .25, .4, .5, .65, .8, .9, 1, 2.5},
		},
		[]string{"model"},
	)
	PredictionErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "predictionErrorsTotal",
			Help: "Total number of failed forecasts by reason",
		},
		[]string{"reason"},
	)
	HistoryPointsGenerated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "historyPointsGenerated",
			Help: "Total number of synthetic series points generated",
		},
	)
	SnapshotsCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshotsCreatedTotal",
			Help: "Total number of comparison snapshots created",
		},
	)
	SnapshotCacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "snapshotCacheRequestsTotal",
			Help: "Snapshot cache operations by outcome (hit, miss, stored, error)",
		},
		[]string{"op", "result"},
	)
	CacheOperationDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cacheOperationDurationSeconds",
			Help:    "Snapshot cache operation latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .05, .1, .5},
		},
		[]string{"op", "status"},
	)
	CacheErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cacheErrorsTotal",
			Help: "Snapshot cache errors by operation and category",
		},
		[]string{"op", "category"},
	)
	SnapshotWarmingTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshotWarmingTotal",
			Help: "Total number of snapshot warming runs",
		},
	)
	SnapshotWarmingErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "snapshotWarmingErrorsTotal",
			Help: "Total number of snapshot warming runs with at least one failure",
		},
	)
	SnapshotWarmingDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "snapshotWarmingDurationSeconds",
			Help:    "Snapshot warming duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	CircuitBreakerState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuitBreakerState",
			Help: "Circuit breaker state: 0 closed, 1 open, 2 half-open",
		},
		[]string{"component"},
	)
	CircuitBreakerTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuitBreakerTransitionsTotal",
			Help: "Circuit breaker state transitions",
		},
		[]string{"component", "from", "to"},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)

	registry.MustRegister(
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		PredictionsTotal, PredictionDuration, PredictionErrorsTotal,
		HistoryPointsGenerated,
		SnapshotsCreatedTotal, SnapshotCacheRequestsTotal,
		CacheOperationDurationSeconds, CacheErrorsTotal,
		SnapshotWarmingTotal, SnapshotWarmingErrorsTotal, SnapshotWarmingDurationSeconds,
		CircuitBreakerState, CircuitBreakerTransitions,
		RateLimitDeniedTotal,
	)
}

// RegisterHealthGauges exposes the sliding-window traffic counts used by /health.
// Call from main after config load with the overload window.
func RegisterHealthGauges(window time.Duration) {
	healthGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "requestsInWindow",
					Help: "Requests on the rate-limited path in the sliding window",
				},
				func() float64 { return float64(traffic.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in the sliding window",
				},
				func() float64 { return float64(traffic.DenialCount(window)) },
			),
		)
	})
}

// RecordPrediction records a served forecast.
func RecordPrediction(model string, d time.Duration) {
	PredictionsTotal.WithLabelValues(model).Inc()
	PredictionDuration.WithLabelValues(model).Observe(d.Seconds())
}

// RecordPredictionError records a failed forecast.
func RecordPredictionError(reason string) {
	PredictionErrorsTotal.WithLabelValues(reason).Inc()
}

// RecordCircuitBreakerTransition counts a breaker state change and updates the gauge.
func RecordCircuitBreakerTransition(component, from, to string, toValue int) {
	CircuitBreakerTransitions.WithLabelValues(component, from, to).Inc()
	CircuitBreakerState.WithLabelValues(component).Set(float64(toValue))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
