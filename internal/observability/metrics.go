package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kjstillabower/surfsup-climate-api/internal/models"
	"github.com/kjstillabower/surfsup-climate-api/internal/traffic"
)

var (
	registry *prometheus.Registry

	// HTTP request rate. Watch for: sudden drops (service down) or spikes (traffic surge).
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTP request latency per request. Watch for: p95/p99 latency increases.
	HTTPRequestDuration *prometheus.HistogramVec

	// Concurrent requests in flight. Watch for: saturation.
	HTTPRequestsInFlight prometheus.Gauge

	// Queries issued to the data source, by query name and status (success, error, no_data).
	DataSourceQueriesTotal *prometheus.CounterVec

	// Data source latency per query. SQLite on local disk should stay well under 100ms.
	DataSourceQueryDuration *prometheus.HistogramVec

	// Path parameters rejected with 400, by route template.
	ValidationFailuresTotal *prometheus.CounterVec

	// Handler panics turned into 500s.
	PanicsRecoveredTotal prometheus.Counter

	// Rate limit denials. Watch for: overload, capacity exceeded.
	RateLimitDeniedTotal prometheus.Counter

	// Requests that joined an identical in-flight query instead of issuing their own.
	CoalescedQueriesTotal *prometheus.CounterVec

	// Auto-recovery attempts after an error-rate breach, by result (recovered, failed, exhausted).
	RecoveryAttemptsTotal *prometheus.CounterVec

	// Dataset size, set once at startup.
	DatasetMeasurementRows prometheus.Gauge
	DatasetStationRows     prometheus.Gauge

	rateLimitGaugesOnce sync.Once
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
	DataSourceQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dataSourceQueriesTotal",
			Help: "Total number of data source queries",
		},
		[]string{"query", "status"},
	)
	DataSourceQueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dataSourceQueryDurationSeconds",
			Help:    "Data source query latency in seconds",
			Buckets: []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"query"},
	)
	ValidationFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "validationFailuresTotal",
			Help: "Requests rejected with 400 because of malformed path parameters",
		},
		[]string{"route"},
	)
	PanicsRecoveredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "panicsRecoveredTotal",
			Help: "Handler panics recovered and answered with 500",
		},
	)
	RateLimitDeniedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rateLimitDeniedTotal",
			Help: "Total number of requests denied by rate limiter (429)",
		},
	)
	DatasetMeasurementRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "datasetMeasurementRows",
			Help: "Rows in the measurement table at startup",
		},
	)
	DatasetStationRows = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "datasetStationRows",
			Help: "Rows in the station table at startup",
		},
	)

	CoalescedQueriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coalescedQueriesTotal",
			Help: "Requests served by joining an identical in-flight query",
		},
		[]string{"query"},
	)
	RecoveryAttemptsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recoveryAttemptsTotal",
			Help: "Degraded-state recovery attempts by result",
		},
		[]string{"result"},
	)

	registry.MustRegister(
		CoalescedQueriesTotal, RecoveryAttemptsTotal,
		HTTPRequestsTotal, HTTPRequestDuration, HTTPRequestsInFlight,
		DataSourceQueriesTotal, DataSourceQueryDuration,
		ValidationFailuresTotal, PanicsRecoveredTotal, RateLimitDeniedTotal,
		DatasetMeasurementRows, DatasetStationRows,
	)
}

// RegisterRateLimitGauges registers load and rejects gauges for the rate-limited path.
// Call from main after config load with cfg.OverloadWindow.
func RegisterRateLimitGauges(window time.Duration) {
	rateLimitGaugesOnce.Do(func() {
		registry.MustRegister(
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRequestsInWindow",
					Help: "Requests hitting rate-limited path in sliding window; load/capacity planning",
				},
				func() float64 { return float64(traffic.RequestCount(window)) },
			),
			prometheus.NewGaugeFunc(
				prometheus.GaugeOpts{
					Name: "rateLimitRejectsInWindow",
					Help: "429 responses in sliding window; are we rejecting requests",
				},
				func() float64 { return float64(traffic.DenialCount(window)) },
			),
		)
	})
}

// SetDatasetSummary publishes the dataset row counts.
func SetDatasetSummary(s models.DatasetSummary) {
	DatasetMeasurementRows.Set(float64(s.MeasurementRows))
	DatasetStationRows.Set(float64(s.StationRows))
}

// MetricsHandler returns an http.Handler that serves application and runtime metrics.
func MetricsHandler() http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
