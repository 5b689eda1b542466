package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the global metrics container for the HTTP API and the SLO
// analysis engine.
type Metrics struct {
	// HTTP API metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Graph ingestion metrics
	IngestedEdgesTotal   *prometheus.CounterVec
	GraphServiceCount    prometheus.Gauge
	GraphEdgeCount       prometheus.Gauge
	CyclesDetectedTotal  prometheus.Counter

	// Analysis metrics
	ConstraintAnalysisTotal    *prometheus.CounterVec
	ConstraintAnalysisDuration *prometheus.HistogramVec
	UnachievableSLOTotal       *prometheus.CounterVec
	ImpactAnalysisDuration     *prometheus.HistogramVec
	CompositeBoundValue        *prometheus.GaugeVec

	// Telemetry source (C4) metrics
	TelemetryLookupsTotal *prometheus.CounterVec
	TelemetryLookupErrors prometheus.Counter

	// System metrics
	MemoryUsage *prometheus.GaugeVec
	Goroutines  prometheus.Gauge

	// Service info
	ServiceInfo *prometheus.GaugeVec
}

var defaultMetrics *Metrics

// InitMetrics initializes and registers the package-global metrics.
func InitMetrics(namespace, subsystem string) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),

		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests",
				Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"route", "method"},
		),

		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "http_requests_in_flight",
				Help:      "Current number of HTTP requests being processed",
			},
		),

		IngestedEdgesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "ingested_edges_total",
				Help:      "Total number of dependency edges ingested, by source",
			},
			[]string{"source"},
		),

		GraphServiceCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "graph_services",
				Help:      "Current number of services known to the dependency graph",
			},
		),

		GraphEdgeCount: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "graph_edges",
				Help:      "Current number of active dependency edges",
			},
		),

		CyclesDetectedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "cycles_detected_total",
				Help:      "Total number of circular dependency alerts raised",
			},
		),

		ConstraintAnalysisTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "constraint_analysis_total",
				Help:      "Total number of constraint analyses run, by outcome",
			},
			[]string{"outcome"},
		),

		ConstraintAnalysisDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "constraint_analysis_duration_seconds",
				Help:      "Duration of constraint analysis runs",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"service"},
		),

		UnachievableSLOTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "unachievable_slo_total",
				Help:      "Total number of unachievable SLO targets detected, by risk level",
			},
			[]string{"risk_level"},
		),

		ImpactAnalysisDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "impact_analysis_duration_seconds",
				Help:      "Duration of upstream impact analysis runs",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"service"},
		),

		CompositeBoundValue: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "composite_availability_bound",
				Help:      "Last computed composite availability bound per service",
			},
			[]string{"service"},
		),

		TelemetryLookupsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "telemetry_lookups_total",
				Help:      "Total number of observed-availability lookups, by outcome",
			},
			[]string{"outcome"},
		),

		TelemetryLookupErrors: promauto.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "telemetry_lookup_errors_total",
				Help:      "Total number of failed observed-availability lookups",
			},
		),

		MemoryUsage: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "memory_usage_bytes",
				Help:      "Current memory usage",
			},
			[]string{"type"},
		),

		Goroutines: promauto.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "goroutines",
				Help:      "Current number of goroutines",
			},
		),

		ServiceInfo: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: subsystem,
				Name:      "service_info",
				Help:      "Service build information",
			},
			[]string{"version", "environment"},
		),
	}

	defaultMetrics = m
	return m
}

// Get returns the package-global metrics, initializing them with defaults
// if InitMetrics has not yet been called.
func Get() *Metrics {
	if defaultMetrics == nil {
		return InitMetrics("slograph", "")
	}
	return defaultMetrics
}

// RecordHTTPRequest records a completed HTTP request.
func (m *Metrics) RecordHTTPRequest(route, method, status string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(route, method, status).Inc()
	m.HTTPRequestDuration.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordIngestedEdges records edges ingested from a given source.
func (m *Metrics) RecordIngestedEdges(source string, count int) {
	m.IngestedEdgesTotal.WithLabelValues(source).Add(float64(count))
}

// RecordCycleDetected increments the cycle alert counter.
func (m *Metrics) RecordCycleDetected() {
	m.CyclesDetectedTotal.Inc()
}

// RecordConstraintAnalysis records a completed constraint analysis run.
func (m *Metrics) RecordConstraintAnalysis(service, outcome string, duration time.Duration, compositeBound float64) {
	m.ConstraintAnalysisTotal.WithLabelValues(outcome).Inc()
	m.ConstraintAnalysisDuration.WithLabelValues(service).Observe(duration.Seconds())
	m.CompositeBoundValue.WithLabelValues(service).Set(compositeBound)
}

// RecordUnachievableSLO records a detected unachievable target.
func (m *Metrics) RecordUnachievableSLO(riskLevel string) {
	m.UnachievableSLOTotal.WithLabelValues(riskLevel).Inc()
}

// RecordImpactAnalysis records a completed impact analysis run.
func (m *Metrics) RecordImpactAnalysis(service string, duration time.Duration) {
	m.ImpactAnalysisDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordTelemetryLookup records the outcome of a C4 telemetry port lookup.
func (m *Metrics) RecordTelemetryLookup(success bool) {
	outcome := "success"
	if !success {
		outcome = "error"
		m.TelemetryLookupErrors.Inc()
	}
	m.TelemetryLookupsTotal.WithLabelValues(outcome).Inc()
}

// SetGraphSize records the current graph size.
func (m *Metrics) SetGraphSize(services, edges int) {
	m.GraphServiceCount.Set(float64(services))
	m.GraphEdgeCount.Set(float64(edges))
}

// SetServiceInfo sets the build-info gauge.
func (m *Metrics) SetServiceInfo(version, environment string) {
	m.ServiceInfo.WithLabelValues(version, environment).Set(1)
}

// Handler returns the HTTP handler serving /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartMetricsServer starts a dedicated HTTP server exposing /metrics and /health.
func StartMetricsServer(port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	server := &http.Server{
		Addr:         ":" + strconv.Itoa(port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	return server.ListenAndServe()
}
