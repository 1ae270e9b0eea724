package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	globalMetrics *Metrics
	globalMu      sync.RWMutex
)

// Metrics holds all Prometheus metrics for mailtarget
type Metrics struct {
	// Selection counters
	TargetsAddedTotal        *prometheus.CounterVec
	CandidatesFoundTotal     *prometheus.CounterVec
	SelectionFailuresTotal   *prometheus.CounterVec
	SelectionDurationSeconds *prometheus.HistogramVec
	TargetsClearedTotal      prometheus.Counter

	// Dashboard gauges
	DashboardStat *prometheus.GaugeVec

	// HTTP metrics
	HTTPRequestsTotal          *prometheus.CounterVec
	HTTPRequestDurationSeconds *prometheus.HistogramVec
	HTTPErrorsTotal            *prometheus.CounterVec

	// System metrics
	UptimeSeconds    prometheus.Gauge
	Goroutines       prometheus.Gauge
	StorageUsedBytes prometheus.Gauge

	registry *prometheus.Registry
}

// New creates a new Metrics instance with all metrics registered
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		TargetsAddedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailtarget_targets_added_total",
				Help: "Total number of recipients inserted into mailings",
			},
			[]string{"selector"},
		),
		CandidatesFoundTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailtarget_candidates_found_total",
				Help: "Total number of candidate rows returned by selector queries",
			},
			[]string{"selector"},
		),
		SelectionFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailtarget_selection_failures_total",
				Help: "Total number of failed recipient selections",
			},
			[]string{"selector", "stage"},
		),
		SelectionDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailtarget_selection_duration_seconds",
				Help:    "Recipient selection duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"selector"},
		),
		TargetsClearedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "mailtarget_targets_cleared_total",
				Help: "Total number of mailing recipient tables cleared",
			},
		),

		DashboardStat: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "mailtarget_dashboard_stat",
				Help: "Last value of each dashboard statistic",
			},
			[]string{"label"},
		),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailtarget_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "mailtarget_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mailtarget_http_errors_total",
				Help: "Total number of HTTP errors",
			},
			[]string{"error_type"},
		),

		UptimeSeconds: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailtarget_uptime_seconds",
				Help: "Server uptime in seconds",
			},
		),
		Goroutines: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailtarget_goroutines",
				Help: "Number of active goroutines",
			},
		),
		StorageUsedBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "mailtarget_storage_used_bytes",
				Help: "SQLite database file size in bytes",
			},
		),

		registry: reg,
	}

	reg.MustRegister(
		m.TargetsAddedTotal,
		m.CandidatesFoundTotal,
		m.SelectionFailuresTotal,
		m.SelectionDurationSeconds,
		m.TargetsClearedTotal,
		m.DashboardStat,
		m.HTTPRequestsTotal,
		m.HTTPRequestDurationSeconds,
		m.HTTPErrorsTotal,
		m.UptimeSeconds,
		m.Goroutines,
		m.StorageUsedBytes,
	)

	return m
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// SetGlobal sets the global metrics instance
func SetGlobal(m *Metrics) {
	globalMu.Lock()
	defer globalMu.Unlock()
	globalMetrics = m
}

// Global returns the global metrics instance
func Global() *Metrics {
	globalMu.RLock()
	defer globalMu.RUnlock()
	return globalMetrics
}

// AddTargets adds n to the recipients inserted by selector
func AddTargets(selector string, n int) {
	m := Global()
	if m != nil {
		m.TargetsAddedTotal.WithLabelValues(selector).Add(float64(n))
	}
}

// AddCandidates adds n to the candidate rows read by selector
func AddCandidates(selector string, n int) {
	m := Global()
	if m != nil {
		m.CandidatesFoundTotal.WithLabelValues(selector).Add(float64(n))
	}
}

// IncSelectionFailures increments the failed selection counter
func IncSelectionFailures(selector, stage string) {
	m := Global()
	if m != nil {
		m.SelectionFailuresTotal.WithLabelValues(selector, stage).Inc()
	}
}

// ObserveSelection records the duration of a selection
func ObserveSelection(selector string, seconds float64) {
	m := Global()
	if m != nil {
		m.SelectionDurationSeconds.WithLabelValues(selector).Observe(seconds)
	}
}

// IncTargetsCleared increments the cleared mailing counter
func IncTargetsCleared() {
	m := Global()
	if m != nil {
		m.TargetsClearedTotal.Inc()
	}
}

// IncHTTPErrors increments HTTP error counter
func IncHTTPErrors(errorType string) {
	m := Global()
	if m != nil {
		m.HTTPErrorsTotal.WithLabelValues(errorType).Inc()
	}
}
