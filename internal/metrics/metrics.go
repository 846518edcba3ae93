package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics wraps Prometheus collectors for probe-sentinel.
type Metrics struct {
	registry                 *prometheus.Registry
	cycleDurationSeconds     prometheus.Histogram
	checkDurationSeconds     *prometheus.HistogramVec
	checksTotal              *prometheus.GaugeVec
	verdictsTotal            *prometheus.CounterVec
	notificationErrorsTotal  prometheus.Counter
	lastSuccessfulCycleGauge prometheus.Gauge
}

// New initializes a Metrics registry with all collectors registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		cycleDurationSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "probe_sentinel_cycle_duration_seconds",
			Help:    "Duration of suite evaluation cycles in seconds.",
			Buckets: prometheus.DefBuckets,
		}),
		checkDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "probe_sentinel_check_duration_seconds",
			Help:    "Duration of individual checks in seconds.",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 5, 15, 60, 300, 900},
		}, []string{"check"}),
		checksTotal: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "probe_sentinel_checks_total",
			Help: "Checks in the last cycle by suite and status.",
		}, []string{"suite", "status"}),
		verdictsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "probe_sentinel_verdicts_total",
			Help: "Total verdicts produced by check and status.",
		}, []string{"check", "status"}),
		notificationErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "probe_sentinel_notification_errors_total",
			Help: "Total notification deliveries that failed after retries.",
		}),
		lastSuccessfulCycleGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "probe_sentinel_last_successful_cycle_timestamp",
			Help: "Unix timestamp of the last successful cycle.",
		}),
	}

	registry.MustRegister(
		m.cycleDurationSeconds,
		m.checkDurationSeconds,
		m.checksTotal,
		m.verdictsTotal,
		m.notificationErrorsTotal,
		m.lastSuccessfulCycleGauge,
	)

	return m
}

// Handler returns a Prometheus HTTP handler for this registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveCycleDuration records the duration of a completed cycle.
func (m *Metrics) ObserveCycleDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.cycleDurationSeconds.Observe(duration.Seconds())
}

// ObserveCheck records one check verdict and its duration.
func (m *Metrics) ObserveCheck(check string, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.checkDurationSeconds.WithLabelValues(check).Observe(duration.Seconds())
	m.verdictsTotal.WithLabelValues(check, status).Inc()
}

// SetChecksTotal sets the checks gauge for the given suite/status.
func (m *Metrics) SetChecksTotal(suite string, status string, value int) {
	if m == nil {
		return
	}
	m.checksTotal.WithLabelValues(suite, status).Set(float64(value))
}

// IncNotificationErrors increments the notification error counter.
func (m *Metrics) IncNotificationErrors() {
	if m == nil {
		return
	}
	m.notificationErrorsTotal.Inc()
}

// SetLastSuccessfulCycleTimestamp sets the last successful cycle time.
func (m *Metrics) SetLastSuccessfulCycleTimestamp(t time.Time) {
	if m == nil {
		return
	}
	m.lastSuccessfulCycleGauge.Set(float64(t.Unix()))
}
