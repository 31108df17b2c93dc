// Package metrics provides Prometheus instrumentation for the scheduler
// and analytic passes. All metrics are exposed via the /metrics HTTP
// endpoint for Prometheus scraping.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the engine.
type Metrics struct {
	PassDurationSeconds *prometheus.HistogramVec
	PassErrorsTotal     *prometheus.CounterVec
	LastSuccessSeconds  *prometheus.GaugeVec
	RecordsCollected    *prometheus.CounterVec
	AlertsFiredTotal    prometheus.Counter
	AnomaliesFound      prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		PassDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "costpulse_pass_duration_seconds",
			Help:    "Time spent running one analytic or collection pass",
			Buckets: prometheus.DefBuckets,
		}, []string{"pass"}),

		PassErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "costpulse_pass_errors_total",
			Help: "Total number of failed passes",
		}, []string{"pass"}),

		LastSuccessSeconds: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Name: "costpulse_pass_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful run per pass",
		}, []string{"pass"}),

		RecordsCollected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "costpulse_records_collected_total",
			Help: "Total number of records landed by the collectors",
		}, []string{"source"}),

		AlertsFiredTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "costpulse_alerts_fired_total",
			Help: "Total number of alert firings recorded",
		}),

		AnomaliesFound: promauto.NewCounter(prometheus.CounterOpts{
			Name: "costpulse_anomalies_found_total",
			Help: "Total number of cost anomalies detected",
		}),
	}
}

// ObservePass records the duration of one pass.
func (m *Metrics) ObservePass(pass string, seconds float64) {
	m.PassDurationSeconds.WithLabelValues(pass).Observe(seconds)
}

// RecordPassError increments the failure counter for a pass.
func (m *Metrics) RecordPassError(pass string) {
	m.PassErrorsTotal.WithLabelValues(pass).Inc()
}

// RecordPassSuccess stamps the last successful run of a pass.
func (m *Metrics) RecordPassSuccess(pass string, unixSeconds float64) {
	m.LastSuccessSeconds.WithLabelValues(pass).Set(unixSeconds)
}

// AddCollected counts records landed by a collector.
func (m *Metrics) AddCollected(source string, count int) {
	m.RecordsCollected.WithLabelValues(source).Add(float64(count))
}
