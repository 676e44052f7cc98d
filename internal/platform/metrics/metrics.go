package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the reconciliation pipeline.
type Metrics struct {
	ChangesDetected       *prometheus.CounterVec
	JobsProcessed         *prometheus.CounterVec
	NotificationsSent     *prometheus.CounterVec
	ProviderFetchDuration prometheus.Histogram
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		ChangesDetected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "domainwatch_changes_detected_total",
			Help: "Total domain changes recorded, by field.",
		}, []string{"field"}),
		JobsProcessed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "domainwatch_jobs_processed_total",
			Help: "Total reconciliation jobs processed, by outcome.",
		}, []string{"outcome"}),
		NotificationsSent: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "domainwatch_notifications_dispatched_total",
			Help: "Total notification channel sends attempted, by channel and outcome.",
		}, []string{"channel", "outcome"}),
		ProviderFetchDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "domainwatch_provider_fetch_duration_seconds",
			Help:    "Latency of domain intelligence provider fetches.",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// ObserveChange records one detected change for a field.
func (m *Metrics) ObserveChange(field string) {
	if m == nil {
		return
	}
	m.ChangesDetected.WithLabelValues(field).Inc()
}

// ObserveJob records one processed job outcome ("complete" or "failed").
func (m *Metrics) ObserveJob(outcome string) {
	if m == nil {
		return
	}
	m.JobsProcessed.WithLabelValues(outcome).Inc()
}

// ObserveDispatch records one channel send attempt.
func (m *Metrics) ObserveDispatch(channel string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.NotificationsSent.WithLabelValues(channel, outcome).Inc()
}

// ObserveProviderFetch records provider fetch latency.
func (m *Metrics) ObserveProviderFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.ProviderFetchDuration.Observe(d.Seconds())
}
