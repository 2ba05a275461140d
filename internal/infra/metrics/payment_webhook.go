package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		webhookRequests,
		webhookDuration,
		advisoryDMTotal,
	)
}

var (
	// outcome: ok|ignored|duplicate|unauthorized|bad_request|internal
	webhookRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_webhook_requests_total",
			Help: "Payment notifications by handling outcome.",
		},
		[]string{"outcome"},
	)

	webhookDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "payment_webhook_duration_seconds",
			Help:    "Duration of the payment webhook handler in seconds.",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		},
		[]string{"outcome"},
	)

	// status: sent|error|dropped
	advisoryDMTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_advisory_dm_total",
			Help: "Unlock advisories sent to buyers by delivery status.",
		},
		[]string{"status"},
	)
)

func ObserveWebhook(outcome string, elapsed time.Duration) {
	o := norm(outcome)
	webhookRequests.WithLabelValues(o).Inc()
	webhookDuration.WithLabelValues(o).Observe(elapsed.Seconds())
}

func IncAdvisoryDM(status string) {
	advisoryDMTotal.WithLabelValues(norm(status)).Inc()
}
