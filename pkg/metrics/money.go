package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// WebhookMetrics counts inbound payment notifications by terminal outcome.
type WebhookMetrics struct {
	outcomes *prometheus.CounterVec
	duration prometheus.Histogram
}

// NewWebhookMetrics registers the webhook collectors on reg.
func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return &WebhookMetrics{}
	}
	outcomes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_events_total",
		Help: "Inbound payment notifications by outcome.",
	}, []string{"outcome"})
	duration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "webhook_processing_seconds",
		Help:    "Time spent processing a notification after it was acknowledged.",
		Buckets: prometheus.DefBuckets,
	})
	reg.MustRegister(outcomes, duration)
	return &WebhookMetrics{outcomes: outcomes, duration: duration}
}

// Observe records one processed notification.
func (w *WebhookMetrics) Observe(outcome string, took time.Duration) {
	if w == nil || w.outcomes == nil {
		return
	}
	w.outcomes.WithLabelValues(normalizeLabel(outcome)).Inc()
	w.duration.Observe(took.Seconds())
}

// PayoutMetrics counts payout gateway calls by result.
type PayoutMetrics struct {
	calls *prometheus.CounterVec
}

// NewPayoutMetrics registers the payout collectors on reg.
func NewPayoutMetrics(reg prometheus.Registerer) *PayoutMetrics {
	if reg == nil {
		return &PayoutMetrics{}
	}
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "payout_requests_total",
		Help: "Payout gateway calls by result (success, error, timeout).",
	}, []string{"result"})
	reg.MustRegister(calls)
	return &PayoutMetrics{calls: calls}
}

// Inc records one payout call.
func (p *PayoutMetrics) Inc(result string) {
	if p == nil || p.calls == nil {
		return
	}
	p.calls.WithLabelValues(normalizeLabel(result)).Inc()
}
