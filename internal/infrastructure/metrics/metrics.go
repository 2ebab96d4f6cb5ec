package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus collectors for the auth and webhook paths.
type Metrics struct {
	AuthRequests  *prometheus.CounterVec
	WebhookEvents *prometheus.CounterVec
}

// New registers the collectors on reg and returns them.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		AuthRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "auth_requests_total",
			Help: "Authorization attempts by outcome.",
		}, []string{"outcome"}),
		WebhookEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Delivered webhook events by topic and outcome.",
		}, []string{"topic", "outcome"}),
	}
}

// ObserveAuth records one authorization attempt.
func (m *Metrics) ObserveAuth(outcome string) {
	if m == nil {
		return
	}
	m.AuthRequests.WithLabelValues(outcome).Inc()
}

// ObserveWebhook records one webhook delivery.
func (m *Metrics) ObserveWebhook(topic, outcome string) {
	if m == nil {
		return
	}
	m.WebhookEvents.WithLabelValues(topic, outcome).Inc()
}
