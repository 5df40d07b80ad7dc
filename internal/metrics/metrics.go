// Package metrics exposes Prometheus collectors for the gateway
// integration layer.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics stores the Prometheus collectors used across the service.
type Metrics struct {
	DispatchTotal     *prometheus.CounterVec
	DispatchLatency   *prometheus.HistogramVec
	RateLimitRejected *prometheus.CounterVec
	WebhookEvents     *prometheus.CounterVec
	GatewayRequests   *prometheus.CounterVec
}

var (
	regOnce         sync.Once
	metricsInstance *Metrics
)

// Registry builds and registers the metrics singleton with an optional
// namespace.
func Registry(namespace string) *Metrics {
	regOnce.Do(func() {
		metricsInstance = &Metrics{
			DispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_total",
				Help:      "Total outbound dispatch attempts by kind and outcome.",
			}, []string{"kind", "status"}),
			DispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_seconds",
				Help:      "Latency distribution for outbound dispatches.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"kind"}),
			RateLimitRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_limit_rejections_total",
				Help:      "Pre-flight dispatch rejections due to recipient quota.",
			}, []string{"kind"}),
			WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "webhook_events_total",
				Help:      "Inbound webhook events by normalization outcome.",
			}, []string{"outcome"}),
			GatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "gateway_requests_total",
				Help:      "Gateway API calls by endpoint and outcome.",
			}, []string{"endpoint", "status"}),
		}

		prometheus.MustRegister(
			metricsInstance.DispatchTotal,
			metricsInstance.DispatchLatency,
			metricsInstance.RateLimitRejected,
			metricsInstance.WebhookEvents,
			metricsInstance.GatewayRequests,
		)
	})
	return metricsInstance
}
