package api

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments for the identity service.
type Metrics struct {
	registry *prometheus.Registry

	loginAttempts   *prometheus.CounterVec
	accountsCreated prometheus.Counter
	authRejections  *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// NewMetrics creates and registers the service's instruments on a fresh
// registry, keeping tests isolated from the default global one.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		loginAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "identity",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome (success, rejected, rate_limited, error).",
		}, []string{"outcome"}),
		accountsCreated: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "identity",
			Name:      "accounts_created_total",
			Help:      "Accounts created through federated login.",
		}),
		authRejections: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "identity",
			Name:      "auth_rejections_total",
			Help:      "Guard rejections by stable error code.",
		}, []string{"code"}),
		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "identity",
			Name:      "http_requests_total",
			Help:      "HTTP requests by method, route, and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "identity",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
