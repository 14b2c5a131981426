package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on their own registry.
type Metrics struct {
	Registry *prometheus.Registry

	HTTPRequests        *prometheus.CounterVec
	HTTPDuration        *prometheus.HistogramVec
	Checkins            *prometheus.CounterVec
	Logins              *prometheus.CounterVec
	Registrations       *prometheus.CounterVec
	GeolocationFailures prometheus.Counter
	RateLimited         prometheus.Counter
}

// New registers all collectors plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "checkin_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		Checkins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_events_total",
			Help: "Check-in events recorded, by type.",
		}, []string{"type"}),
		Logins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_logins_total",
			Help: "Leader login attempts by outcome.",
		}, []string{"outcome"}),
		Registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "checkin_registrations_total",
			Help: "Member registrations by outcome.",
		}, []string{"outcome"}),
		GeolocationFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "checkin_geolocation_failures_total",
			Help: "Geolocation lookups that failed and fell back to placeholders.",
		}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "checkin_rate_limited_total",
			Help: "Requests rejected by the rate limiter.",
		}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.HTTPRequests, m.HTTPDuration, m.Checkins, m.Logins,
		m.Registrations, m.GeolocationFailures, m.RateLimited,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
