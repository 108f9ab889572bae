package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics agrupa los collectors de la app sobre un registry propio,
// así cada router (y cada test) arma el suyo sin choques de registro.
// Todos los métodos toleran receiver nil.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	movements       *prometheus.CounterVec
	settingsCreated prometheus.Counter
	alertsSent      *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deja_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "deja_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		movements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deja_stock_movements_total",
			Help: "Stock movements registered by direction.",
		}, []string{"direction"}),
		settingsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "deja_alert_settings_created_total",
			Help: "Alert settings records created lazily on first read.",
		}),
		alertsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "deja_alerts_dispatched_total",
			Help: "Alerts dispatched by channel and outcome.",
		}, []string{"channel", "outcome"}),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.movements,
		m.settingsCreated,
		m.alertsSent,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, status).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(seconds)
}

func (m *Metrics) MovementRegistered(direction string) {
	if m == nil {
		return
	}
	m.movements.WithLabelValues(direction).Inc()
}

func (m *Metrics) SettingsCreated() {
	if m == nil {
		return
	}
	m.settingsCreated.Inc()
}

func (m *Metrics) AlertDispatched(channel string, ok bool) {
	if m == nil {
		return
	}
	outcome := "sent"
	if !ok {
		outcome = "failed"
	}
	m.alertsSent.WithLabelValues(channel, outcome).Inc()
}
