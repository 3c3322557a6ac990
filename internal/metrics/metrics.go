package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the process collectors on a private registry
type Metrics struct {
	registry        *prometheus.Registry
	gateDecisions   *prometheus.CounterVec
	sessionChecks   *prometheus.HistogramVec
	gatewayRequests *prometheus.CounterVec
}

// New creates and registers all collectors
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		gateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "islandvows",
			Name:      "gate_decisions_total",
			Help:      "Route gate outcomes by kind.",
		}, []string{"outcome"}),
		sessionChecks: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "islandvows",
			Name:      "session_checks_seconds",
			Help:      "Duration of session resolution round-trips.",
			Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"result"}),
		gatewayRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "islandvows",
			Name:      "gateway_requests_total",
			Help:      "Backend calls by operation and response status.",
		}, []string{"operation", "status"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.gateDecisions,
		m.sessionChecks,
		m.gatewayRequests,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// GateDecision counts one route gate outcome
func (m *Metrics) GateDecision(outcome string) {
	m.gateDecisions.WithLabelValues(outcome).Inc()
}

// SessionCheck records one session resolution (result: present, absent, error)
func (m *Metrics) SessionCheck(result string, d time.Duration) {
	m.sessionChecks.WithLabelValues(result).Observe(d.Seconds())
}

// GatewayRequest matches gateway.Options.Observe
func (m *Metrics) GatewayRequest(operation string, status int) {
	m.gatewayRequests.WithLabelValues(operation, strconv.Itoa(status)).Inc()
}
