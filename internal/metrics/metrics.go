package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "brainmemory"

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Store operation metrics
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec

	// Tier metrics
	WorkingEntries   prometheus.Gauge
	LongTermEntries  prometheus.Gauge
	AssociationNodes prometheus.Gauge

	// Sweep metrics
	DemotionsTotal   prometheus.Counter
	OptimizeDuration prometheus.Histogram

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	RateLimitedTotal    prometheus.Counter

	// Gateway metrics
	GatewayClients prometheus.Gauge
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "operations_total",
				Help:      "Total number of store operations",
			},
			[]string{"operation", "status"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "operation_duration_seconds",
				Help:      "Duration of store operations in seconds",
				Buckets:   []float64{.00001, .00005, .0001, .0005, .001, .005, .01, .05, .1},
			},
			[]string{"operation"},
		),

		WorkingEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "working_entries",
				Help:      "Number of entries in the working tier",
			},
		),
		LongTermEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "long_term_entries",
				Help:      "Number of entries in the long-term tier",
			},
		),
		AssociationNodes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "association_nodes",
				Help:      "Number of keys with a recorded association list",
			},
		),

		DemotionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "demotions_total",
				Help:      "Total number of entries moved from working to long-term",
			},
		),
		OptimizeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "optimize_duration_seconds",
				Help:      "Duration of optimize sweeps in seconds",
				Buckets:   prometheus.DefBuckets,
			},
		),

		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"route", "code"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		RateLimitedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_rate_limited_total",
				Help:      "Total number of requests rejected by the rate limiter",
			},
		),

		GatewayClients: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "gateway_clients",
				Help:      "Number of connected websocket clients",
			},
		),
	}

	m.registerMetrics()

	return m
}

func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(
		m.OperationsTotal,
		m.OperationDuration,
		m.WorkingEntries,
		m.LongTermEntries,
		m.AssociationNodes,
		m.DemotionsTotal,
		m.OptimizeDuration,
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RateLimitedTotal,
		m.GatewayClients,
	)
}

// ObserveOperation records one store operation
func (m *Metrics) ObserveOperation(operation string, started time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.OperationsTotal.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

// ObserveOptimize records one optimize sweep
func (m *Metrics) ObserveOptimize(demoted int, elapsed time.Duration) {
	m.DemotionsTotal.Add(float64(demoted))
	m.OptimizeDuration.Observe(elapsed.Seconds())
}

// SetTierSizes updates the tier gauges
func (m *Metrics) SetTierSizes(working, longTerm, nodes int) {
	m.WorkingEntries.Set(float64(working))
	m.LongTermEntries.Set(float64(longTerm))
	m.AssociationNodes.Set(float64(nodes))
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
