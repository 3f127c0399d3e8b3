// Package metrics exposes the engine's Prometheus collectors, backing the
// gateway's Get Metrics operation (spec §6).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry bundles every collector the engine exports. One Registry is
// constructed per process and passed to every component that needs to
// record a metric, instead of relying on the default global registerer.
type Registry struct {
	reg *prometheus.Registry

	OrdersCreated   *prometheus.CounterVec
	OrdersRejected  *prometheus.CounterVec
	FillsProcessed  *prometheus.CounterVec
	OverfillsBlocked prometheus.Counter
	MatchLatency    prometheus.Histogram
	BookDepth       *prometheus.GaugeVec
	VenueBreakerOpen *prometheus.GaugeVec
	ChildOrdersSent *prometheus.CounterVec
}

// NewRegistry constructs and registers every collector on a fresh
// prometheus.Registry (never the global DefaultRegisterer, so tests can
// build independent Registries without collision).
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		OrdersCreated: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradsys", Subsystem: "oms", Name: "orders_created_total",
			Help: "Number of orders admitted into the OMS.",
		}, []string{"symbol"}),
		OrdersRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradsys", Subsystem: "oms", Name: "orders_rejected_total",
			Help: "Number of orders rejected, by reason.",
		}, []string{"reason"}),
		FillsProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradsys", Subsystem: "oms", Name: "fills_processed_total",
			Help: "Number of fills applied to orders, by venue.",
		}, []string{"venue"}),
		OverfillsBlocked: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "tradsys", Subsystem: "oms", Name: "overfill_detected_total",
			Help: "Number of fills rejected because they would have overfilled an order.",
		}),
		MatchLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tradsys", Subsystem: "matching", Name: "match_latency_seconds",
			Help:    "Time to execute one Match call against the book.",
			Buckets: prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
		BookDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tradsys", Subsystem: "orderbook", Name: "depth_levels",
			Help: "Resting quantity summed over the top 10 price levels, by symbol and side.",
		}, []string{"symbol", "side"}),
		VenueBreakerOpen: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "tradsys", Subsystem: "venue", Name: "breaker_open",
			Help: "1 if a venue's circuit breaker is currently open, else 0.",
		}, []string{"venue"}),
		ChildOrdersSent: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tradsys", Subsystem: "router", Name: "child_orders_sent_total",
			Help: "Number of child orders dispatched, by venue and algorithm.",
		}, []string{"venue", "algo"}),
	}
}

// Gatherer exposes the underlying prometheus.Gatherer for the gateway's
// /metrics HTTP handler.
func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }
