package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/NHSDigital/ftrs-directory-of-services-sub001/internal/sync/txn"
)

// Transaction outcomes recorded by the collector.
const (
	OutcomeCommitted = "committed"
	OutcomeNoop      = "noop"
	OutcomeConflict  = "conflict"
	OutcomeRejected  = "rejected"
	OutcomeFailed    = "failed"
)

// Collector holds the Prometheus metrics of the sync pipeline. A nil
// *Collector is valid and records nothing.
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Sync metrics
	Transactions   *prometheus.CounterVec
	WriteItems     *prometheus.CounterVec
	Conflicts      prometheus.Counter
	BuildDuration  prometheus.Histogram
	SubmitDuration prometheus.Histogram
}

// NewCollector creates a collector registered on its own registry.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_transactions_total",
				Help:      "Sync attempts by outcome",
			},
			[]string{"outcome"},
		),
		WriteItems: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_write_items_total",
				Help:      "Committed write items by entity type and operation",
			},
			[]string{"entity_type", "operation"},
		),
		Conflicts: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sync_conflicts_total",
				Help:      "Transactions rejected by a version or existence guard",
			},
		),
		BuildDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_build_duration_seconds",
				Help:      "Time spent diffing and building a transaction",
				Buckets:   []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
			},
		),
		SubmitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "sync_submit_duration_seconds",
				Help:      "Time spent submitting a transaction",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}

	registry.MustRegister(
		c.HTTPRequests,
		c.HTTPDuration,
		c.Transactions,
		c.WriteItems,
		c.Conflicts,
		c.BuildDuration,
		c.SubmitDuration,
	)
	return c
}

// RecordOutcome counts one sync attempt.
func (c *Collector) RecordOutcome(outcome string) {
	if c == nil {
		return
	}
	c.Transactions.WithLabelValues(outcome).Inc()
	if outcome == OutcomeConflict {
		c.Conflicts.Inc()
	}
}

// RecordCommitted counts the entity writes of a committed transaction.
// The ledger write is not counted.
func (c *Collector) RecordCommitted(tx *txn.Transaction) {
	if c == nil || tx == nil {
		return
	}
	for _, item := range tx.Items {
		if item.IsLedger() {
			continue
		}
		c.WriteItems.WithLabelValues(string(item.EntityType), string(item.Type)).Inc()
	}
}

// ObserveBuild records how long building a transaction took.
func (c *Collector) ObserveBuild(d time.Duration) {
	if c == nil {
		return
	}
	c.BuildDuration.Observe(d.Seconds())
}

// ObserveSubmit records how long a submit took.
func (c *Collector) ObserveSubmit(d time.Duration) {
	if c == nil {
		return
	}
	c.SubmitDuration.Observe(d.Seconds())
}

// GetRegistry returns the Prometheus registry for this collector.
func (c *Collector) GetRegistry() *prometheus.Registry {
	if c == nil {
		return prometheus.NewRegistry()
	}
	return c.registry
}
