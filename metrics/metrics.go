// Package metrics exposes prometheus collectors fed by captured transactions.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rfd-conformance/rfd-test-harness/wslog"
)

// Collector is a wslog.Sink that counts transactions by endpoint, transaction and outcome.
type Collector struct {
	registry     *prometheus.Registry
	transactions *prometheus.CounterVec
	duration     *prometheus.HistogramVec
	faults       *prometheus.CounterVec
}

func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		transactions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rfd_transactions_total",
				Help: "Total number of captured RFD transactions",
			},
			[]string{"endpoint", "transaction", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "rfd_transaction_duration_seconds",
				Help:    "Time from receiving a request to completing its response",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint", "transaction"},
		),
		faults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "rfd_faults_total",
				Help: "SOAP faults returned, by fault code and subcode",
			},
			[]string{"endpoint", "code", "status"},
		),
	}
	c.registry.MustRegister(c.transactions, c.duration, c.faults)
	return c
}

func transactionLabel(rec wslog.Record) string {
	if rec.Transaction == "" {
		return "unknown"
	}
	return rec.Transaction
}

func (c *Collector) Deliver(_ context.Context, rec wslog.Record) error {
	txn := transactionLabel(rec)
	c.transactions.WithLabelValues(rec.Endpoint, txn, rec.Outcome()).Inc()
	c.duration.WithLabelValues(rec.Endpoint, txn).Observe(rec.Duration().Seconds())
	if rec.Fault != nil {
		c.faults.WithLabelValues(rec.Endpoint, rec.Fault.Code, rec.Fault.Status).Inc()
	}
	return nil
}

// Registry returns the registry holding the collectors, so that callers can add their own.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
