package observability

import (
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics tracks transaction outcomes and settlement volume.
type LedgerMetrics struct {
	txs       *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	volume    prometheus.Counter
	royalties prometheus.Counter
	sales     prometheus.Counter
	height    prometheus.Gauge
}

// RPCMetrics tracks JSON-RPC traffic.
type RPCMetrics struct {
	requests  *prometheus.CounterVec
	latency   *prometheus.HistogramVec
	throttles *prometheus.CounterVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerRegistry    *LedgerMetrics

	rpcMetricsOnce sync.Once
	rpcRegistry    *RPCMetrics
)

// Ledger returns the lazily-initialised ledger metrics registry.
func Ledger() *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerRegistry = &LedgerMetrics{
			txs: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cardmarket",
				Subsystem: "ledger",
				Name:      "transactions_total",
				Help:      "Applied transactions segmented by type and outcome.",
			}, []string{"type", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "cardmarket",
				Subsystem: "ledger",
				Name:      "apply_duration_seconds",
				Help:      "Latency of applying a transaction, commit included.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"type"}),
			volume: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "cardmarket",
				Subsystem: "market",
				Name:      "sale_volume_total",
				Help:      "Sum of settled sale prices in the smallest currency unit.",
			}),
			royalties: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "cardmarket",
				Subsystem: "market",
				Name:      "royalties_total",
				Help:      "Sum of royalties paid to the authority.",
			}),
			sales: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "cardmarket",
				Subsystem: "market",
				Name:      "sales_total",
				Help:      "Number of settled purchases.",
			}),
			height: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "cardmarket",
				Subsystem: "ledger",
				Name:      "sequence",
				Help:      "Sequence number of the last committed transaction.",
			}),
		}
		prometheus.MustRegister(
			ledgerRegistry.txs,
			ledgerRegistry.latency,
			ledgerRegistry.volume,
			ledgerRegistry.royalties,
			ledgerRegistry.sales,
			ledgerRegistry.height,
		)
	})
	return ledgerRegistry
}

// ObserveTx records the outcome of one transaction. outcome is "committed" or
// the error code that rejected it.
func (m *LedgerMetrics) ObserveTx(txType, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	if txType == "" {
		txType = "unknown"
	}
	if outcome = strings.TrimSpace(outcome); outcome == "" {
		outcome = "internal"
	}
	m.txs.WithLabelValues(txType, outcome).Inc()
	m.latency.WithLabelValues(txType).Observe(duration.Seconds())
}

// RecordSale adds a settled purchase to the volume counters.
func (m *LedgerMetrics) RecordSale(price, royalty uint64) {
	if m == nil {
		return
	}
	m.sales.Inc()
	m.volume.Add(float64(price))
	m.royalties.Add(float64(royalty))
}

func (m *LedgerMetrics) SetSequence(seq uint64) {
	if m == nil {
		return
	}
	m.height.Set(float64(seq))
}

// RPC returns the lazily-initialised JSON-RPC metrics registry.
func RPC() *RPCMetrics {
	rpcMetricsOnce.Do(func() {
		rpcRegistry = &RPCMetrics{
			requests: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cardmarket",
				Subsystem: "rpc",
				Name:      "requests_total",
				Help:      "JSON-RPC requests segmented by method and outcome.",
			}, []string{"method", "outcome"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "cardmarket",
				Subsystem: "rpc",
				Name:      "request_duration_seconds",
				Help:      "Latency distribution for JSON-RPC handlers.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"method"}),
			throttles: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "cardmarket",
				Subsystem: "rpc",
				Name:      "throttles_total",
				Help:      "Requests rejected by throttling policies.",
			}, []string{"reason"}),
		}
		prometheus.MustRegister(rpcRegistry.requests, rpcRegistry.latency, rpcRegistry.throttles)
	})
	return rpcRegistry
}

func (m *RPCMetrics) Observe(method string, failed bool, duration time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "unknown"
	}
	outcome := "success"
	if failed {
		outcome = "error"
	}
	m.requests.WithLabelValues(method, outcome).Inc()
	m.latency.WithLabelValues(method).Observe(duration.Seconds())
}

// RecordThrottle counts a rejected request. Reasons should be stable strings
// such as "rate_limit" or "connection_cap".
func (m *RPCMetrics) RecordThrottle(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unspecified"
	}
	m.throttles.WithLabelValues(reason).Inc()
}
