// Copyright 2025 MultiDB Project Authors. Licensed under Apache-2.0.

// Package metrics holds the prometheus collectors for the shard router.
// Collectors live on an explicit registry owned by the server, not on the
// process-wide default one.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "multidb"

// Circuit state gauge values.
const (
	CircuitClosed   = 0
	CircuitHalfOpen = 1
	CircuitOpen     = 2
)

type Metrics struct {
	registry *prometheus.Registry

	WritesTotal        *prometheus.CounterVec
	WriteFailuresTotal *prometheus.CounterVec
	ReadsTotal         prometheus.Counter
	ReadShardErrors    *prometheus.CounterVec
	RotationsTotal     *prometheus.CounterVec
	WritesRejected     prometheus.Counter
	CacheInvalidations prometheus.Counter

	ShardUsageBytes   *prometheus.GaugeVec
	ShardCeilingBytes *prometheus.GaugeVec
	CircuitState      *prometheus.GaugeVec
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		WritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_total",
			Help:      "Documents written, by shard.",
		}, []string{"shard"}),
		WriteFailuresTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "write_failures_total",
			Help:      "Failed write dispatches, by shard.",
		}, []string{"shard"}),
		ReadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reads_total",
			Help:      "Fan-out read requests served.",
		}),
		ReadShardErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_shard_errors_total",
			Help:      "Per-shard failures swallowed during read fan-out.",
		}, []string{"shard"}),
		RotationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rotations_total",
			Help:      "Active shard rotations, by reason.",
		}, []string{"reason"}),
		WritesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "writes_rejected_total",
			Help:      "Writes rejected by the flow limiter.",
		}),
		CacheInvalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Entity invalidations sent to the cache collaborator.",
		}),
		ShardUsageBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "shard_usage_bytes",
			Help:      "Tracked storage usage, by shard.",
		}, []string{"shard"}),
		ShardCeilingBytes: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "shard_ceiling_bytes",
			Help:      "Configured capacity ceiling, by shard.",
		}, []string{"shard"}),
		CircuitState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "shard_circuit_state",
			Help:      "Circuit state by shard: 0 closed, 1 half-open, 2 open.",
		}, []string{"shard"}),
	}

	m.registry.MustRegister(
		m.WritesTotal,
		m.WriteFailuresTotal,
		m.ReadsTotal,
		m.ReadShardErrors,
		m.RotationsTotal,
		m.WritesRejected,
		m.CacheInvalidations,
		m.ShardUsageBytes,
		m.ShardCeilingBytes,
		m.CircuitState,
	)
	return m
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
