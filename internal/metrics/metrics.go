// Package metrics records Prometheus metrics for table file I/O.
//
// Metrics are registered on a caller-provided registry. Asking twice for
// the same registry returns the same collectors, so several files and
// writers can share one registry.
//
//	m := metrics.For(prometheus.DefaultRegisterer)
//	m.RowsWritten.WithLabelValues("/dl1/events").Inc()
//
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "h5table"

// Metrics holds the collectors for one registry.
type Metrics struct {
	RowsWritten  *prometheus.CounterVec
	RowsRead     *prometheus.CounterVec
	ChunksFlush  *prometheus.CounterVec
	ChunkBytes   *prometheus.HistogramVec
	SchemaErrors *prometheus.CounterVec
	TornBlocks   prometheus.Counter
}

var (
	mu         sync.Mutex
	registries = map[prometheus.Registerer]*Metrics{}
)

// For returns the metrics registered on reg, registering them on first
// use. A nil registerer yields nil metrics.
func For(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return nil
	}

	mu.Lock()
	defer mu.Unlock()

	if m, ok := registries[reg]; ok {
		return m
	}

	factory := promauto.With(reg)
	m := &Metrics{
		RowsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_written_total",
			Help:      "Rows appended to tables",
		}, []string{"table"}),
		RowsRead: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rows_read_total",
			Help:      "Rows materialized from tables",
		}, []string{"table"}),
		ChunksFlush: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_flushed_total",
			Help:      "Chunks written to table files",
		}, []string{"table"}),
		ChunkBytes: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "chunk_stored_bytes",
			Help:      "Stored size of flushed chunks after filtering",
			Buckets:   prometheus.ExponentialBuckets(256, 4, 10),
		}, []string{"table"}),
		SchemaErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "schema_errors_total",
			Help:      "Fields dropped from a table schema",
		}, []string{"table"}),
		TornBlocks: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "torn_blocks_total",
			Help:      "Trailing blocks discarded when opening a file",
		}),
	}
	registries[reg] = m
	return m
}

// RowWritten counts one appended row.
func (m *Metrics) RowWritten(table string) {
	if m == nil {
		return
	}
	m.RowsWritten.WithLabelValues(table).Inc()
}

// RowRead counts one materialized row.
func (m *Metrics) RowRead(table string) {
	if m == nil {
		return
	}
	m.RowsRead.WithLabelValues(table).Inc()
}

// ChunkFlushed counts one flushed chunk of the given stored size.
func (m *Metrics) ChunkFlushed(table string, stored int) {
	if m == nil {
		return
	}
	m.ChunksFlush.WithLabelValues(table).Inc()
	m.ChunkBytes.WithLabelValues(table).Observe(float64(stored))
}

// SchemaError counts one field dropped from a schema.
func (m *Metrics) SchemaError(table string) {
	if m == nil {
		return
	}
	m.SchemaErrors.WithLabelValues(table).Inc()
}

// TornBlock counts one discarded trailing block.
func (m *Metrics) TornBlock() {
	if m == nil {
		return
	}
	m.TornBlocks.Inc()
}
