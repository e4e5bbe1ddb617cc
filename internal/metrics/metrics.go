// Package metrics defines the Prometheus counters exposed by the segment
// core: segments opened, columns materialized, batches produced, and bytes
// decompressed. Metrics are only registered when a Reader is opened with
// segment.WithMetricsRegisterer; otherwise New(nil) returns counters that
// are never exposed to any registry, so embedding the core has no
// observability side effect by default.
package metrics

import "github.com/prometheus/client_golang/prometheus"

const namespace = "segment"

// Metrics holds the counters for a single segment.Reader.
type Metrics struct {
	SegmentsOpened      prometheus.Counter
	ColumnsMaterialized prometheus.Counter
	BatchesProduced     prometheus.Counter
	BytesDecompressed   prometheus.Counter
}

// New builds a fresh set of counters and, if reg is non-nil, registers
// them. A nil reg is valid: the counters are still usable, just never
// exposed.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SegmentsOpened: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_opened_total",
			Help:      "Number of segment directories opened.",
		}),
		ColumnsMaterialized: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "columns_materialized_total",
			Help:      "Number of columns decoded from dictionary or raw forward-index storage.",
		}),
		BatchesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_produced_total",
			Help:      "Number of arrow.Record batches produced by Scan.",
		}),
		BytesDecompressed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_decompressed_total",
			Help:      "Bytes produced by LZ4 decompression of RAW chunks.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.SegmentsOpened, m.ColumnsMaterialized, m.BatchesProduced, m.BytesDecompressed)
	}

	return m
}
