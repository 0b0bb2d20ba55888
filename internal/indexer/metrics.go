package indexer

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus collectors for the orchestrator.
//
// Metrics:
//   - codeindex_files_indexed_total - files that produced documents
//   - codeindex_files_skipped_total{reason} - files skipped by filter, read or parse failure
//   - codeindex_embedding_batches_total - completed embedding batches
//   - codeindex_documents_stored_total - documents written to the store
//   - codeindex_index_runs_total{status} - finished index builds
//   - codeindex_search_duration_seconds{kind} - search latency
//   - codeindex_index_state - current pipeline state as its ordinal
type Metrics struct {
	FilesIndexed     prometheus.Counter
	FilesSkipped     *prometheus.CounterVec
	EmbeddingBatches prometheus.Counter
	DocumentsStored  prometheus.Counter
	IndexRuns        *prometheus.CounterVec
	SearchDuration   *prometheus.HistogramVec
	State            prometheus.Gauge
}

// NewMetrics creates the orchestrator collectors and registers them on reg.
// A nil reg leaves them unregistered, which keeps tests independent.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		FilesIndexed: factory.NewCounter(prometheus.CounterOpts{
			Name: "codeindex_files_indexed_total",
			Help: "Total number of files indexed",
		}),
		FilesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codeindex_files_skipped_total",
			Help: "Total number of files skipped during indexing",
		}, []string{"reason"}), // "filter", "read", "parse"
		EmbeddingBatches: factory.NewCounter(prometheus.CounterOpts{
			Name: "codeindex_embedding_batches_total",
			Help: "Total number of embedding batches completed",
		}),
		DocumentsStored: factory.NewCounter(prometheus.CounterOpts{
			Name: "codeindex_documents_stored_total",
			Help: "Total number of documents written to the vector store",
		}),
		IndexRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "codeindex_index_runs_total",
			Help: "Total number of index builds by outcome",
		}, []string{"status"}),
		SearchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "codeindex_search_duration_seconds",
			Help:    "Duration of search requests in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		}, []string{"kind"}),
		State: factory.NewGauge(prometheus.GaugeOpts{
			Name: "codeindex_index_state",
			Help: "Current index state (0 idle, 1 scanning, 2 parsing, 3 embedding, 4 storing, 5 complete)",
		}),
	}
}
