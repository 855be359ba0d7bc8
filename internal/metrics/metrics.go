// Package metrics holds the Prometheus collectors exposed at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "textbook_rag"

var (
	// Questions counts answer cycles by outcome: answered, not_found or error.
	Questions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "questions_total",
			Help:      "Questions handled by outcome",
		},
		[]string{"outcome"},
	)

	AnswerDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "answer_duration_seconds",
			Help:      "Time to retrieve and synthesise an answer",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		},
	)

	// RetrievalDegraded counts retrievals that fell back to an empty result,
	// labelled by the failing stage (embed or search).
	RetrievalDegraded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retrieval_degraded_total",
			Help:      "Retrievals that returned no chunks because a dependency failed",
		},
		[]string{"stage"},
	)

	IndexedChunks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexed_chunks_total",
			Help:      "Chunks submitted for indexing by status",
		},
		[]string{"status"},
	)

	EmbeddingCache = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_cache_requests_total",
			Help:      "Embedding cache lookups by result",
		},
		[]string{"result"},
	)
)
