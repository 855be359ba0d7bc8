package rag

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"

	"textbook-rag/internal/metrics"
	"textbook-rag/internal/models"
	"textbook-rag/internal/vectorindex"
)

const DefaultTopK = 3

// TextEmbedder is the part of the embedder the pipeline needs.
type TextEmbedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Retriever finds the chunks most relevant to a query.
type Retriever struct {
	embedder TextEmbedder
	index    vectorindex.Index
	defaultK int
}

func NewRetriever(embedder TextEmbedder, index vectorindex.Index, defaultK int) *Retriever {
	if defaultK <= 0 {
		defaultK = DefaultTopK
	}
	return &Retriever{embedder: embedder, index: index, defaultK: defaultK}
}

// Retrieve returns up to k chunks, best first. Non-blank explicitContext is
// returned as the only chunk without touching the index. Embedding or search
// failures are logged and produce an empty result.
func (r *Retriever) Retrieve(ctx context.Context, query, explicitContext string, k int) []models.RetrievedChunk {
	if strings.TrimSpace(explicitContext) != "" {
		return []models.RetrievedChunk{{
			Text:   explicitContext,
			Source: models.SelectedTextSource,
			Score:  models.SelectedTextScore,
		}}
	}
	if k <= 0 {
		k = r.defaultK
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		metrics.RetrievalDegraded.WithLabelValues("embed").Inc()
		log.Error().Err(err).Msg("Failed to embed query, continuing without context")
		return nil
	}

	hits, err := r.index.Search(ctx, vec, k)
	if err != nil {
		metrics.RetrievalDegraded.WithLabelValues("search").Inc()
		log.Error().Err(err).Msg("Vector search failed, continuing without context")
		return nil
	}

	chunks := make([]models.RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		chunks = append(chunks, models.RetrievedChunk{
			Text:   h.Payload.Text,
			Source: h.Payload.Source,
			Score:  h.Score,
		})
	}
	log.Debug().Int("k", k).Int("hits", len(chunks)).Msg("Retrieved chunks")
	return chunks
}
