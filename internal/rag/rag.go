package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"textbook-rag/internal/llmservice"
	"textbook-rag/internal/metrics"
	"textbook-rag/internal/models"
	"textbook-rag/internal/vectorindex"
)

// ErrSynthesis wraps failures of the generative model.
var ErrSynthesis = errors.New("answer synthesis failed")

const DefaultMaxContextChars = 6000

type Options struct {
	TopK            int
	MaxContextChars int
	MaxTokens       int
	Temperature     float64
}

// RAG answers questions over the indexed textbook and ingests new documents.
type RAG struct {
	retriever *Retriever
	embedder  TextEmbedder
	index     vectorindex.Index
	generator llmservice.Generator
	opts      Options
}

func NewRAG(embedder TextEmbedder, index vectorindex.Index, generator llmservice.Generator, opts Options) *RAG {
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = DefaultMaxContextChars
	}
	return &RAG{
		retriever: NewRetriever(embedder, index, opts.TopK),
		embedder:  embedder,
		index:     index,
		generator: generator,
		opts:      opts,
	}
}

// Answer runs one retrieve and generate cycle.
func (r *RAG) Answer(ctx context.Context, question, explicitContext string) (models.AnswerResult, error) {
	start := time.Now()
	defer func() { metrics.AnswerDuration.Observe(time.Since(start).Seconds()) }()

	chunks := r.retriever.Retrieve(ctx, question, explicitContext, r.opts.TopK)
	if len(chunks) == 0 {
		metrics.Questions.WithLabelValues("not_found").Inc()
		return models.AnswerResult{
			Answer:     models.NotFoundAnswer,
			Sources:    []string{},
			Confidence: 0,
		}, nil
	}

	answer, err := r.generator.Generate(ctx, llmservice.Request{
		System:      models.SystemPrompt,
		User:        fmt.Sprintf(models.UserPromptTemplate, buildContext(chunks, r.opts.MaxContextChars), question),
		MaxTokens:   r.opts.MaxTokens,
		Temperature: r.opts.Temperature,
	})
	if err != nil {
		metrics.Questions.WithLabelValues("error").Inc()
		return models.AnswerResult{}, fmt.Errorf("%w: %w", ErrSynthesis, err)
	}

	sources := make([]string, len(chunks))
	for i, c := range chunks {
		sources[i] = c.Source
	}
	metrics.Questions.WithLabelValues("answered").Inc()
	return models.AnswerResult{
		Answer:     answer,
		Sources:    sources,
		Confidence: chunks[0].Score,
	}, nil
}

// buildContext joins chunk blocks in rank order while they fit in maxChars.
// The first block is always kept, cut to maxChars if it is too long alone.
func buildContext(chunks []models.RetrievedChunk, maxChars int) string {
	var b strings.Builder
	used := 0
	for i, c := range chunks {
		block := fmt.Sprintf(models.ContextBlockTemplate, c.Source, c.Text)
		n := utf8.RuneCountInString(block)
		if i == 0 {
			if n > maxChars {
				block = truncateRunes(block, maxChars)
				n = maxChars
			}
			b.WriteString(block)
			used = n
			continue
		}
		sep := utf8.RuneCountInString(models.ContextSeparator)
		if used+sep+n > maxChars {
			log.Debug().Int("kept", i).Int("total", len(chunks)).Msg("Context budget reached")
			break
		}
		b.WriteString(models.ContextSeparator)
		b.WriteString(block)
		used += sep + n
	}
	return b.String()
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// IndexDocument embeds text and upserts it under id, replacing any existing
// record with that id.
func (r *RAG) IndexDocument(ctx context.Context, text, source string, id uint64) error {
	vec, err := r.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("failed to embed %s: %w", source, err)
	}
	err = r.index.Upsert(ctx, vectorindex.Record{
		ID:      id,
		Vector:  vec,
		Payload: vectorindex.Payload{Text: text, Source: source},
	})
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", source, err)
	}
	log.Debug().Uint64("id", id).Str("source", source).Msg("Indexed document")
	return nil
}
