package embedding

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"textbook-rag/internal/config"
	"textbook-rag/internal/vectorindex"
)

// ErrDimensionMismatch is returned when the model produces vectors of a
// different size than configured. It is the same error the vector index uses.
var ErrDimensionMismatch = vectorindex.ErrDimensionMismatch

const probeText = "dimension probe"

// Embedder turns text into fixed-size vectors and checks every result
// against the configured dimension.
type Embedder struct {
	client    embeddings.Embedder
	model     string
	dimension int
}

func New(client embeddings.Embedder, model string, dimension int) *Embedder {
	return &Embedder{client: client, model: model, dimension: dimension}
}

// NewEmbedder builds a langchaingo embedder for the configured provider.
func NewEmbedder(cfg config.EmbedConfig) (*Embedder, error) {
	log.Debug().Interface("config", map[string]any{
		"provider":  cfg.Provider,
		"base_url":  cfg.BaseURL,
		"model":     cfg.Model,
		"dimension": cfg.Dimension,
	}).Msg("Creating embedder")

	var client embeddings.EmbedderClient
	switch cfg.Provider {
	case "ollama":
		llm, err := ollama.New(
			ollama.WithServerURL(cfg.BaseURL),
			ollama.WithModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize ollama client: %w", err)
		}
		client = llm
	case "openai":
		llm, err := openai.New(
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithToken(strings.TrimPrefix(cfg.Key, "Bearer ")),
			openai.WithEmbeddingModel(cfg.Model),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize openai client: %w", err)
		}
		client = llm
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}

	impl, err := embeddings.NewEmbedder(client)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}
	return New(impl, cfg.Model, cfg.Dimension), nil
}

func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vec, err := e.client.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("failed to embed text: %w", err)
	}
	if len(vec) != e.dimension {
		return nil, fmt.Errorf("%w: model %s returned %d dimensions, configured %d",
			ErrDimensionMismatch, e.model, len(vec), e.dimension)
	}
	return vec, nil
}

func (e *Embedder) Dimension() int { return e.dimension }

func (e *Embedder) Model() string { return e.model }

// Verify embeds a probe string so a wrong dimension is caught before any
// request is served.
func (e *Embedder) Verify(ctx context.Context) error {
	_, err := e.Embed(ctx, probeText)
	if err != nil && !errors.Is(err, ErrDimensionMismatch) {
		log.Warn().Err(err).Str("model", e.model).Msg("Embedding model did not answer the probe")
	}
	return err
}
