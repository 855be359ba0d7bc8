package main

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"textbook-rag/internal/chromemdb"
	"textbook-rag/internal/config"
	"textbook-rag/internal/db"
	"textbook-rag/internal/embedding"
	"textbook-rag/internal/llmservice"
	"textbook-rag/internal/qdrant"
	"textbook-rag/internal/rag"
	"textbook-rag/internal/vectorindex"
)

// app holds everything a command needs. Build it once per process.
type app struct {
	rag     *rag.RAG
	chromem *chromemdb.VectorDBManager
	history *db.HistoryStore
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			log.Warn().Err(err).Msg("Error during shutdown")
		}
	}
}

// newApp wires the pipeline from cfg. Configuration errors are fatal; an
// unreachable index or embedding model is logged and the app still starts.
func newApp(ctx context.Context, cfg *config.Config, withLLM bool) *app {
	a := &app{}

	var database *bun.DB
	if cfg.Database.URL != "" {
		var err error
		database, err = db.Open(ctx, &cfg.Database)
		switch {
		case err == nil:
			a.closers = append(a.closers, database.Close)
		case cfg.VectorIndex.Backend == "pgvector":
			log.Fatal().Err(err).Msg("Error connecting to database")
		default:
			log.Warn().Err(err).Msg("Database unavailable, chat history disabled")
			database = nil
		}
	}

	embedder, err := embedding.NewEmbedder(cfg.EmbedLLM)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing embedder")
	}
	if err := embedder.Verify(ctx); errors.Is(err, embedding.ErrDimensionMismatch) {
		log.Fatal().Err(err).Msg("Embedding dimension does not match configuration")
	}

	var textEmbedder rag.TextEmbedder = embedder
	if cfg.Cache.RedisAddr != "" {
		cached := embedding.NewCachedEmbedder(embedder, cfg.Cache)
		a.closers = append(a.closers, cached.Close)
		textEmbedder = cached
	}

	index := a.buildIndex(cfg, database)
	res := index.EnsureCollection(ctx)
	switch res.Status {
	case vectorindex.StatusIncompatible:
		log.Fatal().Err(res.Err).Msg("Vector index collection is incompatible")
	case vectorindex.StatusUnreachable:
		log.Warn().Err(res.Err).Msg("Vector index unreachable, answers will degrade until it recovers")
	default:
		log.Info().Str("collection", cfg.VectorIndex.Collection).Stringer("status", res.Status).Msg("Vector index ready")
	}

	var generator llmservice.Generator
	if withLLM {
		if err := cfg.RequireLLM(); err != nil {
			log.Fatal().Err(err).Msg("Invalid llm configuration")
		}
		generator, err = llmservice.New(cfg.LLM)
		if err != nil {
			log.Fatal().Err(err).Msg("Error initializing llm")
		}
	}

	a.rag = rag.NewRAG(textEmbedder, index, generator, rag.Options{
		TopK:            cfg.RAG.TopK,
		MaxContextChars: cfg.RAG.MaxContextChars,
		MaxTokens:       cfg.LLM.MaxTokens,
		Temperature:     cfg.LLM.Temperature,
	})

	if database != nil {
		history := db.NewHistoryStore(database)
		if err := history.Init(ctx); err != nil {
			log.Warn().Err(err).Msg("Chat history disabled")
		} else {
			a.history = history
		}
	}
	return a
}

func (a *app) buildIndex(cfg *config.Config, database *bun.DB) vectorindex.Index {
	metric, err := vectorindex.ParseMetric(cfg.VectorIndex.Metric)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid metric")
	}
	spec := vectorindex.CollectionSpec{
		Name:      cfg.VectorIndex.Collection,
		Dimension: cfg.EmbedLLM.Dimension,
		Metric:    metric,
	}

	switch cfg.VectorIndex.Backend {
	case "chromem":
		c := cfg.VectorIndex.Chromem
		m, err := chromemdb.NewVectorDBManager(chromemdb.Options{
			Path:          c.Path,
			InMemory:      c.InMemory,
			Compress:      c.Compress,
			EncryptionKey: c.EncryptionKey,
		}, spec)
		if err != nil {
			log.Fatal().Err(err).Msg("Error opening chromem database")
		}
		a.chromem = m
		return m
	case "pgvector":
		return db.NewVectorIndex(database, spec)
	default:
		q := cfg.VectorIndex.Qdrant
		return qdrant.NewStorage(qdrant.Config{
			URL:     q.URL,
			APIKey:  q.APIKey,
			Timeout: time.Duration(q.TimeoutSecs) * time.Second,
		}, spec)
	}
}
