package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"math"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog/log"

	"textbook-rag/internal/config"
	"textbook-rag/internal/metrics"
)

const cacheKeyPrefix = "textbook-rag:embedding:"

// CachedEmbedder keeps embeddings in Redis. Cache failures never fail a
// request; the underlying embedder is used instead.
type CachedEmbedder struct {
	next *Embedder
	rdb  *redis.Client
	ttl  time.Duration
}

func NewCachedEmbedder(next *Embedder, cfg config.CacheConfig) *CachedEmbedder {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	return NewCachedEmbedderWithClient(next, rdb, time.Duration(cfg.TTLSecs)*time.Second)
}

func NewCachedEmbedderWithClient(next *Embedder, rdb *redis.Client, ttl time.Duration) *CachedEmbedder {
	return &CachedEmbedder{next: next, rdb: rdb, ttl: ttl}
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(c.next.Model(), text)

	data, err := c.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		if vec, ok := decodeVector(data, c.next.Dimension()); ok {
			metrics.EmbeddingCache.WithLabelValues("hit").Inc()
			return vec, nil
		}
		metrics.EmbeddingCache.WithLabelValues("miss").Inc()
	case errors.Is(err, redis.Nil):
		metrics.EmbeddingCache.WithLabelValues("miss").Inc()
	default:
		metrics.EmbeddingCache.WithLabelValues("error").Inc()
		log.Warn().Err(err).Msg("Embedding cache lookup failed")
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if err := c.rdb.Set(ctx, key, encodeVector(vec), c.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("Embedding cache write failed")
	}
	return vec, nil
}

func (c *CachedEmbedder) Dimension() int { return c.next.Dimension() }

func (c *CachedEmbedder) Close() error { return c.rdb.Close() }

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return cacheKeyPrefix + model + ":" + hex.EncodeToString(sum[:])
}

func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// decodeVector rejects entries written for another dimension.
func decodeVector(data []byte, dimension int) ([]float32, bool) {
	if len(data) != 4*dimension {
		return nil, false
	}
	vec := make([]float32, dimension)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return vec, true
}
