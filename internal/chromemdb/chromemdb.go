package chromemdb

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/philippgille/chromem-go"
	"github.com/rs/zerolog/log"

	"textbook-rag/internal/vectorindex"
)

const sourceKey = "source"

// VectorDBManager is an embedded vector index backed by chromem-go. Only the
// cosine metric is supported.
type VectorDBManager struct {
	db            *chromem.DB
	spec          vectorindex.CollectionSpec
	compress      bool
	encryptionKey string
}

type Options struct {
	Path          string
	InMemory      bool
	Compress      bool
	EncryptionKey string
}

var errNoEmbedding = errors.New("chromemdb: documents must carry precomputed embeddings")

// embeddings are always computed by the caller; chromem must never call out
func noEmbed(context.Context, string) ([]float32, error) { return nil, errNoEmbedding }

// NewVectorDBManager opens (or creates) the chromem database.
func NewVectorDBManager(opts Options, spec vectorindex.CollectionSpec) (*VectorDBManager, error) {
	if spec.Metric != vectorindex.Cosine {
		return nil, fmt.Errorf("chromemdb supports cosine only, got %q", spec.Metric)
	}

	var db *chromem.DB
	var err error
	if opts.InMemory {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(opts.Path, opts.Compress)
		if err != nil {
			return nil, fmt.Errorf("failed to create database: %w", err)
		}
	}

	return &VectorDBManager{
		db:            db,
		spec:          spec,
		compress:      opts.Compress,
		encryptionKey: opts.EncryptionKey,
	}, nil
}

func (m *VectorDBManager) EnsureCollection(ctx context.Context) vectorindex.EnsureResult {
	if m.db.GetCollection(m.spec.Name, noEmbed) != nil {
		return vectorindex.EnsureResult{Status: vectorindex.StatusExists}
	}
	_, err := m.db.CreateCollection(m.spec.Name, map[string]string{
		"dimension": strconv.Itoa(m.spec.Dimension),
		"metric":    string(m.spec.Metric),
	}, noEmbed)
	if err != nil {
		return vectorindex.EnsureResult{
			Status: vectorindex.StatusUnreachable,
			Err:    fmt.Errorf("failed to create collection: %w", err),
		}
	}
	log.Info().Str("collection", m.spec.Name).Msg("Created chromem collection")
	return vectorindex.EnsureResult{Status: vectorindex.StatusCreated}
}

func (m *VectorDBManager) collection() (*chromem.Collection, error) {
	c := m.db.GetCollection(m.spec.Name, noEmbed)
	if c == nil {
		return nil, fmt.Errorf("collection %s not found", m.spec.Name)
	}
	return c, nil
}

// Upsert replaces any document with the same id.
func (m *VectorDBManager) Upsert(ctx context.Context, rec vectorindex.Record) error {
	if err := m.spec.CheckVector(rec.Vector); err != nil {
		return err
	}
	c, err := m.collection()
	if err != nil {
		return err
	}

	doc := chromem.Document{
		ID:        strconv.FormatUint(rec.ID, 10),
		Content:   rec.Payload.Text,
		Metadata:  map[string]string{sourceKey: rec.Payload.Source},
		Embedding: append([]float32(nil), rec.Vector...),
	}
	if err := c.AddDocument(ctx, doc); err != nil {
		return fmt.Errorf("failed to add document: %w", err)
	}
	return nil
}

func (m *VectorDBManager) Search(ctx context.Context, vector []float32, k int) ([]vectorindex.Hit, error) {
	if err := m.spec.CheckVector(vector); err != nil {
		return nil, err
	}
	c, err := m.collection()
	if err != nil {
		return nil, err
	}

	// chromem rejects nResults larger than the collection
	count := c.Count()
	if count == 0 || k <= 0 {
		return nil, nil
	}
	k = min(k, count)

	results, err := c.QueryEmbedding(ctx, vector, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to query by similarity: %w", err)
	}

	hits := make([]vectorindex.Hit, 0, len(results))
	for _, r := range results {
		id, err := strconv.ParseUint(r.ID, 10, 64)
		if err != nil {
			log.Warn().Str("id", r.ID).Msg("Skipping document with non-numeric id")
			continue
		}
		hits = append(hits, vectorindex.Hit{
			ID:      id,
			Payload: vectorindex.Payload{Text: r.Content, Source: r.Metadata[sourceKey]},
			Score:   float64(r.Similarity),
		})
	}
	return hits, nil
}

// Export writes an encrypted snapshot of the collection to filePath.
func (m *VectorDBManager) Export(filePath string) error {
	if m.encryptionKey == "" {
		return fmt.Errorf("encryption key is required")
	}
	if _, err := m.collection(); err != nil {
		return err
	}

	log.Debug().
		Str("collection", m.spec.Name).
		Str("file", filePath).
		Bool("compress", m.compress).
		Msg("Exporting collection")

	if err := m.db.ExportToFile(filePath, m.compress, m.encryptionKey, m.spec.Name); err != nil {
		return fmt.Errorf("failed to export database: %w", err)
	}
	return nil
}
