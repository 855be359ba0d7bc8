package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/uptrace/bun"

	"textbook-rag/internal/vectorindex"
)

// VectorIndex stores records in a pgvector table named after the collection.
type VectorIndex struct {
	db   *bun.DB
	spec vectorindex.CollectionSpec
}

func NewVectorIndex(db *bun.DB, spec vectorindex.CollectionSpec) *VectorIndex {
	return &VectorIndex{db: db, spec: spec}
}

type metricSQL struct {
	op      string // pgvector distance operator
	opclass string // index operator class
	score   string // distance to similarity, higher is better; %s is the distance
}

func sqlForMetric(m vectorindex.Metric) metricSQL {
	switch m {
	case vectorindex.Dot:
		return metricSQL{op: "<#>", opclass: "vector_ip_ops", score: "-(%s)"}
	case vectorindex.Euclid:
		return metricSQL{op: "<->", opclass: "vector_l2_ops", score: "1 / (1 + (%s))"}
	default:
		return metricSQL{op: "<=>", opclass: "vector_cosine_ops", score: "1 - (%s)"}
	}
}

// vectorLiteral renders v in pgvector's text format.
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func (v *VectorIndex) EnsureCollection(ctx context.Context) vectorindex.EnsureResult {
	if _, err := v.db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return vectorindex.EnsureResult{Status: vectorindex.StatusUnreachable, Err: fmt.Errorf("failed to enable pgvector: %w", err)}
	}

	want := fmt.Sprintf("vector(%d)", v.spec.Dimension)
	var have string
	err := v.db.NewRaw(
		"SELECT format_type(a.atttypid, a.atttypmod) FROM pg_attribute a WHERE a.attrelid = to_regclass(?) AND a.attname = 'embedding'",
		v.spec.Name,
	).Scan(ctx, &have)
	switch {
	case err == nil:
		if have != want {
			return vectorindex.EnsureResult{
				Status: vectorindex.StatusIncompatible,
				Err:    fmt.Errorf("%w: table %s has %s, want %s", vectorindex.ErrDimensionMismatch, v.spec.Name, have, want),
			}
		}
		return vectorindex.EnsureResult{Status: vectorindex.StatusExists}
	case errors.Is(err, sql.ErrNoRows):
	default:
		return vectorindex.EnsureResult{Status: vectorindex.StatusUnreachable, Err: err}
	}

	create := fmt.Sprintf(
		"CREATE TABLE IF NOT EXISTS ? (id BIGINT PRIMARY KEY, text TEXT NOT NULL, source TEXT NOT NULL, embedding %s NOT NULL)",
		want)
	if _, err := v.db.ExecContext(ctx, create, bun.Ident(v.spec.Name)); err != nil {
		return vectorindex.EnsureResult{Status: vectorindex.StatusUnreachable, Err: fmt.Errorf("failed to create table: %w", err)}
	}

	m := sqlForMetric(v.spec.Metric)
	index := fmt.Sprintf("CREATE INDEX IF NOT EXISTS ? ON ? USING hnsw (embedding %s)", m.opclass)
	if _, err := v.db.ExecContext(ctx, index, bun.Ident(v.spec.Name+"_embedding_idx"), bun.Ident(v.spec.Name)); err != nil {
		// exact search still works without the index
		log.Warn().Err(err).Str("table", v.spec.Name).Msg("Failed to create hnsw index")
	}

	log.Info().Str("table", v.spec.Name).Msg("Created pgvector table")
	return vectorindex.EnsureResult{Status: vectorindex.StatusCreated}
}

func (v *VectorIndex) Upsert(ctx context.Context, rec vectorindex.Record) error {
	if err := v.spec.CheckVector(rec.Vector); err != nil {
		return err
	}
	_, err := v.db.ExecContext(ctx,
		`INSERT INTO ? (id, text, source, embedding) VALUES (?, ?, ?, ?::vector)
		ON CONFLICT (id) DO UPDATE SET text = EXCLUDED.text, source = EXCLUDED.source, embedding = EXCLUDED.embedding`,
		bun.Ident(v.spec.Name), int64(rec.ID), rec.Payload.Text, rec.Payload.Source, vectorLiteral(rec.Vector),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert record %d: %w", rec.ID, err)
	}
	return nil
}

type vectorRow struct {
	ID     int64   `bun:"id"`
	Text   string  `bun:"text"`
	Source string  `bun:"source"`
	Score  float64 `bun:"score"`
}

func (v *VectorIndex) Search(ctx context.Context, vector []float32, k int) ([]vectorindex.Hit, error) {
	if err := v.spec.CheckVector(vector); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}

	m := sqlForMetric(v.spec.Metric)
	distance := "embedding " + m.op + " ?::vector"
	query := fmt.Sprintf("SELECT id, text, source, %s AS score FROM ? ORDER BY %s LIMIT ?",
		fmt.Sprintf(m.score, distance), distance)
	lit := vectorLiteral(vector)

	var rows []vectorRow
	if err := v.db.NewRaw(query, lit, bun.Ident(v.spec.Name), lit, k).Scan(ctx, &rows); err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", v.spec.Name, err)
	}

	hits := make([]vectorindex.Hit, len(rows))
	for i, r := range rows {
		hits[i] = vectorindex.Hit{
			ID:      uint64(r.ID),
			Payload: vectorindex.Payload{Text: r.Text, Source: r.Source},
			Score:   r.Score,
		}
	}
	return hits, nil
}
