// Package vectorindex defines the contract shared by the vector index
// backends: a single collection of (id, vector, payload) records with a fixed
// dimension and similarity metric.
package vectorindex

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrDimensionMismatch = errors.New("vector dimension mismatch")

type Metric string

const (
	Cosine Metric = "cosine"
	Dot    Metric = "dot"
	Euclid Metric = "euclid"
)

// ParseMetric accepts the metric names used in config, case-insensitively.
func ParseMetric(s string) (Metric, error) {
	switch m := Metric(strings.ToLower(strings.TrimSpace(s))); m {
	case Cosine, Dot, Euclid:
		return m, nil
	default:
		return "", fmt.Errorf("unknown similarity metric %q", s)
	}
}

// CollectionSpec fixes the collection a backend operates on.
type CollectionSpec struct {
	Name      string
	Dimension int
	Metric    Metric
}

// CheckVector returns ErrDimensionMismatch unless len(v) equals the collection dimension.
func (s CollectionSpec) CheckVector(v []float32) error {
	if len(v) != s.Dimension {
		return fmt.Errorf("%w: collection %s expects %d, got %d", ErrDimensionMismatch, s.Name, s.Dimension, len(v))
	}
	return nil
}

type Payload struct {
	Text   string `json:"text"`
	Source string `json:"source"`
}

// Record is the unit stored in the index. IDs are assigned by the caller;
// upserting an existing ID replaces the record.
type Record struct {
	ID      uint64
	Vector  []float32
	Payload Payload
}

// Hit is one search result. Higher scores are more similar.
type Hit struct {
	ID      uint64
	Payload Payload
	Score   float64
}

type EnsureStatus int

const (
	// StatusCreated means the collection did not exist and was created.
	StatusCreated EnsureStatus = iota
	// StatusExists means a compatible collection was already there.
	StatusExists
	// StatusUnreachable means the backend could not be reached. Startup may
	// continue; searches will come back empty until it recovers.
	StatusUnreachable
	// StatusIncompatible means the collection exists with another dimension
	// or metric. This is a configuration error.
	StatusIncompatible
)

func (s EnsureStatus) String() string {
	switch s {
	case StatusCreated:
		return "created"
	case StatusExists:
		return "exists"
	case StatusUnreachable:
		return "unreachable"
	case StatusIncompatible:
		return "incompatible"
	default:
		return fmt.Sprintf("EnsureStatus(%d)", int(s))
	}
}

// EnsureResult reports the outcome of EnsureCollection. Err is set for
// StatusUnreachable and StatusIncompatible.
type EnsureResult struct {
	Status EnsureStatus
	Err    error
}

// OK reports whether the collection is ready for use.
func (r EnsureResult) OK() bool {
	return r.Status == StatusCreated || r.Status == StatusExists
}

// Index is implemented by every vector index backend. Implementations are
// safe for concurrent use.
type Index interface {
	// EnsureCollection creates the collection when missing. It is idempotent
	// and safe to call on every start.
	EnsureCollection(ctx context.Context) EnsureResult

	// Upsert inserts rec or fully replaces the record with the same ID.
	Upsert(ctx context.Context, rec Record) error

	// Search returns at most k hits ordered by descending score.
	Search(ctx context.Context, vector []float32, k int) ([]Hit, error)
}
