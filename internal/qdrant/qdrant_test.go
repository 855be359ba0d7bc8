package qdrant

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"textbook-rag/internal/vectorindex"
)

// fakeQdrant implements the handful of REST endpoints the client uses.
type fakeQdrant struct {
	mu          sync.Mutex
	collections map[string]vectorParams
	points      map[string]map[uint64]point
	apiKeys     []string
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{
		collections: map[string]vectorParams{},
		points:      map[string]map[uint64]point{},
	}
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apiKeys = append(f.apiKeys, r.Header.Get("api-key"))

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) < 2 || parts[0] != "collections" {
		http.NotFound(w, r)
		return
	}
	name := parts[1]

	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		params, ok := f.collections[name]
		if !ok {
			http.Error(w, `{"status":{"error":"Not found"}}`, http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{"config": map[string]any{"params": map[string]any{"vectors": params}}},
		})
	case len(parts) == 2 && r.Method == http.MethodPut:
		var body struct {
			Vectors vectorParams `json:"vectors"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		f.collections[name] = body.Vectors
		f.points[name] = map[uint64]point{}
		w.Write([]byte(`{"result":true}`))
	case len(parts) == 3 && parts[2] == "points" && r.Method == http.MethodPut:
		var body struct {
			Points []point `json:"points"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		for _, p := range body.Points {
			f.points[name][p.ID] = p
		}
		w.Write([]byte(`{"result":{"status":"completed"}}`))
	case len(parts) == 4 && parts[3] == "search" && r.Method == http.MethodPost:
		var body struct {
			Vector []float32 `json:"vector"`
			Limit  int       `json:"limit"`
		}
		json.NewDecoder(r.Body).Decode(&body)
		type scored struct {
			ID      uint64              `json:"id"`
			Score   float64             `json:"score"`
			Payload vectorindex.Payload `json:"payload"`
		}
		var out []scored
		for _, p := range f.points[name] {
			out = append(out, scored{ID: p.ID, Score: cosine(body.Vector, p.Vector), Payload: p.Payload})
		}
		sort.Slice(out, func(i, j int) bool { return out[i].Score > out[j].Score })
		if len(out) > body.Limit {
			out = out[:body.Limit]
		}
		json.NewEncoder(w).Encode(map[string]any{"result": out})
	default:
		http.Error(w, "unexpected", http.StatusBadRequest)
	}
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

var testSpec = vectorindex.CollectionSpec{Name: "physical_ai_textbook", Dimension: 3, Metric: vectorindex.Cosine}

func TestEnsureCollection_CreateThenExists(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL + "/", APIKey: "secret"}, testSpec)
	ctx := context.Background()

	res := s.EnsureCollection(ctx)
	assert.Equal(t, vectorindex.StatusCreated, res.Status)
	assert.Equal(t, vectorParams{Size: 3, Distance: "Cosine"}, fake.collections["physical_ai_textbook"])

	res = s.EnsureCollection(ctx)
	assert.Equal(t, vectorindex.StatusExists, res.Status)
	assert.NoError(t, res.Err)

	for _, k := range fake.apiKeys {
		assert.Equal(t, "secret", k)
	}
}

func TestEnsureCollection_Incompatible(t *testing.T) {
	fake := newFakeQdrant()
	fake.collections["physical_ai_textbook"] = vectorParams{Size: 768, Distance: "Cosine"}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	res := NewStorage(Config{URL: srv.URL}, testSpec).EnsureCollection(context.Background())
	assert.Equal(t, vectorindex.StatusIncompatible, res.Status)
	assert.ErrorIs(t, res.Err, vectorindex.ErrDimensionMismatch)
}

func TestEnsureCollection_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	res := NewStorage(Config{URL: srv.URL}, testSpec).EnsureCollection(context.Background())
	assert.Equal(t, vectorindex.StatusUnreachable, res.Status)
	assert.Error(t, res.Err)
	assert.False(t, res.OK())
}

func TestEnsureCollection_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	}))
	defer srv.Close()

	res := NewStorage(Config{URL: srv.URL}, testSpec).EnsureCollection(context.Background())
	assert.Equal(t, vectorindex.StatusUnreachable, res.Status)
}

func TestUpsertSearch(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake)
	defer srv.Close()

	s := NewStorage(Config{URL: srv.URL}, testSpec)
	ctx := context.Background()
	require.True(t, s.EnsureCollection(ctx).OK())

	vec := []float32{0.3, 0.1, 0.9}
	require.NoError(t, s.Upsert(ctx, vectorindex.Record{
		ID: 5, Vector: vec, Payload: vectorindex.Payload{Text: "ZMP keeps balance.", Source: "balance.md"},
	}))
	require.NoError(t, s.Upsert(ctx, vectorindex.Record{
		ID: 6, Vector: []float32{1, 0, 0}, Payload: vectorindex.Payload{Text: "other", Source: "other.md"},
	}))

	hits, err := s.Search(ctx, vec, 3)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, uint64(5), hits[0].ID)
	assert.Equal(t, "balance.md", hits[0].Payload.Source)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	hits, err = s.Search(ctx, vec, 1)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}

func TestUpsert_DimensionMismatch(t *testing.T) {
	s := NewStorage(Config{URL: "http://unused"}, testSpec)
	err := s.Upsert(context.Background(), vectorindex.Record{ID: 1, Vector: []float32{1}})
	assert.ErrorIs(t, err, vectorindex.ErrDimensionMismatch)
}

func TestSearch_BackendFailurePropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewStorage(Config{URL: srv.URL}, testSpec).Search(context.Background(), []float32{1, 0, 0}, 3)
	assert.Error(t, err)
}

func TestSearch_EuclidScoreMapped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"result":[{"id":1,"score":0,"payload":{"text":"a","source":"a"}},{"id":"2","score":3,"payload":{"text":"b","source":"b"}}]}`))
	}))
	defer srv.Close()

	spec := testSpec
	spec.Metric = vectorindex.Euclid
	hits, err := NewStorage(Config{URL: srv.URL}, spec).Search(context.Background(), []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-9)
	assert.InDelta(t, 0.25, hits[1].Score, 1e-9)
	assert.Equal(t, uint64(2), hits[1].ID)
}
