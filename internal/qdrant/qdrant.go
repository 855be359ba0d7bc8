package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"textbook-rag/internal/vectorindex"
)

var errNotFound = errors.New("not found")

// Storage is a REST client for a single Qdrant collection.
type Storage struct {
	url    string
	apiKey string
	spec   vectorindex.CollectionSpec
	client *http.Client
}

type Config struct {
	URL     string
	APIKey  string
	Timeout time.Duration
}

func NewStorage(cfg Config, spec vectorindex.CollectionSpec) *Storage {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 15 * time.Second
	}
	return &Storage{
		url:    strings.TrimRight(cfg.URL, "/"),
		apiKey: cfg.APIKey,
		spec:   spec,
		client: &http.Client{Timeout: timeout},
	}
}

func distanceName(m vectorindex.Metric) string {
	switch m {
	case vectorindex.Dot:
		return "Dot"
	case vectorindex.Euclid:
		return "Euclid"
	default:
		return "Cosine"
	}
}

func (s *Storage) collectionURL(suffix string) string {
	return s.url + "/collections/" + url.PathEscape(s.spec.Name) + suffix
}

type vectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type collectionInfo struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors json.RawMessage `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

// EnsureCollection creates the collection if it is missing. An existing
// collection with a different size or distance is reported as incompatible.
func (s *Storage) EnsureCollection(ctx context.Context) vectorindex.EnsureResult {
	var info collectionInfo
	err := s.do(ctx, http.MethodGet, s.collectionURL(""), nil, &info)
	switch {
	case err == nil:
		return s.checkExisting(info)
	case errors.Is(err, errNotFound):
	default:
		return vectorindex.EnsureResult{Status: vectorindex.StatusUnreachable, Err: err}
	}

	body := map[string]any{
		"vectors": vectorParams{Size: s.spec.Dimension, Distance: distanceName(s.spec.Metric)},
	}
	if err := s.do(ctx, http.MethodPut, s.collectionURL(""), body, nil); err != nil {
		return vectorindex.EnsureResult{Status: vectorindex.StatusUnreachable, Err: err}
	}
	log.Info().Str("collection", s.spec.Name).Msg("Created qdrant collection")
	return vectorindex.EnsureResult{Status: vectorindex.StatusCreated}
}

func (s *Storage) checkExisting(info collectionInfo) vectorindex.EnsureResult {
	var params vectorParams
	// named vector configs are not checked
	if err := json.Unmarshal(info.Result.Config.Params.Vectors, &params); err != nil || params.Size == 0 {
		return vectorindex.EnsureResult{Status: vectorindex.StatusExists}
	}
	if params.Size != s.spec.Dimension || !strings.EqualFold(params.Distance, distanceName(s.spec.Metric)) {
		return vectorindex.EnsureResult{
			Status: vectorindex.StatusIncompatible,
			Err: fmt.Errorf("%w: collection %s has size %d distance %s, want %d %s",
				vectorindex.ErrDimensionMismatch, s.spec.Name, params.Size, params.Distance,
				s.spec.Dimension, distanceName(s.spec.Metric)),
		}
	}
	return vectorindex.EnsureResult{Status: vectorindex.StatusExists}
}

type point struct {
	ID      uint64              `json:"id"`
	Vector  []float32           `json:"vector"`
	Payload vectorindex.Payload `json:"payload"`
}

func (s *Storage) Upsert(ctx context.Context, rec vectorindex.Record) error {
	if err := s.spec.CheckVector(rec.Vector); err != nil {
		return err
	}
	body := map[string]any{
		"points": []point{{ID: rec.ID, Vector: rec.Vector, Payload: rec.Payload}},
	}
	return s.do(ctx, http.MethodPut, s.collectionURL("/points?wait=true"), body, nil)
}

type searchResponse struct {
	Result []struct {
		ID      json.RawMessage     `json:"id"`
		Score   float64             `json:"score"`
		Payload vectorindex.Payload `json:"payload"`
	} `json:"result"`
}

func (s *Storage) Search(ctx context.Context, vector []float32, k int) ([]vectorindex.Hit, error) {
	if err := s.spec.CheckVector(vector); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, nil
	}
	req := map[string]any{
		"vector":       vector,
		"limit":        k,
		"with_payload": true,
	}
	var resp searchResponse
	if err := s.do(ctx, http.MethodPost, s.collectionURL("/points/search"), req, &resp); err != nil {
		return nil, err
	}

	hits := make([]vectorindex.Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		id, err := strconv.ParseUint(strings.Trim(string(r.ID), `"`), 10, 64)
		if err != nil {
			log.Warn().RawJSON("id", r.ID).Msg("Skipping point with non-numeric id")
			continue
		}
		score := r.Score
		// qdrant reports euclidean distance; map it so higher is better
		if s.spec.Metric == vectorindex.Euclid {
			score = 1 / (1 + score)
		}
		hits = append(hits, vectorindex.Hit{ID: id, Payload: r.Payload, Score: score})
	}
	return hits, nil
}

func (s *Storage) do(ctx context.Context, method, endpoint string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("qdrant %s %s: %w", method, endpoint, errNotFound)
	}
	if resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("qdrant %s %s failed: %s: %s", method, endpoint, resp.Status, strings.TrimSpace(string(msg)))
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
