package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Meta is the per-message metadata stored alongside each vector and returned
// by similarity queries.
type Meta struct {
	ChatID    string `json:"chatId"`
	FromMe    bool   `json:"fromMe"`
	Text      string `json:"text"`
	Timestamp int64  `json:"timestamp"`
}

// Hit is one nearest-neighbor result.
type Hit struct {
	ID       string
	Distance float64
	Meta     Meta
}

// Store is the vector-similarity collaborator.
type Store interface {
	EnsureCollection(ctx context.Context) error
	Upsert(ctx context.Context, id string, vec []float64, meta Meta) error
	Query(ctx context.Context, vec []float64, k int, chatID string) ([]Hit, error)
}

// ChromaStore talks to a Chroma server over its REST API.
type ChromaStore struct {
	baseURL    string
	collection string
	client     *http.Client

	mu      sync.Mutex
	ensured bool
}

// NewChromaStore creates a client for the given server and collection name.
func NewChromaStore(baseURL, collection string) *ChromaStore {
	return &ChromaStore{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
}

// EnsureCollection creates the collection if it does not exist yet. The check
// runs once per process; later calls are free.
func (s *ChromaStore) EnsureCollection(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ensured {
		return nil
	}

	err := s.do(ctx, http.MethodGet, "/api/v1/collections/"+s.collection, nil, nil)
	if err != nil {
		body := map[string]string{"name": s.collection}
		if err := s.do(ctx, http.MethodPost, "/api/v1/collections", body, nil); err != nil {
			return fmt.Errorf("create collection %q: %w", s.collection, err)
		}
	}
	s.ensured = true
	return nil
}

// Upsert stores one vector with its metadata.
func (s *ChromaStore) Upsert(ctx context.Context, id string, vec []float64, meta Meta) error {
	if err := s.EnsureCollection(ctx); err != nil {
		return err
	}
	body := map[string]any{
		"ids":        []string{id},
		"embeddings": [][]float64{vec},
		"metadatas":  []Meta{meta},
	}
	path := fmt.Sprintf("/api/v1/collections/%s/upsert", s.collection)
	if err := s.do(ctx, http.MethodPost, path, body, nil); err != nil {
		return fmt.Errorf("upsert vector %s: %w", id, err)
	}
	return nil
}

type queryResponse struct {
	IDs       [][]string  `json:"ids"`
	Distances [][]float64 `json:"distances"`
	Metadatas [][]Meta    `json:"metadatas"`
}

// Query returns the k nearest neighbors, optionally filtered to one chat.
func (s *ChromaStore) Query(ctx context.Context, vec []float64, k int, chatID string) ([]Hit, error) {
	if err := s.EnsureCollection(ctx); err != nil {
		return nil, err
	}
	body := map[string]any{
		"query_embeddings": [][]float64{vec},
		"n_results":        k,
	}
	if chatID != "" {
		body["where"] = map[string]string{"chatId": chatID}
	}

	var resp queryResponse
	path := fmt.Sprintf("/api/v1/collections/%s/query", s.collection)
	if err := s.do(ctx, http.MethodPost, path, body, &resp); err != nil {
		return nil, fmt.Errorf("query vectors: %w", err)
	}
	if len(resp.IDs) == 0 {
		return nil, nil
	}

	hits := make([]Hit, 0, len(resp.IDs[0]))
	for i, id := range resp.IDs[0] {
		h := Hit{ID: id}
		if len(resp.Distances) > 0 && i < len(resp.Distances[0]) {
			h.Distance = resp.Distances[0][i]
		}
		if len(resp.Metadatas) > 0 && i < len(resp.Metadatas[0]) {
			h.Meta = resp.Metadatas[0][i]
		}
		hits = append(hits, h)
	}
	return hits, nil
}

func (s *ChromaStore) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("chroma %s %s: status %d: %s", method, path, resp.StatusCode, snippet)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode chroma response: %w", err)
		}
	}
	return nil
}
