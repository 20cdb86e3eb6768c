// Package reranker scores (query, passage) pairs with a cross-encoder
// model served over HTTP. Joint scoring is higher fidelity than the
// bi-encoder similarity used for candidate retrieval.
package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"document-qa/internal/config"
)

// Reranker scores one (query, passage) pair. Higher is more relevant.
// Scores are not comparable across model versions. Implementations keep
// no cross-pair state.
type Reranker interface {
	Score(ctx context.Context, query, passage string) (float64, error)
	ModelVersion() string
}

// HTTPReranker calls a cross-encoder inference service, e.g. a local
// server hosting ms-marco-MiniLM-L-6-v2.
type HTTPReranker struct {
	baseURL string
	model   string
	client  *http.Client
}

func NewHTTPReranker(cfg *config.RerankerConfig) *HTTPReranker {
	return &HTTPReranker{
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		client:  &http.Client{Timeout: time.Duration(cfg.TimeoutSecs) * time.Second},
	}
}

func (r *HTTPReranker) ModelVersion() string { return r.model }

func (r *HTTPReranker) Score(ctx context.Context, query, passage string) (float64, error) {
	payload := struct {
		Model   string `json:"model,omitempty"`
		Query   string `json:"query"`
		Passage string `json:"passage"`
	}{
		Model:   r.model,
		Query:   query,
		Passage: passage,
	}

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/rerank", bytes.NewBuffer(jsonData))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("reranker request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("reranker request failed: %d, %s", resp.StatusCode, string(body))
	}

	var out struct {
		Score float64 `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, fmt.Errorf("decode reranker response: %w", err)
	}
	return out.Score, nil
}
