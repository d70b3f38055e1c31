package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"time"
)

// Reranker rescores (query, chunk-text) pairs with a precision-oriented
// pairwise model and sorts descending by that score.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []Candidate) ([]Candidate, error)
}

// NopReranker keeps the MMR-selected order untouched. Used when no rerank
// endpoint is configured.
type NopReranker struct{}

func (NopReranker) Rerank(ctx context.Context, query string, candidates []Candidate) ([]Candidate, error) {
	return candidates, nil
}

// HTTPReranker calls a Jina/Cohere-style /v1/rerank endpoint served by a
// local cross-encoder.
type HTTPReranker struct {
	url        string
	model      string
	httpClient *http.Client
}

func NewHTTPReranker(url, model string, timeoutSeconds int) *HTTPReranker {
	return &HTTPReranker{
		url:   url,
		model: model,
		httpClient: &http.Client{
			Timeout: time.Duration(timeoutSeconds) * time.Second,
		},
	}
}

type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
	TopN      int      `json:"top_n"`
}

type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank scores each candidate against the query and returns them sorted by
// descending relevance. Any failure leaves the input untouched for the
// caller's fallback.
func (r *HTTPReranker) Rerank(ctx context.Context, query string, candidates []Candidate) ([]Candidate, error) {
	if len(candidates) == 0 {
		return candidates, nil
	}

	docs := make([]string, len(candidates))
	for i, c := range candidates {
		docs[i] = c.Chunk.Content
	}

	body, err := json.Marshal(rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: docs,
		TopN:      len(docs),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal rerank request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("rerank request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("rerank endpoint returned %s", resp.Status)
	}

	var payload rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode rerank response: %w", err)
	}
	if len(payload.Results) == 0 {
		return nil, fmt.Errorf("rerank endpoint returned no results")
	}

	ranked := make([]Candidate, len(candidates))
	copy(ranked, candidates)
	for _, res := range payload.Results {
		if res.Index < 0 || res.Index >= len(ranked) {
			return nil, fmt.Errorf("rerank result index %d out of range", res.Index)
		}
		ranked[res.Index].RerankScore = res.RelevanceScore
		ranked[res.Index].Reranked = true
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RerankScore > ranked[j].RerankScore
	})
	return ranked, nil
}
