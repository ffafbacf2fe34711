package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// RerankClient implements PairScorer against a text-embeddings-inference
// style /rerank endpoint (a hosted cross-encoder). The endpoint accepts a
// query and candidate texts and returns a relevance score per text.
type RerankClient struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewRerankClient creates a RerankClient targeting the given base URL.
// model may be empty when the endpoint serves a single model.
func NewRerankClient(baseURL, model string) *RerankClient {
	return &RerankClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			// Per-call deadlines come from the request context.
			Timeout: 0,
		},
	}
}

// rerankRequest is the JSON body for POST /rerank.
type rerankRequest struct {
	Model string   `json:"model,omitempty"`
	Query string   `json:"query"`
	Texts []string `json:"texts"`
}

// rerankEntry is one element of the /rerank response array.
type rerankEntry struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Score returns the cross-encoder relevance of passage to query.
func (c *RerankClient) Score(ctx context.Context, query, passage string) (float64, error) {
	body, err := json.Marshal(rerankRequest{Model: c.model, Query: query, Texts: []string{passage}})
	if err != nil {
		return 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/rerank", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("creating rerank request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: rerank request: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return 0, fmt.Errorf("%w: rerank", ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("%w: rerank: unexpected status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var entries []rerankEntry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return 0, fmt.Errorf("decoding rerank response: %w", err)
	}
	if len(entries) == 0 {
		return 0, fmt.Errorf("%w: rerank: empty response", ErrProviderUnavailable)
	}
	return entries[0].Score, nil
}
