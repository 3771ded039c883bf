package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"time"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

// Ensure CohereReranker implements the interface.
var _ driven.Reranker = (*CohereReranker)(nil)

// Default configuration values.
const (
	DefaultCohereBaseURL = "https://api.cohere.com/v1"
	DefaultCohereModel   = "rerank-multilingual-v2.0"
	DefaultCohereTimeout = 30 * time.Second
)

// CohereConfig holds configuration for the Cohere rerank API client.
type CohereConfig struct {
	// APIKey is the Cohere API key (required).
	APIKey string

	// BaseURL is the API base URL (default: https://api.cohere.com/v1).
	BaseURL string

	// Model is the rerank model to use (default: rerank-multilingual-v2.0).
	Model string

	// Timeout is the request timeout (default: 30s).
	Timeout time.Duration
}

// CohereReranker reorders candidates using the Cohere rerank API. Each
// returned chunk carries the API's relevance score in RerankingScore
// and as its Score.
type CohereReranker struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// rerankRequest is the Cohere /rerank request format.
type rerankRequest struct {
	Model     string   `json:"model"`
	Query     string   `json:"query"`
	Documents []string `json:"documents"`
}

// rerankResponse is the Cohere /rerank response format.
type rerankResponse struct {
	Results []struct {
		Index          int     `json:"index"`
		RelevanceScore float64 `json:"relevance_score"`
	} `json:"results"`
	Message string `json:"message,omitempty"`
}

// NewCohereReranker creates a Cohere rerank API client.
func NewCohereReranker(cfg CohereConfig) (*CohereReranker, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("cohere: API key is required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCohereBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultCohereModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultCohereTimeout
	}

	return &CohereReranker{
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
	}, nil
}

// Rerank scores every candidate against the query in one API call and
// returns them sorted by relevance, highest first.
func (r *CohereReranker) Rerank(ctx context.Context, chunks []domain.RetrievedChunk, query string) ([]domain.RetrievedChunk, error) {
	if len(chunks) == 0 {
		return chunks, nil
	}

	documents := make([]string, len(chunks))
	for i, chunk := range chunks {
		documents[i] = chunk.Text
	}

	reqBody := rerankRequest{
		Model:     r.model,
		Query:     query,
		Documents: documents,
	}
	jsonBody, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(
		ctx,
		http.MethodPost,
		r.baseURL+"/rerank",
		bytes.NewReader(jsonBody),
	)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("cohere error (status %d): %s", resp.StatusCode, string(body))
	}

	var rerankResp rerankResponse
	if err := json.Unmarshal(body, &rerankResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	result := make([]domain.RetrievedChunk, 0, len(rerankResp.Results))
	for _, res := range rerankResp.Results {
		if res.Index < 0 || res.Index >= len(chunks) {
			return nil, fmt.Errorf("cohere: result index %d out of range", res.Index)
		}
		chunk := chunks[res.Index]
		score := res.RelevanceScore
		chunk.Score = score
		chunk.RerankingScore = &score
		result = append(result, chunk)
	}

	sort.SliceStable(result, func(i, j int) bool {
		return *result[i].RerankingScore > *result[j].RerankingScore
	})
	return result, nil
}
