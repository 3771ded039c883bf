package reranker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

// scriptedLLM answers relevance judgements by document content.
type scriptedLLM struct {
	err error
}

func (s *scriptedLLM) Generate(_ context.Context, prompt string, _ driven.GenerateOptions) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if strings.Contains(prompt, "irrelevant") {
		return "false", nil
	}
	return "true", nil
}
func (s *scriptedLLM) ModelName() string          { return "scripted" }
func (s *scriptedLLM) Ping(context.Context) error { return nil }
func (s *scriptedLLM) Close() error               { return nil }

func candidates(texts ...string) []domain.RetrievedChunk {
	out := make([]domain.RetrievedChunk, len(texts))
	for i, text := range texts {
		out[i] = domain.RetrievedChunk{
			Chunk: domain.Chunk{ID: text, Text: text},
			Score: 0.5,
		}
	}
	return out
}

func TestLLMReranker_FiltersIrrelevant(t *testing.T) {
	r := NewLLMReranker(&scriptedLLM{})

	result, err := r.Rerank(context.Background(),
		candidates("first relevant", "irrelevant noise", "second relevant"), "query")
	require.NoError(t, err)
	require.Len(t, result, 2)
	// Survivor order is preserved.
	assert.Equal(t, "first relevant", result[0].ID)
	assert.Equal(t, "second relevant", result[1].ID)
}

func TestLLMReranker_KeepsCandidateOnJudgementError(t *testing.T) {
	r := NewLLMReranker(&scriptedLLM{err: errors.New("provider down")})

	result, err := r.Rerank(context.Background(), candidates("a", "b"), "query")
	require.NoError(t, err)
	assert.Len(t, result, 2)
}

func TestLLMReranker_EmptyInput(t *testing.T) {
	r := NewLLMReranker(&scriptedLLM{})

	result, err := r.Rerank(context.Background(), nil, "query")
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestLLMReranker_IsLLMBacked(t *testing.T) {
	assert.True(t, NewLLMReranker(&scriptedLLM{}).LLMBacked())
}

func TestCohereReranker_ScoresAndSorts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rerank", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req rerankRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Len(t, req.Documents, 3)

		// Score the middle document highest.
		resp := rerankResponse{}
		resp.Results = []struct {
			Index          int     `json:"index"`
			RelevanceScore float64 `json:"relevance_score"`
		}{
			{Index: 0, RelevanceScore: 0.2},
			{Index: 1, RelevanceScore: 0.9},
			{Index: 2, RelevanceScore: 0.5},
		}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	r, err := NewCohereReranker(CohereConfig{APIKey: "test-key", BaseURL: server.URL})
	require.NoError(t, err)

	result, err := r.Rerank(context.Background(), candidates("a", "b", "c"), "query")
	require.NoError(t, err)
	require.Len(t, result, 3)

	assert.Equal(t, "b", result[0].ID)
	require.NotNil(t, result[0].RerankingScore)
	assert.InDelta(t, 0.9, *result[0].RerankingScore, 1e-9)
	assert.InDelta(t, 0.9, result[0].Score, 1e-9)
	assert.Equal(t, "c", result[1].ID)
	assert.Equal(t, "a", result[2].ID)
}

func TestCohereReranker_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"invalid api token"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	r, err := NewCohereReranker(CohereConfig{APIKey: "bad", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = r.Rerank(context.Background(), candidates("a"), "query")
	assert.ErrorContains(t, err, "status 401")
}

func TestCohereReranker_RequiresAPIKey(t *testing.T) {
	_, err := NewCohereReranker(CohereConfig{})
	assert.Error(t, err)
}
