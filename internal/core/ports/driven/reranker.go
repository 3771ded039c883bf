package driven

import (
	"context"

	"github.com/custodia-labs/ragkit/internal/core/domain"
)

// Reranker reorders (and may truncate) an already-retrieved candidate
// list using a more expensive relevance model. Pure over its inputs.
type Reranker interface {
	// Rerank returns the candidates reordered by relevance to the query.
	Rerank(ctx context.Context, chunks []domain.RetrievedChunk, query string) ([]domain.RetrievedChunk, error)
}

// LLMBacked marks rerankers that invoke a language model per candidate.
// The retrieval pipeline truncates their input to top-k first, since an
// LLM call per candidate over the whole first round is too expensive.
type LLMBacked interface {
	LLMBacked() bool
}
