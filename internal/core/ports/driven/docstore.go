package driven

import (
	"context"

	"github.com/custodia-labs/ragkit/internal/core/domain"
)

// DocumentStore persists full chunk records for keyword search and bulk
// id lookup. It is decoupled from the embedding backend so pure-text
// retrieval keeps working when vector search is degraded.
type DocumentStore interface {
	// Add upserts full chunk records.
	Add(ctx context.Context, chunks []domain.Chunk) error

	// Get returns the chunks that exist for the requested ids, in an
	// order correlated with the input but not guaranteed to match it.
	// Callers that need positional alignment must re-key by id.
	Get(ctx context.Context, ids []string) ([]domain.Chunk, error)

	// Query performs keyword search within a scope, ranked by the
	// store's native text relevance. An empty scope returns an empty
	// list, never an error: full-text search without a subset filter
	// is unsupported.
	Query(ctx context.Context, text string, topK int, scope []string) ([]domain.Chunk, error)
}
