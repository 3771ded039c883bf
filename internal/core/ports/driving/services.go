// Package driving defines the ports through which adapters drive the
// core services.
package driving

import (
	"context"

	"github.com/custodia-labs/ragkit/internal/core/domain"
)

// Retriever runs retrieval rounds over the indexed corpus.
type Retriever interface {
	// Retrieve returns ranked chunks for the query. An empty list means
	// no evidence was found; it is never nil alongside a nil error.
	Retrieve(ctx context.Context, query string, opts domain.RetrievalOptions) ([]domain.RetrievedChunk, error)
}

// Indexer writes chunks into the corpus.
type Indexer interface {
	// Index upserts a batch of chunks, embedding those without vectors.
	Index(ctx context.Context, chunks []domain.Chunk) error
}
