package driven

import (
	"context"

	"github.com/custodia-labs/ragkit/internal/core/domain"
)

// VectorQuery describes one query against the vector store.
type VectorQuery struct {
	// Embedding is the query vector.
	Embedding []float32

	// TopK is the maximum number of rows to return.
	TopK int

	// QueryText, when usable, switches the store into hybrid mode:
	// the fused score combines vector distance with full-text
	// relevance. Stores fall back to pure similarity ranking for
	// empty or too-short query text.
	QueryText string

	// Scope restricts eligible rows to the given ids.
	Scope []string

	// Filters restricts eligible rows by metadata-field membership.
	Filters []domain.MetadataFilter
}

// ScoredRow is one ranked row from a vector store query.
type ScoredRow struct {
	// ID is the chunk id.
	ID string

	// Text is the row's text. Taken from the text column, falling
	// back to the metadata text copy for legacy rows.
	Text string

	// Metadata is the stored metadata.
	Metadata domain.ChunkMetadata

	// Score is 1 - distance in pure similarity mode, or the fused
	// vector+text score in hybrid mode.
	Score float64
}

// VectorStore persists embeddings with metadata and answers similarity
// and hybrid queries. Rows live by id: created or fully replaced on Add,
// removed on Delete.
type VectorStore interface {
	// EnsureSchema idempotently creates the backing table and its
	// supporting indexes. Safe to call on every startup.
	EnsureSchema(ctx context.Context) error

	// Add upserts rows. The four slices must be equal length and
	// aligned; existing ids are fully replaced. The stored metadata is
	// enriched with a text copy when not already present. Fails with
	// StorageWriteError on a dimension mismatch or write failure.
	Add(ctx context.Context, ids []string, embeddings [][]float32, texts []string, metadatas []domain.ChunkMetadata) error

	// Delete removes the given ids. Missing ids are a no-op.
	Delete(ctx context.Context, ids []string) error

	// Drop destroys the entire backing store. Irreversible.
	Drop(ctx context.Context) error

	// Query returns up to TopK ranked rows. Failures are returned as
	// StorageQueryError so callers can distinguish "no matches" from
	// "backend unavailable".
	Query(ctx context.Context, q VectorQuery) ([]ScoredRow, error)

	// Close releases resources.
	Close() error
}
