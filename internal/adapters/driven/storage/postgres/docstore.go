package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/custodia-labs/ragkit/internal/adapters/driven/storage/searchtext"
	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

// documentStore implements driven.DocumentStore over the same table as
// the vector store.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// Add upserts full chunk records. Chunks without an embedding keep any
// embedding already stored for their id.
func (s *documentStore) Add(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	sql := fmt.Sprintf(`
		INSERT INTO %s (id, embedding, text, metadata)
		VALUES ($1, $2::vector, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			embedding = COALESCE(EXCLUDED.embedding, %s.embedding),
			text = EXCLUDED.text,
			metadata = EXCLUDED.metadata
	`, s.store.table, s.store.table)

	for _, chunk := range chunks {
		meta := chunk.Metadata
		if meta.Text == "" {
			meta.Text = chunk.Text
		}
		metadataJSON, err := json.Marshal(meta)
		if err != nil {
			return writeError("add", fmt.Errorf("marshalling metadata: %w", err))
		}

		var embedding *string
		if len(chunk.Embedding) > 0 {
			lit := vectorLiteral(chunk.Embedding)
			embedding = &lit
		}
		batch.Queue(sql, chunk.ID, embedding, chunk.Text, string(metadataJSON))
	}

	if err := s.store.pool.SendBatch(ctx, batch).Close(); err != nil {
		return writeError("add", err)
	}
	return nil
}

// Get returns the chunks that exist for the requested ids, in id order
// of the found rows. Callers re-key by id.
func (s *documentStore) Get(ctx context.Context, ids []string) ([]domain.Chunk, error) {
	if len(ids) == 0 {
		return []domain.Chunk{}, nil
	}

	sql := fmt.Sprintf(
		"SELECT id, text, metadata FROM %s WHERE id = ANY($1) ORDER BY id", s.store.table)
	rows, err := s.store.pool.Query(ctx, sql, ids)
	if err != nil {
		return nil, &domain.StorageQueryError{Backend: "keyword", Err: err}
	}
	defer rows.Close()

	return scanChunks(rows)
}

// Query performs tsvector keyword search within a scope. An empty scope
// returns an empty list by design.
func (s *documentStore) Query(ctx context.Context, text string, topK int, scope []string) ([]domain.Chunk, error) {
	if len(scope) == 0 {
		return []domain.Chunk{}, nil
	}

	tokens := searchtext.Normalize(text)
	if len(tokens) == 0 {
		return []domain.Chunk{}, nil
	}

	sql := fmt.Sprintf(`
		SELECT id, text, metadata
		FROM %s
		WHERE id = ANY($1)
		AND to_tsvector('simple', text) @@ to_tsquery('simple', $2)
		ORDER BY ts_rank(to_tsvector('simple', text), to_tsquery('simple', $2)) DESC, id
		LIMIT $3
	`, s.store.table)

	rows, err := s.store.pool.Query(ctx, sql, scope, tsQuery(tokens), topK)
	if err != nil {
		return nil, &domain.StorageQueryError{Backend: "keyword", Err: err}
	}
	defer rows.Close()

	return scanChunks(rows)
}

// scanChunks reads (id, text, metadata) rows into chunks, recovering
// text from the metadata copy for legacy rows.
func scanChunks(rows pgx.Rows) ([]domain.Chunk, error) {
	result := []domain.Chunk{}
	for rows.Next() {
		var chunk domain.Chunk
		var metadataJSON []byte
		if err := rows.Scan(&chunk.ID, &chunk.Text, &metadataJSON); err != nil {
			return nil, &domain.StorageQueryError{Backend: "keyword", Err: err}
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &chunk.Metadata); err != nil {
				return nil, &domain.StorageQueryError{Backend: "keyword", Err: err}
			}
		}
		if chunk.Text == "" {
			chunk.Text = chunk.Metadata.Text
		}
		result = append(result, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageQueryError{Backend: "keyword", Err: err}
	}
	return result, nil
}
