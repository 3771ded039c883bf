package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/custodia-labs/ragkit/internal/adapters/driven/storage/searchtext"
	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

// documentStore implements driven.DocumentStore over the same chunks
// table as the vector store, so pure-text retrieval keeps working even
// when the embedding side is degraded.
type documentStore struct {
	store *Store
}

var _ driven.DocumentStore = (*documentStore)(nil)

// Add upserts full chunk records. A chunk without an embedding keeps
// any embedding already stored for its id, so the document-side upsert
// cannot wipe the vector side.
func (s *documentStore) Add(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return &domain.StorageWriteError{Op: "add", Err: err}
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, embedding, text, metadata)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			embedding = COALESCE(excluded.embedding, chunks.embedding),
			text = excluded.text,
			metadata = excluded.metadata
	`)
	if err != nil {
		return &domain.StorageWriteError{Op: "add", Err: err}
	}
	defer stmt.Close()

	for _, chunk := range chunks {
		meta := chunk.Metadata
		if meta.Text == "" {
			meta.Text = chunk.Text
		}
		metadataJSON, err := json.Marshal(meta)
		if err != nil {
			return &domain.StorageWriteError{Op: "add", Err: fmt.Errorf("marshalling metadata: %w", err)}
		}

		if _, err := stmt.ExecContext(ctx,
			chunk.ID, float32SliceToBytes(chunk.Embedding), chunk.Text, string(metadataJSON),
		); err != nil {
			return &domain.StorageWriteError{Op: "add", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &domain.StorageWriteError{Op: "add", Err: err}
	}
	return nil
}

// Get returns the chunks that exist for the requested ids, in input
// order of the found ids.
func (s *documentStore) Get(ctx context.Context, ids []string) ([]domain.Chunk, error) {
	if len(ids) == 0 {
		return []domain.Chunk{}, nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.store.db.QueryContext(ctx,
		"SELECT id, embedding, text, metadata FROM chunks WHERE id IN ("+placeholders(len(ids))+")",
		args...)
	if err != nil {
		return nil, &domain.StorageQueryError{Backend: "keyword", Err: err}
	}
	defer rows.Close()

	byID, err := scanChunks(rows)
	if err != nil {
		return nil, &domain.StorageQueryError{Backend: "keyword", Err: err}
	}

	result := make([]domain.Chunk, 0, len(byID))
	for _, id := range ids {
		if chunk, ok := byID[id]; ok {
			result = append(result, chunk)
		}
	}
	return result, nil
}

// Query performs FTS5 keyword search within a scope. An empty scope
// returns an empty list: keyword search without a subset filter is
// unsupported, not an error.
func (s *documentStore) Query(ctx context.Context, text string, topK int, scope []string) ([]domain.Chunk, error) {
	if len(scope) == 0 {
		return []domain.Chunk{}, nil
	}

	tokens := searchtext.Normalize(text)
	if len(tokens) == 0 {
		return []domain.Chunk{}, nil
	}

	args := []any{matchExpression(tokens)}
	for _, id := range scope {
		args = append(args, id)
	}
	args = append(args, topK)

	rows, err := s.store.db.QueryContext(ctx, `
		SELECT c.id, c.embedding, c.text, c.metadata
		FROM chunks_fts
		JOIN chunks c ON c.rowid = chunks_fts.rowid
		WHERE chunks_fts MATCH ?
		AND c.id IN (`+placeholders(len(scope))+`)
		ORDER BY bm25(chunks_fts)
		LIMIT ?
	`, args...)
	if err != nil {
		return nil, &domain.StorageQueryError{Backend: "keyword", Err: err}
	}
	defer rows.Close()

	var result []domain.Chunk
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, &domain.StorageQueryError{Backend: "keyword", Err: err}
		}
		result = append(result, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageQueryError{Backend: "keyword", Err: err}
	}

	if result == nil {
		result = []domain.Chunk{}
	}
	return result, nil
}

// scanChunk scans one chunk row.
func scanChunk(rows *sql.Rows) (domain.Chunk, error) {
	var chunk domain.Chunk
	var embeddingBlob []byte
	var metadataJSON string

	if err := rows.Scan(&chunk.ID, &embeddingBlob, &chunk.Text, &metadataJSON); err != nil {
		return domain.Chunk{}, fmt.Errorf("scanning chunk: %w", err)
	}

	chunk.Embedding = bytesToFloat32Slice(embeddingBlob)
	if metadataJSON != "" {
		if err := json.Unmarshal([]byte(metadataJSON), &chunk.Metadata); err != nil {
			return domain.Chunk{}, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}
	if chunk.Text == "" {
		chunk.Text = chunk.Metadata.Text
	}
	return chunk, nil
}

// scanChunks scans all rows into an id-keyed map.
func scanChunks(rows *sql.Rows) (map[string]domain.Chunk, error) {
	byID := make(map[string]domain.Chunk)
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		byID[chunk.ID] = chunk
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return byID, nil
}
