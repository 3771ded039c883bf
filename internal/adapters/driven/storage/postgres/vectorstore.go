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

// vectorStore implements driven.VectorStore.
type vectorStore struct {
	store *Store
}

var _ driven.VectorStore = (*vectorStore)(nil)

// EnsureSchema idempotently creates the table and indexes.
func (s *vectorStore) EnsureSchema(ctx context.Context) error {
	return s.store.ensureSchema(ctx)
}

// Add upserts rows; existing ids are fully replaced. The stored
// metadata gains a text copy when it lacks one.
func (s *vectorStore) Add(
	ctx context.Context,
	ids []string,
	embeddings [][]float32,
	texts []string,
	metadatas []domain.ChunkMetadata,
) error {
	if len(ids) != len(embeddings) || len(ids) != len(texts) || len(ids) != len(metadatas) {
		return writeError("add", fmt.Errorf("%w: misaligned input lengths", domain.ErrInvalidInput))
	}
	for i, emb := range embeddings {
		if len(emb) != s.store.dim {
			return writeError("add", fmt.Errorf("%w: embedding %d has dimension %d, store expects %d",
				domain.ErrInvalidInput, i, len(emb), s.store.dim))
		}
	}

	batch := &pgx.Batch{}
	sql := fmt.Sprintf(`
		INSERT INTO %s (id, embedding, text, metadata)
		VALUES ($1, $2::vector, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			embedding = EXCLUDED.embedding,
			text = EXCLUDED.text,
			metadata = EXCLUDED.metadata
	`, s.store.table)

	for i := range ids {
		meta := metadatas[i]
		if meta.Text == "" {
			meta.Text = texts[i]
		}
		metadataJSON, err := json.Marshal(meta)
		if err != nil {
			return writeError("add", fmt.Errorf("marshalling metadata: %w", err))
		}
		batch.Queue(sql, ids[i], vectorLiteral(embeddings[i]), texts[i], string(metadataJSON))
	}

	if err := s.store.pool.SendBatch(ctx, batch).Close(); err != nil {
		return writeError("add", err)
	}
	return nil
}

// Delete removes the given ids. Missing ids are not an error.
func (s *vectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	sql := fmt.Sprintf("DELETE FROM %s WHERE id = ANY($1)", s.store.table)
	if _, err := s.store.pool.Exec(ctx, sql, ids); err != nil {
		return writeError("delete", err)
	}
	return nil
}

// Drop destroys the backing table. Irreversible.
func (s *vectorStore) Drop(ctx context.Context) error {
	sql := fmt.Sprintf("DROP TABLE IF EXISTS %s", s.store.table)
	if _, err := s.store.pool.Exec(ctx, sql); err != nil {
		return writeError("drop", err)
	}
	return nil
}

// Query ranks in-scope rows. Hybrid mode fuses cosine similarity with
// ts_rank relevance in SQL, with left-join semantics so rows without a
// full-text match stay eligible through the vector term alone.
func (s *vectorStore) Query(ctx context.Context, q driven.VectorQuery) ([]driven.ScoredRow, error) {
	cond, err := scopeFilterCondition(q.Scope, q.Filters)
	if err != nil {
		return nil, &domain.StorageQueryError{Backend: "vector", Err: err}
	}

	tokens := searchtext.Normalize(q.QueryText)

	var sql string
	args := append([]any{}, cond.args...)
	embPos := len(args) + 1
	args = append(args, vectorLiteral(q.Embedding))

	if searchtext.Usable(tokens) {
		queryPos := len(args) + 1
		args = append(args, tsQuery(tokens))
		limitPos := len(args) + 1
		args = append(args, q.TopK)

		sql = fmt.Sprintf(`
			WITH candidates AS (
				SELECT id, text, metadata,
				       1 - (embedding <=> $%d::vector) AS vscore
				FROM %s%s
			), matches AS (
				SELECT id, ts_rank(to_tsvector('simple', text), to_tsquery('simple', $%d)) AS trank
				FROM %s
				WHERE to_tsvector('simple', text) @@ to_tsquery('simple', $%d)
			)
			SELECT c.id, c.text, c.metadata,
			       %g * c.vscore + %g * COALESCE(m.trank, 0) AS score
			FROM candidates c
			LEFT JOIN matches m ON m.id = c.id
			ORDER BY score DESC, c.id
			LIMIT $%d
		`, embPos, s.store.table, cond.where(), queryPos, s.store.table, queryPos,
			vectorWeight, textWeight, limitPos)
	} else {
		limitPos := len(args) + 1
		args = append(args, q.TopK)

		sql = fmt.Sprintf(`
			SELECT id, text, metadata,
			       1 - (embedding <=> $%d::vector) AS score
			FROM %s%s
			ORDER BY embedding <=> $%d::vector, id
			LIMIT $%d
		`, embPos, s.store.table, cond.where(), embPos, limitPos)
	}

	rows, err := s.store.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, &domain.StorageQueryError{Backend: "vector", Err: err}
	}
	defer rows.Close()

	var result []driven.ScoredRow
	for rows.Next() {
		var row driven.ScoredRow
		var metadataJSON []byte
		if err := rows.Scan(&row.ID, &row.Text, &metadataJSON, &row.Score); err != nil {
			return nil, &domain.StorageQueryError{Backend: "vector", Err: err}
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &row.Metadata); err != nil {
				return nil, &domain.StorageQueryError{Backend: "vector", Err: err}
			}
		}
		if row.Text == "" {
			row.Text = row.Metadata.Text
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, &domain.StorageQueryError{Backend: "vector", Err: err}
	}

	return result, nil
}

// Close is a no-op: the underlying Store owns the pool.
func (s *vectorStore) Close() error { return nil }
