package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/ragkit/internal/adapters/driven/storage/searchtext"
	"github.com/custodia-labs/ragkit/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

// Hybrid fusion weighting. Fixed deployment defaults, not a tuning
// surface; see DESIGN.md before changing.
const (
	vectorWeight = 0.7
	textWeight   = 0.3
)

// vectorStore implements driven.VectorStore.
type vectorStore struct {
	store *Store
}

var _ driven.VectorStore = (*vectorStore)(nil)

// EnsureSchema idempotently creates the chunks table, its metadata
// indexes, and the FTS5 index.
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
		return &domain.StorageWriteError{
			Op:  "add",
			Err: fmt.Errorf("%w: misaligned input lengths", domain.ErrInvalidInput),
		}
	}
	for i, emb := range embeddings {
		if s.store.dim > 0 && len(emb) != s.store.dim {
			return &domain.StorageWriteError{
				Op: "add",
				Err: fmt.Errorf("%w: embedding %d has dimension %d, store expects %d",
					domain.ErrInvalidInput, i, len(emb), s.store.dim),
			}
		}
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
			embedding = excluded.embedding,
			text = excluded.text,
			metadata = excluded.metadata
	`)
	if err != nil {
		return &domain.StorageWriteError{Op: "add", Err: err}
	}
	defer stmt.Close()

	for i := range ids {
		meta := metadatas[i]
		if meta.Text == "" {
			meta.Text = texts[i]
		}
		metadataJSON, err := json.Marshal(meta)
		if err != nil {
			return &domain.StorageWriteError{Op: "add", Err: fmt.Errorf("marshalling metadata: %w", err)}
		}

		if _, err := stmt.ExecContext(ctx,
			ids[i], float32SliceToBytes(embeddings[i]), texts[i], string(metadataJSON),
		); err != nil {
			return &domain.StorageWriteError{Op: "add", Err: err}
		}
	}

	if err := tx.Commit(); err != nil {
		return &domain.StorageWriteError{Op: "add", Err: err}
	}
	return nil
}

// Delete removes the given ids. Missing ids are not an error.
func (s *vectorStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	query := "DELETE FROM chunks WHERE id IN (" + placeholders(len(ids)) + ")"
	if _, err := s.store.db.ExecContext(ctx, query, args...); err != nil {
		return &domain.StorageWriteError{Op: "delete", Err: err}
	}
	return nil
}

// Drop destroys the backing tables and clears the migration history so
// EnsureSchema can rebuild from scratch.
func (s *vectorStore) Drop(ctx context.Context) error {
	for _, stmt := range []string{
		"DROP TABLE IF EXISTS chunks",
		"DROP TABLE IF EXISTS chunks_fts",
		"DELETE FROM schema_migrations",
	} {
		if _, err := s.store.db.ExecContext(ctx, stmt); err != nil {
			return &domain.StorageWriteError{Op: "drop", Err: err}
		}
	}
	return nil
}

// Query ranks in-scope rows against the query embedding. With usable
// query text the ranking is hybrid: fused vector-distance and FTS5
// relevance; otherwise pure similarity with score 1 - distance.
func (s *vectorStore) Query(ctx context.Context, q driven.VectorQuery) ([]driven.ScoredRow, error) {
	candidates, err := s.loadCandidates(ctx, q.Scope, q.Filters)
	if err != nil {
		return nil, &domain.StorageQueryError{Backend: "vector", Err: err}
	}

	tokens := searchtext.Normalize(q.QueryText)
	var relevance map[string]float64
	if searchtext.Usable(tokens) {
		relevance, err = s.textRelevance(ctx, tokens)
		if err != nil {
			return nil, &domain.StorageQueryError{Backend: "vector", Err: err}
		}
	}

	for i := range candidates {
		distance := vecmath.CosineDistance(q.Embedding, candidates[i].embedding)
		if relevance == nil {
			candidates[i].score = 1 - distance
		} else {
			// Rows without a full-text match keep relevance 0 but stay
			// eligible through the vector term.
			candidates[i].score = vectorWeight*(1-distance) + textWeight*relevance[candidates[i].row.ID]
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].row.ID < candidates[j].row.ID
	})

	if q.TopK > 0 && len(candidates) > q.TopK {
		candidates = candidates[:q.TopK]
	}

	rows := make([]driven.ScoredRow, len(candidates))
	for i, c := range candidates {
		c.row.Score = c.score
		rows[i] = c.row
	}
	return rows, nil
}

// Close is a no-op: the underlying Store owns the connection.
func (s *vectorStore) Close() error { return nil }

// candidate is an in-scope row with its decoded embedding.
type candidate struct {
	row       driven.ScoredRow
	embedding []float32
	score     float64
}

// loadCandidates reads the rows eligible for ranking, applying scope
// and metadata filters as predicates.
func (s *vectorStore) loadCandidates(
	ctx context.Context, scope []string, filters []domain.MetadataFilter,
) ([]candidate, error) {
	query := "SELECT id, embedding, text, metadata FROM chunks"
	var conds []string
	var args []any

	if len(scope) > 0 {
		conds = append(conds, "id IN ("+placeholders(len(scope))+")")
		for _, id := range scope {
			args = append(args, id)
		}
	}
	for _, f := range filters {
		if !identifierPattern.MatchString(f.Field) {
			return nil, fmt.Errorf("%w: bad filter field %q", domain.ErrInvalidInput, f.Field)
		}
		if len(f.Values) == 0 {
			continue
		}
		conds = append(conds,
			"json_extract(metadata, '$."+f.Field+"') IN ("+placeholders(len(f.Values))+")")
		for _, v := range f.Values {
			args = append(args, v)
		}
	}
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}

	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var candidates []candidate //nolint:prealloc // size unknown from query
	for rows.Next() {
		var id, text, metadataJSON string
		var embeddingBlob []byte
		if err := rows.Scan(&id, &embeddingBlob, &text, &metadataJSON); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}

		var meta domain.ChunkMetadata
		if metadataJSON != "" {
			if err := json.Unmarshal([]byte(metadataJSON), &meta); err != nil {
				return nil, fmt.Errorf("unmarshaling metadata: %w", err)
			}
		}

		// Legacy rows written before the text column existed keep their
		// content only in metadata.
		if text == "" {
			text = meta.Text
		}

		candidates = append(candidates, candidate{
			row:       driven.ScoredRow{ID: id, Text: text, Metadata: meta},
			embedding: bytesToFloat32Slice(embeddingBlob),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}

	return candidates, nil
}

// textRelevance runs the FTS5 leg and converts match ranking into a
// rank-based score in (0, 1]: the best match scores 1, the n-th
// 1/(n+1). Unmatched rows are absent from the map.
func (s *vectorStore) textRelevance(ctx context.Context, tokens []string) (map[string]float64, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT c.id
		FROM chunks_fts
		JOIN chunks c ON c.rowid = chunks_fts.rowid
		WHERE chunks_fts MATCH ?
		ORDER BY bm25(chunks_fts)
	`, matchExpression(tokens))
	if err != nil {
		return nil, fmt.Errorf("full-text search: %w", err)
	}
	defer rows.Close()

	relevance := make(map[string]float64)
	pos := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning match: %w", err)
		}
		relevance[id] = 1.0 / float64(pos+1)
		pos++
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating matches: %w", err)
	}

	return relevance, nil
}

// matchExpression builds an FTS5 OR query from normalised tokens.
// Tokens are quoted so user input cannot inject FTS5 syntax.
func matchExpression(tokens []string) string {
	quoted := make([]string, len(tokens))
	for i, tok := range tokens {
		quoted[i] = `"` + strings.ReplaceAll(tok, `"`, `""`) + `"`
	}
	return strings.Join(quoted, " OR ")
}
