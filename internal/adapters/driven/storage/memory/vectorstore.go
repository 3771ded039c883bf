// Package memory provides in-memory store implementations. They back
// service-level tests and embedded deployments that don't need
// persistence.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/custodia-labs/ragkit/internal/adapters/driven/storage/searchtext"
	"github.com/custodia-labs/ragkit/internal/adapters/driven/storage/vecmath"
	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

// Hybrid fusion weighting, matching the persistent backends.
const (
	vectorWeight = 0.7
	textWeight   = 0.3
)

// Ensure VectorStore implements the interface.
var _ driven.VectorStore = (*VectorStore)(nil)

// row is one stored chunk record.
type row struct {
	id        string
	embedding []float32
	text      string
	metadata  domain.ChunkMetadata
}

// VectorStore is an in-memory implementation of driven.VectorStore.
type VectorStore struct {
	mu   sync.RWMutex
	rows map[string]row
	dim  int
}

// NewVectorStore creates an in-memory vector store. dim is the enforced
// embedding dimension; zero disables the check.
func NewVectorStore(dim int) *VectorStore {
	return &VectorStore{
		rows: make(map[string]row),
		dim:  dim,
	}
}

// EnsureSchema is a no-op for the in-memory store.
func (s *VectorStore) EnsureSchema(_ context.Context) error { return nil }

// Add upserts rows keyed by id.
func (s *VectorStore) Add(
	_ context.Context,
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
		if s.dim > 0 && len(emb) != s.dim {
			return &domain.StorageWriteError{
				Op: "add",
				Err: fmt.Errorf("%w: embedding %d has dimension %d, store expects %d",
					domain.ErrInvalidInput, i, len(emb), s.dim),
			}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range ids {
		meta := metadatas[i]
		if meta.Text == "" {
			meta.Text = texts[i]
		}
		s.rows[ids[i]] = row{
			id:        ids[i],
			embedding: embeddings[i],
			text:      texts[i],
			metadata:  meta,
		}
	}
	return nil
}

// Delete removes the given ids; missing ids are a no-op.
func (s *VectorStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.rows, id)
	}
	return nil
}

// Drop discards all rows.
func (s *VectorStore) Drop(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = make(map[string]row)
	return nil
}

// Query ranks in-scope rows: hybrid fusion when the query text is
// usable, pure similarity otherwise.
func (s *VectorStore) Query(_ context.Context, q driven.VectorQuery) ([]driven.ScoredRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var scope map[string]bool
	if len(q.Scope) > 0 {
		scope = make(map[string]bool, len(q.Scope))
		for _, id := range q.Scope {
			scope[id] = true
		}
	}

	tokens := searchtext.Normalize(q.QueryText)
	hybrid := searchtext.Usable(tokens)

	type scored struct {
		row   row
		score float64
	}
	var candidates []scored
	for _, r := range s.rows {
		if scope != nil && !scope[r.id] {
			continue
		}
		if !matchesFilters(r.metadata, q.Filters) {
			continue
		}
		distance := vecmath.CosineDistance(q.Embedding, r.embedding)
		score := 1 - distance
		if hybrid {
			score = vectorWeight*(1-distance) + textWeight*tokenOverlap(r.text, tokens)
		}
		candidates = append(candidates, scored{row: r, score: score})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].row.id < candidates[j].row.id
	})
	if q.TopK > 0 && len(candidates) > q.TopK {
		candidates = candidates[:q.TopK]
	}

	result := make([]driven.ScoredRow, len(candidates))
	for i, c := range candidates {
		text := c.row.text
		if text == "" {
			text = c.row.metadata.Text
		}
		result[i] = driven.ScoredRow{
			ID:       c.row.id,
			Text:     text,
			Metadata: c.row.metadata,
			Score:    c.score,
		}
	}
	return result, nil
}

// Close is a no-op.
func (s *VectorStore) Close() error { return nil }

// matchesFilters applies metadata-field membership filters.
func matchesFilters(meta domain.ChunkMetadata, filters []domain.MetadataFilter) bool {
	for _, f := range filters {
		if len(f.Values) == 0 {
			continue
		}
		value, ok := meta.Field(f.Field)
		if !ok {
			return false
		}
		str, ok := value.(string)
		if !ok {
			return false
		}
		found := false
		for _, v := range f.Values {
			if v == str {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// tokenOverlap is the in-memory stand-in for full-text relevance: the
// fraction of query tokens present in the text.
func tokenOverlap(text string, tokens []string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	textTokens := make(map[string]bool)
	for _, tok := range searchtext.Normalize(text) {
		textTokens[tok] = true
	}
	hits := 0
	for _, tok := range tokens {
		if textTokens[tok] {
			hits++
		}
	}
	return float64(hits) / float64(len(tokens))
}
