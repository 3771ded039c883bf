package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/custodia-labs/ragkit/internal/adapters/driven/storage/searchtext"
	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu     sync.RWMutex
	chunks map[string]domain.Chunk
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		chunks: make(map[string]domain.Chunk),
	}
}

// Add upserts full chunk records.
func (s *DocumentStore) Add(_ context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, chunk := range chunks {
		if chunk.Metadata.Text == "" {
			chunk.Metadata.Text = chunk.Text
		}
		s.chunks[chunk.ID] = chunk
	}
	return nil
}

// Get returns the chunks that exist for the requested ids, in input
// order of the found ids.
func (s *DocumentStore) Get(_ context.Context, ids []string) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Chunk, 0, len(ids))
	for _, id := range ids {
		if chunk, ok := s.chunks[id]; ok {
			result = append(result, chunk)
		}
	}
	return result, nil
}

// Query performs keyword search within a scope, ranked by token
// overlap. An empty scope returns an empty list by design.
func (s *DocumentStore) Query(_ context.Context, text string, topK int, scope []string) ([]domain.Chunk, error) {
	if len(scope) == 0 {
		return []domain.Chunk{}, nil
	}

	tokens := searchtext.Normalize(text)
	if len(tokens) == 0 {
		return []domain.Chunk{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	type scored struct {
		chunk domain.Chunk
		score float64
	}
	var matches []scored
	for _, id := range scope {
		chunk, ok := s.chunks[id]
		if !ok {
			continue
		}
		if score := tokenOverlap(chunk.Text, tokens); score > 0 {
			matches = append(matches, scored{chunk: chunk, score: score})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].score != matches[j].score {
			return matches[i].score > matches[j].score
		}
		return matches[i].chunk.ID < matches[j].chunk.ID
	})
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}

	result := make([]domain.Chunk, len(matches))
	for i, m := range matches {
		result[i] = m.chunk
	}
	return result, nil
}
