package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragkit/internal/core/domain"
)

// recordingVectorStore captures Add arguments.
type recordingVectorStore struct {
	stubVectorStore
	addedIDs        []string
	addedEmbeddings [][]float32
	addErr          error
}

func (s *recordingVectorStore) Add(
	_ context.Context, ids []string, embeddings [][]float32, _ []string, _ []domain.ChunkMetadata,
) error {
	if s.addErr != nil {
		return s.addErr
	}
	s.addedIDs = ids
	s.addedEmbeddings = embeddings
	return nil
}

// recordingDocStore captures Add arguments.
type recordingDocStore struct {
	stubDocStore
	added []domain.Chunk
}

func (s *recordingDocStore) Add(_ context.Context, chunks []domain.Chunk) error {
	s.added = chunks
	return nil
}

func TestIndex_EmbedsOnlyMissing(t *testing.T) {
	vs := &recordingVectorStore{}
	ds := &recordingDocStore{}
	svc := NewIndexingService(vs, ds, &stubEmbedder{vector: []float32{9, 9}})

	chunks := []domain.Chunk{
		{ID: "pre", Text: "already embedded", Embedding: []float32{1, 2}},
		{ID: "new", Text: "needs embedding"},
	}
	require.NoError(t, svc.Index(context.Background(), chunks))

	require.Equal(t, []string{"pre", "new"}, vs.addedIDs)
	assert.Equal(t, []float32{1, 2}, vs.addedEmbeddings[0])
	assert.Equal(t, []float32{9, 9}, vs.addedEmbeddings[1])

	require.Len(t, ds.added, 2)
	assert.Equal(t, []float32{9, 9}, ds.added[1].Embedding)
}

func TestIndex_EmptyBatch(t *testing.T) {
	vs := &recordingVectorStore{}
	svc := NewIndexingService(vs, &recordingDocStore{}, &stubEmbedder{vector: []float32{1}})

	require.NoError(t, svc.Index(context.Background(), nil))
	assert.Nil(t, vs.addedIDs)
}

func TestIndex_MissingDocStore(t *testing.T) {
	svc := NewIndexingService(&recordingVectorStore{}, nil, &stubEmbedder{vector: []float32{1}})

	err := svc.Index(context.Background(), []domain.Chunk{{ID: "a", Text: "x"}})
	assert.ErrorIs(t, err, domain.ErrMissingDocStore)
}

func TestIndex_MissingEmbedder(t *testing.T) {
	svc := NewIndexingService(&recordingVectorStore{}, &recordingDocStore{}, nil)

	err := svc.Index(context.Background(), []domain.Chunk{{ID: "a", Text: "x"}})
	assert.ErrorIs(t, err, domain.ErrMissingEmbedder)
}

func TestIndex_PreEmbeddedNeedsNoEmbedder(t *testing.T) {
	vs := &recordingVectorStore{}
	svc := NewIndexingService(vs, &recordingDocStore{}, nil)

	err := svc.Index(context.Background(), []domain.Chunk{
		{ID: "a", Text: "x", Embedding: []float32{1}},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, vs.addedIDs)
}

func TestIndex_EmbeddingFailure(t *testing.T) {
	svc := NewIndexingService(&recordingVectorStore{}, &recordingDocStore{},
		&stubEmbedder{err: errors.New("provider down")})

	err := svc.Index(context.Background(), []domain.Chunk{{ID: "a", Text: "x"}})
	var embErr *domain.EmbeddingError
	assert.ErrorAs(t, err, &embErr)
}

func TestIndex_VectorStoreFailurePropagates(t *testing.T) {
	writeErr := &domain.StorageWriteError{Op: "add", Err: errors.New("disk full")}
	vs := &recordingVectorStore{addErr: writeErr}
	ds := &recordingDocStore{}
	svc := NewIndexingService(vs, ds, &stubEmbedder{vector: []float32{1}})

	err := svc.Index(context.Background(), []domain.Chunk{{ID: "a", Text: "x"}})
	assert.ErrorIs(t, err, writeErr)
	// The document store is not written when the vector write fails.
	assert.Nil(t, ds.added)
}
