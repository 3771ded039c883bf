package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

func addRows(t *testing.T, vs *VectorStore, ids []string, embeddings [][]float32, texts []string) {
	t.Helper()
	metadatas := make([]domain.ChunkMetadata, len(ids))
	require.NoError(t, vs.Add(context.Background(), ids, embeddings, texts, metadatas))
}

func TestVectorStore_PureSimilarityRanking(t *testing.T) {
	vs := NewVectorStore(2)
	addRows(t, vs,
		[]string{"near", "far"},
		[][]float32{{1, 0}, {0, 1}},
		[]string{"near", "far"})

	rows, err := vs.Query(context.Background(), driven.VectorQuery{
		Embedding: []float32{1, 0},
		QueryText: "ab", // too short, pure similarity mode
		TopK:      10,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "near", rows[0].ID)
	assert.InDelta(t, 1.0, rows[0].Score, 1e-9)
	assert.InDelta(t, 0.0, rows[1].Score, 1e-9)
}

func TestVectorStore_HybridTokenOverlapBoost(t *testing.T) {
	vs := NewVectorStore(2)
	addRows(t, vs,
		[]string{"plain", "match"},
		[][]float32{{1, 0}, {1, 0.05}},
		[]string{"nothing relevant", "informasi beasiswa unggulan"})

	rows, err := vs.Query(context.Background(), driven.VectorQuery{
		Embedding: []float32{1, 0},
		QueryText: "beasiswa unggulan",
		TopK:      10,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "match", rows[0].ID)
}

func TestVectorStore_DimensionCheck(t *testing.T) {
	vs := NewVectorStore(2)
	err := vs.Add(context.Background(), []string{"a"}, [][]float32{{1, 2, 3}},
		[]string{"x"}, make([]domain.ChunkMetadata, 1))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestVectorStore_ScopeAndFilters(t *testing.T) {
	vs := NewVectorStore(2)
	ctx := context.Background()
	metadatas := []domain.ChunkMetadata{{FileID: "f1"}, {FileID: "f2"}, {FileID: "f1"}}
	require.NoError(t, vs.Add(ctx,
		[]string{"a", "b", "c"},
		[][]float32{{1, 0}, {1, 0}, {1, 0}},
		[]string{"a", "b", "c"},
		metadatas))

	rows, err := vs.Query(ctx, driven.VectorQuery{
		Embedding: []float32{1, 0},
		TopK:      10,
		Scope:     []string{"a", "b"},
		Filters:   []domain.MetadataFilter{{Field: "file_id", Values: []string{"f1"}}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "a", rows[0].ID)
}

func TestVectorStore_DeleteAndDrop(t *testing.T) {
	vs := NewVectorStore(2)
	ctx := context.Background()
	addRows(t, vs, []string{"a", "b"}, [][]float32{{1, 0}, {0, 1}}, []string{"a", "b"})

	require.NoError(t, vs.Delete(ctx, []string{"a", "missing"}))
	rows, err := vs.Query(ctx, driven.VectorQuery{Embedding: []float32{1, 0}, TopK: 10})
	require.NoError(t, err)
	assert.Len(t, rows, 1)

	require.NoError(t, vs.Drop(ctx))
	rows, err = vs.Query(ctx, driven.VectorQuery{Embedding: []float32{1, 0}, TopK: 10})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestDocumentStore_AddGetQuery(t *testing.T) {
	ds := NewDocumentStore()
	ctx := context.Background()

	require.NoError(t, ds.Add(ctx, []domain.Chunk{
		{ID: "c1", Text: "pendaftaran beasiswa unggulan"},
		{ID: "c2", Text: "jadwal ujian semester"},
	}))

	chunks, err := ds.Get(ctx, []string{"c2", "missing", "c1"})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "c2", chunks[0].ID)
	assert.Equal(t, "c1", chunks[1].ID)

	found, err := ds.Query(ctx, "beasiswa", 10, []string{"c1", "c2"})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "c1", found[0].ID)

	empty, err := ds.Query(ctx, "beasiswa", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}
