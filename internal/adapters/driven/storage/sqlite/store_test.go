package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
)

// setupTestStore creates a temporary SQLite store for testing.
func setupTestStore(t *testing.T) *Store {
	t.Helper()

	store, err := NewStore(t.TempDir(), 3)
	require.NoError(t, err)
	require.NotNil(t, store)

	t.Cleanup(func() {
		assert.NoError(t, store.Close())
	})
	return store
}

// addChunks indexes rows through the vector store view.
func addChunks(t *testing.T, store *Store, ids []string, embeddings [][]float32, texts []string) {
	t.Helper()
	metadatas := make([]domain.ChunkMetadata, len(ids))
	err := store.VectorStore().Add(context.Background(), ids, embeddings, texts, metadatas)
	require.NoError(t, err)
}

func TestNewStore_CreatesSchema(t *testing.T) {
	store := setupTestStore(t)

	var count int
	err := store.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestVectorStore_AddUpsertsByID(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	addChunks(t, store, []string{"c1"}, [][]float32{{1, 0, 0}}, []string{"first version"})
	addChunks(t, store, []string{"c1"}, [][]float32{{0, 1, 0}}, []string{"second version"})

	rows, err := store.VectorStore().Query(ctx, driven.VectorQuery{
		Embedding: []float32{0, 1, 0},
		TopK:      10,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "c1", rows[0].ID)
	assert.Equal(t, "second version", rows[0].Text)
	// Replaced embedding, so the new vector matches exactly.
	assert.InDelta(t, 1.0, rows[0].Score, 1e-6)
}

func TestVectorStore_AddRejectsMisalignedInput(t *testing.T) {
	store := setupTestStore(t)

	err := store.VectorStore().Add(context.Background(),
		[]string{"a", "b"}, [][]float32{{1, 0, 0}}, []string{"x", "y"},
		make([]domain.ChunkMetadata, 2))
	var writeErr *domain.StorageWriteError
	require.ErrorAs(t, err, &writeErr)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestVectorStore_AddRejectsWrongDimension(t *testing.T) {
	store := setupTestStore(t)

	err := store.VectorStore().Add(context.Background(),
		[]string{"a"}, [][]float32{{1, 0}}, []string{"x"},
		make([]domain.ChunkMetadata, 1))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestVectorStore_PureSimilarityForShortQuery(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	addChunks(t, store,
		[]string{"near", "far"},
		[][]float32{{1, 0, 0}, {0, 1, 0}},
		[]string{"near text", "far text"})

	// "ui" normalises to nothing, so ranking is pure similarity.
	rows, err := store.VectorStore().Query(ctx, driven.VectorQuery{
		Embedding: []float32{1, 0, 0},
		QueryText: "ui",
		TopK:      10,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "near", rows[0].ID)
	assert.InDelta(t, 1.0, rows[0].Score, 1e-6) // 1 - distance 0
	assert.Equal(t, "far", rows[1].ID)
	assert.InDelta(t, 0.0, rows[1].Score, 1e-6) // 1 - distance 1
}

func TestVectorStore_HybridBoostsTextMatches(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	// Nearly identical vectors; only one chunk mentions the query term.
	addChunks(t, store,
		[]string{"plain", "match"},
		[][]float32{{1, 0, 0}, {0.99, 0.14, 0}},
		[]string{"unrelated content here", "beasiswa unggulan programme"})

	rows, err := store.VectorStore().Query(ctx, driven.VectorQuery{
		Embedding: []float32{1, 0, 0},
		QueryText: "beasiswa unggulan",
		TopK:      10,
	})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// The 0.3 text term outweighs the marginal vector difference.
	assert.Equal(t, "match", rows[0].ID)
	assert.Greater(t, rows[0].Score, rows[1].Score)
}

func TestVectorStore_ScopeRestrictsCandidates(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	addChunks(t, store,
		[]string{"in", "out"},
		[][]float32{{0, 1, 0}, {1, 0, 0}},
		[]string{"in scope", "out of scope"})

	rows, err := store.VectorStore().Query(ctx, driven.VectorQuery{
		Embedding: []float32{1, 0, 0},
		TopK:      10,
		Scope:     []string{"in"},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "in", rows[0].ID)
}

func TestVectorStore_MetadataFilter(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	metadatas := []domain.ChunkMetadata{
		{FileID: "f1"},
		{FileID: "f2"},
	}
	err := store.VectorStore().Add(ctx,
		[]string{"a", "b"},
		[][]float32{{1, 0, 0}, {0, 1, 0}},
		[]string{"from f1", "from f2"},
		metadatas)
	require.NoError(t, err)

	rows, err := store.VectorStore().Query(ctx, driven.VectorQuery{
		Embedding: []float32{1, 0, 0},
		TopK:      10,
		Filters:   []domain.MetadataFilter{{Field: "file_id", Values: []string{"f2"}}},
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "b", rows[0].ID)
}

func TestVectorStore_RejectsBadFilterField(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.VectorStore().Query(context.Background(), driven.VectorQuery{
		Embedding: []float32{1, 0, 0},
		TopK:      10,
		Filters:   []domain.MetadataFilter{{Field: "x'); DROP TABLE chunks;--", Values: []string{"v"}}},
	})
	var queryErr *domain.StorageQueryError
	require.ErrorAs(t, err, &queryErr)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestVectorStore_DeleteIgnoresMissingIDs(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	addChunks(t, store, []string{"keep", "gone"},
		[][]float32{{1, 0, 0}, {0, 1, 0}}, []string{"keep", "gone"})

	require.NoError(t, store.VectorStore().Delete(ctx, []string{"gone", "never-existed"}))

	rows, err := store.VectorStore().Query(ctx, driven.VectorQuery{
		Embedding: []float32{1, 0, 0},
		TopK:      10,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "keep", rows[0].ID)
}

func TestVectorStore_DropThenEnsureSchemaRebuilds(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	vs := store.VectorStore()

	addChunks(t, store, []string{"a"}, [][]float32{{1, 0, 0}}, []string{"content"})

	require.NoError(t, vs.Drop(ctx))
	require.NoError(t, vs.EnsureSchema(ctx))

	rows, err := vs.Query(ctx, driven.VectorQuery{Embedding: []float32{1, 0, 0}, TopK: 10})
	require.NoError(t, err)
	assert.Empty(t, rows)

	// The rebuilt schema accepts writes again.
	addChunks(t, store, []string{"b"}, [][]float32{{0, 1, 0}}, []string{"new content"})
}

func TestDocumentStore_GetPreservesInputOrder(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	ds := store.DocumentStore()

	err := ds.Add(ctx, []domain.Chunk{
		{ID: "c1", Text: "one", Embedding: []float32{1, 0, 0}},
		{ID: "c2", Text: "two", Embedding: []float32{0, 1, 0}},
	})
	require.NoError(t, err)

	chunks, err := ds.Get(ctx, []string{"c2", "missing", "c1"})
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "c2", chunks[0].ID)
	assert.Equal(t, "c1", chunks[1].ID)
}

func TestDocumentStore_AddKeepsExistingEmbedding(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	addChunks(t, store, []string{"c1"}, [][]float32{{1, 0, 0}}, []string{"embedded"})

	// A document-side upsert without an embedding must not wipe the
	// vector column.
	err := store.DocumentStore().Add(ctx, []domain.Chunk{{ID: "c1", Text: "updated text"}})
	require.NoError(t, err)

	rows, err := store.VectorStore().Query(ctx, driven.VectorQuery{
		Embedding: []float32{1, 0, 0},
		TopK:      10,
	})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "updated text", rows[0].Text)
	assert.InDelta(t, 1.0, rows[0].Score, 1e-6)
}

func TestDocumentStore_QueryRequiresScope(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	ds := store.DocumentStore()

	err := ds.Add(ctx, []domain.Chunk{{ID: "c1", Text: "beasiswa unggulan"}})
	require.NoError(t, err)

	chunks, err := ds.Query(ctx, "beasiswa", 10, nil)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestDocumentStore_QueryMatchesWithinScope(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()
	ds := store.DocumentStore()

	err := ds.Add(ctx, []domain.Chunk{
		{ID: "c1", Text: "pendaftaran beasiswa unggulan"},
		{ID: "c2", Text: "jadwal ujian semester"},
		{ID: "c3", Text: "beasiswa luar negeri"},
	})
	require.NoError(t, err)

	chunks, err := ds.Query(ctx, "beasiswa", 10, []string{"c1", "c2"})
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "c1", chunks[0].ID)
}

func TestDocumentStore_QueryStopWordOnly(t *testing.T) {
	store := setupTestStore(t)
	ds := store.DocumentStore()

	chunks, err := ds.Query(context.Background(), "yang dan", 10, []string{"c1"})
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestEmbeddingBlobRoundTrip(t *testing.T) {
	in := []float32{0.5, -1.25, 3e8}
	out := bytesToFloat32Slice(float32SliceToBytes(in))
	assert.Equal(t, in, out)
}

func TestEmbeddingBlobNil(t *testing.T) {
	assert.Nil(t, float32SliceToBytes(nil))
	assert.Nil(t, bytesToFloat32Slice(nil))
}
