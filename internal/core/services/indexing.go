package services

import (
	"context"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
	"github.com/custodia-labs/ragkit/internal/logger"
)

// IndexingService is the write path: it embeds chunks that lack an
// embedding and upserts them into both stores. Re-indexing the same ids
// replaces rows rather than duplicating them.
type IndexingService struct {
	vectorStore driven.VectorStore
	docStore    driven.DocumentStore
	embedder    driven.EmbeddingService
}

// NewIndexingService creates an indexing service.
func NewIndexingService(
	vectorStore driven.VectorStore,
	docStore driven.DocumentStore,
	embedder driven.EmbeddingService,
) *IndexingService {
	return &IndexingService{
		vectorStore: vectorStore,
		docStore:    docStore,
		embedder:    embedder,
	}
}

// Index upserts a batch of chunks into the vector and document stores.
// Chunks without an embedding are embedded first, in one batch call.
func (s *IndexingService) Index(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	if s.docStore == nil {
		return domain.ErrMissingDocStore
	}

	logger.Section("Indexing")
	logger.Debug("Indexing %d chunks", len(chunks))

	if err := s.embedMissing(ctx, chunks); err != nil {
		return err
	}

	ids := make([]string, len(chunks))
	embeddings := make([][]float32, len(chunks))
	texts := make([]string, len(chunks))
	metadatas := make([]domain.ChunkMetadata, len(chunks))
	for i, chunk := range chunks {
		ids[i] = chunk.ID
		embeddings[i] = chunk.Embedding
		texts[i] = chunk.Text
		metadatas[i] = chunk.Metadata
	}

	if err := s.vectorStore.Add(ctx, ids, embeddings, texts, metadatas); err != nil {
		return err
	}
	if err := s.docStore.Add(ctx, chunks); err != nil {
		return err
	}

	logger.Info("Indexed %d chunks", len(chunks))
	return nil
}

// embedMissing fills in embeddings for chunks that lack one, preserving
// pre-embedded chunks untouched.
func (s *IndexingService) embedMissing(ctx context.Context, chunks []domain.Chunk) error {
	var missing []int
	var texts []string
	for i := range chunks {
		if len(chunks[i].Embedding) == 0 {
			missing = append(missing, i)
			texts = append(texts, chunks[i].Text)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	if s.embedder == nil {
		return &domain.EmbeddingError{Err: domain.ErrMissingEmbedder}
	}

	logger.Debug("Embedding %d chunks without embeddings", len(missing))
	vectors, err := s.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return &domain.EmbeddingError{Err: err}
	}
	if len(vectors) != len(missing) {
		return &domain.EmbeddingError{
			Err: domain.ErrInvalidInput,
		}
	}

	for j, i := range missing {
		chunks[i].Embedding = vectors[j]
	}
	return nil
}
