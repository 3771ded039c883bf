package domain

// ChunkType classifies what a chunk holds.
type ChunkType string

// Recognised chunk types. Ingestion may produce others; the retrieval
// engine only assigns ChunkTypeThumbnail itself.
const (
	ChunkTypeText      ChunkType = "text"
	ChunkTypeTable     ChunkType = "table"
	ChunkTypeImage     ChunkType = "image"
	ChunkTypeChatbot   ChunkType = "chatbot"
	ChunkTypeThumbnail ChunkType = "thumbnail"
)

// Chunk is the atomic retrievable unit: a piece of document content with
// its embedding and metadata. IDs are assigned at ingestion time and are
// never reused.
type Chunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// Text is the chunk's textual content. May be empty for pure-image
	// chunks; metadata carries a redundant copy for resilience.
	Text string

	// Embedding is the vector representation for semantic search.
	Embedding []float32

	// Metadata holds the recognised fields plus any upstream extras.
	Metadata ChunkMetadata
}

// RetrievedChunk is a chunk augmented with retrieval scores.
type RetrievedChunk struct {
	Chunk

	// Score is the retrieval score. Semantics depend on the mode:
	// cosine-derived similarity for vector hits, the fused score for
	// hybrid hits, and KeywordScore for keyword-only hits.
	Score float64

	// RerankingScore is set by rerankers that produce their own score.
	RerankingScore *float64
}

// KeywordScore is the sentinel score attached to keyword-only hits.
// Keyword relevance is not comparable to similarity scores and must not
// be merged numerically with them.
const KeywordScore = -1.0
