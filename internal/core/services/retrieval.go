package services

import (
	"context"
	"fmt"
	"sync"

	"github.com/custodia-labs/ragkit/internal/core/domain"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
	"github.com/custodia-labs/ragkit/internal/logger"
)

// Default pipeline tuning.
const (
	// DefaultTopK is the number of primary results when the caller
	// does not specify one.
	DefaultTopK = 5

	// DefaultFirstRoundMultiplier widens the first retrieval round
	// when thumbnail extension is requested, so rerankers have enough
	// material to work with.
	DefaultFirstRoundMultiplier = 10

	// DefaultThumbnailCount caps appended thumbnail chunks.
	DefaultThumbnailCount = 3
)

// RetrievalService is the single entry point from a query string to a
// ranked, deduplicated, optionally-extended list of retrieved chunks.
type RetrievalService struct {
	vectorStore driven.VectorStore
	docStore    driven.DocumentStore
	embedder    driven.EmbeddingService
	rerankers   []driven.Reranker

	topK           int
	firstRoundMult int
	thumbnailCount int
}

// RetrievalConfig tunes the pipeline defaults.
type RetrievalConfig struct {
	// TopK is the default result count (DefaultTopK when zero).
	TopK int

	// FirstRoundMultiplier widens the first round for extension
	// (DefaultFirstRoundMultiplier when zero).
	FirstRoundMultiplier int

	// ThumbnailCount caps appended thumbnail chunks when the request
	// does not set its own cap (DefaultThumbnailCount when zero).
	ThumbnailCount int
}

// NewRetrievalService creates a retrieval service. The rerankers run in
// order after fusion; pass none to skip reranking.
func NewRetrievalService(
	vectorStore driven.VectorStore,
	docStore driven.DocumentStore,
	embedder driven.EmbeddingService,
	rerankers []driven.Reranker,
	cfg RetrievalConfig,
) *RetrievalService {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}
	if cfg.FirstRoundMultiplier <= 0 {
		cfg.FirstRoundMultiplier = DefaultFirstRoundMultiplier
	}
	if cfg.ThumbnailCount <= 0 {
		cfg.ThumbnailCount = DefaultThumbnailCount
	}
	return &RetrievalService{
		vectorStore:    vectorStore,
		docStore:       docStore,
		embedder:       embedder,
		rerankers:      rerankers,
		topK:           cfg.TopK,
		firstRoundMult: cfg.FirstRoundMultiplier,
		thumbnailCount: cfg.ThumbnailCount,
	}
}

// Retrieve runs one retrieval round. It never returns a nil result with
// a nil error: the worst legal outcome is an empty list, which callers
// must read as "no evidence found".
func (s *RetrievalService) Retrieve(
	ctx context.Context, query string, opts domain.RetrievalOptions,
) ([]domain.RetrievedChunk, error) {
	logger.Section("Retrieval")
	logger.Debug("Query: %q", query)

	if s.docStore == nil {
		return nil, domain.ErrMissingDocStore
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = s.topK
	}
	firstRound := topK
	if opts.DoExtend {
		firstRound = topK * s.firstRoundMult
	}

	mode := opts.Mode
	if mode == "" {
		mode = domain.RetrievalModeHybrid
	}
	logger.Debug("Mode: %s, top_k: %d, first round: %d", mode, topK, firstRound)

	var result []domain.RetrievedChunk
	var err error

	switch mode {
	case domain.RetrievalModeVector:
		result, err = s.vectorRetrieve(ctx, query, firstRound, opts)
	case domain.RetrievalModeText:
		result, err = s.textRetrieve(ctx, query, firstRound, opts.Scope)
	case domain.RetrievalModeHybrid:
		result, err = s.hybridRetrieve(ctx, query, firstRound, opts)
	default:
		return nil, fmt.Errorf("%w: unknown retrieval mode %q", domain.ErrInvalidInput, mode)
	}
	if err != nil {
		return nil, err
	}

	result, err = s.applyRerankers(ctx, result, query, topK)
	if err != nil {
		return nil, err
	}

	result = truncate(result, topK)
	logger.Debug("Primary results: %d", len(result))

	if opts.DoExtend {
		count := opts.ThumbnailCount
		if count <= 0 {
			count = s.thumbnailCount
		}
		result = s.extendWithThumbnails(ctx, result, count)
	}

	if result == nil {
		result = []domain.RetrievedChunk{}
	}
	return result, nil
}

// vectorRetrieve embeds the query, queries the vector store, and
// hydrates chunk bodies from the document store.
func (s *RetrievalService) vectorRetrieve(
	ctx context.Context, query string, firstRound int, opts domain.RetrievalOptions,
) ([]domain.RetrievedChunk, error) {
	emb, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	rows, err := s.vectorStore.Query(ctx, driven.VectorQuery{
		Embedding: emb,
		TopK:      firstRound,
		QueryText: query,
		Scope:     opts.Scope,
		Filters:   opts.Filters,
	})
	if err != nil {
		return nil, err
	}

	return s.hydrate(ctx, rows)
}

// textRetrieve runs keyword-only search. Without a scope the result is
// empty by design: full-text search needs a subset to search within.
func (s *RetrievalService) textRetrieve(
	ctx context.Context, query string, firstRound int, scope []string,
) ([]domain.RetrievedChunk, error) {
	if len(scope) == 0 {
		logger.Debug("Text mode without scope, returning no results")
		return []domain.RetrievedChunk{}, nil
	}

	docs, err := s.docStore.Query(ctx, query, firstRound, scope)
	if err != nil {
		return nil, &domain.StorageQueryError{Backend: "keyword", Err: err}
	}

	result := make([]domain.RetrievedChunk, len(docs))
	for i, doc := range docs {
		result[i] = domain.RetrievedChunk{Chunk: doc, Score: domain.KeywordScore}
	}
	return result, nil
}

// legOutcome is one search leg's captured result. Each leg's goroutine
// writes only its own outcome; the joining goroutine inspects both.
type legOutcome struct {
	chunks []domain.RetrievedChunk
	err    error
}

// hybridRetrieve runs the vector and keyword legs concurrently against
// their independent backends, then fuses deterministically: vector hits
// first in backend order, then keyword survivors whose ids the vector
// leg did not already return.
func (s *RetrievalService) hybridRetrieve(
	ctx context.Context, query string, firstRound int, opts domain.RetrievalOptions,
) ([]domain.RetrievedChunk, error) {
	emb, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	var vec, kw legOutcome
	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		vec = s.vectorLeg(ctx, emb, query, firstRound, opts)
	}()

	go func() {
		defer wg.Done()
		kw = s.keywordLeg(ctx, query, firstRound, opts.Scope)
	}()

	wg.Wait()

	switch {
	case vec.err != nil && kw.err != nil:
		logger.Warn("Hybrid retrieval: both backends failed")
		return nil, fmt.Errorf("hybrid retrieval: %w (keyword leg: %v)", vec.err, kw.err)

	case vec.err != nil:
		logger.Warn("Hybrid retrieval: vector leg failed, falling back to keyword results: %v", vec.err)
		return kw.chunks, nil

	case kw.err != nil:
		logger.Warn("Hybrid retrieval: keyword leg failed, falling back to vector results: %v", kw.err)
		return vec.chunks, nil
	}

	logger.Debug("Hybrid retrieval: %d vector + %d keyword hits", len(vec.chunks), len(kw.chunks))

	inVector := make(map[string]bool, len(vec.chunks))
	for _, rc := range vec.chunks {
		inVector[rc.ID] = true
	}

	// Vector hits win on overlap: they are scored, keyword hits are not,
	// so the scored version is authoritative.
	fused := vec.chunks
	for _, rc := range kw.chunks {
		if !inVector[rc.ID] {
			fused = append(fused, rc)
		}
	}
	return fused, nil
}

// vectorLeg is the vector-side worker for hybrid mode. Failures are
// captured in the outcome rather than propagated, so the joining
// goroutine can apply the fallback policy.
func (s *RetrievalService) vectorLeg(
	ctx context.Context, emb []float32, query string, firstRound int, opts domain.RetrievalOptions,
) legOutcome {
	rows, err := s.vectorStore.Query(ctx, driven.VectorQuery{
		Embedding: emb,
		TopK:      firstRound,
		QueryText: query,
		Scope:     opts.Scope,
		Filters:   opts.Filters,
	})
	if err != nil {
		return legOutcome{err: err}
	}

	chunks, err := s.hydrate(ctx, rows)
	if err != nil {
		return legOutcome{err: &domain.StorageQueryError{Backend: "vector", Err: err}}
	}
	return legOutcome{chunks: chunks}
}

// keywordLeg is the keyword-side worker for hybrid mode.
func (s *RetrievalService) keywordLeg(
	ctx context.Context, query string, firstRound int, scope []string,
) legOutcome {
	chunks, err := s.textRetrieve(ctx, query, firstRound, scope)
	if err != nil {
		return legOutcome{err: err}
	}
	return legOutcome{chunks: chunks}
}

// embedQuery embeds the query text. Provider failures abort the round:
// no partial vector path is possible without an embedding.
func (s *RetrievalService) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if s.embedder == nil {
		return nil, &domain.EmbeddingError{Err: domain.ErrMissingEmbedder}
	}
	emb, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, &domain.EmbeddingError{Err: err}
	}
	return emb, nil
}

// hydrate replaces store rows with full chunk bodies from the document
// store, preserving the rows' ranking order. The document store does not
// guarantee positional alignment, so bodies are re-keyed by id; rows
// whose body has gone missing keep the store row's own text and metadata.
func (s *RetrievalService) hydrate(
	ctx context.Context, rows []driven.ScoredRow,
) ([]domain.RetrievedChunk, error) {
	if len(rows) == 0 {
		return []domain.RetrievedChunk{}, nil
	}

	ids := make([]string, len(rows))
	for i, row := range rows {
		ids[i] = row.ID
	}

	docs, err := s.docStore.Get(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("hydrating chunks: %w", err)
	}

	byID := make(map[string]domain.Chunk, len(docs))
	for _, doc := range docs {
		byID[doc.ID] = doc
	}

	result := make([]domain.RetrievedChunk, len(rows))
	for i, row := range rows {
		chunk, ok := byID[row.ID]
		if !ok {
			chunk = domain.Chunk{ID: row.ID, Text: row.Text, Metadata: row.Metadata}
		}
		result[i] = domain.RetrievedChunk{Chunk: chunk, Score: row.Score}
	}
	return result, nil
}

// applyRerankers chains the configured rerankers in order. LLM-backed
// rerankers get their input truncated to topK first to bound cost.
func (s *RetrievalService) applyRerankers(
	ctx context.Context, result []domain.RetrievedChunk, query string, topK int,
) ([]domain.RetrievedChunk, error) {
	for _, reranker := range s.rerankers {
		if llm, ok := reranker.(driven.LLMBacked); ok && llm.LLMBacked() {
			result = truncate(result, topK)
		}
		reranked, err := reranker.Rerank(ctx, result, query)
		if err != nil {
			return nil, fmt.Errorf("reranking: %w", err)
		}
		result = reranked
	}
	return result, nil
}

// extendWithThumbnails appends page-image chunks referenced by the final
// results' thumbnail_doc_id metadata. The additions sit beyond the top-k
// bound and carry no similarity score. Fetch failures degrade to the
// unextended result.
func (s *RetrievalService) extendWithThumbnails(
	ctx context.Context, result []domain.RetrievedChunk, count int,
) []domain.RetrievedChunk {
	seen := make(map[string]bool)
	var ids []string
	for _, rc := range result {
		id := rc.Metadata.ThumbnailDocID
		if id != "" && !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return result
	}

	thumbs, err := s.docStore.Get(ctx, ids)
	if err != nil {
		logger.Warn("Thumbnail extension failed: %v", err)
		return result
	}
	if len(thumbs) > count {
		thumbs = thumbs[:count]
	}

	logger.Debug("Appending %d thumbnail chunks", len(thumbs))
	for _, thumb := range thumbs {
		thumb.Metadata.Type = domain.ChunkTypeThumbnail
		result = append(result, domain.RetrievedChunk{Chunk: thumb})
	}
	return result
}

// truncate bounds a result list to top-k.
func truncate(chunks []domain.RetrievedChunk, topK int) []domain.RetrievedChunk {
	if topK > 0 && len(chunks) > topK {
		return chunks[:topK]
	}
	return chunks
}
