package cli

import (
	"context"
	"fmt"

	"github.com/custodia-labs/ragkit/internal/adapters/driven/config/file"
	embollama "github.com/custodia-labs/ragkit/internal/adapters/driven/embedding/ollama"
	embopenai "github.com/custodia-labs/ragkit/internal/adapters/driven/embedding/openai"
	llmopenai "github.com/custodia-labs/ragkit/internal/adapters/driven/llm/openai"
	"github.com/custodia-labs/ragkit/internal/adapters/driven/reranker"
	"github.com/custodia-labs/ragkit/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/ragkit/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/ragkit/internal/adapters/driven/storage/sqlite"
	"github.com/custodia-labs/ragkit/internal/core/ports/driven"
	"github.com/custodia-labs/ragkit/internal/core/ports/driving"
	"github.com/custodia-labs/ragkit/internal/core/services"
)

// Wired services. Tests inject these directly; otherwise ensureServices
// builds them from the configuration on first use.
var (
	retriever   driving.Retriever
	indexer     driving.Indexer
	vectorStore driven.VectorStore
	cleanup     func()
)

// ensureServices wires the pipeline from the configuration unless
// services are already present.
func ensureServices(ctx context.Context) error {
	if retriever != nil && indexer != nil && vectorStore != nil {
		return nil
	}

	cfg, err := file.Load(cfgPath)
	if err != nil {
		return err
	}

	embedder, err := buildEmbedder(cfg.Embedding)
	if err != nil {
		return err
	}

	vs, ds, closeStore, err := buildStorage(ctx, cfg.Storage, embedder.Dimensions())
	if err != nil {
		return err
	}

	rerankers, err := buildRerankers(cfg)
	if err != nil {
		closeStore()
		return err
	}

	retriever = services.NewRetrievalService(vs, ds, embedder, rerankers, services.RetrievalConfig{
		TopK:                 cfg.Retrieval.TopK,
		FirstRoundMultiplier: cfg.Retrieval.FirstRoundMultiplier,
		ThumbnailCount:       cfg.Retrieval.ThumbnailCount,
	})
	indexer = services.NewIndexingService(vs, ds, embedder)
	vectorStore = vs
	cleanup = func() {
		embedder.Close()
		closeStore()
	}
	return nil
}

// closeServices releases wired resources, if any.
func closeServices() {
	if cleanup != nil {
		cleanup()
		cleanup = nil
	}
}

func buildEmbedder(cfg file.EmbeddingConfig) (driven.EmbeddingService, error) {
	switch cfg.Provider {
	case file.ProviderOpenAI:
		return embopenai.NewEmbeddingService(embopenai.Config{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		})
	case file.ProviderOllama:
		return embollama.NewEmbeddingService(embollama.Config{
			BaseURL:    cfg.BaseURL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		}), nil
	default:
		return nil, fmt.Errorf("unknown embedding provider %q", cfg.Provider)
	}
}

func buildStorage(
	ctx context.Context, cfg file.StorageConfig, dim int,
) (driven.VectorStore, driven.DocumentStore, func(), error) {
	switch cfg.Backend {
	case file.BackendSQLite:
		store, err := sqlite.NewStore(cfg.DataDir, dim)
		if err != nil {
			return nil, nil, nil, err
		}
		return store.VectorStore(), store.DocumentStore(), func() { store.Close() }, nil

	case file.BackendPostgres:
		store, err := postgres.NewStore(ctx, postgres.Config{
			DSN:          cfg.DSN,
			Table:        cfg.Table,
			EmbeddingDim: dim,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return store.VectorStore(), store.DocumentStore(), func() { store.Close() }, nil

	case file.BackendMemory:
		return memory.NewVectorStore(dim), memory.NewDocumentStore(), func() {}, nil

	default:
		return nil, nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func buildRerankers(cfg file.Config) ([]driven.Reranker, error) {
	switch cfg.Rerank.Provider {
	case file.RerankNone, "":
		return nil, nil

	case file.RerankCohere:
		r, err := reranker.NewCohereReranker(reranker.CohereConfig{
			APIKey: cfg.Rerank.APIKey,
			Model:  cfg.Rerank.Model,
		})
		if err != nil {
			return nil, err
		}
		return []driven.Reranker{r}, nil

	case file.RerankLLM:
		llm, err := llmopenai.NewLLMService(llmopenai.Config{
			APIKey:  cfg.LLM.APIKey,
			BaseURL: cfg.LLM.BaseURL,
			Model:   cfg.LLM.Model,
		})
		if err != nil {
			return nil, err
		}
		return []driven.Reranker{reranker.NewLLMReranker(llm)}, nil

	default:
		return nil, fmt.Errorf("unknown rerank provider %q", cfg.Rerank.Provider)
	}
}
