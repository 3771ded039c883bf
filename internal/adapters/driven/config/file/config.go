// Package file loads and saves the application configuration as a TOML
// file, defaulting to ~/.ragkit/config.toml.
package file

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/custodia-labs/ragkit/internal/core/services"
)

// Backend and provider names accepted in the configuration.
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"

	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	RerankNone   = "none"
	RerankCohere = "cohere"
	RerankLLM    = "llm"
)

// StorageConfig selects and parameterises the storage backend.
type StorageConfig struct {
	// Backend is one of "sqlite", "postgres", "memory" (default "sqlite").
	Backend string `toml:"backend"`

	// DataDir is the sqlite data directory (default ~/.ragkit/data).
	DataDir string `toml:"data_dir"`

	// DSN is the postgres connection string.
	DSN string `toml:"dsn"`

	// Table is the postgres chunk table name (default "chunks").
	Table string `toml:"table"`
}

// EmbeddingConfig selects and parameterises the embedding provider.
type EmbeddingConfig struct {
	// Provider is one of "openai", "ollama" (default "ollama").
	Provider string `toml:"provider"`

	// APIKey authenticates hosted providers.
	APIKey string `toml:"api_key"`

	// BaseURL overrides the provider endpoint.
	BaseURL string `toml:"base_url"`

	// Model is the embedding model name.
	Model string `toml:"model"`

	// Dimensions is the embedding vector size.
	Dimensions int `toml:"dimensions"`
}

// RetrievalConfig tunes the retrieval pipeline.
type RetrievalConfig struct {
	// TopK is the default result count.
	TopK int `toml:"top_k"`

	// FirstRoundMultiplier widens the candidate round before reranking.
	FirstRoundMultiplier int `toml:"first_round_multiplier"`

	// ThumbnailCount caps appended thumbnail chunks.
	ThumbnailCount int `toml:"thumbnail_count"`
}

// RerankConfig selects the optional second-stage reranker.
type RerankConfig struct {
	// Provider is one of "none", "cohere", "llm" (default "none").
	Provider string `toml:"provider"`

	// APIKey authenticates the cohere provider.
	APIKey string `toml:"api_key"`

	// Model is the rerank model name.
	Model string `toml:"model"`
}

// LLMConfig parameterises the LLM used by the "llm" reranker.
type LLMConfig struct {
	APIKey  string `toml:"api_key"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
}

// Config is the full application configuration.
type Config struct {
	Storage   StorageConfig   `toml:"storage"`
	Embedding EmbeddingConfig `toml:"embedding"`
	Retrieval RetrievalConfig `toml:"retrieval"`
	Rerank    RerankConfig    `toml:"rerank"`
	LLM       LLMConfig       `toml:"llm"`
}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Storage: StorageConfig{
			Backend: BackendSQLite,
			Table:   "chunks",
		},
		Embedding: EmbeddingConfig{
			Provider: ProviderOllama,
		},
		Retrieval: RetrievalConfig{
			TopK:                 services.DefaultTopK,
			FirstRoundMultiplier: services.DefaultFirstRoundMultiplier,
			ThumbnailCount:       services.DefaultThumbnailCount,
		},
		Rerank: RerankConfig{
			Provider: RerankNone,
		},
	}
}

// DefaultPath returns ~/.ragkit/config.toml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".ragkit", "config.toml"), nil
}

// Load reads the configuration at path. A missing file yields the
// defaults; a present file is parsed over them, so partial files work.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return cfg, err
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, cfg.validate()
}

// Save writes the configuration to path, creating the directory.
func Save(path string, cfg Config) error {
	if path == "" {
		var err error
		path, err = DefaultPath()
		if err != nil {
			return err
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}
	// Config may hold API keys, so keep it private.
	return os.WriteFile(path, data, 0600)
}

// validate rejects unknown backend and provider names early.
func (c Config) validate() error {
	switch c.Storage.Backend {
	case BackendSQLite, BackendPostgres, BackendMemory:
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	switch c.Embedding.Provider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("unknown embedding provider %q", c.Embedding.Provider)
	}
	switch c.Rerank.Provider {
	case RerankNone, RerankCohere, RerankLLM:
	default:
		return fmt.Errorf("unknown rerank provider %q", c.Rerank.Provider)
	}
	return nil
}
