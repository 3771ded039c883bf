package file

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/ragkit/internal/core/services"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "config.toml"))
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Storage.Backend)
	assert.Equal(t, ProviderOllama, cfg.Embedding.Provider)
	assert.Equal(t, RerankNone, cfg.Rerank.Provider)
	assert.Equal(t, services.DefaultTopK, cfg.Retrieval.TopK)
}

func TestLoad_PartialFileOverlaysDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	content := `
[storage]
backend = "postgres"
dsn = "postgres://localhost/ragkit"

[retrieval]
top_k = 8
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, BackendPostgres, cfg.Storage.Backend)
	assert.Equal(t, "postgres://localhost/ragkit", cfg.Storage.DSN)
	assert.Equal(t, 8, cfg.Retrieval.TopK)
	// Untouched sections keep their defaults.
	assert.Equal(t, ProviderOllama, cfg.Embedding.Provider)
	assert.Equal(t, services.DefaultThumbnailCount, cfg.Retrieval.ThumbnailCount)
}

func TestLoad_RejectsUnknownBackend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[storage]\nbackend = \"redis\"\n"), 0600))

	_, err := Load(path)
	assert.ErrorContains(t, err, "unknown storage backend")
}

func TestLoad_RejectsMalformedTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("not = [valid"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	cfg := Default()
	cfg.Storage.Backend = BackendMemory
	cfg.Embedding.Provider = ProviderOpenAI
	cfg.Embedding.APIKey = "sk-test"
	cfg.Rerank.Provider = RerankCohere

	require.NoError(t, Save(path, cfg))

	// Saved with restricted permissions.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}
