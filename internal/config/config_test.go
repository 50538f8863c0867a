package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)

	assert.Equal(t, 1000, cfg.Splitter.ChunkSize)
	assert.Equal(t, 200, cfg.Splitter.ChunkOverlap)
	assert.Equal(t, 3, cfg.Tasks.MaxAttempts)
	assert.Equal(t, 30, cfg.Tasks.RetryDelaySecs)
	assert.Equal(t, 30, cfg.Tasks.StaleAfterMins)
	assert.Equal(t, 1536, cfg.OpenAI.EmbeddingDims)
	assert.Equal(t, "documents", cfg.Qdrant.Collection)
	assert.Equal(t, filepath.Join("data", "Documents"), cfg.DocumentsRoot())
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
data_dir: /srv/raglens
splitter:
  chunk_size: 500
  chunk_overlap: 50
tasks:
  workers: 8
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/srv/raglens", cfg.DataDir)
	assert.Equal(t, 500, cfg.Splitter.ChunkSize)
	assert.Equal(t, 50, cfg.Splitter.ChunkOverlap)
	assert.Equal(t, 8, cfg.Tasks.Workers)
	assert.Equal(t, filepath.Join("/srv/raglens", "raglens.db"), cfg.DatabasePath)
}

func TestLoad_TOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
server_addr = ":9090"

[qdrant]
host = "qdrant.internal"
port = 7334
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, "qdrant.internal", cfg.Qdrant.Host)
	assert.Equal(t, 7334, cfg.Qdrant.Port)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("QDRANT_PORT", "7000")
	t.Setenv("USE_MOCK_EMBEDDINGS", "true")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, 7000, cfg.Qdrant.Port)
	assert.True(t, cfg.OpenAI.MockEmbeddings)
}

func TestLoad_InvalidOverlapReset(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("splitter:\n  chunk_size: 300\n  chunk_overlap: 400\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 200, cfg.Splitter.ChunkOverlap)
}
