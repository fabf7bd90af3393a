package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeConfig(t, `
store:
  path: ./vector_db
  collection: notes
rag:
  chunk_size: 256
  chunk_overlap: 64
  top_k: 3
embed_llm:
  provider: ollama
  base_url: http://localhost:11434
  model: nomic-embed-text
  dimension: 768
inference_llm:
  provider: openai
  model: gpt-4o-mini
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "./vector_db", cfg.Store.Path)
	assert.Equal(t, "notes", cfg.Store.Collection)
	assert.Equal(t, 256, cfg.RAG.ChunkSize)
	assert.Equal(t, 64, cfg.RAG.ChunkOverlap)
	assert.Equal(t, 3, cfg.RAG.TopK)
	assert.Equal(t, "cl100k_base", cfg.RAG.Encoding) // defaulted
	assert.Equal(t, "ollama", cfg.EmbedLLM.Provider)
	assert.Equal(t, 768, cfg.EmbedLLM.Dimension)
	assert.False(t, cfg.Database.Enabled)
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
embed_llm:
  provider: ollama
  model: nomic-embed-text
  dimension: 768
`)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, defaultChunkSize, cfg.RAG.ChunkSize)
	assert.Equal(t, defaultChunkOverlap, cfg.RAG.ChunkOverlap)
	assert.Equal(t, defaultTopK, cfg.RAG.TopK)
	assert.Equal(t, defaultEncoding, cfg.RAG.Encoding)
}

func TestLoadConfigRejectsInvalidOverlap(t *testing.T) {
	path := writeConfig(t, `
rag:
  chunk_size: 100
  chunk_overlap: 100
embed_llm:
  dimension: 768
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chunk_overlap")
}

func TestLoadConfigRejectsMissingDimension(t *testing.T) {
	path := writeConfig(t, `
rag:
  chunk_size: 100
  chunk_overlap: 10
`)
	_, err := LoadConfig(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dimension")
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
