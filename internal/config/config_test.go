package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "auto", cfg.Embedding.Backend)
	require.Equal(t, "rrf", cfg.Retrieval.FusionAlgorithm)
	require.Equal(t, 60, cfg.Retrieval.RRFK)
	require.Equal(t, 5, cfg.Autofix.N)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval:\n  top_k: 25\nembedding:\n  backend: voyage\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 25, cfg.Retrieval.TopK)
	require.Equal(t, "voyage", cfg.Embedding.Backend)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval:\n  top_k: 25\nembedding:\n  backend: voyage\n"), 0o644))
	t.Setenv("RETRIEVAL_TOP_K", "42")
	t.Setenv("EMBEDDING_BACKEND", "openai")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 42, cfg.Retrieval.TopK)
	require.Equal(t, "openai", cfg.Embedding.Backend)
}

func TestLoad_RejectsInvalidTopK(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("retrieval:\n  top_k: 0\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}
