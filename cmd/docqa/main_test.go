package main

import (
	"bytes"
	"context"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/docqa/internal/chunker"
	"github.com/dgallion1/docqa/internal/config"
	"github.com/dgallion1/docqa/internal/export"
)

func init() {
	color.NoColor = true
}

const sample = "# Returns\n\nRefunds are issued within five days.\n\n# Shipping\n\nParcels ship overseas in two weeks.\n"

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.md")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))
	return path
}

func TestRun_LexicalSearch(t *testing.T) {
	path := writeSample(t)
	var out bytes.Buffer

	err := run(context.Background(), []string{"-strategy", "headings", "-size", "50", "-k", "1", path, "parcels", "overseas"}, &out)
	require.NoError(t, err)

	got := out.String()
	assert.Contains(t, got, "2 chunks (headings, size 50)")
	assert.Contains(t, got, "[1] Shipping")
	assert.Contains(t, got, "Parcels ship overseas in two weeks.")
	assert.NotContains(t, got, "Refunds")
}

func TestRun_EmbeddingSearchLocal(t *testing.T) {
	path := writeSample(t)
	var out bytes.Buffer

	err := run(context.Background(), []string{"-strategy", "headings", "-mode", "embedding", "-embedder", "local", "-k", "1", path, "refunds issued"}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), "[0] Returns")
}

func TestRun_ExportAndFind(t *testing.T) {
	path := writeSample(t)
	dir := t.TempDir()
	var out bytes.Buffer

	err := run(context.Background(), []string{"-strategy", "headings", "-out", dir, "-find", "TWO", path}, &out)
	require.NoError(t, err)
	assert.Contains(t, out.String(), `1 chunks contain "TWO"`)

	saved, err := export.Load(filepath.Join(dir, "policy"+export.Suffix))
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "Returns", saved[0].Section)
}

func TestRun_ExportToStdout(t *testing.T) {
	path := writeSample(t)
	var out bytes.Buffer

	require.NoError(t, run(context.Background(), []string{"-size", "4", "-out", "-", path}, &out))
	chunks, err := export.Read(&out)
	require.NoError(t, err)
	assert.Len(t, chunks, 4)
}

func TestRun_Errors(t *testing.T) {
	var out bytes.Buffer
	ctx := context.Background()

	err := run(ctx, nil, &out)
	assert.True(t, errors.Is(err, flag.ErrHelp))

	err = run(ctx, []string{"-strategy", "chars", "-size", "10", "-overlap", "10", "x.txt"}, &out)
	var cfgErr *chunker.ConfigError
	assert.ErrorAs(t, err, &cfgErr)

	for _, k := range []string{"0", "-1"} {
		err = run(ctx, []string{"-k", k, writeSample(t), "parcels"}, &out)
		require.Error(t, err, "k=%s", k)
		assert.Contains(t, err.Error(), "-k must be positive")
	}

	err = run(ctx, []string{filepath.Join(t.TempDir(), "missing.txt")}, &out)
	assert.Error(t, err)

	err = run(ctx, []string{"-mode", "fuzzy", writeSample(t), "query"}, &out)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "fuzzy"))
}

func TestEmbedderConfig_CarriesServerSettings(t *testing.T) {
	cfg := embedderConfig("ollama", config.Config{
		OllamaBaseURL:    "http://ollama:11434/v1",
		EmbeddingModel:   "nomic-embed-text",
		EmbeddingDim:     768,
		EmbedBatchSize:   32,
		EmbedConcurrency: 2,
		EmbedCacheSize:   128,
	})
	assert.Equal(t, "ollama", cfg.Provider)
	assert.Equal(t, "http://ollama:11434/v1", cfg.OpenAIOptions.BaseURL)
	assert.Equal(t, "nomic-embed-text", cfg.OpenAIOptions.Model)
	assert.Equal(t, 768, cfg.OpenAIOptions.Dimension)
	assert.Equal(t, 32, cfg.OpenAIOptions.BatchSize)
	assert.Equal(t, 2, cfg.OpenAIOptions.Concurrency)
	assert.Equal(t, 128, cfg.OpenAIOptions.CacheSize)
}
