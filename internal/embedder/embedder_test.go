package embedder

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeServer struct {
	mu    sync.Mutex
	seen  []string
	calls int
}

// newFakeServer answers /v1/embeddings with [len(text), index, 1].
func newFakeServer(t *testing.T) (*httptest.Server, *fakeServer) {
	t.Helper()
	fs := &fakeServer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		var req struct {
			Input []string `json:"input"`
			Model string   `json:"model"`
		}
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		fs.mu.Lock()
		fs.calls++
		fs.seen = append(fs.seen, req.Input...)
		fs.mu.Unlock()

		data := make([]map[string]any, len(req.Input))
		for i, text := range req.Input {
			data[i] = map[string]any{
				"object":    "embedding",
				"index":     i,
				"embedding": []float32{float32(len(text)), float32(i), 1},
			}
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": req.Model})
	}))
	t.Cleanup(srv.Close)
	return srv, fs
}

func TestOpenAI_PreservesOrderAcrossBatches(t *testing.T) {
	srv, fs := newFakeServer(t)
	e := NewOpenAI(OpenAIOptions{BaseURL: srv.URL + "/v1", Model: "nomic-embed-text", BatchSize: 2, Concurrency: 3}, nil)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vecs, err := e.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vecs, len(texts))
	for i, v := range vecs {
		assert.Equal(t, float32(len(texts[i])), v[0], "vector %d out of place", i)
	}
	assert.Equal(t, 3, fs.calls)
	assert.Equal(t, 3, e.Dimension())
}

func TestOpenAI_CachesRepeatedTexts(t *testing.T) {
	srv, fs := newFakeServer(t)
	e := NewOpenAI(OpenAIOptions{BaseURL: srv.URL + "/v1", Model: "m", CacheSize: 16}, nil)
	ctx := context.Background()

	_, err := e.Embed(ctx, []string{"one", "two"})
	require.NoError(t, err)
	_, err = e.Embed(ctx, []string{"two", "three"})
	require.NoError(t, err)

	assert.Equal(t, []string{"one", "two", "three"}, fs.seen)
	assert.Equal(t, 3, e.cache.Len())
}

func TestOpenAI_RejectsEmptyText(t *testing.T) {
	e := NewOpenAI(OpenAIOptions{BaseURL: "http://127.0.0.1:1/v1", Model: "m"}, nil)
	_, err := e.Embed(context.Background(), []string{"ok", "  "})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestOpenAI_DimensionMismatch(t *testing.T) {
	srv, _ := newFakeServer(t)
	e := NewOpenAI(OpenAIOptions{BaseURL: srv.URL + "/v1", Model: "m", Dimension: 768}, nil)
	_, err := e.Embed(context.Background(), []string{"text"})
	assert.ErrorIs(t, err, ErrUnexpectedDim)
}

func TestLocal_DeterministicUnitVectors(t *testing.T) {
	l := NewLocal(64)
	vecs, err := l.Embed(context.Background(), []string{"The quick brown fox", "the QUICK brown fox!", "unrelated words here"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)

	assert.Equal(t, vecs[0], vecs[1], "tokenization should ignore case and punctuation")
	for _, v := range vecs {
		require.Len(t, v, 64)
		var norm float64
		for _, x := range v {
			norm += float64(x) * float64(x)
		}
		assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
	}
}

func TestLocal_RejectsEmptyText(t *testing.T) {
	_, err := NewLocal(8).Embed(context.Background(), []string{""})
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestNew(t *testing.T) {
	e, err := New(Config{Provider: "LOCAL", OpenAIOptions: OpenAIOptions{Dimension: 32}}, nil)
	require.NoError(t, err)
	assert.Equal(t, 32, e.Dimension())

	e, err = New(Config{Provider: ProviderOllama, OpenAIOptions: OpenAIOptions{BaseURL: "http://localhost:11434/v1"}}, nil)
	require.NoError(t, err)
	assert.IsType(t, &OpenAI{}, e)

	e, err = New(Config{Provider: ProviderNone}, nil)
	require.NoError(t, err)
	assert.Nil(t, e)

	_, err = New(Config{Provider: "spago"}, nil)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestCache_NilIsSafe(t *testing.T) {
	var c *Cache
	c.Add("x", []float32{1})
	_, ok := c.Get("x")
	assert.False(t, ok)
	assert.Zero(t, c.Len())
	assert.Nil(t, NewCache(0))
}

func TestCache_ReturnsCopies(t *testing.T) {
	c := NewCache(2)
	c.Add("x", []float32{1, 2})
	v, ok := c.Get("x")
	require.True(t, ok)
	v[0] = 99
	again, _ := c.Get("x")
	assert.Equal(t, float32(1), again[0])
}
