package embedder

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync/atomic"

	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"

	"github.com/dgallion1/docqa/internal/llm"
)

// OpenAIOptions configures an OpenAI-compatible embedding backend.
type OpenAIOptions struct {
	BaseURL     string // e.g. http://localhost:11434/v1 for Ollama
	APIKey      string
	Model       string
	Dimension   int // 0 means learn it from the first response
	BatchSize   int
	Concurrency int
	CacheSize   int
}

// OpenAI embeds through the /embeddings endpoint of an OpenAI-compatible
// server. Batches run concurrently up to Concurrency; repeated texts are
// served from an LRU cache.
type OpenAI struct {
	client      *openai.Client
	model       string
	batchSize   int
	concurrency int
	dim         atomic.Int64
	cache       *Cache
	log         *slog.Logger
}

func NewOpenAI(opts OpenAIOptions, log *slog.Logger) *OpenAI {
	key := opts.APIKey
	if key == "" {
		key = "ollama"
	}
	cfg := openai.DefaultConfig(key)
	cfg.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	if log == nil {
		log = slog.Default()
	}
	e := &OpenAI{
		client:      openai.NewClientWithConfig(cfg),
		model:       opts.Model,
		batchSize:   opts.BatchSize,
		concurrency: opts.Concurrency,
		cache:       NewCache(opts.CacheSize),
		log:         log,
	}
	e.dim.Store(int64(opts.Dimension))
	return e
}

func (e *OpenAI) Dimension() int {
	return int(e.dim.Load())
}

func (e *OpenAI) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []int
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("text %d: %w", i, ErrEmptyText)
		}
		if v, ok := e.cache.Get(t); ok {
			out[i] = v
			continue
		}
		missing = append(missing, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for start := 0; start < len(missing); start += e.batchSize {
		batch := missing[start:min(start+e.batchSize, len(missing))]
		g.Go(func() error {
			return e.embedBatch(gctx, texts, batch, out)
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	for _, i := range missing {
		e.cache.Add(texts[i], out[i])
	}
	return out, nil
}

// embedBatch fills out[idx] for every idx in batch. Batches never share
// indexes, so no locking is needed on out.
func (e *OpenAI) embedBatch(ctx context.Context, texts []string, batch []int, out [][]float32) error {
	input := make([]string, len(batch))
	for j, idx := range batch {
		input[j] = texts[idx]
	}

	var resp openai.EmbeddingResponse
	err := llm.Retry(ctx, e.log, "embed", func(ctx context.Context) error {
		var err error
		resp, err = e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: input,
			Model: openai.EmbeddingModel(e.model),
		})
		if err != nil {
			return llm.Classify(fmt.Errorf("embeddings: %w", err))
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(resp.Data) < len(batch) {
		return fmt.Errorf("%w: got %d, want %d", ErrMissingEmbeddings, len(resp.Data), len(batch))
	}

	for j, d := range resp.Data {
		pos := d.Index
		if pos < 0 || pos >= len(batch) {
			pos = j
		}
		if err := e.checkDim(len(d.Embedding)); err != nil {
			return err
		}
		vec := make([]float32, len(d.Embedding))
		for k, x := range d.Embedding {
			vec[k] = float32(x)
		}
		out[batch[pos]] = vec
	}
	return nil
}

// checkDim records the first dimension seen and rejects any other.
func (e *OpenAI) checkDim(n int) error {
	if n == 0 {
		return fmt.Errorf("%w: empty vector", ErrUnexpectedDim)
	}
	if e.dim.CompareAndSwap(0, int64(n)) {
		return nil
	}
	if want := e.dim.Load(); int64(n) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrUnexpectedDim, n, want)
	}
	return nil
}
