package index

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/dgallion1/docqa/internal/embedder"
)

// Handle owns the current index of a session. Rebuild constructs a new
// index off to the side and swaps it in, so concurrent searches see either
// the old index or the new one.
type Handle struct {
	emb embedder.Embedder
	cur atomic.Pointer[Index]
}

func NewHandle(emb embedder.Embedder) *Handle {
	return &Handle{emb: emb}
}

// Rebuild replaces the index with one built from texts. On error the
// previous index stays in place.
func (h *Handle) Rebuild(ctx context.Context, texts []string) error {
	ix, err := Build(ctx, texts, h.emb)
	if err != nil {
		return err
	}
	h.cur.Store(ix)
	return nil
}

// Current returns the live index, or nil before the first rebuild.
func (h *Handle) Current() *Index {
	return h.cur.Load()
}

// Ready reports whether a non-empty index is available.
func (h *Handle) Ready() bool {
	return h.Current().Len() > 0
}

// SearchResults embeds query and searches the live index.
func (h *Handle) SearchResults(ctx context.Context, query string, k int) ([]Result, error) {
	ix := h.Current()
	if ix.Len() == 0 {
		return nil, nil
	}
	vecs, err := h.emb.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	return ix.Search(vecs[0], k)
}

// Search is SearchResults reduced to the chunk texts.
func (h *Handle) Search(ctx context.Context, query string, k int) ([]string, error) {
	results, err := h.SearchResults(ctx, query, k)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Text
	}
	return texts, nil
}
