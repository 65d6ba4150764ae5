// Package index is a brute-force Euclidean nearest-neighbour index over
// chunk embeddings.
package index

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/dgallion1/docqa/internal/embedder"
)

var ErrDimensionMismatch = errors.New("vector dimension does not match index")

// Index is immutable once built: position i of texts owns row i of vectors.
type Index struct {
	dim     int
	texts   []string
	vectors [][]float32
}

// Result is one hit, closest first.
type Result struct {
	Position int     `json:"position"`
	Text     string  `json:"text"`
	Distance float64 `json:"distance"`
}

// Build embeds texts with emb and indexes them. No texts yields an empty
// index without calling the embedder.
func Build(ctx context.Context, texts []string, emb embedder.Embedder) (*Index, error) {
	if len(texts) == 0 {
		return &Index{dim: emb.Dimension()}, nil
	}
	vectors, err := emb.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed chunks: %w", err)
	}
	return New(texts, vectors)
}

// New indexes precomputed vectors. All vectors must share one length.
func New(texts []string, vectors [][]float32) (*Index, error) {
	if len(texts) != len(vectors) {
		return nil, fmt.Errorf("index: %d texts but %d vectors", len(texts), len(vectors))
	}
	ix := &Index{
		texts:   slices.Clone(texts),
		vectors: make([][]float32, len(vectors)),
	}
	for i, v := range vectors {
		if i == 0 {
			ix.dim = len(v)
		}
		if len(v) != ix.dim || len(v) == 0 {
			return nil, fmt.Errorf("vector %d has %d dims, want %d: %w", i, len(v), ix.dim, ErrDimensionMismatch)
		}
		ix.vectors[i] = slices.Clone(v)
	}
	return ix, nil
}

func (ix *Index) Len() int {
	if ix == nil {
		return 0
	}
	return len(ix.texts)
}

func (ix *Index) Dimension() int {
	if ix == nil {
		return 0
	}
	return ix.dim
}

// Texts returns the indexed texts in insertion order.
func (ix *Index) Texts() []string {
	if ix == nil {
		return nil
	}
	return slices.Clone(ix.texts)
}

// Search returns the k entries nearest to query by L2 distance, closest
// first, ties in insertion order. k larger than the index is clamped. An
// empty index returns no results and no error.
func (ix *Index) Search(query []float32, k int) ([]Result, error) {
	if ix.Len() == 0 || k <= 0 {
		return nil, nil
	}
	if len(query) != ix.dim {
		return nil, fmt.Errorf("query has %d dims, index has %d: %w", len(query), ix.dim, ErrDimensionMismatch)
	}

	results := make([]Result, len(ix.vectors))
	for i, v := range ix.vectors {
		results[i] = Result{Position: i, Text: ix.texts[i], Distance: squaredL2(query, v)}
	}
	slices.SortStableFunc(results, func(a, b Result) int {
		return cmp.Compare(a.Distance, b.Distance)
	})

	results = results[:min(k, len(results))]
	for i := range results {
		results[i].Distance = math.Sqrt(results[i].Distance)
	}
	return results, nil
}

func squaredL2(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
