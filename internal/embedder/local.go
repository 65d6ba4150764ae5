package embedder

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

var tokenRe = regexp.MustCompile(`\w+`)

// Local is a deterministic feature-hashing embedder. It needs no model
// server, which makes it the offline fallback and the test double.
type Local struct {
	dim int
}

func NewLocal(dim int) *Local {
	if dim <= 0 {
		dim = 256
	}
	return &Local{dim: dim}
}

func (l *Local) Dimension() int {
	return l.dim
}

func (l *Local) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if strings.TrimSpace(t) == "" {
			return nil, fmt.Errorf("text %d: %w", i, ErrEmptyText)
		}
		out[i] = l.vector(t)
	}
	return out, nil
}

// vector counts lowercase word tokens into hashed buckets, with the
// hash's top bit picking the sign, and normalizes to unit length.
func (l *Local) vector(text string) []float32 {
	vec := make([]float32, l.dim)
	for _, tok := range tokenRe.FindAllString(strings.ToLower(text), -1) {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		sign := float32(1)
		if sum>>63 == 1 {
			sign = -1
		}
		vec[sum%uint64(l.dim)] += sign
	}
	var norm float64
	for _, x := range vec {
		norm += float64(x) * float64(x)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}
