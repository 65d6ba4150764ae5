// Package embedder turns chunk texts into fixed-dimension vectors.
package embedder

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"

	lru "github.com/hashicorp/golang-lru/v2"
)

var (
	ErrEmptyText         = errors.New("text cannot be empty")
	ErrUnexpectedDim     = errors.New("unexpected embedding dimension")
	ErrUnknownProvider   = errors.New("unknown embedding provider")
	ErrMissingEmbeddings = errors.New("provider returned fewer embeddings than requested")
)

// Embedder maps texts to vectors. Every vector returned by one Embedder
// has the same length, reported by Dimension once known.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Cache is an LRU of embeddings keyed by the SHA-256 of the text.
type Cache struct {
	lru *lru.Cache[string, []float32]
}

// NewCache returns nil when size <= 0; a nil *Cache is valid and never hits.
func NewCache(size int) *Cache {
	if size <= 0 {
		return nil
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil
	}
	return &Cache{lru: c}
}

// Get returns a copy of the cached vector.
func (c *Cache) Get(text string) ([]float32, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.lru.Get(Hash(text))
	if !ok {
		return nil, false
	}
	return append([]float32(nil), v...), true
}

func (c *Cache) Add(text string, vec []float32) {
	if c == nil {
		return
	}
	c.lru.Add(Hash(text), append([]float32(nil), vec...))
}

func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	return c.lru.Len()
}

// Hash is the cache key for text.
func Hash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}
