package embedder

import (
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultCacheSize is the number of query vectors kept by default
const DefaultCacheSize = 10000

// vectorCache is an LRU of query vectors keyed by provider, model and text hash
type vectorCache struct {
	lru *lru.Cache[string, []float32]
}

func newVectorCache(size int) *vectorCache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	// lru.New only fails for non-positive sizes
	c, _ := lru.New[string, []float32](size)
	return &vectorCache{lru: c}
}

// get returns a copy so callers cannot mutate the cached vector
func (c *vectorCache) get(key string) ([]float32, bool) {
	v, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	return append([]float32(nil), v...), true
}

func (c *vectorCache) add(key string, v []float32) {
	c.lru.Add(key, append([]float32(nil), v...))
}

func (c *vectorCache) size() int { return c.lru.Len() }

func (c *vectorCache) purge() { c.lru.Purge() }

// TextHash is the hex SHA-256 of text
func TextHash(text string) string {
	h := sha256.Sum256([]byte(text))
	return hex.EncodeToString(h[:])
}

func cacheKey(e Embedder, text string) string {
	return e.Provider() + "/" + e.Model() + "/" + TextHash(text)
}
