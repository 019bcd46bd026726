/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"slices"
	"sync"
	"time"

	"github.com/krishimitra-ai/krishimitra/internal/metrics"
	"github.com/krishimitra-ai/krishimitra/internal/provider"
)

// CacheConfig holds configuration for the query embedding cache.
type CacheConfig struct {
	Enabled    bool
	TTL        time.Duration
	MaxEntries int
	// Model is mixed into the key so vectors from different models never mix.
	Model string
}

type cacheEntry struct {
	vector   []float64
	cachedAt time.Time
}

// Cache wraps an Embedder with a content-addressed cache keyed on
// model+text. Repeated questions then skip the provider call.
//
// Entries live in memory only and expire after TTL. When MaxEntries is
// reached the oldest entry is evicted. Failed calls are never cached.
type Cache struct {
	next Embedder

	mu      sync.RWMutex
	entries map[string]*cacheEntry
	order   []string // insertion order for eviction
	config  CacheConfig
	now     func() time.Time
}

// NewCache wraps next. A disabled cache passes every call through.
func NewCache(next Embedder, cfg CacheConfig) *Cache {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 1000
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	return &Cache{
		next:    next,
		entries: make(map[string]*cacheEntry),
		config:  cfg,
		now:     time.Now,
	}
}

// CacheKey computes a SHA-256 hash of model+text.
func CacheKey(model, text string) string {
	h := sha256.New()
	_, _ = h.Write([]byte(model))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(text))
	return hex.EncodeToString(h.Sum(nil))
}

// EmbedBatch serves cached vectors and embeds the misses in one call.
func (c *Cache) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if !c.config.Enabled {
		return c.next.EmbedBatch(ctx, texts)
	}

	out := make([][]float64, len(texts))
	var missIdx []int
	var missTexts []string
	for i, t := range texts {
		if v := c.get(CacheKey(c.config.Model, t)); v != nil {
			out[i] = v
			metrics.QueryCacheLookups.WithLabelValues("hit").Inc()
			continue
		}
		metrics.QueryCacheLookups.WithLabelValues("miss").Inc()
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, t)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.next.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, provider.Malformed(opEmbed, "expected %d vectors, got %d", len(missTexts), len(vecs))
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		c.put(CacheKey(c.config.Model, missTexts[j]), vecs[j])
	}
	return out, nil
}

// Len returns the current number of entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) get(key string) []float64 {
	c.mu.RLock()
	entry, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil
	}

	if c.now().Sub(entry.cachedAt) > c.config.TTL {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil
	}
	return slices.Clone(entry.vector)
}

func (c *Cache) put(key string, vector []float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; exists {
		return
	}
	for len(c.entries) >= c.config.MaxEntries {
		c.evictOldest()
	}
	c.entries[key] = &cacheEntry{vector: slices.Clone(vector), cachedAt: c.now()}
	c.order = append(c.order, key)
}

// evictOldest removes the oldest entry. Must be called with mu held.
func (c *Cache) evictOldest() {
	for len(c.order) > 0 {
		oldest := c.order[0]
		c.order = c.order[1:]
		if _, exists := c.entries[oldest]; exists {
			delete(c.entries, oldest)
			return
		}
		// Already expired and removed.
	}
}

var _ Embedder = (*Cache)(nil)
