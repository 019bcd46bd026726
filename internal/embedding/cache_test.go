/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package embedding

import (
	"context"
	"errors"
	"testing"
	"time"
)

type countingEmbedder struct {
	batches [][]string
	err     error
}

func (c *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float64, error) {
	c.batches = append(c.batches, append([]string(nil), texts...))
	if c.err != nil {
		return nil, c.err
	}
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = []float64{float64(len(t)), 1}
	}
	return out, nil
}

func TestCacheKey(t *testing.T) {
	k1 := CacheKey("m1", "when to sow rice")
	k2 := CacheKey("m1", "when to sow rice")
	k3 := CacheKey("m2", "when to sow rice")
	k4 := CacheKey("m1", "when to sow wheat")

	if k1 != k2 {
		t.Error("same model+text should produce same key")
	}
	if k1 == k3 {
		t.Error("different model should produce different key")
	}
	if k1 == k4 {
		t.Error("different text should produce different key")
	}
	if len(k1) != 64 {
		t.Errorf("expected SHA-256 hex (64 chars), got %d chars", len(k1))
	}
}

func TestCacheHit(t *testing.T) {
	next := &countingEmbedder{}
	c := NewCache(next, CacheConfig{Enabled: true, TTL: time.Minute, MaxEntries: 10})

	first, err := EmbedQuery(context.Background(), c, "rice")
	if err != nil {
		t.Fatal(err)
	}
	second, err := EmbedQuery(context.Background(), c, "rice")
	if err != nil {
		t.Fatal(err)
	}
	if len(next.batches) != 1 {
		t.Errorf("provider calls = %d, want 1", len(next.batches))
	}
	if first[0] != second[0] {
		t.Errorf("cached vector = %v, want %v", second, first)
	}
}

func TestCachePartialBatch(t *testing.T) {
	next := &countingEmbedder{}
	c := NewCache(next, CacheConfig{Enabled: true})

	if _, err := c.EmbedBatch(context.Background(), []string{"a"}); err != nil {
		t.Fatal(err)
	}
	vecs, err := c.EmbedBatch(context.Background(), []string{"bb", "a", "ccc"})
	if err != nil {
		t.Fatal(err)
	}
	if got := next.batches[1]; len(got) != 2 || got[0] != "bb" || got[1] != "ccc" {
		t.Errorf("second call embedded %v, want only the misses", got)
	}
	for i, want := range []float64{2, 1, 3} {
		if vecs[i][0] != want {
			t.Errorf("vecs[%d] = %v, want length %v", i, vecs[i], want)
		}
	}
}

func TestCacheDisabled(t *testing.T) {
	next := &countingEmbedder{}
	c := NewCache(next, CacheConfig{Enabled: false})

	for range 3 {
		if _, err := EmbedQuery(context.Background(), c, "rice"); err != nil {
			t.Fatal(err)
		}
	}
	if len(next.batches) != 3 || c.Len() != 0 {
		t.Errorf("disabled cache: calls = %d, entries = %d", len(next.batches), c.Len())
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	now := time.Unix(1000, 0)
	next := &countingEmbedder{}
	c := NewCache(next, CacheConfig{Enabled: true, TTL: time.Minute})
	c.now = func() time.Time { return now }

	_, _ = EmbedQuery(context.Background(), c, "rice")
	now = now.Add(2 * time.Minute)
	_, _ = EmbedQuery(context.Background(), c, "rice")

	if len(next.batches) != 2 {
		t.Errorf("provider calls = %d, want 2 after expiry", len(next.batches))
	}
}

func TestCacheEviction(t *testing.T) {
	next := &countingEmbedder{}
	c := NewCache(next, CacheConfig{Enabled: true, MaxEntries: 2})

	for _, q := range []string{"a", "b", "c"} {
		_, _ = EmbedQuery(context.Background(), c, q)
	}
	if c.Len() != 2 {
		t.Errorf("entries = %d, want 2", c.Len())
	}
	_, _ = EmbedQuery(context.Background(), c, "a")
	if len(next.batches) != 4 {
		t.Errorf("oldest entry should have been evicted; calls = %d", len(next.batches))
	}
}

func TestCacheDoesNotStoreFailures(t *testing.T) {
	next := &countingEmbedder{err: errors.New("upstream down")}
	c := NewCache(next, CacheConfig{Enabled: true})

	if _, err := EmbedQuery(context.Background(), c, "rice"); err == nil {
		t.Fatal("expected error")
	}
	if c.Len() != 0 {
		t.Errorf("entries = %d, want 0", c.Len())
	}
}
