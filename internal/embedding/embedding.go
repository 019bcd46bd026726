/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

// Package embedding turns text into fixed-dimension vectors through an
// external embedding provider.
package embedding

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/krishimitra-ai/krishimitra/internal/provider"
)

// DefaultBatchSize bounds how many texts go into one provider call during
// ingestion.
const DefaultBatchSize = 64

// Embedder converts a batch of texts into vectors, one per input, in input
// order, using a single provider call.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float64, error)
}

// EmbedQuery embeds a single query string.
func EmbedQuery(ctx context.Context, e Embedder, text string) ([]float64, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, provider.Malformed("embed query", "expected 1 vector, got %d", len(vecs))
	}
	return vecs[0], nil
}

// EmbedAll embeds texts in batches of at most batchSize, running up to
// concurrency batches at once. The result is in input order. The first
// failing batch cancels the rest and its error is returned.
func EmbedAll(ctx context.Context, e Embedder, texts []string, batchSize, concurrency int) ([][]float64, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	out := make([][]float64, len(texts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		g.Go(func() error {
			vecs, err := e.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return err
			}
			if len(vecs) != end-start {
				return provider.Malformed("embed batch", "expected %d vectors, got %d", end-start, len(vecs))
			}
			copy(out[start:end], vecs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
