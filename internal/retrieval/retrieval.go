/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

// Package retrieval ranks stored chunks against a query embedding.
package retrieval

import (
	"fmt"
	"math"
	"sort"

	"github.com/krishimitra-ai/krishimitra/internal/vectorstore"
)

// epsilon keeps the cosine denominator non-zero for all-zero vectors.
const epsilon = 1e-8

// DimensionMismatchError reports a query and stored vector of different
// lengths, which means the store was built with a different embedding model.
type DimensionMismatchError struct {
	ChunkID string
	Query   int
	Stored  int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("embedding dimension mismatch: query has %d, chunk %s has %d", e.Query, e.ChunkID, e.Stored)
}

// Result is a chunk paired with its relevance score.
type Result struct {
	Chunk vectorstore.Chunk
	Score float64
}

// Engine ranks chunks for a query vector. Implementations return at most
// topK results in descending score order.
type Engine interface {
	Retrieve(query []float64, chunks []vectorstore.Chunk, topK int) ([]Result, error)
}

// CosineSimilarity returns dot(a, b) / (|a|*|b| + epsilon). Vectors must have
// equal length.
func CosineSimilarity(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, &DimensionMismatchError{Query: len(a), Stored: len(b)}
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	return dot / (math.Sqrt(na)*math.Sqrt(nb) + epsilon), nil
}

// BruteForce scores every chunk. Cost is linear in corpus size per query.
type BruteForce struct{}

// NewBruteForce returns the exhaustive cosine engine.
func NewBruteForce() *BruteForce { return &BruteForce{} }

// Retrieve scores all chunks and returns the best min(topK, len(chunks)).
// Equal scores keep their stored order.
func (BruteForce) Retrieve(query []float64, chunks []vectorstore.Chunk, topK int) ([]Result, error) {
	if topK <= 0 || len(chunks) == 0 {
		return []Result{}, nil
	}

	results := make([]Result, 0, len(chunks))
	for _, c := range chunks {
		score, err := CosineSimilarity(query, c.Embedding)
		if err != nil {
			return nil, &DimensionMismatchError{ChunkID: c.ID, Query: len(query), Stored: len(c.Embedding)}
		}
		results = append(results, Result{Chunk: c, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

// Compile-time interface check.
var _ Engine = BruteForce{}
