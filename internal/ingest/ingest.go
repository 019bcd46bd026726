/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

// Package ingest builds a vector store snapshot from a directory of
// documents: scan, load, chunk, embed, persist. A run either writes a
// complete new snapshot or leaves the previous one untouched.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-logr/logr"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	ctrl "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/krishimitra-ai/krishimitra/internal/chunker"
	"github.com/krishimitra-ai/krishimitra/internal/embedding"
	"github.com/krishimitra-ai/krishimitra/internal/metrics"
	"github.com/krishimitra-ai/krishimitra/internal/vectorstore"
)

// Options configures one ingestion run.
type Options struct {
	ContentDir string
	// Extensions limits the scan; empty means DefaultExtensions.
	Extensions []string

	Chunker  *chunker.Chunker
	Embedder embedding.Embedder
	Store    vectorstore.Store

	BatchSize   int
	Concurrency int

	// DryRun chunks and reports without embedding or writing.
	DryRun bool

	// NewID generates chunk ids; nil means random UUIDs.
	NewID func() string

	// Log receives progress; the zero value logs to the global logger.
	Log logr.Logger
}

// Document summarizes one ingested file.
type Document struct {
	Path   string
	Chunks int
}

// Report describes what a run did.
type Report struct {
	Documents []Document
	Chunks    int
	// Written is false for dry runs and for an empty content directory.
	Written bool
}

// Run executes one ingestion. An empty content directory is not an error:
// it logs a diagnostic and returns without touching the store.
func Run(ctx context.Context, opts Options) (*Report, error) {
	log := opts.Log
	if log.GetSink() == nil {
		log = ctrl.Log.WithName("ingest")
	}

	if opts.Chunker == nil {
		return nil, errors.New("ingest: chunker is required")
	}
	if !opts.DryRun && (opts.Embedder == nil || opts.Store == nil) {
		return nil, errors.New("ingest: embedder and store are required")
	}
	exts := opts.Extensions
	if len(exts) == 0 {
		exts = DefaultExtensions
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	ctx, span := metrics.StartSpan(ctx, "ingest.run", attribute.String("content_dir", opts.ContentDir))
	defer span.End()

	if err := os.MkdirAll(opts.ContentDir, 0o755); err != nil {
		return nil, fmt.Errorf("create content dir: %w", err)
	}
	files, err := scan(opts.ContentDir, exts)
	if err != nil {
		metrics.RecordError(span, err)
		return nil, fmt.Errorf("scan %s: %w", opts.ContentDir, err)
	}
	report := &Report{}
	if len(files) == 0 {
		log.Info("no documents found, nothing to ingest", "dir", opts.ContentDir, "extensions", exts)
		return report, nil
	}

	var texts, sources []string
	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		text, err := loaderFor(path)(path)
		if err != nil {
			metrics.RecordError(span, err)
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		pieces := opts.Chunker.Split(text)
		log.Info("document", "path", filepath.Base(path), "chunks", len(pieces))
		report.Documents = append(report.Documents, Document{Path: path, Chunks: len(pieces)})
		for _, p := range pieces {
			texts = append(texts, p)
			sources = append(sources, path)
		}
	}
	report.Chunks = len(texts)
	span.SetAttributes(attribute.Int("documents", len(files)), attribute.Int("chunks", len(texts)))

	if opts.DryRun {
		log.Info("dry run, skipping embedding", "documents", len(files), "chunks", len(texts))
		return report, nil
	}
	if len(texts) == 0 {
		log.Info("documents contained no text, nothing to ingest", "documents", len(files))
		return report, nil
	}

	vectors, err := embedding.EmbedAll(ctx, opts.Embedder, texts, opts.BatchSize, opts.Concurrency)
	if err != nil {
		metrics.RecordError(span, err)
		return nil, fmt.Errorf("embed chunks: %w", err)
	}

	chunks := make([]vectorstore.Chunk, len(texts))
	for i := range texts {
		chunks[i] = vectorstore.Chunk{
			ID:        newID(),
			Text:      texts[i],
			Metadata:  map[string]any{vectorstore.MetadataSource: sources[i]},
			Embedding: vectors[i],
		}
	}
	if err := opts.Store.Persist(ctx, chunks); err != nil {
		metrics.RecordError(span, err)
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}
	metrics.IngestedChunks.Add(float64(len(chunks)))
	report.Written = true

	log.Info("ingestion complete", "documents", len(files), "chunks", len(chunks))
	return report, nil
}
