/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

// Package vectorstore persists the chunk corpus as one snapshot document.
//
// A snapshot is written whole by ingestion and read whole by every chat
// request. There is no append, update, or delete: the next ingestion run
// supersedes the previous snapshot.
package vectorstore

import (
	"context"
	"errors"
)

// ErrStoreUnavailable reports a snapshot that is missing, unreadable, or torn.
var ErrStoreUnavailable = errors.New("vector store unavailable")

// Chunk is one retrievable window of a source document.
type Chunk struct {
	ID        string         `json:"id"`
	Text      string         `json:"text"`
	Metadata  map[string]any `json:"metadata,omitempty"` // free-form; "source" names the originating document
	Embedding []float64      `json:"embedding"`
}

// Source returns the originating document reference, if recorded as a
// string.
func (c Chunk) Source() string {
	s, _ := c.Metadata[MetadataSource].(string)
	return s
}

// MetadataSource is the metadata key holding the originating document path.
const MetadataSource = "source"

// Store is the snapshot persistence interface.
type Store interface {
	// Persist replaces the snapshot with chunks.
	Persist(ctx context.Context, chunks []Chunk) error

	// Load reads the current snapshot. A missing or corrupt snapshot yields an
	// empty slice, not an error.
	Load(ctx context.Context) ([]Chunk, error)
}

// Option configures a Snapshot.
type Option func(*options)

type options struct {
	checksum bool
	fileMode uint32
}

func defaultOptions() options {
	return options{
		checksum: true,
		fileMode: 0o644,
	}
}

// WithChecksum controls whether Persist records a checksum of the chunk list.
// Load verifies a checksum whenever one is present.
func WithChecksum(enabled bool) Option {
	return func(o *options) { o.checksum = enabled }
}

// WithFileMode sets the permission bits of the snapshot file.
func WithFileMode(mode uint32) Option {
	return func(o *options) { o.fileMode = mode }
}
