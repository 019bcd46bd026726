/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package vectorstore

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	ctrl "sigs.k8s.io/controller-runtime/pkg/log"
)

const snapshotVersion = 1

// snapshotFile is the on-disk document. Docs is kept raw so the checksum can
// be computed over exactly the serialized chunk list.
type snapshotFile struct {
	Version  int             `json:"version,omitempty"`
	Checksum string          `json:"checksum,omitempty"`
	Docs     json.RawMessage `json:"docs"`
}

// Snapshot is a Store backed by a single JSON file.
type Snapshot struct {
	path string
	opts options
}

// NewSnapshot returns a Store reading and writing the file at path.
func NewSnapshot(path string, opts ...Option) (*Snapshot, error) {
	if path == "" {
		return nil, fmt.Errorf("snapshot path is required")
	}
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return &Snapshot{path: path, opts: o}, nil
}

// Path returns the snapshot location.
func (s *Snapshot) Path() string { return s.path }

// Persist writes chunks to a temporary file next to the snapshot and renames
// it into place, so readers observe either the old or the new snapshot.
// Nothing is written if the chunk list fails validation.
func (s *Snapshot) Persist(ctx context.Context, chunks []Chunk) error {
	if err := validateChunks(chunks); err != nil {
		return err
	}
	if chunks == nil {
		chunks = []Chunk{}
	}

	docs, err := json.Marshal(chunks)
	if err != nil {
		return fmt.Errorf("encode chunks: %w", err)
	}
	file := snapshotFile{Version: snapshotVersion, Docs: docs}
	if s.opts.checksum {
		file.Checksum = checksum(docs)
	}
	data, err := json.Marshal(file)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create snapshot directory: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp snapshot: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp snapshot: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp snapshot: %w", err)
	}
	if err := os.Chmod(tmpName, os.FileMode(s.opts.fileMode)); err != nil {
		return fmt.Errorf("chmod temp snapshot: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace snapshot: %w", err)
	}
	committed = true
	return nil
}

// Load returns the current snapshot, or an empty slice when it is missing,
// unparsable, or fails its checksum. Only context cancellation is an error.
func (s *Snapshot) Load(ctx context.Context) ([]Chunk, error) {
	chunks, err := s.LoadStrict(ctx)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		ctrl.Log.WithName("vectorstore").V(1).Info("snapshot unavailable, serving empty index", "path", s.path, "reason", err.Error())
		return []Chunk{}, nil
	}
	return chunks, nil
}

// LoadStrict is Load without the empty fallback. Failures wrap
// ErrStoreUnavailable.
func (s *Snapshot) LoadStrict(ctx context.Context) ([]Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	var file snapshotFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", ErrStoreUnavailable, err)
	}
	if file.Version > snapshotVersion {
		return nil, fmt.Errorf("%w: unsupported snapshot version %d", ErrStoreUnavailable, file.Version)
	}
	if file.Checksum != "" {
		var compact bytes.Buffer
		if err := json.Compact(&compact, file.Docs); err != nil {
			return nil, fmt.Errorf("%w: compact docs: %v", ErrStoreUnavailable, err)
		}
		if got := checksum(compact.Bytes()); got != file.Checksum {
			return nil, fmt.Errorf("%w: checksum mismatch (got %s, want %s)", ErrStoreUnavailable, got, file.Checksum)
		}
	}

	var chunks []Chunk
	if len(file.Docs) > 0 && string(file.Docs) != "null" {
		if err := json.Unmarshal(file.Docs, &chunks); err != nil {
			return nil, fmt.Errorf("%w: decode docs: %v", ErrStoreUnavailable, err)
		}
	}
	if chunks == nil {
		chunks = []Chunk{}
	}
	return chunks, nil
}

// validateChunks enforces the record invariants: ids and text are present
// and every embedding has the same dimension.
func validateChunks(chunks []Chunk) error {
	dim := -1
	for i, c := range chunks {
		if c.ID == "" {
			return fmt.Errorf("chunk %d: id is required", i)
		}
		if c.Text == "" {
			return fmt.Errorf("chunk %s: text is empty", c.ID)
		}
		if dim == -1 {
			dim = len(c.Embedding)
			continue
		}
		if len(c.Embedding) != dim {
			return fmt.Errorf("chunk %s: embedding dimension %d differs from %d", c.ID, len(c.Embedding), dim)
		}
	}
	return nil
}

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// Compile-time interface check.
var _ Store = (*Snapshot)(nil)
