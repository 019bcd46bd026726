/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/go-logr/logr/testr"

	"github.com/krishimitra-ai/krishimitra/internal/chunker"
	"github.com/krishimitra-ai/krishimitra/internal/vectorstore"
)

type countingEmbedder struct {
	mu      sync.Mutex
	batches [][]string
	err     error
}

func (c *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.batches = append(c.batches, texts)
	out := make([][]float64, len(texts))
	for i, t := range texts {
		out[i] = []float64{float64(len([]rune(t))), 1}
	}
	return out, nil
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("chunk-%d", n)
	}
}

func newOptions(t *testing.T, contentDir string, emb *countingEmbedder) (Options, *vectorstore.Snapshot) {
	t.Helper()
	c, err := chunker.New(chunker.DefaultSize, chunker.DefaultOverlap)
	if err != nil {
		t.Fatal(err)
	}
	store, err := vectorstore.NewSnapshot(filepath.Join(t.TempDir(), "data", "embeddings.json"))
	if err != nil {
		t.Fatal(err)
	}
	return Options{
		ContentDir: contentDir,
		Chunker:    c,
		Embedder:   emb,
		Store:      store,
		BatchSize:  64,
		NewID:      sequentialIDs(),
		Log:        testr.New(t),
	}, store
}

func TestRun_SingleDocument(t *testing.T) {
	dir := t.TempDir()
	doc := strings.Repeat("abcdefghij", 200) // 2000 characters
	path := writeFile(t, dir, "crops.md", doc)

	emb := &countingEmbedder{}
	opts, store := newOptions(t, dir, emb)
	report, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !report.Written || report.Chunks != 2 {
		t.Fatalf("report = %+v, want 2 chunks written", report)
	}

	chunks, err := store.LoadStrict(context.Background())
	if err != nil {
		t.Fatalf("LoadStrict() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	if chunks[0].Text != doc[:1200] || chunks[1].Text != doc[1050:] {
		t.Error("chunks do not match the expected windows")
	}
	for i, c := range chunks {
		if c.ID != fmt.Sprintf("chunk-%d", i+1) {
			t.Errorf("chunks[%d].ID = %q", i, c.ID)
		}
		if c.Source() != path {
			t.Errorf("chunks[%d].Source() = %q, want %q", i, c.Source(), path)
		}
		if len(c.Embedding) != 2 {
			t.Errorf("chunks[%d] embedding dimension = %d, want 2", i, len(c.Embedding))
		}
	}
}

func TestRun_ScanFiltersAndOrders(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.txt", "second")
	writeFile(t, dir, "a.MD", "first")
	writeFile(t, dir, "nested/deeper/c.mdx", "third")
	writeFile(t, dir, "image.png", "not text")
	writeFile(t, dir, ".git/notes.md", "hidden")
	writeFile(t, dir, "empty.txt", "")

	emb := &countingEmbedder{}
	opts, store := newOptions(t, dir, emb)
	report, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(report.Documents) != 4 {
		t.Fatalf("documents = %+v, want 4 (a.MD, b.txt, empty.txt, c.mdx)", report.Documents)
	}

	chunks, _ := store.LoadStrict(context.Background())
	var got []string
	for _, c := range chunks {
		got = append(got, c.Text)
	}
	if want := []string{"first", "second", "third"}; strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("chunk texts = %v, want %v", got, want)
	}
}

func TestRun_BatchesEmbedding(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 70; i++ {
		writeFile(t, dir, fmt.Sprintf("doc%03d.txt", i), fmt.Sprintf("document %d", i))
	}
	emb := &countingEmbedder{}
	opts, store := newOptions(t, dir, emb)
	opts.Concurrency = 3

	if _, err := Run(context.Background(), opts); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(emb.batches) != 2 {
		t.Errorf("provider calls = %d, want 2", len(emb.batches))
	}
	for _, b := range emb.batches {
		if len(b) > 64 {
			t.Errorf("batch of %d exceeds 64", len(b))
		}
	}
	chunks, _ := store.LoadStrict(context.Background())
	for i, c := range chunks {
		if want := fmt.Sprintf("document %d", i); c.Text != want {
			t.Fatalf("chunks[%d].Text = %q, want %q", i, c.Text, want)
		}
	}
}

func TestRun_EmptyDirectoryIsNoOp(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "content")
	emb := &countingEmbedder{}
	opts, store := newOptions(t, dir, emb)

	report, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Written || len(report.Documents) != 0 {
		t.Errorf("report = %+v, want nothing written", report)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("content dir should be created: %v", err)
	}
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Errorf("snapshot should not exist, stat error = %v", err)
	}
	if len(emb.batches) != 0 {
		t.Error("embedder should not be called")
	}
}

func TestRun_FailureKeepsPreviousSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", "fresh content")

	emb := &countingEmbedder{err: errors.New("provider down")}
	opts, store := newOptions(t, dir, emb)

	previous := []vectorstore.Chunk{{ID: "old", Text: "old content", Embedding: []float64{1, 0}}}
	if err := store.Persist(context.Background(), previous); err != nil {
		t.Fatal(err)
	}

	if _, err := Run(context.Background(), opts); err == nil {
		t.Fatal("Run() should fail when embedding fails")
	}
	chunks, err := store.LoadStrict(context.Background())
	if err != nil {
		t.Fatalf("LoadStrict() error = %v", err)
	}
	if len(chunks) != 1 || chunks[0].ID != "old" {
		t.Errorf("snapshot = %+v, want the previous snapshot untouched", chunks)
	}
}

func TestRun_DryRun(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.md", strings.Repeat("x", 3000))

	opts, store := newOptions(t, dir, nil)
	opts.Embedder = nil
	opts.DryRun = true

	report, err := Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.Written || report.Chunks != 3 {
		t.Errorf("report = %+v, want 3 chunks, not written", report)
	}
	if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
		t.Error("dry run must not write a snapshot")
	}
}

func TestRun_UnreadableDocumentFails(t *testing.T) {
	tests := map[string]string{
		"bad.txt": string([]byte{0xff, 0xfe, 0x00}),
		"bad.pdf": "this is not a pdf",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, name, content)
			opts, store := newOptions(t, dir, &countingEmbedder{})
			if _, err := Run(context.Background(), opts); err == nil {
				t.Fatal("Run() should fail on an unreadable document")
			}
			if _, err := os.Stat(store.Path()); !os.IsNotExist(err) {
				t.Error("failed run must not write a snapshot")
			}
		})
	}
}

func TestRun_RequiresDependencies(t *testing.T) {
	if _, err := Run(context.Background(), Options{ContentDir: t.TempDir()}); err == nil {
		t.Error("Run() without a chunker should fail")
	}
	c, _ := chunker.New(100, 10)
	if _, err := Run(context.Background(), Options{ContentDir: t.TempDir(), Chunker: c}); err == nil {
		t.Error("Run() without embedder and store should fail")
	}
}

func TestRun_CustomExtensions(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.md", "markdown")
	writeFile(t, dir, "data.csv", "a,b")

	opts, store := newOptions(t, dir, &countingEmbedder{})
	opts.Extensions = []string{".csv"}
	if _, err := Run(context.Background(), opts); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	chunks, _ := store.LoadStrict(context.Background())
	if len(chunks) != 1 || chunks[0].Text != "a,b" {
		t.Errorf("chunks = %+v, want only data.csv", chunks)
	}
}
