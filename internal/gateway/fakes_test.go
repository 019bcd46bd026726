/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package gateway

import (
	"context"
	"sync"

	"github.com/krishimitra-ai/krishimitra/internal/completion"
	"github.com/krishimitra-ai/krishimitra/internal/retrieval"
	"github.com/krishimitra-ai/krishimitra/internal/vectorstore"
)

type memStore struct {
	chunks []vectorstore.Chunk
}

func (m *memStore) Persist(_ context.Context, chunks []vectorstore.Chunk) error {
	m.chunks = append([]vectorstore.Chunk(nil), chunks...)
	return nil
}

func (m *memStore) Load(ctx context.Context) ([]vectorstore.Chunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return append([]vectorstore.Chunk(nil), m.chunks...), nil
}

type fakeEmbedder struct {
	mu    sync.Mutex
	vec   []float64
	err   error
	texts []string
}

func (f *fakeEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.texts = append(f.texts, texts...)
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float64, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func (f *fakeEmbedder) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.texts)
}

// fakeCompleter streams fragments, then ends with err (nil for a clean
// finish). With hang set, the stream blocks after the fragments until its
// context is cancelled.
type fakeCompleter struct {
	fragments []string
	err       error
	openErr   error
	hang      bool

	mu        sync.Mutex
	messages  []completion.Message
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeCompleter(fragments ...string) *fakeCompleter {
	return &fakeCompleter{fragments: fragments, closed: make(chan struct{})}
}

func (f *fakeCompleter) Stream(ctx context.Context, messages []completion.Message) (completion.Stream, error) {
	if f.openErr != nil {
		return nil, f.openErr
	}
	f.mu.Lock()
	f.messages = messages
	f.mu.Unlock()
	return &fakeStream{ctx: ctx, c: f, i: -1}, nil
}

func (f *fakeCompleter) sent() []completion.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.messages
}

type fakeStream struct {
	ctx    context.Context
	c      *fakeCompleter
	i      int
	err    error
	closed bool
}

func (s *fakeStream) Next() bool {
	if s.i+1 < len(s.c.fragments) {
		s.i++
		return true
	}
	if s.c.hang {
		<-s.ctx.Done()
		s.err = s.ctx.Err()
		return false
	}
	s.err = s.c.err
	return false
}

func (s *fakeStream) Text() string { return s.c.fragments[s.i] }

func (s *fakeStream) Err() error { return s.err }

func (s *fakeStream) Close() error {
	if !s.closed {
		s.closed = true
		s.c.closeOnce.Do(func() { close(s.c.closed) })
	}
	return nil
}

func newOrchestrator(store *memStore, emb *fakeEmbedder) *Orchestrator {
	return &Orchestrator{
		Store:    store,
		Embedder: emb,
		Engine:   retrieval.NewBruteForce(),
	}
}

func corpus() []vectorstore.Chunk {
	return []vectorstore.Chunk{
		{ID: "rice", Text: "Rice needs standing water.", Embedding: []float64{1, 0}, Metadata: map[string]any{"source": "rice.md"}},
		{ID: "wheat", Text: "Wheat is a rabi crop.", Embedding: []float64{0, 1}, Metadata: map[string]any{"source": "wheat.md"}},
		{ID: "paddy", Text: "Paddy fields flood in monsoon.", Embedding: []float64{0.9, 0.1}, Metadata: map[string]any{"source": "rice.md"}},
	}
}
