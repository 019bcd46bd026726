//go:build e2e

/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package e2e

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
)

// keywords span the embedding space of fakeProvider.
var keywords = []string{"rice", "wheat", "cotton"}

// embed maps text onto keyword counts so related documents score higher.
func embed(text string) []float64 {
	lower := strings.ToLower(text)
	v := make([]float64, len(keywords))
	for i, k := range keywords {
		v[i] = float64(strings.Count(lower, k)) + 0.01
	}
	return v
}

// fakeProvider implements the OpenAI-compatible /embeddings and streaming
// /chat/completions endpoints.
type fakeProvider struct {
	mu        sync.Mutex
	fragments []string
	failAfter int // emit an in-band error after this many fragments; 0 disables
	rejectAll bool
	prompts   []string // system prompts received
	embedded  int
}

func (f *fakeProvider) setReply(failAfter int, fragments ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fragments, f.failAfter = fragments, failAfter
}

func (f *fakeProvider) lastPrompt() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.prompts) == 0 {
		return ""
	}
	return f.prompts[len(f.prompts)-1]
}

func (f *fakeProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.rejectAll {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`)
		return
	}

	switch r.URL.Path {
	case "/embeddings":
		var req struct {
			Input []string `json:"input"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.embedded += len(req.Input)
		data := make([]map[string]any, len(req.Input))
		for i, in := range req.Input {
			data[i] = map[string]any{"object": "embedding", "index": i, "embedding": embed(in)}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"object": "list", "data": data, "model": "fake"})

	case "/chat/completions":
		var req struct {
			Messages []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.Messages) > 0 && req.Messages[0].Role == "system" {
			f.prompts = append(f.prompts, req.Messages[0].Content)
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for i, s := range f.fragments {
			if f.failAfter > 0 && i == f.failAfter {
				fmt.Fprint(w, "data: {\"error\":{\"message\":\"model overloaded\"}}\n\n")
				return
			}
			fmt.Fprintf(w, `data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"fake","choices":[{"index":0,"delta":{"content":%q},"finish_reason":null}]}`+"\n\n", s)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")

	default:
		http.NotFound(w, r)
	}
}
