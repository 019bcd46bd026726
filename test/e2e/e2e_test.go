//go:build e2e

/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package e2e

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/krishimitra-ai/krishimitra/internal/chatclient"
	"github.com/krishimitra-ai/krishimitra/internal/chunker"
	"github.com/krishimitra-ai/krishimitra/internal/completion"
	"github.com/krishimitra-ai/krishimitra/internal/embedding"
	"github.com/krishimitra-ai/krishimitra/internal/gateway"
	"github.com/krishimitra-ai/krishimitra/internal/ingest"
	"github.com/krishimitra-ai/krishimitra/internal/metrics"
	"github.com/krishimitra-ai/krishimitra/internal/provider"
	"github.com/krishimitra-ai/krishimitra/internal/retrieval"
	"github.com/krishimitra-ai/krishimitra/internal/vectorstore"
)

var _ = Describe("krishimitra", Ordered, func() {
	var (
		upstream   *fakeProvider
		providerTS *httptest.Server
		server     *httptest.Server
		store      *vectorstore.Snapshot
		embedder   *embedding.OpenAI
		contentDir string
		client     *chatclient.Client
	)

	ask := func(question string) gateway.ChatRequest {
		return gateway.ChatRequest{Turns: []gateway.Turn{{Role: "user", Content: question}}}
	}

	BeforeAll(func() {
		upstream = &fakeProvider{}
		providerTS = httptest.NewServer(upstream)

		dir := GinkgoT().TempDir()
		contentDir = filepath.Join(dir, "content")

		var err error
		store, err = vectorstore.NewSnapshot(filepath.Join(dir, "data", "embeddings.json"))
		Expect(err).NotTo(HaveOccurred())

		pc := provider.Config{APIKey: "test", BaseURL: providerTS.URL}
		embedder, err = embedding.NewOpenAI(embedding.OpenAIConfig{
			Config: pc,
			Retry:  provider.RetryPolicy{MaxAttempts: 1},
		})
		Expect(err).NotTo(HaveOccurred())
		completer, err := completion.NewOpenAI(completion.OpenAIConfig{Config: pc})
		Expect(err).NotTo(HaveOccurred())

		h := &gateway.Handler{
			Orchestrator: &gateway.Orchestrator{
				Store:    store,
				Embedder: embedder,
				Engine:   retrieval.NewBruteForce(),
			},
			Completer: completer,
		}
		server = httptest.NewServer(gateway.NewRouter(h, gateway.RouterOptions{Metrics: metrics.Handler()}))
		client = chatclient.New(server.URL)
	})

	AfterAll(func() {
		server.Close()
		providerTS.Close()
	})

	runIngest := func() *ingest.Report {
		ch, err := chunker.New(chunker.DefaultSize, chunker.DefaultOverlap)
		Expect(err).NotTo(HaveOccurred())
		report, err := ingest.Run(context.Background(), ingest.Options{
			ContentDir: contentDir,
			Chunker:    ch,
			Embedder:   embedder,
			Store:      store,
		})
		Expect(err).NotTo(HaveOccurred())
		return report
	}

	Context("before ingestion", func() {
		It("answers without context when the store is empty", func() {
			upstream.setReply(0, "Namaste, ", "farmer.")
			text, err := client.Stream(context.Background(), ask("hello"), nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("Namaste, farmer."))
			Expect(upstream.lastPrompt()).To(ContainSubstring("<docs>\n\n</docs>"))
		})

		It("treats an empty content directory as a no-op", func() {
			report := runIngest()
			Expect(report.Written).To(BeFalse())
			_, err := os.Stat(store.Path())
			Expect(os.IsNotExist(err)).To(BeTrue())
		})
	})

	Context("after ingestion", func() {
		BeforeAll(func() {
			Expect(os.MkdirAll(contentDir, 0o755)).To(Succeed())
			docs := map[string]string{
				"rice.md":   "Rice is transplanted in the kharif season. Rice needs standing water.",
				"wheat.txt": "Wheat is sown in November. Wheat needs cool weather.",
				"cotton.md": "Cotton prefers black soil.",
			}
			for name, text := range docs {
				Expect(os.WriteFile(filepath.Join(contentDir, name), []byte(text), 0o644)).To(Succeed())
			}
			report := runIngest()
			Expect(report.Written).To(BeTrue())
			Expect(report.Chunks).To(Equal(3))
		})

		It("grounds the prompt in the most similar documents", func() {
			upstream.setReply(0, "Sow wheat ", "in November.")
			topK := 1
			req := ask("When is wheat sown?")
			req.TopK = &topK

			var deltas []string
			text, err := client.Stream(context.Background(), req, func(s string) { deltas = append(deltas, s) })
			Expect(err).NotTo(HaveOccurred())
			Expect(text).To(Equal("Sow wheat in November."))
			Expect(deltas).To(Equal([]string{"Sow wheat ", "in November."}))

			prompt := upstream.lastPrompt()
			Expect(prompt).To(ContainSubstring("# Doc 1\nWheat is sown in November."))
			Expect(prompt).NotTo(ContainSubstring("Rice"))
		})

		It("uses the requested language in the system prompt", func() {
			upstream.setReply(0, "ok")
			req := ask("rice?")
			req.Lang = "hi"
			_, err := client.Stream(context.Background(), req, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(upstream.lastPrompt()).To(ContainSubstring("(hi)"))
		})

		It("appends the error marker to a raw stream that fails midway", func() {
			upstream.setReply(1, "Hello", " world")
			resp, err := http.Post(server.URL+"/chat", "application/json",
				strings.NewReader(`{"turns":[{"role":"user","content":"rice"}]}`))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal("Hello[Error] model overloaded"))
		})

		It("reports a mid-stream failure as a typed event", func() {
			upstream.setReply(1, "Hello", " world")
			text, err := client.Stream(context.Background(), ask("rice"), nil)
			var streamErr *chatclient.StreamError
			Expect(err).To(BeAssignableToTypeOf(streamErr))
			Expect(text).To(Equal("Hello"))
		})

		It("rejects an empty conversation", func() {
			_, err := client.Stream(context.Background(), gateway.ChatRequest{}, nil)
			var apiErr *chatclient.APIError
			Expect(err).To(BeAssignableToTypeOf(apiErr))
			Expect(err.(*chatclient.APIError).StatusCode).To(Equal(http.StatusBadRequest))
			Expect(err.(*chatclient.APIError).Detail.Fields).To(HaveKey("turns"))
		})

		It("serves health and metrics", func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			Expect(client.Health(ctx)).To(Succeed())

			resp, err := http.Get(server.URL + "/metrics")
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			body, _ := io.ReadAll(resp.Body)
			Expect(string(body)).To(ContainSubstring("krishimitra_chat_requests_total"))
		})
	})

	Context("when the provider rejects the key", func() {
		BeforeAll(func() {
			upstream.mu.Lock()
			upstream.rejectAll = true
			upstream.mu.Unlock()
		})

		AfterAll(func() {
			upstream.mu.Lock()
			upstream.rejectAll = false
			upstream.mu.Unlock()
		})

		It("fails a chat before streaming with 502", func() {
			_, err := client.Stream(context.Background(), ask("rice"), nil)
			var apiErr *chatclient.APIError
			Expect(err).To(BeAssignableToTypeOf(apiErr))
			Expect(err.(*chatclient.APIError).StatusCode).To(Equal(http.StatusBadGateway))
		})

		It("keeps the previous snapshot when re-ingestion fails", func() {
			before, err := os.ReadFile(store.Path())
			Expect(err).NotTo(HaveOccurred())

			ch, _ := chunker.New(chunker.DefaultSize, chunker.DefaultOverlap)
			_, err = ingest.Run(context.Background(), ingest.Options{
				ContentDir: contentDir, Chunker: ch, Embedder: embedder, Store: store,
			})
			Expect(err).To(HaveOccurred())

			after, err := os.ReadFile(store.Path())
			Expect(err).NotTo(HaveOccurred())
			Expect(after).To(Equal(before))
		})
	})
})
