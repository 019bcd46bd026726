/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package gateway

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	ctrl "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/krishimitra-ai/krishimitra/internal/completion"
	"github.com/krishimitra-ai/krishimitra/internal/embedding"
	"github.com/krishimitra-ai/krishimitra/internal/metrics"
	"github.com/krishimitra-ai/krishimitra/internal/retrieval"
	"github.com/krishimitra-ai/krishimitra/internal/vectorstore"
)

// Defaults applied when the caller omits lang or topK.
const (
	DefaultLang      = "en"
	DefaultTopK      = 5
	DefaultAssistant = "Krishimitra"
)

const systemPromptFormat = "You are %s, a helpful multilingual agriculture assistant. Respond in the user's language (%s). " +
	"Use the provided context between <docs> and </docs> to answer. If the context is insufficient, say you don't know and suggest next steps.\n" +
	"<docs>\n%s\n</docs>"

// Orchestrator runs the pre-stream stages of a chat request. Its
// dependencies are injected so tests can substitute fakes.
type Orchestrator struct {
	Store    vectorstore.Store
	Embedder embedding.Embedder
	Engine   retrieval.Engine

	// Assistant is the name used in the system prompt.
	Assistant   string
	DefaultLang string
	DefaultTopK int
}

// Prepared is the outcome of the pre-stream stages.
type Prepared struct {
	Lang      string
	TopK      int
	Retrieved []retrieval.Result
	// Messages is the system turn followed by the caller's turns verbatim.
	Messages []completion.Message
}

// Prepare validates req, loads the snapshot, embeds the last turn,
// retrieves the closest chunks, and builds the completion messages. An
// empty snapshot skips embedding and yields an empty context block.
func (o *Orchestrator) Prepare(ctx context.Context, req ChatRequest) (*Prepared, error) {
	log := ctrl.Log.WithName("gateway.orchestrator")

	if err := validate(&req, o.defaultLang(), o.defaultTopK()); err != nil {
		return nil, err
	}

	ctx, span := metrics.StartSpan(ctx, "chat.prepare",
		attribute.Int("turns", len(req.Turns)),
		attribute.String("lang", req.Lang),
		attribute.Int("topK", *req.TopK),
	)
	defer span.End()

	chunks, err := o.Store.Load(ctx)
	if err != nil {
		metrics.RecordError(span, err)
		return nil, fmt.Errorf("load index: %w", err)
	}
	metrics.IndexSize.Set(float64(len(chunks)))

	var results []retrieval.Result
	if len(chunks) > 0 {
		if err := blankQuery(req.Turns); err != nil {
			return nil, err
		}
		query, err := embedding.EmbedQuery(ctx, o.Embedder, req.Turns[len(req.Turns)-1].Content)
		if err != nil {
			metrics.RecordError(span, err)
			return nil, fmt.Errorf("embed query: %w", err)
		}

		start := time.Now()
		results, err = o.Engine.Retrieve(query, chunks, *req.TopK)
		metrics.RetrievalDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.RecordError(span, err)
			return nil, fmt.Errorf("retrieve: %w", err)
		}
	} else {
		log.V(1).Info("index is empty, answering without context")
	}
	span.SetAttributes(attribute.Int("retrieved", len(results)))

	messages := make([]completion.Message, 0, len(req.Turns)+1)
	messages = append(messages, completion.Message{
		Role:    completion.RoleSystem,
		Content: systemPrompt(o.assistant(), req.Lang, results),
	})
	for _, t := range req.Turns {
		messages = append(messages, completion.Message{Role: validRoles[t.Role], Content: t.Content})
	}

	return &Prepared{
		Lang:      req.Lang,
		TopK:      *req.TopK,
		Retrieved: results,
		Messages:  messages,
	}, nil
}

// buildContext labels each retrieved chunk with its rank.
func buildContext(results []retrieval.Result) string {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("# Doc %d\n%s", i+1, r.Chunk.Text)
	}
	return strings.Join(parts, "\n\n")
}

func systemPrompt(assistant, lang string, results []retrieval.Result) string {
	return fmt.Sprintf(systemPromptFormat, assistant, lang, buildContext(results))
}

func (o *Orchestrator) assistant() string {
	if o.Assistant == "" {
		return DefaultAssistant
	}
	return o.Assistant
}

func (o *Orchestrator) defaultLang() string {
	if o.DefaultLang == "" {
		return DefaultLang
	}
	return o.DefaultLang
}

func (o *Orchestrator) defaultTopK() int {
	if o.DefaultTopK < MinTopK || o.DefaultTopK > MaxTopK {
		return DefaultTopK
	}
	return o.DefaultTopK
}
