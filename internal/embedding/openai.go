/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package embedding

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"

	"github.com/krishimitra-ai/krishimitra/internal/provider"
)

// DefaultModel is used when no embedding model is configured.
const DefaultModel = "text-embedding-3-small"

const opEmbed = "embed"

// OpenAIConfig configures an OpenAI-compatible embedding client.
type OpenAIConfig struct {
	provider.Config
	Model string
	Retry provider.RetryPolicy
}

// OpenAI embeds text through the /embeddings endpoint of an
// OpenAI-compatible provider.
type OpenAI struct {
	client openai.Client
	model  string
	retry  provider.RetryPolicy
}

// NewOpenAI builds an embedder.
func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	client, err := provider.NewClient(cfg.Config)
	if err != nil {
		return nil, err
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = provider.DefaultRetryPolicy()
	}
	return &OpenAI{client: client, model: cfg.Model, retry: cfg.Retry}, nil
}

// Model returns the embedding model name.
func (o *OpenAI) Model() string { return o.model }

// EmbedBatch implements Embedder.
func (o *OpenAI) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return [][]float64{}, nil
	}
	params := openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(o.model),
	}

	var out [][]float64
	err := provider.Retry(ctx, opEmbed, o.retry, func(ctx context.Context) error {
		resp, err := o.client.Embeddings.New(ctx, params)
		if err != nil {
			return provider.Wrap(opEmbed, err)
		}
		vecs, err := ordered(resp.Data, len(texts))
		if err != nil {
			return &provider.Error{Op: opEmbed, Err: err, Malformed: true}
		}
		out = vecs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ordered places each returned embedding at its declared index and checks
// that every input got a non-empty vector of the same dimension.
func ordered(data []openai.Embedding, n int) ([][]float64, error) {
	if len(data) != n {
		return nil, fmt.Errorf("expected %d embeddings, got %d", n, len(data))
	}
	out := make([][]float64, n)
	for _, d := range data {
		i := int(d.Index)
		if i < 0 || i >= n || out[i] != nil {
			return nil, fmt.Errorf("unexpected embedding index %d", d.Index)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("empty embedding at index %d", i)
		}
		out[i] = d.Embedding
	}
	dim := len(out[0])
	for i, v := range out {
		if len(v) != dim {
			return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), dim)
		}
	}
	return out, nil
}

var _ Embedder = (*OpenAI)(nil)
