/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package cmd

import (
	"context"
	"fmt"

	"github.com/krishimitra-ai/krishimitra/internal/completion"
	"github.com/krishimitra-ai/krishimitra/internal/config"
	"github.com/krishimitra-ai/krishimitra/internal/credentials"
	"github.com/krishimitra-ai/krishimitra/internal/embedding"
	"github.com/krishimitra-ai/krishimitra/internal/provider"
	"github.com/krishimitra-ai/krishimitra/internal/vectorstore"
)

func newStore(c *config.Config) (*vectorstore.Snapshot, error) {
	return vectorstore.NewSnapshot(c.Store.Path, vectorstore.WithChecksum(c.Store.Checksum))
}

func providerConfig(ctx context.Context, c *config.Config) (provider.Config, error) {
	key, err := credentials.Resolve(ctx, c.Provider)
	if err != nil {
		return provider.Config{}, fmt.Errorf("resolve API key: %w", err)
	}
	return provider.Config{APIKey: key, BaseURL: c.Provider.BaseURL}, nil
}

func newEmbedder(c *config.Config, pc provider.Config) (*embedding.OpenAI, error) {
	return embedding.NewOpenAI(embedding.OpenAIConfig{
		Config: pc,
		Model:  c.Embedding.Model,
		Retry:  c.RetryPolicy(),
	})
}

func newCompleter(c *config.Config, pc provider.Config) (*completion.OpenAI, error) {
	temperature := c.Completion.Temperature
	return completion.NewOpenAI(completion.OpenAIConfig{
		Config:      pc,
		Model:       c.Completion.Model,
		Temperature: &temperature,
	})
}

// queryEmbedder wraps emb with the query cache when it is enabled.
func queryEmbedder(c *config.Config, emb *embedding.OpenAI) embedding.Embedder {
	qc := c.Embedding.QueryCache
	if !qc.Enabled {
		return emb
	}
	return embedding.NewCache(emb, embedding.CacheConfig{
		Enabled:    true,
		TTL:        qc.TTL,
		MaxEntries: qc.MaxEntries,
		Model:      emb.Model(),
	})
}
