/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

// Package config loads the krishimitra configuration from an optional YAML
// file, an optional .env file, and environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/krishimitra-ai/krishimitra/internal/chunker"
	"github.com/krishimitra-ai/krishimitra/internal/provider"
)

// DefaultPath is read when no --config flag is given. Its absence is not an
// error.
const DefaultPath = "krishimitra.yaml"

// SecretRef points at a Kubernetes Secret key holding the provider API key.
type SecretRef struct {
	Namespace  string `yaml:"namespace"`
	Name       string `yaml:"name"`
	Key        string `yaml:"key"`
	Kubeconfig string `yaml:"kubeconfig,omitempty"`
}

// ProviderConfig identifies the OpenAI-compatible endpoint and where its
// API key comes from.
type ProviderConfig struct {
	BaseURL      string     `yaml:"base_url"`
	APIKeyEnv    string     `yaml:"api_key_env"`
	APIKeySecret *SecretRef `yaml:"api_key_secret,omitempty"`
}

// RetryConfig bounds retries of transient provider failures.
type RetryConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	InitialBackoff time.Duration `yaml:"initial_backoff"`
	Factor         float64       `yaml:"factor"`
	Jitter         float64       `yaml:"jitter"`
}

// QueryCacheConfig controls the in-memory cache of query embeddings used
// by the server.
type QueryCacheConfig struct {
	Enabled    bool          `yaml:"enabled"`
	TTL        time.Duration `yaml:"ttl"`
	MaxEntries int           `yaml:"max_entries"`
}

type EmbeddingConfig struct {
	Model      string           `yaml:"model"`
	BatchSize  int              `yaml:"batch_size"`
	Retry      RetryConfig      `yaml:"retry"`
	QueryCache QueryCacheConfig `yaml:"query_cache"`
}

type CompletionConfig struct {
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
}

type ChunkerConfig struct {
	Size    int `yaml:"size"`
	Overlap int `yaml:"overlap"`
}

type StoreConfig struct {
	Path     string `yaml:"path"`
	Checksum bool   `yaml:"checksum"`
}

type IngestConfig struct {
	ContentDir  string   `yaml:"content_dir"`
	Extensions  []string `yaml:"extensions"`
	Concurrency int      `yaml:"concurrency"`
}

type ServerConfig struct {
	Addr               string        `yaml:"addr"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"`
	MaxBodyBytes       int64         `yaml:"max_body_bytes"`
	AllowedOrigins     []string      `yaml:"allowed_origins"`
	ReadTimeout        time.Duration `yaml:"read_timeout"`
	IdleTimeout        time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
}

type AssistantConfig struct {
	Name        string `yaml:"name"`
	DefaultLang string `yaml:"default_lang"`
	DefaultTopK int    `yaml:"default_top_k"`
}

// Config is the root configuration.
type Config struct {
	Provider   ProviderConfig   `yaml:"provider"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Completion CompletionConfig `yaml:"completion"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Store      StoreConfig      `yaml:"store"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Server     ServerConfig     `yaml:"server"`
	Assistant  AssistantConfig  `yaml:"assistant"`
}

// Default returns the built-in configuration.
func Default() *Config {
	retry := provider.DefaultRetryPolicy()
	return &Config{
		Provider: ProviderConfig{APIKeyEnv: "OPENAI_API_KEY"},
		Embedding: EmbeddingConfig{
			Model:     "text-embedding-3-small",
			BatchSize: 64,
			Retry: RetryConfig{
				MaxAttempts:    retry.MaxAttempts,
				InitialBackoff: retry.InitialBackoff,
				Factor:         retry.Factor,
				Jitter:         retry.Jitter,
			},
			QueryCache: QueryCacheConfig{TTL: 10 * time.Minute, MaxEntries: 1000},
		},
		Completion: CompletionConfig{Model: "gpt-4o-mini", Temperature: 0.2},
		Chunker:    ChunkerConfig{Size: chunker.DefaultSize, Overlap: chunker.DefaultOverlap},
		Store:      StoreConfig{Path: "data/embeddings.json", Checksum: true},
		Ingest: IngestConfig{
			ContentDir:  "content",
			Extensions:  []string{".md", ".txt", ".mdx", ".pdf"},
			Concurrency: 1,
		},
		Server: ServerConfig{
			Addr:            ":8787",
			MaxBodyBytes:    2 << 20,
			AllowedOrigins:  []string{"*"},
			ReadTimeout:     10 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Assistant: AssistantConfig{Name: "Krishimitra", DefaultLang: "en", DefaultTopK: 5},
	}
}

// Load reads path over the defaults. An empty path reads DefaultPath and
// tolerates its absence; an explicit path must exist. Environment
// overrides are applied afterwards.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.ApplyEnv(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadEnvFile loads variables from a .env file into the process
// environment without overriding ones already set. A missing file is
// ignored.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

// ApplyEnv applies the environment overrides PORT, VECTOR_STORE_PATH,
// CONTENT_DIR, OPENAI_MODEL, EMBEDDING_MODEL, and OPENAI_BASE_URL.
func (c *Config) ApplyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			return fmt.Errorf("PORT=%q is not a valid port", v)
		}
		c.Server.Addr = ":" + v
	}
	if v := getenv("VECTOR_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := getenv("CONTENT_DIR"); v != "" {
		c.Ingest.ContentDir = v
	}
	if v := getenv("OPENAI_MODEL"); v != "" {
		c.Completion.Model = v
	}
	if v := getenv("EMBEDDING_MODEL"); v != "" {
		c.Embedding.Model = v
	}
	if v := getenv("OPENAI_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if _, err := chunker.New(c.Chunker.Size, c.Chunker.Overlap); err != nil {
		errs = append(errs, err)
	}
	if c.Embedding.Model == "" {
		errs = append(errs, errors.New("embedding.model is required"))
	}
	if c.Embedding.BatchSize < 1 || c.Embedding.BatchSize > 2048 {
		errs = append(errs, fmt.Errorf("embedding.batch_size must be in 1..2048, got %d", c.Embedding.BatchSize))
	}
	if c.Embedding.Retry.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("embedding.retry.max_attempts must be at least 1, got %d", c.Embedding.Retry.MaxAttempts))
	}
	if c.Embedding.Retry.InitialBackoff < 0 || c.Embedding.Retry.Factor < 0 || c.Embedding.Retry.Jitter < 0 {
		errs = append(errs, errors.New("embedding.retry values must not be negative"))
	}
	if c.Embedding.QueryCache.TTL < 0 || c.Embedding.QueryCache.MaxEntries < 0 {
		errs = append(errs, errors.New("embedding.query_cache values must not be negative"))
	}
	if c.Completion.Model == "" {
		errs = append(errs, errors.New("completion.model is required"))
	}
	if c.Completion.Temperature < 0 || c.Completion.Temperature > 2 {
		errs = append(errs, fmt.Errorf("completion.temperature must be in 0..2, got %v", c.Completion.Temperature))
	}
	if c.Store.Path == "" {
		errs = append(errs, errors.New("store.path is required"))
	}
	if c.Ingest.ContentDir == "" {
		errs = append(errs, errors.New("ingest.content_dir is required"))
	}
	for _, ext := range c.Ingest.Extensions {
		if !strings.HasPrefix(ext, ".") {
			errs = append(errs, fmt.Errorf("ingest.extensions entry %q must start with a dot", ext))
		}
	}
	if c.Ingest.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("ingest.concurrency must be at least 1, got %d", c.Ingest.Concurrency))
	}
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.Server.RateLimitPerMinute < 0 {
		errs = append(errs, errors.New("server.rate_limit_per_minute must not be negative"))
	}
	if c.Assistant.DefaultTopK < 1 || c.Assistant.DefaultTopK > 10 {
		errs = append(errs, fmt.Errorf("assistant.default_top_k must be in 1..10, got %d", c.Assistant.DefaultTopK))
	}
	if ref := c.Provider.APIKeySecret; ref != nil && (ref.Name == "" || ref.Key == "") {
		errs = append(errs, errors.New("provider.api_key_secret needs name and key"))
	}
	return errors.Join(errs...)
}

// RetryPolicy converts the embedding retry settings.
func (c *Config) RetryPolicy() provider.RetryPolicy {
	r := c.Embedding.Retry
	return provider.RetryPolicy{
		MaxAttempts:    r.MaxAttempts,
		InitialBackoff: r.InitialBackoff,
		Factor:         r.Factor,
		Jitter:         r.Jitter,
	}
}
