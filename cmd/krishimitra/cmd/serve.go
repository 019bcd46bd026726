/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	ctrl "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/krishimitra-ai/krishimitra/internal/gateway"
	"github.com/krishimitra-ai/krishimitra/internal/metrics"
	"github.com/krishimitra-ai/krishimitra/internal/retrieval"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat API",
	Long: `Serve POST /chat, GET /health and GET /metrics.

The vector store is re-read on every request, so a concurrent ingest run
takes effect without a restart.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr and PORT)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	log := ctrl.Log.WithName("serve")

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pc, err := providerConfig(ctx, cfg)
	if err != nil {
		return err
	}
	store, err := newStore(cfg)
	if err != nil {
		return err
	}
	emb, err := newEmbedder(cfg, pc)
	if err != nil {
		return err
	}
	comp, err := newCompleter(cfg, pc)
	if err != nil {
		return err
	}

	if chunks, err := store.Load(ctx); err == nil {
		log.Info("vector store loaded", "path", store.Path(), "chunks", len(chunks))
		if len(chunks) == 0 {
			log.Info("vector store is empty; answers will have no context until ingest runs")
		}
	}

	h := &gateway.Handler{
		Orchestrator: &gateway.Orchestrator{
			Store:       store,
			Embedder:    queryEmbedder(cfg, emb),
			Engine:      retrieval.NewBruteForce(),
			Assistant:   cfg.Assistant.Name,
			DefaultLang: cfg.Assistant.DefaultLang,
			DefaultTopK: cfg.Assistant.DefaultTopK,
		},
		Completer:    comp,
		RateLimiter:  gateway.NewRateLimiter(cfg.Server.RateLimitPerMinute),
		MaxBodyBytes: cfg.Server.MaxBodyBytes,
	}
	router := gateway.NewRouter(h, gateway.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Metrics:        metrics.Handler(),
	})

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: 0, // Disabled for streaming
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("starting server", "addr", addr, "model", comp.Model(), "embeddingModel", emb.Model())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
