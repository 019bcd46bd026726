/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

// Package cmd implements the krishimitra command line: the chat server,
// the ingestion job, and a terminal chat client.
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"
	ctrl "sigs.k8s.io/controller-runtime/pkg/log"
	"sigs.k8s.io/controller-runtime/pkg/log/zap"

	"github.com/krishimitra-ai/krishimitra/internal/config"
)

var (
	// configPath is the YAML config file; empty reads config.DefaultPath if present
	configPath string
	// envFile is loaded into the environment before the config
	envFile string
	// logLevel is one of debug, info, warn, error
	logLevel string

	// cfg is populated by setup before any subcommand runs
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "krishimitra",
	Short: "Retrieval-augmented agriculture assistant",
	Long: `Krishimitra answers farmers' questions with a language model grounded in a
local corpus of agriculture documents.

Examples:
  # Build the vector store from ./content
  krishimitra ingest

  # Preview chunking without calling the provider
  krishimitra ingest --dry-run

  # Serve the chat API on :8787
  krishimitra serve

  # Chat from the terminal
  krishimitra chat --lang hi`,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to the YAML config file (defaults to ./"+config.DefaultPath+" when present)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Path to a .env file; a missing file is ignored")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
}

func setup(cmd *cobra.Command, _ []string) error {
	level, err := zapcore.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("invalid --log-level: %w", err)
	}
	opts := zap.Options{Level: level, DestWriter: cmd.ErrOrStderr()}
	if level == zapcore.DebugLevel {
		opts.Development = true
	}
	ctrl.SetLogger(zap.New(zap.UseFlagOptions(&opts)))

	if cmd == versionCmd {
		return nil
	}
	if err := config.LoadEnvFile(envFile); err != nil {
		return err
	}
	c, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	cfg = c
	return nil
}
