/*
Copyright (c) 2026 hortator-ai
SPDX-License-Identifier: MIT
*/

package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/krishimitra-ai/krishimitra/internal/chunker"
	"github.com/krishimitra-ai/krishimitra/internal/ingest"
)

var (
	ingestDryRun     bool
	ingestContentDir string
	ingestOut        string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Build the vector store from the content directory",
	Long: `Scan the content directory for documents, split them into overlapping
chunks, embed every chunk, and replace the vector store snapshot.

A failed run leaves the previous snapshot in place.

Examples:
  # Ingest ./content into data/embeddings.json
  krishimitra ingest

  # Show how documents would be chunked
  krishimitra ingest --dry-run --content-dir ./docs`,
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().BoolVar(&ingestDryRun, "dry-run", false, "Chunk and report without embedding or writing")
	ingestCmd.Flags().StringVar(&ingestContentDir, "content-dir", "", "Content directory (overrides ingest.content_dir)")
	ingestCmd.Flags().StringVar(&ingestOut, "out", "", "Snapshot path (overrides store.path)")
}

func runIngest(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	if ingestContentDir != "" {
		cfg.Ingest.ContentDir = ingestContentDir
	}
	if ingestOut != "" {
		cfg.Store.Path = ingestOut
	}

	ch, err := chunker.New(cfg.Chunker.Size, cfg.Chunker.Overlap)
	if err != nil {
		return err
	}
	opts := ingest.Options{
		ContentDir:  cfg.Ingest.ContentDir,
		Extensions:  cfg.Ingest.Extensions,
		Chunker:     ch,
		BatchSize:   cfg.Embedding.BatchSize,
		Concurrency: cfg.Ingest.Concurrency,
		DryRun:      ingestDryRun,
	}
	if !ingestDryRun {
		pc, err := providerConfig(ctx, cfg)
		if err != nil {
			return err
		}
		if opts.Embedder, err = newEmbedder(cfg, pc); err != nil {
			return err
		}
		if opts.Store, err = newStore(cfg); err != nil {
			return err
		}
	}

	report, err := ingest.Run(ctx, opts)
	if err != nil {
		return err
	}
	return printReport(cmd, report)
}

func printReport(cmd *cobra.Command, r *ingest.Report) error {
	out := cmd.OutOrStdout()
	if len(r.Documents) == 0 {
		fmt.Fprintf(out, "No documents found in %s.\n", cfg.Ingest.ContentDir)
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "DOCUMENT\tCHUNKS\n")
	for _, d := range r.Documents {
		fmt.Fprintf(w, "%s\t%d\n", d.Path, d.Chunks)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	switch {
	case ingestDryRun:
		fmt.Fprintf(out, "Dry run: %d chunks from %d documents, nothing written.\n", r.Chunks, len(r.Documents))
	case r.Written:
		fmt.Fprintf(out, "Wrote %d chunks to %s.\n", r.Chunks, cfg.Store.Path)
	default:
		fmt.Fprintf(out, "No text extracted; %s left unchanged.\n", cfg.Store.Path)
	}
	return nil
}
