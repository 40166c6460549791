package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/renderinc/report-search/internal/ingest"
	"github.com/renderinc/report-search/internal/search"
	"github.com/renderinc/report-search/internal/storage"
)

var importRebuild bool

var importCmd = &cobra.Command{
	Use:   "import <file.json>",
	Short: "Import reports from a JSON array",
	Long: `Reads a JSON array of reports, writes every report that has a foreign id
to the document store and adds its id, title and body to the index.
Re-importing a report replaces its earlier version.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	importCmd.Flags().BoolVar(&importRebuild, "rebuild", false, "discard the existing index and store before importing")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	// Decode before touching any persisted state
	records, err := ingest.ReadSourceFile(args[0])
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Read %d reports from %s\n", len(records), args[0])

	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data directory: %w", err)
	}

	// The store is acquired before any index or store state is discarded
	store, err := storage.Open(cfg.StorageConfig(), storage.ModeCreate, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	// A rebuild writes a fresh index beside the live one and swaps it in
	// only after the import succeeds
	indexPath := cfg.Index.Path
	var idx *search.Index
	if importRebuild {
		indexPath = cfg.Index.Path + ".rebuild"
		if err := os.RemoveAll(indexPath); err != nil {
			return fmt.Errorf("remove stale rebuild index: %w", err)
		}
		idx, err = search.CreateIndex(indexPath)
	} else {
		idx, err = search.OpenOrCreateIndex(indexPath)
	}
	if err != nil {
		return fmt.Errorf("open index: %w", err)
	}
	closed := false
	defer func() {
		if !closed {
			idx.Close()
		}
		if importRebuild && indexPath != cfg.Index.Path {
			os.RemoveAll(indexPath)
		}
	}()

	if importRebuild {
		removed, err := clearStore(ctx, store)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Removed %d existing reports\n", removed)
	}

	pipeline, err := ingest.NewPipeline(store, idx,
		ingest.WithBatchSize(cfg.Index.BatchSize),
		ingest.WithProgressEvery(cfg.Import.ProgressEvery),
		ingest.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	stats, err := pipeline.Run(ctx, records, printProgress(cmd, "Importing"))
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("import: %w", err)
	}

	closed = true
	if err := idx.Close(); err != nil {
		return fmt.Errorf("close index: %w", err)
	}
	if importRebuild {
		if err := swapIndex(indexPath, cfg.Index.Path); err != nil {
			return err
		}
		indexPath = cfg.Index.Path
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== Import Complete ===")
	fmt.Fprintf(out, "Total reports: %d\n", stats.Total)
	fmt.Fprintf(out, "Imported:      %d\n", stats.Imported)
	fmt.Fprintf(out, "Skipped:       %d\n", stats.Skipped)
	fmt.Fprintf(out, "Duration:      %v\n", stats.Duration.Round(time.Millisecond))
	return nil
}

// swapIndex replaces the index at live with the completed build at next
func swapIndex(next, live string) error {
	if err := os.RemoveAll(live); err != nil {
		return fmt.Errorf("remove old index: %w", err)
	}
	if err := os.Rename(next, live); err != nil {
		return fmt.Errorf("install rebuilt index: %w", err)
	}
	logger.Info("installed rebuilt index", zap.String("path", live))
	return nil
}

// clearStore deletes every entry so a rebuild starts empty on any driver
func clearStore(ctx context.Context, store storage.Store) (int, error) {
	var keys []string
	err := store.Each(ctx, func(key string, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("list store: %w", err)
	}

	for _, key := range keys {
		if err := store.Delete(ctx, key); err != nil {
			return 0, fmt.Errorf("clear store: %w", err)
		}
	}
	logger.Info("cleared store", zap.Int("removed", len(keys)))
	return len(keys), nil
}
