package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/renderinc/report-search/internal/ingest"
	"github.com/renderinc/report-search/internal/report"
	"github.com/renderinc/report-search/internal/search"
	"github.com/renderinc/report-search/internal/storage"
)

var reindexCmd = &cobra.Command{
	Use:   "reindex",
	Short: "Rebuild the index from the document store",
	Long: `Discards the index and rebuilds it from every report in the document store.
Use it after an interrupted import or to drop stale index entries.`,
	Args: cobra.NoArgs,
	RunE: runReindex,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store and index statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Print a stored report by foreign id",
	Args:  cobra.ExactArgs(1),
	RunE:  runGet,
}

func init() {
	rootCmd.AddCommand(reindexCmd, statsCmd, getCmd)
}

func runReindex(cmd *cobra.Command, _ []string) error {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Rebuilding keyword search index...")
	fmt.Fprintln(out)

	store, err := storage.Open(cfg.StorageConfig(), storage.ModeExisting, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	if err := os.RemoveAll(cfg.Index.Path); err != nil {
		return fmt.Errorf("remove index: %w", err)
	}
	idx, err := search.CreateIndex(cfg.Index.Path)
	if err != nil {
		return err
	}
	defer idx.Close()

	pipeline, err := ingest.NewPipeline(store, idx,
		ingest.WithBatchSize(cfg.Index.BatchSize),
		ingest.WithProgressEvery(cfg.Import.ProgressEvery),
		ingest.WithLogger(logger),
	)
	if err != nil {
		return err
	}

	stats, err := pipeline.Reindex(cmd.Context(), printProgress(cmd, "Indexing"))
	fmt.Fprintln(out)
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}

	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== Reindex Complete ===")
	fmt.Fprintf(out, "Reports indexed: %d\n", stats.Imported)
	fmt.Fprintf(out, "Skipped:         %d\n", stats.Skipped)
	fmt.Fprintf(out, "Duration:        %v\n", stats.Duration.Round(time.Millisecond))
	return nil
}

func runStats(cmd *cobra.Command, _ []string) error {
	engine, err := openEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	stats, err := engine.Stats(cmd.Context())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "=== Report Search Statistics ===")
	fmt.Fprintf(out, "Store driver:      %s\n", cfg.Store.Driver)
	if cfg.Store.Path != "" {
		fmt.Fprintf(out, "Store path:        %s\n", cfg.Store.Path)
	}
	fmt.Fprintf(out, "Index path:        %s\n", cfg.Index.Path)
	fmt.Fprintf(out, "Reports in store:  %d\n", stats.StoreDocuments)
	fmt.Fprintf(out, "Reports in index:  %d\n", stats.IndexDocuments)

	if uint64(stats.StoreDocuments) != stats.IndexDocuments {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Note: store and index disagree. Run 'report-search reindex' to rebuild the index.")
	}
	return nil
}

func runGet(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil || id == 0 {
		return fmt.Errorf("invalid report id %q", args[0])
	}

	store, err := storage.Open(cfg.StorageConfig(), storage.ModeExisting, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	key := report.KeyFor(uint32(id))
	data, err := store.Get(cmd.Context(), key)
	if err != nil {
		return fmt.Errorf("get report %s: %w", key, err)
	}

	record, err := report.Decode(data)
	if err != nil {
		return fmt.Errorf("report %s: %w", key, err)
	}

	pretty, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(pretty))
	return nil
}
