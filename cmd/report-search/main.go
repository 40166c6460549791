package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/renderinc/report-search/internal/config"
	"github.com/renderinc/report-search/internal/ingest"
	logpkg "github.com/renderinc/report-search/internal/logger"
	"github.com/renderinc/report-search/internal/search"
	"github.com/renderinc/report-search/internal/storage"
)

var (
	configPath string
	dataDir    string
	logLevel   string

	cfg    config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "report-search",
	Short: "Report Search - full-text search over experience reports",
	Long: `Imports experience reports from a JSON dump into a document store and a
full-text index, and answers searches from the command line or over HTTP.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory for the index and store (default: ./data)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if search.IsStartup(err) {
			fmt.Fprintln(os.Stderr, "Run 'report-search import <file.json>' to build the index and store first.")
		}
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger. Flags win over the file.
func setup(*cobra.Command, []string) error {
	loaded, err := config.Load(configPath, func(c *config.Config) {
		if dataDir != "" {
			c.DataDir = dataDir
			c.Index.Path = ""
			if c.Store.Driver != storage.DriverRedis {
				c.Store.Path = ""
			}
		}
		if logLevel != "" {
			c.Logging.Level = logLevel
		}
	})
	if err != nil {
		return err
	}
	cfg = loaded

	l, err := logpkg.NewLogger(cfg.Env, cfg.Logging.Level)
	if err != nil {
		return err
	}
	logger = l

	return nil
}

// openEngine opens the existing store and index for querying
func openEngine(opts ...search.Option) (*search.Engine, error) {
	store, err := storage.Open(cfg.StorageConfig(), storage.ModeExisting, logger)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	opts = append([]search.Option{
		search.WithLogger(logger),
		search.WithResolveWorkers(cfg.Search.ResolveWorkers),
	}, opts...)

	engine, err := search.Open(cfg.Index.Path, store, opts...)
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("open index: %w", err)
	}
	return engine, nil
}

// printProgress returns a progress line writer, or nil when stdout is not a
// terminal so redirected output carries only the summary
func printProgress(cmd *cobra.Command, label string) ingest.ProgressFunc {
	out := cmd.OutOrStdout()
	f, ok := out.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return func(current, total int) {
		percent := 100.0
		if total > 0 {
			percent = float64(current) / float64(total) * 100
		}
		fmt.Fprintf(out, "\r%s: %d/%d (%.1f%%)  ", label, current, total, percent)
	}
}
