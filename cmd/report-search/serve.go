package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/renderinc/report-search/internal/metrics"
	"github.com/renderinc/report-search/internal/search"
	"github.com/renderinc/report-search/internal/web"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the search web server",
	Long: `Opens the index read-only together with the document store and serves the
search page, GET /query, POST /search, /health and /metrics.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "host to bind to (default: localhost)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "port to listen on (default: 8000)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if serveHost != "" {
		cfg.HTTP.Host = serveHost
	}
	if servePort > 0 {
		cfg.HTTP.Port = servePort
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	engine, err := openEngine(search.WithMetrics(m))
	if err != nil {
		return err
	}
	defer engine.Close()

	server, err := web.NewServer(engine, logger, m,
		web.WithRateLimit(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst),
		web.WithRequestTimeout(time.Duration(cfg.HTTP.RequestTimeoutSec)*time.Second),
	)
	if err != nil {
		return err
	}

	addr := cfg.Addr()
	srv := &http.Server{
		Addr:         addr,
		Handler:      server.Handler(),
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeoutSec) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeoutSec) * time.Second,
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	fmt.Fprintln(out, "=== Report Search Web Server ===")
	fmt.Fprintf(out, "Server running at: http://%s\n", addr)
	fmt.Fprintln(out)
	fmt.Fprintln(out, "Press Ctrl+C to stop")
	fmt.Fprintln(out)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-cmd.Context().Done():
		logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.HTTP.ShutdownSec)*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Error during shutdown", zap.Error(err))
	}

	logger.Info("Server stopped gracefully")
	return nil
}
