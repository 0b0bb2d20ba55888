package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/codeindex/internal/mcp"
)

var serveFlags struct {
	root        string
	metricsAddr string
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveFlags.root, "root", "", "index this directory before accepting requests")
	f.StringVar(&serveFlags.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	addFilterFlags(serveCmd)
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the index to MCP clients over stdio",
	Long: `Start an MCP server on stdin/stdout exposing index_codebase, search_code,
search_symbols, get_status, update_file, remove_file and clear_index.

Logs go to stderr; stdout is reserved for the protocol.

Examples:
  codeindex serve
  codeindex serve --root ~/src/app --metrics-addr :9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if serveFlags.root != "" {
		stats, err := buildIndex(ctx, cmd, a, serveFlags.root)
		if err != nil {
			return err
		}
		a.logger.Info("initial index built",
			zap.Int("files", stats.FilesIndexed),
			zap.Int("documents", stats.DocumentsStored))
	}

	if serveFlags.metricsAddr != "" {
		stop := serveMetrics(a.registry, serveFlags.metricsAddr, a.logger)
		defer stop()
	}

	server := mcp.NewServer(a.indexer,
		mcp.WithLogger(a.logger.Named("mcp")),
		mcp.WithVersion(version),
	)
	if err := server.Serve(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	a.logger.Info("server stopped")
	return nil
}

// serveMetrics exposes reg on addr/metrics until the returned func is called
func serveMetrics(reg *prometheus.Registry, addr string, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}
