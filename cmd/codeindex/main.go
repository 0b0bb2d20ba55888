// Package main implements the codeindex CLI: index a source tree, search it,
// watch it for changes, or serve it to MCP clients over stdio.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/codeindex/internal/config"
	"github.com/dshills/codeindex/internal/embedder"
	"github.com/dshills/codeindex/internal/indexer"
	"github.com/dshills/codeindex/internal/logging"
	"github.com/dshills/codeindex/internal/storage"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var (
	configPath string
	logLevel   string
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "codeindex",
	Short: "Index source trees and search them semantically",
	Long: `codeindex scans a source tree, extracts symbols and structural chunks,
embeds them into vectors and answers ranked similarity queries.

Configuration is read from --config (YAML) and CODEINDEX_* environment
variables, e.g. CODEINDEX_EMBEDDER_PROVIDER=openai or
CODEINDEX_STORAGE_BACKEND=sqlite.`,
	Version:      version,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log.level (debug, info, warn, error)")
}

// app holds the components every command shares
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	store    storage.Store
	engine   *embedder.Engine
	indexer  *indexer.Indexer
	registry *prometheus.Registry
}

// newApp loads configuration and wires logger, embedder, store and indexer.
// Documents already in a persistent store are loaded before returning.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}

	logger, err := logging.New(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return nil, err
	}

	provider, err := embedder.New(cfg.ProviderConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create embedder: %w", err)
	}

	store, err := storage.Open(cfg.StoreConfig(provider.Dimension()))
	if err != nil {
		_ = provider.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	engine := embedder.NewEngine(provider,
		embedder.WithBatchSize(cfg.Embedder.BatchSize),
		embedder.WithConcurrency(cfg.Embedder.Concurrency),
		embedder.WithCacheSize(cfg.Embedder.CacheSize),
		embedder.WithLogger(logger.Named("embedder")),
	)

	registry := prometheus.NewRegistry()
	idx := indexer.New(store, engine,
		indexer.WithWorkers(cfg.Indexer.Workers),
		indexer.WithLogger(logger.Named("indexer")),
		indexer.WithRegisterer(registry),
		indexer.WithSearchDefaults(cfg.Search.MaxResults, cfg.Search.MinSimilarity),
	)

	loaded, err := idx.Load(ctx)
	if err != nil {
		_ = engine.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to load index: %w", err)
	}

	logger.Debug("codeindex ready",
		zap.String("provider", provider.Provider()),
		zap.String("model", provider.Model()),
		zap.Int("dimension", provider.Dimension()),
		zap.String("storage", cfg.Storage.Backend),
		zap.Int("documents", loaded))

	return &app{
		cfg:      cfg,
		logger:   logger,
		store:    store,
		engine:   engine,
		indexer:  idx,
		registry: registry,
	}, nil
}

func (a *app) Close() {
	if err := a.engine.Close(); err != nil {
		a.logger.Warn("close embedder", zap.Error(err))
	}
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close store", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// signalContext is canceled on SIGINT or SIGTERM
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
