package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/codeindex/internal/indexer"
	"github.com/dshills/codeindex/internal/source"
)

var watchDebounce time.Duration

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", source.DefaultDebounce, "wait this long after the last event for a file")
	addFilterFlags(watchCmd)
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch [path]",
	Short: "Index a source tree and keep it current as files change",
	Long: `Build the index, then watch the tree and re-index each file that is
written or created, removing files that are deleted or renamed. Runs until
interrupted.

Examples:
  codeindex watch .
  codeindex watch ~/src/app --debounce 1s`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	stats, err := buildIndex(ctx, cmd, a, root)
	if err != nil {
		return err
	}
	printStatistics(cmd.OutOrStdout(), stats)

	watcher, err := source.NewWatcher(root,
		source.WithDebounce(watchDebounce),
		source.WithWatcherLogger(a.logger.Named("watcher")),
	)
	if err != nil {
		return err
	}
	defer watcher.Stop()
	watcher.Start(ctx)

	a.logger.Info("watching for changes", zap.String("root", root))
	for {
		select {
		case <-ctx.Done():
			return nil
		case change := <-watcher.Changes():
			applyChange(ctx, a.indexer, a.logger, change)
		}
	}
}

// applyChange re-indexes or removes one changed file; failures are logged
// so the watch loop keeps running
func applyChange(ctx context.Context, idx *indexer.Indexer, logger *zap.Logger, change source.Change) {
	switch change.Op {
	case source.ChangeRemove:
		removed, err := idx.RemoveFile(ctx, change.RelativePath)
		if err != nil {
			logger.Warn("remove failed", zap.String("path", change.RelativePath), zap.Error(err))
			return
		}
		logger.Info("removed", zap.String("path", change.RelativePath), zap.Int("documents", removed))
	case source.ChangeWrite:
		result, err := idx.UpdateFile(ctx, change.RelativePath)
		if err != nil {
			logger.Warn("update failed", zap.String("path", change.RelativePath), zap.Error(err))
			return
		}
		logger.Info("updated",
			zap.String("path", result.Path),
			zap.Int("added", result.Added),
			zap.Int("removed", result.Removed),
			zap.Int("unchanged", result.Unchanged),
			zap.String("skipped", result.Skipped))
	}
}
