package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dshills/codeindex/internal/indexer"
	"github.com/dshills/codeindex/internal/source"
)

var indexFlags struct {
	include     []string
	exclude     []string
	maxFileSize int64
	jsonOut     bool
}

func init() {
	addFilterFlags(indexCmd)
	indexCmd.Flags().BoolVar(&indexFlags.jsonOut, "json", false, "print statistics as JSON")
	rootCmd.AddCommand(indexCmd)
}

// addFilterFlags registers the file selection flags used by buildIndex
func addFilterFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceVar(&indexFlags.include, "include", nil, "glob patterns to include (default: config indexer.include)")
	f.StringSliceVar(&indexFlags.exclude, "exclude", nil, "glob patterns to exclude (default: config indexer.exclude)")
	f.Int64Var(&indexFlags.maxFileSize, "max-file-size", 0, "skip files larger than this many bytes")
}

var indexCmd = &cobra.Command{
	Use:   "index [path]",
	Short: "Build the index for a source tree",
	Long: `Scan a source tree, extract symbols and chunks, embed them and store
the resulting documents. The path defaults to the current directory.

With the memory backend the index lives only as long as the process; set
storage.backend to sqlite to keep it for later search and stats commands.

Examples:
  codeindex index .
  codeindex index ~/src/app --exclude 'vendor/**' --exclude '*.min.js'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIndex,
}

func runIndex(cmd *cobra.Command, args []string) error {
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

	if indexFlags.jsonOut {
		return writeJSON(cmd.OutOrStdout(), stats)
	}
	printStatistics(cmd.OutOrStdout(), stats)
	return nil
}

// buildIndex runs CreateIndex over root with flag overrides applied to the
// configured filter
func buildIndex(ctx context.Context, cmd *cobra.Command, a *app, root string) (*indexer.Statistics, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", root, err)
	}
	src, err := source.NewFilesystem(abs)
	if err != nil {
		return nil, err
	}

	filter := a.cfg.Filter()
	if cmd.Flags().Changed("include") {
		filter.IncludePatterns = indexFlags.include
	}
	if cmd.Flags().Changed("exclude") {
		filter.ExcludePatterns = indexFlags.exclude
	}
	if indexFlags.maxFileSize > 0 {
		filter.MaxFileSizeBytes = indexFlags.maxFileSize
	}

	a.logger.Info("indexing", zap.String("root", abs))
	return a.indexer.CreateIndex(ctx, indexer.Options{
		Source:           src,
		IncludePatterns:  filter.IncludePatterns,
		ExcludePatterns:  filter.ExcludePatterns,
		MaxFileSizeBytes: filter.MaxFileSizeBytes,
		OnProgress: func(p indexer.Progress) {
			a.logger.Debug("progress",
				zap.Stringer("stage", p.Stage),
				zap.Int("current", p.Current),
				zap.Int("total", p.Total),
				zap.String("message", p.Message))
		},
	})
}

func printStatistics(w io.Writer, s *indexer.Statistics) {
	fmt.Fprintf(w, "Indexed %d of %d files in %s\n", s.FilesIndexed, s.FilesScanned, s.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  symbols:   %d\n", s.SymbolsExtracted)
	fmt.Fprintf(w, "  chunks:    %d\n", s.ChunksCreated)
	fmt.Fprintf(w, "  documents: %d stored, %d removed\n", s.DocumentsStored, s.DocumentsRemoved)
	fmt.Fprintf(w, "  batches:   %d\n", s.EmbeddingBatches)
	if s.FilesFallback > 0 {
		fmt.Fprintf(w, "  fallback:  %d files indexed whole after parse errors\n", s.FilesFallback)
	}
	if len(s.Skipped) > 0 {
		fmt.Fprintf(w, "Skipped %d files:\n", len(s.Skipped))
		for _, sk := range s.Skipped {
			fmt.Fprintf(w, "  %s: %s\n", sk.Path, sk.Reason)
		}
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
