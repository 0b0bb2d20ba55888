package main

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/codeindex/internal/indexer"
)

var statsJSON bool

func init() {
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print statistics as JSON")
	rootCmd.AddCommand(statsCmd)
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show index statistics",
	Long: `Show document counts, language and kind breakdowns, and the last
recorded index run. Meaningful with a persistent storage backend.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := signalContext(cmd.Context())
		defer cancel()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.Close()

		stats, err := a.indexer.GetStats(ctx)
		if err != nil {
			return err
		}
		if statsJSON {
			return writeJSON(cmd.OutOrStdout(), stats)
		}
		printIndexStats(cmd.OutOrStdout(), stats)
		return nil
	},
}

func printIndexStats(w io.Writer, s *indexer.IndexStats) {
	fmt.Fprintf(w, "Files:     %d\n", s.TotalFiles)
	fmt.Fprintf(w, "Chunks:    %d\n", s.TotalChunks)
	fmt.Fprintf(w, "Symbols:   %d\n", s.TotalSymbols)
	fmt.Fprintf(w, "Documents: %d\n", s.TotalDocuments)
	fmt.Fprintf(w, "Embedder:  %s/%s (%d dims)\n", s.Provider, s.Model, s.Dimension)
	if s.LastIndexedAt != nil {
		fmt.Fprintf(w, "Indexed:   %s\n", s.LastIndexedAt.Format(time.RFC3339))
	}
	if s.LastRun != nil {
		fmt.Fprintf(w, "Last run:  %s %s (%s)\n", s.LastRun.Status, s.LastRun.Root, s.LastRun.ID)
		if s.LastRun.Error != "" {
			fmt.Fprintf(w, "           %s\n", s.LastRun.Error)
		}
	}
	printCounts(w, "Languages", s.LanguageCounts)
	printCounts(w, "Symbol kinds", s.SymbolKindCounts)
}

func printCounts(w io.Writer, title string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fmt.Fprintf(w, "%s:\n", title)
	for _, k := range keys {
		fmt.Fprintf(w, "  %-12s %d\n", k, counts[k])
	}
}
