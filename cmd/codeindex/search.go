package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dshills/codeindex/internal/indexer"
	"github.com/dshills/codeindex/internal/searcher"
)

var searchFlags struct {
	root          string
	mode          string
	limit         int
	minSimilarity float64
	fileTypes     []string
	kinds         []string
	language      string
	symbols       bool
	files         bool
	jsonOut       bool
}

func init() {
	f := searchCmd.Flags()
	f.StringVar(&searchFlags.root, "root", "", "index this directory before searching (needed with the memory backend)")
	f.StringVarP(&searchFlags.mode, "mode", "m", string(searcher.SearchModeHybrid), "search mode: hybrid, vector or keyword")
	f.IntVarP(&searchFlags.limit, "limit", "n", 0, "maximum results (default: config search.max_results)")
	f.Float64Var(&searchFlags.minSimilarity, "min-similarity", 0, "minimum similarity for vector-only results; negative disables")
	f.StringSliceVarP(&searchFlags.fileTypes, "type", "t", nil, "restrict to file extensions, e.g. go,ts")
	f.StringSliceVarP(&searchFlags.kinds, "kind", "k", nil, "restrict to kinds, e.g. function,class")
	f.StringVarP(&searchFlags.language, "language", "l", "", "restrict to one language")
	f.BoolVar(&searchFlags.symbols, "symbols", false, "search symbol documents only")
	f.BoolVar(&searchFlags.files, "files", false, "rank files instead of chunks and symbols")
	f.BoolVar(&searchFlags.jsonOut, "json", false, "print results as JSON")
	addFilterFlags(searchCmd)
	rootCmd.AddCommand(searchCmd)
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the index",
	Long: `Run a ranked search over indexed chunks and symbols.

Examples:
  # Search a persistent (sqlite) index
  codeindex search "load configuration from yaml"

  # Index and search in one step with the memory backend
  codeindex search --root . --type go --kind function "retry with backoff"

  # Rank whole files
  codeindex search --root . --files "http handler"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext(cmd.Context())
	defer cancel()

	if searchFlags.symbols && searchFlags.files {
		return fmt.Errorf("--symbols and --files cannot be combined")
	}

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	if searchFlags.root != "" {
		if _, err := buildIndex(ctx, cmd, a, searchFlags.root); err != nil {
			return err
		}
	}

	opts := indexer.SearchOptions{
		Query:            strings.Join(args, " "),
		FileTypeFilter:   searchFlags.fileTypes,
		SymbolKindFilter: searchFlags.kinds,
		LanguageFilter:   searchFlags.language,
		MaxResults:       searchFlags.limit,
		MinSimilarity:    searchFlags.minSimilarity,
		Mode:             searcher.SearchMode(searchFlags.mode),
	}
	out := cmd.OutOrStdout()

	if searchFlags.files {
		files, err := a.indexer.SearchFiles(ctx, opts)
		if err != nil {
			return err
		}
		if searchFlags.jsonOut {
			return writeJSON(out, files)
		}
		printFileHits(out, files)
		return nil
	}

	var resp *indexer.SearchResponse
	if searchFlags.symbols {
		resp, err = a.indexer.SearchSymbols(ctx, opts)
	} else {
		resp, err = a.indexer.Search(ctx, opts)
	}
	if err != nil {
		return err
	}
	if searchFlags.jsonOut {
		return writeJSON(out, resp)
	}
	printHits(out, resp)
	return nil
}

func printHits(w io.Writer, resp *indexer.SearchResponse) {
	if len(resp.Hits) == 0 {
		fmt.Fprintln(w, "No results")
		return
	}
	for _, h := range resp.Hits {
		label := h.Name
		if label == "" {
			label = h.Kind
		}
		fmt.Fprintf(w, "%2d. %s:%d-%d  %s %s  (%.3f)\n",
			h.Rank, h.RelativePath, h.StartLine, h.EndLine, h.Kind, label, h.Score)
		if h.Summary != "" {
			fmt.Fprintf(w, "    %s\n", h.Summary)
		}
	}
	fmt.Fprintf(w, "%d results (%s mode)\n", resp.Total, resp.Mode)
}

func printFileHits(w io.Writer, files []indexer.FileHit) {
	if len(files) == 0 {
		fmt.Fprintln(w, "No results")
		return
	}
	for i, f := range files {
		fmt.Fprintf(w, "%2d. %s  (%.3f, %d matches)\n", i+1, f.RelativePath, f.Score, f.Matches)
		if len(f.Names) > 0 {
			fmt.Fprintf(w, "    %s\n", strings.Join(f.Names, ", "))
		}
	}
}
