package indexer

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/dshills/codeindex/internal/searcher"
	"github.com/dshills/codeindex/pkg/types"
)

// Search defaults
const (
	DefaultMaxResults    = 10
	DefaultMinSimilarity = 0.7
)

// SearchOptions contains parameters for an index search
type SearchOptions struct {
	Query            string
	FileTypeFilter   []string // Extensions without the dot, e.g. "go", "ts"
	SymbolKindFilter []string // Chunk or symbol kinds, e.g. "function", "class"
	LanguageFilter   string
	Topics           []string
	Entities         []string
	MaxResults       int     // 0 selects the indexer default
	MinSimilarity    float64 // 0 selects the indexer default; negative disables
	Mode             searcher.SearchMode
	Weights          *searcher.Weights

	docType string
}

// Hit is one ranked search result with its location decoded
type Hit struct {
	ID           string           `json:"id"`
	Rank         int              `json:"rank"`
	Score        float64          `json:"score"`
	DocType      string           `json:"doc_type"`
	FilePath     string           `json:"file_path"`
	RelativePath string           `json:"relative_path"`
	Language     string           `json:"language"`
	Kind         string           `json:"kind"`
	Name         string           `json:"name"`
	StartLine    int              `json:"start_line"`
	EndLine      int              `json:"end_line"`
	Content      string           `json:"content"`
	Signals      searcher.Signals `json:"signals"`
	Topics       []string         `json:"topics,omitempty"`
	Summary      string           `json:"summary,omitempty"`
}

// SearchResponse contains hits and search metadata
type SearchResponse struct {
	Hits     []Hit               `json:"hits"`
	Total    int                 `json:"total"`
	Mode     searcher.SearchMode `json:"mode"`
	Duration time.Duration       `json:"duration"`
}

// Search embeds the query (except in keyword mode) and runs a ranked search
// over chunk and symbol documents
func (idx *Indexer) Search(ctx context.Context, opts SearchOptions) (*SearchResponse, error) {
	return idx.search(ctx, "search", opts)
}

// SearchSymbols restricts Search to symbol documents
func (idx *Indexer) SearchSymbols(ctx context.Context, opts SearchOptions) (*SearchResponse, error) {
	opts.docType = DocTypeSymbol
	return idx.search(ctx, "symbols", opts)
}

func (idx *Indexer) search(ctx context.Context, kind string, opts SearchOptions) (*SearchResponse, error) {
	start := time.Now()
	defer func() {
		idx.metrics.SearchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	}()

	q, err := idx.buildQuery(ctx, opts)
	if err != nil {
		return nil, err
	}

	// Over-fetch so collapsed duplicates do not shorten the page
	limit := min(q.Limit, searcher.MaxLimit)
	q.Limit = min(limit*2, searcher.MaxLimit)

	resp, err := idx.searcher.EnrichedSearch(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	hits := collapseHits(resp.Results, limit)

	idx.logger.Debug("search",
		zap.String("kind", kind),
		zap.String("query", opts.Query),
		zap.String("mode", string(resp.SearchMode)),
		zap.Int("results", len(hits)))

	return &SearchResponse{
		Hits:     hits,
		Total:    len(hits),
		Mode:     resp.SearchMode,
		Duration: time.Since(start),
	}, nil
}

func (idx *Indexer) buildQuery(ctx context.Context, opts SearchOptions) (searcher.Query, error) {
	text := strings.TrimSpace(opts.Query)
	if text == "" {
		return searcher.Query{}, types.ErrEmptyQuery
	}

	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = idx.maxResults
	}
	minSimilarity := opts.MinSimilarity
	if minSimilarity == 0 {
		minSimilarity = idx.minSimilarity
	}
	if minSimilarity < 0 {
		minSimilarity = 0
	}
	mode := opts.Mode
	if mode == "" {
		mode = searcher.SearchModeHybrid
	}

	q := searcher.Query{
		Text:          text,
		Mode:          mode,
		Weights:       opts.Weights,
		Limit:         maxResults,
		MinSimilarity: minSimilarity,
		Filters: searcher.Filters{
			Topics:   opts.Topics,
			Entities: opts.Entities,
			Language: opts.LanguageFilter,
			Metadata: make(map[string][]string),
		},
	}

	if len(opts.FileTypeFilter) > 0 {
		exts := make([]string, len(opts.FileTypeFilter))
		for i, t := range opts.FileTypeFilter {
			exts[i] = strings.TrimPrefix(strings.ToLower(t), ".")
		}
		q.Filters.Metadata[MetaFileType] = exts
	}
	if len(opts.SymbolKindFilter) > 0 {
		q.Filters.Metadata[MetaKind] = opts.SymbolKindFilter
	}
	if opts.docType != "" {
		q.Filters.Metadata[MetaDocType] = []string{opts.docType}
	}

	if mode != searcher.SearchModeKeyword {
		vec, err := idx.engine.EmbedQuery(ctx, text)
		if err != nil {
			return searcher.Query{}, fmt.Errorf("failed to embed query: %w", err)
		}
		q.Vector = vec
	}
	return q, nil
}

// collapseHits converts results to hits, dropping any result whose text
// repeats an earlier one from the same chunk. A one-line declaration renders
// the same chunk and symbol document. Ranks are renumbered.
func collapseHits(results []searcher.Result, limit int) []Hit {
	hits := make([]Hit, 0, min(len(results), limit))
	seen := make(map[string]bool, len(results))
	for _, r := range results {
		if len(hits) == limit {
			break
		}
		if chunkID := r.Metadata[MetaChunkID]; chunkID != "" {
			key := chunkID + "\x00" + r.Content
			if seen[key] {
				continue
			}
			seen[key] = true
		}
		h := toHit(r)
		h.Rank = len(hits) + 1
		hits = append(hits, h)
	}
	return hits
}

func toHit(r searcher.Result) Hit {
	meta := r.Metadata
	return Hit{
		ID:           r.ID,
		Rank:         r.Rank,
		Score:        r.Score,
		DocType:      meta[MetaDocType],
		FilePath:     meta[MetaFilePath],
		RelativePath: meta[MetaRelativePath],
		Language:     meta[MetaLanguage],
		Kind:         meta[MetaKind],
		Name:         meta[MetaName],
		StartLine:    atoi(meta[MetaStartLine]),
		EndLine:      atoi(meta[MetaEndLine]),
		Content:      r.Content,
		Signals:      r.Signals,
		Topics:       r.Enrichment.Topics,
		Summary:      r.Enrichment.Summary,
	}
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

// FileHit is one file ranked by its best matching document
type FileHit struct {
	RelativePath string   `json:"relative_path"`
	FilePath     string   `json:"file_path"`
	Language     string   `json:"language"`
	Score        float64  `json:"score"`
	Matches      int      `json:"matches"`
	Names        []string `json:"names,omitempty"`
}

// SearchFiles ranks files by their best matching chunk or symbol
func (idx *Indexer) SearchFiles(ctx context.Context, opts SearchOptions) ([]FileHit, error) {
	limit := opts.MaxResults
	if limit <= 0 {
		limit = idx.maxResults
	}
	// Over-fetch documents so several can collapse into one file
	opts.MaxResults = limit * 5
	if opts.MaxResults > searcher.MaxLimit {
		opts.MaxResults = searcher.MaxLimit
	}

	resp, err := idx.search(ctx, "files", opts)
	if err != nil {
		return nil, err
	}

	files := make([]FileHit, 0)
	byPath := make(map[string]int)
	for _, h := range resp.Hits {
		i, ok := byPath[h.RelativePath]
		if !ok {
			byPath[h.RelativePath] = len(files)
			files = append(files, FileHit{
				RelativePath: h.RelativePath,
				FilePath:     h.FilePath,
				Language:     h.Language,
				Score:        h.Score,
			})
			i = len(files) - 1
		}
		f := &files[i]
		f.Matches++
		if h.Score > f.Score {
			f.Score = h.Score
		}
		if h.DocType == DocTypeSymbol && h.Name != "" {
			f.Names = append(f.Names, h.Name)
		}
	}

	sort.SliceStable(files, func(i, j int) bool {
		return files[i].Score > files[j].Score
	})
	if len(files) > limit {
		files = files[:limit]
	}
	return files, nil
}
