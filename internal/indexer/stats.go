package indexer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dshills/codeindex/internal/storage"
	"github.com/dshills/codeindex/pkg/types"
)

// IndexStats summarizes the stored index
type IndexStats struct {
	TotalFiles       int            `json:"total_files"`
	TotalSymbols     int            `json:"total_symbols"`
	TotalChunks      int            `json:"total_chunks"`
	TotalDocuments   int            `json:"total_documents"`
	LanguageCounts   map[string]int `json:"language_counts"`    // Files per language
	SymbolKindCounts map[string]int `json:"symbol_kind_counts"` // Symbols per kind
	LastIndexedAt    *time.Time     `json:"last_indexed_at,omitempty"`
	State            State          `json:"state"`
	Dimension        int            `json:"dimension"`
	Provider         string         `json:"provider"`
	Model            string         `json:"model"`
	CachedQueries    int            `json:"cached_queries"`
	LastRun          *storage.Run   `json:"last_run,omitempty"`
	LastBuild        *Statistics    `json:"last_build,omitempty"`
}

// GetStats counts files, chunks and symbols from stored document metadata
func (idx *Indexer) GetStats(ctx context.Context) (*IndexStats, error) {
	docs, err := idx.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}

	stats := &IndexStats{
		TotalDocuments:   len(docs),
		LanguageCounts:   make(map[string]int),
		SymbolKindCounts: make(map[string]int),
		State:            idx.State(),
		Dimension:        idx.engine.Dimension(),
		Provider:         idx.engine.Provider().Provider(),
		Model:            idx.engine.Provider().Model(),
		CachedQueries:    idx.engine.CacheSize(),
	}

	files := make(map[string]bool)
	for _, d := range docs {
		rel := d.Metadata[MetaRelativePath]
		if rel != "" && !files[rel] {
			files[rel] = true
			lang := d.Metadata[MetaLanguage]
			if lang == "" {
				lang = "unknown"
			}
			stats.LanguageCounts[lang]++
		}

		switch d.Metadata[MetaDocType] {
		case DocTypeChunk:
			stats.TotalChunks++
		case DocTypeSymbol:
			stats.TotalSymbols++
			stats.SymbolKindCounts[d.Metadata[MetaKind]]++
		}
	}
	stats.TotalFiles = len(files)

	run, err := idx.store.LastRun(ctx)
	switch {
	case err == nil:
		stats.LastRun = run
		if run.Status == RunComplete {
			finished := run.FinishedAt
			stats.LastIndexedAt = &finished
		}
	case !errors.Is(err, types.ErrNotFound):
		return nil, fmt.Errorf("failed to read last run: %w", err)
	}

	idx.mu.RLock()
	stats.LastBuild = idx.lastStats
	idx.mu.RUnlock()

	return stats, nil
}
