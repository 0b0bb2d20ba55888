package indexer

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/dshills/codeindex/internal/source"
	"github.com/dshills/codeindex/internal/storage"
	"github.com/dshills/codeindex/pkg/types"
)

// ErrNoSource is returned by single-file operations before any source is known
var ErrNoSource = errors.New("no content source configured; run an index build first")

// UpdateResult counts the document changes made for one file
type UpdateResult struct {
	Path      string `json:"path"`
	Added     int    `json:"added"`
	Removed   int    `json:"removed"`
	Unchanged int    `json:"unchanged"`
	Fallback  bool   `json:"fallback,omitempty"` // Parse failed; indexed as one whole-file chunk
	Skipped   string `json:"skipped,omitempty"`  // Filter reason when the file is excluded
}

// beginFileOp admits a single-file operation unless a build is running
func (idx *Indexer) beginFileOp() (func(), error) {
	if idx.lock.Held() {
		return nil, types.ErrConcurrentRun
	}
	idx.rw.RLock()
	if idx.lock.Held() {
		idx.rw.RUnlock()
		return nil, types.ErrConcurrentRun
	}
	return idx.rw.RUnlock, nil
}

func (idx *Indexer) currentSource() (source.Source, source.Filter) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.source, idx.filter
}

// UpdateFile re-parses one file and re-embeds only documents whose content
// changed. Documents the file no longer produces are removed.
func (idx *Indexer) UpdateFile(ctx context.Context, path string) (*UpdateResult, error) {
	release, err := idx.beginFileOp()
	if err != nil {
		return nil, err
	}
	defer release()

	src, filter := idx.currentSource()
	if src == nil {
		return nil, ErrNoSource
	}

	file, err := src.Read(ctx, path)
	if err != nil {
		return nil, err
	}
	rel := file.RelativePath
	unlock := idx.paths.lock(rel)
	defer unlock()

	result := &UpdateResult{Path: rel}

	entry := source.Entry{Path: file.Path, RelativePath: rel, SizeBytes: file.SizeBytes, ModifiedAt: file.ModifiedAt}
	if reason := filter.Reason(entry); reason != "" {
		removed, err := idx.searcher.RemoveWhere(ctx, MetaRelativePath, rel)
		if err != nil {
			return nil, fmt.Errorf("failed to remove %s: %w", rel, err)
		}
		result.Removed = removed
		result.Skipped = reason
		return result, nil
	}

	ext, parseErr := idx.chunker.Extract(idx.parser, file)
	if parseErr != nil {
		result.Fallback = true
		idx.logger.Warn("parse failed, indexing whole file", zap.String("path", rel), zap.Error(parseErr))
	}
	docs := documentsFor(file, ext)

	existing, err := idx.documentIDs(ctx, rel)
	if err != nil {
		return nil, err
	}

	wanted := make(map[string]bool, len(docs))
	fresh := make([]*storage.Document, 0, len(docs))
	for _, d := range docs {
		wanted[d.ID] = true
		if existing[d.ID] {
			result.Unchanged++
			continue
		}
		fresh = append(fresh, d)
	}

	if err := idx.embedDocuments(ctx, fresh, nil); err != nil {
		return nil, err
	}

	for id := range existing {
		if wanted[id] {
			continue
		}
		if err := idx.searcher.Remove(ctx, id); err != nil && !errors.Is(err, types.ErrNotFound) {
			return nil, fmt.Errorf("failed to remove stale document %s: %w", id, err)
		}
		result.Removed++
	}

	if len(fresh) > 0 {
		if err := idx.searcher.AddBatch(ctx, fresh); err != nil {
			return nil, fmt.Errorf("failed to store documents for %s: %w", rel, err)
		}
		idx.metrics.DocumentsStored.Add(float64(len(fresh)))
	}
	result.Added = len(fresh)

	idx.logger.Info("file updated",
		zap.String("path", rel),
		zap.Int("added", result.Added),
		zap.Int("removed", result.Removed),
		zap.Int("unchanged", result.Unchanged))
	return result, nil
}

// RemoveFile deletes every document derived from path
func (idx *Indexer) RemoveFile(ctx context.Context, path string) (int, error) {
	release, err := idx.beginFileOp()
	if err != nil {
		return 0, err
	}
	defer release()

	rel := idx.relativePath(path)
	unlock := idx.paths.lock(rel)
	defer unlock()

	removed, err := idx.searcher.RemoveWhere(ctx, MetaRelativePath, rel)
	if err != nil {
		return 0, fmt.Errorf("failed to remove %s: %w", rel, err)
	}
	idx.logger.Info("file removed", zap.String("path", rel), zap.Int("documents", removed))
	return removed, nil
}

// ClearIndex removes every document. It fails while a build is running.
func (idx *Indexer) ClearIndex(ctx context.Context) error {
	if !idx.lock.TryAcquire() {
		return types.ErrConcurrentRun
	}
	defer idx.lock.Release()

	idx.rw.Lock()
	defer idx.rw.Unlock()

	if err := idx.searcher.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear index: %w", err)
	}

	idx.mu.Lock()
	idx.lastStats = nil
	idx.mu.Unlock()
	idx.setState(StateIdle)
	idx.logger.Info("index cleared")
	return nil
}

// relativePath maps an absolute path under the source root to the
// slash-separated relative form stored in metadata
func (idx *Indexer) relativePath(path string) string {
	src, _ := idx.currentSource()
	if src != nil && filepath.IsAbs(path) {
		if rel, err := filepath.Rel(src.Root(), path); err == nil && !strings.HasPrefix(rel, "..") {
			return filepath.ToSlash(rel)
		}
	}
	return filepath.ToSlash(path)
}

// documentIDs returns the IDs of documents derived from rel
func (idx *Indexer) documentIDs(ctx context.Context, rel string) (map[string]bool, error) {
	docs, err := idx.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	ids := make(map[string]bool)
	for _, d := range docs {
		if d.Metadata[MetaRelativePath] == rel {
			ids[d.ID] = true
		}
	}
	return ids, nil
}
