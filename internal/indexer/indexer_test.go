package indexer

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeindex/internal/embedder"
	"github.com/dshills/codeindex/internal/parser"
	"github.com/dshills/codeindex/internal/searcher"
	"github.com/dshills/codeindex/internal/source"
	"github.com/dshills/codeindex/internal/storage"
	"github.com/dshills/codeindex/pkg/types"
)

const testDim = 16

const goSource = `package main

import "fmt"

// Hello greets the caller
func Hello(name string) string {
	return fmt.Sprintf("hello %s", name)
}

type Server struct {
	Addr string
}
`

const tsSource = `export function parseConfig(raw: string): Config {
  return JSON.parse(raw);
}

class ConfigLoader {
  load() { return {}; }
}
`

const readme = "# Project\n\nSome docs about the server.\n"

func testFiles() map[string]string {
	return map[string]string{
		"main.go":   goSource,
		"util.ts":   tsSource,
		"README.md": readme,
	}
}

// gatedEmbedder blocks every batch until released, failing on demand
type gatedEmbedder struct {
	*embedder.HashProvider
	entered chan struct{}
	release chan struct{}
	once    sync.Once
	fail    atomic.Bool
}

func newGatedEmbedder() *gatedEmbedder {
	g := &gatedEmbedder{
		HashProvider: embedder.NewHashProvider(testDim),
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	close(g.release)
	return g
}

// gate makes the next batches block until open is called
func (g *gatedEmbedder) gate() (open func()) {
	g.release = make(chan struct{})
	return func() { close(g.release) }
}

func (g *gatedEmbedder) GenerateBatch(ctx context.Context, req embedder.BatchEmbeddingRequest) (*embedder.BatchEmbeddingResponse, error) {
	g.once.Do(func() { close(g.entered) })
	select {
	case <-g.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if g.fail.Load() {
		return nil, errors.New("provider unavailable")
	}
	return g.HashProvider.GenerateBatch(ctx, req)
}

// flakySource fails to read the listed files and lists extra unreadable paths
type flakySource struct {
	*source.Memory
	unreadable map[string]bool
	unlisted   []string
}

func (f *flakySource) List(ctx context.Context) ([]source.Entry, error) {
	entries, err := f.Memory.List(ctx)
	if err != nil {
		return nil, err
	}
	for _, rel := range f.unlisted {
		entries = append(entries, source.Entry{
			Path:         rel,
			RelativePath: rel,
			Err:          &types.ContentSourceError{Path: rel, Err: fs.ErrPermission},
		})
	}
	return entries, nil
}

func (f *flakySource) Read(ctx context.Context, path string) (*types.SourceFile, error) {
	if f.unreadable[path] {
		return nil, &types.ContentSourceError{Path: path, Err: errors.New("io failure")}
	}
	return f.Memory.Read(ctx, path)
}

// brokenParser fails for the named files and parses the rest normally
type brokenParser struct {
	failing map[string]bool
	next    *parser.Parser
}

func (b *brokenParser) Parse(file *types.SourceFile) (*types.ParseResult, error) {
	if b.failing[file.RelativePath] {
		return nil, errors.New("unexpected token")
	}
	return b.next.Parse(file)
}

func setupIndexer(t *testing.T, provider embedder.Embedder, opts ...Option) (*Indexer, storage.Store) {
	t.Helper()

	store := storage.NewMemoryStore(testDim)
	engine := embedder.NewEngine(provider, embedder.WithBatchSize(4), embedder.WithConcurrency(2))
	return New(store, engine, append([]Option{WithWorkers(2)}, opts...)...), store
}

func buildIndex(t *testing.T, idx *Indexer, src source.Source) *Statistics {
	t.Helper()

	stats, err := idx.CreateIndex(context.Background(), Options{Source: src})
	require.NoError(t, err)
	return stats
}

func hitPaths(hits []Hit) []string {
	paths := make([]string, len(hits))
	for i, h := range hits {
		paths[i] = h.RelativePath
	}
	return paths
}

func TestCreateIndex(t *testing.T) {
	idx, store := setupIndexer(t, embedder.NewHashProvider(testDim))
	assert.Equal(t, StateIdle, idx.State())

	stats := buildIndex(t, idx, source.NewMemory("mem", testFiles()))

	assert.Equal(t, StateComplete, idx.State())
	assert.NotEmpty(t, stats.RunID)
	assert.Equal(t, 3, stats.FilesScanned)
	assert.Equal(t, 3, stats.FilesIndexed)
	assert.Zero(t, stats.FilesSkipped)
	assert.GreaterOrEqual(t, stats.ChunksCreated, 4)
	assert.GreaterOrEqual(t, stats.SymbolsExtracted, 4)
	assert.Equal(t, stats.ChunksCreated+stats.SymbolsExtracted, stats.DocumentsStored)
	assert.Greater(t, stats.EmbeddingBatches, 0)

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stats.DocumentsStored, count)

	docs, err := store.List(context.Background())
	require.NoError(t, err)
	for _, d := range docs {
		assert.Len(t, d.Vector, testDim)
		assert.Contains(t, []string{DocTypeChunk, DocTypeSymbol}, d.Metadata[MetaDocType])
		assert.NotEmpty(t, d.Metadata[MetaRelativePath])
		assert.NotEmpty(t, d.Metadata[MetaStartLine])
	}

	run, err := store.LastRun(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stats.RunID, run.ID)
	assert.Equal(t, RunComplete, run.Status)
	assert.Equal(t, 3, run.Files)
}

func TestCreateIndex_Progress(t *testing.T) {
	idx, _ := setupIndexer(t, embedder.NewHashProvider(testDim))

	var (
		mu     sync.Mutex
		events []Progress
	)
	stats, err := idx.CreateIndex(context.Background(), Options{
		Source: source.NewMemory("mem", testFiles()),
		OnProgress: func(p Progress) {
			mu.Lock()
			events = append(events, p)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	counts := make(map[State]int)
	last := StateIdle
	for _, ev := range events {
		assert.GreaterOrEqual(t, ev.Stage, last, "stages never go backwards")
		assert.LessOrEqual(t, ev.Current, ev.Total)
		last = ev.Stage
		counts[ev.Stage]++
	}

	assert.Equal(t, 3, counts[StateScanning])
	assert.Equal(t, 3, counts[StateParsing])
	assert.Equal(t, stats.EmbeddingBatches, counts[StateEmbedding])
	assert.Equal(t, stats.DocumentsStored, counts[StateStoring])

	final := events[len(events)-1]
	assert.Equal(t, StateStoring, final.Stage)
	assert.Equal(t, final.Total, final.Current)
}

func TestCreateIndex_Filters(t *testing.T) {
	idx, _ := setupIndexer(t, embedder.NewHashProvider(testDim))

	stats, err := idx.CreateIndex(context.Background(), Options{
		Source:          source.NewMemory("mem", testFiles()),
		ExcludePatterns: []string{"*.md"},
		IncludePatterns: []string{"*.go", "*.md"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, stats.FilesIndexed)
	assert.Equal(t, 2, stats.FilesSkipped)

	reasons := make(map[string]string)
	for _, s := range stats.Skipped {
		reasons[s.Path] = s.Reason
	}
	assert.Contains(t, reasons["README.md"], "exclude pattern")
	assert.Contains(t, reasons["util.ts"], "no include pattern")

	t.Run("max size", func(t *testing.T) {
		idx, _ := setupIndexer(t, embedder.NewHashProvider(testDim))
		stats, err := idx.CreateIndex(context.Background(), Options{
			Source:           source.NewMemory("mem", testFiles()),
			MaxFileSizeBytes: int64(len(readme)),
		})
		require.NoError(t, err)
		assert.Equal(t, 1, stats.FilesIndexed)
		require.Len(t, stats.Skipped, 2)
		assert.Equal(t, "main.go", stats.Skipped[0].Path)
		assert.Contains(t, stats.Skipped[0].Reason, "exceeds max size")
	})

	t.Run("invalid pattern", func(t *testing.T) {
		idx, _ := setupIndexer(t, embedder.NewHashProvider(testDim))
		_, err := idx.CreateIndex(context.Background(), Options{
			Source:          source.NewMemory("mem", testFiles()),
			IncludePatterns: []string{"[invalid"},
		})
		assert.Error(t, err)
		assert.Equal(t, StateIdle, idx.State())
	})
}

func TestCreateIndex_SkipsUnreadableFiles(t *testing.T) {
	reg := prometheus.NewRegistry()
	idx, store := setupIndexer(t, embedder.NewHashProvider(testDim), WithRegisterer(reg))
	src := &flakySource{
		Memory:     source.NewMemory("mem", testFiles()),
		unreadable: map[string]bool{"util.ts": true},
		unlisted:   []string{"locked"},
	}

	var (
		mu       sync.Mutex
		messages []string
	)
	stats, err := idx.CreateIndex(context.Background(), Options{
		Source: src,
		OnProgress: func(p Progress) {
			mu.Lock()
			messages = append(messages, p.Message)
			mu.Unlock()
		},
	})
	require.NoError(t, err)

	assert.Equal(t, StateComplete, idx.State())
	assert.Equal(t, 4, stats.FilesScanned)
	assert.Equal(t, 2, stats.FilesIndexed)
	assert.Equal(t, 2, stats.FilesSkipped)

	reasons := make(map[string]string)
	for _, s := range stats.Skipped {
		reasons[s.Path] = s.Reason
	}
	assert.Contains(t, reasons["util.ts"], "io failure")
	assert.Contains(t, reasons["locked"], "permission denied")

	assert.Contains(t, messages, "skipped util.ts: read util.ts: io failure")
	assert.Contains(t, messages, "skipped locked: read locked: permission denied")
	assert.Equal(t, 2.0, testutil.ToFloat64(idx.metrics.FilesSkipped.WithLabelValues("read")))

	docs, err := store.List(context.Background())
	require.NoError(t, err)
	for _, d := range docs {
		assert.NotEqual(t, "util.ts", d.Metadata[MetaRelativePath])
	}
}

func TestCreateIndex_ParseFailureFallsBackToWholeFile(t *testing.T) {
	reg := prometheus.NewRegistry()
	idx, store := setupIndexer(t, embedder.NewHashProvider(testDim),
		WithRegisterer(reg),
		WithParser(&brokenParser{failing: map[string]bool{"util.ts": true}, next: parser.New()}))

	stats := buildIndex(t, idx, source.NewMemory("mem", testFiles()))

	assert.Equal(t, 3, stats.FilesIndexed)
	assert.Equal(t, 1, stats.FilesFallback)
	assert.Zero(t, stats.FilesSkipped)
	require.Len(t, stats.Skipped, 1)
	assert.Equal(t, "util.ts", stats.Skipped[0].Path)
	assert.Contains(t, stats.Skipped[0].Reason, "unexpected token")
	assert.Equal(t, 1.0, testutil.ToFloat64(idx.metrics.FilesSkipped.WithLabelValues("parse")))

	docs, err := store.List(context.Background())
	require.NoError(t, err)
	var utilDocs []*storage.Document
	for _, d := range docs {
		if d.Metadata[MetaRelativePath] == "util.ts" {
			utilDocs = append(utilDocs, d)
		}
	}
	require.Len(t, utilDocs, 1)
	assert.Equal(t, DocTypeChunk, utilDocs[0].Metadata[MetaDocType])
	assert.Equal(t, "file", utilDocs[0].Metadata[MetaKind])
	assert.Equal(t, "1", utilDocs[0].Metadata[MetaStartLine])
	assert.Equal(t, "7", utilDocs[0].Metadata[MetaEndLine])
}

func TestCreateIndex_RequiresSource(t *testing.T) {
	idx, _ := setupIndexer(t, embedder.NewHashProvider(testDim))
	_, err := idx.CreateIndex(context.Background(), Options{})
	assert.Error(t, err)
}

func TestCreateIndex_ConcurrentRun(t *testing.T) {
	gated := newGatedEmbedder()
	open := gated.gate()
	idx, _ := setupIndexer(t, gated)
	src := source.NewMemory("mem", testFiles())

	done := make(chan error, 1)
	go func() {
		_, err := idx.CreateIndex(context.Background(), Options{Source: src})
		done <- err
	}()
	<-gated.entered

	assert.Equal(t, StateEmbedding, idx.State())

	_, err := idx.CreateIndex(context.Background(), Options{Source: src})
	assert.ErrorIs(t, err, types.ErrConcurrentRun)

	_, err = idx.UpdateFile(context.Background(), "main.go")
	assert.ErrorIs(t, err, types.ErrConcurrentRun)

	_, err = idx.RemoveFile(context.Background(), "main.go")
	assert.ErrorIs(t, err, types.ErrConcurrentRun)

	assert.ErrorIs(t, idx.ClearIndex(context.Background()), types.ErrConcurrentRun)

	open()
	require.NoError(t, <-done)
	assert.Equal(t, StateComplete, idx.State())

	// The lock is free again
	buildIndex(t, idx, src)
}

func TestCreateIndex_EmbeddingFailureKeepsCommittedDocuments(t *testing.T) {
	gated := newGatedEmbedder()
	idx, store := setupIndexer(t, gated)
	src := source.NewMemory("mem", testFiles())
	ctx := context.Background()

	first := buildIndex(t, idx, src)

	src.Put("extra.go", "package main\n\nfunc Extra() {}\n")
	gated.fail.Store(true)

	_, err := idx.CreateIndex(ctx, Options{Source: src})
	require.Error(t, err)

	var batchErr *types.EmbeddingBatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, embedder.StageEmbedding, batchErr.Stage)
	assert.Equal(t, StateIdle, idx.State())

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.DocumentsStored, count)

	run, err := store.LastRun(ctx)
	require.NoError(t, err)
	assert.Equal(t, RunFailed, run.Status)
	assert.NotEmpty(t, run.Error)
}

func TestCreateIndex_Cancellation(t *testing.T) {
	t.Run("before scanning", func(t *testing.T) {
		idx, _ := setupIndexer(t, embedder.NewHashProvider(testDim))
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := idx.CreateIndex(ctx, Options{Source: source.NewMemory("mem", testFiles())})
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, StateIdle, idx.State())
	})

	t.Run("between embedding batches", func(t *testing.T) {
		gated := newGatedEmbedder()
		gated.gate()
		idx, store := setupIndexer(t, gated)
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			_, err := idx.CreateIndex(ctx, Options{Source: source.NewMemory("mem", testFiles())})
			done <- err
		}()
		<-gated.entered
		cancel()

		err := <-done
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, StateIdle, idx.State())

		count, err := store.Count(context.Background())
		require.NoError(t, err)
		assert.Zero(t, count)
	})
}

func TestCreateIndex_PrunesRemovedFiles(t *testing.T) {
	idx, store := setupIndexer(t, embedder.NewHashProvider(testDim))
	src := source.NewMemory("mem", testFiles())
	ctx := context.Background()

	buildIndex(t, idx, src)
	src.Delete("README.md")
	stats := buildIndex(t, idx, src)

	assert.Greater(t, stats.DocumentsRemoved, 0)
	docs, err := store.List(ctx)
	require.NoError(t, err)
	for _, d := range docs {
		assert.NotEqual(t, "README.md", d.Metadata[MetaRelativePath])
	}
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, stats.DocumentsStored, count)
}

func TestCreateIndex_RebuildIsIdempotent(t *testing.T) {
	idx, store := setupIndexer(t, embedder.NewHashProvider(testDim))
	src := source.NewMemory("mem", testFiles())
	ctx := context.Background()

	first := buildIndex(t, idx, src)
	before, err := store.List(ctx)
	require.NoError(t, err)

	buildIndex(t, idx, src)
	after, err := store.List(ctx)
	require.NoError(t, err)

	require.Len(t, after, first.DocumentsStored)
	ids := make(map[string]bool)
	for _, d := range before {
		ids[d.ID] = true
	}
	for _, d := range after {
		assert.True(t, ids[d.ID], "document %s changed ID across rebuilds", d.ID)
	}
}

func TestSearch(t *testing.T) {
	idx, _ := setupIndexer(t, embedder.NewHashProvider(testDim))
	buildIndex(t, idx, source.NewMemory("mem", testFiles()))
	ctx := context.Background()

	t.Run("keyword", func(t *testing.T) {
		resp, err := idx.Search(ctx, SearchOptions{Query: "Hello", Mode: searcher.SearchModeKeyword})
		require.NoError(t, err)
		require.NotEmpty(t, resp.Hits)
		for _, p := range hitPaths(resp.Hits) {
			assert.Equal(t, "main.go", p)
		}
		assert.Equal(t, 1, resp.Hits[0].Rank)
		assert.Greater(t, resp.Hits[0].StartLine, 0)
		assert.Equal(t, "go", resp.Hits[0].Language)
	})

	t.Run("hybrid", func(t *testing.T) {
		resp, err := idx.Search(ctx, SearchOptions{Query: "Hello"})
		require.NoError(t, err)
		assert.Equal(t, searcher.SearchModeHybrid, resp.Mode)
		assert.Contains(t, hitPaths(resp.Hits), "main.go")
		assert.LessOrEqual(t, len(resp.Hits), DefaultMaxResults)
	})

	t.Run("file type filter", func(t *testing.T) {
		resp, err := idx.Search(ctx, SearchOptions{Query: "config", FileTypeFilter: []string{".TS"}, Mode: searcher.SearchModeKeyword})
		require.NoError(t, err)
		require.NotEmpty(t, resp.Hits)
		for _, p := range hitPaths(resp.Hits) {
			assert.Equal(t, "util.ts", p)
		}
	})

	t.Run("symbol kind filter", func(t *testing.T) {
		resp, err := idx.Search(ctx, SearchOptions{Query: "config", SymbolKindFilter: []string{"class"}, Mode: searcher.SearchModeKeyword})
		require.NoError(t, err)
		require.NotEmpty(t, resp.Hits)
		for _, h := range resp.Hits {
			assert.Equal(t, "class", h.Kind)
		}
	})

	t.Run("symbols only", func(t *testing.T) {
		resp, err := idx.SearchSymbols(ctx, SearchOptions{Query: "config", Mode: searcher.SearchModeKeyword})
		require.NoError(t, err)
		require.NotEmpty(t, resp.Hits)
		for _, h := range resp.Hits {
			assert.Equal(t, DocTypeSymbol, h.DocType)
		}
	})

	t.Run("max results", func(t *testing.T) {
		resp, err := idx.Search(ctx, SearchOptions{Query: "e", MaxResults: 2, Mode: searcher.SearchModeKeyword})
		require.NoError(t, err)
		assert.Len(t, resp.Hits, 2)
	})

	t.Run("empty query", func(t *testing.T) {
		_, err := idx.Search(ctx, SearchOptions{Query: "  "})
		assert.ErrorIs(t, err, types.ErrEmptyQuery)
	})
}

func TestSearch_RanksMatchingFunction(t *testing.T) {
	const dim = 128
	engine := embedder.NewEngine(embedder.NewHashProvider(dim))
	idx := New(storage.NewMemoryStore(dim), engine)
	buildIndex(t, idx, source.NewMemory("mem", map[string]string{
		"math.ts":   "// arithmetic helpers\n\nfunction add(a, b) { return a + b }\n",
		"other.txt": "subtract\n",
	}))

	resp, err := idx.Search(context.Background(), SearchOptions{Query: "add two numbers"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Hits)

	top := resp.Hits[0]
	assert.Equal(t, "math.ts", top.RelativePath)
	assert.Equal(t, "add", top.Name)
	assert.Equal(t, 3, top.StartLine)

	for _, h := range resp.Hits {
		if h.RelativePath == "other.txt" {
			assert.Greater(t, top.Score, h.Score)
		}
	}

	// The one-line declaration is not listed twice
	seen := make(map[string]bool)
	for _, h := range resp.Hits {
		key := fmt.Sprintf("%s:%d:%s", h.RelativePath, h.StartLine, h.Content)
		assert.False(t, seen[key], "duplicate hit %s", key)
		seen[key] = true
	}
}

func TestCollapseHits(t *testing.T) {
	result := func(id, chunkID, content string) searcher.Result {
		return searcher.Result{SearchResult: types.SearchResult{
			ID:       id,
			Content:  content,
			Metadata: map[string]string{MetaChunkID: chunkID, MetaName: id},
		}}
	}
	results := []searcher.Result{
		result("chunk:a", "a", "func f() {}"),
		result("sym:a", "a", "func f() {}"),
		result("sym:b", "a", "func g() {}"),
		result("chunk:c", "c", "func h() {}"),
		result("doc", "", "func f() {}"),
	}

	hits := collapseHits(results, 10)
	var ids []string
	for i, h := range hits {
		ids = append(ids, h.ID)
		assert.Equal(t, i+1, h.Rank)
	}
	assert.Equal(t, []string{"chunk:a", "sym:b", "chunk:c", "doc"}, ids)

	assert.Len(t, collapseHits(results, 2), 2)
}

func TestSearchFiles(t *testing.T) {
	idx, _ := setupIndexer(t, embedder.NewHashProvider(testDim))
	buildIndex(t, idx, source.NewMemory("mem", testFiles()))

	files, err := idx.SearchFiles(context.Background(), SearchOptions{Query: "config", Mode: searcher.SearchModeKeyword})
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "util.ts", files[0].RelativePath)
	assert.Greater(t, files[0].Matches, 1)
	assert.Contains(t, files[0].Names, "ConfigLoader")
}

func TestUpdateFile(t *testing.T) {
	idx, store := setupIndexer(t, embedder.NewHashProvider(testDim))
	src := source.NewMemory("mem", testFiles())
	buildIndex(t, idx, src)
	ctx := context.Background()

	t.Run("unchanged", func(t *testing.T) {
		res, err := idx.UpdateFile(ctx, "main.go")
		require.NoError(t, err)
		assert.Zero(t, res.Added)
		assert.Zero(t, res.Removed)
		assert.Greater(t, res.Unchanged, 0)
	})

	t.Run("changed body", func(t *testing.T) {
		before, err := store.Count(ctx)
		require.NoError(t, err)

		src.Put("main.go", goSource[:len(goSource)-len("}\n")]+"\tPort int\n}\n")
		res, err := idx.UpdateFile(ctx, "main.go")
		require.NoError(t, err)
		assert.Equal(t, "main.go", res.Path)
		assert.Greater(t, res.Added, 0)
		assert.Greater(t, res.Removed, 0)
		assert.Greater(t, res.Unchanged, 0)

		after, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Equal(t, before+res.Added-res.Removed, after)

		resp, err := idx.Search(ctx, SearchOptions{Query: "Port int", Mode: searcher.SearchModeKeyword})
		require.NoError(t, err)
		assert.Contains(t, hitPaths(resp.Hits), "main.go")
	})

	t.Run("new file", func(t *testing.T) {
		src.Put("extra.py", "def extra():\n    return 1\n")
		res, err := idx.UpdateFile(ctx, "extra.py")
		require.NoError(t, err)
		assert.Greater(t, res.Added, 0)
		assert.Zero(t, res.Unchanged)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := idx.UpdateFile(ctx, "nope.go")
		var srcErr *types.ContentSourceError
		assert.ErrorAs(t, err, &srcErr)
	})
}

func TestUpdateFile_NoSource(t *testing.T) {
	idx, _ := setupIndexer(t, embedder.NewHashProvider(testDim))
	_, err := idx.UpdateFile(context.Background(), "main.go")
	assert.ErrorIs(t, err, ErrNoSource)

	src := source.NewMemory("mem", testFiles())
	idx, _ = setupIndexer(t, embedder.NewHashProvider(testDim), WithSource(src))
	res, err := idx.UpdateFile(context.Background(), "main.go")
	require.NoError(t, err)
	assert.Greater(t, res.Added, 0)
}

func TestRemoveFileAndClear(t *testing.T) {
	idx, store := setupIndexer(t, embedder.NewHashProvider(testDim))
	buildIndex(t, idx, source.NewMemory("mem", testFiles()))
	ctx := context.Background()

	removed, err := idx.RemoveFile(ctx, "main.go")
	require.NoError(t, err)
	assert.Greater(t, removed, 0)

	resp, err := idx.Search(ctx, SearchOptions{Query: "Hello", Mode: searcher.SearchModeKeyword})
	require.NoError(t, err)
	assert.Empty(t, resp.Hits)

	removed, err = idx.RemoveFile(ctx, "main.go")
	require.NoError(t, err)
	assert.Zero(t, removed)

	require.NoError(t, idx.ClearIndex(ctx))
	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, count)
	assert.Equal(t, StateIdle, idx.State())
}

func TestGetStats(t *testing.T) {
	idx, _ := setupIndexer(t, embedder.NewHashProvider(testDim))
	ctx := context.Background()

	stats, err := idx.GetStats(ctx)
	require.NoError(t, err)
	assert.Zero(t, stats.TotalFiles)
	assert.Nil(t, stats.LastIndexedAt)

	build := buildIndex(t, idx, source.NewMemory("mem", testFiles()))

	stats, err = idx.GetStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.TotalFiles)
	assert.Equal(t, build.ChunksCreated, stats.TotalChunks)
	assert.Equal(t, build.SymbolsExtracted, stats.TotalSymbols)
	assert.Equal(t, map[string]int{"go": 1, "typescript": 1, "markdown": 1}, stats.LanguageCounts)
	assert.GreaterOrEqual(t, stats.SymbolKindCounts["function"], 2)
	assert.NotNil(t, stats.LastIndexedAt)
	assert.Equal(t, StateComplete, stats.State)
	assert.Equal(t, embedder.ProviderHash, stats.Provider)
	assert.Equal(t, testDim, stats.Dimension)
	assert.Equal(t, build, stats.LastBuild)
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	idx, _ := setupIndexer(t, embedder.NewHashProvider(testDim), WithRegisterer(reg))

	_, err := idx.CreateIndex(context.Background(), Options{
		Source:          source.NewMemory("mem", testFiles()),
		ExcludePatterns: []string{"*.md"},
	})
	require.NoError(t, err)

	assert.Equal(t, 2.0, testutil.ToFloat64(idx.metrics.FilesIndexed))
	assert.Equal(t, 1.0, testutil.ToFloat64(idx.metrics.FilesSkipped.WithLabelValues("filter")))
	assert.Equal(t, 1.0, testutil.ToFloat64(idx.metrics.IndexRuns.WithLabelValues(RunComplete)))
	assert.Equal(t, float64(StateComplete), testutil.ToFloat64(idx.metrics.State))

	families, err := reg.Gather()
	require.NoError(t, err)
	assert.NotEmpty(t, families)
}

func TestSQLiteBackedIndex(t *testing.T) {
	store, err := storage.NewSQLiteStore(":memory:", testDim)
	require.NoError(t, err)
	defer store.Close()

	engine := embedder.NewEngine(embedder.NewHashProvider(testDim))
	idx := New(store, engine)
	stats := buildIndex(t, idx, source.NewMemory("mem", testFiles()))

	count, err := store.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, stats.DocumentsStored, count)

	// A fresh indexer over the same store enriches persisted documents
	reopened := New(store, engine)
	loaded, err := reopened.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, count, loaded)

	resp, err := reopened.Search(context.Background(), SearchOptions{Query: "parseConfig", Mode: searcher.SearchModeKeyword})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Hits)
	assert.Equal(t, "util.ts", resp.Hits[0].RelativePath)
}
