package indexer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/codeindex/internal/chunker"
	"github.com/dshills/codeindex/internal/embedder"
	"github.com/dshills/codeindex/internal/parser"
	"github.com/dshills/codeindex/internal/searcher"
	"github.com/dshills/codeindex/internal/source"
	"github.com/dshills/codeindex/internal/storage"
	"github.com/dshills/codeindex/pkg/types"
)

// Run statuses recorded in the store
const (
	RunComplete = "complete"
	RunFailed   = "failed"
)

// Indexer coordinates the pipeline: scan -> parse -> embed -> store
type Indexer struct {
	parser   chunker.SymbolParser
	chunker  *chunker.Chunker
	engine   *embedder.Engine
	store    storage.Store
	searcher *searcher.Searcher
	metrics  *Metrics
	logger   *zap.Logger

	workers       int
	maxResults    int
	minSimilarity float64

	lock  IndexLock
	paths pathLocks
	// builds take rw exclusively; single-file updates share it
	rw sync.RWMutex

	mu        sync.RWMutex
	state     State
	source    source.Source
	filter    source.Filter
	lastStats *Statistics
}

// Option configures an Indexer
type Option func(*indexerConfig)

type indexerConfig struct {
	workers         int
	logger          *zap.Logger
	registerer      prometheus.Registerer
	source          source.Source
	maxResults      int
	minSimilarity   float64
	searcherOptions []searcher.Option
	parser          chunker.SymbolParser
}

// WithWorkers bounds how many files are parsed concurrently (default: runtime.NumCPU())
func WithWorkers(n int) Option {
	return func(c *indexerConfig) { c.workers = n }
}

// WithLogger sets the logger for the indexer and its searcher
func WithLogger(logger *zap.Logger) Option {
	return func(c *indexerConfig) { c.logger = logger }
}

// WithRegisterer registers the orchestrator metrics on reg
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *indexerConfig) { c.registerer = reg }
}

// WithParser replaces the structural parser used for every file
func WithParser(p chunker.SymbolParser) Option {
	return func(c *indexerConfig) { c.parser = p }
}

// WithSource sets the source used by UpdateFile before any CreateIndex call
func WithSource(src source.Source) Option {
	return func(c *indexerConfig) { c.source = src }
}

// WithSearchDefaults overrides the default result count and minimum similarity
func WithSearchDefaults(maxResults int, minSimilarity float64) Option {
	return func(c *indexerConfig) {
		c.maxResults = maxResults
		c.minSimilarity = minSimilarity
	}
}

// WithSearcherOptions passes options to the underlying searcher
func WithSearcherOptions(opts ...searcher.Option) Option {
	return func(c *indexerConfig) { c.searcherOptions = append(c.searcherOptions, opts...) }
}

// New creates an Indexer over store, embedding with engine
func New(store storage.Store, engine *embedder.Engine, opts ...Option) *Indexer {
	cfg := indexerConfig{
		workers:       runtime.NumCPU(),
		logger:        zap.NewNop(),
		maxResults:    DefaultMaxResults,
		minSimilarity: DefaultMinSimilarity,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.workers <= 0 {
		cfg.workers = runtime.NumCPU()
	}
	if cfg.logger == nil {
		cfg.logger = zap.NewNop()
	}
	if cfg.maxResults <= 0 {
		cfg.maxResults = DefaultMaxResults
	}
	if cfg.parser == nil {
		cfg.parser = parser.New()
	}

	searchOpts := append([]searcher.Option{searcher.WithLogger(cfg.logger)}, cfg.searcherOptions...)

	idx := &Indexer{
		parser:        cfg.parser,
		chunker:       chunker.New(),
		engine:        engine,
		store:         store,
		searcher:      searcher.NewSearcher(store, searchOpts...),
		metrics:       NewMetrics(cfg.registerer),
		logger:        cfg.logger,
		workers:       cfg.workers,
		maxResults:    cfg.maxResults,
		minSimilarity: cfg.minSimilarity,
		state:         StateIdle,
		source:        cfg.source,
	}
	idx.metrics.State.Set(float64(StateIdle))
	return idx
}

// Searcher exposes the ranking layer over the index
func (idx *Indexer) Searcher() *searcher.Searcher {
	return idx.searcher
}

// Load enriches documents persisted by an earlier process
func (idx *Indexer) Load(ctx context.Context) (int, error) {
	return idx.searcher.Load(ctx)
}

// State returns the current pipeline state
func (idx *Indexer) State() State {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.state
}

func (idx *Indexer) setState(s State) {
	idx.mu.Lock()
	idx.state = s
	idx.mu.Unlock()
	idx.metrics.State.Set(float64(s))
}

// Options configure one index build
type Options struct {
	Source           source.Source
	IncludePatterns  []string
	ExcludePatterns  []string
	MaxFileSizeBytes int64
	OnProgress       func(Progress)
}

// Progress is reported after every unit of work
type Progress struct {
	Stage   State
	Current int
	Total   int
	Message string
}

// SkippedFile names a file left out of the index and why
type SkippedFile struct {
	Path   string
	Reason string
}

// Statistics describe a finished index build
type Statistics struct {
	RunID            string
	FilesScanned     int
	FilesIndexed     int
	FilesSkipped     int
	FilesFallback    int // Files indexed as one whole-file chunk after a parse failure
	SymbolsExtracted int
	ChunksCreated    int
	DocumentsStored  int
	DocumentsRemoved int
	EmbeddingBatches int
	Skipped          []SkippedFile
	StartedAt        time.Time
	Duration         time.Duration
}

// fileResult is the structural extraction of one scanned file
type fileResult struct {
	file       *types.SourceFile
	extraction *types.Extraction
	docs       []*storage.Document
}

// run carries the state of one CreateIndex call
type run struct {
	opts  Options
	stats *Statistics
}

func (r *run) progress(stage State, current, total int, msg string) {
	if r.opts.OnProgress != nil {
		r.opts.OnProgress(Progress{Stage: stage, Current: current, Total: total, Message: msg})
	}
}

func (r *run) skip(path, reason string) {
	r.stats.Skipped = append(r.stats.Skipped, SkippedFile{Path: path, Reason: reason})
	r.stats.FilesSkipped++
}

// CreateIndex builds the index from opts.Source. Only one build may run at a
// time; a second call fails immediately with types.ErrConcurrentRun. On
// failure the state returns to idle and documents already stored are kept.
func (idx *Indexer) CreateIndex(ctx context.Context, opts Options) (*Statistics, error) {
	if !idx.lock.TryAcquire() {
		return nil, types.ErrConcurrentRun
	}
	defer idx.lock.Release()

	idx.rw.Lock()
	defer idx.rw.Unlock()

	if opts.Source == nil {
		idx.mu.RLock()
		opts.Source = idx.source
		idx.mu.RUnlock()
	}
	if opts.Source == nil {
		return nil, fmt.Errorf("content source is required")
	}

	filter := source.Filter{
		IncludePatterns:  opts.IncludePatterns,
		ExcludePatterns:  opts.ExcludePatterns,
		MaxFileSizeBytes: opts.MaxFileSizeBytes,
	}
	if err := filter.Validate(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	r := &run{
		opts: opts,
		stats: &Statistics{
			RunID:     uuid.NewString(),
			Skipped:   make([]SkippedFile, 0),
			StartedAt: time.Now(),
		},
	}
	log := idx.logger.With(zap.String("run_id", r.stats.RunID), zap.String("root", opts.Source.Root()))
	log.Info("index build started")

	err := idx.build(ctx, r, filter)
	r.stats.Duration = time.Since(r.stats.StartedAt)

	if err != nil {
		idx.setState(StateIdle)
		idx.metrics.IndexRuns.WithLabelValues(RunFailed).Inc()
		idx.recordRun(r, opts.Source.Root(), err)
		log.Error("index build failed", zap.Error(err), zap.Duration("duration", r.stats.Duration))
		return r.stats, err
	}

	idx.mu.Lock()
	idx.source = opts.Source
	idx.filter = filter
	idx.lastStats = r.stats
	idx.mu.Unlock()

	idx.setState(StateComplete)
	idx.metrics.IndexRuns.WithLabelValues(RunComplete).Inc()
	idx.recordRun(r, opts.Source.Root(), nil)
	log.Info("index build complete",
		zap.Int("files", r.stats.FilesIndexed),
		zap.Int("skipped", r.stats.FilesSkipped),
		zap.Int("chunks", r.stats.ChunksCreated),
		zap.Int("symbols", r.stats.SymbolsExtracted),
		zap.Duration("duration", r.stats.Duration))
	return r.stats, nil
}

func (idx *Indexer) build(ctx context.Context, r *run, filter source.Filter) error {
	entries, err := idx.scan(ctx, r, filter)
	if err != nil {
		return err
	}

	results, err := idx.parse(ctx, r, entries)
	if err != nil {
		return err
	}

	if err := idx.embed(ctx, r, results); err != nil {
		return err
	}

	return idx.storeResults(ctx, r, results)
}

// scan lists the source and applies the filter
func (idx *Indexer) scan(ctx context.Context, r *run, filter source.Filter) ([]source.Entry, error) {
	idx.setState(StateScanning)

	entries, err := r.opts.Source.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list files: %w", err)
	}
	r.stats.FilesScanned = len(entries)

	kept := make([]source.Entry, 0, len(entries))
	for i, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		msg := e.RelativePath
		if e.Err != nil {
			r.skip(e.RelativePath, e.Err.Error())
			idx.metrics.FilesSkipped.WithLabelValues("read").Inc()
			idx.logger.Warn("skipping unreadable path", zap.String("path", e.RelativePath), zap.Error(e.Err))
			msg = fmt.Sprintf("skipped %s: %v", e.RelativePath, e.Err)
		} else if reason := filter.Reason(e); reason != "" {
			r.skip(e.RelativePath, reason)
			idx.metrics.FilesSkipped.WithLabelValues("filter").Inc()
			msg = fmt.Sprintf("skipped %s: %s", e.RelativePath, reason)
		} else {
			kept = append(kept, e)
		}
		r.progress(StateScanning, i+1, len(entries), msg)
	}
	return kept, nil
}

// parse reads and extracts every kept file, bounded by the worker count.
// Unreadable files are skipped; files that fail to parse fall back to a
// whole-file chunk.
func (idx *Indexer) parse(ctx context.Context, r *run, entries []source.Entry) ([]*fileResult, error) {
	idx.setState(StateParsing)

	results := make([]*fileResult, len(entries))

	var (
		mu   sync.Mutex
		done int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)

	for i, e := range entries {
		if err := gctx.Err(); err != nil {
			break
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}

			file, readErr := r.opts.Source.Read(gctx, e.Path)
			var (
				ext      *types.Extraction
				parseErr error
			)
			if readErr == nil {
				ext, parseErr = idx.chunker.Extract(idx.parser, file)
			}

			mu.Lock()
			defer mu.Unlock()

			done++
			msg := e.RelativePath
			switch {
			case readErr != nil:
				if ctxErr := gctx.Err(); ctxErr != nil {
					return ctxErr
				}
				r.skip(e.RelativePath, readErr.Error())
				idx.metrics.FilesSkipped.WithLabelValues("read").Inc()
				idx.logger.Warn("skipping unreadable file", zap.String("path", e.RelativePath), zap.Error(readErr))
				msg = fmt.Sprintf("skipped %s: %v", e.RelativePath, readErr)
			case parseErr != nil:
				r.stats.Skipped = append(r.stats.Skipped, SkippedFile{Path: e.RelativePath, Reason: parseErr.Error()})
				r.stats.FilesFallback++
				idx.metrics.FilesSkipped.WithLabelValues("parse").Inc()
				idx.logger.Warn("parse failed, indexing whole file", zap.String("path", e.RelativePath), zap.Error(parseErr))
				msg = fmt.Sprintf("parse failed for %s, using whole-file chunk: %v", e.RelativePath, parseErr)
				results[i] = &fileResult{file: file, extraction: ext}
			default:
				results[i] = &fileResult{file: file, extraction: ext}
			}
			r.progress(StateParsing, done, len(entries), msg)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	kept := make([]*fileResult, 0, len(results))
	for _, res := range results {
		if res == nil {
			continue
		}
		res.docs = documentsFor(res.file, res.extraction)
		r.stats.FilesIndexed++
		r.stats.ChunksCreated += len(res.extraction.Chunks)
		r.stats.SymbolsExtracted += len(res.extraction.Symbols)
		kept = append(kept, res)
	}
	return kept, nil
}

// embed fills the vector of every document, batch by batch
func (idx *Indexer) embed(ctx context.Context, r *run, results []*fileResult) error {
	idx.setState(StateEmbedding)

	docs := make([]*storage.Document, 0)
	for _, res := range results {
		docs = append(docs, res.docs...)
	}
	return idx.embedDocuments(ctx, docs, func(p embedder.BatchProgress) {
		r.stats.EmbeddingBatches++
		r.progress(StateEmbedding, p.Completed, p.Total,
			fmt.Sprintf("embedded batch %d (%d texts)", p.Batch+1, p.Size))
	})
}

func (idx *Indexer) embedDocuments(ctx context.Context, docs []*storage.Document, onBatch func(embedder.BatchProgress)) error {
	if len(docs) == 0 {
		return nil
	}

	texts := make([]string, len(docs))
	for i, d := range docs {
		texts[i] = d.Content
	}

	vectors, err := idx.engine.EmbedBatchWithProgress(ctx, texts, func(p embedder.BatchProgress) {
		idx.metrics.EmbeddingBatches.Inc()
		if onBatch != nil {
			onBatch(p)
		}
	})
	if err != nil {
		var batchErr *types.EmbeddingBatchError
		if errors.As(err, &batchErr) {
			return err
		}
		return fmt.Errorf("embedding failed: %w", err)
	}

	for i, d := range docs {
		d.Vector = vectors[i]
	}
	return nil
}

// storeResults replaces the documents of every indexed file and prunes
// files that are no longer part of the source
func (idx *Indexer) storeResults(ctx context.Context, r *run, results []*fileResult) error {
	idx.setState(StateStoring)

	total := 0
	for _, res := range results {
		total += len(res.docs)
	}

	indexed := make(map[string]bool, len(results))
	stored := 0
	for _, res := range results {
		if err := ctx.Err(); err != nil {
			return err
		}

		rel := res.file.RelativePath
		indexed[rel] = true

		removed, err := idx.searcher.RemoveWhere(ctx, MetaRelativePath, rel)
		if err != nil {
			return fmt.Errorf("failed to clear documents for %s: %w", rel, err)
		}
		r.stats.DocumentsRemoved += removed

		if err := idx.searcher.AddBatch(ctx, res.docs); err != nil {
			return fmt.Errorf("failed to store documents for %s: %w", rel, err)
		}
		idx.metrics.FilesIndexed.Inc()
		idx.metrics.DocumentsStored.Add(float64(len(res.docs)))

		for _, d := range res.docs {
			stored++
			r.stats.DocumentsStored++
			r.progress(StateStoring, stored, total, d.ID)
		}
	}

	stale, err := idx.indexedPaths(ctx)
	if err != nil {
		return err
	}
	for path := range stale {
		if indexed[path] {
			continue
		}
		removed, err := idx.searcher.RemoveWhere(ctx, MetaRelativePath, path)
		if err != nil {
			return fmt.Errorf("failed to prune %s: %w", path, err)
		}
		r.stats.DocumentsRemoved += removed
	}
	return nil
}

// indexedPaths returns the relative paths that currently have documents
func (idx *Indexer) indexedPaths(ctx context.Context) (map[string]bool, error) {
	docs, err := idx.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	paths := make(map[string]bool)
	for _, d := range docs {
		if p := d.Metadata[MetaRelativePath]; p != "" {
			paths[p] = true
		}
	}
	return paths, nil
}

func (idx *Indexer) recordRun(r *run, root string, runErr error) {
	status := RunComplete
	msg := ""
	if runErr != nil {
		status = RunFailed
		msg = runErr.Error()
	}

	rec := &storage.Run{
		ID:         r.stats.RunID,
		Root:       root,
		Status:     status,
		Files:      r.stats.FilesIndexed,
		Chunks:     r.stats.ChunksCreated,
		Symbols:    r.stats.SymbolsExtracted,
		Skipped:    r.stats.FilesSkipped,
		Error:      msg,
		StartedAt:  r.stats.StartedAt,
		FinishedAt: r.stats.StartedAt.Add(r.stats.Duration),
	}
	// The build outcome stands even if history cannot be written
	if err := idx.store.RecordRun(context.Background(), rec); err != nil {
		idx.logger.Warn("failed to record index run", zap.String("run_id", rec.ID), zap.Error(err))
	}
}
