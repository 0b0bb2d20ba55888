package embedder

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/codeindex/pkg/types"
)

// StageEmbedding names the pipeline stage in batch errors
const StageEmbedding = "embedding"

// BatchProgress reports one completed batch
type BatchProgress struct {
	Batch     int // Zero-based batch index
	Size      int // Texts in the batch
	Completed int // Batches finished so far, including this one
	Total     int // Batches in the call
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithBatchSize sets the number of texts sent per provider call
func WithBatchSize(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.batchSize = n
		}
	}
}

// WithConcurrency bounds how many batches are in flight at once
func WithConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithCacheSize sets the query embedding cache capacity
func WithCacheSize(n int) EngineOption {
	return func(e *Engine) {
		e.cache = newVectorCache(n)
	}
}

// WithOnBatch registers a hook called after every completed batch.
// It may be called from several goroutines, never concurrently.
func WithOnBatch(fn func(BatchProgress)) EngineOption {
	return func(e *Engine) {
		e.onBatch = fn
	}
}

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) EngineOption {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// Engine batches texts through an Embedder and caches query vectors
type Engine struct {
	provider    Embedder
	batchSize   int
	concurrency int
	cache       *vectorCache
	onBatch     func(BatchProgress)
	logger      *zap.Logger
}

// NewEngine creates an embedding engine over provider
func NewEngine(provider Embedder, opts ...EngineOption) *Engine {
	e := &Engine{
		provider:    provider,
		batchSize:   DefaultBatchSize,
		concurrency: 1,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.cache == nil {
		e.cache = newVectorCache(DefaultCacheSize)
	}
	return e
}

// Provider returns the wrapped embedder
func (e *Engine) Provider() Embedder {
	return e.provider
}

// Dimension returns the vector length every call produces
func (e *Engine) Dimension() int {
	return e.provider.Dimension()
}

// EmbedBatch embeds texts in fixed-size batches and returns one vector per
// text in input order. Any batch failure fails the whole call with a
// *types.EmbeddingBatchError; no partial results are returned.
func (e *Engine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.EmbedBatchWithProgress(ctx, texts, nil)
}

// EmbedBatchWithProgress is EmbedBatch with an extra per-call hook, invoked
// after the engine-wide OnBatch hook for every completed batch
func (e *Engine) EmbedBatchWithProgress(ctx context.Context, texts []string, onBatch func(BatchProgress)) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, len(texts))
	total := (len(texts) + e.batchSize - 1) / e.batchSize

	var (
		mu        sync.Mutex
		completed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)

	for b := 0; b < total; b++ {
		// Stop scheduling once the caller or a failed batch cancels
		if err := gctx.Err(); err != nil {
			break
		}

		batch := b
		start := batch * e.batchSize
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return e.batchError(batch, end-start, err)
			}

			resp, err := e.provider.GenerateBatch(gctx, BatchEmbeddingRequest{Texts: texts[start:end]})
			if err != nil {
				return e.batchError(batch, end-start, err)
			}
			if len(resp.Embeddings) != end-start {
				return e.batchError(batch, end-start,
					fmt.Errorf("%w: got %d vectors for %d texts", ErrProviderFailed, len(resp.Embeddings), end-start))
			}

			dim := e.provider.Dimension()
			for i, emb := range resp.Embeddings {
				if emb == nil || len(emb.Vector) != dim {
					actual := 0
					if emb != nil {
						actual = len(emb.Vector)
					}
					return e.batchError(batch, end-start, &types.DimensionMismatchError{Expected: dim, Actual: actual})
				}
				vectors[start+i] = emb.Vector
			}

			mu.Lock()
			completed++
			progress := BatchProgress{Batch: batch, Size: end - start, Completed: completed, Total: total}
			if e.onBatch != nil {
				e.onBatch(progress)
			}
			if onBatch != nil {
				onBatch(progress)
			}
			mu.Unlock()

			e.logger.Debug("embedded batch",
				zap.Int("batch", batch),
				zap.Int("size", end-start),
				zap.Int("completed", progress.Completed),
				zap.Int("total", total))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		e.logger.Warn("embedding failed", zap.Error(err))
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return vectors, nil
}

func (e *Engine) batchError(batch, size int, err error) error {
	return &types.EmbeddingBatchError{Batch: batch, Size: size, Stage: StageEmbedding, Err: err}
}

// EmbedQuery embeds a single query text, serving repeats from the LRU cache
func (e *Engine) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	key := cacheKey(e.provider, text)
	if vec, ok := e.cache.get(key); ok {
		return vec, nil
	}

	emb, err := e.provider.GenerateEmbedding(ctx, EmbeddingRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(emb.Vector) != e.provider.Dimension() {
		return nil, &types.DimensionMismatchError{Expected: e.provider.Dimension(), Actual: len(emb.Vector)}
	}

	e.cache.add(key, emb.Vector)

	return emb.Vector, nil
}

// CacheSize returns the number of cached query vectors
func (e *Engine) CacheSize() int {
	return e.cache.size()
}

// Close releases the provider
func (e *Engine) Close() error {
	e.cache.purge()
	return e.provider.Close()
}
