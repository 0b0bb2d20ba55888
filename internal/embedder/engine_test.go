package embedder

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/codeindex/pkg/types"
)

// scriptedEmbedder wraps HashProvider, failing batches that contain "boom"
// and optionally returning vectors of the wrong length
type scriptedEmbedder struct {
	*HashProvider
	batches  int32
	single   int32
	shortVec bool
	mu       sync.Mutex
	sizes    []int
}

func newScripted(dim int) *scriptedEmbedder {
	return &scriptedEmbedder{HashProvider: NewHashProvider(dim)}
}

func (s *scriptedEmbedder) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	atomic.AddInt32(&s.batches, 1)
	s.mu.Lock()
	s.sizes = append(s.sizes, len(req.Texts))
	s.mu.Unlock()

	for _, text := range req.Texts {
		if strings.Contains(text, "boom") {
			return nil, fmt.Errorf("%w: upstream exploded", ErrProviderFailed)
		}
	}
	resp, err := s.HashProvider.GenerateBatch(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.shortVec {
		resp.Embeddings[0].Vector = resp.Embeddings[0].Vector[:1]
	}
	return resp, nil
}

func (s *scriptedEmbedder) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	atomic.AddInt32(&s.single, 1)
	return s.HashProvider.GenerateEmbedding(ctx, req)
}

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("text %d", i)
	}
	return out
}

func TestEngine_EmbedBatch_OrderAndBatching(t *testing.T) {
	provider := newScripted(16)
	engine := NewEngine(provider, WithBatchSize(10), WithConcurrency(3))

	input := texts(25)
	vectors, err := engine.EmbedBatch(context.Background(), input)
	require.NoError(t, err)
	require.Len(t, vectors, 25)

	hash := NewHashProvider(16)
	for i, text := range input {
		assert.Equal(t, hash.vector(text), vectors[i], "vector %d out of order", i)
	}

	assert.Equal(t, int32(3), atomic.LoadInt32(&provider.batches))
	assert.ElementsMatch(t, []int{10, 10, 5}, provider.sizes)
}

func TestEngine_EmbedBatch_DefaultBatchSize(t *testing.T) {
	provider := newScripted(8)
	engine := NewEngine(provider)

	_, err := engine.EmbedBatch(context.Background(), texts(250))
	require.NoError(t, err)
	assert.Equal(t, []int{100, 100, 50}, provider.sizes)
}

func TestEngine_EmbedBatch_Empty(t *testing.T) {
	engine := NewEngine(newScripted(8))
	vectors, err := engine.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
}

func TestEngine_EmbedBatch_FailureFailsWholeCall(t *testing.T) {
	engine := NewEngine(newScripted(8), WithBatchSize(2))

	input := []string{"a", "b", "c", "boom", "e"}
	vectors, err := engine.EmbedBatch(context.Background(), input)
	assert.Nil(t, vectors)

	var batchErr *types.EmbeddingBatchError
	require.True(t, errors.As(err, &batchErr))
	assert.Equal(t, 1, batchErr.Batch)
	assert.Equal(t, 2, batchErr.Size)
	assert.Equal(t, StageEmbedding, batchErr.Stage)
	assert.ErrorIs(t, err, ErrProviderFailed)
}

func TestEngine_EmbedBatch_DimensionChecked(t *testing.T) {
	provider := newScripted(8)
	provider.shortVec = true
	engine := NewEngine(provider)

	_, err := engine.EmbedBatch(context.Background(), []string{"a", "b"})

	var dimErr *types.DimensionMismatchError
	require.True(t, errors.As(err, &dimErr))
	assert.Equal(t, 8, dimErr.Expected)
	assert.Equal(t, 1, dimErr.Actual)
}

func TestEngine_EmbedBatch_OnBatch(t *testing.T) {
	var (
		mu     sync.Mutex
		events []BatchProgress
	)
	engine := NewEngine(newScripted(8),
		WithBatchSize(3),
		WithConcurrency(2),
		WithOnBatch(func(p BatchProgress) {
			mu.Lock()
			events = append(events, p)
			mu.Unlock()
		}),
	)

	_, err := engine.EmbedBatch(context.Background(), texts(7))
	require.NoError(t, err)

	require.Len(t, events, 3)
	for i, ev := range events {
		assert.Equal(t, i+1, ev.Completed)
		assert.Equal(t, 3, ev.Total)
	}
}

func TestEngine_EmbedBatchWithProgress(t *testing.T) {
	var engineHook, callHook int32
	engine := NewEngine(newScripted(8),
		WithBatchSize(2),
		WithOnBatch(func(BatchProgress) { atomic.AddInt32(&engineHook, 1) }),
	)

	vectors, err := engine.EmbedBatchWithProgress(context.Background(), texts(5), func(p BatchProgress) {
		atomic.AddInt32(&callHook, 1)
		assert.Equal(t, 3, p.Total)
	})
	require.NoError(t, err)
	assert.Len(t, vectors, 5)
	assert.Equal(t, int32(3), atomic.LoadInt32(&engineHook))
	assert.Equal(t, int32(3), atomic.LoadInt32(&callHook))
}

func TestEngine_EmbedBatch_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	engine := NewEngine(newScripted(8), WithBatchSize(1))
	_, err := engine.EmbedBatch(ctx, texts(5))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_EmbedQuery_Cached(t *testing.T) {
	provider := newScripted(8)
	engine := NewEngine(provider, WithCacheSize(4))

	first, err := engine.EmbedQuery(context.Background(), "add two numbers")
	require.NoError(t, err)
	second, err := engine.EmbedQuery(context.Background(), "add two numbers")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&provider.single))
	assert.Equal(t, 1, engine.CacheSize())

	// The hash placeholder is deterministic across batch and query paths
	batch, err := engine.EmbedBatch(context.Background(), []string{"add two numbers"})
	require.NoError(t, err)
	assert.Equal(t, first, batch[0])

	_, err = engine.EmbedQuery(context.Background(), "")
	assert.ErrorIs(t, err, ErrEmptyText)
}

func TestEngine_Close(t *testing.T) {
	engine := NewEngine(newScripted(8))
	_, err := engine.EmbedQuery(context.Background(), "q")
	require.NoError(t, err)

	require.NoError(t, engine.Close())
	assert.Equal(t, 0, engine.CacheSize())
	assert.Equal(t, 8, engine.Dimension())
}
