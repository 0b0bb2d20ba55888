package embedder

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry() RetryConfig {
	return RetryConfig{
		MaxRetries: 3,
		BaseDelay:  time.Millisecond,
		MaxDelay:   5 * time.Millisecond,
		Multiplier: 2,
	}
}

// embeddingServer answers with vectors of length dim whose first component
// is the input index, returning data in reverse order
func embeddingServer(t *testing.T, dim int, calls *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req embeddingsRequest
		if !assert.NoError(t, json.NewDecoder(r.Body).Decode(&req)) {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}

		type item struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		}
		data := make([]item, 0, len(req.Input))
		for i := len(req.Input) - 1; i >= 0; i-- {
			vec := make([]float32, dim)
			vec[0] = float32(i)
			data = append(data, item{Embedding: vec, Index: i})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model": req.Model,
			"data":  data,
		})
	}))
}

func TestHTTPProvider_Normalize(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "m",
			"data": []map[string]interface{}{
				{"index": 0, "embedding": []float32{3, 4}},
			},
		})
	}))
	defer server.Close()

	for _, normalize := range []bool{false, true} {
		p, err := NewHTTPProvider(HTTPConfig{BaseURL: server.URL, Model: "m", Dimension: 2, Normalize: normalize, Retry: fastRetry()})
		require.NoError(t, err)

		emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "x"})
		require.NoError(t, err)
		if normalize {
			assert.InDelta(t, 0.6, emb.Vector[0], 1e-6)
			assert.InDelta(t, 0.8, emb.Vector[1], 1e-6)
		} else {
			assert.Equal(t, []float32{3, 4}, emb.Vector)
		}
	}
}

func TestHashProvider_Deterministic(t *testing.T) {
	p := NewHashProvider(0)
	assert.Equal(t, HashDimension, p.Dimension())
	assert.Equal(t, ProviderHash, p.Provider())

	ctx := context.Background()
	a, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "func Add(a, b int) int"})
	require.NoError(t, err)
	b, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "func Add(a, b int) int"})
	require.NoError(t, err)
	c, err := p.GenerateEmbedding(ctx, EmbeddingRequest{Text: "func Sub(a, b int) int"})
	require.NoError(t, err)

	assert.Len(t, a.Vector, HashDimension)
	assert.Equal(t, a.Vector, b.Vector)
	assert.NotEqual(t, a.Vector, c.Vector)

	for _, v := range a.Vector {
		assert.GreaterOrEqual(t, v, float32(0))
		assert.LessOrEqual(t, v, float32(1))
	}
}

func TestHashProvider_Formula(t *testing.T) {
	assert.Equal(t, int32(0), seed(""))
	assert.Equal(t, int32(97), seed("a"))
	assert.Equal(t, int32(3105), seed("ab"))
	// Java's "hello".hashCode()
	assert.Equal(t, int32(99162322), seed("hello"))

	p := NewHashProvider(4)
	emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "a"})
	require.NoError(t, err)
	for i, v := range emb.Vector {
		want := math.Sin(97+float64(i*31))*0.5 + 0.5
		assert.InDelta(t, want, v, 1e-6)
	}
}

func TestHashProvider_Batch(t *testing.T) {
	p := NewHashProvider(16)
	resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"x", "y", "x"}})
	require.NoError(t, err)
	require.Len(t, resp.Embeddings, 3)
	assert.Equal(t, resp.Embeddings[0].Vector, resp.Embeddings[2].Vector)
	assert.NotEqual(t, resp.Embeddings[0].Vector, resp.Embeddings[1].Vector)

	_, err = p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"x", ""}})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestHashProvider_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewHashProvider(8).GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"x"}})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPProvider_Batch(t *testing.T) {
	var calls int32
	server := embeddingServer(t, 8, &calls)
	defer server.Close()

	p, err := NewHTTPProvider(HTTPConfig{
		Name:      ProviderJina,
		BaseURL:   server.URL + "/v1/",
		APIKey:    "test-key",
		Model:     "test-model",
		Dimension: 8,
		Retry:     fastRetry(),
	})
	require.NoError(t, err)
	defer p.Close()

	resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a", "b", "c"}})
	require.NoError(t, err)
	assert.Equal(t, ProviderJina, resp.Provider)
	assert.Equal(t, "test-model", resp.Model)
	require.Len(t, resp.Embeddings, 3)

	// Reordered response data is placed by index
	for i, emb := range resp.Embeddings {
		assert.Equal(t, float32(i), emb.Vector[0])
		assert.Equal(t, 8, emb.Dimension)
	}
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPProvider_Single(t *testing.T) {
	var calls int32
	server := embeddingServer(t, 4, &calls)
	defer server.Close()

	p, err := NewHTTPProvider(HTTPConfig{
		BaseURL:   server.URL + "/v1",
		APIKey:    "test-key",
		Model:     "m",
		Dimension: 4,
		Retry:     fastRetry(),
	})
	require.NoError(t, err)

	emb, err := p.GenerateEmbedding(context.Background(), EmbeddingRequest{Text: "hello"})
	require.NoError(t, err)
	assert.Len(t, emb.Vector, 4)
	assert.Equal(t, ProviderOpenAI, p.Provider())
}

func TestHTTPProvider_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			http.Error(w, "overloaded", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "m",
			"data": []map[string]interface{}{
				{"index": 0, "embedding": []float32{1, 0}},
			},
		})
	}))
	defer server.Close()

	p, err := NewHTTPProvider(HTTPConfig{BaseURL: server.URL, Model: "m", Dimension: 2, Retry: fastRetry()})
	require.NoError(t, err)

	resp, err := p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"x"}})
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 0}, resp.Embeddings[0].Vector)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPProvider_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "bad key", http.StatusUnauthorized)
	}))
	defer server.Close()

	p, err := NewHTTPProvider(HTTPConfig{BaseURL: server.URL, Model: "m", Dimension: 2, Retry: fastRetry()})
	require.NoError(t, err)

	_, err = p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"x"}})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Contains(t, err.Error(), "401")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestHTTPProvider_ExhaustsRetries(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	p, err := NewHTTPProvider(HTTPConfig{BaseURL: server.URL, Model: "m", Dimension: 2, Retry: fastRetry()})
	require.NoError(t, err)

	_, err = p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"x"}})
	assert.ErrorIs(t, err, ErrProviderFailed)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestHTTPProvider_MissingEmbedding(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "m",
			"data": []map[string]interface{}{
				{"index": 0, "embedding": []float32{1, 0}},
			},
		})
	}))
	defer server.Close()

	p, err := NewHTTPProvider(HTTPConfig{BaseURL: server.URL, Model: "m", Dimension: 2, Retry: fastRetry()})
	require.NoError(t, err)

	_, err = p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"x", "y"}})
	assert.ErrorIs(t, err, ErrProviderFailed)
}

func TestHTTPProvider_RateLimitHonorsContext(t *testing.T) {
	var calls int32
	server := embeddingServer(t, 2, &calls)
	defer server.Close()

	p, err := NewHTTPProvider(HTTPConfig{
		BaseURL:   server.URL + "/v1",
		APIKey:    "test-key",
		Model:     "m",
		Dimension: 2,
		RateLimit: 0.001,
		Retry:     fastRetry(),
	})
	require.NoError(t, err)

	// The first request uses the burst token
	_, err = p.GenerateBatch(context.Background(), BatchEmbeddingRequest{Texts: []string{"a"}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = p.GenerateBatch(ctx, BatchEmbeddingRequest{Texts: []string{"b"}})
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestNewHTTPProvider_Validation(t *testing.T) {
	_, err := NewHTTPProvider(HTTPConfig{Model: "m", Dimension: 2})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewHTTPProvider(HTTPConfig{BaseURL: "http://x", Dimension: 2})
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = NewHTTPProvider(HTTPConfig{BaseURL: "http://x", Model: "m"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0

	_, err := retryWithBackoff(ctx, RetryConfig{MaxRetries: 5, BaseDelay: time.Second, MaxDelay: time.Second, Multiplier: 1},
		func() (int, error) {
			attempts++
			cancel()
			return 0, assert.AnError
		})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, attempts)
}
