package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// Provider configuration
const (
	ProviderHash   = "hash"
	ProviderOpenAI = "openai"
	ProviderJina   = "jina"

	// Default models
	DefaultHashModel   = "sin-hash-v1"
	DefaultOpenAIModel = "text-embedding-3-small"
	DefaultJinaModel   = "jina-embeddings-v3"

	// Default endpoints
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	DefaultJinaBaseURL   = "https://api.jina.ai/v1"

	// Dimensions
	HashDimension   = 128
	OpenAIDimension = 1536
	JinaDimension   = 1024

	// Batch limits
	DefaultBatchSize = 100
	MaxBatchSize     = 2048

	// Retry configuration
	MaxRetries        = 3
	InitialBackoffMs  = 100
	MaxBackoffMs      = 5000
	BackoffMultiplier = 2.0

	// Environment fallbacks for API keys
	EnvOpenAIAPIKey = "OPENAI_API_KEY"
	EnvJinaAPIKey   = "JINA_API_KEY"

	defaultHTTPTimeout = 30 * time.Second
)

// HashProvider derives deterministic placeholder vectors from a text hash.
// Equal texts always produce equal vectors; the vectors carry no meaning.
type HashProvider struct {
	dimension int
}

// NewHashProvider creates a hash embedder; dimension <= 0 selects HashDimension
func NewHashProvider(dimension int) *HashProvider {
	if dimension <= 0 {
		dimension = HashDimension
	}
	return &HashProvider{dimension: dimension}
}

// seed folds text into a 32-bit integer (h = 31*h + c over UTF-16 units)
func seed(text string) int32 {
	var h int32
	for _, r := range text {
		if r >= 0x10000 {
			r -= 0x10000
			h = 31*h + int32(0xD800+(r>>10))
			h = 31*h + int32(0xDC00+(r&0x3FF))
			continue
		}
		h = 31*h + int32(r)
	}
	return h
}

// vector computes v[i] = sin(seed + i*31)*0.5 + 0.5
func (h *HashProvider) vector(text string) []float32 {
	s := float64(seed(text))
	v := make([]float32, h.dimension)
	for i := range v {
		v[i] = float32(math.Sin(s+float64(i*31))*0.5 + 0.5)
	}
	return v
}

func (h *HashProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return &Embedding{
		Vector:    h.vector(req.Text),
		Dimension: h.dimension,
		Provider:  ProviderHash,
		Model:     DefaultHashModel,
	}, nil
}

func (h *HashProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	embeddings := make([]*Embedding, len(req.Texts))
	for i, text := range req.Texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		embeddings[i] = &Embedding{
			Vector:    h.vector(text),
			Dimension: h.dimension,
			Provider:  ProviderHash,
			Model:     DefaultHashModel,
		}
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   ProviderHash,
		Model:      DefaultHashModel,
	}, nil
}

func (h *HashProvider) Dimension() int   { return h.dimension }
func (h *HashProvider) Provider() string { return ProviderHash }
func (h *HashProvider) Model() string    { return DefaultHashModel }
func (h *HashProvider) Close() error     { return nil }

// HTTPConfig configures an OpenAI-compatible embeddings endpoint
type HTTPConfig struct {
	Name      string  // Provider name reported by the embedder
	BaseURL   string  // e.g. https://api.openai.com/v1
	APIKey    string  // Bearer token; may be empty for local servers
	Model     string  // Model sent with every request
	Dimension int     // Expected vector length
	RateLimit float64 // Requests per second; <= 0 disables limiting
	Timeout   time.Duration
	Retry     RetryConfig
	Normalize bool // Scale returned vectors to unit length
}

// HTTPProvider calls POST {BaseURL}/embeddings using the OpenAI wire format.
// Jina, OpenAI and most self-hosted servers speak it.
type HTTPProvider struct {
	name       string
	endpoint   string
	apiKey     string
	model      string
	dimension  int
	retry      RetryConfig
	normalize  bool
	limiter    *rate.Limiter
	httpClient *http.Client
}

// NewHTTPProvider creates an embedder for an OpenAI-compatible endpoint
func NewHTTPProvider(cfg HTTPConfig) (*HTTPProvider, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: base URL required", ErrInvalidInput)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("%w: model required", ErrInvalidInput)
	}
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive", ErrInvalidInput)
	}
	if cfg.Name == "" {
		cfg.Name = ProviderOpenAI
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	if cfg.Retry.MaxRetries == 0 {
		cfg.Retry = DefaultRetryConfig()
	}

	p := &HTTPProvider{
		name:      cfg.Name,
		endpoint:  strings.TrimRight(cfg.BaseURL, "/") + "/embeddings",
		apiKey:    cfg.APIKey,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		retry:     cfg.Retry,
		normalize: cfg.Normalize,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
	if cfg.RateLimit > 0 {
		burst := int(math.Ceil(cfg.RateLimit))
		p.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}

	return p, nil
}

// NewOpenAIProvider creates an embedder for the OpenAI API.
// An empty apiKey falls back to OPENAI_API_KEY.
func NewOpenAIProvider(apiKey, model string) (*HTTPProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvOpenAIAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrMissingAPIKey, EnvOpenAIAPIKey)
	}
	if model == "" {
		model = DefaultOpenAIModel
	}
	return NewHTTPProvider(HTTPConfig{
		Name:      ProviderOpenAI,
		BaseURL:   DefaultOpenAIBaseURL,
		APIKey:    apiKey,
		Model:     model,
		Dimension: OpenAIDimension,
	})
}

// NewJinaProvider creates an embedder for the Jina AI API.
// An empty apiKey falls back to JINA_API_KEY.
func NewJinaProvider(apiKey, model string) (*HTTPProvider, error) {
	if apiKey == "" {
		apiKey = os.Getenv(EnvJinaAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrMissingAPIKey, EnvJinaAPIKey)
	}
	if model == "" {
		model = DefaultJinaModel
	}
	return NewHTTPProvider(HTTPConfig{
		Name:      ProviderJina,
		BaseURL:   DefaultJinaBaseURL,
		APIKey:    apiKey,
		Model:     model,
		Dimension: JinaDimension,
	})
}

func (p *HTTPProvider) GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	resp, err := p.GenerateBatch(ctx, BatchEmbeddingRequest{
		Texts: []string{req.Text},
		Model: req.Model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}

	return resp.Embeddings[0], nil
}

func (p *HTTPProvider) GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = p.model
	}

	embeddings, err := retryWithBackoff(ctx, p.retry, func() ([]*Embedding, error) {
		if p.limiter != nil {
			if err := p.limiter.Wait(ctx); err != nil {
				return nil, permanent(err)
			}
		}
		return p.callAPI(ctx, req.Texts, model)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderFailed, err)
	}

	if len(embeddings) != len(req.Texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d texts", ErrProviderFailed, len(embeddings), len(req.Texts))
	}

	return &BatchEmbeddingResponse{
		Embeddings: embeddings,
		Provider:   p.name,
		Model:      model,
	}, nil
}

type embeddingsRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingsResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

func (p *HTTPProvider) callAPI(ctx context.Context, texts []string, model string) ([]*Embedding, error) {
	body, err := json.Marshal(embeddingsRequest{Input: texts, Model: model})
	if err != nil {
		return nil, permanent(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, permanent(fmt.Errorf("create request: %w", err))
	}

	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		apiErr := fmt.Errorf("api error %d: %s", resp.StatusCode, strings.TrimSpace(string(bodyBytes)))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			return nil, permanent(apiErr)
		}
		return nil, apiErr
	}

	var apiResp embeddingsResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	// The index field is authoritative; some servers reorder data
	embeddings := make([]*Embedding, len(texts))
	for _, data := range apiResp.Data {
		if data.Index < 0 || data.Index >= len(texts) {
			return nil, permanent(fmt.Errorf("response index %d out of range", data.Index))
		}
		vec := data.Embedding
		if p.normalize {
			vec = NormalizeVector(vec)
		}
		embeddings[data.Index] = &Embedding{
			Vector:    vec,
			Dimension: len(data.Embedding),
			Provider:  p.name,
			Model:     apiResp.Model,
		}
	}
	for i, emb := range embeddings {
		if emb == nil {
			return nil, permanent(fmt.Errorf("no embedding returned for input %d", i))
		}
	}

	return embeddings, nil
}

func (p *HTTPProvider) Dimension() int   { return p.dimension }
func (p *HTTPProvider) Provider() string { return p.name }
func (p *HTTPProvider) Model() string    { return p.model }

func (p *HTTPProvider) Close() error {
	p.httpClient.CloseIdleConnections()
	return nil
}

// NormalizeVector normalizes a vector to unit length
func NormalizeVector(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}

	norm := math.Sqrt(sum)
	if norm == 0 {
		return vec
	}

	normalized := make([]float32, len(vec))
	for i, v := range vec {
		normalized[i] = float32(float64(v) / norm)
	}

	return normalized
}
