package embedder

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrEmptyText       = errors.New("text cannot be empty")
	ErrBatchTooLarge   = errors.New("batch size exceeds limit")
	ErrProviderFailed  = errors.New("embedding provider failed")
	ErrUnknownProvider = errors.New("unknown embedding provider")
	ErrMissingAPIKey   = errors.New("embedding API key not configured")
)

// Embedding is one vector plus the provider and model that produced it
type Embedding struct {
	Vector    []float32
	Dimension int
	Provider  string
	Model     string
}

// EmbeddingRequest asks for the vector of one text
type EmbeddingRequest struct {
	Text  string
	Model string // Empty selects the provider default
}

// Validate rejects empty text
func (r EmbeddingRequest) Validate() error {
	if r.Text == "" {
		return ErrEmptyText
	}
	return nil
}

// BatchEmbeddingRequest asks for the vectors of several texts
type BatchEmbeddingRequest struct {
	Texts []string
	Model string
}

// Validate rejects empty batches, empty texts and batches over MaxBatchSize
func (r BatchEmbeddingRequest) Validate() error {
	switch {
	case len(r.Texts) == 0:
		return fmt.Errorf("%w: no texts provided", ErrInvalidInput)
	case len(r.Texts) > MaxBatchSize:
		return fmt.Errorf("%w: %d texts, max %d", ErrBatchTooLarge, len(r.Texts), MaxBatchSize)
	}
	for i, text := range r.Texts {
		if text == "" {
			return fmt.Errorf("%w: text at index %d is empty", ErrInvalidInput, i)
		}
	}
	return nil
}

// BatchEmbeddingResponse holds one embedding per requested text, in order
type BatchEmbeddingResponse struct {
	Embeddings []*Embedding
	Provider   string
	Model      string
}

// Embedder is a pluggable embedding provider. Implementations must return
// one vector of length Dimension() per input text, in input order.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, req EmbeddingRequest) (*Embedding, error)
	GenerateBatch(ctx context.Context, req BatchEmbeddingRequest) (*BatchEmbeddingResponse, error)

	Dimension() int
	Provider() string
	Model() string

	// Close releases any resources held by the embedder
	Close() error
}
