package storage

import (
	"context"
	"time"

	"github.com/dshills/codeindex/pkg/types"
)

// Search thresholds and weights shared by every backend
const (
	// MinVectorSimilarity excludes SearchByVector results below this cosine
	MinVectorSimilarity = 0.5

	contentWeight  = 0.7
	metadataWeight = 0.3
)

// Document is one stored, searchable unit: a chunk or a symbol
type Document struct {
	ID        string
	Content   string
	Metadata  map[string]string
	Vector    []float32 // Optional; nil for keyword-only documents
	CreatedAt time.Time
}

// Store persists documents and answers keyword and vector queries.
//
// Add upserts by ID: re-adding an ID replaces content, metadata and vector
// but keeps the document's original insertion slot, so equal-score ties in
// Search and SearchByVector always come back in first-insertion order.
type Store interface {
	// Document operations
	Add(ctx context.Context, doc *Document) error
	AddBatch(ctx context.Context, docs []*Document) error
	Get(ctx context.Context, id string) (*Document, error)
	Remove(ctx context.Context, id string) error
	RemoveWhere(ctx context.Context, key, value string) (int, error)
	List(ctx context.Context) ([]*Document, error)

	// Search operations
	Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error)
	SearchByVector(ctx context.Context, vector []float32, limit int) ([]types.SearchResult, error)

	// Run history
	RecordRun(ctx context.Context, run *Run) error
	LastRun(ctx context.Context) (*Run, error)

	// Store operations
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
	Dimension() int
	Close() error
}

// Run records one completed or failed index build
type Run struct {
	ID         string
	Root       string
	Status     string // complete or failed
	Files      int
	Chunks     int
	Symbols    int
	Skipped    int
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}

// Duration returns how long the run took
func (r *Run) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
