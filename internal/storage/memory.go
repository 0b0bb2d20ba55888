package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dshills/codeindex/pkg/types"
)

// ErrInvalidDocument is returned for documents without an ID
var ErrInvalidDocument = errors.New("invalid document")

// memoryEntry caches the lowercased search forms of a document
type memoryEntry struct {
	doc           *Document
	lowerContent  string
	lowerMetadata string
}

// MemoryStore keeps documents in a map with an insertion-order slice
type MemoryStore struct {
	mu        sync.RWMutex
	entries   map[string]*memoryEntry
	order     []string
	dimension int
	runs      []*Run
}

// NewMemoryStore creates an in-memory store. A dimension of 0 is fixed by
// the first vector added.
func NewMemoryStore(dimension int) *MemoryStore {
	return &MemoryStore{
		entries:   make(map[string]*memoryEntry),
		dimension: dimension,
	}
}

func (m *MemoryStore) Add(ctx context.Context, doc *Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addLocked(doc)
}

// AddBatch adds every document or none: all are validated first
func (m *MemoryStore) AddBatch(ctx context.Context, docs []*Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	dim := m.dimension
	for _, doc := range docs {
		if err := validateDocument(doc, dim); err != nil {
			return err
		}
		if dim == 0 && len(doc.Vector) > 0 {
			dim = len(doc.Vector)
		}
	}
	for _, doc := range docs {
		if err := m.addLocked(doc); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryStore) addLocked(doc *Document) error {
	if err := validateDocument(doc, m.dimension); err != nil {
		return err
	}
	if m.dimension == 0 && len(doc.Vector) > 0 {
		m.dimension = len(doc.Vector)
	}

	stored := copyDocument(doc)
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}

	if existing, exists := m.entries[doc.ID]; exists {
		stored.CreatedAt = existing.doc.CreatedAt
	} else {
		m.order = append(m.order, doc.ID)
	}
	m.entries[doc.ID] = &memoryEntry{
		doc:           stored,
		lowerContent:  strings.ToLower(stored.Content),
		lowerMetadata: strings.ToLower(SerializeMetadata(stored.Metadata)),
	}
	return nil
}

func validateDocument(doc *Document, dimension int) error {
	if doc == nil || doc.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidDocument)
	}
	if dimension > 0 && len(doc.Vector) > 0 && len(doc.Vector) != dimension {
		return &types.DimensionMismatchError{Expected: dimension, Actual: len(doc.Vector)}
	}
	return nil
}

func (m *MemoryStore) Get(ctx context.Context, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("document %s: %w", id, types.ErrNotFound)
	}
	return copyDocument(entry.doc), nil
}

func (m *MemoryStore) Remove(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[id]; !ok {
		return fmt.Errorf("document %s: %w", id, types.ErrNotFound)
	}
	delete(m.entries, id)
	m.compactOrder()
	return nil
}

// RemoveWhere deletes documents whose metadata[key] equals value
func (m *MemoryStore) RemoveWhere(ctx context.Context, key, value string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, entry := range m.entries {
		if v, ok := entry.doc.Metadata[key]; ok && v == value {
			delete(m.entries, id)
			removed++
		}
	}
	if removed > 0 {
		m.compactOrder()
	}
	return removed, nil
}

// compactOrder drops removed IDs from the order slice; caller holds the lock
func (m *MemoryStore) compactOrder() {
	kept := m.order[:0]
	for _, id := range m.order {
		if _, ok := m.entries[id]; ok {
			kept = append(kept, id)
		}
	}
	m.order = kept
}

// List returns every document in insertion order
func (m *MemoryStore) List(ctx context.Context) ([]*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]*Document, 0, len(m.order))
	for _, id := range m.order {
		docs = append(docs, copyDocument(m.entries[id].doc))
	}
	return docs, nil
}

func (m *MemoryStore) Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, types.ErrEmptyQuery
	}
	lowerQuery := strings.ToLower(query)

	m.mu.RLock()
	defer m.mu.RUnlock()

	candidates := make([]candidate, 0)
	for _, id := range m.order {
		entry := m.entries[id]
		score := KeywordScore(lowerQuery, entry.lowerContent, entry.lowerMetadata)
		if score > 0 {
			candidates = append(candidates, candidate{doc: entry.doc, score: score})
		}
	}

	return rankCandidates(candidates, limit), nil
}

func (m *MemoryStore) SearchByVector(ctx context.Context, vector []float32, limit int) ([]types.SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.dimension > 0 && len(vector) != m.dimension {
		return nil, &types.DimensionMismatchError{Expected: m.dimension, Actual: len(vector)}
	}

	candidates := make([]candidate, 0)
	for _, id := range m.order {
		doc := m.entries[id].doc
		if len(doc.Vector) == 0 {
			continue
		}
		similarity := CosineSimilarity(vector, doc.Vector)
		if similarity < MinVectorSimilarity {
			continue
		}
		candidates = append(candidates, candidate{doc: doc, score: similarity})
	}

	return rankCandidates(candidates, limit), nil
}

func (m *MemoryStore) RecordRun(ctx context.Context, run *Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := *run
	m.runs = append(m.runs, &stored)
	return nil
}

func (m *MemoryStore) LastRun(ctx context.Context) (*Run, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if len(m.runs) == 0 {
		return nil, fmt.Errorf("index run: %w", types.ErrNotFound)
	}
	last := *m.runs[len(m.runs)-1]
	return &last, nil
}

func (m *MemoryStore) Count(ctx context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Clear removes every document; the dimension and run history are kept
func (m *MemoryStore) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*memoryEntry)
	m.order = nil
	return nil
}

func (m *MemoryStore) Dimension() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.dimension
}

func (m *MemoryStore) Close() error {
	return nil
}
