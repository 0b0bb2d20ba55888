package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dshills/codeindex/pkg/types"
)

// SQLiteStore implements Store on a SQLite database. Scoring runs in Go over
// every row so results match MemoryStore exactly.
type SQLiteStore struct {
	db *sql.DB

	mu        sync.RWMutex // guards dimension
	dimension int
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Enable WAL mode for better concurrency
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// SQLite benefits from a single writer; it also keeps :memory: databases alive
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// NewSQLiteStore opens (or creates) a store at dbPath. A dimension of 0
// adopts the dimension already recorded in the database, or the first
// vector added.
func NewSQLiteStore(dbPath string, dimension int) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx := context.Background()
	if err := ApplyMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	s := &SQLiteStore{db: db}
	stored, err := s.loadDimension(ctx)
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	switch {
	case stored > 0 && dimension > 0 && stored != dimension:
		_ = db.Close()
		return nil, &types.DimensionMismatchError{Expected: stored, Actual: dimension}
	case stored > 0:
		s.dimension = stored
	case dimension > 0:
		if err := s.saveDimension(ctx, s.db, dimension); err != nil {
			_ = db.Close()
			return nil, err
		}
		s.dimension = dimension
	}

	return s, nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for maintenance commands
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// querier is an interface that both *sql.DB and *sql.Tx implement
type querier interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

func (s *SQLiteStore) loadDimension(ctx context.Context) (int, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, "SELECT value FROM store_settings WHERE key = 'dimension'").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read dimension: %w", err)
	}
	dim, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid stored dimension %q: %w", raw, err)
	}
	return dim, nil
}

func (s *SQLiteStore) saveDimension(ctx context.Context, q querier, dimension int) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO store_settings (key, value) VALUES ('dimension', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, strconv.Itoa(dimension))
	if err != nil {
		return fmt.Errorf("failed to save dimension: %w", err)
	}
	return nil
}

// Document operations

func (s *SQLiteStore) Add(ctx context.Context, doc *Document) error {
	return s.AddBatch(ctx, []*Document{doc})
}

// AddBatch upserts docs in one transaction
func (s *SQLiteStore) AddBatch(ctx context.Context, docs []*Document) error {
	if len(docs) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim := s.dimension
	for _, doc := range docs {
		if err := validateDocument(doc, dim); err != nil {
			return err
		}
		if dim == 0 && len(doc.Vector) > 0 {
			dim = len(doc.Vector)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if dim != s.dimension {
		if err := s.saveDimension(ctx, tx, dim); err != nil {
			return err
		}
	}
	for _, doc := range docs {
		if err := s.upsertWithQuerier(ctx, tx, doc); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit documents: %w", err)
	}
	s.dimension = dim
	return nil
}

func (s *SQLiteStore) upsertWithQuerier(ctx context.Context, q querier, doc *Document) error {
	now := time.Now()
	created := doc.CreatedAt
	if created.IsZero() {
		created = now
	}

	var vector []byte
	if len(doc.Vector) > 0 {
		vector = serializeVector(doc.Vector)
	}

	_, err := q.ExecContext(ctx, `
		INSERT INTO documents (id, content, metadata, vector, dimension, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			content = excluded.content,
			metadata = excluded.metadata,
			vector = excluded.vector,
			dimension = excluded.dimension,
			updated_at = excluded.updated_at
	`, doc.ID, doc.Content, SerializeMetadata(doc.Metadata), vector, len(doc.Vector),
		created.UnixNano(), now.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.ID, err)
	}

	var seq int64
	if err := q.QueryRowContext(ctx, "SELECT seq FROM documents WHERE id = ?", doc.ID).Scan(&seq); err != nil {
		return fmt.Errorf("failed to read document seq: %w", err)
	}

	if _, err := q.ExecContext(ctx, "DELETE FROM document_metadata WHERE doc_seq = ?", seq); err != nil {
		return fmt.Errorf("failed to clear metadata: %w", err)
	}
	for key, value := range doc.Metadata {
		if _, err := q.ExecContext(ctx,
			"INSERT INTO document_metadata (doc_seq, key, value) VALUES (?, ?, ?)",
			seq, key, value); err != nil {
			return fmt.Errorf("failed to insert metadata %s: %w", key, err)
		}
	}

	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*Document, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, content, metadata, vector, created_at
		FROM documents WHERE id = ?
	`, id)

	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("document %s: %w", id, types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// rowScanner is implemented by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*Document, error) {
	var (
		doc      Document
		metadata string
		vector   []byte
		created  int64
	)
	if err := row.Scan(&doc.ID, &doc.Content, &metadata, &vector, &created); err != nil {
		return nil, err
	}
	doc.Metadata = deserializeMetadata(metadata)
	doc.Vector = deserializeVector(vector)
	doc.CreatedAt = time.Unix(0, created)
	return &doc, nil
}

func (s *SQLiteStore) Remove(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM documents WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to remove document: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("document %s: %w", id, types.ErrNotFound)
	}
	return nil
}

// RemoveWhere deletes documents whose metadata[key] equals value
func (s *SQLiteStore) RemoveWhere(ctx context.Context, key, value string) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM documents WHERE seq IN (
			SELECT doc_seq FROM document_metadata WHERE key = ? AND value = ?
		)
	`, key, value)
	if err != nil {
		return 0, fmt.Errorf("failed to remove documents: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// List returns every document in insertion order
func (s *SQLiteStore) List(ctx context.Context) ([]*Document, error) {
	return s.scanAll(ctx, true)
}

func (s *SQLiteStore) scanAll(ctx context.Context, withVectors bool) ([]*Document, error) {
	vectorColumn := "vector"
	if !withVectors {
		vectorColumn = "NULL"
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, metadata, `+vectorColumn+`, created_at
		FROM documents ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := make([]*Document, 0)
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// Search operations

func (s *SQLiteStore) Search(ctx context.Context, query string, limit int) ([]types.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, types.ErrEmptyQuery
	}
	lowerQuery := strings.ToLower(query)

	docs, err := s.scanAll(ctx, false)
	if err != nil {
		return nil, err
	}

	candidates := make([]candidate, 0)
	for _, doc := range docs {
		score := KeywordScore(lowerQuery,
			strings.ToLower(doc.Content),
			strings.ToLower(SerializeMetadata(doc.Metadata)))
		if score > 0 {
			candidates = append(candidates, candidate{doc: doc, score: score})
		}
	}

	return rankCandidates(candidates, limit), nil
}

func (s *SQLiteStore) SearchByVector(ctx context.Context, vector []float32, limit int) ([]types.SearchResult, error) {
	dim := s.Dimension()
	if dim > 0 && len(vector) != dim {
		return nil, &types.DimensionMismatchError{Expected: dim, Actual: len(vector)}
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, metadata, vector, created_at
		FROM documents WHERE dimension > 0 ORDER BY seq
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan vectors: %w", err)
	}
	defer rows.Close()

	candidates := make([]candidate, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		similarity := CosineSimilarity(vector, doc.Vector)
		if similarity < MinVectorSimilarity {
			continue
		}
		candidates = append(candidates, candidate{doc: doc, score: similarity})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return rankCandidates(candidates, limit), nil
}

// Run history

func (s *SQLiteStore) RecordRun(ctx context.Context, run *Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO index_runs (id, root, status, files, chunks, symbols, skipped, error, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, run.ID, run.Root, run.Status, run.Files, run.Chunks, run.Symbols, run.Skipped,
		run.Error, run.StartedAt.UnixNano(), run.FinishedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LastRun(ctx context.Context) (*Run, error) {
	var (
		run               Run
		errText           sql.NullString
		started, finished int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, root, status, files, chunks, symbols, skipped, error, started_at, finished_at
		FROM index_runs ORDER BY finished_at DESC, rowid DESC LIMIT 1
	`).Scan(&run.ID, &run.Root, &run.Status, &run.Files, &run.Chunks, &run.Symbols,
		&run.Skipped, &errText, &started, &finished)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("index run: %w", types.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read last run: %w", err)
	}

	run.Error = errText.String
	run.StartedAt = time.Unix(0, started)
	run.FinishedAt = time.Unix(0, finished)
	return &run, nil
}

// Store operations

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count documents: %w", err)
	}
	return n, nil
}

// Clear removes every document; the dimension and run history are kept
func (s *SQLiteStore) Clear(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM documents"); err != nil {
		return fmt.Errorf("failed to clear documents: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Dimension() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dimension
}
