package types

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across components
var (
	// ErrConcurrentRun is returned when an index build is requested while one is active
	ErrConcurrentRun = errors.New("index build already in progress")
	ErrNotFound      = errors.New("not found")
	ErrEmptyQuery    = errors.New("query cannot be empty")
)

// ContentSourceError reports a file the content source could not read
type ContentSourceError struct {
	Path string
	Err  error
}

func (e *ContentSourceError) Error() string {
	return fmt.Sprintf("read %s: %v", e.Path, e.Err)
}

func (e *ContentSourceError) Unwrap() error {
	return e.Err
}

// ParseError represents an error that occurred during structural extraction
type ParseError struct {
	File    string
	Line    int
	Column  int
	Message string
}

// Error implements the error interface
func (pe *ParseError) Error() string {
	if pe.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", pe.File, pe.Line, pe.Column, pe.Message)
	}
	return fmt.Sprintf("%s: %s", pe.File, pe.Message)
}

// EmbeddingBatchError reports a batch that failed to embed
type EmbeddingBatchError struct {
	Batch int    // Zero-based batch index
	Size  int    // Number of texts in the batch
	Stage string // Pipeline stage that requested the batch
	Err   error
}

func (e *EmbeddingBatchError) Error() string {
	return fmt.Sprintf("%s: embedding batch %d (%d texts) failed: %v", e.Stage, e.Batch, e.Size, e.Err)
}

func (e *EmbeddingBatchError) Unwrap() error {
	return e.Err
}

// DimensionMismatchError reports a vector whose length differs from the store's dimension
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("vector dimension mismatch: expected %d, got %d", e.Expected, e.Actual)
}
