// Package types provides shared type definitions for the codeindex engine.
//
// This package defines domain types used across multiple components,
// including source files, symbols, chunks, parse results, search results,
// and the error taxonomy surfaced by the indexing pipeline.
//
// # Core Types
//
// SourceFile is what a content source yields for each file:
//
//	file := &types.SourceFile{
//	    Path:         "/repo/src/math.ts",
//	    RelativePath: "src/math.ts",
//	    Content:      content,
//	    Language:     "typescript",
//	}
//
// Symbol represents a named declaration found on one line of a file:
//
//	symbol := types.Symbol{
//	    Name: "add",
//	    Kind: types.KindFunction,
//	    Line: 3,
//	}
//
// Chunk represents a contiguous span of source (one function body, one class)
// that is embedded and searched as a unit. Chunks own the symbols declared
// inside their span:
//
//	chunk := &types.Chunk{
//	    StartLine: 3,
//	    EndLine:   5,
//	    Kind:      types.ChunkFunction,
//	}
//	chunk.ComputeID()
//
// Chunk IDs are derived from the relative path, kind, line range and content
// hash, so re-parsing an unchanged file reproduces the same IDs.
//
// # Errors
//
// The pipeline distinguishes:
//
//	*ContentSourceError     // a file could not be read; skipped
//	*ParseError             // extraction failed; whole-file fallback used
//	*EmbeddingBatchError    // a batch failed to embed; run aborted
//	ErrConcurrentRun        // a build is already active
//	*DimensionMismatchError // query vector has the wrong length
//
// Match them with errors.Is and errors.As.
package types
