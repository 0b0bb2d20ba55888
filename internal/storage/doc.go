// Package storage keeps indexed documents and answers keyword and vector
// queries over them.
//
// A Document is one chunk or symbol: an ID, its text, string metadata and an
// optional embedding vector. Two Store backends share the same semantics:
//
//   - MemoryStore: a mutex-guarded map plus an insertion-order slice
//   - SQLiteStore: a SQLite database with versioned migrations
//
// # Basic Usage
//
//	store, err := storage.Open(storage.Config{
//	    Backend:   "sqlite",
//	    DSN:       ".codeindex/index.db",
//	    Dimension: 128,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	err = store.Add(ctx, &storage.Document{
//	    ID:       "chunk:3f2a...",
//	    Content:  "add(a, b) { return a + b }",
//	    Metadata: map[string]string{"language": "typescript"},
//	    Vector:   vec,
//	})
//
// # Keyword Search
//
// Search scores each document by substring containment of the lowercased
// query: 0.7 when it occurs in the content, plus 0.3 when it occurs in the
// serialized metadata (JSON, sorted keys). Zero scores are dropped, results
// are sorted by descending score and Distance is 1 - Score.
//
// # Vector Search
//
// SearchByVector computes cosine similarity against every stored vector and
// drops anything below 0.5. A query vector whose length differs from the
// store dimension fails with *types.DimensionMismatchError.
//
// Both searches sort stably: equal scores come back in first-insertion
// order, and upserting an existing ID keeps its original position.
//
// # Database Schema
//
// Tables:
//   - documents: id, content, metadata JSON, vector blob (little-endian float32)
//   - document_metadata: key/value rows backing RemoveWhere
//   - store_settings: the fixed vector dimension
//   - index_runs: build history (schema 1.1.0)
//   - schema_version: applied migrations, compared as semantic versions
//
// # Build Modes
//
// The default build uses modernc.org/sqlite (pure Go). Building with
// -tags sqlite_vec switches to github.com/mattn/go-sqlite3 (CGO).
package storage
