// Package indexer drives the index pipeline and serves queries over it.
//
// An Indexer owns a parser, a chunker, an embedding engine and a searcher
// over a storage.Store. CreateIndex runs one build through four stages:
//
//  1. Scanning: list the content source and apply include, exclude and size filters
//  2. Parsing: read each file and extract symbols and chunks (bounded worker pool)
//  3. Embedding: embed every chunk and symbol document in batches
//  4. Storing: replace each file's documents and prune files that disappeared
//
// # Basic Usage
//
//	engine := embedder.NewEngine(embedder.NewHashProvider(embedder.HashDimension))
//	idx := indexer.New(storage.NewMemoryStore(engine.Dimension()), engine)
//
//	src, _ := source.NewFilesystem("/path/to/project")
//	stats, err := idx.CreateIndex(ctx, indexer.Options{
//	    Source:          src,
//	    ExcludePatterns: []string{"**/*_test.go"},
//	    OnProgress: func(p indexer.Progress) {
//	        fmt.Printf("%s %d/%d %s\n", p.Stage, p.Current, p.Total, p.Message)
//	    },
//	})
//
//	resp, err := idx.Search(ctx, indexer.SearchOptions{Query: "parse config"})
//
// # States
//
// The state moves idle -> scanning -> parsing -> embedding -> storing ->
// complete. A failed or cancelled build returns to idle and surfaces the
// error; documents stored before the failure stay in place. Progress is
// reported through Options.OnProgress after every file scanned, file
// parsed, batch embedded and document stored.
//
// # Skips
//
// Files rejected by the filter or unreadable by the source are skipped and
// listed in Statistics.Skipped. A file whose parse fails is still indexed
// as one whole-file chunk and also listed there.
//
// # Concurrency
//
// Only one build runs at a time; a second CreateIndex fails at once with
// types.ErrConcurrentRun. UpdateFile and RemoveFile may run alongside
// searches, are serialized per path and fail with types.ErrConcurrentRun
// while a build is running.
//
// # Documents
//
// Each chunk and each symbol becomes one document. Metadata carries
// doc_type, file_path, relative_path, language, file_type, kind,
// start_line, end_line, name and chunk_id. IDs derive from location and
// content, so rebuilding an unchanged file reproduces the same IDs and
// UpdateFile re-embeds only what changed.
package indexer
