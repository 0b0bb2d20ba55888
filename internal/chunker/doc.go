// Package chunker divides source files into semantic chunks for embedding and search.
//
// Chunks are created at natural code boundaries so each one carries a
// complete unit of meaning.
//
// # Basic Usage
//
//	p := parser.New()
//	c := chunker.New()
//
//	ext, err := c.Extract(p, file)
//	if err != nil {
//	    // ext holds the whole-file fallback; err is a *types.ParseError
//	    log.Printf("parse failed: %v", err)
//	}
//
//	for _, chunk := range ext.Chunks {
//	    fmt.Printf("%s chunk, lines %d-%d, %d symbols\n",
//	        chunk.Kind, chunk.StartLine, chunk.EndLine, len(chunk.Symbols))
//	}
//
// # Chunking Strategy
//
// Each function, class or interface symbol with a span becomes a chunk:
//   - Function: the declaration through its closing brace (or dedent)
//   - Class: the full class body, including its methods
//   - Interface: the full interface body
//
// Nested declarations produce overlapping chunks; a method appears both in
// its own chunk and inside its class chunk. A chunk owns every symbol whose
// declaration line falls inside its span.
//
// Files without such spans get a single chunk covering every line: kind
// "module" when the file declared other symbols, "file" otherwise. The
// same whole-file chunk is the fallback for unsupported languages and
// failed parses. Empty files produce no chunks.
//
// # Content Hashing
//
// Every chunk computes a SHA-256 hash of its content and derives its ID from
// the relative path, kind, line range and that hash:
//
//	chunk.ComputeID()
//
// Re-chunking an unchanged file reproduces the same IDs, which lets the
// indexer tell unchanged chunks from added and removed ones.
package chunker
