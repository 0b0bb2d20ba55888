// Package mcp implements the Model Context Protocol (MCP) server for codeindex.
//
// The server exposes one Indexer to AI coding assistants as seven tools:
//   - index_codebase: Build the index for a project directory
//   - search_code: Ranked search over chunk and symbol documents
//   - search_symbols: Ranked search restricted to symbol documents
//   - get_status: Index state and statistics
//   - update_file: Re-index one file, re-embedding only what changed
//   - remove_file: Drop one file from the index
//   - clear_index: Delete every indexed document
//
// # Protocol Overview
//
// MCP is JSON-RPC 2.0 over stdio:
//
//	Client → Server: {"method": "tools/call", "params": {...}}
//	Server → Client: {"result": {...}}
//
// Stdout carries the protocol, so all logging goes to stderr.
//
// # Basic Usage
//
//	codeindex serve
//
// # Tool: index_codebase
//
//	Request:
//	{
//	  "name": "index_codebase",
//	  "arguments": {
//	    "path": "/path/to/project",
//	    "exclude_patterns": ["vendor/**", "*.min.js"]
//	  }
//	}
//
//	Response:
//	{
//	  "indexed": true,
//	  "files_indexed": 247,
//	  "files_skipped": 3,
//	  "symbols_extracted": 8432,
//	  "chunks_created": 1904,
//	  "duration_ms": 3520,
//	  "skipped": [{"path": "dist/app.js", "reason": "exceeds max size (2097152 > 1048576 bytes)"}]
//	}
//
// A second index_codebase while one is running fails immediately with
// ErrorCodeIndexingInProgress.
//
// # Tool: search_code
//
//	Request:
//	{
//	  "name": "search_code",
//	  "arguments": {
//	    "query": "load configuration from yaml",
//	    "limit": 5,
//	    "search_mode": "hybrid",
//	    "file_types": ["go"],
//	    "symbol_kinds": ["function"]
//	  }
//	}
//
// Each result carries its rank, composite score, location (file, language,
// kind, name, lines), content, and the per-signal breakdown (semantic,
// keyword, topic, entity, recency, popularity).
//
// # Error Codes
//
//	-32602  Invalid parameters
//	-32603  Internal error
//	-32001  Project path is not a readable directory
//	-32002  Indexing already in progress
//	-32003  Nothing indexed yet (update_file before index_codebase)
//	-32004  Empty query
//	-32005  File not readable from the indexed source
package mcp
