package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"github.com/dshills/codeindex/internal/indexer"
	"github.com/dshills/codeindex/internal/searcher"
	"github.com/dshills/codeindex/internal/source"
	"github.com/dshills/codeindex/pkg/types"
)

// MCP error codes
const (
	ErrorCodeInvalidParams      = -32602 // Invalid method parameters
	ErrorCodeInternalError      = -32603 // Internal JSON-RPC error
	ErrorCodeProjectNotFound    = -32001 // Specified path is not a readable directory
	ErrorCodeIndexingInProgress = -32002 // Another indexing operation is already running
	ErrorCodeNotIndexed         = -32003 // No index build has run yet
	ErrorCodeEmptyQuery         = -32004 // Query parameter is empty
	ErrorCodeFileNotFound       = -32005 // File cannot be read from the indexed source
)

// maxReportedSkips caps the skipped file list in index_codebase responses
const maxReportedSkips = 5

// handleIndexCodebase handles the index_codebase tool invocation
func (s *Server) handleIndexCodebase(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := request.RequireString("path")
	if err != nil || path == "" {
		return nil, newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}

	if err := validatePath(path); err != nil {
		return nil, newMCPError(ErrorCodeProjectNotFound, "invalid path", map[string]interface{}{
			"param":  "path",
			"reason": err.Error(),
		})
	}

	src, err := source.NewFilesystem(path)
	if err != nil {
		return nil, newMCPError(ErrorCodeProjectNotFound, "cannot open project", map[string]interface{}{
			"error": err.Error(),
		})
	}

	opts := indexer.Options{
		Source:           src,
		IncludePatterns:  request.GetStringSlice("include_patterns", nil),
		ExcludePatterns:  request.GetStringSlice("exclude_patterns", nil),
		MaxFileSizeBytes: int64(request.GetInt("max_file_size", 0)),
		OnProgress: func(p indexer.Progress) {
			s.logger.Debug("index progress",
				zap.Stringer("stage", p.Stage),
				zap.Int("current", p.Current),
				zap.Int("total", p.Total))
		},
	}

	stats, err := s.indexer.CreateIndex(ctx, opts)
	if err != nil {
		return nil, toMCPError("indexing failed", err)
	}

	response := map[string]interface{}{
		"indexed":           true,
		"run_id":            stats.RunID,
		"files_scanned":     stats.FilesScanned,
		"files_indexed":     stats.FilesIndexed,
		"files_skipped":     stats.FilesSkipped,
		"files_fallback":    stats.FilesFallback,
		"symbols_extracted": stats.SymbolsExtracted,
		"chunks_created":    stats.ChunksCreated,
		"documents_stored":  stats.DocumentsStored,
		"documents_removed": stats.DocumentsRemoved,
		"duration_ms":       stats.Duration.Milliseconds(),
	}

	if len(stats.Skipped) > 0 {
		skipped := stats.Skipped
		if len(skipped) > maxReportedSkips {
			skipped = skipped[:maxReportedSkips]
		}
		reported := make([]map[string]string, len(skipped))
		for i, sk := range skipped {
			reported[i] = map[string]string{"path": sk.Path, "reason": sk.Reason}
		}
		response["skipped"] = reported
	}

	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleSearchCode handles the search_code tool invocation
func (s *Server) handleSearchCode(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts, err := searchOptions(request)
	if err != nil {
		return nil, err
	}
	resp, err := s.indexer.Search(ctx, opts)
	if err != nil {
		return nil, toMCPError("search failed", err)
	}
	return mcp.NewToolResultText(formatJSON(searchResponse(opts.Query, resp))), nil
}

// handleSearchSymbols handles the search_symbols tool invocation
func (s *Server) handleSearchSymbols(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	opts, err := searchOptions(request)
	if err != nil {
		return nil, err
	}
	resp, err := s.indexer.SearchSymbols(ctx, opts)
	if err != nil {
		return nil, toMCPError("symbol search failed", err)
	}
	return mcp.NewToolResultText(formatJSON(searchResponse(opts.Query, resp))), nil
}

// searchOptions validates the arguments shared by the search tools
func searchOptions(request mcp.CallToolRequest) (indexer.SearchOptions, error) {
	query := request.GetString("query", "")
	if query == "" {
		return indexer.SearchOptions{}, newMCPError(ErrorCodeEmptyQuery, "query parameter is required and cannot be empty", map[string]interface{}{
			"param":  "query",
			"reason": "missing or empty",
		})
	}

	limit := request.GetInt("limit", indexer.DefaultMaxResults)
	if limit < 1 || limit > searcher.MaxLimit {
		return indexer.SearchOptions{}, newMCPError(ErrorCodeInvalidParams, fmt.Sprintf("limit must be between 1 and %d", searcher.MaxLimit), map[string]interface{}{
			"param": "limit",
			"value": limit,
		})
	}

	mode := searcher.SearchMode(request.GetString("search_mode", string(searcher.SearchModeHybrid)))
	switch mode {
	case searcher.SearchModeHybrid, searcher.SearchModeVector, searcher.SearchModeKeyword:
	default:
		return indexer.SearchOptions{}, newMCPError(ErrorCodeInvalidParams, "invalid search_mode", map[string]interface{}{
			"param":   "search_mode",
			"value":   mode,
			"allowed": []string{"hybrid", "vector", "keyword"},
		})
	}

	minSimilarity := request.GetFloat("min_similarity", 0)
	if minSimilarity < 0 || minSimilarity > 1 {
		return indexer.SearchOptions{}, newMCPError(ErrorCodeInvalidParams, "min_similarity must be between 0 and 1", map[string]interface{}{
			"param": "min_similarity",
			"value": minSimilarity,
		})
	}

	return indexer.SearchOptions{
		Query:            query,
		FileTypeFilter:   request.GetStringSlice("file_types", nil),
		SymbolKindFilter: request.GetStringSlice("symbol_kinds", nil),
		LanguageFilter:   request.GetString("language", ""),
		Topics:           request.GetStringSlice("topics", nil),
		Entities:         request.GetStringSlice("entities", nil),
		MaxResults:       limit,
		MinSimilarity:    minSimilarity,
		Mode:             mode,
	}, nil
}

func searchResponse(query string, resp *indexer.SearchResponse) map[string]interface{} {
	return map[string]interface{}{
		"query":       query,
		"mode":        resp.Mode,
		"total":       resp.Total,
		"duration_ms": resp.Duration.Milliseconds(),
		"results":     resp.Hits,
	}
}

// handleGetStatus handles the get_status tool invocation
func (s *Server) handleGetStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats, err := s.indexer.GetStats(ctx)
	if err != nil {
		return nil, toMCPError("failed to get status", err)
	}

	if stats.TotalDocuments == 0 && stats.LastRun == nil {
		response := map[string]interface{}{
			"indexed": false,
			"state":   stats.State,
			"message": "Nothing indexed. Use the index_codebase tool to index a project.",
		}
		return mcp.NewToolResultText(formatJSON(response)), nil
	}

	response := map[string]interface{}{
		"indexed":    stats.TotalDocuments > 0,
		"state":      stats.State,
		"statistics": stats,
	}
	return mcp.NewToolResultText(formatJSON(response)), nil
}

// handleUpdateFile handles the update_file tool invocation
func (s *Server) handleUpdateFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := requirePath(request)
	if err != nil {
		return nil, err
	}
	result, err := s.indexer.UpdateFile(ctx, path)
	if err != nil {
		return nil, toMCPError("update failed", err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"updated": result.Skipped == "",
		"result":  result,
	})), nil
}

// handleRemoveFile handles the remove_file tool invocation
func (s *Server) handleRemoveFile(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := requirePath(request)
	if err != nil {
		return nil, err
	}
	removed, err := s.indexer.RemoveFile(ctx, path)
	if err != nil {
		return nil, toMCPError("remove failed", err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{
		"path":    path,
		"removed": removed,
	})), nil
}

// handleClearIndex handles the clear_index tool invocation
func (s *Server) handleClearIndex(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if err := s.indexer.ClearIndex(ctx); err != nil {
		return nil, toMCPError("clear failed", err)
	}
	return mcp.NewToolResultText(formatJSON(map[string]interface{}{"cleared": true})), nil
}

// Helper functions

func requirePath(request mcp.CallToolRequest) (string, error) {
	path, err := request.RequireString("path")
	if err != nil || path == "" {
		return "", newMCPError(ErrorCodeInvalidParams, "path parameter is required", map[string]interface{}{
			"param":  "path",
			"reason": "missing or empty",
		})
	}
	return path, nil
}

// toMCPError maps indexer errors onto MCP error codes
func toMCPError(message string, err error) error {
	data := map[string]interface{}{"error": err.Error()}

	var srcErr *types.ContentSourceError
	switch {
	case errors.Is(err, types.ErrConcurrentRun):
		return newMCPError(ErrorCodeIndexingInProgress, "an index build is already running", data)
	case errors.Is(err, types.ErrEmptyQuery):
		return newMCPError(ErrorCodeEmptyQuery, "query cannot be empty", data)
	case errors.Is(err, indexer.ErrNoSource):
		return newMCPError(ErrorCodeNotIndexed, "project not indexed; use index_codebase first", data)
	case errors.As(err, &srcErr), errors.Is(err, types.ErrNotFound):
		return newMCPError(ErrorCodeFileNotFound, message, data)
	case errors.Is(err, searcher.ErrVectorRequired), errors.Is(err, searcher.ErrInvalidWeights):
		return newMCPError(ErrorCodeInvalidParams, message, data)
	default:
		return newMCPError(ErrorCodeInternalError, message, data)
	}
}

// newMCPError creates a properly formatted MCP error
func newMCPError(code int, message string, data interface{}) error {
	// MCP errors are returned as regular errors, the framework handles encoding
	return &MCPError{
		Code:    code,
		Message: message,
		Data:    data,
	}
}

// MCPError represents an MCP protocol error
type MCPError struct {
	Code    int
	Message string
	Data    interface{}
}

func (e *MCPError) Error() string {
	return fmt.Sprintf("MCP error %d: %s", e.Code, e.Message)
}

// validatePath checks that path is an absolute, readable directory
func validatePath(path string) error {
	if path == "" {
		return ErrPathRequired
	}
	if !filepath.IsAbs(path) {
		return ErrPathNotAbsolute
	}

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return ErrPathNotFound
	}
	if err != nil {
		return ErrPathNotReadable
	}
	if !info.IsDir() {
		return ErrNotDirectory
	}

	f, err := os.Open(path)
	if err != nil {
		return ErrPathNotReadable
	}
	_ = f.Close()
	return nil
}

// formatJSON formats a map as indented JSON
func formatJSON(data map[string]interface{}) string {
	bytes, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", data)
	}
	return string(bytes)
}

// Validation helpers

var (
	ErrPathRequired    = errors.New("path is required")
	ErrPathNotAbsolute = errors.New("path must be absolute")
	ErrPathNotFound    = errors.New("path does not exist")
	ErrPathNotReadable = errors.New("path is not readable")
	ErrNotDirectory    = errors.New("path is not a directory")
)
