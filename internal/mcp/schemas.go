package mcp

import (
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/dshills/codeindex/internal/searcher"
)

// Tool names
const (
	ToolIndexCodebase = "index_codebase"
	ToolSearchCode    = "search_code"
	ToolSearchSymbols = "search_symbols"
	ToolGetStatus     = "get_status"
	ToolUpdateFile    = "update_file"
	ToolRemoveFile    = "remove_file"
	ToolClearIndex    = "clear_index"
)

var symbolKinds = []string{"function", "class", "interface", "type", "enum", "variable", "import", "export", "module", "file"}

func stringArray(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": description,
		"items":       map[string]interface{}{"type": "string"},
	}
}

// indexCodebaseTool returns the tool definition for index_codebase
func indexCodebaseTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolIndexCodebase,
		Description: "Index a source tree (symbols and structural chunks) so it can be searched. Replaces any previous index.",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "Absolute path to the project root",
				},
				"include_patterns": stringArray("Glob patterns for files to include, e.g. '*.ts' or 'src/**'. Empty includes everything."),
				"exclude_patterns": stringArray("Glob patterns for files to exclude. Takes precedence over includes."),
				"max_file_size": map[string]interface{}{
					"type":        "integer",
					"description": "Skip files larger than this many bytes",
					"default":     1048576,
					"minimum":     1,
				},
			},
			Required: []string{"path"},
		},
	}
}

// searchProperties are shared by search_code and search_symbols
func searchProperties() map[string]interface{} {
	return map[string]interface{}{
		"query": map[string]interface{}{
			"type":        "string",
			"description": "Search query (natural language or keywords)",
		},
		"limit": map[string]interface{}{
			"type":        "integer",
			"description": "Maximum number of results to return",
			"default":     10,
			"minimum":     1,
			"maximum":     searcher.MaxLimit,
		},
		"search_mode": map[string]interface{}{
			"type":        "string",
			"description": "hybrid (vector + keyword), vector (semantic only) or keyword (substring only)",
			"enum":        []string{string(searcher.SearchModeHybrid), string(searcher.SearchModeVector), string(searcher.SearchModeKeyword)},
			"default":     string(searcher.SearchModeHybrid),
		},
		"file_types": stringArray("Restrict to file extensions without the dot, e.g. 'go', 'ts'"),
		"symbol_kinds": map[string]interface{}{
			"type":        "array",
			"description": "Restrict to chunk or symbol kinds",
			"items": map[string]interface{}{
				"type": "string",
				"enum": symbolKinds,
			},
		},
		"language": map[string]interface{}{
			"type":        "string",
			"description": "Restrict to one language, e.g. 'typescript'",
		},
		"topics":   stringArray("Boost results whose extracted topics match any of these"),
		"entities": stringArray("Boost results whose extracted entities match any of these"),
		"min_similarity": map[string]interface{}{
			"type":        "number",
			"description": "Minimum vector similarity for results without a keyword match (0.0-1.0)",
			"minimum":     0.0,
			"maximum":     1.0,
		},
	}
}

// searchCodeTool returns the tool definition for search_code
func searchCodeTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolSearchCode,
		Description: "Search indexed code chunks and symbols with natural language or keyword queries",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: searchProperties(),
			Required:   []string{"query"},
		},
	}
}

// searchSymbolsTool returns the tool definition for search_symbols
func searchSymbolsTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolSearchSymbols,
		Description: "Search indexed symbols (functions, classes, interfaces, types) only",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: searchProperties(),
			Required:   []string{"query"},
		},
	}
}

// getStatusTool returns the tool definition for get_status
func getStatusTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolGetStatus,
		Description: "Report index state and statistics",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}

func fileTool(name, description string) mcp.Tool {
	return mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"path": map[string]interface{}{
					"type":        "string",
					"description": "File path, absolute or relative to the indexed root",
				},
			},
			Required: []string{"path"},
		},
	}
}

// updateFileTool returns the tool definition for update_file
func updateFileTool() mcp.Tool {
	return fileTool(ToolUpdateFile, "Re-index one file of the indexed project, re-embedding only changed chunks and symbols")
}

// removeFileTool returns the tool definition for remove_file
func removeFileTool() mcp.Tool {
	return fileTool(ToolRemoveFile, "Remove one file's chunks and symbols from the index")
}

// clearIndexTool returns the tool definition for clear_index
func clearIndexTool() mcp.Tool {
	return mcp.Tool{
		Name:        ToolClearIndex,
		Description: "Delete every indexed document",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}
}
