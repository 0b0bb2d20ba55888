package mcp

import (
	"context"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/dshills/codeindex/internal/indexer"
)

const (
	// ServerName is the MCP server name
	ServerName = "codeindex"
	// DefaultVersion is reported when no build version is set
	DefaultVersion = "dev"
)

// Server exposes an Indexer as MCP tools
type Server struct {
	mcp     *server.MCPServer
	indexer *indexer.Indexer
	logger  *zap.Logger
	version string
}

// Option configures a Server
type Option func(*Server)

// WithLogger sets the server logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithVersion sets the version reported to clients
func WithVersion(v string) Option {
	return func(s *Server) {
		if v != "" {
			s.version = v
		}
	}
}

// NewServer creates an MCP server over idx with every tool registered
func NewServer(idx *indexer.Indexer, opts ...Option) *Server {
	s := &Server{
		indexer: idx,
		logger:  zap.NewNop(),
		version: DefaultVersion,
	}
	for _, opt := range opts {
		opt(s)
	}

	s.mcp = server.NewMCPServer(
		ServerName,
		s.version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	s.registerTools()
	return s
}

// Serve runs the server on stdio until ctx is canceled or stdin closes
func (s *Server) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcp)
	stdio.SetErrorLogger(zap.NewStdLog(s.logger))
	s.logger.Info("mcp server listening on stdio", zap.String("version", s.version))
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.mcp.AddTool(indexCodebaseTool(), s.handleIndexCodebase)
	s.mcp.AddTool(searchCodeTool(), s.handleSearchCode)
	s.mcp.AddTool(searchSymbolsTool(), s.handleSearchSymbols)
	s.mcp.AddTool(getStatusTool(), s.handleGetStatus)
	s.mcp.AddTool(updateFileTool(), s.handleUpdateFile)
	s.mcp.AddTool(removeFileTool(), s.handleRemoveFile)
	s.mcp.AddTool(clearIndexTool(), s.handleClearIndex)
}
