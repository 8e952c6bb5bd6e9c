package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/compozy/astsearch/engine/paginate"
	"github.com/compozy/astsearch/pkg/config"
	"github.com/compozy/astsearch/pkg/logger"
)

// Server represents the MCP server
type Server struct {
	config    *config.Config
	searcher  Searcher
	streams   StreamController
	paginator *paginate.Paginator
	mcpServer *server.MCPServer
}

// NewServer creates a new MCP server instance
func NewServer(
	cfg *config.Config,
	searcher Searcher,
	streams StreamController,
	paginator *paginate.Paginator,
) *Server {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if paginator == nil {
		paginator = paginate.NewPaginator(cfg.Budgets)
	}
	s := &Server{
		config:    cfg,
		searcher:  searcher,
		streams:   streams,
		paginator: paginator,
	}

	s.mcpServer = server.NewMCPServer(
		"astsearch",
		"1.0.0",
		server.WithToolCapabilities(false), // Static tool set
	)

	s.registerTools()

	return s
}

// Start starts the MCP server
func (s *Server) Start(_ context.Context) error {
	logger.Info("Starting MCP server on stdio")

	// Use stdio transport for CLI integration
	return server.ServeStdio(s.mcpServer)
}

// registerTools registers all MCP tools
func (s *Server) registerTools() {
	s.registerSearchTools()
	s.registerStreamTools()
	s.registerAuditTools()
}

// registerSearchTools registers synchronous search tools
func (s *Server) registerSearchTools() {
	searchDirectoryTool := mcp.NewTool(
		"search_directory",
		mcp.WithDescription(
			"Search a directory tree for an AST pattern; results are paginated to fit the response token budget",
		),
		mcp.WithString("pattern", mcp.Required(), mcp.Description("AST pattern to search for (ast-grep syntax)")),
		mcp.WithString("directory", mcp.Required(), mcp.Description("Directory to search")),
		mcp.WithString("language", mcp.Description("Language filter, e.g. 'python', 'go' (default: detect per file)")),
		mcp.WithString("extensions", mcp.Description("Comma-separated file extension filter, e.g. 'go' or 'py,js'")),
		mcp.WithString("include", mcp.Description("Comma-separated doublestar globs; only matching paths are searched")),
		mcp.WithString("exclude", mcp.Description("Comma-separated doublestar globs; matching paths are skipped")),
		mcp.WithNumber("page", mcp.Description("Page number, 1-based (default: 1)")),
		mcp.WithNumber("page_size", mcp.Description("Results per page (default: computed from the token budget)")),
	)
	s.mcpServer.AddTool(searchDirectoryTool, s.handleSearchDirectory)
}

// registerStreamTools registers chunked streaming tools
func (s *Server) registerStreamTools() {
	createSearchStreamTool := mcp.NewTool(
		"create_search_stream",
		mcp.WithDescription(
			"Start a background search over a directory; results are delivered in ordered chunks via get_stream_chunk",
		),
		mcp.WithString("pattern", mcp.Required(), mcp.Description("AST pattern to search for (ast-grep syntax)")),
		mcp.WithString("directory", mcp.Required(), mcp.Description("Directory to search")),
		mcp.WithString("language", mcp.Description("Language filter, e.g. 'python', 'go'")),
		mcp.WithString("extensions", mcp.Description("Comma-separated file extension filter")),
		mcp.WithString("include", mcp.Description("Comma-separated doublestar globs; only matching paths are searched")),
		mcp.WithString("exclude", mcp.Description("Comma-separated doublestar globs; matching paths are skipped")),
		mcp.WithNumber("chunk_size", mcp.Description("Files per chunk (default: from config)")),
	)
	s.mcpServer.AddTool(createSearchStreamTool, s.handleCreateSearchStream)

	getStreamChunkTool := mcp.NewTool(
		"get_stream_chunk",
		mcp.WithDescription(
			"Retrieve the next chunk of a stream, waiting up to the timeout. "+
				"A timeout on a running stream is not an error; retry until is_final",
		),
		mcp.WithString("stream_id", mcp.Required(), mcp.Description("Stream identifier from create_search_stream")),
		mcp.WithNumber("timeout", mcp.Description("Seconds to wait for the next chunk (default: from config)")),
	)
	s.mcpServer.AddTool(getStreamChunkTool, s.handleGetStreamChunk)

	getStreamProgressTool := mcp.NewTool(
		"get_stream_progress",
		mcp.WithDescription("Get current progress of a stream without consuming a chunk; never blocks"),
		mcp.WithString("stream_id", mcp.Required(), mcp.Description("Stream identifier")),
	)
	s.mcpServer.AddTool(getStreamProgressTool, s.handleGetStreamProgress)

	cancelStreamTool := mcp.NewTool(
		"cancel_stream",
		mcp.WithDescription("Request cancellation of a stream; a final terminal chunk is still delivered"),
		mcp.WithString("stream_id", mcp.Required(), mcp.Description("Stream identifier")),
	)
	s.mcpServer.AddTool(cancelStreamTool, s.handleCancelStream)

	listStreamsTool := mcp.NewTool(
		"list_streams",
		mcp.WithDescription("List all registered streams with their status and progress"),
	)
	s.mcpServer.AddTool(listStreamsTool, s.handleListStreams)
}

// registerAuditTools registers security audit tools
func (s *Server) registerAuditTools() {
	runSecurityAuditTool := mcp.NewTool(
		"run_security_audit",
		mcp.WithDescription(
			"Run heuristic security patterns for a language over a directory, one result stream per pattern",
		),
		mcp.WithString("directory", mcp.Required(), mcp.Description("Directory to audit")),
		mcp.WithString("language", mcp.Required(), mcp.Description("Language to audit, e.g. 'rust', 'python'")),
		mcp.WithString("severities", mcp.Description("Comma-separated severity filter: high, medium, low")),
		mcp.WithNumber("chunk_size", mcp.Description("Files per chunk (default: from config)")),
	)
	s.mcpServer.AddTool(runSecurityAuditTool, s.handleRunSecurityAudit)
}

// Tool handler implementations

func (s *Server) handleSearchDirectory(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pattern, err := req.RequireString("pattern")
	if err != nil {
		return nil, fmt.Errorf("pattern is required: %w", err)
	}
	directory, err := req.RequireString("directory")
	if err != nil {
		return nil, fmt.Errorf("directory is required: %w", err)
	}

	response, err := s.HandleSearchDirectoryInternal(ctx, map[string]any{
		"pattern":    pattern,
		"directory":  directory,
		"language":   getString(req, "language"),
		"extensions": getString(req, "extensions"),
		"include":    getString(req, "include"),
		"exclude":    getString(req, "exclude"),
		"page":       getInt(req, "page"),
		"page_size":  getInt(req, "page_size"),
	})
	if err != nil {
		return nil, err
	}

	return newToolResultFromResponse(response)
}

func (s *Server) handleCreateSearchStream(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pattern, err := req.RequireString("pattern")
	if err != nil {
		return nil, fmt.Errorf("pattern is required: %w", err)
	}
	directory, err := req.RequireString("directory")
	if err != nil {
		return nil, fmt.Errorf("directory is required: %w", err)
	}

	response, err := s.HandleCreateSearchStreamInternal(ctx, map[string]any{
		"pattern":    pattern,
		"directory":  directory,
		"language":   getString(req, "language"),
		"extensions": getString(req, "extensions"),
		"include":    getString(req, "include"),
		"exclude":    getString(req, "exclude"),
		"chunk_size": getInt(req, "chunk_size"),
	})
	if err != nil {
		return nil, err
	}

	return newToolResultFromResponse(response)
}

func (s *Server) handleGetStreamChunk(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	streamID, err := req.RequireString("stream_id")
	if err != nil {
		return nil, err
	}

	response, err := s.HandleGetStreamChunkInternal(ctx, map[string]any{
		"stream_id": streamID,
		"timeout":   getFloat(req, "timeout"),
	})
	if err != nil {
		return nil, err
	}

	return newToolResultFromResponse(response)
}

func (s *Server) handleGetStreamProgress(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	streamID, err := req.RequireString("stream_id")
	if err != nil {
		return nil, err
	}

	response, err := s.HandleGetStreamProgressInternal(ctx, map[string]any{
		"stream_id": streamID,
	})
	if err != nil {
		return nil, err
	}

	return newToolResultFromResponse(response)
}

func (s *Server) handleCancelStream(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	streamID, err := req.RequireString("stream_id")
	if err != nil {
		return nil, err
	}

	response, err := s.HandleCancelStreamInternal(ctx, map[string]any{
		"stream_id": streamID,
	})
	if err != nil {
		return nil, err
	}

	return newToolResultFromResponse(response)
}

func (s *Server) handleListStreams(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	response, err := s.HandleListStreamsInternal(ctx, map[string]any{})
	if err != nil {
		return nil, err
	}

	return newToolResultFromResponse(response)
}

func (s *Server) handleRunSecurityAudit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	directory, err := req.RequireString("directory")
	if err != nil {
		return nil, fmt.Errorf("directory is required: %w", err)
	}
	language, err := req.RequireString("language")
	if err != nil {
		return nil, fmt.Errorf("language is required: %w", err)
	}

	response, err := s.HandleRunSecurityAuditInternal(ctx, map[string]any{
		"directory":  directory,
		"language":   language,
		"severities": getString(req, "severities"),
		"chunk_size": getInt(req, "chunk_size"),
	})
	if err != nil {
		return nil, err
	}

	return newToolResultFromResponse(response)
}
