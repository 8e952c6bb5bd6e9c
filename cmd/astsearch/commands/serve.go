package commands

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/compozy/astsearch/engine/mcp"
	"github.com/compozy/astsearch/engine/paginate"
	"github.com/compozy/astsearch/engine/search"
	"github.com/compozy/astsearch/engine/stream"
	"github.com/compozy/astsearch/pkg/logger"
)

// serveMCPCmd represents the serve-mcp command
var serveMCPCmd = &cobra.Command{
	Use:   "serve-mcp",
	Short: "Start the MCP server exposing search tools to LLM applications",
	Long: `Start the Model Context Protocol (MCP) server on stdio. LLM applications get
structural code search as tools: synchronous paginated search, chunked result
streams with progress and cancellation, and per-language security audits.

Exposed tools:
  • search_directory       paginated synchronous search
  • create_search_stream   background search delivering ordered chunks
  • get_stream_chunk       next chunk (timeout on a running stream is retryable)
  • get_stream_progress    non-blocking progress snapshot
  • cancel_stream          cooperative cancellation
  • list_streams           registry snapshot
  • run_security_audit     one stream per security pattern

Examples:
  # Start the server (stdio transport)
  astsearch serve-mcp

  # With a custom configuration file
  astsearch serve-mcp --config astsearch.yaml`,
	RunE: runServeMCP,
}

var initServeOnce sync.Once

// RegisterMCPCommand registers the serve-mcp command with the root command
func RegisterMCPCommand() {
	initServeOnce.Do(func() {
		rootCmd.AddCommand(serveMCPCmd)
	})
}

func runServeMCP(_ *cobra.Command, _ []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// The stdio transport owns stdout; keep the logger off it entirely
	logger.Disable()

	engine := search.NewEngine(cfg.EngineSettings())
	controller := stream.NewController(cfg.StreamConfig())
	defer controller.Close()

	paginator := paginate.NewPaginatorWithTunables(cfg.Budgets, cfg.PaginatorTunables())
	server := mcp.NewServer(cfg, engine, controller, paginator)

	runServerWithGracefulShutdown(ctx, cancel, server)
	return nil
}

func runServerWithGracefulShutdown(ctx context.Context, cancel context.CancelFunc, server *mcp.Server) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		if err := server.Start(ctx); err != nil {
			logger.Error("MCP server error", "error", err)
			cancel()
		}
	}()

	select {
	case <-sigChan:
		logger.Info("Received shutdown signal")
	case <-ctx.Done():
		logger.Info("Context canceled")
	}

	logger.Info("Shutting down MCP server...")
}
