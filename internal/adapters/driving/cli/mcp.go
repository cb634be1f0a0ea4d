package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/contentindex/internal/adapters/driving/mcp"
)

var (
	mcpPort   int
	mcpWorker bool
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Model Context Protocol server",
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Expose search and indexing to AI assistants",
	Long: `Serves the hybrid_search, keyword_search, index_content and index_status
tools plus queue and item status resources over MCP.

Stdio is used unless --port is given. Assistant configuration:

  {"mcpServers": {"contentindex": {"command": "contentindex", "args": ["mcp", "serve"]}}}

Queued items are only processed when --worker is set or a separate
"contentindex worker" is running.`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "serve streamable HTTP on this port instead of stdio")
	mcpServeCmd.Flags().BoolVar(&mcpWorker, "worker", false, "also process queued jobs in this process")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	server, err := mcp.NewServer(&mcp.Ports{
		Search:   searchService,
		Indexing: indexingService,
	}, mcp.WithVersion(version))
	if err != nil {
		return err
	}

	serve := server.Run
	if mcpPort > 0 {
		addr := fmt.Sprintf(":%d", mcpPort)
		serve = func(ctx context.Context) error {
			return server.RunHTTP(ctx, addr)
		}
	}

	if !mcpWorker {
		return serve(cmd.Context())
	}
	return runBackground(cmd.Context(), serve)
}
