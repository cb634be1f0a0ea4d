package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/contentindex/internal/adapters/driving/httpapi"
)

var (
	serveAddr     string
	serveOrigins  []string
	serveNoWorker bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Serves the REST API under /api/v1 together with the background worker
and the queue maintenance scheduler.

Endpoints:
  POST /api/v1/index                       index a batch of {id,url} items
  POST /api/v1/items/{id}/changed          re-index an item
  POST /api/v1/content-texts/{id}/reindex  re-index stored text
  GET  /api/v1/items/{id}/status           index status
  GET  /api/v1/search?q=&limit=&mode=      hybrid or keyword search
  GET  /api/v1/indexing, PUT /api/v1/indexing  kill switch
  GET  /api/v1/queue                       job counts`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().StringSliceVar(&serveOrigins, "cors-origin", nil, "allowed CORS origins (default http://localhost:*)")
	serveCmd.Flags().BoolVar(&serveNoWorker, "no-worker", false, "do not process queued jobs in this process")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	server, err := httpapi.NewServer(&httpapi.Ports{
		Indexing: indexingService,
		Search:   searchService,
		Settings: settingsService,
	}, httpapi.WithAllowedOrigins(serveOrigins...))
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "HTTP API listening on %s\n", serveAddr)

	serveHTTP := func(ctx context.Context) error {
		return server.Run(ctx, serveAddr)
	}
	if serveNoWorker {
		return serveHTTP(cmd.Context())
	}
	return runBackground(cmd.Context(), serveHTTP)
}
