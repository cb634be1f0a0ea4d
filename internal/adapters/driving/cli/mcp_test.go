package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/contentindex/internal/adapters/driving/mcp"
)

func TestMCPServeCmd_Flags(t *testing.T) {
	port := mcpServeCmd.Flags().Lookup("port")
	require.NotNil(t, port)
	assert.Equal(t, "p", port.Shorthand)
	assert.Equal(t, "0", port.DefValue)

	worker := mcpServeCmd.Flags().Lookup("worker")
	require.NotNil(t, worker)
	assert.Equal(t, "false", worker.DefValue)
}

func TestMCPServe_RequiresSearch(t *testing.T) {
	_, cleanup := setupTestServices()
	defer cleanup()
	searchService = nil

	_, err := execute("mcp", "serve")

	assert.ErrorIs(t, err, mcp.ErrMissingSearchService)
}
