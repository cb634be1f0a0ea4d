package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for content index resources.
	uriScheme = "contentindex://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for queue counts.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "queue",
		Name:        "queue",
		Description: "Background indexing job counts per state",
		MIMEType:    "application/json",
	}, s.handleQueueResource)

	// Template for an item's index status.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "items/{itemId}/status",
		Name:        "item-status",
		Description: "Index status of a specific content item",
		MIMEType:    "application/json",
	}, s.handleItemStatusResource)
}

// handleQueueResource returns the indexing queue statistics.
func (s *Server) handleQueueResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Indexing == nil {
		return jsonResource(req.Params.URI, domain.QueueStats{Queue: domain.QueueIndexContent})
	}

	stats, err := s.ports.Indexing.QueueStats(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading queue stats: %w", err)
	}
	return jsonResource(req.Params.URI, stats)
}

// handleItemStatusResource returns the status of one content item.
func (s *Server) handleItemStatusResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	if s.ports.Indexing == nil {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	// Extract itemId from URI: contentindex://items/{itemId}/status
	itemID := extractItemID(req.Params.URI)
	if itemID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	view, err := s.ports.Indexing.GetIndexStatus(ctx, itemID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("getting index status: %w", err)
	}
	return jsonResource(req.Params.URI, view)
}

func jsonResource(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractItemID extracts the item ID from a URI like contentindex://items/{itemId}/status.
func extractItemID(uri string) string {
	const prefix = uriScheme + "items/"
	const suffix = "/status"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	uri = strings.TrimPrefix(uri, prefix)
	if !strings.HasSuffix(uri, suffix) {
		return ""
	}

	return strings.TrimSuffix(uri, suffix)
}
