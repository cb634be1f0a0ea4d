// Package mcp provides an MCP (Model Context Protocol) server adapter.
// It lets AI assistants search the content index and submit content for indexing.
package mcp

import "errors"

// ErrMissingSearchService is returned when the search service is not provided.
var ErrMissingSearchService = errors.New("mcp: search service is required")

// errIndexingUnavailable is returned by indexing tools when no indexing port is wired.
var errIndexingUnavailable = errors.New("mcp: indexing service is not configured")
