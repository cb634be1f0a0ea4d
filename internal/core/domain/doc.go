// Package domain defines the core business entities for the content index.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - ContentItem: An addressable piece of content (id, canonical URL)
//   - ContentText: The acquired text of an item and its index status
//   - ContentChunk: A token-bounded slice of text with its embedding
//   - Job: A durable queue entry driving background indexing
//   - SearchResult: A fused hit returned by hybrid or keyword search
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
