package mcp

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

const defaultLimit = 10

// SearchInput is the input schema for the search tools.
type SearchInput struct {
	Query string `json:"query" jsonschema:"the search query"`
	Limit int    `json:"limit,omitempty" jsonschema:"maximum number of results to return (default 10)"`
}

// SearchOutput is the output schema for the search tools.
type SearchOutput struct {
	Results []SearchResultOutput `json:"results"`
	Count   int                  `json:"count"`
}

// SearchResultOutput represents a single search result.
type SearchResultOutput struct {
	ContentItemID string   `json:"content_item_id"`
	ChunkID       string   `json:"chunk_id"`
	Score         float64  `json:"score"`
	MatchType     string   `json:"match_type"`
	Snippet       string   `json:"snippet"`
	MatchedTerms  []string `json:"matched_terms,omitempty"`
	Content       string   `json:"content,omitempty"`
}

// IndexContentInput is the input schema for the index_content tool.
type IndexContentInput struct {
	Items []IndexItemInput `json:"items" jsonschema:"content items to index"`
}

// IndexItemInput names one item to index.
type IndexItemInput struct {
	ID  string `json:"id" jsonschema:"the content item id"`
	URL string `json:"url" jsonschema:"the URL to acquire text from"`
}

// IndexStatusInput is the input schema for the index_status tool.
type IndexStatusInput struct {
	ContentItemID string `json:"content_item_id" jsonschema:"the content item id"`
}

// IndexStatusOutput is the output schema for the index_status tool.
type IndexStatusOutput struct {
	ContentItemID string `json:"content_item_id"`
	Status        string `json:"status"`
	Error         string `json:"error,omitempty"`
	WordCount     int    `json:"word_count"`
	TokenCount    int    `json:"token_count"`
	ChunkCount    int    `json:"chunk_count"`
	IndexedAt     string `json:"indexed_at,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "hybrid_search",
		Description: "Search indexed content combining keyword and semantic matches",
	}, s.handleHybridSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "keyword_search",
		Description: "Search indexed content by keywords only",
	}, s.handleKeywordSearch)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "index_content",
		Description: "Index content items by URL; large batches are queued for background processing",
	}, s.handleIndexContent)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "index_status",
		Description: "Report the index status of a content item",
	}, s.handleIndexStatus)
}

// handleHybridSearch handles the hybrid_search tool invocation.
func (s *Server) handleHybridSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	opts := domain.SearchOptions{Limit: limitOrDefault(input.Limit)}
	results, err := s.ports.Search.HybridSearch(ctx, input.Query, opts)
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, toSearchOutput(results), nil
}

// handleKeywordSearch handles the keyword_search tool invocation.
func (s *Server) handleKeywordSearch(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input SearchInput,
) (*mcp.CallToolResult, SearchOutput, error) {
	results, err := s.ports.Search.KeywordSearch(ctx, input.Query, limitOrDefault(input.Limit))
	if err != nil {
		return nil, SearchOutput{}, err
	}
	return nil, toSearchOutput(results), nil
}

// handleIndexContent handles the index_content tool invocation.
func (s *Server) handleIndexContent(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndexContentInput,
) (*mcp.CallToolResult, domain.IndexingStats, error) {
	if s.ports.Indexing == nil {
		return nil, domain.IndexingStats{}, errIndexingUnavailable
	}

	items := make([]domain.IndexRequest, len(input.Items))
	for i, item := range input.Items {
		items[i] = domain.IndexRequest{ID: item.ID, URL: item.URL}
	}

	stats, err := s.ports.Indexing.IndexContent(ctx, items)
	if err != nil {
		return nil, domain.IndexingStats{}, err
	}
	return nil, *stats, nil
}

// handleIndexStatus handles the index_status tool invocation.
func (s *Server) handleIndexStatus(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input IndexStatusInput,
) (*mcp.CallToolResult, IndexStatusOutput, error) {
	if s.ports.Indexing == nil {
		return nil, IndexStatusOutput{}, errIndexingUnavailable
	}

	view, err := s.ports.Indexing.GetIndexStatus(ctx, input.ContentItemID)
	if err != nil {
		return nil, IndexStatusOutput{}, err
	}

	out := IndexStatusOutput{
		ContentItemID: view.ContentItemID,
		Status:        string(view.Status),
		Error:         view.Error,
		WordCount:     view.WordCount,
		TokenCount:    view.TokenCount,
		ChunkCount:    view.ChunkCount,
	}
	if view.IndexedAt != nil {
		out.IndexedAt = view.IndexedAt.UTC().Format(time.RFC3339)
	}
	return nil, out, nil
}

func limitOrDefault(limit int) int {
	if limit <= 0 {
		return defaultLimit
	}
	return limit
}

func toSearchOutput(results []domain.SearchResult) SearchOutput {
	output := SearchOutput{
		Results: make([]SearchResultOutput, len(results)),
		Count:   len(results),
	}

	for i := range results {
		output.Results[i] = SearchResultOutput{
			ContentItemID: results[i].ContentItemID,
			ChunkID:       results[i].ChunkID,
			Score:         results[i].RelevanceScore,
			MatchType:     string(results[i].MatchType),
			Snippet:       results[i].Snippet,
			MatchedTerms:  results[i].MatchedTerms,
			Content:       results[i].ChunkText,
		}
	}

	return output
}
