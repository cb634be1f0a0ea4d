package driving

import (
	"context"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

// SearchService provides search capabilities to external actors.
type SearchService interface {
	// HybridSearch fuses keyword and vector lookups with reciprocal rank fusion.
	HybridSearch(ctx context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error)

	// KeywordSearch returns only full-text matches and never embeds the query.
	KeywordSearch(ctx context.Context, query string, limit int) ([]domain.SearchResult, error)

	// RebuildKeywordIndex re-indexes every stored chunk into the search engine.
	RebuildKeywordIndex(ctx context.Context) (int, error)
}
