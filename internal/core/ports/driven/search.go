package driven

import (
	"context"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

// SearchEngine is the keyword side of hybrid search. It indexes chunk text
// and answers term queries with engine-scored hits.
type SearchEngine interface {
	// Index adds a chunk, replacing any earlier version with the same ID.
	Index(ctx context.Context, chunk domain.ContentChunk) error

	Delete(ctx context.Context, chunkID string) error

	// Search returns at most limit hits, best first.
	Search(ctx context.Context, query string, limit int) ([]SearchHit, error)

	Count() (uint64, error)

	Close() error
}

// SearchHit is one keyword match. Score is engine-specific and only
// comparable within a single result list.
type SearchHit struct {
	ChunkID string
	Score   float64
}
