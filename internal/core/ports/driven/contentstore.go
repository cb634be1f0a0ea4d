package driven

import (
	"context"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

// ContentStore persists ContentText rows and their chunks.
// There is exactly one ContentText per ContentItem.
type ContentStore interface {
	// UpsertText creates or replaces the text row keyed by ContentItemID.
	// The stored row's ID is written back to text.ID.
	UpsertText(ctx context.Context, text *domain.ContentText) error

	// MarkPending creates a placeholder pending row for an item,
	// or flips an existing row back to pending without touching its text.
	MarkPending(ctx context.Context, contentItemID string) error

	// MarkFailed sets an item's row to failed with message,
	// creating the row if it does not exist.
	MarkFailed(ctx context.Context, contentItemID, message string) error

	// GetText retrieves a text row by its ID.
	GetText(ctx context.Context, id string) (*domain.ContentText, error)

	// GetTextByItem retrieves the text row of a content item.
	GetTextByItem(ctx context.Context, contentItemID string) (*domain.ContentText, error)

	// ReplaceChunks deletes every chunk of a text and inserts chunks in one
	// transaction. It returns the IDs of the deleted chunks.
	ReplaceChunks(ctx context.Context, contentTextID string, chunks []domain.ContentChunk) ([]string, error)

	// GetChunks returns a text's chunks ordered by index.
	GetChunks(ctx context.Context, contentTextID string) ([]domain.ContentChunk, error)

	// GetChunksByIDs returns the chunks with the given IDs, in no particular order.
	// Unknown IDs are skipped.
	GetChunksByIDs(ctx context.Context, ids []string) ([]domain.ContentChunk, error)

	// ForEachChunk calls fn for every stored chunk.
	ForEachChunk(ctx context.Context, fn func(domain.ContentChunk) error) error
}

// ItemStore provides ContentItem lookups.
// Items are owned by the metadata layer; the index only reads them,
// apart from registering items for standalone use.
type ItemStore interface {
	// SaveItem creates or updates an item.
	SaveItem(ctx context.Context, item *domain.ContentItem) error

	// GetItem retrieves an item by ID.
	GetItem(ctx context.Context, id string) (*domain.ContentItem, error)

	// FindByURL returns the item whose canonical or prior URL matches url.
	// Returns domain.ErrNotFound when no item matches.
	FindByURL(ctx context.Context, url string) (*domain.ContentItem, error)
}
