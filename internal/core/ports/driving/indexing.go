package driving

import (
	"context"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

// IndexingService is the entry point for getting content into the index.
type IndexingService interface {
	// IndexContent indexes a batch. The first SyncThreshold items are processed
	// inline; the rest are queued. When indexing is disabled every item is
	// reported failed with ErrorKindDisabled and no work is done.
	IndexContent(ctx context.Context, items []domain.IndexRequest) (*domain.IndexingStats, error)

	// RegisterItem records an item and its URL without indexing it.
	// A changed URL is kept as a prior URL.
	RegisterItem(ctx context.Context, contentItemID, url string) (*domain.ContentItem, error)

	// IndexSingleItem acquires, chunks, embeds and stores one item.
	// The returned error is non-nil whenever the item ended up failed.
	IndexSingleItem(ctx context.Context, contentItemID, url string) (domain.ItemResult, error)

	// IndexFromExistingContent re-chunks and re-embeds text already stored
	// for a ContentText, skipping acquisition.
	IndexFromExistingContent(ctx context.Context, contentTextID string) (domain.ItemResult, error)

	// OnContentChanged is called by the metadata layer when an item's URL
	// or content changes.
	OnContentChanged(ctx context.Context, contentItemID, url string) (domain.ItemResult, error)

	// GetIndexStatus returns the status projection of an item.
	GetIndexStatus(ctx context.Context, contentItemID string) (*domain.IndexStatusView, error)

	// QueueStats reports background job counts.
	QueueStats(ctx context.Context) (domain.QueueStats, error)

	// Enabled reports the kill switch state.
	Enabled() bool

	// SetEnabled flips the kill switch.
	SetEnabled(enabled bool)
}
