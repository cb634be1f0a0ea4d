package memory

import (
	"context"
	"sync"
	"time"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
)

// Ensure ItemStore implements the interface.
var _ driven.ItemStore = (*ItemStore)(nil)

// ItemStore is an in-memory implementation of driven.ItemStore.
type ItemStore struct {
	mu    sync.RWMutex
	items map[string]domain.ContentItem
}

// NewItemStore creates a new in-memory item store.
func NewItemStore() *ItemStore {
	return &ItemStore{items: make(map[string]domain.ContentItem)}
}

// SaveItem stores or updates an item. URLs are kept in canonical form.
func (s *ItemStore) SaveItem(_ context.Context, item *domain.ContentItem) error {
	if item == nil || item.ID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.items[item.ID]; ok {
		item.CreatedAt = existing.CreatedAt
	} else if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	stored := *item
	stored.PriorURLs = make([]string, 0, len(item.PriorURLs))
	for _, u := range item.PriorURLs {
		stored.PriorURLs = append(stored.PriorURLs, domain.CanonicalURL(u))
	}
	s.items[item.ID] = stored
	return nil
}

// GetItem retrieves an item by ID.
func (s *ItemStore) GetItem(_ context.Context, id string) (*domain.ContentItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	item.PriorURLs = append([]string(nil), item.PriorURLs...)
	return &item, nil
}

// FindByURL matches canonical URLs before prior URLs.
func (s *ItemStore) FindByURL(_ context.Context, rawURL string) (*domain.ContentItem, error) {
	key := domain.CanonicalURL(rawURL)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var prior *domain.ContentItem
	for _, item := range s.items {
		if domain.CanonicalURL(item.URL) == key {
			found := item
			return &found, nil
		}
		if prior != nil {
			continue
		}
		for _, u := range item.PriorURLs {
			if u == key {
				found := item
				prior = &found
				break
			}
		}
	}
	if prior == nil {
		return nil, domain.ErrNotFound
	}
	return prior, nil
}
