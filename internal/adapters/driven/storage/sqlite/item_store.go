package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
)

// itemStore implements driven.ItemStore.
type itemStore struct {
	store *Store
}

var _ driven.ItemStore = (*itemStore)(nil)

// SaveItem creates or updates an item and rewrites its URL index.
func (s *itemStore) SaveItem(ctx context.Context, item *domain.ContentItem) error {
	if item == nil || item.ID == "" || item.URL == "" {
		return domain.ErrInvalidInput
	}
	now := s.store.now()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now
	if item.SourceType == "" {
		item.SourceType = domain.SourceTypeWeb
	}

	return s.store.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO content_items (id, url, source_type, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				url = excluded.url,
				source_type = excluded.source_type,
				updated_at = excluded.updated_at
		`, item.ID, item.URL, string(item.SourceType), formatTime(item.CreatedAt), formatTime(item.UpdatedAt)); err != nil {
			return fmt.Errorf("saving content item: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM content_item_urls WHERE item_id = ?", item.ID); err != nil {
			return fmt.Errorf("clearing item urls: %w", err)
		}

		insert := func(u string, prior bool) error {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO content_item_urls (url_key, item_id, is_prior) VALUES (?, ?, ?)
				ON CONFLICT(url_key, item_id) DO NOTHING
			`, domain.CanonicalURL(u), item.ID, boolToInt(prior))
			return err
		}
		if err := insert(item.URL, false); err != nil {
			return fmt.Errorf("saving item url: %w", err)
		}
		for _, prior := range item.PriorURLs {
			if err := insert(prior, true); err != nil {
				return fmt.Errorf("saving prior url: %w", err)
			}
		}
		return nil
	})
}

// GetItem retrieves an item by ID. Prior URLs come back in canonical form.
func (s *itemStore) GetItem(ctx context.Context, id string) (*domain.ContentItem, error) {
	var item domain.ContentItem
	var sourceType string
	var createdAt, updatedAt sql.NullString

	err := s.store.db.QueryRowContext(ctx, `
		SELECT id, url, source_type, created_at, updated_at FROM content_items WHERE id = ?
	`, id).Scan(&item.ID, &item.URL, &sourceType, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning content item: %w", err)
	}
	item.SourceType = domain.SourceType(sourceType)
	item.CreatedAt = parseNullableTime(createdAt)
	item.UpdatedAt = parseNullableTime(updatedAt)

	priors, err := s.store.db.QueryContext(ctx,
		"SELECT url_key FROM content_item_urls WHERE item_id = ? AND is_prior = 1 ORDER BY url_key", id)
	if err != nil {
		return nil, fmt.Errorf("querying prior urls: %w", err)
	}
	defer priors.Close()
	for priors.Next() {
		var u string
		if err := priors.Scan(&u); err != nil {
			return nil, fmt.Errorf("scanning prior url: %w", err)
		}
		item.PriorURLs = append(item.PriorURLs, u)
	}
	if err := priors.Err(); err != nil {
		return nil, fmt.Errorf("iterating prior urls: %w", err)
	}
	return &item, nil
}

// FindByURL returns the item whose canonical or prior URL matches.
// Canonical matches win over prior ones.
func (s *itemStore) FindByURL(ctx context.Context, url string) (*domain.ContentItem, error) {
	var id string
	err := s.store.db.QueryRowContext(ctx, `
		SELECT item_id FROM content_item_urls
		WHERE url_key = ?
		ORDER BY is_prior, item_id
		LIMIT 1
	`, domain.CanonicalURL(url)).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("finding item by url: %w", err)
	}
	return s.GetItem(ctx, id)
}
