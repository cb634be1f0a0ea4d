package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
)

// Ensure ContentStore implements the interface.
var _ driven.ContentStore = (*ContentStore)(nil)

// ContentStore is an in-memory implementation of driven.ContentStore.
type ContentStore struct {
	mu    sync.RWMutex
	texts map[string]domain.ContentText

	// byItem maps a content item ID to its text ID.
	byItem map[string]string

	// chunks holds each text's chunks ordered by index.
	chunks map[string][]domain.ContentChunk
	now    func() time.Time
}

// NewContentStore creates a new in-memory content store.
func NewContentStore() *ContentStore {
	return &ContentStore{
		texts:  make(map[string]domain.ContentText),
		byItem: make(map[string]string),
		chunks: make(map[string][]domain.ContentChunk),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// UpsertText creates or replaces the text row of text.ContentItemID.
func (s *ContentStore) UpsertText(_ context.Context, text *domain.ContentText) error {
	if text == nil || text.ContentItemID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.byItem[text.ContentItemID]; ok {
		text.ID = id
	} else if text.ID == "" {
		text.ID = uuid.NewString()
	}
	text.UpdatedAt = s.now()
	s.texts[text.ID] = *text
	s.byItem[text.ContentItemID] = text.ID
	return nil
}

// MarkPending flips an item's row to pending, creating it if needed.
func (s *ContentStore) MarkPending(_ context.Context, contentItemID string) error {
	return s.setStatus(contentItemID, domain.IndexStatusPending, "")
}

// MarkFailed flips an item's row to failed with message, creating it if needed.
func (s *ContentStore) MarkFailed(_ context.Context, contentItemID, message string) error {
	return s.setStatus(contentItemID, domain.IndexStatusFailed, message)
}

func (s *ContentStore) setStatus(contentItemID string, status domain.IndexStatus, message string) error {
	if contentItemID == "" {
		return domain.ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	text := domain.ContentText{ID: uuid.NewString(), ContentItemID: contentItemID}
	if id, ok := s.byItem[contentItemID]; ok {
		text = s.texts[id]
	}
	text.Status = status
	text.IndexError = message
	text.UpdatedAt = s.now()
	s.texts[text.ID] = text
	s.byItem[contentItemID] = text.ID
	return nil
}

// GetText retrieves a text row by its ID.
func (s *ContentStore) GetText(_ context.Context, id string) (*domain.ContentText, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.texts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &text, nil
}

// GetTextByItem retrieves the text row of a content item.
func (s *ContentStore) GetTextByItem(_ context.Context, contentItemID string) (*domain.ContentText, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byItem[contentItemID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	text := s.texts[id]
	return &text, nil
}

// ReplaceChunks swaps a text's chunks and returns the IDs it removed.
func (s *ContentStore) ReplaceChunks(_ context.Context, contentTextID string, chunks []domain.ContentChunk) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	text, ok := s.texts[contentTextID]
	if !ok {
		return nil, domain.ErrNotFound
	}

	old := s.chunks[contentTextID]
	removed := make([]string, 0, len(old))
	for _, c := range old {
		removed = append(removed, c.ID)
	}

	stored := make([]domain.ContentChunk, len(chunks))
	for i := range chunks {
		if chunks[i].ID == "" {
			chunks[i].ID = uuid.NewString()
		}
		chunks[i].ContentTextID = contentTextID
		chunks[i].ContentItemID = text.ContentItemID
		stored[i] = chunks[i]
		stored[i].Embedding = append([]float32(nil), chunks[i].Embedding...)
	}
	sort.Slice(stored, func(i, j int) bool { return stored[i].Index < stored[j].Index })

	if len(stored) == 0 {
		delete(s.chunks, contentTextID)
	} else {
		s.chunks[contentTextID] = stored
	}
	return removed, nil
}

// GetChunks returns a text's chunks ordered by index.
func (s *ContentStore) GetChunks(_ context.Context, contentTextID string) ([]domain.ContentChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ContentChunk(nil), s.chunks[contentTextID]...), nil
}

// GetChunksByIDs returns the chunks with the given IDs. Unknown IDs are skipped.
func (s *ContentStore) GetChunksByIDs(_ context.Context, ids []string) ([]domain.ContentChunk, error) {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []domain.ContentChunk
	for _, chunks := range s.chunks {
		for _, c := range chunks {
			if want[c.ID] {
				result = append(result, c)
			}
		}
	}
	return result, nil
}

// ForEachChunk calls fn for every stored chunk. The store is snapshotted
// first so fn may call back into it.
func (s *ContentStore) ForEachChunk(ctx context.Context, fn func(domain.ContentChunk) error) error {
	s.mu.RLock()
	var all []domain.ContentChunk
	for _, chunks := range s.chunks {
		all = append(all, chunks...)
	}
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	for _, c := range all {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(c); err != nil {
			return err
		}
	}
	return nil
}
