package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
)

// contentStore implements driven.ContentStore.
type contentStore struct {
	store *Store
}

var _ driven.ContentStore = (*contentStore)(nil)

const textColumns = `id, content_item_id, full_text, plain_text, word_count, token_count,
	content_hash, status, index_error, crawled_at, indexed_at, updated_at`

const chunkColumns = `id, content_text_id, content_item_id, chunk_index, text, token_count, embedding`

// UpsertText creates or replaces the text row keyed by content item.
func (s *contentStore) UpsertText(ctx context.Context, text *domain.ContentText) error {
	if text == nil || text.ContentItemID == "" {
		return domain.ErrInvalidInput
	}
	if text.ID == "" {
		text.ID = uuid.NewString()
	}
	if text.Status == "" {
		text.Status = domain.IndexStatusPending
	}
	text.UpdatedAt = s.store.now()

	row := s.store.db.QueryRowContext(ctx, `
		INSERT INTO content_texts (`+textColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_item_id) DO UPDATE SET
			full_text = excluded.full_text,
			plain_text = excluded.plain_text,
			word_count = excluded.word_count,
			token_count = excluded.token_count,
			content_hash = excluded.content_hash,
			status = excluded.status,
			index_error = excluded.index_error,
			crawled_at = excluded.crawled_at,
			indexed_at = excluded.indexed_at,
			updated_at = excluded.updated_at
		RETURNING id
	`, text.ID, text.ContentItemID, text.FullText, text.PlainText, text.WordCount, text.TokenCount,
		text.ContentHash, string(text.Status), nullString(text.IndexError),
		formatTimePtr(text.CrawledAt), formatTimePtr(text.IndexedAt), formatTime(text.UpdatedAt))

	if err := row.Scan(&text.ID); err != nil {
		return fmt.Errorf("saving content text: %w", err)
	}
	return nil
}

// MarkPending creates a pending placeholder or flips an existing row to pending.
func (s *contentStore) MarkPending(ctx context.Context, contentItemID string) error {
	return s.setStatus(ctx, contentItemID, domain.IndexStatusPending, "")
}

// MarkFailed records a failure on an item's row, creating it if needed.
func (s *contentStore) MarkFailed(ctx context.Context, contentItemID, message string) error {
	return s.setStatus(ctx, contentItemID, domain.IndexStatusFailed, message)
}

func (s *contentStore) setStatus(ctx context.Context, contentItemID string, status domain.IndexStatus, message string) error {
	if contentItemID == "" {
		return domain.ErrInvalidInput
	}
	now := formatTime(s.store.now())
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO content_texts (id, content_item_id, status, index_error, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(content_item_id) DO UPDATE SET
			status = excluded.status,
			index_error = excluded.index_error,
			updated_at = excluded.updated_at
	`, uuid.NewString(), contentItemID, string(status), nullString(message), now)
	if err != nil {
		return fmt.Errorf("setting content status to %s: %w", status, err)
	}
	return nil
}

// GetText retrieves a text row by ID.
func (s *contentStore) GetText(ctx context.Context, id string) (*domain.ContentText, error) {
	row := s.store.db.QueryRowContext(ctx, `SELECT `+textColumns+` FROM content_texts WHERE id = ?`, id)
	return scanText(row)
}

// GetTextByItem retrieves the text row of a content item.
func (s *contentStore) GetTextByItem(ctx context.Context, contentItemID string) (*domain.ContentText, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+textColumns+` FROM content_texts WHERE content_item_id = ?`, contentItemID)
	return scanText(row)
}

// ReplaceChunks swaps a text's chunk set atomically.
func (s *contentStore) ReplaceChunks(ctx context.Context, contentTextID string, chunks []domain.ContentChunk) ([]string, error) {
	var oldIDs []string

	err := s.store.withTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, "SELECT id FROM content_chunks WHERE content_text_id = ?", contentTextID)
		if err != nil {
			return fmt.Errorf("querying existing chunks: %w", err)
		}
		for rows.Next() {
			var id string
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return fmt.Errorf("scanning chunk id: %w", err)
			}
			oldIDs = append(oldIDs, id)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterating chunk ids: %w", err)
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM content_chunks WHERE content_text_id = ?", contentTextID); err != nil {
			return fmt.Errorf("deleting chunks: %w", err)
		}

		stmt, err := tx.PrepareContext(ctx, `INSERT INTO content_chunks (`+chunkColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("preparing statement: %w", err)
		}
		defer stmt.Close()

		for i := range chunks {
			chunk := &chunks[i]
			if chunk.ID == "" {
				chunk.ID = uuid.NewString()
			}
			chunk.ContentTextID = contentTextID
			if _, err := stmt.ExecContext(ctx, chunk.ID, contentTextID, chunk.ContentItemID,
				chunk.Index, chunk.Text, chunk.TokenCount, float32SliceToBytes(chunk.Embedding)); err != nil {
				return fmt.Errorf("saving chunk %d: %w", chunk.Index, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return oldIDs, nil
}

// GetChunks returns a text's chunks ordered by index.
func (s *contentStore) GetChunks(ctx context.Context, contentTextID string) ([]domain.ContentChunk, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+chunkColumns+` FROM content_chunks
		WHERE content_text_id = ?
		ORDER BY chunk_index
	`, contentTextID)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	return collectChunks(rows)
}

// GetChunksByIDs returns the chunks with the given IDs.
func (s *contentStore) GetChunksByIDs(ctx context.Context, ids []string) ([]domain.ContentChunk, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	rows, err := s.store.db.QueryContext(ctx,
		`SELECT `+chunkColumns+` FROM content_chunks WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks by id: %w", err)
	}
	return collectChunks(rows)
}

// forEachPage is the number of chunks loaded per ForEachChunk query.
const forEachPage = 500

// ForEachChunk calls fn for every stored chunk, paging by id so no
// cursor is held open while fn runs.
func (s *contentStore) ForEachChunk(ctx context.Context, fn func(domain.ContentChunk) error) error {
	after := ""
	for {
		rows, err := s.store.db.QueryContext(ctx, `
			SELECT `+chunkColumns+` FROM content_chunks
			WHERE id > ?
			ORDER BY id
			LIMIT ?
		`, after, forEachPage)
		if err != nil {
			return fmt.Errorf("querying chunks: %w", err)
		}
		page, err := collectChunks(rows)
		if err != nil {
			return err
		}
		for _, chunk := range page {
			if err := fn(chunk); err != nil {
				return err
			}
		}
		if len(page) < forEachPage {
			return nil
		}
		after = page[len(page)-1].ID
	}
}

// ==================== Scanning ====================

func scanText(row rowScanner) (*domain.ContentText, error) {
	var text domain.ContentText
	var status string
	var indexError, crawledAt, indexedAt, updatedAt sql.NullString

	if err := row.Scan(&text.ID, &text.ContentItemID, &text.FullText, &text.PlainText,
		&text.WordCount, &text.TokenCount, &text.ContentHash, &status, &indexError,
		&crawledAt, &indexedAt, &updatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning content text: %w", err)
	}

	text.Status = domain.IndexStatus(status)
	text.IndexError = indexError.String
	text.CrawledAt = parseTimePtr(crawledAt)
	text.IndexedAt = parseTimePtr(indexedAt)
	text.UpdatedAt = parseNullableTime(updatedAt)
	return &text, nil
}

func scanChunk(row rowScanner) (*domain.ContentChunk, error) {
	var chunk domain.ContentChunk
	var embedding []byte

	if err := row.Scan(&chunk.ID, &chunk.ContentTextID, &chunk.ContentItemID,
		&chunk.Index, &chunk.Text, &chunk.TokenCount, &embedding); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scanning chunk: %w", err)
	}
	chunk.Embedding = bytesToFloat32Slice(embedding)
	return &chunk, nil
}

// collectChunks drains and closes rows.
func collectChunks(rows *sql.Rows) ([]domain.ContentChunk, error) {
	defer rows.Close()

	var chunks []domain.ContentChunk //nolint:prealloc // size unknown from query
	for rows.Next() {
		chunk, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating chunks: %w", err)
	}
	return chunks, nil
}

// float32SliceToBytes encodes a vector as little-endian float32s.
// A nil vector is stored as NULL.
func float32SliceToBytes(floats []float32) []byte {
	if len(floats) == 0 {
		return nil
	}
	buf := make([]byte, len(floats)*4)
	for i, f := range floats {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// bytesToFloat32Slice converts a byte slice back to []float32.
func bytesToFloat32Slice(data []byte) []float32 {
	if len(data) == 0 || len(data)%4 != 0 {
		return nil
	}
	floats := make([]float32, len(data)/4)
	for i := range floats {
		floats[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return floats
}
