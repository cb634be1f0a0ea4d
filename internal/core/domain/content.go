package domain

import (
	"net/url"
	"strings"
	"time"
)

// SourceType identifies where a content item's text comes from.
type SourceType string

// Known source types.
const (
	SourceTypeWeb   SourceType = "web"
	SourceTypeVideo SourceType = "video"
	SourceTypeAPI   SourceType = "api"
)

// ContentItem is an addressable piece of content.
// The metadata layer owns it; the index only reads its id and URL.
type ContentItem struct {
	// ID is the unique identifier for the item.
	ID string

	// URL is the canonical location of the item.
	URL string

	// PriorURLs holds URLs the item was previously known by.
	PriorURLs []string

	// SourceType describes how the item's text is acquired.
	SourceType SourceType

	// CreatedAt is when the item was registered.
	CreatedAt time.Time

	// UpdatedAt is when the item was last changed.
	UpdatedAt time.Time
}

// CanonicalURL normalises a URL for identity comparison: scheme and host
// are lower-cased, the fragment is dropped and a trailing slash on the path
// is removed. Unparseable input is returned trimmed.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

// IndexStatus is the lifecycle state of a ContentText.
type IndexStatus string

// Index statuses.
const (
	IndexStatusPending IndexStatus = "pending"
	IndexStatusIndexed IndexStatus = "indexed"
	IndexStatusFailed  IndexStatus = "failed"
)

// IsValid returns true if the status is recognised.
func (s IndexStatus) IsValid() bool {
	switch s {
	case IndexStatusPending, IndexStatusIndexed, IndexStatusFailed:
		return true
	default:
		return false
	}
}

// NoContentMessage is stored as the index error of items whose
// acquisition succeeded but produced no text.
const NoContentMessage = "no content available"

// ContentText is the acquired text of exactly one ContentItem.
type ContentText struct {
	// ID is the unique identifier for the text row.
	ID string

	// ContentItemID links to the owning ContentItem. Unique.
	ContentItemID string

	// FullText is the extracted text before whitespace normalisation.
	FullText string

	// PlainText is the normalised text that is chunked and hashed.
	PlainText string

	// WordCount is the number of whitespace-separated words in PlainText.
	WordCount int

	// TokenCount is the number of tokens in PlainText.
	TokenCount int

	// ContentHash is the hex SHA-256 of PlainText.
	ContentHash string

	// Status is the indexing lifecycle state.
	Status IndexStatus

	// IndexError holds the failure message when Status is failed.
	IndexError string

	// CrawledAt is when the text was last acquired.
	CrawledAt *time.Time

	// IndexedAt is when the text was last indexed successfully.
	IndexedAt *time.Time

	// UpdatedAt is when the row last changed.
	UpdatedAt time.Time
}

// ContentChunk is a token-bounded slice of a ContentText.
type ContentChunk struct {
	// ID is the unique identifier for the chunk.
	ID string

	// ContentTextID links to the parent ContentText.
	ContentTextID string

	// ContentItemID is denormalised for search hydration.
	ContentItemID string

	// Index is the 0-based position within the text.
	Index int

	// Text is the chunk content.
	Text string

	// TokenCount is the number of tokens in Text.
	TokenCount int

	// Embedding is nil when embedding generation failed for this chunk.
	Embedding []float32
}

// TextChunk is the chunker's output before ids are assigned.
type TextChunk struct {
	Text       string
	Index      int
	TokenCount int
}

// IndexStatusView is the read-only status projection exposed to collaborators.
type IndexStatusView struct {
	ContentItemID string      `json:"content_item_id"`
	Status        IndexStatus `json:"status"`
	Error         string      `json:"error,omitempty"`
	WordCount     int         `json:"word_count"`
	TokenCount    int         `json:"token_count"`
	ChunkCount    int         `json:"chunk_count"`
	IndexedAt     *time.Time  `json:"indexed_at,omitempty"`
}
