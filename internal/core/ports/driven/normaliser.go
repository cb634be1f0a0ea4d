package driven

import (
	"context"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

// Normaliser transforms raw documents into plain text.
// Each normaliser handles specific MIME types (e.g., PDF, HTML).
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	// "*/*" matches any type.
	SupportedMIMETypes() []string

	// Priority returns the selection priority (higher = preferred).
	// Generic MIME normalisers should return 50-89.
	// Fallback normalisers should return 1-9.
	Priority() int

	// Normalise extracts text from a raw document.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*NormaliseResult, error)
}

// NormaliseResult contains the output of normalisation.
// Chunking is handled later by the Chunker.
type NormaliseResult struct {
	// Title is the document title, if one was found.
	Title string

	// FullText is the extracted text with paragraph breaks kept.
	FullText string

	// PlainText is FullText with whitespace collapsed.
	PlainText string
}
