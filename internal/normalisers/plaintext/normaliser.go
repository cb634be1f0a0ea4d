// Package plaintext normalises text-like payloads and catches every MIME
// type no other normaliser claims.
package plaintext

import (
	"bytes"
	"context"
	"unicode/utf8"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
	"github.com/custodia-labs/contentindex/internal/normalisers/textclean"
)

var _ driven.Normaliser = (*Normaliser)(nil)

// fallbackPriority keeps this normaliser below every specific one.
const fallbackPriority = 5

var mimeTypes = []string{
	"text/plain",
	"text/csv",
	"application/json",
	"application/xml",
	"text/xml",
	"*/*",
}

// Normaliser passes UTF-8 text through with whitespace cleaned up.
type Normaliser struct{}

func New() *Normaliser { return &Normaliser{} }

func (*Normaliser) SupportedMIMETypes() []string { return mimeTypes }

func (*Normaliser) Priority() int { return fallbackPriority }

// Normalise yields no text for content that is not valid UTF-8, so binary
// payloads end up as "no content" rather than garbage chunks.
func (*Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	title, _ := raw.Metadata["title"].(string)
	body := raw.Content
	if !utf8.Valid(body) {
		body = nil
	}
	body = bytes.TrimPrefix(body, []byte("\xef\xbb\xbf"))
	return textclean.Result(title, string(body)), nil
}
