package normalisers

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
	"github.com/custodia-labs/contentindex/internal/normalisers/html"
	"github.com/custodia-labs/contentindex/internal/normalisers/markdown"
	"github.com/custodia-labs/contentindex/internal/normalisers/pdf"
	"github.com/custodia-labs/contentindex/internal/normalisers/plaintext"
	"github.com/custodia-labs/contentindex/internal/normalisers/transcript"
)

// Ensure Registry implements the interface.
var _ driven.NormaliserRegistry = (*Registry)(nil)

const wildcard = "*/*"

// Registry dispatches raw documents to the highest-priority normaliser
// registered for their MIME type.
type Registry struct {
	mu     sync.RWMutex
	byMIME map[string][]driven.Normaliser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byMIME: make(map[string][]driven.Normaliser)}
}

// Default returns a registry holding every built-in normaliser.
func Default(opts ...html.Option) *Registry {
	r := NewRegistry()
	r.Register(html.New(opts...))
	r.Register(markdown.New())
	r.Register(pdf.New())
	r.Register(transcript.New())
	r.Register(plaintext.New())
	return r
}

// Register adds a normaliser to the registry.
func (r *Registry) Register(n driven.Normaliser) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, mt := range n.SupportedMIMETypes() {
		mt = strings.ToLower(mt)
		list := append(r.byMIME[mt], n)
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Priority() > list[j].Priority()
		})
		r.byMIME[mt] = list
	}
}

// Normalise picks a normaliser for raw.MIMEType and runs it. A missing
// MIME type is sniffed from the content.
func (r *Registry) Normalise(ctx context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	mt := MediaType(raw.MIMEType)
	if mt == "" {
		mt = MediaType(http.DetectContentType(raw.Content))
	}

	n := r.lookup(mt)
	if n == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedType, mt)
	}
	return n.Normalise(ctx, raw)
}

func (r *Registry) lookup(mt string) driven.Normaliser {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if list := r.byMIME[mt]; len(list) > 0 {
		return list[0]
	}
	if list := r.byMIME[wildcard]; len(list) > 0 {
		return list[0]
	}
	return nil
}

// SupportedMIMETypes returns all MIME types that can be normalised.
func (r *Registry) SupportedMIMETypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.byMIME))
	for mt := range r.byMIME {
		if mt != wildcard {
			types = append(types, mt)
		}
	}
	sort.Strings(types)
	return types
}

// MediaType strips parameters from a Content-Type value and lower-cases it.
func MediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		mt = strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	}
	return strings.ToLower(mt)
}
