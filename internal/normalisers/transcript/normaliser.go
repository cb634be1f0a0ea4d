// Package transcript provides a Normaliser for caption files (WebVTT, SRT).
// Cue timings, cue ids and inline styling are removed and the remaining
// lines are joined into continuous prose.
package transcript

import (
	"context"
	"html"
	"regexp"
	"strings"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
	"github.com/custodia-labs/contentindex/internal/normalisers/textclean"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles caption tracks.
type Normaliser struct{}

// New creates a new transcript normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/vtt", "application/x-subrip", "text/srt"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 60
}

// Normalise turns a caption track into prose.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	var title string
	if raw.Metadata != nil {
		title, _ = raw.Metadata["title"].(string)
	}
	return textclean.Result(title, ToProse(string(raw.Content))), nil
}

var (
	timingLine = regexp.MustCompile(`^\s*(\d{1,2}:)?\d{1,2}:\d{2}[.,]\d{3}\s+-->\s+`)
	cueID      = regexp.MustCompile(`^\d+$`)
	inlineTags = regexp.MustCompile(`<[^>]*>`)
	bracketed  = regexp.MustCompile(`\[(Music|Applause|Laughter|Music playing)\]`)
)

// ToProse strips caption markup and joins cue text. Consecutive duplicate
// lines, which auto-generated tracks repeat as cues roll, are dropped.
func ToProse(captions string) string {
	captions = strings.ReplaceAll(captions, "\r\n", "\n")
	lines := strings.Split(captions, "\n")

	var (
		out      []string
		last     string
		skipping bool
	)
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			skipping = false
			continue
		}
		if skipping {
			continue
		}
		if i == 0 && strings.HasPrefix(line, "WEBVTT") {
			skipping = true
			continue
		}
		if strings.HasPrefix(line, "NOTE") || line == "STYLE" || line == "REGION" {
			skipping = true
			continue
		}
		if timingLine.MatchString(line) || cueID.MatchString(line) {
			continue
		}
		if strings.HasPrefix(line, "Kind:") || strings.HasPrefix(line, "Language:") {
			continue
		}

		line = inlineTags.ReplaceAllString(line, "")
		line = bracketed.ReplaceAllString(line, "")
		line = html.UnescapeString(textclean.CollapseWhitespace(line))
		if line == "" || line == last {
			continue
		}
		out = append(out, line)
		last = line
	}
	return strings.Join(out, " ")
}
