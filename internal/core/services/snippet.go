package services

import (
	"strings"
	"unicode/utf8"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

// DefaultSnippetLength is the maximum snippet size in characters.
const DefaultSnippetLength = 200

// snippetLeadIn is how much context is kept before the first match.
const snippetLeadIn = 60

const ellipsis = "..."

// queryTerms splits a query on whitespace and drops terms of two
// characters or fewer. Terms are lower-cased and deduplicated.
func queryTerms(query string) []string {
	var terms []string
	seen := make(map[string]bool)
	for _, f := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(f) <= 2 || seen[f] {
			continue
		}
		seen[f] = true
		terms = append(terms, f)
	}
	return terms
}

// ExtractSnippet returns an excerpt of at most maxLength characters of
// text, placed around the earliest occurrence of any query term, plus the
// terms that occur in text. With no match the excerpt is the head of text.
func ExtractSnippet(text, query string, maxLength int) domain.Snippet {
	if maxLength <= 0 {
		maxLength = DefaultSnippetLength
	}

	runes := []rune(text)
	lower := []rune(strings.ToLower(text))
	if len(lower) != len(runes) {
		// Case folding changed the length; match on the original runes.
		lower = runes
	}
	lowerText := string(lower)

	matched := []string{}
	first, firstLen := -1, 0
	for _, term := range queryTerms(query) {
		idx := strings.Index(lowerText, term)
		if idx < 0 {
			continue
		}
		matched = append(matched, term)
		pos := utf8.RuneCountInString(lowerText[:idx])
		if first < 0 || pos < first {
			first, firstLen = pos, utf8.RuneCountInString(term)
		}
	}

	if first < 0 {
		return domain.Snippet{Text: window(runes, 0, maxLength), MatchedTerms: matched}
	}

	lead := snippetLeadIn
	if room := (maxLength - firstLen) / 2; room < lead {
		lead = max(room, 0)
	}
	start := max(first-lead, 0)
	end := start + maxLength
	if end > len(runes) {
		end = len(runes)
		start = max(end-maxLength, 0)
	}
	return domain.Snippet{Text: window(runes, start, end), MatchedTerms: matched}
}

// window renders runes[start:end] with ellipses on truncated sides.
func window(runes []rune, start, end int) string {
	if end > len(runes) {
		end = len(runes)
	}
	s := strings.TrimSpace(string(runes[start:end]))
	if start > 0 {
		s = ellipsis + s
	}
	if end < len(runes) {
		s += ellipsis
	}
	return s
}
