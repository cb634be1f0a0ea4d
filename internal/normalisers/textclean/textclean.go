// Package textclean holds the whitespace rules shared by every normaliser.
package textclean

import (
	"regexp"
	"strings"

	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
)

var (
	multiSpaces   = regexp.MustCompile(`[ \t\f\v\x{00a0}]+`)
	multiNewlines = regexp.MustCompile(`\n{3,}`)
)

// CollapseBlankLines trims every line, squeezes runs of spaces and keeps
// at most one blank line between paragraphs.
func CollapseBlankLines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	s = multiSpaces.ReplaceAllString(s, " ")

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(line)
	}
	s = strings.Join(lines, "\n")
	s = multiNewlines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}

// CollapseWhitespace joins all words with single spaces.
func CollapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// WordCount returns the number of whitespace-separated words.
func WordCount(s string) int {
	return len(strings.Fields(s))
}

// Result builds a NormaliseResult from extracted text.
func Result(title, text string) *driven.NormaliseResult {
	full := CollapseBlankLines(text)
	return &driven.NormaliseResult{
		Title:     strings.TrimSpace(title),
		FullText:  full,
		PlainText: CollapseWhitespace(full),
	}
}
