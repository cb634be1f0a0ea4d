package html

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	xhtml "golang.org/x/net/html"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
	"github.com/custodia-labs/contentindex/internal/normalisers/textclean"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// DefaultMinContentLength is the shortest main-content candidate accepted.
const DefaultMinContentLength = 100

// Normaliser handles HTML documents.
type Normaliser struct {
	minContentLength int
}

// Option configures the Normaliser.
type Option func(*Normaliser)

// WithMinContentLength sets how many characters a structural candidate
// needs before it is accepted as the main content.
func WithMinContentLength(n int) Option {
	return func(h *Normaliser) {
		if n > 0 {
			h.minContentLength = n
		}
	}
}

// New creates a new HTML normaliser.
func New(opts ...Option) *Normaliser {
	n := &Normaliser{minContentLength: DefaultMinContentLength}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/html", "application/xhtml+xml"}
}

// Priority returns the selection priority.
func (n *Normaliser) Priority() int {
	return 50 // Generic MIME normaliser, higher than plaintext
}

// Normalise extracts the main readable text of an HTML page.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*driven.NormaliseResult, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw.Content))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	title := extractTitle(doc)
	stripNonContent(doc.Selection)
	text := n.mainContent(doc)

	return textclean.Result(title, text), nil
}

// Elements that never hold page content.
const nonContentTags = "script, style, noscript, template, svg, canvas, iframe, object, embed, " +
	"nav, header, footer, aside, form, button, select, input, textarea, dialog, menu"

// Class, id and role fragments that mark navigation, chrome and ads.
var nonContentAttr = regexp.MustCompile(
	`(?i)(^|[\s_-])(nav|navbar|navigation|menu|menubar|sidebar|breadcrumbs?|share|sharing|social|` +
		`cookies?|consent|gdpr|banner|ads?|advert|advertisement|sponsor(ed)?|promo|popup|modal|newsletter|` +
		`subscribe|related|comments?|footer|masthead|skip-link)([\s_-]|$)`)

var nonContentRoles = map[string]bool{
	"navigation":    true,
	"banner":        true,
	"contentinfo":   true,
	"complementary": true,
	"menu":          true,
	"menubar":       true,
	"search":        true,
	"dialog":        true,
	"alertdialog":   true,
}

// Ordered structural candidates for the main content.
var contentSelectors = []string{
	"main article",
	"article",
	"[role=main], #main-content, .main-content, #content, .content, .post-content, .entry-content",
	"main",
}

func stripNonContent(root *goquery.Selection) {
	root.Find(nonContentTags).Remove()
	root.Find("[class], [id], [role], [aria-hidden]").Each(func(_ int, s *goquery.Selection) {
		if s.Is("html, body, main, article") {
			return
		}
		if hidden, _ := s.Attr("aria-hidden"); hidden == "true" {
			s.Remove()
			return
		}
		if role, ok := s.Attr("role"); ok && nonContentRoles[strings.ToLower(role)] {
			s.Remove()
			return
		}
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		if nonContentAttr.MatchString(class) || nonContentAttr.MatchString(id) {
			s.Remove()
		}
	})
}

// mainContent returns the text of the first structural candidate that
// clears the minimum length, falling back to the whole body.
func (n *Normaliser) mainContent(doc *goquery.Document) string {
	for _, sel := range contentSelectors {
		var found string
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := textclean.CollapseBlankLines(nodeText(s))
			if len([]rune(textclean.CollapseWhitespace(text))) > n.minContentLength {
				found = text
				return false
			}
			return true
		})
		if found != "" {
			return found
		}
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		return nodeText(doc.Selection)
	}
	return nodeText(body)
}

func extractTitle(doc *goquery.Document) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).Attr("content"); ok && strings.TrimSpace(og) != "" {
		return strings.TrimSpace(og)
	}
	if t := strings.TrimSpace(doc.Find("title").First().Text()); t != "" {
		return t
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

var blockTags = map[string]bool{
	"p": true, "div": true, "br": true, "hr": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"tr": true, "table": true, "blockquote": true, "pre": true, "section": true,
	"article": true, "main": true, "figure": true, "figcaption": true, "dd": true, "dt": true,
}

// nodeText renders a selection as text, breaking lines at block elements.
func nodeText(s *goquery.Selection) string {
	var b strings.Builder
	for _, node := range s.Nodes {
		writeText(&b, node)
	}
	return b.String()
}

func writeText(b *strings.Builder, node *xhtml.Node) {
	switch node.Type {
	case xhtml.TextNode:
		b.WriteString(node.Data)
		return
	case xhtml.CommentNode:
		return
	case xhtml.ElementNode:
		if node.Data == "script" || node.Data == "style" {
			return
		}
	}

	block := node.Type == xhtml.ElementNode && blockTags[node.Data]
	if block {
		b.WriteByte('\n')
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		writeText(b, child)
	}
	if block {
		b.WriteByte('\n')
	}
}
