package domain

import "time"

// RawDocument represents opaque bytes fetched by a strategy.
// It is the strategy's output before normalisation.
type RawDocument struct {
	// URI is the location the bytes were read from.
	URI string

	// MIMEType is the content type (e.g., "text/html").
	MIMEType string

	// Content is the raw bytes.
	Content []byte

	// Metadata contains strategy-specific key-value pairs.
	Metadata map[string]any
}

// StrategyKind names an acquisition strategy.
type StrategyKind string

// Acquisition strategies.
const (
	StrategyStaticPage      StrategyKind = "static_page"
	StrategyVideoTranscript StrategyKind = "video_transcript"
	StrategyRenderedPage    StrategyKind = "rendered_page"
)

// AcquisitionResult is the normalised text produced for one URL.
type AcquisitionResult struct {
	// PlainText is the whitespace-collapsed text used for chunking.
	PlainText string

	// FullText is the extracted text before blank lines were collapsed.
	FullText string

	// Title is the page or video title when known.
	Title string

	// WordCount is the number of words in PlainText.
	WordCount int

	// TokenCount is filled in by the orchestrator's tokenizer.
	TokenCount int

	// Duration is the wall time spent acquiring.
	Duration time.Duration

	// FinalURL is the URL after following redirects.
	FinalURL string

	// WasRedirected is true when FinalURL differs from the requested URL.
	WasRedirected bool

	// Strategy records which strategy produced the text.
	Strategy StrategyKind
}

// IsEmpty reports whether no text was acquired.
func (r *AcquisitionResult) IsEmpty() bool {
	return r == nil || r.PlainText == ""
}
