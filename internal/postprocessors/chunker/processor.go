// Package chunker provides a token-window text chunker.
package chunker

import (
	"strings"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
)

// Ensure Processor implements the interface.
var _ driven.Chunker = (*Processor)(nil)

// DefaultChunkSize is the default number of tokens per chunk.
const DefaultChunkSize = 512

// DefaultChunkOverlap is the default number of overlapping tokens.
const DefaultChunkOverlap = 64

// Processor splits text into overlapping token-bounded windows.
// Windows break on word boundaries so no chunk starts or ends mid-word.
type Processor struct {
	chunkSize int
	overlap   int
	tokenizer driven.Tokenizer
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in tokens.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in tokens.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// WithTokenizer sets the tokenizer used for counting.
// It should match the embedding model's tokenizer family.
func WithTokenizer(t driven.Tokenizer) Option {
	return func(p *Processor) {
		if t != nil {
			p.tokenizer = t
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
		tokenizer: WhitespaceTokenizer{},
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Tokenizer returns the tokenizer the chunker counts with.
func (p *Processor) Tokenizer() driven.Tokenizer {
	return p.tokenizer
}

// Chunk splits text into windows of at most chunkSize tokens where
// consecutive windows share up to overlap tokens. A single word longer
// than chunkSize becomes a chunk of its own.
func (p *Processor) Chunk(text string) []domain.TextChunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	counts := make([]int, len(words))
	for i, w := range words {
		if i > 0 {
			w = " " + w
		}
		counts[i] = p.tokenizer.Count(w)
	}

	var chunks []domain.TextChunk
	start := 0
	for start < len(words) {
		end, total := start, 0
		for end < len(words) && (end == start || total+counts[end] <= p.chunkSize) {
			total += counts[end]
			end++
		}

		chunkText := strings.Join(words[start:end], " ")
		chunks = append(chunks, domain.TextChunk{
			Text:       chunkText,
			Index:      len(chunks),
			TokenCount: p.tokenizer.Count(chunkText),
		})

		if end == len(words) {
			break
		}

		// Step back over up to overlap tokens, always making progress.
		next, shared := end, 0
		for next-1 > start && shared+counts[next-1] <= p.overlap {
			next--
			shared += counts[next]
		}
		start = next
	}

	return chunks
}

// WhitespaceTokenizer counts words as tokens. It is the fallback when no
// model tokenizer is configured.
type WhitespaceTokenizer struct{}

// Name returns the encoding name.
func (WhitespaceTokenizer) Name() string { return "whitespace" }

// Encode returns one pseudo token per word.
func (WhitespaceTokenizer) Encode(text string) []int {
	fields := strings.Fields(text)
	tokens := make([]int, len(fields))
	for i := range fields {
		tokens[i] = i
	}
	return tokens
}

// Decode is not supported for pseudo tokens and returns an empty string.
func (WhitespaceTokenizer) Decode(_ []int) string { return "" }

// Count returns the number of words.
func (WhitespaceTokenizer) Count(text string) int { return len(strings.Fields(text)) }
