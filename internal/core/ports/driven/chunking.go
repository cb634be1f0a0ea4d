package driven

import "github.com/custodia-labs/contentindex/internal/core/domain"

// Tokenizer counts and splits text using a model's token encoding.
type Tokenizer interface {
	// Name returns the encoding name (e.g., "cl100k_base").
	Name() string

	// Encode returns the token ids for text.
	Encode(text string) []int

	// Decode turns token ids back into text.
	Decode(tokens []int) string

	// Count returns the number of tokens in text.
	Count(text string) int
}

// Chunker splits text into overlapping token-bounded windows.
// It is pure: the same input always yields the same chunks.
type Chunker interface {
	Chunk(text string) []domain.TextChunk
}
