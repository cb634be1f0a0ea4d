// Package tiktoken adapts github.com/pkoukk/tiktoken-go to the Tokenizer port.
// BPE ranks are loaded from the offline loader so no network access is needed.
package tiktoken

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	tiktokenloader "github.com/pkoukk/tiktoken-go-loader"

	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
)

// Ensure Tokenizer implements the interface.
var _ driven.Tokenizer = (*Tokenizer)(nil)

// DefaultEncoding is used by OpenAI embedding models and is a close
// approximation for most others.
const DefaultEncoding = "cl100k_base"

var loaderOnce sync.Once

func useOfflineLoader() {
	loaderOnce.Do(func() {
		tiktoken.SetBpeLoader(tiktokenloader.NewOfflineLoader())
	})
}

// Tokenizer wraps a tiktoken encoding.
type Tokenizer struct {
	name string
	enc  *tiktoken.Tiktoken
}

// New loads the named encoding. An empty name selects DefaultEncoding.
func New(encoding string) (*Tokenizer, error) {
	useOfflineLoader()
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, fmt.Errorf("load encoding %s: %w", encoding, err)
	}
	return &Tokenizer{name: encoding, enc: enc}, nil
}

// ForModel loads the encoding registered for an embedding model,
// falling back to DefaultEncoding for models tiktoken does not know.
func ForModel(model string) (*Tokenizer, error) {
	useOfflineLoader()
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return New(DefaultEncoding)
	}
	return &Tokenizer{name: model, enc: enc}, nil
}

// Name returns the encoding name.
func (t *Tokenizer) Name() string {
	return t.name
}

// Encode returns the token ids for text. Special tokens are treated as text.
func (t *Tokenizer) Encode(text string) []int {
	return t.enc.Encode(text, nil, nil)
}

// Decode turns token ids back into text.
func (t *Tokenizer) Decode(tokens []int) string {
	return t.enc.Decode(tokens)
}

// Count returns the number of tokens in text.
func (t *Tokenizer) Count(text string) int {
	if text == "" {
		return 0
	}
	return len(t.Encode(text))
}
