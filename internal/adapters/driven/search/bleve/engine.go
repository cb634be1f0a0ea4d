// Package bleve provides the full-text keyword index backed by Bleve.
package bleve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	blevesearch "github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
)

// Ensure Engine implements the interface.
var _ driven.SearchEngine = (*Engine)(nil)

// batchSize bounds how many chunks go into one Bleve batch.
const batchSize = 500

// chunkDocument is the indexed form of a chunk.
type chunkDocument struct {
	ContentItemID string `json:"content_item_id"`
	Text          string `json:"text"`
}

// Engine implements driven.SearchEngine on a Bleve index.
type Engine struct {
	index blevesearch.Index
	path  string
}

// New opens the index at path, creating it if absent.
// An empty path creates an in-memory index.
func New(path string) (*Engine, error) {
	if path == "" {
		index, err := blevesearch.NewMemOnly(buildMapping())
		if err != nil {
			return nil, fmt.Errorf("creating in-memory index: %w", err)
		}
		return &Engine{index: index}, nil
	}

	if _, err := os.Stat(path); err == nil {
		index, err := blevesearch.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening index %s: %w", path, err)
		}
		return &Engine{index: index, path: path}, nil
	}

	index, err := blevesearch.New(path, buildMapping())
	if err != nil {
		return nil, fmt.Errorf("creating index %s: %w", path, err)
	}
	return &Engine{index: index, path: path}, nil
}

// buildMapping indexes chunk text with the standard analyzer (lowercase,
// no stemming) so query terms match the words snippets highlight.
func buildMapping() mapping.IndexMapping {
	im := blevesearch.NewIndexMapping()

	doc := blevesearch.NewDocumentMapping()
	text := blevesearch.NewTextFieldMapping()
	text.Analyzer = standard.Name
	text.Store = false
	doc.AddFieldMappingsAt("text", text)

	item := blevesearch.NewTextFieldMapping()
	item.Analyzer = keyword.Name
	item.IncludeInAll = false
	doc.AddFieldMappingsAt("content_item_id", item)

	im.DefaultMapping = doc
	im.DefaultAnalyzer = standard.Name
	return im
}

// Index adds or replaces a chunk.
func (e *Engine) Index(_ context.Context, chunk domain.ContentChunk) error {
	if chunk.ID == "" {
		return domain.ErrInvalidInput
	}
	return e.index.Index(chunk.ID, chunkDocument{ContentItemID: chunk.ContentItemID, Text: chunk.Text})
}

// IndexBatch adds or replaces many chunks using Bleve batches.
func (e *Engine) IndexBatch(ctx context.Context, chunks []domain.ContentChunk) error {
	batch := e.index.NewBatch()
	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := batch.Index(c.ID, chunkDocument{ContentItemID: c.ContentItemID, Text: c.Text}); err != nil {
			return err
		}
		if batch.Size() >= batchSize {
			if err := e.index.Batch(batch); err != nil {
				return err
			}
			batch.Reset()
		}
	}
	if batch.Size() == 0 {
		return nil
	}
	return e.index.Batch(batch)
}

// Delete removes a chunk. Unknown IDs are ignored.
func (e *Engine) Delete(_ context.Context, chunkID string) error {
	return e.index.Delete(chunkID)
}

// Search runs a match query over chunk text. Any query term may match;
// chunks matching more terms score higher.
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]driven.SearchHit, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}

	q := blevesearch.NewMatchQuery(query)
	q.SetField("text")
	req := blevesearch.NewSearchRequestOptions(q, limit, 0, false)

	res, err := e.index.SearchInContext(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	hits := make([]driven.SearchHit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hits = append(hits, driven.SearchHit{ChunkID: h.ID, Score: h.Score})
	}
	return hits, nil
}

// Count returns the number of indexed chunks.
func (e *Engine) Count() (uint64, error) {
	return e.index.DocCount()
}

// Path returns the index directory, or "" for in-memory indexes.
func (e *Engine) Path() string {
	return e.path
}

// Close closes the index.
func (e *Engine) Close() error {
	return e.index.Close()
}
