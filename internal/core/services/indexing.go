package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
	"github.com/custodia-labs/contentindex/internal/core/ports/driving"
	"github.com/custodia-labs/contentindex/internal/logger"
)

// Ensure IndexingOrchestrator implements the interface.
var _ driving.IndexingService = (*IndexingOrchestrator)(nil)

// embedParallelism bounds concurrent embedding calls for one item.
const embedParallelism = 8

// IndexingDeps wires the orchestrator to its adapters.
// Acquirer, Chunker, ContentStore and Queue are required; the rest may be nil.
type IndexingDeps struct {
	Acquirer     driven.Acquirer
	Chunker      driven.Chunker
	Tokenizer    driven.Tokenizer
	Embedder     driven.EmbeddingService
	ContentStore driven.ContentStore
	ItemStore    driven.ItemStore
	SearchEngine driven.SearchEngine
	VectorIndex  driven.VectorIndex
	Queue        driven.JobQueue
}

// IndexingOrchestrator moves content from a URL to searchable chunks:
// acquire, chunk, embed, then write the text row, chunks and both indexes.
type IndexingOrchestrator struct {
	deps     IndexingDeps
	settings domain.IndexingSettings
	enabled  atomic.Bool
	now      func() time.Time
}

// NewIndexingOrchestrator creates an orchestrator. The kill switch starts
// at settings.Enabled.
func NewIndexingOrchestrator(deps IndexingDeps, settings domain.IndexingSettings) *IndexingOrchestrator {
	if settings.SyncThreshold < 0 {
		settings.SyncThreshold = 0
	}
	if settings.Concurrency <= 0 {
		settings.Concurrency = 1
	}
	o := &IndexingOrchestrator{
		deps:     deps,
		settings: settings,
		now:      func() time.Time { return time.Now().UTC() },
	}
	o.enabled.Store(settings.Enabled)
	return o
}

// Enabled reports the kill switch state.
func (o *IndexingOrchestrator) Enabled() bool {
	return o.enabled.Load()
}

// SetEnabled flips the kill switch.
func (o *IndexingOrchestrator) SetEnabled(enabled bool) {
	if o.enabled.Swap(enabled) == enabled {
		return
	}
	if enabled {
		logger.Info("Indexing enabled")
	} else {
		logger.Info("Indexing disabled")
	}
}

// IndexContent processes up to SyncThreshold items inline and queues the rest.
func (o *IndexingOrchestrator) IndexContent(ctx context.Context, items []domain.IndexRequest) (*domain.IndexingStats, error) {
	stats := &domain.IndexingStats{Total: len(items), Results: make([]domain.ItemResult, 0, len(items))}

	if !o.Enabled() {
		logger.Info("Indexing disabled, rejecting %d items", len(items))
		for _, item := range items {
			stats.Add(domain.FailedResult(item, domain.ErrIndexingDisabled))
		}
		return stats, nil
	}

	inline := min(len(items), o.settings.SyncThreshold)
	logger.Info("Indexing %d items: %d inline, %d queued", len(items), inline, len(items)-inline)

	for _, r := range o.indexInline(ctx, items[:inline]) {
		stats.Add(r)
	}
	for _, item := range items[inline:] {
		stats.Add(o.enqueue(ctx, item))
	}

	logger.Info("Indexing finished: %d succeeded, %d failed, %d queued", stats.Succeeded, stats.Failed, stats.Queued)
	return stats, nil
}

// indexInline indexes items concurrently. A failing item never cancels
// its siblings; every item gets a result.
func (o *IndexingOrchestrator) indexInline(ctx context.Context, items []domain.IndexRequest) []domain.ItemResult {
	results := make([]domain.ItemResult, len(items))

	var g errgroup.Group
	g.SetLimit(o.settings.Concurrency)
	for i, item := range items {
		g.Go(func() error {
			results[i], _ = o.IndexSingleItem(ctx, item.ID, item.URL)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func (o *IndexingOrchestrator) enqueue(ctx context.Context, item domain.IndexRequest) domain.ItemResult {
	if err := validateRequest(item); err != nil {
		return domain.FailedResult(item, err)
	}

	payload, err := json.Marshal(domain.IndexJobPayload{ContentItemID: item.ID, URL: item.URL})
	if err != nil {
		return domain.FailedResult(item, &domain.QueueError{Op: "encode", Cause: err})
	}

	job, created, err := o.deps.Queue.Enqueue(ctx, domain.QueueIndexContent, payload, domain.EnqueueOptions{SingletonKey: item.ID})
	if err != nil {
		var qe *domain.QueueError
		if !errors.As(err, &qe) {
			err = &domain.QueueError{Op: "enqueue", Cause: err}
		}
		logger.Warn("Enqueue %s failed: %v", item.ID, err)
		return domain.FailedResult(item, err)
	}

	if err := o.deps.ContentStore.MarkPending(ctx, item.ID); err != nil {
		logger.Warn("Mark %s pending failed: %v", item.ID, err)
	}

	if !created {
		logger.Debug("Item %s already queued as job %s", item.ID, job.ID)
	}
	return domain.ItemResult{
		ContentItemID: item.ID,
		URL:           item.URL,
		Outcome:       domain.OutcomeQueued,
		Deduplicated:  !created,
	}
}

func validateRequest(item domain.IndexRequest) error {
	if strings.TrimSpace(item.ID) == "" || strings.TrimSpace(item.URL) == "" {
		return fmt.Errorf("%w: item needs an id and a url", domain.ErrInvalidInput)
	}
	return nil
}

// IndexSingleItem acquires url and indexes its text for contentItemID.
// Any failure after the kill switch check leaves the item's text row
// failed with the error message.
func (o *IndexingOrchestrator) IndexSingleItem(ctx context.Context, contentItemID, url string) (domain.ItemResult, error) {
	start := time.Now()
	req := domain.IndexRequest{ID: contentItemID, URL: url}
	log := logger.With("content_item_id", contentItemID, "url", url)

	if !o.Enabled() {
		return domain.FailedResult(req, domain.ErrIndexingDisabled), domain.ErrIndexingDisabled
	}
	if err := validateRequest(req); err != nil {
		return domain.FailedResult(req, err), err
	}

	item, err := o.registerItem(ctx, contentItemID, url)
	if err != nil {
		return o.fail(ctx, req, start, fmt.Errorf("register item: %w", err))
	}

	acquired, err := o.deps.Acquirer.Acquire(ctx, url)
	if err != nil {
		return o.fail(ctx, req, start, err)
	}
	log.Debugw("acquired", "strategy", acquired.Strategy, "words", acquired.WordCount, "ms", acquired.Duration.Milliseconds())

	if acquired.WasRedirected {
		if err := o.checkRedirect(ctx, item, url, acquired.FinalURL); err != nil {
			return o.fail(ctx, req, start, err)
		}
	}

	text := &domain.ContentText{
		ContentItemID: contentItemID,
		FullText:      acquired.FullText,
		PlainText:     acquired.PlainText,
	}
	if existing, err := o.deps.ContentStore.GetTextByItem(ctx, contentItemID); err == nil {
		text.ID = existing.ID
		if existing.Status == domain.IndexStatusIndexed && existing.ContentHash == hashText(acquired.PlainText) {
			return o.refreshUnchanged(ctx, req, start, existing)
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return o.fail(ctx, req, start, fmt.Errorf("load text: %w", err))
	}

	result, err := o.write(ctx, text)
	result.URL = url
	result.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		return o.fail(ctx, req, start, err)
	}
	log.Infow("indexed", "chunks", result.ChunkCount, "embedded", result.EmbeddedCount, "ms", result.DurationMs)
	return result, nil
}

// RegisterItem records the item so redirects onto its URL are detected
// before it is first indexed.
func (o *IndexingOrchestrator) RegisterItem(ctx context.Context, contentItemID, url string) (*domain.ContentItem, error) {
	if err := validateRequest(domain.IndexRequest{ID: contentItemID, URL: url}); err != nil {
		return nil, err
	}
	return o.registerItem(ctx, contentItemID, url)
}

// registerItem makes sure the item exists with url as its canonical URL,
// keeping any previous URL as a prior one.
func (o *IndexingOrchestrator) registerItem(ctx context.Context, id, url string) (*domain.ContentItem, error) {
	if o.deps.ItemStore == nil {
		return &domain.ContentItem{ID: id, URL: url}, nil
	}

	item, err := o.deps.ItemStore.GetItem(ctx, id)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		item = &domain.ContentItem{ID: id, URL: url, SourceType: domain.SourceTypeWeb}
	case err != nil:
		return nil, err
	case domain.CanonicalURL(item.URL) == domain.CanonicalURL(url):
		return item, nil
	default:
		item.PriorURLs = append(item.PriorURLs, item.URL)
		item.URL = url
	}

	if err := o.deps.ItemStore.SaveItem(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// checkRedirect fails when finalURL belongs to another item. Otherwise the
// item's canonical URL moves to finalURL so later redirects onto it are caught.
func (o *IndexingOrchestrator) checkRedirect(ctx context.Context, item *domain.ContentItem, url, finalURL string) error {
	if o.deps.ItemStore == nil {
		return nil
	}

	owner, err := o.deps.ItemStore.FindByURL(ctx, finalURL)
	switch {
	case err == nil && owner.ID != item.ID:
		return &domain.RedirectConflictError{URL: url, FinalURL: finalURL, ExistingItemID: owner.ID}
	case err != nil && !errors.Is(err, domain.ErrNotFound):
		return fmt.Errorf("look up redirect target: %w", err)
	}

	if domain.CanonicalURL(item.URL) == domain.CanonicalURL(finalURL) {
		return nil
	}
	item.PriorURLs = append(item.PriorURLs, item.URL)
	item.URL = finalURL
	if err := o.deps.ItemStore.SaveItem(ctx, item); err != nil {
		return fmt.Errorf("record redirect: %w", err)
	}
	return nil
}

// refreshUnchanged bumps CrawledAt on an already indexed text whose
// content hash did not change. Chunks are left in place.
func (o *IndexingOrchestrator) refreshUnchanged(
	ctx context.Context, req domain.IndexRequest, start time.Time, existing *domain.ContentText,
) (domain.ItemResult, error) {
	now := o.now()
	existing.CrawledAt = &now
	if err := o.deps.ContentStore.UpsertText(ctx, existing); err != nil {
		return o.fail(ctx, req, start, fmt.Errorf("save text: %w", err))
	}

	chunks, err := o.deps.ContentStore.GetChunks(ctx, existing.ID)
	if err != nil {
		return o.fail(ctx, req, start, fmt.Errorf("load chunks: %w", err))
	}

	logger.Debug("Content of %s unchanged, keeping %d chunks", req.ID, len(chunks))
	return domain.ItemResult{
		ContentItemID: req.ID,
		URL:           req.URL,
		Outcome:       domain.OutcomeIndexed,
		ChunkCount:    len(chunks),
		EmbeddedCount: countEmbedded(chunks),
		ContentHash:   existing.ContentHash,
		Unchanged:     true,
		DurationMs:    time.Since(start).Milliseconds(),
	}, nil
}

// IndexFromExistingContent re-chunks and re-embeds the stored text of
// contentTextID without acquiring anything.
func (o *IndexingOrchestrator) IndexFromExistingContent(ctx context.Context, contentTextID string) (domain.ItemResult, error) {
	start := time.Now()

	if !o.Enabled() {
		return domain.FailedResult(domain.IndexRequest{}, domain.ErrIndexingDisabled), domain.ErrIndexingDisabled
	}

	text, err := o.deps.ContentStore.GetText(ctx, contentTextID)
	if err != nil {
		err = fmt.Errorf("load content text %s: %w", contentTextID, err)
		return domain.FailedResult(domain.IndexRequest{}, err), err
	}
	req := domain.IndexRequest{ID: text.ContentItemID}

	if text.PlainText == "" && text.FullText != "" {
		text.PlainText = strings.Join(strings.Fields(text.FullText), " ")
	}

	result, err := o.write(ctx, text)
	result.DurationMs = time.Since(start).Milliseconds()
	if err != nil {
		return o.fail(ctx, req, start, err)
	}
	logger.Info("Re-indexed content text %s: %d chunks", contentTextID, result.ChunkCount)
	return result, nil
}

// OnContentChanged re-indexes an item after the metadata layer changed it.
func (o *IndexingOrchestrator) OnContentChanged(ctx context.Context, contentItemID, url string) (domain.ItemResult, error) {
	logger.Debug("Content changed: %s -> %s", contentItemID, url)
	return o.IndexSingleItem(ctx, contentItemID, url)
}

// write chunks and embeds text.PlainText, then replaces the stored chunks
// and index entries and marks the text indexed. Empty text is stored as
// indexed with no chunks and the no-content message.
func (o *IndexingOrchestrator) write(ctx context.Context, text *domain.ContentText) (domain.ItemResult, error) {
	now := o.now()

	text.ContentHash = hashText(text.PlainText)
	text.WordCount = len(strings.Fields(text.PlainText))
	text.CrawledAt = &now
	text.IndexError = ""
	text.Status = domain.IndexStatusPending

	var chunks []domain.ContentChunk
	if text.PlainText == "" {
		text.TokenCount = 0
		text.IndexError = domain.NoContentMessage
	} else {
		pieces := o.deps.Chunker.Chunk(text.PlainText)
		text.TokenCount = o.countTokens(text.PlainText, pieces)
		chunks = make([]domain.ContentChunk, len(pieces))
		for i, p := range pieces {
			chunks[i] = domain.ContentChunk{
				ContentItemID: text.ContentItemID,
				Index:         p.Index,
				Text:          p.Text,
				TokenCount:    p.TokenCount,
			}
		}
		o.embed(ctx, chunks)
	}

	result := domain.ItemResult{ContentItemID: text.ContentItemID, ContentHash: text.ContentHash}

	if err := o.deps.ContentStore.UpsertText(ctx, text); err != nil {
		return result, fmt.Errorf("save text: %w", err)
	}
	removed, err := o.deps.ContentStore.ReplaceChunks(ctx, text.ID, chunks)
	if err != nil {
		return result, fmt.Errorf("replace chunks: %w", err)
	}
	if err := o.updateIndexes(ctx, removed, chunks); err != nil {
		return result, err
	}

	text.Status = domain.IndexStatusIndexed
	text.IndexedAt = &now
	if err := o.deps.ContentStore.UpsertText(ctx, text); err != nil {
		return result, fmt.Errorf("save text: %w", err)
	}

	result.Outcome = domain.OutcomeIndexed
	result.ChunkCount = len(chunks)
	result.EmbeddedCount = countEmbedded(chunks)
	return result, nil
}

func (o *IndexingOrchestrator) countTokens(text string, pieces []domain.TextChunk) int {
	if o.deps.Tokenizer != nil {
		return o.deps.Tokenizer.Count(text)
	}
	total := 0
	for _, p := range pieces {
		total += p.TokenCount
	}
	return total
}

// embed fills chunk embeddings concurrently. A chunk whose embedding
// fails keeps a nil vector.
func (o *IndexingOrchestrator) embed(ctx context.Context, chunks []domain.ContentChunk) {
	if o.deps.Embedder == nil || len(chunks) == 0 {
		return
	}

	var (
		g      errgroup.Group
		failed atomic.Int32
	)
	g.SetLimit(embedParallelism)
	for i := range chunks {
		g.Go(func() error {
			vec, err := o.deps.Embedder.Embed(ctx, chunks[i].Text)
			if err != nil {
				failed.Add(1)
				logger.Debug("Embedding chunk %d of %s failed: %v", chunks[i].Index, chunks[i].ContentItemID, err)
				return nil
			}
			chunks[i].Embedding = vec
			return nil
		})
	}
	_ = g.Wait()

	if n := failed.Load(); n > 0 {
		logger.Warn("%d of %d chunks of %s stored without embeddings", n, len(chunks), chunks[0].ContentItemID)
	}
}

// updateIndexes drops the replaced chunks from both indexes and adds the
// new ones.
func (o *IndexingOrchestrator) updateIndexes(ctx context.Context, removed []string, chunks []domain.ContentChunk) error {
	for _, id := range removed {
		if o.deps.SearchEngine != nil {
			if err := o.deps.SearchEngine.Delete(ctx, id); err != nil {
				return fmt.Errorf("unindex chunk %s: %w", id, err)
			}
		}
		if o.deps.VectorIndex != nil {
			if err := o.deps.VectorIndex.Delete(ctx, id); err != nil {
				return fmt.Errorf("delete vector %s: %w", id, err)
			}
		}
	}

	for _, c := range chunks {
		if o.deps.SearchEngine != nil {
			if err := o.deps.SearchEngine.Index(ctx, c); err != nil {
				return fmt.Errorf("index chunk %s: %w", c.ID, err)
			}
		}
		if o.deps.VectorIndex != nil && c.Embedding != nil {
			if err := o.deps.VectorIndex.Add(ctx, c.ID, c.Embedding); err != nil {
				return fmt.Errorf("add vector %s: %w", c.ID, err)
			}
		}
	}
	return nil
}

// fail records err on the item's text row and builds the failed result.
func (o *IndexingOrchestrator) fail(
	ctx context.Context, req domain.IndexRequest, start time.Time, err error,
) (domain.ItemResult, error) {
	logger.Warn("Indexing %s failed: %v", req.ID, err)
	if req.ID != "" {
		if markErr := o.deps.ContentStore.MarkFailed(ctx, req.ID, err.Error()); markErr != nil {
			logger.Error("Mark %s failed: %v", req.ID, markErr)
		}
	}
	result := domain.FailedResult(req, err)
	result.DurationMs = time.Since(start).Milliseconds()
	return result, err
}

// GetIndexStatus returns the status projection of an item.
func (o *IndexingOrchestrator) GetIndexStatus(ctx context.Context, contentItemID string) (*domain.IndexStatusView, error) {
	text, err := o.deps.ContentStore.GetTextByItem(ctx, contentItemID)
	if err != nil {
		return nil, err
	}
	chunks, err := o.deps.ContentStore.GetChunks(ctx, text.ID)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	return &domain.IndexStatusView{
		ContentItemID: contentItemID,
		Status:        text.Status,
		Error:         text.IndexError,
		WordCount:     text.WordCount,
		TokenCount:    text.TokenCount,
		ChunkCount:    len(chunks),
		IndexedAt:     text.IndexedAt,
	}, nil
}

// QueueStats reports background job counts.
func (o *IndexingOrchestrator) QueueStats(ctx context.Context) (domain.QueueStats, error) {
	return o.deps.Queue.Stats(ctx, domain.QueueIndexContent)
}

func hashText(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func countEmbedded(chunks []domain.ContentChunk) int {
	n := 0
	for _, c := range chunks {
		if c.Embedding != nil {
			n++
		}
	}
	return n
}
