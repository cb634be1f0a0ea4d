package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/contentindex/internal/adapters/driven/storage/memory"
	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
	"github.com/custodia-labs/contentindex/internal/postprocessors/chunker"
)

// fakeAcquirer serves canned results keyed by URL.
type fakeAcquirer struct {
	mu        sync.Mutex
	pages     map[string]string
	redirects map[string]string
	errs      map[string]error
	calls     int
}

func newFakeAcquirer() *fakeAcquirer {
	return &fakeAcquirer{
		pages:     make(map[string]string),
		redirects: make(map[string]string),
		errs:      make(map[string]error),
	}
}

func (f *fakeAcquirer) set(url, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pages[url] = text
}

func (f *fakeAcquirer) Acquire(_ context.Context, url string) (*domain.AcquisitionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.errs[url]; err != nil {
		return nil, err
	}
	final := url
	if to, ok := f.redirects[url]; ok {
		final = to
	}
	text := f.pages[final]
	return &domain.AcquisitionResult{
		PlainText:     text,
		FullText:      text,
		WordCount:     len(strings.Fields(text)),
		FinalURL:      final,
		WasRedirected: final != url,
		Strategy:      domain.StrategyStaticPage,
	}, nil
}

func (f *fakeAcquirer) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// failingQueue rejects every enqueue.
type failingQueue struct {
	driven.JobQueue
}

func (failingQueue) Enqueue(context.Context, string, []byte, domain.EnqueueOptions) (*domain.Job, bool, error) {
	return nil, false, errors.New("database is locked")
}

type orchestratorFixture struct {
	orch     *IndexingOrchestrator
	acquirer *fakeAcquirer
	content  *memory.ContentStore
	items    *memory.ItemStore
	queue    *memory.JobQueue
	engine   *mockSearchEngine
	vectors  *mockVectorIndex
	embedder *mockEmbeddingService
}

func newOrchestratorFixture(threshold int) *orchestratorFixture {
	f := &orchestratorFixture{
		acquirer: newFakeAcquirer(),
		content:  memory.NewContentStore(),
		items:    memory.NewItemStore(),
		queue:    memory.NewJobQueue(domain.DefaultAppSettings().Queue),
		engine:   newMockSearchEngine(),
		vectors:  newMockVectorIndex(),
		embedder: &mockEmbeddingService{},
	}
	f.orch = NewIndexingOrchestrator(IndexingDeps{
		Acquirer:     f.acquirer,
		Chunker:      chunker.New(chunker.WithChunkSize(4), chunker.WithOverlap(0)),
		Embedder:     f.embedder,
		ContentStore: f.content,
		ItemStore:    f.items,
		SearchEngine: f.engine,
		VectorIndex:  f.vectors,
		Queue:        f.queue,
	}, domain.IndexingSettings{Enabled: true, SyncThreshold: threshold, Concurrency: 3})
	return f
}

func requests(n int, f *fakeAcquirer) []domain.IndexRequest {
	items := make([]domain.IndexRequest, n)
	for i := range items {
		url := fmt.Sprintf("https://example.com/page-%d", i)
		f.set(url, fmt.Sprintf("page %d talks about hybrid retrieval", i))
		items[i] = domain.IndexRequest{ID: fmt.Sprintf("item-%d", i), URL: url}
	}
	return items
}

func TestIndexContent_Disabled(t *testing.T) {
	f := newOrchestratorFixture(10)
	f.orch.SetEnabled(false)

	stats, err := f.orch.IndexContent(context.Background(), requests(3, f.acquirer))
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 3, stats.Failed)
	for _, r := range stats.Results {
		assert.Equal(t, domain.ErrorKindDisabled, r.ErrorKind)
	}
	assert.Zero(t, f.acquirer.callCount())
	qs, _ := f.queue.Stats(context.Background(), domain.QueueIndexContent)
	assert.Zero(t, qs.Outstanding())
}

func TestIndexContent_SyncBoundary(t *testing.T) {
	t.Run("exactly threshold", func(t *testing.T) {
		f := newOrchestratorFixture(3)
		stats, err := f.orch.IndexContent(context.Background(), requests(3, f.acquirer))
		require.NoError(t, err)

		assert.Equal(t, 3, stats.Succeeded)
		assert.Zero(t, stats.Queued)
		assert.Equal(t, 3, f.acquirer.callCount())
	})

	t.Run("threshold plus one", func(t *testing.T) {
		f := newOrchestratorFixture(3)
		items := requests(4, f.acquirer)
		stats, err := f.orch.IndexContent(context.Background(), items)
		require.NoError(t, err)

		assert.Equal(t, 3, stats.Succeeded)
		assert.Equal(t, 1, stats.Queued)
		require.Len(t, stats.Results, 4)
		assert.Equal(t, domain.OutcomeQueued, stats.Results[3].Outcome)
		assert.Equal(t, "item-3", stats.Results[3].ContentItemID)

		status, err := f.orch.GetIndexStatus(context.Background(), "item-3")
		require.NoError(t, err)
		assert.Equal(t, domain.IndexStatusPending, status.Status)

		qs, err := f.orch.QueueStats(context.Background())
		require.NoError(t, err)
		assert.Equal(t, 1, qs.Created)
	})
}

func TestIndexContent_SingletonKey(t *testing.T) {
	f := newOrchestratorFixture(0)
	items := requests(1, f.acquirer)

	first, err := f.orch.IndexContent(context.Background(), items)
	require.NoError(t, err)
	second, err := f.orch.IndexContent(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, 1, first.Queued)
	assert.Equal(t, 1, second.Queued)
	assert.False(t, first.Results[0].Deduplicated)
	assert.True(t, second.Results[0].Deduplicated)

	qs, _ := f.queue.Stats(context.Background(), domain.QueueIndexContent)
	assert.Equal(t, 1, qs.Created)
}

func TestIndexContent_EnqueueFailure(t *testing.T) {
	f := newOrchestratorFixture(0)
	f.orch.deps.Queue = failingQueue{}

	stats, err := f.orch.IndexContent(context.Background(), requests(1, f.acquirer))
	require.NoError(t, err)

	require.Equal(t, 1, stats.Failed)
	assert.Equal(t, domain.ErrorKindQueue, stats.Results[0].ErrorKind)
	assert.Contains(t, stats.Results[0].Error, "database is locked")
}

func TestIndexContent_InvalidItem(t *testing.T) {
	f := newOrchestratorFixture(5)
	stats, err := f.orch.IndexContent(context.Background(), []domain.IndexRequest{{ID: "x"}})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Failed)
	assert.Zero(t, f.acquirer.callCount())
}

func TestIndexContent_FailureDoesNotBlockSiblings(t *testing.T) {
	f := newOrchestratorFixture(5)
	items := requests(3, f.acquirer)
	f.acquirer.errs[items[1].URL] = &domain.FetchError{URL: items[1].URL, Kind: domain.FetchHTTPStatus, StatusCode: 500}

	stats, err := f.orch.IndexContent(context.Background(), items)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Succeeded)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, domain.ErrorKindFetch, stats.Results[1].ErrorKind)
}

func TestIndexSingleItem_Idempotent(t *testing.T) {
	f := newOrchestratorFixture(10)
	ctx := context.Background()
	f.acquirer.set("https://example.com/a", "one two three four five six seven eight nine")

	first, err := f.orch.IndexSingleItem(ctx, "item-a", "https://example.com/a")
	require.NoError(t, err)
	second, err := f.orch.IndexSingleItem(ctx, "item-a", "https://example.com/a")
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeIndexed, first.Outcome)
	assert.Equal(t, 3, first.ChunkCount)
	assert.Equal(t, first.ContentHash, second.ContentHash)
	assert.Equal(t, first.ChunkCount, second.ChunkCount)
	assert.True(t, second.Unchanged)

	text, err := f.content.GetTextByItem(ctx, "item-a")
	require.NoError(t, err)
	chunks, err := f.content.GetChunks(ctx, text.ID)
	require.NoError(t, err)
	assert.Len(t, chunks, 3)
	assert.Equal(t, 9, text.WordCount)
	assert.NotNil(t, text.CrawledAt)
	assert.NotNil(t, text.IndexedAt)
}

func TestIndexSingleItem_ChangedContentReplacesChunks(t *testing.T) {
	f := newOrchestratorFixture(10)
	ctx := context.Background()
	url := "https://example.com/a"

	f.acquirer.set(url, "alpha beta gamma delta epsilon zeta eta theta")
	_, err := f.orch.IndexSingleItem(ctx, "item-a", url)
	require.NoError(t, err)
	count, _ := f.engine.Count()
	require.Equal(t, uint64(2), count)

	f.acquirer.set(url, "short replacement")
	result, err := f.orch.IndexSingleItem(ctx, "item-a", url)
	require.NoError(t, err)

	assert.False(t, result.Unchanged)
	assert.Equal(t, 1, result.ChunkCount)
	count, _ = f.engine.Count()
	assert.Equal(t, uint64(1), count)
	assert.Equal(t, 1, f.vectors.count())
}

func TestIndexSingleItem_EmbeddingFailureIsolated(t *testing.T) {
	f := newOrchestratorFixture(10)
	ctx := context.Background()
	f.embedder.failOn = "poison"
	f.acquirer.set("https://example.com/a", "one two three four poison five six seven eight nine ten eleven")

	result, err := f.orch.IndexSingleItem(ctx, "item-a", "https://example.com/a")
	require.NoError(t, err)

	assert.Equal(t, domain.OutcomeIndexed, result.Outcome)
	assert.Equal(t, 3, result.ChunkCount)
	assert.Equal(t, 2, result.EmbeddedCount)
	assert.Equal(t, 2, f.vectors.count())

	text, _ := f.content.GetTextByItem(ctx, "item-a")
	chunks, _ := f.content.GetChunks(ctx, text.ID)
	var nulls int
	for _, c := range chunks {
		if c.Embedding == nil {
			nulls++
			assert.Contains(t, c.Text, "poison")
		}
	}
	assert.Equal(t, 1, nulls)
	assert.Equal(t, domain.IndexStatusIndexed, text.Status)
}

func TestIndexSingleItem_RedirectConflict(t *testing.T) {
	f := newOrchestratorFixture(10)
	ctx := context.Background()
	f.acquirer.set("https://example.com/b", "the original page body")
	_, err := f.orch.IndexSingleItem(ctx, "item-b", "https://example.com/b")
	require.NoError(t, err)

	f.acquirer.redirects["https://short.example/a"] = "https://example.com/b"
	result, err := f.orch.IndexSingleItem(ctx, "item-a", "https://short.example/a")

	var conflict *domain.RedirectConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "item-b", conflict.ExistingItemID)
	assert.Equal(t, domain.ErrorKindRedirectConflict, result.ErrorKind)

	status, err := f.orch.GetIndexStatus(ctx, "item-a")
	require.NoError(t, err)
	assert.Equal(t, domain.IndexStatusFailed, status.Status)
	assert.Contains(t, status.Error, "already indexed as item item-b")
}

func TestIndexSingleItem_RedirectToUnownedURL(t *testing.T) {
	f := newOrchestratorFixture(10)
	ctx := context.Background()
	f.acquirer.redirects["http://example.com/old"] = "https://example.com/new"
	f.acquirer.set("https://example.com/new", "moved page content")

	_, err := f.orch.IndexSingleItem(ctx, "item-a", "http://example.com/old")
	require.NoError(t, err)

	item, err := f.items.GetItem(ctx, "item-a")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/new", item.URL)
	assert.Contains(t, item.PriorURLs, "http://example.com/old")
}

func TestIndexSingleItem_NoContent(t *testing.T) {
	f := newOrchestratorFixture(10)
	ctx := context.Background()
	f.acquirer.set("https://youtu.be/dQw4w9WgXcQ", "")

	result, err := f.orch.IndexSingleItem(ctx, "video", "https://youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeIndexed, result.Outcome)
	assert.Zero(t, result.ChunkCount)

	status, err := f.orch.GetIndexStatus(ctx, "video")
	require.NoError(t, err)
	assert.Equal(t, domain.IndexStatusIndexed, status.Status)
	assert.Equal(t, domain.NoContentMessage, status.Error)
	assert.Zero(t, f.embedder.callCount())
}

func TestIndexSingleItem_FetchFailureMarksFailed(t *testing.T) {
	f := newOrchestratorFixture(10)
	ctx := context.Background()
	f.acquirer.errs["https://example.com/slow"] = &domain.FetchError{URL: "https://example.com/slow", Kind: domain.FetchTimeout}

	result, err := f.orch.IndexSingleItem(ctx, "item-a", "https://example.com/slow")
	require.Error(t, err)
	assert.Equal(t, domain.ErrorKindFetch, result.ErrorKind)

	status, err := f.orch.GetIndexStatus(ctx, "item-a")
	require.NoError(t, err)
	assert.Equal(t, domain.IndexStatusFailed, status.Status)
	assert.Contains(t, status.Error, "timed out")
}

func TestIndexSingleItem_Disabled(t *testing.T) {
	f := newOrchestratorFixture(10)
	f.orch.SetEnabled(false)

	_, err := f.orch.OnContentChanged(context.Background(), "item-a", "https://example.com/a")
	assert.ErrorIs(t, err, domain.ErrIndexingDisabled)
	assert.Zero(t, f.acquirer.callCount())

	_, err = f.orch.GetIndexStatus(context.Background(), "item-a")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestIndexFromExistingContent(t *testing.T) {
	f := newOrchestratorFixture(10)
	ctx := context.Background()

	text := &domain.ContentText{ContentItemID: "api-item", FullText: "synced from an api\n\nwith two paragraphs"}
	require.NoError(t, f.content.UpsertText(ctx, text))

	result, err := f.orch.IndexFromExistingContent(ctx, text.ID)
	require.NoError(t, err)

	assert.Equal(t, "api-item", result.ContentItemID)
	assert.Equal(t, 2, result.ChunkCount)
	assert.Zero(t, f.acquirer.callCount())

	stored, err := f.content.GetText(ctx, text.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.IndexStatusIndexed, stored.Status)
	assert.Equal(t, "synced from an api with two paragraphs", stored.PlainText)
	assert.Equal(t, hashText(stored.PlainText), stored.ContentHash)

	_, err = f.orch.IndexFromExistingContent(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetIndexStatus(t *testing.T) {
	f := newOrchestratorFixture(10)
	ctx := context.Background()
	f.acquirer.set("https://example.com/a", "a b c d e f")
	_, err := f.orch.IndexSingleItem(ctx, "item-a", "https://example.com/a")
	require.NoError(t, err)

	status, err := f.orch.GetIndexStatus(ctx, "item-a")
	require.NoError(t, err)
	assert.Equal(t, domain.IndexStatusIndexed, status.Status)
	assert.Equal(t, 6, status.WordCount)
	assert.Equal(t, 6, status.TokenCount)
	assert.Equal(t, 2, status.ChunkCount)
	assert.NotNil(t, status.IndexedAt)
}

func TestRegisterItem(t *testing.T) {
	f := newOrchestratorFixture(10)
	ctx := context.Background()

	item, err := f.orch.RegisterItem(ctx, "item-1", "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", item.URL)

	item, err = f.orch.RegisterItem(ctx, "item-1", "https://example.com/b")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/b", item.URL)
	assert.Equal(t, []string{"https://example.com/a"}, item.PriorURLs)

	owner, err := f.items.FindByURL(ctx, "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "item-1", owner.ID)

	_, err = f.orch.RegisterItem(ctx, "", "https://example.com/c")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Zero(t, f.acquirer.callCount())
}
