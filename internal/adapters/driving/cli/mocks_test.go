package cli

import (
	"bytes"
	"context"
	"strings"
	"time"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

type mockIndexingService struct {
	enabled  bool
	stats    *domain.IndexingStats
	result   domain.ItemResult
	status   *domain.IndexStatusView
	queue    domain.QueueStats
	err      error
	received []domain.IndexRequest
	calls    []string
}

func (m *mockIndexingService) IndexContent(_ context.Context, items []domain.IndexRequest) (*domain.IndexingStats, error) {
	m.received = items
	m.calls = append(m.calls, "IndexContent")
	if m.stats != nil || m.err != nil {
		return m.stats, m.err
	}
	stats := &domain.IndexingStats{Total: len(items)}
	for _, it := range items {
		stats.Add(domain.ItemResult{ContentItemID: it.ID, URL: it.URL, Outcome: domain.OutcomeIndexed, ChunkCount: 1})
	}
	return stats, nil
}

func (m *mockIndexingService) RegisterItem(_ context.Context, id, url string) (*domain.ContentItem, error) {
	m.calls = append(m.calls, "RegisterItem")
	if m.err != nil {
		return nil, m.err
	}
	return &domain.ContentItem{ID: id, URL: url}, nil
}

func (m *mockIndexingService) IndexSingleItem(_ context.Context, _, _ string) (domain.ItemResult, error) {
	m.calls = append(m.calls, "IndexSingleItem")
	return m.result, m.err
}

func (m *mockIndexingService) IndexFromExistingContent(_ context.Context, _ string) (domain.ItemResult, error) {
	m.calls = append(m.calls, "IndexFromExistingContent")
	return m.result, m.err
}

func (m *mockIndexingService) OnContentChanged(_ context.Context, _, _ string) (domain.ItemResult, error) {
	m.calls = append(m.calls, "OnContentChanged")
	return m.result, m.err
}

func (m *mockIndexingService) GetIndexStatus(_ context.Context, _ string) (*domain.IndexStatusView, error) {
	return m.status, m.err
}

func (m *mockIndexingService) QueueStats(_ context.Context) (domain.QueueStats, error) {
	return m.queue, m.err
}

func (m *mockIndexingService) Enabled() bool { return m.enabled }

func (m *mockIndexingService) SetEnabled(enabled bool) { m.enabled = enabled }

type mockSearchService struct {
	results     []domain.SearchResult
	err         error
	keywordUsed bool
	lastLimit   int
	reindexed   int
}

func (m *mockSearchService) HybridSearch(_ context.Context, _ string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.lastLimit = opts.Limit
	return m.results, m.err
}

func (m *mockSearchService) KeywordSearch(_ context.Context, _ string, limit int) ([]domain.SearchResult, error) {
	m.keywordUsed, m.lastLimit = true, limit
	return m.results, m.err
}

func (m *mockSearchService) RebuildKeywordIndex(_ context.Context) (int, error) {
	return m.reindexed, m.err
}

type mockSettingsService struct {
	values   map[string]string
	err      error
	set      map[string]string
	provider domain.AIProvider
	apiKey   string
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := domain.DefaultAppSettings()
	s.Embedding.Provider = m.provider
	s.Embedding.Model = domain.DefaultEmbeddingModels()[m.provider]
	return &s, nil
}

func (m *mockSettingsService) Save(_ *domain.AppSettings) error { return m.err }

func (m *mockSettingsService) Set(key, value string) error {
	if m.err != nil {
		return m.err
	}
	if m.set == nil {
		m.set = make(map[string]string)
	}
	m.set[key] = value
	return nil
}

func (m *mockSettingsService) SetIndexingEnabled(_ bool) error { return m.err }

func (m *mockSettingsService) SetEmbeddingProvider(p domain.AIProvider, _, apiKey string) error {
	if m.err != nil {
		return m.err
	}
	m.provider, m.apiKey = p, apiKey
	return nil
}

func (m *mockSettingsService) Validate() error { return m.err }

func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

func (m *mockSettingsService) Keys() []string {
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	return keys
}

func (m *mockSettingsService) Describe() (map[string]string, error) {
	return m.values, m.err
}

type mockWorker struct {
	ran bool
}

func (m *mockWorker) Run(ctx context.Context) error {
	m.ran = true
	<-ctx.Done()
	return nil
}

func (m *mockWorker) ProcessBatch(_ context.Context) (domain.BatchReport, error) {
	return domain.BatchReport{}, nil
}

type mockScheduler struct {
	started, stopped bool
	run              domain.TaskRun
	history          []domain.TaskRun
	err              error
}

func (m *mockScheduler) Start(ctx context.Context) error {
	m.started = true
	<-ctx.Done()
	return nil
}

func (m *mockScheduler) Stop() error {
	m.stopped = true
	return nil
}

func (m *mockScheduler) RunTask(_ context.Context, taskID string) (domain.TaskRun, error) {
	m.run.TaskID = taskID
	return m.run, m.err
}

func (m *mockScheduler) History(_ context.Context, _ string, limit int) ([]domain.TaskRun, error) {
	return m.history[:min(limit, len(m.history))], m.err
}

type testServices struct {
	indexing  *mockIndexingService
	search    *mockSearchService
	settings  *mockSettingsService
	worker    *mockWorker
	scheduler *mockScheduler
}

// setupTestServices installs mocks and returns them with a restore func.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		indexing:  &mockIndexingService{enabled: true},
		search:    &mockSearchService{},
		settings:  &mockSettingsService{values: map[string]string{}},
		worker:    &mockWorker{},
		scheduler: &mockScheduler{},
	}

	oldIndexing, oldSearch, oldSettings := indexingService, searchService, settingsService
	oldWorker, oldScheduler, oldBootstrap := workerService, schedulerService, bootstrap

	bootstrap = nil
	SetServices(&Services{
		Indexing:  ts.indexing,
		Search:    ts.search,
		Settings:  ts.settings,
		Worker:    ts.worker,
		Scheduler: ts.scheduler,
	})

	return ts, func() {
		indexingService, searchService, settingsService = oldIndexing, oldSearch, oldSettings
		workerService, schedulerService, bootstrap = oldWorker, oldScheduler, oldBootstrap
		closeFn = nil
	}
}

// execute runs the root command with args and returns its output.
func execute(args ...string) (string, error) {
	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetIn(strings.NewReader(""))
	rootCmd.SetArgs(args)
	defer func() {
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}()

	err := rootCmd.ExecuteContext(context.Background())
	return buf.String(), err
}

func ptrTime(t time.Time) *time.Time { return &t }
