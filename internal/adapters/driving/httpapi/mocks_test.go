package httpapi

import (
	"context"
	"sync"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

type mockIndexingService struct {
	mu        sync.Mutex
	enabled   bool
	stats     *domain.IndexingStats
	result    domain.ItemResult
	status    *domain.IndexStatusView
	queue     domain.QueueStats
	err       error
	received  []domain.IndexRequest
	changedID string
	changedTo string
}

func (m *mockIndexingService) IndexContent(_ context.Context, items []domain.IndexRequest) (*domain.IndexingStats, error) {
	m.received = items
	return m.stats, m.err
}

func (m *mockIndexingService) RegisterItem(_ context.Context, id, url string) (*domain.ContentItem, error) {
	return &domain.ContentItem{ID: id, URL: url}, m.err
}

func (m *mockIndexingService) IndexSingleItem(_ context.Context, id, url string) (domain.ItemResult, error) {
	return m.result, m.err
}

func (m *mockIndexingService) IndexFromExistingContent(_ context.Context, _ string) (domain.ItemResult, error) {
	return m.result, m.err
}

func (m *mockIndexingService) OnContentChanged(_ context.Context, id, url string) (domain.ItemResult, error) {
	m.changedID, m.changedTo = id, url
	return m.result, m.err
}

func (m *mockIndexingService) GetIndexStatus(_ context.Context, _ string) (*domain.IndexStatusView, error) {
	return m.status, m.err
}

func (m *mockIndexingService) QueueStats(_ context.Context) (domain.QueueStats, error) {
	return m.queue, m.err
}

func (m *mockIndexingService) Enabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled
}

func (m *mockIndexingService) SetEnabled(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = enabled
}

type mockSearchService struct {
	results     []domain.SearchResult
	err         error
	lastQuery   string
	lastLimit   int
	keywordUsed bool
}

func (m *mockSearchService) HybridSearch(_ context.Context, query string, opts domain.SearchOptions) ([]domain.SearchResult, error) {
	m.lastQuery, m.lastLimit = query, opts.Limit
	return m.results, m.err
}

func (m *mockSearchService) KeywordSearch(_ context.Context, query string, limit int) ([]domain.SearchResult, error) {
	m.lastQuery, m.lastLimit, m.keywordUsed = query, limit, true
	return m.results, m.err
}

func (m *mockSearchService) RebuildKeywordIndex(_ context.Context) (int, error) {
	return 0, m.err
}

type mockSettingsService struct {
	enabled *bool
	err     error
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := domain.DefaultAppSettings()
	return &s, nil
}

func (m *mockSettingsService) Save(_ *domain.AppSettings) error { return m.err }

func (m *mockSettingsService) Set(_, _ string) error { return m.err }

func (m *mockSettingsService) SetIndexingEnabled(enabled bool) error {
	if m.err != nil {
		return m.err
	}
	m.enabled = &enabled
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(_ domain.AIProvider, _, _ string) error {
	return m.err
}

func (m *mockSettingsService) Validate() error { return m.err }

func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }

func (m *mockSettingsService) Keys() []string { return nil }

func (m *mockSettingsService) Describe() (map[string]string, error) { return map[string]string{}, m.err }
