package mcp

import (
	"context"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

// mockSearchService is a mock implementation of driving.SearchService.
type mockSearchService struct {
	results   []domain.SearchResult
	err       error
	lastLimit int
	keyword   bool
}

func (m *mockSearchService) HybridSearch(
	_ context.Context,
	_ string,
	opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	m.lastLimit = opts.Limit
	return m.results, m.err
}

func (m *mockSearchService) KeywordSearch(_ context.Context, _ string, limit int) ([]domain.SearchResult, error) {
	m.lastLimit, m.keyword = limit, true
	return m.results, m.err
}

func (m *mockSearchService) RebuildKeywordIndex(_ context.Context) (int, error) {
	return 0, m.err
}

// mockIndexingService is a mock implementation of driving.IndexingService.
type mockIndexingService struct {
	stats    *domain.IndexingStats
	status   *domain.IndexStatusView
	queue    domain.QueueStats
	err      error
	received []domain.IndexRequest
}

func (m *mockIndexingService) IndexContent(_ context.Context, items []domain.IndexRequest) (*domain.IndexingStats, error) {
	m.received = items
	return m.stats, m.err
}

func (m *mockIndexingService) RegisterItem(_ context.Context, id, url string) (*domain.ContentItem, error) {
	return &domain.ContentItem{ID: id, URL: url}, m.err
}

func (m *mockIndexingService) IndexSingleItem(_ context.Context, _, _ string) (domain.ItemResult, error) {
	return domain.ItemResult{}, m.err
}

func (m *mockIndexingService) IndexFromExistingContent(_ context.Context, _ string) (domain.ItemResult, error) {
	return domain.ItemResult{}, m.err
}

func (m *mockIndexingService) OnContentChanged(_ context.Context, _, _ string) (domain.ItemResult, error) {
	return domain.ItemResult{}, m.err
}

func (m *mockIndexingService) GetIndexStatus(_ context.Context, _ string) (*domain.IndexStatusView, error) {
	return m.status, m.err
}

func (m *mockIndexingService) QueueStats(_ context.Context) (domain.QueueStats, error) {
	return m.queue, m.err
}

func (m *mockIndexingService) Enabled() bool { return true }

func (m *mockIndexingService) SetEnabled(_ bool) {}
