package services

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
)

// mockSearchEngine implements driven.SearchEngine for testing.
type mockSearchEngine struct {
	mu        sync.Mutex
	hits      []driven.SearchHit
	searchErr error
	indexErr  error
	indexed   map[string]domain.ContentChunk
	batches   int
}

func newMockSearchEngine() *mockSearchEngine {
	return &mockSearchEngine{indexed: make(map[string]domain.ContentChunk)}
}

func (m *mockSearchEngine) Index(_ context.Context, chunk domain.ContentChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.indexErr != nil {
		return m.indexErr
	}
	m.indexed[chunk.ID] = chunk
	return nil
}

func (m *mockSearchEngine) Delete(_ context.Context, chunkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.indexed, chunkID)
	return nil
}

func (m *mockSearchEngine) Search(_ context.Context, query string, limit int) ([]driven.SearchHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	hits := m.hits
	if hits == nil {
		// Fall back to substring matching over indexed chunks.
		for id, c := range m.indexed {
			if strings.Contains(strings.ToLower(c.Text), strings.ToLower(query)) {
				hits = append(hits, driven.SearchHit{ChunkID: id, Score: 1})
			}
		}
	}
	if limit < len(hits) {
		hits = hits[:limit]
	}
	return hits, nil
}

func (m *mockSearchEngine) Count() (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return uint64(len(m.indexed)), nil
}

func (m *mockSearchEngine) Close() error { return nil }

// batchingSearchEngine adds IndexBatch to mockSearchEngine.
type batchingSearchEngine struct {
	*mockSearchEngine
}

func (b batchingSearchEngine) IndexBatch(ctx context.Context, chunks []domain.ContentChunk) error {
	b.mu.Lock()
	b.batches++
	b.mu.Unlock()
	for _, c := range chunks {
		if err := b.Index(ctx, c); err != nil {
			return err
		}
	}
	return nil
}

// mockVectorIndex implements driven.VectorIndex for testing.
type mockVectorIndex struct {
	mu        sync.Mutex
	hits      []driven.VectorHit
	searchErr error
	vectors   map[string][]float32
	lastQuery []float32
}

func newMockVectorIndex() *mockVectorIndex {
	return &mockVectorIndex{vectors: make(map[string][]float32)}
}

func (m *mockVectorIndex) Add(_ context.Context, chunkID string, embedding []float32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vectors[chunkID] = embedding
	return nil
}

func (m *mockVectorIndex) Delete(_ context.Context, chunkID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.vectors, chunkID)
	return nil
}

func (m *mockVectorIndex) Search(_ context.Context, query []float32, k int) ([]driven.VectorHit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastQuery = query
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if k < len(m.hits) {
		return m.hits[:k], nil
	}
	return m.hits, nil
}

func (m *mockVectorIndex) Close() error { return nil }

func (m *mockVectorIndex) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.vectors)
}

// mockEmbeddingService implements driven.EmbeddingService for testing.
// Texts containing failOn are rejected.
type mockEmbeddingService struct {
	mu        sync.Mutex
	embedding []float32
	embedErr  error
	failOn    string
	calls     int
}

func (m *mockEmbeddingService) Embed(_ context.Context, text string) ([]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if m.failOn != "" && strings.Contains(text, m.failOn) {
		return nil, &domain.EmbeddingError{Reason: domain.EmbeddingUpstream, Cause: errors.New("model overloaded")}
	}
	if m.embedding != nil {
		return m.embedding, nil
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

func (m *mockEmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := m.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (m *mockEmbeddingService) Dimensions() int {
	return 3
}

func (m *mockEmbeddingService) ModelName() string {
	return "mock-embed"
}

func (m *mockEmbeddingService) Ping(_ context.Context) error {
	return m.embedErr
}

func (m *mockEmbeddingService) Close() error {
	return nil
}

func (m *mockEmbeddingService) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}
