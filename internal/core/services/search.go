package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
	"github.com/custodia-labs/contentindex/internal/core/ports/driving"
	"github.com/custodia-labs/contentindex/internal/logger"
)

// Ensure SearchService implements the interface.
var _ driving.SearchService = (*SearchService)(nil)

// batchIndexer is implemented by search engines that can index many
// chunks in one call.
type batchIndexer interface {
	IndexBatch(ctx context.Context, chunks []domain.ContentChunk) error
}

// reindexBatchSize bounds how many chunks are buffered during a rebuild.
const reindexBatchSize = 500

// SearchService answers keyword and hybrid queries over indexed chunks.
type SearchService struct {
	contentStore     driven.ContentStore
	searchEngine     driven.SearchEngine
	vectorIndex      driven.VectorIndex
	embeddingService driven.EmbeddingService
	settings         domain.SearchSettings
}

// NewSearchService creates a new search service.
// The vectorIndex and embeddingService parameters are optional (can be nil).
func NewSearchService(
	contentStore driven.ContentStore,
	searchEngine driven.SearchEngine,
	vectorIndex driven.VectorIndex,
	embeddingService driven.EmbeddingService,
	settings domain.SearchSettings,
) *SearchService {
	defaults := domain.DefaultAppSettings().Search
	if settings.RRFK <= 0 {
		settings.RRFK = defaults.RRFK
	}
	if settings.CandidateMultiplier <= 0 {
		settings.CandidateMultiplier = defaults.CandidateMultiplier
	}
	if settings.DefaultLimit <= 0 {
		settings.DefaultLimit = defaults.DefaultLimit
	}
	if settings.SnippetLength <= 0 {
		settings.SnippetLength = defaults.SnippetLength
	}
	return &SearchService{
		contentStore:     contentStore,
		searchEngine:     searchEngine,
		vectorIndex:      vectorIndex,
		embeddingService: embeddingService,
		settings:         settings,
	}
}

func (s *SearchService) limit(n int) int {
	if n <= 0 {
		return s.settings.DefaultLimit
	}
	return n
}

// HybridSearch runs the keyword and vector lookups concurrently, each
// over a candidate pool larger than the limit, and fuses them with RRF.
// If one lookup fails the other's ranking is used alone.
func (s *SearchService) HybridSearch(
	ctx context.Context, query string, opts domain.SearchOptions,
) ([]domain.SearchResult, error) {
	logger.Section("Hybrid Search")

	query = strings.TrimSpace(query)
	if query == "" {
		logger.Debug("Empty query, returning no results")
		return []domain.SearchResult{}, nil
	}

	limit := s.limit(opts.Limit)
	pool := limit * s.settings.CandidateMultiplier
	logger.Debug("Query: %q, limit: %d, candidate pool: %d", query, limit, pool)

	var (
		keyword, semantic       []rankedChunk
		keywordErr, semanticErr error
		wg                      sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		keyword, keywordErr = s.keywordCandidates(ctx, query, pool)
	}()
	go func() {
		defer wg.Done()
		semantic, semanticErr = s.vectorCandidates(ctx, query, opts.Embedding, pool)
	}()
	wg.Wait()

	switch {
	case keywordErr != nil && semanticErr != nil:
		logger.Warn("Hybrid search: both keyword and vector lookups failed")
		return nil, fmt.Errorf("hybrid search: keyword: %w; vector: %w", keywordErr, semanticErr)
	case keywordErr != nil:
		logger.Warn("Hybrid search: keyword lookup failed, using vector results only: %v", keywordErr)
	case semanticErr != nil:
		if errors.Is(semanticErr, domain.ErrEmbeddingUnavailable) || errors.Is(semanticErr, domain.ErrVectorIndexUnavailable) {
			logger.Debug("Hybrid search: %v, using keyword results only", semanticErr)
		} else {
			logger.Warn("Hybrid search: vector lookup failed, using keyword results only: %v", semanticErr)
		}
	}

	fused := reciprocalRankFusion(keyword, semantic, s.settings.RRFK)
	logger.Debug("Fused %d keyword + %d vector candidates into %d", len(keyword), len(semantic), len(fused))

	results, err := s.hydrate(ctx, fused, query, limit)
	if err != nil {
		return nil, err
	}
	logger.Info("Hybrid search returned %d results", len(results))
	return results, nil
}

// KeywordSearch returns full-text matches only, scored 1/(rank+1).
// It never embeds the query.
func (s *SearchService) KeywordSearch(ctx context.Context, query string, limit int) ([]domain.SearchResult, error) {
	logger.Section("Keyword Search")

	query = strings.TrimSpace(query)
	if query == "" {
		return []domain.SearchResult{}, nil
	}
	limit = s.limit(limit)

	candidates, err := s.keywordCandidates(ctx, query, limit)
	if err != nil {
		return nil, err
	}

	fused := make([]fusedChunk, len(candidates))
	for i, c := range candidates {
		fused[i] = fusedChunk{chunkID: c.chunkID, keywordScore: c.score, matchType: domain.MatchKeyword}
	}

	results, err := s.hydrate(ctx, fused, query, limit)
	if err != nil {
		return nil, err
	}
	for rank := range results {
		results[rank].RelevanceScore = 1.0 / float64(rank+1)
	}
	logger.Info("Keyword search returned %d results", len(results))
	return results, nil
}

func (s *SearchService) keywordCandidates(ctx context.Context, query string, limit int) ([]rankedChunk, error) {
	if s.searchEngine == nil {
		return nil, domain.ErrSearchUnavailable
	}

	hits, err := s.searchEngine.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	logger.Debug("Keyword lookup: %d hits", len(hits))

	ranked := make([]rankedChunk, len(hits))
	for i, hit := range hits {
		ranked[i] = rankedChunk{chunkID: hit.ChunkID, score: hit.Score}
	}
	return ranked, nil
}

func (s *SearchService) vectorCandidates(ctx context.Context, query string, embedding []float32, limit int) ([]rankedChunk, error) {
	if s.vectorIndex == nil {
		return nil, domain.ErrVectorIndexUnavailable
	}

	if len(embedding) == 0 {
		if s.embeddingService == nil {
			return nil, domain.ErrEmbeddingUnavailable
		}
		var err error
		embedding, err = s.embeddingService.Embed(ctx, query)
		if err != nil {
			return nil, fmt.Errorf("embed query: %w", err)
		}
	}

	hits, err := s.vectorIndex.Search(ctx, embedding, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	logger.Debug("Vector lookup: %d hits", len(hits))

	ranked := make([]rankedChunk, len(hits))
	for i, hit := range hits {
		ranked[i] = rankedChunk{chunkID: hit.ChunkID, score: hit.Similarity}
	}
	return ranked, nil
}

// hydrate loads chunk text for fused candidates, in order, up to limit.
// Candidates whose chunk no longer exists are skipped.
func (s *SearchService) hydrate(ctx context.Context, fused []fusedChunk, query string, limit int) ([]domain.SearchResult, error) {
	results := make([]domain.SearchResult, 0, min(len(fused), limit))
	if len(fused) == 0 {
		return results, nil
	}

	ids := make([]string, len(fused))
	for i, fc := range fused {
		ids[i] = fc.chunkID
	}
	chunks, err := s.contentStore.GetChunksByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load chunks: %w", err)
	}
	byID := make(map[string]domain.ContentChunk, len(chunks))
	for _, c := range chunks {
		byID[c.ID] = c
	}

	for _, fc := range fused {
		if len(results) == limit {
			break
		}
		chunk, ok := byID[fc.chunkID]
		if !ok {
			logger.Debug("Skipping stale hit %s", fc.chunkID)
			continue
		}
		snippet := ExtractSnippet(chunk.Text, query, s.settings.SnippetLength)
		results = append(results, domain.SearchResult{
			ContentItemID:  chunk.ContentItemID,
			ChunkID:        chunk.ID,
			ChunkIndex:     chunk.Index,
			ChunkText:      chunk.Text,
			Snippet:        snippet.Text,
			RelevanceScore: fc.score,
			KeywordScore:   fc.keywordScore,
			Similarity:     fc.similarity,
			MatchType:      fc.matchType,
			MatchedTerms:   snippet.MatchedTerms,
		})
	}
	return results, nil
}

// RebuildKeywordIndex re-indexes every stored chunk and returns how many
// were written.
func (s *SearchService) RebuildKeywordIndex(ctx context.Context) (int, error) {
	if s.searchEngine == nil {
		return 0, domain.ErrSearchUnavailable
	}

	batcher, canBatch := s.searchEngine.(batchIndexer)
	var (
		count int
		batch []domain.ContentChunk
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := batcher.IndexBatch(ctx, batch); err != nil {
			return err
		}
		batch = batch[:0]
		return nil
	}

	err := s.contentStore.ForEachChunk(ctx, func(c domain.ContentChunk) error {
		count++
		if !canBatch {
			return s.searchEngine.Index(ctx, c)
		}
		batch = append(batch, c)
		if len(batch) >= reindexBatchSize {
			return flush()
		}
		return nil
	})
	if err == nil && canBatch {
		err = flush()
	}
	if err != nil {
		return 0, fmt.Errorf("rebuild keyword index: %w", err)
	}

	logger.Info("Rebuilt keyword index with %d chunks", count)
	return count, nil
}
