package cache

import (
	"context"

	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
	"github.com/custodia-labs/contentindex/internal/logger"
)

// Ensure CachedService implements the interface.
var _ driven.EmbeddingService = (*CachedService)(nil)

// CachedService consults an EmbeddingCache before calling the wrapped service.
// Cache read and write failures are logged and never fail an embedding.
type CachedService struct {
	inner driven.EmbeddingService
	cache driven.EmbeddingCache
}

// Wrap returns inner decorated with cache.
func Wrap(inner driven.EmbeddingService, cache driven.EmbeddingCache) *CachedService {
	return &CachedService{inner: inner, cache: cache}
}

// Embed returns a cached vector or embeds and stores it.
func (s *CachedService) Embed(ctx context.Context, text string) ([]float32, error) {
	model := s.inner.ModelName()
	if vec, ok := s.lookup(ctx, model, text); ok {
		return vec, nil
	}

	vec, err := s.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.store(ctx, model, text, vec)
	return vec, nil
}

// EmbedBatch embeds only the texts missing from the cache.
func (s *CachedService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	model := s.inner.ModelName()
	out := make([][]float32, len(texts))

	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vec, ok := s.lookup(ctx, model, text); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vectors, err := s.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, vec := range vectors {
		out[missingIdx[j]] = vec
		s.store(ctx, model, missing[j], vec)
	}
	return out, nil
}

func (s *CachedService) lookup(ctx context.Context, model, text string) ([]float32, bool) {
	vec, ok, err := s.cache.Get(ctx, model, text)
	if err != nil {
		logger.Warn("embedding cache read failed: %v", err)
		return nil, false
	}
	return vec, ok
}

func (s *CachedService) store(ctx context.Context, model, text string, vec []float32) {
	if len(vec) == 0 {
		return
	}
	if err := s.cache.Put(ctx, model, text, vec); err != nil {
		logger.Warn("embedding cache write failed: %v", err)
	}
}

// Dimensions returns the wrapped service's dimensions.
func (s *CachedService) Dimensions() int { return s.inner.Dimensions() }

// ModelName returns the wrapped service's model.
func (s *CachedService) ModelName() string { return s.inner.ModelName() }

// Ping pings the wrapped service.
func (s *CachedService) Ping(ctx context.Context) error { return s.inner.Ping(ctx) }

// Close closes the wrapped service and the cache.
func (s *CachedService) Close() error {
	err := s.inner.Close()
	if cerr := s.cache.Close(); err == nil {
		err = cerr
	}
	return err
}
