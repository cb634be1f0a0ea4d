// Package lazy defers embedding service construction until the first
// embedding is requested, so keyword-only paths never need a provider.
package lazy

import (
	"context"
	"errors"
	"sync"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
	"github.com/custodia-labs/contentindex/internal/logger"
)

// Ensure Embedder implements the interface.
var _ driven.EmbeddingService = (*Embedder)(nil)

// Factory builds the underlying service. A nil service with a nil error
// means no provider is configured.
type Factory func(ctx context.Context) (driven.EmbeddingService, error)

// Embedder is an EmbeddingService that builds its delegate on first use.
type Embedder struct {
	factory Factory

	mu    sync.RWMutex
	inner driven.EmbeddingService
}

// New creates a lazy embedder.
func New(factory Factory) *Embedder {
	return &Embedder{factory: factory}
}

var errUnconfigured = errors.New("no embedding provider configured")

func (e *Embedder) get(ctx context.Context) (driven.EmbeddingService, error) {
	e.mu.RLock()
	if e.inner != nil {
		defer e.mu.RUnlock()
		return e.inner, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.inner != nil {
		return e.inner, nil
	}

	svc, err := e.factory(ctx)
	if err != nil {
		var embedErr *domain.EmbeddingError
		if errors.As(err, &embedErr) {
			return nil, err
		}
		return nil, &domain.EmbeddingError{Reason: domain.EmbeddingUnconfigured, Cause: err}
	}
	if svc == nil {
		return nil, &domain.EmbeddingError{Reason: domain.EmbeddingUnconfigured, Cause: errUnconfigured}
	}

	logger.Debug("embedding service initialised: %s", svc.ModelName())
	e.inner = svc
	return svc, nil
}

// Embed generates a vector embedding, initialising the provider if needed.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	svc, err := e.get(ctx)
	if err != nil {
		return nil, err
	}
	return svc.Embed(ctx, text)
}

// EmbedBatch generates embeddings for texts.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	svc, err := e.get(ctx)
	if err != nil {
		return nil, err
	}
	return svc.EmbedBatch(ctx, texts)
}

// Dimensions returns the delegate's dimensions, or 0 before initialisation.
func (e *Embedder) Dimensions() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.inner == nil {
		return 0
	}
	return e.inner.Dimensions()
}

// ModelName returns the delegate's model, or "" before initialisation.
func (e *Embedder) ModelName() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.inner == nil {
		return ""
	}
	return e.inner.ModelName()
}

// Ping initialises the delegate and pings it.
func (e *Embedder) Ping(ctx context.Context) error {
	svc, err := e.get(ctx)
	if err != nil {
		return err
	}
	return svc.Ping(ctx)
}

// Reset closes the current delegate so the next call rebuilds it from
// fresh settings.
func (e *Embedder) Reset() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inner == nil {
		return nil
	}
	err := e.inner.Close()
	e.inner = nil
	return err
}

// Close releases the delegate if it was built.
func (e *Embedder) Close() error {
	return e.Reset()
}
