package connectors

import (
	"context"
	"fmt"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
	"github.com/custodia-labs/contentindex/internal/logger"
)

// Ensure Dispatcher implements the interface.
var _ driven.Acquirer = (*Dispatcher)(nil)

// DefaultMinContentLength is the shortest static text accepted without
// trying the rendered fallback.
const DefaultMinContentLength = 100

// Dispatcher routes each URL to the first strategy that matches it.
type Dispatcher struct {
	strategies       []driven.AcquisitionStrategy
	primary          driven.AcquisitionStrategy
	fallback         driven.AcquisitionStrategy
	minContentLength int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithStrategy adds a URL-specific strategy checked before the default.
func WithStrategy(s driven.AcquisitionStrategy) Option {
	return func(d *Dispatcher) {
		if s != nil {
			d.strategies = append(d.strategies, s)
		}
	}
}

// WithRenderedFallback retries default-strategy results shorter than
// minContentLength characters with s.
func WithRenderedFallback(s driven.AcquisitionStrategy, minContentLength int) Option {
	return func(d *Dispatcher) {
		d.fallback = s
		if minContentLength > 0 {
			d.minContentLength = minContentLength
		}
	}
}

// NewDispatcher creates a dispatcher whose default strategy is primary.
func NewDispatcher(primary driven.AcquisitionStrategy, opts ...Option) *Dispatcher {
	d := &Dispatcher{primary: primary, minContentLength: DefaultMinContentLength}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// StrategyFor returns the strategy that would handle url.
func (d *Dispatcher) StrategyFor(url string) driven.AcquisitionStrategy {
	for _, s := range d.strategies {
		if s.Matches(url) {
			return s
		}
	}
	return d.primary
}

// Acquire fetches url with the matching strategy.
func (d *Dispatcher) Acquire(ctx context.Context, url string) (*domain.AcquisitionResult, error) {
	s := d.StrategyFor(url)
	if s == nil {
		return nil, &domain.FetchError{URL: url, Kind: domain.FetchNetwork, Cause: fmt.Errorf("no strategy: %w", domain.ErrUnsupportedType)}
	}

	result, err := s.Acquire(ctx, url)
	if err != nil || s != d.primary || d.fallback == nil || !d.tooShort(result) {
		return result, err
	}

	logger.Debug("Static text for %s is %d chars, rendering", url, len([]rune(result.PlainText)))
	rendered, renderErr := d.fallback.Acquire(ctx, url)
	if renderErr != nil {
		logger.Warn("Rendered fallback failed for %s: %v", url, renderErr)
		return result, nil
	}
	if len([]rune(rendered.PlainText)) <= len([]rune(result.PlainText)) {
		return result, nil
	}
	rendered.Duration += result.Duration
	return rendered, nil
}

func (d *Dispatcher) tooShort(r *domain.AcquisitionResult) bool {
	return len([]rune(r.PlainText)) < d.minContentLength
}
