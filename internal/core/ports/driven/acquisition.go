package driven

import (
	"context"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

// Acquirer turns a URL into normalised plain text.
// Failures are returned as *domain.FetchError.
type Acquirer interface {
	Acquire(ctx context.Context, url string) (*domain.AcquisitionResult, error)
}

// AcquisitionStrategy is one way of acquiring a URL's text.
// The dispatcher picks a strategy by URL shape and may fall back
// from a static page to a rendered one.
type AcquisitionStrategy interface {
	// Kind names the strategy.
	Kind() domain.StrategyKind

	// Matches reports whether the strategy is the primary choice for url.
	Matches(url string) bool

	// Acquire fetches and extracts text.
	Acquire(ctx context.Context, url string) (*domain.AcquisitionResult, error)
}
