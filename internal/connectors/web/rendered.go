package web

import (
	"context"
	"errors"
	"time"

	"github.com/chromedp/chromedp"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
	"github.com/custodia-labs/contentindex/internal/normalisers/textclean"
)

// Ensure RenderedPage implements the interface.
var _ driven.AcquisitionStrategy = (*RenderedPage)(nil)

const (
	// DefaultRenderTimeout bounds one rendered acquisition.
	DefaultRenderTimeout = 30 * time.Second

	// DefaultSettle is how long client-side scripts get after the body is ready.
	DefaultSettle = 1500 * time.Millisecond
)

// RenderedPage loads a URL in a headless browser tab, lets scripts run,
// then extracts the rendered DOM with the HTML normaliser.
type RenderedPage struct {
	tabs     TabOpener
	registry driven.NormaliserRegistry
	timeout  time.Duration
	settle   time.Duration
}

// NewRenderedPage creates a rendered page strategy.
func NewRenderedPage(tabs TabOpener, registry driven.NormaliserRegistry, timeout, settle time.Duration) *RenderedPage {
	if timeout <= 0 {
		timeout = DefaultRenderTimeout
	}
	if settle < 0 {
		settle = 0
	}
	return &RenderedPage{tabs: tabs, registry: registry, timeout: timeout, settle: settle}
}

// Kind names the strategy.
func (r *RenderedPage) Kind() domain.StrategyKind {
	return domain.StrategyRenderedPage
}

// Matches returns false: rendering is only ever a fallback.
func (r *RenderedPage) Matches(string) bool {
	return false
}

// Acquire renders rawURL. The tab is released on every return path.
func (r *RenderedPage) Acquire(ctx context.Context, rawURL string) (*domain.AcquisitionResult, error) {
	start := time.Now()
	fail := func(kind domain.FetchErrorKind, cause error) error {
		return &domain.FetchError{URL: rawURL, Kind: kind, Duration: time.Since(start), Cause: cause}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	tab, release, err := r.tabs.NewTab(ctx)
	if err != nil {
		return nil, fail(domain.FetchNetwork, err)
	}
	defer release()

	var (
		html     string
		finalURL string
	)
	err = chromedp.Run(tab,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(r.settle),
		chromedp.Location(&finalURL),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fail(domain.FetchTimeout, err)
		}
		return nil, fail(domain.FetchNetwork, err)
	}
	if finalURL == "" {
		finalURL = rawURL
	}

	normalised, err := r.registry.Normalise(ctx, &domain.RawDocument{
		URI:      finalURL,
		MIMEType: "text/html",
		Content:  []byte(html),
	})
	if err != nil {
		return nil, fail(domain.FetchContent, err)
	}

	return &domain.AcquisitionResult{
		PlainText:     normalised.PlainText,
		FullText:      normalised.FullText,
		Title:         normalised.Title,
		WordCount:     textclean.WordCount(normalised.PlainText),
		Duration:      time.Since(start),
		FinalURL:      finalURL,
		WasRedirected: domain.CanonicalURL(finalURL) != domain.CanonicalURL(rawURL),
		Strategy:      domain.StrategyRenderedPage,
	}, nil
}
