// Package web provides acquisition strategies for web pages: a static
// HTTP fetch and a headless-browser render for script-built pages.
package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
	"github.com/custodia-labs/contentindex/internal/logger"
	"github.com/custodia-labs/contentindex/internal/normalisers/textclean"
)

// Ensure StaticPage implements the interface.
var _ driven.AcquisitionStrategy = (*StaticPage)(nil)

const (
	// DefaultTimeout bounds one static fetch, redirects included.
	DefaultTimeout = 15 * time.Second

	// DefaultMaxBodyBytes caps how much of a response body is read.
	DefaultMaxBodyBytes = 10 << 20

	maxRedirects = 10
)

// Config holds static fetch settings.
type Config struct {
	Timeout           time.Duration
	UserAgent         string
	RequestsPerSecond float64
	MaxBodyBytes      int64
}

// StaticPage fetches a URL over HTTP and hands the body to the normaliser
// registry according to its Content-Type.
type StaticPage struct {
	client   *http.Client
	cfg      Config
	limiter  *HostLimiter
	registry driven.NormaliserRegistry
}

// NewStaticPage creates a static page strategy. A nil client uses a
// default client with cfg.Timeout.
func NewStaticPage(registry driven.NormaliserRegistry, cfg Config, client *http.Client) *StaticPage {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = domain.DefaultUserAgent
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if client == nil {
		client = &http.Client{}
	}
	c := *client
	c.CheckRedirect = func(_ *http.Request, via []*http.Request) error {
		if len(via) >= maxRedirects {
			return fmt.Errorf("stopped after %d redirects", maxRedirects)
		}
		return nil
	}

	return &StaticPage{
		client:   &c,
		cfg:      cfg,
		limiter:  NewHostLimiter(cfg.RequestsPerSecond, DefaultBurst),
		registry: registry,
	}
}

// Kind names the strategy.
func (s *StaticPage) Kind() domain.StrategyKind {
	return domain.StrategyStaticPage
}

// Matches accepts any http or https URL.
func (s *StaticPage) Matches(rawURL string) bool {
	u, err := url.Parse(rawURL)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// Acquire fetches rawURL and extracts its text.
func (s *StaticPage) Acquire(ctx context.Context, rawURL string) (*domain.AcquisitionResult, error) {
	start := time.Now()
	fail := func(kind domain.FetchErrorKind, status int, cause error) error {
		return &domain.FetchError{URL: rawURL, Kind: kind, StatusCode: status, Duration: time.Since(start), Cause: cause}
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return nil, fail(domain.FetchNetwork, 0, fmt.Errorf("invalid url: %w", domain.ErrInvalidInput))
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx, u.Host); err != nil {
		return nil, fail(classify(ctx, err), 0, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, fail(domain.FetchNetwork, 0, err)
	}
	req.Header.Set("User-Agent", s.cfg.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,text/plain;q=0.9,*/*;q=0.8")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fail(classify(ctx, err), 0, err)
	}
	defer resp.Body.Close()

	finalURL := resp.Request.URL.String()
	if resp.StatusCode == http.StatusTooManyRequests {
		s.limiter.RecordRateLimit(resp.Request.URL.Host, resp.Header.Get("Retry-After"))
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fail(domain.FetchHTTPStatus, resp.StatusCode, nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		return nil, fail(classify(ctx, err), 0, err)
	}

	// An empty type is sniffed by the registry.
	mimeType := resp.Header.Get("Content-Type")

	normalised, err := s.registry.Normalise(ctx, &domain.RawDocument{
		URI:      finalURL,
		MIMEType: mimeType,
		Content:  body,
	})
	if err != nil {
		return nil, fail(domain.FetchContent, 0, err)
	}

	result := &domain.AcquisitionResult{
		PlainText:     normalised.PlainText,
		FullText:      normalised.FullText,
		Title:         normalised.Title,
		WordCount:     textclean.WordCount(normalised.PlainText),
		Duration:      time.Since(start),
		FinalURL:      finalURL,
		WasRedirected: domain.CanonicalURL(finalURL) != domain.CanonicalURL(rawURL),
		Strategy:      domain.StrategyStaticPage,
	}
	logger.Debug("Fetched %s (%s, %d words) in %s", rawURL, mimeType, result.WordCount, result.Duration.Round(time.Millisecond))
	return result, nil
}

// classify tells a timeout apart from other network failures.
func classify(ctx context.Context, err error) domain.FetchErrorKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.FetchTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.FetchTimeout
	}
	return domain.FetchNetwork
}
