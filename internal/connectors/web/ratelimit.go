package web

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultBurst is the number of requests a host may receive back to back.
const DefaultBurst = 2

// defaultBackoff applies after a 429 without a usable Retry-After header.
const defaultBackoff = 60 * time.Second

// HostLimiter rate limits requests per remote host using a token bucket
// per host, plus a backoff window after the host answers 429.
type HostLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	hosts   map[string]*hostState
	nowFunc func() time.Time
}

type hostState struct {
	limiter *rate.Limiter
	retryAt time.Time
}

// NewHostLimiter creates a limiter allowing requestsPerSecond to each host.
// A non-positive rate disables limiting.
func NewHostLimiter(requestsPerSecond float64, burst int) *HostLimiter {
	limit := rate.Inf
	if requestsPerSecond > 0 {
		limit = rate.Limit(requestsPerSecond)
	}
	if burst <= 0 {
		burst = DefaultBurst
	}
	return &HostLimiter{
		limit:   limit,
		burst:   burst,
		hosts:   make(map[string]*hostState),
		nowFunc: time.Now,
	}
}

func (l *HostLimiter) state(host string) *hostState {
	host = strings.ToLower(host)
	l.mu.Lock()
	defer l.mu.Unlock()

	s, ok := l.hosts[host]
	if !ok {
		s = &hostState{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.hosts[host] = s
	}
	return s
}

// Wait blocks until a request to host is allowed, honouring any backoff
// recorded by RecordRateLimit.
func (l *HostLimiter) Wait(ctx context.Context, host string) error {
	s := l.state(host)

	l.mu.Lock()
	retryAt := s.retryAt
	l.mu.Unlock()

	if wait := retryAt.Sub(l.nowFunc()); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return s.limiter.Wait(ctx)
}

// RecordRateLimit sets a backoff window for host after a 429 response.
// retryAfter is the raw Retry-After header value (seconds or HTTP date).
func (l *HostLimiter) RecordRateLimit(host, retryAfter string) {
	s := l.state(host)
	now := l.nowFunc()

	backoff := defaultBackoff
	if secs, err := strconv.Atoi(strings.TrimSpace(retryAfter)); err == nil && secs > 0 {
		backoff = time.Duration(secs) * time.Second
	} else if at, err := time.Parse(time.RFC1123, strings.TrimSpace(retryAfter)); err == nil && at.After(now) {
		backoff = at.Sub(now)
	}

	l.mu.Lock()
	s.retryAt = now.Add(backoff)
	l.mu.Unlock()
}

// RetryAt returns the end of host's backoff window, if any.
func (l *HostLimiter) RetryAt(host string) time.Time {
	s := l.state(host)
	l.mu.Lock()
	defer l.mu.Unlock()
	return s.retryAt
}
