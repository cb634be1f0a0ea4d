package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown MIME type or provider.
	ErrUnsupportedType = errors.New("unsupported type")

	// ErrIndexingDisabled indicates the process-wide kill switch is off.
	ErrIndexingDisabled = errors.New("indexing disabled")

	// ErrEmbeddingUnavailable indicates the embedding service is not configured.
	// Vector/semantic search is disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrSearchUnavailable indicates the search engine is not configured.
	// Full-text/keyword search is disabled.
	ErrSearchUnavailable = errors.New("search engine unavailable")

	// ErrVectorIndexUnavailable indicates the vector index is not configured.
	// Semantic similarity search is disabled.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrQueueUnavailable indicates the job queue could not accept work.
	ErrQueueUnavailable = errors.New("job queue unavailable")

	// ErrInsufficientContent indicates a page yielded too little text.
	ErrInsufficientContent = errors.New("insufficient content")

	// ErrInvalidVideoURL indicates no video id could be derived from a URL.
	ErrInvalidVideoURL = errors.New("invalid video url")

	// ErrRateLimited indicates an upstream API rate limit was exceeded.
	ErrRateLimited = errors.New("rate limited")

	// ErrBrowserClosed indicates the shared headless browser was shut down.
	ErrBrowserClosed = errors.New("browser closed")
)

// FetchErrorKind classifies acquisition failures.
type FetchErrorKind string

// Fetch error kinds.
const (
	FetchTimeout         FetchErrorKind = "timeout"
	FetchHTTPStatus      FetchErrorKind = "http_status"
	FetchNetwork         FetchErrorKind = "network"
	FetchContent         FetchErrorKind = "content"
	FetchInvalidVideoURL FetchErrorKind = "invalid_video_url"
	FetchCaptions        FetchErrorKind = "captions"
)

// FetchError is returned by every acquisition strategy.
// It carries the offending URL and the time spent before failing.
type FetchError struct {
	// URL is the URL that was requested.
	URL string

	// Kind tells a timeout apart from an unreachable host or a bad status.
	Kind FetchErrorKind

	// StatusCode is set when Kind is FetchHTTPStatus.
	StatusCode int

	// Duration is how long the acquisition ran before failing.
	Duration time.Duration

	// Cause is the underlying error.
	Cause error
}

func (e *FetchError) Error() string {
	switch e.Kind {
	case FetchHTTPStatus:
		return fmt.Sprintf("fetch %s: http status %d after %s", e.URL, e.StatusCode, e.Duration.Round(time.Millisecond))
	case FetchTimeout:
		return fmt.Sprintf("fetch %s: timed out after %s", e.URL, e.Duration.Round(time.Millisecond))
	}
	if e.Cause != nil {
		return fmt.Sprintf("fetch %s (%s): %v", e.URL, e.Kind, e.Cause)
	}
	return fmt.Sprintf("fetch %s: %s", e.URL, e.Kind)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// IsTimeout reports whether the acquisition was cut off by its timeout.
func (e *FetchError) IsTimeout() bool { return e.Kind == FetchTimeout }

// EmbeddingErrorReason classifies embedding failures.
type EmbeddingErrorReason string

// Embedding error reasons.
const (
	EmbeddingEmptyInput   EmbeddingErrorReason = "empty_input"
	EmbeddingUnconfigured EmbeddingErrorReason = "unconfigured"
	EmbeddingUpstream     EmbeddingErrorReason = "upstream"
)

// EmbeddingError is returned when a vector could not be computed.
type EmbeddingError struct {
	Reason EmbeddingErrorReason
	Cause  error
}

func (e *EmbeddingError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("embedding %s: %v", e.Reason, e.Cause)
	}
	return fmt.Sprintf("embedding %s", e.Reason)
}

func (e *EmbeddingError) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, ErrEmbeddingUnavailable) match unconfigured providers.
func (e *EmbeddingError) Is(target error) bool {
	return target == ErrEmbeddingUnavailable && e.Reason == EmbeddingUnconfigured
}

// RedirectConflictError reports that a URL redirected onto content
// already owned by a different item.
type RedirectConflictError struct {
	URL            string
	FinalURL       string
	ExistingItemID string
}

func (e *RedirectConflictError) Error() string {
	return fmt.Sprintf("url %s redirects to %s which is already indexed as item %s",
		e.URL, e.FinalURL, e.ExistingItemID)
}

// QueueError wraps a job queue infrastructure failure.
type QueueError struct {
	Op    string
	Cause error
}

func (e *QueueError) Error() string {
	return fmt.Sprintf("queue %s: %v", e.Op, e.Cause)
}

func (e *QueueError) Unwrap() error { return e.Cause }

// Is lets errors.Is(err, ErrQueueUnavailable) match any queue failure.
func (e *QueueError) Is(target error) bool { return target == ErrQueueUnavailable }

// ClassifyError maps an indexing failure onto the ErrorKind surfaced in results.
func ClassifyError(err error) ErrorKind {
	var (
		fetchErr    *FetchError
		embedErr    *EmbeddingError
		redirectErr *RedirectConflictError
		queueErr    *QueueError
	)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIndexingDisabled):
		return ErrorKindDisabled
	case errors.As(err, &redirectErr):
		return ErrorKindRedirectConflict
	case errors.As(err, &fetchErr):
		return ErrorKindFetch
	case errors.As(err, &queueErr):
		return ErrorKindQueue
	case errors.As(err, &embedErr):
		return ErrorKindEmbedding
	default:
		return ErrorKindStorage
	}
}

// IsRetryable reports whether a failed job is worth another attempt.
// Rate limits, timeouts, network errors and 5xx responses are transient.
// Redirect conflicts, invalid input and 4xx responses other than 408 and
// 429 fail the same way every time.
func IsRetryable(err error) bool {
	var (
		fetchErr    *FetchError
		redirectErr *RedirectConflictError
	)
	switch {
	case err == nil:
		return false
	case errors.Is(err, ErrRateLimited):
		return true
	case errors.As(err, &redirectErr),
		errors.Is(err, ErrInvalidInput),
		errors.Is(err, ErrInvalidVideoURL),
		errors.Is(err, ErrUnsupportedType):
		return false
	case errors.As(err, &fetchErr):
		return fetchErr.retryable()
	default:
		return true
	}
}

func (e *FetchError) retryable() bool {
	switch e.Kind {
	case FetchInvalidVideoURL:
		return false
	case FetchHTTPStatus:
		switch {
		case e.StatusCode == 408, e.StatusCode == 429:
			return true
		case e.StatusCode >= 400 && e.StatusCode < 500:
			return false
		}
	}
	return true
}
