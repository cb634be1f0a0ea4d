package domain

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// TestErrors_Existence tests that all error variables exist and are not nil
func TestErrors_Existence(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"ErrNotFound", ErrNotFound},
		{"ErrAlreadyExists", ErrAlreadyExists},
		{"ErrInvalidInput", ErrInvalidInput},
		{"ErrUnsupportedType", ErrUnsupportedType},
		{"ErrIndexingDisabled", ErrIndexingDisabled},
		{"ErrEmbeddingUnavailable", ErrEmbeddingUnavailable},
		{"ErrSearchUnavailable", ErrSearchUnavailable},
		{"ErrVectorIndexUnavailable", ErrVectorIndexUnavailable},
		{"ErrQueueUnavailable", ErrQueueUnavailable},
		{"ErrInsufficientContent", ErrInsufficientContent},
		{"ErrInvalidVideoURL", ErrInvalidVideoURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.NotNil(t, tt.err)
			assert.NotEmpty(t, tt.err.Error())
		})
	}
}

func TestFetchError(t *testing.T) {
	t.Run("timeout is distinguishable", func(t *testing.T) {
		err := &FetchError{URL: "https://example.com", Kind: FetchTimeout, Duration: 15 * time.Second}
		assert.True(t, err.IsTimeout())
		assert.Contains(t, err.Error(), "timed out")
	})

	t.Run("http status carries code", func(t *testing.T) {
		err := &FetchError{URL: "https://example.com", Kind: FetchHTTPStatus, StatusCode: 404}
		assert.False(t, err.IsTimeout())
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("unwraps cause", func(t *testing.T) {
		err := &FetchError{URL: "u", Kind: FetchInvalidVideoURL, Cause: ErrInvalidVideoURL}
		wrapped := fmt.Errorf("acquire: %w", err)
		assert.ErrorIs(t, wrapped, ErrInvalidVideoURL)

		var fe *FetchError
		assert.True(t, errors.As(wrapped, &fe))
		assert.Equal(t, "u", fe.URL)
	})
}

func TestEmbeddingError_IsUnavailable(t *testing.T) {
	unconfigured := &EmbeddingError{Reason: EmbeddingUnconfigured}
	upstream := &EmbeddingError{Reason: EmbeddingUpstream, Cause: errors.New("boom")}

	assert.ErrorIs(t, unconfigured, ErrEmbeddingUnavailable)
	assert.NotErrorIs(t, upstream, ErrEmbeddingUnavailable)
	assert.Contains(t, upstream.Error(), "boom")
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"nil", nil, ""},
		{"disabled", ErrIndexingDisabled, ErrorKindDisabled},
		{"fetch", fmt.Errorf("x: %w", &FetchError{Kind: FetchNetwork}), ErrorKindFetch},
		{"redirect", &RedirectConflictError{URL: "a", FinalURL: "b", ExistingItemID: "2"}, ErrorKindRedirectConflict},
		{"queue", &QueueError{Op: "enqueue", Cause: errors.New("locked")}, ErrorKindQueue},
		{"embedding", &EmbeddingError{Reason: EmbeddingUpstream}, ErrorKindEmbedding},
		{"other", errors.New("disk full"), ErrorKindStorage},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyError(tt.err))
		})
	}
}

func TestQueueError_IsUnavailable(t *testing.T) {
	err := fmt.Errorf("index: %w", &QueueError{Op: "enqueue", Cause: errors.New("db closed")})
	assert.ErrorIs(t, err, ErrQueueUnavailable)
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"timeout", &FetchError{Kind: FetchTimeout}, true},
		{"network", fmt.Errorf("acquire: %w", &FetchError{Kind: FetchNetwork}), true},
		{"server error", &FetchError{Kind: FetchHTTPStatus, StatusCode: 503}, true},
		{"too many requests", &FetchError{Kind: FetchHTTPStatus, StatusCode: 429}, true},
		{"request timeout", &FetchError{Kind: FetchHTTPStatus, StatusCode: 408}, true},
		{"rate limited", fmt.Errorf("youtube api: %w", ErrRateLimited), true},
		{"rate limited inside fetch", &FetchError{Kind: FetchCaptions, Cause: ErrRateLimited}, true},
		{"not found", &FetchError{Kind: FetchHTTPStatus, StatusCode: 404}, false},
		{"forbidden", &FetchError{Kind: FetchHTTPStatus, StatusCode: 403}, false},
		{"invalid video url", &FetchError{Kind: FetchInvalidVideoURL}, false},
		{"invalid video url sentinel", fmt.Errorf("parse: %w", ErrInvalidVideoURL), false},
		{"redirect conflict", &RedirectConflictError{URL: "a", FinalURL: "b", ExistingItemID: "2"}, false},
		{"invalid input", fmt.Errorf("id: %w", ErrInvalidInput), false},
		{"unsupported type", ErrUnsupportedType, false},
		{"storage", errors.New("database is locked"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}
