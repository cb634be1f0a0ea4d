package youtube

import (
	"context"
	"errors"
	"time"

	"github.com/custodia-labs/contentindex/internal/core/domain"
	"github.com/custodia-labs/contentindex/internal/core/ports/driven"
	"github.com/custodia-labs/contentindex/internal/logger"
	"github.com/custodia-labs/contentindex/internal/normalisers/textclean"
)

// Ensure VideoTranscript implements the interface.
var _ driven.AcquisitionStrategy = (*VideoTranscript)(nil)

// DefaultTimeout bounds one transcript acquisition.
const DefaultTimeout = 30 * time.Second

// VideoTranscript acquires a video's text from its captions.
type VideoTranscript struct {
	captions  *CaptionClient
	registry  driven.NormaliserRegistry
	languages []string
	timeout   time.Duration
}

// NewVideoTranscript creates a transcript strategy.
func NewVideoTranscript(captions *CaptionClient, registry driven.NormaliserRegistry, timeout time.Duration) *VideoTranscript {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &VideoTranscript{
		captions:  captions,
		registry:  registry,
		languages: captions.languages,
		timeout:   timeout,
	}
}

// Kind names the strategy.
func (v *VideoTranscript) Kind() domain.StrategyKind {
	return domain.StrategyVideoTranscript
}

// Matches accepts video-hosting URLs.
func (v *VideoTranscript) Matches(rawURL string) bool {
	return IsVideoURL(rawURL)
}

// Acquire downloads the best caption track and turns it into prose.
// A video without captions yields an empty result, not an error.
func (v *VideoTranscript) Acquire(ctx context.Context, rawURL string) (*domain.AcquisitionResult, error) {
	start := time.Now()
	fail := func(kind domain.FetchErrorKind, cause error) error {
		if errors.Is(cause, context.DeadlineExceeded) {
			kind = domain.FetchTimeout
		}
		return &domain.FetchError{URL: rawURL, Kind: kind, Duration: time.Since(start), Cause: cause}
	}

	videoID, err := ParseVideoID(rawURL)
	if err != nil {
		return nil, fail(domain.FetchInvalidVideoURL, err)
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	tracks, err := v.captions.Tracks(ctx, videoID)
	if err != nil {
		return nil, fail(domain.FetchCaptions, err)
	}

	result := &domain.AcquisitionResult{
		FinalURL: rawURL,
		Strategy: domain.StrategyVideoTranscript,
	}

	for _, track := range OrderTracks(tracks, v.languages) {
		vtt, err := v.captions.Download(ctx, videoID, track)
		if err != nil {
			return nil, fail(domain.FetchCaptions, err)
		}
		if vtt == "" {
			continue
		}

		title, err := v.captions.Title(ctx, videoID)
		if err != nil {
			logger.Warn("Video title lookup failed for %s: %v", videoID, err)
		}
		normalised, err := v.registry.Normalise(ctx, &domain.RawDocument{
			URI:      rawURL,
			MIMEType: "text/vtt",
			Content:  []byte(vtt),
			Metadata: map[string]any{"title": title, "video_id": videoID, "language": track.Language},
		})
		if err != nil {
			return nil, fail(domain.FetchContent, err)
		}

		result.PlainText = normalised.PlainText
		result.FullText = normalised.FullText
		result.Title = normalised.Title
		result.WordCount = textclean.WordCount(normalised.PlainText)
		break
	}

	if result.IsEmpty() {
		logger.Debug("No captions for video %s", videoID)
	}
	result.Duration = time.Since(start)
	return result, nil
}
