package youtube

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

// DefaultTimedTextURL serves caption tracks as WebVTT.
const DefaultTimedTextURL = "https://www.youtube.com/api/timedtext"

// maxCaptionBytes caps a downloaded caption track.
const maxCaptionBytes = 5 << 20

// Track is one caption track of a video.
type Track struct {
	Language string
	Name     string

	// Auto is true for speech-recognition tracks.
	Auto bool
}

// CaptionClient discovers and downloads caption tracks. Discovery uses the
// YouTube Data API when an API key is configured; downloads use the public
// timed-text endpoint.
type CaptionClient struct {
	service      *yt.Service
	http         *http.Client
	timedTextURL string
	languages    []string
}

// ClientConfig configures a CaptionClient.
type ClientConfig struct {
	// APIKey enables track discovery through the Data API.
	APIKey string

	// Languages lists preferred caption languages, most preferred first.
	Languages []string

	// TimedTextURL overrides DefaultTimedTextURL.
	TimedTextURL string

	// HTTPClient is used for downloads and API calls.
	HTTPClient *http.Client

	// APIOptions are passed to the Data API client.
	APIOptions []option.ClientOption
}

// NewCaptionClient creates a caption client.
func NewCaptionClient(ctx context.Context, cfg ClientConfig) (*CaptionClient, error) {
	c := &CaptionClient{
		http:         cfg.HTTPClient,
		timedTextURL: cfg.TimedTextURL,
		languages:    cfg.Languages,
	}
	if c.http == nil {
		c.http = http.DefaultClient
	}
	if c.timedTextURL == "" {
		c.timedTextURL = DefaultTimedTextURL
	}
	if len(c.languages) == 0 {
		c.languages = []string{"en"}
	}

	if cfg.APIKey != "" {
		opts := append([]option.ClientOption{option.WithAPIKey(cfg.APIKey)}, cfg.APIOptions...)
		svc, err := yt.NewService(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("create youtube service: %w", err)
		}
		c.service = svc
	}
	return c, nil
}

// Tracks lists a video's caption tracks. Without an API key it returns a
// manual and an auto-generated guess per preferred language; Download
// reports empty text for guesses that do not exist.
func (c *CaptionClient) Tracks(ctx context.Context, videoID string) ([]Track, error) {
	if c.service == nil {
		tracks := make([]Track, 0, 2*len(c.languages))
		for _, lang := range c.languages {
			tracks = append(tracks, Track{Language: lang}, Track{Language: lang, Auto: true})
		}
		return tracks, nil
	}

	resp, err := c.service.Captions.List([]string{"snippet"}, videoID).Context(ctx).Do()
	if err != nil {
		return nil, wrapAPIError(err)
	}

	var tracks []Track
	for _, item := range resp.Items {
		if item.Snippet == nil {
			continue
		}
		tracks = append(tracks, Track{
			Language: item.Snippet.Language,
			Name:     item.Snippet.Name,
			Auto:     strings.EqualFold(item.Snippet.TrackKind, "asr"),
		})
	}
	return tracks, nil
}

// Title returns the video title, or "" without an API key.
func (c *CaptionClient) Title(ctx context.Context, videoID string) (string, error) {
	if c.service == nil {
		return "", nil
	}
	resp, err := c.service.Videos.List([]string{"snippet"}).Id(videoID).Context(ctx).Do()
	if err != nil {
		return "", wrapAPIError(err)
	}
	if len(resp.Items) == 0 || resp.Items[0].Snippet == nil {
		return "", nil
	}
	return resp.Items[0].Snippet.Title, nil
}

// Download fetches a track as WebVTT. A missing track yields "".
func (c *CaptionClient) Download(ctx context.Context, videoID string, track Track) (string, error) {
	q := url.Values{}
	q.Set("v", videoID)
	q.Set("lang", track.Language)
	q.Set("fmt", "vtt")
	if track.Auto {
		q.Set("kind", "asr")
	}
	if track.Name != "" {
		q.Set("name", track.Name)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.timedTextURL+"?"+q.Encode(), http.NoBody)
	if err != nil {
		return "", err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return "", nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", fmt.Errorf("caption download: %w", domain.ErrRateLimited)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return "", fmt.Errorf("caption download: http status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxCaptionBytes))
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// OrderTracks sorts tracks by preference: preferred languages in order,
// manual before auto-generated, then everything else.
func OrderTracks(tracks []Track, languages []string) []Track {
	rank := func(t Track) int {
		langRank := len(languages)
		for i, lang := range languages {
			if strings.EqualFold(t.Language, lang) || strings.HasPrefix(strings.ToLower(t.Language), strings.ToLower(lang)+"-") {
				langRank = i
				break
			}
		}
		r := langRank * 2
		if t.Auto {
			r++
		}
		return r
	}

	ordered := append([]Track(nil), tracks...)
	sort.SliceStable(ordered, func(i, j int) bool { return rank(ordered[i]) < rank(ordered[j]) })
	return ordered
}

func wrapAPIError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		if gerr.Code == http.StatusTooManyRequests {
			return fmt.Errorf("youtube api: %w: %v", domain.ErrRateLimited, err)
		}
		for _, item := range gerr.Errors {
			if item.Reason == "quotaExceeded" || item.Reason == "rateLimitExceeded" {
				return fmt.Errorf("youtube api: %w: %v", domain.ErrRateLimited, err)
			}
		}
	}
	return fmt.Errorf("youtube api: %w", err)
}
