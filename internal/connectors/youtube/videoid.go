// Package youtube acquires video transcripts from caption tracks.
package youtube

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/custodia-labs/contentindex/internal/core/domain"
)

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

var videoHosts = map[string]bool{
	"youtube.com":              true,
	"www.youtube.com":          true,
	"m.youtube.com":            true,
	"music.youtube.com":        true,
	"youtube-nocookie.com":     true,
	"www.youtube-nocookie.com": true,
	"youtu.be":                 true,
}

// IsVideoURL reports whether rawURL points at a video-hosting site.
func IsVideoURL(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return false
	}
	return videoHosts[strings.ToLower(u.Hostname())]
}

// ParseVideoID extracts the 11-character video id from watch, short-link,
// embed, shorts and live URLs.
func ParseVideoID(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || !videoHosts[strings.ToLower(u.Hostname())] {
		return "", domain.ErrInvalidVideoURL
	}

	var candidate string
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	switch {
	case strings.EqualFold(u.Hostname(), "youtu.be"):
		candidate = segments[0]
	case len(segments) >= 2 && isPathPrefix(segments[0]):
		candidate = segments[1]
	default:
		candidate = u.Query().Get("v")
	}

	if !videoIDPattern.MatchString(candidate) {
		return "", domain.ErrInvalidVideoURL
	}
	return candidate, nil
}

func isPathPrefix(segment string) bool {
	switch segment {
	case "embed", "shorts", "live", "v", "e":
		return true
	default:
		return false
	}
}
