package sources

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go_ytinsight/internal/engine"
)

// ExtractVideoID pulls the video id out of a watch URL (?v=ID&...) or a
// short link (youtu.be/ID?...). Any other shape is ErrInvalidURL.
func ExtractVideoID(rawURL string) (string, error) {
	var id string
	switch {
	case strings.Contains(rawURL, "v="):
		_, rest, _ := strings.Cut(rawURL, "v=")
		id, _, _ = strings.Cut(rest, "&")
	case strings.Contains(rawURL, "youtu.be/"):
		_, rest, _ := strings.Cut(rawURL, "youtu.be/")
		id, _, _ = strings.Cut(rest, "?")
	default:
		return "", fmt.Errorf("%w: %q", engine.ErrInvalidURL, rawURL)
	}
	id, _, _ = strings.Cut(id, "#")
	id = strings.TrimSpace(id)
	if id == "" {
		return "", fmt.Errorf("%w: empty video id in %q", engine.ErrInvalidURL, rawURL)
	}
	return id, nil
}

var allowedHosts = map[string]bool{
	"youtube.com":     true,
	"www.youtube.com": true,
	"m.youtube.com":   true,
	"youtu.be":        true,
}

// IsValidYouTubeURL reports whether rawURL is an absolute http(s) URL on a
// YouTube host that carries a video id.
func IsValidYouTubeURL(rawURL string) bool {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}
	if !allowedHosts[strings.ToLower(u.Hostname())] {
		return false
	}
	_, err = ExtractVideoID(rawURL)
	return err == nil
}

// WatchURL returns the canonical watch page URL for a video id.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + url.QueryEscape(videoID)
}

// A multiplier letter only counts when it is not the start of a word ("5 Members").
var countRe = regexp.MustCompile(`^([0-9][0-9.,\s\x{00a0}]*)\s*([kKmMbB]?)(?:[^a-zA-Z]|$)`)

// ParseCount converts a displayed count ("1.2K", "3M", "1,234 Comments",
// "57") to an integer. ok is false when the label has no recognizable number.
func ParseCount(label string) (n int64, ok bool) {
	s := strings.TrimSpace(label)
	m := countRe.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	num := strings.Map(func(r rune) rune {
		switch r {
		case ',', ' ', '\u00a0', '\t':
			return -1
		}
		return r
	}, m[1])

	mult := 1.0
	switch strings.ToLower(m[2]) {
	case "k":
		mult = 1e3
	case "m":
		mult = 1e6
	case "b":
		mult = 1e9
	}

	if mult == 1 {
		v, err := strconv.ParseInt(strings.TrimSuffix(num, "."), 10, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	}
	f, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	return int64(f*mult + 0.5), true
}

// ParseLikes is ParseCount for vote labels, where a blank label means zero.
func ParseLikes(label string) int64 {
	n, ok := ParseCount(label)
	if !ok {
		return 0
	}
	return n
}

// ParseCommentCount parses the comment header label; unrecognized formats give -1.
func ParseCommentCount(label string) int64 {
	n, ok := ParseCount(label)
	if !ok {
		return -1
	}
	return n
}
