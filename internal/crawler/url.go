package crawler

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

var workIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`book/(\d+)`),
	regexp.MustCompile(`bid=(\d+)`),
	regexp.MustCompile(`id=(\d+)`),
}

// ResolveURL turns a possibly relative or protocol-relative href into an
// absolute URL against the platform's canonical origin.
func ResolveURL(origin, raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	switch {
	case strings.HasPrefix(raw, "//"):
		return "https:" + raw
	case strings.HasPrefix(raw, "/"):
		return strings.TrimSuffix(origin, "/") + raw
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return raw
	case strings.HasPrefix(raw, "www."):
		return "https://" + raw
	default:
		return strings.TrimSuffix(origin, "/") + "/" + raw
	}
}

// NormalizeURL standardizes a URL so duplicates collapse to one key.
// It lowercases the scheme and host, strips fragments and default ports,
// and re-encodes query parameters in sorted order.
func NormalizeURL(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""

	// Encode sorts query keys, so differing parameter order yields the
	// same normalized form.
	u.RawQuery = u.Query().Encode()

	return u.String(), nil
}

// PlatformBookID extracts the platform's numeric book ID from a work URL.
// Falls back to the last path segment when no known pattern matches.
func PlatformBookID(workURL string) (string, error) {
	for _, re := range workIDPatterns {
		if m := re.FindStringSubmatch(workURL); m != nil {
			return m[1], nil
		}
	}
	if u, err := url.Parse(workURL); err == nil {
		parts := strings.Split(strings.Trim(u.Path, "/"), "/")
		if tail := parts[len(parts)-1]; tail != "" {
			return tail, nil
		}
	}
	return "", fmt.Errorf("no book id in %q", workURL)
}

// ChapterPlatformID extracts the platform chapter ID from a chapter URL
// (the last non-empty path segment).
func ChapterPlatformID(chapterURL string) string {
	u, err := url.Parse(chapterURL)
	if err != nil {
		return ""
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}
