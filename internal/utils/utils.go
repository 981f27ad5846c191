// internal/utils/utils.go
package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// HostPath returns the host and path of a URL without the scheme, query or
// trailing slash.
func HostPath(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(u.Host+u.Path, "/"), nil
}

// IsValidURL checks if a string is an absolute http(s) URL
func IsValidURL(str string) bool {
	u, err := url.Parse(str)
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// Slugify lowercases s and joins its alphanumeric runs with underscores.
// "Rishi Tea" becomes "rishi_tea".
func Slugify(s string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(s), "_")
	slug = strings.Trim(slug, "_")
	if slug == "" {
		return "brand"
	}
	return slug
}

// TruncateString truncates a string to a maximum length
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// FormatDuration formats a duration in a human-readable way
func FormatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%.1fm", d.Minutes())
	}
	return fmt.Sprintf("%.1fh", d.Hours())
}

// ParseContentType extracts the media type from a Content-Type header
func ParseContentType(contentType string) string {
	parts := strings.Split(contentType, ";")
	return strings.ToLower(strings.TrimSpace(parts[0]))
}

// IsJSONContent reports whether a media type can carry a JSON or JSONP body.
func IsJSONContent(contentType string) bool {
	ct := ParseContentType(contentType)
	switch {
	case ct == "":
		return false
	case strings.HasSuffix(ct, "json"), strings.HasSuffix(ct, "+json"):
		return true
	case ct == "text/javascript", ct == "application/javascript", ct == "application/x-javascript":
		return true
	case ct == "text/plain":
		return true
	}
	return false
}
