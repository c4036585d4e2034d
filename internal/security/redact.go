// Package security masks credentials before they reach logs, history or the terminal.
package security

import (
	"net/url"
	"regexp"
	"strings"
)

// sensitivePatterns match inline credentials such as token=abc.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|secret|access[_-]?token|auth[_-]?token|token|password)=([^\s&"']+)`),
}

var urlPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.-]*://[^\s"'<>]+`)

// MaskCredential masks a credential value for logging.
func MaskCredential(value string) string {
	if len(value) == 0 {
		return ""
	}
	if len(value) <= 4 {
		return strings.Repeat("*", len(value))
	}
	if len(value) <= 8 {
		return value[:2] + strings.Repeat("*", len(value)-2)
	}
	return value[:4] + strings.Repeat("*", len(value)-8) + value[len(value)-4:]
}

// RedactURL keeps the scheme, host and first path segment of raw and masks
// the rest. Incoming webhook URLs carry their secret in the path.
func RedactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return MaskCredential(raw)
	}

	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	if u.User != nil {
		b.WriteString("***@")
	}
	b.WriteString(u.Host)

	path := strings.Trim(u.Path, "/")
	if path != "" {
		first, _, found := strings.Cut(path, "/")
		b.WriteString("/")
		if found {
			b.WriteString(first)
			b.WriteString("/***")
		} else {
			b.WriteString(MaskCredential(first))
		}
	}
	if u.RawQuery != "" {
		b.WriteString("?***")
	}
	return b.String()
}

// MaskURLs redacts every URL and inline credential in free text such as an
// error message.
func MaskURLs(s string) string {
	s = urlPattern.ReplaceAllStringFunc(s, RedactURL)
	for _, pattern := range sensitivePatterns {
		s = pattern.ReplaceAllStringFunc(s, func(match string) string {
			key, val, _ := strings.Cut(match, "=")
			return key + "=" + MaskCredential(val)
		})
	}
	return s
}
