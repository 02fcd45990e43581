package util

import (
	"fmt"
	"net/url"
	"strings"
)

// NormalizeBaseURL parses a server base URL. A missing scheme defaults to
// https, and any trailing slash is removed so paths can be appended.
func NormalizeBaseURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("empty base URL")
	}
	u, err := url.Parse(raw)
	if err == nil && (u.Scheme == "" || u.Host == "") {
		if u2, e2 := url.Parse("https://" + raw); e2 == nil {
			u = u2
		}
	}
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", raw)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return nil, fmt.Errorf("unsupported scheme %q in base URL %q (valid: http|https)", u.Scheme, raw)
	}
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}

// JoinURL appends path segments to base, keeping a trailing slash when the
// last segment carries one (Django-style routes depend on it).
func JoinURL(base *url.URL, segments ...string) string {
	u := *base
	var b strings.Builder
	b.WriteString(strings.TrimRight(u.Path, "/"))
	for _, s := range segments {
		if s == "" {
			continue
		}
		b.WriteString("/")
		b.WriteString(strings.Trim(s, "/"))
	}
	if n := len(segments); n > 0 && strings.HasSuffix(segments[n-1], "/") {
		b.WriteString("/")
	}
	u.Path = b.String()
	return u.String()
}
