package myhttp

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

func HostnameWithScheme(r *http.Request) string {
	scheme := "https"
	if r.TLS == nil {
		scheme = "http"
	}

	return fmt.Sprintf("%s://%s", scheme, r.Host)
}

// ClientIP prefers the first hop of X-Forwarded-For over the socket address
func ClientIP(r *http.Request) string {
	forwarded := r.Header.Get("X-Forwarded-For")
	if forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	host := r.RemoteAddr
	if idx := strings.LastIndex(host, ":"); idx > 0 {
		host = host[:idx]
	}
	return strings.Trim(host, "[]")
}

// SafeReturnPath only accepts paths on this host; anything else yields the fallback.
func SafeReturnPath(raw string, fallback string) string {
	if raw == "" || !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, "/\\") {
		return fallback
	}
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "" || u.Host != "" {
		return fallback
	}
	return raw
}

// WithMessage appends a user-facing message to a local path
func WithMessage(path string, message string) string {
	u, err := url.Parse(path)
	if err != nil {
		return path
	}
	params := u.Query()
	params.Set("message", message)
	u.RawQuery = params.Encode()
	return u.String()
}
