// Package experiment carries server-controlled experiment flags the client
// needs before the first render.
package experiment

import (
	"net/url"
	"strings"
)

// Service exposes experiment settings.
type Service struct {
	// WebComponentsCacheKey, when set, is appended to every dynamically
	// imported module URL so deploys bust stale caches.
	WebComponentsCacheKey string
}

// ModuleURL returns path with the cache-busting parameter applied.
func (s *Service) ModuleURL(path string) string {
	if s == nil || s.WebComponentsCacheKey == "" {
		return path
	}
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "v=" + url.QueryEscape(s.WebComponentsCacheKey)
}
