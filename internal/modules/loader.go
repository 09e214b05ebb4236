// Package modules fetches the JS modules a render references. A module is
// fetched at most once per loader; concurrent imports of the same URL share
// one request.
package modules

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/wethinkt/go-uishell/internal/tuilog"
)

const (
	maxRetries     = 2
	initialBackoff = 250 * time.Millisecond
	fetchTimeout   = 30 * time.Second
	maxModuleSize  = 8 << 20
)

// ErrModuleTooLarge is returned for a module body over the size limit.
var ErrModuleTooLarge = errors.New("module too large")

// Loader imports modules relative to a base URL.
type Loader struct {
	base    *url.URL
	client  *http.Client
	maxSize int64

	group  singleflight.Group
	mu     sync.RWMutex
	loaded map[string][]byte
}

// NewLoader returns a loader resolving module paths against baseURL, the
// http(s) origin of the UI server.
func NewLoader(baseURL string) (*Loader, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse module base URL: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	return &Loader{
		base:    u,
		client:  &http.Client{Timeout: fetchTimeout},
		maxSize: maxModuleSize,
		loaded:  make(map[string][]byte),
	}, nil
}

// Import fetches path unless it was already imported.
func (l *Loader) Import(ctx context.Context, path string) error {
	ref, err := url.Parse(path)
	if err != nil {
		return fmt.Errorf("parse module path %q: %w", path, err)
	}
	target := l.base.ResolveReference(ref).String()

	l.mu.RLock()
	_, ok := l.loaded[target]
	l.mu.RUnlock()
	if ok {
		return nil
	}

	_, err, shared := l.group.Do(target, func() (any, error) {
		body, err := l.fetch(ctx, target)
		if err != nil {
			return nil, err
		}
		l.mu.Lock()
		l.loaded[target] = body
		l.mu.Unlock()
		return nil, nil
	})
	if err != nil {
		importsTotal.WithLabelValues("error").Inc()
		return fmt.Errorf("import module %s: %w", path, err)
	}
	if !shared {
		importsTotal.WithLabelValues("ok").Inc()
	}
	return nil
}

func (l *Loader) fetch(ctx context.Context, target string) ([]byte, error) {
	done := tuilog.Log.Timed("module fetch " + target)
	defer done()

	var lastErr error
	backoff := initialBackoff
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if attempt > 0 {
			tuilog.Log.Debug("Retrying module fetch", "url", target, "attempt", attempt, "backoff", backoff)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			backoff *= 2
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("create request: %w", err)
		}
		resp, err := l.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, l.maxSize+1))
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if int64(len(body)) > l.maxSize {
			return nil, fmt.Errorf("%w: over %d bytes", ErrModuleTooLarge, l.maxSize)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}
		lastErr = fmt.Errorf("server returned %d", resp.StatusCode)
		// Client errors will not fix themselves.
		if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
			break
		}
	}
	return nil, lastErr
}

// Loaded returns the imported module URLs in sorted order.
func (l *Loader) Loaded() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.loaded))
	for u := range l.loaded {
		out = append(out, u)
	}
	sort.Strings(out)
	return out
}

// Source returns the fetched body of an imported module.
func (l *Loader) Source(moduleURL string) ([]byte, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	b, ok := l.loaded[moduleURL]
	return b, ok
}
