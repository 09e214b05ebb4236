// Package location models the page URL and its session history: the
// client-side router, history replace for query edits, and back/forward
// with popstate notification.
package location

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/wethinkt/go-uishell/internal/protocol"
)

// ErrCrossOrigin is returned when client-side routing is asked to leave
// the current origin.
var ErrCrossOrigin = errors.New("cross-origin navigation must be a full navigation")

// Location is the current URL plus a linear history stack.
type Location struct {
	mu       sync.Mutex
	entries  []*url.URL
	index    int
	onPop    []func()
	onChange []func(*url.URL)
}

// New returns a Location whose history holds only rawURL, which must be
// absolute.
func New(rawURL string) (*Location, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse start url: %w", err)
	}
	if !u.IsAbs() {
		return nil, fmt.Errorf("start url %q is not absolute", rawURL)
	}
	if u.Path == "" {
		u.Path = "/"
	}
	return &Location{entries: []*url.URL{u}}, nil
}

// IsAbsoluteURL reports whether raw starts with http:// or https://. Those
// URLs bypass the router and leave the app.
func IsAbsoluteURL(raw string) bool {
	lower := strings.ToLower(raw)
	return strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://")
}

// URL returns a copy of the current URL.
func (l *Location) URL() *url.URL {
	l.mu.Lock()
	defer l.mu.Unlock()
	u := *l.entries[l.index]
	return &u
}

// String returns the current URL.
func (l *Location) String() string {
	return l.URL().String()
}

// Path returns the current path with its query string, which is what the
// server sees as the page location.
func (l *Location) Path() string {
	u := l.URL()
	if u.RawQuery == "" {
		return u.EscapedPath()
	}
	return u.EscapedPath() + "?" + u.RawQuery
}

// Resolve resolves ref against the current URL.
func (l *Location) Resolve(ref string) (*url.URL, error) {
	r, err := url.Parse(ref)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", ref, err)
	}
	return l.URL().ResolveReference(r), nil
}

// NavigateByURL performs client-side routing: the resolved URL is pushed
// onto the history and everything after the current entry is dropped.
func (l *Location) NavigateByURL(ref string) error {
	next, err := l.Resolve(ref)
	if err != nil {
		return err
	}

	l.mu.Lock()
	cur := l.entries[l.index]
	if next.Scheme != cur.Scheme || next.Host != cur.Host {
		l.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrCrossOrigin, next)
	}
	l.entries = append(l.entries[:l.index+1], next)
	l.index++
	u := *next
	l.mu.Unlock()

	l.notifyChange(&u)
	return nil
}

// ReplaceQueryParam replaces every value of key in the current URL with
// values, in order, without adding a history entry. Other parameters are
// kept byte-for-byte; the new values go at the end of the query string.
func (l *Location) ReplaceQueryParam(key string, values []string) {
	l.mu.Lock()
	cur := *l.entries[l.index]
	cur.RawQuery = ReplaceRawQueryParam(cur.RawQuery, key, values)
	cur.ForceQuery = false
	l.entries[l.index] = &cur
	u := cur
	l.mu.Unlock()

	l.notifyChange(&u)
}

// ReplaceRawQueryParam is the string form of ReplaceQueryParam.
func ReplaceRawQueryParam(rawQuery, key string, values []string) string {
	var kept []string
	if rawQuery != "" {
		for _, pair := range strings.Split(rawQuery, "&") {
			if pair != "" && decodeKey(pair) == key {
				continue
			}
			kept = append(kept, pair)
		}
	}
	for _, v := range values {
		kept = append(kept, url.QueryEscape(key)+"="+url.QueryEscape(v))
	}
	return strings.Join(kept, "&")
}

func decodeKey(pair string) string {
	k, _, _ := strings.Cut(pair, "=")
	if dk, err := url.QueryUnescape(k); err == nil {
		return dk
	}
	return k
}

// QueryParams returns the current query parameters grouped by key, keys in
// order of first appearance and values in URL order.
func (l *Location) QueryParams() []protocol.QueryParam {
	return ParseQueryParams(l.URL().RawQuery)
}

// ParseQueryParams groups rawQuery into QueryParams. Malformed escapes are
// kept verbatim.
func ParseQueryParams(rawQuery string) []protocol.QueryParam {
	var out []protocol.QueryParam
	idx := map[string]int{}
	for _, pair := range strings.Split(rawQuery, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		if dk, err := url.QueryUnescape(k); err == nil {
			k = dk
		}
		if dv, err := url.QueryUnescape(v); err == nil {
			v = dv
		}
		i, ok := idx[k]
		if !ok {
			i = len(out)
			idx[k] = i
			out = append(out, protocol.QueryParam{Key: k})
		}
		out[i].Values = append(out[i].Values, v)
	}
	return out
}

// Back moves one entry back and fires popstate. Returns false at the start
// of history.
func (l *Location) Back() bool {
	return l.traverse(-1)
}

// Forward moves one entry forward and fires popstate. Returns false at the
// end of history.
func (l *Location) Forward() bool {
	return l.traverse(1)
}

func (l *Location) traverse(delta int) bool {
	l.mu.Lock()
	next := l.index + delta
	if next < 0 || next >= len(l.entries) {
		l.mu.Unlock()
		return false
	}
	l.index = next
	u := *l.entries[next]
	pops := append([]func(){}, l.onPop...)
	l.mu.Unlock()

	l.notifyChange(&u)
	for _, fn := range pops {
		fn()
	}
	return true
}

// OnPopstate registers fn to run after every back/forward move.
func (l *Location) OnPopstate(fn func()) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onPop = append(l.onPop, fn)
}

// OnChange registers fn to run whenever the current URL changes.
func (l *Location) OnChange(fn func(*url.URL)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onChange = append(l.onChange, fn)
}

// Len returns the number of history entries.
func (l *Location) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

func (l *Location) notifyChange(u *url.URL) {
	l.mu.Lock()
	fns := append([]func(*url.URL){}, l.onChange...)
	l.mu.Unlock()
	for _, fn := range fns {
		fn(u)
	}
}
