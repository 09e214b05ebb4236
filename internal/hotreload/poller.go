// Package hotreload triggers page re-runs during development. Poller waits
// on the server's reload counter; FileWatcher watches local sources.
package hotreload

import (
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/wethinkt/go-uishell/internal/tuilog"
)

// Path is the long-poll endpoint on the UI server.
const Path = "/__hot-reload__"

const (
	maxRetryDelay  = 30 * time.Second
	baseRetryDelay = 1 * time.Second
)

// ReloadFunc re-runs the current page.
type ReloadFunc func(ctx context.Context) error

// Poller long-polls the server's hot reload counter. The server holds each
// request until its counter exceeds the one sent.
type Poller struct {
	endpoint string
	client   *http.Client
}

// NewPoller returns a poller for the server at baseURL (http or ws scheme).
func NewPoller(baseURL string) (*Poller, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse hot reload base URL: %w", err)
	}
	switch u.Scheme {
	case "ws":
		u.Scheme = "http"
	case "wss":
		u.Scheme = "https"
	}
	u.Path = strings.TrimSuffix(u.Path, "/")
	if u.Path == "" || !strings.HasSuffix(u.Path, Path) {
		u.Path = Path
	}
	u.RawQuery = ""
	// No client timeout: requests block until the next reload.
	return &Poller{endpoint: u.String(), client: &http.Client{}}, nil
}

// Run calls reload each time the server's counter advances, until ctx is
// done. The first request only learns the current counter.
func (p *Poller) Run(ctx context.Context, reload ReloadFunc) error {
	counter := -1
	fails := 0
	for {
		next, err := p.wait(ctx, counter)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			fails++
			delay := time.Duration(float64(baseRetryDelay) * math.Pow(2, float64(min(fails-1, 5))))
			if delay > maxRetryDelay {
				delay = maxRetryDelay
			}
			tuilog.Log.Warn("Hot reload poll failed", "error", err, "failures", fails, "retry_in", delay)
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		fails = 0

		if counter >= 0 && next > counter {
			tuilog.Log.Info("Server code changed", "counter", next)
			if err := reload(ctx); err != nil {
				tuilog.Log.Warn("Hot reload failed", "error", err)
			}
		}
		counter = next
	}
}

func (p *Poller) wait(ctx context.Context, counter int) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint+"?counter="+strconv.Itoa(counter), nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return 0, err
	}
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("server returned %d", resp.StatusCode)
	}
	n, err := strconv.Atoi(strings.TrimSpace(string(body)))
	if err != nil {
		return 0, fmt.Errorf("parse reload counter %q: %w", body, err)
	}
	return n, nil
}
