// Package deferred holds effects that must wait until the current render
// has settled.
//
// Only scroll-to-key is deferred today. A scroll target may be part of the
// very frame being applied (including modules still loading), so scrolling
// at command time would race the render.
package deferred

import (
	"sync"

	"github.com/wethinkt/go-uishell/internal/dom"
	"github.com/wethinkt/go-uishell/internal/tuilog"
)

// Document is the part of the rendered document a flush needs.
type Document interface {
	QueryByKey(key string) []*dom.Node
	ScrollIntoView(n *dom.Node, smooth bool) error
}

// Reporter receives resolution failures. Optional.
type Reporter interface {
	ResolutionFailed(effect, key string, matches int)
}

// Queue is a single-slot holder for the pending scroll key. A newer key
// replaces an unflushed one.
type Queue struct {
	mu       sync.Mutex
	key      string
	pending  bool
	reporter Reporter
}

// NewQueue returns an empty queue. reporter may be nil.
func NewQueue(reporter Reporter) *Queue {
	return &Queue{reporter: reporter}
}

// Set records key as the scroll target for the next flush.
func (q *Queue) Set(key string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending && q.key != key {
		tuilog.Log.Debug("deferred: replacing unflushed scroll key", "old", q.key, "new", key)
	}
	q.key = key
	q.pending = true
}

// Pending returns the key waiting for the next flush.
func (q *Queue) Pending() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.key, q.pending
}

// Flush runs the pending scroll, if any, against doc. The key is cleared
// before resolving so a re-entrant render does not retry it. Returns
// whether something was scrolled.
func (q *Queue) Flush(doc Document) bool {
	q.mu.Lock()
	key, pending := q.key, q.pending
	q.key, q.pending = "", false
	q.mu.Unlock()

	if !pending {
		return false
	}

	targets := doc.QueryByKey(key)
	if len(targets) == 0 {
		tuilog.Log.Error("Could not scroll to component because no component found", "key", key)
		q.report(key, 0)
		return false
	}
	if len(targets) > 1 {
		tuilog.Log.Warn("Found multiple components to scroll to; use a unique key", "key", key, "matches", len(targets))
		q.report(key, len(targets))
	}

	container := targets[0].Parent()
	if container == nil {
		container = targets[0]
	}
	if err := doc.ScrollIntoView(container, true); err != nil {
		tuilog.Log.Warn("Scroll into view failed", "key", key, "error", err)
		return false
	}
	return true
}

func (q *Queue) report(key string, matches int) {
	if q.reporter != nil {
		q.reporter.ResolutionFailed("scroll", key, matches)
	}
}
