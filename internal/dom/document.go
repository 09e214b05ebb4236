package dom

import (
	"errors"
	"sync"

	"github.com/wethinkt/go-uishell/internal/protocol"
)

// RootElementName is the element the rendered tree is mounted under.
const RootElementName = "uishell-component-renderer"

// ErrDetached is returned when focusing or scrolling a node that is not
// part of the current document.
var ErrDetached = errors.New("node is not attached to the document")

// tags maps component types onto element tags with browser focus
// semantics. Unknown types become plain containers.
var tags = map[string]string{
	"button":   "button",
	"input":    "input",
	"textarea": "textarea",
	"select":   "select",
	"link":     "a",
	"iframe":   "iframe",
	"embed":    "iframe",
	"text":     "span",
	"markdown": "markdown",
	"image":    "img",
	"divider":  "hr",
}

// Document holds the current rendered tree. It is safe for concurrent use:
// the session goroutine replaces it while the UI goroutine reads it.
type Document struct {
	mu       sync.RWMutex
	root     *Node
	rootKey  string
	focused  *Node
	scrolled *Node
	version  uint64

	listenerMu sync.Mutex
	onChange   []func()
	onScroll   []func(*Node)
	onFocus    []func(*Node)
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{root: NewNode(RootElementName, nil)}
}

// Render replaces the whole tree with one built from root. Focus survives
// when an element with the same key and position exists in the new tree.
func (d *Document) Render(root *protocol.Component) {
	mount := NewNode(RootElementName, nil)
	if root != nil {
		build(mount, root)
	}

	d.mu.Lock()
	prevFocus := d.focused
	d.root = mount
	d.focused = nil
	d.scrolled = nil
	d.version++
	if root != nil {
		d.rootKey = root.Key
	} else {
		d.rootKey = ""
	}
	if prevFocus != nil {
		d.focused = d.refind(prevFocus)
	}
	d.mu.Unlock()

	d.notifyChange()
}

func build(parent *Node, c *protocol.Component) {
	if c.Key != "" {
		parent.Append(NewNode(TagKeyMarker, map[string]string{AttrKey: c.Key}))
	}

	tag, ok := tags[c.Type]
	if !ok {
		tag = "div"
	}
	attrs := make(map[string]string, len(c.Attrs))
	for k, v := range c.Attrs {
		attrs[k] = v
	}
	n := parent.Append(NewNode(tag, attrs))
	n.Text = c.Text
	if len(c.Handlers) > 0 {
		n.Handlers = make(map[string]string, len(c.Handlers))
		for k, v := range c.Handlers {
			n.Handlers[k] = v
		}
	}
	for _, child := range c.Children {
		if child != nil {
			build(n, child)
		}
	}
}

// refind locates the node occupying old's position in the current tree.
func (d *Document) refind(old *Node) *Node {
	var path []int
	for n := old; n.parent != nil; n = n.parent {
		path = append(path, n.index)
	}
	cur := d.root
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] >= len(cur.children) {
			return nil
		}
		cur = cur.children[path[i]]
	}
	if cur.Tag != old.Tag {
		return nil
	}
	return cur
}

// Root returns the mount node.
func (d *Document) Root() *Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.root
}

// RootKey returns the key of the last rendered root component.
func (d *Document) RootKey() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.rootKey
}

// Version increments on every Render.
func (d *Document) Version() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// QueryByKey returns every node whose data-key equals key, in document order.
func (d *Document) QueryByKey(key string) []*Node {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*Node
	d.root.Walk(func(n *Node, _ int) bool {
		if v, ok := n.Attr(AttrKey); ok && v == key {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Focusables returns all focusable nodes in document order.
func (d *Document) Focusables() []*Node {
	d.mu.RLock()
	defer d.mu.RUnlock()

	var out []*Node
	d.root.Walk(func(n *Node, _ int) bool {
		if n.Focusable() {
			out = append(out, n)
		}
		return true
	})
	return out
}

// Focus moves focus to n.
func (d *Document) Focus(n *Node) error {
	d.mu.Lock()
	if !d.attached(n) {
		d.mu.Unlock()
		return ErrDetached
	}
	d.focused = n
	d.mu.Unlock()

	d.listenerMu.Lock()
	fns := append([]func(*Node){}, d.onFocus...)
	d.listenerMu.Unlock()
	for _, fn := range fns {
		fn(n)
	}
	return nil
}

// Focused returns the focused node, or nil.
func (d *Document) Focused() *Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.focused
}

// ScrollIntoView asks the renderer to bring n into view. smooth is a hint.
func (d *Document) ScrollIntoView(n *Node, smooth bool) error {
	d.mu.Lock()
	if !d.attached(n) {
		d.mu.Unlock()
		return ErrDetached
	}
	d.scrolled = n
	d.mu.Unlock()

	d.listenerMu.Lock()
	fns := append([]func(*Node){}, d.onScroll...)
	d.listenerMu.Unlock()
	for _, fn := range fns {
		fn(n)
	}
	return nil
}

// ScrollTarget returns the node most recently scrolled into view since the
// last render, or nil.
func (d *Document) ScrollTarget() *Node {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.scrolled
}

// OnChange registers fn to run after every Render.
func (d *Document) OnChange(fn func()) {
	d.listenerMu.Lock()
	defer d.listenerMu.Unlock()
	d.onChange = append(d.onChange, fn)
}

// OnScroll registers fn to run on every ScrollIntoView.
func (d *Document) OnScroll(fn func(*Node)) {
	d.listenerMu.Lock()
	defer d.listenerMu.Unlock()
	d.onScroll = append(d.onScroll, fn)
}

// OnFocus registers fn to run on every Focus.
func (d *Document) OnFocus(fn func(*Node)) {
	d.listenerMu.Lock()
	defer d.listenerMu.Unlock()
	d.onFocus = append(d.onFocus, fn)
}

func (d *Document) notifyChange() {
	d.listenerMu.Lock()
	fns := append([]func(){}, d.onChange...)
	d.listenerMu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// attached reports whether n belongs to the current tree. Callers hold mu.
func (d *Document) attached(n *Node) bool {
	if n == nil {
		return false
	}
	top := n
	for top.parent != nil {
		top = top.parent
	}
	return top == d.root
}
