// Package dom is a headless document model for the rendered component tree.
//
// The renderer contract the command interpreter depends on: a component
// with a key is emitted as a marker node carrying the data-key attribute,
// immediately followed by a sibling node that holds the component's content.
// Focus targets are therefore searched in the marker's next sibling, and
// scrolling uses the marker's parent as the container.
package dom

import "strings"

// Attribute names with special meaning.
const (
	AttrKey             = "data-key"
	AttrHref            = "href"
	AttrTabIndex        = "tabindex"
	AttrDisabled        = "disabled"
	AttrType            = "type"
	AttrContentEditable = "contenteditable"
)

// Tag used for key marker nodes.
const TagKeyMarker = "key-marker"

// Node is one element of the document.
type Node struct {
	Tag   string
	Text  string
	Attrs map[string]string

	// Handlers maps event names ("click", "input", ...) to server handler IDs.
	Handlers map[string]string

	parent   *Node
	children []*Node
	index    int
}

// NewNode returns a detached node.
func NewNode(tag string, attrs map[string]string) *Node {
	if attrs == nil {
		attrs = map[string]string{}
	}
	return &Node{Tag: tag, Attrs: attrs}
}

// Append adds child as the last child of n and returns it.
func (n *Node) Append(child *Node) *Node {
	child.parent = n
	child.index = len(n.children)
	n.children = append(n.children, child)
	return child
}

// Parent returns the parent node, or nil for the root.
func (n *Node) Parent() *Node { return n.parent }

// Children returns the child nodes. The slice must not be modified.
func (n *Node) Children() []*Node { return n.children }

// NextSibling returns the node after n under the same parent, or nil.
func (n *Node) NextSibling() *Node {
	if n.parent == nil || n.index+1 >= len(n.parent.children) {
		return nil
	}
	return n.parent.children[n.index+1]
}

// Attr returns the attribute value and whether it is present.
func (n *Node) Attr(name string) (string, bool) {
	v, ok := n.Attrs[name]
	return v, ok
}

// Key returns the data-key attribute, or "".
func (n *Node) Key() string {
	return n.Attrs[AttrKey]
}

// Focusable mirrors the browser focus selector:
// a[href], area[href], input (not disabled, not file), select, textarea,
// button (not disabled), iframe, [tabindex], [contenteditable=true];
// anything with tabindex=-1 is excluded.
func (n *Node) Focusable() bool {
	if v, ok := n.Attr(AttrTabIndex); ok {
		if strings.TrimSpace(v) == "-1" {
			return false
		}
		return true
	}
	_, disabled := n.Attr(AttrDisabled)
	_, hasHref := n.Attr(AttrHref)

	switch n.Tag {
	case "a", "area":
		return hasHref
	case "input":
		return !disabled && n.Attrs[AttrType] != "file"
	case "select", "textarea", "button":
		return !disabled
	case "iframe":
		return true
	}
	return strings.EqualFold(n.Attrs[AttrContentEditable], "true")
}

// FirstFocusable returns the first focusable descendant of n in document
// order. n itself is not considered.
func (n *Node) FirstFocusable() *Node {
	for _, c := range n.children {
		if c.Focusable() {
			return c
		}
		if f := c.FirstFocusable(); f != nil {
			return f
		}
	}
	return nil
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the node's children.
func (n *Node) Walk(fn func(*Node, int) bool) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.children {
		c.walk(fn, depth+1)
	}
}
