package tui

import (
	"strings"
	"sync"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/x/ansi"

	"github.com/wethinkt/go-uishell/internal/dom"
	"github.com/wethinkt/go-uishell/internal/theme"
	"github.com/wethinkt/go-uishell/internal/tuilog"
)

// Shared glamour renderer (created lazily, rebuilt on width or mode change)
var (
	rendererMu   sync.Mutex
	sharedRender *glamour.TermRenderer
	sharedWidth  int
	sharedDark   bool
)

func getRenderer(width int, dark bool) *glamour.TermRenderer {
	rendererMu.Lock()
	defer rendererMu.Unlock()
	if sharedRender == nil || sharedWidth != width || sharedDark != dark {
		style := "light"
		if dark {
			style = "dark"
		}
		r, err := glamour.NewTermRenderer(
			glamour.WithStylePath(style),
			glamour.WithWordWrap(width),
		)
		if err != nil {
			tuilog.Log.Warn("glamour renderer unavailable", "error", err)
			return nil
		}
		sharedRender = r
		sharedWidth = width
		sharedDark = dark
	}
	return sharedRender
}

// Layout is a document flattened into terminal lines.
type Layout struct {
	Lines []string

	// Anchors maps every laid-out node to the first line it occupies.
	// Nodes that produce no output (key markers) anchor at the line the
	// next sibling starts on.
	Anchors map[*dom.Node]int
}

// Line returns the anchor line for n, or -1 when n was not laid out.
func (l Layout) Line(n *dom.Node) int {
	if v, ok := l.Anchors[n]; ok {
		return v
	}
	return -1
}

// String joins the lines.
func (l Layout) String() string {
	return strings.Join(l.Lines, "\n")
}

// LayoutOptions controls how a document is drawn.
type LayoutOptions struct {
	Width   int
	Palette theme.Palette
	Density int
	Dark    bool

	// Focused is drawn with the focus ring.
	Focused *dom.Node

	// Drafts holds unsent text for input nodes, keyed by node.
	Drafts map[*dom.Node]string

	// Plain disables colors and markdown rendering.
	Plain bool
}

type layouter struct {
	opts   LayoutOptions
	out    Layout
	styles nodeStyles
}

type nodeStyles struct {
	text    lipgloss.Style
	muted   lipgloss.Style
	accent  lipgloss.Style
	focus   lipgloss.Style
	link    lipgloss.Style
	control lipgloss.Style
}

func newNodeStyles(p theme.Palette, plain bool) nodeStyles {
	if plain {
		s := lipgloss.NewStyle()
		return nodeStyles{text: s, muted: s, accent: s, focus: s, link: s, control: s}
	}
	return nodeStyles{
		text:    lipgloss.NewStyle().Foreground(p.Text),
		muted:   lipgloss.NewStyle().Foreground(p.Muted),
		accent:  lipgloss.NewStyle().Foreground(p.Accent).Bold(true),
		focus:   lipgloss.NewStyle().Foreground(p.Focus).Bold(true).Reverse(true),
		link:    lipgloss.NewStyle().Foreground(p.Accent).Underline(true),
		control: lipgloss.NewStyle().Foreground(p.Accent),
	}
}

// LayoutDocument lays out the subtree rooted at root.
func LayoutDocument(root *dom.Node, opts LayoutOptions) Layout {
	if opts.Width <= 0 {
		opts.Width = 80
	}
	l := &layouter{
		opts:   opts,
		out:    Layout{Anchors: map[*dom.Node]int{}},
		styles: newNodeStyles(opts.Palette, opts.Plain),
	}
	if root != nil {
		l.node(root, 0)
	}
	return l.out
}

func (l *layouter) emit(lines ...string) {
	l.out.Lines = append(l.out.Lines, lines...)
}

func (l *layouter) indent(depth int) string {
	return strings.Repeat(" ", depth*max(1, theme.Spacing(l.opts.Density)))
}

func (l *layouter) width(depth int) int {
	return max(10, l.opts.Width-len(l.indent(depth)))
}

func (l *layouter) node(n *dom.Node, depth int) {
	l.out.Anchors[n] = len(l.out.Lines)
	pad := l.indent(depth)

	switch n.Tag {
	case dom.TagKeyMarker:
		return
	case dom.RootElementName:
		l.children(n, depth)
		return
	case "span":
		for _, line := range wrap(n.Text, l.width(depth)) {
			l.emit(pad + l.styles.text.Render(line))
		}
	case "markdown":
		l.markdown(n, depth)
	case "hr":
		l.emit(pad + l.styles.muted.Render(strings.Repeat("─", l.width(depth))))
	case "img":
		alt := n.Attrs["alt"]
		if alt == "" {
			alt = n.Attrs["src"]
		}
		l.emit(pad + l.styles.muted.Render("[image: "+alt+"]"))
	case "iframe":
		l.emit(pad + l.decorate(n, "[embedded: "+n.Attrs["src"]+"]"))
	case "a":
		label := labelOf(n)
		if label == "" {
			label = n.Attrs[dom.AttrHref]
		}
		l.emit(pad + l.decorate(n, label))
	case "button":
		l.emit(pad + l.decorate(n, "[ "+labelOf(n)+" ]"))
	case "input", "textarea", "select":
		l.emit(pad + l.field(n, depth))
	default:
		if n.Text != "" {
			for _, line := range wrap(n.Text, l.width(depth)) {
				l.emit(pad + l.styles.accent.Render(line))
			}
		}
		l.children(n, depth)
		return
	}
	// Leaf controls still carry children in odd trees; lay them out under.
	if n.Tag != "button" && n.Tag != "a" {
		l.children(n, depth)
	}
}

func (l *layouter) children(n *dom.Node, depth int) {
	next := depth
	if n.Tag != dom.RootElementName && n.Parent() != nil && n.Parent().Tag != dom.RootElementName {
		next = depth + 1
	}
	// Blocks of the root component are separated by density-dependent gaps.
	spaced := n.Parent() != nil && n.Parent().Tag == dom.RootElementName
	gap := theme.Spacing(l.opts.Density)

	emitted := false
	var prev *dom.Node
	for _, c := range n.Children() {
		startsComponent := prev == nil || prev.Tag != dom.TagKeyMarker
		if spaced && emitted && startsComponent {
			for range gap {
				l.emit("")
			}
		}
		before := len(l.out.Lines)
		l.node(c, next)
		if len(l.out.Lines) > before {
			emitted = true
		}
		prev = c
	}
}

func (l *layouter) markdown(n *dom.Node, depth int) {
	w := l.width(depth)
	if !l.opts.Plain {
		if r := getRenderer(w, l.opts.Dark); r != nil {
			if out, err := r.Render(n.Text); err == nil {
				out = strings.Trim(out, "\n")
				for _, line := range strings.Split(out, "\n") {
					l.emit(l.indent(depth) + line)
				}
				return
			}
		}
	}
	for _, line := range wrap(n.Text, w) {
		l.emit(l.indent(depth) + line)
	}
}

func (l *layouter) field(n *dom.Node, depth int) string {
	value, drafting := l.opts.Drafts[n]
	if !drafting {
		value = n.Attrs["value"]
	}
	shown := value
	style := l.styles.control
	if shown == "" {
		shown = n.Attrs["placeholder"]
		style = l.styles.muted
	}
	if n.Tag == "select" {
		shown = "‹ " + shown + " ›"
	}
	if label := n.Attrs["label"]; label != "" {
		shown = label + ": " + shown
	}
	shown = ansi.Truncate(shown, l.width(depth)-2, "…")
	if n == l.opts.Focused {
		return l.styles.focus.Render("▏" + shown + "▕")
	}
	if _, disabled := n.Attr(dom.AttrDisabled); disabled {
		return l.styles.muted.Render("▏" + shown + "▕")
	}
	return style.Render("▏" + shown + "▕")
}

func (l *layouter) decorate(n *dom.Node, s string) string {
	if n == l.opts.Focused {
		return l.styles.focus.Render(s)
	}
	if _, disabled := n.Attr(dom.AttrDisabled); disabled {
		return l.styles.muted.Render(s)
	}
	if n.Tag == "a" {
		return l.styles.link.Render(s)
	}
	return l.styles.control.Render(s)
}

// labelOf returns a control's own text or the concatenated text of its
// descendants.
func labelOf(n *dom.Node) string {
	if n.Text != "" {
		return n.Text
	}
	if v := n.Attrs["label"]; v != "" {
		return v
	}
	var parts []string
	n.Walk(func(c *dom.Node, _ int) bool {
		if c != n && c.Text != "" {
			parts = append(parts, c.Text)
		}
		return true
	})
	return strings.Join(parts, " ")
}

func wrap(s string, width int) []string {
	if s == "" {
		return nil
	}
	return strings.Split(ansi.Wordwrap(s, width, ""), "\n")
}
