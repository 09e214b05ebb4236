package tui

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"charm.land/bubbles/v2/key"
	"charm.land/bubbles/v2/spinner"
	"charm.land/bubbles/v2/viewport"
	tea "charm.land/bubbletea/v2"
	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"

	"github.com/wethinkt/go-uishell/internal/dom"
	"github.com/wethinkt/go-uishell/internal/environ"
	"github.com/wethinkt/go-uishell/internal/errsurface"
	"github.com/wethinkt/go-uishell/internal/hotkey"
	"github.com/wethinkt/go-uishell/internal/i18n"
	"github.com/wethinkt/go-uishell/internal/protocol"
	"github.com/wethinkt/go-uishell/internal/session"
	"github.com/wethinkt/go-uishell/internal/theme"
	"github.com/wethinkt/go-uishell/internal/tuilog"
)

// Session is the part of the session the shell drives.
type Session interface {
	Init(ctx context.Context) error
	HotReload(ctx context.Context) error
	IsBusy() bool
	Title() string
	State() session.State
	Document() *dom.Document
	Errors() *errsurface.Surface
	OnChange(fn func())
}

// EventSink receives user events. The dispatcher implements it.
type EventSink interface {
	Interaction(protocol.Interaction) error
	Resize()
}

// History is the back/forward stack. Traversal fires popstate.
type History interface {
	Back() bool
	Forward() bool
}

// Options wires the shell to the runtime.
type Options struct {
	Session  Session
	Events   EventSink
	History  History
	Theme    *theme.Service
	Viewport *environ.Viewport
	Platform hotkey.Platform
}

// Messages delivered from runtime listeners.
type (
	sessionChangedMsg struct{}
	scrollMsg         struct{ node *dom.Node }
	focusMsg          struct{ node *dom.Node }
	errorChangedMsg   struct{}
	themeChangedMsg   struct{}
	initDoneMsg       struct{ err error }
	reloadDoneMsg     struct{ err error }
)

// ShellModel is the Bubble Tea model for a running session.
type ShellModel struct {
	opts  Options
	ctx   context.Context
	inbox *inbox

	keys    shellKeyMap
	styles  Styles
	palette theme.Palette
	dark    bool
	density int

	viewport viewport.Model
	spinner  spinner.Model
	width    int
	height   int
	ready    bool

	layout  Layout
	version uint64
	drafts  map[*dom.Node]string
	report  *errsurface.Report
	status  string
}

// NewShellModel creates the shell and registers its runtime listeners.
// Listener callbacks never block: they run on the transport's read
// goroutine and inside Update itself.
func NewShellModel(ctx context.Context, opts Options) *ShellModel {
	m := &ShellModel{
		opts:   opts,
		ctx:    ctx,
		inbox:  newInbox(),
		keys:   defaultShellKeyMap(),
		drafts: map[*dom.Node]string{},
	}
	m.applyTheme(opts.Theme.Settings())
	m.spinner = spinner.New(
		spinner.WithSpinner(spinner.MiniDot),
		spinner.WithStyle(m.styles.Spinner),
	)
	m.viewport = viewport.New()

	doc := opts.Session.Document()
	opts.Session.OnChange(func() { m.post(sessionChangedMsg{}) })
	doc.OnScroll(func(n *dom.Node) { m.post(scrollMsg{node: n}) })
	doc.OnFocus(func(n *dom.Node) { m.post(focusMsg{node: n}) })
	opts.Session.Errors().OnChange(func(*errsurface.Report) { m.post(errorChangedMsg{}) })
	opts.Theme.OnChange(func(protocol.ThemeSettings) { m.post(themeChangedMsg{}) })
	return m
}

func (m *ShellModel) post(msg tea.Msg) {
	m.inbox.put(msg)
}

func (m *ShellModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		return m.inbox.take(m.ctx)
	}
}

// inbox holds at most one pending message per kind. A newer message
// replaces a queued one of the same kind, so listeners never wait on
// the model.
type inbox struct {
	mu      sync.Mutex
	pending []tea.Msg
	wake    chan struct{}
}

func newInbox() *inbox {
	return &inbox{wake: make(chan struct{}, 1)}
}

func (b *inbox) put(msg tea.Msg) {
	b.mu.Lock()
	replaced := false
	for i, p := range b.pending {
		if fmt.Sprintf("%T", p) == fmt.Sprintf("%T", msg) {
			b.pending[i] = msg
			replaced = true
			break
		}
	}
	if !replaced {
		b.pending = append(b.pending, msg)
	}
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// take returns the oldest pending message, waiting for one if needed.
// It returns nil once ctx is done.
func (b *inbox) take(ctx context.Context) tea.Msg {
	for {
		b.mu.Lock()
		if len(b.pending) > 0 {
			msg := b.pending[0]
			b.pending = b.pending[1:]
			b.mu.Unlock()
			return msg
		}
		b.mu.Unlock()

		select {
		case <-b.wake:
		case <-ctx.Done():
			return nil
		}
	}
}

func (b *inbox) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}

func (m *ShellModel) applyTheme(s protocol.ThemeSettings) {
	m.palette = theme.PaletteFor(s)
	m.dark = theme.IsDark(s.Mode)
	m.density = s.Density
	m.styles = buildStyles(m.palette)
	m.spinner.Style = m.styles.Spinner
}

// Init implements tea.Model.
func (m *ShellModel) Init() tea.Cmd {
	sess := m.opts.Session
	ctx := m.ctx
	return tea.Batch(
		m.spinner.Tick,
		m.waitForEvent(),
		func() tea.Msg { return initDoneMsg{err: sess.Init(ctx)} },
	)
}

// Update implements tea.Model.
func (m *ShellModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case sessionChangedMsg:
		m.refresh()
		return m, m.waitForEvent()

	case scrollMsg:
		m.refresh()
		m.reveal(msg.node, true)
		return m, m.waitForEvent()

	case focusMsg:
		m.refresh()
		m.reveal(msg.node, false)
		return m, m.waitForEvent()

	case errorChangedMsg:
		m.report = m.opts.Session.Errors().Current()
		return m, m.waitForEvent()

	case themeChangedMsg:
		m.applyTheme(m.opts.Theme.Settings())
		m.relayout()
		return m, m.waitForEvent()

	case initDoneMsg:
		if msg.err != nil {
			tuilog.Log.Error("session init failed", "error", msg.err)
			m.status = i18n.Tf("tui.status.initFailed", "Connection failed: %s", msg.err)
		}
		return m, nil

	case reloadDoneMsg:
		if msg.err != nil {
			m.status = i18n.Tf("tui.status.reloadFailed", "Reload failed: %s", msg.err)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyPressMsg:
		if cmd, handled := m.handleKey(msg); handled {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

func (m *ShellModel) handleKey(msg tea.KeyPressMsg) (tea.Cmd, bool) {
	if key.Matches(msg, m.keys.ForceQuit) {
		return tea.Quit, true
	}

	if m.report != nil {
		if key.Matches(msg, m.keys.Dismiss) {
			m.opts.Session.Errors().Dismiss()
			m.report = m.opts.Session.Errors().Current()
		}
		return nil, true
	}

	if hotkey.ShouldReload(keystroke(msg), m.opts.Platform) || key.Matches(msg, m.keys.Reload) {
		return m.reload(), true
	}

	focused := m.opts.Session.Document().Focused()
	if isTextField(focused) {
		if handled := m.editField(focused, msg); handled {
			return nil, true
		}
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit, true
	case key.Matches(msg, m.keys.NextFocus):
		m.cycleFocus(1)
		return nil, true
	case key.Matches(msg, m.keys.PrevFocus):
		m.cycleFocus(-1)
		return nil, true
	case key.Matches(msg, m.keys.Activate):
		m.activate(focused)
		return nil, true
	case key.Matches(msg, m.keys.Back):
		m.opts.History.Back()
		return nil, true
	case key.Matches(msg, m.keys.Forward):
		m.opts.History.Forward()
		return nil, true
	}
	return nil, false
}

func (m *ShellModel) reload() tea.Cmd {
	sess := m.opts.Session
	ctx := m.ctx
	return func() tea.Msg { return reloadDoneMsg{err: sess.HotReload(ctx)} }
}

func (m *ShellModel) resize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.SetWidth(width)
	m.viewport.SetHeight(max(1, height-3))
	m.ready = true
	m.relayout()

	if m.opts.Viewport.Set(width, height) {
		m.opts.Events.Resize()
	}
}

// refresh re-lays out the document when it changed.
func (m *ShellModel) refresh() {
	doc := m.opts.Session.Document()
	if v := doc.Version(); v != m.version {
		m.version = v
		clear(m.drafts)
	}
	m.relayout()
}

func (m *ShellModel) relayout() {
	doc := m.opts.Session.Document()
	m.layout = LayoutDocument(doc.Root(), LayoutOptions{
		Width:   max(20, m.width),
		Palette: m.palette,
		Density: m.density,
		Dark:    m.dark,
		Focused: doc.Focused(),
		Drafts:  m.drafts,
	})
	m.viewport.SetContent(m.layout.String())
}

// reveal scrolls n into view. force puts n at the top even when it is
// already visible.
func (m *ShellModel) reveal(n *dom.Node, force bool) {
	line := m.layout.Line(n)
	if line < 0 {
		return
	}
	top := m.viewport.YOffset()
	if force || line < top || line >= top+m.viewport.Height() {
		m.viewport.SetYOffset(line)
	}
}

func (m *ShellModel) cycleFocus(delta int) {
	doc := m.opts.Session.Document()
	nodes := doc.Focusables()
	if len(nodes) == 0 {
		return
	}
	idx := -1
	cur := doc.Focused()
	for i, n := range nodes {
		if n == cur {
			idx = i
			break
		}
	}
	switch {
	case idx < 0 && delta < 0:
		idx = len(nodes) - 1
	case idx < 0:
		idx = 0
	default:
		idx = (idx + delta + len(nodes)) % len(nodes)
	}
	if err := doc.Focus(nodes[idx]); err != nil {
		tuilog.Log.Debug("focus failed", "error", err)
	}
}

// activate sends the focused element's handler to the server.
func (m *ShellModel) activate(n *dom.Node) {
	if n == nil {
		return
	}
	ev := protocol.Interaction{Key: componentKey(n)}
	switch {
	case isTextField(n) || n.Tag == "select":
		ev.HandlerID = firstHandler(n, "change", "input", "submit")
		if v, ok := m.drafts[n]; ok {
			ev.Value = v
		} else {
			ev.Value = n.Attrs["value"]
		}
	default:
		ev.HandlerID = firstHandler(n, "click")
	}
	if ev.HandlerID == "" {
		tuilog.Log.Debug("no handler for element", "tag", n.Tag, "key", ev.Key)
		return
	}
	if err := m.opts.Events.Interaction(ev); err != nil {
		m.status = i18n.Tf("tui.status.eventFailed", "Event not sent: %s", err)
		return
	}
	m.status = ""
}

// editField applies a key press to the draft of a focused text field.
func (m *ShellModel) editField(n *dom.Node, msg tea.KeyPressMsg) bool {
	if key.Matches(msg, m.keys.NextFocus, m.keys.PrevFocus, m.keys.Activate, m.keys.Back, m.keys.Forward) {
		return false
	}
	draft, ok := m.drafts[n]
	if !ok {
		draft = n.Attrs["value"]
	}
	switch msg.String() {
	case "backspace":
		if r := []rune(draft); len(r) > 0 {
			draft = string(r[:len(r)-1])
		}
	case "space":
		draft += " "
	default:
		text := msg.Key().Text
		if text == "" || msg.Key().Mod&(tea.ModCtrl|tea.ModAlt) != 0 {
			return false
		}
		draft += text
	}
	m.drafts[n] = draft
	m.relayout()
	return true
}

func isTextField(n *dom.Node) bool {
	if n == nil {
		return false
	}
	switch n.Tag {
	case "input", "textarea":
		return true
	}
	return strings.EqualFold(n.Attrs[dom.AttrContentEditable], "true")
}

func firstHandler(n *dom.Node, events ...string) string {
	for _, e := range events {
		if id := n.Handlers[e]; id != "" {
			return id
		}
	}
	return ""
}

// componentKey returns the key of the component n was built from, taken
// from the marker that precedes it.
func componentKey(n *dom.Node) string {
	p := n.Parent()
	if p == nil {
		return ""
	}
	var prev *dom.Node
	for _, c := range p.Children() {
		if c == n {
			break
		}
		prev = c
	}
	if prev != nil && prev.Tag == dom.TagKeyMarker {
		return prev.Key()
	}
	return ""
}

// View implements tea.Model.
func (m *ShellModel) View() tea.View {
	if !m.ready {
		v := tea.NewView(i18n.T("common.loading", "Loading..."))
		v.AltScreen = true
		return v
	}

	var body string
	if m.report != nil {
		body = m.renderError(*m.report)
	} else {
		body = m.viewport.View()
	}

	content := m.renderHeader() + "\n" + body + "\n" + m.renderFooter()
	v := tea.NewView(content)
	v.AltScreen = true
	return v
}

func (m *ShellModel) renderHeader() string {
	sess := m.opts.Session
	var b strings.Builder
	if sess.IsBusy() {
		b.WriteString(m.spinner.View())
	} else {
		b.WriteString(" ")
	}
	b.WriteString(" ")

	title := sess.Title()
	if title == "" {
		title = i18n.T("tui.header.untitled", "uishell")
	}
	b.WriteString(m.styles.Header.Render(title))

	if st := sess.State(); st != session.Streaming {
		b.WriteString(m.styles.HeaderInfo.Render(fmt.Sprintf("  [%s]", stateLabel(st))))
	}
	line := ansi.Truncate(b.String(), m.width, "…")
	sep := m.styles.Separator.Render(strings.Repeat("─", max(0, m.width)))
	return line + "\n" + sep
}

func (m *ShellModel) renderFooter() string {
	if m.status != "" {
		return ansi.Truncate(m.styles.ErrorTitle.Render(m.status), m.width, "…")
	}
	var help string
	if m.report != nil {
		help = i18n.T("tui.help.modal", "esc: dismiss · ctrl+c: quit")
	} else {
		help = i18n.Tf("tui.help.shell", "tab: focus · enter: activate · alt+←/→: back/forward · %s: reload · q: quit",
			hotkey.Label(m.opts.Platform))
	}
	return ansi.Truncate(m.styles.Help.Render(help), m.width, "…")
}

func (m *ShellModel) renderError(r errsurface.Report) string {
	inner := max(20, m.width-4)
	title := i18n.T("tui.error.server", "Server error")
	if r.Origin != errsurface.OriginServer {
		title = i18n.T("tui.error.runtime", "Runtime error")
	}

	parts := []string{
		m.styles.ErrorTitle.Render(title),
		m.styles.ErrorMessage.Render(ansi.Wordwrap(r.Message, inner, "")),
	}
	if r.Detail != "" {
		maxLines := max(1, m.viewport.Height()-6)
		lines := strings.Split(strings.TrimRight(r.Detail, "\n"), "\n")
		if len(lines) > maxLines {
			lines = append(lines[:maxLines], "…")
		}
		for i, l := range lines {
			lines[i] = ansi.Truncate(l, inner, "…")
		}
		parts = append(parts, "", m.styles.ErrorDetail.Render(strings.Join(lines, "\n")))
	}
	box := m.styles.ErrorBorder.Width(inner + 2).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
	return lipgloss.PlaceVertical(m.viewport.Height(), lipgloss.Top, box)
}

func stateLabel(s session.State) string {
	switch s {
	case session.Uninitialized, session.Initializing:
		return i18n.T("tui.state.connecting", "connecting")
	case session.Closed:
		return i18n.T("tui.state.closed", "closed")
	case session.Faulted:
		return i18n.T("tui.state.disconnected", "disconnected")
	}
	return s.String()
}
