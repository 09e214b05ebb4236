package dom

import (
	"errors"
	"testing"

	"github.com/wethinkt/go-uishell/internal/protocol"
)

func sampleTree() *protocol.Component {
	return &protocol.Component{
		Key:  "page",
		Type: "box",
		Children: []*protocol.Component{
			{Key: "title", Type: "text", Text: "Hello"},
			{Key: "form", Type: "box", Children: []*protocol.Component{
				{Type: "text", Text: "Name"},
				{Key: "name", Type: "input", Handlers: map[string]string{"input": "h-name"}},
			}},
			{Key: "dup", Type: "button", Text: "A"},
			{Key: "dup", Type: "button", Text: "B"},
		},
	}
}

func TestDocument_KeyedComponentsEmitMarkerThenContent(t *testing.T) {
	doc := NewDocument()
	doc.Render(sampleTree())

	markers := doc.QueryByKey("title")
	if len(markers) != 1 {
		t.Fatalf("expected 1 marker for title, got %d", len(markers))
	}
	m := markers[0]
	if m.Tag != TagKeyMarker {
		t.Errorf("marker tag = %q", m.Tag)
	}
	content := m.NextSibling()
	if content == nil || content.Text != "Hello" || content.Tag != "span" {
		t.Errorf("next sibling should hold the content, got %+v", content)
	}
	if got := doc.QueryByKey("dup"); len(got) != 2 {
		t.Errorf("expected 2 matches for duplicate key, got %d", len(got))
	}
	if got := doc.QueryByKey("missing"); len(got) != 0 {
		t.Errorf("expected no matches, got %d", len(got))
	}
	if doc.RootKey() != "page" {
		t.Errorf("RootKey = %q", doc.RootKey())
	}
}

func TestNode_Focusable(t *testing.T) {
	tests := []struct {
		name string
		node *Node
		want bool
	}{
		{"button", NewNode("button", nil), true},
		{"disabled button", NewNode("button", map[string]string{AttrDisabled: ""}), false},
		{"input", NewNode("input", nil), true},
		{"file input", NewNode("input", map[string]string{AttrType: "file"}), false},
		{"anchor without href", NewNode("a", nil), false},
		{"anchor with href", NewNode("a", map[string]string{AttrHref: "/x"}), true},
		{"div", NewNode("div", nil), false},
		{"div with tabindex", NewNode("div", map[string]string{AttrTabIndex: "0"}), true},
		{"button tabindex -1", NewNode("button", map[string]string{AttrTabIndex: "-1"}), false},
		{"contenteditable", NewNode("div", map[string]string{AttrContentEditable: "true"}), true},
		{"iframe", NewNode("iframe", nil), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.node.Focusable(); got != tt.want {
				t.Errorf("Focusable() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNode_FirstFocusableIsDescendant(t *testing.T) {
	doc := NewDocument()
	doc.Render(sampleTree())

	form := doc.QueryByKey("form")[0].NextSibling()
	target := form.FirstFocusable()
	if target == nil || target.Tag != "input" {
		t.Fatalf("expected the input, got %+v", target)
	}
	if target.Handlers["input"] != "h-name" {
		t.Errorf("handlers not copied: %v", target.Handlers)
	}
	if leaf := target.FirstFocusable(); leaf != nil {
		t.Errorf("a leaf has no focusable descendants, got %+v", leaf)
	}
}

func TestDocument_FocusAndScrollNotifyListeners(t *testing.T) {
	doc := NewDocument()
	doc.Render(sampleTree())

	var focused, scrolled *Node
	doc.OnFocus(func(n *Node) { focused = n })
	doc.OnScroll(func(n *Node) { scrolled = n })

	input := doc.QueryByKey("name")[0].NextSibling()
	if err := doc.Focus(input); err != nil {
		t.Fatal(err)
	}
	if focused != input || doc.Focused() != input {
		t.Error("focus not recorded")
	}

	container := doc.QueryByKey("title")[0].Parent()
	if err := doc.ScrollIntoView(container, true); err != nil {
		t.Fatal(err)
	}
	if scrolled != container || doc.ScrollTarget() != container {
		t.Error("scroll not recorded")
	}
}

func TestDocument_DetachedNodesRejected(t *testing.T) {
	doc := NewDocument()
	doc.Render(sampleTree())
	old := doc.QueryByKey("title")[0]

	doc.Render(sampleTree())

	if err := doc.Focus(old); !errors.Is(err, ErrDetached) {
		t.Errorf("Focus(old) = %v, want ErrDetached", err)
	}
	if err := doc.ScrollIntoView(NewNode("div", nil), false); !errors.Is(err, ErrDetached) {
		t.Errorf("ScrollIntoView(detached) = %v, want ErrDetached", err)
	}
}

func TestDocument_FocusSurvivesRerender(t *testing.T) {
	doc := NewDocument()
	doc.Render(sampleTree())
	input := doc.QueryByKey("name")[0].NextSibling()
	if err := doc.Focus(input); err != nil {
		t.Fatal(err)
	}

	changes := 0
	doc.OnChange(func() { changes++ })
	doc.Render(sampleTree())

	if changes != 1 {
		t.Errorf("OnChange fired %d times", changes)
	}
	f := doc.Focused()
	if f == nil || f.Tag != "input" || f == input {
		t.Errorf("expected focus on the new input node, got %+v", f)
	}
}
