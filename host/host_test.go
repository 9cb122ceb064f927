package host

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestDocumentTree(t *testing.T) {
	d := NewDocument()
	div := d.CreateElement("div")
	d.SetAttribute(div, "class", "box")
	d.SetAttribute(div, "title", `a "b" <c>`)
	d.InsertChild(d.Root(), div, 0)

	a := d.CreateText("a & b")
	c := d.CreateText("c")
	br := d.CreateElement("br")
	d.InsertChild(div, a, 0)
	d.InsertChild(div, c, 5)
	d.InsertChild(div, br, 1)

	require.Equal(t, `<div class="box" title="a &quot;b&quot; &lt;c>">a &amp; b<br>c</div>`, d.HTML())
	if diff := cmp.Diff([]Node{a, br, c}, d.Children(div)); diff != "" {
		t.Fatalf("children mismatch (-want +got):\n%s", diff)
	}
	require.Equal(t, "a & bc", d.Text(div))
	require.Equal(t, div, d.Parent(a))
	require.Equal(t, []Node{div}, d.Find("div"))

	d.SetAttribute(div, "class", "wide")
	d.RemoveAttribute(div, "title")
	d.SetText(c, "d")
	require.Equal(t, `<div class="wide">a &amp; b<br>d</div>`, d.HTML())
	require.Equal(t, []Attr{{Name: "class", Value: "wide"}}, d.Attrs(div))
}

func TestDocumentMoveAndDestroy(t *testing.T) {
	d := NewDocument()
	ul := d.CreateElement("ul")
	d.InsertChild(d.Root(), ul, 0)
	li1 := d.CreateElement("li")
	li2 := d.CreateElement("li")
	d.InsertChild(ul, li1, 0)
	d.InsertChild(ul, li2, 1)
	d.InsertChild(li1, d.CreateText("one"), 0)
	require.Equal(t, 5, d.Len())

	// Inserting an attached node moves it.
	d.InsertChild(ul, li2, 0)
	require.Equal(t, []Node{li2, li1}, d.Children(ul))

	d.RemoveChild(ul, li2)
	require.Equal(t, NoNode, d.Parent(li2))
	require.True(t, d.Exists(li2))

	d.DestroyNode(li1)
	require.False(t, d.Exists(li1))
	require.Empty(t, d.Children(ul))
	require.Equal(t, 3, d.Len())
	require.Equal(t, "<ul></ul>", d.HTML())
}

func TestDocumentEvents(t *testing.T) {
	d := NewDocument()
	button := d.CreateElement("button")
	clicks := 0
	d.AddListener(button, "click", func(ctx context.Context) error {
		clicks++
		return nil
	})
	require.True(t, d.HasListener(button, "click"))
	require.NoError(t, d.Fire(context.Background(), button, "click"))
	require.NoError(t, d.Fire(context.Background(), button, "click"))
	require.Equal(t, 2, clicks)

	boom := errors.New("boom")
	d.AddListener(button, "input", func(ctx context.Context) error { return boom })
	require.ErrorIs(t, d.Fire(context.Background(), button, "input"), boom)

	d.RemoveListener(button, "click")
	require.Error(t, d.Fire(context.Background(), button, "click"))
	require.Error(t, d.Fire(context.Background(), Node(999), "click"))
}

func TestRecorder(t *testing.T) {
	d := NewDocument()
	r := NewRecorder(d)
	p := r.CreateElement("p")
	text := r.CreateText("0")
	r.InsertChild(d.Root(), p, 0)
	r.InsertChild(p, text, 0)
	r.SetText(text, "10")
	r.SetAttribute(p, "class", "x")
	r.AddListener(p, "click", func(ctx context.Context) error { return nil })
	require.NoError(t, r.Fire(context.Background(), p, "click"))

	require.Equal(t, 1, r.Count(OpSetText))
	require.Equal(t, 2, r.Count(OpInsertChild))
	require.Len(t, r.Calls(), 7)
	require.Equal(t, Call{Op: OpSetText, Node: text, Args: []string{"10"}}, r.Calls()[4])
	require.Equal(t, `<p class="x">10</p>`, d.HTML())

	r.Reset()
	require.Empty(t, r.Calls())
	r.DestroyNode(p)
	require.Equal(t, 1, r.Count(OpDestroyNode))
	require.Equal(t, "", d.HTML())
}
