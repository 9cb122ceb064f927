package ast

import (
	"strings"

	"github.com/deepnoodle-ai/sme/internal/token"
)

// VoidElements are elements that never have children or a closing tag.
var VoidElements = map[string]bool{
	"br":    true,
	"hr":    true,
	"img":   true,
	"input": true,
	"meta":  true,
	"link":  true,
}

// Root is the root of the markup tree.
type Root struct {
	Start    token.Position
	Children []Markup
	EndPos   token.Position
}

func (r *Root) Pos() token.Position { return r.Start }
func (r *Root) End() token.Position { return r.EndPos }
func (r *Root) String() string      { return markupString(r.Children) }

// Attribute is a name/value pair on an element or a component reference. If
// Expr is nil the attribute is static and Value holds its decoded text.
type Attribute struct {
	NamePos token.Position
	Name    string
	Value   string
	Expr    Expr
	EndPos  token.Position
}

func (a *Attribute) Pos() token.Position { return a.NamePos }
func (a *Attribute) End() token.Position { return a.EndPos }

// IsEvent reports whether the attribute registers an event listener.
func (a *Attribute) IsEvent() bool {
	return a.Expr != nil && len(a.Name) > 2 && strings.HasPrefix(a.Name, "on")
}

// EventName returns the event type for an event attribute ("onclick" -> "click").
func (a *Attribute) EventName() string {
	return strings.TrimPrefix(a.Name, "on")
}

func (a *Attribute) String() string {
	if a.Expr != nil {
		return a.Name + "={" + a.Expr.String() + "}"
	}
	return a.Name + "=\"" + a.Value + "\""
}

// Element is a host element such as <div>.
type Element struct {
	Lt       token.Position
	Tag      string
	Attrs    []*Attribute
	Children []Markup
	EndPos   token.Position
}

func (e *Element) markupNode() {}

func (e *Element) Pos() token.Position { return e.Lt }
func (e *Element) End() token.Position { return e.EndPos }

func (e *Element) String() string {
	var out strings.Builder
	out.WriteString("<" + e.Tag)
	for _, a := range e.Attrs {
		out.WriteString(" " + a.String())
	}
	if VoidElements[e.Tag] {
		out.WriteString(" />")
		return out.String()
	}
	out.WriteString(">")
	out.WriteString(markupString(e.Children))
	out.WriteString("</" + e.Tag + ">")
	return out.String()
}

// Text is literal text content with entities already decoded.
type Text struct {
	ValuePos token.Position
	Value    string
	EndPos   token.Position
}

func (t *Text) markupNode() {}

func (t *Text) Pos() token.Position { return t.ValuePos }
func (t *Text) End() token.Position { return t.EndPos }
func (t *Text) String() string      { return t.Value }

// ExprSlot is an expression whose value is rendered as text: {count * 2}.
type ExprSlot struct {
	Lbrace token.Position
	X      Expr
	Rbrace token.Position
}

func (s *ExprSlot) markupNode() {}

func (s *ExprSlot) Pos() token.Position { return s.Lbrace }
func (s *ExprSlot) End() token.Position { return s.Rbrace.Advance(1) }
func (s *ExprSlot) String() string      { return "{" + s.X.String() + "}" }

// Branch is one arm of an IfBlock. Cond is nil for the else arm.
type Branch struct {
	Start    token.Position
	Cond     Expr
	Children []Markup
}

func (b *Branch) Pos() token.Position { return b.Start }
func (b *Branch) End() token.Position {
	if len(b.Children) > 0 {
		return b.Children[len(b.Children)-1].End()
	}
	return b.Start
}

func (b *Branch) String() string {
	if b.Cond == nil {
		return "{:else}" + markupString(b.Children)
	}
	return "{#if " + b.Cond.String() + "}" + markupString(b.Children)
}

// IfBlock is a conditional block: {#if a}..{:else if b}..{:else}..{/if}.
type IfBlock struct {
	Start    token.Position
	Branches []*Branch
	EndPos   token.Position
}

func (b *IfBlock) markupNode() {}

func (b *IfBlock) Pos() token.Position { return b.Start }
func (b *IfBlock) End() token.Position { return b.EndPos }

// HasElse reports whether the last branch is an unconditional else.
func (b *IfBlock) HasElse() bool {
	return len(b.Branches) > 0 && b.Branches[len(b.Branches)-1].Cond == nil
}

func (b *IfBlock) String() string {
	var out strings.Builder
	for i, br := range b.Branches {
		switch {
		case i == 0:
			out.WriteString("{#if " + br.Cond.String() + "}")
		case br.Cond == nil:
			out.WriteString("{:else}")
		default:
			out.WriteString("{:else if " + br.Cond.String() + "}")
		}
		out.WriteString(markupString(br.Children))
	}
	out.WriteString("{/if}")
	return out.String()
}

// EachBlock is a loop block: {#each items as item, i}..{/each}.
type EachBlock struct {
	Start    token.Position
	Iterable Expr
	Item     *Ident
	Index    *Ident // optional
	Children []Markup
	EndPos   token.Position
}

func (b *EachBlock) markupNode() {}

func (b *EachBlock) Pos() token.Position { return b.Start }
func (b *EachBlock) End() token.Position { return b.EndPos }

func (b *EachBlock) String() string {
	head := "{#each " + b.Iterable.String() + " as " + b.Item.Name
	if b.Index != nil {
		head += ", " + b.Index.Name
	}
	return head + "}" + markupString(b.Children) + "{/each}"
}

// ComponentRef instantiates another component. Attributes become props and
// children become slot content.
type ComponentRef struct {
	Lt       token.Position
	Name     string
	Attrs    []*Attribute
	Children []Markup
	EndPos   token.Position
}

func (c *ComponentRef) markupNode() {}

func (c *ComponentRef) Pos() token.Position { return c.Lt }
func (c *ComponentRef) End() token.Position { return c.EndPos }

func (c *ComponentRef) String() string {
	var out strings.Builder
	out.WriteString("<" + c.Name)
	for _, a := range c.Attrs {
		out.WriteString(" " + a.String())
	}
	if len(c.Children) == 0 {
		out.WriteString(" />")
		return out.String()
	}
	out.WriteString(">" + markupString(c.Children) + "</" + c.Name + ">")
	return out.String()
}

// Slot marks where a component renders the content passed by its parent.
type Slot struct {
	Lt     token.Position
	EndPos token.Position
}

func (s *Slot) markupNode() {}

func (s *Slot) Pos() token.Position { return s.Lt }
func (s *Slot) End() token.Position { return s.EndPos }
func (s *Slot) String() string      { return "<slot />" }

func markupString(nodes []Markup) string {
	var out strings.Builder
	for _, n := range nodes {
		out.WriteString(n.String())
	}
	return out.String()
}
