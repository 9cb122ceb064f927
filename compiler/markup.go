package compiler

import (
	"fmt"

	"github.com/deepnoodle-ai/sme/ast"
	"github.com/deepnoodle-ai/sme/errors"
	"github.com/deepnoodle-ai/sme/graph"
	"github.com/deepnoodle-ai/sme/internal/token"
	"github.com/deepnoodle-ai/sme/ir"
	"github.com/deepnoodle-ai/sme/object"
	"github.com/deepnoodle-ai/sme/op"
)

// indexBindings maps markup nodes and attributes to their graph bindings.
func (c *compiler) indexBindings() {
	c.byAttr = map[*ast.Attribute]*graph.Binding{}
	c.byNode = map[ast.Markup]*graph.Binding{}
	for _, b := range c.g.Bindings {
		if b.Attr != nil {
			c.byAttr[b.Attr] = b
		} else {
			c.byNode[b.Node] = b
		}
	}
}

func (c *compiler) graphBinding(node ast.Markup, attr *ast.Attribute) *graph.Binding {
	var b *graph.Binding
	if attr != nil {
		b = c.byAttr[attr]
	} else {
		b = c.byNode[node]
	}
	if b == nil {
		pos := node.Pos()
		c.defect(errors.E4003, "no binding for markup at %d:%d", pos.LineNumber(), pos.ColumnNumber())
	}
	return b
}

// newBinding reserves the IR binding for gb.
func (c *compiler) newBinding(gb *graph.Binding, kind ir.BindingKind, name string, pos token.Position) (int, *ir.Binding) {
	b := &ir.Binding{
		Kind:   kind,
		Name:   name,
		Body:   -1,
		Static: gb.Static() && kind != ir.Event,
		Rank:   gb.Rank,
		Pos:    pos,
	}
	idx := len(c.prog.Bindings)
	c.prog.Bindings = append(c.prog.Bindings, b)
	c.bindings[gb.ID] = idx
	return idx, b
}

// newFragment reserves a fragment and fills it with the code for children.
func (c *compiler) newFragment(children []ast.Markup, pos token.Position) int {
	frag := &ir.Fragment{}
	idx := len(c.prog.Fragments)
	c.prog.Fragments = append(c.prog.Fragments, frag)
	frag.Code = c.fragment(children, pos)
	return idx
}

// exprFunc compiles a pure binding function. Its parameters are the each
// variables in scope.
func (c *compiler) exprFunc(name string, gb *graph.Binding, expr ast.Expr) string {
	f := c.newFunc()
	f.expr(expr)
	f.emit(expr.Pos(), op.ReturnValue)
	c.exprs = append(c.exprs, &ir.Func{
		Name:      name,
		Kind:      ir.Expr,
		NumParams: len(gb.Locals),
		NumLocals: len(gb.Locals),
		Code:      f.code,
	})
	return name
}

func (c *compiler) fragment(children []ast.Markup, pos token.Position) []ir.Instr {
	f := c.newFunc()
	for _, child := range children {
		f.markup(child)
	}
	if len(f.code) == 0 {
		f.emit(pos, op.Nop)
	}
	return f.code
}

func (f *funcBuilder) markup(node ast.Markup) {
	c := f.c
	switch n := node.(type) {
	case *ast.Text:
		f.emit(n.Pos(), op.StaticText, ir.ConstOf(ir.String(n.Value)))
	case *ast.Element:
		if tree, ok := c.staticTree(n); ok {
			f.emit(n.Pos(), op.StaticTree, ir.ConstOf(ir.Tree(tree)))
			return
		}
		f.element(n)
	case *ast.ExprSlot:
		if obj, ok := c.fold(n.X); ok {
			f.emit(n.Pos(), op.StaticText, ir.ConstOf(ir.String(obj.String())))
			return
		}
		gb := c.graphBinding(n, nil)
		if gb == nil {
			return
		}
		idx, b := c.newBinding(gb, ir.Text, "", n.Pos())
		b.Func = c.exprFunc(fmt.Sprintf("#%d", idx), gb, n.X)
		f.emit(n.Pos(), op.BindText, ir.BindingRef(idx))
	case *ast.IfBlock:
		f.ifBlock(n)
	case *ast.EachBlock:
		gb := c.graphBinding(n, nil)
		if gb == nil {
			return
		}
		idx, b := c.newBinding(gb, ir.Structural, "each", n.Pos())
		b.Func = c.exprFunc(fmt.Sprintf("#%d", idx), gb, n.Iterable)
		b.HasIndex = n.Index != nil
		b.Body = c.newFragment(n.Children, n.Pos())
		f.emit(n.Pos(), op.BindBlock, ir.BindingRef(idx))
	case *ast.ComponentRef:
		f.component(n)
	case *ast.Slot:
		f.emit(n.Pos(), op.Slot)
	}
}

func (f *funcBuilder) element(n *ast.Element) {
	c := f.c
	f.emit(n.Pos(), op.OpenElement, ir.ConstOf(ir.String(n.Tag)))
	for _, attr := range n.Attrs {
		switch {
		case attr.Expr == nil:
			f.emit(attr.Pos(), op.StaticAttr, ir.ConstOf(ir.String(attr.Name)), ir.ConstOf(ir.String(attr.Value)))
		case attr.IsEvent():
			f.event(n, attr)
		default:
			if obj, ok := c.fold(attr.Expr); ok {
				if value, set := attrValue(obj); set {
					f.emit(attr.Pos(), op.StaticAttr, ir.ConstOf(ir.String(attr.Name)), ir.ConstOf(ir.String(value)))
				}
				continue
			}
			gb := c.graphBinding(n, attr)
			if gb == nil {
				continue
			}
			idx, b := c.newBinding(gb, ir.Attribute, attr.Name, attr.Pos())
			b.Func = c.exprFunc(fmt.Sprintf("#%d", idx), gb, attr.Expr)
			f.emit(attr.Pos(), op.BindAttr, ir.BindingRef(idx))
		}
	}
	for _, child := range n.Children {
		f.markup(child)
	}
	f.emit(n.End(), op.CloseElement)
}

// event binds an event attribute. A bare handler name is bound directly; a
// call gets a thunk that evaluates the arguments in the binding's scope.
func (f *funcBuilder) event(el *ast.Element, attr *ast.Attribute) {
	c := f.c
	gb := c.graphBinding(el, attr)
	if gb == nil {
		return
	}
	idx, b := c.newBinding(gb, ir.Event, attr.EventName(), attr.Pos())
	switch e := attr.Expr.(type) {
	case *ast.Ident:
		b.Func = c.ref(e).Name
	case *ast.Call:
		t := c.newFunc()
		t.call(e)
		t.emit(e.Pos(), op.PopTop)
		t.emit(e.Pos(), op.Nil)
		t.emit(e.Pos(), op.ReturnValue)
		b.Func = fmt.Sprintf("#%d.on", idx)
		c.exprs = append(c.exprs, &ir.Func{
			Name:      b.Func,
			Kind:      ir.Thunk,
			NumParams: len(gb.Locals),
			NumLocals: len(gb.Locals),
			Code:      t.code,
		})
	}
	f.emit(attr.Pos(), op.BindEvent, ir.BindingRef(idx))
}

func (f *funcBuilder) ifBlock(n *ast.IfBlock) {
	c := f.c
	branches := n.Branches
	if c.level >= 1 {
		var kept []*ast.Branch
		for _, br := range n.Branches {
			if br.Cond == nil {
				kept = append(kept, br)
				break
			}
			obj, ok := c.fold(br.Cond)
			if !ok {
				kept = append(kept, br)
				continue
			}
			if obj.IsTruthy() {
				kept = append(kept, &ast.Branch{Start: br.Start, Children: br.Children})
				break
			}
		}
		branches = kept
		if len(branches) == 0 {
			return
		}
		if branches[0].Cond == nil {
			for _, child := range branches[0].Children {
				f.markup(child)
			}
			return
		}
	}
	gb := c.graphBinding(n, nil)
	if gb == nil {
		return
	}
	idx, b := c.newBinding(gb, ir.Structural, "if", n.Pos())
	for i, br := range branches {
		var cond string
		if br.Cond != nil {
			cond = c.exprFunc(fmt.Sprintf("#%d.if%d", idx, i), gb, br.Cond)
		}
		b.Branches = append(b.Branches, ir.Branch{Cond: cond, Fragment: c.newFragment(br.Children, br.Start)})
	}
	f.emit(n.Pos(), op.BindBlock, ir.BindingRef(idx))
}

func (f *funcBuilder) component(n *ast.ComponentRef) {
	c := f.c
	f.emit(n.Pos(), op.OpenComponent, ir.ConstOf(ir.String(n.Name)))
	for _, attr := range n.Attrs {
		if attr.Expr == nil {
			f.emit(attr.Pos(), op.StaticProp, ir.ConstOf(ir.String(attr.Name)), ir.ConstOf(ir.String(attr.Value)))
			continue
		}
		if obj, ok := c.fold(attr.Expr); ok {
			if k, ok := ir.FromObject(obj); ok {
				f.emit(attr.Pos(), op.StaticProp, ir.ConstOf(ir.String(attr.Name)), ir.ConstOf(k))
				continue
			}
		}
		gb := c.graphBinding(n, attr)
		if gb == nil {
			continue
		}
		idx, b := c.newBinding(gb, ir.Attribute, attr.Name, attr.Pos())
		b.Func = c.exprFunc(fmt.Sprintf("#%d", idx), gb, attr.Expr)
		f.emit(attr.Pos(), op.BindProp, ir.BindingRef(idx))
	}
	if len(n.Children) > 0 {
		f.emit(n.Pos(), op.SlotContent, ir.FragmentRef(c.newFragment(n.Children, n.Pos())))
	}
	f.emit(n.End(), op.CloseComponent)
}

// attrValue converts a folded attribute value to its text. Nil and false
// leave the attribute unset.
func attrValue(obj object.Object) (string, bool) {
	switch v := obj.(type) {
	case *object.NilType:
		return "", false
	case *object.Bool:
		return "", v.Value()
	}
	return obj.String(), true
}

// staticTree returns the pooled form of an element whose whole subtree is
// known at compile time.
func (c *compiler) staticTree(el *ast.Element) (*ir.StaticNode, bool) {
	if c.level < 1 {
		return nil, false
	}
	node := &ir.StaticNode{Tag: el.Tag}
	for _, attr := range el.Attrs {
		if attr.Expr == nil {
			node.Attrs = append(node.Attrs, ir.StaticAttr{Name: attr.Name, Value: attr.Value})
			continue
		}
		if attr.IsEvent() {
			return nil, false
		}
		obj, ok := c.fold(attr.Expr)
		if !ok {
			return nil, false
		}
		if value, set := attrValue(obj); set {
			node.Attrs = append(node.Attrs, ir.StaticAttr{Name: attr.Name, Value: value})
		}
	}
	for _, child := range el.Children {
		switch n := child.(type) {
		case *ast.Text:
			node.Children = append(node.Children, &ir.StaticNode{IsText: true, Text: n.Value})
		case *ast.ExprSlot:
			obj, ok := c.fold(n.X)
			if !ok {
				return nil, false
			}
			node.Children = append(node.Children, &ir.StaticNode{IsText: true, Text: obj.String()})
		case *ast.Element:
			sub, ok := c.staticTree(n)
			if !ok {
				return nil, false
			}
			node.Children = append(node.Children, sub)
		default:
			return nil, false
		}
	}
	return node, true
}
