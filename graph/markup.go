package graph

import (
	"github.com/deepnoodle-ai/sme/ast"
	"github.com/deepnoodle-ai/sme/errors"
)

type markupCtx struct {
	locals []*ast.Ident
	parent int
	loop   int
}

func (mc markupCtx) scope() *scope {
	if len(mc.locals) == 0 {
		return nil
	}
	sc := newScope(nil)
	for slot, id := range mc.locals {
		sc.names[id.Name] = slot
	}
	return sc
}

func (b *builder) newBinding(kind BindingKind, node ast.Markup, mc markupCtx) *Binding {
	locals := make([]*ast.Ident, len(mc.locals))
	copy(locals, mc.locals)
	bnd := &Binding{
		ID:      len(b.g.Bindings),
		Kind:    kind,
		Node:    node,
		Handler: -1,
		Parent:  mc.parent,
		Loop:    mc.loop,
		Locals:  locals,
		Rank:    -1,
	}
	b.g.Bindings = append(b.g.Bindings, bnd)
	return bnd
}

// resolveBindingExpr resolves a pure markup expression and adds the
// reactive variables it reads to the binding's dependencies.
func (b *builder) resolveBindingExpr(bnd *Binding, expr ast.Expr, mc markupCtx) {
	c := &exprCtx{scope: mc.scope(), pure: true, limit: -1, rec: &recorder{}}
	b.resolveExpr(expr, c)
	for _, id := range c.rec.ids {
		if b.g.Vars[id].IsReactive() {
			bnd.Deps = addDep(bnd.Deps, id)
		}
	}
}

func addDep(deps []int, id int) []int {
	for _, d := range deps {
		if d == id {
			return deps
		}
	}
	return append(deps, id)
}

func (b *builder) walkMarkup(nodes []ast.Markup, mc markupCtx) {
	for _, node := range nodes {
		switch n := node.(type) {
		case *ast.Element:
			for _, attr := range n.Attrs {
				switch {
				case attr.Expr == nil:
				case attr.IsEvent():
					b.bindEvent(n, attr, mc)
				default:
					bnd := b.newBinding(Attribute, n, mc)
					bnd.Attr = attr
					bnd.Expr = attr.Expr
					b.resolveBindingExpr(bnd, attr.Expr, mc)
				}
			}
			b.walkMarkup(n.Children, mc)
		case *ast.ExprSlot:
			bnd := b.newBinding(Text, n, mc)
			bnd.Expr = n.X
			b.resolveBindingExpr(bnd, n.X, mc)
		case *ast.IfBlock:
			bnd := b.newBinding(Structural, n, mc)
			for _, br := range n.Branches {
				if br.Cond != nil {
					b.resolveBindingExpr(bnd, br.Cond, mc)
				}
			}
			inner := mc
			inner.parent = bnd.ID
			for _, br := range n.Branches {
				b.walkMarkup(br.Children, inner)
			}
		case *ast.EachBlock:
			b.walkEach(n, mc)
		case *ast.ComponentRef:
			b.walkComponent(n, mc)
		}
	}
}

func (b *builder) bindEvent(el *ast.Element, attr *ast.Attribute, mc markupCtx) {
	bnd := b.newBinding(Event, el, mc)
	bnd.Attr = attr
	bnd.Expr = attr.Expr
	switch e := attr.Expr.(type) {
	case *ast.Ident:
		h, ok := b.g.Handler(e.Name)
		if !ok {
			b.bindingError(errors.E2013, e, b.callableNames(), "'%s' in %s is not a handler", e.Name, attr.Name)
			return
		}
		if len(h.Params) > 0 {
			err := b.bindingError(errors.E2013, e, nil, "handler '%s' takes %d arguments", e.Name, len(h.Params))
			err.Hint = "call it with arguments, for example " + attr.Name + "={" + e.Name + "(...)}"
			return
		}
		bnd.Handler = h.ID
		b.g.Refs[e] = Ref{Kind: RefHandler, ID: h.ID, Name: h.Name}
	case *ast.Call:
		h, ok := b.g.Handler(e.Fn.Name)
		if !ok {
			b.bindingError(errors.E2013, e.Fn, b.callableNames(), "%s must call a handler, '%s' is not one", attr.Name, e.Fn.Name)
			return
		}
		if len(e.Args) != len(h.Params) {
			b.bindingError(errors.E2011, e.Fn, nil, "%s() takes %d arguments (%d given)", h.Name, len(h.Params), len(e.Args))
			return
		}
		b.g.Refs[e.Fn] = Ref{Kind: RefHandler, ID: h.ID, Name: h.Name}
		for _, arg := range e.Args {
			b.resolveBindingExpr(bnd, arg, mc)
		}
	default:
		b.errorAt(errors.E2013, attr.Pos(), "%s must be a handler name or a handler call", attr.Name)
	}
}

func (b *builder) walkEach(n *ast.EachBlock, mc markupCtx) {
	bnd := b.newBinding(Structural, n, mc)
	bnd.Expr = n.Iterable
	b.resolveBindingExpr(bnd, n.Iterable, mc)

	loopVars := []*ast.Ident{n.Item}
	if n.Index != nil {
		if n.Index.Name == n.Item.Name {
			b.bindingError(errors.E2006, n.Index, nil, "'%s' is used for both the item and the index", n.Index.Name)
		}
		loopVars = append(loopVars, n.Index)
	}
	inner := mc
	inner.locals = append(append([]*ast.Ident{}, mc.locals...), loopVars...)
	inner.loop = bnd.ID
	for i, id := range loopVars {
		slot := len(mc.locals) + i
		b.g.Refs[id] = Ref{Kind: RefLocal, ID: slot, Name: id.Name}
		if _, ok := b.g.byName[id.Name]; ok {
			b.bindingError(errors.E2010, id, nil, "each variable '%s' shadows the component variable '%s'", id.Name, id.Name)
			continue
		}
		for _, outer := range mc.locals {
			if outer.Name == id.Name {
				b.bindingError(errors.E2010, id, nil, "each variable '%s' shadows an outer each variable", id.Name)
				break
			}
		}
	}

	start := len(b.g.Bindings)
	b.walkMarkup(n.Children, inner)
	for _, nested := range b.g.Bindings[start:] {
		if nested.Kind == Event {
			continue
		}
		for _, dep := range nested.Deps {
			bnd.Deps = addDep(bnd.Deps, dep)
		}
	}
}

func (b *builder) walkComponent(n *ast.ComponentRef, mc markupCtx) {
	info, ok := b.globals.Lookup(n.Name)
	if !ok {
		err := errors.NewBindingError(errors.E2008, b.loc(n.Pos()), "unknown component '%s'", n.Name)
		err.Name = n.Name
		err.Suggestions = errors.SuggestSimilar(n.Name, b.globals.Names())
		b.errs.Add(err)
	} else {
		for _, attr := range n.Attrs {
			switch {
			case attr.IsEvent():
				b.errorAt(errors.E2013, attr.Pos(), "components do not accept event attributes (%s on <%s>)", attr.Name, n.Name)
			case !info.HasProp(attr.Name):
				err := errors.NewBindingError(errors.E2009, b.loc(attr.Pos()), "component '%s' has no prop '%s'", n.Name, attr.Name)
				err.Name = attr.Name
				err.Suggestions = errors.SuggestSimilar(attr.Name, info.Props)
				b.errs.Add(err)
			case attr.Expr != nil:
				bnd := b.newBinding(Attribute, n, mc)
				bnd.Attr = attr
				bnd.Expr = attr.Expr
				bnd.Component = n.Name
				b.resolveBindingExpr(bnd, attr.Expr, mc)
			}
		}
	}
	// Slot content is rendered in this component's scope.
	b.walkMarkup(n.Children, mc)
}
