package compiler

import (
	"context"

	"github.com/deepnoodle-ai/sme/ast"
	"github.com/deepnoodle-ai/sme/builtins"
	"github.com/deepnoodle-ai/sme/graph"
	"github.com/deepnoodle-ai/sme/object"
	"github.com/deepnoodle-ai/sme/op"
)

// foldConstants computes the values of constants whose initializers fold,
// in declaration order so later constants may use earlier ones.
func (c *compiler) foldConstants() {
	if c.level < 1 {
		return
	}
	for _, v := range c.g.Vars {
		if v.Kind != graph.Constant || v.Decl.Value == nil {
			continue
		}
		if obj, ok := c.fold(v.Decl.Value); ok {
			c.consts[v.ID] = obj
		}
	}
}

// fold evaluates expr at compile time when it only involves literals,
// constants and builtins. Expressions that would fault are left alone so
// the fault happens at run time.
func (c *compiler) fold(expr ast.Expr) (object.Object, bool) {
	if c.level < 1 {
		return nil, false
	}
	switch e := expr.(type) {
	case *ast.Int:
		return object.NewInt(e.Value), true
	case *ast.Float:
		return object.NewFloat(e.Value), true
	case *ast.String:
		return object.NewString(e.Value), true
	case *ast.Bool:
		return object.NewBool(e.Value), true
	case *ast.Nil:
		return object.Nil, true
	case *ast.Ident:
		r, ok := c.g.Refs[e]
		if !ok || r.Kind != graph.RefVar {
			return nil, false
		}
		obj, ok := c.consts[r.ID]
		return obj, ok
	case *ast.List:
		items := make([]object.Object, 0, len(e.Items))
		for _, item := range e.Items {
			obj, ok := c.fold(item)
			if !ok {
				return nil, false
			}
			items = append(items, obj)
		}
		return object.NewList(items), true
	case *ast.Prefix:
		x, ok := c.fold(e.X)
		if !ok {
			return nil, false
		}
		if e.Op == "!" {
			return object.Not(x), true
		}
		return ok2(object.Negate(x))
	case *ast.Infix:
		return c.foldInfix(e)
	case *ast.Ternary:
		cond, ok := c.fold(e.Cond)
		if !ok {
			return nil, false
		}
		if cond.IsTruthy() {
			return c.fold(e.Consequence)
		}
		return c.fold(e.Alternative)
	case *ast.Index:
		x, ok := c.fold(e.X)
		if !ok {
			return nil, false
		}
		index, ok := c.fold(e.Index)
		if !ok {
			return nil, false
		}
		return ok2(object.GetItem(x, index))
	case *ast.Call:
		r, ok := c.g.Refs[e.Fn]
		if !ok || r.Kind != graph.RefBuiltin {
			return nil, false
		}
		b, ok := builtins.Lookup(r.Name)
		if !ok {
			return nil, false
		}
		args := make([]object.Object, 0, len(e.Args))
		for _, arg := range e.Args {
			obj, ok := c.fold(arg)
			if !ok {
				return nil, false
			}
			args = append(args, obj)
		}
		return ok2(b.Call(context.Background(), args...))
	}
	return nil, false
}

func (c *compiler) foldInfix(e *ast.Infix) (object.Object, bool) {
	x, ok := c.fold(e.X)
	if !ok {
		return nil, false
	}
	switch e.Op {
	case "&&":
		if !x.IsTruthy() {
			return x, true
		}
		return c.fold(e.Y)
	case "||":
		if x.IsTruthy() {
			return x, true
		}
		return c.fold(e.Y)
	case "??":
		if x != object.Nil {
			return x, true
		}
		return c.fold(e.Y)
	}
	y, ok := c.fold(e.Y)
	if !ok {
		return nil, false
	}
	if bop, found := op.BinaryOps[e.Op]; found {
		return ok2(object.BinaryOp(bop, x, y))
	}
	if cop, found := op.CompareOps[e.Op]; found {
		return ok2(object.Compare(cop, x, y))
	}
	return nil, false
}

func ok2(obj object.Object, err error) (object.Object, bool) {
	if err != nil {
		return nil, false
	}
	return obj, true
}
