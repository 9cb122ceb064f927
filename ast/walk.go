package ast

import "iter"

// Visitor defines the interface for tree traversal. If Visit returns nil,
// children of the node are not visited. Otherwise, the returned Visitor
// is used to visit children.
type Visitor interface {
	Visit(node Node) (w Visitor)
}

// Walk traverses a tree in depth-first order. It starts by calling
// v.Visit(node); if the returned visitor w is not nil, Walk is invoked
// recursively with visitor w for each of the non-nil children of node.
func Walk(v Visitor, node Node) {
	if v = v.Visit(node); v == nil {
		return
	}
	for _, child := range Children(node) {
		Walk(v, child)
	}
}

// Children returns the direct non-nil children of node in source order.
func Children(node Node) []Node {
	var out []Node
	add := func(n Node) {
		if n != nil {
			out = append(out, n)
		}
	}
	switch n := node.(type) {
	case *Component:
		if n.Logic != nil {
			add(n.Logic)
		}
		if n.Markup != nil {
			add(n.Markup)
		}
		if n.Style != nil {
			add(n.Style)
		}
	case *Logic:
		for _, s := range n.Stmts {
			add(s)
		}

	// Statements
	case *VarDecl:
		add(n.Name)
		if n.Value != nil {
			add(n.Value)
		}
	case *FuncDecl:
		add(n.Name)
		for _, p := range n.Params {
			add(p)
		}
		add(n.Body)
	case *Assign:
		add(n.Name)
		add(n.Value)
	case *If:
		add(n.Cond)
		add(n.Consequence)
		if n.Alternative != nil {
			add(n.Alternative)
		}
	case *For:
		if n.Index != nil {
			add(n.Index)
		}
		add(n.Value)
		add(n.Iterable)
		add(n.Body)
	case *ExprStmt:
		add(n.X)
	case *Block:
		for _, s := range n.Stmts {
			add(s)
		}

	// Expressions
	case *List:
		for _, item := range n.Items {
			add(item)
		}
	case *Prefix:
		add(n.X)
	case *Infix:
		add(n.X)
		add(n.Y)
	case *Ternary:
		add(n.Cond)
		add(n.Consequence)
		add(n.Alternative)
	case *Index:
		add(n.X)
		add(n.Index)
	case *Call:
		add(n.Fn)
		for _, a := range n.Args {
			add(a)
		}

	// Markup
	case *Root:
		for _, c := range n.Children {
			add(c)
		}
	case *Element:
		for _, a := range n.Attrs {
			add(a)
		}
		for _, c := range n.Children {
			add(c)
		}
	case *Attribute:
		if n.Expr != nil {
			add(n.Expr)
		}
	case *ExprSlot:
		add(n.X)
	case *IfBlock:
		for _, b := range n.Branches {
			add(b)
		}
	case *Branch:
		if n.Cond != nil {
			add(n.Cond)
		}
		for _, c := range n.Children {
			add(c)
		}
	case *EachBlock:
		add(n.Iterable)
		add(n.Item)
		if n.Index != nil {
			add(n.Index)
		}
		for _, c := range n.Children {
			add(c)
		}
	case *ComponentRef:
		for _, a := range n.Attrs {
			add(a)
		}
		for _, c := range n.Children {
			add(c)
		}
	}
	return out
}

// Inspect traverses a tree in depth-first order. It calls f(node) for each
// node; if f returns true, Inspect invokes f recursively for each of the
// non-nil children of node.
func Inspect(node Node, f func(Node) bool) {
	Walk(inspector(f), node)
}

type inspector func(Node) bool

func (f inspector) Visit(node Node) Visitor {
	if f(node) {
		return f
	}
	return nil
}

// Preorder returns an iterator over all the nodes of the tree rooted at node
// in depth-first preorder.
func Preorder(root Node) iter.Seq[Node] {
	return func(yield func(Node) bool) {
		var visit func(Node) bool
		visit = func(n Node) bool {
			if !yield(n) {
				return false
			}
			for _, child := range Children(n) {
				if !visit(child) {
					return false
				}
			}
			return true
		}
		visit(root)
	}
}

// Idents returns every identifier referenced by expr, in source order.
func Idents(expr Expr) []*Ident {
	var out []*Ident
	for n := range Preorder(expr) {
		if id, ok := n.(*Ident); ok {
			out = append(out, id)
		}
	}
	return out
}
