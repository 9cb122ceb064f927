// Package graph builds the dependency graph of a component: its symbol
// table, the resolution of every identifier, the classified markup bindings,
// and the deterministic topological order that fixes update order.
package graph

import (
	"fmt"
	"sort"

	"github.com/deepnoodle-ai/sme/ast"
)

// Kind is the declared mutability of a variable.
type Kind int

const (
	Mutable Kind = iota
	Derived
	Constant
)

func (k Kind) String() string {
	switch k {
	case Mutable:
		return "mutable"
	case Derived:
		return "derived"
	case Constant:
		return "constant"
	}
	return "unknown"
}

// Variable is a component-level variable.
type Variable struct {
	ID   int
	Name string
	Kind Kind
	// Prop is set for mutable variables a parent component may assign.
	Prop bool
	Decl *ast.VarDecl
	// Reads lists every variable read by the initializer, in source order.
	Reads []int
	// Deps lists the reactive variables read by the initializer.
	Deps []int
	// Rank is the position of the variable in the topological order.
	Rank int
}

// IsReactive reports whether writes to the variable can trigger updates.
func (v *Variable) IsReactive() bool { return v.Kind != Constant }

// Func is an event handler, or the init function holding the top-level
// statements of the logic block.
type Func struct {
	ID     int
	Name   string
	Decl   *ast.FuncDecl
	Params []*ast.Ident
	Body   []ast.Stmt
	// NumLocals counts the parameters and every local declared in the body.
	// Each declaration gets its own slot.
	NumLocals int
	Reads     []int
	Writes    []int
}

// BindingKind classifies a markup binding.
type BindingKind int

const (
	Text BindingKind = iota
	Attribute
	Event
	Structural
)

func (k BindingKind) String() string {
	switch k {
	case Text:
		return "text"
	case Attribute:
		return "attribute"
	case Event:
		return "event"
	case Structural:
		return "structural"
	}
	return "unknown"
}

// Binding pairs a markup location with an expression.
type Binding struct {
	ID   int
	Kind BindingKind
	// Node is the markup node that owns the binding: an *ast.ExprSlot, an
	// *ast.Element, an *ast.ComponentRef, an *ast.IfBlock or an *ast.EachBlock.
	Node ast.Markup
	// Attr is set for attribute and event bindings.
	Attr *ast.Attribute
	// Component names the child component when Attr is one of its props.
	Component string
	// Expr is the bound expression. It is the iterable of an each block and
	// nil for conditional blocks.
	Expr ast.Expr
	// Handler is the handler bound directly by an event attribute such as
	// onclick={inc}, or -1.
	Handler int
	// Deps lists the reactive variables the binding reads. For an each
	// block it includes the dependencies of everything nested in its body.
	Deps []int
	// Parent is the innermost enclosing conditional block, or -1.
	Parent int
	// Loop is the innermost enclosing each block, or -1.
	Loop int
	// Locals are the enclosing loop variables from outer to inner. Binding
	// functions receive them as parameters in this order.
	Locals []*ast.Ident
	// Rank is the position of the binding in the topological order, or -1
	// when the binding is not part of the reactive graph.
	Rank int
}

// Static reports whether the binding reads no reactive variable.
func (b *Binding) Static() bool { return len(b.Deps) == 0 }

// InLoop reports whether the binding is rendered by an each block.
func (b *Binding) InLoop() bool { return b.Loop >= 0 }

// IsEach reports whether the binding is an each block.
func (b *Binding) IsEach() bool {
	_, ok := b.Node.(*ast.EachBlock)
	return ok
}

// IsIf reports whether the binding is a conditional block.
func (b *Binding) IsIf() bool {
	_, ok := b.Node.(*ast.IfBlock)
	return ok
}

// Reactive reports whether the binding is a node of the reactive graph.
func (b *Binding) Reactive() bool {
	return b.Kind != Event && !b.InLoop() && !b.Static()
}

// NodeKind tells variable nodes from binding nodes.
type NodeKind int

const (
	VarNode NodeKind = iota
	BindingNode
)

// Node is a vertex of the dependency graph.
type Node struct {
	Kind NodeKind
	ID   int
}

func (n Node) String() string {
	if n.Kind == VarNode {
		return fmt.Sprintf("var %d", n.ID)
	}
	return fmt.Sprintf("binding %d", n.ID)
}

// Edge is a directed edge of the dependency graph. Ownership edges run from
// a conditional block to the bindings of its branches; they constrain order
// but do not propagate updates.
type Edge struct {
	From      Node
	To        Node
	Ownership bool
}

// RefKind tells what an identifier resolved to.
type RefKind int

const (
	RefVar RefKind = iota
	RefLocal
	RefHandler
	RefBuiltin
)

// Ref is the resolution of one identifier. ID is a variable id, a local
// slot or a handler id; it is unused for builtins.
type Ref struct {
	Kind RefKind
	ID   int
	Name string
}

// Graph is the immutable result of analysing one component.
type Graph struct {
	Component *ast.Component
	Vars      []*Variable
	Handlers  []*Func
	// Init holds the top-level statements, or nil when there are none.
	Init     *Func
	Bindings []*Binding
	// Refs maps every resolved identifier to its target, including the
	// identifiers that declare locals.
	Refs map[*ast.Ident]Ref
	// Order is the topological order of all graph nodes.
	Order []Node

	edges   []Edge
	byName  map[string]*Variable
	readers map[int][]Node
}

// Var returns the variable with the given name.
func (g *Graph) Var(name string) (*Variable, bool) {
	v, ok := g.byName[name]
	return v, ok
}

// Handler returns the handler with the given name.
func (g *Graph) Handler(name string) (*Func, bool) {
	for _, h := range g.Handlers {
		if h.Name == name {
			return h, true
		}
	}
	return nil, false
}

// Edges returns every edge of the graph.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, len(g.edges))
	copy(out, g.edges)
	return out
}

// Rank returns the position of n in the topological order, or -1.
func (g *Graph) Rank(n Node) int {
	if n.Kind == VarNode {
		return g.Vars[n.ID].Rank
	}
	return g.Bindings[n.ID].Rank
}

// Readers returns the derived variables and bindings that read v directly.
func (g *Graph) Readers(v int) []Node {
	return g.readers[v]
}

// UpdateList returns every derived variable and binding transitively
// dependent on variable v, sorted by rank. Ownership edges are not followed.
func (g *Graph) UpdateList(v int) []Node {
	seen := map[Node]bool{}
	var out []Node
	queue := []int{v}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range g.readers[cur] {
			if seen[n] {
				continue
			}
			seen[n] = true
			out = append(out, n)
			if n.Kind == VarNode {
				queue = append(queue, n.ID)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return g.Rank(out[i]) < g.Rank(out[j]) })
	return out
}

// DeriveOrder returns the derived variables in topological order.
func (g *Graph) DeriveOrder() []int {
	var out []int
	for _, n := range g.Order {
		if n.Kind == VarNode && g.Vars[n.ID].Kind == Derived {
			out = append(out, n.ID)
		}
	}
	return out
}

// Describe returns a short label for n, such as "double" or "text binding 2".
func (g *Graph) Describe(n Node) string {
	if n.Kind == VarNode {
		return g.Vars[n.ID].Name
	}
	b := g.Bindings[n.ID]
	return fmt.Sprintf("%s binding %d", b.Kind, b.ID)
}
