package ast

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWalk(t *testing.T) {
	logic := &Logic{Stmts: []Stmt{
		&VarDecl{
			Kind: DeclLet,
			Name: ident("x"),
			Value: &Infix{
				X:  &Int{Literal: "1", Value: 1},
				Op: "+",
				Y:  &Int{Literal: "2", Value: 2},
			},
		},
	}}

	var visited []string
	Inspect(logic, func(n Node) bool {
		switch node := n.(type) {
		case *Logic:
			visited = append(visited, "Logic")
		case *VarDecl:
			visited = append(visited, "VarDecl")
		case *Ident:
			visited = append(visited, "Ident:"+node.Name)
		case *Infix:
			visited = append(visited, "Infix:"+node.Op)
		case *Int:
			visited = append(visited, "Int")
		}
		return true
	})
	require.Equal(t, []string{"Logic", "VarDecl", "Ident:x", "Infix:+", "Int", "Int"}, visited)
}

func TestInspectStops(t *testing.T) {
	root := &Root{Children: []Markup{
		&Element{Tag: "div", Children: []Markup{&ExprSlot{X: ident("a")}}},
		&ExprSlot{X: ident("b")},
	}}
	var names []string
	Inspect(root, func(n Node) bool {
		if _, ok := n.(*Element); ok {
			return false
		}
		if id, ok := n.(*Ident); ok {
			names = append(names, id.Name)
		}
		return true
	})
	require.Equal(t, []string{"b"}, names)
}

func TestPreorderMarkup(t *testing.T) {
	root := &Root{Children: []Markup{
		&IfBlock{Branches: []*Branch{
			{Cond: ident("show"), Children: []Markup{
				&EachBlock{Iterable: ident("items"), Item: ident("item"), Children: []Markup{
					&ExprSlot{X: &Call{Fn: ident("upper"), Args: []Expr{ident("item")}}},
				}},
			}},
		}},
		&ComponentRef{Name: "Card", Attrs: []*Attribute{{Name: "title", Expr: ident("title")}}},
	}}
	var names []string
	for n := range Preorder(root) {
		if id, ok := n.(*Ident); ok {
			names = append(names, id.Name)
		}
	}
	require.Equal(t, []string{"show", "items", "item", "upper", "item", "title"}, names)
}

func TestPreorderEarlyExit(t *testing.T) {
	expr := &List{Items: []Expr{ident("a"), ident("b"), ident("c")}}
	count := 0
	for range Preorder(expr) {
		count++
		if count == 2 {
			break
		}
	}
	require.Equal(t, 2, count)
}

func TestIdents(t *testing.T) {
	expr := &Ternary{
		Cond:        &Infix{X: ident("a"), Op: ">", Y: &Int{Literal: "1"}},
		Consequence: &Index{X: ident("items"), Index: ident("i")},
		Alternative: &Call{Fn: ident("len"), Args: []Expr{ident("b")}},
	}
	var names []string
	for _, id := range Idents(expr) {
		names = append(names, id.Name)
	}
	require.Equal(t, []string{"a", "items", "i", "len", "b"}, names)
}
