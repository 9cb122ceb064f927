package graph

import (
	"context"
	"testing"

	"github.com/deepnoodle-ai/sme/ast"
	"github.com/deepnoodle-ai/sme/errors"
	"github.com/deepnoodle-ai/sme/parser"
	"github.com/stretchr/testify/require"
)

func component(script, markup string) string {
	return "<script>\n" + script + "\n</script>\n<template>" + markup + "</template>"
}

func build(t *testing.T, src string, opts ...Option) *Graph {
	t.Helper()
	comp, err := parser.Parse(context.Background(), src, parser.WithName("Test"))
	require.NoError(t, err)
	g, err := Build(comp, opts...)
	require.NoError(t, err)
	requireTopological(t, g)
	return g
}

func buildErrors(t *testing.T, src string, opts ...Option) []errors.Diagnostic {
	t.Helper()
	comp, err := parser.Parse(context.Background(), src, parser.WithName("Test"))
	require.NoError(t, err)
	_, err = Build(comp, opts...)
	require.Error(t, err)
	return errors.Diagnostics(err)
}

// requireTopological checks that every edge source precedes its target.
func requireTopological(t *testing.T, g *Graph) {
	t.Helper()
	for _, e := range g.Edges() {
		require.Less(t, g.Rank(e.From), g.Rank(e.To), "%s -> %s", g.Describe(e.From), g.Describe(e.To))
	}
	seen := map[Node]bool{}
	for _, n := range g.Order {
		require.False(t, seen[n])
		seen[n] = true
	}
}

func names(g *Graph, nodes []Node) []string {
	var out []string
	for _, n := range nodes {
		out = append(out, g.Describe(n))
	}
	return out
}

const counter = `
let count = 0
derived double = count * 2
function inc() {
  count += 1
}`

func TestBuildCounter(t *testing.T) {
	g := build(t, component(counter,
		`<button onclick={inc}>+</button><p class={count > 5 ? "big" : "small"}>{double}</p>`))

	require.Len(t, g.Vars, 2)
	count, ok := g.Var("count")
	require.True(t, ok)
	require.Equal(t, Mutable, count.Kind)
	double, _ := g.Var("double")
	require.Equal(t, Derived, double.Kind)
	require.Equal(t, []int{0}, double.Deps)

	require.Len(t, g.Bindings, 3)
	require.Equal(t, Event, g.Bindings[0].Kind)
	require.Equal(t, 0, g.Bindings[0].Handler)
	require.Equal(t, Attribute, g.Bindings[1].Kind)
	require.Equal(t, "class", g.Bindings[1].Attr.Name)
	require.Equal(t, Text, g.Bindings[2].Kind)
	require.Equal(t, []int{1}, g.Bindings[2].Deps)

	require.Equal(t, []Node{
		{VarNode, 0}, {VarNode, 1}, {BindingNode, 1}, {BindingNode, 2},
	}, g.Order)
	require.Equal(t, -1, g.Bindings[0].Rank)
	require.Equal(t, []string{"double", "attribute binding 1", "text binding 2"}, names(g, g.UpdateList(0)))
	require.Equal(t, []string{"text binding 2"}, names(g, g.UpdateList(1)))
	require.Equal(t, []int{1}, g.DeriveOrder())

	inc, ok := g.Handler("inc")
	require.True(t, ok)
	require.Equal(t, []int{0}, inc.Reads)
	require.Equal(t, []int{0}, inc.Writes)
	require.Nil(t, g.Init)
}

func TestDiamond(t *testing.T) {
	g := build(t, component(`
let a = 1
derived b = a + 1
derived c = a * 2
derived d = b + c`, `<p>{d}</p><p>{c}</p>`))

	updates := names(g, g.UpdateList(0))
	require.Equal(t, []string{"b", "c", "d", "text binding 0", "text binding 1"}, updates)

	d, _ := g.Var("d")
	b, _ := g.Var("b")
	c, _ := g.Var("c")
	require.Greater(t, d.Rank, b.Rank)
	require.Greater(t, d.Rank, c.Rank)
	require.Equal(t, []int{1, 2, 3}, g.DeriveOrder())
}

func TestDerivedDeclaredBeforeInput(t *testing.T) {
	g := build(t, component(`
derived total = price * qty
let price = 2
let qty = 3`, `{total}`))
	total, _ := g.Var("total")
	price, _ := g.Var("price")
	require.Greater(t, total.Rank, price.Rank)
	require.Equal(t, []string{"total", "text binding 0"}, names(g, g.UpdateList(price.ID)))
}

func TestStaticBindings(t *testing.T) {
	g := build(t, component(`
const title = "Todo"
let n = 0`, `<h1 title={title}>{title + "!"}</h1><p>{n}</p>`))
	require.True(t, g.Bindings[0].Static())
	require.True(t, g.Bindings[1].Static())
	require.False(t, g.Bindings[2].Static())
	require.Equal(t, -1, g.Bindings[0].Rank)
	require.Empty(t, g.UpdateList(0))
	require.Equal(t, []string{"text binding 2"}, names(g, g.UpdateList(1)))
}

func TestConditionalOwnership(t *testing.T) {
	g := build(t, component(`
let show = true
let count = 0`, `{#if show && count > 0}<p>{count}</p>{:else}<i>none</i>{/if}`))

	require.Len(t, g.Bindings, 2)
	block := g.Bindings[0]
	require.True(t, block.IsIf())
	require.Equal(t, Structural, block.Kind)
	require.Equal(t, []int{0, 1}, block.Deps)
	require.Equal(t, 0, g.Bindings[1].Parent)

	require.Contains(t, g.Edges(), Edge{From: Node{BindingNode, 0}, To: Node{BindingNode, 1}, Ownership: true})
	require.Equal(t, []string{"structural binding 0"}, names(g, g.UpdateList(0)))
	require.Equal(t, []string{"structural binding 0", "text binding 1"}, names(g, g.UpdateList(1)))
}

func TestLoopAbsorbsBody(t *testing.T) {
	g := build(t, component(`
let items = [1, 2]
let cls = "row"
let other = 0
function pick(i) {
  other = i
}`, `<ul>{#each items as item, i}<li class={cls} onclick={pick(i)}>{item}</li>{/each}</ul><p>{other}</p>`))

	each := g.Bindings[0]
	require.True(t, each.IsEach())
	require.Equal(t, []int{0, 1}, each.Deps)
	for _, b := range g.Bindings[1:4] {
		require.True(t, b.InLoop())
		require.False(t, b.Reactive())
		require.Len(t, b.Locals, 2)
	}
	require.Equal(t, []string{"structural binding 0"}, names(g, g.UpdateList(1)))

	slot := g.Bindings[3].Node.(*ast.ExprSlot)
	require.Equal(t, Ref{Kind: RefLocal, ID: 0, Name: "item"}, g.Refs[slot.X.(*ast.Ident)])
	call := g.Bindings[2].Expr.(*ast.Call)
	require.Equal(t, Ref{Kind: RefHandler, ID: 0, Name: "pick"}, g.Refs[call.Fn])
	require.Equal(t, Ref{Kind: RefLocal, ID: 1, Name: "i"}, g.Refs[call.Args[0].(*ast.Ident)])
}

func TestNestedLoops(t *testing.T) {
	g := build(t, component(`let rows = [[1]]`,
		`{#each rows as row}{#each row as cell, j}<b>{cell}{j}</b>{/each}{/each}`))
	inner := g.Bindings[1]
	require.Equal(t, 0, inner.Loop)
	require.Len(t, inner.Locals, 1)
	text := g.Bindings[2]
	require.Equal(t, 1, text.Loop)
	require.Equal(t, []string{"row", "cell", "j"}, []string{text.Locals[0].Name, text.Locals[1].Name, text.Locals[2].Name})
}

func TestHandlerLocals(t *testing.T) {
	g := build(t, component(`
let items = []
let selected
function pick(i) {
  let next = i + 1
  for j, item in items {
    if j == next {
      selected = item
    }
  }
}
for k in [1, 2] {
  items = append(items, k)
}`, ``))
	pick, _ := g.Handler("pick")
	require.Equal(t, 4, pick.NumLocals)
	require.Equal(t, []int{0}, pick.Reads)
	require.Equal(t, []int{1}, pick.Writes)

	require.NotNil(t, g.Init)
	require.Equal(t, 1, g.Init.NumLocals)
	require.Equal(t, []int{0}, g.Init.Writes)
}

func TestComponents(t *testing.T) {
	globals := NewGlobals()
	card, err := parser.Parse(context.Background(), component(`prop title = ""
prop count = 0
let open = false`, `<div>{title}<slot /></div>`), parser.WithName("Card"))
	require.NoError(t, err)
	info := globals.Register(card)
	require.Equal(t, []string{"title", "count"}, info.Props)
	require.Equal(t, []string{"Card"}, globals.Names())

	g := build(t, component(`let name = "x"`, `<Card title={name} count="3"><b>{name}</b></Card>`), WithGlobals(globals))
	require.Len(t, g.Bindings, 2)
	require.Equal(t, Attribute, g.Bindings[0].Kind)
	require.Equal(t, "Card", g.Bindings[0].Component)
	require.Equal(t, Text, g.Bindings[1].Kind)

	diags := buildErrors(t, component(`let name = "x"`,
		`<Card titel={name} open={true} onclick={name} /><Crad />`), WithGlobals(globals))
	require.Equal(t, []errors.ErrorCode{errors.E2009, errors.E2009, errors.E2013, errors.E2008}, codesOf(diags))
	require.Equal(t, "title", diags[0].(*errors.BindingError).Suggestions[0].Value)
	require.Equal(t, "Card", diags[3].(*errors.BindingError).Suggestions[0].Value)
}

func codesOf(diags []errors.Diagnostic) []errors.ErrorCode {
	var out []errors.ErrorCode
	for _, d := range diags {
		out = append(out, d.ErrorCode())
	}
	return out
}

func TestCycles(t *testing.T) {
	tests := []struct {
		name   string
		script string
		cycle  []string
	}{
		{"self", "let x = 1\nderived a = a + x", []string{"a", "a"}},
		{"pair", "derived a = b + 1\nderived b = a * 2", []string{"a", "b", "a"}},
		{"transitive", "let x = 0\nderived a = c + x\nderived b = a\nderived c = b", []string{"a", "c", "b", "a"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := buildErrors(t, component(tt.script, ""))
			require.Len(t, diags, 1)
			cyc, ok := diags[0].(*errors.CyclicDependencyError)
			require.True(t, ok)
			require.Equal(t, tt.cycle, cyc.Cycle)
			require.Equal(t, errors.E2020, cyc.ErrorCode())
		})
	}
}

func TestBindingErrors(t *testing.T) {
	tests := []struct {
		name   string
		script string
		markup string
		code   errors.ErrorCode
	}{
		{"undefined in markup", "let count = 0", "{conut}", errors.E2001},
		{"undefined function", "", "{lenn([])}", errors.E2002},
		{"calling a variable", "let f = 1", "{f()}", errors.E2002},
		{"const depends on state", "let a = 1\nconst b = a", "", errors.E2003},
		{"derived without state", "const a = 1\nderived b = a * 2", "", errors.E2004},
		{"assign derived", "let a = 1\nderived b = a\nfunction f() { b = 2 }", "", errors.E2005},
		{"assign const", "const a = 1\nfunction f() { a = 2 }", "", errors.E2005},
		{"assign undeclared", "function f() { missing = 2 }", "", errors.E2005},
		{"duplicate var", "let a = 1\nlet a = 2", "", errors.E2006},
		{"handler named like builtin", "function len() { }", "", errors.E2006},
		{"each index equals item", "let xs = []", "{#each xs as x, x}{x}{/each}", errors.E2006},
		{"handler in markup", "function f() { }", "{f()}", errors.E2007},
		{"handler in derived", "let a = 1\nfunction f() { }\nderived b = a + f()", "", errors.E2007},
		{"each shadows variable", "let xs = []\nlet x = 0", "{#each xs as x}{x}{/each}", errors.E2010},
		{"each shadows outer", "let xs = []", "{#each xs as x}{#each xs as x}{x}{/each}{/each}", errors.E2010},
		{"local shadows variable", "let a = 1\nfunction f(a) { }", "", errors.E2010},
		{"builtin arity", "", "{len()}", errors.E2011},
		{"handler arity", "function f(a) { }", "<b onclick={f(1, 2)}></b>", errors.E2011},
		{"top level return", "return", "", errors.E2012},
		{"event not a handler", "let a = 1", "<b onclick={a}></b>", errors.E2013},
		{"event expression", "let a = 1", "<b onclick={a + 1}></b>", errors.E2013},
		{"bare handler with params", "function f(a) { }", "<b onclick={f}></b>", errors.E2013},
		{"used before declaration", "let a = b\nlet b = 1", "", errors.E2001},
		{"derived in initializer", "let a = 1\nderived b = a\nlet c = b", "", errors.E2001},
		{"derived during init", "let a = 1\nderived b = a\na = b", "", errors.E2001},
		{"builtin as value", "", "{len}", errors.E2001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := buildErrors(t, component(tt.script, tt.markup))
			require.Equal(t, tt.code, diags[0].ErrorCode(), diags[0].Error())
		})
	}
}

func TestSuggestions(t *testing.T) {
	diags := buildErrors(t, component("let count = 0", "{conut}"))
	be, ok := diags[0].(*errors.BindingError)
	require.True(t, ok)
	require.Equal(t, "conut", be.Name)
	require.Equal(t, "count", be.Suggestions[0].Value)
	require.Equal(t, "Did you mean 'count'?", be.ToFormatted().Hint)
	require.Equal(t, 4, be.Location().Line)
}

func TestMultipleBindingErrors(t *testing.T) {
	diags := buildErrors(t, component("let a = 1", "{b}{c}<p class={d}></p>"))
	require.Equal(t, []errors.ErrorCode{errors.E2001, errors.E2001, errors.E2001}, codesOf(diags))
}
