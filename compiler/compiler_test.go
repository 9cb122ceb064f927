package compiler

import (
	"context"
	"testing"

	"github.com/deepnoodle-ai/sme/errors"
	"github.com/deepnoodle-ai/sme/graph"
	"github.com/deepnoodle-ai/sme/ir"
	"github.com/deepnoodle-ai/sme/parser"
	"github.com/stretchr/testify/require"
)

func component(script, markup string) string {
	return "<script>\n" + script + "\n</script>\n<template>" + markup + "</template>"
}

func compile(t *testing.T, src string, level int, opts ...graph.Option) *ir.Program {
	t.Helper()
	comp, err := parser.Parse(context.Background(), src, parser.WithName("Test"))
	require.NoError(t, err)
	g, err := graph.Build(comp, opts...)
	require.NoError(t, err)
	prog, err := Compile(g, &Config{Level: level})
	require.NoError(t, err)
	return prog
}

func listing(code []ir.Instr) []string {
	var out []string
	for _, instr := range code {
		out = append(out, instr.String())
	}
	return out
}

func funcCode(t *testing.T, prog *ir.Program, name string) []string {
	t.Helper()
	fn, ok := prog.Func(name)
	require.True(t, ok, "missing func %s", name)
	return listing(fn.Code)
}

func funcNames(prog *ir.Program) []string {
	var out []string
	for _, fn := range prog.Funcs {
		out = append(out, fn.Name)
	}
	return out
}

const counter = `
let count = 0
derived double = count * 2
function inc() {
  count += 1
}`

const counterMarkup = `<button onclick={inc}>Clicked {count} times</button><p>{double}</p>`

func TestCompileCounter(t *testing.T) {
	prog := compile(t, component(counter, counterMarkup), 0)

	require.Equal(t, "Test", prog.Component)
	require.Equal(t, []string{"count.init", "double.derive", "inc", "#1", "#2"}, funcNames(prog))
	require.Equal(t, []string{"LOAD_CONST 0", "RETURN_VALUE"}, funcCode(t, prog, "count.init"))
	require.Equal(t, []string{"LOAD_VAR count", "LOAD_CONST 2", "BINARY_OP 3", "RETURN_VALUE"}, funcCode(t, prog, "double.derive"))
	require.Equal(t, []string{
		"LOAD_VAR count",
		"LOAD_CONST 1",
		"BINARY_OP 1",
		"STORE_VAR count",
		"NIL",
		"RETURN_VALUE",
	}, funcCode(t, prog, "inc"))

	require.Equal(t, []string{
		`OPEN_ELEMENT "button"`,
		"BIND_EVENT b0",
		`STATIC_TEXT "Clicked "`,
		"BIND_TEXT b1",
		`STATIC_TEXT " times"`,
		"CLOSE_ELEMENT",
		`OPEN_ELEMENT "p"`,
		"BIND_TEXT b2",
		"CLOSE_ELEMENT",
	}, listing(prog.Fragments[0].Code))

	require.Len(t, prog.Bindings, 3)
	require.Equal(t, ir.Event, prog.Bindings[0].Kind)
	require.Equal(t, "click", prog.Bindings[0].Name)
	require.Equal(t, "inc", prog.Bindings[0].Func)
	require.Equal(t, "#1", prog.Bindings[1].Func)
	require.False(t, prog.Bindings[1].Static)

	require.Equal(t, []ir.Step{
		{Kind: ir.Derive, Var: "double", Rank: 1},
		{Kind: ir.Bind, Binding: 1, Rank: 2},
		{Kind: ir.Bind, Binding: 2, Rank: 3},
	}, prog.Updates["count"])
	require.Equal(t, []ir.Step{{Kind: ir.Bind, Binding: 2, Rank: 3}}, prog.Updates["double"])
	require.Equal(t, []string{"double"}, prog.DeriveOrder)
}

func TestInvalidLevel(t *testing.T) {
	comp, err := parser.Parse(context.Background(), component("", ""))
	require.NoError(t, err)
	g, err := graph.Build(comp)
	require.NoError(t, err)
	_, err = Compile(g, &Config{Level: 3})
	require.Error(t, err)
	_, err = Compile(g, nil)
	require.NoError(t, err)
}

func TestConstantFolding(t *testing.T) {
	src := component(`
const a = 2
const b = a * 3
let x = b + 1
let label = "n=" + str(b)`, `<p>{x}</p>`)

	prog := compile(t, src, 0)
	require.Equal(t, []string{"LOAD_VAR b", "LOAD_CONST 1", "BINARY_OP 1", "RETURN_VALUE"}, funcCode(t, prog, "x.init"))

	prog = compile(t, src, 1)
	require.Equal(t, []string{"LOAD_CONST 7", "RETURN_VALUE"}, funcCode(t, prog, "x.init"))
	require.Equal(t, []string{`LOAD_CONST "n=6"`, "RETURN_VALUE"}, funcCode(t, prog, "label.init"))
	_, ok := prog.Var("a")
	require.True(t, ok)

	prog = compile(t, src, 2)
	_, ok = prog.Var("a")
	require.False(t, ok)
	_, ok = prog.Var("b")
	require.False(t, ok)
	require.Equal(t, []string{"x.init", "label.init", "#0"}, funcNames(prog))
}

func TestVarKinds(t *testing.T) {
	prog := compile(t, component("const step = 2\n"+counter, counterMarkup), 0)
	tests := []struct {
		name string
		kind ir.VarKind
	}{
		{"step", ir.ConstantVar},
		{"count", ir.Mutable},
		{"double", ir.Derived},
	}
	for _, tt := range tests {
		v, ok := prog.Var(tt.name)
		require.True(t, ok, tt.name)
		require.Equal(t, tt.kind, v.Kind, tt.name)
	}
	require.Equal(t, "constant", ir.ConstantVar.String())
	require.Equal(t, "derived", ir.Derived.String())
}

func TestFoldingKeepsFaults(t *testing.T) {
	prog := compile(t, component("let x = 1 / 0", `<p>{x}</p>`), 2)
	require.Equal(t, []string{"LOAD_CONST 1", "LOAD_CONST 0", "BINARY_OP 4", "RETURN_VALUE"}, funcCode(t, prog, "x.init"))

	prog = compile(t, component("const huge = range(-9223372036854775807, 9223372036854775807)\nlet x = len(huge)", `<p>{x}</p>`), 1)
	require.Contains(t, funcCode(t, prog, "huge.init"), `CALL_BUILTIN "range" 2`)
}

func TestUnreadDerivedEliminated(t *testing.T) {
	src := component("let a = 1\nderived unused = a * 2\nderived used = a + 1", `<p>{used}</p>`)

	prog := compile(t, src, 0)
	_, ok := prog.Var("unused")
	require.True(t, ok)

	prog = compile(t, src, 1)
	_, ok = prog.Var("unused")
	require.False(t, ok)
	_, ok = prog.Func("unused.derive")
	require.False(t, ok)
	require.Equal(t, []string{"used"}, prog.DeriveOrder)
	for _, step := range prog.Updates["a"] {
		require.NotEqual(t, "unused", step.Var)
	}
}

func TestStaticTree(t *testing.T) {
	src := component("const n = 1", `<div class="x"><p title={"t" + str(n)}>hi {n}</p><br></div>`)

	prog := compile(t, src, 1)
	code := prog.Fragments[0].Code
	require.Len(t, code, 1)
	require.Equal(t, `<div class="x"><p title="t1">hi 1</p><br></br></div>`, code[0].Args[0].Const.Tree.String())
	require.Empty(t, prog.Bindings)

	prog = compile(t, src, 0)
	require.Equal(t, `OPEN_ELEMENT "div"`, listing(prog.Fragments[0].Code)[0])
	require.Len(t, prog.Bindings, 2)
}

func TestIfPruning(t *testing.T) {
	src := component("const debug = false\nlet a = 1",
		`{#if debug}<p>x</p>{:else if a > 0}<p>{a}</p>{:else}none{/if}`)

	prog := compile(t, src, 0)
	require.Len(t, prog.Bindings[0].Branches, 3)

	prog = compile(t, src, 1)
	b := prog.Bindings[0]
	require.Equal(t, ir.Structural, b.Kind)
	require.Len(t, b.Branches, 2)
	require.Equal(t, "#0.if0", b.Branches[0].Cond)
	require.Equal(t, "", b.Branches[1].Cond)
	require.Equal(t, []string{`STATIC_TEXT "none"`}, listing(prog.Fragments[b.Branches[1].Fragment].Code))
}

func TestIfInlined(t *testing.T) {
	src := component("const on = true\nlet a = 1", `{#if on}<p>{a}</p>{:else}off{/if}`)
	prog := compile(t, src, 1)
	require.Equal(t, []string{`OPEN_ELEMENT "p"`, "BIND_TEXT b0", "CLOSE_ELEMENT"}, listing(prog.Fragments[0].Code))
	require.Len(t, prog.Fragments, 1)

	src = component("const on = false\nlet a = 1", `{#if on}<p>{a}</p>{/if}`)
	prog = compile(t, src, 1)
	require.Equal(t, []string{"NOP"}, listing(prog.Fragments[0].Code))
	require.Empty(t, prog.Bindings)
	require.Empty(t, prog.Updates)
}

func TestEachBlock(t *testing.T) {
	src := component(`
let items = [1, 2]
let picked = -1
function pick(i) {
  picked = i
}`, `<ul>{#each items as item, i}<li onclick={pick(i)}>{item}</li>{/each}</ul>`)

	prog := compile(t, src, 0)
	each := prog.Bindings[0]
	require.True(t, each.IsEach())
	require.True(t, each.HasIndex)
	require.Equal(t, "#0", each.Func)
	require.Equal(t, 1, each.Body)
	require.Equal(t, []string{
		`OPEN_ELEMENT "li"`,
		"BIND_EVENT b1",
		"BIND_TEXT b2",
		"CLOSE_ELEMENT",
	}, listing(prog.Fragments[1].Code))

	thunk, ok := prog.Func("#1.on")
	require.True(t, ok)
	require.Equal(t, ir.Thunk, thunk.Kind)
	require.Equal(t, 2, thunk.NumParams)
	require.Equal(t, []string{"LOAD_LOCAL $1", "CALL_FUNC pick 1", "POP_TOP", "NIL", "RETURN_VALUE"}, listing(thunk.Code))
	require.Equal(t, []string{"LOAD_LOCAL $0", "RETURN_VALUE"}, funcCode(t, prog, "#2"))

	// Only the each block itself is updated when items changes.
	require.Equal(t, []ir.Step{{Kind: ir.Bind, Binding: 0, Rank: each.Rank}}, prog.Updates["items"])
}

func TestHandlerControlFlow(t *testing.T) {
	src := component(`
let total = 0
let name
function sum(xs) {
  for x in xs {
    if x > 0 {
      total += x
    } else {
      total -= x
    }
  }
  name = name ?? "none"
}`, "")
	prog := compile(t, src, 0)
	require.Equal(t, []string{
		"LOAD_LOCAL $0",
		"GET_ITER",
		"L1:",
		"FOR_ITER L2",
		"STORE_LOCAL $1",
		"POP_TOP",
		"LOAD_LOCAL $1",
		"LOAD_CONST 0",
		"COMPARE_OP 5",
		"POP_JUMP_FORWARD_IF_FALSE L3",
		"LOAD_VAR total",
		"LOAD_LOCAL $1",
		"BINARY_OP 1",
		"STORE_VAR total",
		"JUMP_FORWARD L4",
		"L3:",
		"LOAD_VAR total",
		"LOAD_LOCAL $1",
		"BINARY_OP 2",
		"STORE_VAR total",
		"L4:",
		"JUMP_BACKWARD L1",
		"L2:",
		"LOAD_VAR name",
		"COPY 0",
		"POP_JUMP_FORWARD_IF_NOT_NIL L5",
		"POP_TOP",
		`LOAD_CONST "none"`,
		"L5:",
		"STORE_VAR name",
		"NIL",
		"RETURN_VALUE",
	}, funcCode(t, prog, "sum"))
}

func TestDeadHandlerBranch(t *testing.T) {
	src := component(`
const verbose = false
let log = ""
function note(msg) {
  if verbose {
    log = log + msg
  }
  log = msg
}`, "")
	prog := compile(t, src, 2)
	require.Equal(t, []string{"LOAD_LOCAL $0", "STORE_VAR log", "NIL", "RETURN_VALUE"}, funcCode(t, prog, "note"))
	prog = compile(t, src, 1)
	require.Contains(t, funcCode(t, prog, "note"), "POP_JUMP_FORWARD_IF_FALSE L1")
}

func TestInitFunc(t *testing.T) {
	src := component(`
let total = 0
for v in [1, 2, 3] {
  total += v
}`, `<p>{total}</p>`)
	prog := compile(t, src, 0)
	require.Equal(t, InitFunc, prog.Init)
	fn, ok := prog.Func(InitFunc)
	require.True(t, ok)
	require.Equal(t, ir.Init, fn.Kind)
	require.Equal(t, 1, fn.NumLocals)
}

func TestComponentProps(t *testing.T) {
	globals := graph.NewGlobals()
	globals.Add(&graph.ComponentInfo{Name: "Card", Props: []string{"title", "count", "size"}})
	src := component(`let name = "x"`, `<Card title={name} count="3" size={1 + 1}><b>{name}</b></Card>`)
	prog := compile(t, src, 1, graph.WithGlobals(globals))
	require.Equal(t, []string{
		`OPEN_COMPONENT "Card"`,
		"BIND_PROP b0",
		`STATIC_PROP "count" "3"`,
		`STATIC_PROP "size" 2`,
		"SLOT_CONTENT f1",
		"CLOSE_COMPONENT",
	}, listing(prog.Fragments[0].Code))
	require.Equal(t, "title", prog.Bindings[0].Name)
	require.Equal(t, []string{`OPEN_ELEMENT "b"`, "BIND_TEXT b1", "CLOSE_ELEMENT"}, listing(prog.Fragments[1].Code))
}

func TestSlot(t *testing.T) {
	prog := compile(t, component("", `<div><slot /></div>`), 1)
	require.Equal(t, []string{`OPEN_ELEMENT "div"`, "SLOT", "CLOSE_ELEMENT"}, listing(prog.Fragments[0].Code))
}

func TestDanglingReference(t *testing.T) {
	comp, err := parser.Parse(context.Background(), component("let a = 1", `<p>{a}</p>`))
	require.NoError(t, err)
	g, err := graph.Build(comp)
	require.NoError(t, err)
	for id := range g.Refs {
		delete(g.Refs, id)
	}
	_, err = Compile(g, nil)
	require.Error(t, err)
	require.Equal(t, errors.E4003, errors.Diagnostics(err)[0].ErrorCode())
}
