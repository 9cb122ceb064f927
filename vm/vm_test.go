package vm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/sme/bytecode"
	"github.com/deepnoodle-ai/sme/compiler"
	"github.com/deepnoodle-ai/sme/errors"
	"github.com/deepnoodle-ai/sme/graph"
	"github.com/deepnoodle-ai/sme/object"
	"github.com/deepnoodle-ai/sme/parser"
)

func module(t *testing.T, script string, opts ...bytecode.EmitOption) *bytecode.Module {
	t.Helper()
	src := "<script>\n" + script + "\n</script>\n<template></template>"
	comp, err := parser.Parse(context.Background(), src, parser.WithName("Test"), parser.WithFilename("test.sme"))
	require.NoError(t, err)
	g, err := graph.Build(comp)
	require.NoError(t, err)
	prog, err := compiler.Compile(g, &compiler.Config{BuildID: "test"})
	require.NoError(t, err)
	mod, err := bytecode.Emit(prog, opts...)
	require.NoError(t, err)
	return mod
}

type testEnv struct {
	values []object.Object
	stores []int
}

func newEnv(mod *bytecode.Module) *testEnv {
	return &testEnv{values: make([]object.Object, len(mod.Vars))}
}

func (e *testEnv) Load(id int) object.Object {
	if e.values[id] == nil {
		return object.Nil
	}
	return e.values[id]
}

func (e *testEnv) Store(id int, value object.Object) error {
	e.stores = append(e.stores, id)
	e.values[id] = value
	return nil
}

func (e *testEnv) set(t *testing.T, mod *bytecode.Module, name string, value object.Object) {
	t.Helper()
	id, ok := mod.VarID(name)
	require.True(t, ok, name)
	e.values[id] = value
}

func (e *testEnv) get(t *testing.T, mod *bytecode.Module, name string) object.Object {
	t.Helper()
	id, ok := mod.VarID(name)
	require.True(t, ok, name)
	return e.Load(id)
}

func TestDerivedFunction(t *testing.T) {
	mod := module(t, "let count = 3\nderived double = count * 2")
	env := newEnv(mod)
	machine := New(mod, env)

	initial, err := machine.CallByName(context.Background(), "count.init", nil)
	require.NoError(t, err)
	require.Equal(t, object.NewInt(3), initial)

	env.set(t, mod, "count", object.NewInt(21))
	result, err := machine.CallByName(context.Background(), "double.derive", nil)
	require.NoError(t, err)
	require.Equal(t, object.NewInt(42), result)
	require.Empty(t, env.stores)
}

func TestExpressions(t *testing.T) {
	tests := []struct {
		expr     string
		expected object.Object
	}{
		{"a * 2 + 1", object.NewInt(9)},
		{"a > 3 && s == \"ab\"", object.True},
		{"a < 3 || len(s)", object.NewInt(2)},
		{"a > 3 ? \"yes\" : \"no\"", object.NewString("yes")},
		{"[a, a + 1][1]", object.NewInt(5)},
		{"!(a == 4)", object.False},
		{"upper(s) + \"!\"", object.NewString("AB!")},
		{"a / 8", object.NewFloat(0.5)},
		{"-a", object.NewInt(-4)},
		{"[a, 1]", object.NewList([]object.Object{object.NewInt(4), object.NewInt(1)})},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			mod := module(t, "let a = 4\nlet s = \"ab\"\nderived r = "+tt.expr)
			env := newEnv(mod)
			env.set(t, mod, "a", object.NewInt(4))
			env.set(t, mod, "s", object.NewString("ab"))
			result, err := New(mod, env).CallByName(context.Background(), "r.derive", nil)
			require.NoError(t, err)
			require.True(t, tt.expected.Equals(result), "got %s", result.Inspect())
		})
	}
}

func TestHandlerStoresVar(t *testing.T) {
	mod := module(t, "let count = 0\nfunction add(n) {\n  count += n\n}")
	env := newEnv(mod)
	env.set(t, mod, "count", object.NewInt(1))
	result, err := New(mod, env).CallByName(context.Background(), "add", []object.Object{object.NewInt(4)})
	require.NoError(t, err)
	require.Equal(t, object.Nil, result)
	require.Equal(t, object.NewInt(5), env.get(t, mod, "count"))
	require.Equal(t, []int{0}, env.stores)
}

func TestHandlerLoop(t *testing.T) {
	mod := module(t, `let items = [1, 2, 3]
let total = 0
function sum() {
  let acc = 0
  for i, item in items {
    acc += item * i
  }
  total = acc
}`)
	env := newEnv(mod)
	machine := New(mod, env)
	items, err := machine.CallByName(context.Background(), "items.init", nil)
	require.NoError(t, err)
	env.set(t, mod, "items", items)

	_, err = machine.CallByName(context.Background(), "sum", nil)
	require.NoError(t, err)
	require.Equal(t, object.NewInt(8), env.get(t, mod, "total"))
}

func TestHandlerControlFlow(t *testing.T) {
	mod := module(t, `let out = nil
function pick(x) {
  if x > 10 {
    out = "big"
    return
  } else if x > 5 {
    out = "medium"
  } else {
    out = "small"
  }
}
function fallback(x) {
  out = x ?? "none"
}`)
	tests := []struct {
		fn       string
		arg      object.Object
		expected object.Object
	}{
		{"pick", object.NewInt(20), object.NewString("big")},
		{"pick", object.NewInt(7), object.NewString("medium")},
		{"pick", object.NewInt(1), object.NewString("small")},
		{"fallback", object.Nil, object.NewString("none")},
		{"fallback", object.NewInt(0), object.NewInt(0)},
	}
	for _, tt := range tests {
		env := newEnv(mod)
		_, err := New(mod, env).CallByName(context.Background(), tt.fn, []object.Object{tt.arg})
		require.NoError(t, err)
		require.True(t, tt.expected.Equals(env.get(t, mod, "out")), "%s(%s)", tt.fn, tt.arg.Inspect())
	}
}

func TestHandlerCallsHandler(t *testing.T) {
	mod := module(t, `let total = 0
function double(n) {
  total = n * 2
}
function run() {
  double(21)
}`)
	env := newEnv(mod)
	_, err := New(mod, env).CallByName(context.Background(), "run", nil)
	require.NoError(t, err)
	require.Equal(t, object.NewInt(42), env.get(t, mod, "total"))
}

func TestFaultLocation(t *testing.T) {
	mod := module(t, "let count = 1\nfunction boom() {\n  count = count / 0\n}", bytecode.WithSourceMap(true))
	env := newEnv(mod)
	env.set(t, mod, "count", object.NewInt(1))
	_, err := New(mod, env).CallByName(context.Background(), "boom", nil)
	require.Error(t, err)

	var fault *errors.Fault
	require.True(t, errors.As(err, &fault))
	require.Equal(t, errors.E3002, fault.Code)
	require.Equal(t, "test.sme", fault.Loc.Filename)
	require.Equal(t, 4, fault.Loc.Line)
	require.Empty(t, env.stores)
}

func TestFaultWithoutSourceMap(t *testing.T) {
	mod := module(t, "let s = \"x\"\nderived n = int(s)")
	env := newEnv(mod)
	env.set(t, mod, "s", object.NewString("x"))
	_, err := New(mod, env).CallByName(context.Background(), "n.derive", nil)
	require.Error(t, err)
	var fault *errors.Fault
	require.True(t, errors.As(err, &fault))
	require.True(t, fault.Loc.IsZero())
}

func TestArgumentCount(t *testing.T) {
	mod := module(t, "let count = 0\nfunction add(n) {\n  count += n\n}")
	_, err := New(mod, newEnv(mod)).CallByName(context.Background(), "add", nil)
	require.Error(t, err)
	var fault *errors.Fault
	require.True(t, errors.As(err, &fault))
	require.Equal(t, errors.E3006, fault.Code)
	require.Contains(t, fault.Message, `function "add" takes 1 argument (0 given)`)

	_, err = New(mod, newEnv(mod)).Call(context.Background(), 99, nil)
	require.Error(t, err)

	_, err = New(mod, newEnv(mod)).CallByName(context.Background(), "missing", nil)
	require.Error(t, err)
}

func TestStackOverflow(t *testing.T) {
	mod := module(t, "function f() {\n  f()\n}")
	machine := New(mod, newEnv(mod), WithMaxDepth(16))
	_, err := machine.CallByName(context.Background(), "f", nil)
	require.Error(t, err)
	var fault *errors.Fault
	require.True(t, errors.As(err, &fault))
	require.Equal(t, errors.E3007, fault.Code)

	// The machine is usable again after a fault.
	_, err = machine.CallByName(context.Background(), "f", nil)
	require.Error(t, err)
	require.False(t, machine.running)
}

func TestContextCancelled(t *testing.T) {
	mod := module(t, "let total = 0\nfunction spin() {\n  for i in range(100000) {\n    total += i\n  }\n}")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(mod, newEnv(mod), WithContextCheckInterval(1)).CallByName(ctx, "spin", nil)
	require.ErrorIs(t, err, context.Canceled)
}
