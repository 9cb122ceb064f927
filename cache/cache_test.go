package cache

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/sme/bytecode"
	"github.com/deepnoodle-ai/sme/compiler"
	"github.com/deepnoodle-ai/sme/graph"
	"github.com/deepnoodle-ai/sme/parser"
)

const src = "<script>\nlet count = 0\n</script>\n<template><p>{count}</p></template>"

func compile(t *testing.T) *bytecode.Module {
	t.Helper()
	comp, err := parser.Parse(context.Background(), src, parser.WithName("Counter"))
	require.NoError(t, err)
	g, err := graph.Build(comp)
	require.NoError(t, err)
	prog, err := compiler.Compile(g, &compiler.Config{BuildID: "cache-test"})
	require.NoError(t, err)
	mod, err := bytecode.Emit(prog)
	require.NoError(t, err)
	return mod
}

func TestPutGet(t *testing.T) {
	c, err := Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer c.Close()

	key := Key{Source: src, Component: "Counter", Compiler: "test"}
	_, ok, err := c.Get(key)
	require.NoError(t, err)
	require.False(t, ok)

	mod := compile(t)
	require.NoError(t, c.Put(key, mod))
	got, ok, err := c.Get(key)
	require.NoError(t, err)
	require.True(t, ok)

	want, err := bytecode.Marshal(mod)
	require.NoError(t, err)
	data, err := bytecode.Marshal(got)
	require.NoError(t, err)
	require.Equal(t, want, data)

	n, err := c.Len()
	require.NoError(t, err)
	require.Equal(t, 1, n)

	other := key
	other.Level = 1
	_, ok, err = c.Get(other)
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, c.Clear())
	n, err = c.Len()
	require.NoError(t, err)
	require.Zero(t, n)
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := Open(path)
	require.NoError(t, err)
	key := Key{Source: src, Component: "Counter", SourceMap: true}
	require.NoError(t, c.Put(key, compile(t)))
	require.Equal(t, path, c.Path())
	require.NoError(t, c.Close())

	c, err = Open(path)
	require.NoError(t, err)
	defer c.Close()
	mod, ok, err := c.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "Counter", mod.Meta.Component)
}

func TestDigest(t *testing.T) {
	a := Key{Source: "x", Level: 1}
	b := a
	require.Equal(t, a.Digest(), b.Digest())
	b.SourceMap = true
	require.NotEqual(t, a.Digest(), b.Digest())
	b = a
	b.Globals = "Card(title)"
	require.NotEqual(t, a.Digest(), b.Digest())
	require.Len(t, a.Digest(), 64)
}

func TestOpenFailure(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))
	_, err := Open(filepath.Join(dir, "sub"))
	require.Error(t, err)
}
