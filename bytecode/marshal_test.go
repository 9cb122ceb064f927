package bytecode

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/sme/errors"
)

const todoSource = `<script>
prop title = "Todo"
let items = ["a", "b"]
let done = 0
const limit = 10
derived left = len(items) - done
function add(name) {
  if len(items) < limit {
    items = append(items, name)
  }
}
function finish() {
  done += 1
}
</script>
<template>
<h1>{title}</h1>
<ul>{#each items as item, i}<li onclick={add(item)}>{i}: {item}</li>{/each}</ul>
{#if left > 0}<p>{left} left</p>{:else}<p>all done</p>{/if}
<button onclick={finish}>done</button>
</template>
<style>ul { margin: 0 }</style>`

func TestMarshalRoundTrip(t *testing.T) {
	for level := 0; level <= 2; level++ {
		for _, withMap := range []bool{false, true} {
			mod, err := Emit(program(t, todoSource, level), WithSourceMap(withMap))
			require.NoError(t, err)
			data, err := Marshal(mod)
			require.NoError(t, err)
			require.Equal(t, Magic, string(data[:4]))
			require.Equal(t, byte(FormatVersion), data[4])

			restored, err := Unmarshal(data)
			require.NoError(t, err)
			require.Equal(t, mod.Meta, restored.Meta)
			require.Equal(t, mod.Constants, restored.Constants)
			require.Equal(t, mod.Funcs, restored.Funcs)
			require.Equal(t, mod.Bindings, restored.Bindings)
			require.Equal(t, mod.Updates, restored.Updates)
			require.Equal(t, mod.SourceMap, restored.SourceMap)

			again, err := Marshal(restored)
			require.NoError(t, err)
			require.Equal(t, data, again)
		}
	}
}

func TestLiftReemit(t *testing.T) {
	for level := 0; level <= 2; level++ {
		for _, withMap := range []bool{false, true} {
			opts := []EmitOption{WithSourceMap(withMap), WithCompilerVersion("test")}
			mod, err := Emit(program(t, todoSource, level), opts...)
			require.NoError(t, err)
			data, err := Marshal(mod)
			require.NoError(t, err)

			decoded, err := Unmarshal(data)
			require.NoError(t, err)
			lifted, err := Lift(decoded)
			require.NoError(t, err)
			reemitted, err := Emit(lifted, opts...)
			require.NoError(t, err)
			again, err := Marshal(reemitted)
			require.NoError(t, err)
			require.Equal(t, data, again, "level %d, source map %v", level, withMap)
		}
	}
}

func TestLiftRestoresLabels(t *testing.T) {
	mod, err := Emit(programFile(t, "todo.sme", todoSource, 0))
	require.NoError(t, err)
	prog, err := Lift(mod)
	require.NoError(t, err)
	add, ok := prog.Func("add")
	require.True(t, ok)
	var labels, jumps int
	for _, instr := range add.Code {
		if instr.IsLabel() {
			labels++
		} else if instr.Args != nil && instr.Args[0].Label > 0 {
			jumps++
		}
	}
	require.Equal(t, 1, labels)
	require.Equal(t, 1, jumps)
	require.Equal(t, "Todo", prog.Component)
	require.Equal(t, "ul { margin: 0 }", prog.Style)
}

func TestUnmarshalErrors(t *testing.T) {
	mod, err := Emit(program(t, counterSource, 1))
	require.NoError(t, err)
	data, err := Marshal(mod)
	require.NoError(t, err)

	badVersion := append([]byte{}, data...)
	badVersion[4] = 99

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte("NOPE"), data[4:]...)},
		{"bad version", badVersion},
		{"truncated", data[:len(data)/2]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal(tt.data)
			require.Error(t, err)
			require.Equal(t, errors.E4004, errors.Diagnostics(err)[0].ErrorCode())
		})
	}
}
