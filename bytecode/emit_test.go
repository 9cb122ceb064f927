package bytecode

import (
	"context"
	"testing"

	"github.com/gofrs/uuid"
	"github.com/stretchr/testify/require"

	"github.com/deepnoodle-ai/sme/compiler"
	"github.com/deepnoodle-ai/sme/errors"
	"github.com/deepnoodle-ai/sme/graph"
	"github.com/deepnoodle-ai/sme/ir"
	"github.com/deepnoodle-ai/sme/op"
	"github.com/deepnoodle-ai/sme/parser"
)

const counterSource = `<script>
let count = 0
derived double = count * 2
function inc() {
  count += 1
}
</script>
<template>
  <button onclick={inc}>Clicked {count} times</button>
  <p>{double}</p>
</template>
<style>p { color: red; }</style>
`

func program(t *testing.T, src string, level int) *ir.Program {
	t.Helper()
	return programFile(t, "counter.sme", src, level)
}

// programFile compiles src as if read from filename, which names the
// component.
func programFile(t *testing.T, filename, src string, level int) *ir.Program {
	t.Helper()
	comp, err := parser.Parse(context.Background(), src, parser.WithFilename(filename))
	require.NoError(t, err)
	g, err := graph.Build(comp)
	require.NoError(t, err)
	prog, err := compiler.Compile(g, &compiler.Config{Level: level, BuildID: "build-1"})
	require.NoError(t, err)
	return prog
}

func TestEmitCounter(t *testing.T) {
	mod, err := Emit(program(t, counterSource, 1), WithSourceMap(true))
	require.NoError(t, err)

	require.Equal(t, "Counter", mod.Meta.Component)
	require.Equal(t, FormatVersion, mod.Meta.FormatVersion)
	require.Equal(t, DefaultCompilerVersion, mod.Meta.CompilerVersion)
	require.Equal(t, "build-1", mod.Meta.BuildID)
	require.Equal(t, 0, mod.Meta.Style)
	require.Equal(t, "p { color: red; }", mod.Style())
	require.Equal(t, -1, mod.Meta.Init)

	count, ok := mod.VarID("count")
	require.True(t, ok)
	double, ok := mod.VarID("double")
	require.True(t, ok)
	require.Equal(t, []int{double}, mod.DeriveOrder)
	require.Len(t, mod.Updates, 2)
	require.Equal(t, []Step{
		{Kind: ir.Derive, Target: double, Rank: 1},
		{Kind: ir.Bind, Target: 1, Rank: 2},
		{Kind: ir.Bind, Target: 2, Rank: 3},
	}, mod.Updates[count])

	inc, ok := mod.FuncIndex("inc")
	require.True(t, ok)
	require.Equal(t, inc, mod.Bindings[0].Func)
	require.Equal(t, "click", mod.Name(mod.Bindings[0].Name))

	code := mod.Funcs[inc].Code
	require.Equal(t, op.LoadVar, code[0])
	require.Equal(t, op.Code(count), code[1])

	loc, ok := mod.Location(FuncUnit, inc, 0)
	require.True(t, ok)
	require.Equal(t, "counter.sme", loc.Filename)
	require.Equal(t, 5, loc.Line)
	require.Equal(t, 3, loc.Column)

	stats := mod.Stats()
	require.Equal(t, len(mod.Funcs), stats.FunctionCount)
	require.Equal(t, 3, stats.BindingCount)
	require.Equal(t, 4, stats.StepCount)
	require.Greater(t, stats.CodeWords, stats.InstructionCount)
}

func TestConstantPooling(t *testing.T) {
	prog := &ir.Program{
		Component: "Pool",
		BuildID:   "x",
		Vars:      []*ir.Var{{Name: "a", Init: "a.init"}},
		Funcs: []*ir.Func{{Name: "a.init", Code: []ir.Instr{
			{Op: op.LoadConst, Args: []ir.Operand{ir.ConstOf(ir.Int(1))}},
			{Op: op.LoadConst, Args: []ir.Operand{ir.ConstOf(ir.String("1"))}},
			{Op: op.LoadConst, Args: []ir.Operand{ir.ConstOf(ir.Int(1))}},
			{Op: op.LoadConst, Args: []ir.Operand{ir.ConstOf(ir.String("a"))}},
			{Op: op.ReturnValue},
		}}},
		Fragments: []*ir.Fragment{{Code: []ir.Instr{{Op: op.Nop}}}},
	}
	mod, err := Emit(prog)
	require.NoError(t, err)
	// "a" is pooled first as the variable name and reused by the function.
	require.Equal(t, []ir.Constant{ir.String("a"), ir.String("a.init"), ir.Int(1), ir.String("1")}, mod.Constants)
	require.Equal(t, []op.Code{op.LoadConst, 2, op.LoadConst, 3, op.LoadConst, 2, op.LoadConst, 0, op.ReturnValue}, mod.Funcs[0].Code)
	require.Nil(t, mod.SourceMap)
}

func funcProgram(code ...ir.Instr) *ir.Program {
	return &ir.Program{
		Component: "Jumps",
		BuildID:   "x",
		Funcs:     []*ir.Func{{Name: "f", Code: code}},
		Fragments: []*ir.Fragment{{Code: []ir.Instr{{Op: op.Nop}}}},
	}
}

func TestJumpOffsets(t *testing.T) {
	mod, err := Emit(funcProgram(
		ir.Instr{Op: op.True},
		ir.Instr{Op: op.PopJumpForwardIfFalse, Args: []ir.Operand{ir.LabelRef(1)}},
		ir.Instr{Op: op.LoadConst, Args: []ir.Operand{ir.ConstOf(ir.Int(7))}},
		ir.Instr{Op: op.ReturnValue},
		ir.Instr{Label: 1},
		ir.Instr{Label: 2},
		ir.Instr{Op: op.Nop},
		ir.Instr{Op: op.JumpBackward, Args: []ir.Operand{ir.LabelRef(2)}},
	))
	require.NoError(t, err)
	code := mod.Funcs[0].Code
	// PopJumpForwardIfFalse at 1 targets 6; JumpBackward at 7 targets 6.
	require.Equal(t, op.Code(5), code[2])
	require.Equal(t, op.Code(1), code[8])

	instr, err := ReadInstruction(code, 7)
	require.NoError(t, err)
	require.Equal(t, 6, instr.JumpTarget())
}

func TestEmitErrors(t *testing.T) {
	tests := []struct {
		name  string
		instr ir.Instr
		code  errors.ErrorCode
	}{
		{"unresolved label", ir.Instr{Op: op.JumpForward, Args: []ir.Operand{ir.LabelRef(9)}}, errors.E4002},
		{"operand overflow", ir.Instr{Op: op.BuildList, Args: []ir.Operand{ir.Imm(70000)}}, errors.E4001},
		{"unknown variable", ir.Instr{Op: op.LoadVar, Args: []ir.Operand{ir.VarRef("nope")}}, errors.E4003},
		{"unknown function", ir.Instr{Op: op.CallFunc, Args: []ir.Operand{ir.FuncRef("nope"), ir.Imm(0)}}, errors.E4003},
		{"unknown binding", ir.Instr{Op: op.BindText, Args: []ir.Operand{ir.BindingRef(3)}}, errors.E4003},
		{"missing operand", ir.Instr{Op: op.LoadConst}, errors.E4003},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Emit(funcProgram(tt.instr))
			require.Error(t, err)
			var ce *errors.CodegenError
			require.True(t, errors.As(err, &ce))
			require.Equal(t, tt.code, ce.Code)
		})
	}
}

func TestGeneratedBuildID(t *testing.T) {
	prog := program(t, counterSource, 0)
	prog.BuildID = ""
	mod, err := Emit(prog, WithCompilerVersion("1.2.3"))
	require.NoError(t, err)
	_, err = uuid.FromString(mod.Meta.BuildID)
	require.NoError(t, err)
	require.Equal(t, "1.2.3", mod.Meta.CompilerVersion)
}

func TestStepKeys(t *testing.T) {
	a := Step{Kind: ir.Bind, Target: 1, Rank: 4}
	b := Step{Kind: ir.Bind, Target: 1, Rank: 9}
	c := Step{Kind: ir.Derive, Target: 1, Rank: 4}
	require.Equal(t, a.Key(), b.Key())
	require.NotEqual(t, a.Key(), c.Key())
}
