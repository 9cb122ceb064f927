// Package dis supports analysis of compiled modules by disassembling them.
// It decodes the instruction streams of functions and fragments using the
// opcode table of the op package.
package dis

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/deepnoodle-ai/sme/bytecode"
	"github.com/deepnoodle-ai/sme/internal/table"
	"github.com/deepnoodle-ai/sme/ir"
	"github.com/deepnoodle-ai/sme/op"
)

// Instruction represents a single instruction and its operands.
type Instruction struct {
	Offset     int       `json:"offset"`
	Name       string    `json:"name"`
	Opcode     op.Code   `json:"opcode"`
	Operands   []op.Code `json:"operands,omitempty"`
	Annotation string    `json:"annotation,omitempty"`
	Constant   any       `json:"constant,omitempty"`
}

// Disassemble returns a parsed representation of code, annotated using the
// tables of mod.
func Disassemble(mod *bytecode.Module, code []op.Code) ([]Instruction, error) {
	var instructions []Instruction
	for ip := 0; ip < len(code); {
		instr, err := bytecode.ReadInstruction(code, ip)
		if err != nil {
			return nil, err
		}
		info := op.GetInfo(instr.Op)
		out := Instruction{Offset: ip, Name: info.Name, Opcode: instr.Op}
		for _, v := range instr.Operands {
			out.Operands = append(out.Operands, op.Code(v))
		}
		if len(instr.Operands) > 0 {
			out.Annotation, out.Constant, err = annotate(mod, instr)
			if err != nil {
				return nil, err
			}
		}
		instructions = append(instructions, out)
		ip = instr.Next()
	}
	return instructions, nil
}

func annotate(mod *bytecode.Module, instr bytecode.Instruction) (string, any, error) {
	arg := instr.Operands[0]
	switch instr.Op {
	case op.LoadVar, op.StoreVar:
		if arg >= len(mod.Vars) {
			return "", nil, fmt.Errorf("variable index out of range: %d", arg)
		}
		return mod.VarName(arg), nil, nil
	case op.LoadLocal, op.StoreLocal:
		return fmt.Sprintf("$%d", arg), nil, nil
	case op.LoadConst, op.StaticText, op.StaticTree, op.OpenElement, op.OpenComponent, op.CallBuiltin:
		c, err := constant(mod, arg)
		if err != nil {
			return "", nil, err
		}
		switch instr.Op {
		case op.LoadConst:
			return c.Inspect(), c.Object().Interface(), nil
		case op.StaticTree:
			return c.Inspect(), nil, nil
		}
		return c.Str, nil, nil
	case op.StaticAttr, op.StaticProp:
		name, err := constant(mod, arg)
		if err != nil {
			return "", nil, err
		}
		value, err := constant(mod, instr.Operands[1])
		if err != nil {
			return "", nil, err
		}
		return name.Str + "=" + value.Inspect(), nil, nil
	case op.CallFunc:
		if arg >= len(mod.Funcs) {
			return "", nil, fmt.Errorf("function index out of range: %d", arg)
		}
		return mod.FuncName(arg), nil, nil
	case op.BinaryOp:
		return op.BinaryOpType(arg).String(), nil, nil
	case op.CompareOp:
		return op.CompareOpType(arg).String(), nil, nil
	case op.BindText, op.BindAttr, op.BindEvent, op.BindBlock, op.BindProp:
		if arg >= len(mod.Bindings) {
			return "", nil, fmt.Errorf("binding index out of range: %d", arg)
		}
		return describeBinding(mod, arg), nil, nil
	case op.SlotContent:
		return fmt.Sprintf("fragment %d", arg), nil, nil
	}
	if op.IsJump(instr.Op) {
		return fmt.Sprintf("to %d", instr.JumpTarget()), nil, nil
	}
	return "", nil, nil
}

func constant(mod *bytecode.Module, index int) (ir.Constant, error) {
	if index >= len(mod.Constants) {
		return ir.Constant{}, fmt.Errorf("constant index out of range: %d", index)
	}
	return mod.Constants[index], nil
}

func describeBinding(mod *bytecode.Module, index int) string {
	b := mod.Bindings[index]
	desc := fmt.Sprintf("#%d %s", index, b.Kind)
	if name := mod.Name(b.Name); name != "" {
		desc += " " + name
	}
	if fn := mod.FuncName(b.Func); fn != "" {
		desc += " <- " + fn
	}
	return desc
}

// Print a string representation of the given instructions to the given writer.
func Print(instructions []Instruction, writer io.Writer) {
	bold := color.New(color.Bold).SprintFunc()
	var lines [][]string
	for _, instr := range instructions {
		values := []string{
			fmt.Sprintf("%d", instr.Offset),
			bold(instr.Name),
			formatOperands(instr.Operands),
		}
		switch c := instr.Constant.(type) {
		case nil:
			values = append(values, color.CyanString("%s", instr.Annotation))
		case int64, float64, bool:
			values = append(values, color.YellowString("%s", instr.Annotation))
		case string:
			s := instr.Annotation
			if instr.Opcode == op.LoadConst && len(c) > 80 {
				s = fmt.Sprintf("%q", c[:77]+"...")
			}
			values = append(values, color.GreenString("%s", s))
		default:
			values = append(values, bold(instr.Annotation))
		}
		lines = append(lines, values)
	}

	table.NewTable(writer).
		WithHeader([]string{"OFFSET", "OPCODE", "OPERANDS", "INFO"}).
		WithColumnAlignment([]table.Alignment{
			table.AlignRight,
			table.AlignLeft,
			table.AlignRight,
			table.AlignLeft,
		}).
		WithHeaderAlignment([]table.Alignment{
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
			table.AlignCenter,
		}).
		WithRows(lines).
		Render()
}

func formatOperands(ops []op.Code) string {
	var sb strings.Builder
	for i, op := range ops {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(fmt.Sprintf("%d", op))
	}
	return sb.String()
}

// PrintModule writes a full listing of mod: metadata, functions, fragments,
// bindings and the update table.
func PrintModule(mod *bytecode.Module, w io.Writer) error {
	header := color.New(color.Bold, color.FgMagenta).SprintfFunc()
	meta := mod.Meta
	fmt.Fprintln(w, header("component %s", meta.Component))
	fmt.Fprintf(w, "format %d, compiler %s, build %s\n", meta.FormatVersion, meta.CompilerVersion, meta.BuildID)
	for id, v := range mod.Vars {
		line := fmt.Sprintf("var %d %s %s", id, v.Kind, mod.Name(v.Name))
		if v.Prop {
			line += " prop"
		}
		if v.Init >= 0 {
			line += " = " + mod.FuncName(v.Init) + "()"
		}
		fmt.Fprintln(w, line)
	}
	for i, fn := range mod.Funcs {
		fmt.Fprintln(w)
		fmt.Fprintln(w, header("func %d %s %s (params=%d locals=%d)", i, fn.Kind, mod.Name(fn.Name), fn.NumParams, fn.NumLocals))
		instructions, err := Disassemble(mod, fn.Code)
		if err != nil {
			return err
		}
		Print(instructions, w)
	}
	for i, frag := range mod.Fragments {
		fmt.Fprintln(w)
		fmt.Fprintln(w, header("fragment %d", i))
		instructions, err := Disassemble(mod, frag.Code)
		if err != nil {
			return err
		}
		Print(instructions, w)
	}
	if len(mod.Bindings) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, header("bindings"))
		var rows [][]string
		for i, b := range mod.Bindings {
			rows = append(rows, []string{fmt.Sprintf("%d", i), b.Kind.String(), mod.Name(b.Name), bindingFuncs(mod, b), fmt.Sprintf("%d", b.Rank)})
		}
		table.NewTable(w).WithHeader([]string{"ID", "KIND", "NAME", "CODE", "RANK"}).WithRows(rows).Render()
	}
	var rows [][]string
	for id, steps := range mod.Updates {
		if len(steps) == 0 {
			continue
		}
		var parts []string
		for _, s := range steps {
			if s.Kind == ir.Derive {
				parts = append(parts, "derive "+mod.VarName(s.Target))
			} else {
				parts = append(parts, fmt.Sprintf("bind #%d", s.Target))
			}
		}
		rows = append(rows, []string{mod.VarName(id), strings.Join(parts, ", ")})
	}
	if len(rows) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, header("updates"))
		table.NewTable(w).WithHeader([]string{"VARIABLE", "STEPS"}).WithRows(rows).Render()
	}
	return nil
}

func bindingFuncs(mod *bytecode.Module, b bytecode.Binding) string {
	if b.IsIf() {
		var parts []string
		for _, br := range b.Branches {
			cond := "else"
			if br.Cond >= 0 {
				cond = mod.FuncName(br.Cond)
			}
			parts = append(parts, fmt.Sprintf("%s -> f%d", cond, br.Fragment))
		}
		return strings.Join(parts, "; ")
	}
	s := mod.FuncName(b.Func)
	if b.IsEach() {
		s += fmt.Sprintf(" -> f%d", b.Body)
	}
	return s
}
