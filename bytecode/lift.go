package bytecode

import (
	"sort"

	"github.com/deepnoodle-ai/sme/errors"
	"github.com/deepnoodle-ai/sme/internal/token"
	"github.com/deepnoodle-ai/sme/ir"
	"github.com/deepnoodle-ai/sme/op"
)

// Lift reconstructs the IR program a module was emitted from. Jump offsets
// become labels and, when the module has a source map, instruction
// positions are restored from it.
func Lift(m *Module) (*ir.Program, error) {
	l := &lifter{m: m}
	prog := &ir.Program{
		Component: m.Meta.Component,
		Filename:  m.Meta.Filename,
		Style:     m.Style(),
		BuildID:   m.Meta.BuildID,
		Updates:   map[string][]ir.Step{},
	}
	for _, v := range m.Vars {
		prog.Vars = append(prog.Vars, &ir.Var{
			Name: m.Name(v.Name),
			Kind: v.Kind,
			Prop: v.Prop,
			Init: m.FuncName(v.Init),
		})
	}
	for i, fn := range m.Funcs {
		code, err := l.code(fn.Code, FuncUnit, i)
		if err != nil {
			return nil, err
		}
		prog.Funcs = append(prog.Funcs, &ir.Func{
			Name:      m.Name(fn.Name),
			Kind:      fn.Kind,
			NumParams: fn.NumParams,
			NumLocals: fn.NumLocals,
			Code:      code,
		})
	}
	prog.Init = m.FuncName(m.Meta.Init)
	for _, b := range m.Bindings {
		bnd := &ir.Binding{
			Kind:     b.Kind,
			Name:     m.Name(b.Name),
			Func:     m.FuncName(b.Func),
			Body:     b.Body,
			HasIndex: b.HasIndex,
			Static:   b.Static,
			Rank:     b.Rank,
		}
		for _, br := range b.Branches {
			bnd.Branches = append(bnd.Branches, ir.Branch{Cond: m.FuncName(br.Cond), Fragment: br.Fragment})
		}
		prog.Bindings = append(prog.Bindings, bnd)
	}
	for i, frag := range m.Fragments {
		code, err := l.code(frag.Code, FragmentUnit, i)
		if err != nil {
			return nil, err
		}
		prog.Fragments = append(prog.Fragments, &ir.Fragment{Code: code})
	}
	for id, steps := range m.Updates {
		name := m.VarName(id)
		for _, s := range steps {
			step := ir.Step{Kind: s.Kind, Rank: s.Rank}
			if s.Kind == ir.Derive {
				step.Var = m.VarName(s.Target)
			} else {
				step.Binding = s.Target
			}
			prog.Updates[name] = append(prog.Updates[name], step)
		}
	}
	for _, id := range m.DeriveOrder {
		prog.DeriveOrder = append(prog.DeriveOrder, m.VarName(id))
	}
	return prog, nil
}

type lifter struct {
	m *Module
}

func (l *lifter) code(code []op.Code, kind UnitKind, index int) ([]ir.Instr, error) {
	var decoded []Instruction
	targets := map[int]bool{}
	for ip := 0; ip < len(code); {
		instr, err := ReadInstruction(code, ip)
		if err != nil {
			return nil, err
		}
		if op.IsJump(instr.Op) {
			target := instr.JumpTarget()
			if target < 0 || target > len(code) {
				return nil, errors.CodegenErrorf(errors.E4002, "jump at offset %d leaves the code (target %d)", ip, target)
			}
			targets[target] = true
		}
		decoded = append(decoded, instr)
		ip = instr.Next()
	}

	// Labels are numbered by target offset.
	offsets := make([]int, 0, len(targets))
	for t := range targets {
		offsets = append(offsets, t)
	}
	sort.Ints(offsets)
	labels := make(map[int]int, len(offsets))
	for i, t := range offsets {
		labels[t] = i + 1
	}

	var entries []MapEntry
	if l.m.SourceMap != nil {
		for _, u := range l.m.SourceMap.Units {
			if u.Kind == kind && u.Index == index {
				entries = u.Entries
			}
		}
	}
	var out []ir.Instr
	var pos token.Position
	next := 0
	for _, instr := range decoded {
		if label, ok := labels[instr.Offset]; ok {
			out = append(out, ir.Instr{Label: label})
		}
		for next < len(entries) && entries[next].Offset <= instr.Offset {
			loc := entries[next].Loc
			pos = token.Position{Line: loc.Line - 1, Column: loc.Column - 1, File: l.m.Meta.Filename}
			next++
		}
		lifted := ir.Instr{Op: instr.Op, Pos: pos}
		info := op.GetInfo(instr.Op)
		for j, value := range instr.Operands {
			arg, err := l.operand(info.Operands[j], value, instr, labels)
			if err != nil {
				return nil, err
			}
			lifted.Args = append(lifted.Args, arg)
		}
		out = append(out, lifted)
	}
	if label, ok := labels[len(code)]; ok {
		out = append(out, ir.Instr{Label: label})
	}
	return out, nil
}

func (l *lifter) operand(kind op.OperandKind, value int, instr Instruction, labels map[int]int) (ir.Operand, error) {
	m := l.m
	switch kind {
	case op.Const:
		if value >= len(m.Constants) {
			return ir.Operand{}, errors.CodegenErrorf(errors.E4003, "constant %d out of range", value)
		}
		return ir.ConstOf(m.Constants[value]), nil
	case op.Var:
		if value >= len(m.Vars) {
			return ir.Operand{}, errors.CodegenErrorf(errors.E4003, "variable %d out of range", value)
		}
		return ir.VarRef(m.VarName(value)), nil
	case op.Func:
		if value >= len(m.Funcs) {
			return ir.Operand{}, errors.CodegenErrorf(errors.E4003, "function %d out of range", value)
		}
		return ir.FuncRef(m.FuncName(value)), nil
	case op.Local:
		return ir.LocalRef(value), nil
	case op.Binding:
		return ir.BindingRef(value), nil
	case op.Fragment:
		return ir.FragmentRef(value), nil
	case op.Offset:
		return ir.LabelRef(labels[instr.JumpTarget()]), nil
	}
	return ir.Imm(value), nil
}
