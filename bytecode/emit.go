package bytecode

import (
	"math"

	"github.com/gofrs/uuid"

	"github.com/deepnoodle-ai/sme/errors"
	"github.com/deepnoodle-ai/sme/ir"
	"github.com/deepnoodle-ai/sme/op"
)

// EmitOption configures the emitter.
type EmitOption func(*emitter)

// WithSourceMap embeds a source map in the module.
func WithSourceMap(enabled bool) EmitOption {
	return func(e *emitter) {
		e.sourceMap = enabled
	}
}

// WithCompilerVersion sets the compiler version recorded in the metadata.
func WithCompilerVersion(version string) EmitOption {
	return func(e *emitter) {
		e.version = version
	}
}

type emitter struct {
	prog      *ir.Program
	sourceMap bool
	version   string

	mod    *Module
	pool   map[string]int
	vars   map[string]int
	funcs  map[string]int
	smUnit []Unit
}

// Emit lowers an IR program into a module. Instructions are written in IR
// order; only labels are resolved.
func Emit(prog *ir.Program, opts ...EmitOption) (*Module, error) {
	e := &emitter{
		prog:    prog,
		version: DefaultCompilerVersion,
		pool:    map[string]int{},
		vars:    map[string]int{},
		funcs:   map[string]int{},
	}
	for _, opt := range opts {
		opt(e)
	}
	buildID := prog.BuildID
	if buildID == "" {
		id, err := uuid.NewV4()
		if err != nil {
			return nil, err
		}
		buildID = id.String()
	}
	e.mod = &Module{
		Meta: Meta{
			Component:       prog.Component,
			Filename:        prog.Filename,
			FormatVersion:   FormatVersion,
			CompilerVersion: e.version,
			BuildID:         buildID,
			NumVars:         len(prog.Vars),
			NumFuncs:        len(prog.Funcs),
			NumBindings:     len(prog.Bindings),
			NumFragments:    len(prog.Fragments),
			Style:           -1,
			Init:            -1,
		},
	}
	if prog.Style != "" {
		e.mod.Meta.Style = e.constant(ir.String(prog.Style))
	}
	for i, v := range prog.Vars {
		e.vars[v.Name] = i
	}
	for i, fn := range prog.Funcs {
		e.funcs[fn.Name] = i
	}
	if err := e.emitAll(); err != nil {
		return nil, err
	}
	if e.sourceMap {
		e.mod.SourceMap = &SourceMap{Filename: prog.Filename, Units: e.smUnit}
	}
	return e.mod, nil
}

func (e *emitter) emitAll() error {
	prog := e.prog
	for _, v := range prog.Vars {
		init, err := e.optionalFunc(v.Init)
		if err != nil {
			return err
		}
		e.mod.Vars = append(e.mod.Vars, Var{Name: e.constant(ir.String(v.Name)), Kind: v.Kind, Prop: v.Prop, Init: init})
	}
	for i, fn := range prog.Funcs {
		name := e.constant(ir.String(fn.Name))
		code, err := e.code(fn.Code, FuncUnit, i)
		if err != nil {
			return errors.CodegenErrorf(codeOf(err), "%s: %s", fn.Name, message(err))
		}
		e.mod.Funcs = append(e.mod.Funcs, Function{
			Name:      name,
			Kind:      fn.Kind,
			NumParams: fn.NumParams,
			NumLocals: fn.NumLocals,
			Code:      code,
		})
	}
	init, err := e.optionalFunc(prog.Init)
	if err != nil {
		return err
	}
	e.mod.Meta.Init = init
	for i, b := range prog.Bindings {
		bnd := Binding{Kind: b.Kind, Name: -1, Body: b.Body, HasIndex: b.HasIndex, Static: b.Static, Rank: b.Rank}
		if b.Name != "" {
			bnd.Name = e.constant(ir.String(b.Name))
		}
		if bnd.Func, err = e.optionalFunc(b.Func); err != nil {
			return err
		}
		for _, br := range b.Branches {
			cond, err := e.optionalFunc(br.Cond)
			if err != nil {
				return err
			}
			if err := e.checkIndex(br.Fragment, len(prog.Fragments), "fragment"); err != nil {
				return err
			}
			bnd.Branches = append(bnd.Branches, Branch{Cond: cond, Fragment: br.Fragment})
		}
		if b.Body >= 0 {
			if err := e.checkIndex(b.Body, len(prog.Fragments), "fragment"); err != nil {
				return err
			}
		}
		if b.Kind == ir.Structural && b.Body < 0 && len(b.Branches) == 0 {
			return errors.CodegenErrorf(errors.E4003, "binding %d has neither branches nor a body", i)
		}
		e.mod.Bindings = append(e.mod.Bindings, bnd)
	}
	for i, frag := range prog.Fragments {
		code, err := e.code(frag.Code, FragmentUnit, i)
		if err != nil {
			return errors.CodegenErrorf(codeOf(err), "fragment %d: %s", i, message(err))
		}
		e.mod.Fragments = append(e.mod.Fragments, Fragment{Code: code})
	}
	e.mod.Updates = make([][]Step, len(prog.Vars))
	for i, v := range prog.Vars {
		for _, s := range prog.Updates[v.Name] {
			step := Step{Kind: s.Kind, Rank: s.Rank}
			if s.Kind == ir.Derive {
				id, ok := e.vars[s.Var]
				if !ok {
					return errors.CodegenErrorf(errors.E4003, "update of %s derives unknown variable %q", v.Name, s.Var)
				}
				step.Target = id
			} else {
				if err := e.checkIndex(s.Binding, len(prog.Bindings), "binding"); err != nil {
					return err
				}
				step.Target = s.Binding
			}
			e.mod.Updates[i] = append(e.mod.Updates[i], step)
		}
	}
	for _, name := range prog.DeriveOrder {
		id, ok := e.vars[name]
		if !ok {
			return errors.CodegenErrorf(errors.E4003, "derive order names unknown variable %q", name)
		}
		e.mod.DeriveOrder = append(e.mod.DeriveOrder, id)
	}
	return nil
}

// constant returns the pool index of c, adding it on first use.
func (e *emitter) constant(c ir.Constant) int {
	key := c.Key()
	if idx, ok := e.pool[key]; ok {
		return idx
	}
	idx := len(e.mod.Constants)
	e.mod.Constants = append(e.mod.Constants, c)
	e.pool[key] = idx
	return idx
}

func (e *emitter) optionalFunc(name string) (int, error) {
	if name == "" {
		return -1, nil
	}
	idx, ok := e.funcs[name]
	if !ok {
		return -1, errors.CodegenErrorf(errors.E4003, "reference to unknown function %q", name)
	}
	return idx, nil
}

func (e *emitter) checkIndex(i, n int, what string) error {
	if i < 0 || i >= n {
		return errors.CodegenErrorf(errors.E4003, "reference to unknown %s %d", what, i)
	}
	return nil
}

// code assembles an instruction list. The first pass places labels, the
// second writes words.
func (e *emitter) code(instrs []ir.Instr, kind UnitKind, index int) ([]op.Code, error) {
	labels := map[int]int{}
	offset := 0
	for _, instr := range instrs {
		if instr.IsLabel() {
			labels[instr.Label] = offset
			continue
		}
		offset += 1 + len(instr.Args)
	}
	code := make([]op.Code, 0, offset)
	unit := Unit{Kind: kind, Index: index}
	for _, instr := range instrs {
		if instr.IsLabel() {
			continue
		}
		info := op.GetInfo(instr.Op)
		if info.Name == "" {
			return nil, errors.CodegenErrorf(errors.E4003, "unknown opcode %d", instr.Op)
		}
		if len(instr.Args) != info.OperandCount {
			return nil, errors.CodegenErrorf(errors.E4003, "%s takes %d operands (%d given)", info.Name, info.OperandCount, len(instr.Args))
		}
		pos := len(code)
		if e.sourceMap {
			loc := SourceLocation{Line: instr.Pos.LineNumber(), Column: instr.Pos.ColumnNumber()}
			if n := len(unit.Entries); n == 0 || unit.Entries[n-1].Loc != loc {
				unit.Entries = append(unit.Entries, MapEntry{Offset: pos, Loc: loc})
			}
		}
		code = append(code, instr.Op)
		for _, arg := range instr.Args {
			value, err := e.operand(arg, pos, labels, instr.Op)
			if err != nil {
				return nil, err
			}
			if value < 0 || value > math.MaxUint16 {
				return nil, errors.CodegenErrorf(errors.E4001, "%s operand %d does not fit in 16 bits", info.Name, value)
			}
			code = append(code, op.Code(value))
		}
	}
	if e.sourceMap {
		e.smUnit = append(e.smUnit, unit)
	}
	return code, nil
}

func (e *emitter) operand(arg ir.Operand, pos int, labels map[int]int, code op.Code) (int, error) {
	switch arg.Kind {
	case op.Const:
		return e.constant(arg.Const), nil
	case op.Var:
		id, ok := e.vars[arg.Name]
		if !ok {
			return 0, errors.CodegenErrorf(errors.E4003, "reference to unknown variable %q", arg.Name)
		}
		return id, nil
	case op.Func:
		return e.optionalFunc(arg.Name)
	case op.Binding:
		return arg.Int, e.checkIndex(arg.Int, len(e.prog.Bindings), "binding")
	case op.Fragment:
		return arg.Int, e.checkIndex(arg.Int, len(e.prog.Fragments), "fragment")
	case op.Offset:
		target, ok := labels[arg.Label]
		if !ok {
			return 0, errors.CodegenErrorf(errors.E4002, "unresolved label L%d", arg.Label)
		}
		if code == op.JumpBackward {
			return pos - target, nil
		}
		return target - pos, nil
	}
	return arg.Int, nil
}

func codeOf(err error) errors.ErrorCode {
	if d, ok := err.(errors.Diagnostic); ok {
		return d.ErrorCode()
	}
	return errors.E4003
}

func message(err error) string {
	if ce, ok := err.(*errors.CodegenError); ok {
		return ce.Message
	}
	return err.Error()
}
