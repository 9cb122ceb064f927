package bytecode

import (
	"sync"

	"github.com/deepnoodle-ai/sme/errors"
	"github.com/deepnoodle-ai/sme/ir"
	"github.com/deepnoodle-ai/sme/object"
	"github.com/deepnoodle-ai/sme/op"
)

// Magic starts every encoded module.
const Magic = "SMEM"

// FormatVersion is the version of the binary layout written by Marshal.
const FormatVersion = 1

// DefaultCompilerVersion is recorded when the emitter is not told otherwise.
const DefaultCompilerVersion = "dev"

// Meta holds module metadata.
type Meta struct {
	Component       string `msgpack:"component"`
	Filename        string `msgpack:"filename,omitempty"`
	FormatVersion   int    `msgpack:"format_version"`
	CompilerVersion string `msgpack:"compiler_version"`
	BuildID         string `msgpack:"build_id"`
	NumVars         int    `msgpack:"num_vars"`
	NumFuncs        int    `msgpack:"num_funcs"`
	NumBindings     int    `msgpack:"num_bindings"`
	NumFragments    int    `msgpack:"num_fragments"`
	// Style is the constant index of the style payload, or -1.
	Style int `msgpack:"style"`
	// Init is the index of the init function, or -1.
	Init int `msgpack:"init"`
}

// Var is an entry of the variable table. The variable id is its index.
type Var struct {
	Name int        `msgpack:"name"` // constant index
	Kind ir.VarKind `msgpack:"kind"`
	Prop bool       `msgpack:"prop,omitempty"`
	Init int        `msgpack:"init"` // function index, or -1
}

// Function is an entry of the function table.
type Function struct {
	Name      int         `msgpack:"name"` // constant index
	Kind      ir.FuncKind `msgpack:"kind"`
	NumParams int         `msgpack:"num_params"`
	NumLocals int         `msgpack:"num_locals"`
	Code      []op.Code   `msgpack:"code"`
}

// Branch is one arm of a conditional block.
type Branch struct {
	Cond     int `msgpack:"cond"` // function index, or -1 for else
	Fragment int `msgpack:"fragment"`
}

// Binding is an entry of the binding table.
type Binding struct {
	Kind     ir.BindingKind `msgpack:"kind"`
	Name     int            `msgpack:"name"` // constant index, or -1
	Func     int            `msgpack:"func"` // function index, or -1
	Branches []Branch       `msgpack:"branches,omitempty"`
	Body     int            `msgpack:"body"`
	HasIndex bool           `msgpack:"has_index,omitempty"`
	Static   bool           `msgpack:"static,omitempty"`
	Rank     int            `msgpack:"rank"`
}

// IsEach reports whether the binding is an each block.
func (b *Binding) IsEach() bool { return b.Kind == ir.Structural && b.Body >= 0 }

// IsIf reports whether the binding is a conditional block.
func (b *Binding) IsIf() bool { return b.Kind == ir.Structural && b.Body < 0 }

// Fragment is a render instruction stream.
type Fragment struct {
	Code []op.Code `msgpack:"code"`
}

// Step is an update instruction. Target is a variable id for derive steps
// and a binding id for bind steps.
type Step struct {
	Kind   ir.StepKind `msgpack:"kind"`
	Target int         `msgpack:"target"`
	Rank   int         `msgpack:"rank"`
}

// Key identifies the step for deduplication within a flush.
func (s Step) Key() StepKey { return StepKey{Kind: s.Kind, Target: s.Target} }

// StepKey is the deduplication key of a step.
type StepKey struct {
	Kind   ir.StepKind
	Target int
}

// Module is a compiled component. It must not be modified once built.
type Module struct {
	Meta      Meta
	Constants []ir.Constant
	Vars      []Var
	Funcs     []Function
	Bindings  []Binding
	Fragments []Fragment
	// Updates is indexed by variable id.
	Updates [][]Step
	// DeriveOrder lists derived variable ids in evaluation order.
	DeriveOrder []int
	SourceMap   *SourceMap

	once    sync.Once
	objects []object.Object
}

// Object returns constant i as a runtime value. Values are created once and
// shared.
func (m *Module) Object(i int) object.Object {
	m.once.Do(func() {
		m.objects = make([]object.Object, len(m.Constants))
		for j, c := range m.Constants {
			m.objects[j] = c.Object()
		}
	})
	return m.objects[i]
}

// Name returns the string constant at index i, or "" when i is out of range.
func (m *Module) Name(i int) string {
	if i < 0 || i >= len(m.Constants) {
		return ""
	}
	return m.Constants[i].Str
}

// Style returns the style payload.
func (m *Module) Style() string {
	return m.Name(m.Meta.Style)
}

// VarID returns the id of the named variable.
func (m *Module) VarID(name string) (int, bool) {
	for i, v := range m.Vars {
		if m.Name(v.Name) == name {
			return i, true
		}
	}
	return -1, false
}

// VarName returns the name of variable id.
func (m *Module) VarName(id int) string {
	if id < 0 || id >= len(m.Vars) {
		return ""
	}
	return m.Name(m.Vars[id].Name)
}

// FuncIndex returns the index of the named function.
func (m *Module) FuncIndex(name string) (int, bool) {
	for i, fn := range m.Funcs {
		if m.Name(fn.Name) == name {
			return i, true
		}
	}
	return -1, false
}

// FuncName returns the name of function i.
func (m *Module) FuncName(i int) string {
	if i < 0 || i >= len(m.Funcs) {
		return ""
	}
	return m.Name(m.Funcs[i].Name)
}

// Location returns the source location of the instruction at offset in the
// given unit.
func (m *Module) Location(kind UnitKind, index, offset int) (errors.SourceLocation, bool) {
	loc, ok := m.SourceMap.Lookup(kind, index, offset)
	if !ok {
		return errors.SourceLocation{}, false
	}
	return errors.SourceLocation{Filename: m.Meta.Filename, Line: loc.Line, Column: loc.Column}, true
}

// Stats returns statistics about the module.
func (m *Module) Stats() Stats {
	s := Stats{
		ConstantCount: len(m.Constants),
		VarCount:      len(m.Vars),
		FunctionCount: len(m.Funcs),
		BindingCount:  len(m.Bindings),
		FragmentCount: len(m.Fragments),
	}
	count := func(code []op.Code) {
		s.CodeWords += len(code)
		for ip := 0; ip < len(code); {
			instr, err := ReadInstruction(code, ip)
			if err != nil {
				return
			}
			s.InstructionCount++
			ip = instr.Next()
		}
	}
	for _, fn := range m.Funcs {
		count(fn.Code)
	}
	for _, frag := range m.Fragments {
		count(frag.Code)
	}
	for _, steps := range m.Updates {
		s.StepCount += len(steps)
	}
	return s
}

// Instruction is a decoded instruction.
type Instruction struct {
	Offset   int
	Op       op.Code
	Operands []int
}

// Next returns the offset of the following instruction.
func (i Instruction) Next() int { return i.Offset + 1 + len(i.Operands) }

// ReadInstruction decodes the instruction at ip.
func ReadInstruction(code []op.Code, ip int) (Instruction, error) {
	if ip < 0 || ip >= len(code) {
		return Instruction{}, errors.CodegenErrorf(errors.E4004, "instruction offset %d out of range", ip)
	}
	info := op.GetInfo(code[ip])
	if info.Name == "" {
		return Instruction{}, errors.CodegenErrorf(errors.E4004, "unknown opcode %d at offset %d", code[ip], ip)
	}
	if ip+info.OperandCount >= len(code) && info.OperandCount > 0 {
		return Instruction{}, errors.CodegenErrorf(errors.E4004, "truncated %s at offset %d", info.Name, ip)
	}
	instr := Instruction{Offset: ip, Op: code[ip], Operands: make([]int, info.OperandCount)}
	for j := range instr.Operands {
		instr.Operands[j] = int(code[ip+1+j])
	}
	return instr, nil
}

// JumpTarget returns the absolute target of a jump instruction.
func (i Instruction) JumpTarget() int {
	if i.Op == op.JumpBackward {
		return i.Offset - i.Operands[0]
	}
	return i.Offset + i.Operands[0]
}
