// Package ir defines the target independent instruction form produced by
// the compiler and consumed by the emitter.
//
// Variables and functions are referenced by name. Bindings and fragments are
// referenced by their index in the program. Jumps name labels; the emitter
// resolves them to relative offsets.
package ir

import (
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/sme/internal/token"
	"github.com/deepnoodle-ai/sme/op"
)

// VarKind is the mutability of a variable.
type VarKind uint8

const (
	Mutable VarKind = iota
	Derived
	ConstantVar
)

func (k VarKind) String() string {
	switch k {
	case Mutable:
		return "mutable"
	case Derived:
		return "derived"
	case ConstantVar:
		return "constant"
	}
	return "unknown"
}

// FuncKind tells what a function is used for.
type FuncKind uint8

const (
	// Expr functions are pure: binding values, conditions, iterables and
	// variable initializers.
	Expr FuncKind = iota
	// Handler functions run on event dispatch.
	Handler
	// Init is the function holding the top-level statements.
	Init
	// Thunk functions adapt an event attribute such as onclick={add(i)} to
	// a call of its handler.
	Thunk
)

func (k FuncKind) String() string {
	switch k {
	case Expr:
		return "expr"
	case Handler:
		return "handler"
	case Init:
		return "init"
	case Thunk:
		return "thunk"
	}
	return "unknown"
}

// BindingKind classifies a binding.
type BindingKind uint8

const (
	Text BindingKind = iota
	Attribute
	Event
	Structural
)

func (k BindingKind) String() string {
	switch k {
	case Text:
		return "text"
	case Attribute:
		return "attribute"
	case Event:
		return "event"
	case Structural:
		return "structural"
	}
	return "unknown"
}

// StepKind tells derive steps from bind steps.
type StepKind uint8

const (
	Derive StepKind = iota
	Bind
)

func (k StepKind) String() string {
	if k == Derive {
		return "derive"
	}
	return "bind"
}

// Var is a component variable.
type Var struct {
	Name string
	Kind VarKind
	Prop bool
	// Init names the function computing the initial or derived value. It is
	// empty for variables without an initializer.
	Init string
}

// Func is a unit of stack code.
type Func struct {
	Name string
	Kind FuncKind
	// NumParams counts the leading locals filled from call arguments.
	NumParams int
	NumLocals int
	Code      []Instr
}

// Branch is one arm of a conditional block. Cond is empty for an else arm.
type Branch struct {
	Cond     string
	Fragment int
}

// Binding is a markup location bound to code.
type Binding struct {
	Kind BindingKind
	// Name is the attribute, prop or event name.
	Name string
	// Func computes the value, the iterable of an each block, or handles the
	// event.
	Func     string
	Branches []Branch
	// Body is the fragment rendered per item by an each block, or -1.
	Body     int
	HasIndex bool
	// Static bindings are evaluated once at render time.
	Static bool
	// Rank is the position in the update order, or -1.
	Rank int
	Pos  token.Position
}

// IsEach reports whether the binding is an each block.
func (b *Binding) IsEach() bool { return b.Kind == Structural && b.Body >= 0 }

// Fragment is a sequence of render instructions.
type Fragment struct {
	Code []Instr
}

// Step is one update instruction: recompute a derived variable or run a
// binding. Steps are deduplicated by kind and target within a flush.
type Step struct {
	Kind StepKind
	// Var names the derived variable of a derive step.
	Var string
	// Binding is the binding index of a bind step.
	Binding int
	Rank    int
}

func (s Step) String() string {
	if s.Kind == Derive {
		return fmt.Sprintf("derive %s @%d", s.Var, s.Rank)
	}
	return fmt.Sprintf("bind %d @%d", s.Binding, s.Rank)
}

// Program is the IR of one component.
type Program struct {
	Component string
	Filename  string
	Style     string
	BuildID   string
	Vars      []*Var
	Funcs     []*Func
	Bindings  []*Binding
	// Fragments[0] is the initial render stream.
	Fragments []*Fragment
	// Updates maps a variable name to its update steps in rank order.
	Updates map[string][]Step
	// DeriveOrder lists the derived variables in evaluation order.
	DeriveOrder []string
	// Init names the init function, if any.
	Init string
}

// Func returns the function with the given name.
func (p *Program) Func(name string) (*Func, bool) {
	for _, fn := range p.Funcs {
		if fn.Name == name {
			return fn, true
		}
	}
	return nil, false
}

// Var returns the variable with the given name.
func (p *Program) Var(name string) (*Var, bool) {
	for _, v := range p.Vars {
		if v.Name == name {
			return v, true
		}
	}
	return nil, false
}

// String renders the program in a readable listing.
func (p *Program) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "component %s\n", p.Component)
	for _, v := range p.Vars {
		fmt.Fprintf(&b, "var %s %s", v.Kind, v.Name)
		if v.Prop {
			b.WriteString(" prop")
		}
		if v.Init != "" {
			fmt.Fprintf(&b, " = %s()", v.Init)
		}
		b.WriteString("\n")
	}
	for _, fn := range p.Funcs {
		fmt.Fprintf(&b, "func %s %s params=%d locals=%d\n", fn.Kind, fn.Name, fn.NumParams, fn.NumLocals)
		writeCode(&b, fn.Code)
	}
	for i, frag := range p.Fragments {
		fmt.Fprintf(&b, "fragment %d\n", i)
		writeCode(&b, frag.Code)
	}
	for i, bnd := range p.Bindings {
		fmt.Fprintf(&b, "binding %d %s name=%q func=%s rank=%d\n", i, bnd.Kind, bnd.Name, bnd.Func, bnd.Rank)
	}
	for _, v := range p.Vars {
		if steps := p.Updates[v.Name]; len(steps) > 0 {
			fmt.Fprintf(&b, "updates %s: %v\n", v.Name, steps)
		}
	}
	return b.String()
}

func writeCode(b *strings.Builder, code []Instr) {
	for _, instr := range code {
		b.WriteString("  ")
		b.WriteString(instr.String())
		b.WriteString("\n")
	}
}

// Instr is an instruction or, when Op is op.Invalid and Label is set, a
// label marker.
type Instr struct {
	Op    op.Code
	Args  []Operand
	Label int
	Pos   token.Position
}

// IsLabel reports whether the instruction marks a label.
func (i Instr) IsLabel() bool { return i.Op == op.Invalid && i.Label > 0 }

func (i Instr) String() string {
	if i.IsLabel() {
		return fmt.Sprintf("L%d:", i.Label)
	}
	parts := []string{op.GetInfo(i.Op).Name}
	for _, arg := range i.Args {
		parts = append(parts, arg.String())
	}
	return strings.Join(parts, " ")
}

// Operand is an instruction argument. The field used depends on Kind.
type Operand struct {
	Kind  op.OperandKind
	Int   int
	Name  string
	Const Constant
	Label int
}

func (o Operand) String() string {
	switch o.Kind {
	case op.Const:
		return o.Const.Inspect()
	case op.Var, op.Func:
		return o.Name
	case op.Offset:
		return fmt.Sprintf("L%d", o.Label)
	case op.Local:
		return fmt.Sprintf("$%d", o.Int)
	case op.Binding:
		return fmt.Sprintf("b%d", o.Int)
	case op.Fragment:
		return fmt.Sprintf("f%d", o.Int)
	}
	return fmt.Sprintf("%d", o.Int)
}

// Imm returns an immediate operand.
func Imm(n int) Operand { return Operand{Kind: op.Immediate, Int: n} }

// ConstOf returns a constant operand.
func ConstOf(c Constant) Operand { return Operand{Kind: op.Const, Const: c} }

// VarRef returns a variable operand.
func VarRef(name string) Operand { return Operand{Kind: op.Var, Name: name} }

// LocalRef returns a local slot operand.
func LocalRef(slot int) Operand { return Operand{Kind: op.Local, Int: slot} }

// FuncRef returns a function operand.
func FuncRef(name string) Operand { return Operand{Kind: op.Func, Name: name} }

// BindingRef returns a binding operand.
func BindingRef(index int) Operand { return Operand{Kind: op.Binding, Int: index} }

// FragmentRef returns a fragment operand.
func FragmentRef(index int) Operand { return Operand{Kind: op.Fragment, Int: index} }

// LabelRef returns a jump target operand.
func LabelRef(label int) Operand { return Operand{Kind: op.Offset, Label: label} }
