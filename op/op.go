// Package op defines the opcodes shared by the compiler, the emitter, the
// virtual machine and the render loop.
//
// Expression opcodes run on the operand stack of the virtual machine. Render
// opcodes appear only in fragments and drive the host binding surface.
package op

// Code is an integer opcode that indicates an operation to execute.
type Code uint16

const (
	Invalid Code = 0

	// Execution
	Nop         Code = 1
	ReturnValue Code = 4

	// Jump
	JumpBackward           Code = 10
	JumpForward            Code = 11
	PopJumpForwardIfFalse  Code = 12
	PopJumpForwardIfTrue   Code = 13
	PopJumpForwardIfNotNil Code = 14

	// Load
	LoadVar   Code = 21
	LoadLocal Code = 22
	LoadConst Code = 24

	// Store
	StoreVar   Code = 31
	StoreLocal Code = 32

	// Operations
	BinaryOp      Code = 40
	CompareOp     Code = 41
	UnaryNegative Code = 42
	UnaryNot      Code = 43

	// Build
	BuildList Code = 50

	// Containers
	BinarySubscr Code = 60

	// Stack
	Copy   Code = 71
	PopTop Code = 72

	// Push constants
	Nil   Code = 80
	False Code = 81
	True  Code = 82

	// Iteration
	ForIter Code = 90
	GetIter Code = 91

	// Calls
	CallBuiltin Code = 100
	CallFunc    Code = 101

	// Render
	OpenElement    Code = 150
	CloseElement   Code = 151
	StaticAttr     Code = 152
	StaticText     Code = 153
	BindText       Code = 154
	BindAttr       Code = 155
	BindEvent      Code = 156
	BindBlock      Code = 157
	OpenComponent  Code = 158
	BindProp       Code = 159
	StaticProp     Code = 160
	SlotContent    Code = 161
	CloseComponent Code = 162
	Slot           Code = 163
	StaticTree     Code = 164
)

// BinaryOpType describes a type of binary operation, as in an operation that
// takes two operands. For example, addition, subtraction, multiplication, etc.
type BinaryOpType uint16

const (
	Add      BinaryOpType = 1
	Subtract BinaryOpType = 2
	Multiply BinaryOpType = 3
	Divide   BinaryOpType = 4
	Modulo   BinaryOpType = 5
	Power    BinaryOpType = 9
)

// String returns a string representation of the binary operation.
// For example "+" for addition.
func (bop BinaryOpType) String() string {
	switch bop {
	case Add:
		return "+"
	case Subtract:
		return "-"
	case Multiply:
		return "*"
	case Divide:
		return "/"
	case Modulo:
		return "%"
	case Power:
		return "**"
	default:
		return ""
	}
}

// CompareOpType describes a type of comparison operation. For example, less
// than, greater than, equal, etc.
type CompareOpType uint16

const (
	LessThan           CompareOpType = 1
	LessThanOrEqual    CompareOpType = 2
	Equal              CompareOpType = 3
	NotEqual           CompareOpType = 4
	GreaterThan        CompareOpType = 5
	GreaterThanOrEqual CompareOpType = 6
)

// String returns a string representation of the comparison operation.
// For example "<" for less than.
func (cop CompareOpType) String() string {
	switch cop {
	case LessThan:
		return "<"
	case LessThanOrEqual:
		return "<="
	case Equal:
		return "=="
	case NotEqual:
		return "!="
	case GreaterThan:
		return ">"
	case GreaterThanOrEqual:
		return ">="
	default:
		return ""
	}
}

// BinaryOps maps source operators to binary operation types.
var BinaryOps = map[string]BinaryOpType{
	"+":  Add,
	"-":  Subtract,
	"*":  Multiply,
	"/":  Divide,
	"%":  Modulo,
	"**": Power,
}

// CompareOps maps source operators to comparison types.
var CompareOps = map[string]CompareOpType{
	"<":  LessThan,
	"<=": LessThanOrEqual,
	"==": Equal,
	"!=": NotEqual,
	">":  GreaterThan,
	">=": GreaterThanOrEqual,
}

// OperandKind describes what an operand refers to. The emitter and the
// disassembler use it to resolve and print operands.
type OperandKind uint8

const (
	Immediate OperandKind = iota
	Const
	Var
	Local
	Func
	Binding
	Fragment
	Offset
)

// Info contains information about an opcode.
type Info struct {
	Code         Code
	Name         string
	OperandCount int
	Operands     []OperandKind
	Render       bool
}

var infos = make([]Info, 256)

func init() {
	type opInfo struct {
		op       Code
		name     string
		operands []OperandKind
	}
	ops := []opInfo{
		{BinaryOp, "BINARY_OP", []OperandKind{Immediate}},
		{BinarySubscr, "BINARY_SUBSCR", nil},
		{BuildList, "BUILD_LIST", []OperandKind{Immediate}},
		{CallBuiltin, "CALL_BUILTIN", []OperandKind{Const, Immediate}},
		{CallFunc, "CALL_FUNC", []OperandKind{Func, Immediate}},
		{CompareOp, "COMPARE_OP", []OperandKind{Immediate}},
		{Copy, "COPY", []OperandKind{Immediate}},
		{False, "FALSE", nil},
		{ForIter, "FOR_ITER", []OperandKind{Offset}},
		{GetIter, "GET_ITER", nil},
		{JumpBackward, "JUMP_BACKWARD", []OperandKind{Offset}},
		{JumpForward, "JUMP_FORWARD", []OperandKind{Offset}},
		{LoadConst, "LOAD_CONST", []OperandKind{Const}},
		{LoadLocal, "LOAD_LOCAL", []OperandKind{Local}},
		{LoadVar, "LOAD_VAR", []OperandKind{Var}},
		{Nil, "NIL", nil},
		{Nop, "NOP", nil},
		{PopJumpForwardIfFalse, "POP_JUMP_FORWARD_IF_FALSE", []OperandKind{Offset}},
		{PopJumpForwardIfNotNil, "POP_JUMP_FORWARD_IF_NOT_NIL", []OperandKind{Offset}},
		{PopJumpForwardIfTrue, "POP_JUMP_FORWARD_IF_TRUE", []OperandKind{Offset}},
		{PopTop, "POP_TOP", nil},
		{ReturnValue, "RETURN_VALUE", nil},
		{StoreLocal, "STORE_LOCAL", []OperandKind{Local}},
		{StoreVar, "STORE_VAR", []OperandKind{Var}},
		{True, "TRUE", nil},
		{UnaryNegative, "UNARY_NEGATIVE", nil},
		{UnaryNot, "UNARY_NOT", nil},
	}
	render := []opInfo{
		{BindAttr, "BIND_ATTR", []OperandKind{Binding}},
		{BindBlock, "BIND_BLOCK", []OperandKind{Binding}},
		{BindEvent, "BIND_EVENT", []OperandKind{Binding}},
		{BindProp, "BIND_PROP", []OperandKind{Binding}},
		{BindText, "BIND_TEXT", []OperandKind{Binding}},
		{CloseComponent, "CLOSE_COMPONENT", nil},
		{CloseElement, "CLOSE_ELEMENT", nil},
		{OpenComponent, "OPEN_COMPONENT", []OperandKind{Const}},
		{OpenElement, "OPEN_ELEMENT", []OperandKind{Const}},
		{Slot, "SLOT", nil},
		{SlotContent, "SLOT_CONTENT", []OperandKind{Fragment}},
		{StaticAttr, "STATIC_ATTR", []OperandKind{Const, Const}},
		{StaticProp, "STATIC_PROP", []OperandKind{Const, Const}},
		{StaticText, "STATIC_TEXT", []OperandKind{Const}},
		{StaticTree, "STATIC_TREE", []OperandKind{Const}},
	}
	for _, o := range ops {
		infos[o.op] = Info{Name: o.name, Code: o.op, OperandCount: len(o.operands), Operands: o.operands}
	}
	for _, o := range render {
		infos[o.op] = Info{Name: o.name, Code: o.op, OperandCount: len(o.operands), Operands: o.operands, Render: true}
	}
}

// GetInfo returns information about the given opcode.
func GetInfo(op Code) Info {
	if int(op) >= len(infos) {
		return Info{}
	}
	return infos[op]
}

// IsJump reports whether the opcode takes a relative jump offset.
func IsJump(op Code) bool {
	info := GetInfo(op)
	return info.OperandCount == 1 && info.Operands[0] == Offset
}
