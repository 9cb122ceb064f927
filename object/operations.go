package object

import (
	"math"
	"strings"

	"github.com/deepnoodle-ai/sme/op"
)

// Compare two objects using the given comparison operator. An error is
// returned if either of the objects is not comparable.
func Compare(opType op.CompareOpType, a, b Object) (Object, error) {
	switch opType {
	case op.Equal:
		return NewBool(a.Equals(b)), nil
	case op.NotEqual:
		return NewBool(!a.Equals(b)), nil
	}

	comparable, ok := a.(Comparable)
	if !ok {
		return nil, TypeErrorf("expected a comparable object (got %s)", a.Type())
	}
	value, err := comparable.Compare(b)
	if err != nil {
		return nil, err
	}

	switch opType {
	case op.LessThan:
		return NewBool(value < 0), nil
	case op.LessThanOrEqual:
		return NewBool(value <= 0), nil
	case op.GreaterThan:
		return NewBool(value > 0), nil
	case op.GreaterThanOrEqual:
		return NewBool(value >= 0), nil
	default:
		return nil, TypeErrorf("unknown comparison operator: %d", opType)
	}
}

// BinaryOp performs a binary operation on two objects, given an operator.
func BinaryOp(opType op.BinaryOpType, a, b Object) (Object, error) {
	switch a := a.(type) {
	case *Int:
		switch b := b.(type) {
		case *Int:
			return intOp(opType, a.value, b.value)
		case *Float:
			return floatOp(opType, float64(a.value), b.value)
		}
	case *Float:
		switch b := b.(type) {
		case *Int:
			return floatOp(opType, a.value, float64(b.value))
		case *Float:
			return floatOp(opType, a.value, b.value)
		}
	case *String:
		switch b := b.(type) {
		case *String:
			if opType == op.Add {
				return NewString(a.value + b.value), nil
			}
		case *Int:
			if opType == op.Multiply {
				if b.value < 0 {
					return nil, ArgsErrorf("negative repeat count %d", b.value)
				}
				return NewString(strings.Repeat(a.value, int(b.value))), nil
			}
		}
	case *List:
		switch b := b.(type) {
		case *List:
			if opType == op.Add {
				return a.Append(b.items...), nil
			}
		case *Int:
			if opType == op.Multiply {
				if b.value < 0 {
					return nil, ArgsErrorf("negative repeat count %d", b.value)
				}
				var items []Object
				for i := int64(0); i < b.value; i++ {
					items = append(items, a.items...)
				}
				return NewList(items), nil
			}
		}
	case *NilType:
		return nil, NilErrorf("nil operand for '%s'", opType)
	}
	if _, ok := b.(*NilType); ok {
		return nil, NilErrorf("nil operand for '%s'", opType)
	}
	return nil, TypeErrorf("unsupported operation for %s: '%s' on type %s", a.Type(), opType, b.Type())
}

func intOp(opType op.BinaryOpType, a, b int64) (Object, error) {
	switch opType {
	case op.Add:
		return NewInt(a + b), nil
	case op.Subtract:
		return NewInt(a - b), nil
	case op.Multiply:
		return NewInt(a * b), nil
	case op.Divide:
		if b == 0 {
			return nil, ZeroDivisionErrorf("division by zero")
		}
		return NewFloat(float64(a) / float64(b)), nil
	case op.Modulo:
		if b == 0 {
			return nil, ZeroDivisionErrorf("modulo by zero")
		}
		return NewInt(a % b), nil
	case op.Power:
		if b < 0 {
			return NewFloat(math.Pow(float64(a), float64(b))), nil
		}
		result := int64(1)
		for base := a; b > 0; b >>= 1 {
			if b&1 == 1 {
				result *= base
			}
			base *= base
		}
		return NewInt(result), nil
	}
	return nil, TypeErrorf("unsupported operation for int: '%s'", opType)
}

func floatOp(opType op.BinaryOpType, a, b float64) (Object, error) {
	switch opType {
	case op.Add:
		return NewFloat(a + b), nil
	case op.Subtract:
		return NewFloat(a - b), nil
	case op.Multiply:
		return NewFloat(a * b), nil
	case op.Divide:
		if b == 0 {
			return nil, ZeroDivisionErrorf("division by zero")
		}
		return NewFloat(a / b), nil
	case op.Modulo:
		if b == 0 {
			return nil, ZeroDivisionErrorf("modulo by zero")
		}
		return NewFloat(math.Mod(a, b)), nil
	case op.Power:
		return NewFloat(math.Pow(a, b)), nil
	}
	return nil, TypeErrorf("unsupported operation for float: '%s'", opType)
}

// Negate implements the unary minus operator.
func Negate(obj Object) (Object, error) {
	switch obj := obj.(type) {
	case *Int:
		return NewInt(-obj.value), nil
	case *Float:
		return NewFloat(-obj.value), nil
	case *NilType:
		return nil, NilErrorf("nil operand for unary '-'")
	}
	return nil, TypeErrorf("bad operand type for unary '-': %s", obj.Type())
}

// Not implements the unary not operator.
func Not(obj Object) Object {
	return NewBool(!obj.IsTruthy())
}

// GetItem implements the [index] operator for lists and strings.
func GetItem(container, index Object) (Object, error) {
	switch c := container.(type) {
	case *List:
		return c.GetItem(index)
	case *String:
		runes := []rune(c.value)
		i, err := resolveIndex(index, len(runes))
		if err != nil {
			return nil, err
		}
		return NewString(string(runes[i])), nil
	case *NilType:
		return nil, NilErrorf("cannot index nil")
	}
	return nil, TypeErrorf("%s object is not subscriptable", container.Type())
}
