package object

import (
	"fmt"
	"math"
	"strconv"
)

// Int wraps int64 and implements Object and Comparable.
type Int struct {
	value int64
}

func NewInt(value int64) *Int {
	return &Int{value: value}
}

func (i *Int) Type() Type      { return INT }
func (i *Int) Value() int64    { return i.value }
func (i *Int) Inspect() string { return strconv.FormatInt(i.value, 10) }
func (i *Int) String() string  { return i.Inspect() }
func (i *Int) Interface() any  { return i.value }
func (i *Int) IsTruthy() bool  { return i.value != 0 }

func (i *Int) Equals(other Object) bool {
	switch other := other.(type) {
	case *Int:
		return i.value == other.value
	case *Float:
		return float64(i.value) == other.value
	}
	return false
}

func (i *Int) Compare(other Object) (int, error) {
	switch other := other.(type) {
	case *Int:
		return cmpOrdered(i.value, other.value), nil
	case *Float:
		return cmpOrdered(float64(i.value), other.value), nil
	}
	return 0, TypeErrorf("unable to compare int and %s", other.Type())
}

// Float wraps float64 and implements Object and Comparable.
type Float struct {
	value float64
}

func NewFloat(value float64) *Float {
	return &Float{value: value}
}

func (f *Float) Type() Type     { return FLOAT }
func (f *Float) Value() float64 { return f.value }
func (f *Float) Interface() any { return f.value }
func (f *Float) IsTruthy() bool { return f.value != 0 }

func (f *Float) Inspect() string {
	switch {
	case math.IsInf(f.value, 1):
		return "inf"
	case math.IsInf(f.value, -1):
		return "-inf"
	case math.IsNaN(f.value):
		return "nan"
	}
	return strconv.FormatFloat(f.value, 'f', -1, 64)
}

func (f *Float) String() string { return f.Inspect() }

func (f *Float) Equals(other Object) bool {
	switch other := other.(type) {
	case *Float:
		return f.value == other.value
	case *Int:
		return f.value == float64(other.value)
	}
	return false
}

func (f *Float) Compare(other Object) (int, error) {
	switch other := other.(type) {
	case *Float:
		return cmpOrdered(f.value, other.value), nil
	case *Int:
		return cmpOrdered(f.value, float64(other.value)), nil
	}
	return 0, TypeErrorf("unable to compare float and %s", other.Type())
}

// String wraps string and implements Object and Comparable.
type String struct {
	value string
}

func NewString(value string) *String {
	return &String{value: value}
}

func (s *String) Type() Type      { return STRING }
func (s *String) Value() string   { return s.value }
func (s *String) Inspect() string { return strconv.Quote(s.value) }
func (s *String) String() string  { return s.value }
func (s *String) Interface() any  { return s.value }
func (s *String) IsTruthy() bool  { return s.value != "" }

func (s *String) Equals(other Object) bool {
	o, ok := other.(*String)
	return ok && s.value == o.value
}

func (s *String) Compare(other Object) (int, error) {
	o, ok := other.(*String)
	if !ok {
		return 0, TypeErrorf("unable to compare string and %s", other.Type())
	}
	return cmpOrdered(s.value, o.value), nil
}

// Len returns the number of characters in the string.
func (s *String) Len() int {
	return len([]rune(s.value))
}

// Bool wraps bool and implements Object.
type Bool struct {
	value bool
}

func (b *Bool) Type() Type      { return BOOL }
func (b *Bool) Value() bool     { return b.value }
func (b *Bool) Inspect() string { return fmt.Sprintf("%t", b.value) }
func (b *Bool) String() string  { return b.Inspect() }
func (b *Bool) Interface() any  { return b.value }
func (b *Bool) IsTruthy() bool  { return b.value }

func (b *Bool) Equals(other Object) bool {
	o, ok := other.(*Bool)
	return ok && b.value == o.value
}

// NilType is the type of the Nil singleton. It renders as empty text.
type NilType struct{}

func (n *NilType) Type() Type      { return NIL }
func (n *NilType) Inspect() string { return "nil" }
func (n *NilType) String() string  { return "" }
func (n *NilType) Interface() any  { return nil }
func (n *NilType) IsTruthy() bool  { return false }

func (n *NilType) Equals(other Object) bool {
	_, ok := other.(*NilType)
	return ok
}

func cmpOrdered[T int64 | float64 | string](a, b T) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
