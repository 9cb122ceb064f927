// Package object provides the values manipulated by compiled components.
//
// The value model is deliberately small: integers, floats, strings,
// booleans, nil and immutable lists. Every value knows how to render itself
// as text for the host, how to compare itself with other values and whether
// it is truthy.
//
//	switch obj := obj.(type) {
//	case *object.String:
//		// do something with obj.Value()
//	case *object.List:
//		// do something with obj.Value()
//	}
package object

// Type of an object as a string.
type Type string

// Type constants
const (
	BOOL   Type = "bool"
	FLOAT  Type = "float"
	INT    Type = "int"
	LIST   Type = "list"
	NIL    Type = "nil"
	STRING Type = "string"
)

var (
	Nil   = &NilType{}
	True  = &Bool{value: true}
	False = &Bool{value: false}
)

// Object is the interface that all values implement.
type Object interface {
	// Type of the object.
	Type() Type

	// Inspect returns a source-like representation of the object, with
	// strings quoted.
	Inspect() string

	// String returns the text the host renders for this object.
	String() string

	// Interface converts the given object to a native Go value.
	Interface() any

	// Returns true if the given object is equal to this object.
	Equals(other Object) bool

	// IsTruthy returns true if the object is considered "truthy".
	IsTruthy() bool
}

// Comparable is implemented by types that support ordering.
type Comparable interface {
	// Compare returns -1, 0 or 1, or an error when other is of a type that
	// cannot be ordered against this object.
	Compare(other Object) (int, error)
}

// NewBool returns True or False.
func NewBool(value bool) *Bool {
	if value {
		return True
	}
	return False
}

// Equals reports whether two possibly nil objects are equal. A Go nil is
// treated like Nil.
func Equals(a, b Object) bool {
	if a == nil {
		a = Nil
	}
	if b == nil {
		b = Nil
	}
	return a.Equals(b)
}
