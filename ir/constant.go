package ir

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/deepnoodle-ai/sme/object"
)

// ConstKind tells which field of a Constant is set.
type ConstKind uint8

const (
	ConstNil ConstKind = iota
	ConstInt
	ConstFloat
	ConstString
	ConstBool
	ConstTree
)

// Constant is an entry of the constant pool: a scalar literal, a name, or
// a static markup tree.
type Constant struct {
	Kind  ConstKind   `msgpack:"k"`
	Int   int64       `msgpack:"i,omitempty"`
	Float float64     `msgpack:"f,omitempty"`
	Str   string      `msgpack:"s,omitempty"`
	Bool  bool        `msgpack:"b,omitempty"`
	Tree  *StaticNode `msgpack:"t,omitempty"`
}

// StaticNode is a node of a pooled static markup tree.
type StaticNode struct {
	Tag      string        `msgpack:"tag,omitempty"`
	Attrs    []StaticAttr  `msgpack:"attrs,omitempty"`
	Text     string        `msgpack:"text,omitempty"`
	IsText   bool          `msgpack:"is_text,omitempty"`
	Children []*StaticNode `msgpack:"children,omitempty"`
}

// StaticAttr is an attribute of a static element.
type StaticAttr struct {
	Name  string `msgpack:"n"`
	Value string `msgpack:"v"`
}

// String renders the tree as HTML.
func (n *StaticNode) String() string {
	var b strings.Builder
	n.write(&b)
	return b.String()
}

func (n *StaticNode) write(b *strings.Builder) {
	if n.IsText {
		b.WriteString(n.Text)
		return
	}
	b.WriteString("<" + n.Tag)
	for _, a := range n.Attrs {
		fmt.Fprintf(b, " %s=%q", a.Name, a.Value)
	}
	b.WriteString(">")
	for _, c := range n.Children {
		c.write(b)
	}
	b.WriteString("</" + n.Tag + ">")
}

// Int returns an integer constant.
func Int(v int64) Constant { return Constant{Kind: ConstInt, Int: v} }

// Float returns a float constant.
func Float(v float64) Constant { return Constant{Kind: ConstFloat, Float: v} }

// String returns a string constant.
func String(v string) Constant { return Constant{Kind: ConstString, Str: v} }

// Bool returns a boolean constant.
func Bool(v bool) Constant { return Constant{Kind: ConstBool, Bool: v} }

// Nil returns the nil constant.
func Nil() Constant { return Constant{Kind: ConstNil} }

// Tree returns a static tree constant.
func Tree(n *StaticNode) Constant { return Constant{Kind: ConstTree, Tree: n} }

// FromObject converts a scalar value to a constant.
func FromObject(obj object.Object) (Constant, bool) {
	switch v := obj.(type) {
	case *object.Int:
		return Int(v.Value()), true
	case *object.Float:
		if math.IsNaN(v.Value()) || math.IsInf(v.Value(), 0) {
			return Constant{}, false
		}
		return Float(v.Value()), true
	case *object.String:
		return String(v.Value()), true
	case *object.Bool:
		return Bool(v.Value()), true
	case *object.NilType:
		return Nil(), true
	}
	return Constant{}, false
}

// Object converts a scalar constant to a value. Tree constants yield nil.
func (c Constant) Object() object.Object {
	switch c.Kind {
	case ConstInt:
		return object.NewInt(c.Int)
	case ConstFloat:
		return object.NewFloat(c.Float)
	case ConstString:
		return object.NewString(c.Str)
	case ConstBool:
		return object.NewBool(c.Bool)
	case ConstNil:
		return object.Nil
	}
	return nil
}

// Key identifies a constant for pooling. Constants of different kinds never
// share a key, so 1 and "1" and 1.0 are pooled separately.
func (c Constant) Key() string {
	return strconv.Itoa(int(c.Kind)) + ":" + c.Inspect()
}

// Inspect returns a readable form of the constant.
func (c Constant) Inspect() string {
	switch c.Kind {
	case ConstTree:
		if c.Tree == nil {
			return "<nil tree>"
		}
		return c.Tree.String()
	case ConstNil:
		return "nil"
	}
	return c.Object().Inspect()
}
