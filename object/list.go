package object

import "strings"

// List is an immutable sequence of objects. Operations that change a list
// return a new one, so values held by variables never change underneath a
// binding.
type List struct {
	items []Object
}

func NewList(items []Object) *List {
	return &List{items: items}
}

func (ls *List) Type() Type        { return LIST }
func (ls *List) Value() []Object   { return ls.items }
func (ls *List) Len() int          { return len(ls.items) }
func (ls *List) IsTruthy() bool    { return len(ls.items) > 0 }
func (ls *List) String() string    { return ls.Inspect() }
func (ls *List) Item(i int) Object { return ls.items[i] }

func (ls *List) Inspect() string {
	items := make([]string, 0, len(ls.items))
	for _, item := range ls.items {
		items = append(items, item.Inspect())
	}
	return "[" + strings.Join(items, ", ") + "]"
}

func (ls *List) Interface() any {
	items := make([]any, 0, len(ls.items))
	for _, item := range ls.items {
		items = append(items, item.Interface())
	}
	return items
}

func (ls *List) Equals(other Object) bool {
	o, ok := other.(*List)
	if !ok || len(o.items) != len(ls.items) {
		return false
	}
	for i, item := range ls.items {
		if !item.Equals(o.items[i]) {
			return false
		}
	}
	return true
}

// Append returns a new list with the given items added at the end.
func (ls *List) Append(items ...Object) *List {
	out := make([]Object, 0, len(ls.items)+len(items))
	out = append(out, ls.items...)
	out = append(out, items...)
	return NewList(out)
}

// GetItem implements the [index] operator. Negative indexes count from the
// end of the list.
func (ls *List) GetItem(index Object) (Object, error) {
	i, err := resolveIndex(index, len(ls.items))
	if err != nil {
		return nil, err
	}
	return ls.items[i], nil
}

func resolveIndex(index Object, length int) (int, error) {
	idx, ok := index.(*Int)
	if !ok {
		return 0, TypeErrorf("index must be an int (got %s)", index.Type())
	}
	i := int(idx.value)
	if i < 0 {
		i += length
	}
	if i < 0 || i >= length {
		return 0, IndexErrorf("index %d out of range (length %d)", idx.value, length)
	}
	return i, nil
}
