package object

// Iterator walks the items of a list or the characters of a string. It is
// created by the GET_ITER opcode and consumed by FOR_ITER.
type Iterator struct {
	items []Object
	pos   int
}

// NewIterator returns an iterator over the given object.
func NewIterator(obj Object) (*Iterator, error) {
	switch obj := obj.(type) {
	case *List:
		return &Iterator{items: obj.items}, nil
	case *String:
		var items []Object
		for _, r := range obj.value {
			items = append(items, NewString(string(r)))
		}
		return &Iterator{items: items}, nil
	case *NilType:
		return nil, NilErrorf("cannot iterate over nil")
	}
	return nil, TypeErrorf("%s object is not iterable", obj.Type())
}

// Next returns the next index and item. ok is false once the iterator is
// exhausted.
func (it *Iterator) Next() (index Object, item Object, ok bool) {
	if it.pos >= len(it.items) {
		return nil, nil, false
	}
	i := it.pos
	it.pos++
	return NewInt(int64(i)), it.items[i], true
}

func (it *Iterator) Type() Type               { return "iterator" }
func (it *Iterator) Inspect() string          { return "iterator()" }
func (it *Iterator) String() string           { return it.Inspect() }
func (it *Iterator) Interface() any           { return nil }
func (it *Iterator) IsTruthy() bool           { return true }
func (it *Iterator) Equals(other Object) bool { return it == other }

// Items returns the objects an iterable produces, for use by list-producing
// code that does not need the index.
func Items(obj Object) ([]Object, error) {
	it, err := NewIterator(obj)
	if err != nil {
		return nil, err
	}
	return it.items, nil
}
