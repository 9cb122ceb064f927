package object

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// FromGoType converts a Go value into an Object. Unsupported types yield
// an error.
func FromGoType(value any) (Object, error) {
	switch v := value.(type) {
	case nil:
		return Nil, nil
	case Object:
		return v, nil
	case bool:
		return NewBool(v), nil
	case int:
		return NewInt(int64(v)), nil
	case int32:
		return NewInt(int64(v)), nil
	case int64:
		return NewInt(v), nil
	case float32:
		return NewFloat(float64(v)), nil
	case float64:
		return NewFloat(v), nil
	case json.Number:
		if i, err := v.Int64(); err == nil {
			return NewInt(i), nil
		}
		f, err := v.Float64()
		if err != nil {
			return nil, err
		}
		return NewFloat(f), nil
	case string:
		return NewString(v), nil
	case []string:
		items := make([]Object, 0, len(v))
		for _, s := range v {
			items = append(items, NewString(s))
		}
		return NewList(items), nil
	case []any:
		items := make([]Object, 0, len(v))
		for _, item := range v {
			obj, err := FromGoType(item)
			if err != nil {
				return nil, err
			}
			items = append(items, obj)
		}
		return NewList(items), nil
	}
	return nil, TypeErrorf("unsupported go type %T", value)
}

// ParseValue parses a JSON literal into an Object. Text that is not valid
// JSON is taken as a plain string, so "name=Ada" style assignments work
// without quoting.
func ParseValue(text string) (Object, error) {
	dec := json.NewDecoder(strings.NewReader(text))
	dec.UseNumber()
	var value any
	if err := dec.Decode(&value); err != nil || dec.More() {
		return NewString(text), nil
	}
	if _, ok := value.(map[string]any); ok {
		return nil, fmt.Errorf("maps are not supported: %s", text)
	}
	return FromGoType(value)
}

// AsInt returns the integer value of obj. Floats are accepted when they hold
// a whole number.
func AsInt(obj Object) (int64, error) {
	switch obj := obj.(type) {
	case *Int:
		return obj.value, nil
	case *Float:
		if obj.value == math.Trunc(obj.value) {
			return int64(obj.value), nil
		}
		return 0, TypeErrorf("expected an integer (got %s)", obj.Inspect())
	}
	return 0, TypeErrorf("expected int (got %s)", obj.Type())
}

// AsFloat returns the float value of an int or float.
func AsFloat(obj Object) (float64, error) {
	switch obj := obj.(type) {
	case *Int:
		return float64(obj.value), nil
	case *Float:
		return obj.value, nil
	}
	return 0, TypeErrorf("expected float (got %s)", obj.Type())
}

// AsString returns the value of a string object.
func AsString(obj Object) (string, error) {
	s, ok := obj.(*String)
	if !ok {
		return "", TypeErrorf("expected string (got %s)", obj.Type())
	}
	return s.value, nil
}

// AsList returns the items of a list object.
func AsList(obj Object) ([]Object, error) {
	ls, ok := obj.(*List)
	if !ok {
		return nil, TypeErrorf("expected list (got %s)", obj.Type())
	}
	return ls.items, nil
}
