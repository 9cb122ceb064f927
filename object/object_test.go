package object

import (
	"testing"

	"github.com/deepnoodle-ai/sme/errors"
	"github.com/deepnoodle-ai/sme/op"
	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	tests := []struct {
		obj     Object
		text    string
		inspect string
	}{
		{NewInt(-3), "-3", "-3"},
		{NewFloat(2.5), "2.5", "2.5"},
		{NewFloat(10), "10", "10"},
		{NewString("hi"), "hi", `"hi"`},
		{True, "true", "true"},
		{Nil, "", "nil"},
		{NewList([]Object{NewInt(1), NewString("a")}), `[1, "a"]`, `[1, "a"]`},
	}
	for _, tt := range tests {
		require.Equal(t, tt.text, tt.obj.String())
		require.Equal(t, tt.inspect, tt.obj.Inspect())
	}
}

func TestTruthiness(t *testing.T) {
	for _, obj := range []Object{NewInt(0), NewFloat(0), NewString(""), Nil, False, NewList(nil)} {
		require.False(t, obj.IsTruthy(), obj.Inspect())
	}
	for _, obj := range []Object{NewInt(1), NewFloat(0.1), NewString("x"), True, NewList([]Object{Nil})} {
		require.True(t, obj.IsTruthy(), obj.Inspect())
	}
}

func TestEquals(t *testing.T) {
	require.True(t, NewInt(2).Equals(NewFloat(2)))
	require.True(t, NewFloat(2).Equals(NewInt(2)))
	require.False(t, NewInt(2).Equals(NewString("2")))
	require.True(t, NewList([]Object{NewInt(1)}).Equals(NewList([]Object{NewInt(1)})))
	require.False(t, NewList([]Object{NewInt(1)}).Equals(NewList([]Object{NewInt(2)})))
	require.True(t, Equals(nil, Nil))
	require.False(t, Equals(nil, False))
}

func TestBinaryOp(t *testing.T) {
	tests := []struct {
		op       op.BinaryOpType
		a, b     Object
		expected Object
	}{
		{op.Add, NewInt(2), NewInt(3), NewInt(5)},
		{op.Subtract, NewInt(2), NewFloat(0.5), NewFloat(1.5)},
		{op.Multiply, NewInt(5), NewInt(2), NewInt(10)},
		{op.Divide, NewInt(7), NewInt(2), NewFloat(3.5)},
		{op.Modulo, NewInt(7), NewInt(3), NewInt(1)},
		{op.Power, NewInt(2), NewInt(10), NewInt(1024)},
		{op.Power, NewInt(2), NewInt(-1), NewFloat(0.5)},
		{op.Add, NewString("a"), NewString("b"), NewString("ab")},
		{op.Multiply, NewString("ab"), NewInt(2), NewString("abab")},
		{op.Add, NewList([]Object{NewInt(1)}), NewList([]Object{NewInt(2)}), NewList([]Object{NewInt(1), NewInt(2)})},
	}
	for _, tt := range tests {
		result, err := BinaryOp(tt.op, tt.a, tt.b)
		require.NoError(t, err)
		require.Equal(t, tt.expected.Type(), result.Type())
		require.True(t, tt.expected.Equals(result), "%s %s %s = %s", tt.a.Inspect(), tt.op, tt.b.Inspect(), result.Inspect())
	}
}

func TestBinaryOpErrors(t *testing.T) {
	tests := []struct {
		op   op.BinaryOpType
		a, b Object
		code errors.ErrorCode
	}{
		{op.Divide, NewInt(1), NewInt(0), errors.E3002},
		{op.Modulo, NewFloat(1), NewInt(0), errors.E3002},
		{op.Add, NewString("a"), NewInt(1), errors.E3001},
		{op.Add, Nil, NewInt(1), errors.E3004},
		{op.Add, NewInt(1), Nil, errors.E3004},
		{op.Subtract, True, True, errors.E3001},
	}
	for _, tt := range tests {
		_, err := BinaryOp(tt.op, tt.a, tt.b)
		require.Error(t, err)
		var fault *errors.Fault
		require.True(t, errors.As(err, &fault))
		require.Equal(t, tt.code, fault.Code)
	}
}

func TestCompare(t *testing.T) {
	result, err := Compare(op.LessThan, NewInt(1), NewFloat(1.5))
	require.NoError(t, err)
	require.Equal(t, True, result)

	result, err = Compare(op.GreaterThanOrEqual, NewString("b"), NewString("a"))
	require.NoError(t, err)
	require.Equal(t, True, result)

	result, err = Compare(op.Equal, NewString("b"), NewInt(1))
	require.NoError(t, err)
	require.Equal(t, False, result)

	_, err = Compare(op.LessThan, NewString("b"), NewInt(1))
	require.Error(t, err)

	_, err = Compare(op.LessThan, Nil, NewInt(1))
	require.Error(t, err)
}

func TestUnary(t *testing.T) {
	result, err := Negate(NewInt(3))
	require.NoError(t, err)
	require.Equal(t, int64(-3), result.(*Int).Value())

	_, err = Negate(NewString("x"))
	require.Error(t, err)

	require.Equal(t, True, Not(Nil))
	require.Equal(t, False, Not(NewInt(1)))
}

func TestGetItem(t *testing.T) {
	list := NewList([]Object{NewString("a"), NewString("b"), NewString("c")})
	item, err := GetItem(list, NewInt(-1))
	require.NoError(t, err)
	require.Equal(t, "c", item.String())

	_, err = GetItem(list, NewInt(3))
	var fault *errors.Fault
	require.True(t, errors.As(err, &fault))
	require.Equal(t, errors.E3003, fault.Code)

	item, err = GetItem(NewString("héllo"), NewInt(1))
	require.NoError(t, err)
	require.Equal(t, "é", item.String())

	_, err = GetItem(list, NewString("0"))
	require.Error(t, err)

	_, err = GetItem(Nil, NewInt(0))
	require.True(t, errors.As(err, &fault))
	require.Equal(t, errors.E3004, fault.Code)
}

func TestIterator(t *testing.T) {
	it, err := NewIterator(NewList([]Object{NewString("x"), NewString("y")}))
	require.NoError(t, err)
	var got []string
	for {
		index, item, ok := it.Next()
		if !ok {
			break
		}
		got = append(got, index.String()+"="+item.String())
	}
	require.Equal(t, []string{"0=x", "1=y"}, got)

	items, err := Items(NewString("ab"))
	require.NoError(t, err)
	require.Len(t, items, 2)

	_, err = NewIterator(NewInt(1))
	require.Error(t, err)
}

func TestListAppendIsCopy(t *testing.T) {
	a := NewList([]Object{NewInt(1)})
	b := a.Append(NewInt(2))
	require.Equal(t, 1, a.Len())
	require.Equal(t, 2, b.Len())
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		input    string
		expected Object
	}{
		{"5", NewInt(5)},
		{"2.5", NewFloat(2.5)},
		{`"x"`, NewString("x")},
		{"Ada", NewString("Ada")},
		{"true", True},
		{"null", Nil},
		{`[1, "a"]`, NewList([]Object{NewInt(1), NewString("a")})},
	}
	for _, tt := range tests {
		obj, err := ParseValue(tt.input)
		require.NoError(t, err)
		require.True(t, tt.expected.Equals(obj), "%s -> %s", tt.input, obj.Inspect())
		require.Equal(t, tt.expected.Type(), obj.Type())
	}
	_, err := ParseValue(`{"a": 1}`)
	require.Error(t, err)
}

func TestConversions(t *testing.T) {
	i, err := AsInt(NewFloat(3))
	require.NoError(t, err)
	require.Equal(t, int64(3), i)
	_, err = AsInt(NewFloat(3.5))
	require.Error(t, err)

	f, err := AsFloat(NewInt(2))
	require.NoError(t, err)
	require.Equal(t, 2.0, f)

	_, err = AsString(NewInt(1))
	require.Error(t, err)

	obj, err := FromGoType([]any{1, "a", nil})
	require.NoError(t, err)
	require.Equal(t, `[1, "a", nil]`, obj.Inspect())

	_, err = FromGoType(struct{}{})
	require.Error(t, err)
}
