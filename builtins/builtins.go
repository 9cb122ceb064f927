// Package builtins defines the primitive functions that component code may
// call. All primitives are pure: they never touch component state and return
// new values instead of changing their arguments.
package builtins

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/deepnoodle-ai/sme/object"
)

// Func is the signature of a primitive.
type Func func(ctx context.Context, args ...object.Object) (object.Object, error)

// Builtin describes a primitive and the number of arguments it accepts.
// MaxArgs is -1 for variadic primitives.
type Builtin struct {
	Name    string
	MinArgs int
	MaxArgs int
	Fn      Func
}

// CheckArity returns an error if n arguments are not accepted.
func (b *Builtin) CheckArity(n int) error {
	if n < b.MinArgs || (b.MaxArgs >= 0 && n > b.MaxArgs) {
		return object.ArgsErrorf("%s() takes %s (%d given)", b.Name, b.ArityString(), n)
	}
	return nil
}

// ArityString describes the accepted argument count, e.g. "1-2 arguments".
func (b *Builtin) ArityString() string {
	switch {
	case b.MaxArgs < 0:
		return fmt.Sprintf("at least %d arguments", b.MinArgs)
	case b.MinArgs == b.MaxArgs && b.MinArgs == 1:
		return "1 argument"
	case b.MinArgs == b.MaxArgs:
		return fmt.Sprintf("%d arguments", b.MinArgs)
	}
	return fmt.Sprintf("%d-%d arguments", b.MinArgs, b.MaxArgs)
}

// Call checks the argument count and invokes the primitive.
func (b *Builtin) Call(ctx context.Context, args ...object.Object) (object.Object, error) {
	if err := b.CheckArity(len(args)); err != nil {
		return nil, err
	}
	return b.Fn(ctx, args...)
}

var registry = map[string]*Builtin{}

func register(name string, minArgs, maxArgs int, fn Func) {
	registry[name] = &Builtin{Name: name, MinArgs: minArgs, MaxArgs: maxArgs, Fn: fn}
}

func init() {
	register("abs", 1, 1, Abs)
	register("append", 2, -1, Append)
	register("bool", 1, 1, Bool)
	register("contains", 2, 2, Contains)
	register("float", 1, 1, Float)
	register("int", 1, 1, Int)
	register("join", 2, 2, Join)
	register("len", 1, 1, Len)
	register("lower", 1, 1, Lower)
	register("max", 1, -1, Max)
	register("min", 1, -1, Min)
	register("range", 1, 2, Range)
	register("reversed", 1, 1, Reversed)
	register("round", 1, 2, Round)
	register("sorted", 1, 1, Sorted)
	register("str", 1, 1, String)
	register("trim", 1, 1, Trim)
	register("type", 1, 1, Type)
	register("upper", 1, 1, Upper)
}

// Lookup returns the primitive with the given name.
func Lookup(name string) (*Builtin, bool) {
	b, ok := registry[name]
	return b, ok
}

// Names returns the sorted names of all primitives.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func Len(ctx context.Context, args ...object.Object) (object.Object, error) {
	switch arg := args[0].(type) {
	case *object.List:
		return object.NewInt(int64(arg.Len())), nil
	case *object.String:
		return object.NewInt(int64(arg.Len())), nil
	default:
		return nil, object.TypeErrorf("len() unsupported argument (%s given)", args[0].Type())
	}
}

func String(ctx context.Context, args ...object.Object) (object.Object, error) {
	return object.NewString(args[0].String()), nil
}

func Type(ctx context.Context, args ...object.Object) (object.Object, error) {
	return object.NewString(string(args[0].Type())), nil
}

func Bool(ctx context.Context, args ...object.Object) (object.Object, error) {
	return object.NewBool(args[0].IsTruthy()), nil
}

func Int(ctx context.Context, args ...object.Object) (object.Object, error) {
	switch arg := args[0].(type) {
	case *object.Int:
		return arg, nil
	case *object.Float:
		return object.NewInt(int64(arg.Value())), nil
	case *object.String:
		i, err := strconv.ParseInt(strings.TrimSpace(arg.Value()), 0, 64)
		if err != nil {
			return nil, object.ArgsErrorf("int() invalid literal %s", arg.Inspect())
		}
		return object.NewInt(i), nil
	case *object.Bool:
		if arg.Value() {
			return object.NewInt(1), nil
		}
		return object.NewInt(0), nil
	}
	return nil, object.TypeErrorf("int() unsupported argument (%s given)", args[0].Type())
}

func Float(ctx context.Context, args ...object.Object) (object.Object, error) {
	switch arg := args[0].(type) {
	case *object.Int:
		return object.NewFloat(float64(arg.Value())), nil
	case *object.Float:
		return arg, nil
	case *object.String:
		f, err := strconv.ParseFloat(strings.TrimSpace(arg.Value()), 64)
		if err != nil {
			return nil, object.ArgsErrorf("float() invalid literal %s", arg.Inspect())
		}
		return object.NewFloat(f), nil
	}
	return nil, object.TypeErrorf("float() unsupported argument (%s given)", args[0].Type())
}

func Upper(ctx context.Context, args ...object.Object) (object.Object, error) {
	s, err := object.AsString(args[0])
	if err != nil {
		return nil, err
	}
	return object.NewString(strings.ToUpper(s)), nil
}

func Lower(ctx context.Context, args ...object.Object) (object.Object, error) {
	s, err := object.AsString(args[0])
	if err != nil {
		return nil, err
	}
	return object.NewString(strings.ToLower(s)), nil
}

func Trim(ctx context.Context, args ...object.Object) (object.Object, error) {
	s, err := object.AsString(args[0])
	if err != nil {
		return nil, err
	}
	return object.NewString(strings.TrimSpace(s)), nil
}

func Abs(ctx context.Context, args ...object.Object) (object.Object, error) {
	switch arg := args[0].(type) {
	case *object.Int:
		if arg.Value() < 0 {
			return object.NewInt(-arg.Value()), nil
		}
		return arg, nil
	case *object.Float:
		return object.NewFloat(math.Abs(arg.Value())), nil
	}
	return nil, object.TypeErrorf("abs() unsupported argument (%s given)", args[0].Type())
}

func Round(ctx context.Context, args ...object.Object) (object.Object, error) {
	f, err := object.AsFloat(args[0])
	if err != nil {
		return nil, err
	}
	if len(args) == 1 {
		return object.NewInt(int64(math.Round(f))), nil
	}
	digits, err := object.AsInt(args[1])
	if err != nil {
		return nil, err
	}
	scale := math.Pow(10, float64(digits))
	return object.NewFloat(math.Round(f*scale) / scale), nil
}

// Min returns the smallest of its arguments, or of the items of a single
// list argument.
func Min(ctx context.Context, args ...object.Object) (object.Object, error) {
	return extreme("min", -1, args)
}

// Max returns the largest of its arguments, or of the items of a single
// list argument.
func Max(ctx context.Context, args ...object.Object) (object.Object, error) {
	return extreme("max", 1, args)
}

func extreme(name string, want int, args []object.Object) (object.Object, error) {
	items := args
	if len(args) == 1 {
		list, err := object.AsList(args[0])
		if err != nil {
			return nil, err
		}
		items = list
	}
	if len(items) == 0 {
		return nil, object.ArgsErrorf("%s() of an empty list", name)
	}
	best := items[0]
	for _, item := range items[1:] {
		c, err := compare(item, best)
		if err != nil {
			return nil, err
		}
		if c == want {
			best = item
		}
	}
	return best, nil
}

func compare(a, b object.Object) (int, error) {
	comparable, ok := a.(object.Comparable)
	if !ok {
		return 0, object.TypeErrorf("expected a comparable object (got %s)", a.Type())
	}
	return comparable.Compare(b)
}

// Append returns a new list with the remaining arguments added to the end.
func Append(ctx context.Context, args ...object.Object) (object.Object, error) {
	list, ok := args[0].(*object.List)
	if !ok {
		return nil, object.TypeErrorf("append() expected a list (%s given)", args[0].Type())
	}
	return list.Append(args[1:]...), nil
}

// Range returns the list [0, n) or [start, stop).
// maxRange is the largest list range() builds.
const maxRange = 1_000_000

func Range(ctx context.Context, args ...object.Object) (object.Object, error) {
	var start, stop int64
	var err error
	if len(args) == 1 {
		stop, err = object.AsInt(args[0])
	} else {
		if start, err = object.AsInt(args[0]); err == nil {
			stop, err = object.AsInt(args[1])
		}
	}
	if err != nil {
		return nil, err
	}
	if stop <= start {
		return object.NewList(nil), nil
	}
	// The difference may not fit in an int64.
	if n := uint64(stop) - uint64(start); n > maxRange {
		return nil, object.ArgsErrorf("range() too large (%d items)", n)
	}
	items := make([]object.Object, 0, stop-start)
	for i := start; i < stop; i++ {
		items = append(items, object.NewInt(i))
	}
	return object.NewList(items), nil
}

func Join(ctx context.Context, args ...object.Object) (object.Object, error) {
	items, err := object.AsList(args[0])
	if err != nil {
		return nil, err
	}
	sep, err := object.AsString(args[1])
	if err != nil {
		return nil, err
	}
	parts := make([]string, 0, len(items))
	for _, item := range items {
		parts = append(parts, item.String())
	}
	return object.NewString(strings.Join(parts, sep)), nil
}

// Contains reports whether a list holds an item or a string holds a
// substring.
func Contains(ctx context.Context, args ...object.Object) (object.Object, error) {
	switch container := args[0].(type) {
	case *object.List:
		for _, item := range container.Value() {
			if item.Equals(args[1]) {
				return object.True, nil
			}
		}
		return object.False, nil
	case *object.String:
		sub, err := object.AsString(args[1])
		if err != nil {
			return nil, err
		}
		return object.NewBool(strings.Contains(container.Value(), sub)), nil
	}
	return nil, object.TypeErrorf("contains() unsupported argument (%s given)", args[0].Type())
}

func Sorted(ctx context.Context, args ...object.Object) (object.Object, error) {
	items, err := object.Items(args[0])
	if err != nil {
		return nil, err
	}
	sorted := make([]object.Object, len(items))
	copy(sorted, items)
	var sortErr error
	sort.SliceStable(sorted, func(i, j int) bool {
		c, err := compare(sorted[i], sorted[j])
		if err != nil && sortErr == nil {
			sortErr = err
		}
		return c < 0
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return object.NewList(sorted), nil
}

func Reversed(ctx context.Context, args ...object.Object) (object.Object, error) {
	switch arg := args[0].(type) {
	case *object.List:
		items := arg.Value()
		out := make([]object.Object, len(items))
		for i, item := range items {
			out[len(items)-1-i] = item
		}
		return object.NewList(out), nil
	case *object.String:
		runes := []rune(arg.Value())
		for i, j := 0, len(runes)-1; i < j; i, j = i+1, j-1 {
			runes[i], runes[j] = runes[j], runes[i]
		}
		return object.NewString(string(runes)), nil
	}
	return nil, object.TypeErrorf("reversed() unsupported argument (%s given)", args[0].Type())
}
