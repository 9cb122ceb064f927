package vm

import (
	"github.com/deepnoodle-ai/sme/bytecode"
	"github.com/deepnoodle-ai/sme/object"
	"github.com/deepnoodle-ai/sme/op"
)

const (
	// DefaultFrameLocals is the number of local variables that can be stored
	// directly in the frame's fixed storage array, avoiding heap allocation.
	DefaultFrameLocals = 8
)

type frame struct {
	fn         int
	code       []op.Code
	returnAddr int
	returnSp   int
	storage    [DefaultFrameLocals]object.Object
	locals     []object.Object
}

// activate prepares the frame to run function fn. The leading locals are
// filled from args and the rest start as nil.
func (f *frame) activate(fn int, function *bytecode.Function, returnAddr, returnSp int, args []object.Object) {
	f.fn = fn
	f.code = function.Code
	f.returnAddr = returnAddr
	f.returnSp = returnSp
	n := function.NumLocals
	if n < len(args) {
		n = len(args)
	}
	if n <= DefaultFrameLocals {
		f.locals = f.storage[:n]
	} else {
		f.locals = make([]object.Object, n)
	}
	copy(f.locals, args)
	for i := len(args); i < n; i++ {
		f.locals[i] = object.Nil
	}
}

func (f *frame) clear() {
	for i := range f.locals {
		f.locals[i] = nil
	}
	f.locals = nil
	f.code = nil
}
