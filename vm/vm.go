// Package vm executes the stack code of a compiled module.
//
// A VirtualMachine runs one function of a module at a time: a derived value,
// a binding expression, a handler or the init function. Component variables
// live outside the machine, in an Env supplied by the caller, so a single
// module can back any number of mounted instances.
package vm

import (
	"context"
	"fmt"

	"github.com/deepnoodle-ai/sme/builtins"
	"github.com/deepnoodle-ai/sme/bytecode"
	"github.com/deepnoodle-ai/sme/errors"
	"github.com/deepnoodle-ai/sme/object"
	"github.com/deepnoodle-ai/sme/op"
)

const (
	MaxArgs       = 256
	MaxFrameDepth = 256
	MaxStackDepth = 1024
	StopSignal    = -1

	// DefaultContextCheckInterval is the number of instructions between
	// checks of ctx.Done(). Set to 0 to disable.
	DefaultContextCheckInterval = 1000
)

// Env holds the variables of one component instance, addressed by id.
type Env interface {
	// Load returns the current value of variable id.
	Load(id int) object.Object

	// Store sets variable id. Handlers and the init function store values;
	// pure functions never do.
	Store(id int, value object.Object) error
}

type VirtualMachine struct {
	ip          int // instruction pointer
	sp          int // stack pointer
	fp          int // frame pointer
	opIP        int // offset of the instruction being executed
	mod         *bytecode.Module
	env         Env
	activeFrame *frame
	running     bool
	builtins    map[int]*builtins.Builtin
	maxDepth    int
	tmp         [MaxArgs]object.Object
	stack       [MaxStackDepth]object.Object
	frames      []frame

	contextCheckInterval int

	observer       Observer
	observerConfig ObserverConfig
	sampleCount    int
	lastLoc        errors.SourceLocation
}

// New creates a Virtual Machine for the given module. Variables are read
// from and written to env.
func New(mod *bytecode.Module, env Env, options ...Option) *VirtualMachine {
	vm := &VirtualMachine{
		sp:                   -1,
		fp:                   -1,
		mod:                  mod,
		env:                  env,
		builtins:             map[int]*builtins.Builtin{},
		maxDepth:             MaxFrameDepth,
		contextCheckInterval: DefaultContextCheckInterval,
	}
	for _, opt := range options {
		opt(vm)
	}
	if vm.maxDepth <= 0 || vm.maxDepth > MaxFrameDepth {
		vm.maxDepth = MaxFrameDepth
	}
	vm.frames = make([]frame, vm.maxDepth)
	if vm.observer != nil {
		vm.observerConfig = NormalizeConfig(vm.observer.Config())
	}
	return vm
}

// Module returns the module the machine executes.
func (vm *VirtualMachine) Module() *bytecode.Module {
	return vm.mod
}

// Call runs function fn of the module with the given arguments and returns
// its result. Runtime failures are returned as *errors.Fault values carrying
// the source location of the failing instruction when the module has a
// source map.
func (vm *VirtualMachine) Call(ctx context.Context, fn int, args []object.Object) (result object.Object, err error) {
	if vm.running {
		return nil, errors.Faultf(errors.E3005, "virtual machine is already running")
	}
	if fn < 0 || fn >= len(vm.mod.Funcs) {
		return nil, errors.Faultf(errors.E3006, "function index %d out of range", fn)
	}
	if len(args) > MaxArgs {
		return nil, errors.Faultf(errors.E3006, "max args limit of %d exceeded (got %d)", MaxArgs, len(args))
	}
	if err := checkCallArgs(vm.mod, fn, len(args)); err != nil {
		return nil, err
	}
	vm.running = true
	defer func() {
		if r := recover(); r != nil {
			err = vm.fault(errors.Faultf(errors.E3008, "panic: %v", r))
		}
		vm.reset()
	}()
	vm.ip = StopSignal
	if err := vm.activate(fn, args); err != nil {
		return nil, err
	}
	return vm.eval(ctx)
}

// CallByName runs the named function.
func (vm *VirtualMachine) CallByName(ctx context.Context, name string, args []object.Object) (object.Object, error) {
	fn, ok := vm.mod.FuncIndex(name)
	if !ok {
		return nil, errors.Faultf(errors.E3006, "function %q not found", name)
	}
	return vm.Call(ctx, fn, args)
}

func (vm *VirtualMachine) reset() {
	for i := 0; i <= vm.sp; i++ {
		vm.stack[i] = nil
	}
	for i := 0; i <= vm.fp; i++ {
		vm.frames[i].clear()
	}
	vm.sp = -1
	vm.fp = -1
	vm.ip = 0
	vm.activeFrame = nil
	vm.running = false
}

func (vm *VirtualMachine) eval(ctx context.Context) (object.Object, error) {
	var instructionCount int
	checkInterval := vm.contextCheckInterval
	doneChan := ctx.Done()

	for {
		f := vm.activeFrame
		if vm.ip >= len(f.code) {
			return nil, vm.fault(errors.Faultf(errors.E3005, "function %s ended without a return", vm.mod.FuncName(f.fn)))
		}
		if checkInterval > 0 && doneChan != nil {
			instructionCount++
			if instructionCount >= checkInterval {
				instructionCount = 0
				select {
				case <-doneChan:
					return nil, ctx.Err()
				default:
				}
			}
		}
		if vm.sp >= MaxStackDepth-2 {
			return nil, vm.fault(errors.Faultf(errors.E3007, "stack overflow"))
		}

		vm.opIP = vm.ip
		opcode := f.code[vm.ip]
		if vm.observer != nil && !vm.step(opcode) {
			return nil, vm.fault(errors.Faultf(errors.E3005, "execution halted by observer"))
		}

		// Advance past the opcode before executing it. Jump operands are
		// relative to opIP.
		vm.ip++

		switch opcode {
		case op.Nop:
		case op.ReturnValue:
			result := vm.pop()
			if done, err := vm.ret(); err != nil {
				return nil, err
			} else if done {
				return result, nil
			}
			vm.push(result)
		case op.JumpForward:
			vm.ip = vm.opIP + int(vm.fetch())
		case op.JumpBackward:
			vm.ip = vm.opIP - int(vm.fetch())
		case op.PopJumpForwardIfFalse:
			delta := int(vm.fetch())
			if !vm.pop().IsTruthy() {
				vm.ip = vm.opIP + delta
			}
		case op.PopJumpForwardIfTrue:
			delta := int(vm.fetch())
			if vm.pop().IsTruthy() {
				vm.ip = vm.opIP + delta
			}
		case op.PopJumpForwardIfNotNil:
			delta := int(vm.fetch())
			if _, isNil := vm.pop().(*object.NilType); !isNil {
				vm.ip = vm.opIP + delta
			}
		case op.LoadVar:
			id := int(vm.fetch())
			value := vm.env.Load(id)
			if value == nil {
				value = object.Nil
			}
			vm.push(value)
		case op.LoadLocal:
			vm.push(f.locals[vm.fetch()])
		case op.LoadConst:
			vm.push(vm.mod.Object(int(vm.fetch())))
		case op.StoreVar:
			id := int(vm.fetch())
			if err := vm.env.Store(id, vm.pop()); err != nil {
				return nil, vm.fault(err)
			}
		case op.StoreLocal:
			f.locals[vm.fetch()] = vm.pop()
		case op.BinaryOp:
			opType := op.BinaryOpType(vm.fetch())
			b := vm.pop()
			a := vm.pop()
			result, err := object.BinaryOp(opType, a, b)
			if err != nil {
				return nil, vm.fault(err)
			}
			vm.push(result)
		case op.CompareOp:
			opType := op.CompareOpType(vm.fetch())
			b := vm.pop()
			a := vm.pop()
			result, err := object.Compare(opType, a, b)
			if err != nil {
				return nil, vm.fault(err)
			}
			vm.push(result)
		case op.UnaryNegative:
			result, err := object.Negate(vm.pop())
			if err != nil {
				return nil, vm.fault(err)
			}
			vm.push(result)
		case op.UnaryNot:
			vm.push(object.Not(vm.pop()))
		case op.BuildList:
			count := int(vm.fetch())
			items := make([]object.Object, count)
			for i := count - 1; i >= 0; i-- {
				items[i] = vm.pop()
			}
			vm.push(object.NewList(items))
		case op.BinarySubscr:
			index := vm.pop()
			container := vm.pop()
			result, err := object.GetItem(container, index)
			if err != nil {
				return nil, vm.fault(err)
			}
			vm.push(result)
		case op.Copy:
			offset := int(vm.fetch())
			vm.push(vm.stack[vm.sp-offset])
		case op.PopTop:
			vm.pop()
		case op.Nil:
			vm.push(object.Nil)
		case op.True:
			vm.push(object.True)
		case op.False:
			vm.push(object.False)
		case op.GetIter:
			iter, err := object.NewIterator(vm.pop())
			if err != nil {
				return nil, vm.fault(err)
			}
			vm.push(iter)
		case op.ForIter:
			delta := int(vm.fetch())
			iter, ok := vm.stack[vm.sp].(*object.Iterator)
			if !ok {
				return nil, vm.fault(object.TypeErrorf("%s object is not an iterator", vm.stack[vm.sp].Type()))
			}
			index, item, ok := iter.Next()
			if !ok {
				vm.pop()
				vm.ip = vm.opIP + delta
				continue
			}
			vm.push(index)
			vm.push(item)
		case op.CallBuiltin:
			name := int(vm.fetch())
			argc := int(vm.fetch())
			b, err := vm.builtin(name)
			if err != nil {
				return nil, vm.fault(err)
			}
			args := vm.popArgs(argc)
			result, err := b.Call(ctx, args...)
			if err != nil {
				return nil, vm.fault(err)
			}
			if result == nil {
				result = object.Nil
			}
			vm.push(result)
		case op.CallFunc:
			fn := int(vm.fetch())
			argc := int(vm.fetch())
			if fn >= len(vm.mod.Funcs) {
				return nil, vm.fault(errors.Faultf(errors.E3005, "function index %d out of range", fn))
			}
			if err := checkCallArgs(vm.mod, fn, argc); err != nil {
				return nil, vm.fault(err)
			}
			if err := vm.activate(fn, vm.popArgs(argc)); err != nil {
				return nil, err
			}
		default:
			info := op.GetInfo(opcode)
			if info.Render {
				return nil, vm.fault(errors.Faultf(errors.E3005, "render instruction %s in function code", info.Name))
			}
			return nil, vm.fault(errors.Faultf(errors.E3005, "unknown opcode %d", opcode))
		}
	}
}

// activate pushes a frame for fn. The caller's ip is saved as the return
// address.
func (vm *VirtualMachine) activate(fn int, args []object.Object) error {
	if vm.fp+1 >= len(vm.frames) {
		return vm.fault(errors.Faultf(errors.E3007, "stack overflow: call depth exceeds %d", len(vm.frames)))
	}
	vm.fp++
	f := &vm.frames[vm.fp]
	f.activate(fn, &vm.mod.Funcs[fn], vm.ip, vm.sp, args)
	vm.activeFrame = f
	vm.ip = 0
	if vm.observer != nil && vm.observerConfig.ObserveCalls {
		event := CallEvent{
			Component:    vm.mod.Meta.Component,
			FunctionName: vm.mod.FuncName(fn),
			ArgCount:     len(args),
			FrameDepth:   vm.fp + 1,
		}
		if vm.fp > 0 {
			event.Location, _ = vm.locationIn(vm.frames[vm.fp-1].fn, vm.opIP)
		}
		if !vm.observer.OnCall(event) {
			return vm.fault(errors.Faultf(errors.E3005, "execution halted by observer"))
		}
	}
	return nil
}

// ret pops the active frame. It reports true when the frame was the one
// activated by Call.
func (vm *VirtualMachine) ret() (bool, error) {
	f := vm.activeFrame
	for vm.sp > f.returnSp {
		vm.pop()
	}
	if vm.observer != nil && vm.observerConfig.ObserveReturns {
		loc, _ := vm.location()
		event := ReturnEvent{
			Component:    vm.mod.Meta.Component,
			FunctionName: vm.mod.FuncName(f.fn),
			Location:     loc,
			FrameDepth:   vm.fp,
		}
		if !vm.observer.OnReturn(event) {
			return false, vm.fault(errors.Faultf(errors.E3005, "execution halted by observer"))
		}
	}
	returnAddr := f.returnAddr
	f.clear()
	vm.fp--
	if returnAddr == StopSignal {
		vm.activeFrame = nil
		return true, nil
	}
	vm.activeFrame = &vm.frames[vm.fp]
	vm.ip = returnAddr
	return false, nil
}

func (vm *VirtualMachine) builtin(name int) (*builtins.Builtin, error) {
	if b, ok := vm.builtins[name]; ok {
		return b, nil
	}
	b, ok := builtins.Lookup(vm.mod.Name(name))
	if !ok {
		return nil, errors.Faultf(errors.E3005, "unknown builtin %q", vm.mod.Name(name))
	}
	vm.builtins[name] = b
	return b, nil
}

// popArgs moves the top argc values into vm.tmp and returns them.
func (vm *VirtualMachine) popArgs(argc int) []object.Object {
	for i := argc - 1; i >= 0; i-- {
		vm.tmp[i] = vm.pop()
	}
	return vm.tmp[:argc]
}

func (vm *VirtualMachine) pop() object.Object {
	obj := vm.stack[vm.sp]
	vm.stack[vm.sp] = nil
	vm.sp--
	return obj
}

func (vm *VirtualMachine) push(obj object.Object) {
	vm.sp++
	vm.stack[vm.sp] = obj
}

func (vm *VirtualMachine) fetch() uint16 {
	ip := vm.ip
	vm.ip++
	return uint16(vm.activeFrame.code[ip])
}

// location returns the source location of the current instruction.
func (vm *VirtualMachine) location() (errors.SourceLocation, bool) {
	if vm.activeFrame == nil {
		return errors.SourceLocation{}, false
	}
	return vm.locationIn(vm.activeFrame.fn, vm.opIP)
}

func (vm *VirtualMachine) locationIn(fn, offset int) (errors.SourceLocation, bool) {
	return vm.mod.Location(bytecode.FuncUnit, fn, offset)
}

// fault converts err to a Fault and attaches the current source location
// when the fault does not have one yet.
func (vm *VirtualMachine) fault(err error) error {
	f := errors.AsFault(err)
	if f.Loc.IsZero() {
		if loc, ok := vm.location(); ok {
			f.Loc = loc
		}
	}
	return f
}

func (vm *VirtualMachine) step(opcode op.Code) bool {
	cfg := vm.observerConfig
	switch cfg.StepMode {
	case StepNone:
		return true
	case StepSampled:
		vm.sampleCount++
		if vm.sampleCount < cfg.SampleInterval {
			return true
		}
		vm.sampleCount = 0
	case StepOnLine:
		loc, _ := vm.location()
		if loc.Line == vm.lastLoc.Line && loc.Filename == vm.lastLoc.Filename {
			return true
		}
		vm.lastLoc = loc
	}
	loc, _ := vm.location()
	return vm.observer.OnStep(StepEvent{
		Component:  vm.mod.Meta.Component,
		IP:         vm.opIP,
		Opcode:     opcode,
		OpcodeName: op.GetInfo(opcode).Name,
		Function:   vm.mod.FuncName(vm.activeFrame.fn),
		Location:   loc,
		StackDepth: vm.sp + 1,
		FrameDepth: vm.fp + 1,
	})
}

func (vm *VirtualMachine) String() string {
	return fmt.Sprintf("vm(%s)", vm.mod.Meta.Component)
}
