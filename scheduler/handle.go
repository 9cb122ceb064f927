package scheduler

import (
	"context"
	"fmt"
	"sort"

	"github.com/deepnoodle-ai/sme/bytecode"
	"github.com/deepnoodle-ai/sme/errors"
	"github.com/deepnoodle-ai/sme/ir"
	"github.com/deepnoodle-ai/sme/object"
	"github.com/deepnoodle-ai/sme/vm"
)

// Stats counts the work done for one mounted instance.
type Stats struct {
	// Flushes counts flushes that ran at least one step.
	Flushes int
	// Steps counts executed update instructions.
	Steps int
	// Derives counts recomputations of derived values.
	Derives int
	// Runs counts binding instance updates, by binding index. Rendering
	// does not count.
	Runs []int
	// Faults counts reported faults.
	Faults int
}

// Handle is a mounted component instance. It owns the current values of
// the component's variables and its pending dirty set.
type Handle struct {
	s      *Scheduler
	mod    *bytecode.Module
	vm     *vm.VirtualMachine
	parent *Handle

	values     []object.Object
	dirty      []bool
	dirtyOrder []int
	scheduled  bool
	mounted    bool

	instances map[int][]*instance
	failed    map[int]bool
	root      *scope
	region    *region
	slot      *slotContent
	stats     Stats
}

func (s *Scheduler) newHandle(mod *bytecode.Module, parent *Handle) *Handle {
	h := &Handle{
		s:         s,
		mod:       mod,
		parent:    parent,
		values:    make([]object.Object, len(mod.Vars)),
		dirty:     make([]bool, len(mod.Vars)),
		instances: map[int][]*instance{},
		failed:    map[int]bool{},
	}
	h.stats.Runs = make([]int, len(mod.Bindings))
	h.vm = vm.New(mod, h, s.vmOptions...)
	return h
}

// Module returns the compiled module of the instance.
func (h *Handle) Module() *bytecode.Module { return h.mod }

// Component returns the component name.
func (h *Handle) Component() string { return h.mod.Meta.Component }

// Mounted reports whether the instance is mounted.
func (h *Handle) Mounted() bool { return h.mounted }

// Parent returns the handle of the enclosing component, or nil for a root.
func (h *Handle) Parent() *Handle { return h.parent }

// Load returns the current value of variable id.
func (h *Handle) Load(id int) object.Object {
	if id < 0 || id >= len(h.values) || h.values[id] == nil {
		return object.Nil
	}
	return h.values[id]
}

// Store assigns a mutable variable from handler or init code.
func (h *Handle) Store(id int, value object.Object) error {
	if id < 0 || id >= len(h.values) {
		return errors.Faultf(errors.E3006, "variable id %d out of range", id)
	}
	if kind := h.mod.Vars[id].Kind; kind != ir.Mutable {
		return errors.Faultf(errors.E3005, "cannot assign to %s value '%s'", kind, h.mod.VarName(id))
	}
	h.set(id, value)
	return nil
}

// Get returns the current value of the named variable.
func (h *Handle) Get(name string) (object.Object, bool) {
	id, ok := h.mod.VarID(name)
	if !ok {
		return nil, false
	}
	return h.Load(id), true
}

// Failed reports whether binding b has been disabled by a fault.
func (h *Handle) Failed(b int) bool { return h.failed[b] }

// Stats returns a copy of the instance statistics.
func (h *Handle) Stats() Stats {
	st := h.stats
	st.Runs = append([]int(nil), h.stats.Runs...)
	return st
}

// Children returns the mounted child component instances, in render order.
func (h *Handle) Children() []*Handle {
	var out []*Handle
	var walk func(sc *scope)
	walk = func(sc *scope) {
		if sc == nil {
			return
		}
		for _, inst := range sc.instances {
			walk(inst.content)
		}
		out = append(out, sc.components...)
		for _, c := range sc.children {
			walk(c)
		}
	}
	walk(h.root)
	return out
}

// set records a new value. Unchanged values are ignored.
func (h *Handle) set(id int, value object.Object) {
	if value == nil {
		value = object.Nil
	}
	if h.values[id] != nil && object.Equals(h.values[id], value) {
		return
	}
	h.values[id] = value
	if !h.dirty[id] {
		h.dirty[id] = true
		h.dirtyOrder = append(h.dirtyOrder, id)
	}
	if h.mounted {
		h.s.schedule(h)
	}
}

func (h *Handle) takeDirty() []int {
	ids := h.dirtyOrder
	for _, id := range ids {
		h.dirty[id] = false
	}
	h.dirtyOrder = nil
	return ids
}

func (h *Handle) call(ctx context.Context, fn int, args []object.Object) (object.Object, error) {
	if fn < 0 {
		return object.Nil, nil
	}
	return h.vm.Call(ctx, fn, args)
}

func (h *Handle) callHandler(ctx context.Context, fn int, args []object.Object) error {
	if !h.mounted {
		return fmt.Errorf("%s is not mounted", h.Component())
	}
	if _, err := h.call(ctx, fn, args); err != nil {
		return h.report(err, "handler "+h.mod.FuncName(fn))
	}
	return nil
}

// report delivers err as a fault of this instance and returns the fault.
func (h *Handle) report(err error, target string) *errors.Fault {
	f := errors.AsFault(err)
	f.Component = h.Component()
	f.Target = target
	h.stats.Faults++
	h.s.reporter.Report(f)
	return f
}

// fail disables binding b after a fault.
func (h *Handle) fail(b int, err error) {
	h.failed[b] = true
	h.report(err, bindingTarget(h.mod, b))
}

// evalBinding evaluates the expression of a binding instance. Faults
// disable the binding.
func (h *Handle) evalBinding(ctx context.Context, inst *instance) (object.Object, bool) {
	if h.failed[inst.binding] {
		return nil, false
	}
	v, err := h.call(ctx, h.mod.Bindings[inst.binding].Func, inst.scope.locals)
	if err != nil {
		h.fail(inst.binding, err)
		return nil, false
	}
	return v, true
}

func (h *Handle) removeInstance(inst *instance) {
	list := h.instances[inst.binding]
	for i, other := range list {
		if other == inst {
			h.instances[inst.binding] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// mount initialises the variables and renders the component into r.
func (h *Handle) mount(ctx context.Context, r *region, props map[string]object.Object, slot *slotContent) error {
	h.region = r
	h.slot = slot
	h.root = &scope{}
	for name, value := range props {
		id, ok := h.mod.VarID(name)
		if !ok || !h.mod.Vars[id].Prop {
			return fmt.Errorf("component %s has no prop %q", h.Component(), name)
		}
		h.values[id] = value
	}
	for id, v := range h.mod.Vars {
		if v.Kind == ir.Derived || h.values[id] != nil {
			continue
		}
		h.values[id] = object.Nil
		if v.Init < 0 {
			continue
		}
		value, err := h.call(ctx, v.Init, nil)
		if err != nil {
			h.report(err, "variable "+h.mod.VarName(id))
			continue
		}
		h.values[id] = value
	}
	h.deriveAll(ctx)
	if h.mod.Meta.Init >= 0 {
		if _, err := h.call(ctx, h.mod.Meta.Init, nil); err != nil {
			h.report(err, "init")
		}
		if len(h.takeDirty()) > 0 {
			h.deriveAll(ctx)
		}
	}
	h.takeDirty()
	h.mounted = true
	h.s.logger.Debug().Str("component", h.Component()).Msg("mount")
	return h.s.render(ctx, h, 0, h.root, r)
}

func (h *Handle) deriveAll(ctx context.Context) {
	for _, id := range h.mod.DeriveOrder {
		if h.values[id] == nil {
			h.values[id] = object.Nil
		}
		h.recompute(ctx, id)
	}
}

// derive runs a derive step.
func (h *Handle) derive(ctx context.Context, id int) {
	h.stats.Derives++
	h.recompute(ctx, id)
}

// recompute evaluates a derived value. A fault keeps the previous value.
func (h *Handle) recompute(ctx context.Context, id int) {
	value, err := h.call(ctx, h.mod.Vars[id].Init, nil)
	if err != nil {
		h.report(err, "derived "+h.mod.VarName(id))
		return
	}
	h.values[id] = value
}

// teardown releases everything the instance rendered except its host
// nodes, which belong to the enclosing region.
func (h *Handle) teardown() {
	if !h.mounted {
		return
	}
	h.mounted = false
	h.s.destroyScope(h.root)
	h.root = nil
	h.takeDirty()
	h.instances = map[int][]*instance{}
	h.s.logger.Debug().Str("component", h.Component()).Msg("unmount")
}

// steps returns the update instructions for the dirty variables, each
// once, in rank order.
func (h *Handle) steps(dirty []int) []bytecode.Step {
	seen := map[bytecode.StepKey]bool{}
	var steps []bytecode.Step
	for _, id := range dirty {
		if id >= len(h.mod.Updates) {
			continue
		}
		for _, st := range h.mod.Updates[id] {
			if seen[st.Key()] {
				continue
			}
			seen[st.Key()] = true
			steps = append(steps, st)
		}
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Rank < steps[j].Rank })
	return steps
}

// flush runs the update instructions of the dirty variables.
func (h *Handle) flush(ctx context.Context) error {
	dirty := h.takeDirty()
	if !h.mounted || len(dirty) == 0 {
		return nil
	}
	steps := h.steps(dirty)
	if len(steps) == 0 {
		return nil
	}
	h.s.epoch++
	epoch := h.s.epoch
	h.stats.Flushes++
	for _, st := range steps {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !h.mounted {
			return nil
		}
		h.stats.Steps++
		switch st.Kind {
		case ir.Derive:
			h.derive(ctx, st.Target)
		case ir.Bind:
			h.runBinding(ctx, st.Target, epoch)
		}
	}
	h.s.logger.Debug().
		Str("component", h.Component()).
		Int("dirty", len(dirty)).
		Int("steps", len(steps)).
		Msg("flush")
	return nil
}

// runBinding updates every live instance of binding b that was not created
// by this flush.
func (h *Handle) runBinding(ctx context.Context, b int, epoch int) {
	if h.failed[b] {
		return
	}
	insts := append([]*instance(nil), h.instances[b]...)
	for _, inst := range insts {
		if inst.dead || inst.epoch == epoch {
			continue
		}
		h.stats.Runs[b]++
		if err := h.update(ctx, inst); err != nil {
			h.fail(b, err)
			return
		}
	}
}

func (h *Handle) update(ctx context.Context, inst *instance) error {
	b := &h.mod.Bindings[inst.binding]
	if b.Kind == ir.Structural {
		return h.updateBlock(ctx, inst)
	}
	v, err := h.call(ctx, b.Func, inst.scope.locals)
	if err != nil {
		return err
	}
	switch {
	case inst.child != nil:
		if inst.child.mounted {
			inst.child.set(inst.propID, v)
		}
	case b.Kind == ir.Text:
		if text := v.String(); text != inst.text {
			h.s.host.SetText(inst.node, text)
			inst.text = text
		}
	case b.Kind == ir.Attribute:
		inst.applyAttr(h.s.host, v)
	}
	return nil
}
