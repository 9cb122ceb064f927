package scheduler

import (
	"context"
	"fmt"

	"github.com/deepnoodle-ai/sme/bytecode"
	"github.com/deepnoodle-ai/sme/errors"
	"github.com/deepnoodle-ai/sme/host"
	"github.com/deepnoodle-ai/sme/ir"
	"github.com/deepnoodle-ai/sme/object"
	"github.com/deepnoodle-ai/sme/op"
)

// region is a contiguous run of children of one host node. Blocks,
// components and slots render into nested regions so their content can be
// replaced in place.
type region struct {
	parent  host.Node
	outer   *region
	owner   *entry
	entries []*entry
}

// entry is either a host node or a nested region.
type entry struct {
	node  host.Node
	inner *region
}

func (e *entry) size() int {
	if e.inner != nil {
		return e.inner.size()
	}
	return 1
}

func (r *region) size() int {
	n := 0
	for _, e := range r.entries {
		n += e.size()
	}
	return n
}

// base returns the child index of the first node of the region.
func (r *region) base() int {
	if r.outer == nil {
		return 0
	}
	n := r.outer.base()
	for _, e := range r.outer.entries {
		if e == r.owner {
			break
		}
		n += e.size()
	}
	return n
}

func (r *region) appendNode(h host.Host, n host.Node) {
	index := r.base() + r.size()
	r.entries = append(r.entries, &entry{node: n})
	h.InsertChild(r.parent, n, index)
}

func (r *region) appendRegion() *region {
	e := &entry{}
	e.inner = &region{parent: r.parent, outer: r, owner: e}
	r.entries = append(r.entries, e)
	return e.inner
}

// clear destroys every node of the region.
func (r *region) clear(h host.Host) {
	for _, e := range r.entries {
		if e.inner != nil {
			e.inner.clear(h)
			continue
		}
		h.DestroyNode(e.node)
	}
	r.entries = nil
}

// scope owns what one fragment rendering created: binding instances,
// listeners, child components and nested scopes. Destroying a scope
// releases all of it.
type scope struct {
	locals     []object.Object
	instances  []*instance
	children   []*scope
	components []*Handle
	listeners  []listener
}

type listener struct {
	node  host.Node
	event string
}

func (sc *scope) child(locals []object.Object) *scope {
	c := &scope{locals: locals}
	sc.children = append(sc.children, c)
	return c
}

// instance is one rendered occurrence of a binding. Bindings outside each
// blocks have at most one live instance.
type instance struct {
	h       *Handle
	binding int
	scope   *scope
	epoch   int
	dead    bool

	// text and attribute bindings
	node    host.Node
	text    string
	present bool

	// props
	child  *Handle
	propID int

	// structural bindings
	region  *region
	content *scope
	branch  int
}

func (s *Scheduler) destroyScope(sc *scope) {
	if sc == nil {
		return
	}
	for _, c := range sc.children {
		s.destroyScope(c)
	}
	for _, ch := range sc.components {
		ch.teardown()
	}
	for _, l := range sc.listeners {
		s.host.RemoveListener(l.node, l.event)
	}
	for _, inst := range sc.instances {
		s.destroyScope(inst.content)
		inst.h.removeInstance(inst)
		inst.dead = true
	}
	sc.children = nil
	sc.components = nil
	sc.listeners = nil
	sc.instances = nil
}

type openElement struct {
	node   host.Node
	region *region
}

type openComponent struct {
	child *Handle
	props map[string]object.Object
	slot  *slotContent
}

// slotContent is the children of a component reference. It is rendered
// by the child at its slot, in the scope of the parent.
type slotContent struct {
	h        *Handle
	fragment int
	scope    *scope
}

type renderer struct {
	s          *Scheduler
	h          *Handle
	sc         *scope
	region     *region
	elements   []openElement
	components []*openComponent
}

// render executes fragment frag of h's module into r. Faults of binding
// code are reported and isolated; the returned error is reserved for
// failures that leave the rendering incomplete.
func (s *Scheduler) render(ctx context.Context, h *Handle, frag int, sc *scope, r *region) error {
	if frag < 0 || frag >= len(h.mod.Fragments) {
		return errors.Faultf(errors.E3005, "fragment %d out of range", frag)
	}
	code := h.mod.Fragments[frag].Code
	rd := &renderer{s: s, h: h, sc: sc, region: r}
	for ip := 0; ip < len(code); {
		instr, err := bytecode.ReadInstruction(code, ip)
		if err != nil {
			return err
		}
		if err := rd.exec(ctx, instr); err != nil {
			return err
		}
		ip = instr.Next()
	}
	if len(rd.elements) > 0 || len(rd.components) > 0 {
		return errors.Faultf(errors.E3005, "fragment %d of %s leaves open nodes", frag, h.mod.Meta.Component)
	}
	return nil
}

func (rd *renderer) current() host.Node {
	if len(rd.elements) == 0 {
		return host.NoNode
	}
	return rd.elements[len(rd.elements)-1].node
}

func (rd *renderer) exec(ctx context.Context, instr bytecode.Instruction) error {
	s, h, mod := rd.s, rd.h, rd.h.mod
	args := instr.Operands
	switch instr.Op {
	case op.Nop:
	case op.OpenElement:
		n := s.host.CreateElement(mod.Name(args[0]))
		rd.region.appendNode(s.host, n)
		rd.elements = append(rd.elements, openElement{node: n, region: rd.region})
		rd.region = &region{parent: n}
	case op.CloseElement:
		if len(rd.elements) == 0 {
			return errors.Faultf(errors.E3005, "unbalanced CLOSE_ELEMENT")
		}
		top := rd.elements[len(rd.elements)-1]
		rd.elements = rd.elements[:len(rd.elements)-1]
		rd.region = top.region
	case op.StaticAttr:
		s.host.SetAttribute(rd.current(), mod.Name(args[0]), mod.Name(args[1]))
	case op.StaticText:
		rd.region.appendNode(s.host, s.host.CreateText(mod.Name(args[0])))
	case op.StaticTree:
		rd.region.appendNode(s.host, s.buildTree(mod.Constants[args[0]].Tree))
	case op.BindText:
		inst := rd.instance(args[0])
		if v, ok := h.evalBinding(ctx, inst); ok {
			inst.text = v.String()
		}
		inst.node = s.host.CreateText(inst.text)
		rd.region.appendNode(s.host, inst.node)
	case op.BindAttr:
		inst := rd.instance(args[0])
		inst.node = rd.current()
		if v, ok := h.evalBinding(ctx, inst); ok {
			inst.applyAttr(s.host, v)
		}
	case op.BindEvent:
		rd.bindEvent(args[0])
	case op.BindBlock:
		inst := rd.instance(args[0])
		inst.region = rd.region.appendRegion()
		inst.branch = -1
		if err := h.updateBlock(ctx, inst); err != nil {
			h.fail(inst.binding, err)
		}
	case op.OpenComponent:
		name := mod.Name(args[0])
		childMod, ok := s.components[name]
		if !ok {
			return errors.Faultf(errors.E3008, "component %q is not registered", name)
		}
		rd.components = append(rd.components, &openComponent{
			child: s.newHandle(childMod, h),
			props: map[string]object.Object{},
		})
	case op.StaticProp:
		oc, err := rd.openComponent()
		if err != nil {
			return err
		}
		oc.props[mod.Name(args[0])] = mod.Object(args[1])
	case op.BindProp:
		oc, err := rd.openComponent()
		if err != nil {
			return err
		}
		b := &mod.Bindings[args[0]]
		name := mod.Name(b.Name)
		id, ok := oc.child.mod.VarID(name)
		if !ok || !oc.child.mod.Vars[id].Prop {
			return errors.Faultf(errors.E3006, "component %s has no prop %q", oc.child.mod.Meta.Component, name)
		}
		inst := rd.instance(args[0])
		inst.child = oc.child
		inst.propID = id
		if v, ok := h.evalBinding(ctx, inst); ok {
			oc.props[name] = v
		}
	case op.SlotContent:
		oc, err := rd.openComponent()
		if err != nil {
			return err
		}
		oc.slot = &slotContent{h: h, fragment: args[0], scope: rd.sc}
	case op.CloseComponent:
		oc, err := rd.openComponent()
		if err != nil {
			return err
		}
		rd.components = rd.components[:len(rd.components)-1]
		rd.sc.components = append(rd.sc.components, oc.child)
		if err := oc.child.mount(ctx, rd.region.appendRegion(), oc.props, oc.slot); err != nil {
			return err
		}
	case op.Slot:
		sl := h.slot
		if sl == nil {
			return nil
		}
		content := rd.sc.child(sl.scope.locals)
		return s.render(ctx, sl.h, sl.fragment, content, rd.region.appendRegion())
	default:
		return errors.Faultf(errors.E3005, "%s is not a render instruction", op.GetInfo(instr.Op).Name)
	}
	return nil
}

func (rd *renderer) openComponent() (*openComponent, error) {
	if len(rd.components) == 0 {
		return nil, errors.Faultf(errors.E3005, "component instruction outside a component")
	}
	return rd.components[len(rd.components)-1], nil
}

// instance creates an instance of binding b in the current scope. Only
// bindings with dependencies are registered for updates.
func (rd *renderer) instance(b int) *instance {
	inst := &instance{
		h:       rd.h,
		binding: b,
		scope:   rd.sc,
		epoch:   rd.s.epoch,
		propID:  -1,
	}
	rd.sc.instances = append(rd.sc.instances, inst)
	if !rd.h.mod.Bindings[b].Static {
		rd.h.instances[b] = append(rd.h.instances[b], inst)
	}
	return inst
}

func (rd *renderer) bindEvent(b int) {
	s, h := rd.s, rd.h
	bnd := &h.mod.Bindings[b]
	node := rd.current()
	event := h.mod.Name(bnd.Name)
	fn := bnd.Func
	n := h.mod.Funcs[fn].NumParams
	if n > len(rd.sc.locals) {
		n = len(rd.sc.locals)
	}
	args := append([]object.Object(nil), rd.sc.locals[:n]...)
	s.host.AddListener(node, event, func(ctx context.Context) error {
		return s.Run(ctx, func(ctx context.Context) error {
			return h.callHandler(ctx, fn, args)
		})
	})
	rd.sc.listeners = append(rd.sc.listeners, listener{node: node, event: event})
}

func (s *Scheduler) buildTree(n *ir.StaticNode) host.Node {
	if n.IsText {
		return s.host.CreateText(n.Text)
	}
	el := s.host.CreateElement(n.Tag)
	for _, a := range n.Attrs {
		s.host.SetAttribute(el, a.Name, a.Value)
	}
	for i, c := range n.Children {
		s.host.InsertChild(el, s.buildTree(c), i)
	}
	return el
}

// applyAttr sets the attribute from v. Nil and false remove it and true
// sets it empty.
func (inst *instance) applyAttr(h host.Host, v object.Object) {
	name := inst.h.mod.Name(inst.h.mod.Bindings[inst.binding].Name)
	var value string
	present := true
	switch v := v.(type) {
	case *object.NilType:
		present = false
	case *object.Bool:
		present = v.Value()
	default:
		value = v.String()
	}
	switch {
	case present && (!inst.present || inst.text != value):
		h.SetAttribute(inst.node, name, value)
	case !present && inst.present:
		h.RemoveAttribute(inst.node, name)
	}
	inst.present = present
	inst.text = value
}

// updateBlock renders the content of a structural binding for the current
// values. A conditional block keeps its content when the chosen branch is
// unchanged; an each block renders its body again for every item.
func (h *Handle) updateBlock(ctx context.Context, inst *instance) error {
	b := &h.mod.Bindings[inst.binding]
	if h.failed[inst.binding] {
		return nil
	}
	if b.IsIf() {
		branch, err := h.chooseBranch(ctx, inst, b)
		if err != nil {
			return err
		}
		if branch == inst.branch && inst.content != nil {
			return nil
		}
		h.clearBlock(inst)
		inst.branch = branch
		if branch < 0 {
			return nil
		}
		inst.content = &scope{locals: inst.scope.locals}
		return h.s.render(ctx, h, b.Branches[branch].Fragment, inst.content, inst.region)
	}
	iterable, err := h.call(ctx, b.Func, inst.scope.locals)
	if err != nil {
		return err
	}
	iter, err := object.NewIterator(iterable)
	if err != nil {
		return err
	}
	h.clearBlock(inst)
	inst.content = &scope{locals: inst.scope.locals}
	for {
		index, item, ok := iter.Next()
		if !ok {
			break
		}
		locals := make([]object.Object, 0, len(inst.scope.locals)+2)
		locals = append(locals, inst.scope.locals...)
		locals = append(locals, item)
		if b.HasIndex {
			locals = append(locals, index)
		}
		if err := h.s.render(ctx, h, b.Body, inst.content.child(locals), inst.region); err != nil {
			return err
		}
	}
	return nil
}

func (h *Handle) clearBlock(inst *instance) {
	if inst.content != nil {
		h.s.destroyScope(inst.content)
		inst.content = nil
	}
	inst.region.clear(h.s.host)
}

func (h *Handle) chooseBranch(ctx context.Context, inst *instance, b *bytecode.Binding) (int, error) {
	for i, br := range b.Branches {
		if br.Cond < 0 {
			return i, nil
		}
		v, err := h.call(ctx, br.Cond, inst.scope.locals)
		if err != nil {
			return -1, err
		}
		if v.IsTruthy() {
			return i, nil
		}
	}
	return -1, nil
}

func bindingTarget(mod *bytecode.Module, b int) string {
	bnd := &mod.Bindings[b]
	if name := mod.Name(bnd.Name); name != "" {
		return fmt.Sprintf("binding %d (%s %s)", b, bnd.Kind, name)
	}
	return fmt.Sprintf("binding %d (%s)", b, bnd.Kind)
}
