// Package scheduler mounts compiled components on a host and keeps the
// rendered output in sync with their state.
//
// Writes to component variables never run update code directly. They mark
// the variable dirty and the handle pending; the pending handles are
// flushed at the end of the current task (one call of Run, or one event
// dispatch). A flush unions the update lists of the dirty variables, runs
// each update instruction once in rank order and isolates faults to the
// binding that raised them.
//
// A Scheduler is not safe for concurrent use. Modules are immutable and may
// be shared by any number of schedulers and instances.
package scheduler

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/deepnoodle-ai/sme/bytecode"
	"github.com/deepnoodle-ai/sme/errors"
	"github.com/deepnoodle-ai/sme/host"
	"github.com/deepnoodle-ai/sme/ir"
	"github.com/deepnoodle-ai/sme/object"
	"github.com/deepnoodle-ai/sme/vm"
)

// Scheduler drives mounted component instances.
type Scheduler struct {
	host       host.Host
	logger     zerolog.Logger
	reporter   Reporter
	components map[string]*bytecode.Module
	vmOptions  []vm.Option

	pending []*Handle
	depth   int
	epoch   int
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithLogger sets the logger used for debug output and, unless a reporter
// is set, for fault reports.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Scheduler) {
		s.logger = logger
	}
}

// WithReporter sets the destination of runtime faults.
func WithReporter(r Reporter) Option {
	return func(s *Scheduler) {
		s.reporter = r
	}
}

// WithComponents registers modules that markup may reference by component
// name.
func WithComponents(mods ...*bytecode.Module) Option {
	return func(s *Scheduler) {
		for _, mod := range mods {
			s.components[mod.Meta.Component] = mod
		}
	}
}

// WithVMOptions sets options for the virtual machines of mounted instances.
func WithVMOptions(opts ...vm.Option) Option {
	return func(s *Scheduler) {
		s.vmOptions = append(s.vmOptions, opts...)
	}
}

// New returns a scheduler rendering through h.
func New(h host.Host, opts ...Option) *Scheduler {
	s := &Scheduler{
		host:       h,
		logger:     zerolog.Nop(),
		components: map[string]*bytecode.Module{},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.reporter == nil {
		s.reporter = NewLogReporter(s.logger)
	}
	return s
}

// Register makes a module available to component references.
func (s *Scheduler) Register(mod *bytecode.Module) {
	s.components[mod.Meta.Component] = mod
}

// Host returns the host the scheduler renders through.
func (s *Scheduler) Host() host.Host {
	return s.host
}

type mountConfig struct {
	props map[string]any
}

// MountOption configures Mount.
type MountOption func(*mountConfig)

// WithProps sets initial prop values. Values are converted with
// object.FromGoType.
func WithProps(props map[string]any) MountOption {
	return func(c *mountConfig) {
		c.props = props
	}
}

// Mount creates an instance of mod and renders it as the children of
// target. The instance owns the children of target it creates; target
// should be empty.
func (s *Scheduler) Mount(ctx context.Context, mod *bytecode.Module, target host.Node, opts ...MountOption) (*Handle, error) {
	cfg := &mountConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	props := map[string]object.Object{}
	for name, value := range cfg.props {
		obj, err := object.FromGoType(value)
		if err != nil {
			return nil, fmt.Errorf("prop %q: %w", name, err)
		}
		props[name] = obj
	}
	h := s.newHandle(mod, nil)
	r := &region{parent: target}
	if err := h.mount(ctx, r, props, nil); err != nil {
		h.teardown()
		r.clear(s.host)
		return nil, err
	}
	return h, nil
}

// Unmount removes the rendered output of a root instance and discards its
// pending updates. Child instances are unmounted with their parent.
func (s *Scheduler) Unmount(h *Handle) error {
	if h.parent != nil {
		return fmt.Errorf("%s is a child component; unmount its root instead", h.Component())
	}
	if !h.mounted {
		return nil
	}
	h.teardown()
	h.region.clear(s.host)
	s.unschedule(h)
	return nil
}

// Write assigns a mutable variable. The update is deferred to the next
// flush.
func (s *Scheduler) Write(h *Handle, id int, value object.Object) error {
	if !h.mounted {
		return fmt.Errorf("%s is not mounted", h.Component())
	}
	if id < 0 || id >= len(h.mod.Vars) {
		return fmt.Errorf("%s has no variable with id %d", h.Component(), id)
	}
	if kind := h.mod.Vars[id].Kind; kind != ir.Mutable {
		return fmt.Errorf("cannot write %s value '%s'", kind, h.mod.VarName(id))
	}
	h.set(id, value)
	return nil
}

// WriteNamed assigns the named mutable variable.
func (s *Scheduler) WriteNamed(h *Handle, name string, value object.Object) error {
	id, ok := h.mod.VarID(name)
	if !ok {
		return fmt.Errorf("%s has no variable '%s'", h.Component(), name)
	}
	return s.Write(h, id, value)
}

// Flush runs the pending updates of h, then those of its descendants that
// became pending as a result.
func (s *Scheduler) Flush(ctx context.Context, h *Handle) error {
	s.unschedule(h)
	if err := h.flush(ctx); err != nil {
		return err
	}
	for {
		var next *Handle
		for _, p := range s.pending {
			if p.descendantOf(h) {
				next = p
				break
			}
		}
		if next == nil {
			return nil
		}
		s.unschedule(next)
		if err := next.flush(ctx); err != nil {
			return err
		}
	}
}

// Run executes task as one tick: writes made by the task are flushed when
// it returns. Nested calls flush when the outermost returns. The task's
// error is returned after the flush.
func (s *Scheduler) Run(ctx context.Context, task func(ctx context.Context) error) error {
	s.depth++
	err := func() error {
		defer func() { s.depth-- }()
		return task(ctx)
	}()
	if s.depth > 0 {
		return err
	}
	if ferr := s.flushPending(ctx); err == nil {
		err = ferr
	}
	return err
}

// Dispatch runs the named handler of h as a task.
func (s *Scheduler) Dispatch(ctx context.Context, h *Handle, handler string, args ...object.Object) error {
	fn, ok := h.mod.FuncIndex(handler)
	if !ok || h.mod.Funcs[fn].Kind != ir.Handler {
		return errors.Faultf(errors.E3006, "%s has no handler '%s'", h.Component(), handler)
	}
	return s.Run(ctx, func(ctx context.Context) error {
		return h.callHandler(ctx, fn, args)
	})
}

// Pending reports whether any instance has unflushed writes.
func (s *Scheduler) Pending() bool {
	return len(s.pending) > 0
}

// flushPending flushes pending handles in the order they became pending.
// Handles made pending by a flush, such as children receiving new props,
// are flushed in the same call.
func (s *Scheduler) flushPending(ctx context.Context) error {
	for len(s.pending) > 0 {
		h := s.pending[0]
		s.pending = s.pending[1:]
		h.scheduled = false
		if err := h.flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Scheduler) schedule(h *Handle) {
	if h.scheduled {
		return
	}
	h.scheduled = true
	s.pending = append(s.pending, h)
}

func (s *Scheduler) unschedule(h *Handle) {
	if !h.scheduled {
		return
	}
	h.scheduled = false
	for i, p := range s.pending {
		if p == h {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			return
		}
	}
}

func (h *Handle) descendantOf(ancestor *Handle) bool {
	for p := h.parent; p != nil; p = p.parent {
		if p == ancestor {
			return true
		}
	}
	return false
}
