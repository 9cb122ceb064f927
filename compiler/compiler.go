// Package compiler generates the IR of a component from its syntax tree and
// its dependency graph.
//
// # Optimization levels
//
// Level 0 translates the tree as written. Level 1 folds expressions over
// literals and constants, prunes conditional branches whose condition folds,
// eliminates derived values that nothing reads and pools fully static
// element subtrees. Level 2 also prunes constant conditions in handler and
// init code and drops constants that are no longer read after folding.
//
// # Functions
//
// Every piece of code becomes an IR function: variable initializers, derived
// values, handlers, the init function, and one pure function per binding
// expression. Binding functions take the enclosing each variables as
// parameters, outer to inner.
package compiler

import (
	"fmt"

	"github.com/deepnoodle-ai/sme/ast"
	"github.com/deepnoodle-ai/sme/errors"
	"github.com/deepnoodle-ai/sme/graph"
	"github.com/deepnoodle-ai/sme/ir"
	"github.com/deepnoodle-ai/sme/object"
	"github.com/deepnoodle-ai/sme/op"
)

// MaxLevel is the highest supported optimization level.
const MaxLevel = 2

// InitFunc is the name of the function holding the top-level statements.
const InitFunc = "#init"

// Config holds compiler configuration options.
type Config struct {
	// Level is the optimization level, 0 to MaxLevel.
	Level int

	// BuildID is recorded in the program. The emitter generates one when it
	// is empty.
	BuildID string
}

type compiler struct {
	g     *graph.Graph
	level int

	// consts holds the folded values of constants, by variable id.
	consts map[int]object.Object

	prog     *ir.Program
	bindings map[int]int // graph binding id -> IR binding index
	exprs    []*ir.Func  // binding functions, in creation order

	byAttr map[*ast.Attribute]*graph.Binding
	byNode map[ast.Markup]*graph.Binding

	// Set on the first internal failure. Code generation continues so the
	// failure does not have to be threaded through every helper.
	failure error
}

// Compile generates the IR of the component analysed by g. Pass nil for cfg
// to use defaults.
func Compile(g *graph.Graph, cfg *Config) (*ir.Program, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Level < 0 || cfg.Level > MaxLevel {
		return nil, fmt.Errorf("compile error: invalid optimization level %d (expected 0-%d)", cfg.Level, MaxLevel)
	}
	comp := g.Component
	c := &compiler{
		g:        g,
		level:    cfg.Level,
		consts:   map[int]object.Object{},
		bindings: map[int]int{},
		prog: &ir.Program{
			Component: comp.Name,
			Filename:  comp.File,
			BuildID:   cfg.BuildID,
			Updates:   map[string][]ir.Step{},
		},
	}
	if comp.Style != nil {
		c.prog.Style = comp.Style.Content
	}
	c.indexBindings()
	c.foldConstants()

	// Markup first: it decides which bindings survive pruning.
	root := &ir.Fragment{}
	c.prog.Fragments = append(c.prog.Fragments, root)
	if comp.Markup != nil {
		root.Code = c.fragment(comp.Markup.Children, comp.Markup.Pos())
	}

	var funcs []*ir.Func
	for _, v := range g.Vars {
		iv := &ir.Var{Name: v.Name, Kind: ir.VarKind(v.Kind), Prop: v.Prop}
		if v.Decl.Value != nil {
			fn := c.initializer(v)
			iv.Init = fn.Name
			funcs = append(funcs, fn)
		}
		c.prog.Vars = append(c.prog.Vars, iv)
	}
	for _, h := range g.Handlers {
		funcs = append(funcs, c.handler(h))
	}
	if g.Init != nil {
		funcs = append(funcs, c.initFunc(g.Init))
		c.prog.Init = InitFunc
	}
	c.prog.Funcs = append(funcs, c.exprs...)
	if c.failure != nil {
		return nil, c.failure
	}

	c.eliminateUnread()
	c.updates()
	return c.prog, nil
}

// defect records an internal failure.
func (c *compiler) defect(code errors.ErrorCode, format string, args ...any) {
	if c.failure == nil {
		c.failure = errors.CodegenErrorf(code, format, args...)
	}
}

func initName(v *graph.Variable) string {
	if v.Kind == graph.Derived {
		return v.Name + ".derive"
	}
	return v.Name + ".init"
}

func (c *compiler) initializer(v *graph.Variable) *ir.Func {
	f := c.newFunc()
	f.expr(v.Decl.Value)
	f.emit(v.Decl.Value.Pos(), op.ReturnValue)
	return &ir.Func{Name: initName(v), Kind: ir.Expr, Code: f.code}
}

func (c *compiler) handler(h *graph.Func) *ir.Func {
	f := c.newFunc()
	f.stmts(h.Body)
	f.emit(h.Decl.Body.End(), op.Nil)
	f.emit(h.Decl.Body.End(), op.ReturnValue)
	return &ir.Func{
		Name:      h.Name,
		Kind:      ir.Handler,
		NumParams: len(h.Params),
		NumLocals: h.NumLocals,
		Code:      f.code,
	}
}

func (c *compiler) initFunc(fn *graph.Func) *ir.Func {
	f := c.newFunc()
	f.stmts(fn.Body)
	end := fn.Body[len(fn.Body)-1].End()
	f.emit(end, op.Nil)
	f.emit(end, op.ReturnValue)
	return &ir.Func{Name: InitFunc, Kind: ir.Init, NumLocals: fn.NumLocals, Code: f.code}
}

// eliminateUnread drops derived values (level 1) and constants (level 2)
// that no remaining code loads, repeating until nothing changes.
func (c *compiler) eliminateUnread() {
	if c.level < 1 {
		return
	}
	dropped := map[string]bool{}
	for {
		loads := map[string]int{}
		for _, fn := range c.prog.Funcs {
			if dropped[fn.Name] {
				continue
			}
			for _, instr := range fn.Code {
				if instr.Op == op.LoadVar {
					loads[instr.Args[0].Name]++
				}
			}
		}
		changed := false
		for _, v := range c.prog.Vars {
			if v.Init == "" || dropped[v.Init] || loads[v.Name] > 0 {
				continue
			}
			if v.Kind == ir.Derived || (v.Kind == ir.ConstantVar && c.level >= 2) {
				dropped[v.Init] = true
				changed = true
			}
		}
		if !changed {
			break
		}
	}
	if len(dropped) == 0 {
		return
	}
	var vars []*ir.Var
	for _, v := range c.prog.Vars {
		if v.Init == "" || !dropped[v.Init] {
			vars = append(vars, v)
		}
	}
	var funcs []*ir.Func
	for _, fn := range c.prog.Funcs {
		if !dropped[fn.Name] {
			funcs = append(funcs, fn)
		}
	}
	c.prog.Vars = vars
	c.prog.Funcs = funcs
}

// updates fills the update table and the derived evaluation order from the
// graph, keeping only surviving variables and bindings.
func (c *compiler) updates() {
	kept := map[string]bool{}
	for _, v := range c.prog.Vars {
		kept[v.Name] = true
	}
	for _, v := range c.g.Vars {
		if !kept[v.Name] {
			continue
		}
		var steps []ir.Step
		for _, n := range c.g.UpdateList(v.ID) {
			if n.Kind == graph.VarNode {
				dv := c.g.Vars[n.ID]
				if kept[dv.Name] {
					steps = append(steps, ir.Step{Kind: ir.Derive, Var: dv.Name, Rank: dv.Rank})
				}
				continue
			}
			if idx, ok := c.bindings[n.ID]; ok {
				steps = append(steps, ir.Step{Kind: ir.Bind, Binding: idx, Rank: c.g.Bindings[n.ID].Rank})
			}
		}
		if len(steps) > 0 {
			c.prog.Updates[v.Name] = steps
		}
	}
	for _, id := range c.g.DeriveOrder() {
		if name := c.g.Vars[id].Name; kept[name] {
			c.prog.DeriveOrder = append(c.prog.DeriveOrder, name)
		}
	}
}

// ref returns the resolution of id or aborts on a dangling reference.
func (c *compiler) ref(id *ast.Ident) graph.Ref {
	r, ok := c.g.Refs[id]
	if !ok {
		c.defect(errors.E4003, "unresolved identifier %q at %d:%d", id.Name, id.Pos().LineNumber(), id.Pos().ColumnNumber())
	}
	return r
}
