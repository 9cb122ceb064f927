package graph

import (
	"fmt"

	"github.com/deepnoodle-ai/sme/ast"
	"github.com/deepnoodle-ai/sme/builtins"
	"github.com/deepnoodle-ai/sme/errors"
	"github.com/deepnoodle-ai/sme/internal/token"
)

// Option configures Build.
type Option func(*builder)

// WithGlobals sets the table used to resolve component references.
func WithGlobals(globals *Globals) Option {
	return func(b *builder) {
		b.globals = globals
	}
}

type builder struct {
	comp    *ast.Component
	globals *Globals
	g       *Graph
	errs    *errors.List
}

// Build analyses a parsed component. Binding errors are collected for the
// whole component; a cycle among derived values is reported on its own.
func Build(comp *ast.Component, opts ...Option) (*Graph, error) {
	b := &builder{
		comp: comp,
		g: &Graph{
			Component: comp,
			Refs:      map[*ast.Ident]Ref{},
			byName:    map[string]*Variable{},
			readers:   map[int][]Node{},
		},
		errs: &errors.List{},
	}
	for _, opt := range opts {
		opt(b)
	}
	b.declare()
	b.resolveVars()
	for _, h := range b.g.Handlers {
		b.resolveFunc(h, false)
	}
	if b.g.Init != nil {
		b.resolveFunc(b.g.Init, true)
	}
	if comp.Markup != nil {
		b.walkMarkup(comp.Markup.Children, markupCtx{parent: -1, loop: -1})
	}
	if b.errs.HasErrors() {
		return nil, b.errs.ToError()
	}
	if err := b.checkCycles(); err != nil {
		return nil, err
	}
	if err := b.order(); err != nil {
		return nil, err
	}
	return b.g, nil
}

func (b *builder) loc(pos token.Position) errors.SourceLocation {
	return errors.At(pos, b.comp.Source)
}

func (b *builder) bindingError(code errors.ErrorCode, id *ast.Ident, candidates []string, format string, args ...any) *errors.BindingError {
	err := errors.NewBindingError(code, b.loc(id.Pos()), format, args...)
	err.Name = id.Name
	if candidates != nil {
		err.Suggestions = errors.SuggestSimilar(id.Name, candidates)
	}
	b.errs.Add(err)
	return err
}

func (b *builder) errorAt(code errors.ErrorCode, pos token.Position, format string, args ...any) {
	b.errs.Add(errors.NewBindingError(code, b.loc(pos), format, args...))
}

func declKind(k ast.DeclKind) Kind {
	switch k {
	case ast.DeclDerived:
		return Derived
	case ast.DeclConst:
		return Constant
	}
	return Mutable
}

// declare fills the symbol table from the logic block.
func (b *builder) declare() {
	if b.comp.Logic == nil {
		return
	}
	var initBody []ast.Stmt
	for _, stmt := range b.comp.Logic.Stmts {
		switch s := stmt.(type) {
		case *ast.VarDecl:
			if b.redeclared(s.Name) {
				continue
			}
			v := &Variable{
				ID:   len(b.g.Vars),
				Name: s.Name.Name,
				Kind: declKind(s.Kind),
				Prop: s.Kind == ast.DeclProp,
				Decl: s,
				Rank: -1,
			}
			b.g.Vars = append(b.g.Vars, v)
			b.g.byName[v.Name] = v
			b.g.Refs[s.Name] = Ref{Kind: RefVar, ID: v.ID, Name: v.Name}
		case *ast.FuncDecl:
			if b.redeclared(s.Name) {
				continue
			}
			if _, ok := builtins.Lookup(s.Name.Name); ok {
				b.bindingError(errors.E2006, s.Name, nil, "handler '%s' has the same name as a builtin function", s.Name.Name)
				continue
			}
			h := &Func{
				ID:     len(b.g.Handlers),
				Name:   s.Name.Name,
				Decl:   s,
				Params: s.Params,
				Body:   s.Body.Stmts,
			}
			b.g.Handlers = append(b.g.Handlers, h)
			b.g.Refs[s.Name] = Ref{Kind: RefHandler, ID: h.ID, Name: h.Name}
		case *ast.BadStmt:
		default:
			initBody = append(initBody, stmt)
		}
	}
	if len(initBody) > 0 {
		b.g.Init = &Func{ID: -1, Name: "init", Body: initBody}
	}
}

func (b *builder) redeclared(id *ast.Ident) bool {
	var prev token.Position
	if v, ok := b.g.byName[id.Name]; ok {
		prev = v.Decl.Pos()
	} else if h, ok := b.g.Handler(id.Name); ok {
		prev = h.Decl.Pos()
	} else {
		return false
	}
	err := b.bindingError(errors.E2006, id, nil, "'%s' is already declared", id.Name)
	err.Note = fmt.Sprintf("'%s' was first declared on line %d", id.Name, prev.LineNumber())
	return true
}

func (b *builder) varNames() []string {
	names := make([]string, 0, len(b.g.Vars))
	for _, v := range b.g.Vars {
		names = append(names, v.Name)
	}
	return names
}

func (b *builder) callableNames() []string {
	names := builtins.Names()
	for _, h := range b.g.Handlers {
		names = append(names, h.Name)
	}
	return names
}

// resolveVars resolves every variable initializer. Initializers of let,
// prop and const declarations run once, in declaration order, so they may
// only read earlier declarations. Derived initializers may read any variable.
func (b *builder) resolveVars() {
	for _, v := range b.g.Vars {
		if v.Decl.Value == nil {
			continue
		}
		c := &exprCtx{pure: true, limit: -1, rec: &recorder{}}
		if v.Kind != Derived {
			c.limit = v.ID
		}
		if v.Kind == Mutable {
			c.noDerived = "in an initializer"
		}
		b.resolveExpr(v.Decl.Value, c)
		v.Reads = c.rec.ids
		for _, id := range v.Reads {
			if b.g.Vars[id].IsReactive() {
				v.Deps = append(v.Deps, id)
			}
		}
		switch {
		case v.Kind == Constant && len(v.Deps) > 0:
			err := b.bindingError(errors.E2003, v.Decl.Name, nil,
				"constant '%s' depends on reactive variable '%s'", v.Name, b.g.Vars[v.Deps[0]].Name)
			err.Hint = "declare it with 'derived' to recompute it when its inputs change"
		case v.Kind == Derived && len(v.Deps) == 0:
			err := b.bindingError(errors.E2004, v.Decl.Name, nil,
				"derived value '%s' does not depend on any reactive variable", v.Name)
			err.Hint = "declare it with 'const'"
		}
	}
}

// recorder collects the variables read or written by a piece of code.
type recorder struct {
	ids     []int
	writes  []int
	seen    map[int]bool
	written map[int]bool
}

func (r *recorder) read(id int) {
	if r.seen == nil {
		r.seen = map[int]bool{}
	}
	if !r.seen[id] {
		r.seen[id] = true
		r.ids = append(r.ids, id)
	}
}

func (r *recorder) write(id int) {
	if r.written == nil {
		r.written = map[int]bool{}
	}
	if !r.written[id] {
		r.written[id] = true
		r.writes = append(r.writes, id)
	}
}

// scope holds local names. Slots are assigned by the caller.
type scope struct {
	parent *scope
	names  map[string]int
}

func newScope(parent *scope) *scope {
	return &scope{parent: parent, names: map[string]int{}}
}

func (s *scope) lookup(name string) (int, bool) {
	for cur := s; cur != nil; cur = cur.parent {
		if slot, ok := cur.names[name]; ok {
			return slot, true
		}
	}
	return 0, false
}

func (s *scope) all() []string {
	var out []string
	for cur := s; cur != nil; cur = cur.parent {
		for name := range cur.names {
			out = append(out, name)
		}
	}
	return out
}

type exprCtx struct {
	scope *scope
	// pure forbids handler calls.
	pure bool
	// limit, when not negative, is the first variable id that may not be read.
	limit int
	// noDerived, when set, forbids reading derived values and completes the
	// error message.
	noDerived string
	rec       *recorder
}

func (b *builder) resolveExpr(expr ast.Expr, c *exprCtx) {
	switch e := expr.(type) {
	case *ast.Ident:
		b.resolveValue(e, c)
	case *ast.List:
		for _, item := range e.Items {
			b.resolveExpr(item, c)
		}
	case *ast.Prefix:
		b.resolveExpr(e.X, c)
	case *ast.Infix:
		b.resolveExpr(e.X, c)
		b.resolveExpr(e.Y, c)
	case *ast.Ternary:
		b.resolveExpr(e.Cond, c)
		b.resolveExpr(e.Consequence, c)
		b.resolveExpr(e.Alternative, c)
	case *ast.Index:
		b.resolveExpr(e.X, c)
		b.resolveExpr(e.Index, c)
	case *ast.Call:
		b.resolveCall(e, c)
	}
}

func (b *builder) resolveValue(id *ast.Ident, c *exprCtx) {
	if c.scope != nil {
		if slot, ok := c.scope.lookup(id.Name); ok {
			b.g.Refs[id] = Ref{Kind: RefLocal, ID: slot, Name: id.Name}
			return
		}
	}
	if v, ok := b.g.byName[id.Name]; ok {
		switch {
		case c.limit >= 0 && v.ID >= c.limit:
			b.bindingError(errors.E2001, id, nil, "'%s' is used before its declaration", id.Name)
		case c.noDerived != "" && v.Kind == Derived:
			b.bindingError(errors.E2001, id, nil, "derived value '%s' cannot be read %s", id.Name, c.noDerived)
		default:
			b.g.Refs[id] = Ref{Kind: RefVar, ID: v.ID, Name: v.Name}
			c.rec.read(v.ID)
		}
		return
	}
	if _, ok := b.g.Handler(id.Name); ok {
		b.bindingError(errors.E2007, id, nil, "handler '%s' cannot be used as a value", id.Name)
		return
	}
	if _, ok := builtins.Lookup(id.Name); ok {
		b.bindingError(errors.E2001, id, nil, "builtin function '%s' must be called", id.Name)
		return
	}
	candidates := b.varNames()
	if c.scope != nil {
		candidates = append(candidates, c.scope.all()...)
	}
	b.bindingError(errors.E2001, id, candidates, "undefined identifier '%s'", id.Name)
}

func (b *builder) resolveCall(call *ast.Call, c *exprCtx) {
	name := call.Fn.Name
	if h, ok := b.g.Handler(name); ok {
		switch {
		case c.pure:
			b.bindingError(errors.E2007, call.Fn, nil, "handler '%s' cannot be called from a pure expression", name)
		case len(call.Args) != len(h.Params):
			b.bindingError(errors.E2011, call.Fn, nil, "%s() takes %d arguments (%d given)", name, len(h.Params), len(call.Args))
		default:
			b.g.Refs[call.Fn] = Ref{Kind: RefHandler, ID: h.ID, Name: name}
		}
	} else if bi, ok := builtins.Lookup(name); ok {
		if err := bi.CheckArity(len(call.Args)); err != nil {
			b.bindingError(errors.E2011, call.Fn, nil, "%s() takes %s (%d given)", name, bi.ArityString(), len(call.Args))
		} else {
			b.g.Refs[call.Fn] = Ref{Kind: RefBuiltin, Name: name}
		}
	} else if _, isVar := b.g.byName[name]; isVar {
		b.bindingError(errors.E2002, call.Fn, nil, "'%s' is a variable, not a function", name)
	} else {
		b.bindingError(errors.E2002, call.Fn, b.callableNames(), "undefined function '%s'", name)
	}
	for _, arg := range call.Args {
		b.resolveExpr(arg, c)
	}
}

// funcState numbers the local slots of one function.
type funcState struct {
	fn     *Func
	init   bool
	rec    *recorder
	nslots int
}

func (b *builder) resolveFunc(fn *Func, init bool) {
	fs := &funcState{fn: fn, init: init, rec: &recorder{}}
	sc := newScope(nil)
	for _, p := range fn.Params {
		b.declareLocal(p, sc, fs)
	}
	b.resolveStmts(fn.Body, sc, fs)
	fn.NumLocals = fs.nslots
	fn.Reads = fs.rec.ids
	fn.Writes = fs.rec.writes
}

func (b *builder) declareLocal(id *ast.Ident, sc *scope, fs *funcState) {
	if _, ok := sc.names[id.Name]; ok {
		b.bindingError(errors.E2006, id, nil, "'%s' is already declared in this scope", id.Name)
	} else if _, ok := sc.lookup(id.Name); ok {
		b.bindingError(errors.E2010, id, nil, "'%s' shadows an outer local variable", id.Name)
	} else if _, ok := b.g.byName[id.Name]; ok {
		b.bindingError(errors.E2010, id, nil, "'%s' shadows the component variable '%s'", id.Name, id.Name)
	} else if _, ok := b.g.Handler(id.Name); ok {
		b.bindingError(errors.E2010, id, nil, "'%s' shadows the handler '%s'", id.Name, id.Name)
	}
	slot := fs.nslots
	fs.nslots++
	sc.names[id.Name] = slot
	b.g.Refs[id] = Ref{Kind: RefLocal, ID: slot, Name: id.Name}
}

func (b *builder) codeCtx(sc *scope, fs *funcState) *exprCtx {
	c := &exprCtx{scope: sc, limit: -1, rec: fs.rec}
	if fs.init {
		c.noDerived = "during initialization"
	}
	return c
}

func (b *builder) resolveStmts(stmts []ast.Stmt, sc *scope, fs *funcState) {
	for _, stmt := range stmts {
		b.resolveStmt(stmt, sc, fs)
	}
}

func (b *builder) resolveStmt(stmt ast.Stmt, sc *scope, fs *funcState) {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		if s.Value != nil {
			b.resolveExpr(s.Value, b.codeCtx(sc, fs))
		}
		b.declareLocal(s.Name, sc, fs)
	case *ast.Assign:
		b.resolveExpr(s.Value, b.codeCtx(sc, fs))
		b.resolveTarget(s, sc, fs)
	case *ast.If:
		b.resolveExpr(s.Cond, b.codeCtx(sc, fs))
		b.resolveStmts(s.Consequence.Stmts, newScope(sc), fs)
		if s.Alternative != nil {
			b.resolveStmt(s.Alternative, sc, fs)
		}
	case *ast.For:
		b.resolveExpr(s.Iterable, b.codeCtx(sc, fs))
		inner := newScope(sc)
		if s.Index != nil {
			b.declareLocal(s.Index, inner, fs)
		}
		b.declareLocal(s.Value, inner, fs)
		b.resolveStmts(s.Body.Stmts, inner, fs)
	case *ast.ExprStmt:
		b.resolveCall(s.X, b.codeCtx(sc, fs))
	case *ast.Return:
		if fs.init {
			b.errorAt(errors.E2012, s.Pos(), "return is only allowed inside a handler")
		}
	case *ast.Block:
		b.resolveStmts(s.Stmts, newScope(sc), fs)
	}
}

func (b *builder) resolveTarget(s *ast.Assign, sc *scope, fs *funcState) {
	name := s.Name.Name
	if slot, ok := sc.lookup(name); ok {
		b.g.Refs[s.Name] = Ref{Kind: RefLocal, ID: slot, Name: name}
		return
	}
	if v, ok := b.g.byName[name]; ok {
		switch v.Kind {
		case Derived:
			err := b.bindingError(errors.E2005, s.Name, nil, "cannot assign to derived value '%s'", name)
			err.Hint = "assign to the variables it is computed from instead"
		case Constant:
			b.bindingError(errors.E2005, s.Name, nil, "cannot assign to constant '%s'", name)
		default:
			b.g.Refs[s.Name] = Ref{Kind: RefVar, ID: v.ID, Name: name}
			if s.Op != "=" {
				fs.rec.read(v.ID)
			}
			fs.rec.write(v.ID)
		}
		return
	}
	if _, ok := b.g.Handler(name); ok {
		b.bindingError(errors.E2005, s.Name, nil, "cannot assign to handler '%s'", name)
		return
	}
	candidates := append(b.varNames(), sc.all()...)
	err := b.bindingError(errors.E2005, s.Name, candidates, "assignment to undeclared variable '%s'", name)
	if len(err.Suggestions) == 0 {
		err.Hint = fmt.Sprintf("declare it first with 'let %s'", name)
	}
}
