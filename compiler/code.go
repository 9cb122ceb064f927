package compiler

import (
	"github.com/deepnoodle-ai/sme/ast"
	"github.com/deepnoodle-ai/sme/errors"
	"github.com/deepnoodle-ai/sme/graph"
	"github.com/deepnoodle-ai/sme/internal/token"
	"github.com/deepnoodle-ai/sme/ir"
	"github.com/deepnoodle-ai/sme/object"
	"github.com/deepnoodle-ai/sme/op"
)

// funcBuilder accumulates the instructions of one function or fragment.
type funcBuilder struct {
	c      *compiler
	code   []ir.Instr
	labels int
}

func (c *compiler) newFunc() *funcBuilder {
	return &funcBuilder{c: c}
}

func (f *funcBuilder) emit(pos token.Position, code op.Code, args ...ir.Operand) {
	f.code = append(f.code, ir.Instr{Op: code, Args: args, Pos: pos})
}

func (f *funcBuilder) newLabel() int {
	f.labels++
	return f.labels
}

func (f *funcBuilder) mark(label int) {
	f.code = append(f.code, ir.Instr{Label: label})
}

// emitValue pushes a constant value. It reports false for values that
// cannot be pooled, such as lists.
func (f *funcBuilder) emitValue(pos token.Position, obj object.Object) bool {
	switch v := obj.(type) {
	case *object.NilType:
		f.emit(pos, op.Nil)
	case *object.Bool:
		if v.Value() {
			f.emit(pos, op.True)
		} else {
			f.emit(pos, op.False)
		}
	default:
		k, ok := ir.FromObject(obj)
		if !ok {
			return false
		}
		f.emit(pos, op.LoadConst, ir.ConstOf(k))
	}
	return true
}

func (f *funcBuilder) expr(node ast.Expr) {
	if obj, ok := f.c.fold(node); ok && f.emitValue(node.Pos(), obj) {
		return
	}
	pos := node.Pos()
	switch node := node.(type) {
	case *ast.Int:
		f.emit(pos, op.LoadConst, ir.ConstOf(ir.Int(node.Value)))
	case *ast.Float:
		f.emit(pos, op.LoadConst, ir.ConstOf(ir.Float(node.Value)))
	case *ast.String:
		f.emit(pos, op.LoadConst, ir.ConstOf(ir.String(node.Value)))
	case *ast.Bool:
		f.emitValue(pos, object.NewBool(node.Value))
	case *ast.Nil:
		f.emit(pos, op.Nil)
	case *ast.Ident:
		f.load(node)
	case *ast.List:
		for _, item := range node.Items {
			f.expr(item)
		}
		f.emit(pos, op.BuildList, ir.Imm(len(node.Items)))
	case *ast.Prefix:
		f.expr(node.X)
		if node.Op == "!" {
			f.emit(pos, op.UnaryNot)
		} else {
			f.emit(pos, op.UnaryNegative)
		}
	case *ast.Infix:
		f.infix(node)
	case *ast.Ternary:
		elseLabel, end := f.newLabel(), f.newLabel()
		f.expr(node.Cond)
		f.emit(pos, op.PopJumpForwardIfFalse, ir.LabelRef(elseLabel))
		f.expr(node.Consequence)
		f.emit(pos, op.JumpForward, ir.LabelRef(end))
		f.mark(elseLabel)
		f.expr(node.Alternative)
		f.mark(end)
	case *ast.Index:
		f.expr(node.X)
		f.expr(node.Index)
		f.emit(node.Lbrack, op.BinarySubscr)
	case *ast.Call:
		f.call(node)
	default:
		f.c.defect(errors.E4003, "cannot compile %T at %d:%d", node, pos.LineNumber(), pos.ColumnNumber())
	}
}

func (f *funcBuilder) infix(node *ast.Infix) {
	pos := node.OpPos
	switch node.Op {
	case "&&", "||", "??":
		// Short circuit: the left value is the result unless the right
		// side has to be evaluated.
		jump := op.PopJumpForwardIfFalse
		if node.Op == "||" {
			jump = op.PopJumpForwardIfTrue
		} else if node.Op == "??" {
			jump = op.PopJumpForwardIfNotNil
		}
		end := f.newLabel()
		f.expr(node.X)
		f.emit(pos, op.Copy, ir.Imm(0))
		f.emit(pos, jump, ir.LabelRef(end))
		f.emit(pos, op.PopTop)
		f.expr(node.Y)
		f.mark(end)
		return
	}
	f.expr(node.X)
	f.expr(node.Y)
	if bop, ok := op.BinaryOps[node.Op]; ok {
		f.emit(pos, op.BinaryOp, ir.Imm(int(bop)))
	} else if cop, ok := op.CompareOps[node.Op]; ok {
		f.emit(pos, op.CompareOp, ir.Imm(int(cop)))
	} else {
		f.c.defect(errors.E4003, "unknown operator %q", node.Op)
	}
}

func (f *funcBuilder) call(node *ast.Call) {
	for _, arg := range node.Args {
		f.expr(arg)
	}
	r := f.c.ref(node.Fn)
	switch r.Kind {
	case graph.RefBuiltin:
		f.emit(node.Pos(), op.CallBuiltin, ir.ConstOf(ir.String(r.Name)), ir.Imm(len(node.Args)))
	case graph.RefHandler:
		f.emit(node.Pos(), op.CallFunc, ir.FuncRef(r.Name), ir.Imm(len(node.Args)))
	default:
		f.c.defect(errors.E4003, "%q is not callable", node.Fn.Name)
	}
}

func (f *funcBuilder) load(id *ast.Ident) {
	r := f.c.ref(id)
	switch r.Kind {
	case graph.RefLocal:
		f.emit(id.Pos(), op.LoadLocal, ir.LocalRef(r.ID))
	case graph.RefVar:
		f.emit(id.Pos(), op.LoadVar, ir.VarRef(r.Name))
	default:
		f.c.defect(errors.E4003, "%q is not a value", id.Name)
	}
}

func (f *funcBuilder) store(id *ast.Ident) {
	r := f.c.ref(id)
	switch r.Kind {
	case graph.RefLocal:
		f.emit(id.Pos(), op.StoreLocal, ir.LocalRef(r.ID))
	case graph.RefVar:
		f.emit(id.Pos(), op.StoreVar, ir.VarRef(r.Name))
	default:
		f.c.defect(errors.E4003, "cannot store to %q", id.Name)
	}
}

func (f *funcBuilder) stmts(stmts []ast.Stmt) {
	for _, stmt := range stmts {
		f.stmt(stmt)
	}
}

func (f *funcBuilder) stmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.VarDecl:
		if s.Value != nil {
			f.expr(s.Value)
		} else {
			f.emit(s.Pos(), op.Nil)
		}
		f.store(s.Name)
	case *ast.Assign:
		if s.Op == "=" {
			f.expr(s.Value)
		} else {
			f.load(s.Name)
			f.expr(s.Value)
			bop := op.BinaryOps[s.Op[:len(s.Op)-1]]
			f.emit(s.OpPos, op.BinaryOp, ir.Imm(int(bop)))
		}
		f.store(s.Name)
	case *ast.If:
		f.ifStmt(s)
	case *ast.For:
		loop, end := f.newLabel(), f.newLabel()
		f.expr(s.Iterable)
		f.emit(s.Pos(), op.GetIter)
		f.mark(loop)
		f.emit(s.Pos(), op.ForIter, ir.LabelRef(end))
		f.store(s.Value)
		if s.Index != nil {
			f.store(s.Index)
		} else {
			f.emit(s.Pos(), op.PopTop)
		}
		f.stmts(s.Body.Stmts)
		f.emit(s.Pos(), op.JumpBackward, ir.LabelRef(loop))
		f.mark(end)
	case *ast.ExprStmt:
		f.call(s.X)
		f.emit(s.Pos(), op.PopTop)
	case *ast.Return:
		f.emit(s.Pos(), op.Nil)
		f.emit(s.Pos(), op.ReturnValue)
	case *ast.Block:
		f.stmts(s.Stmts)
	}
}

func (f *funcBuilder) ifStmt(s *ast.If) {
	if f.c.level >= 2 {
		if obj, ok := f.c.fold(s.Cond); ok {
			if obj.IsTruthy() {
				f.stmts(s.Consequence.Stmts)
			} else if s.Alternative != nil {
				f.stmt(s.Alternative)
			}
			return
		}
	}
	elseLabel := f.newLabel()
	f.expr(s.Cond)
	f.emit(s.Pos(), op.PopJumpForwardIfFalse, ir.LabelRef(elseLabel))
	f.stmts(s.Consequence.Stmts)
	if s.Alternative == nil {
		f.mark(elseLabel)
		return
	}
	end := f.newLabel()
	f.emit(s.Pos(), op.JumpForward, ir.LabelRef(end))
	f.mark(elseLabel)
	f.stmt(s.Alternative)
	f.mark(end)
}
