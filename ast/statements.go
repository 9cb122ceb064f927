package ast

import (
	"strings"

	"github.com/deepnoodle-ai/sme/internal/token"
)

// DeclKind is the declared mutability of a variable.
type DeclKind int

const (
	// DeclLet declares a mutable variable.
	DeclLet DeclKind = iota
	// DeclProp declares a mutable variable that a parent component may set.
	DeclProp
	// DeclConst declares a constant.
	DeclConst
	// DeclDerived declares a value computed from other reactive variables.
	DeclDerived
)

func (k DeclKind) String() string {
	switch k {
	case DeclLet:
		return "let"
	case DeclProp:
		return "prop"
	case DeclConst:
		return "const"
	case DeclDerived:
		return "derived"
	default:
		return "unknown"
	}
}

// VarDecl declares a variable. Value may be nil for let and prop.
type VarDecl struct {
	KindPos token.Position
	Kind    DeclKind
	Name    *Ident
	Value   Expr
}

func (s *VarDecl) stmtNode() {}

func (s *VarDecl) Pos() token.Position { return s.KindPos }
func (s *VarDecl) End() token.Position {
	if s.Value != nil {
		return s.Value.End()
	}
	return s.Name.End()
}

func (s *VarDecl) String() string {
	out := s.Kind.String() + " " + s.Name.String()
	if s.Value != nil {
		out += " = " + s.Value.String()
	}
	return out
}

// FuncDecl declares a handler function.
type FuncDecl struct {
	Func   token.Position
	Name   *Ident
	Params []*Ident
	Body   *Block
}

func (s *FuncDecl) stmtNode() {}

func (s *FuncDecl) Pos() token.Position { return s.Func }
func (s *FuncDecl) End() token.Position { return s.Body.End() }

func (s *FuncDecl) String() string {
	params := make([]string, 0, len(s.Params))
	for _, p := range s.Params {
		params = append(params, p.Name)
	}
	return "function " + s.Name.Name + "(" + strings.Join(params, ", ") + ") " + s.Body.String()
}

// Assign assigns a value to a named variable. Op is "=", "+=", "-=", "*="
// or "/=".
type Assign struct {
	Name  *Ident
	OpPos token.Position
	Op    string
	Value Expr
}

func (s *Assign) stmtNode() {}

func (s *Assign) Pos() token.Position { return s.Name.Pos() }
func (s *Assign) End() token.Position { return s.Value.End() }

func (s *Assign) String() string {
	return s.Name.Name + " " + s.Op + " " + s.Value.String()
}

// If is a conditional statement. Alternative is either a *Block, an *If
// (for "else if") or nil.
type If struct {
	IfPos       token.Position
	Cond        Expr
	Consequence *Block
	Alternative Stmt
}

func (s *If) stmtNode() {}

func (s *If) Pos() token.Position { return s.IfPos }
func (s *If) End() token.Position {
	if s.Alternative != nil {
		return s.Alternative.End()
	}
	return s.Consequence.End()
}

func (s *If) String() string {
	out := "if " + s.Cond.String() + " " + s.Consequence.String()
	if s.Alternative != nil {
		out += " else " + s.Alternative.String()
	}
	return out
}

// For iterates over a list: for item in items { } or for i, item in items { }.
type For struct {
	ForPos   token.Position
	Index    *Ident // optional
	Value    *Ident
	Iterable Expr
	Body     *Block
}

func (s *For) stmtNode() {}

func (s *For) Pos() token.Position { return s.ForPos }
func (s *For) End() token.Position { return s.Body.End() }

func (s *For) String() string {
	vars := s.Value.Name
	if s.Index != nil {
		vars = s.Index.Name + ", " + vars
	}
	return "for " + vars + " in " + s.Iterable.String() + " " + s.Body.String()
}

// ExprStmt is a call used as a statement.
type ExprStmt struct {
	X *Call
}

func (s *ExprStmt) stmtNode() {}

func (s *ExprStmt) Pos() token.Position { return s.X.Pos() }
func (s *ExprStmt) End() token.Position { return s.X.End() }
func (s *ExprStmt) String() string      { return s.X.String() }

// Return exits a handler function.
type Return struct {
	ReturnPos token.Position
}

func (s *Return) stmtNode() {}

func (s *Return) Pos() token.Position { return s.ReturnPos }
func (s *Return) End() token.Position { return s.ReturnPos.Advance(6) }
func (s *Return) String() string      { return "return" }

// Block is a braced sequence of statements.
type Block struct {
	Lbrace token.Position
	Stmts  []Stmt
	Rbrace token.Position
}

func (s *Block) stmtNode() {}

func (s *Block) Pos() token.Position { return s.Lbrace }
func (s *Block) End() token.Position { return s.Rbrace.Advance(1) }

func (s *Block) String() string {
	var out strings.Builder
	out.WriteString("{ ")
	for i, stmt := range s.Stmts {
		if i > 0 {
			out.WriteString("; ")
		}
		out.WriteString(stmt.String())
	}
	out.WriteString(" }")
	return out.String()
}
