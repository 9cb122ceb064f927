// Package ast defines the tree representation of a component: its logic
// block, its markup tree, and its opaque style payload.
package ast

import (
	"strings"

	"github.com/deepnoodle-ai/sme/internal/token"
)

// Node represents a portion of the syntax tree. All nodes have position
// information indicating where they appear in the source code.
type Node interface {
	// Pos returns the position of the first character belonging to the node.
	Pos() token.Position

	// End returns the position of the first character immediately after the node.
	End() token.Position

	// String returns a human friendly representation of the Node. This should
	// be similar to the original source code, but not necessarily identical.
	String() string
}

// Stmt represents a statement node in the logic block.
type Stmt interface {
	Node
	stmtNode()
}

// Expr represents an expression node. Expressions evaluate to a value
// and may be embedded within other expressions.
type Expr interface {
	Node
	exprNode()
}

// Markup represents a node of the markup tree.
type Markup interface {
	Node
	markupNode()
}

// BadExpr represents an expression containing syntax errors.
// It is used by the parser to continue parsing after an error,
// allowing subsequent errors to be detected without giving up.
type BadExpr struct {
	From token.Position // start of bad expression
	To   token.Position // end of bad expression
}

func (x *BadExpr) exprNode() {}

func (x *BadExpr) Pos() token.Position { return x.From }
func (x *BadExpr) End() token.Position { return x.To }
func (x *BadExpr) String() string      { return "<bad expression>" }

// BadStmt represents a statement containing syntax errors.
type BadStmt struct {
	From token.Position // start of bad statement
	To   token.Position // end of bad statement
}

func (x *BadStmt) stmtNode() {}

func (x *BadStmt) Pos() token.Position { return x.From }
func (x *BadStmt) End() token.Position { return x.To }
func (x *BadStmt) String() string      { return "<bad statement>" }

// Component is the root of a parsed component file. It holds exactly one
// logic block, one markup tree and one style payload.
type Component struct {
	Name   string
	File   string
	Source string
	Logic  *Logic
	Markup *Root
	Style  *Style
}

func (c *Component) Pos() token.Position { return token.Position{File: c.File} }
func (c *Component) End() token.Position {
	if c.Markup != nil {
		return c.Markup.End()
	}
	return c.Pos()
}

func (c *Component) String() string {
	var out strings.Builder
	out.WriteString("<script>\n")
	if c.Logic != nil {
		out.WriteString(c.Logic.String())
	}
	out.WriteString("</script>\n<template>")
	if c.Markup != nil {
		out.WriteString(c.Markup.String())
	}
	out.WriteString("</template>\n<style>")
	if c.Style != nil {
		out.WriteString(c.Style.Content)
	}
	out.WriteString("</style>\n")
	return out.String()
}

// Logic is the ordered sequence of declarations and statements found in the
// component's script section.
type Logic struct {
	Start token.Position
	Stmts []Stmt
}

func (l *Logic) Pos() token.Position { return l.Start }
func (l *Logic) End() token.Position {
	if len(l.Stmts) > 0 {
		return l.Stmts[len(l.Stmts)-1].End()
	}
	return l.Start
}

func (l *Logic) String() string {
	var out strings.Builder
	for _, s := range l.Stmts {
		out.WriteString(s.String())
		out.WriteString("\n")
	}
	return out.String()
}

// Style is the opaque style payload. It is never parsed.
type Style struct {
	Start   token.Position
	Content string
}

func (s *Style) Pos() token.Position { return s.Start }
func (s *Style) End() token.Position { return s.Start.Advance(len(s.Content)) }
func (s *Style) String() string      { return s.Content }
