package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/deepnoodle-ai/sme/ast"
	"github.com/deepnoodle-ai/sme/errors"
	"github.com/deepnoodle-ai/sme/internal/token"
)

func (p *Parser) parseExpression(precedence int) ast.Expr {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > p.maxDepth {
		p.syntaxError(errors.E1009, p.curToken, "maximum nesting depth exceeded")
		return nil
	}

	prefix := p.prefixParseFns[p.curToken.Type]
	if prefix == nil {
		p.noPrefixParseFnError(p.curToken)
		return nil
	}
	left := prefix()
	if left == nil || p.hadNewError() {
		return nil
	}
	for !p.peekTokenIs(token.SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Type]
		if infix == nil {
			return left
		}
		p.nextToken()
		left = infix(left)
		if left == nil || p.hadNewError() {
			return nil
		}
	}
	return left
}

// parseEmbeddedExpr parses text[start:end] as a single expression. It is
// used for expressions that appear in markup.
func (p *Parser) parseEmbeddedExpr(start, end int) ast.Expr {
	p.startLexer(start, end)
	p.stmtErrorCount = p.errs.Count()
	p.eatNewlines()
	if p.curTokenIs(token.EOF) {
		p.syntaxErrorAt(errors.E1004, start, "expected an expression")
		return nil
	}
	expr := p.parseExpression(LOWEST)
	if expr == nil {
		return nil
	}
	p.skipPeekNewlines()
	if !p.peekTokenIs(token.EOF) {
		p.unexpectedAfter("expression")
		return nil
	}
	return expr
}

func (p *Parser) noPrefixParseFnError(t token.Token) {
	switch t.Type {
	case token.EOF, token.NEWLINE, token.SEMICOLON, token.RBRACE, token.RPAREN, token.RBRACKET, token.COMMA:
		p.syntaxError(errors.E1004, t, "expected an expression, found %s", tokenDescription(t))
	default:
		p.syntaxError(errors.E1001, t, "invalid syntax (unexpected %s)", tokenDescription(t))
	}
}

func (p *Parser) illegalToken() ast.Expr {
	if p.curErr != nil {
		p.lexError(p.curToken, p.curErr)
		return nil
	}
	p.syntaxError(errors.E1001, p.curToken, "illegal token %s", p.curToken.Literal)
	return nil
}

// newIdent creates a new Ident node from a token.
func (p *Parser) newIdent(tok token.Token) *ast.Ident {
	return &ast.Ident{NamePos: tok.StartPosition, Name: tok.Literal}
}

func (p *Parser) parseIdent() ast.Expr {
	return p.newIdent(p.curToken)
}

func (p *Parser) parseInt() ast.Expr {
	tok := p.curToken
	value, err := strconv.ParseInt(tok.Literal, 10, 64)
	if err != nil {
		p.syntaxError(errors.E1008, tok, "invalid integer literal %q", tok.Literal)
		return nil
	}
	return &ast.Int{ValuePos: tok.StartPosition, Literal: tok.Literal, Value: value}
}

func (p *Parser) parseFloat() ast.Expr {
	tok := p.curToken
	value, err := strconv.ParseFloat(tok.Literal, 64)
	if err != nil {
		p.syntaxError(errors.E1008, tok, "invalid float literal %q", tok.Literal)
		return nil
	}
	return &ast.Float{ValuePos: tok.StartPosition, Literal: tok.Literal, Value: value}
}

func (p *Parser) parseString() ast.Expr {
	tok := p.curToken
	return &ast.String{ValuePos: tok.StartPosition, EndPos: tok.EndPosition, Value: tok.Literal}
}

func (p *Parser) parseBoolean() ast.Expr {
	return &ast.Bool{ValuePos: p.curToken.StartPosition, Value: p.curTokenIs(token.TRUE)}
}

func (p *Parser) parseNil() ast.Expr {
	return &ast.Nil{NilPos: p.curToken.StartPosition}
}

func (p *Parser) parseList() ast.Expr {
	lbrack := p.curToken.StartPosition
	items, ok := p.parseExprList("list", token.RBRACKET)
	if !ok {
		return nil
	}
	return &ast.List{Lbrack: lbrack, Items: items, Rbrack: p.curToken.StartPosition}
}

func (p *Parser) parseGroupedExpr() ast.Expr {
	p.nextToken()
	p.eatNewlines()
	expr := p.parseExpression(LOWEST)
	if expr == nil {
		return nil
	}
	p.skipPeekNewlines()
	if !p.expectPeek("grouped expression", token.RPAREN) {
		return nil
	}
	return expr
}

func (p *Parser) parsePrefixExpr() ast.Expr {
	opTok := p.curToken
	p.nextToken()
	right := p.parseExpression(PREFIX)
	if right == nil {
		return nil
	}
	return &ast.Prefix{OpPos: opTok.StartPosition, Op: opTok.Literal, X: right}
}

func (p *Parser) parseInfixExpr(left ast.Expr) ast.Expr {
	opTok := p.curToken
	precedence := p.currentPrecedence()
	if opTok.Type == token.POW {
		// right associative
		precedence--
	}
	p.nextToken()
	p.eatNewlines()
	right := p.parseExpression(precedence)
	if right == nil {
		return nil
	}
	return &ast.Infix{X: left, OpPos: opTok.StartPosition, Op: opTok.Literal, Y: right}
}

func (p *Parser) parseTernary(cond ast.Expr) ast.Expr {
	question := p.curToken.StartPosition
	p.nextToken()
	p.eatNewlines()
	consequence := p.parseExpression(LOWEST)
	if consequence == nil {
		return nil
	}
	p.skipPeekNewlines()
	if !p.expectPeek("ternary expression", token.COLON) {
		return nil
	}
	p.nextToken()
	p.eatNewlines()
	alternative := p.parseExpression(LOWEST)
	if alternative == nil {
		return nil
	}
	return &ast.Ternary{Cond: cond, Question: question, Consequence: consequence, Alternative: alternative}
}

func (p *Parser) parseIndex(left ast.Expr) ast.Expr {
	lbrack := p.curToken.StartPosition
	p.nextToken()
	p.eatNewlines()
	index := p.parseExpression(LOWEST)
	if index == nil {
		return nil
	}
	p.skipPeekNewlines()
	if !p.expectPeek("index expression", token.RBRACKET) {
		return nil
	}
	return &ast.Index{X: left, Lbrack: lbrack, Index: index, Rbrack: p.curToken.StartPosition}
}

func (p *Parser) parseCall(left ast.Expr) ast.Expr {
	fn, ok := left.(*ast.Ident)
	if !ok {
		p.unsupported(errors.E1103, left.Pos(), "calling the result of an expression")
		return nil
	}
	lparen := p.curToken.StartPosition
	args, ok := p.parseExprList("call arguments", token.RPAREN)
	if !ok {
		return nil
	}
	return &ast.Call{Fn: fn, Lparen: lparen, Args: args, Rparen: p.curToken.StartPosition}
}

// parseExprList parses a comma separated list of expressions. The current
// token must be the opening delimiter; on success the current token is end.
func (p *Parser) parseExprList(context string, end token.Type) ([]ast.Expr, bool) {
	var list []ast.Expr
	p.nextToken()
	p.eatNewlines()
	if p.curTokenIs(end) {
		return list, true
	}
	for {
		expr := p.parseExpression(LOWEST)
		if expr == nil {
			return nil, false
		}
		list = append(list, expr)
		p.skipPeekNewlines()
		if p.peekTokenIs(token.COMMA) {
			p.nextToken()
			p.nextToken()
			p.eatNewlines()
			if p.curTokenIs(end) {
				return list, true
			}
			continue
		}
		if !p.expectPeek(context, end) {
			return nil, false
		}
		return list, true
	}
}

func (p *Parser) parseMemberAccess(left ast.Expr) ast.Expr {
	p.unsupported(errors.E1103, left.Pos(), fmt.Sprintf("member access '%s.%s'", left.String(), p.peekToken.Literal))
	return nil
}

func (p *Parser) parseArrow(left ast.Expr) ast.Expr {
	p.unsupported(errors.E1102, p.curToken.StartPosition, "arrow functions '=>'")
	return nil
}

func (p *Parser) parseMapLiteral() ast.Expr {
	p.unsupported(errors.E1103, p.curToken.StartPosition, "map literals")
	return nil
}

func (p *Parser) parseFuncLiteral() ast.Expr {
	p.unsupported(errors.E1103, p.curToken.StartPosition, "anonymous functions")
	return nil
}

func (p *Parser) parseReserved() ast.Expr {
	p.unsupported(errors.E1101, p.curToken.StartPosition, "'"+p.curToken.Literal+"'")
	return nil
}

func (p *Parser) parseIncDec() ast.Expr {
	p.unsupported(errors.E1102, p.curToken.StartPosition, "'"+p.curToken.Literal+"' operator")
	return nil
}

// tokenDescription returns a human readable description of a token.
func tokenDescription(t token.Token) string {
	switch t.Type {
	case token.EOF:
		return "end of input"
	case token.NEWLINE:
		return "newline"
	case token.IDENT:
		return fmt.Sprintf("identifier %q", t.Literal)
	case token.STRING:
		return "string literal"
	case token.INT, token.FLOAT:
		return "number " + t.Literal
	}
	if t.Literal != "" {
		return "'" + t.Literal + "'"
	}
	return string(t.Type)
}

// tokenTypeDescription returns a human readable description of a token type.
func tokenTypeDescription(t token.Type) string {
	switch t {
	case token.EOF:
		return "end of input"
	case token.NEWLINE:
		return "newline"
	case token.IDENT:
		return "identifier"
	}
	return "'" + strings.ToLower(string(t)) + "'"
}
