package parser

import (
	"github.com/deepnoodle-ai/sme/ast"
	"github.com/deepnoodle-ai/sme/errors"
	"github.com/deepnoodle-ai/sme/internal/lexer"
	"github.com/deepnoodle-ai/sme/internal/token"
)

// startLexer points the parser at the logic code in text[start:end].
func (p *Parser) startLexer(start, end int) {
	p.l = lexer.NewAt(p.src.text[start:end], p.src.pos(start))
	p.prevToken, p.curToken, p.peekToken = token.Token{}, token.Token{}, token.Token{}
	p.curErr, p.peekErr = nil, nil
	p.nextToken() // makes curToken=<empty>, peekToken=token[0]
	p.nextToken() // makes curToken=token[0], peekToken=token[1]
}

// nextToken moves to the next token from the lexer, updating all of
// prevToken, curToken, and peekToken. Lexer errors travel with their token
// and are reported when the parser tries to use it.
func (p *Parser) nextToken() {
	p.prevToken = p.curToken
	p.curToken = p.peekToken
	p.curErr = p.peekErr
	p.peekToken, p.peekErr = p.l.Next()
}

// curTokenIs returns true if the current token has the given type.
func (p *Parser) curTokenIs(t token.Type) bool {
	return p.curToken.Type == t
}

// peekTokenIs returns true if the next token has the given type.
func (p *Parser) peekTokenIs(t token.Type) bool {
	return p.peekToken.Type == t
}

// expectPeek validates if the next token is of the given type, and advances if
// it is. If it's a different type, then an error is stored.
func (p *Parser) expectPeek(context string, t token.Type) bool {
	if p.peekTokenIs(t) {
		p.nextToken()
		return true
	}
	p.peekError(context, t)
	return false
}

// peekError records an error for an unexpected peek token.
func (p *Parser) peekError(context string, expected token.Type) {
	if p.peekToken.Type == token.ILLEGAL && p.peekErr != nil {
		p.lexError(p.peekToken, p.peekErr)
		return
	}
	if p.peekToken.Type == token.RESERVED {
		p.unsupported(errors.E1101, p.peekToken.StartPosition, "'"+p.peekToken.Literal+"'")
		return
	}
	code := errors.E1001
	if expected == token.IDENT {
		code = errors.E1006
	}
	p.syntaxError(code, p.peekToken, "unexpected %s while parsing %s (expected %s)",
		tokenDescription(p.peekToken), context, tokenTypeDescription(expected))
}

func (p *Parser) eatNewlines() {
	for p.curTokenIs(token.NEWLINE) {
		p.nextToken()
	}
}

func (p *Parser) skipPeekNewlines() {
	for p.peekTokenIs(token.NEWLINE) {
		p.nextToken()
	}
}

// synchronize skips tokens until a statement boundary is reached.
// This is used for error recovery to continue parsing after an error. If the
// error happened inside a block, the rest of the block is skipped.
func (p *Parser) synchronize() {
	if depth := p.braceDepth; depth > 0 {
		p.braceDepth = 0
		for !p.curTokenIs(token.EOF) {
			switch p.curToken.Type {
			case token.LBRACE:
				depth++
			case token.RBRACE:
				depth--
				if depth == 0 {
					return
				}
			}
			p.nextToken()
		}
		return
	}
	for !p.curTokenIs(token.EOF) {
		if statementTerminators[p.curToken.Type] {
			return
		}
		if statementKeywords[p.peekToken.Type] {
			return
		}
		p.nextToken()
	}
}

// statementKeywords begin a statement that cannot continue an expression.
var statementKeywords = map[token.Type]bool{
	token.LET:      true,
	token.CONST:    true,
	token.DERIVED:  true,
	token.PROP:     true,
	token.FUNCTION: true,
	token.IF:       true,
	token.FOR:      true,
	token.RETURN:   true,
}

// parseLogic parses the script section.
func (p *Parser) parseLogic(start, end int) *ast.Logic {
	p.startLexer(start, end)
	logic := &ast.Logic{Start: p.src.pos(start)}
	for !p.curTokenIs(token.EOF) {
		if err := p.checkCancelled(); err != nil {
			break
		}
		if p.tooManyErrors() {
			break
		}
		p.stmtErrorCount = p.errs.Count()
		p.braceDepth = 0
		p.inFunc = false
		stmt := p.parseStatementStrict()
		if stmt != nil {
			logic.Stmts = append(logic.Stmts, stmt)
		} else if p.hadNewError() {
			p.synchronize()
		}
		p.nextToken()
	}
	return logic
}

// parseStatementStrict parses a statement and checks that it is followed by a
// statement terminator.
func (p *Parser) parseStatementStrict() ast.Stmt {
	stmt := p.parseStatement()
	if stmt == nil {
		return nil
	}
	if p.peekTokenIs(token.SEMICOLON) {
		p.nextToken()
		return stmt
	}
	if !statementTerminators[p.peekToken.Type] {
		p.unexpectedAfter("statement")
		return nil
	}
	return stmt
}

// unexpectedAfter reports the peek token as trailing garbage.
func (p *Parser) unexpectedAfter(what string) {
	switch p.peekToken.Type {
	case token.PLUS_PLUS, token.MINUS_MINUS:
		p.unsupported(errors.E1102, p.peekToken.StartPosition, "'"+p.peekToken.Literal+"' operator")
	case token.ASSIGN, token.PLUS_EQUALS, token.MINUS_EQUALS, token.ASTERISK_EQUALS, token.SLASH_EQUALS:
		p.syntaxError(errors.E1005, p.peekToken, "invalid assignment target")
	case token.ILLEGAL:
		if p.peekErr != nil {
			p.lexError(p.peekToken, p.peekErr)
			return
		}
		fallthrough
	default:
		p.syntaxError(errors.E1001, p.peekToken, "unexpected %s following %s", tokenDescription(p.peekToken), what)
	}
}

func (p *Parser) parseStatement() ast.Stmt {
	switch p.curToken.Type {
	case token.NEWLINE, token.SEMICOLON:
		return nil
	case token.LET, token.CONST, token.DERIVED, token.PROP:
		return p.parseVarDecl()
	case token.FUNCTION:
		return p.parseFuncDecl()
	case token.IF:
		return p.parseIf()
	case token.FOR:
		return p.parseFor()
	case token.RETURN:
		return p.parseReturn()
	case token.LBRACE:
		if block := p.parseBlock(); block != nil {
			return block
		}
		return nil
	case token.RESERVED:
		p.unsupported(errors.E1101, p.curToken.StartPosition, "'"+p.curToken.Literal+"'")
		return nil
	case token.IDENT:
		switch p.peekToken.Type {
		case token.ASSIGN, token.PLUS_EQUALS, token.MINUS_EQUALS, token.ASTERISK_EQUALS, token.SLASH_EQUALS:
			return p.parseAssign()
		}
	}
	return p.parseExpressionStatement()
}

var declKinds = map[token.Type]ast.DeclKind{
	token.LET:     ast.DeclLet,
	token.PROP:    ast.DeclProp,
	token.CONST:   ast.DeclConst,
	token.DERIVED: ast.DeclDerived,
}

func (p *Parser) parseVarDecl() ast.Stmt {
	kindTok := p.curToken
	kind := declKinds[kindTok.Type]
	if p.inFunc && kind != ast.DeclLet {
		p.syntaxError(errors.E1003, kindTok, "%s declarations are only allowed at the top level", kindTok.Literal)
		return nil
	}
	if !p.expectPeek(kindTok.Literal+" statement", token.IDENT) {
		return nil
	}
	decl := &ast.VarDecl{KindPos: kindTok.StartPosition, Kind: kind, Name: p.newIdent(p.curToken)}
	if !p.peekTokenIs(token.ASSIGN) {
		if kind == ast.DeclConst || kind == ast.DeclDerived {
			p.peekError(kindTok.Literal+" statement", token.ASSIGN)
			return nil
		}
		return decl
	}
	p.nextToken() // =
	p.nextToken()
	for p.curTokenIs(token.NEWLINE) && p.peekTokenIs(token.NEWLINE) {
		p.nextToken()
	}
	// A missing initializer is reported at the line end so recovery
	// resumes at the next statement.
	if p.curTokenIs(token.NEWLINE) && (statementKeywords[p.peekToken.Type] || p.peekTokenIs(token.EOF)) {
		p.syntaxError(errors.E1004, p.curToken, "missing initializer for %s", decl.Name.Name)
		return nil
	}
	p.eatNewlines()
	value := p.parseExpression(LOWEST)
	if value == nil {
		return nil
	}
	decl.Value = value
	return decl
}

func (p *Parser) parseFuncDecl() ast.Stmt {
	fnTok := p.curToken
	if p.inFunc {
		p.unsupported(errors.E1103, fnTok.StartPosition, "nested functions")
		return nil
	}
	if !p.peekTokenIs(token.IDENT) {
		if p.peekTokenIs(token.LPAREN) {
			p.unsupported(errors.E1103, fnTok.StartPosition, "anonymous functions")
			return nil
		}
		p.peekError("function declaration", token.IDENT)
		return nil
	}
	p.nextToken()
	decl := &ast.FuncDecl{Func: fnTok.StartPosition, Name: p.newIdent(p.curToken)}
	if !p.expectPeek("function declaration", token.LPAREN) {
		return nil
	}
	p.nextToken()
	p.eatNewlines()
	for !p.curTokenIs(token.RPAREN) {
		if !p.curTokenIs(token.IDENT) {
			p.syntaxError(errors.E1006, p.curToken, "unexpected %s in parameter list (expected identifier)", tokenDescription(p.curToken))
			return nil
		}
		decl.Params = append(decl.Params, p.newIdent(p.curToken))
		p.nextToken()
		p.eatNewlines()
		if p.curTokenIs(token.COMMA) {
			p.nextToken()
			p.eatNewlines()
			continue
		}
		if !p.curTokenIs(token.RPAREN) {
			p.syntaxError(errors.E1001, p.curToken, "unexpected %s in parameter list (expected , or ))", tokenDescription(p.curToken))
			return nil
		}
	}
	if !p.expectPeek("function declaration", token.LBRACE) {
		return nil
	}
	p.inFunc = true
	body := p.parseBlock()
	p.inFunc = false
	if body == nil {
		return nil
	}
	decl.Body = body
	return decl
}

func (p *Parser) parseAssign() ast.Stmt {
	name := p.newIdent(p.curToken)
	p.nextToken()
	opTok := p.curToken
	p.nextToken()
	p.eatNewlines()
	value := p.parseExpression(LOWEST)
	if value == nil {
		return nil
	}
	return &ast.Assign{Name: name, OpPos: opTok.StartPosition, Op: opTok.Literal, Value: value}
}

func (p *Parser) parseIf() ast.Stmt {
	ifTok := p.curToken
	p.nextToken()
	cond := p.parseExpression(LOWEST)
	if cond == nil {
		return nil
	}
	if !p.expectPeek("if statement", token.LBRACE) {
		return nil
	}
	consequence := p.parseBlock()
	if consequence == nil {
		return nil
	}
	stmt := &ast.If{IfPos: ifTok.StartPosition, Cond: cond, Consequence: consequence}
	if !p.peekTokenIs(token.ELSE) {
		return stmt
	}
	p.nextToken() // else
	switch {
	case p.peekTokenIs(token.IF):
		p.nextToken()
		alt := p.parseIf()
		if alt == nil {
			return nil
		}
		stmt.Alternative = alt
	case p.expectPeek("if statement", token.LBRACE):
		alt := p.parseBlock()
		if alt == nil {
			return nil
		}
		stmt.Alternative = alt
	default:
		return nil
	}
	return stmt
}

func (p *Parser) parseFor() ast.Stmt {
	forTok := p.curToken
	if !p.expectPeek("for loop", token.IDENT) {
		return nil
	}
	stmt := &ast.For{ForPos: forTok.StartPosition, Value: p.newIdent(p.curToken)}
	if p.peekTokenIs(token.COMMA) {
		p.nextToken()
		if !p.expectPeek("for loop", token.IDENT) {
			return nil
		}
		stmt.Index = stmt.Value
		stmt.Value = p.newIdent(p.curToken)
	}
	if !p.expectPeek("for loop", token.IN) {
		return nil
	}
	p.nextToken()
	iterable := p.parseExpression(LOWEST)
	if iterable == nil {
		return nil
	}
	stmt.Iterable = iterable
	if !p.expectPeek("for loop", token.LBRACE) {
		return nil
	}
	body := p.parseBlock()
	if body == nil {
		return nil
	}
	stmt.Body = body
	return stmt
}

func (p *Parser) parseReturn() ast.Stmt {
	stmt := &ast.Return{ReturnPos: p.curToken.StartPosition}
	if !statementTerminators[p.peekToken.Type] && !p.peekTokenIs(token.SEMICOLON) {
		p.unsupported(errors.E1103, p.peekToken.StartPosition, "returning a value")
		return nil
	}
	return stmt
}

// parseBlock parses a braced block. The current token must be "{"; on return
// the current token is the matching "}".
func (p *Parser) parseBlock() *ast.Block {
	block := &ast.Block{Lbrace: p.curToken.StartPosition}
	p.braceDepth++
	p.nextToken()
	for !p.curTokenIs(token.RBRACE) {
		if p.curTokenIs(token.EOF) {
			p.syntaxError(errors.E1007, p.curToken, "unterminated block (missing })")
			return nil
		}
		if p.tooManyErrors() {
			return nil
		}
		stmt := p.parseStatementStrict()
		if p.hadNewError() {
			return nil
		}
		if stmt != nil {
			block.Stmts = append(block.Stmts, stmt)
		}
		p.nextToken()
	}
	block.Rbrace = p.curToken.StartPosition
	p.braceDepth--
	return block
}

func (p *Parser) parseExpressionStatement() ast.Stmt {
	startTok := p.curToken
	expr := p.parseExpression(LOWEST)
	if expr == nil {
		return nil
	}
	switch p.peekToken.Type {
	case token.PLUS_PLUS, token.MINUS_MINUS, token.ASSIGN:
		p.unexpectedAfter("expression")
		return nil
	}
	call, ok := expr.(*ast.Call)
	if !ok {
		p.syntaxError(errors.E1003, startTok, "expression %s is not a statement (expected a call or an assignment)", expr.String())
		return nil
	}
	return &ast.ExprStmt{X: call}
}
