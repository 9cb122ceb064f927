// Package parser builds the component tree for a component source file.
//
// A component file holds three sections: <script> with the logic block,
// <template> with the markup tree and <style> with an opaque payload. Parse
// splits the file into sections, parses the logic block with a Pratt parser
// and the markup with a recursive descent scanner, and collects every
// syntax error it can recover from.
package parser

import (
	"context"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/deepnoodle-ai/sme/ast"
	"github.com/deepnoodle-ai/sme/errors"
	"github.com/deepnoodle-ai/sme/internal/lexer"
	"github.com/deepnoodle-ai/sme/internal/token"
)

type (
	prefixParseFn func() ast.Expr
	infixParseFn  func(ast.Expr) ast.Expr
)

// statementTerminators defines tokens that can end a statement.
//
// NEWLINE HANDLING POLICY:
//  1. Trailing operators continue expressions: "x +\ny" parses as one expression
//  2. Newlines at start of line terminate expressions: "x\ny" parses as two statements
//  3. Inside parentheses and brackets, newlines after "(", "[" and "," are allowed
var statementTerminators = map[token.Type]bool{
	token.SEMICOLON: true,
	token.NEWLINE:   true,
	token.RBRACE:    true,
	token.EOF:       true,
}

// MaxErrors is the maximum number of errors to collect before stopping.
const MaxErrors = 10

// DefaultMaxDepth is the default maximum nesting depth for parsing.
const DefaultMaxDepth = 500

// Option is a configuration function for a Parser.
type Option func(*Parser)

// WithFilename sets the file name reported in positions and errors.
func WithFilename(filename string) Option {
	return func(p *Parser) {
		p.filename = filename
	}
}

// WithName sets the component name. By default the name is derived from the
// file name.
func WithName(name string) Option {
	return func(p *Parser) {
		p.name = name
	}
}

// WithMaxDepth sets the maximum nesting depth for the parser.
// This prevents stack overflow on deeply nested input.
func WithMaxDepth(depth int) Option {
	return func(p *Parser) {
		p.maxDepth = depth
	}
}

// Parse the provided component source and return its tree. If any errors
// are found, the returned error is an *errors.List and the component may be
// partial.
func Parse(ctx context.Context, source string, options ...Option) (*ast.Component, error) {
	return New(source, options...).Parse(ctx)
}

// ParseExpr parses a single logic expression.
func ParseExpr(source string) (ast.Expr, error) {
	p := New(source)
	expr := p.parseEmbeddedExpr(0, len(source))
	if p.hasErrors() {
		return nil, p.errs.ToError()
	}
	return expr, nil
}

// ComponentName derives a component name from a file name: "todo-list.sme"
// becomes "TodoList".
func ComponentName(filename string) string {
	base := filepath.Base(filename)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	var b strings.Builder
	upper := true
	for _, r := range base {
		if r == '-' || r == '_' || r == '.' || r == ' ' {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
		} else {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "Component"
	}
	return b.String()
}

// Parser holds the state for parsing one component file. A Parser should be
// used only once.
type Parser struct {
	// the Context supplied in the Parse() call
	ctx context.Context

	src      *sourceFile
	filename string
	name     string

	// errors collected during parsing
	errs errors.List

	// l is the lexer for the logic code currently being parsed. Markup
	// expressions get a fresh lexer each.
	l *lexer.Lexer

	prevToken token.Token
	curToken  token.Token
	peekToken token.Token

	// peekErr holds the lexer error for peekToken, if any. curErr holds
	// the one for curToken.
	peekErr error
	curErr  error

	// stmtErrorCount tracks error count at start of current statement.
	// Used by inner methods to detect if an error was added during this statement.
	stmtErrorCount int

	prefixParseFns map[token.Type]prefixParseFn
	infixParseFns  map[token.Type]infixParseFn

	// inFunc is true while parsing a handler body
	inFunc bool

	// braceDepth counts the blocks entered by the current statement that
	// have not been closed yet
	braceDepth int

	// m is the markup scanner state
	m *markupState

	depth    int
	maxDepth int
}

// New returns a Parser for the given component source.
func New(source string, options ...Option) *Parser {
	p := &Parser{
		prefixParseFns: map[token.Type]prefixParseFn{},
		infixParseFns:  map[token.Type]infixParseFn{},
		maxDepth:       DefaultMaxDepth,
	}
	for _, opt := range options {
		opt(p)
	}
	p.src = newSourceFile(source, p.filename)

	p.registerPrefix(token.BANG, p.parsePrefixExpr)
	p.registerPrefix(token.MINUS, p.parsePrefixExpr)
	p.registerPrefix(token.IDENT, p.parseIdent)
	p.registerPrefix(token.INT, p.parseInt)
	p.registerPrefix(token.FLOAT, p.parseFloat)
	p.registerPrefix(token.STRING, p.parseString)
	p.registerPrefix(token.TRUE, p.parseBoolean)
	p.registerPrefix(token.FALSE, p.parseBoolean)
	p.registerPrefix(token.NIL, p.parseNil)
	p.registerPrefix(token.LBRACKET, p.parseList)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpr)
	p.registerPrefix(token.LBRACE, p.parseMapLiteral)
	p.registerPrefix(token.FUNCTION, p.parseFuncLiteral)
	p.registerPrefix(token.RESERVED, p.parseReserved)
	p.registerPrefix(token.ILLEGAL, p.illegalToken)
	p.registerPrefix(token.PLUS_PLUS, p.parseIncDec)
	p.registerPrefix(token.MINUS_MINUS, p.parseIncDec)

	for _, t := range []token.Type{
		token.PLUS, token.MINUS, token.ASTERISK, token.SLASH, token.MOD,
		token.POW, token.EQ, token.NOT_EQ, token.LT, token.LT_EQUALS,
		token.GT, token.GT_EQUALS, token.AND, token.OR, token.NULLISH,
	} {
		p.registerInfix(t, p.parseInfixExpr)
	}
	p.registerInfix(token.QUESTION, p.parseTernary)
	p.registerInfix(token.LBRACKET, p.parseIndex)
	p.registerInfix(token.LPAREN, p.parseCall)
	p.registerInfix(token.PERIOD, p.parseMemberAccess)
	p.registerInfix(token.ARROW, p.parseArrow)
	return p
}

// Parse the component source.
func (p *Parser) Parse(ctx context.Context) (*ast.Component, error) {
	p.ctx = ctx
	name := p.name
	if name == "" {
		name = ComponentName(p.filename)
	}
	comp := &ast.Component{
		Name:   name,
		File:   p.filename,
		Source: p.src.text,
	}

	sections := p.splitSections()
	if err := p.checkCancelled(); err != nil {
		return nil, err
	}

	if s := sections[sectionScript]; s != nil {
		comp.Logic = p.parseLogic(s.start, s.end)
	} else {
		comp.Logic = &ast.Logic{Start: p.src.pos(0)}
	}
	if err := p.checkCancelled(); err != nil {
		return nil, err
	}

	if s := sections[sectionTemplate]; s != nil {
		comp.Markup = p.parseMarkup(s.start, s.end)
	} else {
		comp.Markup = &ast.Root{Start: p.src.pos(0), EndPos: p.src.pos(0)}
	}

	if s := sections[sectionStyle]; s != nil {
		comp.Style = &ast.Style{Start: p.src.pos(s.start), Content: p.src.text[s.start:s.end]}
	} else {
		comp.Style = &ast.Style{Start: p.src.pos(len(p.src.text))}
	}

	if p.hasErrors() {
		return comp, p.errs.ToError()
	}
	return comp, nil
}

func (p *Parser) checkCancelled() error {
	if p.ctx == nil {
		return nil
	}
	select {
	case <-p.ctx.Done():
		return p.ctx.Err()
	default:
		return nil
	}
}

// registerPrefix registers a function for handling a prefix-based expression.
func (p *Parser) registerPrefix(tokenType token.Type, fn prefixParseFn) {
	p.prefixParseFns[tokenType] = fn
}

// registerInfix registers a function for handling an infix-based expression.
func (p *Parser) registerInfix(tokenType token.Type, fn infixParseFn) {
	p.infixParseFns[tokenType] = fn
}

// hasErrors returns true if any errors have been recorded.
func (p *Parser) hasErrors() bool {
	return p.errs.HasErrors()
}

// tooManyErrors returns true if error limit has been reached.
func (p *Parser) tooManyErrors() bool {
	return p.errs.Count() >= MaxErrors
}

// hadNewError returns true if an error was added during the current statement.
func (p *Parser) hadNewError() bool {
	return p.errs.Count() > p.stmtErrorCount
}

func (p *Parser) addError(err errors.Diagnostic) {
	if p.tooManyErrors() {
		return
	}
	p.errs.Add(err)
}

// syntaxError records a syntax error spanning tok.
func (p *Parser) syntaxError(code errors.ErrorCode, tok token.Token, format string, args ...any) {
	loc := errors.Span(tok.StartPosition, tok.EndPosition.Advance(1), p.src.text)
	p.addError(errors.NewSyntaxError(code, loc, format, args...))
}

// syntaxErrorAt records a syntax error at a byte offset of the source.
func (p *Parser) syntaxErrorAt(code errors.ErrorCode, offset int, format string, args ...any) {
	p.addError(errors.NewSyntaxError(code, errors.At(p.src.pos(offset), p.src.text), format, args...))
}

// unsupported records an UnsupportedConstructError at pos.
func (p *Parser) unsupported(code errors.ErrorCode, pos token.Position, construct string) {
	p.addError(errors.NewUnsupportedConstructError(code, errors.At(pos, p.src.text), construct))
}

// lexError converts a lexer error into a syntax error with a matching code.
func (p *Parser) lexError(tok token.Token, err error) {
	msg := err.Error()
	code := errors.E1001
	switch {
	case strings.HasPrefix(msg, "unterminated string"):
		code = errors.E1002
	case strings.HasPrefix(msg, "invalid escape"):
		code = errors.E1010
	case strings.HasPrefix(msg, "invalid number"):
		code = errors.E1008
	case strings.HasPrefix(msg, "unterminated block comment"):
		code = errors.E1007
	}
	p.syntaxError(code, tok, "%s", msg)
}
