// Package lexer converts component logic source into a stream of tokens.
package lexer

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/deepnoodle-ai/sme/internal/token"
)

// Lexer holds our object-state.
type Lexer struct {
	input string

	// base is the position of the first byte of input within its file
	base token.Position

	position     int  // current character position
	readPosition int  // next character position
	ch           rune // current character
	chWidth      int

	line      int // 0-indexed line relative to the file
	lineStart int // byte offset (within the file) of the current line
	filename  string
}

// New returns a Lexer for the given input, positioned at the start of a file.
func New(input string) *Lexer {
	return NewAt(input, token.Position{})
}

// NewAt returns a Lexer for input that begins at the given position within a
// larger file. Token positions are reported relative to that file.
func NewAt(input string, base token.Position) *Lexer {
	l := &Lexer{
		input:     input,
		base:      base,
		line:      base.Line,
		lineStart: base.LineStart,
		filename:  base.File,
	}
	l.readChar()
	return l
}

// SetFilename sets the filename reported in token positions.
func (l *Lexer) SetFilename(filename string) {
	l.filename = filename
}

// Filename returns the filename reported in token positions.
func (l *Lexer) Filename() string {
	return l.filename
}

// Next returns the next token from the input.
func (l *Lexer) Next() (token.Token, error) {
	l.skipWhitespace()
	for l.ch == '/' && (l.peekChar() == '/' || l.peekChar() == '*') {
		if l.peekChar() == '/' {
			l.skipLineComment()
		} else if err := l.skipBlockComment(); err != nil {
			return l.newToken(token.ILLEGAL, ""), err
		}
		l.skipWhitespace()
	}
	start := l.pos()
	var tok token.Token
	switch l.ch {
	case 0:
		tok = token.Token{Type: token.EOF, StartPosition: start, EndPosition: start}
		return tok, nil
	case '\n':
		tok = l.newToken(token.NEWLINE, "\n")
	case ';':
		tok = l.newToken(token.SEMICOLON, ";")
	case ',':
		tok = l.newToken(token.COMMA, ",")
	case ':':
		tok = l.newToken(token.COLON, ":")
	case '(':
		tok = l.newToken(token.LPAREN, "(")
	case ')':
		tok = l.newToken(token.RPAREN, ")")
	case '{':
		tok = l.newToken(token.LBRACE, "{")
	case '}':
		tok = l.newToken(token.RBRACE, "}")
	case '[':
		tok = l.newToken(token.LBRACKET, "[")
	case ']':
		tok = l.newToken(token.RBRACKET, "]")
	case '.':
		tok = l.newToken(token.PERIOD, ".")
	case '%':
		tok = l.newToken(token.MOD, "%")
	case '=':
		switch l.peekChar() {
		case '=':
			tok = l.twoCharToken(token.EQ)
		case '>':
			tok = l.twoCharToken(token.ARROW)
		default:
			tok = l.newToken(token.ASSIGN, "=")
		}
	case '+':
		switch l.peekChar() {
		case '=':
			tok = l.twoCharToken(token.PLUS_EQUALS)
		case '+':
			tok = l.twoCharToken(token.PLUS_PLUS)
		default:
			tok = l.newToken(token.PLUS, "+")
		}
	case '-':
		switch l.peekChar() {
		case '=':
			tok = l.twoCharToken(token.MINUS_EQUALS)
		case '-':
			tok = l.twoCharToken(token.MINUS_MINUS)
		default:
			tok = l.newToken(token.MINUS, "-")
		}
	case '*':
		switch l.peekChar() {
		case '=':
			tok = l.twoCharToken(token.ASTERISK_EQUALS)
		case '*':
			tok = l.twoCharToken(token.POW)
		default:
			tok = l.newToken(token.ASTERISK, "*")
		}
	case '/':
		if l.peekChar() == '=' {
			tok = l.twoCharToken(token.SLASH_EQUALS)
		} else {
			tok = l.newToken(token.SLASH, "/")
		}
	case '!':
		if l.peekChar() == '=' {
			tok = l.twoCharToken(token.NOT_EQ)
		} else {
			tok = l.newToken(token.BANG, "!")
		}
	case '<':
		if l.peekChar() == '=' {
			tok = l.twoCharToken(token.LT_EQUALS)
		} else {
			tok = l.newToken(token.LT, "<")
		}
	case '>':
		if l.peekChar() == '=' {
			tok = l.twoCharToken(token.GT_EQUALS)
		} else {
			tok = l.newToken(token.GT, ">")
		}
	case '&':
		if l.peekChar() == '&' {
			tok = l.twoCharToken(token.AND)
		} else {
			tok = l.newToken(token.ILLEGAL, "&")
			l.readChar()
			return tok, fmt.Errorf("unexpected character %q", '&')
		}
	case '|':
		if l.peekChar() == '|' {
			tok = l.twoCharToken(token.OR)
		} else {
			tok = l.newToken(token.ILLEGAL, "|")
			l.readChar()
			return tok, fmt.Errorf("unexpected character %q", '|')
		}
	case '?':
		if l.peekChar() == '?' {
			tok = l.twoCharToken(token.NULLISH)
		} else {
			tok = l.newToken(token.QUESTION, "?")
		}
	case '"', '\'':
		return l.readString(l.ch)
	default:
		if isIdentStart(l.ch) {
			ident := l.readIdentifier()
			return token.Token{
				Type:          token.LookupIdentifier(ident),
				Literal:       ident,
				StartPosition: start,
				EndPosition:   l.prevPos(),
			}, nil
		}
		if isDigit(l.ch) {
			return l.readNumber()
		}
		ch := l.ch
		tok = l.newToken(token.ILLEGAL, string(ch))
		l.readChar()
		return tok, fmt.Errorf("unexpected character %q", ch)
	}
	l.readChar()
	return tok, nil
}

func (l *Lexer) newToken(t token.Type, literal string) token.Token {
	pos := l.pos()
	return token.Token{
		Type:          t,
		Literal:       literal,
		StartPosition: pos,
		EndPosition:   pos,
	}
}

func (l *Lexer) twoCharToken(t token.Type) token.Token {
	start := l.pos()
	first := l.ch
	l.readChar()
	return token.Token{
		Type:          t,
		Literal:       string(first) + string(l.ch),
		StartPosition: start,
		EndPosition:   l.pos(),
	}
}

// pos returns the file position of the current character.
func (l *Lexer) pos() token.Position {
	char := l.base.Char + l.position
	return token.Position{
		Char:      char,
		LineStart: l.lineStart,
		Line:      l.line,
		Column:    char - l.lineStart,
		File:      l.filename,
	}
}

// prevPos returns the position of the last consumed character.
func (l *Lexer) prevPos() token.Position {
	p := l.pos()
	if p.Column > 0 {
		p.Char--
		p.Column--
	}
	return p
}

func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.lineStart = l.base.Char + l.readPosition
	}
	if l.readPosition >= len(l.input) {
		l.ch = 0
		l.chWidth = 0
		l.position = len(l.input)
		l.readPosition = len(l.input) + 1
		return
	}
	r, w := utf8.DecodeRuneInString(l.input[l.readPosition:])
	l.ch = r
	l.chWidth = w
	l.position = l.readPosition
	l.readPosition += w
}

func (l *Lexer) peekChar() rune {
	if l.readPosition >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPosition:])
	return r
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' {
		l.readChar()
	}
}

func (l *Lexer) skipLineComment() {
	for l.ch != '\n' && l.ch != 0 {
		l.readChar()
	}
}

func (l *Lexer) skipBlockComment() error {
	l.readChar() // '/'
	l.readChar() // '*'
	for {
		if l.ch == 0 {
			return fmt.Errorf("unterminated block comment")
		}
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar()
			l.readChar()
			return nil
		}
		l.readChar()
	}
}

func (l *Lexer) readIdentifier() string {
	start := l.position
	for isIdentStart(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
	return l.input[start:l.position]
}

func (l *Lexer) readNumber() (token.Token, error) {
	start := l.pos()
	begin := l.position
	tokType := token.INT
	for isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		tokType = token.FLOAT
		l.readChar()
		for isDigit(l.ch) || l.ch == '_' {
			l.readChar()
		}
	}
	if l.ch == 'e' || l.ch == 'E' {
		tokType = token.FLOAT
		l.readChar()
		if l.ch == '+' || l.ch == '-' {
			l.readChar()
		}
		if !isDigit(l.ch) {
			tok := token.Token{Type: token.ILLEGAL, Literal: l.input[begin:l.position], StartPosition: start, EndPosition: l.prevPos()}
			return tok, fmt.Errorf("invalid number literal %q", tok.Literal)
		}
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	if isIdentStart(l.ch) {
		for isIdentStart(l.ch) || isDigit(l.ch) {
			l.readChar()
		}
		tok := token.Token{Type: token.ILLEGAL, Literal: l.input[begin:l.position], StartPosition: start, EndPosition: l.prevPos()}
		return tok, fmt.Errorf("invalid number literal %q", tok.Literal)
	}
	return token.Token{
		Type:          tokType,
		Literal:       strings.ReplaceAll(l.input[begin:l.position], "_", ""),
		StartPosition: start,
		EndPosition:   l.prevPos(),
	}, nil
}

func (l *Lexer) readString(quote rune) (token.Token, error) {
	start := l.pos()
	var b strings.Builder
	l.readChar() // opening quote
	for {
		switch l.ch {
		case 0, '\n':
			tok := token.Token{Type: token.ILLEGAL, Literal: b.String(), StartPosition: start, EndPosition: l.prevPos()}
			return tok, fmt.Errorf("unterminated string literal")
		case quote:
			end := l.pos()
			l.readChar()
			return token.Token{Type: token.STRING, Literal: b.String(), StartPosition: start, EndPosition: end}, nil
		case '\\':
			l.readChar()
			switch l.ch {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case 'r':
				b.WriteByte('\r')
			case '\\', '"', '\'':
				b.WriteRune(l.ch)
			default:
				bad := l.ch
				l.readChar()
				tok := token.Token{Type: token.ILLEGAL, Literal: b.String(), StartPosition: start, EndPosition: l.prevPos()}
				return tok, fmt.Errorf("invalid escape sequence \\%c", bad)
			}
		default:
			b.WriteRune(l.ch)
		}
		l.readChar()
	}
}

func isIdentStart(ch rune) bool {
	return ch == '_' || unicode.IsLetter(ch)
}

func isDigit(ch rune) bool {
	return '0' <= ch && ch <= '9'
}
