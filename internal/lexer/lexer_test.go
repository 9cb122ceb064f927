package lexer

import (
	"testing"

	"github.com/deepnoodle-ai/sme/internal/token"
	"github.com/stretchr/testify/require"
)

func TestNil(t *testing.T) {
	input := "a = nil;"
	tests := []struct {
		expectedType    token.Type
		expectedLiteral string
	}{
		{token.IDENT, "a"},
		{token.ASSIGN, "="},
		{token.NIL, "nil"},
		{token.SEMICOLON, ";"},
		{token.EOF, ""},
	}
	l := New(input)
	for i, tt := range tests {
		tok, err := l.Next()
		require.Nil(t, err)
		require.Equal(t, tt.expectedType, tok.Type, "tests[%d]", i)
		require.Equal(t, tt.expectedLiteral, tok.Literal, "tests[%d]", i)
	}
}

func TestNextToken(t *testing.T) {
	input := "%=+(){},;?|| && ++--***=.. ?? => += -= /= != <= >="

	tests := []struct {
		expectedType    token.Type
		expectedLiteral string
	}{
		{token.MOD, "%"},
		{token.ASSIGN, "="},
		{token.PLUS, "+"},
		{token.LPAREN, "("},
		{token.RPAREN, ")"},
		{token.LBRACE, "{"},
		{token.RBRACE, "}"},
		{token.COMMA, ","},
		{token.SEMICOLON, ";"},
		{token.QUESTION, "?"},
		{token.OR, "||"},
		{token.AND, "&&"},
		{token.PLUS_PLUS, "++"},
		{token.MINUS_MINUS, "--"},
		{token.POW, "**"},
		{token.ASTERISK_EQUALS, "*="},
		{token.PERIOD, "."},
		{token.PERIOD, "."},
		{token.NULLISH, "??"},
		{token.ARROW, "=>"},
		{token.PLUS_EQUALS, "+="},
		{token.MINUS_EQUALS, "-="},
		{token.SLASH_EQUALS, "/="},
		{token.NOT_EQ, "!="},
		{token.LT_EQUALS, "<="},
		{token.GT_EQUALS, ">="},
		{token.EOF, ""},
	}
	l := New(input)
	for i, tt := range tests {
		tok, err := l.Next()
		require.Nil(t, err)
		require.Equal(t, tt.expectedType, tok.Type, "tests[%d]", i)
		require.Equal(t, tt.expectedLiteral, tok.Literal, "tests[%d]", i)
	}
}

func TestDeclarations(t *testing.T) {
	input := `let count = 0
derived double = count * 2 // comment
const name = "a\tb" /* block
comment */ prop label = 'x'`
	expected := []token.Type{
		token.LET, token.IDENT, token.ASSIGN, token.INT, token.NEWLINE,
		token.DERIVED, token.IDENT, token.ASSIGN, token.IDENT, token.ASTERISK, token.INT, token.NEWLINE,
		token.CONST, token.IDENT, token.ASSIGN, token.STRING,
		token.PROP, token.IDENT, token.ASSIGN, token.STRING,
		token.EOF,
	}
	l := New(input)
	var literals []string
	for i, typ := range expected {
		tok, err := l.Next()
		require.Nil(t, err)
		require.Equal(t, typ, tok.Type, "tests[%d]", i)
		if tok.Type == token.STRING {
			literals = append(literals, tok.Literal)
		}
	}
	require.Equal(t, []string{"a\tb", "x"}, literals)
}

func TestNumbers(t *testing.T) {
	l := New("12 3.5 1_000 2e3")
	tok, _ := l.Next()
	require.Equal(t, token.Token{
		Type:          token.INT,
		Literal:       "12",
		StartPosition: token.Position{Char: 0, Column: 0},
		EndPosition:   token.Position{Char: 1, Column: 1},
	}, tok)
	tok, _ = l.Next()
	require.Equal(t, token.FLOAT, tok.Type)
	require.Equal(t, "3.5", tok.Literal)
	tok, _ = l.Next()
	require.Equal(t, token.INT, tok.Type)
	require.Equal(t, "1000", tok.Literal)
	tok, _ = l.Next()
	require.Equal(t, token.FLOAT, tok.Type)
	require.Equal(t, "2e3", tok.Literal)
}

func TestReservedWords(t *testing.T) {
	l := New("while x")
	tok, err := l.Next()
	require.Nil(t, err)
	require.Equal(t, token.RESERVED, tok.Type)
	require.Equal(t, "while", tok.Literal)
}

func TestErrors(t *testing.T) {
	tests := []struct {
		input string
		err   string
	}{
		{`"abc`, "unterminated string literal"},
		{`"\q"`, `invalid escape sequence \q`},
		{"12abc", `invalid number literal "12abc"`},
		{"#", `unexpected character '#'`},
		{"a & b", `unexpected character '&'`},
		{"/* open", "unterminated block comment"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			l := New(tt.input)
			var err error
			for i := 0; i < 5 && err == nil; i++ {
				var tok token.Token
				tok, err = l.Next()
				if tok.Type == token.EOF {
					break
				}
			}
			require.NotNil(t, err)
			require.Equal(t, tt.err, err.Error())
		})
	}
}

func TestPositionsWithBase(t *testing.T) {
	// Simulates an expression embedded at line 3, column 7 of a file.
	base := token.Position{Char: 40, LineStart: 33, Line: 3, Column: 7, File: "c.sme"}
	l := NewAt("a +\n  b", base)
	a, _ := l.Next()
	require.Equal(t, 3, a.StartPosition.Line)
	require.Equal(t, 7, a.StartPosition.Column)
	require.Equal(t, "c.sme", a.StartPosition.File)
	plus, _ := l.Next()
	require.Equal(t, 9, plus.StartPosition.Column)
	nl, _ := l.Next()
	require.Equal(t, token.NEWLINE, nl.Type)
	b, _ := l.Next()
	require.Equal(t, 4, b.StartPosition.Line)
	require.Equal(t, 2, b.StartPosition.Column)
	require.Equal(t, 46, b.StartPosition.Char)
}
