// Package token defines the tokens of the component logic language.
package token

import "strconv"

// Type is the kind of a token. Operators use their own spelling.
type Type string

// Position locates a token in a component file. Line and Column are
// 0-based; offsets are byte offsets into the whole file, not the script
// section, so diagnostics point at the original text.
type Position struct {
	Char      int
	LineStart int
	Line      int
	Column    int
	File      string
}

// LineNumber is the 1-based line.
func (p Position) LineNumber() int { return p.Line + 1 }

// ColumnNumber is the 1-based column.
func (p Position) ColumnNumber() int { return p.Column + 1 }

// Advance moves the position n bytes to the right on the same line.
func (p Position) Advance(n int) Position {
	p.Char += n
	p.Column += n
	return p
}

func (p Position) String() string {
	s := strconv.Itoa(p.LineNumber()) + ":" + strconv.Itoa(p.ColumnNumber())
	if p.File != "" {
		s = p.File + ":" + s
	}
	return s
}

// Token is a lexeme with its extent. EndPosition is the position of the
// last byte.
type Token struct {
	Type          Type
	Literal       string
	StartPosition Position
	EndPosition   Position
}

const (
	AND             Type = "&&"
	ARROW           Type = "=>"
	ASSIGN          Type = "="
	ASTERISK        Type = "*"
	ASTERISK_EQUALS Type = "*="
	BANG            Type = "!"
	COLON           Type = ":"
	COMMA           Type = ","
	CONST           Type = "CONST"
	DERIVED         Type = "DERIVED"
	ELSE            Type = "ELSE"
	EOF             Type = "EOF"
	EQ              Type = "=="
	FALSE           Type = "FALSE"
	FLOAT           Type = "FLOAT"
	FOR             Type = "FOR"
	FUNCTION        Type = "FUNCTION"
	GT              Type = ">"
	GT_EQUALS       Type = ">="
	IDENT           Type = "IDENT"
	IF              Type = "IF"
	ILLEGAL         Type = "ILLEGAL"
	IN              Type = "IN"
	INT             Type = "INT"
	LBRACE          Type = "{"
	LBRACKET        Type = "["
	LET             Type = "LET"
	LPAREN          Type = "("
	LT              Type = "<"
	LT_EQUALS       Type = "<="
	MINUS           Type = "-"
	MINUS_EQUALS    Type = "-="
	MINUS_MINUS     Type = "--"
	MOD             Type = "%"
	NEWLINE         Type = "EOL"
	NIL             Type = "nil"
	NOT_EQ          Type = "!="
	NULLISH         Type = "??"
	OR              Type = "||"
	PERIOD          Type = "."
	PLUS            Type = "+"
	PLUS_EQUALS     Type = "+="
	PLUS_PLUS       Type = "++"
	POW             Type = "**"
	PROP            Type = "PROP"
	QUESTION        Type = "?"
	RBRACE          Type = "}"
	RBRACKET        Type = "]"
	RESERVED        Type = "RESERVED"
	RETURN          Type = "RETURN"
	RPAREN          Type = ")"
	SEMICOLON       Type = ";"
	SLASH           Type = "/"
	SLASH_EQUALS    Type = "/="
	STRING          Type = "STRING"
	TRUE            Type = "TRUE"
)

var keywords = map[string]Type{
	"const":    CONST,
	"derived":  DERIVED,
	"else":     ELSE,
	"false":    FALSE,
	"for":      FOR,
	"function": FUNCTION,
	"if":       IF,
	"in":       IN,
	"let":      LET,
	"nil":      NIL,
	"prop":     PROP,
	"return":   RETURN,
	"true":     TRUE,
}

// unsupported holds words that are reserved so that their use can be reported
// as an unsupported construct instead of an unknown identifier.
var unsupported = map[string]bool{
	"async":    true,
	"await":    true,
	"break":    true,
	"catch":    true,
	"class":    true,
	"continue": true,
	"export":   true,
	"import":   true,
	"match":    true,
	"new":      true,
	"struct":   true,
	"switch":   true,
	"throw":    true,
	"try":      true,
	"while":    true,
	"yield":    true,
}

// LookupIdentifier determines whether an identifier is a keyword, a reserved
// but unsupported word, or a plain identifier.
func LookupIdentifier(identifier string) Type {
	if tok, ok := keywords[identifier]; ok {
		return tok
	}
	if unsupported[identifier] {
		return RESERVED
	}
	return IDENT
}

// IsKeyword reports whether the given word cannot be used as an identifier.
func IsKeyword(word string) bool {
	return LookupIdentifier(word) != IDENT
}
