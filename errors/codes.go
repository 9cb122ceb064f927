package errors

// ErrorCode represents a unique identifier for error types.
// Codes are organized by category:
//   - E1xxx: Syntax errors (E11xx: unsupported constructs)
//   - E2xxx: Binding and dependency graph errors
//   - E3xxx: Runtime faults
//   - E4xxx: Code generation defects
type ErrorCode string

const (
	// Syntax errors (E1xxx)
	E1001 ErrorCode = "E1001" // Unexpected token
	E1002 ErrorCode = "E1002" // Unterminated string literal
	E1003 ErrorCode = "E1003" // Invalid syntax
	E1004 ErrorCode = "E1004" // Missing expression
	E1005 ErrorCode = "E1005" // Invalid assignment target
	E1006 ErrorCode = "E1006" // Expected identifier
	E1007 ErrorCode = "E1007" // Unclosed delimiter
	E1008 ErrorCode = "E1008" // Invalid number literal
	E1009 ErrorCode = "E1009" // Maximum nesting depth exceeded
	E1010 ErrorCode = "E1010" // Invalid escape sequence
	E1011 ErrorCode = "E1011" // Missing or duplicate section
	E1012 ErrorCode = "E1012" // Mismatched closing tag
	E1013 ErrorCode = "E1013" // Unclosed tag or block

	// Unsupported constructs (E11xx)
	E1101 ErrorCode = "E1101" // Unsupported keyword
	E1102 ErrorCode = "E1102" // Unsupported operator
	E1103 ErrorCode = "E1103" // Unsupported expression

	// Binding and graph errors (E2xxx)
	E2001 ErrorCode = "E2001" // Undefined identifier
	E2002 ErrorCode = "E2002" // Undefined function
	E2003 ErrorCode = "E2003" // Constant depends on reactive state
	E2004 ErrorCode = "E2004" // Derived value has no reactive dependency
	E2005 ErrorCode = "E2005" // Invalid assignment
	E2006 ErrorCode = "E2006" // Duplicate declaration
	E2007 ErrorCode = "E2007" // Handler called from a pure expression
	E2008 ErrorCode = "E2008" // Unknown component
	E2009 ErrorCode = "E2009" // Unknown prop
	E2010 ErrorCode = "E2010" // Shadowed variable
	E2011 ErrorCode = "E2011" // Wrong number of arguments
	E2012 ErrorCode = "E2012" // Invalid return statement
	E2013 ErrorCode = "E2013" // Invalid event binding
	E2020 ErrorCode = "E2020" // Cyclic dependency

	// Runtime faults (E3xxx)
	E3001 ErrorCode = "E3001" // Type error
	E3002 ErrorCode = "E3002" // Division by zero
	E3003 ErrorCode = "E3003" // Index out of bounds
	E3004 ErrorCode = "E3004" // Nil reference
	E3005 ErrorCode = "E3005" // Invalid operation
	E3006 ErrorCode = "E3006" // Invalid argument
	E3007 ErrorCode = "E3007" // Stack overflow
	E3008 ErrorCode = "E3008" // Host failure

	// Code generation defects (E4xxx)
	E4001 ErrorCode = "E4001" // Operand overflow
	E4002 ErrorCode = "E4002" // Unresolved label
	E4003 ErrorCode = "E4003" // Dangling reference
	E4004 ErrorCode = "E4004" // Invalid module encoding
)

// codeDescriptions maps error codes to their short descriptions.
var codeDescriptions = map[ErrorCode]string{
	E1001: "unexpected token",
	E1002: "unterminated string literal",
	E1003: "invalid syntax",
	E1004: "missing expression",
	E1005: "invalid assignment target",
	E1006: "expected identifier",
	E1007: "unclosed delimiter",
	E1008: "invalid number literal",
	E1009: "maximum nesting depth exceeded",
	E1010: "invalid escape sequence",
	E1011: "missing or duplicate section",
	E1012: "mismatched closing tag",
	E1013: "unclosed tag or block",

	E1101: "unsupported keyword",
	E1102: "unsupported operator",
	E1103: "unsupported expression",

	E2001: "undefined identifier",
	E2002: "undefined function",
	E2003: "constant depends on reactive state",
	E2004: "derived value has no reactive dependency",
	E2005: "invalid assignment",
	E2006: "duplicate declaration",
	E2007: "handler called from a pure expression",
	E2008: "unknown component",
	E2009: "unknown prop",
	E2010: "shadowed variable",
	E2011: "wrong number of arguments",
	E2012: "invalid return statement",
	E2013: "invalid event binding",
	E2020: "cyclic dependency",

	E3001: "type error",
	E3002: "division by zero",
	E3003: "index out of bounds",
	E3004: "nil reference",
	E3005: "invalid operation",
	E3006: "invalid argument",
	E3007: "stack overflow",
	E3008: "host failure",

	E4001: "operand overflow",
	E4002: "unresolved label",
	E4003: "dangling reference",
	E4004: "invalid module encoding",
}

// Description returns the short description for an error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}

// String returns the error code as a string.
func (c ErrorCode) String() string {
	return string(c)
}

// Category returns the error category based on the code prefix.
func (c ErrorCode) Category() string {
	if len(c) < 3 {
		return "unknown"
	}
	switch c[1] {
	case '1':
		if c[2] == '1' {
			return "unsupported"
		}
		return "syntax"
	case '2':
		return "binding"
	case '3':
		return "runtime"
	case '4':
		return "codegen"
	default:
		return "unknown"
	}
}
