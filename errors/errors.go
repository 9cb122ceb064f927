// Package errors defines the compiler diagnostics and runtime faults, each
// carrying a stable code and a source location.
package errors

import (
	"errors"
	"fmt"
	"strings"

	"github.com/deepnoodle-ai/sme/internal/token"
)

// SourceLocation represents a position in source code.
type SourceLocation struct {
	Filename  string
	Line      int    // 1-based line number
	Column    int    // 1-based column number
	EndColumn int    // 1-based column of the last character, if known
	Source    string // The line of source code
}

// String returns a formatted string representation of the source location.
func (s SourceLocation) String() string {
	if s.Filename != "" {
		return fmt.Sprintf("%s:%d:%d", s.Filename, s.Line, s.Column)
	}
	return fmt.Sprintf("%d:%d", s.Line, s.Column)
}

// IsZero returns true if the location has not been set.
func (s SourceLocation) IsZero() bool {
	return s.Line == 0 && s.Column == 0
}

// At builds a SourceLocation for pos, taking the line text from source.
func At(pos token.Position, source string) SourceLocation {
	loc := SourceLocation{
		Filename: pos.File,
		Line:     pos.LineNumber(),
		Column:   pos.ColumnNumber(),
	}
	if pos.LineStart >= 0 && pos.LineStart <= len(source) {
		line := source[pos.LineStart:]
		if i := strings.IndexByte(line, '\n'); i >= 0 {
			line = line[:i]
		}
		loc.Source = strings.TrimRight(line, "\r")
	}
	return loc
}

// Span builds a SourceLocation covering from up to, but excluding, to when
// both are on one line.
func Span(from, to token.Position, source string) SourceLocation {
	loc := At(from, source)
	if to.Line == from.Line && to.Column > from.Column+1 {
		loc.EndColumn = to.Column
	}
	return loc
}

// Diagnostic is implemented by every compiler error. Tooling uses Kind and
// Code to tell the categories apart.
type Diagnostic interface {
	error
	Kind() string
	ErrorCode() ErrorCode
	Location() SourceLocation
	ToFormatted() *FormattedError
}

// Base holds the fields common to all diagnostics.
type Base struct {
	Code    ErrorCode
	Message string
	Loc     SourceLocation
	Hint    string
	Note    string
}

func (b *Base) ErrorCode() ErrorCode     { return b.Code }
func (b *Base) Location() SourceLocation { return b.Loc }

func (b *Base) format(kind string) string {
	if b.Loc.IsZero() {
		return fmt.Sprintf("%s: %s", kind, b.Message)
	}
	return fmt.Sprintf("%s: %s: %s", b.Loc.String(), kind, b.Message)
}

func (b *Base) formatted(kind string) *FormattedError {
	fe := &FormattedError{
		Code:      b.Code,
		Kind:      kind,
		Message:   b.Message,
		Filename:  b.Loc.Filename,
		Line:      b.Loc.Line,
		Column:    b.Loc.Column,
		EndColumn: b.Loc.EndColumn,
		Hint:      b.Hint,
		Note:      b.Note,
	}
	if b.Loc.Source != "" {
		fe.SourceLines = []SourceLineEntry{
			{Number: b.Loc.Line, Text: b.Loc.Source, IsMain: true},
		}
	}
	return fe
}

// SyntaxError reports malformed logic or markup. The parser recovers from
// these and may report several per file.
type SyntaxError struct {
	Base
}

func (e *SyntaxError) Kind() string                 { return "syntax error" }
func (e *SyntaxError) Error() string                { return e.format(e.Kind()) }
func (e *SyntaxError) ToFormatted() *FormattedError { return e.formatted(e.Kind()) }

// NewSyntaxError returns a SyntaxError at loc.
func NewSyntaxError(code ErrorCode, loc SourceLocation, format string, args ...any) *SyntaxError {
	return &SyntaxError{Base{Code: code, Loc: loc, Message: fmt.Sprintf(format, args...)}}
}

// UnsupportedConstructError reports a construct that is well formed but lies
// outside the supported subset.
type UnsupportedConstructError struct {
	Base
	Construct string
}

func (e *UnsupportedConstructError) Kind() string                 { return "unsupported construct" }
func (e *UnsupportedConstructError) Error() string                { return e.format(e.Kind()) }
func (e *UnsupportedConstructError) ToFormatted() *FormattedError { return e.formatted(e.Kind()) }

// NewUnsupportedConstructError returns an UnsupportedConstructError for construct.
func NewUnsupportedConstructError(code ErrorCode, loc SourceLocation, construct string) *UnsupportedConstructError {
	return &UnsupportedConstructError{
		Base: Base{
			Code:    code,
			Loc:     loc,
			Message: fmt.Sprintf("%s is not supported in components", construct),
		},
		Construct: construct,
	}
}

// BindingError reports an identifier that cannot be resolved or is used in a
// way its declaration does not allow.
type BindingError struct {
	Base
	Name        string
	Suggestions []Suggestion
}

func (e *BindingError) Kind() string  { return "binding error" }
func (e *BindingError) Error() string { return e.format(e.Kind()) }

func (e *BindingError) ToFormatted() *FormattedError {
	fe := e.formatted(e.Kind())
	if fe.Hint == "" && len(e.Suggestions) > 0 {
		fe.Hint = FormatSuggestions(e.Suggestions)
	}
	return fe
}

// NewBindingError returns a BindingError at loc.
func NewBindingError(code ErrorCode, loc SourceLocation, format string, args ...any) *BindingError {
	return &BindingError{Base: Base{Code: code, Loc: loc, Message: fmt.Sprintf(format, args...)}}
}

// CyclicDependencyError reports derived values that depend on themselves.
// Cycle lists the members in dependency order, starting and ending with the
// same name.
type CyclicDependencyError struct {
	Base
	Cycle []string
}

func (e *CyclicDependencyError) Kind() string                 { return "cyclic dependency" }
func (e *CyclicDependencyError) Error() string                { return e.format(e.Kind()) }
func (e *CyclicDependencyError) ToFormatted() *FormattedError { return e.formatted(e.Kind()) }

// NewCyclicDependencyError returns a CyclicDependencyError naming cycle.
func NewCyclicDependencyError(loc SourceLocation, cycle []string) *CyclicDependencyError {
	return &CyclicDependencyError{
		Base: Base{
			Code:    E2020,
			Loc:     loc,
			Message: "derived values form a cycle: " + strings.Join(cycle, " -> "),
		},
		Cycle: cycle,
	}
}

// CodegenError reports an internal invariant violation while generating or
// encoding code. It always indicates a compiler defect.
type CodegenError struct {
	Base
}

func (e *CodegenError) Kind() string                 { return "codegen error" }
func (e *CodegenError) Error() string                { return e.format(e.Kind()) }
func (e *CodegenError) ToFormatted() *FormattedError { return e.formatted(e.Kind()) }

// CodegenErrorf returns a CodegenError without a source location.
func CodegenErrorf(code ErrorCode, format string, args ...any) *CodegenError {
	return &CodegenError{Base{Code: code, Message: fmt.Sprintf(format, args...)}}
}

// Fault is a runtime failure raised while evaluating compiled code.
type Fault struct {
	Code    ErrorCode
	Message string
	// Component and Target identify where the fault was isolated, for
	// example "Counter" and "binding 3". They are filled in by the scheduler.
	Component string
	Target    string
	Loc       SourceLocation
	Err       error
}

// Faultf returns a Fault with the given code.
func Faultf(code ErrorCode, format string, args ...any) *Fault {
	return &Fault{Code: code, Message: fmt.Sprintf(format, args...)}
}

func (f *Fault) Error() string {
	var b strings.Builder
	b.WriteString("runtime fault")
	if f.Component != "" || f.Target != "" {
		b.WriteString(" in ")
		b.WriteString(strings.TrimSpace(f.Component + " " + f.Target))
	}
	b.WriteString(": ")
	b.WriteString(f.Message)
	if !f.Loc.IsZero() {
		b.WriteString(" (")
		b.WriteString(f.Loc.String())
		b.WriteString(")")
	}
	return b.String()
}

func (f *Fault) Unwrap() error { return f.Err }

// ToFormatted converts the fault for display.
func (f *Fault) ToFormatted() *FormattedError {
	fe := &FormattedError{
		Code:     f.Code,
		Kind:     "runtime fault",
		Message:  f.Message,
		Filename: f.Loc.Filename,
		Line:     f.Loc.Line,
		Column:   f.Loc.Column,
	}
	if f.Target != "" {
		fe.Note = strings.TrimSpace("in " + f.Component + " " + f.Target)
	}
	if f.Loc.Source != "" {
		fe.SourceLines = []SourceLineEntry{{Number: f.Loc.Line, Text: f.Loc.Source, IsMain: true}}
	}
	return fe
}

// AsFault converts err into a Fault, wrapping foreign errors as host failures.
func AsFault(err error) *Fault {
	var f *Fault
	if errors.As(err, &f) {
		return f
	}
	return &Fault{Code: E3008, Message: err.Error(), Err: err}
}

// Is reports whether any error in err's tree matches target.
func Is(err, target error) bool { return errors.Is(err, target) }

// As finds the first error in err's tree that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error { return errors.New(text) }
