package errors

import (
	"fmt"
)

// List holds the diagnostics collected for one compilation unit.
type List struct {
	Errors []Diagnostic
}

// Error implements the error interface.
func (l *List) Error() string {
	if len(l.Errors) == 0 {
		return ""
	}
	if len(l.Errors) == 1 {
		return l.Errors[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", l.Errors[0].Error(), len(l.Errors)-1)
}

// Unwrap returns the collected errors so errors.As can match any of them.
func (l *List) Unwrap() []error {
	out := make([]error, len(l.Errors))
	for i, err := range l.Errors {
		out[i] = err
	}
	return out
}

// FriendlyErrorMessage returns a human-friendly error message for all errors.
func (l *List) FriendlyErrorMessage() string {
	return l.Format(false)
}

// Format renders every diagnostic with the Formatter.
func (l *List) Format(useColor bool) string {
	if len(l.Errors) == 0 {
		return ""
	}
	formatted := make([]*FormattedError, 0, len(l.Errors))
	for _, err := range l.Errors {
		formatted = append(formatted, err.ToFormatted())
	}
	return NewFormatter(useColor).FormatMultiple(formatted)
}

// Add adds a diagnostic to the collection.
func (l *List) Add(err Diagnostic) {
	l.Errors = append(l.Errors, err)
}

// Count returns the number of errors.
func (l *List) Count() int {
	return len(l.Errors)
}

// HasErrors returns true if there are any errors.
func (l *List) HasErrors() bool {
	return len(l.Errors) > 0
}

// ToError returns the errors as a single error, or nil if empty.
func (l *List) ToError() error {
	if len(l.Errors) == 0 {
		return nil
	}
	if len(l.Errors) == 1 {
		return l.Errors[0]
	}
	return l
}

// Diagnostics flattens err into its diagnostics. Errors that are not
// diagnostics are returned as codegen defects so nothing is dropped.
func Diagnostics(err error) []Diagnostic {
	if err == nil {
		return nil
	}
	var list *List
	if As(err, &list) {
		return list.Errors
	}
	var d Diagnostic
	if As(err, &d) {
		return []Diagnostic{d}
	}
	if multi, ok := err.(interface{ Unwrap() []error }); ok {
		var out []Diagnostic
		for _, e := range multi.Unwrap() {
			out = append(out, Diagnostics(e)...)
		}
		return out
	}
	return []Diagnostic{&CodegenError{Base{Code: E4003, Message: err.Error()}}}
}
