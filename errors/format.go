package errors

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

// Formatter renders diagnostics in a compiler-style layout: a header with
// the kind and code, a location arrow, the offending source line with a
// caret underline, then hint and note lines.
type Formatter struct {
	// UseColor enables ANSI color codes in output.
	UseColor bool
}

// NewFormatter creates a new error formatter.
func NewFormatter(useColor bool) *Formatter {
	return &Formatter{UseColor: useColor}
}

// Colors are enabled unconditionally; Formatter.UseColor decides whether
// they are applied.
var (
	colorError     = newColor(color.FgRed)
	colorErrorBold = newColor(color.FgHiRed, color.Bold)
	colorGutter    = newColor(color.FgHiBlack)
	colorLocation  = newColor(color.FgCyan)
	colorSource    = newColor(color.FgWhite)
	colorCaret     = newColor(color.FgHiRed)
	colorHint      = newColor(color.FgHiYellow)
	colorNote      = newColor(color.FgHiBlue)
)

func newColor(attrs ...color.Attribute) *color.Color {
	c := color.New(attrs...)
	c.EnableColor()
	return c
}

// FormattedError is a diagnostic flattened for display.
type FormattedError struct {
	Code        ErrorCode
	Kind        string // "syntax error", "binding error", "runtime fault", ...
	Message     string
	Filename    string
	Line        int
	Column      int
	EndColumn   int
	SourceLines []SourceLineEntry
	Hint        string
	Note        string
}

// SourceLineEntry is one line of source context. IsMain marks the line the
// caret is drawn under.
type SourceLineEntry struct {
	Number int
	Text   string
	IsMain bool
}

func (f *Formatter) paint(c *color.Color, s string) string {
	if f.UseColor {
		return c.Sprint(s)
	}
	return s
}

// Format renders a single diagnostic.
func (f *Formatter) Format(err *FormattedError) string {
	return f.FormatWithPrefix(err, "")
}

// FormatWithPrefix renders a diagnostic, showing prefix (such as "1/5") in
// the header brackets when the diagnostic has no code.
func (f *Formatter) FormatWithPrefix(err *FormattedError, prefix string) string {
	width := max(2, len(strconv.Itoa(err.Line)))
	gutter := strings.Repeat(" ", width)
	var b strings.Builder

	label := "error"
	if err.Kind != "" {
		label = err.Kind
	}
	b.WriteString(f.paint(colorErrorBold, label))
	if tag := string(err.Code); tag != "" || prefix != "" {
		if tag == "" {
			tag = prefix
		}
		b.WriteString(f.paint(colorGutter, "["+tag+"]"))
	}
	b.WriteString(f.paint(colorError, ": "))
	b.WriteString(err.Message)
	b.WriteByte('\n')

	if loc := location(err); loc != "" {
		fmt.Fprintf(&b, "%s%s %s\n", gutter, f.paint(colorLocation, "-->"), f.paint(colorLocation, loc))
	}

	if len(err.SourceLines) > 0 {
		b.WriteString(gutter + f.paint(colorGutter, " |") + "\n")
	}
	for _, line := range err.SourceLines {
		b.WriteString(f.paint(colorGutter, fmt.Sprintf("%*d | ", width, line.Number)))
		b.WriteString(f.paint(colorSource, line.Text))
		b.WriteByte('\n')
		if !line.IsMain || err.Column <= 0 {
			continue
		}
		span := 1
		if err.EndColumn > err.Column {
			span = err.EndColumn - err.Column + 1
		}
		b.WriteString(gutter + f.paint(colorGutter, " | "))
		b.WriteString(strings.Repeat(" ", err.Column-1))
		b.WriteString(f.paint(colorCaret, strings.Repeat("^", span)))
		b.WriteByte('\n')
	}

	if err.Hint != "" {
		b.WriteString(gutter + f.paint(colorGutter, " |") + "\n")
		b.WriteString(gutter + f.paint(colorGutter, " = ") + f.paint(colorHint, "hint: ") + err.Hint + "\n")
	}
	if err.Note != "" {
		b.WriteString(gutter + f.paint(colorGutter, " = ") + f.paint(colorNote, "note: ") + err.Note + "\n")
	}
	return b.String()
}

func location(err *FormattedError) string {
	switch {
	case err.Filename != "" && err.Line > 0:
		return fmt.Sprintf("%s:%d:%d", err.Filename, err.Line, err.Column)
	case err.Filename != "":
		return err.Filename
	case err.Line > 0:
		return fmt.Sprintf("%d:%d", err.Line, err.Column)
	}
	return ""
}

// FormatMultiple renders a batch of diagnostics. More than one diagnostic
// are numbered and followed by a count.
func (f *Formatter) FormatMultiple(errs []*FormattedError) string {
	switch len(errs) {
	case 0:
		return ""
	case 1:
		return f.Format(errs[0])
	}
	var b strings.Builder
	for i, err := range errs {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(f.FormatWithPrefix(err, fmt.Sprintf("%d/%d", i+1, len(errs))))
	}
	b.WriteString("\n" + f.paint(colorErrorBold, fmt.Sprintf("found %d errors", len(errs))) + "\n")
	return b.String()
}
