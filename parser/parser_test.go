package parser

import (
	"context"
	"strings"
	"testing"

	"github.com/deepnoodle-ai/sme/ast"
	"github.com/deepnoodle-ai/sme/errors"
	"github.com/stretchr/testify/require"
)

const counterSource = `<script>
let count = 0
derived double = count * 2
function inc() {
  count += 1
}
</script>
<template>
  <button onclick={inc}>Clicked {count} times</button>
  <p>{double}</p>
</template>
<style>p { color: red; }</style>
`

func parse(t *testing.T, src string) *ast.Component {
	t.Helper()
	comp, err := Parse(context.Background(), src, WithFilename("counter.sme"))
	require.NoError(t, err)
	return comp
}

func diagnostics(t *testing.T, src string) []errors.Diagnostic {
	t.Helper()
	_, err := Parse(context.Background(), src, WithFilename("test.sme"))
	require.Error(t, err)
	return errors.Diagnostics(err)
}

func codes(diags []errors.Diagnostic) []errors.ErrorCode {
	var out []errors.ErrorCode
	for _, d := range diags {
		out = append(out, d.ErrorCode())
	}
	return out
}

func TestParseCounter(t *testing.T) {
	comp := parse(t, counterSource)
	require.Equal(t, "Counter", comp.Name)
	require.Equal(t, "counter.sme", comp.File)

	require.Len(t, comp.Logic.Stmts, 3)
	require.Equal(t, "let count = 0", comp.Logic.Stmts[0].String())
	require.Equal(t, "derived double = (count * 2)", comp.Logic.Stmts[1].String())
	fn, ok := comp.Logic.Stmts[2].(*ast.FuncDecl)
	require.True(t, ok)
	require.Equal(t, "inc", fn.Name.Name)
	require.Len(t, fn.Body.Stmts, 1)
	require.Equal(t, "count += 1", fn.Body.Stmts[0].String())

	require.Len(t, comp.Markup.Children, 2)
	require.Equal(t, "<button onclick={inc}>Clicked {count} times</button>", comp.Markup.Children[0].String())
	require.Equal(t, "<p>{double}</p>", comp.Markup.Children[1].String())

	button := comp.Markup.Children[0].(*ast.Element)
	require.True(t, button.Attrs[0].IsEvent())
	require.Equal(t, "click", button.Attrs[0].EventName())
	require.Equal(t, 9, button.Pos().LineNumber())
	require.Equal(t, 3, button.Pos().ColumnNumber())

	require.Equal(t, "p { color: red; }", comp.Style.Content)
}

func TestParseWithName(t *testing.T) {
	comp, err := Parse(context.Background(), "<template></template>", WithName("App"))
	require.NoError(t, err)
	require.Equal(t, "App", comp.Name)
	require.Empty(t, comp.Logic.Stmts)
	require.Empty(t, comp.Markup.Children)
	require.Equal(t, "", comp.Style.Content)
}

func TestComponentName(t *testing.T) {
	require.Equal(t, "TodoList", ComponentName("src/todo-list.sme"))
	require.Equal(t, "Card", ComponentName("card.sme"))
	require.Equal(t, "UserProfileView", ComponentName("user_profile.view.sme"))
	require.Equal(t, "Component", ComponentName(""))
}

func TestParseStatements(t *testing.T) {
	src := `<script>
prop title = "Todo"
let items = ["a", "b"]
const limit = 10
let selected
function pick(i) {
  let next = i + 1
  if next > limit {
    return
  } else if next < 0 {
    selected = nil
  } else {
    selected = items[i]
  }
  for j, item in items { log(j, item) }
}
</script>
<template></template>`
	comp := parse(t, src)
	require.Len(t, comp.Logic.Stmts, 5)
	require.Equal(t, `prop title = "Todo"`, comp.Logic.Stmts[0].String())
	require.Equal(t, `let items = ["a", "b"]`, comp.Logic.Stmts[1].String())
	require.Equal(t, "let selected", comp.Logic.Stmts[3].String())

	fn := comp.Logic.Stmts[4].(*ast.FuncDecl)
	require.Equal(t, "i", fn.Params[0].Name)
	require.Len(t, fn.Body.Stmts, 3)
	ifStmt := fn.Body.Stmts[1].(*ast.If)
	elseIf, ok := ifStmt.Alternative.(*ast.If)
	require.True(t, ok)
	_, ok = elseIf.Alternative.(*ast.Block)
	require.True(t, ok)
	loop := fn.Body.Stmts[2].(*ast.For)
	require.Equal(t, "j", loop.Index.Name)
	require.Equal(t, "item", loop.Value.Name)
	require.Equal(t, "for j, item in items { log(j, item) }", loop.String())
}

func TestParseExpr(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"a + b * 2", "(a + (b * 2))"},
		{"(a + b) * 2", "((a + b) * 2)"},
		{"2 ** 3 ** 2", "(2 ** (3 ** 2))"},
		{"-a ** 2", "((-a) ** 2)"},
		{"a ? b : c ? d : e", "(a ? b : (c ? d : e))"},
		{"a ?? b || c", "(a ?? (b || c))"},
		{"!done && count >= 10", "((!done) && (count >= 10))"},
		{"items[i + 1]", "items[(i + 1)]"},
		{"max(a, len(items))", "max(a, len(items))"},
		{"[1, 2.5, 'x', nil, true]", `[1, 2.5, "x", nil, true]`},
		{"a +\n b", "(a + b)"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			expr, err := ParseExpr(tt.input)
			require.NoError(t, err)
			require.Equal(t, tt.expected, expr.String())
		})
	}
}

func TestParseExprErrors(t *testing.T) {
	tests := []struct {
		input string
		code  errors.ErrorCode
		kind  string
	}{
		{"", errors.E1004, "syntax error"},
		{"a +", errors.E1004, "syntax error"},
		{"a b", errors.E1001, "syntax error"},
		{"user.name", errors.E1103, "unsupported construct"},
		{"x => x", errors.E1102, "unsupported construct"},
		{"{a: 1}", errors.E1103, "unsupported construct"},
		{"f(1)(2)", errors.E1103, "unsupported construct"},
		{"await x", errors.E1101, "unsupported construct"},
		{`"abc`, errors.E1002, "syntax error"},
		{"[1, 2", errors.E1001, "syntax error"},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := ParseExpr(tt.input)
			require.Error(t, err)
			diags := errors.Diagnostics(err)
			require.Len(t, diags, 1)
			require.Equal(t, tt.code, diags[0].ErrorCode())
			require.Equal(t, tt.kind, diags[0].Kind())
		})
	}
}

func TestMaxDepth(t *testing.T) {
	input := strings.Repeat("(", 600) + "1" + strings.Repeat(")", 600)
	_, err := ParseExpr(input)
	require.Error(t, err)
	require.Equal(t, errors.E1009, errors.Diagnostics(err)[0].ErrorCode())

	p := New(input, WithMaxDepth(1000))
	expr := p.parseEmbeddedExpr(0, len(input))
	require.NotNil(t, expr)
	require.False(t, p.hasErrors())
}

func TestContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Parse(ctx, counterSource)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMultipleErrors(t *testing.T) {
	src := `<script>
let = 5
let y = 10
const z
</script>
<template><p>{y}</p></template>`
	diags := diagnostics(t, src)
	require.Equal(t, []errors.ErrorCode{errors.E1006, errors.E1001}, codes(diags))
	require.Equal(t, 2, diags[0].Location().Line)
	require.Equal(t, 4, diags[1].Location().Line)
	require.Equal(t, "test.sme", diags[0].Location().Filename)
}

func TestMissingInitializerRecovery(t *testing.T) {
	src := `<script>
let a =
let b = )
let c = 1
</script>
<template><p>{c}</p></template>`
	comp, err := Parse(context.Background(), src, WithFilename("test.sme"))
	require.Error(t, err)
	diags := errors.Diagnostics(err)
	require.Equal(t, []errors.ErrorCode{errors.E1004, errors.E1004}, codes(diags))
	require.Contains(t, diags[0].Error(), "missing initializer for a")
	require.Equal(t, 2, diags[0].Location().Line)
	require.Equal(t, 3, diags[1].Location().Line)
	require.Len(t, comp.Logic.Stmts, 1)
	require.Equal(t, "let c = 1", comp.Logic.Stmts[0].String())
}

func TestRecoveryInsideHandler(t *testing.T) {
	src := `<script>
function a() {
  let = 1
  count = 2
}
let ok = 1
let = 2
</script>
<template></template>`
	comp, err := Parse(context.Background(), src)
	require.Error(t, err)
	require.Equal(t, []errors.ErrorCode{errors.E1006, errors.E1006}, codes(errors.Diagnostics(err)))
	require.Len(t, comp.Logic.Stmts, 1)
	require.Equal(t, "let ok = 1", comp.Logic.Stmts[0].String())
}

func TestUnsupportedStatements(t *testing.T) {
	tests := []struct {
		name string
		code string
		want errors.ErrorCode
	}{
		{"while", "while x { }", errors.E1101},
		{"increment", "x++", errors.E1102},
		{"nested function", "function a() { function b() { } }", errors.E1103},
		{"return value", "function a() { return 1 }", errors.E1103},
		{"anonymous function", "let f = function() { }", errors.E1103},
		{"import", "import foo", errors.E1101},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := diagnostics(t, "<script>\n"+tt.code+"\n</script><template></template>")
			require.Equal(t, tt.want, diags[0].ErrorCode())
			_, ok := diags[0].(*errors.UnsupportedConstructError)
			require.True(t, ok)
		})
	}
}

func TestStatementErrors(t *testing.T) {
	tests := []struct {
		name string
		code string
		want errors.ErrorCode
	}{
		{"expression statement", "x + 1", errors.E1003},
		{"index assignment", "items[0] = 1", errors.E1005},
		{"derived without value", "derived d", errors.E1001},
		{"const in handler", "function a() { const b = 1 }", errors.E1003},
		{"unterminated block", "function a() {", errors.E1007},
		{"bad escape", `let s = "\q"`, errors.E1010},
		{"trailing tokens", "let a = 1 2", errors.E1001},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			diags := diagnostics(t, "<script>\n"+tt.code+"\n</script><template></template>")
			require.Equal(t, tt.want, diags[0].ErrorCode())
		})
	}
}

func TestErrorLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString("<script>\n")
	for i := 0; i < 20; i++ {
		b.WriteString("let = 1\n")
	}
	b.WriteString("</script><template></template>")
	diags := diagnostics(t, b.String())
	require.Len(t, diags, MaxErrors)
}
