package table

import (
	"bytes"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/require"
)

func TestTable(t *testing.T) {
	var buf bytes.Buffer
	NewTable(&buf).
		WithHeader([]string{"OFFSET", "OPCODE", "INFO"}).
		WithColumnAlignment([]Alignment{AlignRight, AlignLeft, AlignLeft}).
		WithHeaderAlignment([]Alignment{AlignCenter, AlignCenter, AlignRight}).
		Append([]string{"0", "LOAD_VAR", "count"}).
		Append([]string{"12", "RETURN", ""}).
		Render()

	want := `
+--------+----------+-------+
| OFFSET |  OPCODE  |  INFO |
+--------+----------+-------+
|      0 | LOAD_VAR | count |
|     12 | RETURN   |       |
+--------+----------+-------+
`
	require.Equal(t, strings.TrimSpace(want)+"\n", buf.String())
}

func TestColoredCellsKeepAlignment(t *testing.T) {
	color.NoColor = false
	defer func() { color.NoColor = true }()

	var buf bytes.Buffer
	NewTable(&buf).
		WithHeader([]string{"OFFSET", "OPCODE"}).
		Append([]string{color.YellowString("4"), color.New(color.Bold).Sprint("BIND_TEXT")}).
		Append([]string{"100", "CALL_FUNC"}).
		Render()

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 6)
	require.Contains(t, buf.String(), "\x1b[")
	for i, line := range lines {
		require.Equal(t, len(lines[0]), len(stripAnsi(line)), "line %d", i)
	}
}
