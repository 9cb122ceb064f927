package parser

import (
	"sort"

	"github.com/deepnoodle-ai/sme/internal/token"
)

// sourceFile maps byte offsets of a component file to positions.
type sourceFile struct {
	text       string
	file       string
	lineStarts []int
}

func newSourceFile(text, file string) *sourceFile {
	starts := []int{0}
	for i := 0; i < len(text); i++ {
		if text[i] == '\n' {
			starts = append(starts, i+1)
		}
	}
	return &sourceFile{text: text, file: file, lineStarts: starts}
}

// pos returns the position of the byte at offset.
func (s *sourceFile) pos(offset int) token.Position {
	if offset < 0 {
		offset = 0
	}
	if offset > len(s.text) {
		offset = len(s.text)
	}
	line := sort.Search(len(s.lineStarts), func(i int) bool {
		return s.lineStarts[i] > offset
	}) - 1
	start := s.lineStarts[line]
	return token.Position{
		Char:      offset,
		LineStart: start,
		Line:      line,
		Column:    offset - start,
		File:      s.file,
	}
}
