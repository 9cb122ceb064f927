package parser

import (
	"strings"

	"github.com/deepnoodle-ai/sme/errors"
)

type sectionKind int

const (
	sectionScript sectionKind = iota
	sectionTemplate
	sectionStyle
)

var sectionNames = map[string]sectionKind{
	"script":   sectionScript,
	"template": sectionTemplate,
	"style":    sectionStyle,
}

// section is the byte range of a section's content within the file.
type section struct {
	name       string
	openOffset int
	start      int
	end        int
}

// splitSections locates the top level sections of the file. Content outside
// of a section other than whitespace and comments is an error, as are
// duplicated sections and a missing template.
func (p *Parser) splitSections() map[sectionKind]*section {
	text := p.src.text
	found := map[sectionKind]*section{}
	i := 0
	for i < len(text) {
		if isSpace(text[i]) {
			i++
			continue
		}
		if strings.HasPrefix(text[i:], "<!--") {
			end := strings.Index(text[i+4:], "-->")
			if end < 0 {
				p.syntaxErrorAt(errors.E1013, i, "unclosed comment")
				break
			}
			i += 4 + end + 3
			continue
		}
		name, ok := sectionOpenTag(text[i:])
		if !ok {
			p.syntaxErrorAt(errors.E1011, i, "unexpected content outside of a <script>, <template> or <style> section")
			next := strings.IndexByte(text[i+1:], '<')
			if next < 0 {
				break
			}
			i += 1 + next
			continue
		}
		openEnd := strings.IndexByte(text[i:], '>')
		if openEnd < 0 {
			p.syntaxErrorAt(errors.E1013, i, "unclosed <%s> tag", name)
			break
		}
		s := &section{name: name, openOffset: i, start: i + openEnd + 1}
		closeStart, closeEnd := findSectionClose(text, s.start, name)
		if closeStart < 0 {
			p.syntaxErrorAt(errors.E1013, i, "unclosed <%s> section", name)
			s.end = len(text)
			i = len(text)
		} else {
			s.end = closeStart
			i = closeEnd
		}
		kind := sectionNames[name]
		if _, dup := found[kind]; dup {
			p.syntaxErrorAt(errors.E1011, s.openOffset, "duplicate <%s> section", name)
			continue
		}
		found[kind] = s
	}
	if _, ok := found[sectionTemplate]; !ok {
		p.syntaxErrorAt(errors.E1011, len(text), "missing <template> section")
	}
	return found
}

// sectionOpenTag reports whether s begins with the opening tag of a section.
func sectionOpenTag(s string) (string, bool) {
	if !strings.HasPrefix(s, "<") {
		return "", false
	}
	for name := range sectionNames {
		rest := s[1:]
		if !strings.HasPrefix(rest, name) || len(rest) == len(name) {
			continue
		}
		switch c := rest[len(name)]; {
		case c == '>' || c == '/' || isSpace(c):
			return name, true
		}
	}
	return "", false
}

// findSectionClose returns the offsets of the closing tag for a section whose
// content begins at start. Nested templates are balanced.
func findSectionClose(text string, start int, name string) (int, int) {
	open := "<" + name
	closing := "</" + name
	depth := 0
	i := start
	for i < len(text) {
		next := strings.Index(text[i:], closing)
		if next < 0 {
			return -1, -1
		}
		if name == "template" {
			// Count nested <template> elements that open before this close.
			segment := text[i : i+next]
			for {
				j := strings.Index(segment, open)
				if j < 0 {
					break
				}
				after := j + len(open)
				if after < len(segment) && (segment[after] == '>' || isSpace(segment[after])) {
					depth++
				}
				segment = segment[after:]
			}
		}
		closeStart := i + next
		gt := strings.IndexByte(text[closeStart:], '>')
		if gt < 0 {
			return -1, -1
		}
		if depth == 0 {
			return closeStart, closeStart + gt + 1
		}
		depth--
		i = closeStart + gt + 1
	}
	return -1, -1
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
