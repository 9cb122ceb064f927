package parser

import (
	"html"
	"strings"

	"github.com/deepnoodle-ai/sme/ast"
	"github.com/deepnoodle-ai/sme/errors"
	"github.com/deepnoodle-ai/sme/internal/token"
)

// openNode is an element or block whose closing marker has not been seen.
type openNode struct {
	block bool
	name  string
}

// markupState is the cursor of the markup scanner. Offsets are absolute
// offsets into the component source.
type markupState struct {
	pos  int
	end  int
	open []openNode
}

// parseMarkup parses the template section text[start:end].
func (p *Parser) parseMarkup(start, end int) *ast.Root {
	p.m = &markupState{pos: start, end: end}
	root := &ast.Root{Start: p.src.pos(start)}
	root.Children = p.parseChildren()
	root.EndPos = p.src.pos(end)
	return root
}

func (p *Parser) rest() string {
	return p.src.text[p.m.pos:p.m.end]
}

// isOpen reports whether an element or block with the given name is open.
func (p *Parser) isOpen(block bool, name string) bool {
	for i := len(p.m.open) - 1; i >= 0; i-- {
		if o := p.m.open[i]; o.block == block && o.name == name {
			return true
		}
	}
	return false
}

func (p *Parser) push(block bool, name string) {
	p.m.open = append(p.m.open, openNode{block: block, name: name})
}

func (p *Parser) pop() {
	p.m.open = p.m.open[:len(p.m.open)-1]
}

// parseChildren parses sibling nodes until the end of the template or a
// closing tag or block marker that belongs to an open ancestor. The closing
// marker is left for the ancestor to consume.
func (p *Parser) parseChildren() []ast.Markup {
	var children []ast.Markup
	for p.m.pos < p.m.end && !p.tooManyErrors() {
		rest := p.rest()
		switch {
		case strings.HasPrefix(rest, "<!--"):
			p.skipComment()
		case strings.HasPrefix(rest, "</"):
			name, next := p.scanCloseTag(p.m.pos)
			if p.isOpen(false, name) {
				return children
			}
			p.syntaxErrorAt(errors.E1012, p.m.pos, "unexpected closing tag </%s>", name)
			p.m.pos = next
		case len(rest) > 1 && rest[0] == '<' && isTagStart(rest[1]):
			if node := p.parseTag(); node != nil {
				children = append(children, node)
			}
		case strings.HasPrefix(rest, "{:") || strings.HasPrefix(rest, "{/"):
			word := markerWord(rest[2:])
			if rest[1] == ':' && (p.isOpen(true, "if") || p.isOpen(true, "each")) {
				return children
			}
			if rest[1] == '/' && p.isOpen(true, word) {
				return children
			}
			p.syntaxErrorAt(errors.E1012, p.m.pos, "unexpected {%c%s} outside of a matching block", rest[1], word)
			p.skipMarker()
		case strings.HasPrefix(rest, "{#"):
			if node := p.parseBlockNode(); node != nil {
				children = append(children, node)
			}
		case strings.HasPrefix(rest, "{@"):
			p.unsupported(errors.E1103, p.src.pos(p.m.pos), "'{@"+markerWord(rest[2:])+"}' tags")
			p.skipMarker()
		case rest[0] == '{':
			if node := p.parseExprSlot(); node != nil {
				children = append(children, node)
			}
		default:
			if node := p.parseText(); node != nil {
				children = append(children, node)
			}
		}
	}
	return children
}

func (p *Parser) skipComment() {
	end := strings.Index(p.rest()[4:], "-->")
	if end < 0 {
		p.syntaxErrorAt(errors.E1013, p.m.pos, "unclosed comment")
		p.m.pos = p.m.end
		return
	}
	p.m.pos += 4 + end + 3
}

// skipMarker moves past a {...} marker that is not parsed.
func (p *Parser) skipMarker() {
	rbrace := p.findExprEnd(p.m.pos)
	if rbrace < 0 {
		p.m.pos = p.m.end
		return
	}
	p.m.pos = rbrace + 1
}

// findExprEnd returns the offset of the '}' matching the '{' at open. String
// literals are skipped. A missing brace is reported and -1 returned.
func (p *Parser) findExprEnd(open int) int {
	text := p.src.text
	depth := 0
	for i := open; i < p.m.end; i++ {
		switch c := text[i]; c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		case '"', '\'':
			for i++; i < p.m.end && text[i] != c; i++ {
				if text[i] == '\\' {
					i++
				}
			}
		}
	}
	p.syntaxErrorAt(errors.E1007, open, "unclosed '{' in template")
	return -1
}

func (p *Parser) parseText() ast.Markup {
	start := p.m.pos
	i := start + 1
	for i < p.m.end {
		c := p.src.text[i]
		if c == '{' || c == '<' {
			break
		}
		i++
	}
	p.m.pos = i
	raw := p.src.text[start:i]
	if strings.TrimSpace(raw) == "" && strings.ContainsRune(raw, '\n') {
		return nil
	}
	return &ast.Text{
		ValuePos: p.src.pos(start),
		Value:    html.UnescapeString(raw),
		EndPos:   p.src.pos(i),
	}
}

func (p *Parser) parseExprSlot() ast.Markup {
	open := p.m.pos
	rbrace := p.findExprEnd(open)
	if rbrace < 0 {
		p.m.pos = p.m.end
		return nil
	}
	p.m.pos = rbrace + 1
	x := p.parseEmbeddedExpr(open+1, rbrace)
	if x == nil {
		return nil
	}
	return &ast.ExprSlot{Lbrace: p.src.pos(open), X: x, Rbrace: p.src.pos(rbrace)}
}

// enter guards the markup nesting depth.
func (p *Parser) enter(offset int) bool {
	p.depth++
	if p.depth > p.maxDepth {
		p.syntaxErrorAt(errors.E1009, offset, "maximum nesting depth exceeded")
		return false
	}
	return true
}

func (p *Parser) leave() {
	p.depth--
}

// parseTag parses an element, a component reference or a slot.
func (p *Parser) parseTag() ast.Markup {
	start := p.m.pos
	defer p.leave()
	if !p.enter(start) {
		p.m.pos = p.m.end
		return nil
	}
	p.m.pos++
	name := p.scanName()
	attrs, selfClosing, ok := p.parseAttributes(name)
	if !ok {
		return nil
	}
	lt := p.src.pos(start)
	leaf := selfClosing || ast.VoidElements[name]

	var children []ast.Markup
	if !leaf {
		p.push(false, name)
		children = p.parseChildren()
		p.pop()
		p.expectCloseTag(name, start)
	}
	endPos := p.src.pos(p.m.pos)

	switch {
	case name == "slot":
		if len(attrs) > 0 {
			p.unsupported(errors.E1103, attrs[0].NamePos, "named slots")
		}
		if len(children) > 0 {
			p.unsupported(errors.E1103, children[0].Pos(), "slot fallback content")
		}
		return &ast.Slot{Lt: lt, EndPos: endPos}
	case isUpper(name[0]):
		return &ast.ComponentRef{Lt: lt, Name: name, Attrs: attrs, Children: children, EndPos: endPos}
	default:
		return &ast.Element{Lt: lt, Tag: name, Attrs: attrs, Children: children, EndPos: endPos}
	}
}

func (p *Parser) scanName() string {
	start := p.m.pos
	for p.m.pos < p.m.end && isNameChar(p.src.text[p.m.pos]) {
		p.m.pos++
	}
	return p.src.text[start:p.m.pos]
}

// scanCloseTag reads the name of the closing tag at offset and returns the
// offset following its '>'.
func (p *Parser) scanCloseTag(offset int) (string, int) {
	i := offset + 2
	start := i
	for i < p.m.end && isNameChar(p.src.text[i]) {
		i++
	}
	name := p.src.text[start:i]
	gt := strings.IndexByte(p.src.text[i:p.m.end], '>')
	if gt < 0 {
		return name, p.m.end
	}
	return name, i + gt + 1
}

func (p *Parser) expectCloseTag(name string, openOffset int) {
	if strings.HasPrefix(p.rest(), "</") {
		closeName, next := p.scanCloseTag(p.m.pos)
		if closeName == name {
			p.m.pos = next
			return
		}
	}
	p.syntaxErrorAt(errors.E1013, openOffset, "unclosed <%s> element", name)
}

// parseAttributes parses the attributes of an opening tag up to and
// including its '>'.
func (p *Parser) parseAttributes(tag string) ([]*ast.Attribute, bool, bool) {
	var attrs []*ast.Attribute
	seen := map[string]bool{}
	text := p.src.text
	for {
		for p.m.pos < p.m.end && isSpace(text[p.m.pos]) {
			p.m.pos++
		}
		if p.m.pos >= p.m.end {
			p.syntaxErrorAt(errors.E1013, p.m.end, "unclosed <%s> tag", tag)
			return nil, false, false
		}
		switch c := text[p.m.pos]; {
		case c == '>':
			p.m.pos++
			return attrs, false, true
		case c == '/' && p.m.pos+1 < p.m.end && text[p.m.pos+1] == '>':
			p.m.pos += 2
			return attrs, true, true
		case c == '{':
			p.unsupported(errors.E1103, p.src.pos(p.m.pos), "attribute shorthand")
			p.skipMarker()
			continue
		}
		nameStart := p.m.pos
		for p.m.pos < p.m.end && isAttrNameChar(text[p.m.pos]) {
			p.m.pos++
		}
		if p.m.pos == nameStart {
			p.syntaxErrorAt(errors.E1001, p.m.pos, "unexpected character %q in <%s> tag", text[p.m.pos], tag)
			p.m.pos++
			continue
		}
		attr := &ast.Attribute{NamePos: p.src.pos(nameStart), Name: text[nameStart:p.m.pos]}
		if p.m.pos < p.m.end && text[p.m.pos] == '=' {
			p.m.pos++
			if !p.parseAttrValue(attr) {
				continue
			}
		}
		attr.EndPos = p.src.pos(p.m.pos)
		if seen[attr.Name] {
			p.syntaxErrorAt(errors.E1003, nameStart, "duplicate attribute %q", attr.Name)
			continue
		}
		seen[attr.Name] = true
		attrs = append(attrs, attr)
	}
}

func (p *Parser) parseAttrValue(attr *ast.Attribute) bool {
	text := p.src.text
	if p.m.pos >= p.m.end {
		return false
	}
	switch c := text[p.m.pos]; c {
	case '"', '\'':
		rbrace := strings.IndexByte(text[p.m.pos+1:p.m.end], c)
		if rbrace < 0 {
			p.syntaxErrorAt(errors.E1002, p.m.pos, "unterminated attribute value")
			p.m.pos = p.m.end
			return false
		}
		attr.Value = html.UnescapeString(text[p.m.pos+1 : p.m.pos+1+rbrace])
		p.m.pos += rbrace + 2
	case '{':
		open := p.m.pos
		rbrace := p.findExprEnd(open)
		if rbrace < 0 {
			p.m.pos = p.m.end
			return false
		}
		p.m.pos = rbrace + 1
		attr.Expr = p.parseEmbeddedExpr(open+1, rbrace)
		if attr.Expr == nil {
			return false
		}
	default:
		start := p.m.pos
		for p.m.pos < p.m.end && !isSpace(text[p.m.pos]) && text[p.m.pos] != '>' {
			if text[p.m.pos] == '/' && p.m.pos+1 < p.m.end && text[p.m.pos+1] == '>' {
				break
			}
			p.m.pos++
		}
		attr.Value = html.UnescapeString(text[start:p.m.pos])
	}
	return true
}

// parseBlockNode parses a {#if} or {#each} block.
func (p *Parser) parseBlockNode() ast.Markup {
	open := p.m.pos
	defer p.leave()
	if !p.enter(open) {
		p.m.pos = p.m.end
		return nil
	}
	rbrace := p.findExprEnd(open)
	if rbrace < 0 {
		p.m.pos = p.m.end
		return nil
	}
	kw := markerWord(p.src.text[open+2 : rbrace])
	headStart := open + 2 + len(kw)
	p.m.pos = rbrace + 1
	switch kw {
	case "if":
		return p.parseIfBlock(open, headStart, rbrace)
	case "each":
		return p.parseEachBlock(open, headStart, rbrace)
	}
	p.unsupported(errors.E1103, p.src.pos(open), "'{#"+kw+"}' blocks")
	closing := "{/" + kw + "}"
	if i := strings.Index(p.rest(), closing); i >= 0 {
		p.m.pos += i + len(closing)
	} else {
		p.m.pos = p.m.end
	}
	return nil
}

func (p *Parser) parseIfBlock(open, condStart, condEnd int) ast.Markup {
	block := &ast.IfBlock{Start: p.src.pos(open)}
	branch := &ast.Branch{Start: p.src.pos(open), Cond: p.blockCond(condStart, condEnd)}
	p.push(true, "if")
	defer p.pop()
	for {
		branch.Children = p.parseChildren()
		block.Branches = append(block.Branches, branch)
		rest := p.rest()
		if strings.HasPrefix(rest, "{:") {
			markerOpen := p.m.pos
			rbrace := p.findExprEnd(markerOpen)
			if rbrace < 0 {
				p.m.pos = p.m.end
				return block
			}
			p.m.pos = rbrace + 1
			word := markerWord(p.src.text[markerOpen+2 : rbrace])
			if word != "else" {
				p.syntaxErrorAt(errors.E1003, markerOpen, "unexpected {:%s} in {#if} block", word)
				branch = &ast.Branch{Start: p.src.pos(markerOpen), Cond: &ast.BadExpr{From: p.src.pos(markerOpen)}}
				continue
			}
			if block.HasElse() {
				p.syntaxErrorAt(errors.E1003, markerOpen, "{:else} after the final {:else} branch")
			}
			branch = &ast.Branch{Start: p.src.pos(markerOpen)}
			after := markerOpen + 2 + len(word)
			if next := markerWord(strings.TrimLeft(p.src.text[after:rbrace], " \t\r\n")); next == "if" {
				i := strings.Index(p.src.text[after:rbrace], "if") + after + 2
				branch.Cond = p.blockCond(i, rbrace)
			} else if strings.TrimSpace(p.src.text[after:rbrace]) != "" {
				p.syntaxErrorAt(errors.E1001, after, "unexpected text after {:else}")
			}
			continue
		}
		if p.atBlockClose("if") {
			break
		}
		p.syntaxErrorAt(errors.E1013, open, "unclosed {#if} block")
		break
	}
	block.EndPos = p.src.pos(p.m.pos)
	return block
}

// blockCond parses a block condition, returning a BadExpr when it is
// invalid so the block structure is kept.
func (p *Parser) blockCond(start, end int) ast.Expr {
	x := p.parseEmbeddedExpr(start, end)
	if x == nil {
		return &ast.BadExpr{From: p.src.pos(start)}
	}
	return x
}

// atBlockClose consumes {/name} if it is next.
func (p *Parser) atBlockClose(name string) bool {
	rest := p.rest()
	if !strings.HasPrefix(rest, "{/") {
		return false
	}
	rbrace := p.findExprEnd(p.m.pos)
	if rbrace < 0 {
		p.m.pos = p.m.end
		return true
	}
	if strings.TrimSpace(p.src.text[p.m.pos+2:rbrace]) != name {
		return false
	}
	p.m.pos = rbrace + 1
	return true
}

func (p *Parser) parseEachBlock(open, headStart, headEnd int) ast.Markup {
	block := &ast.EachBlock{Start: p.src.pos(open)}
	block.Iterable, block.Item, block.Index = p.parseEachHead(headStart, headEnd)
	if block.Iterable == nil {
		block.Iterable = &ast.BadExpr{From: p.src.pos(headStart)}
	}
	p.push(true, "each")
	defer p.pop()
	for {
		block.Children = append(block.Children, p.parseChildren()...)
		if strings.HasPrefix(p.rest(), "{:") {
			p.unsupported(errors.E1103, p.src.pos(p.m.pos), "'{:else}' in {#each} blocks")
			p.skipMarker()
			continue
		}
		if !p.atBlockClose("each") {
			p.syntaxErrorAt(errors.E1013, open, "unclosed {#each} block")
		}
		break
	}
	block.EndPos = p.src.pos(p.m.pos)
	return block
}

// parseEachHead parses "items as item, index".
func (p *Parser) parseEachHead(start, end int) (ast.Expr, *ast.Ident, *ast.Ident) {
	p.startLexer(start, end)
	p.stmtErrorCount = p.errs.Count()
	p.eatNewlines()
	if p.curTokenIs(token.EOF) {
		p.syntaxErrorAt(errors.E1004, start, "expected an expression in {#each} block")
		return nil, nil, nil
	}
	iterable := p.parseExpression(LOWEST)
	if iterable == nil {
		return nil, nil, nil
	}
	if !p.peekTokenIs(token.IDENT) || p.peekToken.Literal != "as" {
		p.syntaxError(errors.E1001, p.peekToken, "expected 'as' in {#each} block, found %s", tokenDescription(p.peekToken))
		return nil, nil, nil
	}
	p.nextToken()
	if !p.expectPeek("{#each} block", token.IDENT) {
		return nil, nil, nil
	}
	item := p.newIdent(p.curToken)
	var index *ast.Ident
	if p.peekTokenIs(token.COMMA) {
		p.nextToken()
		if !p.expectPeek("{#each} block", token.IDENT) {
			return nil, nil, nil
		}
		index = p.newIdent(p.curToken)
	}
	if !p.peekTokenIs(token.EOF) {
		p.unexpectedAfter("{#each} block")
		return nil, nil, nil
	}
	return iterable, item, index
}

// markerWord returns the leading word of a block marker.
func markerWord(s string) string {
	i := 0
	for i < len(s) && isLetter(s[i]) {
		i++
	}
	return s[:i]
}

func isLetter(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

func isUpper(c byte) bool {
	return c >= 'A' && c <= 'Z'
}

func isTagStart(c byte) bool {
	return isLetter(c)
}

func isNameChar(c byte) bool {
	return isLetter(c) || c >= '0' && c <= '9' || c == '-' || c == '_' || c == '.'
}

func isAttrNameChar(c byte) bool {
	switch c {
	case ' ', '\t', '\r', '\n', '=', '>', '/', '"', '\'', '{', '<', '}':
		return false
	}
	return true
}
