package host

import (
	"context"
	"fmt"
	"strings"
)

// Attr is an attribute of an element.
type Attr struct {
	Name  string
	Value string
}

type node struct {
	id        Node
	tag       string
	text      string
	isText    bool
	attrs     []Attr
	children  []Node
	parent    Node
	listeners map[string]Listener
}

// Document is an in-memory Host. It keeps a tree of nodes under a root
// container and serialises it as HTML.
type Document struct {
	nodes map[Node]*node
	next  Node
	root  Node
}

var _ Host = (*Document)(nil)

// NewDocument returns an empty document.
func NewDocument() *Document {
	d := &Document{nodes: map[Node]*node{}}
	d.root = d.CreateElement("")
	return d
}

// Root returns the container node components are mounted into.
func (d *Document) Root() Node {
	return d.root
}

func (d *Document) add(n *node) Node {
	d.next++
	n.id = d.next
	d.nodes[n.id] = n
	return n.id
}

func (d *Document) CreateElement(tag string) Node {
	return d.add(&node{tag: tag})
}

func (d *Document) CreateText(text string) Node {
	return d.add(&node{text: text, isText: true})
}

func (d *Document) DestroyNode(id Node) {
	n, ok := d.nodes[id]
	if !ok {
		return
	}
	if n.parent != NoNode {
		d.RemoveChild(n.parent, id)
	}
	d.destroy(n)
}

func (d *Document) destroy(n *node) {
	for _, child := range n.children {
		if c, ok := d.nodes[child]; ok {
			d.destroy(c)
		}
	}
	delete(d.nodes, n.id)
}

func (d *Document) SetAttribute(id Node, name, value string) {
	n, ok := d.nodes[id]
	if !ok {
		return
	}
	for i, a := range n.attrs {
		if a.Name == name {
			n.attrs[i].Value = value
			return
		}
	}
	n.attrs = append(n.attrs, Attr{Name: name, Value: value})
}

func (d *Document) RemoveAttribute(id Node, name string) {
	n, ok := d.nodes[id]
	if !ok {
		return
	}
	for i, a := range n.attrs {
		if a.Name == name {
			n.attrs = append(n.attrs[:i], n.attrs[i+1:]...)
			return
		}
	}
}

func (d *Document) SetText(id Node, text string) {
	if n, ok := d.nodes[id]; ok {
		n.text = text
	}
}

func (d *Document) InsertChild(parent, child Node, index int) {
	p, ok := d.nodes[parent]
	if !ok {
		return
	}
	c, ok := d.nodes[child]
	if !ok {
		return
	}
	if c.parent != NoNode {
		d.RemoveChild(c.parent, child)
	}
	if index < 0 || index > len(p.children) {
		index = len(p.children)
	}
	p.children = append(p.children, NoNode)
	copy(p.children[index+1:], p.children[index:])
	p.children[index] = child
	c.parent = parent
}

func (d *Document) RemoveChild(parent, child Node) {
	p, ok := d.nodes[parent]
	if !ok {
		return
	}
	for i, id := range p.children {
		if id == child {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	if c, ok := d.nodes[child]; ok && c.parent == parent {
		c.parent = NoNode
	}
}

func (d *Document) AddListener(id Node, event string, l Listener) {
	n, ok := d.nodes[id]
	if !ok {
		return
	}
	if n.listeners == nil {
		n.listeners = map[string]Listener{}
	}
	n.listeners[event] = l
}

func (d *Document) RemoveListener(id Node, event string) {
	if n, ok := d.nodes[id]; ok {
		delete(n.listeners, event)
	}
}

// Fire invokes the listener registered for event on the node.
func (d *Document) Fire(ctx context.Context, id Node, event string) error {
	n, ok := d.nodes[id]
	if !ok {
		return fmt.Errorf("node %d does not exist", id)
	}
	l, ok := n.listeners[event]
	if !ok {
		return fmt.Errorf("no %s listener on <%s>", event, n.tag)
	}
	return l(ctx)
}

// Len returns the number of live nodes, including the root.
func (d *Document) Len() int {
	return len(d.nodes)
}

// Exists reports whether the node is live.
func (d *Document) Exists(id Node) bool {
	_, ok := d.nodes[id]
	return ok
}

// Tag returns the tag of an element, or "" for text nodes.
func (d *Document) Tag(id Node) string {
	if n, ok := d.nodes[id]; ok {
		return n.tag
	}
	return ""
}

// Attr returns the value of an attribute.
func (d *Document) Attr(id Node, name string) (string, bool) {
	n, ok := d.nodes[id]
	if !ok {
		return "", false
	}
	for _, a := range n.attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Attrs returns the attributes of an element in insertion order.
func (d *Document) Attrs(id Node) []Attr {
	n, ok := d.nodes[id]
	if !ok {
		return nil
	}
	return append([]Attr(nil), n.attrs...)
}

// Children returns the children of a node.
func (d *Document) Children(id Node) []Node {
	n, ok := d.nodes[id]
	if !ok {
		return nil
	}
	return append([]Node(nil), n.children...)
}

// Parent returns the parent of a node, or NoNode.
func (d *Document) Parent(id Node) Node {
	if n, ok := d.nodes[id]; ok {
		return n.parent
	}
	return NoNode
}

// HasListener reports whether a listener is registered for event.
func (d *Document) HasListener(id Node, event string) bool {
	n, ok := d.nodes[id]
	if !ok {
		return false
	}
	_, ok = n.listeners[event]
	return ok
}

// Text returns the text content of a node and its descendants.
func (d *Document) Text(id Node) string {
	var b strings.Builder
	d.walk(id, func(n *node) {
		if n.isText {
			b.WriteString(n.text)
		}
	})
	return b.String()
}

// Find returns the elements with the given tag under the root, in
// document order.
func (d *Document) Find(tag string) []Node {
	var found []Node
	d.walk(d.root, func(n *node) {
		if !n.isText && n.tag == tag && n.id != d.root {
			found = append(found, n.id)
		}
	})
	return found
}

func (d *Document) walk(id Node, fn func(n *node)) {
	n, ok := d.nodes[id]
	if !ok {
		return
	}
	fn(n)
	for _, child := range n.children {
		d.walk(child, fn)
	}
}

// HTML serialises the content of the root.
func (d *Document) HTML() string {
	return d.InnerHTML(d.root)
}

// InnerHTML serialises the children of a node.
func (d *Document) InnerHTML(id Node) string {
	n, ok := d.nodes[id]
	if !ok {
		return ""
	}
	var b strings.Builder
	for _, child := range n.children {
		d.write(&b, child)
	}
	return b.String()
}

// OuterHTML serialises a node and its descendants.
func (d *Document) OuterHTML(id Node) string {
	var b strings.Builder
	d.write(&b, id)
	return b.String()
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", `"`, "&quot;")
)

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

func (d *Document) write(b *strings.Builder, id Node) {
	n, ok := d.nodes[id]
	if !ok {
		return
	}
	if n.isText {
		b.WriteString(textEscaper.Replace(n.text))
		return
	}
	b.WriteString("<" + n.tag)
	for _, a := range n.attrs {
		b.WriteString(" " + a.Name + `="` + attrEscaper.Replace(a.Value) + `"`)
	}
	b.WriteString(">")
	if voidElements[n.tag] && len(n.children) == 0 {
		return
	}
	for _, child := range n.children {
		d.write(b, child)
	}
	b.WriteString("</" + n.tag + ">")
}
