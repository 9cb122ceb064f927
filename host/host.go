// Package host defines the primitive operations the runtime uses to build
// and patch rendered markup.
//
// Compiled code never manipulates the rendered tree directly. The scheduler
// translates render instructions and binding updates into calls on a Host,
// which may be a browser bridge, a terminal renderer or the in-memory
// Document provided here.
package host

import "context"

// Node identifies a node created by a Host. The zero value is not a node.
type Node uint32

// NoNode is the zero Node.
const NoNode Node = 0

// Listener handles an event fired on a node.
type Listener func(ctx context.Context) error

// Host is the binding surface required from the embedding runtime.
type Host interface {
	// CreateElement creates a detached element.
	CreateElement(tag string) Node

	// CreateText creates a detached text node.
	CreateText(text string) Node

	// DestroyNode releases a node and its descendants, detaching it from
	// its parent first.
	DestroyNode(n Node)

	// SetAttribute sets an attribute of an element.
	SetAttribute(n Node, name, value string)

	// RemoveAttribute removes an attribute of an element.
	RemoveAttribute(n Node, name string)

	// SetText replaces the content of a text node.
	SetText(n Node, text string)

	// InsertChild inserts child into parent at the given child index. An
	// index at or past the end appends.
	InsertChild(parent, child Node, index int)

	// RemoveChild detaches child from parent without destroying it.
	RemoveChild(parent, child Node)

	// AddListener registers the listener for an event on an element,
	// replacing any previous listener for the same event.
	AddListener(n Node, event string, l Listener)

	// RemoveListener unregisters the listener for an event.
	RemoveListener(n Node, event string)
}
