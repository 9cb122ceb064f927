package host

import (
	"context"
	"fmt"
)

// Primitive names used by Recorder.
const (
	OpCreateElement   = "create_element"
	OpCreateText      = "create_text"
	OpDestroyNode     = "destroy_node"
	OpSetAttribute    = "set_attribute"
	OpRemoveAttribute = "remove_attribute"
	OpSetText         = "set_text"
	OpInsertChild     = "insert_child"
	OpRemoveChild     = "remove_child"
	OpAddListener     = "add_listener"
	OpRemoveListener  = "remove_listener"
)

// Call is a primitive call seen by a Recorder.
type Call struct {
	Op   string
	Node Node
	Args []string
}

func (c Call) String() string {
	return fmt.Sprintf("%s %d %v", c.Op, c.Node, c.Args)
}

// Recorder wraps a Host and records every primitive call made through it.
type Recorder struct {
	host  Host
	calls []Call
}

var _ Host = (*Recorder)(nil)

// NewRecorder returns a Recorder forwarding to h.
func NewRecorder(h Host) *Recorder {
	return &Recorder{host: h}
}

// Calls returns the recorded calls.
func (r *Recorder) Calls() []Call {
	return append([]Call(nil), r.calls...)
}

// Count returns the number of recorded calls of the given primitive.
func (r *Recorder) Count(op string) int {
	n := 0
	for _, c := range r.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Reset forgets the recorded calls.
func (r *Recorder) Reset() {
	r.calls = nil
}

func (r *Recorder) record(op string, n Node, args ...string) {
	r.calls = append(r.calls, Call{Op: op, Node: n, Args: args})
}

func (r *Recorder) CreateElement(tag string) Node {
	n := r.host.CreateElement(tag)
	r.record(OpCreateElement, n, tag)
	return n
}

func (r *Recorder) CreateText(text string) Node {
	n := r.host.CreateText(text)
	r.record(OpCreateText, n, text)
	return n
}

func (r *Recorder) DestroyNode(n Node) {
	r.record(OpDestroyNode, n)
	r.host.DestroyNode(n)
}

func (r *Recorder) SetAttribute(n Node, name, value string) {
	r.record(OpSetAttribute, n, name, value)
	r.host.SetAttribute(n, name, value)
}

func (r *Recorder) RemoveAttribute(n Node, name string) {
	r.record(OpRemoveAttribute, n, name)
	r.host.RemoveAttribute(n, name)
}

func (r *Recorder) SetText(n Node, text string) {
	r.record(OpSetText, n, text)
	r.host.SetText(n, text)
}

func (r *Recorder) InsertChild(parent, child Node, index int) {
	r.record(OpInsertChild, parent, fmt.Sprint(child), fmt.Sprint(index))
	r.host.InsertChild(parent, child, index)
}

func (r *Recorder) RemoveChild(parent, child Node) {
	r.record(OpRemoveChild, parent, fmt.Sprint(child))
	r.host.RemoveChild(parent, child)
}

func (r *Recorder) AddListener(n Node, event string, l Listener) {
	r.record(OpAddListener, n, event)
	r.host.AddListener(n, event, l)
}

func (r *Recorder) RemoveListener(n Node, event string) {
	r.record(OpRemoveListener, n, event)
	r.host.RemoveListener(n, event)
}

// Fire forwards to the wrapped host when it can fire events.
func (r *Recorder) Fire(ctx context.Context, n Node, event string) error {
	f, ok := r.host.(interface {
		Fire(ctx context.Context, n Node, event string) error
	})
	if !ok {
		return fmt.Errorf("host %T cannot fire events", r.host)
	}
	return f.Fire(ctx, n, event)
}
