package trace

import (
	"time"

	"github.com/fakeyudi/buildtrace/internal/snapshot"
	"github.com/fakeyudi/buildtrace/internal/verbosity"
)

// Kind identifies what a Node represents. The values are part of the
// serialized trace; do not rename.
type Kind string

const (
	KindRoot            Kind = "Root"
	KindBuild           Kind = "Build"
	KindProject         Kind = "Project"
	KindTarget          Kind = "Target"
	KindTask            Kind = "Task"
	KindMessage         Kind = "Message"
	KindWarning         Kind = "Warning"
	KindError           Kind = "Error"
	KindLocation        Kind = "Location"
	KindParameters      Kind = "Parameters"
	KindProperties      Kind = "Properties"
	KindTargetsExecuted Kind = "TargetsExecuted"
	KindChanges         Kind = "Changes"
	KindWarnings        Kind = "Warnings"
	KindErrors          Kind = "Errors"
)

// IsScope reports whether k is one of the four nesting scopes.
func (k Kind) IsScope() bool {
	switch k {
	case KindBuild, KindProject, KindTarget, KindTask:
		return true
	default:
		return false
	}
}

// Attr is a single named attribute. Attribute order is insertion order.
type Attr struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Node is one element of the trace tree.
type Node struct {
	Kind      Kind                    `json:"kind"`
	Attrs     []Attr                  `json:"attrs,omitempty"`
	Text      string                  `json:"text,omitempty"`
	Started   time.Time               `json:"started,omitzero"`
	Finished  time.Time               `json:"finished,omitzero"`
	Succeeded *bool                   `json:"succeeded,omitempty"`
	Entries   snapshot.Properties     `json:"entries,omitempty"`
	Values    []string                `json:"values,omitempty"`
	Changes   *snapshot.CompareResult `json:"changes,omitempty"`
	Children  []*Node                 `json:"children,omitempty"`
}

// Append adds child as the last child of n.
func (n *Node) Append(child *Node) *Node {
	n.Children = append(n.Children, child)
	return child
}

// SetAttr sets an attribute, replacing an existing one of the same name.
func (n *Node) SetAttr(name, value string) {
	for i := range n.Attrs {
		if n.Attrs[i].Name == name {
			n.Attrs[i].Value = value
			return
		}
	}
	n.Attrs = append(n.Attrs, Attr{Name: name, Value: value})
}

// Attr returns the value of the named attribute.
func (n *Node) Attr(name string) (string, bool) {
	for _, a := range n.Attrs {
		if a.Name == name {
			return a.Value, true
		}
	}
	return "", false
}

// Child returns the first direct child of kind k.
func (n *Node) Child(k Kind) *Node {
	for _, c := range n.Children {
		if c.Kind == k {
			return c
		}
	}
	return nil
}

// Clone returns a deep copy of n.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	cp := *n
	cp.Attrs = append([]Attr(nil), n.Attrs...)
	cp.Entries = append(snapshot.Properties(nil), n.Entries...)
	cp.Values = append([]string(nil), n.Values...)
	if n.Succeeded != nil {
		ok := *n.Succeeded
		cp.Succeeded = &ok
	}
	if n.Changes != nil {
		res := n.Changes.Clone()
		cp.Changes = &res
	}
	cp.Children = nil
	for _, c := range n.Children {
		cp.Children = append(cp.Children, c.Clone())
	}
	return &cp
}

// Walk visits n and its descendants depth-first. Returning false from fn
// skips the node's children.
func (n *Node) Walk(fn func(node *Node, depth int) bool) {
	n.walk(fn, 0)
}

func (n *Node) walk(fn func(*Node, int) bool, depth int) {
	if !fn(n, depth) {
		return
	}
	for _, c := range n.Children {
		c.walk(fn, depth+1)
	}
}

// Trace is a finished or in-progress trace document.
type Trace struct {
	ID        string          `json:"id"`
	Started   time.Time       `json:"started"`
	Verbosity verbosity.Level `json:"verbosity"`
	Root      *Node           `json:"root"`
}
