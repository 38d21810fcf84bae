package trace

import (
	"github.com/fakeyudi/buildtrace/internal/event"
	"github.com/fakeyudi/buildtrace/internal/snapshot"
)

// ScopeKind is one of the four nesting scopes.
type ScopeKind uint8

const (
	ScopeBuild ScopeKind = iota
	ScopeProject
	ScopeTarget
	ScopeTask
	scopeKinds
)

func (k ScopeKind) String() string {
	return string(k.NodeKind())
}

// NodeKind maps a scope to the node kind created for it.
func (k ScopeKind) NodeKind() Kind {
	switch k {
	case ScopeBuild:
		return KindBuild
	case ScopeProject:
		return KindProject
	case ScopeTarget:
		return KindTarget
	case ScopeTask:
		return KindTask
	default:
		return KindRoot
	}
}

// Frame is one pending scope.
type Frame struct {
	Kind ScopeKind
	Node *Node

	// targetMark is the target log length when the frame was pushed.
	targetMark int

	// before is the project state fetched at ProjectStarted.
	before    *snapshot.Snapshot
	hasBefore bool
}

// ScopeStack tracks pending Build, Project, Target and Task scopes. Each kind
// has its own LIFO stack; a shared ordering stack records push order across
// kinds so Current can answer where an ad-hoc notification belongs.
type ScopeStack struct {
	root    *Node
	stacks  [scopeKinds][]*Frame
	order   []*Frame
	targets []string
}

// NewScopeStack returns an empty tracker whose fallback scope is root.
func NewScopeStack(root *Node) *ScopeStack {
	return &ScopeStack{root: root}
}

// Push creates a pending scope of kind k with a fresh node and returns its
// frame. The caller attaches the node to its parent.
func (s *ScopeStack) Push(k ScopeKind) *Frame {
	f := &Frame{
		Kind:       k,
		Node:       &Node{Kind: k.NodeKind()},
		targetMark: len(s.targets),
	}
	s.stacks[k] = append(s.stacks[k], f)
	s.order = append(s.order, f)
	return f
}

// Pop removes the most recently pushed pending scope of kind k. finished
// names the notification that closed it and is only used in the error.
func (s *ScopeStack) Pop(k ScopeKind, finished event.Kind) (*Frame, error) {
	st := s.stacks[k]
	if len(st) == 0 {
		return nil, &ProtocolError{Scope: k, Event: finished}
	}
	f := st[len(st)-1]
	s.stacks[k] = st[:len(st)-1]

	// f is normally on top of the ordering stack; search downward when an
	// inner scope of another kind was left open.
	for i := len(s.order) - 1; i >= 0; i-- {
		if s.order[i] == f {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return f, nil
}

// Current returns the node an ad-hoc notification attaches to: the most
// recently pushed pending scope, or the root when nothing is pending.
func (s *ScopeStack) Current() *Node {
	if len(s.order) == 0 {
		return s.root
	}
	return s.order[len(s.order)-1].Node
}

// Top returns the innermost pending frame of kind k, or nil.
func (s *ScopeStack) Top(k ScopeKind) *Frame {
	st := s.stacks[k]
	if len(st) == 0 {
		return nil
	}
	return st[len(st)-1]
}

// Pending returns the number of pending scopes of kind k.
func (s *ScopeStack) Pending(k ScopeKind) int { return len(s.stacks[k]) }

// Depth returns the number of pending scopes across all kinds.
func (s *ScopeStack) Depth() int { return len(s.order) }

// RecordTarget appends a target name to the executed-targets log.
func (s *ScopeStack) RecordTarget(name string) {
	s.targets = append(s.targets, name)
}

// TargetsSince returns the target names recorded after f was pushed.
func (s *ScopeStack) TargetsSince(f *Frame) []string {
	if f.targetMark >= len(s.targets) {
		return nil
	}
	return append([]string(nil), s.targets[f.targetMark:]...)
}
