package trace

// Summary counts the nodes of a trace. Warnings and errors are counted once,
// at their inline position; summary bucket copies are skipped.
type Summary struct {
	Builds    int
	Projects  int
	Targets   int
	Tasks     int
	Messages  int
	Warnings  int
	Errors    int
	Changed   int // projects with a Changes node
	Succeeded *bool
}

// Summarize walks root and counts its nodes. Succeeded reflects the last
// finished top-level build, if any.
func Summarize(root *Node) Summary {
	var s Summary
	if root == nil {
		return s
	}
	root.Walk(func(n *Node, depth int) bool {
		switch n.Kind {
		case KindWarnings, KindErrors:
			return false
		case KindBuild:
			s.Builds++
			if depth == 1 && n.Succeeded != nil {
				s.Succeeded = n.Succeeded
			}
		case KindProject:
			s.Projects++
			if n.Child(KindChanges) != nil {
				s.Changed++
			}
		case KindTarget:
			s.Targets++
		case KindTask:
			s.Tasks++
		case KindMessage:
			s.Messages++
		case KindWarning:
			s.Warnings++
			return false
		case KindError:
			s.Errors++
			return false
		}
		return true
	})
	return s
}

// Collect returns the inline nodes of kind k in document order, skipping
// summary buckets.
func Collect(root *Node, k Kind) []*Node {
	var out []*Node
	if root == nil {
		return out
	}
	root.Walk(func(n *Node, _ int) bool {
		if n.Kind == KindWarnings || n.Kind == KindErrors {
			return false
		}
		if n.Kind == k {
			out = append(out, n)
		}
		return true
	})
	return out
}
