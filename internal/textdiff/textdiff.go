// Package textdiff renders snapshot changes as a classic unified diff using
// github.com/pmezard/go-difflib/difflib.
package textdiff

import (
	"fmt"
	"strings"

	difflib "github.com/pmezard/go-difflib/difflib"

	"github.com/fakeyudi/buildtrace/internal/snapshot"
)

// Options controls patch generation.
type Options struct {
	// Context is the number of context lines in hunks. 0 means 1.
	Context int

	// FromFile and ToFile label the headers; they default to "before" and
	// "after".
	FromFile string
	ToFile   string
}

// Changes renders res as a unified diff of "name=value" property lines
// followed by "Type include" item lines. It returns "" when res is nil or
// reports equal snapshots.
func Changes(res *snapshot.CompareResult, opt Options) string {
	if res == nil || res.AreEqual {
		return ""
	}
	a, b := lines(res)
	return unified(a, b, opt)
}

// Snapshots renders the full state of left and right as a unified diff.
func Snapshots(left, right *snapshot.Snapshot, opt Options) string {
	return unified(snapshotLines(left), snapshotLines(right), opt)
}

func unified(a, b []string, opt Options) string {
	ctx := opt.Context
	if ctx <= 0 {
		ctx = 1
	}
	from, to := opt.FromFile, opt.ToFile
	if from == "" {
		from = "before"
	}
	if to == "" {
		to = "after"
	}
	s, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        a,
		B:        b,
		FromFile: from,
		ToFile:   to,
		Context:  ctx,
	})
	if err != nil {
		return ""
	}
	return s
}

func lines(res *snapshot.CompareResult) (a, b []string) {
	for _, c := range res.Properties.Changed {
		a = append(a, propertyLine(c.Name, c.Left))
		b = append(b, propertyLine(c.Name, c.Right))
	}
	for _, p := range res.Properties.RemovedLeft {
		a = append(a, propertyLine(p.Name, p.Value))
	}
	for _, p := range res.Properties.AddedRight {
		b = append(b, propertyLine(p.Name, p.Value))
	}
	for _, c := range res.Items.Changed {
		a = append(a, itemLine(c.Left))
		b = append(b, itemLine(c.Right))
	}
	for _, it := range res.Items.RemovedLeft {
		a = append(a, itemLine(it))
	}
	for _, it := range res.Items.AddedRight {
		b = append(b, itemLine(it))
	}
	return a, b
}

func snapshotLines(s *snapshot.Snapshot) []string {
	if s == nil {
		return nil
	}
	var out []string
	for _, p := range s.Properties {
		out = append(out, propertyLine(p.Name, p.Value))
	}
	for _, it := range s.Items {
		out = append(out, itemLine(it))
	}
	return out
}

func propertyLine(name, value string) string {
	// difflib expects each line to carry its own terminator.
	return name + "=" + strings.ReplaceAll(value, "\n", `\n`) + "\n"
}

func itemLine(it snapshot.Item) string {
	return fmt.Sprintf("%s %s (%d metadata)\n", it.ItemType, it.EvaluatedInclude, it.MetadataCount())
}
