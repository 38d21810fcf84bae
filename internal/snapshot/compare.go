package snapshot

import (
	"fmt"
	"maps"
	"strings"
)

// ItemEquality selects how two items with the same key are judged equal.
type ItemEquality uint8

const (
	// MetadataCount treats items as equal when they carry the same number of
	// metadata entries. Items whose metadata values differ but whose counts
	// match are reported as unchanged.
	MetadataCount ItemEquality = iota
	// MetadataValues requires the same metadata names with the same values.
	MetadataValues
)

func (e ItemEquality) String() string {
	switch e {
	case MetadataCount:
		return "count"
	case MetadataValues:
		return "metadata"
	default:
		return "unknown"
	}
}

// ParseItemEquality converts "count" or "metadata" to an ItemEquality.
func ParseItemEquality(s string) (ItemEquality, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "count":
		return MetadataCount, nil
	case "metadata", "values":
		return MetadataValues, nil
	default:
		return MetadataCount, fmt.Errorf("item equality: unsupported value %q (expected: count|metadata)", s)
	}
}

// PropertyChange is a property present on both sides with different values.
type PropertyChange struct {
	Name  string `json:"name"`
	Left  string `json:"previousValue"`
	Right string `json:"value"`
}

// PropertyDiff buckets property differences.
type PropertyDiff struct {
	Changed     []PropertyChange `json:"changed,omitempty"`
	AddedRight  []Property       `json:"added,omitempty"`
	RemovedLeft []Property       `json:"removed,omitempty"`
}

// Empty reports whether all buckets are empty.
func (d PropertyDiff) Empty() bool {
	return len(d.Changed) == 0 && len(d.AddedRight) == 0 && len(d.RemovedLeft) == 0
}

// ItemChange pairs the earlier and later versions of an item.
type ItemChange struct {
	Left  Item `json:"previous"`
	Right Item `json:"current"`
}

// ItemDiff buckets item differences.
type ItemDiff struct {
	Changed     []ItemChange `json:"changed,omitempty"`
	AddedRight  []Item       `json:"added,omitempty"`
	RemovedLeft []Item       `json:"removed,omitempty"`
}

// Empty reports whether all buckets are empty.
func (d ItemDiff) Empty() bool {
	return len(d.Changed) == 0 && len(d.AddedRight) == 0 && len(d.RemovedLeft) == 0
}

// CompareResult is the difference between two snapshots.
type CompareResult struct {
	Properties PropertyDiff `json:"properties"`
	Items      ItemDiff     `json:"items"`
	AreEqual   bool         `json:"areEqual"`
}

// Clone returns a copy of r that shares no slices with it.
func (r CompareResult) Clone() CompareResult {
	cp := r
	cp.Properties.Changed = append([]PropertyChange(nil), r.Properties.Changed...)
	cp.Properties.AddedRight = append([]Property(nil), r.Properties.AddedRight...)
	cp.Properties.RemovedLeft = append([]Property(nil), r.Properties.RemovedLeft...)
	cp.Items.Changed = nil
	for _, c := range r.Items.Changed {
		cp.Items.Changed = append(cp.Items.Changed, ItemChange{Left: c.Left.clone(), Right: c.Right.clone()})
	}
	cp.Items.AddedRight = cloneItems(r.Items.AddedRight)
	cp.Items.RemovedLeft = cloneItems(r.Items.RemovedLeft)
	return cp
}

func cloneItems(items []Item) []Item {
	if items == nil {
		return nil
	}
	out := make([]Item, len(items))
	for i, it := range items {
		out[i] = it.clone()
	}
	return out
}

// Comparer compares snapshots. The zero value uses MetadataCount.
type Comparer struct {
	Items ItemEquality
}

// Compare compares left (earlier) against right (later) with the default
// item equality.
func Compare(left, right *Snapshot) CompareResult {
	return Comparer{}.Compare(left, right)
}

// Compare classifies every property and item of left and right. Output order
// follows first occurrence in left, then in right. A nil snapshot compares as
// empty.
func (c Comparer) Compare(left, right *Snapshot) CompareResult {
	if left == nil {
		left = &Snapshot{}
	}
	if right == nil {
		right = &Snapshot{}
	}
	res := CompareResult{
		Properties: diffProperties(left.Properties, right.Properties),
		Items:      c.diffItems(left.Items, right.Items),
	}
	res.AreEqual = res.Properties.Empty() && res.Items.Empty()
	return res
}

func indexProperties(props Properties) map[string]string {
	m := make(map[string]string, len(props))
	for _, p := range props {
		m[p.Name] = p.Value
	}
	return m
}

func diffProperties(left, right Properties) PropertyDiff {
	var d PropertyDiff
	lm := indexProperties(left)
	rm := indexProperties(right)

	seen := make(map[string]struct{}, len(left))
	for _, p := range left {
		if _, dup := seen[p.Name]; dup {
			continue
		}
		seen[p.Name] = struct{}{}
		lv := lm[p.Name]
		rv, ok := rm[p.Name]
		if !ok {
			d.RemovedLeft = append(d.RemovedLeft, Property{Name: p.Name, Value: lv})
			continue
		}
		if lv != rv {
			d.Changed = append(d.Changed, PropertyChange{Name: p.Name, Left: lv, Right: rv})
		}
	}
	for _, p := range right {
		if _, ok := seen[p.Name]; ok {
			continue
		}
		seen[p.Name] = struct{}{}
		d.AddedRight = append(d.AddedRight, Property{Name: p.Name, Value: rm[p.Name]})
	}
	return d
}

type itemKey struct {
	itemType string
	include  string
}

func keyOf(it Item) itemKey { return itemKey{itemType: it.ItemType, include: it.EvaluatedInclude} }

// diffItems pairs items by (type, include); repeated keys pair by occurrence.
func (c Comparer) diffItems(left, right []Item) ItemDiff {
	var d ItemDiff

	rightIdx := make(map[itemKey][]int, len(right))
	for i, it := range right {
		k := keyOf(it)
		rightIdx[k] = append(rightIdx[k], i)
	}

	used := make([]bool, len(right))
	occurrence := make(map[itemKey]int, len(left))
	for _, lit := range left {
		k := keyOf(lit)
		n := occurrence[k]
		occurrence[k] = n + 1
		cands := rightIdx[k]
		if n >= len(cands) {
			d.RemovedLeft = append(d.RemovedLeft, lit)
			continue
		}
		ri := cands[n]
		used[ri] = true
		if !c.itemsEqual(lit, right[ri]) {
			d.Changed = append(d.Changed, ItemChange{Left: lit, Right: right[ri]})
		}
	}
	for i, rit := range right {
		if !used[i] {
			d.AddedRight = append(d.AddedRight, rit)
		}
	}
	return d
}

func (c Comparer) itemsEqual(a, b Item) bool {
	switch c.Items {
	case MetadataValues:
		if len(a.Metadata) != len(b.Metadata) {
			return false
		}
		return maps.Equal(indexProperties(a.Metadata), indexProperties(b.Metadata))
	default:
		return a.MetadataCount() == b.MetadataCount()
	}
}
