package trace

import (
	"testing"

	"github.com/fakeyudi/buildtrace/internal/snapshot"
)

func TestCloneCopiesChanges(t *testing.T) {
	res := snapshot.Compare(
		&snapshot.Snapshot{
			Properties: snapshot.Properties{{Name: "OutDir", Value: "bin/"}},
			Items:      []snapshot.Item{{ItemType: "Compile", EvaluatedInclude: "a.cs"}},
		},
		&snapshot.Snapshot{
			Properties: snapshot.Properties{{Name: "OutDir", Value: "out/"}},
			Items: []snapshot.Item{{ItemType: "Compile", EvaluatedInclude: "a.cs",
				Metadata: snapshot.Properties{{Name: "Link", Value: "x"}}}},
		},
	)
	project := &Node{Kind: KindProject}
	project.SetAttr("Name", "a.proj")
	project.Append(&Node{Kind: KindChanges, Changes: &res})

	cp := project.Clone()
	changes := cp.Child(KindChanges).Changes
	if changes == project.Child(KindChanges).Changes {
		t.Fatal("clone shares the compare result with the original")
	}
	changes.Properties.Changed[0].Right = "changed"
	changes.Items.Changed[0].Right.Metadata[0].Value = "y"
	cp.SetAttr("Name", "b.proj")

	if got := res.Properties.Changed[0].Right; got != "out/" {
		t.Errorf("original property change = %q, want out/", got)
	}
	if got := res.Items.Changed[0].Right.Metadata[0].Value; got != "x" {
		t.Errorf("original item metadata = %q, want x", got)
	}
	if name, _ := project.Attr("Name"); name != "a.proj" {
		t.Errorf("original Name = %q", name)
	}
}
