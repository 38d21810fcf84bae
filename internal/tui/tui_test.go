package tui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/fakeyudi/buildtrace/internal/snapshot"
	"github.com/fakeyudi/buildtrace/internal/trace"
	"github.com/fakeyudi/buildtrace/internal/verbosity"
)

func sampleTrace() *trace.Trace {
	ok := true
	started := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	res := snapshot.Compare(
		&snapshot.Snapshot{Properties: snapshot.Properties{{Name: "OutDir", Value: "bin/"}}},
		&snapshot.Snapshot{Properties: snapshot.Properties{{Name: "OutDir", Value: "out/"}}},
	)
	project := &trace.Node{Kind: trace.KindProject, Started: started.Add(time.Second), Succeeded: &ok}
	project.SetAttr("Name", "app.proj")
	project.Append(&trace.Node{Kind: trace.KindChanges, Changes: &res})
	warning := project.Append(&trace.Node{Kind: trace.KindWarning})
	warning.Append(&trace.Node{Kind: trace.KindMessage, Text: "warning CS0168: unused"})

	build := &trace.Node{Kind: trace.KindBuild, Started: started, Succeeded: &ok}
	build.Append(project)
	root := &trace.Node{Kind: trace.KindRoot}
	root.Append(build)
	return &trace.Trace{ID: "t-1", Started: started, Verbosity: verbosity.Normal, Root: root}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func send(m Model, msgs ...tea.Msg) Model {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func TestViewBeforeResize(t *testing.T) {
	if got := New(sampleTrace(), "trace.json").View(); got != "Loading…" {
		t.Fatalf("unexpected view %q", got)
	}
}

func TestChangesTabExpandsDiff(t *testing.T) {
	m := send(New(sampleTrace(), "/tmp/trace.json"), tea.WindowSizeMsg{Width: 100, Height: 40}, key("6"))
	if m.activeTab != tabChanges {
		t.Fatalf("active tab %d, want Changes", m.activeTab)
	}
	if view := m.View(); !strings.Contains(view, "app.proj") || strings.Contains(view, "+OutDir=out/") {
		t.Fatalf("collapsed view should list the project only:\n%s", view)
	}

	m = send(m, key("enter"))
	if !m.expanded[0] {
		t.Fatal("enter should expand the selected project")
	}
	if view := m.View(); !strings.Contains(view, "+OutDir=out/") {
		t.Fatalf("expanded view should show the diff:\n%s", view)
	}
}

func TestTreeAndWarningsTabs(t *testing.T) {
	m := New(sampleTrace(), "trace.json")
	m.width = 100

	tree := m.renderTab(tabTree)
	if !strings.Contains(tree, "app.proj") || !strings.Contains(tree, "warning CS0168: unused") {
		t.Fatalf("tree missing nodes:\n%s", tree)
	}
	if got := m.renderTab(tabWarnings); !strings.Contains(got, "Warnings (1)") {
		t.Fatalf("warnings tab:\n%s", got)
	}
	if got := m.renderTab(tabErrors); !strings.Contains(got, "(none)") {
		t.Fatalf("errors tab:\n%s", got)
	}
}

func TestTimelineOrder(t *testing.T) {
	m := New(sampleTrace(), "trace.json")
	if len(m.timeline) != 2 || m.timeline[0].kind != trace.KindBuild {
		t.Fatalf("timeline = %+v", m.timeline)
	}
	m = send(m, tea.WindowSizeMsg{Width: 80, Height: 20}, key("7"), key("s"))
	if m.sortAsc {
		t.Fatal("s should flip the timeline order")
	}
	out := m.renderTab(tabTimeline)
	if strings.Index(out, "app.proj") > strings.Index(out, "Build") {
		t.Fatalf("newest first should list the project before the build:\n%s", out)
	}
}

func TestQuit(t *testing.T) {
	_, cmd := New(sampleTrace(), "x").Update(key("q"))
	if cmd == nil {
		t.Fatal("q should return a quit command")
	}
}
