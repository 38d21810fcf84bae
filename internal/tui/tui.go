// Package tui provides a Bubble Tea TUI for browsing build traces.
package tui

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/fakeyudi/buildtrace/internal/textdiff"
	"github.com/fakeyudi/buildtrace/internal/trace"
)

// ── Styles ────────────

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 2)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	inactiveTabStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("245")).
				Background(lipgloss.Color("235")).
				Padding(0, 1)

	tabSepStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("238")).
			Background(lipgloss.Color("235"))

	sectionHeader = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("33")).
			Bold(true)

	dimStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	timeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("178"))

	kindScopeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	kindMessageStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	kindWarningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true)
	kindErrorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	okStyle          = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("245")).
			Padding(0, 1)

	diffAddStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("82"))
	diffDelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	diffMetaStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))

	selectedRowStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("15")).
				Background(lipgloss.Color("237"))
)

// ── Tab definitions ─────────────────

type tabID int

const (
	tabSummary tabID = iota
	tabTree
	tabMessages
	tabWarnings
	tabErrors
	tabChanges
	tabTimeline
	tabCount
)

var tabNames = [tabCount]string{
	"Summary", "Tree", "Messages", "Warnings", "Errors", "Changes", "Timeline",
}

// timelineEntry is one started scope, for the Timeline tab.
type timelineEntry struct {
	ts    time.Time
	kind  trace.Kind
	name  string
	depth int
}

// ── Model ────────────────────

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	trace     *trace.Trace
	filename  string
	summary   trace.Summary
	projects  []*trace.Node // projects with a Changes node
	timeline  []timelineEntry
	activeTab tabID
	viewports [tabCount]viewport.Model
	width     int
	height    int
	ready     bool
	sortAsc   bool

	// Changes tab: cursor position and expanded set
	cursor   int
	expanded map[int]bool
}

// New creates a new TUI model for the given trace and source filename.
func New(t *trace.Trace, filename string) Model {
	m := Model{
		trace:    t,
		filename: filepath.Base(filename),
		summary:  trace.Summarize(t.Root),
		sortAsc:  true,
		expanded: make(map[int]bool),
	}
	for _, p := range trace.Collect(t.Root, trace.KindProject) {
		if p.Child(trace.KindChanges) != nil {
			m.projects = append(m.projects, p)
		}
	}
	m.timeline = buildTimeline(t.Root)
	return m
}

// ── Bubble Tea interface ───────────────

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case "tab", "l", "right":
			m.activeTab = (m.activeTab + 1) % tabCount
		case "shift+tab", "h", "left":
			m.activeTab = (m.activeTab - 1 + tabCount) % tabCount
		case "1", "2", "3", "4", "5", "6", "7":
			m.activeTab = tabID(msg.String()[0] - '1')
		case "s":
			if m.activeTab == tabTimeline {
				m.sortAsc = !m.sortAsc
				m.rebuild(tabTimeline)
				m.viewports[tabTimeline].GotoTop()
			}
		case "up", "k":
			if m.activeTab == tabChanges && m.cursor > 0 {
				m.cursor--
				m.rebuild(tabChanges)
				return m, nil
			}
		case "down", "j":
			if m.activeTab == tabChanges && m.cursor < len(m.projects)-1 {
				m.cursor++
				m.rebuild(tabChanges)
				return m, nil
			}
		case "enter", " ":
			if m.activeTab == tabChanges && len(m.projects) > 0 {
				if m.expanded[m.cursor] {
					delete(m.expanded, m.cursor)
				} else {
					m.expanded[m.cursor] = true
				}
				m.rebuild(tabChanges)
				return m, nil
			}
		}
		var cmd tea.Cmd
		m.viewports[m.activeTab], cmd = m.viewports[m.activeTab].Update(msg)
		return m, cmd

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.initViewports()
		return m, nil
	}
	return m, nil
}

func (m Model) View() string {
	if !m.ready {
		return "Loading…"
	}

	title := titleStyle.Width(m.width).Render("  buildtrace  " + m.filename)

	var tabParts []string
	for i := tabID(0); i < tabCount; i++ {
		label := fmt.Sprintf(" %d %s ", i+1, tabNames[i])
		if i == m.activeTab {
			tabParts = append(tabParts, activeTabStyle.Render(label))
		} else {
			tabParts = append(tabParts, inactiveTabStyle.Render(label))
		}
		if i < tabCount-1 {
			tabParts = append(tabParts, tabSepStyle.Render("│"))
		}
	}
	tabRow := lipgloss.NewStyle().
		Background(lipgloss.Color("235")).
		Width(m.width).
		Render(lipgloss.JoinHorizontal(lipgloss.Top, tabParts...))

	content := m.viewports[m.activeTab].View()

	hint := "  ←/→ tab  ↑/↓ scroll  1-7 jump  q quit"
	switch m.activeTab {
	case tabTimeline:
		dir := "oldest first"
		if !m.sortAsc {
			dir = "newest first"
		}
		hint += "  s sort (" + dir + ")"
	case tabChanges:
		hint += "  ↑/↓ select  enter expand/collapse"
	}
	pct := fmt.Sprintf("%3.0f%%", m.viewports[m.activeTab].ScrollPercent()*100)
	pad := max(m.width-lipgloss.Width(hint)-len(pct)-2, 1)
	statusBar := statusBarStyle.Width(m.width).Render(
		hint + strings.Repeat(" ", pad) + pct,
	)

	return lipgloss.JoinVertical(lipgloss.Left, title, tabRow, content, statusBar)
}

// ── Viewport management ───────────────────────────────────────────────────────

func (m *Model) initViewports() {
	// title(1) + tabRow(1) + statusBar(1) = 3 fixed rows
	vpHeight := max(m.height-3, 1)
	for i := tabID(0); i < tabCount; i++ {
		vp := viewport.New(m.width, vpHeight)
		vp.SetContent(m.renderTab(i))
		m.viewports[i] = vp
	}
}

func (m *Model) rebuild(t tabID) {
	m.viewports[t].SetContent(m.renderTab(t))
}

// ── Tab renderers ─────────────────────────────────────────────────────────────

func (m *Model) renderTab(t tabID) string {
	switch t {
	case tabSummary:
		return m.renderSummary()
	case tabTree:
		return m.renderTree()
	case tabMessages:
		return m.renderLeaves("Messages", trace.KindMessage)
	case tabWarnings:
		return m.renderLeaves("Warnings", trace.KindWarning)
	case tabErrors:
		return m.renderLeaves("Errors", trace.KindError)
	case tabChanges:
		return m.renderChanges()
	case tabTimeline:
		return m.renderTimeline()
	}
	return ""
}

func heading(s string) string {
	return "\n" + sectionHeader.Render("  "+s) + "\n\n"
}

func (m *Model) renderSummary() string {
	s := m.summary
	var sb strings.Builder
	sb.WriteString(heading("Build Summary"))

	row := func(label, value string) {
		sb.WriteString(labelStyle.Render(fmt.Sprintf("  %-14s", label)) + "  " + value + "\n")
	}
	row("Trace:", m.trace.ID)
	row("Started:", m.trace.Started.Format("2006-01-02 15:04:05 MST"))
	row("Verbosity:", m.trace.Verbosity.String())
	row("Result:", resultLabel(s.Succeeded))

	sb.WriteString(heading("Counts"))
	row("Builds:", fmt.Sprintf("%d", s.Builds))
	row("Projects:", fmt.Sprintf("%d", s.Projects))
	row("Targets:", fmt.Sprintf("%d", s.Targets))
	row("Tasks:", fmt.Sprintf("%d", s.Tasks))
	row("Messages:", fmt.Sprintf("%d", s.Messages))
	row("Warnings:", fmt.Sprintf("%d", s.Warnings))
	row("Errors:", fmt.Sprintf("%d", s.Errors))
	row("Changed:", fmt.Sprintf("%d", s.Changed))
	return sb.String()
}

func resultLabel(ok *bool) string {
	switch {
	case ok == nil:
		return dimStyle.Render("unfinished")
	case *ok:
		return okStyle.Render("succeeded")
	default:
		return kindErrorStyle.Render("failed")
	}
}

// renderTree prints scopes and their leaves indented by depth. Summary
// buckets are skipped; they repeat the Warnings and Errors tabs.
func (m *Model) renderTree() string {
	var sb strings.Builder
	sb.WriteString(heading("Trace Tree"))
	if m.trace.Root == nil || len(m.trace.Root.Children) == 0 {
		sb.WriteString(dimStyle.Render("  (empty trace)") + "\n")
		return sb.String()
	}
	m.trace.Root.Walk(func(n *trace.Node, depth int) bool {
		switch n.Kind {
		case trace.KindRoot:
			return true
		case trace.KindWarnings, trace.KindErrors, trace.KindLocation:
			return false
		}
		sb.WriteString(strings.Repeat("  ", depth) + TreeLine(n) + "\n")
		return n.Kind.IsScope()
	})
	return sb.String()
}

// TreeLine renders one node as a single styled line.
func TreeLine(n *trace.Node) string {
	switch n.Kind {
	case trace.KindBuild, trace.KindProject, trace.KindTarget, trace.KindTask:
		name, _ := n.Attr("Name")
		line := kindScopeStyle.Render(string(n.Kind)) + " " + name
		if n.Succeeded != nil {
			line += "  " + resultLabel(n.Succeeded)
		}
		return line
	case trace.KindWarning:
		return kindWarningStyle.Render("warning") + " " + diagnosticText(n)
	case trace.KindError:
		return kindErrorStyle.Render("error") + " " + diagnosticText(n)
	case trace.KindMessage:
		return kindMessageStyle.Render(n.Text)
	case trace.KindTargetsExecuted:
		return dimStyle.Render("targets: " + strings.Join(n.Values, ", "))
	case trace.KindChanges:
		return kindWarningStyle.Render("state changed")
	default:
		return dimStyle.Render(string(n.Kind))
	}
}

func diagnosticText(n *trace.Node) string {
	if m := n.Child(trace.KindMessage); m != nil {
		return m.Text
	}
	return ""
}

func (m *Model) renderLeaves(title string, k trace.Kind) string {
	nodes := trace.Collect(m.trace.Root, k)
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("%s (%d)", title, len(nodes))))
	if len(nodes) == 0 {
		sb.WriteString(dimStyle.Render("  (none)") + "\n")
		return sb.String()
	}
	for _, n := range nodes {
		sb.WriteString("  " + TreeLine(n) + "\n\n")
	}
	return sb.String()
}

func (m *Model) renderChanges() string {
	var sb strings.Builder
	sb.WriteString(heading(fmt.Sprintf("Changed Projects (%d)", len(m.projects))))
	if len(m.projects) == 0 {
		sb.WriteString(dimStyle.Render("  (no project state changes)") + "\n")
		return sb.String()
	}
	for i, p := range m.projects {
		name, _ := p.Attr("Name")
		toggle := dimStyle.Render("  ▶ ")
		if m.expanded[i] {
			toggle = dimStyle.Render("  ▼ ")
		}
		row := toggle + name
		if i == m.cursor {
			row = selectedRowStyle.Width(max(m.width-2, 1)).Render(row)
		}
		sb.WriteString(row + "\n")
		if m.expanded[i] {
			diff := textdiff.Changes(p.Child(trace.KindChanges).Changes, textdiff.Options{})
			sb.WriteString(renderDiff(diff, m.width))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderDiff colorises a unified diff string.
func renderDiff(diff string, width int) string {
	var sb strings.Builder
	border := dimStyle.Render("  " + strings.Repeat("─", max(width-4, 1)))
	sb.WriteString(border + "\n")
	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		var rendered string
		switch {
		case strings.HasPrefix(line, "+++") || strings.HasPrefix(line, "---"):
			rendered = diffMetaStyle.Render("  " + line)
		case strings.HasPrefix(line, "+"):
			rendered = diffAddStyle.Render("  " + line)
		case strings.HasPrefix(line, "-"):
			rendered = diffDelStyle.Render("  " + line)
		case strings.HasPrefix(line, "@@"):
			rendered = diffMetaStyle.Render("  " + line)
		default:
			rendered = dimStyle.Render("  " + line)
		}
		sb.WriteString(rendered + "\n")
	}
	sb.WriteString(border + "\n")
	return sb.String()
}

func (m *Model) renderTimeline() string {
	var sb strings.Builder
	dir := "oldest first"
	if !m.sortAsc {
		dir = "newest first"
	}
	sb.WriteString(heading(fmt.Sprintf("Timeline (%s)", dir)))

	entries := make([]timelineEntry, len(m.timeline))
	copy(entries, m.timeline)
	if m.sortAsc {
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].ts.Before(entries[j].ts) })
	} else {
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].ts.After(entries[j].ts) })
	}

	if len(entries) == 0 {
		sb.WriteString(dimStyle.Render("  (no timestamped scopes in this trace)") + "\n")
		return sb.String()
	}
	for _, e := range entries {
		ts := timeStyle.Render(e.ts.Format("15:04:05.000"))
		badge := kindScopeStyle.Render(fmt.Sprintf("  %-8s", string(e.kind)))
		sb.WriteString(ts + badge + "  " + strings.Repeat("  ", e.depth-1) + e.name + "\n")
	}
	return sb.String()
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func buildTimeline(root *trace.Node) []timelineEntry {
	var entries []timelineEntry
	if root == nil {
		return entries
	}
	root.Walk(func(n *trace.Node, depth int) bool {
		if !n.Kind.IsScope() {
			return n.Kind == trace.KindRoot
		}
		if !n.Started.IsZero() {
			name, _ := n.Attr("Name")
			entries = append(entries, timelineEntry{ts: n.Started, kind: n.Kind, name: name, depth: depth})
		}
		return true
	})
	return entries
}

// Run starts the TUI for the given trace.
func Run(t *trace.Trace, filename string) error {
	p := tea.NewProgram(New(t, filename), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
