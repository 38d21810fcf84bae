package render

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fakeyudi/buildtrace/internal/textdiff"
	"github.com/fakeyudi/buildtrace/internal/trace"
)

const (
	versionSentinel = "<!-- buildtrace-trace-version: 1 -->"
	dataPrefix      = "<!-- buildtrace-data: "
	dataSuffix      = " -->"
	timeLayout      = "2006-01-02 15:04:05"
)

// MarkdownRenderer renders a trace as a human-readable report with an
// embedded base64 JSON payload for lossless round-trip parsing.
type MarkdownRenderer struct{}

func (r *MarkdownRenderer) Render(t *trace.Trace) ([]byte, error) {
	jsonBytes, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("marshal trace: %w", err)
	}
	encoded := base64.StdEncoding.EncodeToString(jsonBytes)

	var sb strings.Builder
	sb.WriteString(versionSentinel + "\n")
	fmt.Fprintf(&sb, "%s%s%s\n\n", dataPrefix, encoded, dataSuffix)

	fmt.Fprintf(&sb, "# Build trace %s\n\n", t.ID)

	sum := trace.Summarize(t.Root)
	sb.WriteString("## Summary\n\n")
	fmt.Fprintf(&sb, "- Started: %s\n", t.Started.Format(timeLayout))
	fmt.Fprintf(&sb, "- Verbosity: %s\n", t.Verbosity)
	fmt.Fprintf(&sb, "- Result: %s\n", result(sum.Succeeded))
	fmt.Fprintf(&sb, "- Projects: %d, targets: %d, tasks: %d\n", sum.Projects, sum.Targets, sum.Tasks)
	fmt.Fprintf(&sb, "- Warnings: %d, errors: %d\n", sum.Warnings, sum.Errors)
	sb.WriteString("\n")

	projects := trace.Collect(t.Root, trace.KindProject)
	sb.WriteString("## Projects\n\n")
	if len(projects) == 0 {
		sb.WriteString("_No projects recorded._\n")
	} else {
		sb.WriteString("| Project | Result | Duration | Targets executed |\n")
		sb.WriteString("|---------|--------|----------|------------------|\n")
		for _, p := range projects {
			name, _ := p.Attr("Name")
			var targets []string
			if te := p.Child(trace.KindTargetsExecuted); te != nil {
				targets = te.Values
			}
			fmt.Fprintf(&sb, "| %s | %s | %s | %s |\n",
				cell(name), result(p.Succeeded), duration(p), cell(strings.Join(targets, ", ")))
		}
	}
	sb.WriteString("\n")

	writeDiagnostics(&sb, "Errors", trace.Collect(t.Root, trace.KindError))
	writeDiagnostics(&sb, "Warnings", trace.Collect(t.Root, trace.KindWarning))

	sb.WriteString("## Changes\n\n")
	changed := 0
	for _, p := range projects {
		c := p.Child(trace.KindChanges)
		if c == nil {
			continue
		}
		changed++
		name, _ := p.Attr("Name")
		fmt.Fprintf(&sb, "### %s\n\n", name)
		diff := textdiff.Changes(c.Changes, textdiff.Options{})
		sb.WriteString("```diff\n")
		sb.WriteString(diff)
		if !strings.HasSuffix(diff, "\n") {
			sb.WriteString("\n")
		}
		sb.WriteString("```\n\n")
	}
	if changed == 0 {
		sb.WriteString("_No project state changes._\n\n")
	}

	return []byte(sb.String()), nil
}

func writeDiagnostics(sb *strings.Builder, title string, nodes []*trace.Node) {
	fmt.Fprintf(sb, "## %s\n\n", title)
	if len(nodes) == 0 {
		fmt.Fprintf(sb, "_No %s._\n\n", strings.ToLower(title))
		return
	}
	for _, n := range nodes {
		if m := n.Child(trace.KindMessage); m != nil {
			fmt.Fprintf(sb, "- `%s`\n", m.Text)
		}
	}
	sb.WriteString("\n")
}

func result(ok *bool) string {
	switch {
	case ok == nil:
		return "unfinished"
	case *ok:
		return "succeeded"
	default:
		return "failed"
	}
}

func duration(n *trace.Node) string {
	if n.Started.IsZero() || n.Finished.IsZero() {
		return "-"
	}
	return n.Finished.Sub(n.Started).Round(time.Millisecond).String()
}

func cell(s string) string {
	return strings.ReplaceAll(s, "|", `\|`)
}

// MarkdownParser parses a Markdown-rendered trace by extracting the embedded
// base64 JSON payload from the sentinel comments.
type MarkdownParser struct{}

func (p *MarkdownParser) Parse(data []byte) (*trace.Trace, error) {
	content := string(data)

	if !strings.Contains(content, versionSentinel) {
		return nil, fmt.Errorf("not a valid buildtrace report: missing version sentinel")
	}

	start := strings.Index(content, dataPrefix)
	if start == -1 {
		return nil, fmt.Errorf("not a valid buildtrace report: missing data payload")
	}
	start += len(dataPrefix)
	end := strings.Index(content[start:], dataSuffix)
	if end == -1 {
		return nil, fmt.Errorf("not a valid buildtrace report: malformed data payload")
	}
	encoded := content[start : start+end]

	jsonBytes, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("not a valid buildtrace report: corrupted base64 payload: %w", err)
	}

	var t trace.Trace
	if err := json.Unmarshal(jsonBytes, &t); err != nil {
		return nil, fmt.Errorf("not a valid buildtrace report: failed to parse embedded JSON: %w", err)
	}
	return &t, nil
}
