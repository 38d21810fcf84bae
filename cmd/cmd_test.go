package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/buildtrace/internal/event"
	"github.com/fakeyudi/buildtrace/internal/render"
	"github.com/fakeyudi/buildtrace/internal/snapshot"
	"github.com/fakeyudi/buildtrace/internal/trace"
	"github.com/fakeyudi/buildtrace/internal/verbosity"
)

// executeCommand runs a cobra command with the given args and captures combined output.
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	_, err = root.ExecuteC()
	return buf.String(), err
}

// isolate points config lookup at empty temp dirs and returns the working dir.
func isolate(t *testing.T) string {
	t.Helper()
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	dir := t.TempDir()
	t.Chdir(dir)
	color.NoColor = true
	return dir
}

func writeStream(t *testing.T, path string, records []event.Record) {
	t.Helper()
	var buf bytes.Buffer
	enc := event.NewEncoder(event.CodecFor(path), &buf)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			t.Fatalf("encode: %v", err)
		}
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
}

func buildRecords() []event.Record {
	before := &snapshot.Snapshot{
		Properties: snapshot.Properties{{Name: "Configuration", Value: "Debug"}},
		Items:      []snapshot.Item{{ItemType: "Compile", EvaluatedInclude: "a.cs"}},
	}
	after := &snapshot.Snapshot{
		Properties: snapshot.Properties{{Name: "Configuration", Value: "Release"}},
		Items: []snapshot.Item{
			{ItemType: "Compile", EvaluatedInclude: "a.cs"},
			{ItemType: "Compile", EvaluatedInclude: "gen.cs"},
		},
	}
	return []event.Record{
		event.FromNotification(event.BuildStarted{}),
		event.SnapshotRecord(7, before),
		event.FromNotification(event.ProjectStarted{ProjectFile: "app.proj", ProjectInstanceID: 7}),
		event.FromNotification(event.TargetStarted{TargetName: "Compile"}),
		event.FromNotification(event.Warning{
			Header:     event.Header{Message: "unused variable"},
			Diagnostic: event.Diagnostic{Code: "CS0168"},
			Location:   event.Location{File: "a.cs", Line: 4, Column: 2},
		}),
		event.FromNotification(event.TargetFinished{TargetName: "Compile", Succeeded: true}),
		event.SnapshotRecord(7, after),
		event.FromNotification(event.ProjectFinished{ProjectFile: "app.proj", ProjectInstanceID: 7, Succeeded: true}),
		event.FromNotification(event.BuildFinished{Succeeded: true}),
	}
}

func TestReplayWritesXMLByDefault(t *testing.T) {
	dir := isolate(t)
	writeStream(t, "build.jsonl", buildRecords())

	out, err := executeCommand(newRootCmd(), "replay", "build.jsonl")
	if err != nil {
		t.Fatalf("replay: %v\n%s", err, out)
	}
	dest := filepath.Join(dir, "build.trace.xml")
	if !strings.Contains(out, "Trace written to build.trace.xml") {
		t.Errorf("unexpected output: %q", out)
	}
	data, err := os.ReadFile(dest)
	if err != nil {
		t.Fatalf("trace not written: %v", err)
	}
	doc := string(data)
	for _, want := range []string{
		`<MSBuild Id=`,
		`Name="app.proj"`,
		`<modified-properties>`,
		`<Property Name="Configuration" PreviousValue="Debug" Value="Release">`,
		`<new-items>`,
		`<Warnings>`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("trace missing %q", want)
		}
	}
}

func TestReplayToStdoutAsJSON(t *testing.T) {
	isolate(t)
	writeStream(t, "build.msgpack", buildRecords())

	out, err := executeCommand(newRootCmd(), "replay", "build.msgpack", "--format", "json", "--out", "-", "-v", "detailed")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	tr, err := (&render.JSONParser{}).Parse([]byte(out))
	if err != nil {
		t.Fatalf("stdout is not a JSON trace: %v\n%s", err, out)
	}
	if tr.Verbosity != verbosity.Detailed {
		t.Errorf("verbosity = %v, want detailed", tr.Verbosity)
	}
	sum := trace.Summarize(tr.Root)
	if sum.Projects != 1 || sum.Warnings != 1 || sum.Changed != 1 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestReplayFlagsOverrideConfig(t *testing.T) {
	isolate(t)
	if err := os.WriteFile(".buildtrace.toml", []byte("verbosity = \"quiet\"\ndefault_format = \"markdown\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	writeStream(t, "build.jsonl", buildRecords())

	out, err := executeCommand(newRootCmd(), "replay", "build.jsonl", "--out", "-")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !strings.HasPrefix(out, "<!-- buildtrace-trace-version: 1 -->") {
		t.Fatalf("config default_format should select markdown:\n%s", out)
	}

	out, err = executeCommand(newRootCmd(), "replay", "build.jsonl", "--out", "-", "--format", "json", "--no-summary")
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	tr, err := (&render.JSONParser{}).Parse([]byte(out))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if tr.Verbosity != verbosity.Quiet {
		t.Errorf("verbosity = %v, want quiet from config", tr.Verbosity)
	}
	if len(trace.Collect(tr.Root, trace.KindWarnings)) != 0 {
		t.Error("--no-summary should drop the Warnings bucket")
	}
}

func TestReplayRejectsBadVerbosity(t *testing.T) {
	isolate(t)
	writeStream(t, "build.jsonl", buildRecords())

	_, err := executeCommand(newRootCmd(), "replay", "build.jsonl", "-v", "chatty")
	if !errors.Is(err, verbosity.ErrFilterMisconfiguration) {
		t.Fatalf("err = %v, want ErrFilterMisconfiguration", err)
	}
}

func TestReplayProtocolViolationKeepsPartialTrace(t *testing.T) {
	dir := isolate(t)
	writeStream(t, "broken.jsonl", []event.Record{
		event.FromNotification(event.BuildStarted{}),
		event.FromNotification(event.TargetFinished{TargetName: "Build"}),
	})

	_, err := executeCommand(newRootCmd(), "replay", "broken.jsonl", "--format", "json")
	if !errors.Is(err, trace.ErrProtocolViolation) {
		t.Fatalf("err = %v, want ErrProtocolViolation", err)
	}
	data, readErr := os.ReadFile(filepath.Join(dir, "broken.trace.json"))
	if readErr != nil {
		t.Fatalf("partial trace not written: %v", readErr)
	}
	tr, parseErr := (&render.JSONParser{}).Parse(data)
	if parseErr != nil {
		t.Fatal(parseErr)
	}
	if tr.Root.Child(trace.KindBuild) == nil {
		t.Error("partial trace should contain the open build")
	}
}

func TestDefaultOutPath(t *testing.T) {
	tests := []struct {
		dir, stream string
		format      render.Format
		want        string
	}{
		{".", "logs/build.jsonl", render.FormatXML, "build.trace.xml"},
		{"", "build.msgpack", render.FormatJSON, "build.trace.json"},
		{"out", "/tmp/ci.run.jsonl", render.FormatMarkdown, filepath.Join("out", "ci.run.trace.md")},
	}
	for _, tt := range tests {
		if got := defaultOutPath(tt.dir, tt.stream, tt.format); got != tt.want {
			t.Errorf("defaultOutPath(%q, %q, %s) = %q, want %q", tt.dir, tt.stream, tt.format, got, tt.want)
		}
	}
}

func writeSnapshots(t *testing.T) (string, string) {
	t.Helper()
	left := &snapshot.Snapshot{
		Properties: snapshot.Properties{{Name: "OutDir", Value: "bin/"}, {Name: "Old", Value: "1"}},
		Items:      []snapshot.Item{{ItemType: "Compile", EvaluatedInclude: "a.cs"}},
	}
	right := &snapshot.Snapshot{
		Properties: snapshot.Properties{{Name: "OutDir", Value: "out/"}},
		Items: []snapshot.Item{
			{ItemType: "Compile", EvaluatedInclude: "a.cs", Metadata: snapshot.Properties{{Name: "Link", Value: "x"}}},
		},
	}
	if err := snapshot.WriteFile("left.json", left); err != nil {
		t.Fatal(err)
	}
	if err := snapshot.WriteFile("right.msgpack", right); err != nil {
		t.Fatal(err)
	}
	return "left.json", "right.msgpack"
}

func TestDiffTables(t *testing.T) {
	isolate(t)
	l, r := writeSnapshots(t)

	out, err := executeCommand(newRootCmd(), "diff", l, r)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	for _, want := range []string{"Properties", "modified", "OutDir", "out/", "removed", "Old", "Items", "Compile"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestDiffEqualAndUnified(t *testing.T) {
	isolate(t)
	l, r := writeSnapshots(t)

	out, err := executeCommand(newRootCmd(), "diff", l, l)
	if err != nil || !strings.Contains(out, "snapshots are equal") {
		t.Fatalf("diff of identical files: %v %q", err, out)
	}

	out, err = executeCommand(newRootCmd(), "diff", l, r, "--unified")
	if err != nil {
		t.Fatalf("diff --unified: %v", err)
	}
	if !strings.Contains(out, "-OutDir=bin/") || !strings.Contains(out, "+OutDir=out/") {
		t.Errorf("unified diff:\n%s", out)
	}
}

func TestDiffJSONHonoursItemEquality(t *testing.T) {
	isolate(t)
	l, r := writeSnapshots(t)

	out, err := executeCommand(newRootCmd(), "diff", l, r, "--json", "--item-equality", "metadata")
	if err != nil {
		t.Fatalf("diff --json: %v", err)
	}
	if !strings.Contains(out, `"areEqual": false`) || !strings.Contains(out, `"previous"`) {
		t.Errorf("json output:\n%s", out)
	}
}

func TestDiffMissingFile(t *testing.T) {
	isolate(t)
	l, _ := writeSnapshots(t)

	_, err := executeCommand(newRootCmd(), "diff", l, "nope.json")
	if err == nil || !strings.Contains(err.Error(), "right snapshot") {
		t.Fatalf("err = %v", err)
	}
}

func TestSnapshotConvertAndShow(t *testing.T) {
	isolate(t)
	l, _ := writeSnapshots(t)

	out, err := executeCommand(newRootCmd(), "snapshot", "convert", l, "left.msgpack")
	if err != nil || !strings.Contains(out, "Snapshot written to left.msgpack") {
		t.Fatalf("convert: %v %q", err, out)
	}
	got, err := snapshot.ReadFile("left.msgpack")
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := got.Properties.Get("OutDir"); v != "bin/" {
		t.Errorf("OutDir = %q after conversion", v)
	}

	out, err = executeCommand(newRootCmd(), "snapshot", "show", "left.msgpack")
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"Properties (2)", "OutDir", "Items (1)", "a.cs"} {
		if !strings.Contains(out, want) {
			t.Errorf("show missing %q:\n%s", want, out)
		}
	}
}

func TestViewPlain(t *testing.T) {
	isolate(t)
	writeStream(t, "build.jsonl", buildRecords())
	if _, err := executeCommand(newRootCmd(), "replay", "build.jsonl", "--format", "markdown"); err != nil {
		t.Fatalf("replay: %v", err)
	}

	out, err := executeCommand(newRootCmd(), "view", "--plain", "build.trace.md")
	if err != nil {
		t.Fatalf("view: %v", err)
	}
	for _, want := range []string{
		"## Summary",
		"Result:     succeeded",
		"Project app.proj",
		"warning a.cs(4,2): warning CS0168: unused variable",
		"### app.proj",
		"Configuration",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
}

func TestViewMissingFile(t *testing.T) {
	isolate(t)
	_, err := executeCommand(newRootCmd(), "view", "--plain", "absent.json")
	if err == nil || !strings.Contains(err.Error(), "file not found") {
		t.Fatalf("err = %v", err)
	}
}

func TestLogLevelFlagEnablesDebugLogs(t *testing.T) {
	isolate(t)
	l, r := writeSnapshots(t)

	out, err := executeCommand(newRootCmd(), "--log-level", "debug", "diff", l, r)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if !strings.Contains(out, "snapshots compared") {
		t.Errorf("debug log missing:\n%s", out)
	}
}
