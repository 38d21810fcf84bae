package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/fakeyudi/buildtrace/internal/render"
	"github.com/fakeyudi/buildtrace/internal/trace"
	"github.com/fakeyudi/buildtrace/internal/tui"
)

func newViewCmd(a *app) *cobra.Command {
	var plain bool
	cmd := &cobra.Command{
		Use:   "view <trace>",
		Short: "Browse a JSON or Markdown trace document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			data, err := os.ReadFile(path)
			if err != nil {
				if os.IsNotExist(err) {
					return fmt.Errorf("file not found: %s", path)
				}
				return err
			}

			t, err := render.ParserFor(path).Parse(data)
			if err != nil {
				return err
			}

			if plain || !term.IsTerminal(os.Stdout.Fd()) {
				a.log.Debug("printing plain trace", "path", path)
				printTrace(cmd.OutOrStdout(), t)
				return nil
			}
			return tui.Run(t, path)
		},
	}
	cmd.Flags().BoolVar(&plain, "plain", false, "plain text output instead of TUI")
	return cmd
}

var (
	scopeColor   = color.New(color.FgCyan, color.Bold)
	warningColor = color.New(color.FgYellow, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	okColor      = color.New(color.FgGreen)
	dimColor     = color.New(color.Faint)
)

// printTrace writes an indented tree followed by change tables.
func printTrace(w io.Writer, t *trace.Trace) {
	sum := trace.Summarize(t.Root)
	fmt.Fprintln(w, "## Summary")
	fmt.Fprintf(w, "  Trace:      %s\n", t.ID)
	fmt.Fprintf(w, "  Started:    %s\n", t.Started.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "  Verbosity:  %s\n", t.Verbosity)
	fmt.Fprintf(w, "  Result:     %s\n", plainResult(sum.Succeeded))
	fmt.Fprintf(w, "  Projects:   %d  targets: %d  tasks: %d\n", sum.Projects, sum.Targets, sum.Tasks)
	fmt.Fprintf(w, "  Warnings:   %d  errors: %d\n", sum.Warnings, sum.Errors)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Tree")
	if t.Root != nil {
		t.Root.Walk(func(n *trace.Node, depth int) bool {
			switch n.Kind {
			case trace.KindRoot:
				return true
			case trace.KindWarnings, trace.KindErrors, trace.KindLocation, trace.KindChanges,
				trace.KindParameters, trace.KindProperties:
				return false
			}
			fmt.Fprintf(w, "%s%s\n", strings.Repeat("  ", depth), plainLine(n))
			return n.Kind.IsScope()
		})
	}
	fmt.Fprintln(w)

	fmt.Fprintln(w, "## Changes")
	changed := 0
	for _, p := range trace.Collect(t.Root, trace.KindProject) {
		c := p.Child(trace.KindChanges)
		if c == nil || c.Changes == nil {
			continue
		}
		changed++
		name, _ := p.Attr("Name")
		fmt.Fprintf(w, "### %s\n", name)
		writeChangeTables(w, *c.Changes)
	}
	if changed == 0 {
		fmt.Fprintln(w, "  (none)")
	}
}

func plainLine(n *trace.Node) string {
	switch n.Kind {
	case trace.KindBuild, trace.KindProject, trace.KindTarget, trace.KindTask:
		name, _ := n.Attr("Name")
		line := scopeColor.Sprint(string(n.Kind))
		if name != "" {
			line += " " + name
		}
		if n.Succeeded != nil {
			line += "  " + plainResult(n.Succeeded)
		}
		return line
	case trace.KindWarning:
		return warningColor.Sprint("warning") + " " + messageText(n)
	case trace.KindError:
		return errorColor.Sprint("error") + " " + messageText(n)
	case trace.KindTargetsExecuted:
		return dimColor.Sprint("targets: " + strings.Join(n.Values, ", "))
	case trace.KindMessage:
		return n.Text
	default:
		return dimColor.Sprint(string(n.Kind))
	}
}

func messageText(n *trace.Node) string {
	if m := n.Child(trace.KindMessage); m != nil {
		return m.Text
	}
	return ""
}

func plainResult(ok *bool) string {
	switch {
	case ok == nil:
		return dimColor.Sprint("unfinished")
	case *ok:
		return okColor.Sprint("succeeded")
	default:
		return errorColor.Sprint("failed")
	}
}
