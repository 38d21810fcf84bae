package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/buildtrace/internal/event"
	"github.com/fakeyudi/buildtrace/internal/output"
	"github.com/fakeyudi/buildtrace/internal/render"
	"github.com/fakeyudi/buildtrace/internal/snapshot"
	"github.com/fakeyudi/buildtrace/internal/source"
	"github.com/fakeyudi/buildtrace/internal/trace"
	"github.com/fakeyudi/buildtrace/internal/verbosity"
)

type replayOptions struct {
	verbosity    string
	format       string
	out          string
	follow       bool
	noSummary    bool
	itemEquality string
}

func newReplayCmd(a *app) *cobra.Command {
	var o replayOptions
	cmd := &cobra.Command{
		Use:   "replay <stream>",
		Short: "Build a trace document from a recorded event stream",
		Long: `Replay reads a recorded build event stream (JSON Lines or MessagePack) and
writes the resulting trace as XML, JSON or Markdown.

Use --out - to write to stdout. Without --out the trace is written to
<output_dir>/<stream name>.trace.<ext>.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(cmd, a, o, args[0])
		},
	}
	cmd.Flags().StringVarP(&o.verbosity, "verbosity", "v", "", "verbosity (quiet|minimal|normal|detailed|diagnostic), overrides config")
	cmd.Flags().StringVarP(&o.format, "format", "f", "", "output format (xml|json|markdown), overrides config")
	cmd.Flags().StringVarP(&o.out, "out", "o", "", "output path, - for stdout")
	cmd.Flags().BoolVar(&o.follow, "follow", false, "tail a growing stream until the outermost build finishes")
	cmd.Flags().BoolVar(&o.noSummary, "no-summary", false, "omit the per-build Warnings and Errors summaries")
	cmd.Flags().StringVar(&o.itemEquality, "item-equality", "", "item change detection (count|metadata), overrides config")
	return cmd
}

func runReplay(cmd *cobra.Command, a *app, o replayOptions, path string) error {
	cfg := a.cfg
	if o.verbosity != "" {
		cfg.Verbosity = o.verbosity
	}
	if o.format != "" {
		cfg.DefaultFormat = o.format
	}
	if o.itemEquality != "" {
		cfg.ItemEquality = o.itemEquality
	}

	level, err := verbosity.Parse(cfg.Verbosity)
	if err != nil {
		return err
	}
	equality, err := snapshot.ParseItemEquality(cfg.ItemEquality)
	if err != nil {
		return err
	}
	format, err := render.ParseFormat(cfg.DefaultFormat)
	if err != nil {
		return err
	}

	provider := source.NewRecorded()
	sess, err := trace.NewSession(trace.Options{
		Verbosity:             level,
		IncludeSummaryBuckets: cfg.SummaryBuckets() && !o.noSummary,
		ItemEquality:          equality,
		Provider:              provider,
		Logger:                a.log,
		Parameters: snapshot.Properties{
			{Name: "stream", Value: path},
			{Name: "format", Value: string(format)},
		},
	})
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	r, err := source.Open(ctx, path, o.follow)
	if err != nil {
		return err
	}
	defer r.Close()

	log := a.log.With("stream", path, "session", sess.ID())
	log.Info("replay started", "verbosity", level.String(), "follow", o.follow)

	stats, replayErr := source.Replay(ctx, event.NewDecoder(event.CodecFor(path), r), sess, provider,
		source.Options{StopWhenDone: o.follow, Logger: log})
	if replayErr != nil && o.follow && errors.Is(replayErr, context.Canceled) {
		log.Info("follow interrupted, writing partial trace")
		replayErr = nil
	}

	data, err := render.For(format).Render(sess.Trace())
	if err != nil {
		return err
	}

	dest := o.out
	if dest == "" {
		dest = defaultOutPath(cfg.OutputDir, path, format)
	}
	if dest == "-" {
		if _, err := cmd.OutOrStdout().Write(data); err != nil {
			return err
		}
	} else {
		if err := output.WriteFile(ctx, dest, data); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Trace written to %s (%d notifications, %d snapshots)\n",
			dest, stats.Notifications, stats.Snapshots)
	}
	log.Info("replay finished", "records", stats.Records, "output", dest)

	if replayErr != nil {
		return fmt.Errorf("replay %s: %w", path, replayErr)
	}
	return nil
}

// defaultOutPath places build.jsonl's trace at <dir>/build.trace.xml.
func defaultOutPath(dir, stream string, f render.Format) string {
	base := filepath.Base(stream)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, base+".trace"+f.Extension())
}
