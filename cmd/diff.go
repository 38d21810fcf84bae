package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/fakeyudi/buildtrace/internal/snapshot"
	"github.com/fakeyudi/buildtrace/internal/textdiff"
)

type diffOptions struct {
	json         bool
	unified      bool
	itemEquality string
}

func newDiffCmd(a *app) *cobra.Command {
	var o diffOptions
	cmd := &cobra.Command{
		Use:   "diff <left> <right>",
		Short: "Compare two project snapshots",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			eqName := a.cfg.ItemEquality
			if o.itemEquality != "" {
				eqName = o.itemEquality
			}
			eq, err := snapshot.ParseItemEquality(eqName)
			if err != nil {
				return err
			}

			left, right, err := loadPair(cmd, args[0], args[1])
			if err != nil {
				return err
			}
			res := snapshot.Comparer{Items: eq}.Compare(left, right)
			a.log.Debug("snapshots compared", "left", args[0], "right", args[1], "equal", res.AreEqual)

			w := cmd.OutOrStdout()
			switch {
			case o.json:
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(res)
			case res.AreEqual:
				fmt.Fprintln(w, "snapshots are equal")
			case o.unified:
				fmt.Fprint(w, textdiff.Snapshots(left, right, textdiff.Options{FromFile: args[0], ToFile: args[1]}))
			default:
				writeChangeTables(w, res)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&o.json, "json", false, "print the comparison result as JSON")
	cmd.Flags().BoolVar(&o.unified, "unified", false, "print a unified diff of both snapshots")
	cmd.Flags().StringVar(&o.itemEquality, "item-equality", "", "item change detection (count|metadata), overrides config")
	return cmd
}

// loadPair reads both snapshots concurrently.
func loadPair(cmd *cobra.Command, leftPath, rightPath string) (*snapshot.Snapshot, *snapshot.Snapshot, error) {
	var left, right *snapshot.Snapshot
	g, _ := errgroup.WithContext(cmd.Context())
	g.Go(func() error {
		s, err := snapshot.ReadFile(leftPath)
		if err != nil {
			return fmt.Errorf("left snapshot: %w", err)
		}
		left = s
		return nil
	})
	g.Go(func() error {
		s, err := snapshot.ReadFile(rightPath)
		if err != nil {
			return fmt.Errorf("right snapshot: %w", err)
		}
		right = s
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return left, right, nil
}

// writeChangeTables prints property and item changes as tables, skipping
// empty sections.
func writeChangeTables(w io.Writer, res snapshot.CompareResult) {
	if !res.Properties.Empty() {
		var rows [][]string
		for _, c := range res.Properties.Changed {
			rows = append(rows, []string{"modified", c.Name, c.Left, c.Right})
		}
		for _, p := range res.Properties.AddedRight {
			rows = append(rows, []string{"added", p.Name, "", p.Value})
		}
		for _, p := range res.Properties.RemovedLeft {
			rows = append(rows, []string{"removed", p.Name, p.Value, ""})
		}
		fmt.Fprintln(w, "Properties")
		fmt.Fprintln(w, renderTable([]string{"Change", "Name", "Previous", "Value"}, rows, nil))
	}
	if !res.Items.Empty() {
		var rows [][]string
		for _, c := range res.Items.Changed {
			rows = append(rows, []string{"modified", c.Left.ItemType, c.Left.EvaluatedInclude,
				strconv.Itoa(c.Left.MetadataCount()), strconv.Itoa(c.Right.MetadataCount())})
		}
		for _, it := range res.Items.AddedRight {
			rows = append(rows, []string{"added", it.ItemType, it.EvaluatedInclude, "", strconv.Itoa(it.MetadataCount())})
		}
		for _, it := range res.Items.RemovedLeft {
			rows = append(rows, []string{"removed", it.ItemType, it.EvaluatedInclude, strconv.Itoa(it.MetadataCount()), ""})
		}
		fmt.Fprintln(w, "Items")
		fmt.Fprintln(w, renderTable(
			[]string{"Change", "Type", "Include", "Metadata before", "Metadata after"},
			rows,
			[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignRight},
		))
	}
}
