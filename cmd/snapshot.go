package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/fakeyudi/buildtrace/internal/snapshot"
)

func newSnapshotCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Inspect and convert project snapshot files",
	}

	convert := &cobra.Command{
		Use:   "convert <in> <out>",
		Short: "Convert a snapshot between JSON and MessagePack",
		Long: `Convert reads a snapshot and writes it in the encoding implied by the output
extension: .msgpack or .mp for MessagePack, anything else JSON.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := snapshot.ReadFile(args[0])
			if err != nil {
				return err
			}
			if err := snapshot.WriteFile(args[1], s); err != nil {
				return err
			}
			a.log.Debug("snapshot converted", "in", args[0], "out", args[1],
				"encoding", snapshot.EncodingFor(args[1]))
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Snapshot written to %s\n", args[1])
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <file>",
		Short: "Print the properties and items of a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := snapshot.ReadFile(args[0])
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()

			props := make([][]string, 0, len(s.Properties))
			for _, p := range s.Properties {
				props = append(props, []string{p.Name, p.Value})
			}
			fmt.Fprintf(w, "Properties (%d)\n", len(s.Properties))
			fmt.Fprintln(w, renderTable([]string{"Name", "Value"}, props, nil))

			items := make([][]string, 0, len(s.Items))
			for _, it := range s.Items {
				items = append(items, []string{it.ItemType, it.EvaluatedInclude, strconv.Itoa(it.MetadataCount())})
			}
			fmt.Fprintf(w, "Items (%d)\n", len(s.Items))
			fmt.Fprintln(w, renderTable([]string{"Type", "Include", "Metadata"}, items,
				[]columnAlignment{alignLeft, alignLeft, alignRight}))
			return nil
		},
	}

	cmd.AddCommand(convert, show)
	return cmd
}
