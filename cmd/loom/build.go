package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/internal/cli"
)

var buildCmd = &cobra.Command{
	Use:   "build <file|id>",
	Short: "Materialize a seed document and print its JSON projection",
	Long: `Reads a seed document (tagged YAML, JSON envelope, or a Markdown file in a loam
repository), builds it in a fresh runtime, and prints the plain JSON projection.
Output is indented when Stdout is a terminal.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := source(cmd, args[0])
		logger := newLogger(cmd)
		pretty, _ := cmd.Flags().GetBool("pretty")
		if !cmd.Flags().Changed("pretty") {
			pretty = cli.IsTerminal(os.Stdout)
		}
		withSnapshot, _ := cmd.Flags().GetBool("snapshot")

		emit := func(d *loom.Document) error {
			if withSnapshot {
				snap, err := d.Snapshot()
				if err != nil {
					return err
				}
				snap.DocID = src.ID()
				return cli.WriteJSON(cmd.OutOrStdout(), snap, pretty)
			}
			data, err := d.ToJSON()
			if err != nil {
				return err
			}
			return cli.WriteJSON(cmd.OutOrStdout(), data, pretty)
		}

		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			ctx := cli.NewSignalContext(cmd.Context())
			defer ctx.Cancel()
			return cli.Watch(ctx, src, logger, func(d *loom.Document, err error) {
				if err == nil {
					err = emit(d)
				}
				if err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Build failed: %v\n", err)
				}
			}, loom.WithLogger(logger))
		}

		d, err := src.Build(cmd.Context(), loom.WithLogger(logger))
		if err != nil {
			return fmt.Errorf("build failed: %w", err)
		}
		return emit(d)
	},
}

func init() {
	rootCmd.AddCommand(buildCmd)
	buildCmd.Flags().String("schema", "", "Record to check the seeds against, e.g. {title:text,tags:list<string>}")
	buildCmd.Flags().Bool("pretty", false, "Indent the JSON output (default: when Stdout is a terminal)")
	buildCmd.Flags().Bool("snapshot", false, "Print the full snapshot (id, seq, schema, data)")
	buildCmd.Flags().BoolP("watch", "w", false, "Rebuild whenever the seed document changes (loam sources only)")
}
