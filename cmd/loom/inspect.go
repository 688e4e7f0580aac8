package main

import (
	"fmt"
	"os"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/internal/cli"
	"github.com/aretw0/loom/internal/presentation/tui"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <file|id>",
	Short: "Show the record and the kind tree of a seed document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src := source(cmd, args[0])
		logger := newLogger(cmd)
		out := cmd.OutOrStdout()

		tty := cli.IsTerminal(os.Stdout)
		mermaid, _ := cmd.Flags().GetBool("mermaid")
		opts := cli.InspectOptions{
			Markdown: tty && !mermaid,
			Mermaid:  mermaid,
			Width:    cli.TerminalWidth(os.Stdout, 80),
			Profile:  termenv.Ascii,
		}
		if tty && !mermaid {
			opts.Profile = termenv.ColorProfile()
			tui.PrintBanner(out)
		}

		render := func(d *loom.Document, err error) error {
			if err != nil {
				return fmt.Errorf("build failed: %w", err)
			}
			return cli.Inspect(out, src.ID(), d, opts)
		}

		if watch, _ := cmd.Flags().GetBool("watch"); watch {
			ctx := cli.NewSignalContext(cmd.Context())
			defer ctx.Cancel()
			return cli.Watch(ctx, src, logger, func(d *loom.Document, err error) {
				if err := render(d, err); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), err)
				}
			}, loom.WithLogger(logger))
		}

		return render(src.Build(cmd.Context(), loom.WithLogger(logger)))
	},
}

func init() {
	rootCmd.AddCommand(inspectCmd)
	inspectCmd.Flags().String("schema", "", "Record overriding the declared one")
	inspectCmd.Flags().Bool("mermaid", false, "Print a Mermaid flowchart of the document instead")
	inspectCmd.Flags().BoolP("watch", "w", false, "Re-render whenever the seed document changes (loam sources only)")
}
