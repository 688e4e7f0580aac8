package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/loom"
	"github.com/aretw0/loom/internal/logging"
	"github.com/aretw0/loom/pkg/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file|id]...",
	Short: "Check seed documents against their records",
	Long: `Builds every given seed document and reports shape violations.
With --dir and no arguments, every seed document of the repository is checked.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		refs := args
		if len(refs) == 0 {
			dir, _ := cmd.Flags().GetString("dir")
			if dir == "" {
				return fmt.Errorf("no seed documents given (pass files or --dir)")
			}
			loader, err := loom.NewLoader(dir)
			if err != nil {
				return err
			}
			if refs, err = loader.ListSeeds(); err != nil {
				return err
			}
		}

		failed := 0
		for _, ref := range refs {
			src := source(cmd, ref)
			if _, err := src.Build(cmd.Context(), loom.WithLogger(logging.NewNop())); err != nil {
				failed++
				fmt.Fprintf(cmd.OutOrStdout(), "✗ %s\n", src.ID())
				reportErrors(cmd, err)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ %s\n", src.ID())
		}

		if failed > 0 {
			return fmt.Errorf("validation failed: %d of %d documents", failed, len(refs))
		}
		fmt.Fprintln(cmd.OutOrStdout(), "All documents are valid! ✅")
		return nil
	},
}

// reportErrors lists every violation of an aggregate on its own line.
func reportErrors(cmd *cobra.Command, err error) {
	var agg *schema.AggregateError
	if errors.As(err, &agg) {
		for _, e := range agg.Errors {
			fmt.Fprintf(cmd.OutOrStdout(), "    %v\n", e)
		}
		return
	}
	fmt.Fprintf(cmd.OutOrStdout(), "    %v\n", err)
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().String("schema", "", "Record overriding the declared one")
}
