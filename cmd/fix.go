package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/range0420/PySafeScan/internal/autofix"
	"github.com/range0420/PySafeScan/internal/observability"
)

// newFixCmd creates the `fix` command: apply a remediation to a file,
// writing the result to a .fixed sibling.
func newFixCmd() *cobra.Command {
	var (
		line    int
		oldCode string
		newCode string
		block   bool
	)

	fixCmd := &cobra.Command{
		Use:   "fix <file>",
		Short: "Apply a suggested fix to a Python file",
		Long:  "Replaces the given line (or its whole enclosing function with --block) and writes the result to <file>.fixed, leaving the original untouched.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := observability.GetLogger()
			patcher := autofix.NewPatcher(logger)

			var (
				result *autofix.PatchResult
				err    error
			)
			if block {
				result, err = patcher.ApplyBlock(args[0], line, newCode)
			} else {
				if oldCode == "" {
					return fmt.Errorf("--old is required for single-line fixes")
				}
				result, err = patcher.Apply(args[0], line, oldCode, newCode)
			}
			if err != nil {
				return err
			}

			logger.Info("fix written",
				zap.String("file", args[0]),
				zap.String("output", result.OutputPath),
			)
			fmt.Fprintf(cmd.OutOrStdout(), "Patched file written to %s\n\n%s\n", result.OutputPath, result.Diff)
			return nil
		},
	}

	fixCmd.Flags().IntVarP(&line, "line", "l", 0, "one-based line number of the code to replace")
	fixCmd.Flags().StringVar(&oldCode, "old", "", "expected current code at the line (safety check)")
	fixCmd.Flags().StringVar(&newCode, "new", "", "replacement code")
	fixCmd.Flags().BoolVar(&block, "block", false, "replace the whole enclosing function instead of one line")
	fixCmd.MarkFlagRequired("line")
	fixCmd.MarkFlagRequired("new")
	return fixCmd
}
