package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/range0420/PySafeScan/internal/autofix"
)

// newContextCmd creates the `context` command: print the imports and the
// enclosing function or class for a line of a Python file. Useful when
// reviewing a finding without opening an editor.
func newContextCmd() *cobra.Command {
	var line int

	contextCmd := &cobra.Command{
		Use:   "context <file>",
		Short: "Show the code context surrounding a line",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			snippet, err := autofix.RetrieveContext(cmd.Context(), args[0], line)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), snippet)
			return nil
		},
	}

	contextCmd.Flags().IntVarP(&line, "line", "l", 1, "one-based line number of interest")
	return contextCmd
}
