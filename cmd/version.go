package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the application version, intended to be set at build time:
//
//	go build -ldflags "-X github.com/range0420/PySafeScan/cmd.Version=1.0.0"
var Version = "0.1.0"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the pysafescan version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "pysafescan %s\n", Version)
		},
	}
}
