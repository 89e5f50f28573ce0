package cmd

import (
	"github.com/spf13/cobra"
)

// Execute builds the root command and runs it.
func Execute() error {
	var root = &cobra.Command{
		Use:   "inkpress",
		Short: "Daily essay generation and publication service",
	}
	root.AddCommand(serveCMD(), runCMD(), migrateCMD())
	return root.Execute()
}
