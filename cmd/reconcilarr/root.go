package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	serveCmd := newServeCommand()

	rootCmd := &cobra.Command{
		Use:           "reconcilarr",
		Short:         "Media acquisition and library reconciliation manager",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serveCmd.RunE,
	}

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(newCheckCommand())
	rootCmd.AddCommand(newScanCommand())
	rootCmd.AddCommand(newPendingCommand())
	rootCmd.AddCommand(newRenameCommand())

	return rootCmd
}
