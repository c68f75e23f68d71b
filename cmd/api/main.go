package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	var envFiles []string
	cmd := &cobra.Command{
		Use:           "gztprocessor",
		Short:         "Gazette draft reconciliation and commit API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "env files to load (default .env, .env.local)")

	serve := newServeCmd(&envFiles)
	cmd.AddCommand(serve, newMigrateCmd(&envFiles))
	// Running without a subcommand serves the API.
	cmd.RunE = serve.RunE
	return cmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "gztprocessor:", err)
		os.Exit(1)
	}
}
