// Package main provides the born-vae command line tool.
package main

import (
	"context"

	"github.com/spf13/cobra"
)

const version = "v0.1.0-dev"

func main() {
	cobra.CheckErr(newCLI().ExecuteContext(context.Background()))
}

func newCLI() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "born-vae",
		Short: "Variational autoencoders for 158x158 images",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			// Disable usage printing on errors
			cmd.SilenceUsage = true
		},
	}

	cobra.EnableCommandSorting = false

	rootCmd.AddCommand(
		newTrainCmd(),
		newEnvCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("born-vae %s\n", version)
		},
	}
}
