// Package cli wires the tamuu commands.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	Verbose    bool
}

// NewRootCommand creates the root command for the tamuu server.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "tamuu",
		Short: "Invitation template sync server",
		Long: "tamuu serves invitation template documents over a JSON API,\n" +
			"with an optimistic sync engine and a stale-while-revalidate cache.",
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "tamuu.yaml", "path to the config file")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewVersionCommand())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	cmd := NewRootCommand()
	if err := cmd.Execute(); err != nil {
		return fmt.Errorf("tamuu: %w", err)
	}
	return nil
}
