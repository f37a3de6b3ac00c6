package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// cleanCmd: ludx clean
var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove the cached check results",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return fmt.Errorf("failed to initialize engine: %w", err)
		}
		if !engine.HasCache() {
			fmt.Fprintln(cmd.OutOrStdout(), "no cache configured")
			return nil
		}
		if err := engine.ClearCache(); err != nil {
			return fmt.Errorf("error clearing cache: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "cache cleared")
		return nil
	},
}
