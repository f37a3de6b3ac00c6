package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ludeme/ludx/internal/define"
)

var definesCmd = &cobra.Command{
	Use:   "defines",
	Short: "List the macro library",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return fmt.Errorf("failed to initialize engine: %w", err)
		}
		printDefines(cmd.OutOrStdout(), engine.Registry())
		return nil
	},
}

func printDefines(out io.Writer, registry *define.Registry) {
	for _, err := range registry.Errors() {
		logger.Warn("macro not loaded", zap.Error(err))
	}
	for _, d := range registry.Sorted() {
		params := ""
		if n := d.NumParameters(); n > 0 {
			params = fmt.Sprintf(" #1..#%d", n)
		}
		fmt.Fprintf(out, "%s%s\n    %s\n", d.Tag(), params, oneLine(d.Expression()))
	}
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
