package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ludeme/ludx/internal/completer"
)

var (
	maxCompletions int
	countOnly      bool
)

var completeCmd = &cobra.Command{
	Use:   "complete <file>",
	Short: "Print the concrete descriptions of a template with [a|b] choices",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("error reading file: %w", err)
		}
		runComplete(string(content), cmd.OutOrStdout())
		return nil
	},
}

func init() {
	completeCmd.Flags().IntVarP(&maxCompletions, "max", "n", 10, "Maximum number of completions, 0 for all")
	completeCmd.Flags().BoolVar(&countOnly, "count", false, "Only print the number of completions")
}

func runComplete(raw string, out io.Writer) {
	if countOnly {
		fmt.Fprintln(out, completer.Count(raw))
		return
	}
	for i, c := range completer.Complete(raw, maxCompletions) {
		if i > 0 {
			fmt.Fprintln(out)
		}
		fmt.Fprintf(out, "// completion %d: %s\n", i+1, strings.Join(c.Choices, " | "))
		fmt.Fprintln(out, c.Text)
	}
}
