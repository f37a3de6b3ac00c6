package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ludeme/ludx/formatter"
	"github.com/ludeme/ludx/internal"
	tt "github.com/ludeme/ludx/internal/types"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dirs...]",
	Short: "Check descriptions again whenever they are saved",
	RunE: func(cmd *cobra.Command, args []string) error {
		dirs := args
		if len(dirs) == 0 {
			dirs = []string{"."}
		}

		engine, err := newEngine()
		if err != nil {
			return fmt.Errorf("failed to initialize engine: %w", err)
		}

		out := cmd.OutOrStdout()
		err = engine.StartWatching(func(filename string, issues []tt.Issue) {
			if len(issues) == 0 {
				fmt.Fprintf(out, "%s: ok\n", filename)
				return
			}
			sourceCode, _ := internal.ReadSourceCode(filename)
			fmt.Fprint(out, formatter.GenerateFormattedIssue(issues, sourceCode))
		}, dirs...)
		if err != nil {
			return err
		}
		defer engine.StopWatching()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		fmt.Fprintf(out, "watching %d directories, press Ctrl+C to stop\n", len(dirs))
		<-ctx.Done()
		return nil
	},
}
