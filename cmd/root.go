// Package cmd implements the ludx command line.
package cmd

import (
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ludeme/ludx/internal"
	"github.com/ludeme/ludx/lint"
)

const defaultTimeout = 5 * time.Minute

var (
	cfgFile string
	timeout time.Duration
	verbose bool

	logger = zap.NewNop()
)

// errIssuesFound makes the process exit with status 1 after the issues
// have been printed.
var errIssuesFound = errors.New("issues found")

var rootCmd = &cobra.Command{
	Use:              "ludx [paths...]",
	Short:            "ludx - expand and validate game descriptions",
	TraverseChildren: true, // Prioritize subcommands
	SilenceUsage:     true,
	SilenceErrors:    true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if verbose {
			logger, err = zap.NewDevelopment()
		} else {
			logger, err = zap.NewProduction()
		}
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		// no subcommand
		if len(args) == 0 {
			return cmd.Help()
		}
		// Format: ludx [path1 path2 ...] => behaves like the check subcommand
		return checkCmd.RunE(cmd, args)
	},
}

// Execute runs the root command. It returns errIssuesFound when an error
// level issue was printed.
func Execute() error {
	return rootCmd.Execute()
}

// IsIssuesFound reports whether err only signals that issues were printed.
func IsIssuesFound(err error) bool {
	return errors.Is(err, errIssuesFound)
}

func newEngine() (*internal.Engine, error) {
	return lint.New(cfgFile, logger)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "Path to the configuration file (default "+lint.DefaultConfigFile+")")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", defaultTimeout, "Set a timeout for the run")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable development logging")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(expandCmd)
	rootCmd.AddCommand(definesCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(cleanCmd)
}
