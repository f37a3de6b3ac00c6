package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/ludeme/ludx/formatter"
	"github.com/ludeme/ludx/internal"
	"github.com/ludeme/ludx/internal/desc"
)

var (
	showMetadata  bool
	showInstances bool
	showLog       bool
	selectOptions []string
	selectRuleset int
)

var expandCmd = &cobra.Command{
	Use:   "expand <file>",
	Short: "Print the expanded form of a description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return fmt.Errorf("failed to initialize engine: %w", err)
		}

		var sel *desc.UserSelections
		if cmd.Flags().Changed("option") || cmd.Flags().Changed("ruleset") {
			sel = desc.NewUserSelections(selectOptions...)
			sel.Ruleset = selectRuleset
		}
		return runExpand(engine, args[0], sel, cmd.OutOrStdout())
	},
}

func init() {
	expandCmd.Flags().BoolVar(&showMetadata, "metadata", false, "Print the metadata instead of the game")
	expandCmd.Flags().BoolVar(&showInstances, "instances", false, "List every macro instantiation")
	expandCmd.Flags().BoolVar(&showLog, "log", false, "Print the expansion log")
	expandCmd.Flags().StringArrayVar(&selectOptions, "option", nil, "Select an option by its Category/Item path (repeatable)")
	expandCmd.Flags().IntVar(&selectRuleset, "ruleset", desc.NoRuleset, "Select a ruleset by index")
}

func runExpand(engine *internal.Engine, filename string, sel *desc.UserSelections, out io.Writer) error {
	content, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("error reading file: %w", err)
	}

	d, report := engine.Expand(filename, string(content), sel)

	if showLog {
		if name := d.GameName(); name != "" {
			fmt.Fprintln(out, "# Game "+name)
		}
		for _, line := range report.Logs() {
			fmt.Fprintln(out, "# "+line)
		}
	}

	sourceCode := &internal.SourceCode{}
	if len(report.Issues()) > 0 {
		if sc, err := internal.ReadSourceCode(filename); err == nil {
			sourceCode = sc
		}
		fmt.Fprint(out, formatter.GenerateFormattedIssue(report.Issues(), sourceCode))
	}
	if report.IsError() {
		return errIssuesFound
	}

	switch {
	case showInstances:
		printInstances(out, d)
	case showMetadata:
		fmt.Fprintln(out, d.Metadata)
	default:
		fmt.Fprintln(out, d.Expanded)
	}
	return nil
}

func printInstances(out io.Writer, d *desc.Description) {
	tags := make([]string, 0, len(d.Defines))
	for tag := range d.Defines {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		instances := d.Defines[tag].Instances()
		fmt.Fprintf(out, "%s (%d)\n", tag, len(instances))
		for _, instance := range instances {
			fmt.Fprintf(out, "    %s\n", instance)
		}
	}
}
