package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ludeme/ludx/formatter"
	"github.com/ludeme/ludx/internal"
	tt "github.com/ludeme/ludx/internal/types"
	"github.com/ludeme/ludx/lint"
)

var (
	ignoreRules string
	ignorePaths string
	jsonOutput  bool
	outPath     string
)

var checkCmd = &cobra.Command{
	Use:   "check [paths...]",
	Short: "Expand and validate description files",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return fmt.Errorf("please provide file or directory paths")
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		engine, err := newEngine()
		if err != nil {
			return fmt.Errorf("failed to initialize engine: %w", err)
		}

		for _, rule := range splitList(ignoreRules) {
			engine.IgnoreRule(rule)
		}
		for _, path := range splitList(ignorePaths) {
			engine.IgnorePath(path)
		}

		return runCheck(ctx, engine, args, cmd.OutOrStdout())
	},
}

func init() {
	checkCmd.Flags().StringVar(&ignoreRules, "ignore", "", "Comma-separated list of rules to ignore")
	checkCmd.Flags().StringVar(&ignorePaths, "ignore-paths", "", "Comma-separated list of paths to ignore")
	checkCmd.Flags().BoolVar(&jsonOutput, "json", false, "Output issues in JSON format")
	checkCmd.Flags().StringVarP(&outPath, "output", "o", "", "Output path (when using JSON)")
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func runCheck(ctx context.Context, engine lint.LintEngine, paths []string, out io.Writer) error {
	issues, err := lint.ProcessFiles(ctx, logger, engine, paths, lint.ProcessFile)
	if err != nil {
		return fmt.Errorf("error processing files: %w", err)
	}

	if err := printIssues(out, issues, jsonOutput, outPath); err != nil {
		return err
	}

	for _, issue := range issues {
		if issue.Severity == tt.SeverityError {
			return errIssuesFound
		}
	}
	return nil
}

func groupByFile(issues []tt.Issue) (map[string][]tt.Issue, []string) {
	issuesByFile := make(map[string][]tt.Issue)
	for _, issue := range issues {
		issuesByFile[issue.Filename] = append(issuesByFile[issue.Filename], issue)
	}

	sortedFiles := make([]string, 0, len(issuesByFile))
	for filename := range issuesByFile {
		sortedFiles = append(sortedFiles, filename)
	}
	sort.Strings(sortedFiles)
	return issuesByFile, sortedFiles
}

func printIssues(out io.Writer, issues []tt.Issue, isJSON bool, jsonPath string) error {
	issuesByFile, sortedFiles := groupByFile(issues)

	if !isJSON {
		for _, filename := range sortedFiles {
			var sourceCode *internal.SourceCode
			if filename != "" {
				var err error
				sourceCode, err = internal.ReadSourceCode(filename)
				if err != nil {
					logger.Error("Error reading source file", zap.String("file", filename), zap.Error(err))
				}
			}
			fmt.Fprint(out, formatter.GenerateFormattedIssue(issuesByFile[filename], sourceCode))
		}
		return nil
	}

	d, err := json.Marshal(issuesByFile)
	if err != nil {
		return fmt.Errorf("error marshalling issues to JSON: %w", err)
	}
	if jsonPath == "" {
		fmt.Fprintln(out, string(d))
		return nil
	}
	if err := os.WriteFile(jsonPath, d, 0o644); err != nil {
		return fmt.Errorf("error writing JSON output file: %w", err)
	}
	return nil
}
