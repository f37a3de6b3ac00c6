// Package formatter renders issues the way compilers do: a colored header,
// the offending source line and a marker under the reported column.
package formatter

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"unicode"

	"github.com/fatih/color"

	"github.com/ludeme/ludx/internal"
	tt "github.com/ludeme/ludx/internal/types"
)

const tabWidth = 8

// sourceName stands in for the file name of an in-memory description.
const sourceName = "<source>"

var (
	errorStyle      = color.New(color.FgRed, color.Bold)
	warningStyle    = color.New(color.FgHiYellow, color.Bold)
	infoStyle       = color.New(color.FgHiCyan, color.Bold)
	ruleStyle       = color.New(color.FgYellow, color.Bold)
	fileStyle       = color.New(color.FgCyan, color.Bold)
	lineStyle       = color.New(color.FgHiBlue, color.Bold)
	messageStyle    = color.New(color.FgRed, color.Bold)
	suggestionStyle = color.New(color.FgGreen, color.Bold)
)

// issueFormatter is the interface that wraps the IssueTemplate method.
type issueFormatter interface {
	IssueTemplate() string
}

// getIssueFormatter returns the formatter for an issue. Issues without a
// source position, such as those found in the expanded text, have no
// snippet to show.
func getIssueFormatter(issue tt.Issue) issueFormatter {
	if issue.Start.Line <= 0 {
		return &UnpositionedIssueFormatter{}
	}
	return &GeneralIssueFormatter{}
}

// GenerateFormattedIssue formats a slice of issues into a human-readable string.
// A nil snippet is treated as an empty file.
func GenerateFormattedIssue(issues []tt.Issue, snippet *internal.SourceCode) string {
	if snippet == nil {
		snippet = &internal.SourceCode{}
	}
	var builder strings.Builder
	for _, issue := range issues {
		builder.WriteString(buildIssue(issue, snippet, getIssueFormatter(issue)))
	}
	return builder.String()
}

/***** Issue Formatter Builder *****/

type IssueData struct {
	Severity        string
	Rule            string
	Filename        string
	Padding         string
	StartLine       int
	StartColumn     int
	EndLine         int
	EndColumn       int
	MaxLineNumWidth int
	Message         string
	Suggestion      string
	Note            string
	SnippetLines    []string
	CommonIndent    string
}

var funcMap = template.FuncMap{
	"header":              header,
	"location":            location,
	"suggestion":          suggestion,
	"note":                note,
	"snippet":             codeSnippet,
	"underlineAndMessage": underlineAndMessage,
	"message":             message,
}

func buildIssue(issue tt.Issue, snippet *internal.SourceCode, formatter issueFormatter) string {
	startLine := issue.Start.Line
	endLine := issue.End.Line
	if endLine < startLine {
		endLine = startLine
	}
	maxLineNumWidth := calculateMaxLineNumWidth(endLine)
	padding := strings.Repeat(" ", maxLineNumWidth+1)

	var commonIndent string
	if isValidLineRange(startLine, endLine, snippet.Lines) {
		commonIndent = findCommonIndent(snippet.Lines[startLine-1 : endLine])
	}

	filename := issue.Filename
	if filename == "" {
		filename = sourceName
	}

	data := IssueData{
		Severity:        issue.Severity.String(),
		Rule:            issue.Rule,
		Filename:        filename,
		StartLine:       startLine,
		StartColumn:     issue.Start.Column,
		EndLine:         endLine,
		EndColumn:       issue.End.Column,
		Message:         issue.Message,
		Suggestion:      issue.Suggestion,
		Note:            issue.Note,
		MaxLineNumWidth: maxLineNumWidth,
		Padding:         padding,
		CommonIndent:    commonIndent,
		SnippetLines:    snippet.Lines,
	}

	tmpl := template.Must(template.New("issue").Funcs(funcMap).Parse(formatter.IssueTemplate()))

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Error formatting issue: %v", err)
	}
	return buf.String()
}

// utils functions used in the text templates

func severityLabel(severity string) string {
	switch severity {
	case "ERROR":
		return errorStyle.Sprintf("error: ")
	case "WARNING":
		return warningStyle.Sprintf("warning: ")
	case "INFO":
		return infoStyle.Sprintf("info: ")
	}
	return ""
}

func header(rule string, severity string, maxLineNumWidth int, filename string, startLine int, startColumn int) string {
	endString := severityLabel(severity)
	endString += ruleStyle.Sprintf("%s\n", rule)

	padding := strings.Repeat(" ", maxLineNumWidth)
	endString += lineStyle.Sprintf("%s--> ", padding)
	endString += fileStyle.Sprintf("%s:%d:%d", filename, startLine, startColumn)

	return endString
}

// location is the header of an issue without a line.
func location(rule string, severity string, filename string) string {
	endString := severityLabel(severity)
	endString += ruleStyle.Sprintf("%s\n", rule)
	endString += lineStyle.Sprint(" --> ")
	endString += fileStyle.Sprint(filename)
	return endString
}

func codeSnippet(snippetLines []string, startLine int, endLine int, maxLineNumWidth int, commonIndent string, padding string) string {
	endString := lineStyle.Sprintf("%s|\n", padding)

	for i := startLine; i <= endLine; i++ {
		if i-1 < 0 || i-1 >= len(snippetLines) {
			continue
		}

		line := strings.TrimPrefix(snippetLines[i-1], commonIndent)
		lineNum := fmt.Sprintf("%*d", maxLineNumWidth, i)

		endString += lineStyle.Sprintf("%s | ", lineNum) + line + "\n"
	}

	return endString
}

func underlineAndMessage(message string, padding string, startLine int, endLine int, startColumn int, endColumn int, snippetLines []string, commonIndent string) string {
	endString := lineStyle.Sprintf("%s| ", padding)

	if !isValidLineRange(startLine, endLine, snippetLines) {
		endString += messageStyle.Sprintf("%s\n", message)
		return endString
	}

	commonIndentWidth := calculateVisualColumn(commonIndent, len(commonIndent)+1)

	// calculate underline start position
	underlineStart := calculateVisualColumn(snippetLines[startLine-1], startColumn) - commonIndentWidth
	if underlineStart < 0 {
		underlineStart = 0
	}

	// calculate underline end position
	underlineEnd := calculateVisualColumn(snippetLines[endLine-1], endColumn) - commonIndentWidth
	underlineLength := underlineEnd - underlineStart + 1
	if underlineLength < 1 {
		underlineLength = 1
	}

	endString += strings.Repeat(" ", underlineStart)
	endString += messageStyle.Sprintf("%s\n", strings.Repeat("~", underlineLength))

	endString += lineStyle.Sprintf("%s= ", padding)
	endString += messageStyle.Sprintf("%s\n", message)

	return endString
}

func message(padding string, message string) string {
	return lineStyle.Sprintf("%s= ", padding) + messageStyle.Sprintf("%s\n", message)
}

func suggestion(suggestion string, padding string) string {
	if suggestion == "" {
		return ""
	}
	return lineStyle.Sprintf("%s= ", padding) + suggestionStyle.Sprint("help: ") + suggestion + "\n"
}

func note(note string) string {
	if note == "" {
		return ""
	}
	return suggestionStyle.Sprint("Note: ") + lineStyle.Sprintf("%s\n", note)
}

func isValidLineRange(startLine int, endLine int, snippetLines []string) bool {
	return startLine > 0 &&
		endLine > 0 &&
		startLine <= endLine &&
		startLine <= len(snippetLines) &&
		endLine <= len(snippetLines)
}

func calculateMaxLineNumWidth(endLine int) int {
	return len(fmt.Sprintf("%d", endLine))
}

// calculateVisualColumn calculates the visual column position
// in a string. taking into account tab characters.
func calculateVisualColumn(line string, column int) int {
	if column < 0 {
		return 0
	}
	visualColumn := 0
	for i, ch := range line {
		if i+1 == column {
			break
		}
		if ch == '\t' {
			visualColumn += tabWidth - (visualColumn % tabWidth)
		} else {
			visualColumn++
		}
	}
	return visualColumn
}

// findCommonIndent finds the common indent in the code snippet.
func findCommonIndent(lines []string) string {
	if len(lines) == 0 {
		return ""
	}

	// find first non-empty line's indent
	firstIndent := make([]rune, 0)
	for _, line := range lines {
		trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
		if trimmed != "" {
			firstIndent = []rune(line[:len(line)-len(trimmed)])
			break
		}
	}

	if len(firstIndent) == 0 {
		return ""
	}

	// search common indent for all non-empty lines
	for _, line := range lines {
		trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
		if trimmed == "" {
			continue
		}

		currentIndent := []rune(line[:len(line)-len(trimmed)])
		firstIndent = commonPrefix(firstIndent, currentIndent)

		if len(firstIndent) == 0 {
			break
		}
	}

	return string(firstIndent)
}

// commonPrefix finds the common prefix of two strings.
func commonPrefix(a, b []rune) []rune {
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:minLen]
}
