package formatter

// UnpositionedIssueFormatter formats issues that carry no line, which is
// the case for everything found after expansion.
type UnpositionedIssueFormatter struct{}

func (f *UnpositionedIssueFormatter) IssueTemplate() string {
	return `{{location .Rule .Severity .Filename}}
{{message "  " .Message}}
{{- suggestion .Suggestion "  "}}
{{- note .Note}}
`
}
