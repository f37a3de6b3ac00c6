package types

import (
	"errors"
	"fmt"
	"go/token"
	"strings"
)

// Diagnostic is the error returned by a pipeline stage. Offset is a byte
// offset into the raw description, or -1 when the failing text no longer
// maps back onto it.
type Diagnostic struct {
	Rule   string
	Offset int
	Err    error
}

// NewDiagnostic wraps err as a stage failure of the given rule.
func NewDiagnostic(rule string, offset int, err error) *Diagnostic {
	return &Diagnostic{Rule: rule, Offset: offset, Err: err}
}

// Diagnosef builds a diagnostic with no source offset.
func Diagnosef(rule string, format string, args ...any) *Diagnostic {
	return &Diagnostic{Rule: rule, Offset: -1, Err: fmt.Errorf(format, args...)}
}

func (d *Diagnostic) Error() string { return d.Err.Error() }
func (d *Diagnostic) Unwrap() error { return d.Err }

// Report accumulates the log lines, warnings and errors of one expansion
// and validation run. It is owned by a single run and is not safe for
// concurrent use.
type Report struct {
	filename string
	lines    []int // start offset of each raw source line

	logs   []string
	issues []Issue
	errors int
}

// NewReport returns an empty report.
func NewReport() *Report {
	return &Report{}
}

// SetSource records the raw description so that diagnostics carrying an
// offset can be positioned.
func (r *Report) SetSource(filename string, raw string) {
	r.filename = filename
	r.lines = r.lines[:0]
	r.lines = append(r.lines, 0)
	for i := 0; i < len(raw); i++ {
		if raw[i] == '\n' {
			r.lines = append(r.lines, i+1)
		}
	}
}

// Filename returns the name given to SetSource.
func (r *Report) Filename() string { return r.filename }

func (r *Report) AddLog(format string, args ...any) {
	r.logs = append(r.logs, fmt.Sprintf(format, args...))
}

func (r *Report) AddWarning(rule string, format string, args ...any) {
	r.add(rule, SeverityWarning, -1, fmt.Sprintf(format, args...))
}

func (r *Report) AddError(rule string, format string, args ...any) {
	r.add(rule, SeverityError, -1, fmt.Sprintf(format, args...))
}

// AddIssue appends an already built issue.
func (r *Report) AddIssue(issue Issue) {
	if issue.Severity == SeverityError {
		r.errors++
	}
	r.issues = append(r.issues, issue)
}

// Fail records err as an error. Diagnostics keep their rule and offset;
// anything else is filed under the given fallback rule.
func (r *Report) Fail(rule string, err error) {
	if err == nil {
		return
	}
	var d *Diagnostic
	if errors.As(err, &d) {
		r.add(d.Rule, SeverityError, d.Offset, d.Error())
		return
	}
	r.add(rule, SeverityError, -1, err.Error())
}

func (r *Report) add(rule string, severity Severity, offset int, msg string) {
	issue := Issue{
		Rule:     rule,
		Filename: r.filename,
		Message:  msg,
		Severity: severity,
	}
	if offset >= 0 && len(r.lines) > 0 {
		issue.Start = r.position(offset)
		issue.End = issue.Start
	}
	r.AddIssue(issue)
}

func (r *Report) position(offset int) token.Position {
	line := 0
	for i, start := range r.lines {
		if start > offset {
			break
		}
		line = i
	}
	return token.Position{
		Filename: r.filename,
		Offset:   offset,
		Line:     line + 1,
		Column:   offset - r.lines[line] + 1,
	}
}

// IsError reports whether any error has been recorded.
func (r *Report) IsError() bool { return r.errors > 0 }

func (r *Report) Logs() []string { return r.logs }

// Issues returns errors and warnings in the order they were recorded.
func (r *Report) Issues() []Issue { return r.issues }

func (r *Report) Errors() []Issue { return r.filter(SeverityError) }

func (r *Report) Warnings() []Issue { return r.filter(SeverityWarning) }

func (r *Report) filter(severity Severity) []Issue {
	var out []Issue
	for _, issue := range r.issues {
		if issue.Severity == severity {
			out = append(out, issue)
		}
	}
	return out
}

// String renders the report as plain text, one entry per line.
func (r *Report) String() string {
	var sb strings.Builder
	for _, issue := range r.issues {
		fmt.Fprintf(&sb, "%s: %s: %s\n", strings.ToLower(issue.Severity.String()), issue.Rule, issue.Message)
	}
	return sb.String()
}
