package types

import (
	"fmt"
	"go/token"
	"strings"
)

// Severity is the level of an issue.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
	SeverityInfo
	SeverityOff
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "ERROR"
	case SeverityWarning:
		return "WARNING"
	case SeverityInfo:
		return "INFO"
	case SeverityOff:
		return "OFF"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity converts a config value ("error", "warning", "info", "off")
// into a Severity.
func ParseSeverity(s string) (Severity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "error":
		return SeverityError, nil
	case "warning", "warn":
		return SeverityWarning, nil
	case "info":
		return SeverityInfo, nil
	case "off":
		return SeverityOff, nil
	}
	return SeverityError, fmt.Errorf("unknown severity %q", s)
}

func (s Severity) MarshalYAML() (interface{}, error) {
	return strings.ToLower(s.String()), nil
}

func (s *Severity) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}
	v, err := ParseSeverity(raw)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Issue represents a problem found while expanding or validating a description.
type Issue struct {
	Rule       string
	Category   string
	Filename   string
	Message    string
	Suggestion string
	Note       string
	Start      token.Position
	End        token.Position
	Severity   Severity
}

// ConfigRule represents a rule configuration.
type ConfigRule struct {
	Severity Severity `yaml:"severity"`
}
