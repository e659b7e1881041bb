package types

import (
	"fmt"
	"go/token"
	"strings"
)

// Severity ranks an issue. SeverityOff disables the rule that produced it.
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

// MarshalText renders the severity in lower case for config and JSON output.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "error":
		*s = SeverityError
	case "warning", "warn":
		*s = SeverityWarning
	case "info":
		*s = SeverityInfo
	case "off":
		*s = SeverityOff
	default:
		return fmt.Errorf("unknown severity %q", text)
	}
	return nil
}

// ConfigRule is the per-rule entry of the configuration file.
type ConfigRule struct {
	Severity Severity `yaml:"severity" json:"severity"`
}

// Issue represents a finding reported by an analyzer.
type Issue struct {
	Rule       string
	Category   string
	Severity   Severity
	Filename   string
	Message    string
	Suggestion string
	Note       string
	Start      token.Position
	End        token.Position
}

// SourceCode stores the content of a source code file.
type SourceCode struct {
	Lines []string
}
