// Package record defines the canonical CheckRecord and normalizes the
// differently-shaped checklist exports it is loaded from.
package record

import (
	"errors"
	"strings"
)

// Severity is the normalized finding severity of a check.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// ErrNoIdentity is returned when a record carries none of vuln_id, stig_id
// or rule_id.
var ErrNoIdentity = errors.New("record has no vuln_id, stig_id or rule_id")

// CheckRecord is a single compliance check. It is immutable once loaded.
type CheckRecord struct {
	VulnID       string   `json:"vuln_id" yaml:"vuln_id"`
	StigID       string   `json:"stig_id" yaml:"stig_id"`
	RuleID       string   `json:"rule_id" yaml:"rule_id"`
	Severity     Severity `json:"severity" yaml:"severity"`
	RuleTitle    string   `json:"rule_title" yaml:"rule_title"`
	CheckContent string   `json:"check_content" yaml:"check_content"`
	Discussion   string   `json:"discussion" yaml:"discussion"`
	FixText      string   `json:"fix_text" yaml:"fix_text"`
	Benchmark    string   `json:"benchmark" yaml:"benchmark"`
}

// ID returns the most specific identifier available, preferring the STIG ID.
func (r CheckRecord) ID() string {
	switch {
	case r.StigID != "":
		return r.StigID
	case r.VulnID != "":
		return r.VulnID
	default:
		return r.RuleID
	}
}

// Text is the text the classifier and extractor read: the check content,
// falling back to the rule title when the content is empty.
func (r CheckRecord) Text() string {
	if strings.TrimSpace(r.CheckContent) != "" {
		return r.CheckContent
	}
	return r.RuleTitle
}

// ParseSeverity maps the spellings found in checklist exports onto Severity.
// Unknown values default to medium.
func ParseSeverity(raw string) Severity {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimPrefix(s, "cat ")
	s = strings.TrimPrefix(s, "category ")
	switch s {
	case "high", "i", "1", "critical":
		return SeverityHigh
	case "low", "iii", "3", "info", "informational":
		return SeverityLow
	default:
		return SeverityMedium
	}
}
