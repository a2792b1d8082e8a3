package model

import (
	"strings"
	"time"
)

// Unspecified is the sentinel stored in any summary field the model omitted
const Unspecified = "unspecified"

// Severity classifies the urgency of a compliance alert
type Severity string

const (
	SeverityLow         Severity = "low"
	SeverityMedium      Severity = "medium"
	SeverityHigh        Severity = "high"
	SeverityCritical    Severity = "critical"
	SeverityUnspecified Severity = Unspecified
)

// Severities lists the enumerated severities from least to most urgent
var Severities = []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

// Valid reports whether s is an enumerated severity or the sentinel
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical, SeverityUnspecified:
		return true
	}
	return false
}

// ParseSeverity maps free-form model output onto a Severity.
// Unknown values map to SeverityUnspecified.
func ParseSeverity(s string) Severity {
	v := strings.ToLower(strings.TrimSpace(s))
	v = strings.Trim(v, ".*_\"'`")
	switch {
	case v == "":
		return SeverityUnspecified
	case strings.HasPrefix(v, "crit"), v == "urgent", v == "severe":
		return SeverityCritical
	case strings.HasPrefix(v, "high"):
		return SeverityHigh
	case strings.HasPrefix(v, "med"), v == "moderate":
		return SeverityMedium
	case strings.HasPrefix(v, "low"), v == "minor", v == "informational":
		return SeverityLow
	}
	return SeverityUnspecified
}

// SummaryResult is the structured summary the model produced for one bill.
// Every field is either a meaningful value or Unspecified.
type SummaryResult struct {
	Summary        string   `json:"summary"`
	Deadline       string   `json:"deadline"`        // YYYY-MM-DD or Unspecified
	ActionRequired string   `json:"action_required"`
	Severity       Severity `json:"severity"`
}

// DeadlineDate returns the parsed deadline, if one was extracted
func (s SummaryResult) DeadlineDate() (time.Time, bool) {
	if s.Deadline == "" || s.Deadline == Unspecified {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s.Deadline)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Complete reports whether every field is populated (value or sentinel)
func (s SummaryResult) Complete() bool {
	return strings.TrimSpace(s.Summary) != "" &&
		strings.TrimSpace(s.Deadline) != "" &&
		strings.TrimSpace(s.ActionRequired) != "" &&
		s.Severity.Valid()
}
