package model

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestBillRecord_Key(t *testing.T) {
	tests := []struct {
		bill BillRecord
		want string
	}{
		{BillRecord{Jurisdiction: "CA", Identifier: "HB 1"}, "CA-HB1"},
		{BillRecord{Jurisdiction: " AL ", Identifier: "SB  202"}, "AL-SB202"},
		{BillRecord{Identifier: "AB 5"}, "AB5"},
	}

	for _, tt := range tests {
		if got := tt.bill.Key(); got != tt.want {
			t.Errorf("Key() = %q, want %q", got, tt.want)
		}
	}
}

func TestBillRecord_WithTextCopies(t *testing.T) {
	original := BillRecord{Identifier: "HB 1", Text: "abstract"}
	enriched := original.WithText("full text")

	if original.Text != "abstract" {
		t.Errorf("original mutated: %q", original.Text)
	}
	if enriched.Text != "full text" {
		t.Errorf("expected enriched text, got %q", enriched.Text)
	}
	if original.ContentHash() == enriched.ContentHash() {
		t.Error("expected content hash to change with text")
	}
}

func TestParseDate(t *testing.T) {
	for _, in := range []string{"2024-03-05", "2024-03-05T10:11:12+00:00", " 2024-03-05 "} {
		got, err := ParseDate(in)
		if err != nil {
			t.Fatalf("ParseDate(%q) failed: %v", in, err)
		}
		if got.Format(DateLayout) != "2024-03-05" {
			t.Errorf("ParseDate(%q) = %v", in, got)
		}
	}

	if _, err := ParseDate("yesterday"); err == nil {
		t.Error("expected error for non-date input")
	}
}

func TestParseSeverity(t *testing.T) {
	tests := map[string]Severity{
		"High":        SeverityHigh,
		"CRITICAL":    SeverityCritical,
		"med":         SeverityMedium,
		"Moderate":    SeverityMedium,
		"low.":        SeverityLow,
		"**high**":    SeverityHigh,
		"":            SeverityUnspecified,
		"Unknown":     SeverityUnspecified,
		"unspecified": SeverityUnspecified,
	}

	for in, want := range tests {
		if got := ParseSeverity(in); got != want {
			t.Errorf("ParseSeverity(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSummaryResult_DeadlineDate(t *testing.T) {
	s := SummaryResult{Deadline: "2024-01-01"}
	d, ok := s.DeadlineDate()
	if !ok || d.Year() != 2024 {
		t.Errorf("expected 2024-01-01, got %v %v", d, ok)
	}

	if _, ok := (SummaryResult{Deadline: Unspecified}).DeadlineDate(); ok {
		t.Error("expected sentinel deadline to have no date")
	}
}

func TestSummaryResult_Complete(t *testing.T) {
	full := SummaryResult{Summary: "s", Deadline: Unspecified, ActionRequired: "a", Severity: SeverityLow}
	if !full.Complete() {
		t.Error("expected complete summary")
	}

	missing := full
	missing.ActionRequired = " "
	if missing.Complete() {
		t.Error("expected blank action to be incomplete")
	}

	bad := full
	bad.Severity = "spicy"
	if bad.Complete() {
		t.Error("expected invalid severity to be incomplete")
	}
}

func TestIsFatalAndReason(t *testing.T) {
	fatal := fmt.Errorf("%w: status 401", ErrAuth)
	if !IsFatal(fatal) {
		t.Error("expected auth error to be fatal")
	}
	if IsFatal(fmt.Errorf("%w: bad json", ErrSummarization)) {
		t.Error("expected summarization error to be non-fatal")
	}

	if got := Reason(fmt.Errorf("%w: deadline", ErrModelTimeout)); got != "model_timeout" {
		t.Errorf("unexpected reason %q", got)
	}
	if got := Reason(errors.New("boom")); got != "other" {
		t.Errorf("unexpected reason %q", got)
	}
}

func TestRunReport_SummaryLine(t *testing.T) {
	r := &RunReport{RunID: "r1", Status: RunComplete, Fetched: 5, Succeeded: 4}
	r.AddFailure("CA-HB3", "summarize", fmt.Errorf("%w: malformed", ErrSummarization))

	line := r.SummaryLine()
	for _, want := range []string{"fetched=5", "alerts=4", "failed=1", "reasons=summarization:1"} {
		if !strings.Contains(line, want) {
			t.Errorf("summary line %q missing %q", line, want)
		}
	}

	empty := &RunReport{RunID: "r2", Status: RunComplete}
	if !strings.Contains(empty.SummaryLine(), "no bills matched") {
		t.Errorf("expected empty run to say no bills matched: %q", empty.SummaryLine())
	}
}

func TestConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected missing keys to fail validation")
	}
	if !errors.Is(err, ErrAuth) {
		t.Errorf("expected ErrAuth in %v", err)
	}

	cfg.OpenStates.APIKey = "os-key"
	cfg.LLM.APIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	cfg.Pipeline.Keywords = []string{" ", ""}
	if err := cfg.Validate(); !errors.Is(err, ErrValidation) {
		t.Errorf("expected ErrValidation for blank keywords, got %v", err)
	}
}

func TestConfig_LocalEndpointNeedsNoKey(t *testing.T) {
	cfg := DefaultConfig()
	cfg.OpenStates.APIKey = "os-key"
	cfg.LLM.BaseURL = "http://10.0.0.5:8000/v1"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected local endpoint without key to validate, got %v", err)
	}
}

func TestConfig_Since(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Pipeline.LookbackDays = 7
	now := time.Date(2024, 1, 10, 15, 30, 0, 0, time.UTC)
	if got := cfg.Since(now).Format(DateLayout); got != "2024-01-03" {
		t.Errorf("Since = %s, want 2024-01-03", got)
	}
}
