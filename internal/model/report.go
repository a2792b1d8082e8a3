package model

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// RunStatus describes how a run ended
type RunStatus string

const (
	RunComplete RunStatus = "complete" // Every fetched bill was processed
	RunPartial  RunStatus = "partial"  // Cancelled before every bill was processed
	RunFailed   RunStatus = "failed"   // Fatal fetch-stage error
)

// RunReport summarizes one execution of the daily pipeline
type RunReport struct {
	RunID      string    `json:"run_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Status     RunStatus `json:"status"`
	FinalState string    `json:"final_state"` // Pipeline state at exit (Done or Failed)
	Since      string    `json:"since"`       // Lookback window start (YYYY-MM-DD)
	Keywords   []string  `json:"keywords"`

	Fetched     int `json:"fetched"`     // Bills returned by the fetcher
	Succeeded   int `json:"succeeded"`   // Alerts emitted
	Failed      int `json:"failed"`      // Bills that failed any per-bill stage
	Skipped     int `json:"skipped"`     // Bills suppressed as already alerted
	Unprocessed int `json:"unprocessed"` // Bills never reached because of cancellation

	Failures   []BillFailure    `json:"failures,omitempty"`
	Severities map[Severity]int `json:"severities,omitempty"`
	Error      string           `json:"error,omitempty"` // Fatal error, when Status is failed
}

// BillFailure records why one bill produced no alert
type BillFailure struct {
	BillKey string `json:"bill_key"`
	Stage   string `json:"stage"`  // summarize, build, emit
	Reason  string `json:"reason"` // Stable label, see Reason
	Error   string `json:"error"`
}

// AddFailure appends a per-bill failure
func (r *RunReport) AddFailure(billKey, stage string, err error) {
	r.Failed++
	r.Failures = append(r.Failures, BillFailure{
		BillKey: billKey,
		Stage:   stage,
		Reason:  Reason(err),
		Error:   err.Error(),
	})
}

// CountSeverity increments the histogram for an emitted alert
func (r *RunReport) CountSeverity(s Severity) {
	if r.Severities == nil {
		r.Severities = make(map[Severity]int)
	}
	r.Severities[s]++
}

// FailureReasons returns failure counts keyed by reason label
func (r *RunReport) FailureReasons() map[string]int {
	out := make(map[string]int)
	for _, f := range r.Failures {
		out[f.Reason]++
	}
	return out
}

// SummaryLine renders the one-line run summary that is always printed, so
// operators can tell "no bills matched" from "all summarizations failed"
func (r *RunReport) SummaryLine() string {
	line := fmt.Sprintf("run %s %s: fetched=%d alerts=%d failed=%d skipped=%d",
		r.RunID, r.Status, r.Fetched, r.Succeeded, r.Failed, r.Skipped)
	if r.Unprocessed > 0 {
		line += fmt.Sprintf(" unprocessed=%d", r.Unprocessed)
	}

	if reasons := r.FailureReasons(); len(reasons) > 0 {
		keys := make([]string, 0, len(reasons))
		for k := range reasons {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			parts = append(parts, fmt.Sprintf("%s:%d", k, reasons[k]))
		}
		line += " reasons=" + strings.Join(parts, ",")
	}

	if r.Fetched == 0 && r.Status != RunFailed {
		line += " (no bills matched)"
	}
	if r.Error != "" {
		line += " error=" + r.Error
	}
	return line
}
