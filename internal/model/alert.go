package model

import "time"

// ComplianceAlert is the terminal artifact of a run: one bill plus its summary
type ComplianceAlert struct {
	AlertID        string    `json:"alert_id"` // Stable across runs for unchanged bill content
	BillKey        string    `json:"bill_key"`
	BillID         string    `json:"bill_id"`
	Jurisdiction   string    `json:"jurisdiction"`
	Identifier     string    `json:"identifier"`
	Title          string    `json:"title"`
	SourceURL      string    `json:"source_url,omitempty"`
	LastActionDate string    `json:"last_action_date"`
	Summary        string    `json:"summary"`
	Deadline       string    `json:"deadline"`
	ActionRequired string    `json:"action_required"`
	Severity       Severity  `json:"severity"`
	ContentHash    string    `json:"content_hash"`
	GeneratedAt    time.Time `json:"generated_at"`
}
