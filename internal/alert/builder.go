// Package alert turns a summarized bill into a compliance alert.
package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ppiankov/legiswatch/internal/model"
)

// namespace scopes alert IDs so they never collide with other UUIDv5 users
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/ppiankov/legiswatch/alerts"))

// ID returns the alert ID for a bill version. It depends only on the bill
// key and content hash, so an unchanged bill gets the same ID every run.
func ID(billKey, contentHash string) string {
	return uuid.NewSHA1(namespace, []byte(billKey+"\x00"+contentHash)).String()
}

// Build combines a bill and its summary into a ComplianceAlert. It performs
// no I/O: identical inputs, including now, yield identical alerts.
func Build(bill model.BillRecord, summary model.SummaryResult, now time.Time) (model.ComplianceAlert, error) {
	if err := validate(bill, summary); err != nil {
		return model.ComplianceAlert{}, err
	}

	key := bill.Key()
	hash := bill.ContentHash()

	var lastAction string
	if !bill.LastActionDate.IsZero() {
		lastAction = bill.LastActionDate.Format(model.DateLayout)
	}

	return model.ComplianceAlert{
		AlertID:        ID(key, hash),
		BillKey:        key,
		BillID:         bill.ID,
		Jurisdiction:   bill.Jurisdiction,
		Identifier:     bill.Identifier,
		Title:          strings.TrimSpace(bill.Title),
		SourceURL:      bill.SourceURL,
		LastActionDate: lastAction,
		Summary:        strings.TrimSpace(summary.Summary),
		Deadline:       strings.TrimSpace(summary.Deadline),
		ActionRequired: strings.TrimSpace(summary.ActionRequired),
		Severity:       summary.Severity,
		ContentHash:    hash,
		GeneratedAt:    now.UTC(),
	}, nil
}

func validate(bill model.BillRecord, summary model.SummaryResult) error {
	var missing []string
	if strings.TrimSpace(bill.Identifier) == "" {
		missing = append(missing, "bill identifier")
	}
	if strings.TrimSpace(bill.Title) == "" {
		missing = append(missing, "bill title")
	}
	if strings.TrimSpace(bill.Text) == "" {
		missing = append(missing, "bill text")
	}
	if strings.TrimSpace(summary.Summary) == "" {
		missing = append(missing, "summary")
	}
	if strings.TrimSpace(summary.Deadline) == "" {
		missing = append(missing, "deadline")
	}
	if strings.TrimSpace(summary.ActionRequired) == "" {
		missing = append(missing, "action required")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s: missing %s", model.ErrValidation, bill.Key(), strings.Join(missing, ", "))
	}

	if !summary.Severity.Valid() {
		return fmt.Errorf("%w: %s: invalid severity %q", model.ErrValidation, bill.Key(), summary.Severity)
	}
	if _, ok := summary.DeadlineDate(); !ok && summary.Deadline != model.Unspecified {
		return fmt.Errorf("%w: %s: deadline %q is not a date", model.ErrValidation, bill.Key(), summary.Deadline)
	}
	return nil
}
