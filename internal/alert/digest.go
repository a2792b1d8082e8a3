package alert

import (
	"fmt"
	"slices"
	"strings"

	"github.com/ppiankov/legiswatch/internal/model"
)

// Digest renders a short human-readable overview of a run's alerts: counts
// per severity, then one line per high or critical alert with its required
// action
func Digest(alerts []model.ComplianceAlert) string {
	counts := make(map[model.Severity]int)
	for _, a := range alerts {
		counts[a.Severity]++
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Compliance alerts: %d\n", len(alerts))
	for _, s := range slices.Backward(model.Severities) {
		fmt.Fprintf(&b, "  %-8s %d\n", s, counts[s])
	}
	if n := counts[model.SeverityUnspecified]; n > 0 {
		fmt.Fprintf(&b, "  %-8s %d\n", "unrated", n)
	}

	var urgent []model.ComplianceAlert
	for _, a := range alerts {
		if a.Severity == model.SeverityCritical || a.Severity == model.SeverityHigh {
			urgent = append(urgent, a)
		}
	}
	if len(urgent) == 0 {
		return b.String()
	}

	slices.SortStableFunc(urgent, func(x, y model.ComplianceAlert) int {
		if x.Severity != y.Severity {
			if x.Severity == model.SeverityCritical {
				return -1
			}
			return 1
		}
		return strings.Compare(x.BillKey, y.BillKey)
	})

	b.WriteString("\nRequires attention:\n")
	for _, a := range urgent {
		action := a.ActionRequired
		if action == model.Unspecified {
			action = "Review required"
		}
		fmt.Fprintf(&b, "- [%s] %s %s: %s", a.Severity, a.BillKey, a.Title, action)
		if a.Deadline != model.Unspecified {
			fmt.Fprintf(&b, " (by %s)", a.Deadline)
		}
		b.WriteString("\n")
	}
	return b.String()
}
