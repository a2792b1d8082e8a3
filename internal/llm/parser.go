package llm

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ppiankov/legiswatch/internal/model"
)

type summaryField int

const (
	fieldNone summaryField = iota
	fieldSummary
	fieldDeadline
	fieldAction
	fieldSeverity
)

// fieldAliases maps normalized keys (lowercase, no separators) onto fields
var fieldAliases = map[string]summaryField{
	"summary":            fieldSummary,
	"synopsis":           fieldSummary,
	"overview":           fieldSummary,
	"description":        fieldSummary,
	"deadline":           fieldDeadline,
	"compliancedeadline": fieldDeadline,
	"duedate":            fieldDeadline,
	"effectivedate":      fieldDeadline,
	"date":               fieldDeadline,
	"actionrequired":     fieldAction,
	"requiredaction":     fieldAction,
	"requiredactions":    fieldAction,
	"actionsrequired":    fieldAction,
	"action":             fieldAction,
	"actions":            fieldAction,
	"recommendedaction":  fieldAction,
	"severity":           fieldSeverity,
	"severitylevel":      fieldSeverity,
	"priority":           fieldSeverity,
	"risklevel":          fieldSeverity,
	"urgency":            fieldSeverity,
}

var canonicalKeys = map[string]bool{
	"summary":        true,
	"deadline":       true,
	"actionrequired": true,
	"severity":       true,
}

var (
	codeFence   = regexp.MustCompile("(?m)^\\s*```[a-zA-Z]*\\s*$")
	isoDate     = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	monthDate   = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+(\d{1,2}),?\s+(\d{4})\b`)
	slashDate   = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})/(\d{4})\b`)
	lineBullets = "-*#>• \t"
)

var deadlineLayouts = []string{
	model.DateLayout,
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"1/2/2006",
	"January 2, 2006",
	"January 2 2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// ParseSummary extracts a SummaryResult from raw model output. It accepts a
// JSON object (optionally fenced or surrounded by prose) and falls back to
// "key: value" lines. Fields the model omitted are set to model.Unspecified.
// Output with no recognizable field is an ErrSummarization.
func ParseSummary(raw string) (model.SummaryResult, error) {
	text := codeFence.ReplaceAllString(raw, "")

	fields, ok := parseJSONFields(text)
	if !ok || len(fields) == 0 {
		fields = parseLineFields(text)
	}
	if len(fields) == 0 {
		return model.SummaryResult{}, fmt.Errorf("%w: no summary fields in model output %q", model.ErrSummarization, preview(raw))
	}

	return model.SummaryResult{
		Summary:        orUnspecified(fields[fieldSummary]),
		Deadline:       NormalizeDeadline(fields[fieldDeadline]),
		ActionRequired: orUnspecified(fields[fieldAction]),
		Severity:       model.ParseSeverity(fields[fieldSeverity]),
	}, nil
}

// parseJSONFields decodes the outermost JSON object in text
func parseJSONFields(text string) (map[summaryField]string, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(text[start:end+1]), &obj); err != nil {
		return nil, false
	}

	fields := make(map[summaryField]string)
	collectFields(obj, fields)

	// Some models nest the answer one level down, e.g. {"alert": {...}} or
	// {"summary": {"text": ..., "severity": ...}}. Top-level values win.
	for _, k := range orderedKeys(obj) {
		if inner, ok := obj[k].(map[string]any); ok {
			collectFields(inner, fields)
		}
	}
	return fields, true
}

// collectFields adds the aliased keys of obj to fields, keeping values
// already present
func collectFields(obj map[string]any, fields map[summaryField]string) {
	for _, k := range orderedKeys(obj) {
		f := fieldAliases[normalizeKey(k)]
		if f == fieldNone {
			continue
		}
		if _, seen := fields[f]; seen {
			continue
		}

		value := obj[k]
		if inner, ok := value.(map[string]any); ok {
			value = innerText(inner)
		}
		if s := stringify(value); s != "" {
			fields[f] = s
		}
	}
}

// orderedKeys puts canonical keys first, then the rest in sorted order
func orderedKeys(obj map[string]any) []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		ci, cj := canonicalKeys[normalizeKey(keys[i])], canonicalKeys[normalizeKey(keys[j])]
		if ci != cj {
			return ci
		}
		return keys[i] < keys[j]
	})
	return keys
}

// innerText is the prose of an object standing in for a field value
func innerText(obj map[string]any) any {
	for _, k := range []string{"text", "value", "content"} {
		if v, ok := obj[k]; ok {
			return v
		}
	}
	return nil
}

// parseLineFields reads "key: value" lines, e.g. "**Severity:** High"
func parseLineFields(text string) map[summaryField]string {
	fields := make(map[summaryField]string)

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimLeft(line, lineBullets)
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}

		f := fieldAliases[normalizeKey(key)]
		if f == fieldNone {
			continue
		}
		if _, seen := fields[f]; seen {
			continue
		}
		fields[f] = cleanValue(value)
	}
	return fields
}

func normalizeKey(k string) string {
	k = strings.ToLower(strings.Trim(k, " \t*_\"'`"))
	return strings.NewReplacer("_", "", "-", "", " ", "").Replace(k)
}

func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	v = strings.Trim(v, "*_")
	v = strings.TrimSpace(v)
	return strings.Trim(v, `",`)
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if s := stringify(item); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, "; ")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func orUnspecified(s string) string {
	if isEmptyValue(s) {
		return model.Unspecified
	}
	return s
}

func isEmptyValue(s string) bool {
	switch strings.ToLower(strings.Trim(strings.TrimSpace(s), ".")) {
	case "", model.Unspecified, "none", "null", "n/a", "na", "not specified", "unknown", "tbd":
		return true
	}
	return false
}

// NormalizeDeadline renders a model-supplied deadline as YYYY-MM-DD, or
// model.Unspecified when no date can be recovered
func NormalizeDeadline(s string) string {
	s = strings.TrimSpace(s)
	if isEmptyValue(s) {
		return model.Unspecified
	}

	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(model.DateLayout)
		}
	}

	// Dates embedded in prose, e.g. "by July 1, 2026"
	if m := isoDate.FindString(s); m != "" {
		if t, err := time.Parse("2006-1-2", m); err == nil {
			return t.Format(model.DateLayout)
		}
	}
	if m := monthDate.FindStringSubmatch(s); m != nil {
		month := strings.ToUpper(m[1][:1]) + strings.ToLower(m[1][1:3])
		if t, err := time.Parse("Jan 2 2006", month+" "+m[2]+" "+m[3]); err == nil {
			return t.Format(model.DateLayout)
		}
	}
	if m := slashDate.FindString(s); m != "" {
		if t, err := time.Parse("1/2/2006", m); err == nil {
			return t.Format(model.DateLayout)
		}
	}

	return model.Unspecified
}

func preview(s string) string {
	s = strings.TrimSpace(s)
	if len([]rune(s)) > 120 {
		return string([]rune(s)[:120]) + "..."
	}
	return s
}
