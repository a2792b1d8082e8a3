package llm

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/ppiankov/legiswatch/internal/model"
)

// DefaultMaxTextChars is the bill text budget embedded in one prompt
const DefaultMaxTextChars = 8000

// PromptVersion is part of the summary cache key; bump it whenever
// SystemPrompt or BuildPrompt change
const PromptVersion = "1"

// SystemPrompt frames every summarization request
const SystemPrompt = "You are a regulatory analyst who summarizes legislation for a crypto compliance officer. " +
	"You answer with a single JSON object and nothing else."

// BuildPrompt constructs the fixed summarization prompt for one bill. text
// must already be truncated.
func BuildPrompt(bill model.BillRecord, text string) string {
	var b strings.Builder

	b.WriteString("Summarize the following legislative change for a crypto compliance officer.\n")
	b.WriteString("Return JSON with exactly these keys:\n")
	b.WriteString(`- "summary": two or three sentences on what the bill changes` + "\n")
	b.WriteString(`- "deadline": the compliance or effective date as YYYY-MM-DD, or "unspecified"` + "\n")
	b.WriteString(`- "action_required": what the compliance team must do, or "unspecified"` + "\n")
	b.WriteString(`- "severity": one of "low", "medium", "high", "critical"` + "\n")
	b.WriteString("Do not add other keys or commentary.\n\n")

	fmt.Fprintf(&b, "BILL: %s %s\n", bill.Jurisdiction, bill.Identifier)
	fmt.Fprintf(&b, "TITLE: %s\n", bill.Title)
	b.WriteString("TEXT:\n")
	b.WriteString(text)

	return b.String()
}

// Truncate head-truncates text to at most maxChars characters, never
// splitting a multi-byte rune. maxChars <= 0 disables truncation.
func Truncate(text string, maxChars int) string {
	if maxChars <= 0 || utf8.RuneCountInString(text) <= maxChars {
		return text
	}

	n := 0
	for i := range text {
		if n == maxChars {
			return text[:i]
		}
		n++
	}
	return text
}
