package model

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for bill and deadline dates
const DateLayout = "2006-01-02"

// BillRecord is a normalized bill as returned by the legislative-data API.
// Records are values: enrichment (e.g. replacing the abstract with the
// source document text) returns a modified copy.
type BillRecord struct {
	ID             string    `json:"id"`                   // Provider node id
	Jurisdiction   string    `json:"jurisdiction"`         // e.g. "California"
	Identifier     string    `json:"identifier"`           // Bill number, e.g. "HB 1"
	Title          string    `json:"title"`
	Text           string    `json:"text,omitempty"`       // Full text, or the abstract when no document was fetched
	LastActionDate time.Time `json:"last_action_date"`
	SourceURL      string    `json:"source_url,omitempty"` // First official source
	OpenStatesURL  string    `json:"openstates_url,omitempty"`
}

// Key returns the per-run unique identity of the bill (jurisdiction + number)
func (b BillRecord) Key() string {
	jurisdiction := strings.TrimSpace(b.Jurisdiction)
	identifier := strings.Join(strings.Fields(b.Identifier), "")
	if jurisdiction == "" {
		return identifier
	}
	return jurisdiction + "-" + identifier
}

// ContentHash returns the hex SHA-256 of the bill text
func (b BillRecord) ContentHash() string {
	sum := sha256.Sum256([]byte(b.Text))
	return hex.EncodeToString(sum[:])
}

// WithText returns a copy of the record carrying the given text
func (b BillRecord) WithText(text string) BillRecord {
	b.Text = text
	return b
}

// ParseDate parses the date prefix of an API timestamp ("2024-01-02" or
// "2024-01-02T15:04:05+00:00") as a UTC calendar date
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	return time.Parse(DateLayout, s)
}

// Day truncates t to its UTC calendar date
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
