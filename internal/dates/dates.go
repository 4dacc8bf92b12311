package dates

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ISOFormat is the canonical layout stored on CRM records and returned to
// callers: local wall-clock time in the service zone, no offset suffix.
const ISOFormat = "2006-01-02T15:04:05"

// isoLayouts are tried before falling back to loose parsing.
var isoLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// dayMonthLayouts cover year-less day-first input like "14/10 15:00".
var dayMonthLayouts = []string{
	"02/01 15:04",
	"02/01 15h04",
	"02/01 15h",
	"02/01",
}

// Normalizer converts date text into instants pinned to a single zone.
type Normalizer struct {
	loc *time.Location

	now func() time.Time // injectable for tests
}

// NewNormalizer creates a Normalizer for the given IANA zone name.
func NewNormalizer(timezone string) (*Normalizer, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	return &Normalizer{
		loc: loc,
		now: func() time.Time { return time.Now().In(loc) },
	}, nil
}

// Location returns the zone all parsed instants are expressed in.
func (n *Normalizer) Location() *time.Location {
	return n.loc
}

// Parse interprets date text as an instant in the normalizer's zone.
// ISO-8601 layouts are tried first; anything else goes through loose
// day-first parsing, with year-less dates resolved to the next future
// occurrence. Offset-carrying input is converted into the zone.
func (n *Normalizer) Parse(text string) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, fmt.Errorf("empty date text")
	}

	for _, layout := range isoLayouts {
		if t, err := time.ParseInLocation(layout, text, n.loc); err == nil {
			return t.In(n.loc), nil
		}
	}

	// "14/10 às 15h" style input from the model
	loose := strings.Join(strings.Fields(strings.ReplaceAll(text, "às", " ")), " ")

	for _, layout := range dayMonthLayouts {
		if t, err := time.ParseInLocation(layout, loose, n.loc); err == nil {
			return n.nextOccurrence(t), nil
		}
	}

	t, err := dateparse.ParseIn(loose, n.loc, dateparse.PreferMonthFirst(false))
	if err != nil {
		return time.Time{}, fmt.Errorf("cannot interpret date %q: %w", text, err)
	}
	return t.In(n.loc), nil
}

// nextOccurrence pins a year-less parse to the current year, rolling one
// year forward when that instant has already passed.
func (n *Normalizer) nextOccurrence(t time.Time) time.Time {
	now := n.now()
	candidate := time.Date(now.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), 0, 0, n.loc)
	if candidate.Before(now) {
		candidate = candidate.AddDate(1, 0, 0)
	}
	return candidate
}

// Normalize parses date text and renders it in the canonical ISO layout.
func (n *Normalizer) Normalize(text string) (string, error) {
	t, err := n.Parse(text)
	if err != nil {
		return "", err
	}
	return t.Format(ISOFormat), nil
}

// FormatISO renders an instant in the canonical ISO layout, in zone.
func (n *Normalizer) FormatISO(t time.Time) string {
	return t.In(n.loc).Format(ISOFormat)
}

// FormatLabel renders an instant the way slots are labeled in chat replies.
func (n *Normalizer) FormatLabel(t time.Time) string {
	return t.In(n.loc).Format("02/01/2006 15:04")
}
