package harvest

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
)

// ID identifies a project, task or entry. The service has sent identifiers
// both as JSON numbers and as strings, so both are accepted.
type ID string

// UnmarshalJSON accepts a JSON string, number or null.
func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*id = ""
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
	default:
		if _, err := strconv.ParseFloat(string(b), 64); err != nil {
			return fmt.Errorf("invalid id %s", b)
		}
		*id = ID(b)
	}
	return nil
}

// SpentAtLayout is the date format used when submitting entries.
const SpentAtLayout = "Mon, 02 Jan 2006"

var dateLayouts = []string{
	"2006-01-02",
	SpentAtLayout,
	"Mon, 2 Jan 2006",
	time.RFC3339,
}

// Date is a calendar day.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day in t's location.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Time: time.Date(y, m, d, 0, 0, 0, 0, t.Location())}
}

// MarshalJSON writes the day in SpentAtLayout, or null for the zero Date.
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(SpentAtLayout))
}

// UnmarshalJSON accepts ISO dates and the service's long form.
func (d *Date) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		d.Time = time.Time{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		d.Time = time.Time{}
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			d.Time = t
			return nil
		}
	}
	return fmt.Errorf("unrecognised date %q", s)
}

// TimeEntry is one logged block of time.
type TimeEntry struct {
	ID        ID         `json:"id,omitempty"`
	ProjectID ID         `json:"project_id"`
	TaskID    ID         `json:"task_id"`
	Project   string     `json:"project,omitempty"`
	Task      string     `json:"task,omitempty"`
	Hours     float64    `json:"hours"`
	Notes     string     `json:"notes"`
	SpentAt   Date       `json:"spent_at"`
	CreatedAt *time.Time `json:"created_at,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// Persisted reports whether the entry exists remotely.
func (e TimeEntry) Persisted() bool {
	return e.ID != ""
}

// Matches reports whether the entry belongs to project and task.
func (e TimeEntry) Matches(project, task ID) bool {
	return e.ProjectID == project && e.TaskID == task
}

// dailyResponse is the body of GET /daily.
type dailyResponse struct {
	ForDay     string      `json:"for_day"`
	DayEntries []TimeEntry `json:"day_entries"`
}

// entryEnvelope covers both shapes the write endpoints answer with.
type entryEnvelope struct {
	DayEntry *TimeEntry `json:"day_entry"`
}

func decodeEntry(body []byte) (TimeEntry, bool, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return TimeEntry{}, false, nil
	}

	var env entryEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return TimeEntry{}, false, err
	}
	if env.DayEntry != nil {
		return *env.DayEntry, true, nil
	}

	var entry TimeEntry
	if err := json.Unmarshal(body, &entry); err != nil {
		return TimeEntry{}, false, err
	}
	return entry, entry.Persisted(), nil
}
