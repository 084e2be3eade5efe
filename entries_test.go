package harvest

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

const dailyMixedBody = `{
  "for_day": "2026-10-19",
  "day_entries": [
    {"id": 101, "project_id": "3", "task_id": "7", "project": "Website", "task": "Dev", "hours": 1.0, "notes": "first", "spent_at": "2026-10-19"},
    {"id": 102, "project_id": "4", "task_id": "7", "project": "Other", "task": "Dev", "hours": 2.0, "notes": "wrong project", "spent_at": "2026-10-19"},
    {"id": 103, "project_id": 3, "task_id": 7, "project": "Website", "task": "Dev", "hours": 0.5, "notes": "second", "spent_at": "2026-10-19"},
    {"id": 104, "project_id": "3", "task_id": "8", "project": "Website", "task": "Review", "hours": 0.25, "notes": "wrong task", "spent_at": "2026-10-19"}
  ]
}`

const dailyEmptyBody = `{"for_day": "2026-10-19", "day_entries": []}`

type recordedCall struct {
	method string
	path   string
	body   []byte
}

// fakeRequester answers by "METHOD path" and records every call.
type fakeRequester struct {
	calls     []recordedCall
	responses map[string]string
	errs      map[string]error
}

func (f *fakeRequester) Request(_ context.Context, method, path string, body []byte) ([]byte, error) {
	f.calls = append(f.calls, recordedCall{method: method, path: path, body: body})
	key := method + " " + path
	if err, ok := f.errs[key]; ok {
		return nil, err
	}
	return []byte(f.responses[key]), nil
}

func newFixedService(r Requester) *EntryService {
	s := NewEntryService(r, "3", "7")
	s.now = func() time.Time { return time.Date(2026, 10, 19, 15, 4, 5, 0, time.UTC) }
	return s
}

func TestListTodayFiltersAndKeepsOrder(t *testing.T) {
	fake := &fakeRequester{responses: map[string]string{"GET /daily": dailyMixedBody}}
	entries, err := newFixedService(fake).ListToday(context.Background())
	if err != nil {
		t.Fatalf("ListToday() returned error: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("Expected 2 matching entries, got %d: %+v", len(entries), entries)
	}
	if entries[0].ID != "101" || entries[1].ID != "103" {
		t.Errorf("Expected entries 101, 103 in response order, got %s, %s", entries[0].ID, entries[1].ID)
	}
	if entries[0].Project != "Website" || entries[0].Task != "Dev" {
		t.Errorf("Unexpected project/task names %q/%q", entries[0].Project, entries[0].Task)
	}
	if got := entries[0].SpentAt.Format("2006-01-02"); got != "2026-10-19" {
		t.Errorf("Expected spent_at 2026-10-19, got %s", got)
	}
}

func TestListTodayDecodeError(t *testing.T) {
	fake := &fakeRequester{responses: map[string]string{"GET /daily": "<html>"}}
	_, err := newFixedService(fake).ListToday(context.Background())

	var clientErr *ClientError
	if !errors.As(err, &clientErr) || clientErr.Type != ErrorTypeDecode {
		t.Fatalf("Expected decode ClientError, got %v", err)
	}
}

func TestTodayReturnsFirstMatch(t *testing.T) {
	fake := &fakeRequester{responses: map[string]string{"GET /daily": dailyMixedBody}}
	entry, found, err := newFixedService(fake).Today(context.Background())
	if err != nil {
		t.Fatalf("Today() returned error: %v", err)
	}
	if !found || entry.ID != "101" {
		t.Errorf("Expected entry 101, got found=%v id=%s", found, entry.ID)
	}

	fake = &fakeRequester{responses: map[string]string{"GET /daily": dailyEmptyBody}}
	_, found, err = newFixedService(fake).Today(context.Background())
	if err != nil || found {
		t.Errorf("Expected nothing found, got found=%v err=%v", found, err)
	}
}

func TestLogHoursCreatesEntry(t *testing.T) {
	fake := &fakeRequester{responses: map[string]string{
		"GET /daily":      dailyEmptyBody,
		"POST /daily/add": `{"id": 555, "project_id": "3", "task_id": "7", "project": "Website", "task": "Dev", "hours": 2.5, "notes": "standup", "spent_at": "2026-10-19"}`,
	}}

	entry, err := newFixedService(fake).LogHours(context.Background(), 2.5, "standup")
	if err != nil {
		t.Fatalf("LogHours() returned error: %v", err)
	}

	if len(fake.calls) != 2 || fake.calls[1].method != http.MethodPost || fake.calls[1].path != "/daily/add" {
		t.Fatalf("Expected GET then POST /daily/add, got %+v", fake.calls)
	}

	var sent map[string]interface{}
	if err := json.Unmarshal(fake.calls[1].body, &sent); err != nil {
		t.Fatalf("Create payload is not JSON: %v", err)
	}
	if sent["hours"] != 2.5 || sent["notes"] != "standup" || sent["project_id"] != "3" || sent["task_id"] != "7" {
		t.Errorf("Unexpected create payload %v", sent)
	}
	if sent["spent_at"] != "Mon, 19 Oct 2026" {
		t.Errorf("Expected spent_at Mon, 19 Oct 2026, got %v", sent["spent_at"])
	}
	if _, ok := sent["id"]; ok {
		t.Error("Create payload must not carry an id")
	}

	if entry.ID != "555" || entry.Hours != 2.5 || entry.Project != "Website" {
		t.Errorf("Unexpected saved entry %+v", entry)
	}
}

func TestLogHoursAccumulatesExistingEntry(t *testing.T) {
	daily := `{"day_entries": [
	  {"id": 900, "project_id": "3", "task_id": "7", "project": "Website", "task": "Dev", "hours": 1.0, "notes": "morning", "spent_at": "2026-10-19"},
	  {"id": 901, "project_id": "3", "task_id": "7", "project": "Website", "task": "Dev", "hours": 4.0, "notes": "later", "spent_at": "2026-10-19"}
	]}`
	fake := &fakeRequester{responses: map[string]string{
		"GET /daily":             daily,
		"POST /daily/update/900": `{"day_entry": {"id": 900, "project_id": "3", "task_id": "7", "hours": 3.5, "notes": "standup", "spent_at": "2026-10-19"}}`,
	}}

	entry, err := newFixedService(fake).LogHours(context.Background(), 2.5, "standup")
	if err != nil {
		t.Fatalf("LogHours() returned error: %v", err)
	}

	if len(fake.calls) != 2 || fake.calls[1].path != "/daily/update/900" {
		t.Fatalf("Expected update of entry 900, got %+v", fake.calls)
	}

	var sent TimeEntry
	if err := json.Unmarshal(fake.calls[1].body, &sent); err != nil {
		t.Fatalf("Update payload is not a TimeEntry: %v", err)
	}
	if sent.ID != "900" || sent.Hours != 3.5 || sent.Notes != "standup" || sent.Project != "Website" {
		t.Errorf("Expected the full entry with hours 3.5, got %+v", sent)
	}

	if entry.Hours != 3.5 || entry.ID != "900" {
		t.Errorf("Unexpected saved entry %+v", entry)
	}
	if entry.Project != "Website" {
		t.Errorf("Expected project name to be carried over, got %q", entry.Project)
	}
}

func TestLogHoursKeepsNotesWhenEmpty(t *testing.T) {
	daily := `{"day_entries": [{"id": 1, "project_id": "3", "task_id": "7", "hours": 1.0, "notes": "keep me", "spent_at": "2026-10-19"}]}`
	fake := &fakeRequester{responses: map[string]string{"GET /daily": daily}}

	entry, err := newFixedService(fake).LogHours(context.Background(), 0.5, "")
	if err != nil {
		t.Fatalf("LogHours() returned error: %v", err)
	}
	if entry.Notes != "keep me" || entry.Hours != 1.5 {
		t.Errorf("Expected submitted entry to be returned unchanged but for hours, got %+v", entry)
	}
}

func TestLogHoursRejectsNonPositiveHours(t *testing.T) {
	fake := &fakeRequester{}
	_, err := newFixedService(fake).LogHours(context.Background(), 0, "x")

	var clientErr *ClientError
	if !errors.As(err, &clientErr) || clientErr.Type != ErrorTypeValidation {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if len(fake.calls) != 0 {
		t.Errorf("Expected no requests, got %d", len(fake.calls))
	}
}

func TestLogHoursPropagatesReadFailure(t *testing.T) {
	fake := &fakeRequester{errs: map[string]error{"GET /daily": ErrThrottleExhausted}}
	_, err := newFixedService(fake).LogHours(context.Background(), 1, "x")
	if !errors.Is(err, ErrThrottleExhausted) {
		t.Fatalf("Expected ErrThrottleExhausted, got %v", err)
	}
	if len(fake.calls) != 1 {
		t.Errorf("Expected no write after failed read, got %d calls", len(fake.calls))
	}
}

func TestLogHoursThroughPipeline(t *testing.T) {
	var created []byte
	ts := newTestService(t, redirect, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method + " " + r.URL.Path {
		case "GET /daily":
			respond(http.StatusOK, dailyEmptyBody)(w, r)
		case "POST /daily/add":
			created, _ = io.ReadAll(r.Body)
			respond(http.StatusCreated, string(created))(w, r)
		default:
			respond(http.StatusNotFound, "not found")(w, r)
		}
	})
	client := newTestClient(t, ts, &recordingSleeper{})

	entry, err := newFixedService(client).LogHours(context.Background(), 2.5, "standup")
	if err != nil {
		t.Fatalf("LogHours() returned error: %v", err)
	}
	if entry.Hours != 2.5 || entry.Notes != "standup" {
		t.Errorf("Unexpected entry %+v", entry)
	}
	if len(created) == 0 {
		t.Error("Expected create request to reach the plain server")
	}
	if secure, _ := ts.calls(); secure != 1 {
		t.Errorf("Expected a single redirect from the secure server, got %d calls", secure)
	}
}
