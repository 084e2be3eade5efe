package harvest

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goccy/go-json"
)

// Daily-entries endpoints.
const (
	pathDaily       = "/daily"
	pathDailyAdd    = "/daily/add"
	pathDailyUpdate = "/daily/update/"
)

// Requester is the part of Client the entry operations need.
type Requester interface {
	Request(ctx context.Context, method, path string, body []byte) ([]byte, error)
}

// EntryService reads and writes today's entries for one project/task pair.
type EntryService struct {
	client    Requester
	projectID ID
	taskID    ID
	now       func() time.Time
}

// NewEntryService binds client to projectID/taskID.
func NewEntryService(client Requester, projectID, taskID string) *EntryService {
	return &EntryService{
		client:    client,
		projectID: ID(projectID),
		taskID:    ID(taskID),
		now:       time.Now,
	}
}

// ListToday returns today's entries for the configured project and task, in
// the order the service listed them.
func (s *EntryService) ListToday(ctx context.Context) ([]TimeEntry, error) {
	body, err := s.client.Request(ctx, http.MethodGet, pathDaily, nil)
	if err != nil {
		return nil, err
	}

	var daily dailyResponse
	if err := json.Unmarshal(body, &daily); err != nil {
		return nil, &ClientError{Type: ErrorTypeDecode, Message: "cannot decode daily entries", Cause: err, Method: http.MethodGet, URL: pathDaily, Timestamp: time.Now()}
	}

	matching := make([]TimeEntry, 0, len(daily.DayEntries))
	for _, entry := range daily.DayEntries {
		if entry.Matches(s.projectID, s.taskID) {
			matching = append(matching, entry)
		}
	}
	return matching, nil
}

// Today returns the first matching entry of the day. found is false when
// nothing has been logged for the project and task yet.
func (s *EntryService) Today(ctx context.Context) (entry TimeEntry, found bool, err error) {
	entries, err := s.ListToday(ctx)
	if err != nil {
		return TimeEntry{}, false, err
	}
	if len(entries) == 0 {
		return TimeEntry{}, false, nil
	}
	return entries[0], true, nil
}

// LogHours adds hours to today's entry, creating it if there is none. When
// notes is non-empty it replaces the entry's notes.
//
// The read and the write are separate requests; a change made elsewhere in
// between is overwritten.
func (s *EntryService) LogHours(ctx context.Context, hours float64, notes string) (TimeEntry, error) {
	if hours <= 0 {
		return TimeEntry{}, &ClientError{Type: ErrorTypeValidation, Message: fmt.Sprintf("hours must be positive, got %v", hours), Timestamp: time.Now()}
	}

	existing, found, err := s.Today(ctx)
	if err != nil {
		return TimeEntry{}, err
	}

	var (
		entry TimeEntry
		path  string
	)
	if found {
		entry = existing
		entry.Hours += hours
		if notes != "" {
			entry.Notes = notes
		}
		if entry.SpentAt.IsZero() {
			entry.SpentAt = NewDate(s.now())
		}
		path = pathDailyUpdate + string(entry.ID)
	} else {
		entry = TimeEntry{
			ProjectID: s.projectID,
			TaskID:    s.taskID,
			Hours:     hours,
			Notes:     notes,
			SpentAt:   NewDate(s.now()),
		}
		path = pathDailyAdd
	}

	return s.submit(ctx, path, entry)
}

func (s *EntryService) submit(ctx context.Context, path string, entry TimeEntry) (TimeEntry, error) {
	payload, err := json.Marshal(entry)
	if err != nil {
		return TimeEntry{}, fmt.Errorf("encode entry: %w", err)
	}

	body, err := s.client.Request(ctx, http.MethodPost, path, payload)
	if err != nil {
		return TimeEntry{}, err
	}

	saved, ok, err := decodeEntry(body)
	if err != nil {
		return TimeEntry{}, &ClientError{Type: ErrorTypeDecode, Message: "cannot decode saved entry", Cause: err, Method: http.MethodPost, URL: path, Timestamp: time.Now()}
	}
	if !ok {
		return entry, nil
	}
	if saved.Project == "" {
		saved.Project = entry.Project
	}
	if saved.Task == "" {
		saved.Task = entry.Task
	}
	return saved, nil
}
