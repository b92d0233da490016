package calendar

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

var ErrStubEventNotFound = errors.New("event with given id not found")

// StubRemote is an in-memory Remote for tests.
type StubRemote struct {
	mu        sync.RWMutex
	calendars []CalendarEntry
	pageSize  int
	events    map[string]map[string]Event // calendarId -> eventId -> event
	nextId    int

	// ListedEvents is the result ListEvents returns when set, ignoring stored events.
	ListedEvents []Event

	Queries            []EventQuery
	ListCalendarsCalls int
	Inserted           []Event
	Updated            []Event

	ListCalendarsErr error
	ListEventsErr    error
	GetEventErr      error
	InsertEventErr   error
	UpdateEventErr   error
	DeleteEventErr   error
}

func NewStubRemote() *StubRemote {
	return &StubRemote{
		pageSize: 2,
		events:   make(map[string]map[string]Event),
		nextId:   1,
	}
}

// SetCalendars replaces the calendar directory, served pageSize entries per page.
func (s *StubRemote) SetCalendars(pageSize int, calendars ...CalendarEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calendars = calendars
	if pageSize > 0 {
		s.pageSize = pageSize
	}
}

// Put stores event as is, assigning an id when missing.
func (s *StubRemote) Put(calendarId string, event Event) Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store(calendarId, event)
}

func (s *StubRemote) store(calendarId string, event Event) Event {
	if event.ID == "" {
		event.ID = fmt.Sprintf("event-%d", s.nextId)
		s.nextId++
	}
	if event.HTMLLink == "" {
		event.HTMLLink = "https://calendar.example.com/event?eid=" + event.ID
	}
	if s.events[calendarId] == nil {
		s.events[calendarId] = make(map[string]Event)
	}
	s.events[calendarId][event.ID] = event
	return event
}

func (s *StubRemote) ListCalendars(_ context.Context, pageToken string) (CalendarPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ListCalendarsCalls++
	if s.ListCalendarsErr != nil {
		return CalendarPage{}, s.ListCalendarsErr
	}

	start := 0
	if pageToken != "" {
		n, err := strconv.Atoi(pageToken)
		if err != nil {
			return CalendarPage{}, fmt.Errorf("invalid page token %q", pageToken)
		}
		start = n
	}
	end := min(start+s.pageSize, len(s.calendars))
	page := CalendarPage{Items: append([]CalendarEntry(nil), s.calendars[start:end]...)}
	if end < len(s.calendars) {
		page.NextPageToken = strconv.Itoa(end)
	}
	return page, nil
}

func (s *StubRemote) ListEvents(_ context.Context, query EventQuery) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Queries = append(s.Queries, query)
	if s.ListEventsErr != nil {
		return nil, s.ListEventsErr
	}
	if s.ListedEvents != nil {
		return append([]Event(nil), s.ListedEvents...), nil
	}

	from, err := time.Parse(time.RFC3339, query.TimeMin)
	if err != nil {
		return nil, fmt.Errorf("invalid timeMin: %w", err)
	}
	to, err := time.Parse(time.RFC3339, query.TimeMax)
	if err != nil {
		return nil, fmt.Errorf("invalid timeMax: %w", err)
	}

	text := strings.ToLower(query.Text)
	var result []Event
	for _, event := range s.events[query.CalendarID] {
		start, end := stubInstant(event.Start), stubInstant(event.End)
		if !start.Before(to) || !end.After(from) {
			continue
		}
		if text != "" && !strings.Contains(strings.ToLower(event.Summary+" "+event.Description), text) {
			continue
		}
		result = append(result, event)
	}
	sort.Slice(result, func(i, j int) bool {
		return stubInstant(result[i].Start).Before(stubInstant(result[j].Start))
	})
	return result, nil
}

func (s *StubRemote) GetEvent(_ context.Context, calendarId, eventId string) (*Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.GetEventErr != nil {
		return nil, s.GetEventErr
	}
	event, ok := s.events[calendarId][eventId]
	if !ok {
		return nil, ErrStubEventNotFound
	}
	return &event, nil
}

func (s *StubRemote) InsertEvent(_ context.Context, calendarId string, event Event) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.InsertEventErr != nil {
		return nil, s.InsertEventErr
	}
	s.Inserted = append(s.Inserted, event)
	event.ID = ""
	stored := s.store(calendarId, event)
	return &stored, nil
}

func (s *StubRemote) UpdateEvent(_ context.Context, calendarId string, event Event) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.UpdateEventErr != nil {
		return nil, s.UpdateEventErr
	}
	if _, ok := s.events[calendarId][event.ID]; !ok {
		return nil, ErrStubEventNotFound
	}
	s.Updated = append(s.Updated, event)
	stored := s.store(calendarId, event)
	return &stored, nil
}

func (s *StubRemote) DeleteEvent(_ context.Context, calendarId, eventId string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteEventErr != nil {
		return s.DeleteEventErr
	}
	if _, ok := s.events[calendarId][eventId]; !ok {
		return ErrStubEventNotFound
	}
	delete(s.events[calendarId], eventId)
	return nil
}

// Reset drops all stored data, recorded calls and injected errors.
func (s *StubRemote) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calendars = nil
	s.pageSize = 2
	s.events = make(map[string]map[string]Event)
	s.nextId = 1
	s.ListedEvents = nil
	s.Queries = nil
	s.ListCalendarsCalls = 0
	s.Inserted = nil
	s.Updated = nil
	s.ListCalendarsErr = nil
	s.ListEventsErr = nil
	s.GetEventErr = nil
	s.InsertEventErr = nil
	s.UpdateEventErr = nil
	s.DeleteEventErr = nil
}

// stubInstant reads wall-clock values as UTC, the same way the search window labels them.
func stubInstant(t EventTime) time.Time {
	if t.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return parsed
		}
		if parsed, err := time.Parse(wallClockLayout, t.DateTime); err == nil {
			return parsed
		}
	}
	parsed, _ := time.Parse(DateLayout, t.Date)
	return parsed
}
