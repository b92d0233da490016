package calendar

import (
	"context"
	"errors"
	"time"
	_ "time/tzdata"
)

// PrimaryCalendarID is the remote alias for the authenticated user's own calendar.
const PrimaryCalendarID = "primary"

var (
	ErrInvalidDateFormat = errors.New("invalid date format, use YYYY-MM-DD")
	ErrCalendarNotFound  = errors.New("calendar not found")
	ErrInvalidRecurrence = errors.New("invalid recurrence rule")
)

type CalendarEntry struct {
	ID      string
	Summary string
}

// CalendarPage is one page of the calendar directory. NextPageToken is empty on the last page.
type CalendarPage struct {
	Items         []CalendarEntry
	NextPageToken string
}

type EventQuery struct {
	CalendarID string
	TimeMin    string
	TimeMax    string
	Text       string
	MaxResults int64
}

// Remote is the calendar service every operation is passed through to.
type Remote interface {
	ListCalendars(ctx context.Context, pageToken string) (CalendarPage, error)
	ListEvents(ctx context.Context, query EventQuery) ([]Event, error)
	GetEvent(ctx context.Context, calendarId, eventId string) (*Event, error)
	InsertEvent(ctx context.Context, calendarId string, event Event) (*Event, error)
	UpdateEvent(ctx context.Context, calendarId string, event Event) (*Event, error)
	DeleteEvent(ctx context.Context, calendarId, eventId string) error
}

// Settings configures how references, windows and wall-clock times are interpreted.
type Settings struct {
	DefaultCalendarName string
	TimeZone            string
	// Strict makes an explicit reference that matches no calendar an error
	// instead of falling back to the primary calendar.
	Strict bool
	// LocalSearchWindow interprets search dates in TimeZone instead of
	// labelling them as UTC midnight.
	LocalSearchWindow bool
}

func (s Settings) location() *time.Location {
	if !s.LocalSearchWindow || s.TimeZone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(s.TimeZone)
	if err != nil {
		return time.UTC
	}
	return loc
}
