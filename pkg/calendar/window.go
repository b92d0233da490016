package calendar

import (
	"fmt"
	"strings"
	"time"
)

const (
	DateLayout      = "2006-01-02"
	ClockLayout     = "15:04"
	wallClockLayout = "2006-01-02T15:04:00"
)

// SearchWindow is an inclusive range of calendar dates.
type SearchWindow struct {
	StartDate time.Time
	EndDate   time.Time
}

// ParseSearchWindow parses two YYYY-MM-DD dates. Ordering is not checked.
func ParseSearchWindow(startDate, endDate string) (SearchWindow, error) {
	start, err := ParseDate(startDate)
	if err != nil {
		return SearchWindow{}, err
	}
	end, err := ParseDate(endDate)
	if err != nil {
		return SearchWindow{}, err
	}
	return SearchWindow{StartDate: start, EndDate: end}, nil
}

func ParseDate(value string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDateFormat, value)
	}
	return d, nil
}

// Bounds widens the window to the half-open interval
// [StartDate 00:00, EndDate+1 00:00) in loc.
func (w SearchWindow) Bounds(loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	from := time.Date(w.StartDate.Year(), w.StartDate.Month(), w.StartDate.Day(), 0, 0, 0, 0, loc)
	to := time.Date(w.EndDate.Year(), w.EndDate.Month(), w.EndDate.Day()+1, 0, 0, 0, 0, loc)
	return from, to
}

// TimeRange returns the bounds formatted as RFC 3339. With loc == time.UTC the
// values carry a "Z" suffix even though the dates were entered as local dates.
func (w SearchWindow) TimeRange(loc *time.Location) (string, string) {
	from, to := w.Bounds(loc)
	return from.Format(time.RFC3339), to.Format(time.RFC3339)
}

// ParseLocalDateTime combines a YYYY-MM-DD date and an HH:MM 24h clock into a
// naive wall-clock time.
func ParseLocalDateTime(date, clock string) (time.Time, error) {
	t, err := time.Parse(DateLayout+" "+ClockLayout, strings.TrimSpace(date)+" "+strings.TrimSpace(clock))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q %q (use YYYY-MM-DD and HH:MM)", ErrInvalidDateFormat, date, clock)
	}
	return t, nil
}

// WallClock pairs the wall-clock reading of t with a named time zone. The
// offset of t is ignored.
func WallClock(t time.Time, timeZone string) EventTime {
	return EventTime{DateTime: t.Format(wallClockLayout), TimeZone: timeZone}
}
