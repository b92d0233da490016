package calendar

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Locator finds events by approximate title within a date window.
type Locator struct {
	remote   Remote
	settings Settings
}

func NewLocator(remote Remote, settings Settings) *Locator {
	return &Locator{remote: remote, settings: settings}
}

// Locate returns the best match for title between startDate and endDate
// (inclusive, YYYY-MM-DD): the first event whose title equals title ignoring
// case and surrounding spaces, otherwise the first event the remote returned.
// It returns nil without error when nothing matches.
func (l *Locator) Locate(ctx context.Context, calendarId, title, startDate, endDate string) (*Event, error) {
	candidates, err := l.Find(ctx, calendarId, title, startDate, endDate)
	if err != nil {
		return nil, err
	}
	return BestMatch(candidates, title), nil
}

// Find returns every event in the window that the remote full-text search
// matches against title, ordered by start time.
func (l *Locator) Find(ctx context.Context, calendarId, title, startDate, endDate string) ([]Event, error) {
	window, err := ParseSearchWindow(startDate, endDate)
	if err != nil {
		return nil, err
	}
	return l.search(ctx, calendarId, title, window)
}

// List returns every event in the window without a text filter.
func (l *Locator) List(ctx context.Context, calendarId, startDate, endDate string) ([]Event, error) {
	window, err := ParseSearchWindow(startDate, endDate)
	if err != nil {
		return nil, err
	}
	return l.search(ctx, calendarId, "", window)
}

func (l *Locator) search(ctx context.Context, calendarId, text string, window SearchWindow) ([]Event, error) {
	timeMin, timeMax := window.TimeRange(l.settings.location())
	log.Debugf("Searching %s for %q in [%s, %s)", calendarId, text, timeMin, timeMax)

	events, err := l.remote.ListEvents(ctx, EventQuery{
		CalendarID: calendarId,
		TimeMin:    timeMin,
		TimeMax:    timeMax,
		Text:       text,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}
	return events, nil
}

// BestMatch picks the exact (case-insensitive, trimmed) title match from
// candidates, or the first candidate, or nil when candidates is empty.
func BestMatch(candidates []Event, title string) *Event {
	if len(candidates) == 0 {
		return nil
	}
	target := strings.ToLower(strings.TrimSpace(title))
	for i := range candidates {
		if strings.ToLower(strings.TrimSpace(candidates[i].Summary)) == target {
			return &candidates[i]
		}
	}
	return &candidates[0]
}
