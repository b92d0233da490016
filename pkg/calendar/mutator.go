package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/teambition/rrule-go"
)

// Mutator creates, updates and deletes single events.
type Mutator struct {
	remote   Remote
	settings Settings
}

func NewMutator(remote Remote, settings Settings) *Mutator {
	return &Mutator{remote: remote, settings: settings}
}

// At pairs the wall-clock reading of t with the configured time zone.
func (m *Mutator) At(t time.Time) EventTime {
	return WallClock(t, m.settings.TimeZone)
}

// Zoned pairs a caller-supplied date-time string with the configured time zone.
func (m *Mutator) Zoned(dateTime string) EventTime {
	return EventTime{DateTime: dateTime, TimeZone: m.settings.TimeZone}
}

// Create inserts a new event. An empty location is not sent at all.
func (m *Mutator) Create(ctx context.Context, calendarId string, event NewEvent) (*Event, error) {
	log.Debugf("Creating event %q in calendar %s", event.Summary, calendarId)
	created, err := m.remote.InsertEvent(ctx, calendarId, Event{
		Summary:     event.Summary,
		Description: event.Description,
		Location:    event.Location,
		Start:       event.Start,
		End:         event.End,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return created, nil
}

// Update fetches the current event, overlays the supplied fields and writes
// the merged record back. Concurrent updates are last-write-wins.
func (m *Mutator) Update(ctx context.Context, calendarId, eventId string, update EventUpdate) (*Event, error) {
	if err := ValidateRecurrence(update.Recurrence); err != nil {
		return nil, err
	}

	current, err := m.remote.GetEvent(ctx, calendarId, eventId)
	if err != nil {
		return nil, fmt.Errorf("failed to get event %s: %w", eventId, err)
	}

	merged := update.ApplyTo(*current)
	merged.ID = eventId
	log.Debugf("Updating event %s in calendar %s", eventId, calendarId)

	updated, err := m.remote.UpdateEvent(ctx, calendarId, merged)
	if err != nil {
		return nil, fmt.Errorf("failed to update event %s: %w", eventId, err)
	}
	return updated, nil
}

func (m *Mutator) Delete(ctx context.Context, calendarId, eventId string) error {
	log.Debugf("Deleting event %s from calendar %s", eventId, calendarId)
	if err := m.remote.DeleteEvent(ctx, calendarId, eventId); err != nil {
		return fmt.Errorf("failed to delete event %s: %w", eventId, err)
	}
	return nil
}

// ValidateRecurrence checks recurrence lines before they reach the remote.
// RRULE and EXRULE values must parse as RFC 5545 rules; RDATE and EXDATE are
// passed through as they are.
func ValidateRecurrence(lines []string) error {
	for _, line := range lines {
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			return fmt.Errorf("%w: %q", ErrInvalidRecurrence, line)
		}
		if i := strings.Index(name, ";"); i >= 0 {
			name = name[:i]
		}
		switch strings.ToUpper(name) {
		case "RRULE", "EXRULE":
			if _, err := rrule.StrToROption(value); err != nil {
				return fmt.Errorf("%w: %q: %v", ErrInvalidRecurrence, line, err)
			}
		case "RDATE", "EXDATE":
		default:
			return fmt.Errorf("%w: unsupported property %q", ErrInvalidRecurrence, name)
		}
	}
	return nil
}
