package calendar

import (
	"context"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"
)

// Resolver turns a calendar reference (display name or identifier) into a calendar identifier.
type Resolver struct {
	remote   Remote
	settings Settings
}

func NewResolver(remote Remote, settings Settings) *Resolver {
	return &Resolver{remote: remote, settings: settings}
}

// IsCalendarID reports whether reference already looks like a calendar identifier.
func IsCalendarID(reference string) bool {
	return strings.Contains(reference, "@")
}

// Resolve returns the calendar identifier for reference. An empty reference
// resolves the configured default calendar. Unknown names fall back to the
// primary calendar unless Settings.Strict is set.
func (r *Resolver) Resolve(ctx context.Context, reference string) (string, error) {
	if strings.TrimSpace(reference) == "" {
		id, _, err := r.DefaultCalendar(ctx)
		return id, err
	}
	if IsCalendarID(reference) {
		return reference, nil
	}

	id, found, err := r.FindByName(ctx, reference)
	if err != nil {
		return "", err
	}
	if found {
		return id, nil
	}
	if r.settings.Strict {
		return "", fmt.Errorf("%w: %q", ErrCalendarNotFound, reference)
	}
	log.Debugf("calendar %q not found, falling back to %s", reference, PrimaryCalendarID)
	return PrimaryCalendarID, nil
}

// DefaultCalendar resolves the configured default display name. The second
// result is false when the primary calendar was used as a fallback.
func (r *Resolver) DefaultCalendar(ctx context.Context) (string, bool, error) {
	id, found, err := r.FindByName(ctx, r.settings.DefaultCalendarName)
	if err != nil {
		return "", false, err
	}
	if !found {
		return PrimaryCalendarID, false, nil
	}
	return id, true, nil
}

// DefaultCalendarName is the configured display name of the default calendar.
func (r *Resolver) DefaultCalendarName() string {
	return r.settings.DefaultCalendarName
}

// FindByName scans the whole calendar directory for a display name equal to
// name after trimming and lower-casing. The first match wins.
func (r *Resolver) FindByName(ctx context.Context, name string) (string, bool, error) {
	target := normalize(name)
	if target == "" {
		return "", false, nil
	}

	var (
		id    string
		found bool
	)
	err := r.eachPage(ctx, func(page CalendarPage) bool {
		for _, entry := range page.Items {
			if normalize(entry.Summary) == target {
				id, found = entry.ID, true
				return false
			}
		}
		return true
	})
	if err != nil {
		return "", false, err
	}
	return id, found, nil
}

// ListCalendars returns every entry of the calendar directory in remote order.
func (r *Resolver) ListCalendars(ctx context.Context) ([]CalendarEntry, error) {
	var entries []CalendarEntry
	err := r.eachPage(ctx, func(page CalendarPage) bool {
		entries = append(entries, page.Items...)
		return true
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *Resolver) eachPage(ctx context.Context, fn func(CalendarPage) bool) error {
	pageToken := ""
	for {
		page, err := r.remote.ListCalendars(ctx, pageToken)
		if err != nil {
			return fmt.Errorf("failed to list calendars: %w", err)
		}
		if !fn(page) || page.NextPageToken == "" {
			return nil
		}
		pageToken = page.NextPageToken
	}
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
