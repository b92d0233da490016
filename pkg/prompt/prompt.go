// Package prompt implements the line-based interactive front end.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/calassist/calassist/pkg/calendar"
	log "github.com/sirupsen/logrus"
)

const (
	defaultDurationMinutes = 60
	deleteConfirmation     = "DELETE"
)

// errAborted ends the current action after a message has been printed.
var errAborted = errors.New("aborted")

// Session runs one menu action against the calendar service.
type Session struct {
	service *calendar.Service
	in      *bufio.Scanner
	out     io.Writer
}

func NewSession(service *calendar.Service, in io.Reader, out io.Writer) *Session {
	return &Session{service: service, in: bufio.NewScanner(in), out: out}
}

// Run resolves the default calendar, shows the menu and performs the chosen
// action. Invalid input is reported on out and is not an error; remote
// failures are returned.
func (s *Session) Run(ctx context.Context) error {
	err := s.run(ctx)
	if errors.Is(err, errAborted) {
		return nil
	}
	return err
}

func (s *Session) run(ctx context.Context) error {
	calendarId, err := s.defaultCalendar(ctx)
	if err != nil {
		return err
	}

	s.println("\nChoose an action:")
	s.println("1) Create event")
	s.println("2) Edit event")
	s.println("3) Delete event")
	s.println("4) List my calendars")
	choice := s.ask("Enter 1/2/3/4: ")

	if choice == "4" {
		return s.listCalendars(ctx)
	}
	if choice != "1" && choice != "2" && choice != "3" {
		s.println("No action selected.")
		return nil
	}

	calendarId, err = s.override(ctx, calendarId)
	if err != nil {
		return err
	}
	s.printf("\nUsing calendar id: %s\n", calendarId)

	switch choice {
	case "1":
		return s.create(ctx, calendarId)
	case "2":
		return s.edit(ctx, calendarId)
	default:
		return s.delete(ctx, calendarId)
	}
}

func (s *Session) defaultCalendar(ctx context.Context) (string, error) {
	resolver := s.service.Resolver
	id, found, err := resolver.DefaultCalendar(ctx)
	if err != nil {
		return "", err
	}
	if found {
		s.printf("\nDefault calendar: %s (id: %s)\n", resolver.DefaultCalendarName(), id)
	} else {
		s.printf("\nCouldn't find a calendar named '%s'. Falling back to %s.\n", resolver.DefaultCalendarName(), id)
	}
	return id, nil
}

// override lets the user pick another calendar. A name that matches nothing
// keeps the current calendar.
func (s *Session) override(ctx context.Context, current string) (string, error) {
	reference := s.ask("\n(Press Enter to use the default above)\nOr paste a different calendar NAME or ID: ")
	if reference == "" {
		return current, nil
	}
	if calendar.IsCalendarID(reference) {
		return reference, nil
	}
	id, found, err := s.service.Resolver.FindByName(ctx, reference)
	if err != nil {
		return "", err
	}
	if !found {
		log.Debugf("calendar %q not found, keeping %s", reference, current)
		return current, nil
	}
	return id, nil
}

func (s *Session) listCalendars(ctx context.Context) error {
	calendars, err := s.service.Resolver.ListCalendars(ctx)
	if err != nil {
		return err
	}
	s.println("\nYour calendars:")
	for _, c := range calendars {
		s.printf(" - %s  (id: %s)\n", c.Summary, c.ID)
	}
	return nil
}

func (s *Session) create(ctx context.Context, calendarId string) error {
	title := s.ask("\nTitle (e.g., Go to supermarket): ")
	description := s.ask("Details/description (e.g., Milk, eggs, apples): ")
	location := s.ask("Location (optional): ")
	start, end, err := s.askTimes()
	if err != nil {
		return err
	}

	m := s.service.Mutator
	created, err := m.Create(ctx, calendarId, calendar.NewEvent{
		Summary:     title,
		Description: description,
		Location:    location,
		Start:       m.At(start),
		End:         m.At(end),
	})
	if err != nil {
		return err
	}
	s.printf("\nEvent created: %s\neventId: %s\n", created.HTMLLink, created.ID)
	return nil
}

func (s *Session) edit(ctx context.Context, calendarId string) error {
	s.println("\nEdit by searching for the event:")
	found, err := s.locate(ctx, calendarId)
	if err != nil {
		return err
	}
	s.printf("Found: %s  (eventId: %s)\n", found.Summary, found.ID)

	var update calendar.EventUpdate
	update.Summary = optional(s.ask("New title (Enter to keep): "))
	update.Description = optional(s.ask("New details/description (Enter to keep): "))
	update.Location = optional(s.ask("New location (Enter to keep): "))

	if strings.ToLower(s.ask("Change time? (y/N): ")) == "y" {
		start, end, err := s.askTimes()
		if err != nil {
			return err
		}
		startTime, endTime := s.service.Mutator.At(start), s.service.Mutator.At(end)
		update.Start, update.End = &startTime, &endTime
	}
	if update.IsEmpty() {
		s.println("Nothing to change.")
		return nil
	}

	updated, err := s.service.Mutator.Update(ctx, calendarId, found.ID, update)
	if err != nil {
		return err
	}
	s.printf("\nEvent updated: %s\n", updated.HTMLLink)
	return nil
}

func (s *Session) delete(ctx context.Context, calendarId string) error {
	s.println("\nDelete by searching for the event:")
	found, err := s.locate(ctx, calendarId)
	if err != nil {
		return err
	}
	s.printf("About to delete: %s  (eventId: %s)\n", found.Summary, found.ID)

	if s.ask("Type DELETE to confirm: ") != deleteConfirmation {
		s.println("Cancelled.")
		return nil
	}
	if err := s.service.Mutator.Delete(ctx, calendarId, found.ID); err != nil {
		return err
	}
	s.println("Deleted.")
	return nil
}

func (s *Session) locate(ctx context.Context, calendarId string) (*calendar.Event, error) {
	title := s.ask("Exact title to find: ")
	startDate := s.ask("Search start date (YYYY-MM-DD): ")
	endDate := s.ask("Search end date   (YYYY-MM-DD): ")

	found, err := s.service.Locator.Locate(ctx, calendarId, title, startDate, endDate)
	if errors.Is(err, calendar.ErrInvalidDateFormat) {
		s.println("Invalid date format. Use YYYY-MM-DD.")
		return nil, errAborted
	}
	if err != nil {
		return nil, err
	}
	if found == nil {
		s.println("No matching event found.")
		return nil, errAborted
	}
	return found, nil
}

// askTimes reads a date, a start time and a duration and returns the
// wall-clock start and end.
func (s *Session) askTimes() (time.Time, time.Time, error) {
	date := s.ask("Date (YYYY-MM-DD): ")
	clock := s.ask("Start time 24h (HH:MM): ")
	durationInput := s.ask(fmt.Sprintf("Duration minutes (default %d): ", defaultDurationMinutes))

	duration := defaultDurationMinutes
	if durationInput != "" {
		minutes, err := strconv.Atoi(durationInput)
		if err != nil || minutes < 0 {
			s.println("Invalid duration. Enter a whole number of minutes.")
			return time.Time{}, time.Time{}, errAborted
		}
		duration = minutes
	}

	start, err := calendar.ParseLocalDateTime(date, clock)
	if err != nil {
		s.println("Invalid date/time. Use YYYY-MM-DD and HH:MM (24h).")
		return time.Time{}, time.Time{}, errAborted
	}
	return start, start.Add(time.Duration(duration) * time.Minute), nil
}

// ask prints label and returns the next trimmed input line, or "" at end of input.
func (s *Session) ask(label string) string {
	fmt.Fprint(s.out, label)
	if !s.in.Scan() {
		return ""
	}
	return strings.TrimSpace(s.in.Text())
}

func (s *Session) println(line string) {
	fmt.Fprintln(s.out, line)
}

func (s *Session) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func optional(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}
