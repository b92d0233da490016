package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/calassist/calassist/pkg/calendar"
	log "github.com/sirupsen/logrus"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Service talks to the Google Calendar API on behalf of the stored account.
type Service struct {
	auth    *Auth
	options []option.ClientOption
}

func NewService(auth *Auth, options ...option.ClientOption) *Service {
	return &Service{auth: auth, options: options}
}

func (s *Service) ListCalendars(ctx context.Context, pageToken string) (calendar.CalendarPage, error) {
	var list *gcal.CalendarList
	err := s.do(ctx, func(service *gcal.Service) error {
		call := service.CalendarList.List().Context(ctx)
		if pageToken != "" {
			call = call.PageToken(pageToken)
		}
		var err error
		list, err = call.Do()
		return err
	})
	if err != nil {
		return calendar.CalendarPage{}, fmt.Errorf("unable to retrieve calendars from Google Calendar: %w", err)
	}

	page := calendar.CalendarPage{
		Items:         make([]calendar.CalendarEntry, 0, len(list.Items)),
		NextPageToken: list.NextPageToken,
	}
	for _, item := range list.Items {
		page.Items = append(page.Items, calendar.CalendarEntry{ID: item.Id, Summary: item.Summary})
	}
	return page, nil
}

func (s *Service) ListEvents(ctx context.Context, query calendar.EventQuery) ([]calendar.Event, error) {
	var events []calendar.Event
	err := s.do(ctx, func(service *gcal.Service) error {
		events = nil
		call := service.Events.List(query.CalendarID).
			TimeMin(query.TimeMin).
			TimeMax(query.TimeMax).
			SingleEvents(true).
			OrderBy("startTime")
		if query.Text != "" {
			call = call.Q(query.Text)
		}
		if query.MaxResults > 0 {
			call = call.MaxResults(query.MaxResults)
		}
		return call.Pages(ctx, func(page *gcal.Events) error {
			for _, item := range page.Items {
				events = append(events, toEvent(item))
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve events from Google Calendar: %w", err)
	}
	return events, nil
}

func (s *Service) GetEvent(ctx context.Context, calendarId, eventId string) (*calendar.Event, error) {
	var item *gcal.Event
	err := s.do(ctx, func(service *gcal.Service) error {
		var err error
		item, err = service.Events.Get(calendarId, eventId).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve event from Google Calendar: %w", err)
	}
	event := toEvent(item)
	return &event, nil
}

func (s *Service) InsertEvent(ctx context.Context, calendarId string, event calendar.Event) (*calendar.Event, error) {
	body := fromEvent(event)
	var item *gcal.Event
	err := s.do(ctx, func(service *gcal.Service) error {
		var err error
		item, err = service.Events.Insert(calendarId, body).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("unable to insert event in Google Calendar: %w", err)
	}
	created := toEvent(item)
	return &created, nil
}

func (s *Service) UpdateEvent(ctx context.Context, calendarId string, event calendar.Event) (*calendar.Event, error) {
	body := fromEvent(event)
	var item *gcal.Event
	err := s.do(ctx, func(service *gcal.Service) error {
		var err error
		item, err = service.Events.Update(calendarId, event.ID, body).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("unable to update event in Google Calendar: %w", err)
	}
	updated := toEvent(item)
	return &updated, nil
}

func (s *Service) DeleteEvent(ctx context.Context, calendarId, eventId string) error {
	err := s.do(ctx, func(service *gcal.Service) error {
		return service.Events.Delete(calendarId, eventId).Context(ctx).Do()
	})
	if err != nil {
		return fmt.Errorf("unable to delete event from Google Calendar: %w", err)
	}
	return nil
}

// do runs call once. When Google rejects the credentials the token is
// refreshed and call runs a second time.
func (s *Service) do(ctx context.Context, call func(service *gcal.Service) error) error {
	service, err := s.prepareGoogleService(ctx)
	if err != nil {
		return err
	}
	err = call(service)
	if !isUnauthorized(err) {
		return err
	}

	log.Warnf("Google Calendar rejected the credentials, reloading token: %v", err)
	if err := s.auth.Reauthenticate(ctx); err != nil {
		return err
	}
	service, err = s.prepareGoogleService(ctx)
	if err != nil {
		return err
	}
	return call(service)
}

func (s *Service) prepareGoogleService(ctx context.Context) (*gcal.Service, error) {
	client, err := s.auth.HTTPClient(ctx)
	if err != nil {
		return nil, err
	}
	options := append([]option.ClientOption{option.WithHTTPClient(client)}, s.options...)
	service, err := gcal.NewService(ctx, options...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar client: %w", err)
	}
	return service, nil
}

func isUnauthorized(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized
}
