package google

import (
	"github.com/calassist/calassist/pkg/calendar"
	gcal "google.golang.org/api/calendar/v3"
)

// toEvent keeps the decoded API record as Native so a later write can send
// back the fields the calendar package does not model.
func toEvent(item *gcal.Event) calendar.Event {
	event := calendar.Event{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Start:       toEventTime(item.Start),
		End:         toEventTime(item.End),
		HTMLLink:    item.HtmlLink,
		Recurrence:  item.Recurrence,
		Native:      item,
	}
	if item.Reminders != nil {
		reminders := &calendar.Reminders{UseDefault: item.Reminders.UseDefault}
		for _, o := range item.Reminders.Overrides {
			reminders.Overrides = append(reminders.Overrides, calendar.ReminderOverride{Method: o.Method, Minutes: o.Minutes})
		}
		event.Reminders = reminders
	}
	for _, a := range item.Attendees {
		event.Attendees = append(event.Attendees, calendar.Attendee{
			Email:          a.Email,
			DisplayName:    a.DisplayName,
			Optional:       a.Optional,
			ResponseStatus: a.ResponseStatus,
		})
	}
	return event
}

func toEventTime(t *gcal.EventDateTime) calendar.EventTime {
	if t == nil {
		return calendar.EventTime{}
	}
	return calendar.EventTime{DateTime: t.DateTime, Date: t.Date, TimeZone: t.TimeZone}
}

// fromEvent overlays the modelled fields onto a copy of the native record,
// or onto an empty record for new events. Empty strings are left out of the
// request body.
func fromEvent(event calendar.Event) *gcal.Event {
	item := &gcal.Event{}
	if native, ok := event.Native.(*gcal.Event); ok && native != nil {
		copied := *native
		item = &copied
	}

	item.Summary = event.Summary
	item.Description = event.Description
	item.Location = event.Location
	item.Start = fromEventTime(event.Start)
	item.End = fromEventTime(event.End)
	item.Recurrence = event.Recurrence
	item.Attendees = fromAttendees(event.Attendees, item.Attendees)

	item.Reminders = nil
	if event.Reminders != nil {
		reminders := &gcal.EventReminders{
			UseDefault:      event.Reminders.UseDefault,
			ForceSendFields: []string{"UseDefault"},
		}
		for _, o := range event.Reminders.Overrides {
			reminders.Overrides = append(reminders.Overrides, &gcal.EventReminder{
				Method:          o.Method,
				Minutes:         o.Minutes,
				ForceSendFields: []string{"Minutes"},
			})
		}
		item.Reminders = reminders
	}
	return item
}

func fromEventTime(t calendar.EventTime) *gcal.EventDateTime {
	return &gcal.EventDateTime{DateTime: t.DateTime, Date: t.Date, TimeZone: t.TimeZone}
}

// fromAttendees keeps the unmodelled attributes of attendees already on the event.
func fromAttendees(attendees []calendar.Attendee, existing []*gcal.EventAttendee) []*gcal.EventAttendee {
	if attendees == nil {
		return nil
	}
	byEmail := make(map[string]*gcal.EventAttendee, len(existing))
	for _, a := range existing {
		byEmail[a.Email] = a
	}

	result := make([]*gcal.EventAttendee, 0, len(attendees))
	for _, a := range attendees {
		attendee := &gcal.EventAttendee{}
		if known, ok := byEmail[a.Email]; ok {
			copied := *known
			attendee = &copied
		}
		attendee.Email = a.Email
		attendee.DisplayName = a.DisplayName
		attendee.Optional = a.Optional
		attendee.ResponseStatus = a.ResponseStatus
		result = append(result, attendee)
	}
	return result
}
