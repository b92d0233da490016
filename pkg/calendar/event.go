package calendar

// EventTime is either a timed instant (DateTime) or an all-day date (Date).
// DateTime is kept as the string the remote service understands so local
// wall-clock values paired with TimeZone survive unchanged.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

type ReminderOverride struct {
	Method  string `json:"method"`
	Minutes int64  `json:"minutes"`
}

type Reminders struct {
	UseDefault bool               `json:"useDefault"`
	Overrides  []ReminderOverride `json:"overrides,omitempty"`
}

type Attendee struct {
	Email          string `json:"email"`
	DisplayName    string `json:"displayName,omitempty"`
	Optional       bool   `json:"optional,omitempty"`
	ResponseStatus string `json:"responseStatus,omitempty"`
}

type Event struct {
	ID          string
	Summary     string
	Description string
	Location    string
	Start       EventTime
	End         EventTime
	HTMLLink    string
	Reminders   *Reminders
	Attendees   []Attendee
	Recurrence  []string

	// Native is the remote record this event was decoded from. Remote
	// implementations use it on update so fields this package does not model
	// are written back untouched.
	Native any
}

// NewEvent holds the caller-supplied fields of an event to create.
type NewEvent struct {
	Summary     string
	Description string
	Location    string
	Start       EventTime
	End         EventTime
}

// EventUpdate lists the fields to overlay on an existing event. A nil field is
// left as it is on the remote record.
type EventUpdate struct {
	Summary     *string
	Description *string
	Location    *string
	Start       *EventTime
	End         *EventTime
	Reminders   *Reminders
	Attendees   []Attendee
	Recurrence  []string
}

// IsEmpty reports whether the update carries no field at all.
func (u EventUpdate) IsEmpty() bool {
	return u.Summary == nil && u.Description == nil && u.Location == nil &&
		u.Start == nil && u.End == nil && u.Reminders == nil &&
		u.Attendees == nil && u.Recurrence == nil
}

// ApplyTo overlays the supplied fields on event and returns the merged copy.
func (u EventUpdate) ApplyTo(event Event) Event {
	if u.Summary != nil {
		event.Summary = *u.Summary
	}
	if u.Description != nil {
		event.Description = *u.Description
	}
	if u.Location != nil {
		event.Location = *u.Location
	}
	if u.Start != nil {
		event.Start = *u.Start
	}
	if u.End != nil {
		event.End = *u.End
	}
	if u.Reminders != nil {
		reminders := *u.Reminders
		event.Reminders = &reminders
	}
	if u.Attendees != nil {
		event.Attendees = append([]Attendee(nil), u.Attendees...)
	}
	if u.Recurrence != nil {
		event.Recurrence = append([]string(nil), u.Recurrence...)
	}
	return event
}
