package calendar

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/calassist/calassist/internal/rest"
	log "github.com/sirupsen/logrus"
)

// maxBodyBytes caps request bodies. Event payloads are a few hundred bytes.
const maxBodyBytes = 64 << 10

type Handler struct {
	service *Service
}

func NewHandler(s *Service) *Handler {
	return &Handler{s}
}

// calendarRef accepts both "calendar" and the older "calendarNameOrId" field.
type calendarRef struct {
	Calendar         string `json:"calendar"`
	CalendarNameOrId string `json:"calendarNameOrId"`
}

func (c calendarRef) reference() string {
	if c.Calendar != "" {
		return c.Calendar
	}
	return c.CalendarNameOrId
}

type AddEventRequest struct {
	calendarRef
	Title       string `json:"title"`
	Description string `json:"description"`
	StartISO    string `json:"start_iso"`
	EndISO      string `json:"end_iso"`
	Location    string `json:"location"`
}

type AddEventResponse struct {
	HtmlLink   string `json:"htmlLink"`
	EventId    string `json:"eventId"`
	CalendarId string `json:"calendarId"`
}

type UpdateEventRequest struct {
	calendarRef
	EventId     string   `json:"event_id"`
	Title       *string  `json:"title"`
	Description *string  `json:"description"`
	Location    *string  `json:"location"`
	StartISO    *string  `json:"start_iso"`
	EndISO      *string  `json:"end_iso"`
	Recurrence  []string `json:"recurrence"`
}

type UpdateEventResponse struct {
	HtmlLink string `json:"htmlLink"`
	EventId  string `json:"eventId"`
}

type DeleteEventRequest struct {
	calendarRef
	EventId string `json:"event_id"`
}

type DeleteEventResponse struct {
	Status  string `json:"status"`
	EventId string `json:"eventId"`
}

type FindEventRequest struct {
	calendarRef
	Title     string `json:"title"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type ListEventsRequest struct {
	calendarRef
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

type EventDTO struct {
	EventId  string    `json:"eventId"`
	Summary  string    `json:"summary"`
	Start    EventTime `json:"start"`
	End      EventTime `json:"end"`
	Location string    `json:"location,omitempty"`
	HtmlLink string    `json:"htmlLink"`
}

type EventsResponse struct {
	Events []EventDTO `json:"events"`
}

type CalendarDTO struct {
	Id      string `json:"id"`
	Summary string `json:"summary"`
}

type CalendarsResponse struct {
	Calendars []CalendarDTO `json:"calendars"`
}

func (h *Handler) AddEvent(w http.ResponseWriter, r *http.Request) {
	var req AddEventRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Title == "" || req.StartISO == "" || req.EndISO == "" {
		rest.WriteError(w, http.StatusBadRequest, "Missing required fields", "title, start_iso and end_iso are required")
		return
	}

	ctx := r.Context()
	calendarId, err := h.service.Resolver.Resolve(ctx, req.reference())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	m := h.service.Mutator
	created, err := m.Create(ctx, calendarId, NewEvent{
		Summary:     req.Title,
		Description: req.Description,
		Location:    req.Location,
		Start:       m.Zoned(req.StartISO),
		End:         m.Zoned(req.EndISO),
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	log.Infof("Created event %s in calendar %s", created.ID, calendarId)

	rest.WriteJSON(w, http.StatusOK, AddEventResponse{
		HtmlLink:   created.HTMLLink,
		EventId:    created.ID,
		CalendarId: calendarId,
	})
}

func (h *Handler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var req UpdateEventRequest
	if !decode(w, r, &req) {
		return
	}
	if req.EventId == "" {
		rest.WriteError(w, http.StatusBadRequest, "Missing required fields", "event_id is required")
		return
	}

	ctx := r.Context()
	calendarId, err := h.service.Resolver.Resolve(ctx, req.reference())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	m := h.service.Mutator
	update := EventUpdate{
		Summary:     req.Title,
		Description: req.Description,
		Location:    req.Location,
		Recurrence:  req.Recurrence,
	}
	if req.StartISO != nil {
		start := m.Zoned(*req.StartISO)
		update.Start = &start
	}
	if req.EndISO != nil {
		end := m.Zoned(*req.EndISO)
		update.End = &end
	}

	updated, err := m.Update(ctx, calendarId, req.EventId, update)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	log.Infof("Updated event %s in calendar %s", updated.ID, calendarId)

	rest.WriteJSON(w, http.StatusOK, UpdateEventResponse{
		HtmlLink: updated.HTMLLink,
		EventId:  updated.ID,
	})
}

func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	var req DeleteEventRequest
	if !decode(w, r, &req) {
		return
	}
	if req.EventId == "" {
		rest.WriteError(w, http.StatusBadRequest, "Missing required fields", "event_id is required")
		return
	}

	ctx := r.Context()
	calendarId, err := h.service.Resolver.Resolve(ctx, req.reference())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	if err := h.service.Mutator.Delete(ctx, calendarId, req.EventId); err != nil {
		writeServiceError(w, err)
		return
	}
	log.Infof("Deleted event %s from calendar %s", req.EventId, calendarId)

	rest.WriteJSON(w, http.StatusOK, DeleteEventResponse{Status: "deleted", EventId: req.EventId})
}

func (h *Handler) FindEvent(w http.ResponseWriter, r *http.Request) {
	var req FindEventRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Title == "" || req.StartDate == "" || req.EndDate == "" {
		rest.WriteError(w, http.StatusBadRequest, "Missing required fields", "title, start_date and end_date are required")
		return
	}

	ctx := r.Context()
	calendarId, err := h.service.Resolver.Resolve(ctx, req.reference())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	events, err := h.service.Locator.Find(ctx, calendarId, req.Title, req.StartDate, req.EndDate)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	log.Tracef("Found %d events for %q", len(events), req.Title)

	rest.WriteJSON(w, http.StatusOK, toEventsResponse(events, false))
}

func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	var req ListEventsRequest
	if !decode(w, r, &req) {
		return
	}
	if req.StartDate == "" || req.EndDate == "" {
		rest.WriteError(w, http.StatusBadRequest, "Missing required fields", "start_date and end_date (YYYY-MM-DD) are required")
		return
	}

	ctx := r.Context()
	calendarId, err := h.service.Resolver.Resolve(ctx, req.reference())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	events, err := h.service.Locator.List(ctx, calendarId, req.StartDate, req.EndDate)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	rest.WriteJSON(w, http.StatusOK, toEventsResponse(events, true))
}

func (h *Handler) ListCalendars(w http.ResponseWriter, r *http.Request) {
	calendars, err := h.service.Resolver.ListCalendars(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}

	dtos := make([]CalendarDTO, 0, len(calendars))
	for _, c := range calendars {
		dtos = append(dtos, CalendarDTO{Id: c.ID, Summary: c.Summary})
	}
	rest.WriteJSON(w, http.StatusOK, CalendarsResponse{Calendars: dtos})
}

func toEventsResponse(events []Event, withLocation bool) EventsResponse {
	dtos := make([]EventDTO, 0, len(events))
	for _, e := range events {
		dto := EventDTO{
			EventId:  e.ID,
			Summary:  e.Summary,
			Start:    e.Start,
			End:      e.End,
			HtmlLink: e.HTMLLink,
		}
		if withLocation {
			dto.Location = e.Location
		}
		dtos = append(dtos, dto)
	}
	return EventsResponse{Events: dtos}
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			rest.WriteError(w, http.StatusRequestEntityTooLarge, "Request body too large", err.Error())
			return false
		}
		rest.WriteError(w, http.StatusBadRequest, "Invalid request body", err.Error())
		return false
	}
	return true
}

// writeServiceError maps local validation errors to 4xx. Remote failures are
// not classified and surface as 500.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidDateFormat):
		rest.WriteError(w, http.StatusBadRequest, "Invalid date format", err.Error())
	case errors.Is(err, ErrInvalidRecurrence):
		rest.WriteError(w, http.StatusBadRequest, "Invalid recurrence", err.Error())
	case errors.Is(err, ErrCalendarNotFound):
		rest.WriteError(w, http.StatusNotFound, "Calendar not found", err.Error())
	default:
		log.Errorf("calendar request failed: %v", err)
		rest.WriteError(w, http.StatusInternalServerError, "internal_error", strings.TrimSpace(err.Error()))
	}
}
