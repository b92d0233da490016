package google

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/calassist/calassist/pkg/calendar"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type rewriteTransport struct {
	Transport http.RoundTripper
	Host      string
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.URL.Scheme = "http"
	req.URL.Host = t.Host
	return t.Transport.RoundTrip(req)
}

type recordedRequest struct {
	Method string
	Path   string
	Query  map[string][]string
	Auth   string
	Body   map[string]any
}

// fakeGoogle serves canned responses by "METHOD path" and records every request.
type fakeGoogle struct {
	mu        sync.Mutex
	requests  []recordedRequest
	responses map[string][]fakeResponse
}

type fakeResponse struct {
	status int
	body   string
}

func (f *fakeGoogle) on(method, path string, status int, body string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := method + " " + path
	f.responses[key] = append(f.responses[key], fakeResponse{status: status, body: body})
}

func (f *fakeGoogle) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	recorded := recordedRequest{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Auth: r.Header.Get("Authorization")}
	if data, _ := io.ReadAll(r.Body); len(data) > 0 && strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		_ = json.Unmarshal(data, &recorded.Body)
	}
	f.requests = append(f.requests, recorded)

	key := r.Method + " " + r.URL.Path
	queue := f.responses[key]
	if len(queue) == 0 {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
		return
	}
	response := queue[0]
	if len(queue) > 1 {
		f.responses[key] = queue[1:]
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(response.status)
	_, _ = w.Write([]byte(response.body))
}

func (f *fakeGoogle) calls(method, path string) []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	var result []recordedRequest
	for _, r := range f.requests {
		if r.Method == method && r.Path == path {
			result = append(result, r)
		}
	}
	return result
}

func setupServiceTest(t *testing.T, token *oauth2.Token) (*Service, *fakeGoogle, *FileTokenStore) {
	fake := &fakeGoogle{responses: map[string][]fakeResponse{}}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	store := NewFileTokenStore(filepath.Join(t.TempDir(), "token.json"))
	if token != nil {
		require.NoError(t, store.Save(context.Background(), token))
	}
	oauthConfig := &oauth2.Config{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Endpoint:     oauth2.Endpoint{AuthURL: server.URL + "/auth", TokenURL: server.URL + "/token"},
	}
	auth := NewAuth(oauthConfig, store, 5*time.Second).WithTransport(&rewriteTransport{
		Transport: http.DefaultTransport,
		Host:      strings.TrimPrefix(server.URL, "http://"),
	})
	return NewService(auth), fake, store
}

func validToken() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour),
	}
}

const eventsPath = "/calendar/v3/calendars/primary/events"

func TestService_ListEvents(t *testing.T) {
	t.Run("should send the window and text filter", func(t *testing.T) {
		// given
		service, fake, _ := setupServiceTest(t, validToken())
		fake.on(http.MethodGet, eventsPath, http.StatusOK, `{"items":[
			{"id":"evt-1","summary":"Dentist","start":{"dateTime":"2025-01-10T09:00:00-05:00"},"end":{"dateTime":"2025-01-10T09:30:00-05:00"},"htmlLink":"https://calendar.google.com/evt-1"}
		]}`)

		// when
		events, err := service.ListEvents(context.Background(), calendar.EventQuery{
			CalendarID: "primary",
			TimeMin:    "2025-01-10T00:00:00Z",
			TimeMax:    "2025-01-11T00:00:00Z",
			Text:       "Dentist",
		})

		// then
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "evt-1", events[0].ID)
		assert.Equal(t, "2025-01-10T09:00:00-05:00", events[0].Start.DateTime)
		assert.Equal(t, "https://calendar.google.com/evt-1", events[0].HTMLLink)

		requests := fake.calls(http.MethodGet, eventsPath)
		require.Len(t, requests, 1)
		query := requests[0].Query
		assert.Equal(t, []string{"2025-01-10T00:00:00Z"}, query["timeMin"])
		assert.Equal(t, []string{"2025-01-11T00:00:00Z"}, query["timeMax"])
		assert.Equal(t, []string{"true"}, query["singleEvents"])
		assert.Equal(t, []string{"startTime"}, query["orderBy"])
		assert.Equal(t, []string{"Dentist"}, query["q"])
		assert.Equal(t, "Bearer access-1", requests[0].Auth)
	})

	t.Run("should follow result pages", func(t *testing.T) {
		service, fake, _ := setupServiceTest(t, validToken())
		fake.on(http.MethodGet, eventsPath, http.StatusOK, `{"items":[{"id":"a"}],"nextPageToken":"p2"}`)
		fake.on(http.MethodGet, eventsPath, http.StatusOK, `{"items":[{"id":"b"}]}`)

		events, err := service.ListEvents(context.Background(), calendar.EventQuery{CalendarID: "primary"})

		require.NoError(t, err)
		require.Len(t, events, 2)
		assert.Equal(t, "b", events[1].ID)
		requests := fake.calls(http.MethodGet, eventsPath)
		assert.Equal(t, []string{"p2"}, requests[1].Query["pageToken"])
	})

	t.Run("should refresh a rejected token and repeat the call once", func(t *testing.T) {
		// given
		service, fake, store := setupServiceTest(t, validToken())
		fake.on(http.MethodGet, eventsPath, http.StatusUnauthorized, `{"error":{"code":401,"message":"Invalid Credentials"}}`)
		fake.on(http.MethodGet, eventsPath, http.StatusOK, `{"items":[]}`)
		fake.on(http.MethodPost, "/token", http.StatusOK, `{"access_token":"access-2","token_type":"Bearer","expires_in":3600}`)

		// when
		events, err := service.ListEvents(context.Background(), calendar.EventQuery{CalendarID: "primary"})

		// then
		require.NoError(t, err)
		assert.Empty(t, events)
		requests := fake.calls(http.MethodGet, eventsPath)
		require.Len(t, requests, 2)
		assert.Equal(t, "Bearer access-1", requests[0].Auth)
		assert.Equal(t, "Bearer access-2", requests[1].Auth)
		assert.Len(t, fake.calls(http.MethodPost, "/token"), 1)
		stored, err := store.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "access-2", stored.AccessToken)
		assert.Equal(t, "refresh-1", stored.RefreshToken)
	})

	t.Run("should require authorization when a rejected token cannot be refreshed", func(t *testing.T) {
		token := validToken()
		token.RefreshToken = ""
		service, fake, _ := setupServiceTest(t, token)
		fake.on(http.MethodGet, eventsPath, http.StatusUnauthorized, `{"error":{"code":401,"message":"Invalid Credentials"}}`)

		_, err := service.ListEvents(context.Background(), calendar.EventQuery{CalendarID: "primary"})

		assert.ErrorIs(t, err, ErrUnauthenticated)
		assert.Len(t, fake.calls(http.MethodGet, eventsPath), 1)
	})

	t.Run("should give up after the second 401", func(t *testing.T) {
		service, fake, _ := setupServiceTest(t, validToken())
		fake.on(http.MethodGet, eventsPath, http.StatusUnauthorized, `{"error":{"code":401,"message":"Invalid Credentials"}}`)
		fake.on(http.MethodPost, "/token", http.StatusOK, `{"access_token":"access-2","token_type":"Bearer","expires_in":3600}`)

		_, err := service.ListEvents(context.Background(), calendar.EventQuery{CalendarID: "primary"})

		require.Error(t, err)
		assert.True(t, isUnauthorized(err))
		assert.Len(t, fake.calls(http.MethodGet, eventsPath), 2)
	})

	t.Run("should require a stored token", func(t *testing.T) {
		service, fake, _ := setupServiceTest(t, nil)

		_, err := service.ListEvents(context.Background(), calendar.EventQuery{CalendarID: "primary"})

		assert.ErrorIs(t, err, ErrUnauthenticated)
		assert.Empty(t, fake.calls(http.MethodGet, eventsPath))
	})
}

func TestService_RefreshesExpiredToken(t *testing.T) {
	t.Run("should persist the refreshed token and keep the refresh token", func(t *testing.T) {
		// given
		expired := validToken()
		expired.Expiry = time.Now().Add(-time.Hour)
		service, fake, store := setupServiceTest(t, expired)
		fake.on(http.MethodPost, "/token", http.StatusOK, `{"access_token":"access-2","token_type":"Bearer","expires_in":3600}`)
		fake.on(http.MethodGet, eventsPath, http.StatusOK, `{"items":[]}`)

		// when
		_, err := service.ListEvents(context.Background(), calendar.EventQuery{CalendarID: "primary"})

		// then
		require.NoError(t, err)
		assert.Equal(t, "Bearer access-2", fake.calls(http.MethodGet, eventsPath)[0].Auth)
		stored, err := store.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "access-2", stored.AccessToken)
		assert.Equal(t, "refresh-1", stored.RefreshToken)
	})
}

func TestService_ListCalendars(t *testing.T) {
	t.Run("should pass the page token and return the next one", func(t *testing.T) {
		service, fake, _ := setupServiceTest(t, validToken())
		fake.on(http.MethodGet, "/calendar/v3/users/me/calendarList", http.StatusOK,
			`{"items":[{"id":"family@group.calendar.google.com","summary":"Family Calendar"}],"nextPageToken":"next"}`)

		page, err := service.ListCalendars(context.Background(), "token-1")

		require.NoError(t, err)
		assert.Equal(t, calendar.CalendarPage{
			Items:         []calendar.CalendarEntry{{ID: "family@group.calendar.google.com", Summary: "Family Calendar"}},
			NextPageToken: "next",
		}, page)
		requests := fake.calls(http.MethodGet, "/calendar/v3/users/me/calendarList")
		assert.Equal(t, []string{"token-1"}, requests[0].Query["pageToken"])
	})
}

func TestService_InsertEvent(t *testing.T) {
	t.Run("should omit an empty location and keep the wall clock time zone", func(t *testing.T) {
		service, fake, _ := setupServiceTest(t, validToken())
		fake.on(http.MethodPost, eventsPath, http.StatusOK, `{"id":"evt-9","htmlLink":"https://calendar.google.com/evt-9"}`)
		mutator := calendar.NewMutator(service, calendar.Settings{TimeZone: "America/Toronto"})

		created, err := mutator.Create(context.Background(), "primary", calendar.NewEvent{
			Summary: "Dentist",
			Start:   mutator.Zoned("2025-03-01T09:00:00"),
			End:     mutator.Zoned("2025-03-01T09:30:00"),
		})

		require.NoError(t, err)
		assert.Equal(t, "evt-9", created.ID)
		assert.Equal(t, "https://calendar.google.com/evt-9", created.HTMLLink)
		body := fake.calls(http.MethodPost, eventsPath)[0].Body
		assert.NotContains(t, body, "location")
		assert.Equal(t, "Dentist", body["summary"])
		assert.Equal(t, map[string]any{"dateTime": "2025-03-01T09:00:00", "timeZone": "America/Toronto"}, body["start"])
	})
}

func TestService_UpdateEvent(t *testing.T) {
	t.Run("should write back fields it does not model", func(t *testing.T) {
		// given
		service, fake, _ := setupServiceTest(t, validToken())
		const eventPath = eventsPath + "/evt-1"
		fake.on(http.MethodGet, eventPath, http.StatusOK, `{
			"id":"evt-1","summary":"Groceries","location":"Corner store","colorId":"5",
			"start":{"dateTime":"2025-03-01T18:00:00","timeZone":"America/Toronto"},
			"end":{"dateTime":"2025-03-01T19:00:00","timeZone":"America/Toronto"},
			"reminders":{"useDefault":false,"overrides":[{"method":"popup","minutes":0}]},
			"attendees":[{"email":"partner@example.com","comment":"bring bags"}]
		}`)
		fake.on(http.MethodPut, eventPath, http.StatusOK, `{"id":"evt-1","summary":"Supermarket","htmlLink":"https://calendar.google.com/evt-1"}`)
		mutator := calendar.NewMutator(service, calendar.Settings{TimeZone: "America/Toronto"})
		title := "Supermarket"

		// when
		updated, err := mutator.Update(context.Background(), "primary", "evt-1", calendar.EventUpdate{Summary: &title})

		// then
		require.NoError(t, err)
		assert.Equal(t, "Supermarket", updated.Summary)
		body := fake.calls(http.MethodPut, eventPath)[0].Body
		assert.Equal(t, "Supermarket", body["summary"])
		assert.Equal(t, "Corner store", body["location"])
		assert.Equal(t, "5", body["colorId"])
		assert.Equal(t, map[string]any{
			"useDefault": false,
			"overrides":  []any{map[string]any{"method": "popup", "minutes": float64(0)}},
		}, body["reminders"])
		attendees := body["attendees"].([]any)
		require.Len(t, attendees, 1)
		assert.Equal(t, "bring bags", attendees[0].(map[string]any)["comment"])
	})
}

func TestService_DeleteEvent(t *testing.T) {
	t.Run("should surface a missing event", func(t *testing.T) {
		service, fake, _ := setupServiceTest(t, validToken())

		err := service.DeleteEvent(context.Background(), "primary", "missing")

		require.Error(t, err)
		assert.Len(t, fake.calls(http.MethodDelete, eventsPath+"/missing"), 1)
	})

	t.Run("should delete", func(t *testing.T) {
		service, fake, _ := setupServiceTest(t, validToken())
		fake.on(http.MethodDelete, eventsPath+"/evt-1", http.StatusNoContent, "")

		err := service.DeleteEvent(context.Background(), "primary", "evt-1")

		assert.NoError(t, err)
	})
}
