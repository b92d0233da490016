package app

import (
	"net/http"

	"github.com/calassist/calassist/internal/rest"
	"github.com/gorilla/mux"
)

type healthResponse struct {
	Status string `json:"status"`
}

// RegisterRoutes registers all API endpoints.
func RegisterRoutes(r *mux.Router, deps *Dependencies) {
	r.HandleFunc("/health", health).Methods("GET")

	// Calendar
	r.HandleFunc("/add_event", deps.CalendarHandler.AddEvent).Methods("POST")
	r.HandleFunc("/update_event", deps.CalendarHandler.UpdateEvent).Methods("POST")
	r.HandleFunc("/delete_event", deps.CalendarHandler.DeleteEvent).Methods("POST")
	r.HandleFunc("/find_event", deps.CalendarHandler.FindEvent).Methods("POST")
	r.HandleFunc("/list_events", deps.CalendarHandler.ListEvents).Methods("POST")
	r.HandleFunc("/calendars", deps.CalendarHandler.ListCalendars).Methods("GET")

	// Google authorization
	r.HandleFunc("/auth/google/login", deps.GoogleAuthHandler.OAuthLogin).Methods("GET")
	r.HandleFunc("/auth/google/callback", deps.GoogleAuthHandler.OAuthCallback).Methods("GET")
	r.HandleFunc("/auth/google/reset", deps.GoogleAuthHandler.Reset).Methods("POST")
}

func health(w http.ResponseWriter, _ *http.Request) {
	rest.WriteJSON(w, http.StatusOK, healthResponse{Status: "ok"})
}
