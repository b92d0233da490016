package app

import (
	"context"
	"fmt"

	"github.com/calassist/calassist/internal/config"
	"github.com/calassist/calassist/internal/database"
	"github.com/calassist/calassist/internal/utils"
	"github.com/calassist/calassist/pkg/calendar"
	"github.com/calassist/calassist/pkg/google"
	"github.com/jackc/pgx/v5/pgxpool"
	log "github.com/sirupsen/logrus"
)

// Dependencies holds all services and handlers for the application.
type Dependencies struct {
	DB    *pgxpool.Pool
	Clock utils.Clock

	TokenStore        google.TokenStore
	GoogleAuth        *google.Auth
	GoogleService     *google.Service
	GoogleAuthHandler *google.AuthHandler

	CalendarService *calendar.Service
	CalendarHandler *calendar.Handler
}

// BuildDependencies opens the token store selected in cfg and wires the
// Google client and calendar services on top of it.
func BuildDependencies(cfg config.Application) (*Dependencies, error) {
	deps := &Dependencies{Clock: &utils.SystemClock{}}

	switch cfg.Google.TokenStore {
	case config.TokenStoreFile, "":
		deps.TokenStore = google.NewFileTokenStore(cfg.Google.TokenFile)
	case config.TokenStorePostgres:
		db, err := database.Open(context.Background(), cfg.Database)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(cfg.Database); err != nil {
			db.Close()
			return nil, err
		}
		deps.DB = db
		deps.TokenStore = google.NewTokenRepository(db, cfg.Google.Account, deps.Clock)
	default:
		return nil, fmt.Errorf("unknown token store %q, use %q or %q", cfg.Google.TokenStore, config.TokenStoreFile, config.TokenStorePostgres)
	}
	log.Debugf("Using %s token store", cfg.Google.TokenStore)

	oauthConfig, err := google.LoadOAuthConfig(cfg.Google.CredentialsFile, redirectURL(cfg))
	if err != nil {
		deps.Close()
		return nil, err
	}
	deps.GoogleAuth = google.NewAuth(oauthConfig, deps.TokenStore, cfg.Google.Timeout)
	deps.GoogleService = google.NewService(deps.GoogleAuth)
	deps.GoogleAuthHandler = google.NewAuthHandler(deps.GoogleAuth)

	deps.CalendarService = calendar.NewService(deps.GoogleService, CalendarSettings(cfg))
	deps.CalendarHandler = calendar.NewHandler(deps.CalendarService)

	return deps, nil
}

// Close releases the database pool when one was opened.
func (d *Dependencies) Close() {
	if d.DB != nil {
		d.DB.Close()
	}
}

func CalendarSettings(cfg config.Application) calendar.Settings {
	return calendar.Settings{
		DefaultCalendarName: cfg.Calendar.DefaultName,
		TimeZone:            cfg.Calendar.TimeZone,
		Strict:              cfg.Calendar.Strict,
		LocalSearchWindow:   cfg.Calendar.LocalSearchWindow,
	}
}

// redirectURL keeps the registered redirect for the console flow and points
// the web flow at our own callback when a public host is configured.
func redirectURL(cfg config.Application) string {
	if cfg.Server.Host == "" {
		return ""
	}
	return cfg.Server.Host + "/auth/google/callback"
}
