package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
)

var ErrUnauthenticated = errors.New("google authorization is required, run `calassist auth` or open /auth/google/login")

// LoadOAuthConfig reads a client secrets file downloaded from the Google
// Cloud console. A non-empty redirectURL replaces the registered one.
func LoadOAuthConfig(credentialsFile, redirectURL string) (*oauth2.Config, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("unable to read client secret file: %w", err)
	}
	cfg, err := google.ConfigFromJSON(data, gcal.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("unable to parse client secret file: %w", err)
	}
	if redirectURL != "" {
		cfg.RedirectURL = redirectURL
	}
	return cfg, nil
}

// Auth hands out HTTP clients authorized with the stored token. Refreshed
// tokens are written back to the store.
type Auth struct {
	oauthConfig *oauth2.Config
	store       TokenStore
	timeout     time.Duration
	transport   http.RoundTripper

	mu     sync.Mutex
	source oauth2.TokenSource
}

func NewAuth(oauthConfig *oauth2.Config, store TokenStore, timeout time.Duration) *Auth {
	return &Auth{oauthConfig: oauthConfig, store: store, timeout: timeout}
}

// WithTransport sets the round tripper used for API calls and token refreshes.
func (a *Auth) WithTransport(transport http.RoundTripper) *Auth {
	a.transport = transport
	return a
}

// HTTPClient returns a client that signs every request with the current
// token. It returns ErrUnauthenticated when no token has been stored yet.
func (a *Auth) HTTPClient(ctx context.Context) (*http.Client, error) {
	source, err := a.tokenSource(ctx)
	if err != nil {
		return nil, err
	}
	return &http.Client{
		Transport: &oauth2.Transport{Source: source, Base: a.transport},
		Timeout:   a.timeout,
	}, nil
}

// Reauthenticate reloads the token from the store and refreshes it before
// its next use. It is meant for access tokens Google has rejected.
func (a *Auth) Reauthenticate(ctx context.Context) error {
	return a.reload(ctx, true)
}

func (a *Auth) reload(ctx context.Context, forceRefresh bool) error {
	a.mu.Lock()
	a.source = nil
	a.mu.Unlock()

	_, err := a.load(ctx, forceRefresh)
	return err
}

// AuthCodeURL is the consent page URL. Offline access with forced approval
// makes Google issue a refresh token every time.
func (a *Auth) AuthCodeURL(state string) string {
	return a.oauthConfig.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Authorize exchanges an authorization code and stores the resulting token.
func (a *Auth) Authorize(ctx context.Context, code string) error {
	token, err := a.oauthConfig.Exchange(a.refreshContext(ctx), code)
	if err != nil {
		return fmt.Errorf("unable to exchange code for token: %w", err)
	}

	if token.RefreshToken == "" {
		previous, err := a.store.Load(ctx)
		if err == nil {
			token.RefreshToken = previous.RefreshToken
		} else if !errors.Is(err, ErrTokenNotFound) {
			log.Warnf("unable to read previous token: %v", err)
		}
	}

	if err := a.store.Save(ctx, token); err != nil {
		return err
	}
	return a.reload(ctx, false)
}

// Reset forgets the stored token.
func (a *Auth) Reset(ctx context.Context) error {
	a.mu.Lock()
	a.source = nil
	a.mu.Unlock()
	return a.store.Delete(ctx)
}

func (a *Auth) tokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	return a.load(ctx, false)
}

func (a *Auth) load(ctx context.Context, forceRefresh bool) (oauth2.TokenSource, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.source != nil {
		return a.source, nil
	}

	token, err := a.store.Load(ctx)
	if errors.Is(err, ErrTokenNotFound) {
		log.Debug("no oauth token stored, authorization is required")
		return nil, ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	if forceRefresh {
		if token.RefreshToken == "" {
			return nil, ErrUnauthenticated
		}
		rejected := *token
		rejected.Expiry = time.Now().Add(-time.Minute)
		token = &rejected
		log.Debug("refreshing rejected oauth token")
	}

	// refreshes outlive the request that triggered them
	refreshing := a.oauthConfig.TokenSource(a.refreshContext(context.Background()), token)
	a.source = oauth2.ReuseTokenSource(token, &persistingTokenSource{
		base:  refreshing,
		store: a.store,
		last:  token,
	})
	return a.source, nil
}

func (a *Auth) refreshContext(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Transport: a.transport, Timeout: a.timeout})
}

// persistingTokenSource saves every token that differs from the last one it saw.
type persistingTokenSource struct {
	base  oauth2.TokenSource
	store TokenStore

	mu   sync.Mutex
	last *oauth2.Token
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last != nil && token.AccessToken == s.last.AccessToken {
		return token, nil
	}
	if token.RefreshToken == "" && s.last != nil {
		token.RefreshToken = s.last.RefreshToken
	}
	if err := s.store.Save(context.Background(), token); err != nil {
		log.Warnf("unable to persist refreshed oauth token: %v", err)
	} else {
		log.Debug("persisted refreshed oauth token")
	}
	s.last = token
	return token, nil
}
