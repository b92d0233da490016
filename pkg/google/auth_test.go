package google

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const installedCredentials = `{
	"installed": {
		"client_id": "test-client-id.apps.googleusercontent.com",
		"project_id": "test-project",
		"auth_uri": "https://accounts.google.com/o/oauth2/auth",
		"token_uri": "https://oauth2.googleapis.com/token",
		"client_secret": "test-secret",
		"redirect_uris": ["http://localhost"]
	}
}`

func TestLoadOAuthConfig(t *testing.T) {
	t.Run("should parse installed app credentials", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "credentials.json")
		require.NoError(t, os.WriteFile(path, []byte(installedCredentials), 0o600))

		cfg, err := LoadOAuthConfig(path, "")

		require.NoError(t, err)
		assert.Equal(t, "test-client-id.apps.googleusercontent.com", cfg.ClientID)
		assert.Equal(t, "http://localhost", cfg.RedirectURL)
		assert.Equal(t, []string{"https://www.googleapis.com/auth/calendar"}, cfg.Scopes)
	})

	t.Run("should override the redirect url", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "credentials.json")
		require.NoError(t, os.WriteFile(path, []byte(installedCredentials), 0o600))

		cfg, err := LoadOAuthConfig(path, "https://assistant.example.com/auth/google/callback")

		require.NoError(t, err)
		assert.Equal(t, "https://assistant.example.com/auth/google/callback", cfg.RedirectURL)
	})

	t.Run("should fail on missing or broken files", func(t *testing.T) {
		_, err := LoadOAuthConfig(filepath.Join(t.TempDir(), "missing.json"), "")
		assert.Error(t, err)

		path := filepath.Join(t.TempDir(), "credentials.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"broken":true}`), 0o600))
		_, err = LoadOAuthConfig(path, "")
		assert.Error(t, err)
	})
}

func TestAuth_AuthCodeURL(t *testing.T) {
	service, _, _ := setupServiceTest(t, nil)

	consent, err := url.Parse(service.auth.AuthCodeURL("nonce-1"))

	require.NoError(t, err)
	assert.Equal(t, "offline", consent.Query().Get("access_type"))
	assert.Equal(t, "consent", consent.Query().Get("prompt"))
	assert.Equal(t, "nonce-1", consent.Query().Get("state"))
}

func TestAuth_Authorize(t *testing.T) {
	ctx := context.Background()

	t.Run("should keep the previous refresh token when Google omits it", func(t *testing.T) {
		// given
		service, fake, store := setupServiceTest(t, validToken())
		fake.on(http.MethodPost, "/token", http.StatusOK, `{"access_token":"access-new","token_type":"Bearer","expires_in":3600}`)

		// when
		err := service.auth.Authorize(ctx, "code-1")

		// then
		require.NoError(t, err)
		stored, err := store.Load(ctx)
		require.NoError(t, err)
		assert.Equal(t, "access-new", stored.AccessToken)
		assert.Equal(t, "refresh-1", stored.RefreshToken)
	})

	t.Run("should fail when the exchange is rejected", func(t *testing.T) {
		service, fake, store := setupServiceTest(t, nil)
		fake.on(http.MethodPost, "/token", http.StatusBadRequest, `{"error":"invalid_grant"}`)

		err := service.auth.Authorize(ctx, "bad-code")

		require.Error(t, err)
		_, err = store.Load(ctx)
		assert.ErrorIs(t, err, ErrTokenNotFound)
	})
}

func TestAuthHandler(t *testing.T) {
	t.Run("should redirect to consent and accept the callback once", func(t *testing.T) {
		// given
		service, fake, store := setupServiceTest(t, nil)
		fake.on(http.MethodPost, "/token", http.StatusOK, `{"access_token":"access-web","refresh_token":"refresh-web","token_type":"Bearer","expires_in":3600}`)
		handler := NewAuthHandler(service.auth)

		// when
		login := httptest.NewRecorder()
		handler.OAuthLogin(login, httptest.NewRequest(http.MethodGet, "/auth/google/login", nil))

		// then
		require.Equal(t, http.StatusFound, login.Code)
		consent, err := url.Parse(login.Header().Get("Location"))
		require.NoError(t, err)
		state := consent.Query().Get("state")
		require.NotEmpty(t, state)

		callbackURL := "/auth/google/callback?code=abc&state=" + url.QueryEscape(state)
		callback := httptest.NewRecorder()
		handler.OAuthCallback(callback, httptest.NewRequest(http.MethodGet, callbackURL, nil))
		assert.Equal(t, http.StatusOK, callback.Code)
		stored, err := store.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "refresh-web", stored.RefreshToken)

		replay := httptest.NewRecorder()
		handler.OAuthCallback(replay, httptest.NewRequest(http.MethodGet, callbackURL, nil))
		assert.Equal(t, http.StatusBadRequest, replay.Code)
	})

	t.Run("should reject an unknown state", func(t *testing.T) {
		service, fake, _ := setupServiceTest(t, nil)
		handler := NewAuthHandler(service.auth)

		w := httptest.NewRecorder()
		handler.OAuthCallback(w, httptest.NewRequest(http.MethodGet, "/auth/google/callback?code=abc&state=forged", nil))

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Empty(t, fake.calls(http.MethodPost, "/token"))
	})

	t.Run("should remove the stored token on reset", func(t *testing.T) {
		service, _, store := setupServiceTest(t, validToken())
		handler := NewAuthHandler(service.auth)

		w := httptest.NewRecorder()
		handler.Reset(w, httptest.NewRequest(http.MethodPost, "/auth/google/reset", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		_, err := store.Load(context.Background())
		assert.ErrorIs(t, err, ErrTokenNotFound)
		_, err = service.auth.HTTPClient(context.Background())
		assert.ErrorIs(t, err, ErrUnauthenticated)
	})
}

func TestAuthorizeInteractive(t *testing.T) {
	t.Run("should exchange the pasted code", func(t *testing.T) {
		service, fake, store := setupServiceTest(t, nil)
		fake.on(http.MethodPost, "/token", http.StatusOK, `{"access_token":"access-cli","refresh_token":"refresh-cli","token_type":"Bearer","expires_in":3600}`)
		var out bytes.Buffer

		err := AuthorizeInteractive(context.Background(), service.auth, strings.NewReader("  code-1 \n"), &out)

		require.NoError(t, err)
		assert.Contains(t, out.String(), "access_type=offline")
		stored, err := store.Load(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "access-cli", stored.AccessToken)
	})

	t.Run("should fail without a code", func(t *testing.T) {
		service, _, _ := setupServiceTest(t, nil)

		err := AuthorizeInteractive(context.Background(), service.auth, strings.NewReader("\n"), &bytes.Buffer{})

		assert.Error(t, err)
	})
}
