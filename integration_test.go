package main

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markb/livedocs/internal/db"
	"github.com/markb/livedocs/internal/identity"
	"github.com/markb/livedocs/internal/identity/hosted"
	"github.com/markb/livedocs/internal/identity/hosted/hostedtest"
	"github.com/markb/livedocs/internal/server"
)

const baseURL = "http://livedocs.test"

type browser struct {
	t       *testing.T
	handler http.Handler
	session string
}

func (b *browser) do(req *http.Request) *httptest.ResponseRecorder {
	b.t.Helper()
	if b.session != "" {
		req.AddCookie(&http.Cookie{Name: identity.SessionCookieName, Value: b.session})
	}
	rec := httptest.NewRecorder()
	b.handler.ServeHTTP(rec, req)
	for _, c := range rec.Result().Cookies() {
		if c.Name == identity.SessionCookieName {
			b.session = c.Value
			if c.MaxAge < 0 {
				b.session = ""
			}
		}
	}
	return rec
}

func (b *browser) get(target string) *httptest.ResponseRecorder {
	return b.do(httptest.NewRequest(http.MethodGet, target, nil))
}

func (b *browser) post(target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return b.do(req)
}

func setup(t *testing.T, verifyLocally bool) (*browser, *hostedtest.Provider) {
	t.Helper()
	provider := hostedtest.New()
	t.Cleanup(provider.Close)

	database, err := db.New(t.TempDir() + "/test.db")
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })
	require.NoError(t, database.RunMigrations())

	cfg := hosted.Config{
		BaseURL:      provider.URL,
		SecretKey:    hostedtest.SecretKey,
		ClientID:     hostedtest.ClientID,
		ClientSecret: hostedtest.ClientSecret,
	}
	if verifyLocally {
		cfg.PublicKeyPEM = provider.PublicKeyPEM()
	}
	idp, err := hosted.New(cfg)
	require.NoError(t, err)

	srv, err := server.New(database, idp, server.Config{BaseURL: baseURL})
	require.NoError(t, err)
	return &browser{t: t, handler: srv.Router()}, provider
}

func TestFullCredentialFlow(t *testing.T) {
	for _, local := range []bool{false, true} {
		name := "remote verify"
		if local {
			name = "local verify"
		}
		t.Run(name, func(t *testing.T) {
			b, _ := setup(t, local)

			// Protected endpoints refuse anonymous callers.
			rec := b.get("/api/auth/google/callback")
			require.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.JSONEq(t, `{"error":"Unauthorized"}`, rec.Body.String())

			// Sign up
			rec = b.post("/modern-sign-up", url.Values{
				"First Name": {"Ada"},
				"Last Name":  {"Lovelace"},
				"Email":      {"ada@example.com"},
				"Password":   {"hunter22"},
			})
			require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
			assert.Equal(t, "/", rec.Header().Get("Location"))
			require.NotEmpty(t, b.session)

			rec = b.get("/")
			assert.Contains(t, rec.Body.String(), "Signed in as")

			rec = b.get("/api/auth/google/callback")
			assert.Equal(t, http.StatusTemporaryRedirect, rec.Code)
			assert.Equal(t, "/", rec.Header().Get("Location"))

			// Sign out and back in
			rec = b.post("/sign-out", url.Values{"return_to": {"/modern-sign-in"}})
			require.Equal(t, http.StatusSeeOther, rec.Code)
			assert.Equal(t, "/modern-sign-in", rec.Header().Get("Location"))
			assert.Empty(t, b.session)

			rec = b.post("/modern-sign-in", url.Values{"Email": {"ada@example.com"}, "Password": {"wrong-password"}})
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, rec.Body.String(), "Password is incorrect. Try again, or use another method.")
			assert.Empty(t, b.session)

			rec = b.post("/modern-sign-in", url.Values{"Email": {"ada@example.com"}, "Password": {"hunter22"}})
			require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
			require.NotEmpty(t, b.session)

			rec = b.get("/api/sentry-example-api")
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestSignUpNeedsVerification(t *testing.T) {
	b, provider := setup(t, false)
	provider.SignUpStatus = identity.StatusMissingRequirements

	rec := b.post("/modern-sign-up", url.Values{
		"First Name": {"Ada"},
		"Last Name":  {"Lovelace"},
		"Email":      {"ada@example.com"},
		"Password":   {"hunter22"},
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), "Something went wrong. Please try again.")
	assert.Empty(t, b.session)
}

func TestFullGoogleFlow(t *testing.T) {
	b, provider := setup(t, true)

	rec := b.post("/modern-sign-up/oauth", nil)
	require.Equal(t, http.StatusSeeOther, rec.Code, rec.Body.String())
	authorize := rec.Header().Get("Location")
	require.True(t, strings.HasPrefix(authorize, provider.URL+"/oauth/authorize?"), authorize)

	callback, err := provider.Consent(authorize)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(callback, baseURL+"/sso-callback?"), callback)

	rec = b.get(strings.TrimPrefix(callback, baseURL))
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	assert.Equal(t, "/", rec.Header().Get("Location"))
	require.NotEmpty(t, b.session)

	// A second click while signed in goes straight home.
	rec = b.post("/modern-sign-in/oauth", nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	// Replaying the callback fails: the flow was consumed.
	rec = b.get(strings.TrimPrefix(callback, baseURL))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Authentication Error")
}

func TestRouteGuardRedirectsPages(t *testing.T) {
	b, _ := setup(t, false)
	rec := b.get("/documents/42")
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/modern-sign-in?redirect_url=%2Fdocuments%2F42", rec.Header().Get("Location"))
}
