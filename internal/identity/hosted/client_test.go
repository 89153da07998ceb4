package hosted

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/markb/livedocs/internal/identity"
	"github.com/markb/livedocs/internal/identity/hosted/hostedtest"
)

func setupProvider(t *testing.T, withPublicKey bool) (*hostedtest.Provider, *Client) {
	t.Helper()
	p := hostedtest.New()
	t.Cleanup(p.Close)

	cfg := Config{
		BaseURL:      p.URL,
		SecretKey:    hostedtest.SecretKey,
		ClientID:     hostedtest.ClientID,
		ClientSecret: hostedtest.ClientSecret,
		Timeout:      5 * time.Second,
	}
	if withPublicKey {
		cfg.PublicKeyPEM = p.PublicKeyPEM()
	}
	c, err := New(cfg)
	require.NoError(t, err)
	return p, c
}

func TestNewValidatesConfig(t *testing.T) {
	_, err := New(Config{})
	assert.Error(t, err)

	_, err = New(Config{BaseURL: "ftp://auth.example.com"})
	assert.Error(t, err)

	_, err = New(Config{BaseURL: "https://auth.example.com", PublicKeyPEM: "not a key"})
	assert.Error(t, err)

	c, err := New(Config{BaseURL: "https://auth.example.com/"})
	require.NoError(t, err)
	assert.Equal(t, DefaultTimeout, c.httpClient.Timeout)
	assert.Equal(t, "https://auth.example.com/oauth/token", c.oauth.Endpoint.TokenURL)
}

func TestSignInAndActivate(t *testing.T) {
	p, c := setupProvider(t, true)
	p.AddUser("ada@example.com", "secret123")
	ctx := context.Background()

	attempt, err := c.CreateSession(ctx, identity.Credentials{Identifier: "ada@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.True(t, attempt.Complete())
	require.NotEmpty(t, attempt.CreatedSessionID)

	active, err := c.ActivateSession(ctx, attempt.CreatedSessionID)
	require.NoError(t, err)
	assert.Equal(t, attempt.CreatedSessionID, active.SessionID)
	assert.NotEmpty(t, active.Token)
	assert.True(t, active.ExpiresAt.After(time.Now()))

	s, err := c.CheckSession(ctx, active.Token)
	require.NoError(t, err)
	assert.Equal(t, attempt.CreatedSessionID, s.ID)
}

func TestSignInWrongPassword(t *testing.T) {
	p, c := setupProvider(t, true)
	p.AddUser("ada@example.com", "secret123")

	_, err := c.CreateSession(context.Background(), identity.Credentials{Identifier: "ada@example.com", Password: "nope"})
	require.Error(t, err)
	assert.Equal(t, "Password is incorrect. Try again, or use another method.", identity.FirstMessage(err))

	var apiErr *identity.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "form_password_incorrect", apiErr.Errors[0].Code)
}

func TestSignUpStatuses(t *testing.T) {
	p, c := setupProvider(t, true)
	ctx := context.Background()

	attempt, err := c.CreateAccount(ctx, identity.Registration{FirstName: "Ada", LastName: "Lovelace", EmailAddress: "ada@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.True(t, attempt.Complete())

	_, err = c.CreateAccount(ctx, identity.Registration{EmailAddress: "ada@example.com", Password: "secret123"})
	require.Error(t, err)
	assert.Equal(t, "That email address is taken. Please try another.", identity.FirstMessage(err))

	p.SignUpStatus = identity.StatusMissingRequirements
	attempt, err = c.CreateAccount(ctx, identity.Registration{EmailAddress: "grace@example.com", Password: "secret123"})
	require.NoError(t, err)
	assert.False(t, attempt.Complete())
	assert.Equal(t, identity.StatusMissingRequirements, attempt.Status)
}

func TestCheckSessionLocalVerification(t *testing.T) {
	p, c := setupProvider(t, true)
	ctx := context.Background()

	_, err := c.CheckSession(ctx, "")
	assert.ErrorIs(t, err, identity.ErrNoSession)

	_, err = c.CheckSession(ctx, "not-a-jwt")
	assert.ErrorIs(t, err, identity.ErrNoSession)

	token := p.IssueToken("user_1")
	s, err := c.CheckSession(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user_1", s.UserID)

	c.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = c.CheckSession(ctx, token)
	assert.ErrorIs(t, err, identity.ErrNoSession)
}

func TestCheckSessionRemoteVerification(t *testing.T) {
	p, c := setupProvider(t, false)
	ctx := context.Background()

	token := p.IssueToken("user_1")
	s, err := c.CheckSession(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "user_1", s.UserID)

	require.NoError(t, c.SignOut(ctx, token))
	assert.True(t, p.Revoked(s.ID))

	_, err = c.CheckSession(ctx, token)
	assert.ErrorIs(t, err, identity.ErrNoSession)
}

func TestSignOutWithoutSession(t *testing.T) {
	_, c := setupProvider(t, true)
	err := c.SignOut(context.Background(), "garbage")
	assert.ErrorIs(t, err, identity.ErrNoSession)
}

func TestWrongSecretKey(t *testing.T) {
	p, _ := setupProvider(t, true)
	c, err := New(Config{BaseURL: p.URL, SecretKey: "wrong"})
	require.NoError(t, err)

	_, err = c.CreateSession(context.Background(), identity.Credentials{Identifier: "a@b.co", Password: "secret123"})
	var apiErr *identity.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
}

func TestInitiateRedirect(t *testing.T) {
	_, c := setupProvider(t, true)

	redirect, err := c.InitiateRedirect(context.Background(), identity.RedirectRequest{
		Strategy:            identity.StrategyGoogle,
		Intent:              identity.IntentSignIn,
		Origin:              "http://localhost:8080",
		RedirectURL:         "/sso-callback",
		RedirectURLComplete: "/",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, redirect.State)
	assert.NotEmpty(t, redirect.Verifier)

	u, err := url.Parse(redirect.URL)
	require.NoError(t, err)
	assert.Equal(t, "/oauth/authorize", u.Path)

	q := u.Query()
	assert.Equal(t, redirect.State, q.Get("state"))
	assert.Equal(t, "http://localhost:8080/sso-callback", q.Get("redirect_uri"))
	assert.Equal(t, "http://localhost:8080/", q.Get("redirect_url_complete"))
	assert.Equal(t, "oauth_google", q.Get("strategy"))
	assert.Equal(t, "sign_in", q.Get("intent"))
	assert.Equal(t, "S256", q.Get("code_challenge_method"))
	assert.Equal(t, CodeChallengeS256(redirect.Verifier), q.Get("code_challenge"))
}

func TestInitiateRedirectAlreadySignedIn(t *testing.T) {
	p, c := setupProvider(t, true)
	token := p.IssueToken("user_1")

	_, err := c.InitiateRedirect(context.Background(), identity.RedirectRequest{
		Strategy:     identity.StrategyGoogle,
		RedirectURL:  "/sso-callback",
		SessionToken: token,
	})
	assert.ErrorIs(t, err, identity.ErrAlreadySignedIn)

	_, err = c.InitiateRedirect(context.Background(), identity.RedirectRequest{
		Strategy:     identity.StrategyGoogle,
		RedirectURL:  "/sso-callback",
		SessionToken: "stale",
	})
	assert.NoError(t, err)
}

func TestCompleteRedirect(t *testing.T) {
	p, c := setupProvider(t, true)
	ctx := context.Background()
	origin := "http://localhost:8080"

	redirect, err := c.InitiateRedirect(ctx, identity.RedirectRequest{
		Strategy:    identity.StrategyGoogle,
		Origin:      origin,
		RedirectURL: "/sso-callback",
	})
	require.NoError(t, err)

	callback, err := p.Consent(redirect.URL)
	require.NoError(t, err)
	cbURL, err := url.Parse(callback)
	require.NoError(t, err)
	assert.Equal(t, redirect.State, cbURL.Query().Get("state"))

	completion, err := c.CompleteRedirect(ctx, identity.Callback{
		Code:           cbURL.Query().Get("code"),
		Verifier:       redirect.Verifier,
		Origin:         origin,
		RedirectURL:    "/sso-callback",
		AfterSignInURL: "/",
		AfterSignUpURL: "/welcome",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, completion.SessionID)
	assert.True(t, completion.SignUp)
	assert.Equal(t, "/welcome", completion.RedirectURL)

	active, err := c.ActivateSession(ctx, completion.SessionID)
	require.NoError(t, err)
	s, err := c.CheckSession(ctx, active.Token)
	require.NoError(t, err)
	assert.Equal(t, completion.SessionID, s.ID)
}

func TestCompleteRedirectBadVerifier(t *testing.T) {
	p, c := setupProvider(t, true)
	ctx := context.Background()

	redirect, err := c.InitiateRedirect(ctx, identity.RedirectRequest{Strategy: identity.StrategyGoogle, RedirectURL: "/sso-callback"})
	require.NoError(t, err)
	callback, err := p.Consent(redirect.URL)
	require.NoError(t, err)
	cbURL, _ := url.Parse(callback)

	_, err = c.CompleteRedirect(ctx, identity.Callback{
		Code:        cbURL.Query().Get("code"),
		Verifier:    "wrong-verifier",
		RedirectURL: "/sso-callback",
	})
	require.Error(t, err)
	assert.Equal(t, "code_verifier does not match", identity.FirstMessage(err))
}

func TestCompleteRedirectProviderError(t *testing.T) {
	_, c := setupProvider(t, true)

	_, err := c.CompleteRedirect(context.Background(), identity.Callback{Error: "access_denied", ErrorDescription: "The user denied access."})
	require.Error(t, err)
	assert.Equal(t, "The user denied access.", err.Error())

	_, err = c.CompleteRedirect(context.Background(), identity.Callback{})
	assert.Error(t, err)
}

func TestProviderUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = c.CheckSession(context.Background(), "token")
	require.Error(t, err)
	assert.NotErrorIs(t, err, identity.ErrNoSession)
	assert.Empty(t, identity.FirstMessage(err))
}

func TestAbsoluteURL(t *testing.T) {
	assert.Equal(t, "/sso-callback", absoluteURL("", "/sso-callback"))
	assert.Equal(t, "https://docs.example.com/sso-callback", absoluteURL("https://docs.example.com/", "/sso-callback"))
	assert.Equal(t, "https://elsewhere.example.com", absoluteURL("https://docs.example.com", "https://elsewhere.example.com"))
}
