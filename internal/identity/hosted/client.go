// Package hosted implements identity.Client against the hosted identity
// provider's Frontend API.
//
// Sign-in, sign-up and session calls are JSON over HTTP authenticated with the
// instance secret key. Social login uses the provider's OAuth 2.0 endpoints
// through golang.org/x/oauth2 with PKCE. Session tokens are RS256 JWTs; when a
// public key is configured they are verified locally, otherwise the provider's
// verify endpoint is asked.
package hosted

import (
	"bytes"
	"context"
	"crypto/rsa"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"

	"github.com/markb/livedocs/internal/identity"
	"github.com/markb/livedocs/internal/log"
)

// DefaultTimeout bounds every provider call when Config.Timeout is zero.
const DefaultTimeout = 10 * time.Second

// Config holds hosted provider settings.
type Config struct {
	BaseURL      string // Frontend API root, e.g. https://auth.example.com
	SecretKey    string
	PublicKeyPEM string // optional; enables local session token verification
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
	HTTPClient   *http.Client // optional; Timeout is ignored when set
}

// Client talks to the hosted provider.
type Client struct {
	baseURL    *url.URL
	secretKey  string
	httpClient *http.Client
	oauth      *oauth2.Config
	publicKey  *rsa.PublicKey
	now        func() time.Time
}

// New creates a Client.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("identity provider URL is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid identity provider URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid identity provider URL %q: scheme must be http or https", cfg.BaseURL)
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	c := &Client{
		baseURL:    base,
		secretKey:  cfg.SecretKey,
		httpClient: httpClient,
		now:        time.Now,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint: oauth2.Endpoint{
				AuthURL:   base.String() + "/oauth/authorize",
				TokenURL:  base.String() + "/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
	}

	if cfg.PublicKeyPEM != "" {
		key, err := jwt.ParseRSAPublicKeyFromPEM([]byte(cfg.PublicKeyPEM))
		if err != nil {
			return nil, fmt.Errorf("parse identity provider public key: %w", err)
		}
		c.publicKey = key
	}

	return c, nil
}

type attemptResponse struct {
	Status           identity.AttemptStatus `json:"status"`
	CreatedSessionID string                 `json:"created_session_id"`
}

type activateResponse struct {
	Token     string `json:"token"`
	ExpiresAt int64  `json:"expires_at"`
}

type sessionResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	ExpiresAt int64  `json:"expires_at"`
}

// sessionClaims are the claims carried by a provider session token.
type sessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// CreateSession submits sign-in credentials.
func (c *Client) CreateSession(ctx context.Context, creds identity.Credentials) (*identity.Attempt, error) {
	body := map[string]string{
		"identifier": creds.Identifier,
		"password":   creds.Password,
	}
	var resp attemptResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sign_ins", body, &resp); err != nil {
		return nil, err
	}
	return &identity.Attempt{Status: resp.Status, CreatedSessionID: resp.CreatedSessionID}, nil
}

// CreateAccount submits a sign-up.
func (c *Client) CreateAccount(ctx context.Context, reg identity.Registration) (*identity.Attempt, error) {
	body := map[string]string{
		"first_name":    reg.FirstName,
		"last_name":     reg.LastName,
		"email_address": reg.EmailAddress,
		"password":      reg.Password,
	}
	var resp attemptResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sign_ups", body, &resp); err != nil {
		return nil, err
	}
	return &identity.Attempt{Status: resp.Status, CreatedSessionID: resp.CreatedSessionID}, nil
}

// ActivateSession activates a created session and returns its token.
func (c *Client) ActivateSession(ctx context.Context, sessionID string) (*identity.ActiveSession, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	var resp activateResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/"+url.PathEscape(sessionID)+"/activate", nil, &resp); err != nil {
		return nil, err
	}
	if resp.Token == "" {
		return nil, errors.New("identity provider returned no session token")
	}
	active := &identity.ActiveSession{SessionID: sessionID, Token: resp.Token}
	if resp.ExpiresAt > 0 {
		active.ExpiresAt = time.Unix(resp.ExpiresAt, 0)
	}
	return active, nil
}

// CheckSession resolves a session token.
func (c *Client) CheckSession(ctx context.Context, token string) (*identity.Session, error) {
	if token == "" {
		return nil, identity.ErrNoSession
	}
	if c.publicKey != nil {
		return c.verifyLocally(token)
	}

	var resp sessionResponse
	if err := c.do(ctx, http.MethodPost, "/v1/sessions/verify", map[string]string{"token": token}, &resp); err != nil {
		if errors.Is(err, identity.ErrNoSession) {
			return nil, identity.ErrNoSession
		}
		return nil, err
	}
	if resp.ID == "" {
		return nil, identity.ErrNoSession
	}
	s := &identity.Session{ID: resp.ID, UserID: resp.UserID}
	if resp.ExpiresAt > 0 {
		s.ExpiresAt = time.Unix(resp.ExpiresAt, 0)
	}
	return s, nil
}

func (c *Client) verifyLocally(token string) (*identity.Session, error) {
	claims := &sessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return c.publicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		log.Debug("session token rejected", "error", err.Error())
		return nil, identity.ErrNoSession
	}
	if claims.SessionID == "" || claims.Subject == "" {
		return nil, identity.ErrNoSession
	}
	s := &identity.Session{ID: claims.SessionID, UserID: claims.Subject}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

// SignOut revokes the session behind token.
func (c *Client) SignOut(ctx context.Context, token string) error {
	s, err := c.CheckSession(ctx, token)
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, "/v1/sessions/"+url.PathEscape(s.ID)+"/revoke", nil, nil)
}

// InitiateRedirect builds the provider authorize URL for a social strategy.
// A request made on top of a live session fails with identity.ErrAlreadySignedIn,
// matching what the provider itself answers.
func (c *Client) InitiateRedirect(ctx context.Context, req identity.RedirectRequest) (*identity.Redirect, error) {
	if req.Strategy == "" {
		return nil, errors.New("strategy is required")
	}
	if req.SessionToken != "" {
		if _, err := c.CheckSession(ctx, req.SessionToken); err == nil {
			return nil, identity.ErrAlreadySignedIn
		} else if !errors.Is(err, identity.ErrNoSession) {
			return nil, err
		}
	}

	state, err := GenerateState()
	if err != nil {
		return nil, fmt.Errorf("generate state: %w", err)
	}
	verifier, err := GenerateCodeVerifier()
	if err != nil {
		return nil, fmt.Errorf("generate code verifier: %w", err)
	}

	cfg := *c.oauth
	cfg.RedirectURL = absoluteURL(req.Origin, req.RedirectURL)

	opts := []oauth2.AuthCodeOption{
		oauth2.SetAuthURLParam("code_challenge", CodeChallengeS256(verifier)),
		oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		oauth2.SetAuthURLParam("strategy", string(req.Strategy)),
	}
	if req.Intent != "" {
		opts = append(opts, oauth2.SetAuthURLParam("intent", string(req.Intent)))
	}
	if req.RedirectURLComplete != "" {
		opts = append(opts, oauth2.SetAuthURLParam("redirect_url_complete", absoluteURL(req.Origin, req.RedirectURLComplete)))
	}

	return &identity.Redirect{
		URL:      cfg.AuthCodeURL(state, opts...),
		State:    state,
		Verifier: verifier,
	}, nil
}

// CompleteRedirect exchanges the authorization code for the session the
// provider created.
func (c *Client) CompleteRedirect(ctx context.Context, cb identity.Callback) (*identity.Completion, error) {
	if cb.Error != "" {
		msg := cb.ErrorDescription
		if msg == "" {
			msg = cb.Error
		}
		return nil, &identity.APIError{
			StatusCode: http.StatusBadRequest,
			Errors:     []identity.ErrorDetail{{Code: cb.Error, Message: msg}},
		}
	}
	if cb.Code == "" {
		return nil, errors.New("authorization code is missing")
	}

	cfg := *c.oauth
	cfg.RedirectURL = absoluteURL(cb.Origin, cb.RedirectURL)

	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := cfg.Exchange(ctx, cb.Code,
		oauth2.SetAuthURLParam("code_verifier", cb.Verifier),
	)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			msg := rerr.ErrorDescription
			if msg == "" {
				msg = rerr.ErrorCode
			}
			status := http.StatusBadRequest
			if rerr.Response != nil {
				status = rerr.Response.StatusCode
			}
			if msg != "" {
				return nil, &identity.APIError{StatusCode: status, Errors: []identity.ErrorDetail{{Code: rerr.ErrorCode, Message: msg}}}
			}
		}
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}

	sessionID, _ := token.Extra("session_id").(string)
	if sessionID == "" {
		return nil, errors.New("identity provider returned no session")
	}
	signUp, _ := token.Extra("sign_up").(bool)

	next := cb.AfterSignInURL
	if signUp {
		next = cb.AfterSignUpURL
	}
	return &identity.Completion{SessionID: sessionID, SignUp: signUp, RedirectURL: next}, nil
}

// do sends a JSON request and decodes a JSON response into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.secretKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.secretKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("identity provider request %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &identity.APIError{StatusCode: resp.StatusCode}
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		if len(data) > 0 {
			if err := json.Unmarshal(data, apiErr); err != nil {
				log.Debug("undecodable identity provider error", "status", resp.StatusCode, "body", string(data))
			}
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// absoluteURL resolves a same-origin path against origin for the provider.
func absoluteURL(origin, path string) string {
	if origin == "" || path == "" || !strings.HasPrefix(path, "/") {
		return path
	}
	return strings.TrimRight(origin, "/") + path
}

var _ identity.Client = (*Client)(nil)
