// Package hostedtest runs an in-process stand-in for the hosted identity
// provider. It speaks the same Frontend API and OAuth endpoints as the real
// provider and signs session tokens with a throwaway RSA key.
package hostedtest

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/markb/livedocs/internal/identity"
)

const (
	SecretKey    = "sk_test_livedocs"
	ClientID     = "livedocs-client"
	ClientSecret = "livedocs-secret"

	// GoogleEmail is the account the consent screen signs in as.
	GoogleEmail = "google.user@example.com"
)

type user struct {
	id       string
	email    string
	password string
}

type session struct {
	id      string
	userID  string
	active  bool
	revoked bool
}

type grant struct {
	sessionID   string
	challenge   string
	redirectURI string
	signUp      bool
}

type tokenClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

// Provider is a fake hosted identity provider.
type Provider struct {
	*httptest.Server

	Key *rsa.PrivateKey

	// SignUpStatus overrides the status returned by sign-ups.
	SignUpStatus identity.AttemptStatus

	mu       sync.Mutex
	users    map[string]*user
	sessions map[string]*session
	grants   map[string]*grant
}

// New starts a Provider. Callers must Close it.
func New() *Provider {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		panic(fmt.Sprintf("hostedtest: generate key: %v", err))
	}
	p := &Provider{
		Key:      key,
		users:    make(map[string]*user),
		sessions: make(map[string]*session),
		grants:   make(map[string]*grant),
	}

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(p.requireSecret)
		r.Post("/v1/sign_ins", p.handleSignIn)
		r.Post("/v1/sign_ups", p.handleSignUp)
		r.Post("/v1/sessions/verify", p.handleVerify)
		r.Post("/v1/sessions/{id}/activate", p.handleActivate)
		r.Post("/v1/sessions/{id}/revoke", p.handleRevoke)
	})
	r.Post("/oauth/token", p.handleToken)

	p.Server = httptest.NewServer(r)
	return p
}

// PublicKeyPEM returns the PEM encoding of the token signing key.
func (p *Provider) PublicKeyPEM() string {
	der, err := x509.MarshalPKIXPublicKey(&p.Key.PublicKey)
	if err != nil {
		panic(fmt.Sprintf("hostedtest: marshal public key: %v", err))
	}
	return string(pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: der}))
}

// AddUser registers an email/password account and returns its id.
func (p *Provider) AddUser(email, password string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.addUserLocked(email, password).id
}

func (p *Provider) addUserLocked(email, password string) *user {
	u := &user{id: "user_" + uuid.NewString()[:8], email: strings.ToLower(email), password: password}
	p.users[u.email] = u
	return u
}

func (p *Provider) newSessionLocked(userID string) *session {
	s := &session{id: "sess_" + uuid.NewString()[:8], userID: userID}
	p.sessions[s.id] = s
	return s
}

// IssueToken activates a new session for userID and returns its signed token.
func (p *Provider) IssueToken(userID string) string {
	p.mu.Lock()
	s := p.newSessionLocked(userID)
	s.active = true
	p.mu.Unlock()

	token, err := p.sign(s, time.Now().Add(time.Hour))
	if err != nil {
		panic(fmt.Sprintf("hostedtest: sign token: %v", err))
	}
	return token
}

// Consent plays the consent screen for an authorize URL built by the client:
// it signs GoogleEmail in (creating the account on first use) and returns the
// callback URL the provider would redirect the browser to.
func (p *Provider) Consent(authorizeURL string) (string, error) {
	u, err := url.Parse(authorizeURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	if q.Get("client_id") != ClientID {
		return "", fmt.Errorf("unexpected client_id %q", q.Get("client_id"))
	}
	if q.Get("strategy") != string(identity.StrategyGoogle) {
		return "", fmt.Errorf("unexpected strategy %q", q.Get("strategy"))
	}
	if q.Get("code_challenge_method") != "S256" || q.Get("code_challenge") == "" {
		return "", fmt.Errorf("missing PKCE challenge")
	}
	redirectURI := q.Get("redirect_uri")
	if redirectURI == "" {
		return "", fmt.Errorf("missing redirect_uri")
	}

	p.mu.Lock()
	u2, ok := p.users[GoogleEmail]
	signUp := !ok
	if !ok {
		u2 = p.addUserLocked(GoogleEmail, "")
	}
	s := p.newSessionLocked(u2.id)
	code := "code_" + uuid.NewString()
	p.grants[code] = &grant{
		sessionID:   s.id,
		challenge:   q.Get("code_challenge"),
		redirectURI: redirectURI,
		signUp:      signUp,
	}
	p.mu.Unlock()

	cb, err := url.Parse(redirectURI)
	if err != nil {
		return "", err
	}
	cq := cb.Query()
	cq.Set("state", q.Get("state"))
	cq.Set("code", code)
	cb.RawQuery = cq.Encode()
	return cb.String(), nil
}

// Revoked reports whether the session was revoked.
func (p *Provider) Revoked(sessionID string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[sessionID]
	return ok && s.revoked
}

func (p *Provider) requireSecret(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+SecretKey {
			writeErrors(w, http.StatusUnauthorized, "authentication_invalid", "Invalid secret key.")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (p *Provider) handleSignIn(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Identifier string `json:"identifier"`
		Password   string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrors(w, http.StatusBadRequest, "invalid_request", "Invalid request body.")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	u, ok := p.users[strings.ToLower(req.Identifier)]
	if !ok {
		writeErrors(w, http.StatusUnprocessableEntity, "form_identifier_not_found", "Couldn't find your account.")
		return
	}
	if u.password == "" || u.password != req.Password {
		writeErrors(w, http.StatusUnprocessableEntity, "form_password_incorrect", "Password is incorrect. Try again, or use another method.")
		return
	}
	s := p.newSessionLocked(u.id)
	writeJSON(w, http.StatusOK, map[string]string{"status": string(identity.StatusComplete), "created_session_id": s.id})
}

func (p *Provider) handleSignUp(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName    string `json:"first_name"`
		LastName     string `json:"last_name"`
		EmailAddress string `json:"email_address"`
		Password     string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrors(w, http.StatusBadRequest, "invalid_request", "Invalid request body.")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, exists := p.users[strings.ToLower(req.EmailAddress)]; exists {
		writeErrors(w, http.StatusUnprocessableEntity, "form_identifier_exists", "That email address is taken. Please try another.")
		return
	}
	u := p.addUserLocked(req.EmailAddress, req.Password)

	status := p.SignUpStatus
	if status == "" {
		status = identity.StatusComplete
	}
	resp := map[string]string{"status": string(status), "created_session_id": ""}
	if status == identity.StatusComplete {
		resp["created_session_id"] = p.newSessionLocked(u.id).id
	}
	writeJSON(w, http.StatusOK, resp)
}

func (p *Provider) handleActivate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p.mu.Lock()
	s, ok := p.sessions[id]
	if ok {
		s.active = true
	}
	p.mu.Unlock()
	if !ok || s.revoked {
		writeErrors(w, http.StatusNotFound, "resource_not_found", "Session not found.")
		return
	}

	expires := time.Now().Add(time.Hour)
	token, err := p.sign(s, expires)
	if err != nil {
		writeErrors(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"token": token, "expires_at": expires.Unix()})
}

func (p *Provider) handleRevoke(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	p.mu.Lock()
	defer p.mu.Unlock()
	s, ok := p.sessions[id]
	if !ok {
		writeErrors(w, http.StatusNotFound, "resource_not_found", "Session not found.")
		return
	}
	s.revoked = true
	writeJSON(w, http.StatusOK, map[string]string{"id": s.id, "status": "revoked"})
}

func (p *Provider) handleVerify(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErrors(w, http.StatusBadRequest, "invalid_request", "Invalid request body.")
		return
	}

	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(req.Token, claims, func(t *jwt.Token) (any, error) {
		return &p.Key.PublicKey, nil
	}, jwt.WithValidMethods([]string{"RS256"}))
	if err != nil || !parsed.Valid {
		writeErrors(w, http.StatusUnauthorized, "session_invalid", "Session token is invalid.")
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.sessions {
		if s.userID == claims.Subject && s.id == claims.SessionID && s.active && !s.revoked {
			writeJSON(w, http.StatusOK, map[string]any{"id": s.id, "user_id": s.userID, "expires_at": claims.ExpiresAt.Unix()})
			return
		}
	}
	writeErrors(w, http.StatusUnauthorized, "session_invalid", "Session is no longer active.")
}

func (p *Provider) handleToken(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeOAuthError(w, "invalid_request", "malformed form")
		return
	}
	if r.PostFormValue("grant_type") != "authorization_code" {
		writeOAuthError(w, "unsupported_grant_type", "only authorization_code is supported")
		return
	}
	if r.PostFormValue("client_id") != ClientID || r.PostFormValue("client_secret") != ClientSecret {
		writeOAuthError(w, "invalid_client", "client authentication failed")
		return
	}

	code := r.PostFormValue("code")
	p.mu.Lock()
	g, ok := p.grants[code]
	delete(p.grants, code)
	p.mu.Unlock()
	if !ok {
		writeOAuthError(w, "invalid_grant", "authorization code is invalid or was already used")
		return
	}
	if g.redirectURI != r.PostFormValue("redirect_uri") {
		writeOAuthError(w, "invalid_grant", "redirect_uri does not match")
		return
	}
	sum := sha256.Sum256([]byte(r.PostFormValue("code_verifier")))
	if base64.RawURLEncoding.EncodeToString(sum[:]) != g.challenge {
		writeOAuthError(w, "invalid_grant", "code_verifier does not match")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"access_token": "at_" + uuid.NewString(),
		"token_type":   "Bearer",
		"expires_in":   3600,
		"session_id":   g.sessionID,
		"sign_up":      g.signUp,
	})
}

func (p *Provider) sign(s *session, expires time.Time) (string, error) {
	claims := tokenClaims{
		SessionID: s.id,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.id,
			Subject:   s.userID,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(p.Key)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeErrors(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, identity.APIError{Errors: []identity.ErrorDetail{{Code: code, Message: message}}})
}

func writeOAuthError(w http.ResponseWriter, code, description string) {
	writeJSON(w, http.StatusBadRequest, map[string]string{"error": code, "error_description": description})
}
