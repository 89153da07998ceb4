// Package identitytest provides an in-memory identity.Client for tests.
package identitytest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/markb/livedocs/internal/identity"
)

// Fake is a scriptable identity.Client. Zero values succeed: sign-in and
// sign-up return a complete attempt and activation issues "tok_<session id>".
type Fake struct {
	mu sync.Mutex

	sessions map[string]*identity.Session
	calls    []string

	CheckErr error

	SignInAttempt *identity.Attempt
	SignInErr     error
	SignUpAttempt *identity.Attempt
	SignUpErr     error

	ActivateErr error
	SignOutErr  error

	RedirectURL string
	InitiateErr error

	Completion  *identity.Completion
	CompleteErr error

	LastCredentials  identity.Credentials
	LastRegistration identity.Registration
	LastRedirect     identity.RedirectRequest
	LastCallback     identity.Callback
}

// New returns an empty Fake.
func New() *Fake {
	return &Fake{sessions: make(map[string]*identity.Session)}
}

// AddSession makes token resolve to a session owned by userID.
func (f *Fake) AddSession(token, userID string) *identity.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sessions == nil {
		f.sessions = make(map[string]*identity.Session)
	}
	s := &identity.Session{ID: "sess_" + userID, UserID: userID, ExpiresAt: time.Now().Add(time.Hour)}
	f.sessions[token] = s
	return s
}

// Calls returns the names of the methods invoked so far, in order.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// Called reports whether method was invoked at least once.
func (f *Fake) Called(method string) bool {
	for _, c := range f.Calls() {
		if c == method {
			return true
		}
	}
	return false
}

func (f *Fake) record(method string) {
	f.mu.Lock()
	f.calls = append(f.calls, method)
	f.mu.Unlock()
}

func (f *Fake) CheckSession(ctx context.Context, token string) (*identity.Session, error) {
	f.record("CheckSession")
	if f.CheckErr != nil {
		return nil, f.CheckErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.sessions[token]; ok && token != "" {
		return s, nil
	}
	return nil, identity.ErrNoSession
}

func (f *Fake) CreateSession(ctx context.Context, creds identity.Credentials) (*identity.Attempt, error) {
	f.record("CreateSession")
	f.LastCredentials = creds
	if f.SignInErr != nil {
		return nil, f.SignInErr
	}
	if f.SignInAttempt != nil {
		return f.SignInAttempt, nil
	}
	return &identity.Attempt{Status: identity.StatusComplete, CreatedSessionID: "sess_signin"}, nil
}

func (f *Fake) CreateAccount(ctx context.Context, reg identity.Registration) (*identity.Attempt, error) {
	f.record("CreateAccount")
	f.LastRegistration = reg
	if f.SignUpErr != nil {
		return nil, f.SignUpErr
	}
	if f.SignUpAttempt != nil {
		return f.SignUpAttempt, nil
	}
	return &identity.Attempt{Status: identity.StatusComplete, CreatedSessionID: "sess_signup"}, nil
}

func (f *Fake) ActivateSession(ctx context.Context, sessionID string) (*identity.ActiveSession, error) {
	f.record("ActivateSession")
	if f.ActivateErr != nil {
		return nil, f.ActivateErr
	}
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	token := "tok_" + sessionID
	expires := time.Now().Add(time.Hour)

	f.mu.Lock()
	if f.sessions == nil {
		f.sessions = make(map[string]*identity.Session)
	}
	f.sessions[token] = &identity.Session{ID: sessionID, UserID: "user_" + sessionID, ExpiresAt: expires}
	f.mu.Unlock()

	return &identity.ActiveSession{SessionID: sessionID, Token: token, ExpiresAt: expires}, nil
}

func (f *Fake) SignOut(ctx context.Context, token string) error {
	f.record("SignOut")
	if f.SignOutErr != nil {
		return f.SignOutErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.sessions[token]; !ok {
		return identity.ErrNoSession
	}
	delete(f.sessions, token)
	return nil
}

func (f *Fake) InitiateRedirect(ctx context.Context, req identity.RedirectRequest) (*identity.Redirect, error) {
	f.record("InitiateRedirect")
	f.LastRedirect = req
	if f.InitiateErr != nil {
		return nil, f.InitiateErr
	}
	url := f.RedirectURL
	if url == "" {
		url = "https://idp.example.com/oauth/authorize?state=state_1"
	}
	return &identity.Redirect{URL: url, State: "state_1", Verifier: "verifier_1"}, nil
}

func (f *Fake) CompleteRedirect(ctx context.Context, cb identity.Callback) (*identity.Completion, error) {
	f.record("CompleteRedirect")
	f.LastCallback = cb
	if f.CompleteErr != nil {
		return nil, f.CompleteErr
	}
	if f.Completion != nil {
		return f.Completion, nil
	}
	return &identity.Completion{SessionID: "sess_oauth", RedirectURL: cb.AfterSignInURL}, nil
}

var _ identity.Client = (*Fake)(nil)
