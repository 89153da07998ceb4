// Package identity defines the calls this application makes against the hosted
// identity provider.
//
// Credential checks, session issuance, OAuth token exchange and credential
// storage all live on the provider side. The application treats the provider
// as an opaque capability: it asks whether a session exists, creates sign-in
// and sign-up attempts, activates the resulting session, signs out, and drives
// the redirect handshake used for social login.
package identity

import (
	"context"
	"time"
)

// AttemptStatus is the provider's verdict on a sign-in or sign-up attempt.
type AttemptStatus string

const (
	StatusComplete            AttemptStatus = "complete"
	StatusNeedsFirstFactor    AttemptStatus = "needs_first_factor"
	StatusNeedsSecondFactor   AttemptStatus = "needs_second_factor"
	StatusMissingRequirements AttemptStatus = "missing_requirements"
	StatusAbandoned           AttemptStatus = "abandoned"
)

// Strategy names a social login strategy understood by the provider.
type Strategy string

// StrategyGoogle is the only social strategy the pages offer.
const StrategyGoogle Strategy = "oauth_google"

// Intent tells the provider whether a redirect handshake started from the
// sign-in or the sign-up page.
type Intent string

const (
	IntentSignIn Intent = "sign_in"
	IntentSignUp Intent = "sign_up"
)

// Verb returns the human form used in user-facing messages.
func (i Intent) Verb() string {
	if i == IntentSignUp {
		return "sign-up"
	}
	return "sign-in"
}

// Credentials are submitted by the sign-in form.
type Credentials struct {
	Identifier string
	Password   string
}

// Registration is submitted by the sign-up form.
type Registration struct {
	FirstName    string
	LastName     string
	EmailAddress string
	Password     string
}

// Attempt is the result of a sign-in or sign-up call.
type Attempt struct {
	Status           AttemptStatus
	CreatedSessionID string
}

// Complete reports whether the provider finished the attempt and created a
// session that can be activated.
func (a *Attempt) Complete() bool {
	return a != nil && a.Status == StatusComplete
}

// Session is the decoded view of a provider-issued session token.
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
}

// ActiveSession is returned when a created session is activated. Token is the
// opaque value stored in the session cookie.
type ActiveSession struct {
	SessionID string
	Token     string
	ExpiresAt time.Time
}

// RedirectRequest starts a redirect handshake. RedirectURL and
// RedirectURLComplete are same-origin relative paths; Origin is only used by
// the client to build the absolute callback the provider requires.
type RedirectRequest struct {
	Strategy            Strategy
	Intent              Intent
	Origin              string
	RedirectURL         string
	RedirectURLComplete string
	SessionToken        string
}

// Redirect is where the browser must go to reach the provider's consent screen,
// together with the values the application keeps until the provider calls back.
type Redirect struct {
	URL      string
	State    string
	Verifier string
}

// Callback carries what the provider sent back to the callback route plus the
// values stored when the handshake began.
type Callback struct {
	Code             string
	Error            string
	ErrorDescription string
	Verifier         string
	Origin           string
	RedirectURL      string
	AfterSignInURL   string
	AfterSignUpURL   string
}

// Completion is the outcome of a successful callback: a session created by the
// provider and the location the provider wants the browser to go next.
type Completion struct {
	SessionID   string
	SignUp      bool
	RedirectURL string
}

// SessionChecker is the narrow capability the route guard needs.
type SessionChecker interface {
	// CheckSession resolves a session token. It returns ErrNoSession when the
	// token is empty, expired or unknown to the provider.
	CheckSession(ctx context.Context, token string) (*Session, error)
}

// Client is the full capability used by the pages and the handshake.
type Client interface {
	SessionChecker

	// CreateSession submits credentials and returns the sign-in attempt.
	CreateSession(ctx context.Context, creds Credentials) (*Attempt, error)

	// CreateAccount submits a registration and returns the sign-up attempt.
	CreateAccount(ctx context.Context, reg Registration) (*Attempt, error)

	// ActivateSession makes a created session the active one and returns the
	// token for the session cookie.
	ActivateSession(ctx context.Context, sessionID string) (*ActiveSession, error)

	// SignOut ends the session identified by token.
	SignOut(ctx context.Context, token string) error

	// InitiateRedirect prepares the redirect to the provider's consent screen.
	InitiateRedirect(ctx context.Context, req RedirectRequest) (*Redirect, error)

	// CompleteRedirect finishes the handshake once the provider calls back.
	CompleteRedirect(ctx context.Context, cb Callback) (*Completion, error)
}
