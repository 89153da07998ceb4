package handshake

import (
	"context"
	"errors"
	"fmt"

	"github.com/markb/livedocs/internal/identity"
	"github.com/markb/livedocs/internal/log"
)

// TransitionFunc observes state changes, e.g. for metrics.
type TransitionFunc func(ctx context.Context, intent identity.Intent, from, to State)

// BeginRequest starts a handshake from one of the auth pages.
type BeginRequest struct {
	Intent       identity.Intent
	SessionToken string
	Origin       string
}

// Outcome tells the page where to send the browser.
type Outcome struct {
	State           State
	Next            string
	AlreadySignedIn bool
	Flow            *Flow
}

// InitiateError is a failed start. Its message is shown on the page as is.
type InitiateError struct {
	Intent identity.Intent
	Err    error
}

func (e *InitiateError) Error() string {
	if e.Err != nil && e.Err.Error() != "" {
		return fmt.Sprintf("Google %s error: %s", e.Intent.Verb(), e.Err.Error())
	}
	return fmt.Sprintf("Failed to initiate Google %s. Please try again.", e.Intent.Verb())
}

func (e *InitiateError) Unwrap() error { return e.Err }

// Initiator performs the Idle → Redirecting step.
type Initiator struct {
	idp          identity.Client
	flows        *Store
	OnTransition TransitionFunc

	// RedirectURL and RedirectURLComplete are sent to the provider. They must
	// be same-origin relative paths.
	RedirectURL         string
	RedirectURLComplete string
}

// NewInitiator creates an Initiator using the standard callback and landing paths.
func NewInitiator(idp identity.Client, flows *Store) *Initiator {
	return &Initiator{
		idp:                 idp,
		flows:               flows,
		RedirectURL:         CallbackPath,
		RedirectURLComplete: CompletePath,
	}
}

// Begin starts a Google handshake. A live session short-circuits to
// CompletePath without contacting the provider's consent screen.
func (i *Initiator) Begin(ctx context.Context, req BeginRequest) (*Outcome, error) {
	if req.Intent == "" {
		req.Intent = identity.IntentSignIn
	}
	logger := log.With("intent", string(req.Intent))

	if req.SessionToken != "" {
		_, err := i.idp.CheckSession(ctx, req.SessionToken)
		switch {
		case err == nil:
			logger.Info("user already signed in, skipping google redirect")
			return &Outcome{State: Idle, Next: CompletePath, AlreadySignedIn: true}, nil
		case !errors.Is(err, identity.ErrNoSession):
			logger.Error("session check before google redirect failed", "error", err)
			return nil, &InitiateError{Intent: req.Intent, Err: err}
		}
	}

	if err := checkRelative(i.RedirectURL, i.RedirectURLComplete); err != nil {
		logger.Error("refusing google redirect", "redirect_url", i.RedirectURL, "redirect_url_complete", i.RedirectURLComplete)
		return nil, &InitiateError{Intent: req.Intent, Err: err}
	}

	redirect, err := i.idp.InitiateRedirect(ctx, identity.RedirectRequest{
		Strategy:            identity.StrategyGoogle,
		Intent:              req.Intent,
		Origin:              req.Origin,
		RedirectURL:         i.RedirectURL,
		RedirectURLComplete: i.RedirectURLComplete,
		SessionToken:        req.SessionToken,
	})
	if err != nil {
		if identity.IsAlreadySignedIn(err) {
			logger.Info("provider reports an active session, skipping google redirect")
			return &Outcome{State: Idle, Next: CompletePath, AlreadySignedIn: true}, nil
		}
		logger.Error("google redirect failed", "error", err)
		return nil, &InitiateError{Intent: req.Intent, Err: err}
	}

	flow := &Flow{
		ID:                  redirect.State,
		Intent:              req.Intent,
		Strategy:            identity.StrategyGoogle,
		Verifier:            redirect.Verifier,
		Origin:              req.Origin,
		RedirectURL:         i.RedirectURL,
		RedirectURLComplete: i.RedirectURLComplete,
	}
	if err := i.flows.Save(ctx, flow); err != nil {
		logger.Error("failed to save handshake flow", "error", err)
		return nil, &InitiateError{Intent: req.Intent}
	}

	i.transition(ctx, req.Intent, Idle, Redirecting)
	return &Outcome{State: Redirecting, Next: redirect.URL, Flow: flow}, nil
}

func (i *Initiator) transition(ctx context.Context, intent identity.Intent, from, to State) {
	if i.OnTransition != nil {
		i.OnTransition(ctx, intent, from, to)
	}
}
