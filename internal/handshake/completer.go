package handshake

import (
	"context"
	"errors"

	"github.com/markb/livedocs/internal/identity"
	"github.com/markb/livedocs/internal/log"
)

// DefaultFailureMessage is shown when a failure carries no text of its own.
const DefaultFailureMessage = "Authentication failed"

// CallbackParams are the query parameters the provider sends to CallbackPath.
type CallbackParams struct {
	State            string
	Code             string
	Error            string
	ErrorDescription string
}

// Result is a completed handshake: the activated session and where to go.
type Result struct {
	State   State
	Next    string
	Session *identity.ActiveSession
	Flow    *Flow
}

// Completer performs the CallbackProcessing → Complete | Failed step.
type Completer struct {
	idp          identity.Client
	flows        *Store
	OnTransition TransitionFunc
}

// NewCompleter creates a Completer.
func NewCompleter(idp identity.Client, flows *Store) *Completer {
	return &Completer{idp: idp, flows: flows}
}

// Complete consumes the flow named by the callback state, lets the provider
// finish the exchange and activates the resulting session. The next location
// is the one the provider chose; the page adds none of its own.
func (c *Completer) Complete(ctx context.Context, p CallbackParams) (*Result, error) {
	flow, err := c.flows.Take(ctx, p.State)
	if err != nil {
		if !errors.Is(err, ErrFlowNotFound) {
			log.Error("failed to load handshake flow", "error", err)
		}
		return nil, err
	}
	logger := log.With("intent", string(flow.Intent))
	c.transition(ctx, flow.Intent, Redirecting, CallbackProcessing)

	completion, err := c.idp.CompleteRedirect(ctx, identity.Callback{
		Code:             p.Code,
		Error:            p.Error,
		ErrorDescription: p.ErrorDescription,
		Verifier:         flow.Verifier,
		Origin:           flow.Origin,
		RedirectURL:      flow.RedirectURL,
		AfterSignInURL:   flow.RedirectURLComplete,
		AfterSignUpURL:   flow.RedirectURLComplete,
	})
	if err != nil {
		logger.Error("oauth callback error", "error", err)
		c.transition(ctx, flow.Intent, CallbackProcessing, Failed)
		return nil, err
	}

	active, err := c.idp.ActivateSession(ctx, completion.SessionID)
	if err != nil {
		logger.Error("failed to activate session after oauth callback", "error", err)
		c.transition(ctx, flow.Intent, CallbackProcessing, Failed)
		return nil, err
	}

	next := completion.RedirectURL
	if !IsRelativePath(next) {
		next = flow.RedirectURLComplete
	}

	logger.Info("oauth handshake complete", "session_id", active.SessionID, "sign_up", completion.SignUp)
	c.transition(ctx, flow.Intent, CallbackProcessing, Complete)
	return &Result{State: Complete, Next: next, Session: active, Flow: flow}, nil
}

func (c *Completer) transition(ctx context.Context, intent identity.Intent, from, to State) {
	if c.OnTransition != nil {
		c.OnTransition(ctx, intent, from, to)
	}
}

// FailureMessage is the text shown under the "Authentication Error" heading.
func FailureMessage(err error) string {
	if err == nil {
		return DefaultFailureMessage
	}
	if msg := identity.FirstMessage(err); msg != "" {
		return msg
	}
	if msg := err.Error(); msg != "" {
		return msg
	}
	return DefaultFailureMessage
}
