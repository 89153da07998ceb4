package web

import (
	"errors"
	"net/http"

	"github.com/markb/livedocs/internal/forms"
	"github.com/markb/livedocs/internal/handshake"
	"github.com/markb/livedocs/internal/identity"
	"github.com/markb/livedocs/internal/log"
	"github.com/markb/livedocs/internal/observability"
	"github.com/markb/livedocs/internal/ui"
)

func flowName(intent identity.Intent) string {
	if intent == identity.IntentSignUp {
		return observability.FlowSignUp
	}
	return observability.FlowSignIn
}

// handleSubmit validates the credential form and, when it is clean, hands the
// values to the provider. Only a complete attempt navigates away.
func (h *Handler) handleSubmit(page authPage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		logger := log.FromContext(ctx).With("intent", string(page.Intent))
		flow := flowName(page.Intent)
		signedIn := h.currentSession(r) != nil

		values, err := forms.ValuesFromRequest(r, page.Fields)
		if err != nil {
			logger.Warn("unreadable auth form", "error", err)
			render(w, r, http.StatusBadRequest, ui.AuthPage(page.view(signedIn, nil, nil, GenericError)))
			return
		}

		if errs := forms.Validate(page.Fields, values); len(errs) > 0 {
			h.opts.Telemetry.RecordAuthAttempt(ctx, flow, observability.OutcomeInvalid)
			render(w, r, http.StatusUnprocessableEntity, ui.AuthPage(page.view(signedIn, values, errs, "")))
			return
		}

		var attempt *identity.Attempt
		if page.Intent == identity.IntentSignUp {
			attempt, err = h.idp.CreateAccount(ctx, identity.Registration{
				FirstName:    values["First Name"],
				LastName:     values["Last Name"],
				EmailAddress: values["Email"],
				Password:     values["Password"],
			})
		} else {
			attempt, err = h.idp.CreateSession(ctx, identity.Credentials{
				Identifier: values["Email"],
				Password:   values["Password"],
			})
		}
		if err != nil {
			status, message := providerFailure(err)
			outcome := observability.OutcomeRejected
			if status >= 500 {
				outcome = observability.OutcomeError
			}
			logger.Error(page.Intent.Verb()+" error", "error", err)
			h.opts.Telemetry.RecordAuthAttempt(ctx, flow, outcome)
			render(w, r, status, ui.AuthPage(page.view(signedIn, values, nil, message)))
			return
		}

		if !attempt.Complete() {
			// Further steps (verification, second factor) are not offered here.
			logger.Warn(page.Intent.Verb()+" not complete", "status", string(attempt.Status))
			h.opts.Telemetry.RecordAuthAttempt(ctx, flow, observability.OutcomeIncomplete)
			render(w, r, http.StatusUnprocessableEntity, ui.AuthPage(page.view(signedIn, values, nil, GenericError)))
			return
		}

		active, err := h.idp.ActivateSession(ctx, attempt.CreatedSessionID)
		if err != nil {
			logger.Error("failed to activate session", "session_id", attempt.CreatedSessionID, "error", err)
			h.opts.Telemetry.RecordAuthAttempt(ctx, flow, observability.OutcomeError)
			render(w, r, http.StatusBadGateway, ui.AuthPage(page.view(signedIn, values, nil, GenericError)))
			return
		}

		identity.SetSessionCookie(w, active, h.opts.SecureCookies)
		logger.Info(page.Intent.Verb()+" complete", "session_id", active.SessionID)
		h.opts.Telemetry.RecordAuthAttempt(ctx, flow, observability.OutcomeSuccess)
		http.Redirect(w, r, handshake.CompletePath, http.StatusSeeOther)
	}
}

// providerFailure maps a provider error to a response status and the message
// shown above the form.
func providerFailure(err error) (int, string) {
	var apiErr *identity.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode >= 400 && apiErr.StatusCode < 500 {
		if msg := apiErr.FirstMessage(); msg != "" {
			return http.StatusUnprocessableEntity, msg
		}
		return http.StatusUnprocessableEntity, GenericError
	}
	return http.StatusBadGateway, GenericError
}

// handleOAuth starts the Google handshake from either page.
func (h *Handler) handleOAuth(page authPage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		out, err := h.initiator.Begin(ctx, handshake.BeginRequest{
			Intent:       page.Intent,
			SessionToken: identity.SessionToken(r),
			Origin:       h.origin(r),
		})
		if err != nil {
			h.opts.Telemetry.RecordAuthAttempt(ctx, observability.FlowOAuth, observability.OutcomeError)
			render(w, r, http.StatusBadGateway, ui.AuthPage(page.view(h.currentSession(r) != nil, nil, nil, err.Error())))
			return
		}
		if out.AlreadySignedIn {
			h.opts.Telemetry.RecordAuthAttempt(ctx, observability.FlowOAuth, observability.OutcomeAlreadySignedIn)
		}
		http.Redirect(w, r, out.Next, http.StatusSeeOther)
	}
}

// handleSSOCallback finishes the handshake when the provider sends the
// browser back.
func (h *Handler) handleSSOCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()
	res, err := h.completer.Complete(ctx, handshake.CallbackParams{
		State:            q.Get("state"),
		Code:             q.Get("code"),
		Error:            q.Get("error"),
		ErrorDescription: q.Get("error_description"),
	})
	if err != nil {
		h.opts.Telemetry.RecordAuthAttempt(ctx, observability.FlowOAuth, observability.OutcomeRejected)
		render(w, r, http.StatusBadRequest, ui.CallbackErrorPage(handshake.FailureMessage(err)))
		return
	}

	identity.SetSessionCookie(w, res.Session, h.opts.SecureCookies)
	h.opts.Telemetry.RecordAuthAttempt(ctx, observability.FlowOAuth, observability.OutcomeSuccess)
	http.Redirect(w, r, res.Next, http.StatusFound)
}

// handleSignOut ends the session and goes back to the page the button was on.
func (h *Handler) handleSignOut(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	returnTo := r.PostFormValue("return_to")
	if !handshake.IsRelativePath(returnTo) {
		returnTo = handshake.CompletePath
	}

	if token := identity.SessionToken(r); token != "" {
		if err := h.idp.SignOut(ctx, token); err != nil && !errors.Is(err, identity.ErrNoSession) {
			log.FromContext(ctx).Error("sign-out error", "error", err)
			h.opts.Telemetry.RecordAuthAttempt(ctx, observability.FlowSignOut, observability.OutcomeError)
			http.Redirect(w, r, returnTo, http.StatusSeeOther)
			return
		}
	}

	identity.ClearSessionCookie(w, h.opts.SecureCookies)
	h.opts.Telemetry.RecordAuthAttempt(ctx, observability.FlowSignOut, observability.OutcomeSuccess)
	http.Redirect(w, r, returnTo, http.StatusSeeOther)
}
