package server

import (
	"errors"
	"net/http"

	"github.com/markb/livedocs/internal/handshake"
	"github.com/markb/livedocs/internal/identity"
	"github.com/markb/livedocs/internal/log"
	"github.com/markb/livedocs/internal/observability"
)

// callbackError writes the JSON error body used by the callback endpoints.
func callbackError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleAuthCallback confirms that a session exists once the provider has
// sent the browser back, then moves on to the landing page.
func (s *Server) handleAuthCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)

	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			logger.Error("auth callback error", "panic", rec)
			callbackError(w, http.StatusInternalServerError, "Internal server error")
		}
	}()

	auth, ok := identity.AuthFromContext(ctx)
	if !ok {
		auth = s.checkSession(r)
	}

	if auth.Err != nil {
		logger.Error("auth callback error", "error", auth.Err)
		callbackError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	if !auth.SignedIn() {
		callbackError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	observability.SetUserID(ctx, auth.Session.UserID)
	logger.Info("auth callback", "user_id", auth.Session.UserID)
	http.Redirect(w, r, handshake.CompletePath, http.StatusTemporaryRedirect)
}

func (s *Server) checkSession(r *http.Request) identity.Auth {
	token := identity.SessionToken(r)
	if token == "" {
		return identity.Auth{}
	}
	session, err := s.idp.CheckSession(r.Context(), token)
	if errors.Is(err, identity.ErrNoSession) {
		return identity.Auth{}
	}
	return identity.Auth{Session: session, Err: err}
}
