// Package web serves the LiveDocs pages: home, the sign-in and sign-up forms,
// the Google handshake endpoints and sign-out.
package web

import (
	"errors"
	"net/http"
	"strings"

	"github.com/a-h/templ"
	"github.com/go-chi/chi/v5"

	"github.com/markb/livedocs/internal/handshake"
	"github.com/markb/livedocs/internal/identity"
	"github.com/markb/livedocs/internal/log"
	"github.com/markb/livedocs/internal/observability"
	"github.com/markb/livedocs/internal/ui"
)

// Options configures Handler.
type Options struct {
	// SecureCookies marks the session cookie Secure.
	SecureCookies bool

	// BaseURL overrides the request origin sent to the provider.
	BaseURL string

	Telemetry *observability.Telemetry
}

// Handler holds the page handlers.
type Handler struct {
	idp       identity.Client
	initiator *handshake.Initiator
	completer *handshake.Completer
	opts      Options
}

// New creates a Handler.
func New(idp identity.Client, initiator *handshake.Initiator, completer *handshake.Completer, opts Options) *Handler {
	opts.BaseURL = strings.TrimRight(opts.BaseURL, "/")
	return &Handler{idp: idp, initiator: initiator, completer: completer, opts: opts}
}

// RegisterRoutes mounts the page routes on r.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.handleHome)

	// Legacy paths from before the redesign.
	r.Get("/sign-in", redirectTo(signInPage.Path))
	r.Get("/sign-in/*", redirectTo(signInPage.Path))
	r.Get("/sign-up", redirectTo(signUpPage.Path))
	r.Get("/sign-up/*", redirectTo(signUpPage.Path))

	for _, page := range []authPage{signInPage, signUpPage} {
		r.Get(page.Path, h.handleShow(page))
		r.Post(page.Path, h.handleSubmit(page))
		r.Post(page.Path+"/oauth", h.handleOAuth(page))
	}

	r.Get(handshake.CallbackPath, h.handleSSOCallback)
	r.Post("/sign-out", h.handleSignOut)
}

func redirectTo(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, path, http.StatusFound)
	}
}

func (h *Handler) handleHome(w http.ResponseWriter, r *http.Request) {
	session := h.currentSession(r)
	props := ui.HomeProps{SignedIn: session != nil}
	if session != nil {
		props.UserID = session.UserID
		observability.SetUserID(r.Context(), session.UserID)
	}
	render(w, r, http.StatusOK, ui.HomePage(props))
}

func (h *Handler) handleShow(page authPage) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		render(w, r, http.StatusOK, ui.AuthPage(page.view(h.currentSession(r) != nil, nil, nil, "")))
	}
}

// currentSession returns the session the route guard attached, or asks the
// provider when the request did not pass through the guard.
func (h *Handler) currentSession(r *http.Request) *identity.Session {
	if auth, ok := identity.AuthFromContext(r.Context()); ok {
		return auth.Session
	}
	token := identity.SessionToken(r)
	if token == "" {
		return nil
	}
	session, err := h.idp.CheckSession(r.Context(), token)
	if err != nil {
		if !errors.Is(err, identity.ErrNoSession) {
			log.FromContext(r.Context()).Warn("session check failed", "error", err)
		}
		return nil
	}
	return session
}

// origin is the scheme and host the browser used to reach us.
func (h *Handler) origin(r *http.Request) string {
	if h.opts.BaseURL != "" {
		return h.opts.BaseURL
	}
	scheme := "http"
	if r.TLS != nil || strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https") {
		scheme = "https"
	}
	return scheme + "://" + r.Host
}

func render(w http.ResponseWriter, r *http.Request, status int, c templ.Component) {
	templ.Handler(c, templ.WithStatus(status)).ServeHTTP(w, r)
}
