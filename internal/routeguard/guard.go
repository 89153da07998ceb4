// Package routeguard decides which requests need a session and enforces it.
//
// Every request the matcher covers gets its session checked with the identity
// provider, and the result is attached to the request context. Requests for
// paths outside the public allow-list are refused when no session backs them:
// API paths get a 401 JSON body, pages are redirected to sign-in.
package routeguard

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/markb/livedocs/internal/identity"
	"github.com/markb/livedocs/internal/log"
)

// DefaultPublicRoutes are reachable without a session.
var DefaultPublicRoutes = []string{
	"/",
	"/sign-in(.*)",
	"/sign-up(.*)",
	"/modern-sign-in(.*)",
	"/modern-sign-up(.*)",
	"/sso-callback(.*)",
	"/api/auth/(.*)",
	"/api/liveblocks-auth",
	"/sign-out",
}

// DefaultSignInPath is where unauthenticated page requests are sent.
const DefaultSignInPath = "/modern-sign-in"

// Class is how the guard treats a path.
type Class string

const (
	ClassSkipped   Class = "skipped"
	ClassPublic    Class = "public"
	ClassProtected Class = "protected"
)

// Guard holds the compiled allow-list and the session checker.
type Guard struct {
	public     []Pattern
	checker    identity.SessionChecker
	signInPath string
}

// New compiles the default public routes plus extra. checker may be nil when
// the guard is only used to classify paths.
func New(checker identity.SessionChecker, extra ...string) (*Guard, error) {
	g := &Guard{checker: checker, signInPath: DefaultSignInPath}
	for _, raw := range append(append([]string{}, DefaultPublicRoutes...), extra...) {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		p, err := Compile(raw)
		if err != nil {
			return nil, err
		}
		g.public = append(g.public, p)
	}
	return g, nil
}

// PublicRoutes returns the compiled allow-list in order.
func (g *Guard) PublicRoutes() []Pattern {
	return append([]Pattern(nil), g.public...)
}

// IsPublic reports whether path matches the allow-list.
func (g *Guard) IsPublic(path string) bool {
	for _, p := range g.public {
		if p.Match(path) {
			return true
		}
	}
	return false
}

// Classify reports how the middleware would treat path.
func (g *Guard) Classify(path string) Class {
	switch {
	case !Applies(path):
		return ClassSkipped
	case g.IsPublic(path):
		return ClassPublic
	default:
		return ClassProtected
	}
}

// Applies reports whether the guard runs for path. Static files (anything with
// a dot in it), framework asset prefixes and /static/ are skipped; API paths
// always run.
func Applies(path string) bool {
	if path == "" || path == "/" || isAPIPath(path) {
		return true
	}
	rest := strings.TrimPrefix(path, "/")
	if strings.Contains(rest, ".") || strings.HasPrefix(rest, "_next") || strings.HasPrefix(rest, "static/") {
		return false
	}
	return true
}

func isAPIPath(path string) bool {
	return strings.HasPrefix(path, "/api") || strings.HasPrefix(path, "/trpc")
}

// Middleware enforces the guard. A request that already carries a session
// check result, e.g. from an outer router, is not checked again.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if !Applies(path) {
			next.ServeHTTP(w, r)
			return
		}

		auth, ok := identity.AuthFromContext(r.Context())
		if !ok {
			auth = g.check(r)
			r = r.WithContext(identity.WithAuth(r.Context(), auth))
		}

		if auth.SignedIn() || g.IsPublic(path) {
			next.ServeHTTP(w, r)
			return
		}

		if isAPIPath(path) {
			writeUnauthorized(w)
			return
		}
		http.Redirect(w, r, g.signInURL(r.URL), http.StatusFound)
	})
}

func (g *Guard) check(r *http.Request) identity.Auth {
	token := identity.SessionToken(r)
	if token == "" || g.checker == nil {
		return identity.Auth{}
	}
	s, err := g.checker.CheckSession(r.Context(), token)
	if err != nil {
		if errors.Is(err, identity.ErrNoSession) {
			return identity.Auth{}
		}
		log.Warn("session check failed", "path", r.URL.Path, "error", err)
		return identity.Auth{Err: err}
	}
	return identity.Auth{Session: s}
}

func (g *Guard) signInURL(u *url.URL) string {
	target := u.Path
	if u.RawQuery != "" {
		target += "?" + u.RawQuery
	}
	return g.signInPath + "?redirect_url=" + url.QueryEscape(target)
}

func writeUnauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "Unauthorized"})
}
