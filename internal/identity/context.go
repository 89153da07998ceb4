package identity

import "context"

type contextKey string

const authContextKey contextKey = "auth"

// Auth is the result of the session check made for a request. Err is set when
// the provider could not answer; a missing session is Session == nil with
// Err == nil or ErrNoSession.
type Auth struct {
	Session *Session
	Err     error
}

// SignedIn reports whether the request carries a valid session.
func (a Auth) SignedIn() bool {
	return a.Session != nil
}

// WithAuth stores the session check result in ctx.
func WithAuth(ctx context.Context, auth Auth) context.Context {
	return context.WithValue(ctx, authContextKey, auth)
}

// AuthFromContext returns the session check result stored by the route guard.
// ok is false when no check ran for this request.
func AuthFromContext(ctx context.Context) (auth Auth, ok bool) {
	if ctx == nil {
		return Auth{}, false
	}
	auth, ok = ctx.Value(authContextKey).(Auth)
	return auth, ok
}
