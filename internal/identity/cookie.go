package identity

import (
	"net/http"
	"strings"
	"time"
)

// SessionCookieName is the cookie holding the provider-issued session token.
const SessionCookieName = "__session"

// SessionToken returns the session token sent with r, or "".
func SessionToken(r *http.Request) string {
	if r == nil {
		return ""
	}
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(cookie.Value)
}

// SetSessionCookie stores an activated session in the response.
func SetSessionCookie(w http.ResponseWriter, active *ActiveSession, secure bool) {
	if active == nil || active.Token == "" {
		return
	}
	cookie := &http.Cookie{
		Name:     SessionCookieName,
		Value:    active.Token,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
	if !active.ExpiresAt.IsZero() {
		cookie.Expires = active.ExpiresAt
		cookie.MaxAge = int(time.Until(active.ExpiresAt).Seconds())
		if cookie.MaxAge <= 0 {
			cookie.MaxAge = -1
		}
	}
	http.SetCookie(w, cookie)
}

// ClearSessionCookie deletes the session cookie.
func ClearSessionCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
