package handshake

import (
	"errors"
	"net/url"
	"strings"
)

const (
	// CallbackPath is where the provider sends the browser back.
	CallbackPath = "/sso-callback"

	// CompletePath is where the browser lands after a completed handshake.
	CompletePath = "/"

	// SignInPath is offered as the way out of a failed handshake.
	SignInPath = "/modern-sign-in"
)

// ErrUnsafeRedirect is returned for redirect targets that could leave the
// application's origin.
var ErrUnsafeRedirect = errors.New("redirect target must be a same-origin relative path")

// IsRelativePath reports whether p is a path on the application's own origin:
// it starts with a single "/" and carries no scheme or host.
func IsRelativePath(p string) bool {
	if p == "" || p[0] != '/' {
		return false
	}
	if strings.HasPrefix(p, "//") || strings.ContainsAny(p, "\\\r\n") {
		return false
	}
	u, err := url.Parse(p)
	if err != nil {
		return false
	}
	return u.Scheme == "" && u.Host == ""
}

func checkRelative(paths ...string) error {
	for _, p := range paths {
		if !IsRelativePath(p) {
			return ErrUnsafeRedirect
		}
	}
	return nil
}
