package hosted

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
)

// randomToken returns 32 random bytes encoded as a 43-character URL-safe string.
func randomToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateCodeVerifier returns a PKCE code verifier (RFC 7636).
func GenerateCodeVerifier() (string, error) {
	return randomToken()
}

// GenerateState returns an opaque OAuth state value. The handshake uses it as
// the flow identifier.
func GenerateState() (string, error) {
	return randomToken()
}

// CodeChallengeS256 computes the S256 code challenge for verifier.
func CodeChallengeS256(verifier string) string {
	hash := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(hash[:])
}
