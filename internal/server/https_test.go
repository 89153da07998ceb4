package server

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateDomain(t *testing.T) {
	tests := []struct {
		domain  string
		wantErr string
	}{
		{"docs.example.com", ""},
		{"my-site.example.com", ""},
		{"", "domain required"},
		{"LOCALHOST", "public domain"},
		{"127.0.0.1", "not an IP"},
		{"2001:db8::1", "not an IP"},
		{"[::1]", "not an IP"},
		{"example..com", "invalid domain"},
		{".example.com", "invalid domain"},
		{"example.com.", "invalid domain"},
		{"-example.com", "invalid domain"},
	}
	for _, tt := range tests {
		t.Run(tt.domain, func(t *testing.T) {
			err := ValidateDomain(tt.domain)
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestNewAutocertManager(t *testing.T) {
	m := NewAutocertManager("docs.example.com", t.TempDir())
	assert.NoError(t, m.HostPolicy(t.Context(), "docs.example.com"))
	assert.Error(t, m.HostPolicy(t.Context(), "evil.example.com"))

	cfg := NewTLSConfig(m)
	assert.Contains(t, cfg.NextProtos, "h2")
	assert.NotNil(t, cfg.GetCertificate)
}

func TestHTTPRedirectHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	HTTPRedirectHandler("docs.example.com").ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/modern-sign-in?redirect_url=%2Fdocs", nil))
	assert.Equal(t, http.StatusMovedPermanently, rec.Code)
	assert.Equal(t, "https://docs.example.com/modern-sign-in?redirect_url=%2Fdocs", rec.Header().Get("Location"))
}

func TestListenAndServeTLSRejectsLocalhost(t *testing.T) {
	s := &Server{}
	assert.ErrorContains(t, s.ListenAndServeTLS(HTTPSConfig{Domain: "localhost"}), "public domain")
}
