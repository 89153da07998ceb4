package server

import (
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/acme/autocert"

	"github.com/markb/livedocs/internal/log"
)

// HTTPSConfig holds automatic HTTPS configuration.
type HTTPSConfig struct {
	Domain    string // Public domain for the Let's Encrypt certificate
	CertDir   string // Certificate cache directory
	HTTPAddr  string // ACME challenges and the redirect to HTTPS, default ":80"
	HTTPSAddr string // Default ":443"
}

// ValidateDomain rejects names Let's Encrypt will not issue for: localhost,
// IP literals and malformed names.
func ValidateDomain(domain string) error {
	if domain == "" {
		return errors.New("domain required for HTTPS")
	}
	if strings.EqualFold(domain, "localhost") {
		return errors.New("Let's Encrypt requires a public domain, not localhost. Use a reverse proxy for local HTTPS")
	}
	if net.ParseIP(strings.Trim(domain, "[]")) != nil {
		return errors.New("Let's Encrypt requires a domain name, not an IP address")
	}
	for _, edge := range []string{".", "-"} {
		if strings.HasPrefix(domain, edge) || strings.HasSuffix(domain, edge) {
			return fmt.Errorf("invalid domain format: %s", domain)
		}
	}
	if strings.Contains(domain, "..") {
		return fmt.Errorf("invalid domain format: %s", domain)
	}
	return nil
}

// NewAutocertManager creates an autocert.Manager for domain that caches
// certificates in certDir.
func NewAutocertManager(domain, certDir string) *autocert.Manager {
	return &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domain),
		Cache:      autocert.DirCache(certDir),
	}
}

// NewTLSConfig creates a TLS config backed by manager, with HTTP/2 enabled.
func NewTLSConfig(manager *autocert.Manager) *tls.Config {
	return &tls.Config{
		GetCertificate: manager.GetCertificate,
		NextProtos:     []string{"h2", "http/1.1", "acme-tls/1"},
		MinVersion:     tls.VersionTLS12,
	}
}

// HTTPRedirectHandler sends plain HTTP requests to the HTTPS origin. Wrap it
// in autocert.Manager.HTTPHandler so ACME challenges are answered first.
func HTTPRedirectHandler(domain string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "https://"+domain+r.URL.RequestURI(), http.StatusMovedPermanently)
	})
}

// ListenAndServeTLS serves on HTTPS with certificates from Let's Encrypt and
// runs a plain HTTP listener for ACME challenges and redirects. It blocks
// until the HTTPS server stops.
func (s *Server) ListenAndServeTLS(cfg HTTPSConfig) error {
	if err := ValidateDomain(cfg.Domain); err != nil {
		return err
	}
	if cfg.CertDir == "" {
		cfg.CertDir = "certs"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":80"
	}
	if cfg.HTTPSAddr == "" {
		cfg.HTTPSAddr = ":443"
	}

	s.autocertMgr = NewAutocertManager(cfg.Domain, cfg.CertDir)
	s.httpRedirect = &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           s.autocertMgr.HTTPHandler(HTTPRedirectHandler(cfg.Domain)),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.httpsServer = &http.Server{
		Addr:              cfg.HTTPSAddr,
		Handler:           s.router,
		TLSConfig:         NewTLSConfig(s.autocertMgr),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		if err := s.httpRedirect.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP redirect server failed", "addr", cfg.HTTPAddr, "error", err)
		}
	}()

	log.Info("serving HTTPS", "domain", cfg.Domain, "addr", cfg.HTTPSAddr, "cert_dir", cfg.CertDir)
	return s.httpsServer.ListenAndServeTLS("", "")
}
