package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Host)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "livedocs.db", cfg.DBPath)
	assert.Equal(t, 10*time.Second, cfg.IDPTimeout)
	assert.Equal(t, time.Minute, cfg.FlowCleanupInterval)
	assert.Equal(t, "none", cfg.OTelExporter)
	assert.True(t, cfg.OTelMetrics)
	assert.False(t, cfg.SecureCookies)
	assert.Equal(t, "0.0.0.0:8080", cfg.Addr())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("LIVEDOCS_PORT", "9090")
	t.Setenv("LIVEDOCS_IDP_URL", "https://auth.example.com")
	t.Setenv("LIVEDOCS_IDP_TIMEOUT", "3s")
	t.Setenv("LIVEDOCS_PUBLIC_ROUTES", "/docs/public(.*),/api/webhooks/(.*)")
	t.Setenv("LIVEDOCS_SECURE_COOKIES", "true")
	t.Setenv("LIVEDOCS_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, 3*time.Second, cfg.IDPTimeout)
	assert.Equal(t, []string{"/docs/public(.*)", "/api/webhooks/(.*)"}, cfg.PublicRoutes)
	assert.True(t, cfg.SecureCookies)
	assert.Equal(t, "debug", cfg.LogConfig().Level)
}

func TestLoadBadValue(t *testing.T) {
	t.Setenv("LIVEDOCS_PORT", "eighty")
	_, err := Load()
	assert.ErrorContains(t, err, "parse env")
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg, err := Load()
		require.NoError(t, err)
		cfg.IDPURL = "https://auth.example.com"
		cfg.IDPSecretKey = "sk_test"
		return cfg
	}

	assert.NoError(t, valid().Validate())

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing url", func(c *Config) { c.IDPURL = "" }, "LIVEDOCS_IDP_URL is required"},
		{"missing secret", func(c *Config) { c.IDPSecretKey = "" }, "LIVEDOCS_IDP_SECRET_KEY is required"},
		{"two keys", func(c *Config) { c.IDPPublicKey = "x"; c.IDPPublicKeyFile = "y" }, "only one"},
		{"bad port", func(c *Config) { c.Port = 70000 }, "invalid port"},
		{"bad base url", func(c *Config) { c.BaseURL = "docs.example.com" }, "LIVEDOCS_BASE_URL"},
		{"bad log mode", func(c *Config) { c.LogMode = "database" }, "invalid log mode"},
		{"bad exporter", func(c *Config) { c.OTelExporter = "zipkin" }, "invalid OTel exporter"},
		{"bad sample rate", func(c *Config) { c.OTelSampleRate = 2 }, "sample rate"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.wantErr)
		})
	}
}

func TestTelemetryConfig(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	cfg.OTelExporter = "stdout"

	tel := cfg.TelemetryConfig("1.2.3")
	assert.Equal(t, "stdout", tel.Exporter)
	assert.Equal(t, "1.2.3", tel.ServiceVersion)
	assert.Equal(t, "livedocs", tel.ServiceName)
	assert.True(t, tel.ShouldEnable())
}

func TestHostedConfig(t *testing.T) {
	keyFile := filepath.Join(t.TempDir(), "idp.pem")
	require.NoError(t, os.WriteFile(keyFile, []byte("-----BEGIN PUBLIC KEY-----\n"), 0600))

	cfg := &Config{IDPURL: "https://auth.example.com", IDPSecretKey: "sk", IDPPublicKeyFile: keyFile, IDPTimeout: time.Second}
	hc, err := cfg.HostedConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://auth.example.com", hc.BaseURL)
	assert.Equal(t, "-----BEGIN PUBLIC KEY-----\n", hc.PublicKeyPEM)
	assert.Equal(t, time.Second, hc.Timeout)

	cfg.IDPPublicKeyFile = filepath.Join(t.TempDir(), "missing.pem")
	_, err = cfg.HostedConfig()
	assert.Error(t, err)
}
