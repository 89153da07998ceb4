// Package config reads the LiveDocs server settings from LIVEDOCS_*
// environment variables.
package config

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/markb/livedocs/internal/identity/hosted"
	"github.com/markb/livedocs/internal/log"
	"github.com/markb/livedocs/internal/observability"
)

// Config holds every server setting.
type Config struct {
	Host    string `env:"LIVEDOCS_HOST"     envDefault:"0.0.0.0"`
	Port    int    `env:"LIVEDOCS_PORT"     envDefault:"8080"`
	BaseURL string `env:"LIVEDOCS_BASE_URL"`
	DBPath  string `env:"LIVEDOCS_DB"       envDefault:"livedocs.db"`

	// Hosted identity provider
	IDPURL           string        `env:"LIVEDOCS_IDP_URL"`
	IDPSecretKey     string        `env:"LIVEDOCS_IDP_SECRET_KEY"`
	IDPPublicKey     string        `env:"LIVEDOCS_IDP_PUBLIC_KEY"`
	IDPPublicKeyFile string        `env:"LIVEDOCS_IDP_PUBLIC_KEY_FILE"`
	OAuthClientID    string        `env:"LIVEDOCS_OAUTH_CLIENT_ID"`
	OAuthSecret      string        `env:"LIVEDOCS_OAUTH_CLIENT_SECRET"`
	IDPTimeout       time.Duration `env:"LIVEDOCS_IDP_TIMEOUT"            envDefault:"10s"`

	PublicRoutes   []string `env:"LIVEDOCS_PUBLIC_ROUTES"  envSeparator:","`
	AllowedOrigins []string `env:"LIVEDOCS_ALLOWED_ORIGINS" envSeparator:","`
	SecureCookies  bool     `env:"LIVEDOCS_SECURE_COOKIES"`

	// Automatic HTTPS; empty domain serves plain HTTP
	HTTPSDomain string `env:"LIVEDOCS_HTTPS_DOMAIN"`
	CertDir     string `env:"LIVEDOCS_CERT_DIR" envDefault:"certs"`

	FlowCleanupInterval time.Duration `env:"LIVEDOCS_FLOW_CLEANUP_INTERVAL" envDefault:"1m"`

	LogMode       string `env:"LIVEDOCS_LOG_MODE"        envDefault:"console"`
	LogLevel      string `env:"LIVEDOCS_LOG_LEVEL"       envDefault:"info"`
	LogFormat     string `env:"LIVEDOCS_LOG_FORMAT"      envDefault:"text"`
	LogFile       string `env:"LIVEDOCS_LOG_FILE"        envDefault:"livedocs.log"`
	LogMaxSizeMB  int    `env:"LIVEDOCS_LOG_MAX_SIZE_MB" envDefault:"100"`
	LogMaxAgeDays int    `env:"LIVEDOCS_LOG_MAX_AGE"     envDefault:"7"`
	LogMaxBackups int    `env:"LIVEDOCS_LOG_MAX_BACKUPS" envDefault:"3"`

	OTelExporter   string  `env:"LIVEDOCS_OTEL_EXPORTER"    envDefault:"none"`
	OTelEndpoint   string  `env:"LIVEDOCS_OTEL_ENDPOINT"    envDefault:"localhost:4317"`
	OTelSampleRate float64 `env:"LIVEDOCS_OTEL_SAMPLE_RATE" envDefault:"0.1"`
	OTelMetrics    bool    `env:"LIVEDOCS_OTEL_METRICS"     envDefault:"true"`
	OTelTraces     bool    `env:"LIVEDOCS_OTEL_TRACES"      envDefault:"true"`
}

// Load parses the environment into a Config with defaults applied.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings serve needs.
func (c *Config) Validate() error {
	var errs []error
	if c.IDPURL == "" {
		errs = append(errs, errors.New("LIVEDOCS_IDP_URL is required"))
	}
	if c.IDPSecretKey == "" {
		errs = append(errs, errors.New("LIVEDOCS_IDP_SECRET_KEY is required"))
	}
	if c.IDPPublicKey != "" && c.IDPPublicKeyFile != "" {
		errs = append(errs, errors.New("set only one of LIVEDOCS_IDP_PUBLIC_KEY and LIVEDOCS_IDP_PUBLIC_KEY_FILE"))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			errs = append(errs, fmt.Errorf("invalid LIVEDOCS_BASE_URL %q", c.BaseURL))
		}
	}
	switch c.LogMode {
	case "console", "file":
	default:
		errs = append(errs, fmt.Errorf("invalid log mode %q: must be console or file", c.LogMode))
	}
	switch c.OTelExporter {
	case "none", "stdout", "otlp":
	default:
		errs = append(errs, fmt.Errorf("invalid OTel exporter %q: must be none, stdout or otlp", c.OTelExporter))
	}
	if c.OTelSampleRate < 0 || c.OTelSampleRate > 1 {
		errs = append(errs, fmt.Errorf("invalid OTel sample rate %v: must be between 0 and 1", c.OTelSampleRate))
	}
	return errors.Join(errs...)
}

// Addr is the listen address for plain HTTP.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// LogConfig returns the logging settings.
func (c *Config) LogConfig() *log.Config {
	return &log.Config{
		Mode:       c.LogMode,
		Level:      c.LogLevel,
		Format:     c.LogFormat,
		FilePath:   c.LogFile,
		MaxSizeMB:  c.LogMaxSizeMB,
		MaxAgeDays: c.LogMaxAgeDays,
		MaxBackups: c.LogMaxBackups,
	}
}

// TelemetryConfig returns the OpenTelemetry settings.
func (c *Config) TelemetryConfig(version string) *observability.Config {
	cfg := observability.NewConfig()
	cfg.Exporter = c.OTelExporter
	cfg.Endpoint = c.OTelEndpoint
	cfg.SampleRate = c.OTelSampleRate
	cfg.MetricsEnabled = c.OTelMetrics
	cfg.TracesEnabled = c.OTelTraces
	if version != "" {
		cfg.ServiceVersion = version
	}
	return cfg
}

// HostedConfig returns the hosted provider client settings, reading the
// public key file when one is configured.
func (c *Config) HostedConfig() (hosted.Config, error) {
	pem := c.IDPPublicKey
	if c.IDPPublicKeyFile != "" {
		data, err := os.ReadFile(c.IDPPublicKeyFile)
		if err != nil {
			return hosted.Config{}, fmt.Errorf("read identity provider public key: %w", err)
		}
		pem = string(data)
	}
	return hosted.Config{
		BaseURL:      c.IDPURL,
		SecretKey:    c.IDPSecretKey,
		PublicKeyPEM: pem,
		ClientID:     c.OAuthClientID,
		ClientSecret: c.OAuthSecret,
		Timeout:      c.IDPTimeout,
	}, nil
}
