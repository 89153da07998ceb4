package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/markb/livedocs/internal/config"
	"github.com/markb/livedocs/internal/db"
	"github.com/markb/livedocs/internal/identity/hosted"
	"github.com/markb/livedocs/internal/log"
	"github.com/markb/livedocs/internal/observability"
	"github.com/markb/livedocs/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the LiveDocs server",
	Long:  `Starts the HTTP server with the auth pages, the Google handshake and the callback endpoints.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		if err := log.Init(cfg.LogConfig()); err != nil {
			return fmt.Errorf("failed to initialize logging: %w", err)
		}
		defer log.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		tel, cleanupTel, err := observability.Init(ctx, cfg.TelemetryConfig(Version))
		if err != nil {
			return fmt.Errorf("failed to initialize telemetry: %w", err)
		}
		defer cleanupTel()

		database, err := openDatabase(cfg.DBPath)
		if err != nil {
			return err
		}
		defer database.Close()

		hostedCfg, err := cfg.HostedConfig()
		if err != nil {
			return err
		}
		idp, err := hosted.New(hostedCfg)
		if err != nil {
			return fmt.Errorf("failed to create identity client: %w", err)
		}

		srv, err := server.New(database, idp, server.Config{
			BaseURL:        cfg.BaseURL,
			SecureCookies:  cfg.SecureCookies || cfg.HTTPSDomain != "",
			AllowedOrigins: cfg.AllowedOrigins,
			PublicRoutes:   cfg.PublicRoutes,
			Telemetry:      tel,
		})
		if err != nil {
			return err
		}
		srv.StartFlowCleanup(ctx, cfg.FlowCleanupInterval)

		errCh := make(chan error, 1)
		go func() {
			if cfg.HTTPSDomain != "" {
				errCh <- srv.ListenAndServeTLS(server.HTTPSConfig{Domain: cfg.HTTPSDomain, CertDir: cfg.CertDir})
				return
			}
			log.Info("starting LiveDocs", "addr", cfg.Addr(), "identity_provider", cfg.IDPURL, "version", Version)
			errCh <- srv.ListenAndServe(cfg.Addr())
		}()

		select {
		case err := <-errCh:
			if err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		case <-ctx.Done():
		}

		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	},
}

// loadConfig reads the environment and applies any flags the user set.
// Priority: CLI flags > environment variables > defaults
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("db") {
		cfg.DBPath, _ = flags.GetString("db")
	}
	if flags.Changed("port") {
		cfg.Port, _ = flags.GetInt("port")
	}
	if flags.Changed("host") {
		cfg.Host, _ = flags.GetString("host")
	}
	if flags.Changed("base-url") {
		cfg.BaseURL, _ = flags.GetString("base-url")
	}
	if flags.Changed("https") {
		cfg.HTTPSDomain, _ = flags.GetString("https")
	}
	if flags.Changed("cert-dir") {
		cfg.CertDir, _ = flags.GetString("cert-dir")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}
	if flags.Changed("public-route") {
		extra, _ := flags.GetStringSlice("public-route")
		cfg.PublicRoutes = append(cfg.PublicRoutes, extra...)
	}
	return cfg, nil
}

// openDatabase opens the flow store, creating it on first use.
func openDatabase(path string) (*db.DB, error) {
	database, err := db.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.RunMigrations(); err != nil {
		database.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return database, nil
}

func addServeFlags(cmd *cobra.Command) {
	cmd.Flags().String("db", "livedocs.db", "Path to database file")
	cmd.Flags().IntP("port", "p", 8080, "Port to listen on")
	cmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	cmd.Flags().String("base-url", "", "Public origin sent to the identity provider (default: request origin)")
	cmd.Flags().String("https", "", "Domain for automatic HTTPS via Let's Encrypt")
	cmd.Flags().String("cert-dir", "certs", "Certificate cache directory")
	cmd.Flags().String("log-level", "info", "Log level: debug, info, warn, error")
	cmd.Flags().StringSlice("public-route", nil, "Extra public route pattern (repeatable)")
}

func init() {
	rootCmd.AddCommand(serveCmd)
	addServeFlags(serveCmd)
}
