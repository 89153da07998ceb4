// Package server assembles the LiveDocs HTTP surface: middleware, the route
// guard, the pages and the JSON callback endpoints.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"golang.org/x/crypto/acme/autocert"

	"github.com/markb/livedocs/internal/db"
	"github.com/markb/livedocs/internal/handshake"
	"github.com/markb/livedocs/internal/identity"
	"github.com/markb/livedocs/internal/log"
	"github.com/markb/livedocs/internal/observability"
	"github.com/markb/livedocs/internal/routeguard"
	"github.com/markb/livedocs/internal/ui"
	"github.com/markb/livedocs/internal/web"
)

// Config holds server configuration.
type Config struct {
	// BaseURL is the public origin, e.g. https://docs.example.com. Empty means
	// derive it from each request.
	BaseURL       string
	SecureCookies bool

	// AllowedOrigins for CORS on /api. Empty disables CORS, so browsers keep
	// /api same-origin.
	AllowedOrigins []string

	// PublicRoutes are added to routeguard.DefaultPublicRoutes.
	PublicRoutes []string

	ServiceName string
	Telemetry   *observability.Telemetry
}

type Server struct {
	db     *db.DB
	idp    identity.Client
	flows  *handshake.Store
	guard  *routeguard.Guard
	router *chi.Mux
	cfg    Config

	initiator *handshake.Initiator
	completer *handshake.Completer

	// HTTP server for graceful shutdown
	httpServer *http.Server

	// HTTPS fields
	httpsServer  *http.Server
	httpRedirect *http.Server
	autocertMgr  *autocert.Manager
}

// New builds the server. It fails only when a public route pattern is invalid.
func New(database *db.DB, idp identity.Client, cfg Config) (*Server, error) {
	if cfg.ServiceName == "" {
		cfg.ServiceName = "livedocs"
	}

	guard, err := routeguard.New(idp, cfg.PublicRoutes...)
	if err != nil {
		return nil, fmt.Errorf("public routes: %w", err)
	}

	flows := handshake.NewStore(database.DB)
	s := &Server{
		db:        database,
		idp:       idp,
		flows:     flows,
		guard:     guard,
		router:    chi.NewRouter(),
		cfg:       cfg,
		initiator: handshake.NewInitiator(idp, flows),
		completer: handshake.NewCompleter(idp, flows),
	}

	recordTransition := func(ctx context.Context, intent identity.Intent, from, to handshake.State) {
		cfg.Telemetry.RecordHandshakeTransition(ctx, string(intent), from.String(), to.String())
	}
	s.initiator.OnTransition = recordTransition
	s.completer.OnTransition = recordTransition

	s.setupRoutes()
	return s, nil
}

func (s *Server) setupRoutes() {
	s.router.Use(log.RequestLogger)
	s.router.Use(middleware.Recoverer)
	s.router.Use(observability.HTTPMiddleware(s.cfg.Telemetry, s.cfg.ServiceName))

	s.router.Get("/health", s.handleHealth)
	s.router.Handle("/static/*", http.StripPrefix("/static/", ui.StaticHandler()))

	pages := web.New(s.idp, s.initiator, s.completer, web.Options{
		SecureCookies: s.cfg.SecureCookies,
		BaseURL:       s.cfg.BaseURL,
		Telemetry:     s.cfg.Telemetry,
	})

	s.router.Group(func(r chi.Router) {
		r.Use(s.guard.Middleware)

		pages.RegisterRoutes(r)
		r.Get("/modern-sign-in/google", s.handleAuthCallback)

		r.Route("/api", func(r chi.Router) {
			// cors treats an empty origin list as "*"
			if len(s.cfg.AllowedOrigins) > 0 {
				r.Use(cors.Handler(cors.Options{
					AllowedOrigins:   s.cfg.AllowedOrigins,
					AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
					AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-ID"},
					ExposedHeaders:   []string{"X-Request-ID"},
					AllowCredentials: true,
					MaxAge:           300,
				}))
			}
			r.Use(middleware.SetHeader("Content-Type", "application/json"))

			r.Get("/auth/google/callback", s.handleAuthCallback)
			r.Get("/sentry-example-api", s.handleSentryExample)
		})
	})

	// Paths without a route still go through the guard, so protected pages
	// redirect to sign-in before they 404.
	s.router.NotFound(s.guard.Middleware(http.NotFoundHandler()).ServeHTTP)
}

func (s *Server) Router() *chi.Mux {
	return s.router
}

// Guard returns the route guard, e.g. for classifying paths from the CLI.
func (s *Server) Guard() *routeguard.Guard {
	return s.guard
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func (s *Server) handleSentryExample(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"data": "Sentry example API - Error throwing temporarily disabled"})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s.httpServer.ListenAndServe()
}

// StartFlowCleanup removes expired handshake flows every interval until ctx
// is done.
func (s *Server) StartFlowCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.flows.CleanupExpired(ctx)
				if err != nil {
					if ctx.Err() == nil {
						log.Error("handshake flow cleanup failed", "error", err)
					}
					continue
				}
				if n > 0 {
					log.Debug("removed expired handshake flows", "count", n)
				}
			}
		}
	}()
	log.Info("handshake flow cleanup routine started", "interval", interval.String())
}

// Shutdown gracefully shuts down the HTTP server(s).
func (s *Server) Shutdown(ctx context.Context) error {
	var errs []error

	if s.httpsServer != nil {
		if err := s.httpsServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTPS server: %w", err))
		}
	}

	if s.httpRedirect != nil {
		if err := s.httpRedirect.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP redirect server: %w", err))
		}
	}

	if s.httpServer != nil {
		if err := s.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP server: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}
