// Package server arma el router chi y el ciclo de vida del http.Server.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dropDatabas3/keybridge/internal/http/handlers"
	mw "github.com/dropDatabas3/keybridge/internal/http/middlewares"
	"github.com/dropDatabas3/keybridge/internal/observability/logger"
	"github.com/dropDatabas3/keybridge/internal/rate"
)

// Options configura el servidor HTTP.
type Options struct {
	Addr       string
	TrustProxy bool
	// Limiter nil ⇒ sin rate limit de transporte.
	Limiter rate.Limiter
}

type Server struct {
	http *http.Server
}

// New construye el router completo del gateway.
func New(opts Options, d *handlers.Deps) *Server {
	r := chi.NewRouter()

	// Públicos
	r.Get("/healthz", d.Healthz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Post("/v1/auth/login", d.Login)

	// Gestión: requieren sesión de operador.
	r.Group(func(r chi.Router) {
		r.Use(mw.WithAuth(d.Issuer, d.Revoked))
		r.Post("/v1/auth/logout", d.Logout)
		r.Post("/v1/keys", d.CreateKey)
		r.Get("/v1/keys", d.ListKeys)
		r.Delete("/v1/keys/{keyID}", d.DeactivateKey)
		r.Post("/v1/webhooks", d.RegisterWebhook)
	})

	// Proxy: el pipeline hace su propia autorización (etapas fijas), no va
	// detrás de WithAuth para que el orden address→sesión→cuota→credencial
	// sea exactamente el del pipeline.
	r.Post("/v1/proxy/{provider}", d.Proxy)
	r.Post("/v1/proxy/{provider}/*", d.Proxy)

	// Capa global: request-id afuera de todo, logging después, rate limit
	// al final (así el 429 ya sale logueado y con request id).
	base := []mw.Middleware{mw.WithRequestID(), mw.WithLogging()}
	if opts.Limiter != nil {
		base = append(base, mw.WithRateLimit(opts.Limiter, opts.TrustProxy))
	}

	return &Server{
		http: &http.Server{
			Addr:              opts.Addr,
			Handler:           mw.Chain(r, base...),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// Handler expone el router (tests de integración).
func (s *Server) Handler() http.Handler { return s.http.Handler }

// Run bloquea sirviendo hasta que el listener cierre.
func (s *Server) Run() error {
	logger.Named("http").Info("listening", logger.Addr(s.http.Addr))
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drena conexiones con el deadline del contexto.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}
