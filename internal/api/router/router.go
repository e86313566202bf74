package router

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	httpmiddleware "github.com/cryptolock-ai/whatsapp-relay/internal/http/middleware"
	"github.com/cryptolock-ai/whatsapp-relay/internal/relay"
	"github.com/cryptolock-ai/whatsapp-relay/pkg/logging"
)

// Config holds router configuration
type Config struct {
	Logger         *logging.Logger
	RelayHandler   *relay.Handler
	MetricsHandler http.Handler
}

// New creates a new Chi router with all routes configured
func New(cfg *Config) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if cfg.Logger != nil {
		r.Use(httpmiddleware.RequestLogger(cfg.Logger))
	}

	r.Get("/", cfg.RelayHandler.Root)
	r.Get("/health", cfg.RelayHandler.HealthCheck)
	r.Get("/status", cfg.RelayHandler.Status)
	r.Get("/webhook", cfg.RelayHandler.VerifyWebhook)
	r.Post("/webhook", cfg.RelayHandler.ReceiveWebhook)

	r.Route("/admin", func(admin chi.Router) {
		admin.Delete("/sessions", cfg.RelayHandler.ClearSessions)
		admin.Delete("/sessions/{userID}", cfg.RelayHandler.DeleteSession)
	})

	if cfg.MetricsHandler != nil {
		r.Handle("/metrics", cfg.MetricsHandler)
	}

	return r
}
