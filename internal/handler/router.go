package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sudwiptokm/TravelBuddy/internal/middleware"
	"github.com/sudwiptokm/TravelBuddy/internal/service"
	"github.com/sudwiptokm/TravelBuddy/pkg/logger"
)

// RouterConfig carries what the HTTP surface needs.
type RouterConfig struct {
	Session         *service.Session
	JWTSecret       string
	RateLimit       int
	RateLimitWindow time.Duration
	StreamHeartbeat time.Duration
	Ready           map[string]Pinger
	Logger          *logger.Logger
}

// NewRouter builds the API routes.
func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger

	healthHandler := NewHealthHandler(cfg.Ready)
	userHandler := NewUserHandler(cfg.Session, log)
	conversationHandler := NewConversationHandler(cfg.Session, log)
	messageHandler := NewMessageHandler(cfg.Session, log)
	streamHandler := NewStreamHandler(cfg.Session, cfg.StreamHeartbeat, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS())

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	// API routes with authentication
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWTSecret))
		if cfg.RateLimit > 0 {
			r.Use(middleware.UserRateLimit(cfg.RateLimit, cfg.RateLimitWindow))
		}

		r.Get("/users", userHandler.List)
		r.Post("/presence", userHandler.Touch)

		r.Route("/conversations", func(r chi.Router) {
			r.Get("/", conversationHandler.List)
			r.Post("/", conversationHandler.Resolve)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/messages", messageHandler.List)
				r.Post("/messages", messageHandler.Send)
				r.Post("/read", messageHandler.MarkRead)
				r.Get("/unread", messageHandler.Unread)
				r.Get("/stream", streamHandler.Stream)
			})
		})
	})

	return r
}
