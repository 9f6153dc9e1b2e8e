package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/capitalize-ai/expat-assistant/internal/middleware"
	natsclient "github.com/capitalize-ai/expat-assistant/internal/nats"
	"github.com/capitalize-ai/expat-assistant/internal/service"
	"github.com/capitalize-ai/expat-assistant/pkg/logger"
)

// RouterConfig holds what the HTTP surface needs besides the session service.
type RouterConfig struct {
	JWTSecret          string
	CORSAllowedOrigins []string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	NATSClient         *natsclient.Client
	Store              Pinger
}

// NewRouter builds the gateway's HTTP routes.
func NewRouter(cfg RouterConfig, svc *service.SessionService, log *logger.Logger) http.Handler {
	healthHandler := NewHealthHandler(cfg.NATSClient, cfg.Store)
	widgetHandler := NewWidgetHandler(svc.Widget())
	sessionHandler := NewSessionHandler(svc, log)

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(log))
	r.Use(middleware.SecurityHeaders)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.CORSAllowedOrigins))

	// Health endpoints (no auth required)
	r.Get("/health", healthHandler.Health)
	r.Get("/ready", healthHandler.Ready)

	// Metrics endpoint
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/widget/config", widgetHandler.Config)

	r.Route("/api/v1", func(r chi.Router) {
		// Opening a session is anonymous, so it is limited per IP.
		r.With(httprate.LimitByIP(cfg.RateLimitRequests, cfg.RateLimitWindow)).
			Post("/sessions", sessionHandler.Create)

		r.Route("/session", func(r chi.Router) {
			r.Use(middleware.Auth(cfg.JWTSecret))
			r.Use(middleware.RateLimit(cfg.RateLimitRequests, cfg.RateLimitWindow))

			r.Get("/transcript", sessionHandler.Transcript)
			r.Get("/transcript.html", sessionHandler.TranscriptHTML)
			r.Get("/history", sessionHandler.History)
			r.Post("/messages", sessionHandler.SendMessage)
			r.Post("/events", sessionHandler.TrackEvent)

			r.Route("/entries/{entryID}", func(r chi.Router) {
				r.Post("/more", sessionHandler.LoadMore)
				r.Post("/faq/{faqID}/toggle", sessionHandler.ToggleFAQ)
			})
		})
	})

	return r
}
