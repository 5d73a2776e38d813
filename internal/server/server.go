// internal/server/server.go

package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"locale/internal/adapter/eventbus"
	"locale/internal/config"
	"locale/internal/logger"
	"locale/internal/metrics"
	"locale/internal/server/handlers"
	"locale/internal/service/assistant"
	"locale/internal/service/search"
	sessionService "locale/internal/service/session"
)

// Dependencies are the services the HTTP layer exposes
type Dependencies struct {
	Sessions  *sessionService.Store
	Search    *search.Service
	Assistant *assistant.Service
	Bus       eventbus.Bus
	Metrics   *metrics.Metrics
	Status    handlers.StatusInfo
}

// Server represents the HTTP server
type Server struct {
	server *http.Server
	router *chi.Mux
}

// NewServer creates a new HTTP server
func NewServer(cfg config.Config, deps Dependencies, log *zap.Logger) *Server {
	router := chi.NewRouter()

	// Middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(logger.RequestLogger(log.Named("http")))
	router.Use(middleware.Recoverer)
	router.Use(handlers.Identity(cfg.Auth))

	// CORS configuration
	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.CorsOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Create handler dependencies
	sessionHandler := handlers.NewSessionHandler(deps.Sessions, cfg.Auth.Required, log)
	searchHandler := handlers.NewSearchHandler(deps.Sessions, deps.Search, log)
	chatHandler := handlers.NewChatHandler(deps.Sessions, deps.Assistant, log)

	wsConfig := handlers.DefaultWebSocketConfig()
	wsConfig.RequestTimeout = cfg.Server.RequestTimeout
	wsHandler := handlers.NewWebSocketHandler(deps.Sessions, deps.Bus, deps.Search, deps.Assistant, wsConfig, log)

	// Routes
	router.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(cfg.Server.RequestTimeout))

		// Health check
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("OK"))
		})

		// API version
		r.Route("/v1", func(r chi.Router) {
			r.Get("/status", handlers.StatusHandler(deps.Status))

			// Sessions API
			r.Route("/sessions", func(r chi.Router) {
				r.Post("/", sessionHandler.CreateSession)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", sessionHandler.GetSession)
					r.Delete("/", sessionHandler.DeleteSession)
					r.Put("/criteria", sessionHandler.UpdateCriteria)
					r.Post("/interests", sessionHandler.AddInterest)
					r.Delete("/interests/{interest}", sessionHandler.RemoveInterest)
					r.Post("/reset", sessionHandler.ResetSession)

					// Search and events
					r.Post("/search", searchHandler.Search)
					r.Get("/events", searchHandler.GetEvents)
					r.Get("/events.geojson", searchHandler.GetGeoJSON)
					r.Get("/events.ics", searchHandler.GetCalendar)

					// Architect chat
					r.Get("/chat", chatHandler.GetHistory)
					r.Post("/chat", chatHandler.SendMessage)
				})
			})
		})
	})

	// Prometheus metrics
	router.Method(http.MethodGet, "/metrics", deps.Metrics.Handler())

	// WebSocket endpoint for search and chat notifications
	router.Get("/ws/sessions/{id}", wsHandler.Serve)

	// Create HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return &Server{
		server: httpServer,
		router: router,
	}
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Addr returns the listen address
func (s *Server) Addr() string {
	return s.server.Addr
}

// ListenAndServe starts the HTTP server
func (s *Server) ListenAndServe() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
