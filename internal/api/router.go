package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/iconidentify/vidembed/internal/api/handler"
	mw "github.com/iconidentify/vidembed/internal/api/middleware"
)

// previewTimeout bounds preview rendering. Streams are not bounded.
const previewTimeout = 30 * time.Second

// NewRouter creates the HTTP router with all routes configured.
func NewRouter(
	postHandler *handler.PostHandler,
	healthHandler *handler.HealthHandler,
	redirector *handler.Redirector,
	logger *slog.Logger,
) *chi.Mux {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.CleanPath) // Normalize paths (e.g., //health -> /health)
	r.Use(middleware.RequestID)
	r.Use(mw.EchoRequestID)
	r.Use(middleware.RealIP)
	r.Use(mw.Logger(logger))
	r.Use(mw.Recovery(logger))

	// Players embed the stream cross-origin.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"Range", "Accept"},
		ExposedHeaders: []string{"Content-Range", "Content-Length", "Accept-Ranges", mw.RequestIDHeader},
		MaxAge:         300,
	}))

	r.Get("/health", healthHandler.Live)

	r.Route("/profile/{repository}/post/{post}", func(r chi.Router) {
		r.With(middleware.Timeout(previewTimeout)).Get("/", postHandler.Preview)
		r.With(middleware.Timeout(previewTimeout)).Head("/", postHandler.Preview)
		r.Get("/stream", postHandler.Stream)
		r.Head("/stream", postHandler.Stream)
	})

	r.Get("/", redirector.ServeHTTP)
	r.NotFound(redirector.ServeHTTP)

	return r
}
