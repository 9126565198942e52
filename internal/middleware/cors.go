package middleware

import (
	"net/http"

	"printsync/internal/config"

	"github.com/go-chi/cors"
)

// AdminCORS lets the catalog admin UI call /api from a browser. Webhooks are
// server-to-server and are never mounted behind it.
func AdminCORS(cfg config.ServerConfig) func(http.Handler) http.Handler {
	origins := cfg.AllowedOrigins
	if cfg.Env == "development" || len(origins) == 0 {
		origins = []string{"*"}
	}

	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           300,
	})
}
