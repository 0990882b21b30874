package middleware

import (
	"net/http"

	"github.com/go-chi/cors"
)

// CORS allows the customer, rider and admin web clients listed in origins.
// With no origins configured only the local dev frontend is allowed; a
// wildcard is never used because requests carry credentials.
func CORS(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:3000"}
	}
	return cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", idempotencyHeader, requestIDHeader},
		ExposedHeaders:   []string{requestIDHeader, "Idempotent-Replayed"},
		AllowCredentials: true,
		MaxAge:           600,
	})
}
