// Package middleware provides HTTP middleware for the bot's webhook server.
package middleware

import (
	"net/http"
	"strings"
)

// allowedHeaders covers the webhook secret and the admin token used by the
// setup control call.
var allowedHeaders = strings.Join([]string{
	"Authorization",
	"Content-Type",
	"X-Admin-Token",
	"X-Telegram-Bot-Api-Secret-Token",
}, ", ")

// CORS returns middleware that handles CORS headers.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			if origin != "" {
				wildcard, explicit := matchOrigin(allowedOrigins, origin)
				if wildcard || explicit {
					w.Header().Set("Access-Control-Allow-Origin", origin)
					w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
					w.Header().Set("Access-Control-Allow-Headers", allowedHeaders)
					w.Header().Add("Vary", "Origin")
				}
				// Credentials only for explicit origins, never for a wildcard echo.
				if explicit {
					w.Header().Set("Access-Control-Allow-Credentials", "true")
				}
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func matchOrigin(allowed []string, origin string) (wildcard, explicit bool) {
	for _, o := range allowed {
		switch o {
		case "*":
			wildcard = true
		case origin:
			explicit = true
		}
	}
	return wildcard, explicit
}
