package middleware

import (
	"net/http"
	"strings"
)

// CORS handles cross-origin request headers and preflight.
type CORS struct {
	allowedOrigins []string
	allowAll       bool
}

// NewCORS builds the middleware from a comma-separated origin list.
// "*" allows every origin.
func NewCORS(origins string) *CORS {
	var allowed []string
	allowAll := false
	for _, o := range strings.Split(origins, ",") {
		o = strings.TrimSpace(o)
		if o == "" {
			continue
		}
		if o == "*" {
			allowAll = true
		}
		allowed = append(allowed, o)
	}
	return &CORS{allowedOrigins: allowed, allowAll: allowAll}
}

// Handler returns the CORS middleware handler.
func (c *CORS) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")

		if c.allowAll || c.allowed(origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
			w.Header().Set("Access-Control-Max-Age", "3600")
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (c *CORS) allowed(origin string) bool {
	for _, a := range c.allowedOrigins {
		if a == origin {
			return true
		}
	}
	return false
}
