package middleware

import (
	"net/http"
	"strings"

	"github.com/go-chi/cors"
)

// CORS lets a browser client on allowedOrigin call the API. An empty
// allowedOrigin disables the middleware. Preflight OPTIONS requests are
// answered with 204 and never reach the router.
//
// CREDENTIALS:
// A named origin may send the token cookie (AllowCredentials). The "*"
// wildcard admits any site, so it gets no credentials: a wildcard client
// must send its token in the Authorization header.
func CORS(allowedOrigin string) func(http.Handler) http.Handler {
	allowedOrigin = strings.TrimRight(strings.TrimSpace(allowedOrigin), "/")
	if allowedOrigin == "" {
		return func(next http.Handler) http.Handler { return next }
	}

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{allowedOrigin},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: allowedOrigin != "*",
		MaxAge:           600,
		// cors writes 200 itself unless the preflight is passed on.
		OptionsPassthrough: true,
	})
	return func(next http.Handler) http.Handler {
		return c.Handler(endPreflight(next))
	}
}

// endPreflight stops a preflight that cors has already answered.
func endPreflight(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
