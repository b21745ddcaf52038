package middleware

import (
	"net/http"
	"strings"
)

// CORSHeaders lists the request headers every endpoint accepts.
const CORSHeaders = "Content-Type, Authorization"

// CORS sets the allow headers on every response and answers preflight
// requests with 204 and no body. methods are the endpoint's verbs; OPTIONS
// is appended.
func CORS(allowOrigin string, methods ...string) func(http.Handler) http.Handler {
	if allowOrigin == "" {
		allowOrigin = "*"
	}
	allowMethods := strings.Join(append(append([]string(nil), methods...), http.MethodOptions), ", ")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allowOrigin)
			h.Set("Access-Control-Allow-Headers", CORSHeaders)
			h.Set("Access-Control-Allow-Methods", allowMethods)
			if allowOrigin != "*" {
				h.Add("Vary", "Origin")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
