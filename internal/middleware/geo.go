package middleware

import (
	"context"
	"net/http"
)

// CountryResolver maps a client IP to an ISO country code.
type CountryResolver interface {
	CountryCode(ip string) (string, error)
}

type countryKey struct{}

// Country stores the client's country in the request context so the access
// log can carry it. A nil resolver disables the lookup. Lookup failures are
// ignored.
func Country(resolver CountryResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if resolver == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if code, err := resolver.CountryCode(clientIPForRateLimit(r)); err == nil && code != "" {
				r = r.WithContext(context.WithValue(r.Context(), countryKey{}, code))
			}
			next.ServeHTTP(w, r)
		})
	}
}

// CountryFromContext returns the code stored by Country, or "".
func CountryFromContext(ctx context.Context) string {
	code, _ := ctx.Value(countryKey{}).(string)
	return code
}
