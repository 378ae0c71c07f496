// Package throttle provides an HTTP middleware that rate limits requests,
// returning 429.  Hardware buses do not appreciate being hammered by a
// client in a hot loop.
package throttle

import (
	"net/http"

	"golang.org/x/time/rate"
)

// New returns a middleware allowing rps requests per second with the given
// burst, applied across all clients.
func New(rps float64, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
