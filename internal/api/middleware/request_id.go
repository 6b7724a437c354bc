package middleware

import (
	"net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// RequestIDHeader carries the request id back to the client.
const RequestIDHeader = "X-Request-ID"

// EchoRequestID returns the id assigned by chi's RequestID middleware in the
// response, so player-side reports can be matched to log lines.
func EchoRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := chimw.GetReqID(r.Context()); id != "" {
			w.Header().Set(RequestIDHeader, id)
		}
		next.ServeHTTP(w, r)
	})
}
