package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	status      int
	size        int64
	wroteHeader bool
}

func (rw *responseWriter) WriteHeader(code int) {
	if !rw.wroteHeader {
		rw.status = code
		rw.wroteHeader = true
	}
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	rw.wroteHeader = true
	n, err := rw.ResponseWriter.Write(b)
	rw.size += int64(n)
	return n, err
}

// Flush lets streamed bodies reach the client as they are relayed.
func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Logger returns a middleware that logs HTTP requests.
func Logger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			wrapped := &responseWriter{
				ResponseWriter: w,
				status:         http.StatusOK,
			}

			next.ServeHTTP(wrapped, r)

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", wrapped.status,
				"size", humanize.Bytes(uint64(wrapped.size)),
				"duration", time.Since(start),
				"remote_addr", r.RemoteAddr,
				"request_id", chimw.GetReqID(r.Context()),
			}
			if rng := r.Header.Get("Range"); rng != "" {
				attrs = append(attrs, "range", rng)
			}
			logger.Info("http request", attrs...)
		})
	}
}
