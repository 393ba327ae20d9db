package daemon

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/nasstate/internal/logfields"
)

// logResponseWriter captures status code and size for logging.
type logResponseWriter struct {
	http.ResponseWriter
	status int
	size   int
}

func (rw *logResponseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *logResponseWriter) Write(b []byte) (int, error) {
	size, err := rw.ResponseWriter.Write(b)
	rw.size += size
	return size, err
}

// Flush keeps event streams working through the wrapper.
func (rw *logResponseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *logResponseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }

// requestLogging logs each request with a request id.
func requestLogging(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := uuid.NewString()
		rw := &logResponseWriter{ResponseWriter: w, status: http.StatusOK}
		rw.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(rw, r)

		level := slog.LevelDebug
		if rw.status >= 400 {
			level = slog.LevelWarn
		}
		if rw.status >= 500 {
			level = slog.LevelError
		}
		logger.Log(r.Context(), level, "HTTP request completed",
			slog.String("request_id", requestID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", rw.status),
			logfields.DurationMS(float64(time.Since(start).Nanoseconds())/1e6),
			slog.Int("response_size", rw.size))
	})
}
