package httpapi

import (
	"log/slog"
	"net/http"
	"time"
)

// NewServer wraps h with access logging. A nil logger logs to slog.Default.
func NewServer(addr string, h http.Handler, logger *slog.Logger) *http.Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &http.Server{
		Addr:              addr,
		Handler:           accessLog(logger, h),
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// countingWriter remembers the status code and body size of a response.
type countingWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (cw *countingWriter) WriteHeader(code int) {
	cw.status = code
	cw.ResponseWriter.WriteHeader(code)
}

func (cw *countingWriter) Write(p []byte) (int, error) {
	n, err := cw.ResponseWriter.Write(p)
	cw.bytes += n
	return n, err
}

// accessLog logs one line per request. Health probes go to debug so they
// don't drown the info stream.
func accessLog(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		began := time.Now()
		cw := &countingWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(cw, r)

		level := slog.LevelInfo
		if r.URL.Path == "/healthz" {
			level = slog.LevelDebug
		}
		logger.Log(r.Context(), level, "http: request served",
			"method", r.Method,
			"path", r.URL.Path,
			"status", cw.status,
			"bytes", cw.bytes,
			"took", time.Since(began).Round(time.Microsecond),
		)
	})
}
