package httpapi

import (
	"net/http"
	"strings"
	"time"

	"pkt.systems/fileclassifier/internal/logx"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (r *statusRecorder) Write(p []byte) (int, error) {
	if r.status == 0 {
		r.status = http.StatusOK
	}
	n, err := r.ResponseWriter.Write(p)
	r.bytes += int64(n)
	return n, err
}

// Flush keeps the event stream working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// withRequestLogging binds a session-scoped logger to every request context
// and logs one line per API call. Asset fetches, preflights and the event
// stream are logged at debug; server errors at warn.
func (s *Server) withRequestLogging(next http.Handler) http.Handler {
	key := s.service.Key()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		log := logx.WithSession(r.Context(), key).With("remote", r.RemoteAddr)
		r = r.WithContext(logx.ContextWithSessionLogger(r.Context(), log, key))
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)

		status := rec.status
		if status == 0 {
			status = http.StatusOK
		}
		fields := []any{"method", r.Method, "path", r.URL.Path, "status", status, "bytes", rec.bytes, "duration_ms", time.Since(start).Milliseconds()}
		if index := r.URL.Query().Get("index"); index != "" {
			fields = append(fields, "index", index)
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Warn("http request", fields...)
		case quietRequest(r):
			log.Debug("http request", fields...)
		default:
			log.Info("http request", fields...)
		}
	})
}

func quietRequest(r *http.Request) bool {
	return r.Method == http.MethodOptions ||
		r.URL.Path == "/api/stream" ||
		strings.HasPrefix(r.URL.Path, "/assets/")
}
