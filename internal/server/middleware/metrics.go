package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/ohcupload/ohcupload/internal/metrics"
	"github.com/ohcupload/ohcupload/internal/observability"
)

// statusRecorder remembers the status and byte count a handler wrote.
type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int64
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.bytes += int64(n)
	return n, err
}

// routeLabel keeps metric cardinality bounded: matched requests use the chi
// pattern, everything else collapses to "unmatched".
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unmatched"
}

// RequestMetrics records request metrics and an access log line for every
// request served by the watch server.
func RequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := observability.ServerLogger
		if observability.TelemetrySystem == nil && logger == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		sample := metrics.HTTPRequest{
			Method:   r.Method,
			Route:    routeLabel(r),
			Status:   rec.status,
			Duration: time.Since(start),
			Bytes:    rec.bytes,
		}
		metrics.RecordHTTPRequest(sample)

		if logger != nil {
			logger.Info("HTTP request completed",
				zap.String("method", sample.Method),
				zap.String("path", r.URL.Path),
				zap.String("endpoint", sample.Route),
				zap.Int("status", sample.Status),
				zap.Duration("duration", sample.Duration),
				zap.Int64("response_size", sample.Bytes),
				zap.String("request_id", GetRequestID(r.Context())))
		}
	})
}
