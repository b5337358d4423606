package metrics

import (
	"strconv"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
)

// Watch-mode HTTP surface metrics.
const (
	HTTPRequestsTotal   = "http_requests_total"
	HTTPRequestDuration = "http_request_duration_ms"
	HTTPResponseBytes   = "http_response_size_bytes"
	HTTPErrorsTotal     = "http_errors_total"
	ErrorsTotal         = "errors_total"
	PanicsTotal         = "panics_total"
)

// HTTPRequest describes one served request. Route is the chi pattern, never
// the raw path.
type HTTPRequest struct {
	Method   string
	Route    string
	Status   int
	Duration time.Duration
	Bytes    int64
}

// RecordHTTPRequest emits the request counter, latency and response size,
// plus an error counter for 4xx and 5xx statuses.
func RecordHTTPRequest(req HTTPRequest) {
	tags := map[string]string{
		"method":   req.Method,
		"endpoint": req.Route,
		"status":   strconv.Itoa(req.Status),
	}
	emit(func(sys *telemetry.System) {
		_ = sys.Counter(HTTPRequestsTotal, 1, tags)
		_ = sys.Histogram(HTTPRequestDuration, req.Duration, tags)
		_ = sys.Gauge(HTTPResponseBytes, float64(req.Bytes), map[string]string{"endpoint": req.Route})

		if req.Status < 400 {
			return
		}
		class := "client_error"
		if req.Status >= 500 {
			class = "server_error"
		}
		_ = sys.Counter(HTTPErrorsTotal, 1, map[string]string{
			"endpoint":   req.Route,
			"status":     tags["status"],
			"error_type": class,
		})
	})
}

// RecordError counts an error document written by the server.
func RecordError(code string, httpStatus int, endpoint string) {
	emit(func(sys *telemetry.System) {
		_ = sys.Counter(ErrorsTotal, 1, map[string]string{
			"error_code":  code,
			"http_status": strconv.Itoa(httpStatus),
			"endpoint":    endpoint,
		})
	})
}

func RecordPanic() {
	emit(func(sys *telemetry.System) { _ = sys.Counter(PanicsTotal, 1, nil) })
}
