package errors

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/fulmenhq/gofulmen/errors"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ohcupload/ohcupload/internal/metrics"
	"github.com/ohcupload/ohcupload/internal/observability"
	"github.com/ohcupload/ohcupload/internal/server/middleware"
)

// HTTPErrorDetail is the error body returned to callers.
type HTTPErrorDetail struct {
	Code      string                 `json:"code"`
	Message   string                 `json:"message"`
	Details   map[string]interface{} `json:"details,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
}

// HTTPErrorResponse is the JSON document written for every failed request.
type HTTPErrorResponse struct {
	Error HTTPErrorDetail `json:"error"`
}

func requestIDOrNew(ctx context.Context) string {
	if ctx != nil {
		if id := middleware.GetRequestID(ctx); id != "" {
			return id
		}
	}
	return uuid.New().String()
}

// EnsureEnvelope turns any error into a gofulmen envelope. Plain errors
// become INTERNAL_ERROR with the original text kept as context.
func EnsureEnvelope(err error) *errors.ErrorEnvelope {
	if envelope, ok := err.(*errors.ErrorEnvelope); ok && envelope != nil {
		return envelope
	}

	message, severity := "unexpected error", errors.SeverityHigh
	ctxData := map[string]interface{}{}
	if err == nil {
		message, severity = "unexpected nil error", errors.SeverityCritical
	} else {
		ctxData["wrapped_error"] = err.Error()
	}

	envelope := errors.NewErrorEnvelope(CodeInternal, message)
	if len(ctxData) > 0 {
		envelope, _ = envelope.WithContext(ctxData)
	}
	envelope, _ = envelope.WithSeverity(severity)
	return envelope
}

// EnsureCorrelationID sets the request ID from ctx on envelopes that lack one.
func EnsureCorrelationID(envelope *errors.ErrorEnvelope, ctx context.Context) *errors.ErrorEnvelope {
	if envelope == nil || envelope.CorrelationID != "" {
		return envelope
	}
	id := ""
	if ctx != nil {
		id = middleware.GetRequestID(ctx)
	}
	if id == "" {
		id = "fallback-" + errors.GenerateCorrelationID()
	}
	return envelope.WithCorrelationID(id)
}

// ResponseDetails merges envelope details and context. Details win on
// key collisions.
func ResponseDetails(envelope *errors.ErrorEnvelope) map[string]interface{} {
	if envelope == nil || len(envelope.Details)+len(envelope.Context) == 0 {
		return nil
	}
	merged := make(map[string]interface{}, len(envelope.Details)+len(envelope.Context))
	for key, value := range envelope.Context {
		merged[key] = value
	}
	for key, value := range envelope.Details {
		merged[key] = value
	}
	return merged
}

// RespondWithError writes err as a JSON error document.
func RespondWithError(w http.ResponseWriter, r *http.Request, err error) {
	if w == nil {
		return
	}

	var ctx context.Context
	route := ""
	if r != nil {
		ctx = r.Context()
		route = r.URL.Path
	}
	envelope := EnsureCorrelationID(EnsureEnvelope(err), ctx)
	status := HTTPStatusFromEnvelope(envelope)

	logEnvelope(envelope, status, route)
	metrics.RecordError(envelope.Code, status, route)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(HTTPErrorResponse{Error: HTTPErrorDetail{
		Code:      envelope.Code,
		Message:   envelope.Message,
		Details:   ResponseDetails(envelope),
		RequestID: envelope.CorrelationID,
	}})
}

func logEnvelope(envelope *errors.ErrorEnvelope, status int, route string) {
	logger := observability.ServerLogger
	if logger == nil {
		return
	}

	fields := []zap.Field{
		zap.String("error_code", envelope.Code),
		zap.Int("http_status", status),
		zap.String("path", route),
		zap.String("request_id", envelope.CorrelationID),
	}
	if envelope.Severity != "" {
		fields = append(fields, zap.String("severity", string(envelope.Severity)))
	}
	for key, value := range envelope.Context {
		fields = append(fields, zap.Any(key, value))
	}

	switch {
	case envelope.Severity == errors.SeverityCritical || envelope.Severity == errors.SeverityHigh || status >= 500:
		logger.Error(envelope.Message, fields...)
	case envelope.Severity == errors.SeverityMedium:
		logger.Warn(envelope.Message, fields...)
	default:
		logger.Info(envelope.Message, fields...)
	}
}
