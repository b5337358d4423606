package errors

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ohcupload/ohcupload/internal/server/middleware"
)

func TestHTTPStatusFromCode(t *testing.T) {
	require.Equal(t, http.StatusConflict, HTTPStatusFromCode(CodeConflict))
	require.Equal(t, http.StatusServiceUnavailable, HTTPStatusFromCode(CodeServiceUnavailable))
	require.Equal(t, http.StatusNotFound, HTTPStatusFromCode(CodeNotFound))
	require.Equal(t, http.StatusInternalServerError, HTTPStatusFromCode(CodeDatabase))
	require.Equal(t, http.StatusServiceUnavailable, HTTPStatusFromCode(CodeConfigInvalid))
	require.Equal(t, http.StatusBadGateway, HTTPStatusFromCode(CodeExternalService))
	require.Equal(t, http.StatusInternalServerError, HTTPStatusFromEnvelope(nil))
}

func TestWrapCarriesRequestID(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDContextKey, "req-1")

	envelope := WrapConflict(ctx, stderrors.New("busy"), "batch running")
	require.Equal(t, CodeConflict, envelope.Code)
	require.Equal(t, "req-1", envelope.CorrelationID)
	require.Equal(t, "busy", envelope.Context["wrapped_error"])
}

func TestEnsureEnvelopeWrapsPlainErrors(t *testing.T) {
	envelope := EnsureEnvelope(stderrors.New("boom"))
	require.Equal(t, CodeInternal, envelope.Code)
	require.Equal(t, "boom", envelope.Context["wrapped_error"])

	same := NewNotFoundError("missing")
	require.Same(t, same, EnsureEnvelope(same))
}

func TestRespondWithError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/trigger", nil)
	rec := httptest.NewRecorder()

	RespondWithError(rec, req, NewServiceUnavailableError("uploader inactive"))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body HTTPErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	require.Equal(t, CodeServiceUnavailable, body.Error.Code)
	require.Equal(t, "uploader inactive", body.Error.Message)
	require.NotEmpty(t, body.Error.RequestID)
}
