package server

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fulmenhq/gofulmen/errors"
	"go.uber.org/zap"

	apperrors "github.com/ohcupload/ohcupload/internal/errors"
	"github.com/ohcupload/ohcupload/internal/observability"
)

const fallbackMetricsPort = 9090

var metricsProxyClient = &http.Client{Timeout: 5 * time.Second}

// Headers scoped to the exporter connection; never forwarded.
var hopByHopHeaders = map[string]struct{}{
	"Connection":          {},
	"Keep-Alive":          {},
	"Proxy-Authenticate":  {},
	"Proxy-Authorization": {},
	"Te":                  {},
	"Trailer":             {},
	"Transfer-Encoding":   {},
	"Upgrade":             {},
}

func exporterURL() string {
	port := observability.GetMetricsPort()
	if port == 0 {
		port = fallbackMetricsPort
	}
	return fmt.Sprintf("http://127.0.0.1:%d/metrics", port)
}

// MetricsHandler serves the Prometheus exporter's output on the watch
// server so a single port covers status, trigger and scraping.
func MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if observability.PrometheusExporter == nil {
		apperrors.RespondWithError(w, r, apperrors.NewServiceUnavailableError("Metrics exporter not initialized"))
		return
	}

	target := exporterURL()
	fail := func(code, message string, cause error) {
		envelope, _ := errors.NewErrorEnvelope(code, message).WithContext(map[string]interface{}{
			"metrics_url":    target,
			"original_error": cause.Error(),
		})
		apperrors.RespondWithError(w, r, envelope)
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, target, nil)
	if err != nil {
		fail(apperrors.CodeInternal, "Unable to construct metrics request", err)
		return
	}
	if accept := r.Header.Get("Accept"); accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := metricsProxyClient.Do(req)
	if err != nil {
		fail(apperrors.CodeExternalService, "Prometheus exporter unavailable", err)
		return
	}
	defer func() { _ = resp.Body.Close() }()

	for key, values := range resp.Header {
		if _, skip := hopByHopHeaders[http.CanonicalHeaderKey(key)]; skip {
			continue
		}
		for _, v := range values {
			w.Header().Add(key, v)
		}
	}
	if w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	}

	w.WriteHeader(resp.StatusCode)
	if _, err := io.Copy(w, resp.Body); err != nil {
		if logger := observability.Logger(); logger != nil {
			logger.Warn("Failed to relay metrics response", zap.Error(err))
		}
	}
}
