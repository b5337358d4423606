package integration

import (
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"syscall"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/ohcupload/ohcupload/internal/observability"
	"github.com/ohcupload/ohcupload/internal/server"
)

// sandboxBlocked reports socket errors from environments that forbid binds.
func sandboxBlocked(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EACCES) || errors.Is(err, syscall.EPERM) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "permission denied") || strings.Contains(msg, "not permitted")
}

// startMetrics brings up the exporter under the "test" prefix and tears the
// global telemetry state down afterwards.
func startMetrics(t *testing.T) {
	t.Helper()
	if err := observability.InitMetrics("test", 0, "test"); err != nil {
		if sandboxBlocked(err) {
			t.Skipf("metrics exporter cannot bind: %v", err)
		}
		require.NoError(t, err)
	}
	t.Cleanup(func() { _ = observability.ShutdownMetrics() })
}

// newTestServer serves the watch router on an IPv4 loopback port.
func newTestServer(t *testing.T, opts server.Options, setup func(*chi.Mux)) (*httptest.Server, *http.Client) {
	t.Helper()
	opts.Host = "127.0.0.1"
	srv := server.New(opts)
	if mux, ok := srv.Handler().(*chi.Mux); ok && setup != nil {
		setup(mux)
	}

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		if sandboxBlocked(err) {
			t.Skipf("loopback listen refused: %v", err)
		}
		require.NoError(t, err)
	}

	ts := &httptest.Server{Listener: listener, Config: &http.Server{Handler: srv.Handler()}}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts, ts.Client()
}
