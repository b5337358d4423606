package integration

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ohcupload/ohcupload/internal/core"
	"github.com/ohcupload/ohcupload/internal/core/engine"
	"github.com/ohcupload/ohcupload/internal/core/scanner"
	"github.com/ohcupload/ohcupload/internal/core/submit"
	"github.com/ohcupload/ohcupload/internal/observability"
	"github.com/ohcupload/ohcupload/internal/server"
	"github.com/ohcupload/ohcupload/internal/status"
)

func scrape(t *testing.T, client *http.Client, url string) (string, *http.Response) {
	t.Helper()
	resp, err := client.Get(url + "/metrics")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, err)
	return string(body), resp
}

func TestMetricsCoverUploadsAndHTTP(t *testing.T) {
	observability.InitServerLogger("test", "info")
	startMetrics(t)

	api := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(20 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(api.Close)

	dir := t.TempDir()
	for _, name := range []string{"a.22000", "b.22000", "c.22000"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("WPA*02*"+name+"\n"), 0o644))
	}

	quota := engine.NewQuotaTracker(engine.DefaultQuotaLimits, nil)
	orch := &engine.Orchestrator{
		Scanner: &scanner.Scanner{},
		Client:  &submit.Client{URL: api.URL, Timeout: 5 * time.Second},
		Quota:   quota,
		Status:  &status.Recorder{},
		Sleeper: instantSleeper{},
	}
	require.True(t, orch.Activate(nil))
	req := engine.Request{Dir: dir, Credentials: core.Credentials{APIKey: "sk_test", Email: "me@example.com"}}

	ts, client := newTestServer(t, server.Options{
		Status:  orch,
		Quota:   quota,
		Trigger: orchestratorTrigger{orch: orch, req: req},
	}, nil)

	// Concurrent triggers: one runs, the rest collide or find nothing new.
	var wg sync.WaitGroup
	codes := make(chan int, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Post(ts.URL+"/trigger?wait=true", "application/json", nil)
			if err != nil {
				return
			}
			_ = resp.Body.Close()
			codes <- resp.StatusCode
		}()
	}
	wg.Wait()
	close(codes)

	seen := map[int]int{}
	for code := range codes {
		seen[code]++
	}
	assert.Greater(t, seen[http.StatusOK], 0)
	for code := range seen {
		assert.Contains(t, []int{http.StatusOK, http.StatusConflict}, code)
	}
	assert.Equal(t, 3, quota.Snapshot().UploadsThisWindow)

	for _, path := range []string{"/status", "/missing", "/health"} {
		resp, err := client.Get(ts.URL + path)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	body, resp := scrape(t, client, ts.URL)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/plain"))
	for _, name := range []string{
		"test_http_requests_total",
		"test_http_request_duration_ms",
		"test_ohc_submissions_total",
		"test_ohc_runs_total",
		"test_ohc_quota_uploads_this_window",
	} {
		assert.Contains(t, body, name)
	}
}

func TestMetricsUnavailableWithoutExporter(t *testing.T) {
	observability.InitServerLogger("test", "info")
	require.NoError(t, observability.ShutdownMetrics())

	ts, client := newTestServer(t, server.Options{}, nil)

	_, resp := scrape(t, client, ts.URL)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
