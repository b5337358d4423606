package metrics

import (
	"testing"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"
	telemetrytesting "github.com/fulmenhq/gofulmen/telemetry/testing"
	"github.com/stretchr/testify/require"

	"github.com/ohcupload/ohcupload/internal/observability"
)

func setupTelemetry(t *testing.T) *telemetrytesting.FakeCollector {
	t.Helper()

	collector := telemetrytesting.NewFakeCollector()
	sys, err := telemetry.NewSystem(&telemetry.Config{Enabled: true, Emitter: collector})
	require.NoError(t, err)

	original := observability.TelemetrySystem
	observability.TelemetrySystem = sys
	t.Cleanup(func() { observability.TelemetrySystem = original })

	return collector
}

func TestRecordersEmit(t *testing.T) {
	collector := setupTelemetry(t)

	RecordSubmission("accepted", 200, 150*time.Millisecond)
	RecordSkipped("invalid_format")
	RecordMarkerError()
	RecordQuotaWait("spacing", 12*time.Second)
	SetQuotaUsed(3)
	RecordRun(false, 3)
	RecordRunSkipped()
	RecordError("CONFLICT", 409, "/trigger")

	for _, name := range []string{
		SubmissionsTotal, SubmissionDuration, SkippedTotal, MarkerErrorsTotal,
		QuotaWaitsTotal, QuotaWaitDuration, QuotaUsed, RunsTotal, RunAccepted,
		RunsSkippedTotal, ErrorsTotal,
	} {
		require.Greater(t, collector.CountMetricsByName(name), 0, name)
	}
}

func TestRecordersWithoutTelemetry(t *testing.T) {
	original := observability.TelemetrySystem
	observability.TelemetrySystem = nil
	t.Cleanup(func() { observability.TelemetrySystem = original })

	require.NotPanics(t, func() {
		RecordSubmission("throttled", 429, time.Second)
		RecordRun(true, 0)
		RecordPanic()
		SetServerStartTime(time.Now().Unix())
	})
}

func TestRecordHTTPRequestCountsErrors(t *testing.T) {
	collector := setupTelemetry(t)

	RecordHTTPRequest(HTTPRequest{Method: "GET", Route: "/status", Status: 200, Duration: time.Millisecond, Bytes: 64})
	first := collector.CountMetricsByName(HTTPRequestsTotal)
	require.Greater(t, first, 0)
	require.Zero(t, collector.CountMetricsByName(HTTPErrorsTotal))

	RecordHTTPRequest(HTTPRequest{Method: "POST", Route: "/trigger", Status: 409})
	require.Greater(t, collector.CountMetricsByName(HTTPRequestsTotal), first)
	require.Greater(t, collector.CountMetricsByName(HTTPErrorsTotal), 0)
	require.Greater(t, collector.CountMetricsByName(HTTPResponseBytes), 0)
}
