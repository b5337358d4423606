package metrics

import (
	"strconv"
	"time"

	"github.com/fulmenhq/gofulmen/telemetry"

	"github.com/ohcupload/ohcupload/internal/observability"
)

// Upload pipeline metrics.
const (
	SubmissionsTotal   = "ohc_submissions_total"
	SubmissionDuration = "ohc_submission_duration_ms"
	SkippedTotal       = "ohc_artifacts_skipped_total"
	MarkerErrorsTotal  = "ohc_marker_errors_total"
	QuotaWaitsTotal    = "ohc_quota_waits_total"
	QuotaWaitDuration  = "ohc_quota_wait_duration_ms"
	QuotaUsed          = "ohc_quota_uploads_this_window"
	RunsTotal          = "ohc_runs_total"
	RunsSkippedTotal   = "ohc_runs_skipped_total"
	RunAccepted        = "ohc_run_accepted"

	ServerStartTime = "app_server_start_time_seconds"
)

// emit hands one sample to the telemetry system when metrics are on.
func emit(record func(sys *telemetry.System)) {
	if sys := observability.TelemetrySystem; sys != nil {
		record(sys)
	}
}

// RecordSubmission records one submission attempt by outcome kind.
func RecordSubmission(outcome string, statusCode int, duration time.Duration) {
	emit(func(sys *telemetry.System) {
		_ = sys.Counter(SubmissionsTotal, 1, map[string]string{
			"outcome": outcome,
			"status":  strconv.Itoa(statusCode),
		})
		_ = sys.Histogram(SubmissionDuration, duration, map[string]string{"outcome": outcome})
	})
}

// RecordSkipped counts an artifact dropped before submission.
func RecordSkipped(reason string) {
	emit(func(sys *telemetry.System) {
		_ = sys.Counter(SkippedTotal, 1, map[string]string{"reason": reason})
	})
}

func RecordMarkerError() {
	emit(func(sys *telemetry.System) { _ = sys.Counter(MarkerErrorsTotal, 1, nil) })
}

// RecordQuotaWait records a pacing, cap or cooldown wait.
func RecordQuotaWait(reason string, wait time.Duration) {
	emit(func(sys *telemetry.System) {
		tags := map[string]string{"reason": reason}
		_ = sys.Counter(QuotaWaitsTotal, 1, tags)
		_ = sys.Histogram(QuotaWaitDuration, wait, tags)
	})
}

func SetQuotaUsed(count int) {
	emit(func(sys *telemetry.System) { _ = sys.Gauge(QuotaUsed, float64(count), nil) })
}

// RecordRun records a finished batch.
func RecordRun(aborted bool, accepted int) {
	status := "completed"
	if aborted {
		status = "aborted"
	}
	emit(func(sys *telemetry.System) {
		_ = sys.Counter(RunsTotal, 1, map[string]string{"status": status})
		_ = sys.Gauge(RunAccepted, float64(accepted), nil)
	})
}

// RecordRunSkipped counts a trigger dropped because a batch was active.
func RecordRunSkipped() {
	emit(func(sys *telemetry.System) { _ = sys.Counter(RunsSkippedTotal, 1, nil) })
}

// SetServerStartTime records the watch server start as a Unix timestamp.
func SetServerStartTime(timestamp int64) {
	emit(func(sys *telemetry.System) { _ = sys.Gauge(ServerStartTime, float64(timestamp), nil) })
}
