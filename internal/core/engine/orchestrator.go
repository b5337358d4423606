package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ohcupload/ohcupload/internal/core"
	"github.com/ohcupload/ohcupload/internal/core/scanner"
	"github.com/ohcupload/ohcupload/internal/metrics"
	"github.com/ohcupload/ohcupload/internal/status"
)

var (
	// ErrInactive is returned when configuration never validated.
	ErrInactive = errors.New("uploader is inactive")
	// ErrRunInProgress is returned when a trigger arrives during a batch.
	ErrRunInProgress = errors.New("upload batch already in progress")
)

// Abort reasons recorded on a RunSummary.
const (
	AbortCancelled = "cancelled"
)

// Discoverer lists candidate artifacts.
type Discoverer interface {
	Discover(dir string, whitelist scanner.Whitelist) scanner.Scan
}

// Submitter validates and submits a single hash line.
type Submitter interface {
	Validate(content string) error
	Submit(ctx context.Context, content string, creds core.Credentials) core.Outcome
}

// Quota gates every submission attempt.
type Quota interface {
	CheckAndReserve(ctx context.Context) Decision
	SatisfyWait(ctx context.Context, d Decision)
	RecordAttempt(ctx context.Context, outcome core.Outcome)
	Snapshot() core.QuotaState
}

// RunObserver is told about every finished batch.
type RunObserver interface {
	RunFinished(ctx context.Context, summary *core.RunSummary)
}

// Request is the input of one batch.
type Request struct {
	Dir         string
	Credentials core.Credentials
	Whitelist   scanner.Whitelist
}

// Orchestrator runs upload batches one at a time.
type Orchestrator struct {
	Scanner   Discoverer
	Client    Submitter
	Quota     Quota
	Status    status.Sink
	Policy    FailurePolicy
	Sleeper   Sleeper
	Observers []RunObserver
	Logger    *logging.Logger
	Clock     func() time.Time

	// ReadLine and Mark default to the scanner helpers.
	ReadLine func(path string) (string, error)
	Mark     func(artifact core.Artifact) error

	// Cooldown is the wait announced after a throttled attempt. Zero means
	// DefaultQuotaLimits.Cooldown.
	Cooldown time.Duration

	// AnnouncePause and FinishPause keep a status on screen for a moment.
	AnnouncePause time.Duration
	FinishPause   time.Duration

	activateOnce sync.Once
	ready        atomic.Bool

	runMu   sync.Mutex
	running atomic.Bool

	lastMu sync.RWMutex
	last   *core.RunSummary
}

// Activate records the one-time configuration verdict. Only the first call
// counts: an invalid configuration leaves the orchestrator inactive for the
// rest of the process.
func (o *Orchestrator) Activate(configErr error) bool {
	o.activateOnce.Do(func() {
		if configErr != nil {
			if o.Logger != nil {
				o.Logger.Error("OHC: configuration invalid, uploader disabled", zap.Error(configErr))
			}
			return
		}
		o.ready.Store(true)
		if o.Logger != nil {
			o.Logger.Info("OHC: uploader ready")
		}
	})
	return o.ready.Load()
}

// Active reports whether the orchestrator accepted its configuration.
func (o *Orchestrator) Active() bool {
	return o.ready.Load()
}

// Running reports whether a batch is in progress.
func (o *Orchestrator) Running() bool {
	return o.running.Load()
}

// LastRun returns the summary of the most recent finished batch.
func (o *Orchestrator) LastRun() *core.RunSummary {
	o.lastMu.RLock()
	defer o.lastMu.RUnlock()
	if o.last == nil {
		return nil
	}
	copied := *o.last
	return &copied
}

// RunOnce scans for artifacts and submits them sequentially under quota
// control. A call made while another batch is active returns
// ErrRunInProgress immediately.
func (o *Orchestrator) RunOnce(ctx context.Context, req Request) (*core.RunSummary, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if !o.Active() {
		return nil, ErrInactive
	}
	if !o.runMu.TryLock() {
		metrics.RecordRunSkipped()
		if o.Logger != nil {
			o.Logger.Debug("OHC: batch already running, trigger dropped")
		}
		return nil, ErrRunInProgress
	}
	o.running.Store(true)
	defer func() {
		o.running.Store(false)
		o.runMu.Unlock()
	}()

	summary := &core.RunSummary{
		RunID:     uuid.New().String(),
		StartedAt: o.now(),
	}
	err := o.process(ctx, req, summary)
	summary.FinishedAt = o.now()

	o.lastMu.Lock()
	stored := *summary
	o.last = &stored
	o.lastMu.Unlock()

	metrics.RecordRun(summary.Aborted, summary.Accepted)
	for _, observer := range o.Observers {
		if observer != nil {
			observer.RunFinished(ctx, summary)
		}
	}
	if o.Logger != nil {
		o.Logger.Info("OHC: batch finished",
			zap.String("run_id", summary.RunID),
			zap.Int("candidates", summary.Candidates),
			zap.Int("accepted", summary.Accepted),
			zap.Int("skipped", summary.Skipped),
			zap.Bool("aborted", summary.Aborted),
			zap.String("abort_reason", summary.AbortReason))
	}

	return summary, err
}

func (o *Orchestrator) process(ctx context.Context, req Request, summary *core.RunSummary) error {
	scan := o.Scanner.Discover(req.Dir, req.Whitelist)
	if scan.Err != nil && o.Logger != nil {
		o.Logger.Warn("OHC: handshake directory unavailable", zap.Error(scan.Err))
	}

	total := len(scan.Artifacts)
	summary.Candidates = total
	if total == 0 {
		o.report("No new handshakes", status.IconIdle)
		return o.pause(ctx, o.FinishPause)
	}

	o.report(fmt.Sprintf("Found %d\nReady to upload!", total), status.IconReady)
	if err := o.pause(ctx, o.AnnouncePause); err != nil {
		summary.Aborted = true
		summary.AbortReason = AbortCancelled
		o.finish(summary)
		return err
	}

	for idx, artifact := range scan.Artifacts {
		o.report(fmt.Sprintf("%d/%d", idx+1, total), status.IconProgress)

		content, ok := o.load(artifact)
		if !ok {
			summary.Skipped++
			continue
		}

		if err := o.awaitQuota(ctx); err != nil {
			summary.Aborted = true
			summary.AbortReason = AbortCancelled
			o.finish(summary)
			return err
		}

		o.report("Uploading...", status.IconUploading)
		started := time.Now()
		outcome := o.Client.Submit(ctx, content, req.Credentials)
		o.Quota.RecordAttempt(ctx, outcome)
		metrics.RecordSubmission(string(outcome.Kind), outcome.StatusCode, time.Since(started))
		metrics.SetQuotaUsed(o.Quota.Snapshot().UploadsThisWindow)

		summary.Attempted++
		recorded := outcome
		summary.LastOutcome = &recorded

		if outcome.Accepted() {
			summary.Accepted++
			o.report("Uploaded!", status.IconSuccess)
			if err := o.mark(artifact); err != nil {
				metrics.RecordMarkerError()
				if o.Logger != nil {
					o.Logger.Error("OHC: failed to write marker, artifact may be resubmitted",
						zap.String("artifact", artifact.Path), zap.Error(err))
				}
			}
			continue
		}

		o.reportFailure(outcome)
		if o.policy().Decide(outcome) == ActionAbort {
			summary.Aborted = true
			summary.AbortReason = string(outcome.Kind)
			break
		}
	}

	o.finish(summary)
	return o.pause(ctx, o.FinishPause)
}

// load reads and validates an artifact, reporting why it was skipped.
func (o *Orchestrator) load(artifact core.Artifact) (string, bool) {
	content, err := o.readLine(artifact.Path)
	if err == nil {
		err = o.Client.Validate(content)
	}
	if err == nil {
		return content, true
	}

	reason := "unreadable"
	switch {
	case errors.Is(err, scanner.ErrEmptyArtifact):
		reason = "empty"
		o.report("Empty file!", status.IconEmpty)
	case errors.Is(err, scanner.ErrInvalidFormat):
		reason = "invalid_format"
		o.report("Invalid format!", status.IconInvalid)
	default:
		o.report("Read error!", status.IconReadError)
	}
	metrics.RecordSkipped(reason)
	if o.Logger != nil {
		o.Logger.Error("OHC: skipping artifact",
			zap.String("artifact", artifact.Path),
			zap.String("reason", reason),
			zap.Error(err))
	}
	return "", false
}

// awaitQuota blocks until the tracker permits a submission.
func (o *Orchestrator) awaitQuota(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		d := o.Quota.CheckAndReserve(ctx)
		if d.Proceed {
			return nil
		}

		o.reportWait(d)
		metrics.RecordQuotaWait(string(d.Reason), d.Wait)
		if err := o.sleeper().Sleep(ctx, d.Wait); err != nil {
			return err
		}
		o.Quota.SatisfyWait(ctx, d)
	}
}

func (o *Orchestrator) reportWait(d Decision) {
	switch d.Reason {
	case WaitHourlyCap:
		o.report(fmt.Sprintf("Limit reached!\nWait %dm", int(d.Wait/time.Minute)), status.IconLimit)
		if o.Logger != nil {
			o.Logger.Warn("OHC: Hourly limit reached", zap.Duration("wait", d.Wait))
		}
	case WaitCooldown:
		o.report(fmt.Sprintf("Rate limited!\nWaiting %s...", shortDuration(d.Wait)), status.IconThrottled)
		if o.Logger != nil {
			o.Logger.Warn("OHC: Rate limit cooldown", zap.Duration("wait", d.Wait))
		}
	default:
		o.report(fmt.Sprintf("Waiting %ds...", int(d.Wait/time.Second)), status.IconWaiting)
	}
}

func (o *Orchestrator) reportFailure(outcome core.Outcome) {
	switch outcome.Kind {
	case core.OutcomeThrottled:
		o.report(fmt.Sprintf("Rate limited!\nWaiting %s...", shortDuration(o.cooldown())), status.IconThrottled)
	case core.OutcomeRemoteError:
		o.report("API Error:\n"+truncate(outcome.Message, 15)+"...", status.IconRemoteError)
	default:
		o.report("Connection failed", status.IconOffline)
	}
}

func (o *Orchestrator) cooldown() time.Duration {
	if o.Cooldown > 0 {
		return o.Cooldown
	}
	return DefaultQuotaLimits.Cooldown
}

func (o *Orchestrator) finish(summary *core.RunSummary) {
	if summary.Accepted > 0 {
		o.report(fmt.Sprintf("Done!\n%d uploaded", summary.Accepted), status.IconSuccess)
		return
	}
	o.report("No uploads\ncompleted", status.IconSad)
}

func (o *Orchestrator) report(text string, icon status.Icon) {
	if o.Status == nil {
		return
	}
	status.Safe(o.Status).Report(text, icon)
}

func (o *Orchestrator) pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	return o.sleeper().Sleep(ctx, d)
}

func (o *Orchestrator) readLine(path string) (string, error) {
	if o.ReadLine != nil {
		return o.ReadLine(path)
	}
	return scanner.ReadFirstLine(path)
}

func (o *Orchestrator) mark(artifact core.Artifact) error {
	if o.Mark != nil {
		return o.Mark(artifact)
	}
	return scanner.MarkSubmitted(artifact)
}

func (o *Orchestrator) policy() FailurePolicy {
	if o.Policy != nil {
		return o.Policy
	}
	return AbortOnFailure{}
}

func (o *Orchestrator) sleeper() Sleeper {
	if o.Sleeper != nil {
		return o.Sleeper
	}
	return TimerSleeper{}
}

func (o *Orchestrator) now() time.Time {
	if o.Clock != nil {
		return o.Clock()
	}
	return time.Now().UTC()
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}

func shortDuration(d time.Duration) string {
	if d >= time.Minute {
		return fmt.Sprintf("%dm", int((d+time.Minute-1)/time.Minute))
	}
	return fmt.Sprintf("%ds", int((d+time.Second-1)/time.Second))
}
