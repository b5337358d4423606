package engine

import (
	"context"
	"sync"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"go.uber.org/zap"

	"github.com/ohcupload/ohcupload/internal/core"
)

// QuotaLimits bounds how often submissions may be made.
type QuotaLimits struct {
	HourlyCap int
	Window    time.Duration
	Cooldown  time.Duration
}

// DefaultQuotaLimits matches the service's published free-tier policy.
var DefaultQuotaLimits = QuotaLimits{
	HourlyCap: 30,
	Window:    time.Hour,
	Cooldown:  5 * time.Minute,
}

// Spacing is the minimum gap between two attempts.
func (l QuotaLimits) Spacing() time.Duration {
	if l.HourlyCap <= 0 {
		return l.Window
	}
	return l.Window / time.Duration(l.HourlyCap)
}

func (l QuotaLimits) normalized() QuotaLimits {
	if l.HourlyCap <= 0 {
		l.HourlyCap = DefaultQuotaLimits.HourlyCap
	}
	if l.Window <= 0 {
		l.Window = DefaultQuotaLimits.Window
	}
	if l.Cooldown <= 0 {
		l.Cooldown = DefaultQuotaLimits.Cooldown
	}
	return l
}

// WaitReason explains why a submission is not yet allowed.
type WaitReason string

const (
	WaitNone      WaitReason = ""
	WaitHourlyCap WaitReason = "hourly_cap"
	WaitCooldown  WaitReason = "cooldown"
	WaitSpacing   WaitReason = "spacing"
)

// Decision is the answer to a quota check.
type Decision struct {
	Proceed bool
	Wait    time.Duration
	Reason  WaitReason
}

// QuotaLedger mirrors quota state outside the process.
type QuotaLedger interface {
	GetQuota(ctx context.Context) (*core.QuotaState, error)
	UpdateQuota(ctx context.Context, state *core.QuotaState) error
}

// QuotaTracker enforces the hourly cap, the throttling cooldown and the
// minimum spacing between attempts. It uses a fixed, non-rolling window.
type QuotaTracker struct {
	Limits QuotaLimits
	Ledger QuotaLedger
	Clock  func() time.Time
	Logger *logging.Logger

	mu    sync.Mutex
	state core.QuotaState
}

// NewQuotaTracker returns a tracker whose window starts now.
func NewQuotaTracker(limits QuotaLimits, clock func() time.Time) *QuotaTracker {
	t := &QuotaTracker{Limits: limits.normalized(), Clock: clock}
	t.state.WindowStart = t.now()
	return t
}

// CheckAndReserve decides whether a submission may be made right now.
// It must be called immediately before every attempt.
func (t *QuotaTracker) CheckAndReserve(ctx context.Context) Decision {
	t.mu.Lock()
	defer t.mu.Unlock()

	limits := t.Limits.normalized()
	now := t.now()

	if t.state.WindowStart.IsZero() {
		t.state.WindowStart = now
	}
	if now.Sub(t.state.WindowStart) >= limits.Window {
		t.state.UploadsThisWindow = 0
		t.state.WindowStart = now
		t.logInfo("OHC: Hourly rate limit reset")
		t.persist(ctx)
	}

	if t.state.UploadsThisWindow >= limits.HourlyCap {
		remaining := t.state.WindowStart.Add(limits.Window).Sub(now)
		return Decision{Wait: remaining, Reason: WaitHourlyCap}
	}

	if t.state.CooldownActive {
		remaining := t.state.LastSubmissionAt.Add(limits.Cooldown).Sub(now)
		if remaining > 0 {
			return Decision{Wait: remaining, Reason: WaitCooldown}
		}
		t.state.CooldownActive = false
		t.persist(ctx)
	}

	if !t.state.LastSubmissionAt.IsZero() {
		if elapsed := now.Sub(t.state.LastSubmissionAt); elapsed < limits.Spacing() {
			return Decision{Wait: limits.Spacing() - elapsed, Reason: WaitSpacing}
		}
	}

	return Decision{Proceed: true}
}

// SatisfyWait tells the tracker the caller finished waiting out a decision.
func (t *QuotaTracker) SatisfyWait(ctx context.Context, d Decision) {
	if d.Reason != WaitCooldown {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.state.CooldownActive {
		return
	}
	if t.now().Before(t.state.LastSubmissionAt.Add(t.Limits.normalized().Cooldown)) {
		return
	}
	t.state.CooldownActive = false
	t.persist(ctx)
}

// RecordAttempt applies the outcome of a submission. Spacing always follows
// the attempt rate, so the timestamp moves for every outcome.
func (t *QuotaTracker) RecordAttempt(ctx context.Context, outcome core.Outcome) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.state.LastSubmissionAt = t.now()
	switch outcome.Kind {
	case core.OutcomeAccepted:
		t.state.UploadsThisWindow++
		t.logInfo("OHC: Uploaded",
			zap.Int("uploads_this_window", t.state.UploadsThisWindow),
			zap.Int("hourly_cap", t.Limits.normalized().HourlyCap))
	case core.OutcomeThrottled:
		t.state.CooldownActive = true
	}
	t.persist(ctx)
}

// Snapshot returns a copy of the current state.
func (t *QuotaTracker) Snapshot() core.QuotaState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

// Restore replaces in-memory state with what the ledger holds.
func (t *QuotaTracker) Restore(ctx context.Context) error {
	if t.Ledger == nil {
		return nil
	}

	state, err := t.Ledger.GetQuota(ctx)
	if err != nil {
		return err
	}
	if state == nil {
		return nil
	}

	t.mu.Lock()
	t.state = *state
	t.mu.Unlock()
	return nil
}

func (t *QuotaTracker) persist(ctx context.Context) {
	if t.Ledger == nil {
		return
	}
	if ctx == nil {
		ctx = context.Background()
	}
	state := t.state
	if err := t.Ledger.UpdateQuota(ctx, &state); err != nil && t.Logger != nil {
		t.Logger.Warn("OHC: failed to record quota state", zap.Error(err))
	}
}

func (t *QuotaTracker) logInfo(msg string, fields ...zap.Field) {
	if t.Logger != nil {
		t.Logger.Info(msg, fields...)
	}
}

func (t *QuotaTracker) now() time.Time {
	if t != nil && t.Clock != nil {
		return t.Clock()
	}
	return time.Now().UTC()
}
