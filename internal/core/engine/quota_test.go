package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/ohcupload/ohcupload/internal/core"
)

type memoryQuotaLedger struct {
	state  *core.QuotaState
	writes int
}

func (m *memoryQuotaLedger) GetQuota(ctx context.Context) (*core.QuotaState, error) {
	if m.state == nil {
		return nil, nil
	}
	copied := *m.state
	return &copied, nil
}

func (m *memoryQuotaLedger) UpdateQuota(ctx context.Context, state *core.QuotaState) error {
	copied := *state
	m.state = &copied
	m.writes++
	return nil
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func accepted() core.Outcome { return core.Outcome{Kind: core.OutcomeAccepted} }

func TestQuotaTrackerFirstAttemptProceeds(t *testing.T) {
	clock := newFakeClock()
	tracker := NewQuotaTracker(DefaultQuotaLimits, clock.Now)

	d := tracker.CheckAndReserve(context.Background())
	require.True(t, d.Proceed)
	require.Zero(t, d.Wait)
}

func TestQuotaTrackerSpacing(t *testing.T) {
	clock := newFakeClock()
	tracker := NewQuotaTracker(DefaultQuotaLimits, clock.Now)
	require.Equal(t, 12*time.Second, DefaultQuotaLimits.Spacing())

	tracker.RecordAttempt(context.Background(), accepted())
	clock.Advance(5 * time.Second)

	d := tracker.CheckAndReserve(context.Background())
	require.False(t, d.Proceed)
	require.Equal(t, WaitSpacing, d.Reason)
	require.Equal(t, 7*time.Second, d.Wait)

	clock.Advance(d.Wait)
	require.True(t, tracker.CheckAndReserve(context.Background()).Proceed)
}

func TestQuotaTrackerSpacingAppliesToFailedAttempts(t *testing.T) {
	clock := newFakeClock()
	tracker := NewQuotaTracker(DefaultQuotaLimits, clock.Now)

	tracker.RecordAttempt(context.Background(), core.Outcome{Kind: core.OutcomeRemoteError})
	d := tracker.CheckAndReserve(context.Background())
	require.Equal(t, WaitSpacing, d.Reason)
	require.Equal(t, 0, tracker.Snapshot().UploadsThisWindow)
}

func TestQuotaTrackerHourlyCap(t *testing.T) {
	clock := newFakeClock()
	tracker := NewQuotaTracker(DefaultQuotaLimits, clock.Now)
	ctx := context.Background()

	for i := 0; i < 30; i++ {
		d := tracker.CheckAndReserve(ctx)
		require.True(t, d.Proceed, "attempt %d", i)
		require.Less(t, tracker.Snapshot().UploadsThisWindow, 30)
		tracker.RecordAttempt(ctx, accepted())
		clock.Advance(12 * time.Second)
	}

	// 30 uploads took 360s of the window.
	d := tracker.CheckAndReserve(ctx)
	require.False(t, d.Proceed)
	require.Equal(t, WaitHourlyCap, d.Reason)
	require.Equal(t, time.Hour-360*time.Second, d.Wait)

	clock.Advance(d.Wait)
	d = tracker.CheckAndReserve(ctx)
	require.True(t, d.Proceed)
	require.Equal(t, 0, tracker.Snapshot().UploadsThisWindow)
	require.Equal(t, clock.Now(), tracker.Snapshot().WindowStart)
}

func TestQuotaTrackerCooldownAfterThrottle(t *testing.T) {
	clock := newFakeClock()
	tracker := NewQuotaTracker(DefaultQuotaLimits, clock.Now)
	ctx := context.Background()

	tracker.RecordAttempt(ctx, core.Outcome{Kind: core.OutcomeThrottled})
	throttledAt := clock.Now()
	require.True(t, tracker.Snapshot().CooldownActive)

	d := tracker.CheckAndReserve(ctx)
	require.False(t, d.Proceed)
	require.Equal(t, WaitCooldown, d.Reason)
	require.Equal(t, 5*time.Minute, d.Wait)

	clock.Advance(2 * time.Minute)
	tracker.SatisfyWait(ctx, d)
	require.True(t, tracker.Snapshot().CooldownActive, "cooldown must not clear early")

	d = tracker.CheckAndReserve(ctx)
	require.Equal(t, 3*time.Minute, d.Wait)

	clock.Advance(d.Wait)
	tracker.SatisfyWait(ctx, d)
	require.False(t, tracker.Snapshot().CooldownActive)

	d = tracker.CheckAndReserve(ctx)
	require.True(t, d.Proceed)
	require.GreaterOrEqual(t, clock.Now().Sub(throttledAt), 300*time.Second)
}

func TestQuotaTrackerCapCheckedBeforeCooldown(t *testing.T) {
	clock := newFakeClock()
	tracker := NewQuotaTracker(QuotaLimits{HourlyCap: 1, Window: time.Hour, Cooldown: time.Minute}, clock.Now)
	ctx := context.Background()

	tracker.RecordAttempt(ctx, accepted())
	tracker.RecordAttempt(ctx, core.Outcome{Kind: core.OutcomeThrottled})

	d := tracker.CheckAndReserve(ctx)
	require.Equal(t, WaitHourlyCap, d.Reason)
}

func TestQuotaTrackerLedgerWriteThrough(t *testing.T) {
	clock := newFakeClock()
	ledger := &memoryQuotaLedger{}
	tracker := NewQuotaTracker(DefaultQuotaLimits, clock.Now)
	tracker.Ledger = ledger

	tracker.RecordAttempt(context.Background(), accepted())
	require.NotNil(t, ledger.state)
	require.Equal(t, 1, ledger.state.UploadsThisWindow)
	require.Equal(t, clock.Now(), ledger.state.LastSubmissionAt)

	restored := NewQuotaTracker(DefaultQuotaLimits, clock.Now)
	restored.Ledger = ledger
	require.NoError(t, restored.Restore(context.Background()))
	require.Equal(t, 1, restored.Snapshot().UploadsThisWindow)
}

func TestQuotaLimitsNormalize(t *testing.T) {
	tracker := &QuotaTracker{Clock: newFakeClock().Now}
	d := tracker.CheckAndReserve(context.Background())
	require.True(t, d.Proceed)
	require.Equal(t, 12*time.Second, QuotaLimits{}.normalized().Spacing())
}
