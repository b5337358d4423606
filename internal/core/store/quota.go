package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ohcupload/ohcupload/internal/core"
)

// DefaultService keys the quota row for the onlinehashcrack API.
const DefaultService = "api.onlinehashcrack.com"

// GetQuotaState returns stored quota state for a service.
func (s *Store) GetQuotaState(ctx context.Context, service string) (*core.QuotaState, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	if ctx == nil {
		ctx = context.Background()
	}

	service = strings.TrimSpace(service)
	if service == "" {
		return nil, errors.New("service is required")
	}

	var (
		uploads        int
		windowStart    int64
		lastSubmission sql.NullInt64
		cooldown       int
	)

	row := s.DB.QueryRowContext(ctx, `
		SELECT uploads_this_window, window_start, last_submission_at, cooldown_active
		FROM quota_state
		WHERE service = ?
	`, service)

	if err := row.Scan(&uploads, &windowStart, &lastSubmission, &cooldown); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("fetch quota state: %w", err)
	}

	state := &core.QuotaState{
		UploadsThisWindow: uploads,
		WindowStart:       fromUnixNano(windowStart),
		CooldownActive:    cooldown != 0,
	}
	if lastSubmission.Valid {
		state.LastSubmissionAt = fromUnixNano(lastSubmission.Int64)
	}

	return state, nil
}

// UpdateQuotaState persists quota state for a service.
func (s *Store) UpdateQuotaState(ctx context.Context, service string, state *core.QuotaState) error {
	if err := s.ready(); err != nil {
		return err
	}

	if ctx == nil {
		ctx = context.Background()
	}

	service = strings.TrimSpace(service)
	if service == "" {
		return errors.New("service is required")
	}
	if state == nil {
		return errors.New("quota state is required")
	}

	var lastSubmission sql.NullInt64
	if !state.LastSubmissionAt.IsZero() {
		lastSubmission = sql.NullInt64{Int64: state.LastSubmissionAt.UnixNano(), Valid: true}
	}

	cooldown := 0
	if state.CooldownActive {
		cooldown = 1
	}

	_, err := s.DB.ExecContext(ctx, `
		INSERT INTO quota_state (service, uploads_this_window, window_start, last_submission_at, cooldown_active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(service) DO UPDATE SET
			uploads_this_window = excluded.uploads_this_window,
			window_start = excluded.window_start,
			last_submission_at = excluded.last_submission_at,
			cooldown_active = excluded.cooldown_active,
			updated_at = excluded.updated_at
	`, service, state.UploadsThisWindow, state.WindowStart.UnixNano(), lastSubmission, cooldown, time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("store quota state: %w", err)
	}

	return nil
}

// Quota timestamps are stored as Unix nanoseconds so a restored tracker
// sees the exact instant of the last attempt.
func fromUnixNano(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

// QuotaLedger binds the store to one service for the quota tracker.
type QuotaLedger struct {
	Store   *Store
	Service string
}

// GetQuota returns the stored state for the bound service.
func (l *QuotaLedger) GetQuota(ctx context.Context) (*core.QuotaState, error) {
	return l.Store.GetQuotaState(ctx, l.service())
}

// UpdateQuota persists state for the bound service.
func (l *QuotaLedger) UpdateQuota(ctx context.Context, state *core.QuotaState) error {
	return l.Store.UpdateQuotaState(ctx, l.service(), state)
}

func (l *QuotaLedger) service() string {
	if l == nil || strings.TrimSpace(l.Service) == "" {
		return DefaultService
	}
	return l.Service
}
