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

type QuotaEntry struct {
	Service   string          `json:"service"`
	State     core.QuotaState `json:"state"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type QuotaQuery struct {
	All     bool
	Service string
}

func (q QuotaQuery) Validate() error {
	if q.All {
		return nil
	}
	if strings.TrimSpace(q.Service) != "" {
		return nil
	}
	return errors.New("must specify --all or --service")
}

func (q QuotaQuery) whereClause() (string, []any, error) {
	if err := q.Validate(); err != nil {
		return "", nil, err
	}
	if q.All {
		return "", nil, nil
	}
	return "WHERE service = ?", []any{strings.TrimSpace(q.Service)}, nil
}

func (s *Store) ListQuotaStates(ctx context.Context, q QuotaQuery) ([]QuotaEntry, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, fmt.Sprintf(`
		SELECT service, uploads_this_window, window_start, last_submission_at, cooldown_active, updated_at
		FROM quota_state
		%s
		ORDER BY service
	`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("list quota state: %w", err)
	}
	defer rows.Close() // nolint:errcheck // best-effort cleanup

	entries := []QuotaEntry{}
	for rows.Next() {
		var (
			service        string
			uploads        int
			windowStart    int64
			lastSubmission sql.NullInt64
			cooldown       int
			updatedAt      int64
		)
		if err := rows.Scan(&service, &uploads, &windowStart, &lastSubmission, &cooldown, &updatedAt); err != nil {
			return nil, fmt.Errorf("scan quota state: %w", err)
		}

		state := core.QuotaState{
			UploadsThisWindow: uploads,
			WindowStart:       fromUnixNano(windowStart),
			CooldownActive:    cooldown != 0,
		}
		if lastSubmission.Valid {
			state.LastSubmissionAt = fromUnixNano(lastSubmission.Int64)
		}

		entries = append(entries, QuotaEntry{
			Service:   service,
			State:     state,
			UpdatedAt: time.Unix(updatedAt, 0).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list quota state: %w", err)
	}

	return entries, nil
}

func (s *Store) CountQuotaStates(ctx context.Context, q QuotaQuery) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	var count int
	if err := s.DB.QueryRowContext(ctx, fmt.Sprintf(`SELECT COUNT(*) FROM quota_state %s`, where), args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count quota state: %w", err)
	}
	return count, nil
}

func (s *Store) ResetQuotaStates(ctx context.Context, q QuotaQuery) (int64, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	where, args, err := q.whereClause()
	if err != nil {
		return 0, err
	}

	result, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
		DELETE FROM quota_state
		%s
	`, where), args...)
	if err != nil {
		return 0, fmt.Errorf("reset quota state: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("reset quota state: %w", err)
	}
	return affected, nil
}
