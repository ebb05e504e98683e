package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/DukeRupert/mundo/internal/clock"
	"github.com/DukeRupert/mundo/internal/domain"
	"github.com/DukeRupert/mundo/internal/repository"
)

// Ledger owns the per-user download counters.
//
// A counter is only meaningful together with its reset timestamp, so every
// read goes through Peek, which zeroes and re-arms an elapsed window and
// persists that before returning. The ledger never checks limits; that is
// the evaluator's job. Callers hold the user row lock for the duration of a
// Peek/Consume sequence.
type Ledger struct {
	clock clock.Clock
}

// NewLedger creates a Ledger reading time from c.
func NewLedger(c clock.Clock) *Ledger {
	return &Ledger{clock: c}
}

// Peek returns the usage of window for u, applying the lazy reset. u is
// updated in place to match what was persisted. The unlimited window has no
// counter and always reads as zero.
func (l *Ledger) Peek(ctx context.Context, q repository.Querier, u *domain.User, window domain.QuotaWindow) (domain.Usage, error) {
	now := l.clock.Now()

	switch window {
	case domain.WindowDaily:
		if clock.Due(now, u.DownloadResetDate) {
			next := clock.NextDailyReset(now)
			err := q.SetDailyDownloads(ctx, repository.SetDailyDownloadsParams{
				ID:                u.ID,
				DailyDownloads:    0,
				DownloadResetDate: nullTime(next),
			})
			if err != nil {
				return domain.Usage{}, fmt.Errorf("reset daily counter: %w", err)
			}
			u.DailyDownloads = 0
			u.DownloadResetDate = &next
		}
		return domain.Usage{Count: u.DailyDownloads, ResetAt: u.DownloadResetDate}, nil

	case domain.WindowWeekly:
		if clock.Due(now, u.WeekResetDate) {
			next := clock.NextWeeklyReset(now)
			err := q.SetWeeklyDownloads(ctx, repository.SetWeeklyDownloadsParams{
				ID:              u.ID,
				WeeklyDownloads: 0,
				WeekResetDate:   nullTime(next),
			})
			if err != nil {
				return domain.Usage{}, fmt.Errorf("reset weekly counter: %w", err)
			}
			u.WeeklyDownloads = 0
			u.WeekResetDate = &next
		}
		return domain.Usage{Count: u.WeeklyDownloads, ResetAt: u.WeekResetDate}, nil
	}

	return domain.Usage{}, nil
}

// Consume increments the counter of window by one and returns the new value.
func (l *Ledger) Consume(ctx context.Context, q repository.Querier, u *domain.User, window domain.QuotaWindow) (int, error) {
	switch window {
	case domain.WindowDaily:
		n, err := q.IncrementDailyDownloads(ctx, u.ID)
		if err != nil {
			return 0, fmt.Errorf("increment daily counter: %w", err)
		}
		u.DailyDownloads = int(n)
		return u.DailyDownloads, nil

	case domain.WindowWeekly:
		n, err := q.IncrementWeeklyDownloads(ctx, u.ID)
		if err != nil {
			return 0, fmt.Errorf("increment weekly counter: %w", err)
		}
		u.WeeklyDownloads = int(n)
		return u.WeeklyDownloads, nil
	}

	return 0, nil
}

// RecordEvent appends a download to the audit trail.
func (l *Ledger) RecordEvent(ctx context.Context, q repository.Querier, userID, postID uuid.UUID) (*domain.DownloadEvent, error) {
	row, err := q.CreateDownload(ctx, repository.CreateDownloadParams{
		UserID:    userID,
		PostID:    postID,
		CreatedAt: l.clock.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("record download: %w", err)
	}
	return &domain.DownloadEvent{
		ID:        row.ID,
		UserID:    row.UserID,
		PostID:    row.PostID,
		CreatedAt: row.CreatedAt,
	}, nil
}
