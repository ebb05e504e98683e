package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/mundo/internal/clock"
	"github.com/DukeRupert/mundo/internal/domain"
	"github.com/DukeRupert/mundo/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// AdminService lets staff inspect and adjust a user's download counters.
// Adjustments bypass the entitlement evaluator but still take the user row
// lock and apply the lazy reset first, so they never race a download.
type AdminService interface {
	GetDownloadLimits(ctx context.Context, userID uuid.UUID) (*domain.DownloadLimits, error)
	AdjustDownloads(ctx context.Context, userID uuid.UUID, adj domain.DownloadAdjustment) (*domain.DownloadLimits, error)
}

// =============================================================================
// Implementation
// =============================================================================

type adminService struct {
	store  repository.Store
	ledger *Ledger
	clock  clock.Clock
	logger *slog.Logger
}

// NewAdminService creates an AdminService.
func NewAdminService(store repository.Store, ledger *Ledger, c clock.Clock, logger *slog.Logger) AdminService {
	return &adminService{
		store:  store,
		ledger: ledger,
		clock:  c,
		logger: logger,
	}
}

// lockAndPeek loads the user FOR UPDATE and applies both lazy resets.
func (s *adminService) lockAndPeek(ctx context.Context, q repository.Querier, op string, userID uuid.UUID) (*domain.User, error) {
	row, err := q.GetUserByIDForUpdate(ctx, userID)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound(op, "user", userID.String())
		}
		return nil, domain.Internal(err, op, "failed to lock user")
	}
	u := repoUserToDomain(row)

	if _, err := applyExpiry(ctx, q, u, s.clock.Now()); err != nil {
		return nil, domain.Internal(err, op, "failed to apply subscription expiry")
	}
	if _, err := s.ledger.Peek(ctx, q, u, domain.WindowDaily); err != nil {
		return nil, domain.Internal(err, op, "failed to read daily counter")
	}
	if _, err := s.ledger.Peek(ctx, q, u, domain.WindowWeekly); err != nil {
		return nil, domain.Internal(err, op, "failed to read weekly counter")
	}
	return u, nil
}

func (s *adminService) limits(u *domain.User) *domain.DownloadLimits {
	usage := domain.Usage{}
	switch domain.PolicyFor(u).DownloadWindow {
	case domain.WindowDaily:
		usage = domain.Usage{Count: u.DailyDownloads, ResetAt: u.DownloadResetDate}
	case domain.WindowWeekly:
		usage = domain.Usage{Count: u.WeeklyDownloads, ResetAt: u.WeekResetDate}
	}

	return &domain.DownloadLimits{
		UserID:            u.ID,
		Plan:              u.Plan,
		CanDownload:       u.CanDownload,
		CustomDailyLimit:  u.CustomDailyLimit,
		CustomWeeklyLimit: u.CustomWeeklyLimit,
		DailyDownloads:    u.DailyDownloads,
		DownloadResetDate: u.DownloadResetDate,
		WeeklyDownloads:   u.WeeklyDownloads,
		WeekResetDate:     u.WeekResetDate,
		Effective:         domain.Evaluate(u, domain.ActionDownload, usage),
	}
}

func (s *adminService) GetDownloadLimits(ctx context.Context, userID uuid.UUID) (*domain.DownloadLimits, error) {
	const op = "admin.get_download_limits"

	var out *domain.DownloadLimits
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		u, err := s.lockAndPeek(ctx, q, op, userID)
		if err != nil {
			return err
		}
		out = s.limits(u)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *adminService) AdjustDownloads(ctx context.Context, userID uuid.UUID, adj domain.DownloadAdjustment) (*domain.DownloadLimits, error) {
	const op = "admin.adjust_downloads"

	if err := adj.Validate(); err != nil {
		return nil, err
	}

	var out *domain.DownloadLimits
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		u, err := s.lockAndPeek(ctx, q, op, userID)
		if err != nil {
			return err
		}

		if adj.Action == domain.AdminPermissions {
			err := q.UpdateUserDownloadPermissions(ctx, repository.UpdateUserDownloadPermissionsParams{
				ID:                u.ID,
				CanDownload:       adj.CanDownload,
				CustomDailyLimit:  domain.ToNullInt32(adj.CustomDailyLimit),
				CustomWeeklyLimit: domain.ToNullInt32(adj.CustomWeeklyLimit),
			})
			if err != nil {
				return domain.Internal(err, op, "failed to update download permissions")
			}
			u.CanDownload = adj.CanDownload
			u.CustomDailyLimit = adj.CustomDailyLimit
			u.CustomWeeklyLimit = adj.CustomWeeklyLimit
			out = s.limits(u)
			return nil
		}

		if adj.Action == domain.AdminIncrease {
			current := u.DailyDownloads
			if adj.Period == domain.PeriodWeekly {
				current = u.WeeklyDownloads
			}
			if current > domain.MaxDownloadCounter-adj.Amount {
				return domain.Invalid(op, "amount would overflow the download counter")
			}
		}

		now := s.clock.Now()
		if adj.Period == domain.PeriodDaily || adj.Period == domain.PeriodAll {
			n := adjustCount(u.DailyDownloads, adj)
			reset := *u.DownloadResetDate
			if adj.Action == domain.AdminReset {
				reset = clock.NextDailyReset(now)
			}
			if err := s.setDaily(ctx, q, u, n, reset); err != nil {
				return domain.Internal(err, op, "failed to update daily counter")
			}
		}
		if adj.Period == domain.PeriodWeekly || adj.Period == domain.PeriodAll {
			n := adjustCount(u.WeeklyDownloads, adj)
			reset := *u.WeekResetDate
			if adj.Action == domain.AdminReset {
				reset = clock.NextWeeklyReset(now)
			}
			if err := s.setWeekly(ctx, q, u, n, reset); err != nil {
				return domain.Internal(err, op, "failed to update weekly counter")
			}
		}

		out = s.limits(u)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("download limits adjusted",
		"user_id", userID,
		"action", adj.Action,
		"period", adj.Period,
		"amount", adj.Amount,
	)
	return out, nil
}

func (s *adminService) setDaily(ctx context.Context, q repository.Querier, u *domain.User, n int, reset time.Time) error {
	err := q.SetDailyDownloads(ctx, repository.SetDailyDownloadsParams{
		ID:                u.ID,
		DailyDownloads:    int32(n),
		DownloadResetDate: nullTime(reset),
	})
	if err != nil {
		return err
	}
	u.DailyDownloads = n
	u.DownloadResetDate = &reset
	return nil
}

func (s *adminService) setWeekly(ctx context.Context, q repository.Querier, u *domain.User, n int, reset time.Time) error {
	err := q.SetWeeklyDownloads(ctx, repository.SetWeeklyDownloadsParams{
		ID:              u.ID,
		WeeklyDownloads: int32(n),
		WeekResetDate:   nullTime(reset),
	})
	if err != nil {
		return err
	}
	u.WeeklyDownloads = n
	u.WeekResetDate = &reset
	return nil
}

// adjustCount applies a counter action to current. Decrease floors at zero.
func adjustCount(current int, adj domain.DownloadAdjustment) int {
	switch adj.Action {
	case domain.AdminSet:
		return adj.Amount
	case domain.AdminIncrease:
		return current + adj.Amount
	case domain.AdminDecrease:
		if adj.Amount > current {
			return 0
		}
		return current - adj.Amount
	}
	return 0
}
