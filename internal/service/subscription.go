package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/DukeRupert/mundo/internal/clock"
	"github.com/DukeRupert/mundo/internal/domain"
	"github.com/DukeRupert/mundo/internal/metrics"
	"github.com/DukeRupert/mundo/internal/repository"
)

// SubscriptionService reverts lapsed paid plans to free.
type SubscriptionService interface {
	// EnforceExpiry downgrades u when its subscription end date has passed.
	// It is called once per authenticated request and is idempotent. u is
	// updated in place. Returns true when this call performed the downgrade.
	EnforceExpiry(ctx context.Context, u *domain.User) (bool, error)

	// ExpireDue downgrades every user whose subscription has lapsed and
	// returns how many were changed. Used by the scheduler for users who
	// never come back.
	ExpireDue(ctx context.Context) (int, error)
}

type subscriptionService struct {
	store  repository.Store
	clock  clock.Clock
	logger *slog.Logger
}

// NewSubscriptionService creates a SubscriptionService.
func NewSubscriptionService(store repository.Store, c clock.Clock, logger *slog.Logger) SubscriptionService {
	return &subscriptionService{
		store:  store,
		clock:  c,
		logger: logger,
	}
}

func (s *subscriptionService) EnforceExpiry(ctx context.Context, u *domain.User) (bool, error) {
	const op = "subscription.enforce_expiry"

	changed, err := applyExpiry(ctx, s.store, u, s.clock.Now())
	if err != nil {
		return false, domain.Internal(err, op, "failed to apply subscription expiry")
	}
	if changed {
		s.logger.Info("subscription expired, plan reverted to free", "user_id", u.ID)
	}
	return changed, nil
}

func (s *subscriptionService) ExpireDue(ctx context.Context) (int, error) {
	const op = "subscription.expire_due"

	ids, err := s.store.DowngradeExpiredSubscriptions(ctx, s.clock.Now())
	if err != nil {
		return 0, domain.Internal(err, op, "failed to downgrade expired subscriptions")
	}
	for _, id := range ids {
		metrics.PlanChanged(string(domain.PlanFree), "expiry")
		s.logger.Info("subscription expired, plan reverted to free", "user_id", id)
	}
	return len(ids), nil
}

// applyExpiry performs the conditional downgrade of u at now. The UPDATE is
// guarded by the same predicate, so concurrent callers downgrade once.
func applyExpiry(ctx context.Context, q repository.Querier, u *domain.User, now time.Time) (bool, error) {
	if !u.SubscriptionExpired(now) {
		return false, nil
	}

	n, err := q.DowngradeExpiredSubscription(ctx, repository.DowngradeExpiredSubscriptionParams{
		ID:  u.ID,
		Now: now,
	})
	if err != nil {
		return false, err
	}

	u.Plan = domain.PlanFree
	u.SubscriptionEndDate = nil
	if n == 0 {
		return false, nil
	}
	metrics.PlanChanged(string(domain.PlanFree), "expiry")
	return true, nil
}
