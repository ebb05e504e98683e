package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sqlc-dev/pqtype"

	"github.com/DukeRupert/mundo/internal/clock"
	"github.com/DukeRupert/mundo/internal/domain"
	"github.com/DukeRupert/mundo/internal/metrics"
	"github.com/DukeRupert/mundo/internal/repository"
)

// =============================================================================
// Interface Definition
// =============================================================================

// Reconciler applies payment provider notifications to transactions and
// user plans.
//
// Each handler runs in one database transaction that starts by recording
// the provider event id. A replayed event id is reported as
// domain.OutcomeDuplicate without touching anything else, and any error
// rolls the whole handler back, event record included, so the provider's
// retry gets a clean second attempt.
type Reconciler interface {
	CheckoutCompleted(ctx context.Context, e domain.CheckoutCompletedEvent) (domain.ReconcileOutcome, error)
	SubscriptionUpdated(ctx context.Context, e domain.SubscriptionEvent) (domain.ReconcileOutcome, error)
	SubscriptionDeleted(ctx context.Context, e domain.SubscriptionEvent) (domain.ReconcileOutcome, error)

	// PixPaid, PixFailed and PixRefunded return domain.ENOTFOUND when the
	// billing id matches no transaction.
	PixPaid(ctx context.Context, e domain.PixEvent) (domain.ReconcileOutcome, error)
	PixFailed(ctx context.Context, e domain.PixEvent) (domain.ReconcileOutcome, error)
	PixRefunded(ctx context.Context, e domain.PixEvent) (domain.ReconcileOutcome, error)
}

// subscriptionEnd is the plan end date granted by a payment at now.
// Renewals reset the end date rather than stacking.
func subscriptionEnd(now time.Time) time.Time {
	return now.AddDate(0, 1, 0)
}

// =============================================================================
// Implementation
// =============================================================================

type reconciler struct {
	store  repository.Store
	clock  clock.Clock
	logger *slog.Logger
}

// NewReconciler creates a Reconciler.
func NewReconciler(store repository.Store, c clock.Clock, logger *slog.Logger) Reconciler {
	return &reconciler{
		store:  store,
		clock:  c,
		logger: logger,
	}
}

// handle runs fn after recording the event, inside one transaction, and
// records the outcome metric.
func (r *reconciler) handle(ctx context.Context, op string, ref domain.EventRef, fn func(q repository.Querier) (domain.ReconcileOutcome, error)) (domain.ReconcileOutcome, error) {
	var outcome domain.ReconcileOutcome
	err := r.store.ExecTx(ctx, func(q repository.Querier) error {
		n, err := q.InsertWebhookEvent(ctx, repository.InsertWebhookEventParams{
			Provider:        string(ref.Provider),
			ProviderEventID: ref.ID,
			EventType:       ref.Type,
			Payload: pqtype.NullRawMessage{
				RawMessage: ref.Payload,
				Valid:      len(ref.Payload) > 0,
			},
		})
		if err != nil {
			return domain.Internal(err, op, "failed to record webhook event")
		}
		if n == 0 {
			outcome = domain.OutcomeDuplicate
			return nil
		}

		outcome, err = fn(q)
		return err
	})
	if err != nil {
		metrics.WebhookEvent(string(ref.Provider), ref.Type, "error")
		return "", err
	}

	metrics.WebhookEvent(string(ref.Provider), ref.Type, string(outcome))
	r.logger.Info("webhook reconciled",
		"provider", ref.Provider,
		"event_id", ref.ID,
		"event_type", ref.Type,
		"outcome", outcome,
	)
	return outcome, nil
}

// activatePlan sets the user's plan with a fresh one-month end date.
func (r *reconciler) activatePlan(ctx context.Context, q repository.Querier, userID uuid.UUID, plan domain.Plan, now time.Time) error {
	return q.UpdateUserPlan(ctx, repository.UpdateUserPlanParams{
		ID:                  userID,
		Plan:                string(plan),
		SubscriptionEndDate: nullTime(subscriptionEnd(now)),
	})
}

// downgrade reverts the locked user to free and clears the subscription
// end date. Returns false when the plan did not change: the user was
// already free or does not exist.
func (r *reconciler) downgrade(ctx context.Context, q repository.Querier, op string, userID uuid.UUID) (bool, error) {
	row, err := q.GetUserByIDForUpdate(ctx, userID)
	if err != nil {
		if isNoRows(err) {
			r.logger.Error("downgrade target user missing", "op", op, "user_id", userID)
			return false, nil
		}
		return false, domain.Internal(err, op, "failed to lock user")
	}
	wasFree := domain.Plan(row.Plan) == domain.PlanFree
	if wasFree && !row.SubscriptionEndDate.Valid {
		return false, nil
	}

	err = q.UpdateUserPlan(ctx, repository.UpdateUserPlanParams{
		ID:   userID,
		Plan: string(domain.PlanFree),
	})
	if err != nil {
		return false, domain.Internal(err, op, "failed to downgrade user")
	}
	return !wasFree, nil
}

// =============================================================================
// Stripe
// =============================================================================

func (r *reconciler) CheckoutCompleted(ctx context.Context, e domain.CheckoutCompletedEvent) (domain.ReconcileOutcome, error) {
	const op = "reconciler.checkout_completed"

	var activated domain.Plan
	outcome, err := r.handle(ctx, op, e.Event, func(q repository.Querier) (domain.ReconcileOutcome, error) {
		now := r.clock.Now()

		row, err := q.GetTransactionByStripeSessionForUpdate(ctx, domain.ToNullString(e.SessionID))
		if err != nil && !isNoRows(err) {
			return "", domain.Internal(err, op, "failed to lock transaction")
		}

		var (
			userID uuid.UUID
			plan   domain.Plan
		)
		if err == nil {
			t := repoTransactionToDomain(row)
			if t.Status == domain.TransactionCompleted {
				return domain.OutcomeNoop, nil
			}
			if terr := t.TransitionTo(domain.TransactionCompleted); terr != nil {
				r.logger.Warn("checkout completed for closed transaction",
					"transaction_id", t.ID,
					"status", t.Status,
					"session_id", e.SessionID,
				)
				return domain.OutcomeNoop, nil
			}

			err = q.MarkTransactionCompleted(ctx, repository.MarkTransactionCompletedParams{
				ID:                   t.ID,
				PaidAt:               nullTime(now),
				StripeCustomerID:     domain.ToNullString(firstNonEmpty(e.CustomerID, t.StripeCustomerID)),
				StripeSubscriptionID: domain.ToNullString(firstNonEmpty(e.SubscriptionID, t.StripeSubscriptionID)),
			})
			if err != nil {
				return "", domain.Internal(err, op, "failed to complete transaction")
			}
			userID, plan = t.UserID, t.PlanType
		} else {
			// Checkout started outside this server; trust the metadata.
			if e.UserID == uuid.Nil || !e.Plan.Paid() {
				r.logger.Warn("checkout completed for unknown session", "session_id", e.SessionID)
				return domain.OutcomeNoop, nil
			}
			if _, err := q.GetUserByIDForUpdate(ctx, e.UserID); err != nil {
				if isNoRows(err) {
					r.logger.Error("checkout completed for unknown user",
						"session_id", e.SessionID,
						"user_id", e.UserID,
					)
					return domain.OutcomeNoop, nil
				}
				return "", domain.Internal(err, op, "failed to lock user")
			}

			currency := e.Currency
			if currency == "" {
				currency = "brl"
			}
			_, err = q.CreateTransaction(ctx, repository.CreateTransactionParams{
				UserID:               e.UserID,
				Gateway:              string(domain.GatewayStripe),
				StripeSessionID:      domain.ToNullString(e.SessionID),
				StripeSubscriptionID: domain.ToNullString(e.SubscriptionID),
				StripeCustomerID:     domain.ToNullString(e.CustomerID),
				PlanType:             string(e.Plan),
				Amount:               e.AmountTotal,
				Currency:             currency,
				Status:               string(domain.TransactionCompleted),
				PaidAt:               nullTime(now),
			})
			if err != nil {
				return "", domain.Internal(err, op, "failed to record transaction")
			}
			userID, plan = e.UserID, e.Plan
		}

		if err := r.activatePlan(ctx, q, userID, plan, now); err != nil {
			return "", domain.Internal(err, op, "failed to activate plan")
		}
		if e.CustomerID != "" {
			err := q.UpdateUserStripeCustomer(ctx, repository.UpdateUserStripeCustomerParams{
				ID:               userID,
				StripeCustomerID: domain.ToNullString(e.CustomerID),
			})
			if err != nil {
				return "", domain.Internal(err, op, "failed to store stripe customer")
			}
		}
		activated = plan
		return domain.OutcomeApplied, nil
	})
	if err != nil {
		return "", err
	}

	if outcome == domain.OutcomeApplied {
		metrics.PlanChanged(string(activated), "stripe")
	}
	return outcome, nil
}

func (r *reconciler) SubscriptionUpdated(ctx context.Context, e domain.SubscriptionEvent) (domain.ReconcileOutcome, error) {
	const op = "reconciler.subscription_updated"
	return r.subscriptionDowngrade(ctx, op, e, domain.DowngradeSubscriptionStatuses[e.Status])
}

func (r *reconciler) SubscriptionDeleted(ctx context.Context, e domain.SubscriptionEvent) (domain.ReconcileOutcome, error) {
	const op = "reconciler.subscription_deleted"
	return r.subscriptionDowngrade(ctx, op, e, true)
}

func (r *reconciler) subscriptionDowngrade(ctx context.Context, op string, e domain.SubscriptionEvent, downgrade bool) (domain.ReconcileOutcome, error) {
	outcome, err := r.handle(ctx, op, e.Event, func(q repository.Querier) (domain.ReconcileOutcome, error) {
		if !downgrade {
			return domain.OutcomeNoop, nil
		}

		userID, err := r.subscriptionOwner(ctx, q, e)
		if err != nil {
			return "", domain.Internal(err, op, "failed to find subscription owner")
		}
		if userID == uuid.Nil {
			r.logger.Warn("subscription event for unknown subscription",
				"subscription_id", e.SubscriptionID,
				"customer_id", e.CustomerID,
			)
			return domain.OutcomeNoop, nil
		}

		changed, err := r.downgrade(ctx, q, op, userID)
		if err != nil {
			return "", err
		}
		if !changed {
			return domain.OutcomeNoop, nil
		}
		return domain.OutcomeApplied, nil
	})
	if err != nil {
		return "", err
	}

	if outcome == domain.OutcomeApplied {
		metrics.PlanChanged(string(domain.PlanFree), "stripe")
	}
	return outcome, nil
}

// subscriptionOwner finds the user of a subscription through its latest
// transaction, falling back to the Stripe customer id. Returns uuid.Nil
// when neither matches.
func (r *reconciler) subscriptionOwner(ctx context.Context, q repository.Querier, e domain.SubscriptionEvent) (uuid.UUID, error) {
	t, err := q.GetLatestTransactionBySubscriptionID(ctx, domain.ToNullString(e.SubscriptionID))
	if err == nil {
		return t.UserID, nil
	}
	if !isNoRows(err) {
		return uuid.Nil, err
	}

	if e.CustomerID == "" {
		return uuid.Nil, nil
	}
	u, err := q.GetUserByStripeCustomerID(ctx, domain.ToNullString(e.CustomerID))
	if err != nil {
		if isNoRows(err) {
			return uuid.Nil, nil
		}
		return uuid.Nil, err
	}
	return u.ID, nil
}

// =============================================================================
// AbacatePay
// =============================================================================

// lockPixTransaction loads the transaction of a PIX billing id FOR UPDATE.
func (r *reconciler) lockPixTransaction(ctx context.Context, q repository.Querier, op, billingID string) (*domain.Transaction, error) {
	row, err := q.GetTransactionByPixReferenceForUpdate(ctx, domain.ToNullString(billingID))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound(op, "transaction", billingID)
		}
		return nil, domain.Internal(err, op, "failed to lock transaction")
	}
	return repoTransactionToDomain(row), nil
}

func (r *reconciler) PixPaid(ctx context.Context, e domain.PixEvent) (domain.ReconcileOutcome, error) {
	const op = "reconciler.pix_paid"

	var activated domain.Plan
	outcome, err := r.handle(ctx, op, e.Event, func(q repository.Querier) (domain.ReconcileOutcome, error) {
		t, err := r.lockPixTransaction(ctx, q, op, e.BillingID)
		if err != nil {
			return "", err
		}
		if t.Status == domain.TransactionCompleted {
			return domain.OutcomeNoop, nil
		}
		if err := t.TransitionTo(domain.TransactionCompleted); err != nil {
			// Money arrived for a closed transaction; needs a manual refund.
			r.logger.Error("pix paid for closed transaction",
				"transaction_id", t.ID,
				"status", t.Status,
				"billing_id", e.BillingID,
			)
			return domain.OutcomeNoop, nil
		}

		now := r.clock.Now()
		err = q.MarkTransactionCompleted(ctx, repository.MarkTransactionCompletedParams{
			ID:     t.ID,
			PaidAt: nullTime(now),
		})
		if err != nil {
			return "", domain.Internal(err, op, "failed to complete transaction")
		}
		if err := r.activatePlan(ctx, q, t.UserID, t.PlanType, now); err != nil {
			return "", domain.Internal(err, op, "failed to activate plan")
		}
		activated = t.PlanType
		return domain.OutcomeApplied, nil
	})
	if err != nil {
		return "", err
	}

	if outcome == domain.OutcomeApplied {
		metrics.PlanChanged(string(activated), "abacatepay")
	}
	return outcome, nil
}

func (r *reconciler) PixFailed(ctx context.Context, e domain.PixEvent) (domain.ReconcileOutcome, error) {
	const op = "reconciler.pix_failed"

	return r.handle(ctx, op, e.Event, func(q repository.Querier) (domain.ReconcileOutcome, error) {
		t, err := r.lockPixTransaction(ctx, q, op, e.BillingID)
		if err != nil {
			return "", err
		}
		if err := t.TransitionTo(domain.TransactionFailed); err != nil {
			return domain.OutcomeNoop, nil
		}

		err = q.UpdateTransactionStatus(ctx, repository.UpdateTransactionStatusParams{
			ID:     t.ID,
			Status: string(domain.TransactionFailed),
		})
		if err != nil {
			return "", domain.Internal(err, op, "failed to update transaction")
		}
		return domain.OutcomeApplied, nil
	})
}

func (r *reconciler) PixRefunded(ctx context.Context, e domain.PixEvent) (domain.ReconcileOutcome, error) {
	const op = "reconciler.pix_refunded"

	var downgraded bool
	outcome, err := r.handle(ctx, op, e.Event, func(q repository.Querier) (domain.ReconcileOutcome, error) {
		t, err := r.lockPixTransaction(ctx, q, op, e.BillingID)
		if err != nil {
			return "", err
		}
		if err := t.TransitionTo(domain.TransactionRefunded); err != nil {
			return domain.OutcomeNoop, nil
		}

		err = q.UpdateTransactionStatus(ctx, repository.UpdateTransactionStatusParams{
			ID:     t.ID,
			Status: string(domain.TransactionRefunded),
		})
		if err != nil {
			return "", domain.Internal(err, op, "failed to update transaction")
		}

		downgraded, err = r.downgrade(ctx, q, op, t.UserID)
		if err != nil {
			return "", err
		}
		return domain.OutcomeApplied, nil
	})
	if err != nil {
		return "", err
	}

	if downgraded {
		metrics.PlanChanged(string(domain.PlanFree), "abacatepay")
	}
	return outcome, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
