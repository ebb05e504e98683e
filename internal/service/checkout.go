package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/DukeRupert/mundo/internal/billing"
	"github.com/DukeRupert/mundo/internal/clock"
	"github.com/DukeRupert/mundo/internal/domain"
	"github.com/DukeRupert/mundo/internal/metrics"
	"github.com/DukeRupert/mundo/internal/repository"
)

// StripeCheckout is a created Stripe Checkout session and its local
// pending transaction.
type StripeCheckout struct {
	URL         string
	Transaction *domain.Transaction
}

// StripeCheckoutParams describes a card checkout.
type StripeCheckoutParams struct {
	UserID     uuid.UUID
	Plan       domain.Plan
	SuccessURL string
	CancelURL  string
}

// CheckoutService starts payments for paid plans. Completion is applied by
// the Reconciler when the gateway notifies us.
type CheckoutService interface {
	// StartStripeCheckout creates a Checkout session and a pending
	// transaction keyed by the session id.
	StartStripeCheckout(ctx context.Context, params StripeCheckoutParams) (*StripeCheckout, error)

	// CreatePix records a processing PIX transaction. The gateway is not
	// called until ProcessPix, so the payer can be redirected immediately.
	CreatePix(ctx context.Context, userID uuid.UUID, plan domain.Plan) (*domain.Transaction, error)

	// ProcessPix calls the gateway for a processing transaction and stores
	// the issued code. Already issued transactions return their code.
	// Gateway failures mark the transaction failed and return
	// domain.EUNAVAILABLE.
	ProcessPix(ctx context.Context, userID uuid.UUID, billingID string) (*domain.PixCheckout, error)

	// CancelPix cancels an open PIX transaction and returns the resulting
	// status. Closed transactions are left unchanged.
	CancelPix(ctx context.Context, userID uuid.UUID, billingID string) (domain.TransactionStatus, error)

	// PixStatus returns the polling view of a PIX transaction.
	PixStatus(ctx context.Context, userID uuid.UUID, billingID string) (domain.PixStatus, error)
}

type checkoutService struct {
	store  repository.Store
	stripe billing.Service
	pix    billing.PixGateway
	clock  clock.Clock
	logger *slog.Logger
}

// NewCheckoutService creates a CheckoutService. stripe and pix may be nil
// when the gateway is not configured; the matching operations then return
// domain.ENOTIMPL.
func NewCheckoutService(store repository.Store, stripe billing.Service, pix billing.PixGateway, c clock.Clock, logger *slog.Logger) CheckoutService {
	return &checkoutService{
		store:  store,
		stripe: stripe,
		pix:    pix,
		clock:  c,
		logger: logger,
	}
}

func validatePaidPlan(op string, plan domain.Plan) error {
	if plan != domain.PlanPremium && plan != domain.PlanVIP {
		return domain.Invalid(op, "Plano inválido")
	}
	return nil
}

// pixBillingID builds the external id sent to the gateway.
func pixBillingID(plan domain.Plan, userID uuid.UUID, unix int64) string {
	return fmt.Sprintf("%s_%s_%d", plan, userID, unix)
}

// =============================================================================
// Stripe
// =============================================================================

func (s *checkoutService) StartStripeCheckout(ctx context.Context, p StripeCheckoutParams) (*StripeCheckout, error) {
	const op = "checkout.start_stripe"

	if s.stripe == nil {
		return nil, domain.Errorf(domain.ENOTIMPL, op, "Pagamento com cartão indisponível no momento")
	}
	if err := validatePaidPlan(op, p.Plan); err != nil {
		return nil, err
	}

	repoUser, err := s.store.GetUserByID(ctx, p.UserID)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound(op, "user", p.UserID.String())
		}
		return nil, domain.Internal(err, op, "failed to retrieve user")
	}

	session, err := s.stripe.CreateCheckoutSession(ctx, billing.CheckoutParams{
		UserID:     p.UserID,
		Email:      repoUser.Email,
		CustomerID: domain.NullStringValue(repoUser.StripeCustomerID),
		Plan:       p.Plan,
		SuccessURL: p.SuccessURL,
		CancelURL:  p.CancelURL,
	})
	if err != nil {
		return nil, domain.Unavailable(err, op, "Não foi possível iniciar o pagamento. Tente novamente.")
	}

	amount := session.AmountTotal
	if amount == 0 {
		amount = domain.PolicyForPlan(p.Plan).PriceCentavos
	}
	currency := session.Currency
	if currency == "" {
		currency = "brl"
	}

	row, err := s.store.CreateTransaction(ctx, repository.CreateTransactionParams{
		UserID:          p.UserID,
		Gateway:         string(domain.GatewayStripe),
		StripeSessionID: domain.ToNullString(session.ID),
		PlanType:        string(p.Plan),
		Amount:          amount,
		Currency:        currency,
		Status:          string(domain.TransactionPending),
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to record transaction")
	}

	s.logger.Info("stripe checkout started",
		"user_id", p.UserID,
		"plan", p.Plan,
		"session_id", session.ID,
	)
	return &StripeCheckout{
		URL:         session.URL,
		Transaction: repoTransactionToDomain(row),
	}, nil
}

// =============================================================================
// PIX
// =============================================================================

func (s *checkoutService) CreatePix(ctx context.Context, userID uuid.UUID, plan domain.Plan) (*domain.Transaction, error) {
	const op = "checkout.create_pix"

	if err := validatePaidPlan(op, plan); err != nil {
		return nil, err
	}

	billingID := pixBillingID(plan, userID, s.clock.Now().Unix())
	row, err := s.store.CreateTransaction(ctx, repository.CreateTransactionParams{
		UserID:              userID,
		Gateway:             string(domain.GatewayAbacatePay),
		AbacatepayBillingID: domain.ToNullString(billingID),
		PlanType:            string(plan),
		Amount:              domain.PolicyForPlan(plan).PriceCentavos,
		Currency:            "brl",
		Status:              string(domain.TransactionProcessing),
	})
	if err != nil {
		if isUniqueViolation(err) {
			return nil, domain.Conflict(op, "Já existe um pagamento PIX em andamento. Aguarde alguns segundos.")
		}
		return nil, domain.Internal(err, op, "failed to record transaction")
	}

	s.logger.Info("pix checkout created", "user_id", userID, "plan", plan, "billing_id", billingID)
	return repoTransactionToDomain(row), nil
}

// lockPix loads the caller's PIX transaction inside q with a row lock.
// Another user's billing id reads as not found.
func lockPix(ctx context.Context, q repository.Querier, op string, userID uuid.UUID, billingID string) (*domain.Transaction, error) {
	row, err := q.GetTransactionByPixReferenceForUpdate(ctx, domain.ToNullString(billingID))
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound(op, "transaction", billingID)
		}
		return nil, domain.Internal(err, op, "failed to retrieve transaction")
	}
	if row.UserID != userID || row.Gateway != string(domain.GatewayAbacatePay) {
		return nil, domain.NotFound(op, "transaction", billingID)
	}
	return repoTransactionToDomain(row), nil
}

func pixCheckout(t *domain.Transaction) *domain.PixCheckout {
	return &domain.PixCheckout{
		Transaction: t,
		BRCode:      t.PixBRCode,
		BRCodeImage: t.PixBRCodeBase64,
	}
}

func (s *checkoutService) ProcessPix(ctx context.Context, userID uuid.UUID, billingID string) (*domain.PixCheckout, error) {
	const op = "checkout.process_pix"

	if s.pix == nil {
		return nil, domain.Errorf(domain.ENOTIMPL, op, "Pagamento via PIX indisponível no momento")
	}

	var txn *domain.Transaction
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		var err error
		txn, err = lockPix(ctx, q, op, userID, billingID)
		return err
	})
	if err != nil {
		return nil, err
	}

	switch txn.Status {
	case domain.TransactionPending, domain.TransactionCompleted:
		return pixCheckout(txn), nil
	case domain.TransactionCancelled:
		return nil, domain.Conflict(op, "Transação foi cancelada")
	case domain.TransactionProcessing:
	default:
		return nil, domain.Conflict(op, "Este pagamento não pode mais ser processado. Inicie um novo checkout.")
	}

	repoUser, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, domain.Internal(err, op, "failed to retrieve user")
	}

	// The gateway call runs outside any database transaction. Its outcome
	// is recorded even if the client goes away meanwhile.
	charge, gwErr := s.pix.CreatePixCharge(ctx, billing.PixChargeRequest{
		ExternalID:     billingID,
		UserID:         userID.String(),
		Plan:           txn.PlanType,
		AmountCentavos: txn.AmountCentavos,
		CustomerName:   repoUser.Name,
		CustomerEmail:  repoUser.Email,
	})
	settleCtx := context.WithoutCancel(ctx)
	if gwErr != nil {
		metrics.PixGatewayCall("error")
		s.logger.Warn("pix gateway call failed", "billing_id", billingID, "error", gwErr)
		if err := s.settlePix(settleCtx, op, userID, billingID, domain.TransactionFailed, nil); err != nil {
			s.logger.Error("failed to mark pix transaction failed", "billing_id", billingID, "error", err)
		}
		return nil, domain.Unavailable(gwErr, op, "Erro ao processar pagamento. Tente novamente.")
	}
	metrics.PixGatewayCall("ok")

	var issued *domain.Transaction
	err = s.store.ExecTx(settleCtx, func(q repository.Querier) error {
		t, err := lockPix(settleCtx, q, op, userID, billingID)
		if err != nil {
			return err
		}
		// A webhook or a cancel may have landed during the gateway call.
		if t.Status != domain.TransactionProcessing {
			issued = t
			return nil
		}
		if err := t.TransitionTo(domain.TransactionPending); err != nil {
			return err
		}
		err = q.SetTransactionPixCharge(settleCtx, repository.SetTransactionPixChargeParams{
			ID:              t.ID,
			PixChargeID:     domain.ToNullString(charge.ID),
			PixBrCode:       domain.ToNullString(charge.BRCode),
			PixBrCodeBase64: domain.ToNullString(charge.BRCodeBase64),
			Status:          string(t.Status),
		})
		if err != nil {
			return domain.Internal(err, op, "failed to store pix charge")
		}
		t.PixChargeID = charge.ID
		t.PixBRCode = charge.BRCode
		t.PixBRCodeBase64 = charge.BRCodeBase64
		issued = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	if issued.Status == domain.TransactionCancelled {
		return nil, domain.Conflict(op, "Transação foi cancelada")
	}

	s.logger.Info("pix code issued", "billing_id", billingID, "charge_id", charge.ID)
	return pixCheckout(issued), nil
}

// settlePix moves an open PIX transaction to target. Closed transactions
// are left unchanged; the resulting status is stored in out when non-nil.
func (s *checkoutService) settlePix(ctx context.Context, op string, userID uuid.UUID, billingID string, target domain.TransactionStatus, out *domain.TransactionStatus) error {
	return s.store.ExecTx(ctx, func(q repository.Querier) error {
		t, err := lockPix(ctx, q, op, userID, billingID)
		if err != nil {
			return err
		}
		if t.Status.IsOpen() {
			if err := t.TransitionTo(target); err != nil {
				return err
			}
			err := q.UpdateTransactionStatus(ctx, repository.UpdateTransactionStatusParams{
				ID:     t.ID,
				Status: string(t.Status),
			})
			if err != nil {
				return domain.Internal(err, op, "failed to update transaction")
			}
		}
		if out != nil {
			*out = t.Status
		}
		return nil
	})
}

func (s *checkoutService) CancelPix(ctx context.Context, userID uuid.UUID, billingID string) (domain.TransactionStatus, error) {
	const op = "checkout.cancel_pix"

	var status domain.TransactionStatus
	if err := s.settlePix(ctx, op, userID, billingID, domain.TransactionCancelled, &status); err != nil {
		return "", err
	}
	if status == domain.TransactionCancelled {
		s.logger.Info("pix checkout cancelled", "billing_id", billingID, "user_id", userID)
	}
	return status, nil
}

func (s *checkoutService) PixStatus(ctx context.Context, userID uuid.UUID, billingID string) (domain.PixStatus, error) {
	const op = "checkout.pix_status"

	var status domain.PixStatus
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		t, err := lockPix(ctx, q, op, userID, billingID)
		if err != nil {
			return err
		}
		status = domain.NewPixStatus(t)
		return nil
	})
	return status, err
}
