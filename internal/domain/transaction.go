package domain

import (
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Transaction Status
// =============================================================================

// TransactionStatus is the lifecycle state of a payment attempt.
type TransactionStatus string

const (
	// TransactionPending: a checkout session or PIX code was issued and the
	// payer has not finished yet.
	TransactionPending TransactionStatus = "pending"

	// TransactionProcessing: a PIX checkout was created locally and the
	// gateway has not been called yet.
	TransactionProcessing TransactionStatus = "processing"

	TransactionCompleted TransactionStatus = "completed"
	TransactionFailed    TransactionStatus = "failed"
	TransactionCancelled TransactionStatus = "cancelled"
	TransactionRefunded  TransactionStatus = "refunded"
)

// String returns the string representation of the status.
func (s TransactionStatus) String() string {
	return string(s)
}

// IsValid checks if the status is a known value.
func (s TransactionStatus) IsValid() bool {
	switch s {
	case TransactionPending, TransactionProcessing, TransactionCompleted,
		TransactionFailed, TransactionCancelled, TransactionRefunded:
		return true
	}
	return false
}

// IsOpen reports whether the payer can still complete the transaction.
func (s TransactionStatus) IsOpen() bool {
	return s == TransactionPending || s == TransactionProcessing
}

// CanTransitionTo checks if a transaction can move to the target status.
//
// Valid transitions:
// - pending/processing -> completed, failed, cancelled
// - processing -> pending (PIX code issued by the gateway)
// - completed -> refunded
func (s TransactionStatus) CanTransitionTo(target TransactionStatus) bool {
	switch s {
	case TransactionPending:
		return target == TransactionCompleted || target == TransactionFailed || target == TransactionCancelled
	case TransactionProcessing:
		return target == TransactionPending || target == TransactionCompleted ||
			target == TransactionFailed || target == TransactionCancelled
	case TransactionCompleted:
		return target == TransactionRefunded
	}
	return false
}

// =============================================================================
// Transaction
// =============================================================================

// Gateway identifies the payment provider of a transaction.
type Gateway string

const (
	GatewayStripe     Gateway = "stripe"
	GatewayAbacatePay Gateway = "abacatepay"
)

// Transaction is one checkout attempt for a paid plan.
type Transaction struct {
	ID      uuid.UUID
	UserID  uuid.UUID
	Gateway Gateway

	StripeSessionID      string
	StripeSubscriptionID string
	StripeCustomerID     string

	AbacatePayBillingID string // Our external id, "{plan}_{user}_{unix}"
	PixChargeID         string // Gateway-side charge id
	PixBRCode           string
	PixBRCodeBase64     string

	PlanType       Plan
	AmountCentavos int64
	Currency       string
	Status         TransactionStatus

	CreatedAt time.Time
	UpdatedAt time.Time
	PaidAt    *time.Time
}

// TransitionTo moves the transaction to target, or returns an ECONFLICT
// error and leaves the status unchanged.
func (t *Transaction) TransitionTo(target TransactionStatus) error {
	if !t.Status.CanTransitionTo(target) {
		return Errorf(ECONFLICT, "transaction.transition",
			"cannot transition transaction from %s to %s", t.Status, target)
	}
	t.Status = target
	return nil
}

// Amount returns the amount in reais for display.
func (t *Transaction) Amount() float64 {
	return float64(t.AmountCentavos) / 100
}

// PixStatus is the polling view of a PIX transaction.
type PixStatus struct {
	TransactionID uuid.UUID
	Status        TransactionStatus
	Paid          bool
	StopPolling   bool // True once the status can no longer change to paid
}

// NewPixStatus builds the polling view of t.
func NewPixStatus(t *Transaction) PixStatus {
	return PixStatus{
		TransactionID: t.ID,
		Status:        t.Status,
		Paid:          t.Status == TransactionCompleted,
		StopPolling:   !t.Status.IsOpen(),
	}
}

// PixCheckout is the payer-facing data of an issued PIX charge.
type PixCheckout struct {
	Transaction *Transaction
	BRCode      string
	BRCodeImage string // base64 PNG
}
