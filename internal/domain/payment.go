package domain

import (
	"encoding/json"

	"github.com/google/uuid"
)

// Provider identifies the source of a webhook event.
type Provider string

const (
	ProviderStripe     Provider = "stripe"
	ProviderAbacatePay Provider = "abacatepay"
)

// Upstream event type names.
const (
	StripeCheckoutCompleted   = "checkout.session.completed"
	StripeSubscriptionUpdated = "customer.subscription.updated"
	StripeSubscriptionDeleted = "customer.subscription.deleted"

	PixBillingPaid     = "billing.paid"
	PixBillingFailed   = "billing.failed"
	PixBillingRefunded = "billing.refunded"
)

// DowngradeSubscriptionStatuses are the upstream subscription statuses that
// force a user back to free.
var DowngradeSubscriptionStatuses = map[string]bool{
	"canceled": true,
	"unpaid":   true,
	"past_due": true,
}

// EventRef identifies a delivered webhook event for deduplication.
type EventRef struct {
	Provider Provider
	ID       string
	Type     string
	Payload  json.RawMessage
}

// CheckoutCompletedEvent is a finished Stripe checkout session.
type CheckoutCompletedEvent struct {
	Event          EventRef
	SessionID      string
	CustomerID     string
	SubscriptionID string
	AmountTotal    int64
	Currency       string

	// From session metadata; used when no local transaction exists.
	UserID uuid.UUID
	Plan   Plan
}

// SubscriptionEvent is a Stripe subscription change.
type SubscriptionEvent struct {
	Event          EventRef
	SubscriptionID string
	CustomerID     string
	Status         string
}

// PixEvent is an AbacatePay billing notification.
type PixEvent struct {
	Event     EventRef
	BillingID string // Our external id or the gateway charge id
}

// ReconcileOutcome reports what a webhook handler did.
type ReconcileOutcome string

const (
	OutcomeApplied   ReconcileOutcome = "applied"
	OutcomeDuplicate ReconcileOutcome = "duplicate"
	OutcomeNoop      ReconcileOutcome = "noop"
)
