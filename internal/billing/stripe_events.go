package billing

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"

	"github.com/DukeRupert/mundo/internal/domain"
)

// ParseStripeEvent decodes a verified Stripe event into the reconciler's
// event types. It returns *domain.CheckoutCompletedEvent or
// *domain.SubscriptionEvent, or nil for event types the portal ignores.
func ParseStripeEvent(event stripe.Event) (any, error) {
	if event.Data == nil {
		return nil, fmt.Errorf("parse stripe event %s: missing data", event.ID)
	}
	ref := domain.EventRef{
		Provider: domain.ProviderStripe,
		ID:       event.ID,
		Type:     string(event.Type),
		Payload:  event.Data.Raw,
	}

	switch string(event.Type) {
	case domain.StripeCheckoutCompleted:
		var session stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
			return nil, fmt.Errorf("parse checkout session: %w", err)
		}
		if session.ID == "" {
			return nil, fmt.Errorf("parse checkout session: missing id")
		}

		e := &domain.CheckoutCompletedEvent{
			Event:       ref,
			SessionID:   session.ID,
			AmountTotal: session.AmountTotal,
			Currency:    string(session.Currency),
			Plan:        domain.Plan(session.Metadata[MetadataPlan]),
		}
		if session.Customer != nil {
			e.CustomerID = session.Customer.ID
		}
		if session.Subscription != nil {
			e.SubscriptionID = session.Subscription.ID
		}
		if raw := session.Metadata[MetadataUserID]; raw != "" {
			if id, err := uuid.Parse(raw); err == nil {
				e.UserID = id
			}
		}
		return e, nil

	case domain.StripeSubscriptionUpdated, domain.StripeSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("parse subscription: %w", err)
		}
		if sub.ID == "" {
			return nil, fmt.Errorf("parse subscription: missing id")
		}

		e := &domain.SubscriptionEvent{
			Event:          ref,
			SubscriptionID: sub.ID,
			Status:         string(sub.Status),
		}
		if sub.Customer != nil {
			e.CustomerID = sub.Customer.ID
		}
		return e, nil
	}

	return nil, nil
}
