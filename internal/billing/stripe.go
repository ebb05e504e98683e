// Package billing integrates the payment gateways: Stripe for card
// subscriptions and AbacatePay for PIX charges.
package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"
	checkoutsession "github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/DukeRupert/mundo/internal/domain"
)

// Service defines the Stripe operations used by the portal.
type Service interface {
	// CreateCheckoutSession creates a subscription Checkout session for a
	// paid plan. The user id and plan are stored in the session metadata so
	// the completion webhook can be reconciled without a local transaction.
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*CheckoutSession, error)

	// VerifyWebhookSignature verifies the Stripe webhook signature and returns the event.
	VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error)

	// PriceIDForPlan returns the configured Stripe price of a plan.
	PriceIDForPlan(plan domain.Plan) (string, bool)

	// PlanForPriceID returns the plan sold under a Stripe price ID.
	PlanForPriceID(priceID string) (domain.Plan, bool)
}

// PriceConfig holds the Stripe price IDs for each paid plan.
type PriceConfig struct {
	PremiumPriceID string
	VIPPriceID     string
}

// CheckoutParams describes a checkout session to create.
type CheckoutParams struct {
	UserID     uuid.UUID
	Email      string
	CustomerID string // Existing Stripe customer, if any
	Plan       domain.Plan
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is the part of a Stripe Checkout session the portal keeps.
type CheckoutSession struct {
	ID          string
	URL         string
	AmountTotal int64
	Currency    string
}

// Metadata keys written on checkout sessions.
const (
	MetadataUserID = "user_id"
	MetadataPlan   = "plan"
)

// stripeService is the concrete implementation of Service.
type stripeService struct {
	webhookSecret string
	planToPrice   map[domain.Plan]string
	priceToPlan   map[string]domain.Plan
}

// NewStripeService creates a new Stripe billing service.
//
// The secretKey is used to authenticate Stripe API calls.
// The webhookSecret is used to verify incoming webhook signatures.
func NewStripeService(secretKey, webhookSecret string, prices PriceConfig) Service {
	stripe.Key = secretKey
	return newStripeService(webhookSecret, prices)
}

func newStripeService(webhookSecret string, prices PriceConfig) *stripeService {
	s := &stripeService{
		webhookSecret: webhookSecret,
		planToPrice:   make(map[domain.Plan]string),
		priceToPlan:   make(map[string]domain.Plan),
	}
	if prices.PremiumPriceID != "" {
		s.planToPrice[domain.PlanPremium] = prices.PremiumPriceID
		s.priceToPlan[prices.PremiumPriceID] = domain.PlanPremium
	}
	if prices.VIPPriceID != "" {
		s.planToPrice[domain.PlanVIP] = prices.VIPPriceID
		s.priceToPlan[prices.VIPPriceID] = domain.PlanVIP
	}
	return s
}

func (s *stripeService) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	priceID, ok := s.PriceIDForPlan(p.Plan)
	if !ok {
		return nil, fmt.Errorf("stripe create checkout session: no price configured for plan %q", p.Plan)
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(p.SuccessURL),
		CancelURL:         stripe.String(p.CancelURL),
		ClientReferenceID: stripe.String(p.UserID.String()),
	}
	if p.CustomerID != "" {
		params.Customer = stripe.String(p.CustomerID)
	} else if p.Email != "" {
		params.CustomerEmail = stripe.String(p.Email)
	}
	params.AddMetadata(MetadataUserID, p.UserID.String())
	params.AddMetadata(MetadataPlan, string(p.Plan))
	params.Context = ctx

	sess, err := checkoutsession.New(params)
	if err != nil {
		return nil, fmt.Errorf("stripe create checkout session: %w", err)
	}
	return &CheckoutSession{
		ID:          sess.ID,
		URL:         sess.URL,
		AmountTotal: sess.AmountTotal,
		Currency:    string(sess.Currency),
	}, nil
}

func (s *stripeService) VerifyWebhookSignature(payload []byte, signature string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, signature, s.webhookSecret)
	if err != nil {
		return stripe.Event{}, fmt.Errorf("stripe webhook signature verification failed: %w", err)
	}
	return event, nil
}

func (s *stripeService) PriceIDForPlan(plan domain.Plan) (string, bool) {
	id, ok := s.planToPrice[plan]
	return id, ok
}

func (s *stripeService) PlanForPriceID(priceID string) (domain.Plan, bool) {
	plan, ok := s.priceToPlan[priceID]
	return plan, ok
}
