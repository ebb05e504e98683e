// Package handler contains HTTP handlers for the portal.
//
// This file implements the payment gateway webhooks.
//
// Routes:
//   - POST /stripe-webhook     -> HandleStripeWebhook
//   - POST /abacatepay-webhook -> HandlePixWebhook
//
// These routes are PUBLIC (no auth middleware) because the gateways call
// them directly. Stripe deliveries are authenticated by signature and
// AbacatePay deliveries by a shared secret.
package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/DukeRupert/mundo/internal/billing"
	"github.com/DukeRupert/mundo/internal/domain"
	"github.com/DukeRupert/mundo/internal/service"
)

// maxWebhookBytes caps webhook bodies.
const maxWebhookBytes = 65536

// pixSecretHeader carries the AbacatePay webhook secret when it is not
// sent as the webhookSecret query parameter.
const pixSecretHeader = "X-Webhook-Secret"

// WebhookHandler receives gateway notifications and hands them to the
// reconciler.
type WebhookHandler struct {
	billing    billing.Service
	reconciler service.Reconciler
	pixSecret  string
	logger     *slog.Logger
}

// NewWebhookHandler creates a new WebhookHandler.
// billingService may be nil when Stripe is not configured.
func NewWebhookHandler(billingService billing.Service, reconciler service.Reconciler, pixSecret string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		billing:    billingService,
		reconciler: reconciler,
		pixSecret:  pixSecret,
		logger:     logger,
	}
}

// RegisterRoutes registers webhook routes on the provided mux.
// These routes are PUBLIC, no auth middleware.
func (h *WebhookHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /stripe-webhook", h.HandleStripeWebhook)
	mux.HandleFunc("POST /abacatepay-webhook", h.HandlePixWebhook)
}

// =============================================================================
// Stripe
// =============================================================================

// HandleStripeWebhook verifies and reconciles a Stripe event.
//
// Responses: 400 for an unreadable body, a bad signature or a payload that
// cannot be parsed; 500 when reconciliation fails so Stripe retries; 200
// for everything else, including duplicates, ignored event types and
// sessions we know nothing about.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if h.billing == nil {
		h.logger.Warn("stripe webhook received but billing is not configured")
		w.WriteHeader(http.StatusOK)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := h.billing.VerifyWebhookSignature(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("stripe webhook received", "type", event.Type, "id", event.ID)

	parsed, err := billing.ParseStripeEvent(event)
	if err != nil {
		h.logger.Warn("malformed stripe event", "error", err, "id", event.ID)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var outcome domain.ReconcileOutcome
	switch e := parsed.(type) {
	case *domain.CheckoutCompletedEvent:
		outcome, err = h.reconciler.CheckoutCompleted(r.Context(), *e)
	case *domain.SubscriptionEvent:
		if e.Event.Type == domain.StripeSubscriptionDeleted {
			outcome, err = h.reconciler.SubscriptionDeleted(r.Context(), *e)
		} else {
			outcome, err = h.reconciler.SubscriptionUpdated(r.Context(), *e)
		}
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Type)
		w.WriteHeader(http.StatusOK)
		return
	}

	h.respond(w, r, string(domain.ProviderStripe), event.ID, outcome, err)
}

// =============================================================================
// AbacatePay
// =============================================================================

// HandlePixWebhook verifies and reconciles an AbacatePay notification.
//
// Responses: 401 for a wrong secret, 400 for a malformed payload, 404 when
// the billing id matches no transaction, 500 when reconciliation fails and
// 200 otherwise.
func (h *WebhookHandler) HandlePixWebhook(w http.ResponseWriter, r *http.Request) {
	secret := r.URL.Query().Get("webhookSecret")
	if secret == "" {
		secret = r.Header.Get(pixSecretHeader)
	}
	if !billing.VerifyPixWebhookSecret(secret, h.pixSecret) {
		h.logger.Warn("abacatepay webhook secret mismatch", "ip", ClientIP(r))
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes))
	if err != nil {
		h.logger.Error("failed to read webhook body", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	event, err := billing.ParsePixWebhook(body)
	if err != nil {
		h.logger.Warn("malformed abacatepay webhook", "error", err)
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	h.logger.Info("abacatepay webhook received",
		"type", event.Event.Type,
		"id", event.Event.ID,
		"billing_id", event.BillingID,
	)

	var outcome domain.ReconcileOutcome
	switch event.Event.Type {
	case domain.PixBillingPaid:
		outcome, err = h.reconciler.PixPaid(r.Context(), *event)
	case domain.PixBillingFailed:
		outcome, err = h.reconciler.PixFailed(r.Context(), *event)
	case domain.PixBillingRefunded:
		outcome, err = h.reconciler.PixRefunded(r.Context(), *event)
	default:
		h.logger.Debug("unhandled webhook event type", "type", event.Event.Type)
		w.WriteHeader(http.StatusOK)
		return
	}

	h.respond(w, r, string(domain.ProviderAbacatePay), event.Event.ID, outcome, err)
}

// respond writes the gateway-facing status of a reconciliation.
func (h *WebhookHandler) respond(w http.ResponseWriter, r *http.Request, provider, eventID string, outcome domain.ReconcileOutcome, err error) {
	if err != nil {
		switch domain.ErrorCode(err) {
		case domain.ENOTFOUND:
			h.logger.Error("webhook references unknown transaction",
				"provider", provider, "id", eventID, "error", err)
			w.WriteHeader(http.StatusNotFound)
		case domain.EINVALID:
			h.logger.Warn("webhook rejected", "provider", provider, "id", eventID, "error", err)
			w.WriteHeader(http.StatusBadRequest)
		default:
			h.logger.Error("webhook processing failed",
				"provider", provider, "id", eventID, "error", err, "path", r.URL.Path)
			w.WriteHeader(http.StatusInternalServerError)
		}
		return
	}

	if outcome == domain.OutcomeDuplicate {
		h.logger.Debug("webhook already processed", "provider", provider, "id", eventID)
	} else {
		h.logger.Info("webhook processed", "provider", provider, "id", eventID, "outcome", outcome)
	}
	w.WriteHeader(http.StatusOK)
}
