// Package handler contains HTTP handlers for the portal.
//
// This file implements plan checkout by card (Stripe) and PIX (AbacatePay).
// Plan activation itself happens in the webhook handlers once the gateway
// confirms payment.
//
// Routes (all require an authenticated user):
//   - POST /checkout/stripe             -> StartStripe
//   - POST /checkout/pix                -> CreatePix
//   - POST /checkout/pix/{id}/process   -> ProcessPix
//   - POST /checkout/pix/{id}/cancel    -> CancelPix
//   - GET  /checkout/pix/{id}/status    -> PixStatus
//
// The PIX {id} is the billing id returned by CreatePix.
package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/DukeRupert/mundo/internal/auth"
	"github.com/DukeRupert/mundo/internal/domain"
	"github.com/DukeRupert/mundo/internal/service"
)

// CheckoutHandler handles plan purchases.
type CheckoutHandler struct {
	checkout service.CheckoutService
	baseURL  string
	logger   *slog.Logger
}

// NewCheckoutHandler creates a CheckoutHandler. baseURL is the public
// origin used to build Stripe return links.
func NewCheckoutHandler(checkout service.CheckoutService, baseURL string, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{
		checkout: checkout,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   logger,
	}
}

// RegisterRoutes registers the checkout routes behind requireUser.
func (h *CheckoutHandler) RegisterRoutes(mux *http.ServeMux, requireUser func(http.Handler) http.Handler) {
	mux.Handle("POST /checkout/stripe", requireUser(http.HandlerFunc(h.StartStripe)))
	mux.Handle("POST /checkout/pix", requireUser(http.HandlerFunc(h.CreatePix)))
	mux.Handle("POST /checkout/pix/{id}/process", requireUser(http.HandlerFunc(h.ProcessPix)))
	mux.Handle("POST /checkout/pix/{id}/cancel", requireUser(http.HandlerFunc(h.CancelPix)))
	mux.Handle("GET /checkout/pix/{id}/status", requireUser(http.HandlerFunc(h.PixStatus)))
}

type planRequest struct {
	Plan string `json:"plan"`
}

func (h *CheckoutHandler) readPlan(w http.ResponseWriter, r *http.Request) (domain.Plan, error) {
	var req planRequest
	if isJSONBody(r) {
		if err := decodeJSON(w, r, &req); err != nil {
			return "", err
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		req.Plan = r.FormValue("plan")
	}
	return domain.Plan(strings.ToLower(strings.TrimSpace(req.Plan))), nil
}

// =============================================================================
// Stripe
// =============================================================================

// StartStripe creates a Checkout session and sends the payer to it: a JSON
// body with the URL for API clients, a 303 redirect for forms.
func (h *CheckoutHandler) StartStripe(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	plan, err := h.readPlan(w, r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.checkout.StartStripeCheckout(r.Context(), service.StripeCheckoutParams{
		UserID:     user.ID,
		Plan:       plan,
		SuccessURL: h.baseURL + "/checkout/success?session_id={CHECKOUT_SESSION_ID}",
		CancelURL:  h.baseURL + "/planos",
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	h.logger.Info("stripe checkout started",
		"user_id", user.ID,
		"plan", plan,
		"transaction_id", result.Transaction.ID,
	)

	if !acceptsJSON(r) {
		http.Redirect(w, r, result.URL, http.StatusSeeOther)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"url":            result.URL,
		"transaction_id": result.Transaction.ID,
	})
}

// =============================================================================
// PIX
// =============================================================================

type transactionResponse struct {
	ID        string  `json:"transaction_id"`
	BillingID string  `json:"billing_id"`
	Plan      string  `json:"plan"`
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	Status    string  `json:"status"`
}

func newTransactionResponse(t *domain.Transaction) transactionResponse {
	return transactionResponse{
		ID:        t.ID.String(),
		BillingID: t.AbacatePayBillingID,
		Plan:      string(t.PlanType),
		Amount:    t.Amount(),
		Currency:  t.Currency,
		Status:    string(t.Status),
	}
}

// CreatePix records a PIX checkout. The gateway is called by ProcessPix so
// the payer sees the checkout page immediately.
func (h *CheckoutHandler) CreatePix(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	plan, err := h.readPlan(w, r)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	txn, err := h.checkout.CreatePix(r.Context(), user.ID, plan)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"transaction": newTransactionResponse(txn),
		"process_url": "/checkout/pix/" + txn.AbacatePayBillingID + "/process",
		"status_url":  "/checkout/pix/" + txn.AbacatePayBillingID + "/status",
	})
}

// ProcessPix requests the PIX code from the gateway. A gateway failure is
// 502 and leaves the transaction failed.
func (h *CheckoutHandler) ProcessPix(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	pix, err := h.checkout.ProcessPix(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transaction":    newTransactionResponse(pix.Transaction),
		"br_code":        pix.BRCode,
		"br_code_base64": pix.BRCodeImage,
	})
}

// CancelPix abandons an open PIX checkout.
func (h *CheckoutHandler) CancelPix(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	status, err := h.checkout.CancelPix(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

// PixStatus is polled by the checkout page until stop_polling is true.
func (h *CheckoutHandler) PixStatus(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		UnauthorizedResponse(w, r, h.logger)
		return
	}

	st, err := h.checkout.PixStatus(r.Context(), user.ID, r.PathValue("id"))
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"transaction_id": st.TransactionID,
		"status":         string(st.Status),
		"paid":           st.Paid,
		"stop_polling":   st.StopPolling,
	})
}
