package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DukeRupert/mundo/internal/domain"
	"github.com/DukeRupert/mundo/internal/service"
)

func serveCheckout(h *CheckoutHandler, req *http.Request) *httptest.ResponseRecorder {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux, func(next http.Handler) http.Handler { return next })
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func pixTransaction(status domain.TransactionStatus) *domain.Transaction {
	return &domain.Transaction{
		ID:                  uuid.MustParse("33333333-3333-3333-3333-333333333333"),
		UserID:              testUser().ID,
		Gateway:             domain.GatewayAbacatePay,
		AbacatePayBillingID: "vip_11111111-1111-1111-1111-111111111111_1760000000",
		PlanType:            domain.PlanVIP,
		AmountCentavos:      4990,
		Currency:            "brl",
		Status:              status,
	}
}

func TestStartStripe(t *testing.T) {
	var got service.StripeCheckoutParams
	mock := &mockCheckoutService{
		StartStripeCheckoutFunc: func(_ context.Context, p service.StripeCheckoutParams) (*service.StripeCheckout, error) {
			got = p
			return &service.StripeCheckout{
				URL:         "https://checkout.stripe.com/c/pay/cs_test_1",
				Transaction: &domain.Transaction{ID: uuid.New()},
			}, nil
		},
	}
	h := NewCheckoutHandler(mock, "https://mundo.example.com/", newTestLogger())

	t.Run("json returns the checkout url", func(t *testing.T) {
		req := jsonRequest(http.MethodPost, "/checkout/stripe", `{"plan":"Premium"}`)
		rec := serveCheckout(h, withUser(req, testUser()))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "https://checkout.stripe.com/c/pay/cs_test_1")
		assert.Equal(t, domain.PlanPremium, got.Plan)
		assert.Equal(t, testUser().ID, got.UserID)
		assert.Equal(t, "https://mundo.example.com/checkout/success?session_id={CHECKOUT_SESSION_ID}", got.SuccessURL)
		assert.Equal(t, "https://mundo.example.com/planos", got.CancelURL)
	})

	t.Run("form redirects to stripe", func(t *testing.T) {
		req := formRequest("/checkout/stripe", url.Values{"plan": {"vip"}})
		rec := serveCheckout(h, withUser(req, testUser()))

		assert.Equal(t, http.StatusSeeOther, rec.Code)
		assert.Equal(t, "https://checkout.stripe.com/c/pay/cs_test_1", rec.Header().Get("Location"))
		assert.Equal(t, domain.PlanVIP, got.Plan)
	})
}

func TestStartStripe_Errors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"invalid plan", domain.Invalid("checkout.start_stripe", "Plano inválido"), http.StatusBadRequest},
		{"stripe not configured", domain.Errorf(domain.ENOTIMPL, "checkout.start_stripe", "Pagamento com cartão indisponível no momento"), http.StatusNotImplemented},
		{"gateway down", domain.Unavailable(nil, "checkout.start_stripe", "Não foi possível iniciar o pagamento."), http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockCheckoutService{
				StartStripeCheckoutFunc: func(context.Context, service.StripeCheckoutParams) (*service.StripeCheckout, error) {
					return nil, tt.err
				},
			}
			h := NewCheckoutHandler(mock, "https://mundo.example.com", newTestLogger())

			req := jsonRequest(http.MethodPost, "/checkout/stripe", `{"plan":"free"}`)
			rec := serveCheckout(h, withUser(req, testUser()))

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}

func TestCreatePix(t *testing.T) {
	mock := &mockCheckoutService{
		CreatePixFunc: func(_ context.Context, userID uuid.UUID, plan domain.Plan) (*domain.Transaction, error) {
			assert.Equal(t, domain.PlanVIP, plan)
			return pixTransaction(domain.TransactionProcessing), nil
		},
	}
	h := NewCheckoutHandler(mock, "https://mundo.example.com", newTestLogger())

	req := jsonRequest(http.MethodPost, "/checkout/pix", `{"plan":"vip"}`)
	rec := serveCheckout(h, withUser(req, testUser()))

	require.Equal(t, http.StatusCreated, rec.Code)

	var body struct {
		Transaction struct {
			BillingID string  `json:"billing_id"`
			Amount    float64 `json:"amount"`
			Status    string  `json:"status"`
		} `json:"transaction"`
		ProcessURL string `json:"process_url"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "processing", body.Transaction.Status)
	assert.InDelta(t, 49.90, body.Transaction.Amount, 0.001)
	assert.Equal(t, "/checkout/pix/"+body.Transaction.BillingID+"/process", body.ProcessURL)
}

func TestProcessPix(t *testing.T) {
	billingID := pixTransaction("").AbacatePayBillingID

	t.Run("returns the pix code", func(t *testing.T) {
		mock := &mockCheckoutService{
			ProcessPixFunc: func(_ context.Context, _ uuid.UUID, id string) (*domain.PixCheckout, error) {
				assert.Equal(t, billingID, id)
				return &domain.PixCheckout{
					Transaction: pixTransaction(domain.TransactionPending),
					BRCode:      "00020101021226...",
					BRCodeImage: "iVBORw0KGgo=",
				}, nil
			},
		}
		h := NewCheckoutHandler(mock, "", newTestLogger())

		rec := serveCheckout(h, withUser(httptest.NewRequest(http.MethodPost, "/checkout/pix/"+billingID+"/process", nil), testUser()))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"br_code":"00020101021226..."`)
		assert.Contains(t, rec.Body.String(), `"status":"pending"`)
	})

	t.Run("gateway failure is bad gateway", func(t *testing.T) {
		mock := &mockCheckoutService{
			ProcessPixFunc: func(context.Context, uuid.UUID, string) (*domain.PixCheckout, error) {
				return nil, domain.Unavailable(nil, "checkout.process_pix", "Não foi possível gerar o PIX.")
			},
		}
		h := NewCheckoutHandler(mock, "", newTestLogger())

		req := httptest.NewRequest(http.MethodPost, "/checkout/pix/"+billingID+"/process", nil)
		req.Header.Set("Accept", "application/json")
		rec := serveCheckout(h, withUser(req, testUser()))

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Contains(t, rec.Body.String(), domain.EUNAVAILABLE)
	})
}

func TestCancelPix(t *testing.T) {
	mock := &mockCheckoutService{
		CancelPixFunc: func(context.Context, uuid.UUID, string) (domain.TransactionStatus, error) {
			return domain.TransactionCancelled, nil
		},
	}
	h := NewCheckoutHandler(mock, "", newTestLogger())

	rec := serveCheckout(h, withUser(httptest.NewRequest(http.MethodPost, "/checkout/pix/abc/cancel", nil), testUser()))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"cancelled"}`, rec.Body.String())
}

func TestPixStatus(t *testing.T) {
	tests := []struct {
		name   string
		status domain.TransactionStatus
		want   string
	}{
		{"pending keeps polling", domain.TransactionPending, `"paid":false,"status":"pending","stop_polling":false`},
		{"completed stops polling", domain.TransactionCompleted, `"paid":true,"status":"completed","stop_polling":true`},
		{"failed stops polling", domain.TransactionFailed, `"paid":false,"status":"failed","stop_polling":true`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockCheckoutService{
				PixStatusFunc: func(context.Context, uuid.UUID, string) (domain.PixStatus, error) {
					return domain.NewPixStatus(pixTransaction(tt.status)), nil
				},
			}
			h := NewCheckoutHandler(mock, "", newTestLogger())

			rec := serveCheckout(h, withUser(httptest.NewRequest(http.MethodGet, "/checkout/pix/abc/status", nil), testUser()))

			require.Equal(t, http.StatusOK, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}
}

func TestPixStatus_OtherUsersTransaction_NotFound(t *testing.T) {
	mock := &mockCheckoutService{
		PixStatusFunc: func(context.Context, uuid.UUID, string) (domain.PixStatus, error) {
			return domain.PixStatus{}, domain.NotFound("checkout.pix_status", "transaction", "abc")
		},
	}
	h := NewCheckoutHandler(mock, "", newTestLogger())

	req := httptest.NewRequest(http.MethodGet, "/checkout/pix/abc/status", nil)
	req.Header.Set("Accept", "application/json")
	rec := serveCheckout(h, withUser(req, testUser()))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
