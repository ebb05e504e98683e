package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v79"

	"github.com/DukeRupert/mundo/internal/billing"
	"github.com/DukeRupert/mundo/internal/clock"
	"github.com/DukeRupert/mundo/internal/domain"
	"github.com/DukeRupert/mundo/internal/repository"
)

// =============================================================================
// Fakes
// =============================================================================

type fakeStripe struct {
	session *billing.CheckoutSession
	err     error
	got     billing.CheckoutParams
}

func (f *fakeStripe) CreateCheckoutSession(ctx context.Context, p billing.CheckoutParams) (*billing.CheckoutSession, error) {
	f.got = p
	if f.err != nil {
		return nil, f.err
	}
	return f.session, nil
}

func (f *fakeStripe) VerifyWebhookSignature(payload []byte, sig string) (stripe.Event, error) {
	return stripe.Event{}, errors.New("not used")
}

func (f *fakeStripe) PriceIDForPlan(plan domain.Plan) (string, bool) { return "", false }

func (f *fakeStripe) PlanForPriceID(priceID string) (domain.Plan, bool) { return "", false }

type fakePix struct {
	calls  int
	req    billing.PixChargeRequest
	err    error
	before func() // runs inside the gateway call
}

func (f *fakePix) CreatePixCharge(ctx context.Context, req billing.PixChargeRequest) (*billing.PixCharge, error) {
	f.calls++
	f.req = req
	if f.before != nil {
		f.before()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &billing.PixCharge{
		ID:           "pix_char_1",
		Status:       "PENDING",
		BRCode:       "00020126brcode",
		BRCodeBase64: "data:image/png;base64,QR",
	}, nil
}

type checkoutFixture struct {
	clock  *clock.Manual
	store  *memStore
	stripe *fakeStripe
	pix    *fakePix
	svc    CheckoutService
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	c := clock.NewManual(testNow)
	store := newMemStore(c)
	f := &checkoutFixture{
		clock:  c,
		store:  store,
		stripe: &fakeStripe{session: &billing.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.com/c/cs_test_1"}},
		pix:    &fakePix{},
	}
	f.svc = NewCheckoutService(store, f.stripe, f.pix, c, discardLogger())
	return f
}

// =============================================================================
// Stripe
// =============================================================================

func TestStartStripeCheckout(t *testing.T) {
	f := newCheckoutFixture(t)
	u := f.store.putUser(repository.User{Email: "ana@example.com"})

	out, err := f.svc.StartStripeCheckout(context.Background(), StripeCheckoutParams{
		UserID:     u.ID,
		Plan:       domain.PlanVIP,
		SuccessURL: "https://mundo.example/ok",
		CancelURL:  "https://mundo.example/cancel",
	})
	require.NoError(t, err)
	assert.Equal(t, "https://checkout.stripe.com/c/cs_test_1", out.URL)
	assert.Equal(t, domain.TransactionPending, out.Transaction.Status)
	assert.Equal(t, "cs_test_1", out.Transaction.StripeSessionID)
	assert.Equal(t, int64(4990), out.Transaction.AmountCentavos)
	assert.Equal(t, "brl", out.Transaction.Currency)

	assert.Equal(t, "ana@example.com", f.stripe.got.Email)
	assert.Equal(t, domain.PlanVIP, f.stripe.got.Plan)
	assert.Equal(t, u.ID, f.stripe.got.UserID)
}

func TestStartStripeCheckout_Errors(t *testing.T) {
	f := newCheckoutFixture(t)
	u := f.store.putUser(repository.User{})

	_, err := f.svc.StartStripeCheckout(context.Background(), StripeCheckoutParams{UserID: u.ID, Plan: domain.PlanFree})
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))

	f.stripe.err = errors.New("stripe down")
	_, err = f.svc.StartStripeCheckout(context.Background(), StripeCheckoutParams{UserID: u.ID, Plan: domain.PlanPremium})
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))

	svc := NewCheckoutService(f.store, nil, nil, f.clock, discardLogger())
	_, err = svc.StartStripeCheckout(context.Background(), StripeCheckoutParams{UserID: u.ID, Plan: domain.PlanPremium})
	assert.Equal(t, domain.ENOTIMPL, domain.ErrorCode(err))
}

// =============================================================================
// PIX
// =============================================================================

func TestCreatePix(t *testing.T) {
	f := newCheckoutFixture(t)
	u := f.store.putUser(repository.User{})

	txn, err := f.svc.CreatePix(context.Background(), u.ID, domain.PlanPremium)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionProcessing, txn.Status)
	assert.Equal(t, domain.GatewayAbacatePay, txn.Gateway)
	assert.Equal(t, int64(2990), txn.AmountCentavos)
	assert.Equal(t, pixBillingID(domain.PlanPremium, u.ID, testNow.Unix()), txn.AbacatePayBillingID)
	assert.Zero(t, f.pix.calls)

	_, err = f.svc.CreatePix(context.Background(), u.ID, "gold")
	assert.Equal(t, domain.EINVALID, domain.ErrorCode(err))
}

func TestProcessPix(t *testing.T) {
	f := newCheckoutFixture(t)
	u := f.store.putUser(repository.User{Name: "Ana", Email: "ana@example.com"})
	txn, err := f.svc.CreatePix(context.Background(), u.ID, domain.PlanVIP)
	require.NoError(t, err)

	out, err := f.svc.ProcessPix(context.Background(), u.ID, txn.AbacatePayBillingID)
	require.NoError(t, err)
	assert.Equal(t, "00020126brcode", out.BRCode)
	assert.Equal(t, "data:image/png;base64,QR", out.BRCodeImage)
	assert.Equal(t, domain.TransactionPending, out.Transaction.Status)

	assert.Equal(t, txn.AbacatePayBillingID, f.pix.req.ExternalID)
	assert.Equal(t, int64(4990), f.pix.req.AmountCentavos)
	assert.Equal(t, "Ana", f.pix.req.CustomerName)

	stored := f.store.transaction(txn.ID)
	assert.Equal(t, "pending", stored.Status)
	assert.Equal(t, "pix_char_1", stored.PixChargeID.String)

	// Processing again returns the issued code without a second call.
	again, err := f.svc.ProcessPix(context.Background(), u.ID, txn.AbacatePayBillingID)
	require.NoError(t, err)
	assert.Equal(t, out.BRCode, again.BRCode)
	assert.Equal(t, 1, f.pix.calls)
}

func TestProcessPix_GatewayFailure(t *testing.T) {
	f := newCheckoutFixture(t)
	u := f.store.putUser(repository.User{})
	txn, err := f.svc.CreatePix(context.Background(), u.ID, domain.PlanPremium)
	require.NoError(t, err)

	f.pix.err = billing.ErrPixGateway
	_, err = f.svc.ProcessPix(context.Background(), u.ID, txn.AbacatePayBillingID)
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	assert.ErrorIs(t, err, billing.ErrPixGateway)
	assert.Equal(t, "failed", f.store.transaction(txn.ID).Status)

	// A failed transaction is closed; the payer must start over.
	f.pix.err = nil
	_, err = f.svc.ProcessPix(context.Background(), u.ID, txn.AbacatePayBillingID)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
	assert.Equal(t, 1, f.pix.calls)
}

func TestProcessPix_ClientGoneStillRecordsOutcome(t *testing.T) {
	t.Run("gateway failure", func(t *testing.T) {
		f := newCheckoutFixture(t)
		u := f.store.putUser(repository.User{})
		txn, err := f.svc.CreatePix(context.Background(), u.ID, domain.PlanPremium)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		f.pix.before = cancel
		f.pix.err = billing.ErrPixGateway

		_, err = f.svc.ProcessPix(ctx, u.ID, txn.AbacatePayBillingID)
		assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
		assert.Equal(t, "failed", f.store.transaction(txn.ID).Status)
	})

	t.Run("charge issued", func(t *testing.T) {
		f := newCheckoutFixture(t)
		u := f.store.putUser(repository.User{})
		txn, err := f.svc.CreatePix(context.Background(), u.ID, domain.PlanPremium)
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())
		f.pix.before = cancel

		_, err = f.svc.ProcessPix(ctx, u.ID, txn.AbacatePayBillingID)
		require.NoError(t, err)
		stored := f.store.transaction(txn.ID)
		assert.Equal(t, "pending", stored.Status)
		assert.Equal(t, "pix_char_1", stored.PixChargeID.String)
	})
}

func TestProcessPix_CancelledDuringGatewayCall(t *testing.T) {
	f := newCheckoutFixture(t)
	u := f.store.putUser(repository.User{})
	txn, err := f.svc.CreatePix(context.Background(), u.ID, domain.PlanPremium)
	require.NoError(t, err)

	f.pix.before = func() {
		_, err := f.svc.CancelPix(context.Background(), u.ID, txn.AbacatePayBillingID)
		require.NoError(t, err)
	}
	_, err = f.svc.ProcessPix(context.Background(), u.ID, txn.AbacatePayBillingID)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))

	stored := f.store.transaction(txn.ID)
	assert.Equal(t, "cancelled", stored.Status)
	assert.False(t, stored.PixChargeID.Valid)
}

func TestProcessPix_OtherUsersTransaction(t *testing.T) {
	f := newCheckoutFixture(t)
	owner := f.store.putUser(repository.User{})
	other := f.store.putUser(repository.User{})
	txn, err := f.svc.CreatePix(context.Background(), owner.ID, domain.PlanPremium)
	require.NoError(t, err)

	_, err = f.svc.ProcessPix(context.Background(), other.ID, txn.AbacatePayBillingID)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))

	_, err = f.svc.PixStatus(context.Background(), other.ID, txn.AbacatePayBillingID)
	assert.Equal(t, domain.ENOTFOUND, domain.ErrorCode(err))
}

func TestProcessPix_NoGateway(t *testing.T) {
	f := newCheckoutFixture(t)
	svc := NewCheckoutService(f.store, nil, nil, f.clock, discardLogger())

	_, err := svc.ProcessPix(context.Background(), uuid.New(), "premium_x_1")
	assert.Equal(t, domain.ENOTIMPL, domain.ErrorCode(err))
}

func TestCancelPix(t *testing.T) {
	f := newCheckoutFixture(t)
	u := f.store.putUser(repository.User{})
	txn, err := f.svc.CreatePix(context.Background(), u.ID, domain.PlanPremium)
	require.NoError(t, err)

	status, err := f.svc.CancelPix(context.Background(), u.ID, txn.AbacatePayBillingID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionCancelled, status)

	// Cancelling twice is harmless.
	status, err = f.svc.CancelPix(context.Background(), u.ID, txn.AbacatePayBillingID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionCancelled, status)

	_, err = f.svc.ProcessPix(context.Background(), u.ID, txn.AbacatePayBillingID)
	assert.Equal(t, domain.ECONFLICT, domain.ErrorCode(err))
	assert.Equal(t, "Transação foi cancelada", domain.ErrorMessage(err))
}

func TestCancelPix_CompletedIsUnchanged(t *testing.T) {
	f := newCheckoutFixture(t)
	u := f.store.putUser(repository.User{})
	txn, err := f.svc.CreatePix(context.Background(), u.ID, domain.PlanPremium)
	require.NoError(t, err)
	require.NoError(t, f.store.UpdateTransactionStatus(context.Background(), repository.UpdateTransactionStatusParams{
		ID:     txn.ID,
		Status: string(domain.TransactionCompleted),
	}))

	status, err := f.svc.CancelPix(context.Background(), u.ID, txn.AbacatePayBillingID)
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionCompleted, status)
}

func TestPixStatus(t *testing.T) {
	f := newCheckoutFixture(t)
	u := f.store.putUser(repository.User{})
	txn, err := f.svc.CreatePix(context.Background(), u.ID, domain.PlanPremium)
	require.NoError(t, err)

	st, err := f.svc.PixStatus(context.Background(), u.ID, txn.AbacatePayBillingID)
	require.NoError(t, err)
	assert.False(t, st.Paid)
	assert.False(t, st.StopPolling)

	f.clock.Advance(time.Minute)
	require.NoError(t, f.store.UpdateTransactionStatus(context.Background(), repository.UpdateTransactionStatusParams{
		ID:     txn.ID,
		Status: string(domain.TransactionCompleted),
	}))

	st, err = f.svc.PixStatus(context.Background(), u.ID, txn.AbacatePayBillingID)
	require.NoError(t, err)
	assert.True(t, st.Paid)
	assert.True(t, st.StopPolling)
	assert.Equal(t, txn.ID, st.TransactionID)
}
