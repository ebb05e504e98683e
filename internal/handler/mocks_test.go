package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v79"

	"github.com/DukeRupert/mundo/internal/auth"
	"github.com/DukeRupert/mundo/internal/billing"
	"github.com/DukeRupert/mundo/internal/domain"
	"github.com/DukeRupert/mundo/internal/service"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// withUser returns r carrying u as the authenticated user.
func withUser(r *http.Request, u *domain.User) *http.Request {
	return r.WithContext(auth.SetUser(r.Context(), u))
}

func testUser() *domain.User {
	return &domain.User{
		ID:          uuid.MustParse("11111111-1111-1111-1111-111111111111"),
		Email:       "ana@example.com",
		Name:        "Ana",
		Role:        domain.RoleUser,
		Plan:        domain.PlanFree,
		CanDownload: true,
	}
}

// =============================================================================
// Mock UserService
// =============================================================================

type mockUserService struct {
	RegisterFunc             func(ctx context.Context, params domain.RegisterParams) (*domain.User, error)
	LoginFunc                func(ctx context.Context, params domain.LoginParams) (*domain.LoginResult, error)
	LogoutFunc               func(ctx context.Context, token string) error
	GetByIDFunc              func(ctx context.Context, id uuid.UUID) (*domain.User, error)
	GetBySessionTokenFunc    func(ctx context.Context, token string) (*domain.User, error)
	LogoutAllFunc            func(ctx context.Context, userID uuid.UUID) error
}

func (m *mockUserService) Register(ctx context.Context, params domain.RegisterParams) (*domain.User, error) {
	if m.RegisterFunc != nil {
		return m.RegisterFunc(ctx, params)
	}
	return nil, errors.New("RegisterFunc not implemented")
}

func (m *mockUserService) Login(ctx context.Context, params domain.LoginParams) (*domain.LoginResult, error) {
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, params)
	}
	return nil, errors.New("LoginFunc not implemented")
}

func (m *mockUserService) Logout(ctx context.Context, token string) error {
	if m.LogoutFunc != nil {
		return m.LogoutFunc(ctx, token)
	}
	return nil
}

func (m *mockUserService) GetByID(ctx context.Context, id uuid.UUID) (*domain.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, errors.New("GetByIDFunc not implemented")
}

func (m *mockUserService) GetBySessionToken(ctx context.Context, token string) (*domain.User, error) {
	if m.GetBySessionTokenFunc != nil {
		return m.GetBySessionTokenFunc(ctx, token)
	}
	return nil, errors.New("GetBySessionTokenFunc not implemented")
}

func (m *mockUserService) LogoutAll(ctx context.Context, userID uuid.UUID) error {
	if m.LogoutAllFunc != nil {
		return m.LogoutAllFunc(ctx, userID)
	}
	return nil
}

var _ service.UserService = (*mockUserService)(nil)

// =============================================================================
// Mock EntitlementService
// =============================================================================

type mockEntitlementService struct {
	CheckFunc          func(ctx context.Context, userID uuid.UUID, action domain.Action) (domain.Decision, error)
	DownloadFunc       func(ctx context.Context, userID, postID uuid.UUID) (*domain.DownloadResult, error)
	CommentFunc        func(ctx context.Context, userID, postID uuid.UUID, body string) (*domain.CommentResult, error)
	ToggleFavoriteFunc func(ctx context.Context, userID, postID uuid.UUID) (*domain.FavoriteResult, error)
	PermissionsFunc    func(ctx context.Context, userID uuid.UUID) (*domain.PermissionSummary, error)
	HistoryFunc        func(ctx context.Context, userID uuid.UUID) (*domain.DownloadHistory, error)
}

func (m *mockEntitlementService) Check(ctx context.Context, userID uuid.UUID, action domain.Action) (domain.Decision, error) {
	if m.CheckFunc != nil {
		return m.CheckFunc(ctx, userID, action)
	}
	return domain.Decision{}, errors.New("CheckFunc not implemented")
}

func (m *mockEntitlementService) Download(ctx context.Context, userID, postID uuid.UUID) (*domain.DownloadResult, error) {
	if m.DownloadFunc != nil {
		return m.DownloadFunc(ctx, userID, postID)
	}
	return nil, errors.New("DownloadFunc not implemented")
}

func (m *mockEntitlementService) Comment(ctx context.Context, userID, postID uuid.UUID, body string) (*domain.CommentResult, error) {
	if m.CommentFunc != nil {
		return m.CommentFunc(ctx, userID, postID, body)
	}
	return nil, errors.New("CommentFunc not implemented")
}

func (m *mockEntitlementService) ToggleFavorite(ctx context.Context, userID, postID uuid.UUID) (*domain.FavoriteResult, error) {
	if m.ToggleFavoriteFunc != nil {
		return m.ToggleFavoriteFunc(ctx, userID, postID)
	}
	return nil, errors.New("ToggleFavoriteFunc not implemented")
}

func (m *mockEntitlementService) Permissions(ctx context.Context, userID uuid.UUID) (*domain.PermissionSummary, error) {
	if m.PermissionsFunc != nil {
		return m.PermissionsFunc(ctx, userID)
	}
	return nil, errors.New("PermissionsFunc not implemented")
}

func (m *mockEntitlementService) History(ctx context.Context, userID uuid.UUID) (*domain.DownloadHistory, error) {
	if m.HistoryFunc != nil {
		return m.HistoryFunc(ctx, userID)
	}
	return nil, errors.New("HistoryFunc not implemented")
}

var _ service.EntitlementService = (*mockEntitlementService)(nil)

// =============================================================================
// Mock CheckoutService
// =============================================================================

type mockCheckoutService struct {
	StartStripeCheckoutFunc func(ctx context.Context, params service.StripeCheckoutParams) (*service.StripeCheckout, error)
	CreatePixFunc           func(ctx context.Context, userID uuid.UUID, plan domain.Plan) (*domain.Transaction, error)
	ProcessPixFunc          func(ctx context.Context, userID uuid.UUID, billingID string) (*domain.PixCheckout, error)
	CancelPixFunc           func(ctx context.Context, userID uuid.UUID, billingID string) (domain.TransactionStatus, error)
	PixStatusFunc           func(ctx context.Context, userID uuid.UUID, billingID string) (domain.PixStatus, error)
}

func (m *mockCheckoutService) StartStripeCheckout(ctx context.Context, params service.StripeCheckoutParams) (*service.StripeCheckout, error) {
	if m.StartStripeCheckoutFunc != nil {
		return m.StartStripeCheckoutFunc(ctx, params)
	}
	return nil, errors.New("StartStripeCheckoutFunc not implemented")
}

func (m *mockCheckoutService) CreatePix(ctx context.Context, userID uuid.UUID, plan domain.Plan) (*domain.Transaction, error) {
	if m.CreatePixFunc != nil {
		return m.CreatePixFunc(ctx, userID, plan)
	}
	return nil, errors.New("CreatePixFunc not implemented")
}

func (m *mockCheckoutService) ProcessPix(ctx context.Context, userID uuid.UUID, billingID string) (*domain.PixCheckout, error) {
	if m.ProcessPixFunc != nil {
		return m.ProcessPixFunc(ctx, userID, billingID)
	}
	return nil, errors.New("ProcessPixFunc not implemented")
}

func (m *mockCheckoutService) CancelPix(ctx context.Context, userID uuid.UUID, billingID string) (domain.TransactionStatus, error) {
	if m.CancelPixFunc != nil {
		return m.CancelPixFunc(ctx, userID, billingID)
	}
	return "", errors.New("CancelPixFunc not implemented")
}

func (m *mockCheckoutService) PixStatus(ctx context.Context, userID uuid.UUID, billingID string) (domain.PixStatus, error) {
	if m.PixStatusFunc != nil {
		return m.PixStatusFunc(ctx, userID, billingID)
	}
	return domain.PixStatus{}, errors.New("PixStatusFunc not implemented")
}

var _ service.CheckoutService = (*mockCheckoutService)(nil)

// =============================================================================
// Mock AdminService
// =============================================================================

type mockAdminService struct {
	GetDownloadLimitsFunc func(ctx context.Context, userID uuid.UUID) (*domain.DownloadLimits, error)
	AdjustDownloadsFunc   func(ctx context.Context, userID uuid.UUID, adj domain.DownloadAdjustment) (*domain.DownloadLimits, error)
}

func (m *mockAdminService) GetDownloadLimits(ctx context.Context, userID uuid.UUID) (*domain.DownloadLimits, error) {
	if m.GetDownloadLimitsFunc != nil {
		return m.GetDownloadLimitsFunc(ctx, userID)
	}
	return nil, errors.New("GetDownloadLimitsFunc not implemented")
}

func (m *mockAdminService) AdjustDownloads(ctx context.Context, userID uuid.UUID, adj domain.DownloadAdjustment) (*domain.DownloadLimits, error) {
	if m.AdjustDownloadsFunc != nil {
		return m.AdjustDownloadsFunc(ctx, userID, adj)
	}
	return nil, errors.New("AdjustDownloadsFunc not implemented")
}

var _ service.AdminService = (*mockAdminService)(nil)

// =============================================================================
// Mock Reconciler
// =============================================================================

// mockReconciler records the handler that was called and returns a fixed
// result.
type mockReconciler struct {
	outcome domain.ReconcileOutcome
	err     error
	called  string

	checkout *domain.CheckoutCompletedEvent
	sub      *domain.SubscriptionEvent
	pix      *domain.PixEvent
}

func (m *mockReconciler) CheckoutCompleted(_ context.Context, e domain.CheckoutCompletedEvent) (domain.ReconcileOutcome, error) {
	m.called, m.checkout = "CheckoutCompleted", &e
	return m.outcome, m.err
}

func (m *mockReconciler) SubscriptionUpdated(_ context.Context, e domain.SubscriptionEvent) (domain.ReconcileOutcome, error) {
	m.called, m.sub = "SubscriptionUpdated", &e
	return m.outcome, m.err
}

func (m *mockReconciler) SubscriptionDeleted(_ context.Context, e domain.SubscriptionEvent) (domain.ReconcileOutcome, error) {
	m.called, m.sub = "SubscriptionDeleted", &e
	return m.outcome, m.err
}

func (m *mockReconciler) PixPaid(_ context.Context, e domain.PixEvent) (domain.ReconcileOutcome, error) {
	m.called, m.pix = "PixPaid", &e
	return m.outcome, m.err
}

func (m *mockReconciler) PixFailed(_ context.Context, e domain.PixEvent) (domain.ReconcileOutcome, error) {
	m.called, m.pix = "PixFailed", &e
	return m.outcome, m.err
}

func (m *mockReconciler) PixRefunded(_ context.Context, e domain.PixEvent) (domain.ReconcileOutcome, error) {
	m.called, m.pix = "PixRefunded", &e
	return m.outcome, m.err
}

var _ service.Reconciler = (*mockReconciler)(nil)

// =============================================================================
// Mock billing.Service
// =============================================================================

type mockBilling struct {
	event stripe.Event
	err   error
}

func (m *mockBilling) CreateCheckoutSession(context.Context, billing.CheckoutParams) (*billing.CheckoutSession, error) {
	return nil, errors.New("not implemented")
}

func (m *mockBilling) VerifyWebhookSignature(_ []byte, _ string) (stripe.Event, error) {
	return m.event, m.err
}

func (m *mockBilling) PriceIDForPlan(domain.Plan) (string, bool) { return "", false }

func (m *mockBilling) PlanForPriceID(string) (domain.Plan, bool) { return "", false }

var _ billing.Service = (*mockBilling)(nil)

// =============================================================================
// Small fakes
// =============================================================================

type fakeStorage struct {
	url    string
	err    error
	gotKey string
	gotTTL time.Duration
	calls  int
}

func (f *fakeStorage) URL(_ context.Context, key string, expires time.Duration) (string, error) {
	f.calls++
	f.gotKey, f.gotTTL = key, expires
	return f.url, f.err
}

func (f *fakeStorage) Exists(context.Context, string) (bool, error) {
	return f.err == nil, f.err
}

type fakeAttempts struct {
	failed int
	resets int
}

func (f *fakeAttempts) RecordFailedLogin(*http.Request) { f.failed++ }
func (f *fakeAttempts) ResetLogin(*http.Request)        { f.resets++ }

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }
