package service

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/mundo/internal/clock"
	"github.com/DukeRupert/mundo/internal/repository"
)

// memStore is an in-memory repository.Store. Transactions are serialized
// by txMu, which stands in for the row locks the SQL store takes, and are
// rolled back by restoring a snapshot.
type memStore struct {
	txMu   sync.Mutex
	mu     sync.Mutex
	clock  clock.Clock
	state  *memState
	failOn map[string]error
}

type favoriteKey struct {
	user uuid.UUID
	post uuid.UUID
}

type memState struct {
	users        map[uuid.UUID]repository.User
	sessions     map[uuid.UUID]repository.Session
	posts        map[uuid.UUID]repository.Post
	downloads    []repository.Download
	comments     []repository.Comment
	favorites    map[favoriteKey]time.Time
	transactions map[uuid.UUID]repository.Transaction
	webhooks     map[string]repository.WebhookEvent
}

func newMemState() *memState {
	return &memState{
		users:        map[uuid.UUID]repository.User{},
		sessions:     map[uuid.UUID]repository.Session{},
		posts:        map[uuid.UUID]repository.Post{},
		favorites:    map[favoriteKey]time.Time{},
		transactions: map[uuid.UUID]repository.Transaction{},
		webhooks:     map[string]repository.WebhookEvent{},
	}
}

func (s *memState) clone() *memState {
	c := newMemState()
	for k, v := range s.users {
		c.users[k] = v
	}
	for k, v := range s.sessions {
		c.sessions[k] = v
	}
	for k, v := range s.posts {
		c.posts[k] = v
	}
	c.downloads = append([]repository.Download(nil), s.downloads...)
	c.comments = append([]repository.Comment(nil), s.comments...)
	for k, v := range s.favorites {
		c.favorites[k] = v
	}
	for k, v := range s.transactions {
		c.transactions[k] = v
	}
	for k, v := range s.webhooks {
		c.webhooks[k] = v
	}
	return c
}

func newMemStore(c clock.Clock) *memStore {
	return &memStore{
		clock:  c,
		state:  newMemState(),
		failOn: map[string]error{},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// failNext makes every call to method return err until cleared.
func (m *memStore) failNext(method string, err error) {
	m.mu.Lock()
	m.failOn[method] = err
	m.mu.Unlock()
}

func (m *memStore) lock(method string) error {
	m.mu.Lock()
	if err, ok := m.failOn[method]; ok {
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) ExecTx(ctx context.Context, fn func(repository.Querier) error) error {
	// BeginTx refuses a done context.
	if err := ctx.Err(); err != nil {
		return err
	}
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	snapshot := m.state.clone()
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.state = snapshot
		m.mu.Unlock()
		return err
	}
	return nil
}

// =============================================================================
// Seeding helpers
// =============================================================================

func (m *memStore) putUser(u repository.User) repository.User {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.Email == "" {
		u.Email = u.ID.String() + "@example.com"
	}
	if u.Role == "" {
		u.Role = "user"
	}
	if u.Plan == "" {
		u.Plan = "free"
	}
	m.mu.Lock()
	m.state.users[u.ID] = u
	m.mu.Unlock()
	return u
}

func (m *memStore) user(id uuid.UUID) repository.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.users[id]
}

func (m *memStore) putPost(title string) repository.Post {
	p := repository.Post{
		ID:           uuid.New(),
		Title:        title,
		Slug:         title,
		DownloadLink: "https://files.example.com/" + title + ".zip",
		CreatedAt:    m.clock.Now(),
	}
	m.mu.Lock()
	m.state.posts[p.ID] = p
	m.mu.Unlock()
	return p
}

func (m *memStore) post(id uuid.UUID) repository.Post {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.posts[id]
}

func (m *memStore) downloadCount(userID uuid.UUID) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, d := range m.state.downloads {
		if d.UserID == userID {
			n++
		}
	}
	return n
}

func (m *memStore) transaction(id uuid.UUID) repository.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.transactions[id]
}

func (m *memStore) webhookCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.state.webhooks)
}

// =============================================================================
// Querier
// =============================================================================

func (m *memStore) AddFavorite(ctx context.Context, arg repository.AddFavoriteParams) (int64, error) {
	if err := m.lock("AddFavorite"); err != nil {
		return 0, err
	}
	defer m.mu.Unlock()
	k := favoriteKey{arg.UserID, arg.PostID}
	if _, ok := m.state.favorites[k]; ok {
		return 0, nil
	}
	m.state.favorites[k] = m.clock.Now()
	return 1, nil
}

func (m *memStore) CountActiveSessions(ctx context.Context, arg repository.CountActiveSessionsParams) (int64, error) {
	if err := m.lock("CountActiveSessions"); err != nil {
		return 0, err
	}
	defer m.mu.Unlock()
	var n int64
	for _, s := range m.state.sessions {
		if s.UserID == arg.UserID && s.ExpiresAt.After(arg.Now) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountCommentsSince(ctx context.Context, arg repository.CountCommentsSinceParams) (int64, error) {
	if err := m.lock("CountCommentsSince"); err != nil {
		return 0, err
	}
	defer m.mu.Unlock()
	var n int64
	for _, c := range m.state.comments {
		if c.UserID == arg.UserID && !c.CreatedAt.Before(arg.Since) {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CountFavorites(ctx context.Context, userID uuid.UUID) (int64, error) {
	if err := m.lock("CountFavorites"); err != nil {
		return 0, err
	}
	defer m.mu.Unlock()
	var n int64
	for k := range m.state.favorites {
		if k.user == userID {
			n++
		}
	}
	return n, nil
}

func (m *memStore) CreateComment(ctx context.Context, arg repository.CreateCommentParams) (repository.Comment, error) {
	if err := m.lock("CreateComment"); err != nil {
		return repository.Comment{}, err
	}
	defer m.mu.Unlock()
	c := repository.Comment{
		ID:        uuid.New(),
		UserID:    arg.UserID,
		PostID:    arg.PostID,
		Body:      arg.Body,
		CreatedAt: arg.CreatedAt,
	}
	m.state.comments = append(m.state.comments, c)
	return c, nil
}

func (m *memStore) CreateDownload(ctx context.Context, arg repository.CreateDownloadParams) (repository.Download, error) {
	if err := m.lock("CreateDownload"); err != nil {
		return repository.Download{}, err
	}
	defer m.mu.Unlock()
	d := repository.Download{
		ID:        uuid.New(),
		UserID:    arg.UserID,
		PostID:    arg.PostID,
		CreatedAt: arg.CreatedAt,
	}
	m.state.downloads = append(m.state.downloads, d)
	return d, nil
}

func (m *memStore) CreatePost(ctx context.Context, arg repository.CreatePostParams) (repository.Post, error) {
	if err := m.lock("CreatePost"); err != nil {
		return repository.Post{}, err
	}
	defer m.mu.Unlock()
	p := repository.Post{
		ID:           uuid.New(),
		Title:        arg.Title,
		Slug:         arg.Slug,
		DownloadLink: arg.DownloadLink,
		CreatedAt:    m.clock.Now(),
	}
	m.state.posts[p.ID] = p
	return p, nil
}

func (m *memStore) CreateSession(ctx context.Context, arg repository.CreateSessionParams) (repository.Session, error) {
	if err := m.lock("CreateSession"); err != nil {
		return repository.Session{}, err
	}
	defer m.mu.Unlock()
	s := repository.Session{
		ID:         uuid.New(),
		UserID:     arg.UserID,
		TokenHash:  arg.TokenHash,
		UserAgent:  arg.UserAgent,
		IpAddress:  arg.IpAddress,
		LastSeenAt: arg.LastSeenAt,
		ExpiresAt:  arg.ExpiresAt,
		CreatedAt:  m.clock.Now(),
	}
	m.state.sessions[s.ID] = s
	return s, nil
}

func (m *memStore) CreateTransaction(ctx context.Context, arg repository.CreateTransactionParams) (repository.Transaction, error) {
	if err := m.lock("CreateTransaction"); err != nil {
		return repository.Transaction{}, err
	}
	defer m.mu.Unlock()
	now := m.clock.Now()
	t := repository.Transaction{
		ID:                   uuid.New(),
		UserID:               arg.UserID,
		Gateway:              arg.Gateway,
		StripeSessionID:      arg.StripeSessionID,
		StripeSubscriptionID: arg.StripeSubscriptionID,
		StripeCustomerID:     arg.StripeCustomerID,
		AbacatepayBillingID:  arg.AbacatepayBillingID,
		PlanType:             arg.PlanType,
		Amount:               arg.Amount,
		Currency:             arg.Currency,
		Status:               arg.Status,
		CreatedAt:            now,
		UpdatedAt:            now,
		PaidAt:               arg.PaidAt,
	}
	m.state.transactions[t.ID] = t
	return t, nil
}

func (m *memStore) CreateUser(ctx context.Context, arg repository.CreateUserParams) (repository.User, error) {
	if err := m.lock("CreateUser"); err != nil {
		return repository.User{}, err
	}
	defer m.mu.Unlock()
	for _, u := range m.state.users {
		if u.Email == arg.Email {
			return repository.User{}, errors.New(`duplicate key value violates unique constraint "users_email_key"`)
		}
	}
	now := m.clock.Now()
	u := repository.User{
		ID:           uuid.New(),
		Email:        arg.Email,
		PasswordHash: arg.PasswordHash,
		Name:         arg.Name,
		Role:         arg.Role,
		Plan:         arg.Plan,
		CanDownload:  true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.state.users[u.ID] = u
	return u, nil
}

func (m *memStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	if err := m.lock("DeleteExpiredSessions"); err != nil {
		return 0, err
	}
	defer m.mu.Unlock()
	var n int64
	for id, s := range m.state.sessions {
		if !s.ExpiresAt.After(now) {
			delete(m.state.sessions, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) DeleteSession(ctx context.Context, tokenHash string) error {
	if err := m.lock("DeleteSession"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	for id, s := range m.state.sessions {
		if s.TokenHash == tokenHash {
			delete(m.state.sessions, id)
		}
	}
	return nil
}

func (m *memStore) DeleteUserSessions(ctx context.Context, userID uuid.UUID) error {
	if err := m.lock("DeleteUserSessions"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	for id, s := range m.state.sessions {
		if s.UserID == userID {
			delete(m.state.sessions, id)
		}
	}
	return nil
}

func lapsed(u repository.User, now time.Time) bool {
	return u.Plan != "free" && u.SubscriptionEndDate.Valid && u.SubscriptionEndDate.Time.Before(now)
}

func (m *memStore) DowngradeExpiredSubscription(ctx context.Context, arg repository.DowngradeExpiredSubscriptionParams) (int64, error) {
	if err := m.lock("DowngradeExpiredSubscription"); err != nil {
		return 0, err
	}
	defer m.mu.Unlock()
	u, ok := m.state.users[arg.ID]
	if !ok || !lapsed(u, arg.Now) {
		return 0, nil
	}
	u.Plan = "free"
	u.SubscriptionEndDate = sql.NullTime{}
	m.state.users[u.ID] = u
	return 1, nil
}

func (m *memStore) DowngradeExpiredSubscriptions(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	if err := m.lock("DowngradeExpiredSubscriptions"); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	var ids []uuid.UUID
	for id, u := range m.state.users {
		if lapsed(u, now) {
			u.Plan = "free"
			u.SubscriptionEndDate = sql.NullTime{}
			m.state.users[id] = u
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (m *memStore) GetLatestTransactionBySubscriptionID(ctx context.Context, subID sql.NullString) (repository.Transaction, error) {
	if err := m.lock("GetLatestTransactionBySubscriptionID"); err != nil {
		return repository.Transaction{}, err
	}
	defer m.mu.Unlock()
	var (
		found  repository.Transaction
		exists bool
	)
	for _, t := range m.state.transactions {
		if subID.Valid && t.StripeSubscriptionID == subID {
			if !exists || t.CreatedAt.After(found.CreatedAt) {
				found, exists = t, true
			}
		}
	}
	if !exists {
		return repository.Transaction{}, sql.ErrNoRows
	}
	return found, nil
}

func (m *memStore) GetPostByID(ctx context.Context, id uuid.UUID) (repository.Post, error) {
	if err := m.lock("GetPostByID"); err != nil {
		return repository.Post{}, err
	}
	defer m.mu.Unlock()
	p, ok := m.state.posts[id]
	if !ok {
		return repository.Post{}, sql.ErrNoRows
	}
	return p, nil
}

func (m *memStore) GetSessionByTokenHash(ctx context.Context, arg repository.GetSessionByTokenHashParams) (repository.Session, error) {
	if err := m.lock("GetSessionByTokenHash"); err != nil {
		return repository.Session{}, err
	}
	defer m.mu.Unlock()
	for _, s := range m.state.sessions {
		if s.TokenHash == arg.TokenHash && s.ExpiresAt.After(arg.Now) {
			return s, nil
		}
	}
	return repository.Session{}, sql.ErrNoRows
}

func (m *memStore) GetTransactionByPixReferenceForUpdate(ctx context.Context, ref sql.NullString) (repository.Transaction, error) {
	if err := m.lock("GetTransactionByPixReferenceForUpdate"); err != nil {
		return repository.Transaction{}, err
	}
	defer m.mu.Unlock()
	if ref.Valid {
		for _, t := range m.state.transactions {
			if t.AbacatepayBillingID == ref || t.PixChargeID == ref {
				return t, nil
			}
		}
	}
	return repository.Transaction{}, sql.ErrNoRows
}

func (m *memStore) GetTransactionByStripeSessionForUpdate(ctx context.Context, sessionID sql.NullString) (repository.Transaction, error) {
	if err := m.lock("GetTransactionByStripeSessionForUpdate"); err != nil {
		return repository.Transaction{}, err
	}
	defer m.mu.Unlock()
	if sessionID.Valid {
		for _, t := range m.state.transactions {
			if t.StripeSessionID == sessionID {
				return t, nil
			}
		}
	}
	return repository.Transaction{}, sql.ErrNoRows
}

func (m *memStore) GetUserByEmail(ctx context.Context, email string) (repository.User, error) {
	if err := m.lock("GetUserByEmail"); err != nil {
		return repository.User{}, err
	}
	defer m.mu.Unlock()
	for _, u := range m.state.users {
		if u.Email == email {
			return u, nil
		}
	}
	return repository.User{}, sql.ErrNoRows
}

func (m *memStore) GetUserByID(ctx context.Context, id uuid.UUID) (repository.User, error) {
	if err := m.lock("GetUserByID"); err != nil {
		return repository.User{}, err
	}
	defer m.mu.Unlock()
	u, ok := m.state.users[id]
	if !ok {
		return repository.User{}, sql.ErrNoRows
	}
	return u, nil
}

func (m *memStore) GetUserByIDForUpdate(ctx context.Context, id uuid.UUID) (repository.User, error) {
	return m.GetUserByID(ctx, id)
}

func (m *memStore) GetUserByStripeCustomerID(ctx context.Context, customerID sql.NullString) (repository.User, error) {
	if err := m.lock("GetUserByStripeCustomerID"); err != nil {
		return repository.User{}, err
	}
	defer m.mu.Unlock()
	if customerID.Valid {
		for _, u := range m.state.users {
			if u.StripeCustomerID == customerID {
				return u, nil
			}
		}
	}
	return repository.User{}, sql.ErrNoRows
}

func (m *memStore) updateUser(method string, id uuid.UUID, fn func(*repository.User)) error {
	if err := m.lock(method); err != nil {
		return err
	}
	defer m.mu.Unlock()
	u, ok := m.state.users[id]
	if !ok {
		return nil
	}
	fn(&u)
	u.UpdatedAt = m.clock.Now()
	m.state.users[id] = u
	return nil
}

func (m *memStore) IncrementDailyDownloads(ctx context.Context, id uuid.UUID) (int32, error) {
	var n int32
	err := m.updateUser("IncrementDailyDownloads", id, func(u *repository.User) {
		u.DailyDownloads++
		n = u.DailyDownloads
	})
	return n, err
}

func (m *memStore) IncrementWeeklyDownloads(ctx context.Context, id uuid.UUID) (int32, error) {
	var n int32
	err := m.updateUser("IncrementWeeklyDownloads", id, func(u *repository.User) {
		u.WeeklyDownloads++
		n = u.WeeklyDownloads
	})
	return n, err
}

func (m *memStore) IncrementPostDownloads(ctx context.Context, id uuid.UUID) error {
	if err := m.lock("IncrementPostDownloads"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	p := m.state.posts[id]
	p.DownloadCount++
	m.state.posts[id] = p
	return nil
}

func (m *memStore) InsertWebhookEvent(ctx context.Context, arg repository.InsertWebhookEventParams) (int64, error) {
	if err := m.lock("InsertWebhookEvent"); err != nil {
		return 0, err
	}
	defer m.mu.Unlock()
	key := arg.Provider + "/" + arg.ProviderEventID
	if _, ok := m.state.webhooks[key]; ok {
		return 0, nil
	}
	m.state.webhooks[key] = repository.WebhookEvent{
		ID:              uuid.New(),
		Provider:        arg.Provider,
		ProviderEventID: arg.ProviderEventID,
		EventType:       arg.EventType,
		Payload:         arg.Payload,
		ProcessedAt:     m.clock.Now(),
	}
	return 1, nil
}

func (m *memStore) IsFavorite(ctx context.Context, arg repository.IsFavoriteParams) (bool, error) {
	if err := m.lock("IsFavorite"); err != nil {
		return false, err
	}
	defer m.mu.Unlock()
	_, ok := m.state.favorites[favoriteKey{arg.UserID, arg.PostID}]
	return ok, nil
}

func (m *memStore) ListLatestDownloadsByUser(ctx context.Context, arg repository.ListLatestDownloadsByUserParams) ([]repository.ListLatestDownloadsByUserRow, error) {
	if err := m.lock("ListLatestDownloadsByUser"); err != nil {
		return nil, err
	}
	defer m.mu.Unlock()
	latest := map[uuid.UUID]time.Time{}
	for _, d := range m.state.downloads {
		if d.UserID != arg.UserID {
			continue
		}
		if t, ok := latest[d.PostID]; !ok || d.CreatedAt.After(t) {
			latest[d.PostID] = d.CreatedAt
		}
	}
	rows := make([]repository.ListLatestDownloadsByUserRow, 0, len(latest))
	for postID, at := range latest {
		p := m.state.posts[postID]
		rows = append(rows, repository.ListLatestDownloadsByUserRow{
			PostID:       postID,
			Title:        p.Title,
			Slug:         p.Slug,
			DownloadedAt: at,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].DownloadedAt.After(rows[j].DownloadedAt) })
	if int(arg.RowLimit) < len(rows) {
		rows = rows[:arg.RowLimit]
	}
	return rows, nil
}

func (m *memStore) updateTransaction(method string, id uuid.UUID, fn func(*repository.Transaction)) error {
	if err := m.lock(method); err != nil {
		return err
	}
	defer m.mu.Unlock()
	t, ok := m.state.transactions[id]
	if !ok {
		return nil
	}
	fn(&t)
	t.UpdatedAt = m.clock.Now()
	m.state.transactions[id] = t
	return nil
}

func (m *memStore) MarkTransactionCompleted(ctx context.Context, arg repository.MarkTransactionCompletedParams) error {
	return m.updateTransaction("MarkTransactionCompleted", arg.ID, func(t *repository.Transaction) {
		t.Status = "completed"
		t.PaidAt = arg.PaidAt
		t.StripeCustomerID = arg.StripeCustomerID
		t.StripeSubscriptionID = arg.StripeSubscriptionID
	})
}

func (m *memStore) RemoveFavorite(ctx context.Context, arg repository.RemoveFavoriteParams) (int64, error) {
	if err := m.lock("RemoveFavorite"); err != nil {
		return 0, err
	}
	defer m.mu.Unlock()
	k := favoriteKey{arg.UserID, arg.PostID}
	if _, ok := m.state.favorites[k]; !ok {
		return 0, nil
	}
	delete(m.state.favorites, k)
	return 1, nil
}

func (m *memStore) SetDailyDownloads(ctx context.Context, arg repository.SetDailyDownloadsParams) error {
	return m.updateUser("SetDailyDownloads", arg.ID, func(u *repository.User) {
		u.DailyDownloads = arg.DailyDownloads
		u.DownloadResetDate = arg.DownloadResetDate
	})
}

func (m *memStore) SetTransactionPixCharge(ctx context.Context, arg repository.SetTransactionPixChargeParams) error {
	return m.updateTransaction("SetTransactionPixCharge", arg.ID, func(t *repository.Transaction) {
		t.PixChargeID = arg.PixChargeID
		t.PixBrCode = arg.PixBrCode
		t.PixBrCodeBase64 = arg.PixBrCodeBase64
		t.Status = arg.Status
	})
}

func (m *memStore) SetWeeklyDownloads(ctx context.Context, arg repository.SetWeeklyDownloadsParams) error {
	return m.updateUser("SetWeeklyDownloads", arg.ID, func(u *repository.User) {
		u.WeeklyDownloads = arg.WeeklyDownloads
		u.WeekResetDate = arg.WeekResetDate
	})
}

func (m *memStore) TouchSession(ctx context.Context, arg repository.TouchSessionParams) error {
	if err := m.lock("TouchSession"); err != nil {
		return err
	}
	defer m.mu.Unlock()
	s, ok := m.state.sessions[arg.ID]
	if !ok {
		return nil
	}
	s.LastSeenAt = arg.LastSeenAt
	s.ExpiresAt = arg.ExpiresAt
	m.state.sessions[arg.ID] = s
	return nil
}

func (m *memStore) UpdateTransactionStatus(ctx context.Context, arg repository.UpdateTransactionStatusParams) error {
	return m.updateTransaction("UpdateTransactionStatus", arg.ID, func(t *repository.Transaction) {
		t.Status = arg.Status
	})
}

func (m *memStore) UpdateUserDownloadPermissions(ctx context.Context, arg repository.UpdateUserDownloadPermissionsParams) error {
	return m.updateUser("UpdateUserDownloadPermissions", arg.ID, func(u *repository.User) {
		u.CanDownload = arg.CanDownload
		u.CustomDailyLimit = arg.CustomDailyLimit
		u.CustomWeeklyLimit = arg.CustomWeeklyLimit
	})
}

func (m *memStore) UpdateUserPlan(ctx context.Context, arg repository.UpdateUserPlanParams) error {
	return m.updateUser("UpdateUserPlan", arg.ID, func(u *repository.User) {
		u.Plan = arg.Plan
		u.SubscriptionEndDate = arg.SubscriptionEndDate
	})
}

func (m *memStore) UpdateUserStripeCustomer(ctx context.Context, arg repository.UpdateUserStripeCustomerParams) error {
	return m.updateUser("UpdateUserStripeCustomer", arg.ID, func(u *repository.User) {
		u.StripeCustomerID = arg.StripeCustomerID
	})
}

var _ repository.Store = (*memStore)(nil)
