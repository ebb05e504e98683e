package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/DukeRupert/mundo/internal/clock"
	"github.com/DukeRupert/mundo/internal/domain"
	"github.com/DukeRupert/mundo/internal/metrics"
	"github.com/DukeRupert/mundo/internal/repository"
)

const (
	// SessionTokenBytes is the number of random bytes in a session token.
	// The token is hex-encoded to 64 characters.
	SessionTokenBytes = 32

	// DefaultSessionDuration is the idle lifetime of a session.
	DefaultSessionDuration = 24 * time.Hour

	MinSessionDuration = 15 * time.Minute
	MaxSessionDuration = 30 * 24 * time.Hour

	// sessionTouchInterval throttles last_seen_at writes.
	sessionTouchInterval = time.Minute
)

// normalizeSessionDuration clamps d to [MinSessionDuration, MaxSessionDuration].
// Zero selects DefaultSessionDuration.
func normalizeSessionDuration(d time.Duration) time.Duration {
	switch {
	case d == 0:
		return DefaultSessionDuration
	case d < MinSessionDuration:
		return MinSessionDuration
	case d > MaxSessionDuration:
		return MaxSessionDuration
	}
	return d
}

// SessionServiceConfig configures the session registry.
type SessionServiceConfig struct {
	SessionDuration time.Duration
}

// SessionGrant is the result of opening a session. When the device limit
// is reached, Decision is a denial and Token is empty.
type SessionGrant struct {
	Decision domain.Decision
	Session  *domain.Session
	Token    string // Raw token, only returned once
}

// SessionService is the device registry. A device counts against the plan
// limit while its session is unexpired; every authenticated request slides
// the expiry forward, so abandoned devices free their slot after one idle
// session lifetime without an explicit logout.
type SessionService interface {
	// Open evaluates the device limit and, when allowed, creates a session.
	Open(ctx context.Context, userID uuid.UUID, meta domain.SessionMeta) (*SessionGrant, error)

	// Resolve returns the live session for a raw token and extends it.
	// Returns domain.EUNAUTHORIZED for unknown or expired tokens.
	Resolve(ctx context.Context, token string) (*domain.Session, error)

	// Close deletes the session for a raw token. Idempotent.
	Close(ctx context.Context, token string) error

	// CloseAll deletes every session of a user.
	CloseAll(ctx context.Context, userID uuid.UUID) error

	// PruneExpired deletes expired sessions and returns how many.
	PruneExpired(ctx context.Context) (int64, error)
}

type sessionService struct {
	store    repository.Store
	clock    clock.Clock
	duration time.Duration
	logger   *slog.Logger
}

// NewSessionService creates a SessionService.
func NewSessionService(store repository.Store, c clock.Clock, cfg SessionServiceConfig, logger *slog.Logger) SessionService {
	return &sessionService{
		store:    store,
		clock:    c,
		duration: normalizeSessionDuration(cfg.SessionDuration),
		logger:   logger,
	}
}

func (s *sessionService) Open(ctx context.Context, userID uuid.UUID, meta domain.SessionMeta) (*SessionGrant, error) {
	const op = "session.open"

	var grant SessionGrant
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		// Lock the user so two logins cannot both take the last slot.
		row, err := q.GetUserByIDForUpdate(ctx, userID)
		if err != nil {
			if isNoRows(err) {
				return domain.NotFound(op, "user", userID.String())
			}
			return domain.Internal(err, op, "failed to lock user")
		}
		u := repoUserToDomain(row)

		now := s.clock.Now()
		if _, err := applyExpiry(ctx, q, u, now); err != nil {
			return domain.Internal(err, op, "failed to apply subscription expiry")
		}

		live, err := q.CountActiveSessions(ctx, repository.CountActiveSessionsParams{
			UserID: userID,
			Now:    now,
		})
		if err != nil {
			return domain.Internal(err, op, "failed to count sessions")
		}

		decision := domain.Evaluate(u, domain.ActionDevice, domain.Usage{Count: int(live)})
		grant.Decision = decision
		if !decision.Allowed {
			return nil
		}

		token, err := generateSessionToken()
		if err != nil {
			return domain.Internal(err, op, "failed to generate session token")
		}

		created, err := q.CreateSession(ctx, repository.CreateSessionParams{
			UserID:     userID,
			TokenHash:  hashSessionToken(token),
			UserAgent:  domain.ToNullString(truncate(meta.UserAgent, 512)),
			IpAddress:  domain.ToNullString(meta.IPAddress),
			LastSeenAt: now,
			ExpiresAt:  now.Add(s.duration),
		})
		if err != nil {
			return domain.Internal(err, op, "failed to create session")
		}

		grant.Decision = decision.AfterConsume(int(live) + 1)
		grant.Session = repoSessionToDomain(created)
		grant.Token = token
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Decision(string(domain.ActionDevice), string(grant.Decision.Reason))
	if grant.Token != "" {
		metrics.SessionsOpened.Inc()
	}
	return &grant, nil
}

func (s *sessionService) Resolve(ctx context.Context, token string) (*domain.Session, error) {
	const op = "session.resolve"

	if len(token) != SessionTokenBytes*2 {
		return nil, domain.Unauthorized(op, "Sessão inválida ou expirada")
	}

	now := s.clock.Now()
	row, err := s.store.GetSessionByTokenHash(ctx, repository.GetSessionByTokenHashParams{
		TokenHash: hashSessionToken(token),
		Now:       now,
	})
	if err != nil {
		if isNoRows(err) {
			return nil, domain.Unauthorized(op, "Sessão inválida ou expirada")
		}
		return nil, domain.Internal(err, op, "failed to retrieve session")
	}
	session := repoSessionToDomain(row)

	if now.Sub(session.LastSeenAt) >= sessionTouchInterval {
		expires := now.Add(s.duration)
		err := s.store.TouchSession(ctx, repository.TouchSessionParams{
			ID:         session.ID,
			LastSeenAt: now,
			ExpiresAt:  expires,
		})
		if err != nil {
			s.logger.Warn("failed to touch session", "session_id", session.ID, "error", err)
		} else {
			session.LastSeenAt = now
			session.ExpiresAt = expires
		}
	}

	return session, nil
}

func (s *sessionService) Close(ctx context.Context, token string) error {
	if len(token) != SessionTokenBytes*2 {
		return nil
	}
	if err := s.store.DeleteSession(ctx, hashSessionToken(token)); err != nil && !isNoRows(err) {
		s.logger.Warn("failed to delete session", "error", err)
	}
	return nil
}

func (s *sessionService) CloseAll(ctx context.Context, userID uuid.UUID) error {
	const op = "session.close_all"

	if err := s.store.DeleteUserSessions(ctx, userID); err != nil {
		return domain.Internal(err, op, "failed to delete sessions")
	}
	return nil
}

func (s *sessionService) PruneExpired(ctx context.Context) (int64, error) {
	const op = "session.prune_expired"

	n, err := s.store.DeleteExpiredSessions(ctx, s.clock.Now())
	if err != nil {
		return 0, domain.Internal(err, op, "failed to delete expired sessions")
	}
	if n > 0 {
		s.logger.Info("expired sessions pruned", "count", n)
	}
	return n, nil
}

// =============================================================================
// Token helpers
// =============================================================================

// generateSessionToken returns 32 random bytes, hex-encoded.
func generateSessionToken() (string, error) {
	b := make([]byte, SessionTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// hashSessionToken returns the SHA-256 of a raw token, hex-encoded. Only
// the hash is stored.
func hashSessionToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
