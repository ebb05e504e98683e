package service

import (
	"context"
	"log/slog"
	"math"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/DukeRupert/mundo/internal/clock"
	"github.com/DukeRupert/mundo/internal/domain"
	"github.com/DukeRupert/mundo/internal/metrics"
	"github.com/DukeRupert/mundo/internal/repository"
)

// MaxCommentLength caps comment bodies, in characters.
const MaxCommentLength = 2000

// =============================================================================
// Interface Definition
// =============================================================================

// EntitlementService answers "may this user do this now?" and, for granted
// actions, performs the consumption atomically with the check.
//
// Every mutating method runs in one database transaction holding the user
// row lock (SELECT ... FOR UPDATE) from the ledger peek through the
// consume, so concurrent requests from one user cannot over-grant. Denials
// are returned as Decision values, never as errors.
type EntitlementService interface {
	// Check evaluates action for the user without consuming. The lazy
	// counter reset is still persisted.
	Check(ctx context.Context, userID uuid.UUID, action domain.Action) (domain.Decision, error)

	// Download evaluates and, when allowed, consumes one download of the
	// post, records the event and bumps the post's download count.
	// Returns domain.ENOTFOUND for unknown users or posts.
	Download(ctx context.Context, userID, postID uuid.UUID) (*domain.DownloadResult, error)

	// Comment evaluates the daily comment quota and, when allowed, stores
	// the comment. Returns domain.EINVALID for an empty or oversized body.
	Comment(ctx context.Context, userID, postID uuid.UUID, body string) (*domain.CommentResult, error)

	// ToggleFavorite removes an existing favorite or, quota permitting,
	// adds one. Removing never needs quota.
	ToggleFavorite(ctx context.Context, userID, postID uuid.UUID) (*domain.FavoriteResult, error)

	// Permissions summarizes everything the user's plan entitles them to.
	Permissions(ctx context.Context, userID uuid.UUID) (*domain.PermissionSummary, error)

	// History returns the latest download per post, newest first, limited
	// to the plan's history depth.
	History(ctx context.Context, userID uuid.UUID) (*domain.DownloadHistory, error)
}

// =============================================================================
// Implementation
// =============================================================================

type entitlementService struct {
	store  repository.Store
	ledger *Ledger
	clock  clock.Clock
	logger *slog.Logger
}

// NewEntitlementService creates an EntitlementService.
func NewEntitlementService(store repository.Store, ledger *Ledger, c clock.Clock, logger *slog.Logger) EntitlementService {
	return &entitlementService{
		store:  store,
		ledger: ledger,
		clock:  c,
		logger: logger,
	}
}

// lockUser loads the user row FOR UPDATE and applies subscription expiry.
func (s *entitlementService) lockUser(ctx context.Context, q repository.Querier, op string, userID uuid.UUID) (*domain.User, error) {
	row, err := q.GetUserByIDForUpdate(ctx, userID)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound(op, "user", userID.String())
		}
		return nil, domain.Internal(err, op, "failed to lock user")
	}

	u := repoUserToDomain(row)
	if _, err := applyExpiry(ctx, q, u, s.clock.Now()); err != nil {
		return nil, domain.Internal(err, op, "failed to apply subscription expiry")
	}
	return u, nil
}

func (s *entitlementService) getPost(ctx context.Context, q repository.Querier, op string, postID uuid.UUID) (*domain.Post, error) {
	row, err := q.GetPostByID(ctx, postID)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound(op, "post", postID.String())
		}
		return nil, domain.Internal(err, op, "failed to load post")
	}
	return repoPostToDomain(row), nil
}

// usage reads the consumption an action is measured against. Callers hold
// the user row lock.
func (s *entitlementService) usage(ctx context.Context, q repository.Querier, u *domain.User, action domain.Action) (domain.Usage, error) {
	now := s.clock.Now()

	switch action {
	case domain.ActionDownload:
		return s.ledger.Peek(ctx, q, u, domain.PolicyFor(u).DownloadWindow)

	case domain.ActionComment:
		n, err := q.CountCommentsSince(ctx, repository.CountCommentsSinceParams{
			UserID: u.ID,
			Since:  clock.StartOfDay(now),
		})
		if err != nil {
			return domain.Usage{}, err
		}
		reset := clock.NextDailyReset(now)
		return domain.Usage{Count: int(n), ResetAt: &reset}, nil

	case domain.ActionFavorite:
		n, err := q.CountFavorites(ctx, u.ID)
		if err != nil {
			return domain.Usage{}, err
		}
		return domain.Usage{Count: int(n)}, nil

	case domain.ActionDevice:
		n, err := q.CountActiveSessions(ctx, repository.CountActiveSessionsParams{
			UserID: u.ID,
			Now:    now,
		})
		if err != nil {
			return domain.Usage{}, err
		}
		return domain.Usage{Count: int(n)}, nil
	}

	return domain.Usage{}, nil
}

// =============================================================================
// Check
// =============================================================================

func (s *entitlementService) Check(ctx context.Context, userID uuid.UUID, action domain.Action) (domain.Decision, error) {
	const op = "entitlement.check"

	var decision domain.Decision
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		u, err := s.lockUser(ctx, q, op, userID)
		if err != nil {
			return err
		}

		usage, err := s.usage(ctx, q, u, action)
		if err != nil {
			return domain.Internal(err, op, "failed to read usage")
		}
		decision = domain.Evaluate(u, action, usage)
		return nil
	})
	if err != nil {
		return domain.Decision{}, err
	}
	return decision, nil
}

// =============================================================================
// Download
// =============================================================================

func (s *entitlementService) Download(ctx context.Context, userID, postID uuid.UUID) (*domain.DownloadResult, error) {
	const op = "entitlement.download"

	var (
		result domain.DownloadResult
		plan   domain.Plan
	)
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		post, err := s.getPost(ctx, q, op, postID)
		if err != nil {
			return err
		}
		u, err := s.lockUser(ctx, q, op, userID)
		if err != nil {
			return err
		}
		plan = u.Plan

		window := domain.PolicyFor(u).DownloadWindow
		usage, err := s.ledger.Peek(ctx, q, u, window)
		if err != nil {
			return domain.Internal(err, op, "failed to read download counter")
		}

		decision := domain.Evaluate(u, domain.ActionDownload, usage)
		result = domain.DownloadResult{Decision: decision, Post: post}
		if !decision.Allowed {
			// Commit anyway: the lazy reset written by Peek must persist.
			return nil
		}

		if !decision.Unlimited {
			count, err := s.ledger.Consume(ctx, q, u, window)
			if err != nil {
				return domain.Internal(err, op, "failed to consume download")
			}
			result.Decision = decision.AfterConsume(count)
		}

		event, err := s.ledger.RecordEvent(ctx, q, u.ID, post.ID)
		if err != nil {
			return domain.Internal(err, op, "failed to record download")
		}
		result.Event = event

		if err := q.IncrementPostDownloads(ctx, post.ID); err != nil {
			return domain.Internal(err, op, "failed to update post download count")
		}
		post.DownloadCount++
		return nil
	})
	if err != nil {
		return nil, err
	}

	d := result.Decision
	metrics.Decision(string(d.Action), string(d.Reason))
	if d.Allowed {
		metrics.DownloadGranted(string(plan))
		s.logger.Info("download granted",
			"user_id", userID,
			"post_id", postID,
			"window", d.Window,
			"remaining", d.Remaining,
		)
	} else {
		s.logger.Info("download denied",
			"user_id", userID,
			"post_id", postID,
			"reason", d.Reason,
			"limit", d.Limit,
		)
	}

	return &result, nil
}

// =============================================================================
// Comment
// =============================================================================

func (s *entitlementService) Comment(ctx context.Context, userID, postID uuid.UUID, body string) (*domain.CommentResult, error) {
	const op = "entitlement.comment"

	body = strings.TrimSpace(body)
	if body == "" {
		return nil, domain.Invalid(op, "O comentário não pode ficar vazio")
	}
	if utf8.RuneCountInString(body) > MaxCommentLength {
		return nil, domain.Invalid(op, "O comentário é longo demais")
	}

	var result domain.CommentResult
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		if _, err := s.getPost(ctx, q, op, postID); err != nil {
			return err
		}
		u, err := s.lockUser(ctx, q, op, userID)
		if err != nil {
			return err
		}

		usage, err := s.usage(ctx, q, u, domain.ActionComment)
		if err != nil {
			return domain.Internal(err, op, "failed to count comments")
		}

		decision := domain.Evaluate(u, domain.ActionComment, usage)
		result.Decision = decision
		if !decision.Allowed {
			return nil
		}

		row, err := q.CreateComment(ctx, repository.CreateCommentParams{
			UserID:    u.ID,
			PostID:    postID,
			Body:      body,
			CreatedAt: s.clock.Now(),
		})
		if err != nil {
			return domain.Internal(err, op, "failed to create comment")
		}
		result.Decision = decision.AfterConsume(usage.Count + 1)
		result.Comment = &domain.Comment{
			ID:        row.ID,
			UserID:    row.UserID,
			PostID:    row.PostID,
			Body:      row.Body,
			CreatedAt: row.CreatedAt,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Decision(string(domain.ActionComment), string(result.Decision.Reason))
	return &result, nil
}

// =============================================================================
// Favorites
// =============================================================================

func (s *entitlementService) ToggleFavorite(ctx context.Context, userID, postID uuid.UUID) (*domain.FavoriteResult, error) {
	const op = "entitlement.toggle_favorite"

	var result domain.FavoriteResult
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		if _, err := s.getPost(ctx, q, op, postID); err != nil {
			return err
		}
		u, err := s.lockUser(ctx, q, op, userID)
		if err != nil {
			return err
		}

		key := repository.IsFavoriteParams{UserID: u.ID, PostID: postID}
		exists, err := q.IsFavorite(ctx, key)
		if err != nil {
			return domain.Internal(err, op, "failed to read favorite")
		}

		if exists {
			if _, err := q.RemoveFavorite(ctx, repository.RemoveFavoriteParams(key)); err != nil {
				return domain.Internal(err, op, "failed to remove favorite")
			}
			usage, err := s.usage(ctx, q, u, domain.ActionFavorite)
			if err != nil {
				return domain.Internal(err, op, "failed to count favorites")
			}
			result.Decision = domain.Evaluate(u, domain.ActionFavorite, usage)
			result.Favorited = false
			return nil
		}

		usage, err := s.usage(ctx, q, u, domain.ActionFavorite)
		if err != nil {
			return domain.Internal(err, op, "failed to count favorites")
		}
		decision := domain.Evaluate(u, domain.ActionFavorite, usage)
		result.Decision = decision
		if !decision.Allowed {
			return nil
		}

		if _, err := q.AddFavorite(ctx, repository.AddFavoriteParams(key)); err != nil {
			return domain.Internal(err, op, "failed to add favorite")
		}
		result.Decision = decision.AfterConsume(usage.Count + 1)
		result.Favorited = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.Decision(string(domain.ActionFavorite), string(result.Decision.Reason))
	return &result, nil
}

// =============================================================================
// Permissions and history
// =============================================================================

func (s *entitlementService) Permissions(ctx context.Context, userID uuid.UUID) (*domain.PermissionSummary, error) {
	const op = "entitlement.permissions"

	var summary domain.PermissionSummary
	err := s.store.ExecTx(ctx, func(q repository.Querier) error {
		u, err := s.lockUser(ctx, q, op, userID)
		if err != nil {
			return err
		}

		downloads, err := s.usage(ctx, q, u, domain.ActionDownload)
		if err != nil {
			return domain.Internal(err, op, "failed to read download counter")
		}
		favorites, err := s.usage(ctx, q, u, domain.ActionFavorite)
		if err != nil {
			return domain.Internal(err, op, "failed to count favorites")
		}
		devices, err := s.usage(ctx, q, u, domain.ActionDevice)
		if err != nil {
			return domain.Internal(err, op, "failed to count sessions")
		}

		policy := domain.PolicyFor(u)
		summary = domain.PermissionSummary{
			Plan:              u.Plan,
			PlanName:          policy.DisplayName,
			Role:              u.Role,
			Download:          domain.Evaluate(u, domain.ActionDownload, downloads),
			CommentsPerDay:    policy.CommentsPerDay,
			FavoriteLimit:     policy.FavoriteLimit,
			FavoritesUsed:     favorites.Count,
			HistoryDepth:      policy.HistoryDepth,
			DeviceLimit:       policy.DeviceLimit,
			DevicesUsed:       devices.Count,
			Support:           policy.Support,
			CanRequestContent: policy.CanRequestContent,
			VIPArea:           policy.VIPArea,
			SubscriptionEnds:  u.SubscriptionEndDate,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &summary, nil
}

func (s *entitlementService) History(ctx context.Context, userID uuid.UUID) (*domain.DownloadHistory, error) {
	const op = "entitlement.history"

	row, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		if isNoRows(err) {
			return nil, domain.NotFound(op, "user", userID.String())
		}
		return nil, domain.Internal(err, op, "failed to load user")
	}
	u := repoUserToDomain(row)
	if u.SubscriptionExpired(s.clock.Now()) {
		u.Plan = domain.PlanFree
	}

	depth := domain.PolicyFor(u).HistoryDepth
	if depth == 0 {
		return &domain.DownloadHistory{
			Allowed: false,
			Message: domain.HistoryRestrictedMessage(),
		}, nil
	}

	limit := int32(math.MaxInt32)
	if depth != domain.Unlimited {
		limit = int32(depth)
	}

	rows, err := s.store.ListLatestDownloadsByUser(ctx, repository.ListLatestDownloadsByUserParams{
		UserID:   u.ID,
		RowLimit: limit,
	})
	if err != nil {
		return nil, domain.Internal(err, op, "failed to list downloads")
	}

	entries := make([]domain.HistoryEntry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, domain.HistoryEntry{
			PostID:       r.PostID,
			PostTitle:    r.Title,
			PostSlug:     r.Slug,
			DownloadedAt: r.DownloadedAt,
		})
	}

	return &domain.DownloadHistory{
		Allowed: true,
		Depth:   depth,
		Entries: entries,
	}, nil
}
