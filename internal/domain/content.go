package domain

import (
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Post is a downloadable publication. Only the fields the entitlement
// engine needs are modelled.
type Post struct {
	ID            uuid.UUID
	Title         string
	Slug          string
	DownloadLink  string // Absolute URL or a storage key
	DownloadCount int
	CreatedAt     time.Time
}

// HasExternalLink reports whether DownloadLink is an absolute URL rather
// than an object storage key.
func (p *Post) HasExternalLink() bool {
	return strings.HasPrefix(p.DownloadLink, "http://") || strings.HasPrefix(p.DownloadLink, "https://")
}

// DownloadEvent is one granted download. Events are an audit trail; quota
// enforcement reads the user counters.
type DownloadEvent struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	PostID    uuid.UUID
	CreatedAt time.Time
}

// DownloadResult is the outcome of a download attempt.
type DownloadResult struct {
	Decision Decision
	Post     *Post
	Event    *DownloadEvent // nil when denied
}

// Comment is a user comment on a post.
type Comment struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	PostID    uuid.UUID
	Body      string
	CreatedAt time.Time
}

// CommentResult is the outcome of a comment attempt.
type CommentResult struct {
	Decision Decision
	Comment  *Comment // nil when denied
}

// FavoriteResult is the outcome of a favorite toggle.
type FavoriteResult struct {
	Decision  Decision
	Favorited bool // State after the toggle
}

// HistoryEntry is the latest download of one post.
type HistoryEntry struct {
	PostID       uuid.UUID
	PostTitle    string
	PostSlug     string
	DownloadedAt time.Time
}

// DownloadHistory is the history view of a user, already truncated to the
// plan's depth.
type DownloadHistory struct {
	Allowed bool
	Depth   int // Unlimited for full history
	Entries []HistoryEntry
	Message string
}

// PermissionSummary describes everything a user's plan entitles them to.
type PermissionSummary struct {
	Plan              Plan
	PlanName          string
	Role              Role
	Download          Decision
	CommentsPerDay    int
	FavoriteLimit     int
	FavoritesUsed     int
	HistoryDepth      int
	DeviceLimit       int
	DevicesUsed       int
	Support           string
	CanRequestContent bool
	VIPArea           bool
	SubscriptionEnds  *time.Time
}

// =============================================================================
// Admin download limits
// =============================================================================

// AdminAction is an administrative counter adjustment. Admin actions bypass
// the entitlement evaluator.
type AdminAction string

const (
	AdminReset       AdminAction = "reset"
	AdminSet         AdminAction = "set"
	AdminIncrease    AdminAction = "increase"
	AdminDecrease    AdminAction = "decrease"
	AdminPermissions AdminAction = "permissions"
)

// AdminPeriod selects the counter an admin action applies to.
type AdminPeriod string

const (
	PeriodDaily  AdminPeriod = "daily"
	PeriodWeekly AdminPeriod = "weekly"
	PeriodAll    AdminPeriod = "all"
)

// DownloadAdjustment is an admin request against a user's counters.
type DownloadAdjustment struct {
	Action AdminAction
	Period AdminPeriod
	Amount int

	// Used by AdminPermissions only.
	CanDownload       bool
	CustomDailyLimit  *int
	CustomWeeklyLimit *int
}

// MaxDownloadCounter bounds every counter and custom limit; the columns
// are 32-bit.
const MaxDownloadCounter = math.MaxInt32

// Validate checks the adjustment shape.
func (a DownloadAdjustment) Validate() error {
	const op = "download_adjustment.validate"

	switch a.Action {
	case AdminPermissions:
		if a.CustomDailyLimit != nil && *a.CustomDailyLimit < 0 {
			return Invalid(op, "custom daily limit must not be negative")
		}
		if a.CustomWeeklyLimit != nil && *a.CustomWeeklyLimit < 0 {
			return Invalid(op, "custom weekly limit must not be negative")
		}
		if a.CustomDailyLimit != nil && *a.CustomDailyLimit > MaxDownloadCounter {
			return Invalid(op, "custom daily limit is too large")
		}
		if a.CustomWeeklyLimit != nil && *a.CustomWeeklyLimit > MaxDownloadCounter {
			return Invalid(op, "custom weekly limit is too large")
		}
		return nil
	case AdminReset:
		if a.Period != PeriodDaily && a.Period != PeriodWeekly && a.Period != PeriodAll {
			return Invalid(op, "period must be daily, weekly or all")
		}
		return nil
	case AdminSet, AdminIncrease, AdminDecrease:
		if a.Period != PeriodDaily && a.Period != PeriodWeekly {
			return Invalid(op, "period must be daily or weekly")
		}
		if a.Amount < 0 {
			return Invalid(op, "amount must not be negative")
		}
		if a.Amount > MaxDownloadCounter {
			return Invalid(op, "amount is too large")
		}
		return nil
	}
	return Invalid(op, "unknown action")
}

// DownloadLimits is the admin view of a user's counters and overrides.
type DownloadLimits struct {
	UserID            uuid.UUID
	Plan              Plan
	CanDownload       bool
	CustomDailyLimit  *int
	CustomWeeklyLimit *int
	DailyDownloads    int
	DownloadResetDate *time.Time
	WeeklyDownloads   int
	WeekResetDate     *time.Time
	Effective         Decision
}
