package service

import (
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/DukeRupert/mundo/internal/domain"
	"github.com/DukeRupert/mundo/internal/repository"
)

// =============================================================================
// Repository -> domain conversion
// =============================================================================

func repoUserToDomain(u repository.User) *domain.User {
	return &domain.User{
		ID:                  u.ID,
		Email:               u.Email,
		PasswordHash:        u.PasswordHash,
		Name:                u.Name,
		Role:                domain.Role(u.Role),
		Plan:                domain.Plan(u.Plan),
		SubscriptionEndDate: domain.NullTimeValue(u.SubscriptionEndDate),
		StripeCustomerID:    domain.NullStringValue(u.StripeCustomerID),
		CanDownload:         u.CanDownload,
		CustomDailyLimit:    domain.NullInt32Value(u.CustomDailyLimit),
		CustomWeeklyLimit:   domain.NullInt32Value(u.CustomWeeklyLimit),
		DailyDownloads:      int(u.DailyDownloads),
		DownloadResetDate:   domain.NullTimeValue(u.DownloadResetDate),
		WeeklyDownloads:     int(u.WeeklyDownloads),
		WeekResetDate:       domain.NullTimeValue(u.WeekResetDate),
		CreatedAt:           u.CreatedAt,
		UpdatedAt:           u.UpdatedAt,
	}
}

func repoSessionToDomain(s repository.Session) *domain.Session {
	return &domain.Session{
		ID:         s.ID,
		UserID:     s.UserID,
		TokenHash:  s.TokenHash,
		UserAgent:  domain.NullStringValue(s.UserAgent),
		IPAddress:  domain.NullStringValue(s.IpAddress),
		LastSeenAt: s.LastSeenAt,
		ExpiresAt:  s.ExpiresAt,
		CreatedAt:  s.CreatedAt,
	}
}

func repoPostToDomain(p repository.Post) *domain.Post {
	return &domain.Post{
		ID:            p.ID,
		Title:         p.Title,
		Slug:          p.Slug,
		DownloadLink:  p.DownloadLink,
		DownloadCount: int(p.DownloadCount),
		CreatedAt:     p.CreatedAt,
	}
}

func repoTransactionToDomain(t repository.Transaction) *domain.Transaction {
	return &domain.Transaction{
		ID:                   t.ID,
		UserID:               t.UserID,
		Gateway:              domain.Gateway(t.Gateway),
		StripeSessionID:      domain.NullStringValue(t.StripeSessionID),
		StripeSubscriptionID: domain.NullStringValue(t.StripeSubscriptionID),
		StripeCustomerID:     domain.NullStringValue(t.StripeCustomerID),
		AbacatePayBillingID:  domain.NullStringValue(t.AbacatepayBillingID),
		PixChargeID:          domain.NullStringValue(t.PixChargeID),
		PixBRCode:            domain.NullStringValue(t.PixBrCode),
		PixBRCodeBase64:      domain.NullStringValue(t.PixBrCodeBase64),
		PlanType:             domain.Plan(t.PlanType),
		AmountCentavos:       t.Amount,
		Currency:             t.Currency,
		Status:               domain.TransactionStatus(t.Status),
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
		PaidAt:               domain.NullTimeValue(t.PaidAt),
	}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

// isNoRows reports whether err means the row does not exist.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// isUniqueViolation reports whether err is a unique constraint violation.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return err != nil && strings.Contains(err.Error(), "duplicate key")
}
