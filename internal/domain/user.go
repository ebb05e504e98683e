// Package domain contains core business types and interfaces.
//
// This file defines the User domain type, the role and plan enums, and the
// session types used for device accounting.
package domain

import (
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// Role is the administrative role of an account. Editors and admins bypass
// every quota except the download kill-switch.
type Role string

const (
	RoleUser   Role = "user"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// Plan is the subscription tier of a user.
type Plan string

const (
	PlanFree    Plan = "free"
	PlanPremium Plan = "premium"
	PlanVIP     Plan = "vip"
)

// Valid reports whether p is one of the known plans.
func (p Plan) Valid() bool {
	switch p {
	case PlanFree, PlanPremium, PlanVIP:
		return true
	}
	return false
}

// Paid reports whether p is a purchasable plan.
func (p Plan) Paid() bool {
	return p == PlanPremium || p == PlanVIP
}

// User represents a registered portal account.
//
// DailyDownloads and WeeklyDownloads are only meaningful relative to their
// paired reset timestamps; read them through the quota ledger, never directly.
type User struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string // Never expose this in API responses
	Name         string
	Role         Role
	Plan         Plan

	SubscriptionEndDate *time.Time
	StripeCustomerID    string

	CanDownload       bool
	CustomDailyLimit  *int
	CustomWeeklyLimit *int

	DailyDownloads    int
	DownloadResetDate *time.Time
	WeeklyDownloads   int
	WeekResetDate     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsStaff returns true for editors and admins.
func (u *User) IsStaff() bool {
	return u.Role == RoleAdmin || u.Role == RoleEditor
}

// IsAdmin returns true for admins only.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// SubscriptionExpired reports whether a paid plan has run past its end date.
func (u *User) SubscriptionExpired(now time.Time) bool {
	if u.Plan == PlanFree || u.SubscriptionEndDate == nil {
		return false
	}
	return u.SubscriptionEndDate.Before(now)
}

// DisplayName returns the user's name or email if name is empty.
func (u *User) DisplayName() string {
	if u.Name != "" {
		return u.Name
	}
	return u.Email
}

// Session is one logged-in device. The raw token is only given to the
// client once; the database keeps its SHA-256 hash.
type Session struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	TokenHash  string
	UserAgent  string
	IPAddress  string
	LastSeenAt time.Time
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

// IsExpired returns true if the session has expired at now.
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionMeta describes the device opening a session.
type SessionMeta struct {
	UserAgent string
	IPAddress string
}

// RegisterParams contains the parameters for user registration.
type RegisterParams struct {
	Email    string
	Password string // Raw password, will be hashed by service
	Name     string
}

// LoginParams contains the credentials and device of a login attempt.
type LoginParams struct {
	Email    string
	Password string
	Device   SessionMeta
}

// LoginResult contains the result of a successful login.
type LoginResult struct {
	User  *User
	Token string // Raw session token (not hashed) - only returned once
}

// =============================================================================
// Conversion helpers from repository types
// =============================================================================

// NullStringValue safely extracts a string from sql.NullString.
func NullStringValue(ns sql.NullString) string {
	if ns.Valid {
		return ns.String
	}
	return ""
}

// NullTimeValue safely extracts a time pointer from sql.NullTime.
func NullTimeValue(nt sql.NullTime) *time.Time {
	if nt.Valid {
		t := nt.Time
		return &t
	}
	return nil
}

// NullInt32Value safely extracts an int pointer from sql.NullInt32.
func NullInt32Value(ni sql.NullInt32) *int {
	if ni.Valid {
		v := int(ni.Int32)
		return &v
	}
	return nil
}

// ToNullString converts a string to sql.NullString.
func ToNullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

// ToNullTime converts a time pointer to sql.NullTime.
func ToNullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// ToNullInt32 converts an int pointer to sql.NullInt32.
func ToNullInt32(v *int) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{Valid: false}
	}
	return sql.NullInt32{Int32: int32(*v), Valid: true}
}
