// Package domain contains core business types and interfaces.
//
// This file defines the plan policy table. Every plan constant (quotas,
// device limits, prices, support level) lives here and nowhere else.
package domain

// Unlimited marks a limit that is never enforced.
const Unlimited = -1

// QuotaWindow is the recurring interval after which a download counter
// returns to zero.
type QuotaWindow string

const (
	WindowDaily  QuotaWindow = "daily"
	WindowWeekly QuotaWindow = "weekly"
	WindowNone   QuotaWindow = "unlimited"
)

// PlanPolicy holds the default entitlements of a tier.
//
// Free counts downloads on the daily window only and premium on the weekly
// window only. The tiers are not supersets of each other.
type PlanPolicy struct {
	Plan        Plan
	DisplayName string

	DownloadWindow QuotaWindow
	DownloadLimit  int

	DeviceLimit    int
	CommentsPerDay int
	FavoriteLimit  int
	HistoryDepth   int // 0 means no history access

	Support           string
	CanRequestContent bool
	VIPArea           bool

	PriceCentavos int64 // Monthly price; 0 for plans that cannot be bought
}

// PlanPolicies maps each plan to its defaults.
var PlanPolicies = map[Plan]PlanPolicy{
	PlanFree: {
		Plan:           PlanFree,
		DisplayName:    "Grátis",
		DownloadWindow: WindowDaily,
		DownloadLimit:  1,
		DeviceLimit:    1,
		CommentsPerDay: 0,
		FavoriteLimit:  10,
		HistoryDepth:   0,
		Support:        "Suporte em até 48H",
	},
	PlanPremium: {
		Plan:           PlanPremium,
		DisplayName:    "Premium",
		DownloadWindow: WindowWeekly,
		DownloadLimit:  15,
		DeviceLimit:    2,
		CommentsPerDay: 2,
		FavoriteLimit:  Unlimited,
		HistoryDepth:   5,
		Support:        "Suporte em até 24H",
		PriceCentavos:  2990,
	},
	PlanVIP: {
		Plan:              PlanVIP,
		DisplayName:       "VIP",
		DownloadWindow:    WindowNone,
		DownloadLimit:     Unlimited,
		DeviceLimit:       5,
		CommentsPerDay:    Unlimited,
		FavoriteLimit:     Unlimited,
		HistoryDepth:      Unlimited,
		Support:           "Suporte Prioritário",
		CanRequestContent: true,
		VIPArea:           true,
		PriceCentavos:     4990,
	},
}

// staffPolicy applies to editors and admins regardless of plan.
var staffPolicy = PlanPolicy{
	DownloadWindow:    WindowNone,
	DownloadLimit:     Unlimited,
	DeviceLimit:       Unlimited,
	CommentsPerDay:    Unlimited,
	FavoriteLimit:     Unlimited,
	HistoryDepth:      Unlimited,
	Support:           "Suporte Prioritário",
	CanRequestContent: true,
	VIPArea:           true,
}

// PolicyForPlan returns the policy of a plan, defaulting to free for
// unknown plans.
func PolicyForPlan(p Plan) PlanPolicy {
	if policy, ok := PlanPolicies[p]; ok {
		return policy
	}
	return PlanPolicies[PlanFree]
}

// PolicyFor returns the effective policy of a user: the plan defaults, with
// the staff override applied for editors and admins.
func PolicyFor(u *User) PlanPolicy {
	base := PolicyForPlan(u.Plan)
	if !u.IsStaff() {
		return base
	}
	staff := staffPolicy
	staff.Plan = base.Plan
	staff.DisplayName = base.DisplayName
	staff.PriceCentavos = base.PriceCentavos
	return staff
}

// DownloadLimitFor returns the effective download limit of u on the policy's
// window, honouring the per-user override for that window. A zero override
// counts as unset; the kill-switch is the way to deny all downloads.
func (p PlanPolicy) DownloadLimitFor(u *User) int {
	switch p.DownloadWindow {
	case WindowDaily:
		if u.CustomDailyLimit != nil && *u.CustomDailyLimit > 0 {
			return *u.CustomDailyLimit
		}
	case WindowWeekly:
		if u.CustomWeeklyLimit != nil && *u.CustomWeeklyLimit > 0 {
			return *u.CustomWeeklyLimit
		}
	}
	return p.DownloadLimit
}
