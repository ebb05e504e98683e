// Package domain contains core business types and interfaces.
//
// This file implements the entitlement evaluator: a pure decision function
// over a user, an action and the usage observed by the quota ledger.
package domain

import "time"

// Action is a quota-governed user action.
type Action string

const (
	ActionDownload Action = "download"
	ActionComment  Action = "comment"
	ActionFavorite Action = "favorite"
	ActionDevice   Action = "device"
)

// Reason explains a Decision.
type Reason string

const (
	ReasonOK             Reason = "ok"
	ReasonUnlimited      Reason = "unlimited"
	ReasonBlocked        Reason = "blocked"
	ReasonQuotaExceeded  Reason = "quota_exceeded"
	ReasonPlanRestricted Reason = "plan_restricted"
	ReasonLimitReached   Reason = "limit_reached"
	ReasonDeviceLimit    Reason = "device_limit"
)

// Usage is the consumption observed for an action at decision time. For
// downloads it is the ledger count of the plan's window; for comments the
// count since local midnight; for favorites the running total; for devices
// the number of live sessions.
type Usage struct {
	Count   int
	ResetAt *time.Time
}

// Decision is the entitlement answer for one user and action at one instant.
// Denials are ordinary values, never errors.
type Decision struct {
	Action    Action
	Allowed   bool
	Unlimited bool
	Limit     int // Unlimited when Unlimited is true
	Used      int
	Remaining int // Unlimited when Unlimited is true
	Window    QuotaWindow
	ResetAt   *time.Time
	Reason    Reason
	Message   string
}

// Evaluate decides whether u may perform action given usage. It performs no
// I/O and mutates nothing.
func Evaluate(u *User, action Action, usage Usage) Decision {
	policy := PolicyFor(u)

	switch action {
	case ActionDownload:
		return evaluateDownload(u, policy, usage)
	case ActionComment:
		return evaluateComment(policy, usage)
	case ActionFavorite:
		return evaluateCap(ActionFavorite, policy.FavoriteLimit, ReasonLimitReached, usage,
			localize(msgFavoriteLimit, policy.FavoriteLimit, policy.DisplayName))
	case ActionDevice:
		return evaluateCap(ActionDevice, policy.DeviceLimit, ReasonDeviceLimit, usage,
			localize(msgDeviceLimit, policy.DeviceLimit, policy.DisplayName))
	}

	return Decision{Action: action, Reason: ReasonPlanRestricted}
}

// evaluateDownload applies, in order: the kill-switch, the staff and vip
// bypass, then the plan's single counting window.
func evaluateDownload(u *User, policy PlanPolicy, usage Usage) Decision {
	if !u.CanDownload {
		return Decision{
			Action:  ActionDownload,
			Window:  policy.DownloadWindow,
			Reason:  ReasonBlocked,
			Message: localize(msgDownloadBlocked),
		}
	}

	if policy.DownloadWindow == WindowNone {
		d := unlimited(ActionDownload)
		d.Message = localize(msgDownloadsUnlimited)
		return d
	}

	limit := policy.DownloadLimitFor(u)
	d := Decision{
		Action:    ActionDownload,
		Limit:     limit,
		Used:      usage.Count,
		Remaining: max(0, limit-usage.Count),
		Window:    policy.DownloadWindow,
		ResetAt:   usage.ResetAt,
	}

	if usage.Count < limit {
		d.Allowed = true
		d.Reason = ReasonOK
		d.Message = remainingMessage(d.Window, d.Remaining)
		return d
	}

	d.Reason = ReasonQuotaExceeded
	d.Message = exceededMessage(d.Window, limit)
	return d
}

func evaluateComment(policy PlanPolicy, usage Usage) Decision {
	switch policy.CommentsPerDay {
	case Unlimited:
		return unlimited(ActionComment)
	case 0:
		return Decision{
			Action:  ActionComment,
			Reason:  ReasonPlanRestricted,
			Message: localize(msgCommentsRestricted),
		}
	}

	limit := policy.CommentsPerDay
	d := Decision{
		Action:    ActionComment,
		Limit:     limit,
		Used:      usage.Count,
		Remaining: max(0, limit-usage.Count),
		Window:    WindowDaily,
		ResetAt:   usage.ResetAt,
	}
	if usage.Count < limit {
		d.Allowed = true
		d.Reason = ReasonOK
		return d
	}
	d.Reason = ReasonLimitReached
	d.Message = localize(msgCommentLimit, limit)
	return d
}

// evaluateCap compares a running total against a flat cap with no window.
func evaluateCap(action Action, limit int, denied Reason, usage Usage, deniedMessage string) Decision {
	if limit == Unlimited {
		return unlimited(action)
	}

	d := Decision{
		Action:    action,
		Limit:     limit,
		Used:      usage.Count,
		Remaining: max(0, limit-usage.Count),
	}
	if usage.Count < limit {
		d.Allowed = true
		d.Reason = ReasonOK
		return d
	}
	d.Reason = denied
	d.Message = deniedMessage
	return d
}

func unlimited(action Action) Decision {
	return Decision{
		Action:    action,
		Allowed:   true,
		Unlimited: true,
		Limit:     Unlimited,
		Remaining: Unlimited,
		Window:    WindowNone,
		Reason:    ReasonUnlimited,
	}
}

// AfterConsume returns d updated for a granted action whose usage is now
// count. Unlimited decisions are returned unchanged.
func (d Decision) AfterConsume(count int) Decision {
	if d.Unlimited || !d.Allowed {
		return d
	}
	d.Used = count
	d.Remaining = max(0, d.Limit-count)
	if d.Action == ActionDownload {
		d.Message = remainingMessage(d.Window, d.Remaining)
	}
	return d
}
