// Package clock provides the time source and the civil-time helpers used to
// compute quota reset boundaries.
//
// All reset boundaries are computed in a fixed UTC-3 zone. Brazil has not
// observed daylight saving time since 2019, so a static offset is used
// instead of a tz database lookup.
package clock

import (
	"sync"
	"time"
)

// Location is the civil timezone of the portal (America/Sao_Paulo, UTC-3).
var Location = time.FixedZone("BRT", -3*60*60)

// Clock is the source of the current instant.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

// System returns a Clock backed by the wall clock, in UTC.
func System() Clock {
	return systemClock{}
}

func (systemClock) Now() time.Time {
	return time.Now().UTC()
}

// Manual is a Clock whose time only moves when told to. Safe for concurrent use.
type Manual struct {
	mu  sync.Mutex
	now time.Time
}

// NewManual returns a Manual clock set to t.
func NewManual(t time.Time) *Manual {
	return &Manual{now: t}
}

func (m *Manual) Now() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.now
}

// Set moves the clock to t.
func (m *Manual) Set(t time.Time) {
	m.mu.Lock()
	m.now = t
	m.mu.Unlock()
}

// Advance moves the clock forward by d.
func (m *Manual) Advance(d time.Duration) {
	m.mu.Lock()
	m.now = m.now.Add(d)
	m.mu.Unlock()
}

// =============================================================================
// Civil time helpers
// =============================================================================

// ToLocal converts t to the portal's civil timezone.
func ToLocal(t time.Time) time.Time {
	return t.In(Location)
}

// StartOfDay returns local civil midnight of t's local calendar day.
func StartOfDay(t time.Time) time.Time {
	l := ToLocal(t)
	return time.Date(l.Year(), l.Month(), l.Day(), 0, 0, 0, 0, Location)
}

// NextDailyReset returns 00:00 local of the calendar day after t.
func NextDailyReset(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1)
}

// NextWeeklyReset returns the next Sunday 00:00 local strictly after t.
// On a Sunday (including exactly Sunday 00:00) it returns the following Sunday.
func NextWeeklyReset(t time.Time) time.Time {
	day := StartOfDay(t)
	days := (7 - int(day.Weekday())) % 7
	if days == 0 {
		days = 7
	}
	return day.AddDate(0, 0, days)
}

// Due reports whether a reset boundary has been reached. An unset boundary is
// always due. The comparison is inclusive: now == resetAt is due.
func Due(now time.Time, resetAt *time.Time) bool {
	if resetAt == nil {
		return true
	}
	return !now.Before(*resetAt)
}
