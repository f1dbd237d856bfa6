// Package cooldown rate-limits username changes.
package cooldown

import (
	"fmt"
	"math"
	"time"

	"github.com/campus-forum/internal/domain"
)

const (
	DefaultMinGap     = 24 * time.Hour
	DefaultDailyLimit = 2
)

// Denial reasons
const (
	ReasonMustWait   = "must wait"
	ReasonDailyLimit = "daily limit reached"
)

// Decision is the outcome of a cooldown check. A denied decision is a
// normal result, not an error.
type Decision struct {
	Allowed         bool
	Reason          string
	RetryAfterHours int
}

// Allowed is the decision for a permitted change
var Allowed = Decision{Allowed: true}

// Denied builds a negative decision
func Denied(reason string, retryAfterHours int) Decision {
	return Decision{Reason: reason, RetryAfterHours: retryAfterHours}
}

// Message renders the decision for display in the profile editor
func (d Decision) Message() string {
	switch {
	case d.Allowed:
		return ""
	case d.Reason == ReasonMustWait:
		return fmt.Sprintf("You can change your username again in %d hours", d.RetryAfterHours)
	case d.Reason == ReasonDailyLimit:
		return "You have reached the maximum of username changes for today"
	}
	return d.Reason
}

// Policy holds the limits applied to username changes. Both the minimum
// gap and the per-calendar-day limit are enforced; with the defaults the
// gap alone already prevents a second change on the same day.
type Policy struct {
	MinGap     time.Duration
	DailyLimit int
	// Location decides calendar-day boundaries. Nil means UTC.
	Location *time.Location
}

// DefaultPolicy allows two changes per day with a 24 hour gap, in UTC.
func DefaultPolicy() Policy {
	return Policy{
		MinGap:     DefaultMinGap,
		DailyLimit: DefaultDailyLimit,
		Location:   time.UTC,
	}
}

// CanChange evaluates the default policy.
func CanChange(lastChangedAt *time.Time, changeCountToday int, now time.Time) Decision {
	return DefaultPolicy().CanChange(lastChangedAt, changeCountToday, now)
}

// CanChange decides whether a username change at now is permitted.
func (p Policy) CanChange(lastChangedAt *time.Time, changeCountToday int, now time.Time) Decision {
	if lastChangedAt == nil {
		return Allowed
	}

	since := now.Sub(*lastChangedAt)
	if since < p.MinGap {
		return Denied(ReasonMustWait, ceilHours(p.MinGap-since))
	}

	if p.DailyLimit > 0 && p.sameDay(*lastChangedAt, now) && changeCountToday >= p.DailyLimit {
		return Denied(ReasonDailyLimit, ceilHours(p.untilNextDay(now)))
	}

	return Allowed
}

// Check is CanChange over a stored record.
func (p Policy) Check(rec domain.UsernameChangeRecord, now time.Time) Decision {
	return p.CanChange(rec.LastChangedAt, rec.ChangeCountToday, now)
}

// Apply returns the record after an accepted change at now. The counter
// continues within the same calendar day and restarts at one otherwise.
func (p Policy) Apply(rec domain.UsernameChangeRecord, now time.Time) domain.UsernameChangeRecord {
	count := 1
	if rec.LastChangedAt != nil && p.sameDay(*rec.LastChangedAt, now) {
		count = rec.ChangeCountToday + 1
	}
	changed := now
	return domain.UsernameChangeRecord{
		LastChangedAt:    &changed,
		ChangeCountToday: count,
	}
}

// NextChangeAt is the earliest time the gap allows another change, or nil
// if the username was never changed.
func (p Policy) NextChangeAt(lastChangedAt *time.Time) *time.Time {
	if lastChangedAt == nil {
		return nil
	}
	next := lastChangedAt.Add(p.MinGap)
	return &next
}

// Status converts a decision into its API view.
func (p Policy) Status(rec domain.UsernameChangeRecord, now time.Time) domain.CooldownStatus {
	d := p.Check(rec, now)
	status := domain.CooldownStatus{
		Allowed:         d.Allowed,
		Reason:          d.Message(),
		RetryAfterHours: d.RetryAfterHours,
	}
	if !d.Allowed {
		status.NextChangeAt = p.NextChangeAt(rec.LastChangedAt)
		if d.Reason == ReasonDailyLimit {
			next := now.Add(p.untilNextDay(now))
			status.NextChangeAt = &next
		}
	}
	return status
}

func (p Policy) location() *time.Location {
	if p.Location == nil {
		return time.UTC
	}
	return p.Location
}

func (p Policy) sameDay(a, b time.Time) bool {
	loc := p.location()
	ay, am, ad := a.In(loc).Date()
	by, bm, bd := b.In(loc).Date()
	return ay == by && am == bm && ad == bd
}

func (p Policy) untilNextDay(now time.Time) time.Duration {
	local := now.In(p.location())
	y, m, d := local.Date()
	midnight := time.Date(y, m, d+1, 0, 0, 0, 0, p.location())
	return midnight.Sub(local)
}

func ceilHours(d time.Duration) int {
	h := int(math.Ceil(d.Hours()))
	if h < 1 {
		return 1
	}
	return h
}
