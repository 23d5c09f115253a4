// Package quota provides pure functions and value types for quota display
// state. All functions are deterministic with no side effects.
package quota

import "math"

// Status is the normalized quota snapshot shown to a caller (value type).
// Remaining figures come from the authority as-is; they are never recomputed
// from quota minus used because the authority may hold reservations.
type Status struct {
	DailyQuota       int64   `json:"dailyQuota"`
	DailyUsed        int64   `json:"dailyUsed"`
	DailyRemaining   int64   `json:"dailyRemaining"`
	MonthlyQuota     int64   `json:"monthlyQuota"`
	MonthlyUsed      int64   `json:"monthlyUsed"`
	MonthlyRemaining int64   `json:"monthlyRemaining"`
	CurrentGroup     string  `json:"currentGroup"`
	OriginalGroup    string  `json:"originalGroup"`
	IsFallback       bool    `json:"isFallback"`
	Balance          float64 `json:"balance"`
	Allowed          bool    `json:"allowed"`
}

// Unprovisioned returns the fixed snapshot served for callers with no linked
// billing account. These literals are a contract, not a guess - callers rely
// on them exactly.
func Unprovisioned() Status {
	return Status{
		DailyQuota:       100,
		DailyUsed:        0,
		DailyRemaining:   100,
		MonthlyQuota:     500,
		MonthlyUsed:      0,
		MonthlyRemaining: 500,
		CurrentGroup:     "free",
		OriginalGroup:    "free",
		IsFallback:       false,
		Balance:          0,
		Allowed:          true,
	}
}

// Zero returns the initial consumer-side state before any refresh or event.
func Zero() Status {
	return Status{
		CurrentGroup:  "free",
		OriginalGroup: "free",
		Allowed:       true,
	}
}

// Delta is a partial quota update carried by sync and heartbeat events.
// Nil fields were absent on the wire and must leave state untouched.
type Delta struct {
	QuotaUsed      *int64   `json:"quota_used,omitempty"`
	QuotaRemaining *int64   `json:"quota_remaining,omitempty"`
	Balance        *float64 `json:"balance,omitempty"`
	Allowed        *bool    `json:"allowed,omitempty"`
}

// Empty reports whether the delta carries no fields at all.
func (d Delta) Empty() bool {
	return d.QuotaUsed == nil && d.QuotaRemaining == nil && d.Balance == nil && d.Allowed == nil
}

// Apply merges the present fields of d onto s and returns the result.
// This is a PURE function - a partial merge, never a replace.
func Apply(s Status, d Delta) Status {
	if d.QuotaUsed != nil {
		s.MonthlyUsed = *d.QuotaUsed
	}
	if d.QuotaRemaining != nil {
		s.MonthlyRemaining = *d.QuotaRemaining
	}
	if d.Balance != nil {
		s.Balance = *d.Balance
	}
	if d.Allowed != nil {
		s.Allowed = *d.Allowed
	}
	return s
}

// DailyPercentage returns the daily consumption percentage, rounded to the
// nearest integer. Zero when no daily quota is configured.
func (s Status) DailyPercentage() int {
	return percentage(s.DailyUsed, s.DailyQuota)
}

// MonthlyPercentage returns the monthly consumption percentage, rounded to
// the nearest integer. Zero when no monthly quota is configured.
func (s Status) MonthlyPercentage() int {
	return percentage(s.MonthlyUsed, s.MonthlyQuota)
}

// IsQuotaLow reports whether monthly consumption has reached 80%.
func (s Status) IsQuotaLow() bool {
	return s.MonthlyPercentage() >= 80
}

// IsQuotaExhausted reports whether monthly consumption has reached 100%.
func (s Status) IsQuotaExhausted() bool {
	return s.MonthlyPercentage() >= 100
}

// IsDailyExhausted reports whether the daily remaining figure is used up.
func (s Status) IsDailyExhausted() bool {
	return s.DailyRemaining <= 0
}

// percentage computes round(100*used/limit), from used and limit only.
func percentage(used, limit int64) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Round(float64(used) / float64(limit) * 100))
}
