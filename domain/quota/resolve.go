package quota

// AuthorityQuota is the billing authority's wire format for
// GET /api/v1/billing/quota/{id}. Pointer fields distinguish "absent" from
// zero so precedence resolution stays exact.
type AuthorityQuota struct {
	DailyQuota     *int64   `json:"daily_quota,omitempty"`
	DailyUsed      *int64   `json:"daily_used,omitempty"`
	DailyRemaining *int64   `json:"daily_remaining,omitempty"`
	QuotaLimit     *int64   `json:"quota_limit,omitempty"`
	QuotaUsed      *int64   `json:"quota_used,omitempty"`
	QuotaRemaining *int64   `json:"quota_remaining,omitempty"`
	Group          *string  `json:"group,omitempty"`
	Balance        *float64 `json:"balance,omitempty"`
	Allowed        *bool    `json:"allowed,omitempty"`
}

// OverlayStatus is the subscription overlay's wire format for
// GET /api/v1/quota/{id}/status. The overlay only covers daily figures and
// plan-tier grouping; monthly figures and balance stay with the authority.
type OverlayStatus struct {
	DailyQuota     *int64  `json:"daily_quota,omitempty"`
	DailyUsed      *int64  `json:"daily_used,omitempty"`
	DailyRemaining *int64  `json:"daily_remaining,omitempty"`
	CurrentGroup   *string `json:"current_group,omitempty"`
	OriginalGroup  *string `json:"original_group,omitempty"`
	IsFallback     *bool   `json:"is_fallback,omitempty"`
}

// Resolve combines the two upstream sources into one snapshot under the
// aggregation contract. This is a PURE function.
//
// Field precedence:
//   - daily figures and groups: overlay, else authority, else default
//   - monthly figures, balance, allowed: authority only, else default
//   - isFallback: overlay only, else false
//
// Either source may be nil (unreachable or not provisioned); resolution then
// falls through to the next source in line.
func Resolve(authority *AuthorityQuota, overlay *OverlayStatus) Status {
	def := Unprovisioned()
	if authority == nil {
		authority = &AuthorityQuota{}
	}
	if overlay == nil {
		overlay = &OverlayStatus{}
	}

	return Status{
		DailyQuota:       coalesceInt(overlay.DailyQuota, authority.DailyQuota, def.DailyQuota),
		DailyUsed:        coalesceInt(overlay.DailyUsed, authority.DailyUsed, def.DailyUsed),
		DailyRemaining:   coalesceInt(overlay.DailyRemaining, authority.DailyRemaining, def.DailyRemaining),
		MonthlyQuota:     coalesceInt(authority.QuotaLimit, nil, def.MonthlyQuota),
		MonthlyUsed:      coalesceInt(authority.QuotaUsed, nil, def.MonthlyUsed),
		MonthlyRemaining: coalesceInt(authority.QuotaRemaining, nil, def.MonthlyRemaining),
		CurrentGroup:     coalesceStr(overlay.CurrentGroup, authority.Group, def.CurrentGroup),
		OriginalGroup:    coalesceStr(overlay.OriginalGroup, authority.Group, def.OriginalGroup),
		IsFallback:       coalesceBool(overlay.IsFallback, nil, def.IsFallback),
		Balance:          coalesceFloat(authority.Balance, nil, def.Balance),
		Allowed:          coalesceBool(authority.Allowed, nil, def.Allowed),
	}
}

func coalesceInt(first, second *int64, fallback int64) int64 {
	if first != nil {
		return *first
	}
	if second != nil {
		return *second
	}
	return fallback
}

func coalesceStr(first, second *string, fallback string) string {
	if first != nil {
		return *first
	}
	if second != nil {
		return *second
	}
	return fallback
}

func coalesceBool(first, second *bool, fallback bool) bool {
	if first != nil {
		return *first
	}
	if second != nil {
		return *second
	}
	return fallback
}

func coalesceFloat(first, second *float64, fallback float64) float64 {
	if first != nil {
		return *first
	}
	if second != nil {
		return *second
	}
	return fallback
}
