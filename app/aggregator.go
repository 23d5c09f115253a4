// Package app provides application services that orchestrate domain logic.
package app

import (
	"context"
	"errors"
	"sort"

	"github.com/artpar/quotagate/adapters/metrics"
	"github.com/artpar/quotagate/domain/quota"
	"github.com/artpar/quotagate/domain/usage"
	"github.com/artpar/quotagate/ports"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

// QuotaService merges quota figures from the billing authority and the
// subscription overlay into one normalized snapshot, and translates the
// authority's raw ledger into usage records.
//
// Both read paths must never fail the caller: upstream instability degrades
// to the unprovisioned defaults (quota) or an empty list (history), logged
// but not surfaced.
type QuotaService struct {
	profiles ports.ProfileStore
	billing  ports.BillingAuthority
	overlay  ports.SubscriptionOverlay
	metrics  *metrics.Collector
	logger   zerolog.Logger
}

// QuotaDeps contains dependencies for QuotaService.
type QuotaDeps struct {
	Profiles ports.ProfileStore
	Billing  ports.BillingAuthority
	Overlay  ports.SubscriptionOverlay
	Metrics  *metrics.Collector
	Logger   zerolog.Logger
}

// NewQuotaService creates a new quota aggregation service.
func NewQuotaService(deps QuotaDeps) *QuotaService {
	return &QuotaService{
		profiles: deps.Profiles,
		billing:  deps.Billing,
		overlay:  deps.Overlay,
		metrics:  deps.Metrics,
		logger:   deps.Logger.With().Str("component", "quota").Logger(),
	}
}

// GetQuotaStatus returns the caller's normalized quota snapshot.
//
// Callers with no linked billing account get the unprovisioned default
// (a fixed contract). Otherwise the billing authority is queried, the
// subscription overlay is consulted best-effort, and the two are resolved
// under the field precedence in quota.Resolve. Authority failure degrades
// to the full default.
func (s *QuotaService) GetQuotaStatus(ctx context.Context, userID string) quota.Status {
	accountID, ok := s.linkedAccount(ctx, userID)
	if !ok {
		return quota.Unprovisioned()
	}

	authority, err := s.billing.Quota(ctx, accountID)
	if err != nil {
		s.logger.Warn().Err(err).Str("account_id", accountID).Msg("billing authority unavailable, serving defaults")
		s.metrics.UpstreamErrors.WithLabelValues("billing").Inc()
		s.metrics.AggregatorDegraded.Inc()
		return quota.Unprovisioned()
	}

	var overlay *quota.OverlayStatus
	if s.overlay != nil {
		overlay, err = s.overlay.Status(ctx, accountID)
		if err != nil {
			// The overlay might not be running; treat as absent.
			s.logger.Debug().Err(err).Str("account_id", accountID).Msg("subscription overlay absent")
			s.metrics.UpstreamErrors.WithLabelValues("subscription").Inc()
			overlay = nil
		}
	}

	return quota.Resolve(authority, overlay)
}

// GetUsageHistory returns the caller's most recent usage records,
// most-recent-first, capped at limit. Unlinked callers and authority
// failures yield an empty list, never an error.
func (s *QuotaService) GetUsageHistory(ctx context.Context, userID string, limit int) []usage.Record {
	accountID, ok := s.linkedAccount(ctx, userID)
	if !ok {
		return []usage.Record{}
	}

	ledger, err := s.billing.Ledger(ctx, accountID, limit)
	if err != nil {
		s.logger.Warn().Err(err).Str("account_id", accountID).Msg("usage ledger unavailable")
		s.metrics.UpstreamErrors.WithLabelValues("billing").Inc()
		return []usage.Record{}
	}

	sort.SliceStable(ledger, func(i, j int) bool {
		return ledger[i].When().After(ledger[j].When())
	})
	if limit > 0 && len(ledger) > limit {
		ledger = ledger[:limit]
	}

	return lo.Map(ledger, func(r usage.LedgerRecord, _ int) usage.Record {
		return usage.FromLedger(r)
	})
}

// linkedAccount resolves the caller's billing account id. A missing profile
// or an empty link means the caller is not provisioned upstream.
func (s *QuotaService) linkedAccount(ctx context.Context, userID string) (string, bool) {
	profile, err := s.profiles.Get(ctx, userID)
	if err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			s.logger.Warn().Err(err).Str("user_id", userID).Msg("profile lookup failed")
		}
		return "", false
	}
	if profile.BillingAccountID == "" {
		return "", false
	}
	return profile.BillingAccountID, true
}
