package remote

import (
	"context"
	"fmt"
	"net/url"

	"github.com/artpar/quotagate/domain/quota"
	"github.com/artpar/quotagate/ports"
)

// SubscriptionClient talks to the subscription overlay, which computes
// plan-tier and fallback-group figures on top of the billing authority.
// Callers treat every failure as "overlay absent" - it is best-effort.
//
// API Contract:
//
//	GET /api/v1/quota/{id}/status
//	Response: {"daily_quota": 50, "daily_used": 3, "daily_remaining": 47,
//	           "current_group": "fallback-free", "original_group": "pro",
//	           "is_fallback": true}
type SubscriptionClient struct {
	client *Client
}

// NewSubscriptionClient creates a subscription overlay client.
func NewSubscriptionClient(client *Client) *SubscriptionClient {
	return &SubscriptionClient{client: client}
}

// Status fetches the overlay's view of an account.
func (s *SubscriptionClient) Status(ctx context.Context, accountID string) (*quota.OverlayStatus, error) {
	var resp quota.OverlayStatus
	if err := s.client.Get(ctx, "/api/v1/quota/"+url.PathEscape(accountID)+"/status", nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch overlay status: %w", err)
	}
	return &resp, nil
}

// Ensure interface compliance.
var _ ports.SubscriptionOverlay = (*SubscriptionClient)(nil)
