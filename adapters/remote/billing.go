package remote

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"strconv"

	"github.com/artpar/quotagate/domain/quota"
	"github.com/artpar/quotagate/domain/usage"
	"github.com/artpar/quotagate/ports"
)

// BillingClient talks to the billing authority, the system of record for
// usage debits and balance.
//
// API Contract:
//
//	GET /api/v1/billing/quota/{id}
//	Response: {"daily_quota": 100, "quota_limit": 500, "quota_used": 10,
//	           "quota_remaining": 490, "group": "free", "balance": 1.5,
//	           "allowed": true, ...}
//
//	GET /api/v1/billing/stats/{id}?limit=10
//	Response: {"records": [{"id": "...", "timestamp": "...", "model": "...",
//	           "provider": "...", "input_tokens": 1, "output_tokens": 2,
//	           "total_cost": 0.003}, ...]}
//
//	GET /api/v1/billing/sync/{id}/stream
//	Response: text/event-stream of live quota events
type BillingClient struct {
	client *Client
}

// NewBillingClient creates a billing authority client.
func NewBillingClient(client *Client) *BillingClient {
	return &BillingClient{client: client}
}

// Quota fetches the current quota figures for a billing account.
func (b *BillingClient) Quota(ctx context.Context, accountID string) (*quota.AuthorityQuota, error) {
	var resp quota.AuthorityQuota
	if err := b.client.Get(ctx, "/api/v1/billing/quota/"+url.PathEscape(accountID), nil, &resp); err != nil {
		return nil, fmt.Errorf("fetch quota: %w", err)
	}
	return &resp, nil
}

// Ledger fetches the most recent usage records for a billing account.
func (b *BillingClient) Ledger(ctx context.Context, accountID string, limit int) ([]usage.LedgerRecord, error) {
	query := url.Values{"limit": []string{strconv.Itoa(limit)}}

	var resp struct {
		Records []usage.LedgerRecord `json:"records"`
	}
	if err := b.client.Get(ctx, "/api/v1/billing/stats/"+url.PathEscape(accountID), query, &resp); err != nil {
		return nil, fmt.Errorf("fetch ledger: %w", err)
	}
	return resp.Records, nil
}

// OpenStream opens the authority's live event stream for an account.
func (b *BillingClient) OpenStream(ctx context.Context, accountID string) (io.ReadCloser, error) {
	rc, err := b.client.OpenStream(ctx, "/api/v1/billing/sync/"+url.PathEscape(accountID)+"/stream")
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	return rc, nil
}

// Ensure interface compliance.
var _ ports.BillingAuthority = (*BillingClient)(nil)
