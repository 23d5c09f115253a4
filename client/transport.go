package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/artpar/quotagate/domain/quota"
	"github.com/artpar/quotagate/domain/usage"
)

// GatewayClient talks to the quota gateway over HTTP. It implements
// StreamOpener and QuotaFetcher for use with Consumer.
type GatewayClient struct {
	httpClient   *http.Client
	streamClient *http.Client
	baseURL      string
	token        string
}

var (
	_ StreamOpener = (*GatewayClient)(nil)
	_ QuotaFetcher = (*GatewayClient)(nil)
)

// NewGatewayClient creates a gateway client. token is the bearer credential
// for every request.
func NewGatewayClient(baseURL, token string) *GatewayClient {
	return &GatewayClient{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		// Stream requests stay open indefinitely; a client timeout would
		// sever them mid-session.
		streamClient: &http.Client{
			Transport: &http.Transport{DisableCompression: true},
		},
		baseURL: baseURL,
		token:   token,
	}
}

// Open subscribes to the gateway's live event stream for an account.
func (g *GatewayClient) Open(ctx context.Context, accountID string) (io.ReadCloser, error) {
	u := g.baseURL + "/stream?" + url.Values{"accountId": {accountID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create stream request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "text/event-stream")

	resp, err := g.streamClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("open stream: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("open stream: unexpected status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// QuotaStatus fetches the caller's aggregated quota snapshot.
func (g *GatewayClient) QuotaStatus(ctx context.Context) (quota.Status, error) {
	var status quota.Status
	if err := g.getJSON(ctx, "/quota/status", &status); err != nil {
		return quota.Status{}, err
	}
	return status, nil
}

// UsageHistory fetches the caller's recent usage records, newest first.
func (g *GatewayClient) UsageHistory(ctx context.Context, limit int) ([]usage.Record, error) {
	path := "/quota/history"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var records []usage.Record
	if err := g.getJSON(ctx, path, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func (g *GatewayClient) getJSON(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("get %s: unexpected status %d", path, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
