// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
package ports

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/artpar/quotagate/domain/quota"
	"github.com/artpar/quotagate/domain/usage"
)

// ErrNotFound is returned by stores when a record does not exist.
var ErrNotFound = errors.New("not found")

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// BillingAuthority is the system of record for usage debits and balance.
// All methods hit the external billing service over HTTP.
type BillingAuthority interface {
	// Quota fetches the current quota figures for a billing account.
	Quota(ctx context.Context, accountID string) (*quota.AuthorityQuota, error)

	// Ledger fetches the most recent usage records for a billing account.
	Ledger(ctx context.Context, accountID string, limit int) ([]usage.LedgerRecord, error)

	// OpenStream opens the authority's live event stream for an account.
	// The returned reader delivers raw SSE bytes and must be closed by the
	// caller. Cancelling ctx unblocks any pending read.
	OpenStream(ctx context.Context, accountID string) (io.ReadCloser, error)
}

// SubscriptionOverlay provides plan-tier and fallback-group figures that
// override selected billing authority fields.
type SubscriptionOverlay interface {
	// Status fetches the overlay's view of an account. Callers treat any
	// error as "overlay absent" - the overlay is best-effort by contract.
	Status(ctx context.Context, accountID string) (*quota.OverlayStatus, error)
}

// Profile links an authenticated caller to a billing account.
type Profile struct {
	UserID           string
	BillingAccountID string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ProfileStore persists caller-to-billing-account links.
type ProfileStore interface {
	// Get returns the profile for a caller. Returns ErrNotFound when the
	// caller has never been linked.
	Get(ctx context.Context, userID string) (Profile, error)

	// Link sets the billing account id for a caller, creating the profile
	// if needed.
	Link(ctx context.Context, userID, billingAccountID string) error

	// Unlink clears the billing account id for a caller.
	Unlink(ctx context.Context, userID string) error
}

// APIToken is a long-lived credential for programmatic callers.
// The secret is bcrypt-hashed at rest; only the prefix is stored in clear.
type APIToken struct {
	ID        string
	UserID    string
	Name      string
	Prefix    string
	Hash      []byte
	CreatedAt time.Time
	LastUsed  *time.Time
}

// TokenStore persists API tokens.
type TokenStore interface {
	// Create stores a new token.
	Create(ctx context.Context, t APIToken) error

	// GetByPrefix returns all tokens sharing a prefix. Hash comparison
	// happens in the caller.
	GetByPrefix(ctx context.Context, prefix string) ([]APIToken, error)

	// TouchLastUsed records when a token last authenticated a request.
	TouchLastUsed(ctx context.Context, id string, at time.Time) error

	// Delete removes a token.
	Delete(ctx context.Context, id string) error
}
