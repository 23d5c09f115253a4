package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/artpar/quotagate/ports"
)

// ProfileStore persists caller-to-billing-account links in SQLite.
type ProfileStore struct {
	db *DB
}

// NewProfileStore creates a profile store.
func NewProfileStore(db *DB) *ProfileStore {
	return &ProfileStore{db: db}
}

// Get returns the profile for a caller.
func (s *ProfileStore) Get(ctx context.Context, userID string) (ports.Profile, error) {
	var p ports.Profile
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, billing_account_id, created_at, updated_at
		FROM profiles WHERE user_id = ?
	`, userID).Scan(&p.UserID, &p.BillingAccountID, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return ports.Profile{}, ports.ErrNotFound
	}
	if err != nil {
		return ports.Profile{}, fmt.Errorf("get profile: %w", err)
	}
	return p, nil
}

// Link sets the billing account id for a caller, creating the profile if
// needed.
func (s *ProfileStore) Link(ctx context.Context, userID, billingAccountID string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, billing_account_id, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			billing_account_id = excluded.billing_account_id,
			updated_at = excluded.updated_at
	`, userID, billingAccountID, now, now)
	if err != nil {
		return fmt.Errorf("link profile: %w", err)
	}
	return nil
}

// Unlink clears the billing account id for a caller.
func (s *ProfileStore) Unlink(ctx context.Context, userID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET billing_account_id = '', updated_at = ?
		WHERE user_id = ?
	`, time.Now().UTC(), userID)
	if err != nil {
		return fmt.Errorf("unlink profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// Ensure interface compliance.
var _ ports.ProfileStore = (*ProfileStore)(nil)
