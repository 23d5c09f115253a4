package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/artpar/quotagate/ports"
)

// TokenStore persists API tokens in SQLite. Secrets are bcrypt-hashed by the
// caller before they reach this store; only the prefix is kept in clear for
// lookup.
type TokenStore struct {
	db *DB
}

// NewTokenStore creates a token store.
func NewTokenStore(db *DB) *TokenStore {
	return &TokenStore{db: db}
}

// Create stores a new token.
func (s *TokenStore) Create(ctx context.Context, t ports.APIToken) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_tokens (id, user_id, name, prefix, hash, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, t.ID, t.UserID, t.Name, t.Prefix, t.Hash, t.CreatedAt)
	if err != nil {
		return fmt.Errorf("create token: %w", err)
	}
	return nil
}

// GetByPrefix returns all tokens sharing a prefix.
func (s *TokenStore) GetByPrefix(ctx context.Context, prefix string) ([]ports.APIToken, error) {
	return s.queryTokens(ctx, `
		SELECT id, user_id, name, prefix, hash, created_at, last_used
		FROM api_tokens WHERE prefix = ?
	`, prefix)
}

// List returns all tokens, optionally filtered by user.
func (s *TokenStore) List(ctx context.Context, userID string) ([]ports.APIToken, error) {
	if userID != "" {
		return s.queryTokens(ctx, `
			SELECT id, user_id, name, prefix, hash, created_at, last_used
			FROM api_tokens WHERE user_id = ? ORDER BY created_at
		`, userID)
	}
	return s.queryTokens(ctx, `
		SELECT id, user_id, name, prefix, hash, created_at, last_used
		FROM api_tokens ORDER BY created_at
	`)
}

func (s *TokenStore) queryTokens(ctx context.Context, query string, args ...any) ([]ports.APIToken, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tokens: %w", err)
	}
	defer rows.Close()

	var tokens []ports.APIToken
	for rows.Next() {
		var t ports.APIToken
		var lastUsed sql.NullTime
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &t.Prefix, &t.Hash, &t.CreatedAt, &lastUsed); err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		if lastUsed.Valid {
			t.LastUsed = &lastUsed.Time
		}
		tokens = append(tokens, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}
	return tokens, nil
}

// TouchLastUsed records when a token last authenticated a request.
func (s *TokenStore) TouchLastUsed(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE api_tokens SET last_used = ? WHERE id = ?`, at, id)
	if err != nil {
		return fmt.Errorf("touch token: %w", err)
	}
	return nil
}

// Delete removes a token.
func (s *TokenStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM api_tokens WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete token: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ports.ErrNotFound
	}
	return nil
}

// Ensure interface compliance.
var _ ports.TokenStore = (*TokenStore)(nil)
