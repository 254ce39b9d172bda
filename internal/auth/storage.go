// Package auth manages API client tokens and extracts them from requests.
//
// The claimed identity for enrollment and verification always derives from
// the authenticated token, never from unauthenticated request payload fields.
package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"voiceauth/pkg/tokens"
)

// Common errors
var (
	ErrUnknownToken = errors.New("auth: unknown or inactive token")
)

// TokenInfo describes an authenticated API client.
type TokenInfo struct {
	TokenID    string
	ClientName string
	// Subject binds the token to one end-user identity. Tokens with a
	// subject may only act for that user.
	Subject string
	// Trusted marks internal callers allowed to pass a user identity from
	// their own authenticated session and to read raw scores.
	Trusted    bool
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// TokenStore persists hashed API tokens in the shared engine database.
type TokenStore struct {
	db *sql.DB
}

// NewTokenStore creates a token store on an already-opened database.
func NewTokenStore(db *sql.DB) *TokenStore {
	return &TokenStore{db: db}
}

// Create mints a new token for a client and stores its hash. The raw token
// is returned exactly once and never persisted.
func (s *TokenStore) Create(ctx context.Context, clientName, subject string, trusted bool) (string, error) {
	if clientName == "" {
		return "", errors.New("auth: client name is required")
	}

	raw, err := tokens.GenerateToken()
	if err != nil {
		return "", err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO auth_tokens (token_id, client_name, subject, trusted, hashed_token)
		 VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), clientName, subject, trusted, tokens.HashToken(raw))
	if err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}
	return raw, nil
}

// Lookup resolves a raw token to its client info, updating last-used time.
// Returns ErrUnknownToken for tokens that are malformed, unknown or inactive.
func (s *TokenStore) Lookup(ctx context.Context, rawToken string) (*TokenInfo, error) {
	if !tokens.ValidateToken(rawToken) {
		return nil, ErrUnknownToken
	}

	var (
		info     TokenInfo
		subject  sql.NullString
		lastUsed sql.NullTime
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT token_id, client_name, subject, trusted, created_at, last_used_at
		 FROM auth_tokens
		 WHERE hashed_token = ? AND is_active = 1`,
		tokens.HashToken(rawToken)).Scan(
		&info.TokenID, &info.ClientName, &subject, &info.Trusted, &info.CreatedAt, &lastUsed)
	if err == sql.ErrNoRows {
		return nil, ErrUnknownToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up token: %w", err)
	}
	info.Subject = subject.String
	info.LastUsedAt = lastUsed.Time

	_, err = s.db.ExecContext(ctx,
		"UPDATE auth_tokens SET last_used_at = ? WHERE token_id = ?",
		time.Now().UTC(), info.TokenID)
	if err != nil {
		return nil, fmt.Errorf("failed to update token usage: %w", err)
	}
	return &info, nil
}

// List returns all tokens (without hashes), newest first.
func (s *TokenStore) List(ctx context.Context) ([]TokenInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT token_id, client_name, subject, trusted, created_at, last_used_at
		 FROM auth_tokens WHERE is_active = 1 ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tokens: %w", err)
	}
	defer rows.Close()

	var out []TokenInfo
	for rows.Next() {
		var (
			info     TokenInfo
			subject  sql.NullString
			lastUsed sql.NullTime
		)
		if err := rows.Scan(&info.TokenID, &info.ClientName, &subject, &info.Trusted,
			&info.CreatedAt, &lastUsed); err != nil {
			return nil, err
		}
		info.Subject = subject.String
		info.LastUsedAt = lastUsed.Time
		out = append(out, info)
	}
	return out, rows.Err()
}

// Deactivate disables a token by ID. Idempotent.
func (s *TokenStore) Deactivate(ctx context.Context, tokenID string) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE auth_tokens SET is_active = 0 WHERE token_id = ?", tokenID)
	if err != nil {
		return fmt.Errorf("failed to deactivate token: %w", err)
	}
	return nil
}
