package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrUnknownToken is returned for credentials with no api_keys row.
var ErrUnknownToken = errors.New("unknown api token")

// APIKeyStore resolves bearer tokens to user IDs. It implements
// session.Verifier against the api_keys table.
type APIKeyStore struct {
	db *PostgresDB
}

func NewAPIKeyStore(db *PostgresDB) *APIKeyStore {
	return &APIKeyStore{db: db}
}

func (s *APIKeyStore) Verify(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrUnknownToken
	}
	var userID string
	err := s.db.Pool.QueryRow(ctx,
		"SELECT user_id FROM api_keys WHERE token = $1", token).Scan(&userID)
	if err == pgx.ErrNoRows {
		return "", ErrUnknownToken
	}
	if err != nil {
		return "", fmt.Errorf("failed to verify token: %w", err)
	}
	return userID, nil
}

// Create registers a token for a user.
func (s *APIKeyStore) Create(ctx context.Context, token, userID string) error {
	_, err := s.db.Pool.Exec(ctx,
		"INSERT INTO api_keys (token, user_id) VALUES ($1, $2) ON CONFLICT (token) DO UPDATE SET user_id = $2",
		token, userID)
	if err != nil {
		return fmt.Errorf("failed to create api key: %w", err)
	}
	return nil
}
