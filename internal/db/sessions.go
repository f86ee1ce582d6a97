package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kidandcat/issuedeck/internal/core"
)

const (
	magicTokenTTL = 15 * time.Minute
	sessionTTL    = 30 * 24 * time.Hour
)

// CreateMagicToken issues a login token for the email.
func (s *Store) CreateMagicToken(ctx context.Context, email string) (string, error) {
	token := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO magic_tokens (email, token, expires_at) VALUES (?, ?, ?)",
		email, token, time.Now().Add(magicTokenTTL))
	if err != nil {
		return "", fmt.Errorf("insert magic token: %w", err)
	}
	return token, nil
}

// ConsumeMagicToken validates and burns a magic token, returning the email it
// was issued for.
func (s *Store) ConsumeMagicToken(ctx context.Context, token string) (string, error) {
	var email string
	var used int
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT email, used, expires_at FROM magic_tokens WHERE token = ?", token).
		Scan(&email, &used, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", core.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("scan magic token: %w", err)
	}
	if used != 0 {
		return "", &core.ConflictError{Reason: "token already used"}
	}
	if time.Now().After(expiresAt) {
		return "", core.ErrNotFound
	}
	if _, err := s.db.ExecContext(ctx,
		"UPDATE magic_tokens SET used = 1 WHERE token = ?", token); err != nil {
		return "", fmt.Errorf("mark token used: %w", err)
	}
	return email, nil
}

// CreateSession opens a session for the user and returns its token.
func (s *Store) CreateSession(ctx context.Context, userID int64) (string, error) {
	token := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO sessions (user_id, token, expires_at) VALUES (?, ?, ?)",
		userID, token, time.Now().Add(sessionTTL))
	if err != nil {
		return "", fmt.Errorf("insert session: %w", err)
	}
	return token, nil
}

// GetUserBySession resolves a session token to its user, expiring stale
// sessions along the way.
func (s *Store) GetUserBySession(ctx context.Context, token string) (*core.User, error) {
	var userID int64
	var expiresAt time.Time
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, expires_at FROM sessions WHERE token = ?", token).
		Scan(&userID, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}
	if time.Now().After(expiresAt) {
		s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
		return nil, core.ErrNotFound
	}
	return s.GetUserByID(ctx, userID)
}

// DeleteSession logs the session out.
func (s *Store) DeleteSession(ctx context.Context, token string) {
	s.db.ExecContext(ctx, "DELETE FROM sessions WHERE token = ?", token)
}
