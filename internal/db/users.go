package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kidandcat/issuedeck/internal/core"
)

// CreateUser inserts a user with the given global role.
func (s *Store) CreateUser(ctx context.Context, email, name string, role core.Role) (*core.User, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (email, name, role) VALUES (?, ?, ?)", email, name, role)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetUserByID(ctx, id)
}

// GetUserByID fetches a user, or core.ErrNotFound.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*core.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		"SELECT id, email, name, role, created_at FROM users WHERE id = ?", id))
}

// GetUserByEmail fetches a user by email, or core.ErrNotFound.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*core.User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx,
		"SELECT id, email, name, role, created_at FROM users WHERE email = ?", email))
}

func (s *Store) scanUser(row *sql.Row) (*core.User, error) {
	var u core.User
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// ListUsers returns all users ordered by id. Used for assignee selection.
func (s *Store) ListUsers(ctx context.Context) ([]core.User, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, email, name, role, created_at FROM users ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	var users []core.User
	for rows.Next() {
		var u core.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	return users, rows.Err()
}

// EnsureAdmin creates the user as admin, or promotes an existing user.
// Called at boot for every configured admin email.
func (s *Store) EnsureAdmin(ctx context.Context, email, name string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (email, name, role) VALUES (?, ?, 'admin')
		ON CONFLICT(email) DO UPDATE SET role = 'admin'`, email, name)
	if err != nil {
		return fmt.Errorf("ensure admin %s: %w", email, err)
	}
	return nil
}
