package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/kidandcat/issuedeck/internal/core"
)

// CreateProject inserts a project owned by ownerID. The owner is not added to
// the member list; ownership alone already grants manager capability.
func (s *Store) CreateProject(ctx context.Context, name, description string, ownerID int64) (*core.Project, error) {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO projects (name, description, owner_id) VALUES (?, ?, ?)",
		name, description, ownerID)
	if err != nil {
		return nil, fmt.Errorf("insert project: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetProject(ctx, id)
}

// GetProject fetches a project with its member list, or core.ErrNotFound.
func (s *Store) GetProject(ctx context.Context, id int64) (*core.Project, error) {
	var p core.Project
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, description, owner_id, created_at FROM projects WHERE id = ?", id).
		Scan(&p.ID, &p.Name, &p.Description, &p.OwnerID, &p.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan project: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT pm.user_id, pm.role, u.id, u.email, u.name, u.role, u.created_at
		FROM project_members pm
		JOIN users u ON u.id = pm.user_id
		WHERE pm.project_id = ?
		ORDER BY u.name`, id)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var m core.Member
		var role sql.NullString
		var u core.User
		if err := rows.Scan(&m.UserID, &role, &u.ID, &u.Email, &u.Name, &u.Role, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		if role.Valid {
			pr := core.ProjectRole(role.String)
			m.Role = &pr
		}
		m.User = &u
		p.Members = append(p.Members, m)
	}
	return &p, rows.Err()
}

// UpdateProject changes name and description.
func (s *Store) UpdateProject(ctx context.Context, id int64, name, description string) (*core.Project, error) {
	res, err := s.db.ExecContext(ctx,
		"UPDATE projects SET name = ?, description = ? WHERE id = ?", name, description, id)
	if err != nil {
		return nil, fmt.Errorf("update project: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, core.ErrNotFound
	}
	return s.GetProject(ctx, id)
}

// ListProjectsForUser returns projects the user can see: all of them for
// global admins, otherwise owned projects plus memberships.
func (s *Store) ListProjectsForUser(ctx context.Context, user *core.User) ([]core.Project, error) {
	query := `
		SELECT DISTINCT p.id FROM projects p
		LEFT JOIN project_members pm ON pm.project_id = p.id
		WHERE p.owner_id = ? OR pm.user_id = ?
		ORDER BY p.id`
	args := []any{user.ID, user.ID}
	if user.Role == core.RoleAdmin {
		query = "SELECT id FROM projects ORDER BY id"
		args = nil
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query projects: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan project id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var projects []core.Project
	for _, id := range ids {
		p, err := s.GetProject(ctx, id)
		if err != nil {
			return nil, err
		}
		projects = append(projects, *p)
	}
	return projects, nil
}

// AddMember adds or updates a project membership.
func (s *Store) AddMember(ctx context.Context, projectID, userID int64, role *core.ProjectRole) error {
	var r any
	if role != nil {
		r = string(*role)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO project_members (project_id, user_id, role) VALUES (?, ?, ?)
		ON CONFLICT(project_id, user_id) DO UPDATE SET role = excluded.role`,
		projectID, userID, r)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

// CreateInvitation records a pending invitation with a fresh token.
func (s *Store) CreateInvitation(ctx context.Context, projectID, userID, invitedBy int64) (*core.Invitation, error) {
	token := uuid.NewString()
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO invitations (project_id, user_id, invited_by, token) VALUES (?, ?, ?, ?)",
		projectID, userID, invitedBy, token)
	if err != nil {
		return nil, fmt.Errorf("insert invitation: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetInvitation(ctx, id)
}

// GetInvitation fetches an invitation with joined display fields.
func (s *Store) GetInvitation(ctx context.Context, id int64) (*core.Invitation, error) {
	var inv core.Invitation
	err := s.db.QueryRowContext(ctx, `
		SELECT i.id, i.project_id, i.user_id, i.invited_by, i.token, i.state, i.created_at,
			p.name, inviter.name, invitee.email
		FROM invitations i
		JOIN projects p ON p.id = i.project_id
		JOIN users inviter ON inviter.id = i.invited_by
		JOIN users invitee ON invitee.id = i.user_id
		WHERE i.id = ?`, id).
		Scan(&inv.ID, &inv.ProjectID, &inv.UserID, &inv.InvitedBy, &inv.Token,
			&inv.State, &inv.CreatedAt, &inv.ProjectName, &inv.InviterName, &inv.InviteeEmail)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan invitation: %w", err)
	}
	return &inv, nil
}

// ListInvitationsForUser returns the user's pending invitations.
func (s *Store) ListInvitationsForUser(ctx context.Context, userID int64) ([]core.Invitation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.project_id, i.user_id, i.invited_by, i.token, i.state, i.created_at,
			p.name, inviter.name, invitee.email
		FROM invitations i
		JOIN projects p ON p.id = i.project_id
		JOIN users inviter ON inviter.id = i.invited_by
		JOIN users invitee ON invitee.id = i.user_id
		WHERE i.user_id = ? AND i.state = 'pending'
		ORDER BY i.created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("query invitations: %w", err)
	}
	defer rows.Close()

	var invs []core.Invitation
	for rows.Next() {
		var inv core.Invitation
		if err := rows.Scan(&inv.ID, &inv.ProjectID, &inv.UserID, &inv.InvitedBy, &inv.Token,
			&inv.State, &inv.CreatedAt, &inv.ProjectName, &inv.InviterName, &inv.InviteeEmail); err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		invs = append(invs, inv)
	}
	return invs, rows.Err()
}

// ResolveInvitation moves a pending invitation to accepted or rejected.
// Accepting also adds the invitee to the project's member list, in the same
// transaction. A non-pending invitation cannot be resolved again.
func (s *Store) ResolveInvitation(ctx context.Context, id int64, state core.InvitationState) (*core.Invitation, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"UPDATE invitations SET state = ? WHERE id = ? AND state = 'pending'", state, id)
	if err != nil {
		return nil, fmt.Errorf("update invitation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either missing or already resolved.
		var exists bool
		if err := tx.QueryRowContext(ctx,
			"SELECT EXISTS(SELECT 1 FROM invitations WHERE id = ?)", id).Scan(&exists); err != nil {
			return nil, fmt.Errorf("check invitation: %w", err)
		}
		if !exists {
			return nil, core.ErrNotFound
		}
		return nil, &core.ConflictError{Reason: "invitation already resolved"}
	}

	if state == core.InvitationAccepted {
		var projectID, userID int64
		if err := tx.QueryRowContext(ctx,
			"SELECT project_id, user_id FROM invitations WHERE id = ?", id).
			Scan(&projectID, &userID); err != nil {
			return nil, fmt.Errorf("read invitation: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO project_members (project_id, user_id, role) VALUES (?, ?, NULL)
			ON CONFLICT(project_id, user_id) DO NOTHING`, projectID, userID); err != nil {
			return nil, fmt.Errorf("add invited member: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetInvitation(ctx, id)
}
