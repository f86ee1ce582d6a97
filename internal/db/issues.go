package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/kidandcat/issuedeck/internal/core"
)

const issueColumns = `
	i.id, i.project_id, i.title, i.description, i.status, i.priority, i.assignee_id,
	i.total_tracked_seconds, i.is_running, i.timer_started_at, i.created_at,
	u.id, u.email, u.name, u.role, u.created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIssue(row rowScanner) (*core.Issue, error) {
	var i core.Issue
	var assigneeID sql.NullInt64
	var running int
	var startedAt sql.NullInt64
	var uID sql.NullInt64
	var uEmail, uName, uRole sql.NullString
	var uCreated sql.NullTime

	err := row.Scan(&i.ID, &i.ProjectID, &i.Title, &i.Description, &i.Status, &i.Priority,
		&assigneeID, &i.TotalTrackedSeconds, &running, &startedAt, &i.CreatedAt,
		&uID, &uEmail, &uName, &uRole, &uCreated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan issue: %w", err)
	}

	if assigneeID.Valid {
		i.AssigneeID = &assigneeID.Int64
	}
	i.IsRunning = running != 0
	if startedAt.Valid {
		t := time.Unix(startedAt.Int64, 0).UTC()
		i.TimerStartedAt = &t
	}
	if uID.Valid {
		i.Assignee = &core.User{
			ID:        uID.Int64,
			Email:     uEmail.String,
			Name:      uName.String,
			Role:      core.Role(uRole.String),
			CreatedAt: uCreated.Time,
		}
	}
	return &i, nil
}

// CreateIssue inserts a new issue.
func (s *Store) CreateIssue(ctx context.Context, issue *core.Issue) (*core.Issue, error) {
	var assignee any
	if issue.AssigneeID != nil {
		assignee = *issue.AssigneeID
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO issues (project_id, title, description, status, priority, assignee_id)
		VALUES (?, ?, ?, ?, ?, ?)`,
		issue.ProjectID, issue.Title, issue.Description, issue.Status, issue.Priority, assignee)
	if err != nil {
		return nil, fmt.Errorf("insert issue: %w", err)
	}
	id, _ := res.LastInsertId()
	return s.GetIssue(ctx, id)
}

// GetIssue fetches an issue with its assignee joined, or core.ErrNotFound.
func (s *Store) GetIssue(ctx context.Context, id int64) (*core.Issue, error) {
	return scanIssue(s.db.QueryRowContext(ctx, `
		SELECT `+issueColumns+`
		FROM issues i
		LEFT JOIN users u ON u.id = i.assignee_id
		WHERE i.id = ?`, id))
}

// ListIssuesByProject returns the project's issues in creation order.
func (s *Store) ListIssuesByProject(ctx context.Context, projectID int64) ([]core.Issue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+issueColumns+`
		FROM issues i
		LEFT JOIN users u ON u.id = i.assignee_id
		WHERE i.project_id = ?
		ORDER BY i.created_at, i.id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("query issues: %w", err)
	}
	defer rows.Close()

	var issues []core.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		issues = append(issues, *issue)
	}
	return issues, rows.Err()
}

// MutateIssue runs fn against the current row inside a transaction and writes
// the result back. This is the authoritative check-and-set point: the row fn
// sees is the row the update applies to, so invariant checks inside fn (timer
// exclusivity above all) cannot race with a concurrent mutation. If fn returns
// an error the transaction is rolled back and nothing changes.
func (s *Store) MutateIssue(ctx context.Context, id int64, fn func(issue *core.Issue) error) (*core.Issue, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	issue, err := scanIssue(tx.QueryRowContext(ctx, `
		SELECT `+issueColumns+`
		FROM issues i
		LEFT JOIN users u ON u.id = i.assignee_id
		WHERE i.id = ?`, id))
	if err != nil {
		return nil, err
	}

	if err := fn(issue); err != nil {
		return nil, err
	}

	var assignee any
	if issue.AssigneeID != nil {
		assignee = *issue.AssigneeID
	}
	var startedAt any
	if issue.TimerStartedAt != nil {
		startedAt = issue.TimerStartedAt.Unix()
	}
	running := 0
	if issue.IsRunning {
		running = 1
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE issues SET title = ?, description = ?, status = ?, priority = ?,
			assignee_id = ?, total_tracked_seconds = ?, is_running = ?, timer_started_at = ?
		WHERE id = ?`,
		issue.Title, issue.Description, issue.Status, issue.Priority,
		assignee, issue.TotalTrackedSeconds, running, startedAt, id); err != nil {
		return nil, fmt.Errorf("update issue: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetIssue(ctx, id)
}
