package db

import (
	"context"
	"fmt"
	"time"

	"github.com/kidandcat/issuedeck/internal/core"
)

// RoleCounts returns the number of users per global role.
func (s *Store) RoleCounts(ctx context.Context) (map[core.Role]int, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT role, COUNT(*) FROM users GROUP BY role")
	if err != nil {
		return nil, fmt.Errorf("query role counts: %w", err)
	}
	defer rows.Close()

	counts := map[core.Role]int{}
	for rows.Next() {
		var role core.Role
		var n int
		if err := rows.Scan(&role, &n); err != nil {
			return nil, fmt.Errorf("scan role count: %w", err)
		}
		counts[role] = n
	}
	return counts, rows.Err()
}

// ProjectRollup is one project's issue and time-tracking totals.
type ProjectRollup struct {
	ProjectID           int64   `json:"projectId"`
	Name                string  `json:"name"`
	OwnerName           string  `json:"ownerName"`
	Issues              int     `json:"issues"`
	TotalTrackedSeconds int64   `json:"totalTrackedSeconds"`
	TotalTrackedHours   float64 `json:"totalTrackedHours"`
}

// ProjectRollups aggregates issue counts and tracked time per project.
func (s *Store) ProjectRollups(ctx context.Context) ([]ProjectRollup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, u.name,
			COUNT(i.id), COALESCE(SUM(i.total_tracked_seconds), 0)
		FROM projects p
		JOIN users u ON u.id = p.owner_id
		LEFT JOIN issues i ON i.project_id = p.id
		GROUP BY p.id
		ORDER BY p.id`)
	if err != nil {
		return nil, fmt.Errorf("query project rollups: %w", err)
	}
	defer rows.Close()

	var rollups []ProjectRollup
	for rows.Next() {
		var r ProjectRollup
		if err := rows.Scan(&r.ProjectID, &r.Name, &r.OwnerName, &r.Issues, &r.TotalTrackedSeconds); err != nil {
			return nil, fmt.Errorf("scan rollup: %w", err)
		}
		r.TotalTrackedHours = float64(r.TotalTrackedSeconds) / 3600
		rollups = append(rollups, r)
	}
	return rollups, rows.Err()
}

// ActiveTimer is a currently running timer.
type ActiveTimer struct {
	IssueID      int64     `json:"issueId"`
	IssueTitle   string    `json:"issueTitle"`
	ProjectID    int64     `json:"projectId"`
	AssigneeName string    `json:"assigneeName,omitempty"`
	StartedAt    time.Time `json:"startedAt"`
}

// ActiveTimers lists every issue with a running timer.
func (s *Store) ActiveTimers(ctx context.Context) ([]ActiveTimer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT i.id, i.title, i.project_id, COALESCE(u.name, ''), i.timer_started_at
		FROM issues i
		LEFT JOIN users u ON u.id = i.assignee_id
		WHERE i.is_running = 1
		ORDER BY i.timer_started_at`)
	if err != nil {
		return nil, fmt.Errorf("query active timers: %w", err)
	}
	defer rows.Close()

	var timers []ActiveTimer
	for rows.Next() {
		var t ActiveTimer
		var startedAt int64
		if err := rows.Scan(&t.IssueID, &t.IssueTitle, &t.ProjectID, &t.AssigneeName, &startedAt); err != nil {
			return nil, fmt.Errorf("scan active timer: %w", err)
		}
		t.StartedAt = time.Unix(startedAt, 0).UTC()
		timers = append(timers, t)
	}
	return timers, rows.Err()
}

// MemberProductivity is one user's tracked-time total across assigned issues.
type MemberProductivity struct {
	UserID              int64   `json:"userId"`
	Name                string  `json:"name"`
	TotalTrackedSeconds int64   `json:"totalTrackedSeconds"`
	TotalTrackedHours   float64 `json:"totalTrackedHours"`
}

// MemberProductivityTotals sums tracked seconds per assignee.
func (s *Store) MemberProductivityTotals(ctx context.Context) ([]MemberProductivity, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT u.id, u.name, COALESCE(SUM(i.total_tracked_seconds), 0)
		FROM users u
		JOIN issues i ON i.assignee_id = u.id
		GROUP BY u.id
		ORDER BY SUM(i.total_tracked_seconds) DESC`)
	if err != nil {
		return nil, fmt.Errorf("query productivity: %w", err)
	}
	defer rows.Close()

	var totals []MemberProductivity
	for rows.Next() {
		var m MemberProductivity
		if err := rows.Scan(&m.UserID, &m.Name, &m.TotalTrackedSeconds); err != nil {
			return nil, fmt.Errorf("scan productivity: %w", err)
		}
		m.TotalTrackedHours = float64(m.TotalTrackedSeconds) / 3600
		totals = append(totals, m)
	}
	return totals, rows.Err()
}
