package service

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/kidandcat/issuedeck/internal/core"
	"github.com/kidandcat/issuedeck/internal/db"
)

// AdminSummary is the site-wide rollup shown on the admin dashboard.
type AdminSummary struct {
	TotalUsers   int                     `json:"totalUsers"`
	Roles        map[core.Role]int       `json:"roles"`
	Projects     []db.ProjectRollup      `json:"projects"`
	ActiveTimers []db.ActiveTimer        `json:"activeTimers"`
	Productivity []db.MemberProductivity `json:"membersProductivity"`
}

// Summary aggregates the admin dashboard numbers. Admin only. The four
// queries are independent and fan out concurrently.
func (s *Service) Summary(ctx context.Context, actor *core.User) (*AdminSummary, error) {
	if actor.Role != core.RoleAdmin {
		return nil, &core.AuthorizationError{Action: "view admin summary"}
	}

	var summary AdminSummary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		roles, err := s.store.RoleCounts(gctx)
		if err != nil {
			return err
		}
		summary.Roles = roles
		for _, n := range roles {
			summary.TotalUsers += n
		}
		return nil
	})
	g.Go(func() error {
		rollups, err := s.store.ProjectRollups(gctx)
		summary.Projects = rollups
		return err
	})
	g.Go(func() error {
		timers, err := s.store.ActiveTimers(gctx)
		summary.ActiveTimers = timers
		return err
	})
	g.Go(func() error {
		totals, err := s.store.MemberProductivityTotals(gctx)
		summary.Productivity = totals
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &summary, nil
}
