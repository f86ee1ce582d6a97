// Package service orchestrates core operations: it resolves capabilities,
// validates input, applies state-machine side effects and commits the result
// through the store, all with the actor passed in explicitly.
package service

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/kidandcat/issuedeck/internal/core"
	"github.com/kidandcat/issuedeck/internal/db"
)

// Summarizer produces an opaque natural-language summary for a prompt. It may
// fail; the result is display-only text and never feeds back into state.
type Summarizer interface {
	Summarize(ctx context.Context, prompt string) (string, error)
}

type Service struct {
	store      *db.Store
	summarizer Summarizer

	// now is swappable in tests to simulate elapsed time.
	now func() time.Time
}

func New(store *db.Store, summarizer Summarizer) *Service {
	return &Service{store: store, summarizer: summarizer, now: time.Now}
}

// SetClock replaces the time source. Tests only.
func (s *Service) SetClock(now func() time.Time) {
	s.now = now
}

// Store exposes the underlying store for read-side handlers.
func (s *Service) Store() *db.Store {
	return s.store
}

// --- Projects ---

// CreateProject creates a project owned by the actor. Managers and admins
// create projects; members do not.
func (s *Service) CreateProject(ctx context.Context, actor *core.User, name, description string) (*core.Project, error) {
	if actor.Role != core.RoleAdmin && actor.Role != core.RoleManager {
		return nil, &core.AuthorizationError{Action: "create project"}
	}
	if strings.TrimSpace(name) == "" {
		return nil, &core.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	return s.store.CreateProject(ctx, strings.TrimSpace(name), description, actor.ID)
}

// GetProject returns a project the actor can read.
func (s *Service) GetProject(ctx context.Context, actor *core.User, id int64) (*core.Project, error) {
	project, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if core.CapabilityOf(actor, project) == core.CapabilityNone {
		return nil, &core.AuthorizationError{Action: "read project"}
	}
	return project, nil
}

// ListProjects returns the projects visible to the actor.
func (s *Service) ListProjects(ctx context.Context, actor *core.User) ([]core.Project, error) {
	return s.store.ListProjectsForUser(ctx, actor)
}

// UpdateProject changes a project's name and description. Manager-or-above.
func (s *Service) UpdateProject(ctx context.Context, actor *core.User, id int64, name, description string) (*core.Project, error) {
	project, err := s.store.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if !core.CapabilityOf(actor, project).AtLeastManager() {
		return nil, &core.AuthorizationError{Action: "update project"}
	}
	if strings.TrimSpace(name) == "" {
		return nil, &core.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	return s.store.UpdateProject(ctx, id, strings.TrimSpace(name), description)
}

// --- Invitations ---

// Invite invites a registered user to the project by email. Delivery of the
// invitation email is external; here it is logged only.
func (s *Service) Invite(ctx context.Context, actor *core.User, projectID int64, email string) (*core.Invitation, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !core.CanInvite(actor, project) {
		return nil, &core.AuthorizationError{Action: "invite member"}
	}

	invitee, err := s.store.GetUserByEmail(ctx, strings.TrimSpace(strings.ToLower(email)))
	if err != nil {
		return nil, err
	}
	if invitee.ID == project.OwnerID {
		return nil, &core.ValidationError{Field: "email", Reason: "user already owns this project"}
	}
	if _, isMember := project.MemberRole(invitee.ID); isMember {
		return nil, &core.ValidationError{Field: "email", Reason: "user is already a member"}
	}

	inv, err := s.store.CreateInvitation(ctx, projectID, invitee.ID, actor.ID)
	if err != nil {
		return nil, err
	}
	log.Printf("invitation %s for %s to project %q", inv.Token, invitee.Email, project.Name)
	return inv, nil
}

// MyInvitations lists the actor's pending invitations.
func (s *Service) MyInvitations(ctx context.Context, actor *core.User) ([]core.Invitation, error) {
	return s.store.ListInvitationsForUser(ctx, actor.ID)
}

// RespondInvitation accepts or rejects a pending invitation. Only the invitee
// may respond; accepting joins the project as a plain member.
func (s *Service) RespondInvitation(ctx context.Context, actor *core.User, id int64, accept bool) (*core.Invitation, error) {
	inv, err := s.store.GetInvitation(ctx, id)
	if err != nil {
		return nil, err
	}
	if inv.UserID != actor.ID {
		return nil, &core.AuthorizationError{Action: "respond to invitation"}
	}
	state := core.InvitationRejected
	if accept {
		state = core.InvitationAccepted
	}
	return s.store.ResolveInvitation(ctx, id, state)
}

// --- Users ---

// ListUsers returns all users, for assignee selection.
func (s *Service) ListUsers(ctx context.Context, actor *core.User) ([]core.User, error) {
	return s.store.ListUsers(ctx)
}

// --- AI summary ---

// ProjectSummary asks the external model for a natural-language summary of
// the project's issues. Display-only; a failure here never touches state.
func (s *Service) ProjectSummary(ctx context.Context, actor *core.User, projectID int64) (string, error) {
	project, err := s.GetProject(ctx, actor, projectID)
	if err != nil {
		return "", err
	}
	if s.summarizer == nil {
		return "", &core.ValidationError{Field: "ai", Reason: "summaries are not configured"}
	}

	issues, err := s.store.ListIssuesByProject(ctx, projectID)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString("Summarize the state of project \"" + project.Name + "\" for a status update.\n")
	b.WriteString("Issues:\n")
	now := s.now()
	for _, issue := range issues {
		b.WriteString("- [" + string(issue.Status) + "/" + string(issue.Priority) + "] " + issue.Title)
		if tracked := core.ElapsedDisplay(&issue, now); tracked > 0 {
			b.WriteString(" (tracked " + tracked.Round(time.Minute).String() + ")")
		}
		b.WriteString("\n")
	}
	return s.summarizer.Summarize(ctx, b.String())
}
