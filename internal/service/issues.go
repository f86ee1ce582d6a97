package service

import (
	"context"
	"strings"

	"github.com/kidandcat/issuedeck/internal/core"
)

// GetIssue returns an issue the actor can read.
func (s *Service) GetIssue(ctx context.Context, actor *core.User, id int64) (*core.Issue, error) {
	issue, err := s.store.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	project, err := s.store.GetProject(ctx, issue.ProjectID)
	if err != nil {
		return nil, err
	}
	if !core.CanRead(actor, project) {
		return nil, &core.AuthorizationError{Action: "read issue"}
	}
	return issue, nil
}

// ListIssues returns a project's issues for an actor who can read it.
func (s *Service) ListIssues(ctx context.Context, actor *core.User, projectID int64) ([]core.Issue, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !core.CanRead(actor, project) {
		return nil, &core.AuthorizationError{Action: "read issues"}
	}
	return s.store.ListIssuesByProject(ctx, projectID)
}

// CreateIssue creates an issue in the project. Manager-or-above only.
func (s *Service) CreateIssue(ctx context.Context, actor *core.User, projectID int64, title, description string, priority core.Priority, assigneeID *int64) (*core.Issue, error) {
	project, err := s.store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if !core.CanCreateIssue(actor, project) {
		return nil, &core.AuthorizationError{Action: "create issue"}
	}

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, &core.ValidationError{Field: string(core.FieldTitle), Reason: "must not be empty"}
	}
	if priority == "" {
		priority = core.PriorityMedium
	}
	if !core.ValidPriority(priority) {
		return nil, &core.ValidationError{Field: string(core.FieldPriority), Reason: "unknown priority " + string(priority)}
	}
	if assigneeID != nil {
		if err := validAssignee(project, *assigneeID); err != nil {
			return nil, err
		}
	}

	return s.store.CreateIssue(ctx, &core.Issue{
		ProjectID:   projectID,
		Title:       title,
		Description: description,
		Status:      core.StatusOpen,
		Priority:    priority,
		AssigneeID:  assigneeID,
	})
}

// UpdateIssue applies a partial update. Authorization is evaluated for every
// field in the patch and the whole request fails atomically on any denial;
// a status change drives the state-machine timer side effects.
func (s *Service) UpdateIssue(ctx context.Context, actor *core.User, id int64, patch core.IssuePatch) (*core.Issue, error) {
	current, err := s.store.GetIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	project, err := s.store.GetProject(ctx, current.ProjectID)
	if err != nil {
		return nil, err
	}
	if !core.CanRead(actor, project) {
		return nil, &core.AuthorizationError{Action: "update issue"}
	}
	if patch.Empty() {
		// No-op updates return the issue unchanged.
		return current, nil
	}

	return s.store.MutateIssue(ctx, id, func(issue *core.Issue) error {
		// All-or-nothing: deny the whole patch before touching anything.
		for _, field := range patch.Fields() {
			if !core.CanEditField(actor, project, issue, field) {
				return &core.AuthorizationError{Action: "edit " + string(field)}
			}
		}

		if patch.Title != nil {
			title := strings.TrimSpace(*patch.Title)
			if title == "" {
				return &core.ValidationError{Field: string(core.FieldTitle), Reason: "must not be empty"}
			}
			issue.Title = title
		}
		if patch.Description != nil {
			issue.Description = *patch.Description
		}
		if patch.Priority != nil {
			if !core.ValidPriority(*patch.Priority) {
				return &core.ValidationError{Field: string(core.FieldPriority), Reason: "unknown priority " + string(*patch.Priority)}
			}
			issue.Priority = *patch.Priority
		}
		if patch.ClearAssignee {
			issue.AssigneeID = nil
			issue.Assignee = nil
		} else if patch.AssigneeID != nil {
			if err := validAssignee(project, *patch.AssigneeID); err != nil {
				return err
			}
			issue.AssigneeID = patch.AssigneeID
		}
		if patch.Status != nil {
			timerAllowed := core.CanControlTimer(actor, project, issue)
			if err := core.ApplyStatus(issue, *patch.Status, timerAllowed, s.now()); err != nil {
				return err
			}
		}
		return nil
	})
}

// StartTimer starts the issue's timer for the actor. The exclusivity check
// runs against the transactional row, so of two concurrent starts exactly one
// succeeds and the other gets ConflictError.
func (s *Service) StartTimer(ctx context.Context, actor *core.User, id int64) (*core.Issue, error) {
	project, err := s.projectOfIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.store.MutateIssue(ctx, id, func(issue *core.Issue) error {
		if !core.CanControlTimer(actor, project, issue) {
			return &core.AuthorizationError{Action: "start timer"}
		}
		return core.StartTimer(issue, s.now())
	})
}

// StopTimer stops the issue's running timer and accumulates elapsed time.
func (s *Service) StopTimer(ctx context.Context, actor *core.User, id int64) (*core.Issue, error) {
	project, err := s.projectOfIssue(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.store.MutateIssue(ctx, id, func(issue *core.Issue) error {
		if !core.CanControlTimer(actor, project, issue) {
			return &core.AuthorizationError{Action: "stop timer"}
		}
		return core.StopTimer(issue, s.now())
	})
}

func (s *Service) projectOfIssue(ctx context.Context, issueID int64) (*core.Project, error) {
	issue, err := s.store.GetIssue(ctx, issueID)
	if err != nil {
		return nil, err
	}
	return s.store.GetProject(ctx, issue.ProjectID)
}

func validAssignee(project *core.Project, userID int64) error {
	if userID == project.OwnerID {
		return nil
	}
	if _, isMember := project.MemberRole(userID); isMember {
		return nil
	}
	return &core.ValidationError{Field: string(core.FieldAssignee), Reason: "assignee must be a member of the project"}
}
