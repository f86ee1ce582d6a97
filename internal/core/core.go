// Package core holds the tracker's domain model: entities, the role model,
// the permission engine, the issue state machine and timer accounting.
// Nothing in this package touches the network or the database; actors are
// always passed in explicitly.
package core

import "time"

// Role is a user's global role.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// ProjectRole is a per-project role assignment. Owners are not listed here;
// ownership is a project field and always implies manager.
type ProjectRole string

const (
	ProjectRoleManager ProjectRole = "manager"
	ProjectRoleMember  ProjectRole = "member"
)

// Status is an issue's kanban column.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in-progress"
	StatusOnHold     Status = "on-hold"
	StatusDone       Status = "done"
)

// Statuses lists the valid statuses in board order.
var Statuses = []Status{StatusOpen, StatusInProgress, StatusOnHold, StatusDone}

// ValidStatus reports whether s is a known status value.
func ValidStatus(s Status) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusOnHold, StatusDone:
		return true
	}
	return false
}

// Priority of an issue.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ValidPriority reports whether p is a known priority value.
func ValidPriority(p Priority) bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// InvitationState tracks a pending project invitation.
type InvitationState string

const (
	InvitationPending  InvitationState = "pending"
	InvitationAccepted InvitationState = "accepted"
	InvitationRejected InvitationState = "rejected"
)

type User struct {
	ID        int64     `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// Member is a user's membership in a project together with the project role
// assigned to them, if any.
type Member struct {
	UserID int64        `json:"userId"`
	Role   *ProjectRole `json:"role,omitempty"`
	User   *User        `json:"user,omitempty"` // joined
}

type Project struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	OwnerID     int64     `json:"ownerId"`
	Members     []Member  `json:"members"`
	CreatedAt   time.Time `json:"createdAt"`
}

// MemberRole returns the project role assigned to userID, if any, and whether
// the user appears in the member list at all.
func (p *Project) MemberRole(userID int64) (*ProjectRole, bool) {
	for _, m := range p.Members {
		if m.UserID == userID {
			return m.Role, true
		}
	}
	return nil, false
}

type Invitation struct {
	ID        int64           `json:"id"`
	ProjectID int64           `json:"projectId"`
	UserID    int64           `json:"userId"`
	InvitedBy int64           `json:"invitedBy"`
	Token     string          `json:"token"`
	State     InvitationState `json:"state"`
	CreatedAt time.Time       `json:"createdAt"`

	ProjectName  string `json:"projectName,omitempty"`  // joined
	InviterName  string `json:"inviterName,omitempty"`  // joined
	InviteeEmail string `json:"inviteeEmail,omitempty"` // joined
}

type Issue struct {
	ID                  int64      `json:"id"`
	ProjectID           int64      `json:"projectId"`
	Title               string     `json:"title"`
	Description         string     `json:"description"`
	Status              Status     `json:"status"`
	Priority            Priority   `json:"priority"`
	AssigneeID          *int64     `json:"assigneeId"`
	TotalTrackedSeconds int64      `json:"totalTrackedSeconds"`
	IsRunning           bool       `json:"isRunning"`
	TimerStartedAt      *time.Time `json:"timerStartedAt,omitempty"`
	CreatedAt           time.Time  `json:"createdAt"`

	Assignee *User `json:"assignee,omitempty"` // joined
}

// AssignedTo reports whether the issue is assigned to userID.
func (i *Issue) AssignedTo(userID int64) bool {
	return i.AssigneeID != nil && *i.AssigneeID == userID
}

// IssuePatch is a partial issue update. Nil fields are left untouched.
// Authorization is evaluated per set field and the patch commits atomically.
type IssuePatch struct {
	Title       *string   `json:"title,omitempty"`
	Description *string   `json:"description,omitempty"`
	Status      *Status   `json:"status,omitempty"`
	Priority    *Priority `json:"priority,omitempty"`
	AssigneeID  *int64    `json:"assigneeId,omitempty"`
	// ClearAssignee unassigns the issue. AssigneeID cannot express "set to
	// null" on its own because nil already means "not part of the patch".
	ClearAssignee bool `json:"clearAssignee,omitempty"`
}

// Empty reports whether the patch changes nothing.
func (p IssuePatch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Status == nil &&
		p.Priority == nil && p.AssigneeID == nil && !p.ClearAssignee
}

// Fields returns the permission fields the patch touches.
func (p IssuePatch) Fields() []Field {
	var fields []Field
	if p.Title != nil {
		fields = append(fields, FieldTitle)
	}
	if p.Description != nil {
		fields = append(fields, FieldDescription)
	}
	if p.Status != nil {
		fields = append(fields, FieldStatus)
	}
	if p.Priority != nil {
		fields = append(fields, FieldPriority)
	}
	if p.AssigneeID != nil || p.ClearAssignee {
		fields = append(fields, FieldAssignee)
	}
	return fields
}
