package core

// Field names an issue field for permission purposes.
type Field string

const (
	FieldTitle       Field = "title"
	FieldDescription Field = "description"
	FieldStatus      Field = "status"
	FieldPriority    Field = "priority"
	FieldAssignee    Field = "assignee"
)

// assigneeEditable lists the fields an assignee may edit on their own issue.
// Assignees move their issues and write descriptions; they do not reassign,
// reprioritize or retitle.
var assigneeEditable = map[Field]bool{
	FieldStatus:      true,
	FieldDescription: true,
}

// CanRead reports whether the user may see the issue at all.
func CanRead(user *User, project *Project) bool {
	return CapabilityOf(user, project) != CapabilityNone
}

// CanEditField reports whether the user may change a single issue field.
func CanEditField(user *User, project *Project, issue *Issue, field Field) bool {
	if CapabilityOf(user, project).AtLeastManager() {
		return true
	}
	return issue.AssignedTo(user.ID) && assigneeEditable[field]
}

// CanMoveIssue reports whether the user may change the issue's status.
func CanMoveIssue(user *User, project *Project, issue *Issue) bool {
	return CanEditField(user, project, issue, FieldStatus)
}

// CanCreateIssue reports whether the user may create issues in the project.
func CanCreateIssue(user *User, project *Project) bool {
	return CapabilityOf(user, project).AtLeastManager()
}

// CanInvite reports whether the user may invite members to the project.
func CanInvite(user *User, project *Project) bool {
	return CapabilityOf(user, project).AtLeastManager()
}

// CanControlTimer reports whether the user may start or stop the issue's
// timer: the assignee, or a manager-or-above of the project itself. Global
// admin rank does not count here. Admins who hold no role in the project are
// denied timer control even though they can edit the issue.
func CanControlTimer(user *User, project *Project, issue *Issue) bool {
	if issue.AssignedTo(user.ID) {
		return true
	}
	return ProjectCapability(user, project).AtLeastManager()
}
