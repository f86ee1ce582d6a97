package core

// Capability is the effective permission level a user has over a project.
type Capability int

const (
	CapabilityNone Capability = iota
	CapabilityMember
	CapabilityManager
	CapabilityOwner
)

func (c Capability) String() string {
	switch c {
	case CapabilityOwner:
		return "owner"
	case CapabilityManager:
		return "manager"
	case CapabilityMember:
		return "member"
	}
	return "none"
}

// AtLeastManager reports whether the capability is manager or owner.
func (c Capability) AtLeastManager() bool {
	return c >= CapabilityManager
}

// CapabilityOf resolves a user's effective capability over a project. Every
// authorization decision routes through here; call sites must not re-derive
// ownership or admin checks on their own.
func CapabilityOf(user *User, project *Project) Capability {
	cap := ProjectCapability(user, project)
	// Global admins get at least manager-equivalent capability everywhere.
	if user.Role == RoleAdmin && cap < CapabilityManager {
		return CapabilityManager
	}
	return cap
}

// ProjectCapability resolves capability from the project alone, ignoring the
// user's global role. The timer rule depends on this distinction: a global
// admin with no project role may read everything but cannot touch timers.
func ProjectCapability(user *User, project *Project) Capability {
	if project.OwnerID == user.ID {
		return CapabilityOwner
	}
	role, isMember := project.MemberRole(user.ID)
	if !isMember {
		return CapabilityNone
	}
	if role != nil && *role == ProjectRoleManager {
		return CapabilityManager
	}
	return CapabilityMember
}
