// Package authz centralizes the role-based permission rules that were
// previously the scattered concern of each page: what the current session
// may view, create, and modify. All checks are pure reads of the session
// store and fail closed when the session cannot answer.
package authz

import (
	"github.com/jrsteele09/go-crm-client/session"
)

// ResourceType identifies one of the three CRM entities for permission
// purposes.
type ResourceType string

const (
	ResourceCustomer ResourceType = "customer"
	ResourceLead     ResourceType = "lead"
	ResourceTask     ResourceType = "task"
)

// Policy answers permission questions for the current session.
type Policy struct {
	session session.Reader
}

func New(reader session.Reader) *Policy {
	return &Policy{session: reader}
}

// IsAdmin reports whether the session carries the admin role. A session with
// no cached identity (degraded login) is not an admin.
func (p *Policy) IsAdmin() bool {
	return p.session.Role() == session.RoleAdmin
}

// CanViewAdminControls gates the edit/delete affordances on customers and
// leads.
func (p *Policy) CanViewAdminControls() bool {
	return p.IsAdmin()
}

// CanCreate reports whether the session may create a resource of the given
// type. Non-admins may only create tasks.
func (p *Policy) CanCreate(resource ResourceType) bool {
	if p.IsAdmin() {
		return true
	}
	return resource == ResourceTask
}

// CanModify reports whether the session may update or delete a resource.
// assignedTo is the owning user of a task, nil for unassigned tasks and for
// resource types that carry no assignee. Non-admins can only modify tasks
// assigned to themselves; an unknown current user id denies rather than
// guesses.
func (p *Policy) CanModify(resource ResourceType, assignedTo *int64) bool {
	if p.IsAdmin() {
		return true
	}
	if resource != ResourceTask {
		return false
	}
	if assignedTo == nil {
		return false
	}
	userID, ok := p.session.UserID()
	if !ok {
		return false
	}
	return *assignedTo == userID
}
