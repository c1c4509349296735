package user

import (
	"fmt"
	"time"
)

type Role string

const (
	RoleCoordinator       Role = "Coordinator"
	RoleDepartmentHead    Role = "DepartmentHead"
	RoleDean              Role = "Dean"
	RoleInstitutionalHead Role = "InstitutionalHead"
	RoleAdmin             Role = "Admin"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleCoordinator, RoleDepartmentHead, RoleDean, RoleInstitutionalHead, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("unknown role: %s", s)
	}
}

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	SchoolID     string    `json:"schoolId,omitempty"`
	DepartmentID string    `json:"departmentId,omitempty"`
	IsActive     bool      `json:"isActive"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ScopeKind says how far an approver's authority reaches.
type ScopeKind string

const (
	ScopeDepartment  ScopeKind = "department"
	ScopeSchool      ScopeKind = "school"
	ScopeInstitution ScopeKind = "institution"
)

// Scope narrows a role lookup. ID is ignored for ScopeInstitution.
type Scope struct {
	Kind ScopeKind
	ID   string
}

// Covers reports whether u sits inside the scope.
func (s Scope) Covers(u User) bool {
	switch s.Kind {
	case ScopeDepartment:
		return u.DepartmentID != "" && u.DepartmentID == s.ID
	case ScopeSchool:
		return u.SchoolID != "" && u.SchoolID == s.ID
	case ScopeInstitution:
		return true
	default:
		return false
	}
}
