// Package domain defines the user profile and session principal used for
// authorizing staff operations.
package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Role is the application role stored on a profile.
type Role string

const (
	RoleAdmin   Role = "admin"
	RolePT      Role = "pt"
	RoleTrainer Role = "trainer"
	RoleStaff   Role = "staff"
	RoleAtleta  Role = "atleta"
)

// StaffRoles are the roles allowed to manage communications.
var StaffRoles = []Role{RoleAdmin, RolePT, RoleTrainer, RoleStaff}

// IsOneOf reports whether r is in roles.
func (r Role) IsOneOf(roles ...Role) bool {
	for _, role := range roles {
		if r == role {
			return true
		}
	}
	return false
}

// Profile is the application-side record of a user.
type Profile struct {
	ID      uuid.UUID
	UserID  uuid.UUID
	Name    string
	Surname string
	Email   *string
	Phone   *string
	Role    Role
	Status  string
}

// FullName joins name and surname, skipping empty parts.
func (p *Profile) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(p.Name) + " " + strings.TrimSpace(p.Surname))
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID uuid.UUID
	Email  string
	// Role is empty when the user has no profile.
	Role Role
}
