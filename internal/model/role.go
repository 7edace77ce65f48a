package model

// Role is the coarse authorization level of a user
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleStaff   Role = "staff"
)

var Roles = []Role{RoleAdmin, RoleManager, RoleStaff}

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleStaff:
		return true
	}
	return false
}

// Privileges returns the privilege codes granted to the role
func (r Role) Privileges() []Privilege {
	granted := rolePrivileges[r]
	out := make([]Privilege, len(granted))
	copy(out, granted)
	return out
}

// Can checks if the role grants a specific privilege
func (r Role) Can(p Privilege) bool {
	for _, granted := range rolePrivileges[r] {
		if granted == p {
			return true
		}
	}
	return false
}
