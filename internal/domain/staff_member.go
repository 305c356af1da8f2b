package domain

import "time"

// StaffRole enumerates account roles supplied by the identity provider.
type StaffRole string

const (
	StaffRoleCitizen StaffRole = "citizen"
	StaffRoleStaff   StaffRole = "staff"
	StaffRoleAdmin   StaffRole = "admin"
)

// Valid reports whether r is a known role.
func (r StaffRole) Valid() bool {
	switch r {
	case StaffRoleCitizen, StaffRoleStaff, StaffRoleAdmin:
		return true
	}
	return false
}

// StaffMember models an account known to the engine.
type StaffMember struct {
	ID         string
	Name       string
	Email      string
	Role       StaffRole
	Department Department
	City       string
	Points     int
	Active     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Badge is a performance tier derived from accumulated points.
type Badge struct {
	Name      string `yaml:"name" json:"name"`
	MinPoints int    `yaml:"min_points" json:"min_points"`
	Icon      string `yaml:"icon" json:"icon"`
	Color     string `yaml:"color" json:"color"`
}
