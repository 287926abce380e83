package enums

import "fmt"

// StaffRole scopes what a logged-in staff member may do.
type StaffRole string

const (
	StaffRoleManager StaffRole = "manager"
	StaffRoleCashier StaffRole = "cashier"
	StaffRoleKitchen StaffRole = "kitchen"
	StaffRoleDriver  StaffRole = "driver"
)

var validStaffRoles = []StaffRole{
	StaffRoleManager,
	StaffRoleCashier,
	StaffRoleKitchen,
	StaffRoleDriver,
}

func (r StaffRole) String() string {
	return string(r)
}

func (r StaffRole) IsValid() bool {
	for _, candidate := range validStaffRoles {
		if candidate == r {
			return true
		}
	}
	return false
}

func ParseStaffRole(value string) (StaffRole, error) {
	for _, candidate := range validStaffRoles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid staff role %q", value)
}
