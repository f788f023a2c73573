package machine

import "fmt"

// Role is the function of an output pin.
type Role int

const (
	// RoleArmed is active in every state except DISARMED.
	RoleArmed Role = iota
	// RoleActive is active while TRIGGERED (for external notification).
	RoleActive
	// RoleSounder drives the external siren while TRIGGERED.
	RoleSounder
	// RoleStrobe drives the strobe light while TRIGGERED.
	RoleStrobe
	// RoleBuzzer beeps the panel buzzer during ARMING and ENTRY_DELAY.
	RoleBuzzer
)

// Roles lists every output role.
//
//nolint:gochecknoglobals // Read-only list.
var Roles = []Role{RoleArmed, RoleActive, RoleSounder, RoleStrobe, RoleBuzzer}

// String returns the configuration name of the role.
func (r Role) String() string {
	switch r {
	case RoleArmed:
		return "armed"
	case RoleActive:
		return "active"
	case RoleSounder:
		return "sounder"
	case RoleStrobe:
		return "strobe"
	case RoleBuzzer:
		return "buzzer"
	default:
		return fmt.Sprintf("Role(%d)", int(r))
	}
}

// ParseRole returns the role with the given configuration name.
func ParseRole(name string) (Role, bool) {
	for _, role := range Roles {
		if role.String() == name {
			return role, true
		}
	}

	return 0, false
}
