package schematic

import (
	"strings"
)

// Role is the electrical role of a pin.
type Role uint8

const (
	RolePassive Role = iota
	RoleInput
	RoleOutput
	RoleBidirectional
	RolePower
	RoleGround
	RoleNotConnected

	roleCount
)

var roleNames = [...]string{
	RolePassive:       "passive",
	RoleInput:         "input",
	RoleOutput:        "output",
	RoleBidirectional: "bidirectional",
	RolePower:         "power",
	RoleGround:        "ground",
	RoleNotConnected:  "notConnected",
}

// Normalize maps any out-of-range value to RolePassive, the neutral role.
func (r Role) Normalize() Role {
	if r >= roleCount {
		return RolePassive
	}
	return r
}

func (r Role) String() string {
	return roleNames[r.Normalize()]
}

// IsDriver reports whether the role can assert a level onto a net.
func (r Role) IsDriver() bool {
	switch r.Normalize() {
	case RoleOutput, RoleBidirectional, RolePower:
		return true
	}
	return false
}

// ParseRole maps a role name to a Role. Matching ignores case, dashes and
// underscores so "not_connected", "NotConnected" and "not-connected" are the
// same. Unknown names resolve to RolePassive; ok reports whether the name
// was recognised.
func ParseRole(s string) (role Role, ok bool) {
	key := strings.ToLower(strings.NewReplacer("_", "", "-", "", " ", "").Replace(s))
	switch key {
	case "input", "in":
		return RoleInput, true
	case "output", "out":
		return RoleOutput, true
	case "bidirectional", "bidi", "inout":
		return RoleBidirectional, true
	case "power", "pwr":
		return RolePower, true
	case "ground", "gnd":
		return RoleGround, true
	case "passive":
		return RolePassive, true
	case "notconnected", "nc":
		return RoleNotConnected, true
	}
	return RolePassive, false
}

// MarshalText encodes the role by name.
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText never fails: an unrecognised role decodes as passive.
func (r *Role) UnmarshalText(text []byte) error {
	*r, _ = ParseRole(string(text))
	return nil
}
