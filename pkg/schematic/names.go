package schematic

import "strings"

// IsPowerName reports whether a net or pin name denotes a supply rail:
// it contains VCC or VDD (any case), or a '+' as in "+3V3".
func IsPowerName(name string) bool {
	upper := strings.ToUpper(name)
	return strings.Contains(upper, "VCC") ||
		strings.Contains(upper, "VDD") ||
		strings.Contains(name, "+")
}

// IsGroundName reports whether a net or pin name denotes ground: it
// contains GND or VSS, in any case.
func IsGroundName(name string) bool {
	upper := strings.ToUpper(name)
	return strings.Contains(upper, "GND") || strings.Contains(upper, "VSS")
}
