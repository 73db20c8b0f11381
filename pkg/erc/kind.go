package erc

// Kind identifies what a diagnostic reports. The set is closed.
type Kind string

const (
	KindMalformedWire         Kind = "MalformedWire"
	KindUnconnectedPin        Kind = "UnconnectedPin"
	KindPowerGroundShort      Kind = "PowerGroundShort"
	KindMissingPowerNet       Kind = "MissingPowerNet"
	KindMissingGroundNet      Kind = "MissingGroundNet"
	KindMultipleDrivers       Kind = "MultipleDrivers"
	KindNoDriver              Kind = "NoDriver"
	KindSinglePinNet          Kind = "SinglePinNet"
	KindDuplicateReference    Kind = "DuplicateReference"
	KindNoDecouplingCapacitor Kind = "NoDecouplingCapacitor"
	KindMissingPullResistor   Kind = "MissingPullResistor"
	KindUnlabeledNet          Kind = "UnlabeledNet"
	KindPinBridgesNets        Kind = "PinBridgesNets"
	KindInternalError         Kind = "InternalError"
	KindCheckIncomplete       Kind = "CheckIncomplete"
)

// Kinds lists every diagnostic kind in rule order, followed by the
// engine-level kinds.
var Kinds = []Kind{
	KindMalformedWire,
	KindUnconnectedPin,
	KindPowerGroundShort,
	KindMissingPowerNet,
	KindMissingGroundNet,
	KindMultipleDrivers,
	KindNoDriver,
	KindSinglePinNet,
	KindDuplicateReference,
	KindNoDecouplingCapacitor,
	KindMissingPullResistor,
	KindUnlabeledNet,
	KindPinBridgesNets,
	KindInternalError,
	KindCheckIncomplete,
}

// IsError reports whether diagnostics of this kind fail the check. The
// classification is fixed per kind, independent of severity.
func (k Kind) IsError() bool {
	switch k {
	case KindMalformedWire,
		KindUnconnectedPin,
		KindPowerGroundShort,
		KindMultipleDrivers,
		KindNoDriver,
		KindDuplicateReference,
		KindInternalError,
		KindCheckIncomplete:
		return true
	}
	return false
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Severity grades a diagnostic.
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityHigh     Severity = "High"
	SeverityMedium   Severity = "Medium"
	SeverityLow      Severity = "Low"
	SeverityInfo     Severity = "Info"
)

// Rank orders severities from most (0) to least severe. Unknown values
// sort last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	case SeverityInfo:
		return 4
	}
	return 5
}
