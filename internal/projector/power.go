package projector

// KeyPower is the state key holding the raw power value.
const KeyPower = "pw"

// Raw power values reported by the projector.
const (
	powerRawStandby = "0"
	powerRawOn      = "1"
	powerRawWarming = "2"
	powerRawCooling = "3"
)

// PowerState is the logical power state derived from the "pw" field.
type PowerState string

// Power states.
const (
	PowerUnknown PowerState = "unknown"
	PowerStandby PowerState = "standby"
	PowerOn      PowerState = "on"
	PowerWarming PowerState = "warming"
	PowerCooling PowerState = "cooling"
)

// PowerFromRaw maps a raw "pw" field value to a PowerState.
// Unrecognised values (including the not-available sentinel) map to
// PowerUnknown rather than guessing.
func PowerFromRaw(raw string) PowerState {
	switch raw {
	case powerRawStandby:
		return PowerStandby
	case powerRawOn:
		return PowerOn
	case powerRawWarming:
		return PowerWarming
	case powerRawCooling:
		return PowerCooling
	default:
		return PowerUnknown
	}
}

// InTransition reports whether the projector is warming up or cooling down.
// Power commands are rejected locally in these states because the device
// itself refuses them.
func (p PowerState) InTransition() bool {
	return p == PowerWarming || p == PowerCooling
}
