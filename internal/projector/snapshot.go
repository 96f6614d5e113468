package projector

import "time"

// DeviceInfo holds the static identity fields reported by the
// information query. Fields absent from the response stay empty.
type DeviceInfo struct {
	ModelName       string `json:"model_name,omitempty"`
	FirmwareVersion string `json:"firmware_version,omitempty"`
	MACAddress      string `json:"mac_address,omitempty"`
	LampHours       string `json:"lamp_hours,omitempty"`
}

// Snapshot is one published view of the projector. Snapshots are
// value copies; consumers may retain them without synchronisation.
type Snapshot struct {
	// Fields maps raw state keys to raw string values as reported by
	// the device, overlaid with any unconfirmed optimistic writes.
	Fields map[string]string `json:"fields"`

	// Power is derived from the power field at publish time.
	Power PowerState `json:"power"`

	// Available is false when the last poll failed.
	Available bool `json:"available"`

	// Stale is true when Fields carries data from an earlier successful
	// poll but the most recent poll failed.
	Stale bool `json:"stale"`

	// UpdatedAt is when the most recent successful poll completed.
	UpdatedAt time.Time `json:"updated_at"`

	// LastError describes the most recent poll failure, empty when
	// the last poll succeeded.
	LastError string `json:"last_error,omitempty"`

	Info DeviceInfo `json:"info"`
}

// Field returns the raw value for a state key. The second result is
// false when the key is missing or the device reported it unavailable.
func (s Snapshot) Field(key string) (string, bool) {
	v, ok := s.Fields[key]
	if !ok || v == ValueNotAvailable {
		return "", false
	}
	return v, true
}

// clone returns a deep copy safe to hand to subscribers.
func (s Snapshot) clone() Snapshot {
	out := s
	out.Fields = make(map[string]string, len(s.Fields))
	for k, v := range s.Fields {
		out.Fields[k] = v
	}
	return out
}
