package bridge

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/optoma-core/internal/projector"
)

// MQTT message types for the projector's command/state surface.

// CommandMessage is received on optoma/{projector_id}/command and asks
// the controller to change a single control.
type CommandMessage struct {
	// ID uniquely identifies this command for correlation with acks.
	// Optional; the bridge generates one when absent.
	ID string `json:"id,omitempty"`

	// Control is the control identifier (e.g., "a", "vol", "resync").
	Control string `json:"control"`

	// Value is the raw value to apply. Empty for toggles and buttons.
	Value string `json:"value,omitempty"`

	// Source indicates where the command originated (e.g., "ha", "api").
	Source string `json:"source,omitempty"`
}

// PowerMessage is received on optoma/{projector_id}/power. The payload
// may also be the bare string "on" or "off" for hand-typed messages.
type PowerMessage struct {
	// ID uniquely identifies this request for correlation with acks.
	ID string `json:"id,omitempty"`

	// Action is "on" or "off".
	Action string `json:"action"`
}

// parsePowerPayload accepts either a bare "on"/"off" string or a JSON
// PowerMessage.
func parsePowerPayload(payload []byte) (PowerMessage, error) {
	trimmed := strings.TrimSpace(string(payload))
	switch strings.ToLower(trimmed) {
	case "on", "off":
		return PowerMessage{Action: strings.ToLower(trimmed)}, nil
	}

	var msg PowerMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return PowerMessage{}, fmt.Errorf("parse power payload: %w", err)
	}
	msg.Action = strings.ToLower(strings.TrimSpace(msg.Action))
	if msg.Action != "on" && msg.Action != "off" {
		return PowerMessage{}, fmt.Errorf("unknown power action %q", msg.Action)
	}
	return msg, nil
}

// AckStatus represents the acknowledgment status of a command.
type AckStatus string

const (
	// AckAccepted indicates the command was sent to the projector.
	AckAccepted AckStatus = "accepted"

	// AckFailed indicates the command could not be executed.
	AckFailed AckStatus = "failed"
)

// AckMessage is published on optoma/{projector_id}/ack after each
// command or power request.
type AckMessage struct {
	// CommandID is the ID from the original command.
	CommandID string `json:"command_id"`

	// Timestamp is when the acknowledgment was sent (UTC).
	Timestamp time.Time `json:"timestamp"`

	// ProjectorID identifies the projector.
	ProjectorID string `json:"projector_id"`

	// Status indicates whether the command was applied.
	Status AckStatus `json:"status"`

	// Control is the control identifier, or "power" for power requests.
	Control string `json:"control"`

	// Error contains details when Status is "failed".
	Error *AckError `json:"error,omitempty"`
}

// AckError contains error details for failed commands.
type AckError struct {
	// Code is the error code (e.g., "UNKNOWN_CONTROL").
	Code string `json:"code"`

	// Message is a human-readable error description.
	Message string `json:"message"`
}

// Error codes for command failures.
const (
	ErrCodeUnknownControl      = "UNKNOWN_CONTROL"
	ErrCodeInvalidValue        = "INVALID_VALUE"
	ErrCodeBlockedByTransition = "BLOCKED_BY_TRANSITION"
	ErrCodeDeviceUnreachable   = "DEVICE_UNREACHABLE"
	ErrCodeMalformedPayload    = "MALFORMED_PAYLOAD"
	ErrCodeBridgeError         = "BRIDGE_ERROR"
)

// StateMessage is published on optoma/{projector_id}/state whenever the
// coordinator observes a change. Retained so late subscribers see the
// last known state immediately.
type StateMessage struct {
	// ProjectorID identifies the projector.
	ProjectorID string `json:"projector_id"`

	// Timestamp is when the state was published (UTC).
	Timestamp time.Time `json:"timestamp"`

	// Power is the current power state.
	Power projector.PowerState `json:"power"`

	// Available is false when the last poll failed.
	Available bool `json:"available"`

	// Stale is true when Fields carries data from an earlier poll.
	Stale bool `json:"stale"`

	// Fields maps raw state keys to raw values.
	Fields map[string]string `json:"fields"`

	// Info holds the projector's static identity, when known.
	Info projector.DeviceInfo `json:"info"`
}

// Availability payloads published on optoma/{projector_id}/availability.
const (
	availabilityOnline  = "online"
	availabilityOffline = "offline"
)
