package mqtt

import "fmt"

// Topic prefixes for the controller's MQTT surface.
//
// Projector topics use the flat scheme: optoma/{projector_id}/{category}.
// Home automation platforms subscribe to state and availability; commands
// and power requests flow the other way.
const (
	// TopicPrefixProjector is the base for per-projector topics.
	TopicPrefixProjector = "optoma"

	// TopicPrefixSystem is the base for controller-level topics.
	TopicPrefixSystem = "optoma/system"
)

// Topics provides builders for the controller's MQTT topics. Using
// these helpers keeps topic naming consistent across the codebase.
//
//	topics := mqtt.Topics{}
//	stateTopic := topics.ProjectorState("cinema")
//	// Returns: "optoma/cinema/state"
type Topics struct{}

// ProjectorState returns the topic for full state snapshots.
//
// Example: optoma/cinema/state
func (Topics) ProjectorState(projectorID string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixProjector, projectorID)
}

// ProjectorAvailability returns the topic for reachability updates.
//
// Example: optoma/cinema/availability
func (Topics) ProjectorAvailability(projectorID string) string {
	return fmt.Sprintf("%s/%s/availability", TopicPrefixProjector, projectorID)
}

// ProjectorCommand returns the topic the controller listens on for
// control writes.
//
// Example: optoma/cinema/command
func (Topics) ProjectorCommand(projectorID string) string {
	return fmt.Sprintf("%s/%s/command", TopicPrefixProjector, projectorID)
}

// ProjectorPower returns the topic for power on/off requests.
//
// Example: optoma/cinema/power
func (Topics) ProjectorPower(projectorID string) string {
	return fmt.Sprintf("%s/%s/power", TopicPrefixProjector, projectorID)
}

// ProjectorAck returns the topic for command acknowledgements.
//
// Example: optoma/cinema/ack
func (Topics) ProjectorAck(projectorID string) string {
	return fmt.Sprintf("%s/%s/ack", TopicPrefixProjector, projectorID)
}

// SystemStatus returns the controller status topic, also used for the
// Last Will and Testament.
//
// Example: optoma/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllProjectorCommands returns a pattern matching command topics for
// every projector.
//
// Pattern: optoma/+/command
func (Topics) AllProjectorCommands() string {
	return fmt.Sprintf("%s/+/command", TopicPrefixProjector)
}

// AllProjectorStates returns a pattern matching every projector's
// state topic.
//
// Pattern: optoma/+/state
func (Topics) AllProjectorStates() string {
	return fmt.Sprintf("%s/+/state", TopicPrefixProjector)
}
