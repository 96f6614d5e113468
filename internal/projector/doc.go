// Package projector implements the control plane for Optoma UHD laser
// projectors exposed over their embedded web endpoint.
//
// The firmware behind /form/control_cgi is hostile in small ways: it
// returns JSON with unquoted keys, wraps it in stray HTML, corrupts
// responses when requests overlap or arrive back to back, silently
// swaps completed sessions for a login page, and stops answering HTTP
// entirely in deep standby. Every component in this package exists to
// absorb one of those behaviours.
//
// # Architecture
//
//	┌────────────┐  snapshots  ┌─────────────┐  serialised  ┌──────────┐
//	│ subscribers│◄────────────│ Coordinator │─────────────►│   Gate   │
//	└────────────┘             └──────┬──────┘              └────┬─────┘
//	                                  │ power fallback           │ HTTP
//	                           ┌──────▼──────┐             ┌─────▼─────┐
//	                           │ TelnetClient│             │  Session  │
//	                           └─────────────┘             └───────────┘
//
// # Key Responsibilities
//
//   - Normalize repairs the firmware's non-standard JSON notation
//   - Session owns authentication, the fixed cookie, and expiry
//     detection with a single re-auth and retry
//   - Gate serialises all device traffic with minimum send spacing
//   - TelnetClient provides RS232-over-TCP power commands when the
//     web endpoint is unreachable
//   - Coordinator polls at a power-state-driven cadence, applies
//     optimistic overlays with rollback, and publishes snapshots
//
// # Thread Safety
//
// All exported types are safe for concurrent use from multiple
// goroutines.
package projector
