// Package bridge connects the projector coordinator to MQTT.
//
// The bridge is a thin translation layer: coordinator snapshots become
// retained state and availability messages, and inbound command/power
// messages become controller calls, each acknowledged with a correlated
// ack message.
//
// # Architecture
//
//	┌─────────────┐  Subscribe   ┌────────┐  Publish   ┌────────┐
//	│ Coordinator │─────────────▶│ Bridge │───────────▶│ Broker │
//	│             │◀─────────────│        │◀───────────│        │
//	└─────────────┘  SetControl  └────────┘  command/  └────────┘
//	                 PowerOn/Off              power
//
// Topics (per projector):
//
//	optoma/{id}/state         retained JSON snapshot
//	optoma/{id}/availability  retained "online"/"offline"
//	optoma/{id}/command       inbound control commands
//	optoma/{id}/power         inbound power requests ("on"/"off" or JSON)
//	optoma/{id}/ack           command acknowledgments
//
// # Thread Safety
//
// All exported methods are safe for concurrent use. Inbound MQTT
// handlers run on the client's callback goroutines; snapshot publishing
// runs on the bridge's own goroutine.
package bridge
