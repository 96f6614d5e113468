// Package mqtt provides MQTT client connectivity for the controller.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// MQTT is the integration surface towards home automation platforms:
// the controller publishes projector state and availability, and
// accepts control and power requests on per-projector command topics.
//
//	Automation Platform ↔ MQTT Broker ↔ Controller ↔ Projector
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Listen for commands addressed to any projector
//	err = client.Subscribe(mqtt.Topics{}.AllProjectorCommands(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a state snapshot
//	topic := mqtt.Topics{}.ProjectorState("cinema")
//	client.Publish(topic, payload, 1, true)
package mqtt
