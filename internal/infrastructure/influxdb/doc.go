// Package influxdb provides time-series telemetry for the controller.
//
// It wraps the official influxdb-client-go v2 library with helpers for
// the controller's measurements: projector power state transitions,
// poll latency, and command outcomes. Writes are non-blocking and
// batched; async write errors surface through SetOnError.
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    // Metrics are optional; run without them.
//	}
//	defer client.Close()
//
//	client.WritePowerState("cinema", "on", true)
//	client.WritePollLatency("cinema", 230*time.Millisecond, true)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
package influxdb
