package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WritePowerState records a projector power state observation.
//
// The state string is one of the coordinator's power states; the
// numeric field lets dashboards graph transitions without string
// mapping (0 standby, 1 on, 2 warming, 3 cooling, -1 unknown).
//
// Example:
//
//	client.WritePowerState("cinema", "warming", true)
func (c *Client) WritePowerState(projectorID string, state string, available bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"projector_power",
		map[string]string{
			"projector_id": projectorID,
		},
		map[string]interface{}{
			"state":     state,
			"state_num": powerStateNum(state),
			"available": available,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePollLatency records how long a poll cycle took and whether it
// succeeded. Useful for spotting the endpoint degrading before it
// fails outright.
func (c *Client) WritePollLatency(projectorID string, latency time.Duration, success bool) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"projector_poll",
		map[string]string{
			"projector_id": projectorID,
		},
		map[string]interface{}{
			"latency_ms": float64(latency.Milliseconds()),
			"success":    success,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WriteCommandResult records the outcome of a control write.
func (c *Client) WriteCommandResult(projectorID string, control string, success bool, duration time.Duration) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"projector_command",
		map[string]string{
			"projector_id": projectorID,
			"control":      control,
		},
		map[string]interface{}{
			"success":     success,
			"duration_ms": float64(duration.Milliseconds()),
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and
// fields, for measurements that don't fit the helpers.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

func powerStateNum(state string) int {
	switch state {
	case "standby":
		return 0
	case "on":
		return 1
	case "warming":
		return 2
	case "cooling":
		return 3
	default:
		return -1
	}
}
