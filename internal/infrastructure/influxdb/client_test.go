package influxdb

import (
	"context"
	"errors"
	"testing"

	"github.com/nerrad567/optoma-core/internal/infrastructure/config"
)

func TestConnectDisabled(t *testing.T) {
	_, err := Connect(config.InfluxDBConfig{Enabled: false})
	if !errors.Is(err, ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestHealthCheckNotConnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); !errors.Is(err, ErrNotConnected) {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}
}

func TestWritesAreNoopsWhenDisconnected(t *testing.T) {
	c := &Client{} // never connected, writeAPI nil

	// Must not panic.
	c.WritePowerState("cinema", "on", true)
	c.WritePollLatency("cinema", 0, false)
	c.WriteCommandResult("cinema", "volume", true, 0)
	c.WritePoint("custom", nil, map[string]interface{}{"v": 1})
	c.Flush()
}

func TestCloseWithoutConnect(t *testing.T) {
	c := &Client{}
	if err := c.Close(); err != nil {
		t.Errorf("Close() error: %v", err)
	}
}

func TestPowerStateNum(t *testing.T) {
	tests := []struct {
		state string
		want  int
	}{
		{"standby", 0},
		{"on", 1},
		{"warming", 2},
		{"cooling", 3},
		{"unknown", -1},
		{"", -1},
	}
	for _, tt := range tests {
		if got := powerStateNum(tt.state); got != tt.want {
			t.Errorf("powerStateNum(%q) = %d, want %d", tt.state, got, tt.want)
		}
	}
}
