package mqtt

import (
	"context"
	"strings"
	"testing"
)

func TestTopicBuilders(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"state", topics.ProjectorState("cinema"), "optoma/cinema/state"},
		{"availability", topics.ProjectorAvailability("cinema"), "optoma/cinema/availability"},
		{"command", topics.ProjectorCommand("cinema"), "optoma/cinema/command"},
		{"power", topics.ProjectorPower("cinema"), "optoma/cinema/power"},
		{"ack", topics.ProjectorAck("cinema"), "optoma/cinema/ack"},
		{"system status", topics.SystemStatus(), "optoma/system/status"},
		{"all commands", topics.AllProjectorCommands(), "optoma/+/command"},
		{"all states", topics.AllProjectorStates(), "optoma/+/state"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("topic = %q, want %q", tt.got, tt.expected)
			}
		})
	}
}

func TestPublishValidation(t *testing.T) {
	c := &Client{}

	if err := c.Publish("", []byte("x"), 0, false); err != ErrInvalidTopic {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("optoma/1/state", []byte("x"), 3, false); err != ErrInvalidQoS {
		t.Errorf("bad QoS error = %v, want ErrInvalidQoS", err)
	}

	big := make([]byte, maxPayloadSize+1)
	err := c.Publish("optoma/1/state", big, 0, false)
	if err == nil || !strings.Contains(err.Error(), "exceeds maximum") {
		t.Errorf("oversized payload error = %v", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := &Client{subscriptions: map[string]subscription{}}

	if err := c.Subscribe("", 0, func(string, []byte) error { return nil }); err != ErrInvalidTopic {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("optoma/+/command", 5, func(string, []byte) error { return nil }); err != ErrInvalidQoS {
		t.Errorf("bad QoS error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Subscribe("optoma/+/command", 1, nil); err == nil {
		t.Error("nil handler accepted")
	}
}

func TestStatusPayloads(t *testing.T) {
	online := buildOnlinePayload("optomacore-test")
	if !strings.Contains(online, `"status":"online"`) || !strings.Contains(online, "optomacore-test") {
		t.Errorf("online payload = %s", online)
	}

	offline := buildOfflinePayload("optomacore-test")
	if !strings.Contains(offline, `"status":"offline"`) || !strings.Contains(offline, "graceful_shutdown") {
		t.Errorf("offline payload = %s", offline)
	}
}

func TestHealthCheckNotConnected(t *testing.T) {
	c := &Client{}
	if err := c.HealthCheck(context.Background()); err != ErrNotConnected {
		t.Errorf("HealthCheck() = %v, want ErrNotConnected", err)
	}
}
