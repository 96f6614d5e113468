package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
projector:
  id: "cinema-proj"
  host: "192.168.1.50"
  port: 80
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
mqtt:
  broker:
    host: "localhost"
    port: 1883
    client_id: "test-client"
  qos: 1
api:
  enabled: true
  host: "0.0.0.0"
  port: 8090
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Projector.ID != "cinema-proj" {
		t.Errorf("Projector.ID = %q, want %q", cfg.Projector.ID, "cinema-proj")
	}

	if cfg.Projector.Host != "192.168.1.50" {
		t.Errorf("Projector.Host = %q, want %q", cfg.Projector.Host, "192.168.1.50")
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}

	if cfg.MQTT.Broker.Host != "localhost" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "localhost")
	}
}

func TestLoad_Defaults(t *testing.T) {
	content := `
projector:
  host: "192.168.1.50"
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if got := cfg.Projector.IntervalOn(); got != 4*time.Second {
		t.Errorf("IntervalOn() = %v, want 4s", got)
	}
	if got := cfg.Projector.IntervalStandby(); got != 12*time.Second {
		t.Errorf("IntervalStandby() = %v, want 12s", got)
	}
	if got := cfg.Projector.IntervalTransition(); got != 2*time.Second {
		t.Errorf("IntervalTransition() = %v, want 2s", got)
	}
	if got := cfg.Projector.MinCommandSpacing(); got != 200*time.Millisecond {
		t.Errorf("MinCommandSpacing() = %v, want 200ms", got)
	}
	if got := cfg.Projector.PowerTimeout(); got != 12*time.Second {
		t.Errorf("PowerTimeout() = %v, want 12s", got)
	}
	if got := cfg.Projector.BaseURL(); got != "http://192.168.1.50:80" {
		t.Errorf("BaseURL() = %q, want %q", got, "http://192.168.1.50:80")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "invalid: [yaml: content"))
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_ValidationFailure(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{
			name: "missing host",
			content: `
projector:
  host: ""
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`,
		},
		{
			name: "projector id out of range",
			content: `
projector:
  host: "192.168.1.50"
  projector_id: 120
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`,
		},
		{
			name: "short jwt secret",
			content: `
projector:
  host: "192.168.1.50"
security:
  jwt:
    secret: "short"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.content)); err == nil {
				t.Error("Load() expected validation error, got nil")
			}
		})
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	content := `
projector:
  host: "192.168.1.50"
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`
	t.Setenv("OPTOMA_PROJECTOR_HOST", "10.0.0.9")
	t.Setenv("OPTOMA_MQTT_PASSWORD", "broker-pass")

	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Projector.Host != "10.0.0.9" {
		t.Errorf("Projector.Host = %q, want env override %q", cfg.Projector.Host, "10.0.0.9")
	}
	if cfg.MQTT.Auth.Password != "broker-pass" {
		t.Errorf("MQTT.Auth.Password = %q, want env override", cfg.MQTT.Auth.Password)
	}
}
