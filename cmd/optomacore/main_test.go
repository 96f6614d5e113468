package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("OPTOMA_CONFIG")
	defer os.Setenv("OPTOMA_CONFIG", originalEnv)

	os.Setenv("OPTOMA_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDatabasePath verifies run fails when database path is empty.
func TestRun_MissingDatabasePath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
projector:
  id: test-projector
  host: "127.0.0.1"
  port: 80

database:
  path: ""
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

api:
  enabled: false

logging:
  level: info
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("OPTOMA_CONFIG")
	defer os.Setenv("OPTOMA_CONFIG", originalEnv)
	os.Setenv("OPTOMA_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

// TestGetConfigPath_Default verifies default config path.
func TestGetConfigPath_Default(t *testing.T) {
	originalEnv := os.Getenv("OPTOMA_CONFIG")
	defer os.Setenv("OPTOMA_CONFIG", originalEnv)

	os.Unsetenv("OPTOMA_CONFIG")

	path := getConfigPath()
	if path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

// TestGetConfigPath_EnvOverride verifies environment variable override.
func TestGetConfigPath_EnvOverride(t *testing.T) {
	originalEnv := os.Getenv("OPTOMA_CONFIG")
	defer os.Setenv("OPTOMA_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("OPTOMA_CONFIG", expected)

	path := getConfigPath()
	if path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

// TestRun_ShutdownOnContextCancel starts with all network-facing
// services disabled and verifies a clean shutdown when the context
// expires. The projector itself is unreachable, which the coordinator
// tolerates.
func TestRun_ShutdownOnContextCancel(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")
	dbPath := filepath.Join(tmpDir, "test.db")

	configContent := `
projector:
  id: test-projector
  host: "127.0.0.1"
  port: 65500

database:
  path: "` + dbPath + `"
  wal_mode: true
  busy_timeout: 5

mqtt:
  enabled: false

influxdb:
  enabled: false

api:
  enabled: false

history:
  enabled: true
  retention_days: 1

logging:
  level: error
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("OPTOMA_CONFIG")
	defer os.Setenv("OPTOMA_CONFIG", originalEnv)
	os.Setenv("OPTOMA_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Second)
	defer cancel()

	if err := run(ctx); err != nil {
		t.Errorf("run() returned error on clean shutdown: %v", err)
	}
}
