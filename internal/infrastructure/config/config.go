package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Optoma Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Projector ProjectorConfig `yaml:"projector"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	History   HistoryConfig   `yaml:"history"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// ProjectorConfig contains connection and behaviour settings for the
// projector itself.
type ProjectorConfig struct {
	// ID is the logical identifier used in MQTT topics and history records.
	ID string `yaml:"id"`

	// Host is the projector IP address or hostname.
	Host string `yaml:"host"`

	// Port is the projector HTTP control port. Default: 80
	Port int `yaml:"port"`

	// Model is a display-only model name (e.g., "ZK708T").
	Model string `yaml:"model"`

	// Auth holds credentials for the projector web login.
	Auth ProjectorAuthConfig `yaml:"auth"`

	// Optimistic enables local state updates before device confirmation.
	Optimistic bool `yaml:"optimistic"`

	// TelnetFallback enables the RS232-over-TCP power fallback channel.
	TelnetFallback bool `yaml:"telnet_fallback"`

	// ProjectorID is the RS232 address (0-99) used by the telnet fallback.
	// 0 broadcasts to all projectors on the line.
	ProjectorID int `yaml:"projector_id"`

	// Intervals controls adaptive polling cadence.
	Intervals IntervalConfig `yaml:"intervals"`

	// Timeouts controls request and gate timing.
	Timeouts TimeoutConfig `yaml:"timeouts"`
}

// ProjectorAuthConfig contains projector web session credentials.
// Most firmwares accept an empty username/password and only require the
// session cookie; both fields may be left blank.
type ProjectorAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// IntervalConfig contains polling intervals in seconds, keyed by the
// projector power state that selects them.
type IntervalConfig struct {
	// On is the interval while the projector is powered on. Default: 4
	On int `yaml:"on"`

	// Standby is the interval while in standby. Default: 12
	Standby int `yaml:"standby"`

	// Transition is the interval while warming or cooling. Default: 2
	Transition int `yaml:"transition"`
}

// TimeoutConfig contains request timing settings in seconds unless noted.
type TimeoutConfig struct {
	// Request is the timeout for polls and general commands. Default: 6
	Request int `yaml:"request"`

	// Power is the timeout for power commands, which the projector
	// services slowly. Default: 12
	Power int `yaml:"power"`

	// Gate is the maximum wait for the command serialization slot. Default: 10
	Gate int `yaml:"gate"`

	// MinCommandSpacingMS is the minimum spacing between the start of
	// consecutive requests, in milliseconds. Default: 200
	MinCommandSpacingMS int `yaml:"min_command_spacing_ms"`

	// Telnet is the timeout for fallback channel operations. Default: 5
	Telnet int `yaml:"telnet"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// APITimeoutConfig contains HTTP timeout settings.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// HistoryConfig contains state history recording settings.
type HistoryConfig struct {
	// Enabled turns on persistence of state transitions to SQLite.
	Enabled bool `yaml:"enabled"`

	// RetentionDays is how long entries are kept. Zero disables pruning.
	RetentionDays int `yaml:"retention_days"`
}

// Retention returns the history retention window as a Duration.
func (c *HistoryConfig) Retention() time.Duration {
	return time.Duration(c.RetentionDays) * 24 * time.Hour
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains JWT token settings for the API.
type JWTConfig struct {
	Secret         string `yaml:"secret"`
	AccessTokenTTL int    `yaml:"access_token_ttl"` // minutes
	Username       string `yaml:"username"`
	Password       string `yaml:"password"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: OPTOMA_SECTION_KEY
// For example: OPTOMA_PROJECTOR_HOST, OPTOMA_DATABASE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Projector: ProjectorConfig{
			ID:          "projector-001",
			Port:        80,
			Model:       "ZK708T",
			ProjectorID: 0,
			Intervals: IntervalConfig{
				On:         4,
				Standby:    12,
				Transition: 2,
			},
			Timeouts: TimeoutConfig{
				Request:             6,
				Power:               12,
				Gate:                10,
				MinCommandSpacingMS: 200,
				Telnet:              5,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/optoma.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "optoma-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "0.0.0.0",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		History: HistoryConfig{
			Enabled:       true,
			RetentionDays: 30,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL: 60,
				Username:       "admin",
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: OPTOMA_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Projector
	if v := os.Getenv("OPTOMA_PROJECTOR_HOST"); v != "" {
		cfg.Projector.Host = v
	}
	if v := os.Getenv("OPTOMA_PROJECTOR_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Projector.Port = port
		}
	}
	if v := os.Getenv("OPTOMA_PROJECTOR_PASSWORD"); v != "" {
		cfg.Projector.Auth.Password = v
	}

	// Database
	if v := os.Getenv("OPTOMA_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("OPTOMA_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("OPTOMA_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("OPTOMA_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("OPTOMA_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Security - JWT secret (IMPORTANT: always override in production)
	if v := os.Getenv("OPTOMA_JWT_SECRET"); v != "" {
		cfg.Security.JWT.Secret = v
	}
	if v := os.Getenv("OPTOMA_API_PASSWORD"); v != "" {
		cfg.Security.JWT.Password = v
	}
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Projector validation
	if c.Projector.Host == "" {
		errs = append(errs, "projector.host is required")
	}
	if c.Projector.Port < 1 || c.Projector.Port > 65535 {
		errs = append(errs, "projector.port must be between 1 and 65535")
	}
	if c.Projector.ProjectorID < 0 || c.Projector.ProjectorID > 99 {
		errs = append(errs, "projector.projector_id must be between 0 and 99")
	}
	if c.Projector.Intervals.On < 1 || c.Projector.Intervals.Standby < 1 ||
		c.Projector.Intervals.Transition < 1 {
		errs = append(errs, "projector.intervals must all be at least 1 second")
	}
	if c.Projector.Timeouts.MinCommandSpacingMS < 0 {
		errs = append(errs, "projector.timeouts.min_command_spacing_ms must not be negative")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// API validation
	if c.API.Enabled {
		if c.API.Port < 1 || c.API.Port > 65535 {
			errs = append(errs, "api.port must be between 1 and 65535")
		}

		// The API exposes device mutations, so token forgery means control
		// of physical hardware. Require a real secret when the API is on.
		const minJWTSecretLength = 32
		if c.Security.JWT.Secret == "" {
			errs = append(errs, "security.jwt.secret is required (set OPTOMA_JWT_SECRET environment variable)")
		} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
			errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// BaseURL returns the projector control endpoint base URL.
func (c *ProjectorConfig) BaseURL() string {
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

// IntervalOn returns the powered-on polling interval as a Duration.
func (c *ProjectorConfig) IntervalOn() time.Duration {
	return time.Duration(c.Intervals.On) * time.Second
}

// IntervalStandby returns the standby polling interval as a Duration.
func (c *ProjectorConfig) IntervalStandby() time.Duration {
	return time.Duration(c.Intervals.Standby) * time.Second
}

// IntervalTransition returns the warming/cooling polling interval as a Duration.
func (c *ProjectorConfig) IntervalTransition() time.Duration {
	return time.Duration(c.Intervals.Transition) * time.Second
}

// RequestTimeout returns the general request timeout as a Duration.
func (c *ProjectorConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeouts.Request) * time.Second
}

// PowerTimeout returns the power command timeout as a Duration.
func (c *ProjectorConfig) PowerTimeout() time.Duration {
	return time.Duration(c.Timeouts.Power) * time.Second
}

// GateTimeout returns the gate slot wait bound as a Duration.
func (c *ProjectorConfig) GateTimeout() time.Duration {
	return time.Duration(c.Timeouts.Gate) * time.Second
}

// MinCommandSpacing returns the minimum inter-request spacing as a Duration.
func (c *ProjectorConfig) MinCommandSpacing() time.Duration {
	return time.Duration(c.Timeouts.MinCommandSpacingMS) * time.Millisecond
}

// TelnetTimeout returns the fallback channel timeout as a Duration.
func (c *ProjectorConfig) TelnetTimeout() time.Duration {
	return time.Duration(c.Timeouts.Telnet) * time.Second
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}
