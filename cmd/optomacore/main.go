// Optoma Core - projector control daemon
//
// This is the main entry point for the Optoma Core application. It
// supervises a single projector over its HTTP control endpoint,
// republishes state over MQTT and WebSocket, and exposes a REST API
// for commands and history.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/nerrad567/optoma-core/migrations"

	"github.com/nerrad567/optoma-core/internal/api"
	"github.com/nerrad567/optoma-core/internal/bridge"
	"github.com/nerrad567/optoma-core/internal/history"
	"github.com/nerrad567/optoma-core/internal/infrastructure/config"
	"github.com/nerrad567/optoma-core/internal/infrastructure/database"
	"github.com/nerrad567/optoma-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/optoma-core/internal/infrastructure/logging"
	"github.com/nerrad567/optoma-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/optoma-core/internal/metrics"
	"github.com/nerrad567/optoma-core/internal/projector"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Cancel on interrupt signals (Ctrl+C, SIGTERM) for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
// Returning an error allows main to handle exit codes consistently.
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Optoma Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Open database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Build the projector coordinator
	coordinator, telemetry := buildCoordinator(cfg, influxClient, log)
	if startErr := coordinator.Start(ctx); startErr != nil {
		// Not fatal: the projector may simply be powered down at the
		// wall. The coordinator keeps polling.
		log.Warn("initial projector poll failed", "error", startErr)
	}
	defer func() {
		log.Info("stopping coordinator")
		coordinator.Close()
	}()
	log.Info("projector coordinator started",
		"projector_id", cfg.Projector.ID,
		"host", cfg.Projector.Host,
	)

	if telemetry != nil {
		telemetry.Start(ctx)
		defer telemetry.Close()
		log.Info("telemetry recorder started")
	}

	// State history recorder (optional)
	if cfg.History.Enabled {
		historyRepo := history.NewSQLiteRepository(db.DB)
		recorder := history.NewRecorder(cfg.Projector.ID, historyRepo, coordinator, cfg.History.Retention(), log)
		recorder.Start(ctx)
		defer func() {
			log.Info("stopping history recorder")
			recorder.Close()
		}()
		log.Info("history recorder started", "retention_days", cfg.History.RetentionDays)
	}

	// Connect to MQTT broker and start the bridge (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttBridge, bridgeErr := bridge.New(bridge.Options{
			ProjectorID: cfg.Projector.ID,
			MQTTClient:  mqttClient,
			Controller:  coordinator,
			QoS:         byte(cfg.MQTT.QoS),
			Logger:      log,
		})
		if bridgeErr != nil {
			return fmt.Errorf("creating MQTT bridge: %w", bridgeErr)
		}
		if startErr := mqttBridge.Start(); startErr != nil {
			return fmt.Errorf("starting MQTT bridge: %w", startErr)
		}
		defer func() {
			log.Info("stopping MQTT bridge")
			mqttBridge.Stop()
		}()
		log.Info("MQTT bridge started")
	} else {
		log.Info("MQTT disabled")
	}

	// Start the API server (optional)
	if cfg.API.Enabled {
		var historyStore api.HistoryStore
		if cfg.History.Enabled {
			historyStore = history.NewSQLiteRepository(db.DB)
		}

		health := map[string]api.HealthChecker{
			"database": db,
		}
		if mqttClient != nil {
			health["mqtt"] = mqttClient
		}
		if influxClient != nil {
			health["influxdb"] = influxClient
		}

		apiServer, apiErr := api.New(api.Deps{
			Config:      cfg.API,
			WS:          cfg.WebSocket,
			Security:    cfg.Security,
			Logger:      log,
			ProjectorID: cfg.Projector.ID,
			Controller:  coordinator,
			History:     historyStore,
			Health:      health,
			Version:     version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
		log.Info("API server started", "address", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))
	} else {
		log.Info("API server disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// buildCoordinator assembles the projector session, gate, telnet
// fallback, and coordinator from configuration. The returned telemetry
// recorder is nil when InfluxDB is not connected.
func buildCoordinator(cfg *config.Config, influxClient *influxdb.Client, log *logging.Logger) (*projector.Coordinator, *metrics.Recorder) {
	session := projector.NewSession(projector.SessionConfig{
		BaseURL:  cfg.Projector.BaseURL(),
		Username: cfg.Projector.Auth.Username,
		Password: cfg.Projector.Auth.Password,
	}, &http.Client{}, log)

	gate := projector.NewGate(projector.GateConfig{
		MinSpacing:  cfg.Projector.MinCommandSpacing(),
		SlotTimeout: cfg.Projector.GateTimeout(),
	}, nil)

	coordinatorCfg := projector.CoordinatorConfig{
		IntervalOn:         cfg.Projector.IntervalOn(),
		IntervalStandby:    cfg.Projector.IntervalStandby(),
		IntervalTransition: cfg.Projector.IntervalTransition(),
		RequestTimeout:     cfg.Projector.RequestTimeout(),
		PowerTimeout:       cfg.Projector.PowerTimeout(),
		Optimistic:         cfg.Projector.Optimistic,
	}

	var coordinator *projector.Coordinator
	if cfg.Projector.TelnetFallback {
		telnet := projector.NewTelnetClient(projector.TelnetConfig{
			Host:        cfg.Projector.Host,
			ProjectorID: cfg.Projector.ProjectorID,
			Timeout:     cfg.Projector.TelnetTimeout(),
		}, nil, log)
		coordinator = projector.NewCoordinator(coordinatorCfg, session, gate, telnet, nil, log)
	} else {
		coordinator = projector.NewCoordinator(coordinatorCfg, session, gate, nil, nil, log)
	}

	var telemetry *metrics.Recorder
	if influxClient != nil {
		telemetry = metrics.NewRecorder(cfg.Projector.ID, influxClient, coordinator, log)
		coordinator.SetObserver(telemetry)
	}

	return coordinator, telemetry
}

// getConfigPath returns the configuration file path.
// Uses OPTOMA_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("OPTOMA_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
