package main

import (
	"context"
	"fmt"

	"github.com/nerrad567/fleet-core/internal/actuation"
	"github.com/nerrad567/fleet-core/internal/api"
	"github.com/nerrad567/fleet-core/internal/automation"
	"github.com/nerrad567/fleet-core/internal/device"
	"github.com/nerrad567/fleet-core/internal/events"
	"github.com/nerrad567/fleet-core/internal/infrastructure/config"
	"github.com/nerrad567/fleet-core/internal/infrastructure/database"
	"github.com/nerrad567/fleet-core/internal/infrastructure/influxdb"
	"github.com/nerrad567/fleet-core/internal/infrastructure/logging"
	"github.com/nerrad567/fleet-core/internal/infrastructure/mqtt"
	"github.com/nerrad567/fleet-core/internal/journal"
	"github.com/nerrad567/fleet-core/internal/router"
	"github.com/nerrad567/fleet-core/migrations"
)

// run is the actual application logic, separated from main for testability.
// It blocks until ctx is cancelled, then shuts everything down in reverse
// start order.
func run(ctx context.Context, configPath string, explicit bool) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting Fleet Core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	cfg, err := loadConfig(configPath, explicit)
	if err != nil {
		return err
	}

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
		"site", cfg.Site.ID,
	)

	// Event plumbing. The bus closes last so every subscriber can drain.
	bus := events.NewBus(0)
	defer bus.Close()

	eventLog := events.NewLog(cfg.Events.Capacity)
	eventLog.SetBus(bus)

	// Event journal (optional)
	var db *database.DB
	var journalRepo journal.Repository
	if cfg.Database.Enabled {
		db, err = database.Open(cfg.Database)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()

		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("event journal ready", "path", cfg.Database.Path)

		repo := journal.NewSQLiteRepository(db.DB)
		writer := journal.NewWriter(repo, bus)
		writer.SetLogger(log.Component("journal"))
		writer.Start(ctx)
		defer writer.Stop()
		journalRepo = repo
	} else {
		log.Info("event journal disabled")
	}

	// Telemetry history (optional)
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

	registry := device.NewRegistry(device.Config{
		Timeout:       cfg.Fleet.DeviceTimeout,
		SweepInterval: cfg.Fleet.SweepInterval,
		MaxChannels:   cfg.Fleet.MaxChannels,
	})
	registry.SetLogger(log.Component("registry"))
	registry.SetRecorder(eventLog)
	registry.SetBus(bus)

	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log.Component("mqtt"))
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

	// #nosec G115 -- QoS validated to 0..2 by config.Validate
	sink := actuation.NewSink(registry, mqttClient, actuation.Options{
		PublishTimeout: cfg.Automation.PublishTimeout,
		QoS:            byte(cfg.Automation.CommandQoS),
	})
	sink.SetLogger(log.Component("actuation"))
	sink.SetRecorder(eventLog)

	engine := automation.NewEngine(registry, sink, automation.Config{
		Interval:    cfg.Automation.EvaluationInterval,
		Epsilon:     cfg.Automation.EqualityEpsilon,
		MaxChannels: cfg.Fleet.MaxChannels,
	})
	engine.SetLogger(log.Component("automation"))
	engine.SetRecorder(eventLog)
	engine.SetBus(bus)

	msgRouter := router.New(registry)
	msgRouter.SetLogger(log.Component("router"))
	msgRouter.SetRecorder(eventLog)
	msgRouter.SetGestureHandler(engine)

	// A nil *influxdb.Client must not reach the interface-typed setters.
	var history api.HistoryReader
	if influxClient != nil {
		sink.SetHistory(influxClient)
		msgRouter.SetTelemetryRecorder(influxClient)
		history = influxClient
	}

	// #nosec G115 -- QoS validated to 0..2 by config.Validate
	if subErr := msgRouter.Subscribe(ctx, mqttClient, byte(cfg.MQTT.QoS)); subErr != nil {
		return fmt.Errorf("subscribing to device topics: %w", subErr)
	}

	registry.Start(ctx)
	engine.Start(ctx)

	// Tickers stop before anything they publish through is torn down.
	defer func() {
		engine.Stop()
		registry.Stop()
	}()

	var apiServer *api.Server
	if cfg.API.Enabled {
		apiServer, err = api.New(api.Deps{
			Config:   cfg.API,
			WS:       cfg.WebSocket,
			Logger:   log.Component("api"),
			Registry: registry,
			Engine:   engine,
			Sink:     sink,
			Events:   eventLog,
			Bus:      bus,
			Journal:  journalRepo,
			History:  history,
			Broker:   mqttClient,
			Router:   msgRouter,
			Version:  version,
		})
		if err != nil {
			return fmt.Errorf("creating API server: %w", err)
		}
		if startErr := apiServer.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := apiServer.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
		log.Info("API server listening", "addr", fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port))
	} else {
		log.Info("API server disabled")
	}

	// Verify all connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient, apiServer); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred cleanup runs in reverse order:
	// 1. API server (if enabled)
	// 2. Automation engine and presence sweep
	// 3. MQTT
	// 4. InfluxDB (if enabled)
	// 5. Journal writer and database (if enabled)
	// 6. Event bus

	log.Info("Fleet Core stopped")
	return nil
}

// loadConfig reads the config file. An implicit path that does not exist
// falls back to the built-in defaults.
func loadConfig(path string, explicit bool) (*config.Config, error) {
	if !explicit && configFileMissing(path) {
		cfg, err := config.Default()
		if err != nil {
			return nil, fmt.Errorf("loading default config: %w", err)
		}
		return cfg, nil
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// healthCheck verifies the infrastructure connections. Optional components
// that are disabled are passed as nil and skipped.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client, apiServer *api.Server) error {
	if db != nil {
		if err := db.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	if apiServer != nil {
		if err := apiServer.HealthCheck(ctx); err != nil {
			return fmt.Errorf("api: %w", err)
		}
	}

	return nil
}
