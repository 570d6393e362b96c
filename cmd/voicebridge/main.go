// Gray Logic Voice Bridge
//
// This is the main entry point of the voice bridge. It serves Alexa Smart
// Home directives against the home graph:
//   - Directives arrive on the MQTT directive topic (and optionally over HTTP)
//   - Endpoints are collected from the configured controls file
//   - State changes in the home graph are published as change reports
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-voicebridge/internal/alexa"
	"github.com/nerrad567/gray-logic-voicebridge/internal/api"
	"github.com/nerrad567/gray-logic-voicebridge/internal/control"
	"github.com/nerrad567/gray-logic-voicebridge/internal/endpoint"
	"github.com/nerrad567/gray-logic-voicebridge/internal/homegraph"
	"github.com/nerrad567/gray-logic-voicebridge/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-voicebridge/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-voicebridge/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-voicebridge/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-voicebridge/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-voicebridge/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

const (
	// defaultConfigPath is used when VOICEBRIDGE_CONFIG is unset.
	defaultConfigPath = "configs/voicebridge.yaml"

	// directiveTimeout bounds one directive. Alexa gives up after 8 seconds.
	directiveTimeout = 8 * time.Second

	// pruneInterval is how often expired change reports are deleted.
	pruneInterval = time.Hour
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // startup wiring
	log := logging.Default()
	log.Info("starting Gray Logic Voice Bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	checks := make(map[string]api.HealthChecker)

	// Open database (optional): change report history
	var reportStore *endpoint.SQLiteReportStore
	if cfg.Database.Enabled {
		db, openErr := database.Open(database.Config{
			Path:        cfg.Database.Path,
			WALMode:     cfg.Database.WALMode,
			BusyTimeout: cfg.Database.BusyTimeout,
		})
		if openErr != nil {
			return fmt.Errorf("opening database: %w", openErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database connected", "path", cfg.Database.Path)

		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		log.Info("database migrations complete")

		reportStore = endpoint.NewSQLiteReportStore(db.DB)
		checks["database"] = db
	} else {
		log.Info("database disabled, change report history off")
	}

	// Connect to MQTT broker
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
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	checks["mqtt"] = mqttClient
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Connect to InfluxDB (optional): directive and change report metrics
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
		checks["influxdb"] = influxClient
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	topics := mqtt.NewTopics(cfg.Instance.ID, cfg.HomeGraph.TopicPrefix)

	graph := homegraph.NewMQTTGraph(mqttClient, topics, cfg.GetReadStateTimeout())
	graph.SetLogger(log.Component("homegraph"))

	hub := api.NewHub(cfg.WebSocket, log.Component("websocket"))
	go hub.Run(ctx)

	// Change report publication
	publisher := endpoint.NewPublisher(0,
		endpoint.NewMQTTSink(mqttClient, topics.StateChange()),
		endpoint.NewBroadcastSink(hub),
	)
	if reportStore != nil {
		publisher.AddSink(endpoint.NewHistorySink(reportStore))
	}
	if influxClient != nil {
		publisher.AddSink(endpoint.NewMetricsSink(influxClient))
	}
	publisher.SetLogger(log.Component("publisher"))
	publisher.Start()
	defer func() {
		log.Info("draining change reports")
		publisher.Close()
	}()

	manager := endpoint.NewManager(control.NewFileDetector(cfg.Alexa.ControlsFile), graph, publisher, endpoint.Options{
		Naming: endpoint.NamingOptions{
			Language:      cfg.Alexa.Language,
			ConcatWord:    cfg.Alexa.ConcatWord,
			FunctionFirst: cfg.Alexa.FunctionFirst,
		},
		RecollectDelay:  cfg.GetRecollectDelay(),
		EventsPerSecond: cfg.Alexa.RateLimit.EventsPerSecond,
		Burst:           cfg.Alexa.RateLimit.Burst,
	})
	manager.SetLogger(log.Component("endpoint"))
	if influxClient != nil {
		manager.SetMetrics(influxClient)
	}
	defer manager.Close()

	graph.OnStateChange(manager.HandleStateUpdate)
	graph.OnObjectChange(manager.HandleObjectChange)
	if err := graph.Start(); err != nil {
		return fmt.Errorf("subscribing to home graph: %w", err)
	}

	if err := manager.CollectEndpoints(ctx); err != nil {
		// Discovery retries the collection, so a bad controls file is not fatal.
		log.Warn("initial endpoint collection failed", "error", err)
	} else {
		log.Info("endpoints ready", "count", len(manager.Devices()))
	}

	relay := newDirectiveRelay(ctx, manager, mqttClient, topics.DirectiveResponse(), log.Component("directive"))
	if err := mqttClient.Subscribe(topics.Directive(), byte(cfg.MQTT.QoS), relay.handle); err != nil {
		return fmt.Errorf("subscribing to directives: %w", err)
	}
	log.Info("listening for directives", "topic", topics.Directive())

	// Start HTTP API (optional)
	if cfg.API.Enabled {
		deps := api.Deps{
			Config:  cfg.API,
			WS:      cfg.WebSocket,
			Logger:  log.Component("api"),
			Manager: manager,
			Checks:  checks,
			Hub:     hub,
			Version: version,
		}
		if reportStore != nil {
			deps.Reports = reportStore
		}
		server, apiErr := api.New(deps)
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if apiErr := server.Start(ctx); apiErr != nil {
			return fmt.Errorf("starting API server: %w", apiErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	if reportStore != nil && cfg.Database.RetentionDays > 0 {
		go pruneLoop(ctx, reportStore, cfg.GetReportRetention(), log)
	}

	if err := healthCheck(ctx, checks); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order: API, manager, publisher,
	// InfluxDB, MQTT, database.

	log.Info("Gray Logic Voice Bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses VOICEBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("VOICEBRIDGE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, checks map[string]api.HealthChecker) error {
	for name, check := range checks {
		if err := check.HealthCheck(ctx); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// pruneLoop deletes expired change reports until ctx is cancelled.
func pruneLoop(ctx context.Context, store *endpoint.SQLiteReportStore, retention time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(pruneInterval)
	defer ticker.Stop()

	for {
		n, err := store.Prune(ctx, retention)
		if err != nil {
			log.Warn("pruning change reports failed", "error", err)
		} else if n > 0 {
			log.Info("pruned change reports", "deleted", n)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// =============================================================================
// Directive relay
// =============================================================================

// directiveHandler serves one directive. *endpoint.Manager satisfies it.
type directiveHandler interface {
	HandleAlexaEvent(ctx context.Context, d alexa.Directive) *alexa.Response
}

// directiveRelay answers directives received on the MQTT directive topic.
//
// Each directive runs on its own goroutine so a slow home-graph read never
// stalls the MQTT delivery goroutine, which also carries state updates.
type directiveRelay struct {
	ctx       context.Context
	handler   directiveHandler
	publisher endpoint.MessagePublisher
	topic     string
	log       *logging.Logger
}

func newDirectiveRelay(ctx context.Context, handler directiveHandler, publisher endpoint.MessagePublisher, topic string, log *logging.Logger) *directiveRelay {
	return &directiveRelay{ctx: ctx, handler: handler, publisher: publisher, topic: topic, log: log}
}

// handle implements mqtt.MessageHandler.
func (r *directiveRelay) handle(_ string, payload []byte) error {
	req, err := alexa.ParseRequest(payload)
	if err != nil {
		r.log.Warn("malformed directive", "error", err)
		return r.respond(alexa.NewErrorResponse(req.Directive, err))
	}

	go func() {
		ctx, cancel := context.WithTimeout(r.ctx, directiveTimeout)
		defer cancel()
		if err := r.respond(r.handler.HandleAlexaEvent(ctx, req.Directive)); err != nil {
			r.log.Error("publishing directive response failed",
				"namespace", req.Directive.Header.Namespace,
				"name", req.Directive.Header.Name,
				"error", err,
			)
		}
	}()
	return nil
}

func (r *directiveRelay) respond(resp *alexa.Response) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("marshalling directive response: %w", err)
	}
	return r.publisher.PublishDefault(r.topic, data)
}
