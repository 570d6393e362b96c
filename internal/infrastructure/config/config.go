package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the voice bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Instance  InstanceConfig  `yaml:"instance"`
	Database  DatabaseConfig  `yaml:"database"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Alexa     AlexaConfig     `yaml:"alexa"`
	HomeGraph HomeGraphConfig `yaml:"homegraph"`
}

// InstanceConfig identifies this bridge instance.
//
// ID doubles as the transport client id: change reports are published on
// response/<ID>/stateChange.
type InstanceConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
	// RetentionDays bounds how long change reports are kept. Zero keeps them forever.
	RetentionDays int `yaml:"retention_days"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
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

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
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
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// WebSocketConfig contains settings for the change-report stream.
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

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// AlexaConfig contains endpoint naming and change-report settings.
type AlexaConfig struct {
	// Language selects the locale used for friendly names ("en", "de", "fr").
	Language string `yaml:"language"`

	// ConcatWord joins room and function names, e.g. "Kitchen Lights".
	// Empty means a single space.
	ConcatWord string `yaml:"concat_word"`

	// FunctionFirst puts the function name before the room name.
	FunctionFirst bool `yaml:"function_first"`

	// ControlsFile is the YAML file describing detected controls.
	ControlsFile string `yaml:"controls_file"`

	// RecollectDelay debounces endpoint re-collection after object changes (ms).
	RecollectDelay int `yaml:"recollect_delay"`

	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig bounds outbound change-report publication.
type RateLimitConfig struct {
	EventsPerSecond float64 `yaml:"events_per_second"`
	Burst           int     `yaml:"burst"`
}

// HomeGraphConfig contains the MQTT topic layout of the home graph.
type HomeGraphConfig struct {
	TopicPrefix string `yaml:"topic_prefix"`
	// ReadTimeout bounds a single state read in milliseconds.
	ReadTimeout int `yaml:"read_timeout"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: VOICEBRIDGE_SECTION_KEY
// For example: VOICEBRIDGE_MQTT_HOST, VOICEBRIDGE_ALEXA_LANGUAGE
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
		Instance: InstanceConfig{
			ID:   "voicebridge-0",
			Name: "Voice Bridge",
		},
		Database: DatabaseConfig{
			Enabled:       true,
			Path:          "./data/voicebridge.db",
			WALMode:       true,
			BusyTimeout:   5,
			RetentionDays: 30,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "voicebridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
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
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Alexa: AlexaConfig{
			Language:       "en",
			ControlsFile:   "./configs/controls.yaml",
			RecollectDelay: 2000,
			RateLimit: RateLimitConfig{
				EventsPerSecond: 10,
				Burst:           20,
			},
		},
		HomeGraph: HomeGraphConfig{
			TopicPrefix: "homegraph",
			ReadTimeout: 2000,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: VOICEBRIDGE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("VOICEBRIDGE_INSTANCE_ID"); v != "" {
		cfg.Instance.ID = v
	}

	if v := os.Getenv("VOICEBRIDGE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	if v := os.Getenv("VOICEBRIDGE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("VOICEBRIDGE_MQTT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.MQTT.Broker.Port = port
		}
	}
	if v := os.Getenv("VOICEBRIDGE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("VOICEBRIDGE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	if v := os.Getenv("VOICEBRIDGE_API_HOST"); v != "" {
		cfg.API.Host = v
	}

	if v := os.Getenv("VOICEBRIDGE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	if v := os.Getenv("VOICEBRIDGE_ALEXA_LANGUAGE"); v != "" {
		cfg.Alexa.Language = v
	}
	if v := os.Getenv("VOICEBRIDGE_ALEXA_CONTROLS_FILE"); v != "" {
		cfg.Alexa.ControlsFile = v
	}
}

// supportedLanguages lists the locales with friendly-name translations.
var supportedLanguages = map[string]bool{"en": true, "de": true, "fr": true}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Instance.ID == "" {
		errs = append(errs, "instance.id is required")
	} else if strings.ContainsAny(c.Instance.ID, "/+#") {
		errs = append(errs, "instance.id must not contain MQTT topic characters (/, +, #)")
	}

	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Alexa.Language != "" && !supportedLanguages[strings.ToLower(c.Alexa.Language)] {
		errs = append(errs, "alexa.language must be one of en, de, fr")
	}
	if c.Alexa.ControlsFile == "" {
		errs = append(errs, "alexa.controls_file is required")
	}
	if c.Alexa.RateLimit.EventsPerSecond <= 0 {
		errs = append(errs, "alexa.rate_limit.events_per_second must be positive")
	}
	if c.Alexa.RateLimit.Burst < 1 {
		errs = append(errs, "alexa.rate_limit.burst must be at least 1")
	}

	if c.HomeGraph.TopicPrefix == "" {
		errs = append(errs, "homegraph.topic_prefix is required")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
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

// GetRecollectDelay returns the endpoint re-collection debounce as a Duration.
func (c *Config) GetRecollectDelay() time.Duration {
	return time.Duration(c.Alexa.RecollectDelay) * time.Millisecond
}

// GetReportRetention returns the change-report retention as a Duration.
func (c *Config) GetReportRetention() time.Duration {
	return time.Duration(c.Database.RetentionDays) * 24 * time.Hour
}

// GetReadStateTimeout returns the home-graph read timeout as a Duration.
func (c *Config) GetReadStateTimeout() time.Duration {
	return time.Duration(c.HomeGraph.ReadTimeout) * time.Millisecond
}
