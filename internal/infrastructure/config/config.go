package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Connection lifecycle modes for the data-access session.
//
// Two conflicting lifecycles exist in the field: holding one session open
// for the whole run, or opening a fresh session per batch with a settle
// delay so the server can release tag allocations. Both are supported;
// per_batch is the default because it is the more robust strategy against
// stale connections.
const (
	ConnectionModePerBatch   = "per_batch"
	ConnectionModePersistent = "persistent"
)

// Config is the root configuration structure for opcburst.
// All configuration is loaded from YAML and can be overridden by
// environment variables and command-line flags.
type Config struct {
	Poll     PollConfig     `yaml:"poll"`
	Logging  LoggingConfig  `yaml:"logging"`
	History  HistoryConfig  `yaml:"history"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
}

// PollConfig contains the burst polling settings.
type PollConfig struct {
	// ServerName identifies the data-access server to connect to.
	// The sim:// scheme selects the built-in simulation server.
	ServerName string `yaml:"server_name"`

	// TagFile is the CSV/XLSX file holding the Tag column. Normally set
	// via the --tagfile flag rather than the config file.
	TagFile string `yaml:"tag_file"`

	// MaxTagsPerInterval is the maximum number of tags read in one burst.
	MaxTagsPerInterval int `yaml:"max_tags_per_interval"`

	// IntervalSeconds is the wait between bursts.
	IntervalSeconds int `yaml:"interval_seconds"`

	// DisconnectWaitSeconds is the settle delay after closing a session,
	// allowing the server to release per-tag resources before the next open.
	DisconnectWaitSeconds int `yaml:"disconnect_wait_seconds"`

	// ConnectionMode is "per_batch" or "persistent".
	ConnectionMode string `yaml:"connection_mode"`

	// Repeat re-runs the full batch sequence indefinitely instead of
	// exiting after one pass over the tag list.
	Repeat bool `yaml:"repeat"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// HistoryConfig contains settings for the optional SQLite read-history sink.
type HistoryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains settings for the optional InfluxDB result sink.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// MQTTConfig contains settings for the optional MQTT result sink.
type MQTTConfig struct {
	Enabled bool             `yaml:"enabled"`
	Broker  MQTTBrokerConfig `yaml:"broker"`
	Auth    MQTTAuthConfig   `yaml:"auth"`
	QoS     int              `yaml:"qos"`
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

// Load reads configuration from a YAML file and applies environment
// variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// An empty path skips the file step and returns defaults plus environment
// overrides; the poller is fully usable from command-line flags alone.
//
// Environment variables follow the pattern: OPCBURST_SECTION_KEY
// For example: OPCBURST_POLL_SERVER_NAME, OPCBURST_INFLUXDB_TOKEN
//
// Parameters:
//   - path: Path to the YAML configuration file, or "" for defaults only
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
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
		Poll: PollConfig{
			ServerName:            "sim://local",
			MaxTagsPerInterval:    100,
			IntervalSeconds:       60,
			DisconnectWaitSeconds: 10,
			ConnectionMode:        ConnectionModePerBatch,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		History: HistoryConfig{
			Path:        "./data/opcburst.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "opcburst",
			},
			QoS: 1,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the
// configuration. Environment variables follow the pattern:
// OPCBURST_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Poll
	if v := os.Getenv("OPCBURST_POLL_SERVER_NAME"); v != "" {
		cfg.Poll.ServerName = v
	}
	if v := os.Getenv("OPCBURST_POLL_CONNECTION_MODE"); v != "" {
		cfg.Poll.ConnectionMode = v
	}
	if v := os.Getenv("OPCBURST_POLL_MAX_TAGS_PER_INTERVAL"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Poll.MaxTagsPerInterval = n
		}
	}

	// History
	if v := os.Getenv("OPCBURST_HISTORY_PATH"); v != "" {
		cfg.History.Path = v
	}

	// InfluxDB
	if v := os.Getenv("OPCBURST_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// MQTT
	if v := os.Getenv("OPCBURST_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("OPCBURST_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("OPCBURST_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Poll validation
	if c.Poll.ServerName == "" {
		errs = append(errs, "poll.server_name is required")
	}
	if c.Poll.MaxTagsPerInterval <= 0 {
		errs = append(errs, "poll.max_tags_per_interval must be positive")
	}
	if c.Poll.IntervalSeconds < 0 {
		errs = append(errs, "poll.interval_seconds must not be negative")
	}
	if c.Poll.DisconnectWaitSeconds < 0 {
		errs = append(errs, "poll.disconnect_wait_seconds must not be negative")
	}
	switch c.Poll.ConnectionMode {
	case ConnectionModePerBatch, ConnectionModePersistent:
	default:
		errs = append(errs, fmt.Sprintf("poll.connection_mode must be %q or %q",
			ConnectionModePerBatch, ConnectionModePersistent))
	}

	// History validation
	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, "history.path is required when history is enabled")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.Broker.Host == "" {
		errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetInterval returns the inter-batch wait as a Duration.
func (c *Config) GetInterval() time.Duration {
	return time.Duration(c.Poll.IntervalSeconds) * time.Second
}

// GetDisconnectWait returns the post-close settle delay as a Duration.
func (c *Config) GetDisconnectWait() time.Duration {
	return time.Duration(c.Poll.DisconnectWaitSeconds) * time.Second
}
