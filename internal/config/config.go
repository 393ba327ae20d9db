package config

import (
	"os"

	"gopkg.in/yaml.v3"

	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
)

// CurrentVersion is the only configuration schema version accepted by Load.
const CurrentVersion = "1"

// Config is the daemon configuration file.
type Config struct {
	Version       string              `yaml:"version"`
	Paths         PathsConfig         `yaml:"paths"`
	Watch         WatchConfig         `yaml:"watch"`
	Store         StoreConfig         `yaml:"store"`
	PubSub        PubSubConfig        `yaml:"pubsub"`
	Relay         RelayConfig         `yaml:"relay"`
	Notifications NotificationsConfig `yaml:"notifications"`
	HTTP          HTTPConfig          `yaml:"http"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// PathsConfig locates the state files and the daemon's own data.
type PathsConfig struct {
	EmhttpDir        string `yaml:"emhttp_dir"`        // var.ini, disks.ini, ...
	ConfigDir        string `yaml:"config_dir"`        // flash config (plugins/dynamix/dynamix.cfg, ...)
	NotificationsDir string `yaml:"notifications_dir"` // contains unread/ and archive/
	DataDir          string `yaml:"data_dir"`          // daemon-owned persistent data
}

// WatchConfig selects how file changes are detected.
type WatchConfig struct {
	Mode         WatchMode `yaml:"mode"`          // native|poll
	Debounce     string    `yaml:"debounce"`      // coalescing window per path
	PollInterval string    `yaml:"poll_interval"` // poll mode only
}

// StoreConfig controls initial ingestion.
type StoreConfig struct {
	// RequiredKeys fail startup when the file exists but cannot be read.
	RequiredKeys []string `yaml:"required_keys"`
}

type PubSubConfig struct {
	MaxSubscribers int `yaml:"max_subscribers"`
}

// RelayConfig configures the outbound relay connection.
type RelayConfig struct {
	Enabled         bool          `yaml:"enabled"`
	URL             string        `yaml:"url"`
	Token           string        `yaml:"token"`
	ServerName      string        `yaml:"server_name"`
	SubjectPrefix   string        `yaml:"subject_prefix"`
	ConnectTimeout  string        `yaml:"connect_timeout"`
	Backoff         BackoffConfig `yaml:"backoff"`
	MaxAttempts     int           `yaml:"max_attempts"` // 0 retries forever
	RestartCodes    []int         `yaml:"restart_codes"`
	FatalCodes      []int         `yaml:"fatal_codes"`
	RestartDelay    string        `yaml:"restart_delay"`
	ProbeInterval   string        `yaml:"probe_interval"`
	ForwardChannels []string      `yaml:"forward_channels"`
}

// BackoffConfig mirrors retry.Policy.
type BackoffConfig struct {
	Mode    RetryBackoffMode `yaml:"mode"`
	Initial string           `yaml:"initial"`
	Max     string           `yaml:"max"`
}

// NotificationsConfig configures the notification watcher.
type NotificationsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	DedupCapacity int    `yaml:"dedup_capacity"`
	DedupMaxAge   string `yaml:"dedup_max_age"` // empty keeps entries until evicted by capacity
	Persist       bool   `yaml:"persist"`       // remember seen notifications across restarts

	enabledSpecified bool
	persistSpecified bool
}

// HTTPConfig configures the admin HTTP server.
type HTTPConfig struct {
	Enabled        bool   `yaml:"enabled"`
	Addr           string `yaml:"addr"`
	MaxConnections int    `yaml:"max_connections"`
	Metrics        bool   `yaml:"metrics"`

	enabledSpecified bool
	metricsSpecified bool
}

type LoggingConfig struct {
	Level  LogLevel  `yaml:"level"`
	Format LogFormat `yaml:"format"`
}

// Load reads, expands, defaults and validates the configuration at configPath.
// Variables from .env files are made available to ${VAR} expansion first.
func Load(configPath string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ferrors.ConfigError("configuration file not found").
				WithContext("path", configPath).
				Build()
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to read config file").
			WithContext("path", configPath).
			Build()
	}
	return Parse(data)
}

// Parse decodes a configuration document already in memory.
func Parse(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryConfig, "failed to unmarshal config").Build()
	}
	if cfg.Version != CurrentVersion {
		return nil, ferrors.ConfigError("unsupported configuration version").
			WithContext("version", cfg.Version).
			WithContext("expected", CurrentVersion).
			Build()
	}
	if err := ApplyDefaults(&cfg); err != nil {
		return nil, err
	}
	if err := ValidateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a fully defaulted configuration, as if loaded from an empty file.
func Default() *Config {
	cfg := &Config{Version: CurrentVersion}
	_ = ApplyDefaults(cfg)
	return cfg
}

// Init writes an example configuration file.
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return ferrors.ConfigError("configuration file already exists (use --force to overwrite)").
			WithContext("path", configPath).
			Build()
	}

	example := Default()
	example.Relay = RelayConfig{
		Enabled:         false,
		URL:             "nats://relay.example.com:4222",
		Token:           "${NASSTATE_RELAY_TOKEN}",
		ServerName:      "tower",
		SubjectPrefix:   "nasstate.tower",
		ConnectTimeout:  example.Relay.ConnectTimeout,
		Backoff:         example.Relay.Backoff,
		RestartCodes:    example.Relay.RestartCodes,
		RestartDelay:    example.Relay.RestartDelay,
		ProbeInterval:   example.Relay.ProbeInterval,
		ForwardChannels: []string{"INFO", "ARRAY", "NOTIFICATION", "CONNECTION_STATUS"},
	}

	data, err := yaml.Marshal(example)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryConfig, "failed to marshal example config").Build()
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to write config file").
			WithContext("path", configPath).
			Build()
	}
	return nil
}
