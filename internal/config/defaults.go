package config

import (
	"path/filepath"
	"time"
)

// DefaultApplier applies defaults for a specific configuration domain.
type DefaultApplier interface {
	ApplyDefaults(cfg *Config) error
	Domain() string
}

// ApplyDefaults runs every domain applier in order.
func ApplyDefaults(cfg *Config) error {
	for _, a := range defaultAppliers() {
		if err := a.ApplyDefaults(cfg); err != nil {
			return err
		}
	}
	return nil
}

func defaultAppliers() []DefaultApplier {
	return []DefaultApplier{
		&pathsDefaults{},
		&watchDefaults{},
		&storeDefaults{},
		&relayDefaults{},
		&notificationsDefaults{},
		&httpDefaults{},
		&loggingDefaults{},
	}
}

const (
	DefaultEmhttpDir        = "/usr/local/emhttp/state"
	DefaultConfigDir        = "/boot/config"
	DefaultNotificationsDir = "/tmp/notifications"
	DefaultDataDir          = "/var/lib/nasstate"
	DefaultHTTPAddr         = "127.0.0.1:9470"
)

// DefaultRestartCodes is the close code the relay sends before a planned restart.
var DefaultRestartCodes = []int{4200}

type pathsDefaults struct{}

func (pathsDefaults) Domain() string { return "paths" }

func (pathsDefaults) ApplyDefaults(cfg *Config) error {
	p := &cfg.Paths
	if p.EmhttpDir == "" {
		p.EmhttpDir = DefaultEmhttpDir
	}
	if p.ConfigDir == "" {
		p.ConfigDir = DefaultConfigDir
	}
	if p.NotificationsDir == "" {
		p.NotificationsDir = DefaultNotificationsDir
	}
	if p.DataDir == "" {
		p.DataDir = DefaultDataDir
	}
	for _, dir := range []*string{&p.EmhttpDir, &p.ConfigDir, &p.NotificationsDir, &p.DataDir} {
		*dir = filepath.Clean(*dir)
	}
	return nil
}

type watchDefaults struct{}

func (watchDefaults) Domain() string { return "watch" }

func (watchDefaults) ApplyDefaults(cfg *Config) error {
	w := &cfg.Watch
	if w.Mode == "" {
		w.Mode = WatchModeNative
	} else if m, ok := watchModeNormalizer.Lookup(string(w.Mode)); ok {
		w.Mode = m
	}
	if w.Debounce == "" {
		w.Debounce = "250ms"
	}
	if w.PollInterval == "" {
		w.PollInterval = "1s"
	}
	return nil
}

type storeDefaults struct{}

func (storeDefaults) Domain() string { return "store" }

func (storeDefaults) ApplyDefaults(cfg *Config) error {
	if cfg.Store.RequiredKeys == nil {
		cfg.Store.RequiredKeys = []string{"var"}
	}
	if cfg.PubSub.MaxSubscribers <= 0 {
		cfg.PubSub.MaxSubscribers = 30
	}
	return nil
}

type relayDefaults struct{}

func (relayDefaults) Domain() string { return "relay" }

func (relayDefaults) ApplyDefaults(cfg *Config) error {
	r := &cfg.Relay
	if r.ConnectTimeout == "" {
		r.ConnectTimeout = "10s"
	}
	if r.Backoff.Mode == "" {
		r.Backoff.Mode = RetryBackoffExponential
	} else if m := NormalizeRetryBackoff(string(r.Backoff.Mode)); m != "" {
		r.Backoff.Mode = m
	}
	if r.Backoff.Initial == "" {
		r.Backoff.Initial = "1s"
	}
	if r.Backoff.Max == "" {
		r.Backoff.Max = "30s"
	}
	if r.MaxAttempts < 0 {
		r.MaxAttempts = 0
	}
	if r.RestartCodes == nil {
		r.RestartCodes = append([]int(nil), DefaultRestartCodes...)
	}
	if r.RestartDelay == "" {
		r.RestartDelay = "5s"
	}
	if r.ProbeInterval == "" {
		r.ProbeInterval = "30s"
	}
	if r.SubjectPrefix == "" && r.ServerName != "" {
		r.SubjectPrefix = "nasstate." + r.ServerName
	}
	return nil
}

type notificationsDefaults struct{}

func (notificationsDefaults) Domain() string { return "notifications" }

func (notificationsDefaults) ApplyDefaults(cfg *Config) error {
	n := &cfg.Notifications
	if !n.enabledSpecified {
		n.Enabled = true
	}
	if !n.persistSpecified {
		n.Persist = true
	}
	if n.DedupCapacity <= 0 {
		n.DedupCapacity = 256
	}
	if n.DedupMaxAge == "" {
		n.DedupMaxAge = "10m"
	}
	return nil
}

type httpDefaults struct{}

func (httpDefaults) Domain() string { return "http" }

func (httpDefaults) ApplyDefaults(cfg *Config) error {
	h := &cfg.HTTP
	if !h.enabledSpecified {
		h.Enabled = true
	}
	if !h.metricsSpecified {
		h.Metrics = true
	}
	if h.Addr == "" {
		h.Addr = DefaultHTTPAddr
	}
	if h.MaxConnections <= 0 {
		h.MaxConnections = 64
	}
	return nil
}

type loggingDefaults struct{}

func (loggingDefaults) Domain() string { return "logging" }

func (loggingDefaults) ApplyDefaults(cfg *Config) error {
	cfg.Logging.Level = NormalizeLogLevel(string(cfg.Logging.Level))
	cfg.Logging.Format = NormalizeLogFormat(string(cfg.Logging.Format))
	return nil
}

// parseDuration returns d, or zero for empty or invalid input. Values are
// checked by ValidateConfig before they are consumed.
func parseDuration(d string) time.Duration {
	v, err := time.ParseDuration(d)
	if err != nil {
		return 0
	}
	return v
}

func (w WatchConfig) DebounceDuration() time.Duration     { return parseDuration(w.Debounce) }
func (w WatchConfig) PollIntervalDuration() time.Duration { return parseDuration(w.PollInterval) }

func (r RelayConfig) ConnectTimeoutDuration() time.Duration { return parseDuration(r.ConnectTimeout) }
func (r RelayConfig) RestartDelayDuration() time.Duration   { return parseDuration(r.RestartDelay) }
func (r RelayConfig) ProbeIntervalDuration() time.Duration  { return parseDuration(r.ProbeInterval) }

func (b BackoffConfig) InitialDuration() time.Duration { return parseDuration(b.Initial) }
func (b BackoffConfig) MaxDuration() time.Duration     { return parseDuration(b.Max) }

func (n NotificationsConfig) DedupMaxAgeDuration() time.Duration {
	return parseDuration(n.DedupMaxAge)
}

// UnreadDir is the directory new notification files are written to.
func (p PathsConfig) UnreadDir() string { return filepath.Join(p.NotificationsDir, "unread") }

// SeenDBPath is the SQLite database that remembers delivered notifications.
func (p PathsConfig) SeenDBPath() string { return filepath.Join(p.DataDir, "notifications.db") }
