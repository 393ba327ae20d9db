package config

import (
	"net"
	"net/url"
	"slices"
	"time"

	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
	"git.home.luguber.info/inful/nasstate/internal/pubsub"
	"git.home.luguber.info/inful/nasstate/internal/state"
)

// ValidateConfig checks a defaulted configuration. The first problem found is
// returned as a config-category error.
func ValidateConfig(cfg *Config) error {
	v := &configurationValidator{config: cfg}
	for _, step := range []func() error{
		v.validateWatch,
		v.validateStore,
		v.validateRelay,
		v.validateNotifications,
		v.validateHTTP,
	} {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}

type configurationValidator struct {
	config *Config
}

func invalid(field, msg string, value any) error {
	return ferrors.ConfigError(msg).
		WithContext("field", field).
		WithContext("value", value).
		Build()
}

func validDuration(field, raw string, allowZero bool) error {
	d, err := time.ParseDuration(raw)
	if err != nil {
		return invalid(field, "invalid duration", raw)
	}
	if d < 0 || (!allowZero && d == 0) {
		return invalid(field, "duration must be positive", raw)
	}
	return nil
}

func (cv *configurationValidator) validateWatch() error {
	w := cv.config.Watch
	if _, err := watchModeNormalizer.NormalizeWithError(string(w.Mode)); err != nil {
		return invalid("watch.mode", "unsupported watch mode", w.Mode)
	}
	if err := validDuration("watch.debounce", w.Debounce, true); err != nil {
		return err
	}
	return validDuration("watch.poll_interval", w.PollInterval, false)
}

func (cv *configurationValidator) validateStore() error {
	for _, raw := range cv.config.Store.RequiredKeys {
		k, ok := state.ParseKey(raw)
		if !ok {
			return invalid("store.required_keys", "unknown state key", raw)
		}
		if info, _ := state.Lookup(k); info.Source == state.SourceDerived {
			return invalid("store.required_keys", "derived keys have no file", raw)
		}
	}
	return nil
}

func (cv *configurationValidator) validateRelay() error {
	r := cv.config.Relay
	if _, err := retryBackoffNormalizer.NormalizeWithError(string(r.Backoff.Mode)); err != nil {
		return invalid("relay.backoff.mode", "unsupported backoff mode", r.Backoff.Mode)
	}
	for field, raw := range map[string]string{
		"relay.connect_timeout": r.ConnectTimeout,
		"relay.backoff.initial": r.Backoff.Initial,
		"relay.backoff.max":     r.Backoff.Max,
		"relay.probe_interval":  r.ProbeInterval,
	} {
		if err := validDuration(field, raw, false); err != nil {
			return err
		}
	}
	if err := validDuration("relay.restart_delay", r.RestartDelay, true); err != nil {
		return err
	}
	if r.Backoff.InitialDuration() > r.Backoff.MaxDuration() {
		return invalid("relay.backoff.initial", "initial delay exceeds max", r.Backoff.Initial)
	}
	for _, c := range r.RestartCodes {
		if slices.Contains(r.FatalCodes, c) {
			return invalid("relay.fatal_codes", "close code is both restart and fatal", c)
		}
	}
	for _, raw := range r.ForwardChannels {
		if _, ok := pubsub.ParseChannel(raw); !ok {
			return invalid("relay.forward_channels", "unknown channel", raw)
		}
	}
	if !r.Enabled {
		return nil
	}
	u, err := url.Parse(r.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("relay.url", "relay url must be absolute", r.URL)
	}
	if r.ServerName == "" {
		return invalid("relay.server_name", "server name is required when the relay is enabled", r.ServerName)
	}
	return nil
}

func (cv *configurationValidator) validateNotifications() error {
	n := cv.config.Notifications
	if n.DedupCapacity <= 0 {
		return invalid("notifications.dedup_capacity", "capacity must be positive", n.DedupCapacity)
	}
	return validDuration("notifications.dedup_max_age", n.DedupMaxAge, true)
}

func (cv *configurationValidator) validateHTTP() error {
	h := cv.config.HTTP
	if !h.Enabled {
		return nil
	}
	if _, _, err := net.SplitHostPort(h.Addr); err != nil {
		return invalid("http.addr", "address must be host:port", h.Addr)
	}
	return nil
}
