// Package daemon assembles the state ingestion, notification, relay and
// fan-out components into one long-running process.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/nasstate/internal/config"
	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
	"git.home.luguber.info/inful/nasstate/internal/ingest"
	"git.home.luguber.info/inful/nasstate/internal/logfields"
	"git.home.luguber.info/inful/nasstate/internal/metrics"
	"git.home.luguber.info/inful/nasstate/internal/notify"
	"git.home.luguber.info/inful/nasstate/internal/pubsub"
	"git.home.luguber.info/inful/nasstate/internal/relay"
	"git.home.luguber.info/inful/nasstate/internal/schedule"
	"git.home.luguber.info/inful/nasstate/internal/services"
	"git.home.luguber.info/inful/nasstate/internal/state"
	"git.home.luguber.info/inful/nasstate/internal/statefile"
	"git.home.luguber.info/inful/nasstate/internal/watch"
)

// DaemonStatus is the lifecycle state of the daemon.
type DaemonStatus string

const (
	StatusStopped  DaemonStatus = "stopped"
	StatusStarting DaemonStatus = "starting"
	StatusRunning  DaemonStatus = "running"
	StatusStopping DaemonStatus = "stopping"
)

// Option customizes a Daemon.
type Option func(*Daemon)

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(d *Daemon) {
		if l != nil {
			d.logger = l
		}
	}
}

// WithClock replaces the clock driving debounce, back-off and scheduling.
func WithClock(c clockwork.Clock) Option {
	return func(d *Daemon) {
		if c != nil {
			d.clock = c
		}
	}
}

// WithDialer replaces the NATS relay dialer.
func WithDialer(dialer relay.Dialer) Option {
	return func(d *Daemon) { d.dialer = dialer }
}

// Daemon owns every component and their lifecycle.
type Daemon struct {
	cfg    *config.Config
	logger *slog.Logger
	clock  clockwork.Clock
	dialer relay.Dialer

	mu        sync.RWMutex
	status    DaemonStatus
	startTime time.Time
	released  bool // resources closed; the daemon cannot start again
	runCtx    context.Context
	cancelRun context.CancelFunc

	registry  *prom.Registry
	recorder  *metrics.PrometheusRecorder
	scheduler *schedule.Scheduler
	watches   *watch.Registry
	store     *state.Store
	hub       *pubsub.Hub
	loader    *statefile.Loader
	pipeline  *ingest.Pipeline
	seen      *notify.SQLiteSeenStore
	notifier  *notify.Watcher
	monitor   *relay.Monitor
	forwarder *relay.Forwarder
	http      *AdminServer
	services  *services.Orchestrator
}

// New wires the components described by cfg. Nothing runs until Start.
func New(cfg *config.Config, opts ...Option) (*Daemon, error) {
	if cfg == nil {
		return nil, ferrors.ConfigError("configuration is required").Build()
	}
	d := &Daemon{
		cfg:    cfg,
		logger: slog.Default(),
		clock:  clockwork.NewRealClock(),
		status: StatusStopped,
	}
	for _, opt := range opts {
		opt(d)
	}
	if err := d.build(); err != nil {
		d.release()
		return nil, err
	}
	return d, nil
}

func (d *Daemon) build() error {
	var err error
	cfg := d.cfg

	d.registry = prom.NewRegistry()
	d.recorder = metrics.NewPrometheusRecorder(d.registry)

	if d.scheduler, err = schedule.New(schedule.WithClock(d.clock)); err != nil {
		return err
	}
	d.watches, err = watch.New(watch.Options{
		Mode:         watch.Mode(cfg.Watch.Mode),
		Debounce:     cfg.Watch.DebounceDuration(),
		PollInterval: cfg.Watch.PollIntervalDuration(),
		Scheduler:    d.scheduler,
		Clock:        d.clock,
		Logger:       d.logger.With(slog.String("component", "watch")),
		Recorder:     d.recorder,
	})
	if err != nil {
		return err
	}

	d.store = state.New()
	d.hub = pubsub.New(
		pubsub.WithMaxSubscribers(cfg.PubSub.MaxSubscribers),
		pubsub.WithLogger(d.logger.With(slog.String("component", "pubsub"))),
		pubsub.WithRecorder(d.recorder),
	)
	d.loader = statefile.New(cfg.Paths.EmhttpDir, cfg.Paths.ConfigDir).
		WithLogger(d.logger.With(slog.String("component", "statefile")))

	required := make([]state.Key, 0, len(cfg.Store.RequiredKeys))
	for _, raw := range cfg.Store.RequiredKeys {
		if k, ok := state.ParseKey(raw); ok {
			required = append(required, k)
		}
	}
	d.pipeline, err = ingest.New(ingest.Options{
		Store:        d.store,
		Loader:       d.loader,
		Registry:     d.watches,
		Publisher:    d.hub,
		RequiredKeys: required,
		Clock:        d.clock,
		Logger:       d.logger.With(slog.String("component", "ingest")),
		Recorder:     d.recorder,
	})
	if err != nil {
		return err
	}

	if cfg.Notifications.Enabled {
		if err := d.buildNotifier(); err != nil {
			return err
		}
	}
	if cfg.Relay.Enabled {
		d.buildRelay()
	}
	if cfg.HTTP.Enabled {
		d.http = NewAdminServer(d, d.logger.With(slog.String("component", "http")))
	}
	return d.registerServices()
}

// registerServices describes the start order. Long-lived components hold
// runCtx rather than the per-call start context.
func (d *Daemon) registerServices() error {
	d.services = services.NewOrchestrator(d.logger.With(slog.String("component", "services")))

	var svcs []services.ManagedService
	if d.http != nil {
		svcs = append(svcs, services.NewFuncService("http",
			func(context.Context) error { return d.http.Start(d.runCtx) },
			d.http.Stop,
		))
	}
	svcs = append(svcs, services.NewFuncService("ingest",
		func(context.Context) error { return d.pipeline.Start(d.runCtx) },
		func(context.Context) error { d.pipeline.Stop(); return nil },
	))
	if d.notifier != nil {
		svcs = append(svcs, services.NewFuncService("notify",
			func(context.Context) error { return d.notifier.Start(d.runCtx) },
			func(context.Context) error { d.notifier.Stop(); return nil },
			"ingest",
		))
	}
	if d.monitor != nil {
		svcs = append(svcs, services.NewFuncService("relay",
			func(context.Context) error { return d.startRelay() },
			func(context.Context) error {
				d.forwarder.Stop()
				d.monitor.Stop()
				return nil
			},
			"ingest",
		).WithHealth(d.relayHealth))
	}
	for _, svc := range svcs {
		if err := d.services.Register(svc); err != nil {
			return err
		}
	}
	return nil
}

func (d *Daemon) startRelay() error {
	channels := make([]pubsub.Channel, 0, len(d.cfg.Relay.ForwardChannels))
	for _, raw := range d.cfg.Relay.ForwardChannels {
		if c, ok := pubsub.ParseChannel(raw); ok {
			channels = append(channels, c)
		}
	}
	if err := d.forwarder.Start(channels); err != nil {
		return err
	}
	d.monitor.Start(d.runCtx)
	return nil
}

func (d *Daemon) relayHealth() services.HealthStatus {
	st := d.monitor.Status()
	if st.Status == relay.StatusError {
		msg := string(st.Status)
		if st.Error != nil {
			msg = *st.Error
		}
		return services.Unhealthy(msg)
	}
	return services.Healthy()
}

func (d *Daemon) buildNotifier() error {
	cfg := d.cfg.Notifications
	var store notify.SeenStore
	if cfg.Persist {
		if err := os.MkdirAll(d.cfg.Paths.DataDir, 0o755); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create data directory").
				WithContext("path", d.cfg.Paths.DataDir).
				Build()
		}
		seen, err := notify.NewSQLiteSeenStore(d.cfg.Paths.SeenDBPath())
		if err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "open notification store").
				WithContext("path", d.cfg.Paths.SeenDBPath()).
				Build()
		}
		d.seen = seen
		store = seen
	}

	w, err := notify.NewWatcher(notify.Options{
		Dir:       d.cfg.Paths.UnreadDir(),
		Registry:  d.watches,
		Publisher: d.hub,
		Replace:   d.pipeline.Replace,
		Dedup:     notify.NewDedup(cfg.DedupCapacity, cfg.DedupMaxAgeDuration(), d.clock, store),
		Logger:    d.logger.With(slog.String("component", "notify")),
		Recorder:  d.recorder,
	})
	if err != nil {
		return err
	}
	d.notifier = w
	return nil
}

func (d *Daemon) buildRelay() {
	rc := d.cfg.Relay
	dialer := d.dialer
	if dialer == nil {
		dialer = &relay.NATSDialer{
			URL:           rc.URL,
			Token:         rc.Token,
			ServerName:    rc.ServerName,
			SubjectPrefix: rc.SubjectPrefix,
			Timeout:       rc.ConnectTimeoutDuration(),
			Logger:        d.logger.With(slog.String("component", "relay")),
		}
	}
	d.monitor = relay.NewMonitor(relay.MonitorOptions{
		Config:        relay.ConfigFrom(rc),
		Dialer:        dialer,
		Publisher:     d.hub,
		Clock:         d.clock,
		Scheduler:     d.scheduler,
		ProbeInterval: rc.ProbeIntervalDuration(),
		Logger:        d.logger.With(slog.String("component", "relay")),
		Recorder:      d.recorder,
	})
	d.forwarder = relay.NewForwarder(d.hub, d.monitor, rc.SubjectPrefix, d.clock,
		d.logger.With(slog.String("component", "forwarder")))
}

// Start brings components up in dependency order. On failure everything
// already started is stopped again.
func (d *Daemon) Start(ctx context.Context) error {
	d.mu.Lock()
	if d.released {
		d.mu.Unlock()
		return ferrors.DaemonError("daemon cannot be restarted").Build()
	}
	if d.status != StatusStopped {
		d.mu.Unlock()
		return ferrors.DaemonError("daemon already started").
			WithContext("status", string(d.status)).
			Build()
	}
	d.status = StatusStarting
	d.startTime = d.clock.Now()
	d.mu.Unlock()

	if err := d.start(ctx); err != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = d.stop(stopCtx)
		d.setStatus(StatusStopped)
		return err
	}
	d.setStatus(StatusRunning)
	d.logger.Info("Daemon started",
		slog.String("watch_mode", string(d.watches.Mode())),
		slog.Bool("relay", d.monitor != nil),
		slog.Bool("notifications", d.notifier != nil),
		slog.Bool("http", d.http != nil))
	return nil
}

func (d *Daemon) start(ctx context.Context) error {
	d.runCtx, d.cancelRun = context.WithCancel(context.WithoutCancel(ctx))
	return d.services.StartAll(ctx)
}

// Stop shuts components down in reverse order.
func (d *Daemon) Stop(ctx context.Context) error {
	d.mu.Lock()
	if d.status != StatusRunning {
		d.mu.Unlock()
		return nil
	}
	d.status = StatusStopping
	d.mu.Unlock()

	err := d.stop(ctx)
	d.setStatus(StatusStopped)
	d.logger.Info("Daemon stopped")
	return err
}

func (d *Daemon) stop(ctx context.Context) error {
	var errs []error
	if err := d.services.StopAll(ctx); err != nil {
		errs = append(errs, err)
	}
	if d.cancelRun != nil {
		d.cancelRun()
	}
	errs = append(errs, d.release()...)
	return errors.Join(errs...)
}

// release closes resources that New acquired.
func (d *Daemon) release() []error {
	d.mu.Lock()
	d.released = true
	d.mu.Unlock()

	var errs []error
	if d.watches != nil {
		if err := d.watches.Close(); err != nil {
			errs = append(errs, fmt.Errorf("watch registry: %w", err))
		}
	}
	if d.scheduler != nil {
		if err := d.scheduler.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("scheduler: %w", err))
		}
		d.scheduler = nil
	}
	if d.seen != nil {
		if err := d.seen.Close(); err != nil {
			errs = append(errs, fmt.Errorf("notification store: %w", err))
		}
		d.seen = nil
	}
	return errs
}

// Run starts the daemon and blocks until ctx is canceled.
func (d *Daemon) Run(ctx context.Context) error {
	if err := d.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := d.Stop(stopCtx); err != nil {
		d.logger.Error("Shutdown incomplete", logfields.Error(err))
		return err
	}
	return nil
}

func (d *Daemon) setStatus(s DaemonStatus) {
	d.mu.Lock()
	d.status = s
	d.mu.Unlock()
}

// Status returns the lifecycle state.
func (d *Daemon) Status() DaemonStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

// Store exposes the canonical store for read access.
func (d *Daemon) Store() *state.Store { return d.store }

// Hub exposes the fan-out hub.
func (d *Daemon) Hub() *pubsub.Hub { return d.hub }

// Relay returns the connection monitor, or nil when the relay is disabled.
func (d *Daemon) Relay() *relay.Monitor { return d.monitor }

// AdminAddr returns the bound admin address, or "" when HTTP is disabled.
func (d *Daemon) AdminAddr() string {
	if d.http == nil {
		return ""
	}
	return d.http.Addr()
}
