package relay

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
	"git.home.luguber.info/inful/nasstate/internal/logfields"
	"git.home.luguber.info/inful/nasstate/internal/metrics"
	"git.home.luguber.info/inful/nasstate/internal/pubsub"
	"git.home.luguber.info/inful/nasstate/internal/schedule"
)

// Publisher is the part of the hub the monitor needs.
type Publisher interface {
	Publish(ctx context.Context, channel pubsub.Channel, payload any) pubsub.PublishResult
}

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	Config        Config
	Dialer        Dialer
	Publisher     Publisher
	Clock         clockwork.Clock
	Scheduler     *schedule.Scheduler // runs the link probe; nil disables probing
	ProbeInterval time.Duration
	Logger        *slog.Logger
	Recorder      metrics.Recorder
	// Jitter returns values in [0, 1). Defaults to math/rand.
	Jitter func() float64
}

// Monitor runs the connection state machine on a single goroutine.
type Monitor struct {
	opts MonitorOptions

	events chan Event
	quit   chan struct{}
	done   chan struct{}

	status atomic.Pointer[ConnectionStatus]

	// Owned by the loop goroutine.
	machine    Machine
	timer      clockwork.Timer
	probeJob   uuid.UUID
	dialCancel context.CancelFunc

	linkMu sync.RWMutex
	link   Link

	startOnce sync.Once
	stopOnce  sync.Once
}

// NewMonitor creates a monitor in DISCONNECTED state. Call Start to connect.
func NewMonitor(opts MonitorOptions) *Monitor {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	if opts.Jitter == nil {
		opts.Jitter = rand.Float64
	}
	m := &Monitor{
		opts:    opts,
		events:  make(chan Event, 16),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
		machine: NewMachine(),
	}
	initial := m.machine.Status
	m.status.Store(&initial)
	return m
}

// Status returns the current connection status.
func (m *Monitor) Status() ConnectionStatus {
	return m.status.Load().clone()
}

// Start runs the event loop and begins connecting.
func (m *Monitor) Start(ctx context.Context) {
	m.startOnce.Do(func() {
		go m.loop(ctx)
		m.send(Event{Kind: EventStart})
	})
}

// Reset clears an ERROR state and reconnects from scratch.
func (m *Monitor) Reset() {
	m.send(Event{Kind: EventReset})
}

// Stop disconnects, cancels all timers and waits for the loop to exit.
func (m *Monitor) Stop() {
	m.stopOnce.Do(func() {
		started := true
		m.startOnce.Do(func() { started = false })
		if !started {
			close(m.quit)
			return
		}
		m.send(Event{Kind: EventStop})
		close(m.quit)
		<-m.done
	})
}

// Forward publishes data on the relay link. It fails unless the link is up.
func (m *Monitor) Forward(subject string, data []byte) error {
	m.linkMu.RLock()
	link := m.link
	m.linkMu.RUnlock()
	if link == nil {
		return ferrors.ConnectionError("relay is not connected").
			WithContext("subject", subject).
			Build()
	}
	return link.Publish(subject, data)
}

// send queues ev for the loop. Events after Stop are dropped.
func (m *Monitor) send(ev Event) {
	select {
	case <-m.quit:
	case <-m.done:
	case m.events <- ev:
	}
}

func (m *Monitor) loop(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case ev := <-m.events:
			m.handle(ctx, ev)
		case <-m.quit:
			// Drain what was queued before quit, Stop in particular.
			for {
				select {
				case ev := <-m.events:
					m.handle(ctx, ev)
				default:
					m.shutdown()
					return
				}
			}
		case <-ctx.Done():
			m.handle(context.WithoutCancel(ctx), Event{Kind: EventStop})
			m.shutdown()
			return
		}
	}
}

func (m *Monitor) handle(ctx context.Context, ev Event) {
	ev.At = m.opts.Clock.Now()
	ev.Jitter = m.opts.Jitter()

	next, effects := Transition(m.machine, ev, m.opts.Config)
	m.machine = next
	if len(effects) > 0 {
		m.opts.Logger.Debug("Relay transition",
			slog.String("event", ev.Kind.String()),
			logfields.Status(string(next.Status.Status)))
	}
	for _, eff := range effects {
		m.apply(ctx, ev, eff)
	}
}

func (m *Monitor) apply(ctx context.Context, ev Event, eff Effect) {
	switch eff.Kind {
	case EffectDial:
		m.dial(ctx, eff.Session, eff.Delay)

	case EffectAttachLink:
		m.linkMu.Lock()
		m.link = ev.Link
		m.linkMu.Unlock()
		if m.dialCancel != nil {
			m.dialCancel()
			m.dialCancel = nil
		}
		go m.watchLink(eff.Session, ev.Link)

	case EffectDiscardLink:
		if ev.Link != nil {
			_ = ev.Link.Close()
		}

	case EffectScheduleRetry:
		m.stopTimer()
		m.opts.Recorder.IncReconnectAttempt()
		m.opts.Logger.Info("Relay reconnect scheduled",
			logfields.Attempt(m.machine.Status.Attempts),
			logfields.DelayMS(eff.Delay.Milliseconds()))
		m.timer = m.opts.Clock.AfterFunc(eff.Delay, func() {
			m.send(Event{Kind: EventRetryDue})
		})

	case EffectCancelTimer:
		m.stopTimer()

	case EffectCloseLink:
		if m.dialCancel != nil {
			m.dialCancel()
			m.dialCancel = nil
		}
		m.linkMu.Lock()
		link := m.link
		m.link = nil
		m.linkMu.Unlock()
		if link != nil {
			_ = link.Close()
		}

	case EffectStartProbe:
		m.startProbe(eff.Session)

	case EffectStopProbe:
		if m.opts.Scheduler != nil {
			m.opts.Scheduler.Remove(m.probeJob)
		}
		m.probeJob = uuid.Nil

	case EffectPublish:
		m.publish(ctx)
	}
}

func (m *Monitor) dial(ctx context.Context, session uint64, timeout time.Duration) {
	var (
		dctx   context.Context
		cancel context.CancelFunc
	)
	if timeout > 0 {
		dctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		dctx, cancel = context.WithCancel(ctx)
	}
	m.dialCancel = cancel
	go func() {
		link, err := m.opts.Dialer.Dial(dctx)
		if err == nil && dctx.Err() != nil {
			// Abandoned while connecting.
			_ = link.Close()
			err = dctx.Err()
		}
		if err != nil {
			cancel()
			m.send(Event{Kind: EventDialFailed, Session: session, Err: err})
			return
		}
		m.send(Event{Kind: EventDialSucceeded, Session: session, Link: link})
	}()
}

func (m *Monitor) watchLink(session uint64, link Link) {
	select {
	case info := <-link.Done():
		m.send(Event{Kind: EventLinkClosed, Session: session, Code: info.Code, Reason: info.Reason})
	case <-m.quit:
	}
}

func (m *Monitor) startProbe(session uint64) {
	if m.opts.Scheduler == nil || m.opts.ProbeInterval <= 0 {
		return
	}
	id, err := m.opts.Scheduler.Every("relay-probe", m.opts.ProbeInterval, func() {
		m.linkMu.RLock()
		link := m.link
		m.linkMu.RUnlock()
		if link == nil {
			return
		}
		pctx, cancel := context.WithTimeout(context.Background(), m.probeTimeout())
		defer cancel()
		if err := link.Ping(pctx); err != nil {
			m.send(Event{Kind: EventProbeFailed, Session: session, Err: err})
		}
	})
	if err != nil {
		m.opts.Logger.Warn("Failed to schedule relay probe", logfields.Error(err))
		return
	}
	m.probeJob = id
}

func (m *Monitor) probeTimeout() time.Duration {
	if t := m.opts.Config.ConnectTimeout; t > 0 {
		return t
	}
	return 10 * time.Second
}

func (m *Monitor) publish(ctx context.Context) {
	st := m.machine.Status.clone()
	m.status.Store(&st)
	m.opts.Recorder.SetConnectionStatus(string(st.Status))

	attrs := []any{logfields.Status(string(st.Status)), logfields.Attempt(st.Attempts)}
	if st.Error != nil {
		attrs = append(attrs, slog.String("reason", *st.Error))
	}
	if st.Status == StatusError {
		m.opts.Logger.Error("Relay connection failed permanently", attrs...)
	} else {
		m.opts.Logger.Info("Relay connection status", attrs...)
	}

	if m.opts.Publisher != nil {
		m.opts.Publisher.Publish(ctx, pubsub.ChannelConnectionStatus, st)
	}
}

func (m *Monitor) stopTimer() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// shutdown releases everything the loop owns.
func (m *Monitor) shutdown() {
	m.stopTimer()
	if m.opts.Scheduler != nil {
		m.opts.Scheduler.Remove(m.probeJob)
	}
	if m.dialCancel != nil {
		m.dialCancel()
	}
	m.linkMu.Lock()
	link := m.link
	m.link = nil
	m.linkMu.Unlock()
	if link != nil {
		_ = link.Close()
	}
}
