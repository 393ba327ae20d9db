package relay

import (
	"fmt"
	"slices"
	"time"

	"git.home.luguber.info/inful/nasstate/internal/config"
	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
	"git.home.luguber.info/inful/nasstate/internal/retry"
)

// Config drives Transition. It is derived from the relay configuration section.
type Config struct {
	Policy         retry.Policy
	ConnectTimeout time.Duration
	// RestartCodes are close codes announcing a planned relay restart. They
	// reconnect after RestartDelay without consuming the attempt budget.
	RestartCodes []int
	// FatalCodes are close codes after which reconnecting is pointless.
	FatalCodes   []int
	RestartDelay time.Duration
}

// Machine is the full connection state. The zero value is DISCONNECTED.
type Machine struct {
	Status ConnectionStatus
	// Session identifies the current dial or link. Results from older sessions are ignored.
	Session uint64
	// Dialing is set while a dial for Session is in flight.
	Dialing bool
}

// NewMachine returns the initial DISCONNECTED machine.
func NewMachine() Machine {
	return Machine{Status: ConnectionStatus{Status: StatusDisconnected}}
}

// EventKind enumerates the inputs of Transition.
type EventKind int

const (
	EventStart EventKind = iota
	EventDialSucceeded
	EventDialFailed
	EventLinkClosed
	EventProbeFailed
	EventRetryDue
	EventStop
	EventReset
)

func (k EventKind) String() string {
	switch k {
	case EventStart:
		return "start"
	case EventDialSucceeded:
		return "dial_succeeded"
	case EventDialFailed:
		return "dial_failed"
	case EventLinkClosed:
		return "link_closed"
	case EventProbeFailed:
		return "probe_failed"
	case EventRetryDue:
		return "retry_due"
	case EventStop:
		return "stop"
	case EventReset:
		return "reset"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is one input to the machine.
type Event struct {
	Kind    EventKind
	At      time.Time
	Session uint64
	// Err is set for EventDialFailed and EventProbeFailed.
	Err error
	// Code and Reason describe an EventLinkClosed. Code 0 means no code was given.
	Code   int
	Reason string
	// Jitter in [0, 1) spreads the reconnect delay. It is sampled by the caller
	// so Transition stays deterministic.
	Jitter float64
	// Link is the connection established by an EventDialSucceeded.
	Link Link
}

// EffectKind enumerates the side effects requested by Transition.
type EffectKind int

const (
	// EffectDial starts a dial for Effect.Session bounded by Effect.Delay.
	EffectDial EffectKind = iota
	// EffectAttachLink adopts the link carried by the triggering event.
	EffectAttachLink
	// EffectScheduleRetry arms the retry timer for Effect.Delay.
	EffectScheduleRetry
	// EffectCancelTimer disarms the retry timer.
	EffectCancelTimer
	// EffectCloseLink closes the current link and abandons any dial in flight.
	EffectCloseLink
	// EffectDiscardLink closes the link carried by a stale EventDialSucceeded.
	EffectDiscardLink
	EffectStartProbe
	EffectStopProbe
	// EffectPublish announces the new status.
	EffectPublish
)

// Effect is one side effect for the executor.
type Effect struct {
	Kind    EffectKind
	Session uint64
	Delay   time.Duration
}

// Transition computes the next machine for ev. It never blocks and never
// touches the clock; all time comes from ev.At.
func Transition(m Machine, ev Event, cfg Config) (Machine, []Effect) {
	st := m.Status.Status

	switch ev.Kind {
	case EventStart:
		if st != StatusDisconnected {
			return m, nil
		}
		return dial(m, ev, cfg, StatusConnecting, nil)

	case EventReset:
		cleared := m
		cleared.Status = ConnectionStatus{}
		return dial(cleared, ev, cfg, StatusConnecting, []Effect{
			{Kind: EffectCancelTimer},
			{Kind: EffectStopProbe},
			{Kind: EffectCloseLink},
		})

	case EventStop:
		if st == StatusDisconnected && !m.Dialing {
			return m, nil
		}
		next := Machine{Status: ConnectionStatus{Status: StatusDisconnected}, Session: m.Session + 1}
		return next, []Effect{
			{Kind: EffectCancelTimer},
			{Kind: EffectStopProbe},
			{Kind: EffectCloseLink},
			{Kind: EffectPublish},
		}

	case EventDialSucceeded:
		if !m.Dialing || ev.Session != m.Session {
			return m, []Effect{{Kind: EffectDiscardLink, Session: ev.Session}}
		}
		next := m
		next.Dialing = false
		next.Status = ConnectionStatus{Status: StatusConnected}
		return next, []Effect{
			{Kind: EffectCancelTimer},
			{Kind: EffectAttachLink, Session: m.Session},
			{Kind: EffectStartProbe, Session: m.Session},
			{Kind: EffectPublish},
		}

	case EventDialFailed:
		if !m.Dialing || ev.Session != m.Session {
			return m, nil
		}
		next := m
		next.Dialing = false
		if ferrors.HasSeverity(ev.Err, ferrors.SeverityFatal) {
			return fail(next, errText(ev.Err, "connection refused"), nil)
		}
		return backoff(next, ev, cfg, errText(ev.Err, "connection failed"), nil)

	case EventLinkClosed, EventProbeFailed:
		if st != StatusConnected || ev.Session != m.Session {
			return m, nil
		}
		teardown := []Effect{{Kind: EffectStopProbe}, {Kind: EffectCloseLink}}
		if ev.Kind == EventProbeFailed {
			return backoff(m, ev, cfg, errText(ev.Err, "relay stopped responding"), teardown)
		}
		reason := closeReason(ev)
		switch {
		case ev.Code != 0 && slices.Contains(cfg.FatalCodes, ev.Code):
			return fail(m, reason, teardown)
		case ev.Code != 0 && slices.Contains(cfg.RestartCodes, ev.Code):
			next := m
			next.Status = ConnectionStatus{
				Status:       StatusReconnecting,
				Error:        &reason,
				Timeout:      durationPtr(cfg.RestartDelay),
				TimeoutStart: timePtr(ev.At),
				Restarting:   true,
				Attempts:     m.Status.Attempts,
			}
			return next, append(teardown,
				Effect{Kind: EffectScheduleRetry, Delay: cfg.RestartDelay},
				Effect{Kind: EffectPublish})
		default:
			return backoff(m, ev, cfg, reason, teardown)
		}

	case EventRetryDue:
		if st != StatusReconnecting || m.Dialing {
			return m, nil
		}
		return dial(m, ev, cfg, StatusReconnecting, nil)
	}
	return m, nil
}

// dial opens a new session and asks the executor to connect.
func dial(m Machine, ev Event, cfg Config, status Status, pre []Effect) (Machine, []Effect) {
	next := m
	next.Session++
	next.Dialing = true
	next.Status = ConnectionStatus{
		Status:       status,
		Error:        m.Status.Error,
		Timeout:      durationPtr(cfg.ConnectTimeout),
		TimeoutStart: timePtr(ev.At),
		Restarting:   m.Status.Restarting && status == StatusReconnecting,
		Attempts:     m.Status.Attempts,
	}
	effects := append(pre,
		Effect{Kind: EffectDial, Session: next.Session, Delay: cfg.ConnectTimeout},
		Effect{Kind: EffectPublish})
	return next, effects
}

// backoff counts a failed attempt and schedules the next one, or gives up once
// the attempt budget is spent.
func backoff(m Machine, ev Event, cfg Config, reason string, pre []Effect) (Machine, []Effect) {
	attempts := m.Status.Attempts + 1
	if cfg.Policy.Exhausted(attempts) {
		next := m
		next.Status.Attempts = attempts
		return fail(next, fmt.Sprintf("giving up after %d attempts: %s", attempts, reason), pre)
	}
	delay := cfg.Policy.JitteredDelay(attempts, ev.Jitter)
	next := m
	next.Status = ConnectionStatus{
		Status:       StatusReconnecting,
		Error:        &reason,
		Timeout:      durationPtr(delay),
		TimeoutStart: timePtr(ev.At),
		Attempts:     attempts,
	}
	return next, append(pre,
		Effect{Kind: EffectScheduleRetry, Delay: delay},
		Effect{Kind: EffectPublish})
}

// fail enters the terminal ERROR state.
func fail(m Machine, reason string, pre []Effect) (Machine, []Effect) {
	next := m
	next.Dialing = false
	next.Status = ConnectionStatus{
		Status:   StatusError,
		Error:    &reason,
		Attempts: m.Status.Attempts,
	}
	return next, append(pre,
		Effect{Kind: EffectCancelTimer},
		Effect{Kind: EffectPublish})
}

func closeReason(ev Event) string {
	switch {
	case ev.Reason != "" && ev.Code != 0:
		return fmt.Sprintf("closed with code %d: %s", ev.Code, ev.Reason)
	case ev.Reason != "":
		return ev.Reason
	case ev.Code != 0:
		return fmt.Sprintf("closed with code %d", ev.Code)
	}
	return "connection lost"
}

func errText(err error, fallback string) string {
	if err == nil {
		return fallback
	}
	if ce, ok := ferrors.AsClassified(err); ok {
		if ce.Cause() != nil {
			return ce.Message() + ": " + ce.Cause().Error()
		}
		return ce.Message()
	}
	return err.Error()
}

func durationPtr(d time.Duration) *time.Duration { return &d }
func timePtr(t time.Time) *time.Time             { return &t }

// ConfigFrom builds the transition config from the relay settings.
func ConfigFrom(rc config.RelayConfig) Config {
	return Config{
		Policy:         retry.FromConfig(rc),
		ConnectTimeout: rc.ConnectTimeoutDuration(),
		RestartCodes:   slices.Clone(rc.RestartCodes),
		FatalCodes:     slices.Clone(rc.FatalCodes),
		RestartDelay:   rc.RestartDelayDuration(),
	}
}
