package relay

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
	"git.home.luguber.info/inful/nasstate/internal/logfields"
)

// NATSDialer connects to the relay over NATS. Reconnection is left to the
// Monitor, so the client library's own reconnect logic is disabled.
type NATSDialer struct {
	URL           string
	Token         string
	ServerName    string
	SubjectPrefix string
	Timeout       time.Duration
	Logger        *slog.Logger
}

// ControlSubject carries close notices from the relay: {"code": 4200, "reason": "restarting"}.
func (d *NATSDialer) ControlSubject() string { return d.SubjectPrefix + ".control" }

// Dial implements Dialer.
func (d *NATSDialer) Dial(ctx context.Context) (Link, error) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	link := &natsLink{done: make(chan CloseInfo, 1)}

	opts := []nats.Option{
		nats.Name(d.ServerName + "/" + uuid.NewString()),
		nats.NoReconnect(),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			reason := "disconnected"
			if err != nil {
				reason = err.Error()
			}
			link.signal(CloseInfo{Reason: reason})
		}),
		nats.ClosedHandler(func(*nats.Conn) {
			link.signal(CloseInfo{Reason: "connection closed"})
		}),
	}
	if d.Timeout > 0 {
		opts = append(opts, nats.Timeout(d.Timeout))
	}
	if d.Token != "" {
		opts = append(opts, nats.Token(d.Token))
	}

	type result struct {
		nc  *nats.Conn
		err error
	}
	ch := make(chan result, 1)
	go func() {
		nc, err := nats.Connect(d.URL, opts...)
		ch <- result{nc, err}
	}()

	var res result
	select {
	case res = <-ch:
	case <-ctx.Done():
		go func() {
			if r := <-ch; r.nc != nil {
				r.nc.Close()
			}
		}()
		return nil, ferrors.ConnectionError("relay dial canceled").
			WithCause(ctx.Err()).
			WithContext("url", d.URL).
			Build()
	}
	if res.err != nil {
		return nil, classifyDialError(res.err, d.URL)
	}
	link.conn = res.nc

	_, err := res.nc.Subscribe(d.ControlSubject(), func(msg *nats.Msg) {
		var info CloseInfo
		if err := json.Unmarshal(msg.Data, &info); err != nil {
			logger.Warn("Ignoring malformed relay control message", logfields.Error(err))
			return
		}
		logger.Info("Relay requested close", logfields.CloseCode(info.Code), slog.String("reason", info.Reason))
		link.signal(info)
	})
	if err != nil {
		res.nc.Close()
		return nil, ferrors.ConnectionError("failed to subscribe to relay control subject").
			WithCause(err).
			WithContext("subject", d.ControlSubject()).
			Build()
	}
	return link, nil
}

// classifyDialError separates credential problems, which retrying cannot fix,
// from transient failures.
func classifyDialError(err error, url string) error {
	if errors.Is(err, nats.ErrAuthorization) || errors.Is(err, nats.ErrAuthExpired) || errors.Is(err, nats.ErrAuthRevoked) {
		return ferrors.FatalConnectionError("relay rejected credentials").
			WithCause(err).
			WithContext("url", url).
			Build()
	}
	return ferrors.ConnectionError("relay dial failed").
		WithCause(err).
		WithContext("url", url).
		Build()
}

type natsLink struct {
	conn *nats.Conn

	once      sync.Once
	done      chan CloseInfo
	closeOnce sync.Once
	local     bool
	mu        sync.Mutex
}

// signal reports the first remote close. Local closes are not reported.
func (l *natsLink) signal(info CloseInfo) {
	l.mu.Lock()
	local := l.local
	l.mu.Unlock()
	if local {
		return
	}
	l.once.Do(func() { l.done <- info })
}

func (l *natsLink) Done() <-chan CloseInfo { return l.done }

func (l *natsLink) Ping(ctx context.Context) error {
	if err := l.conn.FlushWithContext(ctx); err != nil {
		return ferrors.ConnectionError("relay ping failed").WithCause(err).Build()
	}
	return nil
}

func (l *natsLink) Publish(subject string, data []byte) error {
	if err := l.conn.Publish(subject, data); err != nil {
		return ferrors.ConnectionError("relay publish failed").
			WithCause(err).
			WithContext("subject", subject).
			Build()
	}
	return nil
}

func (l *natsLink) Close() error {
	l.closeOnce.Do(func() {
		l.mu.Lock()
		l.local = true
		l.mu.Unlock()
		l.conn.Close()
	})
	return nil
}
