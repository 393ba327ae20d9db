package relay

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/nasstate/internal/logfields"
	"git.home.luguber.info/inful/nasstate/internal/pubsub"
)

// Sink receives forwarded messages. Monitor implements it.
type Sink interface {
	Forward(subject string, data []byte) error
}

// Subscriber is the part of the hub the forwarder needs.
type Subscriber interface {
	Subscribe(channel pubsub.Channel, handler pubsub.Handler) (pubsub.Handle, error)
	Unsubscribe(h pubsub.Handle)
}

// Envelope is the JSON body of a forwarded message.
type Envelope struct {
	Channel pubsub.Channel `json:"channel"`
	SentAt  time.Time      `json:"sent_at"`
	Payload any            `json:"payload"`
}

// Forwarder republishes hub channels to the relay as JSON on
// <prefix>.events.<CHANNEL>. Messages published while the relay is down are
// dropped; the relay gets the next change.
type Forwarder struct {
	hub     Subscriber
	sink    Sink
	prefix  string
	clock   clockwork.Clock
	logger  *slog.Logger
	handles []pubsub.Handle
}

// NewForwarder creates a forwarder. Call Start to subscribe.
func NewForwarder(hub Subscriber, sink Sink, prefix string, clock clockwork.Clock, logger *slog.Logger) *Forwarder {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Forwarder{hub: hub, sink: sink, prefix: prefix, clock: clock, logger: logger}
}

// Subject returns the relay subject for channel.
func (f *Forwarder) Subject(channel pubsub.Channel) string {
	return f.prefix + ".events." + string(channel)
}

// Start subscribes to channels. On error nothing stays subscribed.
func (f *Forwarder) Start(channels []pubsub.Channel) error {
	for _, c := range channels {
		h, err := f.hub.Subscribe(c, f.forward)
		if err != nil {
			f.Stop()
			return err
		}
		f.handles = append(f.handles, h)
	}
	return nil
}

// Stop unsubscribes from every channel.
func (f *Forwarder) Stop() {
	for _, h := range f.handles {
		f.hub.Unsubscribe(h)
	}
	f.handles = nil
}

func (f *Forwarder) forward(_ context.Context, msg pubsub.Message) error {
	now := f.clock.Now()
	payload := msg.Payload
	if st, ok := payload.(ConnectionStatus); ok {
		payload = st.View(now)
	}
	data, err := json.Marshal(Envelope{Channel: msg.Channel, SentAt: now.UTC(), Payload: payload})
	if err != nil {
		return err
	}
	if err := f.sink.Forward(f.Subject(msg.Channel), data); err != nil {
		// Not connected is the normal case while the relay is down.
		f.logger.Debug("Relay forward skipped", logfields.Channel(string(msg.Channel)), logfields.Error(err))
	}
	return nil
}
