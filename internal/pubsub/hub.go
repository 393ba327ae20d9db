package pubsub

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
	"git.home.luguber.info/inful/nasstate/internal/logfields"
	"git.home.luguber.info/inful/nasstate/internal/metrics"
)

// DefaultMaxSubscribers is the per-channel subscription cap used when none is configured.
const DefaultMaxSubscribers = 30

// Message is one published payload.
type Message struct {
	Channel Channel
	Payload any
}

// Handler receives messages for one subscription. A returned error is logged
// and counted; it does not affect other handlers.
type Handler func(ctx context.Context, msg Message) error

// Handle identifies a subscription. The zero Handle is never valid.
type Handle struct {
	channel Channel
	slot    int
	gen     uint64
}

// Channel returns the channel the subscription belongs to.
func (h Handle) Channel() Channel { return h.channel }

// PublishResult summarizes one Publish call.
type PublishResult struct {
	Delivered int
	Failed    int
	Errors    []error
}

type slot struct {
	gen     uint64
	live    bool
	order   uint64
	handler Handler
}

type table struct {
	slots []slot
	free  []int
	live  int
}

// Hub is a channel-scoped publish/subscribe hub.
type Hub struct {
	mu        sync.RWMutex
	tables    map[Channel]*table
	nextOrder uint64
	nextGen   uint64
	max       int

	logger   *slog.Logger
	recorder metrics.Recorder
}

// Option configures a Hub.
type Option func(*Hub)

// WithMaxSubscribers sets the per-channel cap. Values below 1 keep the default.
func WithMaxSubscribers(n int) Option {
	return func(h *Hub) {
		if n > 0 {
			h.max = n
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(h *Hub) {
		if l != nil {
			h.logger = l
		}
	}
}

func WithRecorder(r metrics.Recorder) Option {
	return func(h *Hub) {
		if r != nil {
			h.recorder = r
		}
	}
}

// New creates a hub for every known channel.
func New(opts ...Option) *Hub {
	h := &Hub{
		tables:   make(map[Channel]*table, len(allChannels)),
		max:      DefaultMaxSubscribers,
		logger:   slog.Default(),
		recorder: metrics.NoopRecorder{},
	}
	for _, c := range allChannels {
		h.tables[c] = &table{}
	}
	for _, o := range opts {
		o(h)
	}
	return h
}

// Subscribe registers handler on channel. It fails with a subscription error once
// the channel holds the configured maximum of live subscribers.
func (h *Hub) Subscribe(channel Channel, handler Handler) (Handle, error) {
	if handler == nil {
		return Handle{}, ferrors.ValidationError("handler cannot be nil").Build()
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.tables[channel]
	if !ok {
		return Handle{}, ferrors.ValidationError("unknown channel").
			WithContext("channel", string(channel)).
			Build()
	}
	if t.live >= h.max {
		return Handle{}, ferrors.TooManySubscribersError("subscriber limit reached").
			WithContext("channel", string(channel)).
			WithContext("limit", h.max).
			Build()
	}

	h.nextOrder++
	h.nextGen++
	s := slot{gen: h.nextGen, live: true, order: h.nextOrder, handler: handler}

	var idx int
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
		t.slots[idx] = s
	} else {
		idx = len(t.slots)
		t.slots = append(t.slots, s)
	}
	t.live++
	h.recorder.SetSubscribers(string(channel), t.live)

	return Handle{channel: channel, slot: idx, gen: s.gen}, nil
}

// Unsubscribe removes the subscription. Repeated calls and stale handles are no-ops.
// A handler is never invoked after Unsubscribe returns, except for a call that was
// already running.
func (h *Hub) Unsubscribe(handle Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.tables[handle.channel]
	if !ok || handle.slot < 0 || handle.slot >= len(t.slots) {
		return
	}
	s := &t.slots[handle.slot]
	if !s.live || s.gen != handle.gen {
		return
	}
	*s = slot{}
	t.free = append(t.free, handle.slot)
	t.live--
	h.recorder.SetSubscribers(string(handle.channel), t.live)
}

// Subscribers returns the number of live subscriptions on channel.
func (h *Hub) Subscribers(channel Channel) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if t, ok := h.tables[channel]; ok {
		return t.live
	}
	return 0
}

// Publish delivers payload to every handler on channel in registration order.
// Publishing an identical payload twice delivers it twice.
func (h *Hub) Publish(ctx context.Context, channel Channel, payload any) PublishResult {
	targets := h.snapshot(channel)
	h.recorder.IncPublish(string(channel))

	msg := Message{Channel: channel, Payload: payload}
	var res PublishResult
	for _, target := range targets {
		if !h.alive(target) {
			continue
		}
		if err := invoke(ctx, target.handler, msg); err != nil {
			res.Failed++
			res.Errors = append(res.Errors, err)
			h.recorder.IncHandlerFailure(string(channel))
			h.logger.Warn("Subscriber failed",
				logfields.Channel(string(channel)),
				logfields.Error(err))
			continue
		}
		res.Delivered++
	}
	return res
}

type target struct {
	handle  Handle
	order   uint64
	handler Handler
}

func (h *Hub) snapshot(channel Channel) []target {
	h.mu.RLock()
	defer h.mu.RUnlock()

	t, ok := h.tables[channel]
	if !ok {
		return nil
	}
	out := make([]target, 0, t.live)
	for i, s := range t.slots {
		if s.live {
			out = append(out, target{
				handle:  Handle{channel: channel, slot: i, gen: s.gen},
				order:   s.order,
				handler: s.handler,
			})
		}
	}
	slices.SortFunc(out, func(a, b target) int { return cmp.Compare(a.order, b.order) })
	return out
}

func (h *Hub) alive(tg target) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	t := h.tables[tg.handle.channel]
	s := t.slots[tg.handle.slot]
	return s.live && s.gen == tg.handle.gen
}

func invoke(ctx context.Context, handler Handler, msg Message) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = ferrors.RuntimeError("subscriber panicked").
				WithContext("channel", string(msg.Channel)).
				WithContext("panic", fmt.Sprint(r)).
				Build()
		}
	}()
	return handler(ctx, msg)
}
