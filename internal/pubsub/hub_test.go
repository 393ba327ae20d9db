package pubsub

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
	"git.home.luguber.info/inful/nasstate/internal/state"
)

func record(into *[]string, name string) Handler {
	return func(context.Context, Message) error {
		*into = append(*into, name)
		return nil
	}
}

func TestPublishRegistrationOrder(t *testing.T) {
	h := New()
	var got []string
	for _, n := range []string{"a", "b", "c"} {
		_, err := h.Subscribe(ChannelInfo, record(&got, n))
		require.NoError(t, err)
	}

	res := h.Publish(context.Background(), ChannelInfo, "x")

	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, 3, res.Delivered)
	assert.Zero(t, res.Failed)
}

func TestSlotReuseKeepsRegistrationOrder(t *testing.T) {
	h := New()
	var got []string
	first, err := h.Subscribe(ChannelInfo, record(&got, "a"))
	require.NoError(t, err)
	_, err = h.Subscribe(ChannelInfo, record(&got, "b"))
	require.NoError(t, err)
	h.Unsubscribe(first)
	_, err = h.Subscribe(ChannelInfo, record(&got, "c"))
	require.NoError(t, err)

	h.Publish(context.Background(), ChannelInfo, nil)
	assert.Equal(t, []string{"b", "c"}, got)
}

func TestFailingHandlersAreIsolated(t *testing.T) {
	h := New()
	var got []string
	_, _ = h.Subscribe(ChannelArray, func(context.Context, Message) error { panic("boom") })
	_, _ = h.Subscribe(ChannelArray, func(context.Context, Message) error { return errors.New("nope") })
	_, _ = h.Subscribe(ChannelArray, record(&got, "last"))

	res := h.Publish(context.Background(), ChannelArray, 1)

	assert.Equal(t, []string{"last"}, got)
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, 2, res.Failed)
	require.Len(t, res.Errors, 2)
	assert.True(t, ferrors.HasCategory(res.Errors[0], ferrors.CategoryRuntime))
}

func TestPublishIsNotDeduplicated(t *testing.T) {
	h := New()
	n := 0
	_, _ = h.Subscribe(ChannelDisplay, func(context.Context, Message) error { n++; return nil })

	h.Publish(context.Background(), ChannelDisplay, "same")
	h.Publish(context.Background(), ChannelDisplay, "same")
	assert.Equal(t, 2, n)
}

func TestSubscriberCap(t *testing.T) {
	h := New(WithMaxSubscribers(30))
	noop := func(context.Context, Message) error { return nil }
	for range 30 {
		_, err := h.Subscribe(ChannelNotification, noop)
		require.NoError(t, err)
	}

	_, err := h.Subscribe(ChannelNotification, noop)
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategorySubscription))
	assert.Equal(t, 30, h.Subscribers(ChannelNotification))

	// Other channels have their own budget.
	_, err = h.Subscribe(ChannelInfo, noop)
	assert.NoError(t, err)
}

func TestUnsubscribeIsIdempotentAndStaleSafe(t *testing.T) {
	h := New()
	var got []string
	old, _ := h.Subscribe(ChannelUsers, record(&got, "old"))
	h.Unsubscribe(old)
	h.Unsubscribe(old)
	_, _ = h.Subscribe(ChannelUsers, record(&got, "new"))

	// The new subscriber reuses the slot; the stale handle must not remove it.
	h.Unsubscribe(old)
	h.Publish(context.Background(), ChannelUsers, nil)

	assert.Equal(t, []string{"new"}, got)
	h.Unsubscribe(Handle{})
}

func TestUnsubscribeDuringPublishSkipsLaterHandler(t *testing.T) {
	h := New()
	var got []string
	var second Handle
	_, _ = h.Subscribe(ChannelShares, func(context.Context, Message) error {
		got = append(got, "first")
		h.Unsubscribe(second)
		return nil
	})
	second, _ = h.Subscribe(ChannelShares, record(&got, "second"))

	h.Publish(context.Background(), ChannelShares, nil)
	assert.Equal(t, []string{"first"}, got)
}

func TestSubscribeValidation(t *testing.T) {
	h := New()
	_, err := h.Subscribe("NOPE", func(context.Context, Message) error { return nil })
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
	_, err = h.Subscribe(ChannelInfo, nil)
	assert.Error(t, err)
}

func TestListen(t *testing.T) {
	h := New()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := h.Listen(ctx, ChannelServers, 1)
	require.NoError(t, err)
	h.Publish(context.Background(), ChannelServers, "hello")

	select {
	case msg := <-ch:
		assert.Equal(t, "hello", msg.Payload)
		assert.Equal(t, ChannelServers, msg.Channel)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	require.Eventually(t, func() bool { return h.Subscribers(ChannelServers) == 0 }, time.Second, 5*time.Millisecond)
	_, open := <-ch
	assert.False(t, open)
}

func TestListenDropsStalledReader(t *testing.T) {
	h := New()
	ch, err := h.Listen(t.Context(), ChannelInfo, 1)
	require.NoError(t, err)
	var got []string
	_, err = h.Subscribe(ChannelInfo, record(&got, "after"))
	require.NoError(t, err)

	first := h.Publish(context.Background(), ChannelInfo, 1)
	assert.Equal(t, 2, first.Delivered)

	done := make(chan PublishResult)
	go func() { done <- h.Publish(context.Background(), ChannelInfo, 2) }()
	var res PublishResult
	select {
	case res = <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a stalled listener")
	}
	assert.Equal(t, 1, res.Failed)
	require.Len(t, res.Errors, 1)
	assert.ErrorIs(t, res.Errors[0], ErrListenerOverflow)
	assert.Equal(t, []string{"after", "after"}, got)

	msg, open := <-ch
	require.True(t, open)
	assert.Equal(t, 1, msg.Payload)
	_, open = <-ch
	assert.False(t, open)
	require.Eventually(t, func() bool { return h.Subscribers(ChannelInfo) == 1 }, time.Second, 5*time.Millisecond)
}

func TestStalledListenerDoesNotBlockStoreWrites(t *testing.T) {
	h := New()
	store := state.New()
	cancel := store.OnReplace(func(c state.Change) {
		ch := ChannelUsers
		if c.Key == state.KeyVar {
			ch = ChannelInfo
		}
		h.Publish(context.Background(), ch, c.Version)
	})
	defer cancel()

	_, err := h.Listen(t.Context(), ChannelInfo, 1)
	require.NoError(t, err)

	done := make(chan uint64)
	go func() {
		store.ReplaceSlice(state.KeyVar, state.Slice{"NAME": "a"})
		store.ReplaceSlice(state.KeyVar, state.Slice{"NAME": "b"})
		done <- store.ReplaceSlice(state.KeyUsers, state.Slice{"root": state.Slice{}})
	}()

	select {
	case v := <-done:
		assert.Equal(t, uint64(3), v)
	case <-time.After(2 * time.Second):
		t.Fatalf("store writes blocked by a stalled listener; version=%d", store.Version())
	}
}

func TestParseChannel(t *testing.T) {
	c, ok := ParseChannel("CONNECTION_STATUS")
	assert.True(t, ok)
	assert.Equal(t, ChannelConnectionStatus, c)
	_, ok = ParseChannel("info")
	assert.False(t, ok)
	assert.Len(t, Channels(), 10)
}
