package pubsub

import (
	"context"
	"errors"
	"sync"
)

// ErrListenerOverflow is reported by a Listen subscription that was dropped
// because its reader fell behind.
var ErrListenerOverflow = errors.New("listener buffer full, subscription dropped")

// Listen adapts a subscription to a channel of messages. Delivery never waits
// for the reader: when the buffer is full the subscription is removed and the
// returned channel closed while ctx is still live. Callers tell the two apart
// by checking ctx.Err() once the channel is closed. The subscription is also
// removed and the channel closed when ctx is done.
func (h *Hub) Listen(ctx context.Context, channel Channel, buffer int) (<-chan Message, error) {
	out := make(chan Message, buffer)
	overflow := make(chan struct{})

	var mu sync.Mutex
	closed := false

	handle, err := h.Subscribe(channel, func(_ context.Context, msg Message) error {
		mu.Lock()
		defer mu.Unlock()
		if closed {
			return nil
		}
		select {
		case out <- msg:
			return nil
		default:
			closed = true
			close(out)
			close(overflow)
			return ErrListenerOverflow
		}
	})
	if err != nil {
		return nil, err
	}

	go func() {
		select {
		case <-ctx.Done():
		case <-overflow:
		}
		h.Unsubscribe(handle)
		mu.Lock()
		if !closed {
			closed = true
			close(out)
		}
		mu.Unlock()
	}()
	return out, nil
}
