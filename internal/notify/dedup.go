package notify

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
)

// SeenStore remembers admitted identities beyond the lifetime of the process.
type SeenStore interface {
	Seen(ctx context.Context, id string, since time.Time) (bool, error)
	Remember(ctx context.Context, id string, at time.Time) error
	// Prune deletes entries older than before and all but the newest keep entries.
	Prune(ctx context.Context, before time.Time, keep int) error
	Close() error
}

type seenEntry struct {
	id string
	at time.Time
}

// Dedup is a bounded FIFO of recently admitted identities. An identity is
// forgotten when it is older than maxAge or pushed out by capacity, whichever
// comes first. It is not safe for concurrent use.
type Dedup struct {
	capacity int
	maxAge   time.Duration
	clock    clockwork.Clock
	store    SeenStore

	queue []seenEntry
	index map[string]struct{}
}

// NewDedup creates a cache. maxAge <= 0 keeps entries until capacity evicts
// them; store may be nil.
func NewDedup(capacity int, maxAge time.Duration, clock clockwork.Clock, store SeenStore) *Dedup {
	if capacity <= 0 {
		capacity = 1
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Dedup{
		capacity: capacity,
		maxAge:   maxAge,
		clock:    clock,
		store:    store,
		index:    make(map[string]struct{}, capacity),
	}
}

// Admit records id and reports whether it was not seen within the window.
// Store failures degrade to in-memory behavior and are returned alongside.
func (d *Dedup) Admit(ctx context.Context, id string) (bool, error) {
	now := d.clock.Now()
	d.expire(now)

	if _, ok := d.index[id]; ok {
		return false, nil
	}

	var storeErr error
	if d.store != nil {
		seen, err := d.store.Seen(ctx, id, d.windowStart(now))
		if err != nil {
			storeErr = err
		} else if seen {
			d.push(id, now)
			return false, nil
		}
	}

	d.push(id, now)
	if d.store != nil && storeErr == nil {
		storeErr = d.store.Remember(ctx, id, now)
	}
	return true, storeErr
}

// Len returns the number of remembered identities.
func (d *Dedup) Len() int { return len(d.queue) }

// Prune trims the persistent store to the current window.
func (d *Dedup) Prune(ctx context.Context) error {
	if d.store == nil {
		return nil
	}
	return d.store.Prune(ctx, d.windowStart(d.clock.Now()), d.capacity)
}

func (d *Dedup) windowStart(now time.Time) time.Time {
	if d.maxAge <= 0 {
		return time.Time{}
	}
	return now.Add(-d.maxAge)
}

func (d *Dedup) push(id string, at time.Time) {
	d.queue = append(d.queue, seenEntry{id: id, at: at})
	d.index[id] = struct{}{}
	for len(d.queue) > d.capacity {
		d.evictFront()
	}
}

func (d *Dedup) expire(now time.Time) {
	if d.maxAge <= 0 {
		return
	}
	for len(d.queue) > 0 && now.Sub(d.queue[0].at) > d.maxAge {
		d.evictFront()
	}
}

func (d *Dedup) evictFront() {
	delete(d.index, d.queue[0].id)
	d.queue[0] = seenEntry{}
	d.queue = d.queue[1:]
}
