package state

import (
	"maps"
	"slices"
	"sync"
	"sync/atomic"
)

// Snapshot is an immutable view of every slice at one version.
type Snapshot struct {
	Version uint64        `json:"version"`
	Slices  map[Key]Slice `json:"slices"`
}

// Get returns the slice for k; an unknown key yields an empty slice.
func (s Snapshot) Get(k Key) Slice {
	if sl, ok := s.Slices[k]; ok {
		return sl
	}
	return Slice{}
}

// Change describes one accepted replacement.
type Change struct {
	Key      Key
	Version  uint64
	Slice    Slice
	Previous Slice
	Reset    bool
}

// Ticket orders replacements for one key. A ticket is taken when a change is
// detected and redeemed once the new content has been loaded.
type Ticket struct {
	Key   Key
	seq   uint64
	epoch uint64
}

// Hook observes accepted replacements. Hooks run synchronously, in version
// order, after the new snapshot is visible. A hook must not call back into
// ReplaceSlice, Commit or Reset.
type Hook func(Change)

type hookEntry struct {
	id uint64
	fn Hook
}

// Store is the canonical store. It is safe for concurrent use: writers are
// serialized and readers never block.
type Store struct {
	current atomic.Pointer[Snapshot]

	mu      sync.Mutex // guards keys, issued, applied, epoch
	keys    []Key
	issued  map[Key]uint64
	applied map[Key]uint64
	epoch   uint64

	dispatchMu sync.Mutex // held across swap + hook dispatch to keep hook order == version order

	hooksMu  sync.RWMutex
	hooks    []hookEntry
	nextHook uint64
}

// New creates a store holding an empty slice for each key. With no keys the
// store is seeded with KnownKeys.
func New(keys ...Key) *Store {
	if len(keys) == 0 {
		keys = KnownKeys()
	}
	s := &Store{
		keys:    slices.Clone(keys),
		issued:  make(map[Key]uint64),
		applied: make(map[Key]uint64),
	}
	s.current.Store(&Snapshot{Version: 0, Slices: emptySlices(s.keys)})
	return s
}

func emptySlices(keys []Key) map[Key]Slice {
	out := make(map[Key]Slice, len(keys))
	for _, k := range keys {
		out[k] = Slice{}
	}
	return out
}

// Snapshot returns the current immutable view.
func (s *Store) Snapshot() Snapshot {
	return *s.current.Load()
}

// Version returns the current version.
func (s *Store) Version() uint64 {
	return s.current.Load().Version
}

// Slice returns the current slice for k.
func (s *Store) Slice(k Key) Slice {
	return s.Snapshot().Get(k)
}

// Begin issues the next ticket for k.
func (s *Store) Begin(k Key) Ticket {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.issued[k]++
	return Ticket{Key: k, seq: s.issued[k], epoch: s.epoch}
}

// Commit applies slice under ticket t. A ticket older than the newest one
// already committed for the same key, or issued before the last Reset, is
// discarded: applied is false and the current version is returned.
func (s *Store) Commit(t Ticket, slice Slice) (version uint64, applied bool) {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	if t.epoch != s.epoch || t.seq <= s.applied[t.Key] {
		s.mu.Unlock()
		return s.Version(), false
	}
	s.applied[t.Key] = t.seq
	if !slices.Contains(s.keys, t.Key) {
		s.keys = append(s.keys, t.Key)
	}
	s.mu.Unlock()

	prev := s.current.Load()
	next := &Snapshot{
		Version: prev.Version + 1,
		Slices:  maps.Clone(prev.Slices),
	}
	next.Slices[t.Key] = slice.Clone()
	s.current.Store(next)

	s.dispatch(Change{
		Key:      t.Key,
		Version:  next.Version,
		Slice:    next.Slices[t.Key],
		Previous: prev.Get(t.Key),
	})
	return next.Version, true
}

// ReplaceSlice atomically swaps the slice for k and returns the new version.
func (s *Store) ReplaceSlice(k Key, slice Slice) uint64 {
	v, _ := s.Commit(s.Begin(k), slice)
	return v
}

// Reset restores every slice to empty, increments the version and
// invalidates tickets issued before the call.
func (s *Store) Reset() uint64 {
	s.dispatchMu.Lock()
	defer s.dispatchMu.Unlock()

	s.mu.Lock()
	s.epoch++
	clear(s.issued)
	clear(s.applied)
	keys := slices.Clone(s.keys)
	s.mu.Unlock()

	prev := s.current.Load()
	next := &Snapshot{Version: prev.Version + 1, Slices: emptySlices(keys)}
	s.current.Store(next)

	for _, k := range keys {
		s.dispatch(Change{
			Key:      k,
			Version:  next.Version,
			Slice:    next.Slices[k],
			Previous: prev.Get(k),
			Reset:    true,
		})
	}
	return next.Version
}

// OnReplace registers h and returns a function that removes it. Removing a
// hook twice is harmless.
func (s *Store) OnReplace(h Hook) (cancel func()) {
	s.hooksMu.Lock()
	s.nextHook++
	id := s.nextHook
	s.hooks = append(s.hooks, hookEntry{id: id, fn: h})
	s.hooksMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.hooksMu.Lock()
			defer s.hooksMu.Unlock()
			s.hooks = slices.DeleteFunc(s.hooks, func(e hookEntry) bool { return e.id == id })
		})
	}
}

func (s *Store) dispatch(c Change) {
	s.hooksMu.RLock()
	hooks := slices.Clone(s.hooks)
	s.hooksMu.RUnlock()
	for _, h := range hooks {
		h.fn(c)
	}
}
