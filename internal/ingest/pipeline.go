package ingest

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"git.home.luguber.info/inful/nasstate/internal/emhttp"
	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
	"git.home.luguber.info/inful/nasstate/internal/logfields"
	"git.home.luguber.info/inful/nasstate/internal/metrics"
	"git.home.luguber.info/inful/nasstate/internal/notify"
	"git.home.luguber.info/inful/nasstate/internal/pubsub"
	"git.home.luguber.info/inful/nasstate/internal/state"
	"git.home.luguber.info/inful/nasstate/internal/statefile"
	"git.home.luguber.info/inful/nasstate/internal/watch"
)

// SliceChanged is the payload published for every accepted replacement. On
// NOTIFICATION it shares the channel with notify.Record; consumers switch on
// the payload type.
type SliceChanged struct {
	Key     state.Key   `json:"key"`
	Version uint64      `json:"version"`
	Slice   state.Slice `json:"slice"`
	Typed   any         `json:"typed,omitempty"`
	Reset   bool        `json:"reset,omitempty"`
}

// Registrar is the subset of watch.Registry the pipeline needs.
type Registrar interface {
	Watch(path string, cb watch.Callback) (watch.Handle, error)
	Unwatch(h watch.Handle)
}

// Publisher is the subset of pubsub.Hub the pipeline needs.
type Publisher interface {
	Publish(ctx context.Context, channel pubsub.Channel, payload any) pubsub.PublishResult
}

// Options configures a Pipeline. Store, Loader, Registry and Publisher are required.
type Options struct {
	Store     *state.Store
	Loader    *statefile.Loader
	Registry  Registrar
	Publisher Publisher
	// Keys to load and watch; defaults to every file-backed key.
	Keys []state.Key
	// RequiredKeys fail Start when their file cannot be read or watched.
	RequiredKeys []state.Key
	Clock        clockwork.Clock
	Logger       *slog.Logger
	Recorder     metrics.Recorder
}

// Pipeline owns the write side of the store.
type Pipeline struct {
	opts Options

	mu         sync.Mutex
	ctx        context.Context
	started    bool
	handles    []watch.Handle
	cancelHook func()
	inflight   sync.WaitGroup
}

// New validates opts and creates a Pipeline.
func New(opts Options) (*Pipeline, error) {
	switch {
	case opts.Store == nil:
		return nil, ferrors.ValidationError("store is required").Build()
	case opts.Loader == nil:
		return nil, ferrors.ValidationError("state file loader is required").Build()
	case opts.Registry == nil:
		return nil, ferrors.ValidationError("watch registry is required").Build()
	case opts.Publisher == nil:
		return nil, ferrors.ValidationError("publisher is required").Build()
	}
	if len(opts.Keys) == 0 {
		opts.Keys = state.FileKeys()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	return &Pipeline{opts: opts}, nil
}

// Start publishes store changes, loads every key once and then watches the
// files. A missing file yields an empty slice. Read or watch failures are
// fatal only for required keys.
func (p *Pipeline) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	p.ctx = ctx
	p.cancelHook = p.opts.Store.OnReplace(p.onReplace)

	for _, k := range p.opts.Keys {
		if err := p.reload(k, p.opts.Store.Begin(k)); err != nil && p.required(k) {
			p.stopLocked()
			return err
		}
	}

	for _, k := range p.opts.Keys {
		path, err := p.opts.Loader.Resolve(k)
		if err != nil {
			p.stopLocked()
			return err
		}
		h, err := p.opts.Registry.Watch(path, func(string) { p.onChange(k) })
		if err != nil {
			if p.required(k) {
				p.stopLocked()
				return err
			}
			p.opts.Logger.Warn("State file not watched",
				logfields.StateKey(string(k)), logfields.Path(path), logfields.Error(err))
			continue
		}
		p.handles = append(p.handles, h)
	}
	p.started = true
	return nil
}

// Stop removes the watches and the store hook and waits for in-flight loads.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	p.stopLocked()
	p.mu.Unlock()
	p.inflight.Wait()
}

func (p *Pipeline) stopLocked() {
	for _, h := range p.handles {
		p.opts.Registry.Unwatch(h)
	}
	p.handles = nil
	if p.cancelHook != nil {
		p.cancelHook()
		p.cancelHook = nil
	}
	p.started = false
}

// Replace installs a slice built by another component, such as the
// notification overview, through the same ordered write path.
func (p *Pipeline) Replace(k state.Key, s state.Slice) {
	v, applied := p.opts.Store.Commit(p.opts.Store.Begin(k), s)
	p.recordCommit(k, v, applied)
}

// Reload reads k again immediately and waits for the result.
func (p *Pipeline) Reload(k state.Key) error {
	return p.reload(k, p.opts.Store.Begin(k))
}

func (p *Pipeline) onChange(k state.Key) {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	ctx := p.ctx
	p.inflight.Add(1)
	p.mu.Unlock()

	// Ticket first: the order of detection decides which load wins.
	ticket := p.opts.Store.Begin(k)
	go func() {
		defer p.inflight.Done()
		start := p.opts.Clock.Now()
		res := <-p.opts.Loader.LoadAsync(ctx, k)
		p.commit(ticket, res.Slice, res.Err, p.opts.Clock.Since(start))
	}()
}

func (p *Pipeline) reload(k state.Key, ticket state.Ticket) error {
	start := p.opts.Clock.Now()
	s, err := p.opts.Loader.Load(k)
	return p.commit(ticket, s, err, p.opts.Clock.Since(start))
}

func (p *Pipeline) commit(ticket state.Ticket, s state.Slice, err error, took time.Duration) error {
	k := ticket.Key
	p.opts.Recorder.ObserveLoadDuration(string(k), took, err == nil)
	if err != nil {
		p.opts.Recorder.IncCommit(string(k), metrics.ResultFailed)
		p.opts.Logger.Warn("State file load failed, keeping last good slice",
			logfields.StateKey(string(k)), logfields.Error(err))
		return err
	}
	v, applied := p.opts.Store.Commit(ticket, s)
	p.recordCommit(k, v, applied)
	return nil
}

func (p *Pipeline) recordCommit(k state.Key, v uint64, applied bool) {
	if !applied {
		p.opts.Recorder.IncCommit(string(k), metrics.ResultStale)
		p.opts.Logger.Debug("Discarded stale load", logfields.StateKey(string(k)), logfields.Version(v))
		return
	}
	p.opts.Recorder.IncCommit(string(k), metrics.ResultSuccess)
}

func (p *Pipeline) onReplace(c state.Change) {
	msg := SliceChanged{
		Key:     c.Key,
		Version: c.Version,
		Slice:   c.Slice,
		Typed:   Project(c.Key, c.Slice),
		Reset:   c.Reset,
	}
	ctx := p.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	for _, ch := range keyChannels[c.Key] {
		p.opts.Publisher.Publish(ctx, ch, msg)
	}
	p.opts.Logger.Debug("State slice replaced",
		logfields.StateKey(string(c.Key)), logfields.Version(c.Version))
}

func (p *Pipeline) required(k state.Key) bool {
	return slices.Contains(p.opts.RequiredKeys, k)
}

// Project returns the typed form of a slice.
func Project(k state.Key, s state.Slice) any {
	if k == state.KeyNotifications {
		return notify.OverviewFromSlice(s)
	}
	return emhttp.Project(k, s)
}
