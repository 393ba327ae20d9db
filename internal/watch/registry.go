package watch

import (
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
	"git.home.luguber.info/inful/nasstate/internal/logfields"
	"git.home.luguber.info/inful/nasstate/internal/metrics"
	"git.home.luguber.info/inful/nasstate/internal/schedule"
)

// Mode selects the change detection backend.
type Mode string

const (
	ModeNative Mode = "native"
	ModePoll   Mode = "poll"
)

// Callback receives the path that changed: the registered file, or a child of
// the registered directory.
type Callback func(path string)

// Handle identifies a registration. The zero Handle is never valid.
type Handle struct {
	id uint64
}

// Options configures a Registry.
type Options struct {
	Mode         Mode
	Debounce     time.Duration
	PollInterval time.Duration
	// Scheduler runs the poll scan. Required in poll mode.
	Scheduler *schedule.Scheduler
	Clock     clockwork.Clock
	Logger    *slog.Logger
	Recorder  metrics.Recorder
}

type registration struct {
	id      uint64
	path    string
	isDir   bool
	cb      Callback
	pending map[string]clockwork.Timer
}

func (r *registration) matches(path string) bool {
	if r.isDir {
		return filepath.Dir(path) == r.path
	}
	return path == r.path
}

// backend is a change source. It reports through Registry.fire.
type backend interface {
	add(r *registration) error
	remove(r *registration)
	close() error
}

// Registry tracks watch registrations.
type Registry struct {
	mu     sync.Mutex
	regs   map[uint64]*registration
	nextID uint64
	closed bool

	mode     Mode
	debounce time.Duration
	clock    clockwork.Clock
	logger   *slog.Logger
	recorder metrics.Recorder
	backend  backend
}

// New creates a registry using opts.Mode, defaulting to native.
func New(opts Options) (*Registry, error) {
	r := &Registry{
		regs:     make(map[uint64]*registration),
		mode:     opts.Mode,
		debounce: opts.Debounce,
		clock:    opts.Clock,
		logger:   opts.Logger,
		recorder: opts.Recorder,
	}
	if r.mode == "" {
		r.mode = ModeNative
	}
	if r.clock == nil {
		r.clock = clockwork.NewRealClock()
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	if r.recorder == nil {
		r.recorder = metrics.NoopRecorder{}
	}

	var err error
	switch r.mode {
	case ModeNative:
		r.backend, err = newNativeBackend(r)
	case ModePoll:
		r.backend, err = newPollBackend(r, opts.Scheduler, opts.PollInterval)
	default:
		err = ferrors.ValidationError("unsupported watch mode").WithContext("mode", string(r.mode)).Build()
	}
	if err != nil {
		return nil, err
	}
	return r, nil
}

// Mode returns the active backend.
func (r *Registry) Mode() Mode { return r.mode }

// Watch registers onChange for path. The path, or for files its parent
// directory, must exist.
func (r *Registry) Watch(path string, onChange Callback) (Handle, error) {
	if onChange == nil {
		return Handle{}, ferrors.ValidationError("callback cannot be nil").Build()
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return Handle{}, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to resolve watch path").
			WithContext("path", path).
			Build()
	}

	isDir := false
	if fi, statErr := os.Stat(abs); statErr == nil {
		isDir = fi.IsDir()
	}
	if !isDir {
		if _, statErr := os.Stat(filepath.Dir(abs)); statErr != nil {
			return Handle{}, ferrors.FileAccessError("parent directory is not accessible").
				WithCause(statErr).
				WithContext("path", abs).
				Build()
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return Handle{}, ferrors.RuntimeError("watch registry is closed").Build()
	}

	r.nextID++
	reg := &registration{
		id:      r.nextID,
		path:    abs,
		isDir:   isDir,
		cb:      onChange,
		pending: make(map[string]clockwork.Timer),
	}
	if err := r.backend.add(reg); err != nil {
		return Handle{}, err
	}
	r.regs[reg.id] = reg

	r.logger.Debug("Watching path", logfields.Path(abs), slog.Bool("dir", isDir), slog.String("mode", string(r.mode)))
	return Handle{id: reg.id}, nil
}

// Unwatch removes a registration. Pending debounced callbacks are dropped.
// A callback whose timer already fired may still be running, or about to run,
// when Unwatch returns; callers that must not act after Unwatch guard their
// callback themselves. Calling it again, or with an unknown handle, does nothing.
func (r *Registry) Unwatch(h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	reg, ok := r.regs[h.id]
	if !ok {
		return
	}
	delete(r.regs, h.id)
	for p, t := range reg.pending {
		t.Stop()
		delete(reg.pending, p)
	}
	r.backend.remove(reg)
}

// Close removes every registration and stops the backend.
func (r *Registry) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	for id, reg := range r.regs {
		for _, t := range reg.pending {
			t.Stop()
		}
		delete(r.regs, id)
	}
	r.mu.Unlock()

	return r.backend.close()
}

// notify fans a raw change out to every matching registration.
func (r *Registry) notify(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, reg := range r.regs {
		if reg.matches(path) {
			r.schedule(reg, path)
		}
	}
}

// fire reports a raw change for one registration.
func (r *Registry) fire(id uint64, path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if reg, ok := r.regs[id]; ok {
		r.schedule(reg, path)
	}
}

// schedule (re)starts the debounce timer for reg and path. Caller holds r.mu.
func (r *Registry) schedule(reg *registration, path string) {
	if t, ok := reg.pending[path]; ok {
		t.Stop()
	}
	var timer clockwork.Timer
	timer = r.clock.AfterFunc(r.debounce, func() {
		r.mu.Lock()
		current, live := r.regs[reg.id]
		if !live || current.pending[path] != timer {
			r.mu.Unlock()
			return
		}
		delete(current.pending, path)
		cb := current.cb
		r.mu.Unlock()

		// From here on an Unwatch can no longer stop this call.

		r.recorder.IncWatchEvent(string(r.mode))
		cb(path)
	})
	reg.pending[path] = timer
}
