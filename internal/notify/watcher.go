package notify

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
	"git.home.luguber.info/inful/nasstate/internal/ini"
	"git.home.luguber.info/inful/nasstate/internal/logfields"
	"git.home.luguber.info/inful/nasstate/internal/metrics"
	"git.home.luguber.info/inful/nasstate/internal/pubsub"
	"git.home.luguber.info/inful/nasstate/internal/state"
	"git.home.luguber.info/inful/nasstate/internal/watch"
)

// Extension marks notification files.
const Extension = ".notify"

// Registrar is the subset of watch.Registry the watcher needs.
type Registrar interface {
	Watch(path string, cb watch.Callback) (watch.Handle, error)
	Unwatch(h watch.Handle)
}

// Publisher delivers accepted records.
type Publisher interface {
	Publish(ctx context.Context, channel pubsub.Channel, payload any) pubsub.PublishResult
}

// Replacer installs a new notifications slice in the canonical store.
type Replacer func(k state.Key, s state.Slice)

// Options configures a Watcher. Dir, Registry, Publisher and Dedup are required.
type Options struct {
	Dir       string
	Registry  Registrar
	Publisher Publisher
	Replace   Replacer
	Dedup     *Dedup
	Logger    *slog.Logger
	Recorder  metrics.Recorder
}

// Watcher publishes notifications as their files appear.
type Watcher struct {
	opts Options

	mu       sync.Mutex
	ctx      context.Context
	handle   watch.Handle
	started  bool
	unread   map[string]Importance // file name -> importance
	overview *Overview             // last overview handed to Replace
}

// NewWatcher validates opts and creates a Watcher.
func NewWatcher(opts Options) (*Watcher, error) {
	switch {
	case opts.Dir == "":
		return nil, ferrors.ValidationError("notification directory is required").Build()
	case opts.Registry == nil:
		return nil, ferrors.ValidationError("watch registry is required").Build()
	case opts.Publisher == nil:
		return nil, ferrors.ValidationError("publisher is required").Build()
	case opts.Dedup == nil:
		return nil, ferrors.ValidationError("dedup cache is required").Build()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Recorder == nil {
		opts.Recorder = metrics.NoopRecorder{}
	}
	return &Watcher{opts: opts, unread: make(map[string]Importance)}, nil
}

// Start creates the directory if needed, begins watching it and processes
// the files already present. ctx bounds every later publish.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return nil
	}

	if err := os.MkdirAll(w.opts.Dir, 0o755); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryFileSystem, "create notification directory").
			WithContext("path", w.opts.Dir).
			Build()
	}
	if err := w.opts.Dedup.Prune(ctx); err != nil {
		w.opts.Logger.Warn("Failed to prune seen notifications", logfields.Error(err))
	}

	// Watch before scanning; a file caught by both is deduplicated.
	h, err := w.opts.Registry.Watch(w.opts.Dir, w.onChange)
	if err != nil {
		return err
	}
	w.ctx = ctx
	w.handle = h
	w.started = true

	entries, err := os.ReadDir(w.opts.Dir)
	if err != nil {
		w.opts.Logger.Warn("Failed to scan notification directory",
			logfields.Path(w.opts.Dir), logfields.Error(err))
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	for _, e := range entries {
		if e.IsDir() || !isNotification(e.Name()) {
			continue
		}
		w.process(filepath.Join(w.opts.Dir, e.Name()))
	}
	w.refreshOverview(true)
	return nil
}

// Stop ends watching. Records already published stay published.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	w.opts.Registry.Unwatch(w.handle)
	w.started = false
}

// Overview returns the current unread counts.
func (w *Watcher) Overview() Overview {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count()
}

func (w *Watcher) onChange(path string) {
	if !isNotification(path) {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.started {
		return
	}
	w.process(path)
	w.refreshOverview(false)
}

// process handles one file. Callers hold mu.
func (w *Watcher) process(path string) {
	name := filepath.Base(path)
	logger := w.opts.Logger.With(logfields.Path(path))

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// archived or deleted
			delete(w.unread, name)
			return
		}
		logger.Warn("Failed to read notification", logfields.Error(err))
		return
	}

	slice, perr := ini.DecodeReport(string(data))
	if perr != nil {
		logger.Debug("Notification contains malformed lines", logfields.Error(perr))
	}
	rec, err := ParseRecord(path, slice)
	if err != nil {
		w.opts.Recorder.IncNotification(metrics.ResultMalformed)
		logger.Warn("Skipping malformed notification", logfields.Error(err))
		return
	}
	w.unread[name] = rec.Importance

	admitted, err := w.opts.Dedup.Admit(w.ctx, rec.Identity())
	if err != nil {
		logger.Warn("Seen store unavailable, using in-memory dedup", logfields.Error(err))
	}
	if !admitted {
		w.opts.Recorder.IncNotification(metrics.ResultDuplicate)
		logger.Debug("Duplicate notification suppressed", logfields.NotificationID(rec.ID))
		return
	}

	w.opts.Recorder.IncNotification(metrics.ResultSuccess)
	res := w.opts.Publisher.Publish(w.ctx, pubsub.ChannelNotification, rec)
	logger.Info("Notification published",
		logfields.NotificationID(rec.ID),
		slog.String("importance", string(rec.Importance)),
		slog.Int("delivered", res.Delivered))
}

// refreshOverview hands the counts to Replace when they changed. Callers hold mu.
func (w *Watcher) refreshOverview(force bool) {
	if w.opts.Replace == nil {
		return
	}
	o := w.count()
	if !force && w.overview != nil && *w.overview == o {
		return
	}
	w.overview = &o
	w.opts.Replace(state.KeyNotifications, o.Slice())
}

func (w *Watcher) count() Overview {
	var o Overview
	for _, imp := range w.unread {
		o.add(imp)
	}
	return o
}

func isNotification(path string) bool {
	return strings.HasSuffix(path, Extension)
}
