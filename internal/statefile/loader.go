// Package statefile resolves state keys to files on disk and decodes them.
package statefile

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
	"git.home.luguber.info/inful/nasstate/internal/ini"
	"git.home.luguber.info/inful/nasstate/internal/logfields"
	"git.home.luguber.info/inful/nasstate/internal/state"
)

// Loader reads state files. A missing file is not an error: emhttp writes its
// files some time after boot and the daemon has to run before that.
type Loader struct {
	dirs   map[state.Source]string
	logger *slog.Logger
}

// Result is delivered by LoadAsync.
type Result struct {
	Key   state.Key
	Slice state.Slice
	Err   error
}

// New creates a loader for the emhttp state directory and the flash config directory.
func New(emhttpDir, configDir string) *Loader {
	return &Loader{
		dirs: map[state.Source]string{
			state.SourceEmhttp: emhttpDir,
			state.SourceConfig: configDir,
		},
		logger: slog.Default(),
	}
}

// WithLogger overrides the logger used for parse warnings.
func (l *Loader) WithLogger(logger *slog.Logger) *Loader {
	if logger != nil {
		l.logger = logger
	}
	return l
}

// Resolve returns the absolute-or-configured path for k.
func (l *Loader) Resolve(k state.Key) (string, error) {
	info, ok := state.Lookup(k)
	if !ok {
		return "", ferrors.ValidationError("unknown state key").
			WithContext("key", string(k)).
			Build()
	}
	if info.Source == state.SourceDerived {
		return "", ferrors.ValidationError("state key has no backing file").
			WithContext("key", string(k)).
			Build()
	}
	return filepath.Join(l.dirs[info.Source], filepath.FromSlash(info.File)), nil
}

// Load reads and decodes the file for k.
func (l *Loader) Load(k state.Key) (state.Slice, error) {
	path, err := l.Resolve(k)
	if err != nil {
		return nil, err
	}
	return l.read(k, path)
}

// LoadAsync runs Load on its own goroutine. The returned channel yields
// exactly one Result and is then closed. If ctx is done before the result is
// ready, the Result carries the context error instead.
func (l *Loader) LoadAsync(ctx context.Context, k state.Key) <-chan Result {
	out := make(chan Result, 1)
	done := make(chan Result, 1)

	go func() {
		s, err := l.Load(k)
		done <- Result{Key: k, Slice: s, Err: err}
	}()

	go func() {
		defer close(out)
		select {
		case r := <-done:
			out <- r
		case <-ctx.Done():
			out <- Result{Key: k, Err: ferrors.WrapError(ctx.Err(), ferrors.CategoryRuntime, "state file load canceled").
				WithContext("key", string(k)).
				Build()}
		}
	}()
	return out
}

// LoadPath decodes an arbitrary file in the state file format. It follows the
// same missing-file and error rules as Load.
func (l *Loader) LoadPath(path string) (state.Slice, error) {
	return l.read("", path)
}

func (l *Loader) read(k state.Key, path string) (state.Slice, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return state.Slice{}, nil
		}
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "read state file").
			Retryable().
			WithContext("key", string(k)).
			WithContext("path", path).
			Build()
	}

	s, perr := ini.DecodeReport(string(data))
	if perr != nil {
		l.logger.Warn("State file contains malformed lines",
			logfields.StateKey(string(k)),
			logfields.Path(path),
			logfields.Error(perr))
	}
	return s, nil
}
