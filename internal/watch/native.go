package watch

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
	"git.home.luguber.info/inful/nasstate/internal/logfields"
)

// nativeBackend watches directories with fsnotify. Several registrations can
// share a directory; it is dropped from the kernel watch list with the last one.
type nativeBackend struct {
	reg     *Registry
	watcher *fsnotify.Watcher

	mu   sync.Mutex
	dirs map[string]int

	done chan struct{}
}

func newNativeBackend(reg *Registry) (*nativeBackend, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to create file watcher").Build()
	}
	b := &nativeBackend{
		reg:     reg,
		watcher: w,
		dirs:    make(map[string]int),
		done:    make(chan struct{}),
	}
	go b.loop()
	return b, nil
}

func watchedDir(r *registration) string {
	if r.isDir {
		return r.path
	}
	return filepath.Dir(r.path)
}

func (b *nativeBackend) add(r *registration) error {
	dir := watchedDir(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.dirs[dir] == 0 {
		if err := b.watcher.Add(dir); err != nil {
			return ferrors.WrapError(err, ferrors.CategoryFileSystem, "failed to watch directory").
				WithContext("path", dir).
				Build()
		}
	}
	b.dirs[dir]++
	return nil
}

func (b *nativeBackend) remove(r *registration) {
	dir := watchedDir(r)
	b.mu.Lock()
	defer b.mu.Unlock()
	n, ok := b.dirs[dir]
	if !ok {
		return
	}
	if n > 1 {
		b.dirs[dir] = n - 1
		return
	}
	delete(b.dirs, dir)
	// The directory may already be gone, in which case the kernel dropped the watch.
	_ = b.watcher.Remove(dir)
}

func (b *nativeBackend) close() error {
	err := b.watcher.Close()
	<-b.done
	return err
}

func (b *nativeBackend) loop() {
	defer close(b.done)
	for {
		select {
		case event, ok := <-b.watcher.Events:
			if !ok {
				return
			}
			// Permission and timestamp changes do not alter content.
			if event.Op == fsnotify.Chmod {
				continue
			}
			b.reg.notify(filepath.Clean(event.Name))
		case err, ok := <-b.watcher.Errors:
			if !ok {
				return
			}
			b.reg.logger.Error("File watcher error", logfields.Error(err))
		}
	}
}
