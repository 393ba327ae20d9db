package watch

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
	"git.home.luguber.info/inful/nasstate/internal/schedule"
)

// fileStat is what the poller compares between scans.
type fileStat struct {
	exists  bool
	size    int64
	modTime int64
	mode    os.FileMode
}

func statPath(path string) fileStat {
	fi, err := os.Stat(path)
	if err != nil {
		return fileStat{}
	}
	return fileStat{exists: true, size: fi.Size(), modTime: fi.ModTime().UnixNano(), mode: fi.Mode()}
}

// pollTarget is one registration's view of the filesystem at the last scan.
type pollTarget struct {
	id    uint64
	path  string
	isDir bool
	seen  map[string]fileStat
}

func (t *pollTarget) snapshot() map[string]fileStat {
	if !t.isDir {
		return map[string]fileStat{t.path: statPath(t.path)}
	}
	out := make(map[string]fileStat)
	entries, err := os.ReadDir(t.path)
	if err != nil {
		return out
	}
	for _, e := range entries {
		p := filepath.Join(t.path, e.Name())
		out[p] = statPath(p)
	}
	return out
}

// pollBackend stats every registered path on a fixed interval.
type pollBackend struct {
	reg       *Registry
	scheduler *schedule.Scheduler
	jobID     uuid.UUID

	mu      sync.Mutex
	targets map[uint64]*pollTarget
}

func newPollBackend(reg *Registry, s *schedule.Scheduler, interval time.Duration) (*pollBackend, error) {
	if s == nil {
		return nil, ferrors.ValidationError("poll mode requires a scheduler").Build()
	}
	if interval <= 0 {
		interval = time.Second
	}
	b := &pollBackend{
		reg:       reg,
		scheduler: s,
		targets:   make(map[uint64]*pollTarget),
	}
	id, err := s.Every("watch-poll", interval, b.scan)
	if err != nil {
		return nil, err
	}
	b.jobID = id
	return b, nil
}

func (b *pollBackend) add(r *registration) error {
	t := &pollTarget{id: r.id, path: r.path, isDir: r.isDir}
	t.seen = t.snapshot()
	b.mu.Lock()
	defer b.mu.Unlock()
	b.targets[r.id] = t
	return nil
}

func (b *pollBackend) remove(r *registration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.targets, r.id)
}

func (b *pollBackend) close() error {
	b.scheduler.Remove(b.jobID)
	return nil
}

type pollChange struct {
	id   uint64
	path string
}

// scan compares each target with its previous snapshot and reports differences.
func (b *pollBackend) scan() {
	b.mu.Lock()
	var changes []pollChange
	for _, t := range b.targets {
		now := t.snapshot()
		for p, st := range now {
			if prev, ok := t.seen[p]; !ok || prev != st {
				changes = append(changes, pollChange{id: t.id, path: p})
			}
		}
		for p := range t.seen {
			if _, ok := now[p]; !ok {
				changes = append(changes, pollChange{id: t.id, path: p})
			}
		}
		t.seen = now
	}
	b.mu.Unlock()

	for _, c := range changes {
		b.reg.fire(c.id, c.path)
	}
}
