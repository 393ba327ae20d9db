package notify

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
	"git.home.luguber.info/inful/nasstate/internal/pubsub"
	"git.home.luguber.info/inful/nasstate/internal/state"
	"git.home.luguber.info/inful/nasstate/internal/watch"
)

const sampleNotify = `timestamp=1700000000
event="Unraid Status"
subject="Notice [TOWER] - array health report [PASS]"
description="Array has 4 disks"
importance="warning"
link="/Main"
`

type fakeRegistry struct {
	mu  sync.Mutex
	cb  watch.Callback
	dir string
	off bool
}

func (f *fakeRegistry) Watch(path string, cb watch.Callback) (watch.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dir, f.cb = path, cb
	return watch.Handle{}, nil
}

func (f *fakeRegistry) Unwatch(watch.Handle) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.off = true
}

func (f *fakeRegistry) trigger(path string) {
	f.mu.Lock()
	cb := f.cb
	f.mu.Unlock()
	cb(path)
}

type capture struct {
	mu       sync.Mutex
	records  []Record
	replaced []state.Slice
}

func (c *capture) Publish(_ context.Context, ch pubsub.Channel, payload any) pubsub.PublishResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ch == pubsub.ChannelNotification {
		c.records = append(c.records, payload.(Record))
	}
	return pubsub.PublishResult{Delivered: 1}
}

func (c *capture) replace(_ state.Key, s state.Slice) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.replaced = append(c.replaced, s)
}

func (c *capture) published() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Record(nil), c.records...)
}

func (c *capture) lastOverview() Overview {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.replaced) == 0 {
		return Overview{}
	}
	return OverviewFromSlice(c.replaced[len(c.replaced)-1])
}

func newTestWatcher(t *testing.T, dedup *Dedup) (*Watcher, *fakeRegistry, *capture, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "unread")
	reg := &fakeRegistry{}
	c := &capture{}
	if dedup == nil {
		dedup = NewDedup(16, time.Minute, clockwork.NewFakeClock(), nil)
	}
	w, err := NewWatcher(Options{
		Dir:       dir,
		Registry:  reg,
		Publisher: c,
		Replace:   c.replace,
		Dedup:     dedup,
	})
	require.NoError(t, err)
	return w, reg, c, dir
}

func writeNotify(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestParseRecord(t *testing.T) {
	rec, err := ParseRecord("/tmp/unread/a.notify", map[string]any{
		"timestamp":   "1700000000",
		"event":       "Unraid Status",
		"subject":     "Notice",
		"description": "ok",
		"importance":  "ALERT",
	})
	require.NoError(t, err)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), rec.Timestamp)
	assert.Equal(t, ImportanceAlert, rec.Importance)
	assert.Equal(t, "a.notify", rec.File)
	assert.Equal(t, RecordID(rec.Identity()), rec.ID)

	_, err = ParseRecord("x.notify", state.Slice{"subject": "s"})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryParse))

	_, err = ParseRecord("x.notify", state.Slice{"timestamp": "1"})
	require.Error(t, err)

	rec, err = ParseRecord("x.notify", state.Slice{"timestamp": "1", "event": "e", "importance": "bogus"})
	require.NoError(t, err)
	assert.Equal(t, ImportanceNormal, rec.Importance)
}

func TestIdentity_NormalizesUnicode(t *testing.T) {
	ts := time.Unix(10, 0)
	composed := Identity(ts, "caf\u00e9", "event")
	decomposed := Identity(ts, "cafe\u0301", "event")
	assert.Equal(t, composed, decomposed)
	assert.Equal(t, RecordID(composed), RecordID(decomposed))
	assert.NotEqual(t, composed, Identity(ts.Add(time.Second), "caf\u00e9", "event"))
}

func TestDedup_CapacityIsFIFO(t *testing.T) {
	d := NewDedup(2, 0, clockwork.NewFakeClock(), nil)
	ctx := context.Background()

	for _, id := range []string{"a", "b"} {
		ok, err := d.Admit(ctx, id)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, _ := d.Admit(ctx, "a")
	assert.False(t, ok, "a is still remembered")

	ok, _ = d.Admit(ctx, "c")
	assert.True(t, ok)
	assert.Equal(t, 2, d.Len())

	ok, _ = d.Admit(ctx, "a")
	assert.True(t, ok, "a was evicted by c")
}

func TestDedup_MaxAge(t *testing.T) {
	clock := clockwork.NewFakeClock()
	d := NewDedup(10, time.Minute, clock, nil)
	ctx := context.Background()

	ok, _ := d.Admit(ctx, "a")
	require.True(t, ok)

	clock.Advance(59 * time.Second)
	ok, _ = d.Admit(ctx, "a")
	assert.False(t, ok)

	clock.Advance(2 * time.Second)
	ok, _ = d.Admit(ctx, "a")
	assert.True(t, ok, "entry expired")
}

func TestSQLiteSeenStore_SurvivesRestart(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "seen.db")
	clock := clockwork.NewFakeClock()

	store, err := NewSQLiteSeenStore(dbPath)
	require.NoError(t, err)
	ok, err := NewDedup(8, time.Hour, clock, store).Admit(ctx, "a")
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, store.Close())

	store, err = NewSQLiteSeenStore(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	fresh := NewDedup(8, time.Hour, clock, store)
	ok, err = fresh.Admit(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok, "identity persisted across restart")

	clock.Advance(2 * time.Hour)
	require.NoError(t, fresh.Prune(ctx))
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSQLiteSeenStore_PruneKeepsNewest(t *testing.T) {
	ctx := context.Background()
	store, err := NewSQLiteSeenStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	base := time.Unix(1000, 0)
	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, store.Remember(ctx, id, base.Add(time.Duration(i)*time.Second)))
	}
	require.NoError(t, store.Prune(ctx, time.Time{}, 2))

	seen, err := store.Seen(ctx, "a", time.Time{})
	require.NoError(t, err)
	assert.False(t, seen)
	seen, err = store.Seen(ctx, "c", time.Time{})
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestWatcher_InitialScanPublishesAndCounts(t *testing.T) {
	w, _, c, dir := newTestWatcher(t, nil)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	writeNotify(t, dir, "a.notify", sampleNotify)
	writeNotify(t, dir, "ignored.txt", sampleNotify)

	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	recs := c.published()
	require.Len(t, recs, 1)
	assert.Equal(t, "Unraid Status", recs[0].Event)
	assert.Equal(t, Overview{Warning: 1, Total: 1}, c.lastOverview())
}

func TestWatcher_CreatesMissingDirectory(t *testing.T) {
	w, reg, c, dir := newTestWatcher(t, nil)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	assert.DirExists(t, dir)
	assert.Equal(t, dir, reg.dir)
	assert.Equal(t, Overview{}, c.lastOverview())
}

func TestWatcher_DuplicateWithinWindowPublishesOnce(t *testing.T) {
	w, reg, c, dir := newTestWatcher(t, nil)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	first := writeNotify(t, dir, "a.notify", sampleNotify)
	reg.trigger(first)
	second := writeNotify(t, dir, "b.notify", sampleNotify)
	reg.trigger(second)

	assert.Len(t, c.published(), 1)
	assert.Equal(t, 2, w.Overview().Total, "both files are unread")
}

func TestWatcher_MalformedFileSkipped(t *testing.T) {
	w, reg, c, dir := newTestWatcher(t, nil)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	reg.trigger(writeNotify(t, dir, "bad.notify", "subject=\"no timestamp\"\n"))
	assert.Empty(t, c.published())
	assert.Zero(t, w.Overview().Total)
}

func TestWatcher_RemovedFileUpdatesOverview(t *testing.T) {
	w, reg, c, dir := newTestWatcher(t, nil)
	require.NoError(t, w.Start(context.Background()))
	t.Cleanup(w.Stop)

	path := writeNotify(t, dir, "a.notify", sampleNotify)
	reg.trigger(path)
	require.Equal(t, 1, c.lastOverview().Total)

	require.NoError(t, os.Remove(path))
	reg.trigger(path)
	assert.Equal(t, Overview{}, c.lastOverview())
}

func TestWatcher_StopIgnoresLateCallbacks(t *testing.T) {
	w, reg, c, dir := newTestWatcher(t, nil)
	require.NoError(t, w.Start(context.Background()))
	w.Stop()
	assert.True(t, reg.off)

	reg.trigger(writeNotify(t, dir, "a.notify", sampleNotify))
	assert.Empty(t, c.published())
}

func TestNewWatcher_Validation(t *testing.T) {
	_, err := NewWatcher(Options{})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestOverviewSliceRoundTrip(t *testing.T) {
	o := Overview{Normal: 1, Warning: 2, Alert: 3, Total: 6}
	assert.Equal(t, o, OverviewFromSlice(o.Slice()))
	assert.Equal(t, Overview{}, OverviewFromSlice(state.Slice{}))
}
