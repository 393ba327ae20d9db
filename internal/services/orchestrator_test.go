package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
)

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(s string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, s)
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// MockService records lifecycle calls into a shared journal.
type MockService struct {
	name         string
	dependencies []string
	journal      *journal
	failStart    bool
	failStop     bool
	startDelay   time.Duration

	mu        sync.Mutex
	isRunning bool
}

func NewMockService(j *journal, name string, deps ...string) *MockService {
	return &MockService{name: name, dependencies: deps, journal: j}
}

func (m *MockService) Name() string           { return m.name }
func (m *MockService) Dependencies() []string { return m.dependencies }

func (m *MockService) Start(ctx context.Context) error {
	if m.startDelay > 0 {
		select {
		case <-time.After(m.startDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.failStart {
		return errors.New("mock start failure")
	}
	m.mu.Lock()
	m.isRunning = true
	m.mu.Unlock()
	m.journal.add("start " + m.name)
	return nil
}

func (m *MockService) Stop(context.Context) error {
	if m.failStop {
		return errors.New("mock stop failure")
	}
	m.mu.Lock()
	m.isRunning = false
	m.mu.Unlock()
	m.journal.add("stop " + m.name)
	return nil
}

func (m *MockService) Health() HealthStatus {
	if m.IsRunning() {
		return Healthy()
	}
	return Unhealthy("service not running")
}

func (m *MockService) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isRunning
}

func newTestOrchestrator() *Orchestrator {
	return NewOrchestrator(slog.New(slog.DiscardHandler))
}

func TestOrchestrator_SingleServiceLifecycle(t *testing.T) {
	o := newTestOrchestrator()
	j := &journal{}
	svc := NewMockService(j, "store")
	require.NoError(t, o.Register(svc))

	require.NoError(t, o.StartAll(t.Context()))
	assert.True(t, svc.IsRunning())

	info, ok := o.ServiceInfo("store")
	require.True(t, ok)
	assert.Equal(t, StatusRunning, info.Status)
	assert.Equal(t, "healthy", info.Health.Status)
	assert.NotNil(t, info.StartedAt)

	require.NoError(t, o.StopAll(t.Context()))
	assert.False(t, svc.IsRunning())

	info, _ = o.ServiceInfo("store")
	assert.Equal(t, StatusStopped, info.Status)
	assert.NotNil(t, info.StoppedAt)
}

func TestOrchestrator_DependencyOrder(t *testing.T) {
	o := newTestOrchestrator()
	j := &journal{}

	require.NoError(t, o.Register(NewMockService(j, "relay", "ingest")))
	require.NoError(t, o.Register(NewMockService(j, "notify", "ingest")))
	require.NoError(t, o.Register(NewMockService(j, "ingest")))
	require.NoError(t, o.Register(NewMockService(j, "http")))

	require.NoError(t, o.StartAll(t.Context()))
	require.NoError(t, o.StopAll(t.Context()))

	assert.Equal(t, []string{
		"start http", "start ingest", "start notify", "start relay",
		"stop relay", "stop notify", "stop ingest", "stop http",
	}, j.list())
}

func TestOrchestrator_CircularDependency(t *testing.T) {
	o := newTestOrchestrator()
	j := &journal{}
	require.NoError(t, o.Register(NewMockService(j, "a", "b")))
	require.NoError(t, o.Register(NewMockService(j, "b", "a")))

	err := o.StartAll(t.Context())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryInternal))
	assert.Empty(t, j.list())
}

func TestOrchestrator_MissingDependency(t *testing.T) {
	o := newTestOrchestrator()
	require.NoError(t, o.Register(NewMockService(&journal{}, "notify", "ingest")))

	err := o.StartAll(t.Context())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to calculate service start order")
}

func TestOrchestrator_StartFailureRollsBack(t *testing.T) {
	o := newTestOrchestrator()
	j := &journal{}
	a := NewMockService(j, "a")
	b := NewMockService(j, "b")
	b.failStart = true
	c := NewMockService(j, "c", "b")

	require.NoError(t, o.Register(a))
	require.NoError(t, o.Register(b))
	require.NoError(t, o.Register(c))

	require.Error(t, o.StartAll(t.Context()))
	assert.False(t, a.IsRunning())
	assert.False(t, c.IsRunning())
	assert.Equal(t, []string{"start a", "stop a"}, j.list())

	info, ok := o.ServiceInfo("b")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, info.Status)
	assert.Equal(t, "mock start failure", info.LastError)
}

func TestOrchestrator_StartTimeout(t *testing.T) {
	o := newTestOrchestrator().WithTimeouts(20*time.Millisecond, 20*time.Millisecond)
	slow := NewMockService(&journal{}, "slow")
	slow.startDelay = time.Second
	require.NoError(t, o.Register(slow))

	err := o.StartAll(t.Context())
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestOrchestrator_StopFailureReported(t *testing.T) {
	o := newTestOrchestrator()
	j := &journal{}
	bad := NewMockService(j, "bad")
	bad.failStop = true
	good := NewMockService(j, "good", "bad")
	require.NoError(t, o.Register(bad))
	require.NoError(t, o.Register(good))

	require.NoError(t, o.StartAll(t.Context()))
	err := o.StopAll(t.Context())
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryDaemon))
	assert.False(t, good.IsRunning())
}

func TestOrchestrator_RegistrationValidation(t *testing.T) {
	o := newTestOrchestrator()
	j := &journal{}

	err := o.Register(NewMockService(j, ""))
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))

	require.NoError(t, o.Register(NewMockService(j, "dup")))
	err = o.Register(NewMockService(j, "dup"))
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryValidation))
}

func TestOrchestrator_ServiceInfo(t *testing.T) {
	o := newTestOrchestrator()
	require.NoError(t, o.Register(NewMockService(&journal{}, "notify", "ingest")))
	require.NoError(t, o.Register(NewMockService(&journal{}, "ingest")))

	info, ok := o.ServiceInfo("notify")
	require.True(t, ok)
	assert.Equal(t, []string{"ingest"}, info.Dependencies)
	assert.Equal(t, StatusNotStarted, info.Status)
	assert.Equal(t, "unhealthy", info.Health.Status)

	_, ok = o.ServiceInfo("missing")
	assert.False(t, ok)

	all := o.AllServiceInfo()
	require.Len(t, all, 2)
	assert.Equal(t, "ingest", all[0].Name)
	assert.Equal(t, "notify", all[1].Name)
}

func TestFuncService(t *testing.T) {
	var started, stopped bool
	svc := NewFuncService("x",
		func(context.Context) error { started = true; return nil },
		func(context.Context) error { stopped = true; return nil },
		"dep",
	)
	assert.Equal(t, "x", svc.Name())
	assert.Equal(t, []string{"dep"}, svc.Dependencies())
	assert.Equal(t, Healthy(), svc.Health())

	require.NoError(t, svc.Start(t.Context()))
	require.NoError(t, svc.Stop(t.Context()))
	assert.True(t, started)
	assert.True(t, stopped)

	svc.WithHealth(func() HealthStatus { return Unhealthy("down") })
	assert.Equal(t, "down", svc.Health().Message)

	empty := NewFuncService("noop", nil, nil)
	assert.NoError(t, empty.Start(t.Context()))
	assert.NoError(t, empty.Stop(t.Context()))
}
