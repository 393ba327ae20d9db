package metrics

import (
	"sync"
	"testing"
	"time"
)

// testRecorder counts calls so tests can assert on them.
type testRecorder struct {
	mu       sync.Mutex
	failures map[string]int
	commits  map[ResultLabel]int
}

func newTestRecorder() *testRecorder {
	return &testRecorder{failures: map[string]int{}, commits: map[ResultLabel]int{}}
}

func (t *testRecorder) ObserveLoadDuration(string, time.Duration, bool) {}
func (t *testRecorder) IncCommit(_ string, result ResultLabel) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commits[result]++
}
func (t *testRecorder) IncPublish(string) {}
func (t *testRecorder) IncHandlerFailure(channel string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures[channel]++
}
func (t *testRecorder) SetSubscribers(string, int)  {}
func (t *testRecorder) IncWatchEvent(string)        {}
func (t *testRecorder) SetConnectionStatus(string)  {}
func (t *testRecorder) IncReconnectAttempt()        {}
func (t *testRecorder) IncNotification(ResultLabel) {}

var _ Recorder = (*testRecorder)(nil)
var _ Recorder = NoopRecorder{}
var _ Recorder = (*PrometheusRecorder)(nil)

func TestTestRecorderCounts(t *testing.T) {
	r := newTestRecorder()
	r.IncHandlerFailure("INFO")
	r.IncCommit("var", ResultStale)
	if r.failures["INFO"] != 1 || r.commits[ResultStale] != 1 {
		t.Fatalf("unexpected counts: %+v %+v", r.failures, r.commits)
	}
}
