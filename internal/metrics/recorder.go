package metrics

import "time"

// ResultLabel enumerates outcome categories for counters.
type ResultLabel string

const (
	ResultSuccess   ResultLabel = "success"
	ResultFailed    ResultLabel = "failed"
	ResultDuplicate ResultLabel = "duplicate"
	ResultMalformed ResultLabel = "malformed"
	ResultStale     ResultLabel = "stale"
)

// Recorder defines observability hooks for state ingestion, fan-out and the
// relay connection. Implementations must be safe for concurrent use.
type Recorder interface {
	ObserveLoadDuration(key string, d time.Duration, success bool)
	IncCommit(key string, result ResultLabel) // result: success|stale
	IncPublish(channel string)
	IncHandlerFailure(channel string)
	SetSubscribers(channel string, n int)
	IncWatchEvent(mode string)
	SetConnectionStatus(status string)
	IncReconnectAttempt()
	IncNotification(result ResultLabel) // result: success|duplicate|malformed
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveLoadDuration(string, time.Duration, bool) {}
func (NoopRecorder) IncCommit(string, ResultLabel)                   {}
func (NoopRecorder) IncPublish(string)                               {}
func (NoopRecorder) IncHandlerFailure(string)                        {}
func (NoopRecorder) SetSubscribers(string, int)                      {}
func (NoopRecorder) IncWatchEvent(string)                            {}
func (NoopRecorder) SetConnectionStatus(string)                      {}
func (NoopRecorder) IncReconnectAttempt()                            {}
func (NoopRecorder) IncNotification(ResultLabel)                     {}
