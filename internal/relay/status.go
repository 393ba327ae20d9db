package relay

import "time"

// Status is the relay connection state.
type Status string

const (
	StatusDisconnected Status = "DISCONNECTED"
	StatusConnecting   Status = "CONNECTING"
	StatusConnected    Status = "CONNECTED"
	StatusReconnecting Status = "RECONNECTING"
	StatusError        Status = "ERROR"
)

// ConnectionStatus is the observable state of the relay link.
type ConnectionStatus struct {
	Status Status
	// Error describes the last failure. Nil when connected or idle.
	Error *string
	// Timeout is how long the current CONNECTING or RECONNECTING phase may
	// last, measured from TimeoutStart.
	Timeout      *time.Duration
	TimeoutStart *time.Time
	// Restarting is set while reconnecting after the relay announced a restart.
	Restarting bool
	// Attempts counts consecutive failed connection attempts.
	Attempts int
}

// TimeoutRemaining returns timeout - (now - timeoutStart), clamped at zero.
// It is nil outside CONNECTING and RECONNECTING.
func (c ConnectionStatus) TimeoutRemaining(now time.Time) *time.Duration {
	if c.Status != StatusConnecting && c.Status != StatusReconnecting {
		return nil
	}
	if c.Timeout == nil || c.TimeoutStart == nil {
		return nil
	}
	left := *c.Timeout - now.Sub(*c.TimeoutStart)
	if left < 0 {
		left = 0
	}
	return &left
}

// View is the wire form of a ConnectionStatus at one instant.
type View struct {
	Status     Status  `json:"status"`
	Error      *string `json:"error"`
	Timeout    *int64  `json:"timeout"` // remaining milliseconds
	Restarting bool    `json:"restarting"`
	Attempts   int     `json:"attempts"`
}

// View renders c as observed at now.
func (c ConnectionStatus) View(now time.Time) View {
	v := View{Status: c.Status, Error: c.Error, Restarting: c.Restarting, Attempts: c.Attempts}
	if left := c.TimeoutRemaining(now); left != nil {
		ms := left.Milliseconds()
		v.Timeout = &ms
	}
	return v
}

func (c ConnectionStatus) clone() ConnectionStatus {
	out := c
	if c.Error != nil {
		e := *c.Error
		out.Error = &e
	}
	if c.Timeout != nil {
		t := *c.Timeout
		out.Timeout = &t
	}
	if c.TimeoutStart != nil {
		t := *c.TimeoutStart
		out.TimeoutStart = &t
	}
	return out
}
