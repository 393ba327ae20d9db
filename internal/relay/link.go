package relay

import "context"

// CloseInfo describes why a link ended.
type CloseInfo struct {
	Code   int    `json:"code"`
	Reason string `json:"reason"`
}

// Link is an established relay connection.
type Link interface {
	// Done delivers exactly one CloseInfo when the link ends for any reason
	// other than a local Close.
	Done() <-chan CloseInfo
	// Ping round-trips to the relay.
	Ping(ctx context.Context) error
	// Publish sends data on subject.
	Publish(subject string, data []byte) error
	Close() error
}

// Dialer opens links. Dial must honor ctx cancellation and deadline.
type Dialer interface {
	Dial(ctx context.Context) (Link, error)
}

// DialerFunc adapts a function to Dialer.
type DialerFunc func(ctx context.Context) (Link, error)

func (f DialerFunc) Dial(ctx context.Context) (Link, error) { return f(ctx) }
