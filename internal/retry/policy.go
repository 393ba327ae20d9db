package retry

import (
	"time"

	"git.home.luguber.info/inful/nasstate/internal/config"
	ferrors "git.home.luguber.info/inful/nasstate/internal/foundation/errors"
)

// Policy encapsulates backoff settings for transient failures.
// It is immutable after construction.
type Policy struct {
	Mode       config.RetryBackoffMode // fixed|linear|exponential
	Initial    time.Duration           // base delay
	Max        time.Duration           // cap for growth
	MaxRetries int                     // 0 means unlimited
}

// DefaultPolicy returns the relay default (exponential, 1s initial, 30s cap, unlimited).
func DefaultPolicy() Policy {
	return Policy{Mode: config.RetryBackoffExponential, Initial: time.Second, Max: 30 * time.Second}
}

// NewPolicy builds a policy from raw config fields; zero/invalid values fall back to defaults.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDuration time.Duration, maxRetries int) Policy {
	p := DefaultPolicy()
	if maxRetries > 0 {
		p.MaxRetries = maxRetries
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDuration > 0 {
		p.Max = maxDuration
	}
	if m := config.NormalizeRetryBackoff(string(mode)); m != "" {
		p.Mode = m
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// FromConfig builds the relay reconnect policy.
func FromConfig(r config.RelayConfig) Policy {
	return NewPolicy(r.Backoff.Mode, r.Backoff.InitialDuration(), r.Backoff.MaxDuration(), r.MaxAttempts)
}

// Delay returns the backoff delay for the given retry attempt number (1-based: first retry => 1).
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	switch p.Mode {
	case config.RetryBackoffFixed:
		return p.Initial
	case config.RetryBackoffExponential:
		// Stop doubling before the shift overflows.
		if retryCount > 62 {
			return p.Max
		}
		d := p.Initial * (1 << (retryCount - 1))
		if d > p.Max || d <= 0 {
			return p.Max
		}
		return d
	default: // linear
		d := time.Duration(retryCount) * p.Initial
		if d > p.Max || d <= 0 {
			return p.Max
		}
		return d
	}
}

// JitteredDelay spreads the delay for retryCount across [Delay(n), Delay(n+1)]
// using jitter in [0, 1). Consecutive attempts never get shorter delays, and
// once both bounds reach the cap the delay is exactly Max.
func (p Policy) JitteredDelay(retryCount int, jitter float64) time.Duration {
	lo := p.Delay(retryCount)
	if lo == 0 {
		return 0
	}
	switch {
	case jitter < 0:
		jitter = 0
	case jitter >= 1:
		jitter = 0.999999
	}
	hi := p.Delay(retryCount + 1)
	return lo + time.Duration(jitter*float64(hi-lo))
}

// Exhausted reports whether retryCount exceeds the retry budget.
func (p Policy) Exhausted(retryCount int) bool {
	return p.MaxRetries > 0 && retryCount > p.MaxRetries
}

// Validate ensures invariants; returns error if policy impossible to apply.
func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return ferrors.ValidationError("initial must be >0").Build()
	}
	if p.Max <= 0 {
		return ferrors.ValidationError("max must be >0").Build()
	}
	if p.MaxRetries < 0 {
		return ferrors.ValidationError("max retries cannot be negative").Build()
	}
	return nil
}
