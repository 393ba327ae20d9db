package errors

import "maps"

// ErrorCategory represents the broad category of an error for classification and routing.
type ErrorCategory string

const (
	// CategoryConfig covers nasstate.yaml and CLI flag problems; the daemon
	// refuses to start.
	CategoryConfig ErrorCategory = "config"

	// CategoryValidation covers rejected arguments, such as an unknown state key
	// passed to dump or a service registered twice.
	CategoryValidation ErrorCategory = "validation"

	// CategoryNotFound covers admin lookups of unknown state keys or channels.
	CategoryNotFound ErrorCategory = "not_found"

	// CategoryParse covers malformed lines in emhttp state files and .notify
	// files. Decoding still returns what it could read.
	CategoryParse ErrorCategory = "parse"

	// CategoryFileSystem covers state files or directories that exist but
	// cannot be read, and the notification seen store.
	CategoryFileSystem ErrorCategory = "filesystem"

	// CategorySerialization covers slices the INI encoder cannot render.
	CategorySerialization ErrorCategory = "serialization"

	// CategorySubscription covers hub subscriber caps per channel.
	CategorySubscription ErrorCategory = "subscription"

	// CategoryConnection covers relay link failures. The connection monitor
	// backs off and redials on RetryBackoff and enters ERROR on RetryUserAction.
	CategoryConnection ErrorCategory = "connection"

	// CategoryDaemon covers lifecycle misuse, such as starting twice.
	CategoryDaemon ErrorCategory = "daemon"

	CategoryRuntime  ErrorCategory = "runtime"
	CategoryInternal ErrorCategory = "internal"
)

// ErrorSeverity indicates the impact level of an error.
type ErrorSeverity string

const (
	SeverityFatal   ErrorSeverity = "fatal"   // Stops execution completely
	SeverityError   ErrorSeverity = "error"   // Fails the current operation
	SeverityWarning ErrorSeverity = "warning" // Continues with degraded functionality
	SeverityInfo    ErrorSeverity = "info"    // Informational, no impact
)

// RetryStrategy indicates how an error should be handled in retry scenarios.
type RetryStrategy string

const (
	RetryNever      RetryStrategy = "never"      // Permanent failure, don't retry
	RetryImmediate  RetryStrategy = "immediate"  // Retry immediately
	RetryBackoff    RetryStrategy = "backoff"    // Retry with exponential backoff
	RetryUserAction RetryStrategy = "user"       // Requires user intervention
)

// ErrorContext provides structured context for errors.
type ErrorContext map[string]any

// Set adds or updates a context value.
func (c ErrorContext) Set(key string, value any) ErrorContext {
	if c == nil {
		c = make(ErrorContext)
	}
	c[key] = value
	return c
}

// Get retrieves a context value.
func (c ErrorContext) Get(key string) (any, bool) {
	if c == nil {
		return nil, false
	}
	value, exists := c[key]
	return value, exists
}

// GetString retrieves a string context value.
func (c ErrorContext) GetString(key string) (string, bool) {
	if value, exists := c.Get(key); exists {
		if str, ok := value.(string); ok {
			return str, true
		}
	}
	return "", false
}

// Merge combines two contexts, with other taking precedence.
func (c ErrorContext) Merge(other ErrorContext) ErrorContext {
	if c == nil {
		return other
	}
	if other == nil {
		return c
	}
	result := make(ErrorContext)
	maps.Copy(result, c)
	maps.Copy(result, other)
	return result
}

// clone returns a shallow copy so derived errors never share a map.
func (c ErrorContext) clone() ErrorContext {
	if c == nil {
		return nil
	}
	return maps.Clone(c)
}
