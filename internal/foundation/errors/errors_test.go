package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "nasstate.yaml").
			Build()

		assert.Equal(t, CategoryConfig, err.Category())
		assert.Equal(t, SeverityFatal, err.Severity())
		assert.Equal(t, "invalid configuration", err.Message())

		file, ok := err.Context().GetString("file")
		require.True(t, ok)
		assert.Equal(t, "nasstate.yaml", file)
	})

	t.Run("Detection through wrapping", func(t *testing.T) {
		inner := FileAccessError("read state file").WithContext("path", "/var/local/emhttp/var.ini").Build()
		wrapped := fmt.Errorf("initial load: %w", inner)

		assert.True(t, IsClassified(wrapped))
		assert.True(t, HasCategory(wrapped, CategoryFileSystem))
		assert.Equal(t, CategoryFileSystem, GetCategory(wrapped))
		assert.Equal(t, RetryBackoff, GetRetryStrategy(wrapped))
		assert.Equal(t, CategoryInternal, GetCategory(errors.New("plain")))
	})

	t.Run("WithContext does not mutate the original", func(t *testing.T) {
		base := ParseError("bad line").Build()
		derived := base.WithContext("line", 3)

		_, ok := base.Context().Get("line")
		assert.False(t, ok)
		line, ok := derived.Context().Get("line")
		require.True(t, ok)
		assert.Equal(t, 3, line)
	})
}

func TestErrorBuilder(t *testing.T) {
	t.Run("Fluent API", func(t *testing.T) {
		originalErr := errors.New("connection refused")
		err := WrapError(originalErr, CategoryConnection, "dial relay").
			Warning().
			Retryable().
			WithContext("url", "nats://relay:4222").
			Build()

		assert.Equal(t, CategoryConnection, err.Category())
		assert.Equal(t, SeverityWarning, err.Severity())
		assert.Equal(t, RetryBackoff, err.RetryStrategy())
		assert.ErrorIs(t, err, originalErr)
		assert.True(t, err.IsTransient())
	})

	t.Run("Convenience constructors", func(t *testing.T) {
		tests := []struct {
			name     string
			builder  *ErrorBuilder
			category ErrorCategory
			severity ErrorSeverity
			retry    RetryStrategy
		}{
			{"ConfigError", ConfigError("test"), CategoryConfig, SeverityFatal, RetryNever},
			{"ValidationError", ValidationError("test"), CategoryValidation, SeverityFatal, RetryNever},
			{"ParseError", ParseError("test"), CategoryParse, SeverityWarning, RetryNever},
			{"FileAccessError", FileAccessError("test"), CategoryFileSystem, SeverityError, RetryBackoff},
			{"SerializationError", SerializationError("test"), CategorySerialization, SeverityError, RetryNever},
			{"TooManySubscribersError", TooManySubscribersError("test"), CategorySubscription, SeverityError, RetryUserAction},
			{"ConnectionError", ConnectionError("test"), CategoryConnection, SeverityError, RetryBackoff},
			{"FatalConnectionError", FatalConnectionError("test"), CategoryConnection, SeverityFatal, RetryUserAction},
			{"RuntimeError", RuntimeError("test"), CategoryRuntime, SeverityFatal, RetryNever},
			{"DaemonError", DaemonError("test"), CategoryDaemon, SeverityFatal, RetryNever},
			{"InternalError", InternalError("test"), CategoryInternal, SeverityFatal, RetryNever},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				err := tt.builder.Build()
				assert.Equal(t, tt.category, err.Category())
				assert.Equal(t, tt.severity, err.Severity())
				assert.Equal(t, tt.retry, err.RetryStrategy())
			})
		}
	})
}

func TestErrorIsMatchesCategoryAndMessage(t *testing.T) {
	a := TooManySubscribersError("too many subscribers").WithContext("channel", "NOTIFICATION").Build()
	b := TooManySubscribersError("too many subscribers").Build()
	c := ParseError("too many subscribers").Build()

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}

func TestErrorContext(t *testing.T) {
	ctx1 := ErrorContext{}.Set("key1", "value1").Set("shared", "original")
	ctx2 := ErrorContext{}.Set("key2", "value2").Set("shared", "overridden")

	merged := ctx1.Merge(ctx2)

	v1, _ := merged.GetString("key1")
	v2, _ := merged.GetString("key2")
	shared, _ := merged.GetString("shared")
	assert.Equal(t, "value1", v1)
	assert.Equal(t, "value2", v2)
	assert.Equal(t, "overridden", shared)

	_, exists := merged.Get("nonexistent")
	assert.False(t, exists)
}
