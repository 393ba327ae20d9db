package errors

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCLIErrorAdapter_ExitCodeFor(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, 0},
		{"validation error", ValidationError("invalid input").Build(), 2},
		{"file access error", FileAccessError("unreadable").Build(), 5},
		{"config error", ConfigError("bad config").Build(), 7},
		{"connection error", ConnectionError("relay down").Build(), 8},
		{"internal error", InternalError("boom").Build(), 10},
		{"unclassified error", &customError{msg: "unknown error"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, adapter.ExitCodeFor(tt.err))
		})
	}
}

func TestCLIErrorAdapter_FormatError(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.Default())

	assert.Empty(t, adapter.FormatError(nil))
	assert.Equal(t, "Internal error occurred (use -v for details)",
		adapter.FormatError(InternalError("internal issue").Build()))
	assert.Contains(t, adapter.FormatError(ConfigError("bad config").Build()), "bad config")
	assert.Equal(t, "Error: unknown error", adapter.FormatError(&customError{msg: "unknown error"}))

	verbose := NewCLIErrorAdapter(true, slog.Default())
	assert.Contains(t, verbose.FormatError(InternalError("internal issue").Build()), "internal issue")
}

func TestCLIErrorAdapter_Report(t *testing.T) {
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
	var out bytes.Buffer

	code := adapter.Report(&out, ConfigError("missing paths.emhttp").Build())

	assert.Equal(t, 7, code)
	assert.Contains(t, out.String(), "missing paths.emhttp")
}

// customError is a test helper for unclassified errors
type customError struct {
	msg string
}

func (e *customError) Error() string {
	return e.msg
}
