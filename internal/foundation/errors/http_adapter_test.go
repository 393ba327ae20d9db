package errors

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPErrorAdapter_StatusCodeFor(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.Default())

	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, http.StatusOK},
		{"validation error", ValidationError("invalid input").Build(), http.StatusBadRequest},
		{"not found", NewError(CategoryNotFound, "unknown channel").Build(), http.StatusNotFound},
		{"subscriber limit", TooManySubscribersError("limit").Build(), http.StatusTooManyRequests},
		{"connection error", ConnectionError("relay").Build(), http.StatusBadGateway},
		{"internal error", InternalError("internal error").Build(), http.StatusInternalServerError},
		{"unclassified error", &customError{msg: "unknown error"}, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, adapter.StatusCodeFor(tt.err))
		})
	}
}

func TestHTTPErrorAdapter_WriteErrorResponse(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.Default())
	req := httptest.NewRequest(http.MethodGet, "/events/BOGUS", nil)
	w := httptest.NewRecorder()

	adapter.WriteErrorResponse(w, req, NewError(CategoryNotFound, "unknown channel").
		WithContext("channel", "BOGUS").
		Build())

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var response HTTPErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "unknown channel", response.Error)
	assert.Equal(t, string(CategoryNotFound), response.Code)
	assert.Equal(t, "BOGUS", response.Details["channel"])
}

func TestHTTPErrorAdapter_FormatErrorResponse_Retryable(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.Default())

	response := adapter.FormatErrorResponse(ConnectionError("relay unreachable").Build())

	assert.True(t, response.Retryable)
	assert.Equal(t, true, response.Details["retryable"])
}
