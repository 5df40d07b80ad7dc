package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRateLimitError(t *testing.T) {
	err := NewRateLimitError("2348012345678", 100, "1h0m0s")

	assert.True(t, IsRateLimit(err))
	assert.False(t, err.Retryable)
	assert.Equal(t, 100, err.Context["limit"])
	assert.Equal(t, "1h0m0s", err.Context["window"])
}

func TestNewCounterStoreError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := NewCounterStoreError(cause)

	assert.Equal(t, ErrCodeCounterStore, err.Code)
	assert.True(t, err.Retryable)
	assert.False(t, IsRateLimit(err))
	assert.ErrorIs(t, err, cause)
}

func TestNewGatewayErrorRetryability(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		retryable  bool
	}{
		{"server error", 500, true},
		{"bad gateway", 502, true},
		{"too many requests", 429, true},
		{"request timeout", 408, true},
		{"transport failure", 0, true},
		{"bad request", 400, false},
		{"unauthorized", 401, false},
		{"not found", 404, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewGatewayError("/message/sendText", tt.statusCode, errors.New("boom"))
			assert.Equal(t, tt.retryable, err.Retryable)
			assert.True(t, IsGatewayError(err))
		})
	}
}

func TestNewParseErrorKeepsRawPayload(t *testing.T) {
	raw := []byte(`{"event": "messages.upsert", "data": `)
	err := NewParseError(raw, errors.New("unexpected end of JSON input"))

	assert.True(t, IsParseError(err))
	assert.Equal(t, string(raw), err.Context["raw_payload"])
}

func TestHTTPStatusCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"rate limit", NewRateLimitError("x", 100, "1h"), 429},
		{"counter store", NewCounterStoreError(errors.New("down")), 503},
		{"retryable gateway", NewGatewayError("/x", 500, errors.New("boom")), 502},
		{"fatal gateway", NewGatewayError("/x", 401, errors.New("bad key")), 500},
		{"parse failure", NewParseError(nil, errors.New("bad json")), 400},
		{"database", NewDatabaseError("insert", errors.New("locked")), 503},
		{"not found", New(ErrCodeNotFound, "missing"), 404},
		{"plain error", errors.New("plain"), 500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, HTTPStatusCode(tt.err))
		})
	}
}

func TestAs(t *testing.T) {
	appErr, ok := As(NewDatabaseError("insert", errors.New("locked")))
	require.True(t, ok)
	assert.Equal(t, ErrCodeDatabaseQuery, appErr.Code)

	_, ok = As(errors.New("plain"))
	assert.False(t, ok)
}
