package handler

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-service/internal/errors"
)

func TestStatusName(t *testing.T) {
	tests := map[int]string{
		http.StatusOK:                   "OK",
		http.StatusCreated:              "CREATED",
		http.StatusBadRequest:           "BAD_REQUEST",
		http.StatusNotFound:             "NOT_FOUND",
		http.StatusConflict:             "CONFLICT",
		http.StatusInternalServerError:  "INTERNAL_SERVER_ERROR",
		http.StatusNonAuthoritativeInfo: "NON_AUTHORITATIVE_INFORMATION",
		799:                             "UNKNOWN",
	}
	for code, want := range tests {
		assert.Equal(t, want, StatusName(code), code)
	}
}

func TestEnvelopeOmitsNilPayload(t *testing.T) {
	previous := now
	now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }
	defer func() { now = previous }()

	body, err := json.Marshal(Envelope[struct{}]{Message: "nothing here", Status: StatusName(http.StatusOK), Timestamp: now()})
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"nothing here","status":"OK","timestamp":"2024-01-02T03:04:05Z"}`, string(body))

	body, err = json.Marshal(NewEnvelope("empty list", []int{}, http.StatusOK))
	require.NoError(t, err)
	assert.JSONEq(t, `{"message":"empty list","payload":[],"status":"OK","timestamp":"2024-01-02T03:04:05Z"}`, string(body))
}

func TestErrorEnvelope(t *testing.T) {
	env := NewErrorEnvelope(errors.ErrIntegrityViolation.WithDetails("transaction 9"))
	assert.Equal(t, "INTERNAL_SERVER_ERROR", env.Status)
	assert.Equal(t, "transaction references a missing account", env.Message)
	require.NotNil(t, env.Payload)
	assert.Equal(t, ErrorPayload{Code: "integrity_violation", Details: "transaction 9"}, *env.Payload)
}
