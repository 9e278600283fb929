package handler

import (
	"net/http"
	"strings"
	"time"

	"ledger-service/internal/errors"
)

// Envelope wraps every response body. Payload is left out when nil.
type Envelope[T any] struct {
	Message   string    `json:"message"`
	Payload   *T        `json:"payload,omitempty"`
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type ErrorPayload struct {
	Code    string `json:"code"`
	Details string `json:"details,omitempty"`
}

// now stamps envelopes; tests replace it.
var now = func() time.Time { return time.Now().UTC() }

func NewEnvelope[T any](message string, payload T, statusCode int) Envelope[T] {
	return Envelope[T]{
		Message:   message,
		Payload:   &payload,
		Status:    StatusName(statusCode),
		Timestamp: now(),
	}
}

func NewErrorEnvelope(appErr *errors.AppError) Envelope[ErrorPayload] {
	return NewEnvelope(appErr.Message, ErrorPayload{
		Code:    string(appErr.Code),
		Details: appErr.Details,
	}, appErr.HTTPStatus())
}

// StatusName renders a status code as an upper snake case name such as
// NOT_FOUND.
func StatusName(statusCode int) string {
	text := http.StatusText(statusCode)
	if text == "" {
		return "UNKNOWN"
	}
	return strings.ToUpper(strings.NewReplacer(" ", "_", "-", "_", "'", "").Replace(text))
}
